package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/frenchlearning/examen/internal/model"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(Config{BaseURL: srv.URL, Token: "test-token"})
	if err != nil {
		t.Fatalf("newTestClient: %v", err)
	}
	return c
}

func decodeBody(r *http.Request, out any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(out)
}

func TestNewValidation(t *testing.T) {
	if _, err := New(Config{Token: "tok"}); err == nil {
		t.Error("expected error for missing base URL")
	}
	if _, err := New(Config{BaseURL: "https://api.example.com"}); err == nil {
		t.Error("expected error for missing token")
	}
	c, err := New(Config{BaseURL: "https://api.example.com/", Token: "tok"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.baseURL != "https://api.example.com" {
		t.Errorf("expected trailing slash trimmed, got %q", c.baseURL)
	}
}

func TestStartPlacement(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/api/v1/exams/placement/start" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("unexpected Authorization header %q", got)
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Error("expected X-Request-ID header")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data": {
			"exam_id": "e1",
			"exam_type": "placement",
			"current_level": "A2",
			"question": {"id": "q1", "type": "multiple_choice",
				"prompt_fr": "Je ___ française.", "prompt_es": "Yo soy francesa.",
				"options": ["suis", "es", "est"], "skill": "grammar", "cefr_level": "A1"},
			"question_number": 1,
			"total_questions": null
		}}`))
	})

	start, err := c.StartPlacement(context.Background())
	if err != nil {
		t.Fatalf("StartPlacement: %v", err)
	}
	if start.ExamID != "e1" {
		t.Errorf("expected exam ID 'e1', got %q", start.ExamID)
	}
	if start.Kind != model.KindPlacement {
		t.Errorf("expected placement kind, got %q", start.Kind)
	}
	if start.Level != model.LevelA2 {
		t.Errorf("expected level A2, got %q", start.Level)
	}
	if start.QuestionNumber != 1 {
		t.Errorf("expected question number 1, got %d", start.QuestionNumber)
	}
	if start.TotalQuestions != 0 {
		t.Errorf("expected unknown total (0), got %d", start.TotalQuestions)
	}
	if start.Question.ID != "q1" || len(start.Question.Options) != 3 {
		t.Errorf("unexpected question %+v", start.Question)
	}
}

func TestStartExitSendsLevel(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/exams/exit/start" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("unexpected Content-Type %q", got)
		}
		var body struct {
			Level string `json:"cefr_level"`
		}
		if err := decodeBody(r, &body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body.Level != "B1" {
			t.Errorf("expected cefr_level B1, got %q", body.Level)
		}
		w.Write([]byte(`{"data": {
			"exam_id": "x9", "exam_type": "exit", "current_level": "B1",
			"question": {"id": "q1", "type": "multiple_choice", "prompt_fr": "p",
				"prompt_es": "g", "options": ["a","b"], "skill": "vocabulary", "cefr_level": "B1"},
			"question_number": 1, "total_questions": 10
		}}`))
	})

	start, err := c.StartExit(context.Background(), model.LevelB1)
	if err != nil {
		t.Fatalf("StartExit: %v", err)
	}
	if start.TotalQuestions != 10 {
		t.Errorf("expected total 10, got %d", start.TotalQuestions)
	}
}

func TestAnswer(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/exams/e1/answer" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		var body struct {
			QuestionID string `json:"question_id"`
			Answer     string `json:"answer"`
		}
		if err := decodeBody(r, &body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body.QuestionID != "q1" || body.Answer != "suis" {
			t.Errorf("unexpected body %+v", body)
		}
		w.Write([]byte(`{"data": {
			"correct": true, "correct_answer": "suis",
			"explanation": "First person singular of être.",
			"next_question": {"id": "q2", "type": "multiple_choice", "prompt_fr": "p2",
				"prompt_es": "g2", "options": ["a","b","c"], "skill": "grammar", "cefr_level": "A2"},
			"question_number": 2, "current_estimated_level": "A2", "exam_complete": false
		}}`))
	})

	res, err := c.Answer(context.Background(), "e1", "q1", "suis")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if !res.Correct || res.CorrectAnswer != "suis" {
		t.Errorf("unexpected grading %+v", res)
	}
	if res.NextQuestion == nil || res.NextQuestion.ID != "q2" {
		t.Errorf("expected next question q2, got %+v", res.NextQuestion)
	}
	if res.QuestionNumber != 2 || res.EstimatedLevel != model.LevelA2 {
		t.Errorf("unexpected progress fields %+v", res)
	}
	if res.ExamComplete {
		t.Error("exam should not be complete")
	}
}

func TestAnswerComplete(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": {
			"correct": false, "correct_answer": "est", "next_question": null,
			"question_number": 10, "current_estimated_level": "B1", "exam_complete": true
		}}`))
	})

	res, err := c.Answer(context.Background(), "e1", "q10", "es")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if !res.ExamComplete {
		t.Error("expected exam_complete true")
	}
	if res.NextQuestion != nil {
		t.Errorf("expected nil next question, got %+v", res.NextQuestion)
	}
	if res.Explanation != "" {
		t.Errorf("expected empty explanation, got %q", res.Explanation)
	}
}

func TestResult(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		if r.URL.Path != "/api/v1/exams/e1/result" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Write([]byte(`{"data": {
			"exam_id": "e1", "exam_type": "exit", "assigned_level": "B1",
			"score": 82.5, "passed": true,
			"skill_breakdown": [
				{"skill": "grammar", "score": 75.0, "total_questions": 4, "correct": 3},
				{"skill": "vocabulary", "score": 100.0, "total_questions": 6, "correct": 6}
			],
			"started_at": "2026-03-02T09:15:00+00:00",
			"completed_at": "2026-03-02T09:32:10+00:00",
			"total_questions": 10, "correct_answers": 9
		}}`))
	})

	res, err := c.Result(context.Background(), "e1")
	if err != nil {
		t.Fatalf("Result: %v", err)
	}
	if res.AssignedLevel != model.LevelB1 || res.Score != 82.5 || !res.Passed {
		t.Errorf("unexpected result %+v", res)
	}
	if len(res.SkillBreakdown) != 2 {
		t.Fatalf("expected 2 skill scores, got %d", len(res.SkillBreakdown))
	}
	if res.SkillBreakdown[0].Skill != "grammar" || res.SkillBreakdown[0].Correct != 3 {
		t.Errorf("unexpected breakdown %+v", res.SkillBreakdown[0])
	}
	if res.CompletedAt.Before(res.StartedAt) {
		t.Error("completed_at should not precede started_at")
	}
}

func TestHistoryQueryParams(t *testing.T) {
	tests := []struct {
		name  string
		query HistoryQuery
		want  string
	}{
		{"defaults", HistoryQuery{}, ""},
		{"kind only", HistoryQuery{Kind: model.KindExit}, "exam_type=exit"},
		{"paged", HistoryQuery{Limit: 5, Offset: 10}, "limit=5&offset=10"},
		{"all", HistoryQuery{Kind: model.KindPlacement, Limit: 50, Offset: 50}, "exam_type=placement&limit=50&offset=50"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotQuery string
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/v1/exams/history" {
					t.Errorf("unexpected path %q", r.URL.Path)
				}
				gotQuery = r.URL.RawQuery
				w.Write([]byte(`{"data": {"items": [
					{"id": "a", "exam_type": "exit", "cefr_level": "B1", "score": 82.5,
					 "passed": true, "status": "completed",
					 "started_at": "2026-03-02T09:15:00+00:00",
					 "completed_at": "2026-03-02T09:32:10+00:00"},
					{"id": "b", "exam_type": "placement", "cefr_level": "A2", "score": null,
					 "passed": null, "status": "in_progress",
					 "started_at": "2026-03-01T08:00:00+00:00", "completed_at": null}
				], "total": 2}}`))
			})

			hist, err := c.History(context.Background(), tt.query)
			if err != nil {
				t.Fatalf("History: %v", err)
			}
			if gotQuery != tt.want {
				t.Errorf("query = %q, want %q", gotQuery, tt.want)
			}
			if hist.Total != 2 || len(hist.Items) != 2 {
				t.Fatalf("unexpected history %+v", hist)
			}
			if hist.Items[0].Score == nil || *hist.Items[0].Score != 82.5 {
				t.Errorf("expected first item score 82.5, got %v", hist.Items[0].Score)
			}
			if hist.Items[1].Score != nil || hist.Items[1].Passed != nil || hist.Items[1].CompletedAt != nil {
				t.Errorf("expected in-progress item with nil fields, got %+v", hist.Items[1])
			}
		})
	}
}

func TestServerErrorDetail(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"detail": "This exam has already been completed."}`))
	})

	_, err := c.Answer(context.Background(), "e1", "q1", "a")
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *api.Error, got %T: %v", err, err)
	}
	if apiErr.Status != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", apiErr.Status)
	}
	if apiErr.Detail != "This exam has already been completed." {
		t.Errorf("unexpected detail %q", apiErr.Detail)
	}
}

func TestServerErrorWithoutDetail(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream exploded"))
	})

	_, err := c.Result(context.Background(), "e1")
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *api.Error, got %v", err)
	}
	if apiErr.Detail != http.StatusText(http.StatusBadGateway) {
		t.Errorf("expected fallback detail, got %q", apiErr.Detail)
	}
}

func TestMissingEnvelope(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"exam_id": "e1"}`))
	})

	if _, err := c.StartPlacement(context.Background()); err == nil {
		t.Fatal("expected error for response without data envelope")
	}
}

func TestPing(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/health" {
				t.Errorf("unexpected path %q", r.URL.Path)
			}
			w.Write([]byte(`{"status": "ok", "service": "french-learning-api"}`))
		})
		if err := c.Ping(context.Background()); err != nil {
			t.Errorf("Ping: %v", err)
		}
	})

	t.Run("unhealthy status", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"status": "degraded"}`))
		})
		if err := c.Ping(context.Background()); err == nil {
			t.Error("expected error for degraded status")
		}
	})

	t.Run("http error", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
		if err := c.Ping(context.Background()); err == nil {
			t.Error("expected error for 503")
		}
	})
}
