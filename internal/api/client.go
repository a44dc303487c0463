package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/frenchlearning/examen/internal/model"
)

// DefaultTimeout bounds each request when Config.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// Config holds connection settings for the learning platform API.
type Config struct {
	BaseURL string        // e.g. https://api.frenchlearning.app
	Token   string        // Bearer token identifying the learner
	Timeout time.Duration // per-request bound, DefaultTimeout when zero
}

// Client calls the exam endpoints of the learning platform API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// Error is a rejection from the server: the HTTP status plus the
// human-readable detail message from the response body.
type Error struct {
	Status int
	Detail string
}

func (e *Error) Error() string {
	return fmt.Sprintf("exam service: %s (HTTP %d)", e.Detail, e.Status)
}

// New creates a client for the exam service.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("exam service URL is required")
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("API token is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

// StartPlacement begins an adaptive placement test.
func (c *Client) StartPlacement(ctx context.Context) (*model.ExamStart, error) {
	var out model.ExamStart
	if err := c.do(ctx, http.MethodPost, "/api/v1/exams/placement/start", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// StartExit begins an exit exam for the given target level.
func (c *Client) StartExit(ctx context.Context, level model.Level) (*model.ExamStart, error) {
	body := struct {
		Level model.Level `json:"cefr_level"`
	}{Level: level}
	var out model.ExamStart
	if err := c.do(ctx, http.MethodPost, "/api/v1/exams/exit/start", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Answer submits the learner's answer to one question of a running exam.
func (c *Client) Answer(ctx context.Context, examID, questionID, answer string) (*model.AnswerResult, error) {
	body := struct {
		QuestionID string `json:"question_id"`
		Answer     string `json:"answer"`
	}{QuestionID: questionID, Answer: answer}
	var out model.AnswerResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/exams/"+url.PathEscape(examID)+"/answer", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Result fetches the final result of a completed exam.
func (c *Client) Result(ctx context.Context, examID string) (*model.ExamResult, error) {
	var out model.ExamResult
	if err := c.do(ctx, http.MethodGet, "/api/v1/exams/"+url.PathEscape(examID)+"/result", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// HistoryQuery filters and pages the exam history listing.
type HistoryQuery struct {
	Kind   model.ExamKind // empty = both kinds
	Limit  int            // server default (20) when zero
	Offset int
}

// History lists the learner's past exam attempts, most recent first.
func (c *Client) History(ctx context.Context, q HistoryQuery) (*model.History, error) {
	params := url.Values{}
	if q.Kind != "" {
		params.Set("exam_type", string(q.Kind))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		params.Set("offset", strconv.Itoa(q.Offset))
	}
	path := "/api/v1/exams/history"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}
	var out model.History
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Ping checks that the API is reachable and reports itself healthy.
// The health endpoint lives outside /api/v1 and is not wrapped.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call exam service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &Error{Status: resp.StatusCode, Detail: http.StatusText(resp.StatusCode)}
	}
	var health struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return fmt.Errorf("decode health response: %w", err)
	}
	if health.Status != "ok" {
		return fmt.Errorf("service reports status %q", health.Status)
	}
	return nil
}

// envelope is the {"data": ...} wrapper every API response arrives in.
type envelope struct {
	Data json.RawMessage `json:"data"`
}

// errorBody is the {"detail": ...} shape of API error responses.
type errorBody struct {
	Detail string `json:"detail"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call exam service: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var eb errorBody
		if err := json.Unmarshal(data, &eb); err != nil || eb.Detail == "" {
			eb.Detail = http.StatusText(resp.StatusCode)
		}
		return &Error{Status: resp.StatusCode, Detail: eb.Detail}
	}

	if out == nil {
		return nil
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if len(env.Data) == 0 {
		return fmt.Errorf("malformed response: missing data field")
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}
	return nil
}
