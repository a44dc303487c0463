package model

import (
	"fmt"
	"strings"
	"time"
)

// Level is a CEFR proficiency tier (A1 through C2).
type Level string

const (
	LevelA1 Level = "A1"
	LevelA2 Level = "A2"
	LevelB1 Level = "B1"
	LevelB2 Level = "B2"
	LevelC1 Level = "C1"
	LevelC2 Level = "C2"
)

// Levels is the CEFR ladder, lowest first.
var Levels = []Level{LevelA1, LevelA2, LevelB1, LevelB2, LevelC1, LevelC2}

// ParseLevel normalizes a user-supplied level string ("b1", " B1 ") to a
// Level, or returns an error for anything outside the ladder.
func ParseLevel(s string) (Level, error) {
	l := Level(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Levels {
		if l == known {
			return l, nil
		}
	}
	return "", fmt.Errorf("unknown CEFR level %q (expected one of A1, A2, B1, B2, C1, C2)", s)
}

// Index returns the level's position on the ladder (A1 = 0), or -1 for an
// unknown level.
func (l Level) Index() int {
	for i, known := range Levels {
		if l == known {
			return i
		}
	}
	return -1
}

// ExamKind selects one of the two exam flows.
type ExamKind string

const (
	// KindPlacement is the adaptive test that assigns a starting level.
	KindPlacement ExamKind = "placement"
	// KindExit is the fixed-length certification exam for a chosen level.
	KindExit ExamKind = "exit"
)

// ExamStatus is the server-side lifecycle state of an exam attempt.
type ExamStatus string

const (
	StatusInProgress ExamStatus = "in_progress"
	StatusCompleted  ExamStatus = "completed"
)

const (
	// DefaultExitQuestions is the exit exam length assumed for progress
	// display when the server omits total_questions.
	DefaultExitQuestions = 10
	// MaxPlacementQuestions caps the adaptive placement test; progress
	// display estimates against it since the real total is unknown.
	MaxPlacementQuestions = 15
)

// Question is a single exam question as delivered by the server.
// A nil/empty Options slice means free text.
type Question struct {
	ID       string   `json:"id"`
	Type     string   `json:"type"`
	PromptFR string   `json:"prompt_fr"`
	PromptES string   `json:"prompt_es"`
	Options  []string `json:"options,omitempty"`
	Skill    string   `json:"skill"`
	Level    Level    `json:"cefr_level"`
}

// ExamStart is the server response to starting either exam kind.
// TotalQuestions is 0 when the server leaves the length open (placement).
type ExamStart struct {
	ExamID         string   `json:"exam_id"`
	Kind           ExamKind `json:"exam_type"`
	Level          Level    `json:"current_level"`
	Question       Question `json:"question"`
	QuestionNumber int      `json:"question_number"`
	TotalQuestions int      `json:"total_questions"`
}

// AnswerResult is the server's grading of one submitted answer.
// NextQuestion is nil when the exam is complete.
type AnswerResult struct {
	Correct        bool      `json:"correct"`
	CorrectAnswer  string    `json:"correct_answer"`
	Explanation    string    `json:"explanation,omitempty"`
	NextQuestion   *Question `json:"next_question,omitempty"`
	QuestionNumber int       `json:"question_number"`
	EstimatedLevel Level     `json:"current_estimated_level"`
	ExamComplete   bool      `json:"exam_complete"`
}

// SkillScore is the per-skill slice of an exam result.
type SkillScore struct {
	Skill          string  `json:"skill"`
	Score          float64 `json:"score"`
	TotalQuestions int     `json:"total_questions"`
	Correct        int     `json:"correct"`
}

// ExamResult is the one-shot final result of a completed exam.
// Passed is meaningful for exit exams only; placement has no pass bar.
type ExamResult struct {
	ExamID         string       `json:"exam_id"`
	Kind           ExamKind     `json:"exam_type"`
	AssignedLevel  Level        `json:"assigned_level"`
	Score          float64      `json:"score"`
	Passed         bool         `json:"passed"`
	SkillBreakdown []SkillScore `json:"skill_breakdown"`
	StartedAt      time.Time    `json:"started_at"`
	CompletedAt    time.Time    `json:"completed_at"`
	TotalQuestions int          `json:"total_questions"`
	CorrectAnswers int          `json:"correct_answers"`
}

// HistoryItem summarizes one past exam attempt. Score, Passed and
// CompletedAt are nil while the attempt is still in progress.
type HistoryItem struct {
	ID          string     `json:"id"`
	Kind        ExamKind   `json:"exam_type"`
	Level       Level      `json:"cefr_level"`
	Score       *float64   `json:"score"`
	Passed      *bool      `json:"passed"`
	Status      ExamStatus `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

// History is a page of exam history. Total counts all attempts matching the
// query, not just this page.
type History struct {
	Items []HistoryItem `json:"items"`
	Total int           `json:"total"`
}
