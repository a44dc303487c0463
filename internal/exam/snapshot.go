package exam

import "github.com/frenchlearning/examen/internal/model"

// Snapshot is an immutable copy of the controller state, safe to render
// from any goroutine.
type Snapshot struct {
	Phase       Phase
	Kind        model.ExamKind
	TargetLevel model.Level // exit exams; empty until selected

	ExamID         string
	Question       *model.Question // nil until an exam starts
	QuestionNumber int
	TotalQuestions int // 0 when the server left the length open
	Level          model.Level

	Selected          string
	ShowFeedback      bool
	LastCorrect       bool
	LastCorrectAnswer string
	LastExplanation   string
	Busy              bool

	Result            *model.ExamResult
	ResultUnavailable bool
}

// EffectiveTotal is the question count used for progress display: the
// server's figure when it sent one, otherwise 10 for exit exams and the
// 15-question placement cap.
func (s Snapshot) EffectiveTotal() int {
	if s.TotalQuestions > 0 {
		return s.TotalQuestions
	}
	if s.Kind == model.KindExit {
		return model.DefaultExitQuestions
	}
	return model.MaxPlacementQuestions
}

// Progress is the display progress in percent, capped at 100 because an
// adaptive placement run may finish early or hit the cap exactly.
func (s Snapshot) Progress() int {
	total := s.EffectiveTotal()
	if total <= 0 || s.QuestionNumber <= 0 {
		return 0
	}
	p := s.QuestionNumber * 100 / total
	if p > 100 {
		p = 100
	}
	return p
}

// CanRetry reports whether the result screen offers starting over: always
// after a placement test, and after an exit exam only when it was failed
// or the result never arrived.
func (s Snapshot) CanRetry() bool {
	if s.Phase != PhaseResult {
		return false
	}
	if s.Kind != model.KindExit {
		return true
	}
	return s.Result == nil || !s.Result.Passed
}
