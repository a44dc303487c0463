// Package exam implements the session controller driving the placement test
// and exit exam flows. The controller owns all session state, talks to the
// exam service, and times the post-feedback transitions; presentation
// bindings (terminal, web) only render snapshots and forward user input.
package exam

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/frenchlearning/examen/internal/model"
)

// DefaultFeedbackDelay is the minimum time grading feedback stays on screen
// before the next question or the result loads. One knob for both exam
// kinds, tunable via Config.
const DefaultFeedbackDelay = 1500 * time.Millisecond

// Phase is the controller's position in the exam flow.
type Phase string

const (
	// PhaseWelcome is the initial screen; exit exams pick a target level here.
	PhaseWelcome Phase = "welcome"
	// PhaseTesting is the question/answer loop.
	PhaseTesting Phase = "testing"
	// PhaseLoadingResult covers the gap between the final answer's feedback
	// and the result arriving.
	PhaseLoadingResult Phase = "loading_result"
	// PhaseResult is the terminal screen with the exam outcome.
	PhaseResult Phase = "result"
)

var (
	// ErrClosed is returned once the session has been closed or reset out
	// from under a pending call.
	ErrClosed = errors.New("exam session closed")
	// ErrBusy rejects a call while a start or submission is in flight.
	ErrBusy = errors.New("request already in flight")
	// ErrNoSelection rejects submitting before an answer is chosen.
	ErrNoSelection = errors.New("no answer selected")
	// ErrNoLevel rejects starting an exit exam without a target level.
	ErrNoLevel = errors.New("no target level selected")
	// ErrFeedbackShown rejects input while grading feedback is on screen.
	ErrFeedbackShown = errors.New("answer already submitted")
	// ErrNotTesting rejects question operations outside the testing phase.
	ErrNotTesting = errors.New("no question in progress")
	// ErrStarted rejects welcome-phase operations once an exam is underway.
	ErrStarted = errors.New("exam already started")
)

// Service is the remote exam API the controller drives. *api.Client
// implements it; tests substitute a scripted fake.
type Service interface {
	StartPlacement(ctx context.Context) (*model.ExamStart, error)
	StartExit(ctx context.Context, level model.Level) (*model.ExamStart, error)
	Answer(ctx context.Context, examID, questionID, answer string) (*model.AnswerResult, error)
	Result(ctx context.Context, examID string) (*model.ExamResult, error)
}

// Config holds the controller's tunables.
type Config struct {
	// FeedbackDelay is the minimum feedback display time;
	// DefaultFeedbackDelay when zero.
	FeedbackDelay time.Duration
}

// session is the ephemeral per-exam state, created on Start and destroyed
// on Reset. Never persisted; the server is the sole source of truth.
type session struct {
	examID            string
	question          model.Question
	number            int
	total             int // 0 = server left the length open
	level             model.Level
	selected          string // "" = nothing chosen yet
	showFeedback      bool
	lastCorrect       bool
	lastCorrectAnswer string
	lastExplanation   string
}

// Controller is the exam session state machine. All methods are safe for
// concurrent use; bindings typically call them from their own goroutines
// while controller-owned timers advance the flow in the background.
type Controller struct {
	svc  Service
	kind model.ExamKind
	cfg  Config

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	phase       Phase
	target      model.Level
	sess        *session
	result      *model.ExamResult
	unavailable bool
	busy        bool
	closed      bool
	gen         int // bumped by Reset/Close; stale completions check it

	updates chan Snapshot

	// after is time.After, swapped for a fake in tests.
	after func(time.Duration) <-chan time.Time
}

// New creates a controller in the welcome phase. kind selects the flow;
// exit exams additionally need SelectLevel before Start.
func New(svc Service, kind model.ExamKind, cfg Config) *Controller {
	if cfg.FeedbackDelay <= 0 {
		cfg.FeedbackDelay = DefaultFeedbackDelay
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		svc:     svc,
		kind:    kind,
		cfg:     cfg,
		ctx:     ctx,
		cancel:  cancel,
		phase:   PhaseWelcome,
		updates: make(chan Snapshot, 1),
		after:   time.After,
	}
}

// Updates delivers a snapshot after every state change. The channel holds
// only the latest snapshot, so a slow reader never blocks the controller;
// it is closed by Close.
func (c *Controller) Updates() <-chan Snapshot {
	return c.updates
}

// Snapshot returns a copy of the current state for rendering.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// SelectLevel records the exit exam's target level. Valid only in the
// welcome phase of an exit exam.
func (c *Controller) SelectLevel(level model.Level) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.kind != model.KindExit {
		return errors.New("placement test does not take a target level")
	}
	if c.phase != PhaseWelcome {
		return ErrStarted
	}
	if level.Index() < 0 {
		return fmt.Errorf("unknown CEFR level %q", level)
	}
	c.target = level
	c.notifyLocked()
	return nil
}

// Start begins the exam. On success the session is initialized from the
// server's response and the phase becomes testing. On failure the phase is
// unchanged and the error is returned; calling Start again retries.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.phase != PhaseWelcome {
		c.mu.Unlock()
		return ErrStarted
	}
	if c.busy {
		c.mu.Unlock()
		return ErrBusy
	}
	if c.kind == model.KindExit && c.target == "" {
		c.mu.Unlock()
		return ErrNoLevel
	}
	c.busy = true
	target, gen := c.target, c.gen
	c.mu.Unlock()

	var start *model.ExamStart
	var err error
	if c.kind == model.KindExit {
		start, err = c.svc.StartExit(ctx, target)
	} else {
		start, err = c.svc.StartPlacement(ctx)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen || c.closed {
		return ErrClosed
	}
	c.busy = false
	if err != nil {
		return fmt.Errorf("start exam: %w", err)
	}

	c.sess = &session{
		examID:   start.ExamID,
		question: start.Question,
		number:   start.QuestionNumber,
		total:    start.TotalQuestions,
		level:    start.Level,
	}
	c.phase = PhaseTesting
	slog.Debug("exam started", "exam_id", start.ExamID, "kind", string(c.kind), "level", string(start.Level))
	c.notifyLocked()
	return nil
}

// SelectAnswer records the learner's choice locally; no network call.
// Rejected while feedback is showing or a submission is in flight, and for
// options the current question does not offer (free-text questions, which
// carry no options, accept any non-empty answer).
func (c *Controller) SelectAnswer(option string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.phase != PhaseTesting || c.sess == nil {
		return ErrNotTesting
	}
	if c.sess.showFeedback {
		return ErrFeedbackShown
	}
	if c.busy {
		return ErrBusy
	}
	if option == "" {
		return ErrNoSelection
	}
	if opts := c.sess.question.Options; len(opts) > 0 && !slices.Contains(opts, option) {
		return fmt.Errorf("option %q is not offered by this question", option)
	}
	c.sess.selected = option
	c.notifyLocked()
	return nil
}

// SubmitAnswer grades the current selection. On success feedback is shown
// and the transition to the next question or the result is scheduled after
// the feedback delay. On failure nothing changes and the selection is kept,
// so the learner can resubmit. A second call while one is in flight is
// rejected with ErrBusy, never queued.
func (c *Controller) SubmitAnswer(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.phase != PhaseTesting || c.sess == nil {
		c.mu.Unlock()
		return ErrNotTesting
	}
	if c.sess.showFeedback {
		c.mu.Unlock()
		return ErrFeedbackShown
	}
	if c.busy {
		c.mu.Unlock()
		return ErrBusy
	}
	if c.sess.selected == "" {
		c.mu.Unlock()
		return ErrNoSelection
	}
	c.busy = true
	examID, questionID, answer := c.sess.examID, c.sess.question.ID, c.sess.selected
	gen := c.gen
	c.mu.Unlock()

	res, err := c.svc.Answer(ctx, examID, questionID, answer)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen || c.closed {
		return ErrClosed
	}
	c.busy = false
	if err != nil {
		return fmt.Errorf("submit answer: %w", err)
	}

	c.sess.showFeedback = true
	c.sess.lastCorrect = res.Correct
	c.sess.lastCorrectAnswer = res.CorrectAnswer
	c.sess.lastExplanation = res.Explanation
	if c.kind == model.KindPlacement && res.EstimatedLevel != "" {
		c.sess.level = res.EstimatedLevel
	}
	c.notifyLocked()

	c.scheduleAdvanceLocked(res)
	return nil
}

// scheduleAdvanceLocked arms the post-feedback transition: one wall-clock
// delay, joined with the result fetch on completion. The delay is a floor,
// not a race; completion takes precedence over a next question. Caller
// holds mu.
func (c *Controller) scheduleAdvanceLocked(res *model.AnswerResult) {
	gen := c.gen
	delay := c.after(c.cfg.FeedbackDelay)

	if res.ExamComplete || res.NextQuestion == nil {
		if !res.ExamComplete {
			slog.Warn("answer response carried neither a next question nor completion; treating exam as complete",
				"exam_id", c.sess.examID, "question_number", res.QuestionNumber)
		}
		examID := c.sess.examID

		// Fetch concurrently with the delay window.
		fetched := make(chan struct{})
		var result *model.ExamResult
		var fetchErr error
		go func() {
			result, fetchErr = c.svc.Result(c.ctx, examID)
			close(fetched)
		}()

		go func() {
			<-delay

			c.mu.Lock()
			if c.gen != gen {
				c.mu.Unlock()
				return
			}
			c.phase = PhaseLoadingResult
			if c.sess != nil {
				c.sess.showFeedback = false
				c.sess.selected = ""
			}
			c.notifyLocked()
			c.mu.Unlock()

			<-fetched

			c.mu.Lock()
			defer c.mu.Unlock()
			if c.gen != gen {
				return
			}
			if fetchErr != nil {
				slog.Warn("result fetch failed", "exam_id", examID, "error", fetchErr)
				c.unavailable = true
			} else {
				c.result = result
				slog.Debug("exam result ready", "exam_id", examID, "assigned_level", string(result.AssignedLevel))
			}
			c.phase = PhaseResult
			c.notifyLocked()
		}()
		return
	}

	next := *res.NextQuestion
	number := res.QuestionNumber
	go func() {
		<-delay

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.gen != gen || c.sess == nil {
			return
		}
		c.sess.question = next
		c.sess.number = number
		c.sess.selected = ""
		c.sess.showFeedback = false
		c.sess.lastCorrect = false
		c.sess.lastCorrectAnswer = ""
		c.sess.lastExplanation = ""
		c.notifyLocked()
	}()
}

// Reset discards the whole session and result and returns to the welcome
// phase. Pending timers and fetches are invalidated; their completions are
// dropped. Callable from any phase.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.gen++
	c.sess = nil
	c.target = ""
	c.result = nil
	c.unavailable = false
	c.busy = false
	c.phase = PhaseWelcome
	c.notifyLocked()
}

// Close tears the controller down: pending work is invalidated, the updates
// channel is closed, and every later call returns ErrClosed.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.gen++
	c.busy = false
	c.cancel()
	close(c.updates)
}

func (c *Controller) notifyLocked() {
	if c.closed {
		return
	}
	snap := c.snapshotLocked()
	select {
	case c.updates <- snap:
	default:
		// Replace the stale snapshot; sends happen only under mu, so the
		// slot is free after the drain.
		select {
		case <-c.updates:
		default:
		}
		c.updates <- snap
	}
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{
		Phase:             c.phase,
		Kind:              c.kind,
		TargetLevel:       c.target,
		Busy:              c.busy,
		Result:            c.result,
		ResultUnavailable: c.unavailable,
	}
	if c.sess != nil {
		q := c.sess.question
		snap.ExamID = c.sess.examID
		snap.Question = &q
		snap.QuestionNumber = c.sess.number
		snap.TotalQuestions = c.sess.total
		snap.Level = c.sess.level
		snap.Selected = c.sess.selected
		snap.ShowFeedback = c.sess.showFeedback
		snap.LastCorrect = c.sess.lastCorrect
		snap.LastCorrectAnswer = c.sess.lastCorrectAnswer
		snap.LastExplanation = c.sess.lastExplanation
	}
	return snap
}
