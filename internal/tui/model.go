// Package tui renders the exam flow in the terminal. It owns no exam state:
// it draws controller snapshots and forwards key presses.
package tui

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea/v2"

	"github.com/frenchlearning/examen/internal/exam"
	"github.com/frenchlearning/examen/internal/i18n"
	"github.com/frenchlearning/examen/internal/model"
)

// Model is the root bubbletea model.
type Model struct {
	ctrl *exam.Controller
	ctx  context.Context

	snap   exam.Snapshot
	width  int
	height int

	levelIdx   int    // welcome: highlighted target level
	optIdx     int    // testing: highlighted option
	buffer     string // testing: free-text answer being typed
	lastQID    string
	starting   bool
	submitting bool
	spinner    int
	errMsg     string
	quitting   bool
}

// New creates the root model for the given controller, rendering in lang.
func New(ctrl *exam.Controller, lang string) *Model {
	return &Model{
		ctrl: ctrl,
		ctx:  i18n.WithLocalizer(context.Background(), i18n.NewLocalizer(lang)),
		snap: ctrl.Snapshot(),
	}
}

// Run drives the exam UI until the learner quits.
func Run(ctrl *exam.Controller, lang string) error {
	_, err := tea.NewProgram(New(ctrl, lang)).Run()
	return err
}

func (m *Model) Init() tea.Cmd {
	return waitForUpdate(m.ctrl)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case snapshotMsg:
		return m.handleSnapshot(exam.Snapshot(msg))

	case updatesClosedMsg:
		m.quitting = true
		return m, tea.Quit

	case startedMsg:
		m.starting = false
		if msg.Err != nil {
			m.errMsg = msg.Err.Error()
		}
		return m, nil

	case answerSubmittedMsg:
		m.submitting = false
		if msg.Err != nil {
			m.errMsg = msg.Err.Error()
		}
		return m, nil

	case spinnerTickMsg:
		if m.snap.Phase != exam.PhaseLoadingResult {
			return m, nil
		}
		m.spinner++
		return m, spinnerTick()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleSnapshot(snap exam.Snapshot) (tea.Model, tea.Cmd) {
	prev := m.snap
	m.snap = snap

	if snap.Question != nil && snap.Question.ID != m.lastQID {
		m.lastQID = snap.Question.ID
		m.optIdx = 0
		m.buffer = ""
	}

	cmds := []tea.Cmd{waitForUpdate(m.ctrl)}
	if snap.Phase == exam.PhaseLoadingResult && prev.Phase != exam.PhaseLoadingResult {
		cmds = append(cmds, spinnerTick())
	}
	return m, tea.Batch(cmds...)
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	m.errMsg = ""

	if key == "ctrl+c" {
		m.quitting = true
		return m, tea.Quit
	}

	switch m.snap.Phase {
	case exam.PhaseWelcome:
		return m.handleWelcomeKey(key)
	case exam.PhaseTesting:
		return m.handleTestingKey(key)
	case exam.PhaseResult:
		return m.handleResultKey(key)
	}

	// loading_result takes no input beyond quitting.
	if key == "q" || key == "esc" {
		m.quitting = true
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) handleWelcomeKey(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "q", "esc":
		m.quitting = true
		return m, tea.Quit

	case "up", "k":
		if m.snap.Kind == model.KindExit && m.levelIdx > 0 {
			m.levelIdx--
		}
		return m, nil

	case "down", "j":
		if m.snap.Kind == model.KindExit && m.levelIdx < len(model.Levels)-1 {
			m.levelIdx++
		}
		return m, nil

	case "enter":
		if m.starting {
			return m, nil
		}
		if m.snap.Kind == model.KindExit {
			if err := m.ctrl.SelectLevel(model.Levels[m.levelIdx]); err != nil {
				m.errMsg = err.Error()
				return m, nil
			}
		}
		m.starting = true
		return m, m.startCmd()
	}
	return m, nil
}

func (m *Model) handleTestingKey(key string) (tea.Model, tea.Cmd) {
	q := m.snap.Question
	if q == nil {
		return m, nil
	}

	// During feedback the controller advances on its own; only quitting
	// is accepted.
	if m.snap.ShowFeedback || m.submitting {
		if key == "q" || key == "esc" {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil
	}

	if len(q.Options) == 0 {
		return m.handleTextKey(key)
	}

	switch key {
	case "q", "esc":
		m.quitting = true
		return m, tea.Quit

	case "up", "k":
		if m.optIdx > 0 {
			m.optIdx--
			m.selectHighlighted(q)
		}
		return m, nil

	case "down", "j":
		if m.optIdx < len(q.Options)-1 {
			m.optIdx++
			m.selectHighlighted(q)
		}
		return m, nil

	case "enter":
		if m.snap.Selected == "" {
			m.selectHighlighted(q)
		}
		if m.errMsg != "" {
			return m, nil
		}
		m.submitting = true
		return m, m.submitCmd()
	}

	if len(key) == 1 && key[0] >= '1' && key[0] <= '9' {
		if idx := int(key[0] - '1'); idx < len(q.Options) {
			m.optIdx = idx
			m.selectHighlighted(q)
		}
		return m, nil
	}
	return m, nil
}

// handleTextKey edits the free-text answer for questions without options.
// Letters are input here, so only esc quits.
func (m *Model) handleTextKey(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "esc":
		m.quitting = true
		return m, tea.Quit

	case "enter":
		answer := strings.TrimSpace(m.buffer)
		if answer == "" {
			return m, nil
		}
		if err := m.ctrl.SelectAnswer(answer); err != nil {
			m.errMsg = err.Error()
			return m, nil
		}
		m.submitting = true
		return m, m.submitCmd()

	case "backspace":
		if m.buffer != "" {
			_, size := utf8.DecodeLastRuneInString(m.buffer)
			m.buffer = m.buffer[:len(m.buffer)-size]
		}
		return m, nil

	case "space":
		m.buffer += " "
		return m, nil
	}

	if utf8.RuneCountInString(key) == 1 {
		m.buffer += key
	}
	return m, nil
}

func (m *Model) handleResultKey(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "r":
		if !m.snap.CanRetry() {
			return m, nil
		}
		m.ctrl.Reset()
		m.levelIdx = 0
		m.optIdx = 0
		m.buffer = ""
		m.lastQID = ""
		m.spinner = 0
		return m, nil

	case "enter", "q", "esc":
		m.quitting = true
		return m, tea.Quit
	}
	return m, nil
}

// selectHighlighted mirrors the cursor into the controller's selection.
func (m *Model) selectHighlighted(q *model.Question) {
	if err := m.ctrl.SelectAnswer(q.Options[m.optIdx]); err != nil {
		m.errMsg = err.Error()
	}
}

func (m *Model) startCmd() tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		return startedMsg{Err: ctrl.Start(context.Background())}
	}
}

func (m *Model) submitCmd() tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		return answerSubmittedMsg{Err: ctrl.SubmitAnswer(context.Background())}
	}
}

// waitForUpdate blocks on the controller's update stream.
func waitForUpdate(ctrl *exam.Controller) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-ctrl.Updates()
		if !ok {
			return updatesClosedMsg{}
		}
		return snapshotMsg(snap)
	}
}

func spinnerTick() tea.Cmd {
	return tea.Tick(120*time.Millisecond, func(t time.Time) tea.Msg {
		return spinnerTickMsg(t)
	})
}
