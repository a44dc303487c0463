package tui

import (
	"time"

	"github.com/frenchlearning/examen/internal/exam"
)

// snapshotMsg carries a state change pushed by the controller.
type snapshotMsg exam.Snapshot

// updatesClosedMsg is sent when the controller has been closed.
type updatesClosedMsg struct{}

// startedMsg is sent when the start request finishes.
type startedMsg struct {
	Err error
}

// answerSubmittedMsg is sent when the answer submission finishes.
type answerSubmittedMsg struct {
	Err error
}

// spinnerTickMsg is sent at short intervals to animate the result spinner.
type spinnerTickMsg time.Time
