package webui

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"sync"
	"time"

	"github.com/frenchlearning/examen/internal/exam"
)

const (
	sessionTTL    = 2 * time.Hour
	sweepInterval = time.Minute
	sessionCookie = "examen_session"
)

// browserSession ties a browser to its exam controller.
type browserSession struct {
	ctrl    *exam.Controller
	expires time.Time
}

// Sessions is an in-memory registry of per-browser exam controllers. Exam
// state lives only here for the lifetime of the flow; nothing is persisted,
// the exam service remains the sole source of truth.
type Sessions struct {
	mu   sync.Mutex
	byID map[string]*browserSession
	ttl  time.Duration
}

// NewSessions creates an empty registry.
func NewSessions() *Sessions {
	return &Sessions{
		byID: make(map[string]*browserSession),
		ttl:  sessionTTL,
	}
}

// Create registers a controller under a fresh token.
func (s *Sessions) Create(ctrl *exam.Controller) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[token] = &browserSession{
		ctrl:    ctrl,
		expires: time.Now().Add(s.ttl),
	}
	return token, nil
}

// Get returns the controller for token and refreshes its TTL, or nil when
// the token is unknown or expired.
func (s *Sessions) Get(token string) *exam.Controller {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byID[token]
	if !ok {
		return nil
	}
	if time.Now().After(sess.expires) {
		delete(s.byID, token)
		sess.ctrl.Close()
		return nil
	}
	sess.expires = time.Now().Add(s.ttl)
	return sess.ctrl
}

// Delete removes the session and tears down its controller.
func (s *Sessions) Delete(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.byID[token]; ok {
		delete(s.byID, token)
		sess.ctrl.Close()
	}
}

// Start runs the expiry sweeper until ctx is done.
func (s *Sessions) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweep()
			}
		}
	}()
}

func (s *Sessions) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for token, sess := range s.byID {
		if now.After(sess.expires) {
			delete(s.byID, token)
			sess.ctrl.Close()
			slog.Debug("expired web session", "token", token[:8])
		}
	}
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
