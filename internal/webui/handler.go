// Package webui serves the exam flow to a browser on localhost. It renders
// plain HTML forms over the same controller the terminal UI uses; timed
// transitions reach the page through a short meta refresh.
package webui

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/frenchlearning/examen/internal/api"
	"github.com/frenchlearning/examen/internal/exam"
	"github.com/frenchlearning/examen/internal/i18n"
	"github.com/frenchlearning/examen/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

// Client is the slice of the exam API the web UI needs.
type Client interface {
	exam.Service
	History(ctx context.Context, q api.HistoryQuery) (*model.History, error)
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	client    Client
	sessions  *Sessions
	cfg       exam.Config
	templates *template.Template
}

// New creates a new Handler with its templates parsed.
func New(client Client, sessions *Sessions, cfg exam.Config) (*Handler, error) {
	tpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Handler{client: client, sessions: sessions, cfg: cfg, templates: tpl}, nil
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.handleIndex)
	r.Post("/exam/start", h.handleStartSession)
	r.Get("/exam", h.handleExamPage)
	r.Post("/exam/begin", h.handleBegin)
	r.Post("/exam/answer", h.handleAnswer)
	r.Post("/exam/reset", h.handleReset)
	r.Post("/exam/quit", h.handleQuit)
	r.Get("/history", h.handleHistory)
}

// pageData gives every template access to the request's translations.
type pageData struct {
	ctx context.Context
}

func (p pageData) T(id string) string { return i18n.T(p.ctx, id) }

// Td translates with alternating key/value template data pairs.
func (p pageData) Td(id string, pairs ...any) string {
	data := make(map[string]any, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		if k, ok := pairs[i].(string); ok {
			data[k] = pairs[i+1]
		}
	}
	return i18n.Td(p.ctx, id, data)
}

func (p pageData) SkillName(skill string) string {
	return i18n.T(p.ctx, i18n.SkillKey(skill))
}

type indexPage struct {
	pageData
}

type examPage struct {
	pageData
	Snap    exam.Snapshot
	Levels  []model.Level
	Refresh bool
}

type historyRow struct {
	Date   string
	Kind   string
	Level  string
	Score  string
	Status string
	Passed string
}

type historyPage struct {
	pageData
	Rows  []historyRow
	Total int
}

func (h *Handler) render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.ExecuteTemplate(w, name, data); err != nil {
		slog.Error("render error", "error", err)
	}
}

// controller resolves the browser's exam session, redirecting home when
// there is none.
func (h *Handler) controller(w http.ResponseWriter, r *http.Request) *exam.Controller {
	ck, err := r.Cookie(sessionCookie)
	if err != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return nil
	}
	ctrl := h.sessions.Get(ck.Value)
	if ctrl == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return nil
	}
	return ctrl
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	h.render(w, "index.html", indexPage{pageData{r.Context()}})
}

func (h *Handler) handleStartSession(w http.ResponseWriter, r *http.Request) {
	kind := model.KindPlacement
	if r.FormValue("kind") == string(model.KindExit) {
		kind = model.KindExit
	}

	// A fresh exam replaces any previous browser session.
	if ck, err := r.Cookie(sessionCookie); err == nil {
		h.sessions.Delete(ck.Value)
	}

	ctrl := exam.New(h.client, kind, h.cfg)
	token, err := h.sessions.Create(ctrl)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/exam", http.StatusSeeOther)
}

func (h *Handler) handleExamPage(w http.ResponseWriter, r *http.Request) {
	ctrl := h.controller(w, r)
	if ctrl == nil {
		return
	}
	snap := ctrl.Snapshot()
	h.render(w, "exam.html", examPage{
		pageData: pageData{r.Context()},
		Snap:     snap,
		Levels:   model.Levels,
		Refresh:  snap.ShowFeedback || snap.Phase == exam.PhaseLoadingResult || snap.Busy,
	})
}

func (h *Handler) handleBegin(w http.ResponseWriter, r *http.Request) {
	ctrl := h.controller(w, r)
	if ctrl == nil {
		return
	}

	if lvl := r.FormValue("level"); lvl != "" {
		level, err := model.ParseLevel(lvl)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := ctrl.SelectLevel(level); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	if err := ctrl.Start(r.Context()); err != nil {
		if errors.Is(err, exam.ErrStarted) || errors.Is(err, exam.ErrBusy) {
			http.Redirect(w, r, "/exam", http.StatusSeeOther)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/exam", http.StatusSeeOther)
}

func (h *Handler) handleAnswer(w http.ResponseWriter, r *http.Request) {
	ctrl := h.controller(w, r)
	if ctrl == nil {
		return
	}

	answer := r.FormValue("answer")
	if answer == "" {
		http.Error(w, "answer cannot be empty", http.StatusBadRequest)
		return
	}
	if err := ctrl.SelectAnswer(answer); err != nil {
		// A stale form during feedback or a double submit is not an
		// error; the refreshed page shows the current state.
		if errors.Is(err, exam.ErrFeedbackShown) || errors.Is(err, exam.ErrBusy) {
			http.Redirect(w, r, "/exam", http.StatusSeeOther)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := ctrl.SubmitAnswer(r.Context()); err != nil {
		if errors.Is(err, exam.ErrFeedbackShown) || errors.Is(err, exam.ErrBusy) {
			http.Redirect(w, r, "/exam", http.StatusSeeOther)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/exam", http.StatusSeeOther)
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	ctrl := h.controller(w, r)
	if ctrl == nil {
		return
	}
	ctrl.Reset()
	http.Redirect(w, r, "/exam", http.StatusSeeOther)
}

func (h *Handler) handleQuit(w http.ResponseWriter, r *http.Request) {
	if ck, err := r.Cookie(sessionCookie); err == nil {
		h.sessions.Delete(ck.Value)
	}
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	var q api.HistoryQuery
	if kind := r.URL.Query().Get("type"); kind != "" {
		q.Kind = model.ExamKind(kind)
	}

	hist, err := h.client.History(r.Context(), q)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	rows := make([]historyRow, 0, len(hist.Items))
	for _, item := range hist.Items {
		rows = append(rows, historyRow{
			Date:   item.StartedAt.Format("2006-01-02 15:04"),
			Kind:   i18n.T(ctx, i18n.KindKey(string(item.Kind))),
			Level:  string(item.Level),
			Score:  formatScore(item.Score),
			Status: i18n.T(ctx, i18n.StatusKey(string(item.Status))),
			Passed: formatPassed(ctx, item.Passed),
		})
	}
	h.render(w, "history.html", historyPage{pageData{ctx}, rows, hist.Total})
}

func formatScore(f *float64) string {
	if f == nil {
		return "-"
	}
	return fmt.Sprintf("%g%%", *f)
}

func formatPassed(ctx context.Context, p *bool) string {
	if p == nil {
		return "-"
	}
	if *p {
		return i18n.T(ctx, "YesWord")
	}
	return i18n.T(ctx, "NoWord")
}
