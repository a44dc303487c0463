package tui

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/frenchlearning/examen/internal/exam"
	"github.com/frenchlearning/examen/internal/i18n"
	"github.com/frenchlearning/examen/internal/model"
)

var (
	titleStyle   = color.New(color.FgCyan, color.Bold).SprintFunc()
	promptStyle  = color.New(color.Bold).SprintFunc()
	correctStyle = color.New(color.FgGreen, color.Bold).SprintFunc()
	wrongStyle   = color.New(color.FgRed, color.Bold).SprintFunc()
	faintStyle   = color.New(color.Faint).SprintFunc()
	cursorStyle  = color.New(color.FgYellow, color.Bold).SprintFunc()
	errorStyle   = color.New(color.FgRed).SprintFunc()
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle(i18n.T(m.ctx, "AppTitle")))
	b.WriteString("\n\n")

	switch m.snap.Phase {
	case exam.PhaseWelcome:
		m.viewWelcome(&b)
	case exam.PhaseTesting:
		m.viewTesting(&b)
	case exam.PhaseLoadingResult:
		m.viewLoading(&b)
	case exam.PhaseResult:
		m.viewResult(&b)
	}

	if m.errMsg != "" {
		b.WriteString("\n")
		b.WriteString(errorStyle(m.errMsg))
		b.WriteString("\n")
	}
	return b.String()
}

func (m *Model) viewWelcome(b *strings.Builder) {
	hint := "HintWelcome"
	if m.snap.Kind == model.KindExit {
		hint = "HintChooseLevel"
		b.WriteString(promptStyle(i18n.T(m.ctx, "ExitTitle")))
		b.WriteString("\n")
		b.WriteString(i18n.T(m.ctx, "ExitIntro"))
		b.WriteString("\n\n")
		b.WriteString(i18n.T(m.ctx, "ChooseLevel"))
		b.WriteString("\n")
		for i, lvl := range model.Levels {
			if i == m.levelIdx {
				fmt.Fprintf(b, "  %s %s\n", cursorStyle(">"), cursorStyle(string(lvl)))
			} else {
				fmt.Fprintf(b, "    %s\n", lvl)
			}
		}
	} else {
		b.WriteString(promptStyle(i18n.T(m.ctx, "PlacementTitle")))
		b.WriteString("\n")
		b.WriteString(i18n.T(m.ctx, "PlacementIntro"))
		b.WriteString("\n")
	}

	if m.starting {
		b.WriteString("\n")
		b.WriteString(i18n.T(m.ctx, "Starting"))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(faintStyle(i18n.T(m.ctx, hint)))
	b.WriteString("\n")
}

func (m *Model) viewTesting(b *strings.Builder) {
	snap := m.snap
	q := snap.Question
	if q == nil {
		return
	}

	progress := i18n.Td(m.ctx, "QuestionProgress", map[string]any{
		"Number": snap.QuestionNumber,
		"Total":  snap.EffectiveTotal(),
	})
	fmt.Fprintf(b, "%s  %s %d%%\n", progress, progressBar(snap.Progress(), 20), snap.Progress())

	levelKey := "EstimatedLevel"
	if snap.Kind == model.KindExit {
		levelKey = "TargetLevel"
	}
	levelLine := i18n.Td(m.ctx, levelKey, map[string]any{"Level": string(snap.Level)})
	skillLine := i18n.T(m.ctx, i18n.SkillKey(q.Skill))
	b.WriteString(faintStyle(levelLine + "  ·  " + skillLine))
	b.WriteString("\n\n")

	b.WriteString(promptStyle(q.PromptFR))
	b.WriteString("\n")
	if q.PromptES != "" {
		b.WriteString(faintStyle(q.PromptES))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if len(q.Options) > 0 {
		for i, opt := range q.Options {
			cursor := " "
			if i == m.optIdx {
				cursor = cursorStyle(">")
			}
			label := fmt.Sprintf("%d) %s", i+1, opt)
			if opt == snap.Selected {
				label = cursorStyle(label)
			}
			fmt.Fprintf(b, " %s %s\n", cursor, label)
		}
	} else {
		fmt.Fprintf(b, "%s %s_\n", i18n.T(m.ctx, "AnswerPrompt"), m.buffer)
	}

	if snap.ShowFeedback {
		b.WriteString("\n")
		if snap.LastCorrect {
			b.WriteString(correctStyle("✓ " + i18n.T(m.ctx, "CorrectFeedback")))
		} else {
			msg := i18n.Td(m.ctx, "IncorrectFeedback", map[string]any{"Answer": snap.LastCorrectAnswer})
			b.WriteString(wrongStyle("✗ " + msg))
		}
		b.WriteString("\n")
		if snap.LastExplanation != "" {
			b.WriteString(faintStyle(snap.LastExplanation))
			b.WriteString("\n")
		}
	} else if m.submitting {
		b.WriteString("\n")
		b.WriteString(faintStyle(i18n.T(m.ctx, "Submitting")))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(faintStyle(i18n.T(m.ctx, "HintTesting")))
	b.WriteString("\n")
}

func (m *Model) viewLoading(b *strings.Builder) {
	frame := spinnerFrames[m.spinner%len(spinnerFrames)]
	fmt.Fprintf(b, "%s %s\n", frame, i18n.T(m.ctx, "LoadingResult"))
}

func (m *Model) viewResult(b *strings.Builder) {
	snap := m.snap
	b.WriteString(promptStyle(i18n.T(m.ctx, "ResultTitle")))
	b.WriteString("\n\n")

	if snap.ResultUnavailable || snap.Result == nil {
		b.WriteString(i18n.T(m.ctx, "ResultUnavailable"))
		b.WriteString("\n")
	} else {
		r := snap.Result
		if snap.Kind == model.KindExit {
			if r.Passed {
				b.WriteString(correctStyle(i18n.T(m.ctx, "ExamPassed")))
			} else {
				b.WriteString(wrongStyle(i18n.T(m.ctx, "ExamFailed")))
			}
			b.WriteString("\n")
		}
		level := i18n.Td(m.ctx, "AssignedLevel", map[string]any{"Level": string(r.AssignedLevel)})
		b.WriteString(promptStyle(level))
		b.WriteString("\n")
		b.WriteString(i18n.Td(m.ctx, "ScoreLine", map[string]any{"Score": formatScore(r.Score)}))
		b.WriteString("\n")
		b.WriteString(i18n.Td(m.ctx, "CorrectAnswers", map[string]any{
			"Correct": r.CorrectAnswers,
			"Total":   r.TotalQuestions,
		}))
		b.WriteString("\n")
		b.WriteString(i18n.Tp(m.ctx, "QuestionsAnswered", r.TotalQuestions))
		b.WriteString("\n")

		if len(r.SkillBreakdown) > 0 {
			b.WriteString("\n")
			b.WriteString(i18n.T(m.ctx, "SkillBreakdown"))
			b.WriteString("\n")
			for _, s := range r.SkillBreakdown {
				name := i18n.T(m.ctx, i18n.SkillKey(s.Skill))
				fmt.Fprintf(b, "  %-20s %s%% (%d/%d)\n", name, formatScore(s.Score), s.Correct, s.TotalQuestions)
			}
		}
	}

	b.WriteString("\n")
	if snap.CanRetry() {
		b.WriteString(faintStyle(i18n.T(m.ctx, "HintResult")))
	} else {
		b.WriteString(faintStyle("Enter: " + i18n.T(m.ctx, "Done")))
	}
	b.WriteString("\n")
}

func progressBar(percent, width int) string {
	filled := percent * width / 100
	if filled > width {
		filled = width
	}
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", width-filled) + "]"
}

func formatScore(score float64) string {
	return fmt.Sprintf("%g", score)
}
