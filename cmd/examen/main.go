package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/frenchlearning/examen/internal/api"
	"github.com/frenchlearning/examen/internal/exam"
	appI18n "github.com/frenchlearning/examen/internal/i18n"
	"github.com/frenchlearning/examen/internal/model"
	"github.com/frenchlearning/examen/internal/tui"
	"github.com/frenchlearning/examen/internal/webui"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "examen",
		Short: "French placement and exit exams for Spanish speakers",
	}

	placement := placementCmd()
	root.AddCommand(placement, exitCmd(), resultCmd(), historyCmd(), webCmd())

	// Make "placement" the default when no subcommand is given.
	root.RunE = placement.RunE

	// Register placement flags on root so bare `examen --server ...` still works.
	root.Flags().AddFlagSet(placement.Flags())

	return root
}

// clientFlags registers the connection flags every command shares.
func clientFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("server", "s", "http://localhost:8000", "Exam service base URL")
	f.String("token", "", "API access token (or set EXAMEN_TOKEN)")
	f.StringP("lang", "l", appI18n.DefaultLang, "UI language (es, en, fr)")
	f.Duration("timeout", api.DefaultTimeout, "Per-request timeout")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func placementCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "placement",
		Short: "Take the adaptive placement test in the terminal",
		RunE:  runPlacement,
	}
	clientFlags(cmd)
	cmd.Flags().Duration("feedback-delay", exam.DefaultFeedbackDelay, "How long answer feedback stays on screen")
	return cmd
}

func exitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exit",
		Short: "Take the exit exam for a CEFR level",
		RunE:  runExit,
	}
	clientFlags(cmd)
	f := cmd.Flags()
	f.Duration("feedback-delay", exam.DefaultFeedbackDelay, "How long answer feedback stays on screen")
	f.String("level", "", "Target CEFR level (A1-C2); chosen interactively when omitted")
	return cmd
}

func resultCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "result <exam-id>",
		Short: "Show the final result of a completed exam",
		Args:  cobra.ExactArgs(1),
		RunE:  runResult,
	}
	clientFlags(cmd)
	return cmd
}

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past exams",
		RunE:  runHistory,
	}
	clientFlags(cmd)
	f := cmd.Flags()
	f.StringP("type", "t", "", "Filter by exam type (placement, exit)")
	f.Int("limit", 20, "Maximum number of exams to list")
	f.Int("offset", 0, "Number of exams to skip")
	f.StringP("output", "o", "", "Export as JSON to a file path (- for stdout) instead of a table")
	return cmd
}

func webCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "web",
		Short: "Serve the exam flow as a local web page",
		RunE:  runWeb,
	}
	clientFlags(cmd)
	f := cmd.Flags()
	f.StringP("addr", "a", "localhost:8080", "HTTP listen address")
	f.Duration("feedback-delay", exam.DefaultFeedbackDelay, "How long answer feedback stays on screen")
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("EXAMEN")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("examen")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/examen")
	v.AddConfigPath("/etc/examen")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// newClient builds the API client from the resolved config and checks that
// the service is reachable before any exam starts.
func newClient(v *viper.Viper) (*api.Client, error) {
	if v.GetString("token") == "" {
		return nil, fmt.Errorf("an API token is required: set --token flag or EXAMEN_TOKEN env var")
	}
	client, err := api.New(api.Config{
		BaseURL: v.GetString("server"),
		Token:   v.GetString("token"),
		Timeout: v.GetDuration("timeout"),
	})
	if err != nil {
		return nil, fmt.Errorf("create API client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), v.GetDuration("timeout"))
	defer cancel()
	if err := client.Ping(ctx); err != nil {
		return nil, fmt.Errorf("exam service health check: %w", err)
	}
	slog.Debug("exam service OK", "server", v.GetString("server"))

	return client, nil
}

func runPlacement(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	return runExam(viperForCmd(cmd), model.KindPlacement)
}

func runExit(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	return runExam(viperForCmd(cmd), model.KindExit)
}

func runExam(v *viper.Viper, kind model.ExamKind) error {
	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	client, err := newClient(v)
	if err != nil {
		return err
	}

	ctrl := exam.New(client, kind, exam.Config{FeedbackDelay: v.GetDuration("feedback-delay")})
	defer ctrl.Close()

	if kind == model.KindExit {
		if lvl := v.GetString("level"); lvl != "" {
			level, err := model.ParseLevel(lvl)
			if err != nil {
				return err
			}
			if err := ctrl.SelectLevel(level); err != nil {
				return fmt.Errorf("select level: %w", err)
			}
		}
	}

	return tui.Run(ctrl, lang)
}

func runResult(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	client, err := newClient(v)
	if err != nil {
		return err
	}

	ctx := appI18n.WithLocalizer(context.Background(), appI18n.NewLocalizer(lang))
	reqCtx, cancel := context.WithTimeout(ctx, v.GetDuration("timeout"))
	defer cancel()
	res, err := client.Result(reqCtx, args[0])
	if err != nil {
		return fmt.Errorf("fetch result: %w", err)
	}

	printResult(ctx, res)
	return nil
}

func runHistory(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	client, err := newClient(v)
	if err != nil {
		return err
	}

	q := api.HistoryQuery{
		Limit:  v.GetInt("limit"),
		Offset: v.GetInt("offset"),
	}
	if kind := model.ExamKind(v.GetString("type")); kind != "" {
		if kind != model.KindPlacement && kind != model.KindExit {
			return fmt.Errorf("unknown exam type %q (expected placement or exit)", kind)
		}
		q.Kind = kind
	}

	ctx := appI18n.WithLocalizer(context.Background(), appI18n.NewLocalizer(lang))
	reqCtx, cancel := context.WithTimeout(ctx, v.GetDuration("timeout"))
	defer cancel()
	hist, err := client.History(reqCtx, q)
	if err != nil {
		return fmt.Errorf("fetch history: %w", err)
	}

	if out := v.GetString("output"); out != "" {
		return exportHistory(hist, q.Kind, v.GetString("server"), out)
	}
	printHistory(ctx, hist)
	return nil
}

func runWeb(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	client, err := newClient(v)
	if err != nil {
		return err
	}

	sessions := webui.NewSessions()
	sessions.Start(context.Background())

	h, err := webui.New(client, sessions, exam.Config{FeedbackDelay: v.GetDuration("feedback-delay")})
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))
	h.Routes(r)

	addr := v.GetString("addr")
	slog.Info("starting web UI",
		"addr", addr,
		"server", v.GetString("server"),
		"lang", lang,
	)
	return http.ListenAndServe(addr, r)
}

func printResult(ctx context.Context, res *model.ExamResult) {
	fmt.Println()
	color.Cyan(appI18n.T(ctx, "ResultTitle"))
	if res.Kind == model.KindExit {
		if res.Passed {
			color.Green(appI18n.T(ctx, "ExamPassed"))
		} else {
			color.Red(appI18n.T(ctx, "ExamFailed"))
		}
	}
	fmt.Println(appI18n.Td(ctx, "AssignedLevel", map[string]any{"Level": res.AssignedLevel}))
	fmt.Println(appI18n.Td(ctx, "ScoreLine", map[string]any{"Score": res.Score}))
	fmt.Println(appI18n.Td(ctx, "CorrectAnswers", map[string]any{
		"Correct": res.CorrectAnswers,
		"Total":   res.TotalQuestions,
	}))

	if len(res.SkillBreakdown) == 0 {
		return
	}
	fmt.Println()
	color.Cyan(appI18n.T(ctx, "SkillBreakdown"))
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{
		appI18n.T(ctx, "ColSkill"),
		appI18n.T(ctx, "ColScore"),
		appI18n.T(ctx, "ColCorrect"),
	})
	for _, s := range res.SkillBreakdown {
		table.Append([]string{
			appI18n.T(ctx, appI18n.SkillKey(s.Skill)),
			fmt.Sprintf("%g%%", s.Score),
			fmt.Sprintf("%d/%d", s.Correct, s.TotalQuestions),
		})
	}
	table.Render()
}

func printHistory(ctx context.Context, hist *model.History) {
	if len(hist.Items) == 0 {
		fmt.Println(appI18n.T(ctx, "NoHistory"))
		return
	}

	color.Cyan(appI18n.T(ctx, "HistoryTitle"))
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{
		appI18n.T(ctx, "ColDate"),
		appI18n.T(ctx, "ColType"),
		appI18n.T(ctx, "ColLevel"),
		appI18n.T(ctx, "ColScore"),
		appI18n.T(ctx, "ColStatus"),
		appI18n.T(ctx, "ColPassed"),
	})
	for _, item := range hist.Items {
		table.Append([]string{
			item.StartedAt.Format("2006-01-02 15:04"),
			appI18n.T(ctx, appI18n.KindKey(string(item.Kind))),
			string(item.Level),
			formatScore(item.Score),
			appI18n.T(ctx, appI18n.StatusKey(string(item.Status))),
			formatPassed(ctx, item.Passed),
		})
	}
	table.Render()

	if hist.Total > len(hist.Items) {
		fmt.Println(appI18n.Td(ctx, "HistoryShown", map[string]any{
			"Shown": len(hist.Items),
			"Total": hist.Total,
		}))
	}
}

func exportHistory(hist *model.History, kind model.ExamKind, server, outPath string) error {
	export := model.HistoryExport{
		ExportedAt: time.Now().UTC(),
		Server:     server,
		Kind:       kind,
		Total:      hist.Total,
		Items:      hist.Items,
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	var w io.Writer
	if outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	_, err = w.Write(data)
	if err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)

	return nil
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
		return appI18n.T(ctx, "YesWord")
	}
	return appI18n.T(ctx, "NoWord")
}
