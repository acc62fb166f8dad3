package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/pavelanni/flashexam/internal/adaptive"
	"github.com/pavelanni/flashexam/internal/handler"
	appI18n "github.com/pavelanni/flashexam/internal/i18n"
	"github.com/pavelanni/flashexam/internal/ledger"
	"github.com/pavelanni/flashexam/internal/model"
	"github.com/pavelanni/flashexam/internal/store"
	"github.com/pavelanni/flashexam/internal/study"
)

func main() {
	_ = godotenv.Load()
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "flashexam",
		Short: "Markdown quizzes with attempt history and adaptive review",
	}

	serve := serveCmd()
	root.AddCommand(serve, parseCmd(), recordCmd(), historyCmd(), performanceCmd(),
		adaptiveCmd(), exportCmd(), importCmd(), docsCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `flashexam --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func addCommonFlags(f *pflag.FlagSet) {
	f.String("store", "fs", "Document store backend (fs, sqlite)")
	f.String("root", ".", "Quiz directory for the fs store")
	f.String("db", "flashexam.db", "SQLite database path for the sqlite store")
	f.StringP("lang", "l", "en", "Message language (en, ru)")
	f.Float64("pass-threshold", study.DefaultPassThreshold, "Pass threshold (0-1) for quizzes that do not set one")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.Float64("adaptive-ratio", adaptive.DefaultRatio, "Default share of improvable questions in adaptive sessions")
	addCommonFlags(f)
	return cmd
}

func parseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse <quiz>",
		Short: "Parse a quiz and print it as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  runParse,
	}
	addCommonFlags(cmd.Flags())
	return cmd
}

func recordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "record <quiz> [attempt.json]",
		Short: "Record a scored attempt read from a file or stdin",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  runRecord,
	}
	addCommonFlags(cmd.Flags())
	return cmd
}

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history <quiz>",
		Short: "List recorded attempts, newest first",
		Args:  cobra.ExactArgs(1),
		RunE:  runHistory,
	}
	addCommonFlags(cmd.Flags())

	rm := &cobra.Command{
		Use:   "rm <quiz> <session-id>",
		Short: "Remove a recorded attempt",
		Args:  cobra.ExactArgs(2),
		RunE:  runHistoryRemove,
	}
	addCommonFlags(rm.Flags())
	cmd.AddCommand(rm)
	return cmd
}

func performanceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "performance <quiz>",
		Short: "Show per-question mastery",
		Args:  cobra.ExactArgs(1),
		RunE:  runPerformance,
	}
	f := cmd.Flags()
	f.Bool("cached", false, "Read the cached performance block instead of rebuilding")
	addCommonFlags(f)
	return cmd
}

func adaptiveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "adaptive <quiz>",
		Short: "Select questions for an adaptive review session",
		Args:  cobra.ExactArgs(1),
		RunE:  runAdaptive,
	}
	f := cmd.Flags()
	f.Float64("adaptive-ratio", adaptive.DefaultRatio, "Share of improvable questions in the session")
	f.Bool("json", false, "Print the selected exam as JSON")
	addCommonFlags(f)
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <quiz>",
		Short: "Export attempt history and performance as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	addCommonFlags(f)
	return cmd
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file.md>...",
		Short: "Import quiz files and their history into the SQLite store",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runImport,
	}
	addCommonFlags(cmd.Flags())
	return cmd
}

func docsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docs",
		Short: "List documents in the SQLite store",
		Args:  cobra.NoArgs,
		RunE:  runDocs,
	}
	addCommonFlags(cmd.Flags())

	rm := &cobra.Command{
		Use:   "rm <name>...",
		Short: "Delete documents from the SQLite store",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runDocsRemove,
	}
	addCommonFlags(rm.Flags())
	cmd.AddCommand(rm)
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

	v.SetEnvPrefix("FLASHEXAM")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("flashexam")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/flashexam")
	v.AddConfigPath("/etc/flashexam")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// app is the per-command runtime built from flags, environment and config.
type app struct {
	v     *viper.Viper
	svc   *study.Service
	ctx   context.Context
	close func() error
}

func newApp(cmd *cobra.Command) (*app, error) {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return nil, fmt.Errorf("init i18n: %w", err)
	}

	docs, closeFn, err := openStore(v)
	if err != nil {
		return nil, err
	}
	svc := study.New(docs, study.Config{PassThreshold: v.GetFloat64("pass-threshold")})
	ctx := appI18n.WithLocalizer(cmd.Context(), appI18n.NewLocalizer(lang))
	return &app{v: v, svc: svc, ctx: ctx, close: closeFn}, nil
}

func openStore(v *viper.Viper) (ledger.DocumentStore, func() error, error) {
	switch backend := strings.ToLower(v.GetString("store")); backend {
	case "fs", "":
		root := v.GetString("root")
		slog.Debug("using file store", "root", root)
		return store.NewFileStore(root), func() error { return nil }, nil
	case "sqlite":
		db, err := store.New(v.GetString("db"))
		if err != nil {
			return nil, nil, fmt.Errorf("open database: %w", err)
		}
		slog.Debug("using sqlite store", "db", v.GetString("db"))
		return db, db.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", backend)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	h, err := handler.New(a.svc, handler.Config{AdaptiveRatio: a.v.GetFloat64("adaptive-ratio")})
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}

	lang := a.v.GetString("lang")
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))
	h.Routes(r)

	addr := a.v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"store", a.v.GetString("store"),
		"lang", lang,
		"adaptive_ratio", a.v.GetFloat64("adaptive-ratio"),
		"pass_threshold", a.v.GetFloat64("pass-threshold"),
	)
	return http.ListenAndServe(addr, r)
}

func runParse(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	def, err := a.svc.Load(a.ctx, args[0])
	if err != nil {
		return err
	}
	if len(def.Config.RangeErrors) > 0 {
		slog.Warn(appI18n.T(a.ctx, "RangeInvalid"), "errors", def.Config.RangeErrors)
	}
	return writeJSON(cmd.OutOrStdout(), def)
}

func runRecord(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	var in io.Reader = cmd.InOrStdin()
	if len(args) == 2 && args[1] != "-" {
		f, err := os.Open(args[1])
		if err != nil {
			return fmt.Errorf("open attempt: %w", err)
		}
		defer f.Close()
		in = f
	}
	raw, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("read attempt: %w", err)
	}

	res, err := a.svc.Record(a.ctx, args[0], raw)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), appI18n.Td(a.ctx, "AttemptRecorded", map[string]any{
		"ID":         res.SessionID,
		"Percentage": fmt.Sprintf("%.1f", res.Percentage),
	}))
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	attempts, err := a.svc.History(a.ctx, args[0])
	if err != nil {
		return err
	}
	printHistory(a.ctx, cmd.OutOrStdout(), attempts)
	return nil
}

func runHistoryRemove(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	id := args[1]
	removed, err := a.svc.Remove(a.ctx, args[0], id)
	if err != nil {
		return err
	}
	if !removed {
		return errors.New(appI18n.Td(a.ctx, "AttemptNotFound", map[string]any{"ID": id}))
	}
	fmt.Fprintln(cmd.OutOrStdout(), appI18n.Td(a.ctx, "AttemptRemoved", map[string]any{"ID": id}))
	return nil
}

func runPerformance(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	var rep study.Report
	if a.v.GetBool("cached") {
		rep, err = a.svc.Cached(a.ctx, args[0])
	} else {
		rep, err = a.svc.Performance(a.ctx, args[0])
	}
	if err != nil {
		return err
	}
	printPerformance(a.ctx, cmd.OutOrStdout(), rep)
	return nil
}

func runAdaptive(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	plan, err := a.svc.Adaptive(a.ctx, args[0], a.v.GetFloat64("adaptive-ratio"))
	if err != nil {
		return err
	}
	if a.v.GetBool("json") {
		return writeJSON(cmd.OutOrStdout(), plan)
	}
	printSelection(a.ctx, cmd.OutOrStdout(), plan)
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	exp, err := a.svc.Export(a.ctx, args[0])
	if err != nil {
		return err
	}

	outPath := a.v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = cmd.OutOrStdout()
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}
	return writeJSON(w, exp)
}

func openVault(cmd *cobra.Command) (*store.Store, error) {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	db, err := store.New(v.GetString("db"))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

func runDocs(cmd *cobra.Command, _ []string) error {
	db, err := openVault(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	docs, err := db.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("list documents: %w", err)
	}
	printDocuments(cmd.OutOrStdout(), docs)
	return nil
}

func runDocsRemove(cmd *cobra.Command, args []string) error {
	db, err := openVault(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	for _, name := range args {
		if err := db.Delete(cmd.Context(), name); err != nil {
			return fmt.Errorf("delete %s: %w", name, err)
		}
		slog.Info("deleted document", "name", name)
	}
	return nil
}

var errNameCollision = errors.New("document name collision")

// runImport copies quiz files into the SQLite store under their base names.
// A quiz whose content hash matches the last import of that name is skipped;
// a companion history file is copied only when the store has none yet.
func runImport(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}
	ctx := appI18n.WithLocalizer(cmd.Context(), appI18n.NewLocalizer(lang))

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := importFiles(ctx, db, args, cmd.OutOrStdout()); err != nil {
		return err
	}
	count, err := db.DocumentCount(ctx)
	if err != nil {
		return fmt.Errorf("count documents: %w", err)
	}
	slog.Info("import finished", "files", len(args), "documents", count)
	return nil
}

// importFiles imports every path in order. Paths are stored by base name, so
// two paths sharing one are refused before anything is written.
func importFiles(ctx context.Context, db *store.Store, paths []string, w io.Writer) error {
	seen := make(map[string]string, len(paths))
	for _, path := range paths {
		name := filepath.Base(path)
		if prev, ok := seen[name]; ok && prev != path {
			return fmt.Errorf("import %s: %w: %s already maps to %s", path, errNameCollision, prev, name)
		}
		seen[name] = path
	}
	for _, path := range paths {
		if err := importQuiz(ctx, db, path); err != nil {
			return err
		}
		fmt.Fprintln(w, appI18n.Td(ctx, "ImportedQuiz", map[string]any{"Path": path}))
	}
	return nil
}

func importQuiz(ctx context.Context, db *store.Store, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	name := filepath.Base(path)

	hash := sha256sum(data)
	storedHash, err := db.ImportedFileHash(ctx, name)
	if err != nil {
		return fmt.Errorf("check import status for %s: %w", path, err)
	}
	if storedHash == hash {
		slog.Info(appI18n.Td(ctx, "ImportUnchanged", map[string]any{"Path": path}))
	} else {
		if storedHash != "" {
			slog.Warn("quiz changed since last import, replacing", "path", path)
		}
		if err := db.Write(ctx, name, string(data)); err != nil {
			return fmt.Errorf("store %s: %w", path, err)
		}
		if err := db.SetImportedFileHash(ctx, name, hash); err != nil {
			return fmt.Errorf("record import for %s: %w", path, err)
		}
	}

	historyPath := ledger.CompanionName(path)
	history, err := os.ReadFile(historyPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", historyPath, err)
	}
	historyName := ledger.CompanionName(name)
	if _, err := db.Read(ctx, historyName); err == nil {
		slog.Info("history already in store, skipping", "path", historyPath)
		return nil
	} else if !errors.Is(err, model.ErrDocumentNotFound) {
		return fmt.Errorf("check history %s: %w", historyName, err)
	}
	if err := db.Write(ctx, historyName, string(history)); err != nil {
		return fmt.Errorf("store %s: %w", historyPath, err)
	}
	slog.Info("imported history", "path", historyPath)
	return nil
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	_, _ = fmt.Fprintln(w)
	return nil
}

func sha256sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
