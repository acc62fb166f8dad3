// Package study wires quiz parsing, attempt history, performance tracking and
// adaptive selection over a document store.
package study

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/flashexam/internal/adaptive"
	"github.com/pavelanni/flashexam/internal/ledger"
	"github.com/pavelanni/flashexam/internal/model"
	"github.com/pavelanni/flashexam/internal/performance"
	"github.com/pavelanni/flashexam/internal/quizmark"
)

// DefaultPassThreshold applies when neither the quiz nor the configuration sets one.
const DefaultPassThreshold = 0.7

var (
	// ErrNoQuestions is returned when a quiz parses to zero questions.
	ErrNoQuestions = errors.New("quiz has no questions")
	// ErrInvalidResult is returned when attempt JSON fails validation.
	ErrInvalidResult = errors.New("invalid attempt result")
)

// Config holds service-wide settings.
type Config struct {
	PassThreshold float64
	// Rand drives adaptive shuffling. Nil seeds from the clock.
	Rand rand.Source
}

// Service runs the study pipeline for quizzes held in a document store.
type Service struct {
	docs     ledger.DocumentStore
	history  *ledger.History
	cache    *ledger.PerformanceCache
	selector *adaptive.Selector
	defaults model.ExamSettings
	now      func() time.Time
	newID    func() string
}

// New creates a Service.
func New(docs ledger.DocumentStore, cfg Config) *Service {
	if cfg.PassThreshold <= 0 {
		cfg.PassThreshold = DefaultPassThreshold
	}
	return &Service{
		docs:     docs,
		history:  ledger.NewHistory(docs),
		cache:    ledger.NewPerformanceCache(docs),
		selector: adaptive.NewSelector(cfg.Rand),
		defaults: model.ExamSettings{PassThreshold: cfg.PassThreshold},
		now:      time.Now,
		newID:    func() string { return uuid.NewString() },
	}
}

// Report is a performance index with its summary.
type Report struct {
	Index     model.PerformanceIndex      `json:"-"`
	Questions []model.QuestionPerformance `json:"questions"`
	Summary   model.PerformanceSummary    `json:"summary"`
	Cached    bool                        `json:"cached"`
}

func newReport(idx model.PerformanceIndex, cached bool) Report {
	return Report{
		Index:     idx,
		Questions: performance.Sorted(idx),
		Summary:   performance.Summarize(idx),
		Cached:    cached,
	}
}

// Plan is an adaptive re-study exam.
type Plan struct {
	Exam      model.ExamDefinition    `json:"exam"`
	Selection model.AdaptiveSelection `json:"selection"`
}

// Load reads and parses a quiz.
func (s *Service) Load(ctx context.Context, quizPath string) (model.ExamDefinition, error) {
	text, err := s.docs.Read(ctx, quizPath)
	if err != nil {
		return model.ExamDefinition{}, fmt.Errorf("read quiz %s: %w", quizPath, err)
	}
	def := quizmark.Parse(text, quizPath)
	if len(def.AllQuestions()) == 0 {
		return def, fmt.Errorf("parse quiz %s: %w", quizPath, ErrNoQuestions)
	}
	for _, q := range def.AllQuestions() {
		if len(q.Issues) > 0 {
			slog.Debug("question has issues", "quiz", quizPath, "question", q.ID, "order", q.Order, "issue", q.Issues[0])
		}
	}
	return def, nil
}

// Settings returns the quiz settings with service defaults applied.
func (s *Service) Settings(def model.ExamDefinition) model.ExamSettings {
	return def.Config.Effective(s.defaults)
}

// attemptInput distinguishes absent fields from zero values.
type attemptInput struct {
	model.ExamResult
	Percentage *float64 `json:"percentage"`
	Pass       *bool    `json:"pass"`
}

// Record validates and stores a scored attempt, then refreshes the
// performance cache. Missing session id, timestamp, percentage and pass
// flag are filled in.
func (s *Service) Record(ctx context.Context, quizPath string, raw []byte) (model.ExamResult, error) {
	def, err := s.Load(ctx, quizPath)
	if err != nil {
		return model.ExamResult{}, err
	}
	if err := validateAttempt(raw); err != nil {
		return model.ExamResult{}, err
	}
	var in attemptInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return model.ExamResult{}, fmt.Errorf("%w: %v", ErrInvalidResult, err)
	}

	r := in.ExamResult
	if r.SessionID == "" {
		r.SessionID = s.newID()
	}
	if r.Timestamp == 0 {
		r.Timestamp = s.now().UnixMilli()
	}
	switch {
	case in.Percentage != nil:
		r.Percentage = *in.Percentage
	case r.MaxScore > 0:
		r.Percentage = r.TotalScore / r.MaxScore * 100
	}
	if in.Pass != nil {
		r.Pass = *in.Pass
	} else {
		r.Pass = r.Percentage/100 >= s.Settings(def).PassThreshold
	}

	known := make(map[string]bool, len(def.AllQuestions()))
	for _, q := range def.AllQuestions() {
		known[q.ID] = true
	}
	for _, qr := range r.QuestionResults {
		if !known[qr.QuestionID] {
			slog.Warn("attempt references unknown question", "quiz", quizPath, "question", qr.QuestionID)
		}
	}

	if err := s.history.Append(ctx, quizPath, r); err != nil {
		return model.ExamResult{}, fmt.Errorf("record attempt: %w", err)
	}
	slog.Info("recorded attempt", "quiz", quizPath, "session", r.SessionID, "percentage", r.Percentage, "pass", r.Pass)

	if _, err := s.rebuild(ctx, quizPath, def); err != nil {
		return r, err
	}
	return r, nil
}

// Performance rebuilds the index from the full history and caches it.
func (s *Service) Performance(ctx context.Context, quizPath string) (Report, error) {
	def, err := s.Load(ctx, quizPath)
	if err != nil {
		return Report{}, err
	}
	idx, err := s.rebuild(ctx, quizPath, def)
	if err != nil {
		return Report{}, err
	}
	return newReport(idx, false), nil
}

// Cached returns the cached index, rebuilding it when the cache is missing.
func (s *Service) Cached(ctx context.Context, quizPath string) (Report, error) {
	idx, ok, err := s.cache.Read(ctx, quizPath)
	if err != nil {
		return Report{}, fmt.Errorf("read performance cache: %w", err)
	}
	if !ok {
		slog.Debug("performance cache missing, rebuilding", "quiz", quizPath)
		return s.Performance(ctx, quizPath)
	}
	return newReport(idx, true), nil
}

func (s *Service) rebuild(ctx context.Context, quizPath string, def model.ExamDefinition) (model.PerformanceIndex, error) {
	attempts, err := s.history.List(ctx, quizPath)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	idx := performance.Build(def.AllQuestions(), attempts)
	if err := s.cache.Write(ctx, quizPath, idx); err != nil {
		return nil, fmt.Errorf("cache performance: %w", err)
	}
	return idx, nil
}

// Adaptive builds a re-study exam from the cached performance index. The
// returned exam keeps the unrestricted question set in FullQuestions.
func (s *Service) Adaptive(ctx context.Context, quizPath string, ratio float64) (Plan, error) {
	def, err := s.Load(ctx, quizPath)
	if err != nil {
		return Plan{}, err
	}
	rep, err := s.Cached(ctx, quizPath)
	if err != nil {
		return Plan{}, err
	}
	all := def.AllQuestions()
	sel, err := s.selector.Select(all, rep.Index, ratio)
	if err != nil {
		return Plan{}, fmt.Errorf("select questions: %w", err)
	}

	exam := def
	exam.Questions = sel.Questions
	exam.FullQuestions = all
	return Plan{Exam: exam, Selection: sel}, nil
}

// History lists recorded attempts, newest first.
func (s *Service) History(ctx context.Context, quizPath string) ([]model.ExamResult, error) {
	return s.history.List(ctx, quizPath)
}

// Remove deletes an attempt and refreshes the performance cache.
func (s *Service) Remove(ctx context.Context, quizPath, sessionID string) (bool, error) {
	removed, err := s.history.Remove(ctx, quizPath, sessionID)
	if err != nil || !removed {
		return removed, err
	}
	slog.Info("removed attempt", "quiz", quizPath, "session", sessionID)

	def, err := s.Load(ctx, quizPath)
	if err != nil {
		slog.Warn("quiz unavailable, performance cache left stale", "quiz", quizPath, "error", err)
		return true, nil
	}
	if _, err := s.rebuild(ctx, quizPath, def); err != nil {
		return true, err
	}
	return true, nil
}

// Export collects a quiz's attempts and per-question performance.
func (s *Service) Export(ctx context.Context, quizPath string) (model.HistoryExport, error) {
	def, err := s.Load(ctx, quizPath)
	if err != nil {
		return model.HistoryExport{}, err
	}
	attempts, err := s.history.List(ctx, quizPath)
	if err != nil {
		return model.HistoryExport{}, fmt.Errorf("list history: %w", err)
	}
	idx := performance.Build(def.AllQuestions(), attempts)

	stats := make([]model.QuestionStats, 0, len(idx))
	for _, q := range def.AllQuestions() {
		stats = append(stats, model.QuestionStats{Text: q.Text, Kind: q.Kind, Performance: idx[q.ID]})
	}
	if attempts == nil {
		attempts = []model.ExamResult{}
	}
	return model.HistoryExport{
		QuizPath:    quizPath,
		Title:       def.Title,
		ExportedAt:  s.now().UTC(),
		NumAttempts: len(attempts),
		Attempts:    attempts,
		Performance: stats,
		Summary:     performance.Summarize(idx),
	}, nil
}
