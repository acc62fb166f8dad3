package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/flashexam/internal/adaptive"
	appI18n "github.com/pavelanni/flashexam/internal/i18n"
	"github.com/pavelanni/flashexam/internal/model"
	"github.com/pavelanni/flashexam/internal/study"
)

// defaultMaxBody caps the size of a posted attempt.
const defaultMaxBody = 1 << 20

// Config holds HTTP-facing settings.
type Config struct {
	AdaptiveRatio float64
	MaxBodyBytes  int64
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	study  *study.Service
	config Config
}

// New creates a new Handler.
func New(svc *study.Service, cfg Config) (*Handler, error) {
	if svc == nil {
		return nil, errors.New("study service is required")
	}
	if cfg.AdaptiveRatio == 0 {
		cfg.AdaptiveRatio = adaptive.DefaultRatio
	}
	if cfg.AdaptiveRatio < 0 || cfg.AdaptiveRatio > 1 {
		return nil, fmt.Errorf("adaptive ratio %v: %w", cfg.AdaptiveRatio, adaptive.ErrInvalidRatio)
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBody
	}
	return &Handler{study: svc, config: cfg}, nil
}

// Routes registers all HTTP routes. Every route takes ?quiz=<document name>.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/quiz", h.handleQuiz)
	r.Get("/history", h.handleHistory)
	r.Post("/history", h.handleRecord)
	r.Delete("/history/{sessionID}", h.handleRemove)
	r.Get("/performance", h.handlePerformance)
	r.Post("/adaptive", h.handleAdaptive)
	r.Get("/export", h.handleExport)
}

type quizResponse struct {
	Exam     model.ExamDefinition `json:"exam"`
	Settings model.ExamSettings   `json:"settings"`
	Notice   string               `json:"notice,omitempty"`
}

type historyResponse struct {
	Attempts []model.ExamResult `json:"attempts"`
}

type recordResponse struct {
	Attempt model.ExamResult `json:"attempt"`
	Message string           `json:"message"`
}

type adaptiveResponse struct {
	study.Plan
	Message string `json:"message"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (h *Handler) handleQuiz(w http.ResponseWriter, r *http.Request) {
	quiz, ok := quizParam(w, r)
	if !ok {
		return
	}
	def, err := h.study.Load(r.Context(), quiz)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	resp := quizResponse{Exam: def, Settings: h.study.Settings(def)}
	if len(def.Config.RangeErrors) > 0 {
		resp.Notice = appI18n.T(r.Context(), "RangeInvalid")
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	quiz, ok := quizParam(w, r)
	if !ok {
		return
	}
	attempts, err := h.study.History(r.Context(), quiz)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if attempts == nil {
		attempts = []model.ExamResult{}
	}
	writeJSON(w, http.StatusOK, historyResponse{Attempts: attempts})
}

func (h *Handler) handleRecord(w http.ResponseWriter, r *http.Request) {
	quiz, ok := quizParam(w, r)
	if !ok {
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.config.MaxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: err.Error()})
		return
	}
	res, err := h.study.Record(r.Context(), quiz, body)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	msg := appI18n.Td(r.Context(), "AttemptRecorded", map[string]any{
		"ID":         res.SessionID,
		"Percentage": strconv.FormatFloat(res.Percentage, 'f', 1, 64),
	})
	writeJSON(w, http.StatusCreated, recordResponse{Attempt: res, Message: msg})
}

func (h *Handler) handleRemove(w http.ResponseWriter, r *http.Request) {
	quiz, ok := quizParam(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "sessionID")
	removed, err := h.study.Remove(r.Context(), quiz, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if !removed {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: appI18n.Td(r.Context(), "AttemptNotFound", map[string]any{"ID": id})})
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: appI18n.Td(r.Context(), "AttemptRemoved", map[string]any{"ID": id})})
}

func (h *Handler) handlePerformance(w http.ResponseWriter, r *http.Request) {
	quiz, ok := quizParam(w, r)
	if !ok {
		return
	}
	var (
		rep study.Report
		err error
	)
	if parseBoolParam(r, "cached") {
		rep, err = h.study.Cached(r.Context(), quiz)
	} else {
		rep, err = h.study.Performance(r.Context(), quiz)
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (h *Handler) handleAdaptive(w http.ResponseWriter, r *http.Request) {
	quiz, ok := quizParam(w, r)
	if !ok {
		return
	}
	ratio, err := parseRatioParam(r, h.config.AdaptiveRatio)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	plan, err := h.study.Adaptive(r.Context(), quiz, ratio)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, adaptiveResponse{Plan: plan, Message: appI18n.AdaptiveMessage(r.Context(), plan.Selection)})
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	quiz, ok := quizParam(w, r)
	if !ok {
		return
	}
	exp, err := h.study.Export(r.Context(), quiz)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exportFilename(quiz)))
	writeJSON(w, http.StatusOK, exp)
}

func exportFilename(quiz string) string {
	base := quiz[strings.LastIndex(quiz, "/")+1:]
	return strings.TrimSuffix(base, ".md") + "-export.json"
}
