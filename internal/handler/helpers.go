package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/pavelanni/flashexam/internal/adaptive"
	appI18n "github.com/pavelanni/flashexam/internal/i18n"
	"github.com/pavelanni/flashexam/internal/model"
	"github.com/pavelanni/flashexam/internal/study"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	switch {
	case errors.Is(err, model.ErrDocumentNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: appI18n.T(ctx, "QuizNotFound")})
	case errors.Is(err, study.ErrNoQuestions):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: appI18n.T(ctx, "NoQuestions")})
	case errors.Is(err, study.ErrInvalidResult), errors.Is(err, adaptive.ErrInvalidRatio):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "request failed"})
	}
}

// quizParam returns the required ?quiz= parameter, writing a 400 when absent.
func quizParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	quiz := strings.TrimSpace(r.URL.Query().Get("quiz"))
	if quiz == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "quiz parameter is required"})
		return "", false
	}
	return quiz, true
}

func parseBoolParam(r *http.Request, key string) bool {
	value := strings.ToLower(strings.TrimSpace(r.URL.Query().Get(key)))
	return value == "1" || value == "true" || value == "yes"
}

func parseRatioParam(r *http.Request, defaultValue float64) (float64, error) {
	value := strings.TrimSpace(r.URL.Query().Get("ratio"))
	if value == "" {
		return defaultValue, nil
	}
	ratio, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("ratio must be a number: %w", adaptive.ErrInvalidRatio)
	}
	return ratio, nil
}
