package model

import "time"

// HistoryExport is the top-level JSON structure for attempt history export.
type HistoryExport struct {
	QuizPath    string             `json:"quiz_path"`
	Title       string             `json:"title"`
	ExportedAt  time.Time          `json:"exported_at"`
	NumAttempts int                `json:"num_attempts"`
	Attempts    []ExamResult       `json:"attempts"`
	Performance []QuestionStats    `json:"performance"`
	Summary     PerformanceSummary `json:"summary"`
}

// QuestionStats pairs a question's text with its aggregated performance for export.
type QuestionStats struct {
	Text        string              `json:"text"`
	Kind        QuestionKind        `json:"kind"`
	Performance QuestionPerformance `json:"performance"`
}
