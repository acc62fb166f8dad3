package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pavelanni/flashexam/internal/model"
)

const performanceVersion = 1

type performanceBlock struct {
	Version   int                           `json:"version"`
	UpdatedAt int64                         `json:"updatedAt"`
	Questions map[string]compactPerformance `json:"questions"`
}

type compactPerformance struct {
	Order      int            `json:"o"`
	Total      int            `json:"t"`
	Correct    int            `json:"c"`
	Incorrect  int            `json:"i"`
	Unanswered int            `json:"u"`
	Rate       float64        `json:"sr"`
	LastOK     bool           `json:"lc"`
	LastAt     int64          `json:"lt"`
	Streak     int            `json:"st"`
	Category   model.Category `json:"cat"`
}

// PerformanceCache stores a derived performance index in the companion
// document. It can always be rebuilt from history.
type PerformanceCache struct {
	store DocumentStore
	now   func() time.Time
}

// NewPerformanceCache creates a PerformanceCache backed by store.
func NewPerformanceCache(store DocumentStore) *PerformanceCache {
	return &PerformanceCache{store: store, now: time.Now}
}

// Write replaces the cached block. It does nothing when the companion
// document does not exist yet.
func (c *PerformanceCache) Write(ctx context.Context, quizPath string, idx model.PerformanceIndex) error {
	name := CompanionName(quizPath)
	text, err := c.store.Read(ctx, name)
	if errors.Is(err, model.ErrDocumentNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read history: %w", err)
	}

	block := performanceBlock{
		Version:   performanceVersion,
		UpdatedAt: c.now().UnixMilli(),
		Questions: make(map[string]compactPerformance, len(idx)),
	}
	for id, p := range idx {
		block.Questions[id] = compactPerformance{
			Order:      p.Order,
			Total:      p.TotalAttempts,
			Correct:    p.CorrectCount,
			Incorrect:  p.IncorrectCount,
			Unanswered: p.UnansweredCount,
			Rate:       p.SuccessRate,
			LastOK:     p.LastAttemptCorrect,
			LastAt:     p.LastAttemptAt,
			Streak:     p.Streak,
			Category:   p.Category,
		}
	}
	data, err := json.Marshal(block)
	if err != nil {
		return fmt.Errorf("encode performance: %w", err)
	}

	doc := ParseDocument(text)
	doc.RemovePerformance()
	lines := []string{performanceHeading, "> " + PerformanceStart, "> ```json"}
	lines = append(lines, quote(string(data))...)
	lines = append(lines, "> ```", "> "+PerformanceEnd)
	doc.AppendPerformance(lines...)

	if err := c.store.Write(ctx, name, doc.String()); err != nil {
		return fmt.Errorf("write performance: %w", err)
	}
	return nil
}

// Read returns the cached index. ok is false when the document or block is
// missing or the payload does not parse.
func (c *PerformanceCache) Read(ctx context.Context, quizPath string) (idx model.PerformanceIndex, ok bool, err error) {
	name := CompanionName(quizPath)
	text, err := c.store.Read(ctx, name)
	if errors.Is(err, model.ErrDocumentNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read history: %w", err)
	}

	b, found := ParseDocument(text).Performance()
	if !found {
		return nil, false, nil
	}
	var block performanceBlock
	if err := json.Unmarshal([]byte(b.Payload), &block); err != nil {
		slog.Warn("ignoring unreadable performance cache", "document", name, "error", err)
		return nil, false, nil
	}

	idx = make(model.PerformanceIndex, len(block.Questions))
	for id, p := range block.Questions {
		idx[id] = model.QuestionPerformance{
			QuestionID:         id,
			Order:              p.Order,
			TotalAttempts:      p.Total,
			CorrectCount:       p.Correct,
			IncorrectCount:     p.Incorrect,
			UnansweredCount:    p.Unanswered,
			SuccessRate:        p.Rate,
			LastAttemptCorrect: p.LastOK,
			LastAttemptAt:      p.LastAt,
			Streak:             p.Streak,
			Category:           p.Category,
		}
	}
	return idx, true, nil
}
