package ledger

import (
	"math"

	"github.com/pavelanni/flashexam/internal/model"
)

// CompactResult is the size-reduced form of an attempt stored in the history document.
type CompactResult struct {
	ID         string          `json:"id"`
	Timestamp  int64           `json:"ts"`
	Score      float64         `json:"sc"`
	MaxScore   float64         `json:"mSc"`
	Percentage float64         `json:"pct"`
	Pass       bool            `json:"p"`
	Duration   float64         `json:"dur"`
	Results    []CompactAnswer `json:"res"`
}

// CompactAnswer is one per-question result. Answer fields that were not
// populated are omitted; empty but present lists are kept.
type CompactAnswer struct {
	QuestionID string             `json:"q"`
	Correct    bool               `json:"ok"`
	Score      float64            `json:"s"`
	Status     model.AnswerStatus `json:"st"`
	Index      *int               `json:"idx,omitempty"`
	Indices    []int              `json:"idxs,omitzero"`
	Value      *bool              `json:"val,omitempty"`
	Text       []string           `json:"txt,omitzero"`
	Pairs      []CompactPair      `json:"pts,omitzero"`
	Marked     bool               `json:"m,omitempty"`
}

// CompactPair is a matched left/right pair.
type CompactPair struct {
	L int `json:"l"`
	R int `json:"r"`
}

// Compress renames and trims an attempt for storage. Percentage and duration
// are rounded to one decimal.
func Compress(r model.ExamResult) CompactResult {
	c := CompactResult{
		ID:         r.SessionID,
		Timestamp:  r.Timestamp,
		Score:      r.TotalScore,
		MaxScore:   r.MaxScore,
		Percentage: round1(r.Percentage),
		Pass:       r.Pass,
		Duration:   round1(r.DurationSeconds),
		Results:    make([]CompactAnswer, 0, len(r.QuestionResults)),
	}
	for _, qr := range r.QuestionResults {
		a := qr.Answer
		entry := CompactAnswer{
			QuestionID: qr.QuestionID,
			Correct:    qr.Correct,
			Score:      qr.Score,
			Status:     a.Status,
			Index:      a.SelectedIndex,
			Indices:    a.SelectedIndices,
			Value:      a.BooleanSelection,
			Text:       a.TextInputs,
			Marked:     a.Marked,
		}
		if a.MatchedPairs != nil {
			entry.Pairs = make([]CompactPair, 0, len(a.MatchedPairs))
		}
		for _, p := range a.MatchedPairs {
			entry.Pairs = append(entry.Pairs, CompactPair{L: p.Left, R: p.Right})
		}
		c.Results = append(c.Results, entry)
	}
	return c
}

// Decompress is the inverse of Compress.
func Decompress(c CompactResult) model.ExamResult {
	r := model.ExamResult{
		SessionID:       c.ID,
		Timestamp:       c.Timestamp,
		TotalScore:      c.Score,
		MaxScore:        c.MaxScore,
		Percentage:      c.Percentage,
		Pass:            c.Pass,
		DurationSeconds: c.Duration,
		QuestionResults: make([]model.QuestionResult, 0, len(c.Results)),
	}
	for _, e := range c.Results {
		a := model.AnswerState{
			Status:           e.Status,
			SelectedIndex:    e.Index,
			SelectedIndices:  e.Indices,
			BooleanSelection: e.Value,
			TextInputs:       e.Text,
			Marked:           e.Marked,
		}
		if e.Pairs != nil {
			a.MatchedPairs = make([]model.MatchPair, 0, len(e.Pairs))
		}
		for _, p := range e.Pairs {
			a.MatchedPairs = append(a.MatchedPairs, model.MatchPair{Left: p.L, Right: p.R})
		}
		r.QuestionResults = append(r.QuestionResults, model.QuestionResult{
			QuestionID: e.QuestionID,
			Correct:    e.Correct,
			Score:      e.Score,
			Answer:     a,
		})
	}
	return r
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
