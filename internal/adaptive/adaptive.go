// Package adaptive builds re-study sessions weighted toward questions that
// are not yet mastered.
package adaptive

import (
	"cmp"
	"errors"
	"math"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/pavelanni/flashexam/internal/model"
)

const (
	// DefaultRatio is the default share of improvable questions in a session.
	DefaultRatio = 0.7
	// MinQuestions is the smallest session the selector tops up to with mastered questions.
	MinQuestions = 5

	// unseenSortRate places never-attempted questions between weak and comfortable ones.
	unseenSortRate = 0.5
)

// ErrInvalidRatio is returned when the ratio is outside (0, 1].
var ErrInvalidRatio = errors.New("adaptive ratio must be greater than 0 and at most 1")

// Selector picks adaptive question mixes.
type Selector struct {
	rng *rand.Rand
}

// NewSelector creates a Selector drawing randomness from src. A nil src
// seeds from the clock.
func NewSelector(src rand.Source) *Selector {
	if src == nil {
		src = rand.NewPCG(uint64(time.Now().UnixNano()), 0)
	}
	return &Selector{rng: rand.New(src)}
}

type candidate struct {
	q model.Question
	p model.QuestionPerformance
}

// Select returns improvable questions plus enough mastered ones to reach the
// requested ratio, shuffled. Questions absent from idx count as unseen.
func (s *Selector) Select(questions []model.Question, idx model.PerformanceIndex, ratio float64) (model.AdaptiveSelection, error) {
	if !(ratio > 0 && ratio <= 1) {
		return model.AdaptiveSelection{}, ErrInvalidRatio
	}
	if !idx.Attempted() {
		return model.AdaptiveSelection{NoHistory: true}, nil
	}

	var improvable, mastered []candidate
	for _, q := range questions {
		p, ok := idx[q.ID]
		if !ok {
			p = model.QuestionPerformance{QuestionID: q.ID, Order: q.Order, SuccessRate: model.NeverAttempted, Category: model.CategoryUnseen}
		}
		if p.Category == model.CategoryMastered {
			mastered = append(mastered, candidate{q, p})
		} else {
			improvable = append(improvable, candidate{q, p})
		}
	}
	if len(improvable) == 0 {
		return model.AdaptiveSelection{AllMastered: true}, nil
	}

	rankImprovable(improvable)
	picked := s.pickMastered(mastered, masteredCount(len(improvable), len(mastered), ratio))

	selected := make([]model.Question, 0, len(improvable)+len(picked))
	for _, c := range improvable {
		selected = append(selected, c.q)
	}
	for _, c := range picked {
		selected = append(selected, c.q)
	}
	s.rng.Shuffle(len(selected), func(i, j int) {
		selected[i], selected[j] = selected[j], selected[i]
	})

	return model.AdaptiveSelection{
		Questions:       selected,
		ImprovableCount: len(improvable),
		MasteredCount:   len(picked),
	}, nil
}

// masteredCount is ceil(improvable*(1-ratio)/ratio), capped at what is
// available and raised toward MinQuestions.
func masteredCount(improvable, available int, ratio float64) int {
	// Compare before converting: a tiny ratio overflows int.
	n := available
	if f := math.Ceil(float64(improvable) * (1 - ratio) / ratio); f < float64(available) {
		n = int(f)
	}
	if improvable+n < MinQuestions {
		n = min(available, MinQuestions-improvable)
	}
	return max(n, 0)
}

// rankImprovable orders by success rate, weakest first, then by oldest last attempt.
func rankImprovable(cs []candidate) {
	slices.SortStableFunc(cs, func(a, b candidate) int {
		return cmp.Or(
			cmp.Compare(sortRate(a.p), sortRate(b.p)),
			cmp.Compare(a.p.LastAttemptAt, b.p.LastAttemptAt),
		)
	})
}

func sortRate(p model.QuestionPerformance) float64 {
	if p.SuccessRate == model.NeverAttempted {
		return unseenSortRate
	}
	return p.SuccessRate
}

// pickMastered returns the n mastered questions with the shortest streaks.
// Equal streaks are ordered randomly.
func (s *Selector) pickMastered(cs []candidate, n int) []candidate {
	pool := slices.Clone(cs)
	s.rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	slices.SortStableFunc(pool, func(a, b candidate) int {
		return cmp.Compare(a.p.Streak, b.p.Streak)
	})
	return pool[:n]
}
