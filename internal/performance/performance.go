// Package performance derives per-question mastery from recorded attempts.
package performance

import (
	"cmp"
	"math"
	"slices"

	"github.com/pavelanni/flashexam/internal/model"
)

// Build replays history oldest first over the given questions and classifies
// every record. Results for questions not in the set are ignored.
func Build(questions []model.Question, history []model.ExamResult) model.PerformanceIndex {
	idx := make(model.PerformanceIndex, len(questions))
	for _, q := range questions {
		idx[q.ID] = model.QuestionPerformance{
			QuestionID:  q.ID,
			Order:       q.Order,
			SuccessRate: model.NeverAttempted,
			Category:    model.CategoryUnseen,
		}
	}

	ordered := slices.Clone(history)
	slices.SortStableFunc(ordered, func(a, b model.ExamResult) int {
		return cmp.Compare(a.Timestamp, b.Timestamp)
	})

	for _, attempt := range ordered {
		for _, r := range attempt.QuestionResults {
			p, ok := idx[r.QuestionID]
			if !ok {
				continue
			}
			p.TotalAttempts++
			switch {
			case r.Correct:
				p.CorrectCount++
				p.Streak++
			case r.Answer.Status == model.StatusUnanswered:
				p.UnansweredCount++
				p.Streak = 0
			default:
				p.IncorrectCount++
				p.Streak = 0
			}
			p.LastAttemptCorrect = r.Correct
			p.LastAttemptAt = attempt.Timestamp
			p.SuccessRate = float64(p.CorrectCount) / float64(p.TotalAttempts)
			idx[r.QuestionID] = p
		}
	}

	for id, p := range idx {
		p.Category = Classify(p)
		idx[id] = p
	}
	return idx
}

// Classify applies the mastery rules in order; the first match wins.
func Classify(p model.QuestionPerformance) model.Category {
	switch {
	case p.TotalAttempts == 0:
		return model.CategoryUnseen
	case p.SuccessRate == 0:
		return model.CategoryFailed
	case p.Streak >= 3:
		return model.CategoryMastered
	case p.Streak >= 2 && p.SuccessRate >= 0.5:
		return model.CategoryMastered
	case p.SuccessRate >= 0.8 && p.TotalAttempts >= 2:
		return model.CategoryMastered
	case p.Streak >= 1 && p.SuccessRate >= 0.4:
		return model.CategoryImproving
	case p.SuccessRate >= 0.5:
		return model.CategoryImproving
	default:
		return model.CategoryStruggling
	}
}

// Summarize counts questions per category.
func Summarize(idx model.PerformanceIndex) model.PerformanceSummary {
	var s model.PerformanceSummary
	for _, p := range idx {
		switch p.Category {
		case model.CategoryMastered:
			s.Mastered++
		case model.CategoryImproving:
			s.Improving++
		case model.CategoryStruggling:
			s.Struggling++
		case model.CategoryFailed:
			s.Failed++
		default:
			s.Unseen++
		}
	}
	s.Total = len(idx)
	if s.Total > 0 {
		s.MasteryPercent = int(math.Round(float64(s.Mastered) / float64(s.Total) * 100))
	}
	return s
}

// Sorted returns the records ordered by question order.
func Sorted(idx model.PerformanceIndex) []model.QuestionPerformance {
	out := make([]model.QuestionPerformance, 0, len(idx))
	for _, p := range idx {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b model.QuestionPerformance) int {
		return cmp.Or(cmp.Compare(a.Order, b.Order), cmp.Compare(a.QuestionID, b.QuestionID))
	})
	return out
}
