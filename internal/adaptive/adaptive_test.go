package adaptive

import (
	"fmt"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/flashexam/internal/model"
)

func newTestSelector() *Selector {
	return NewSelector(rand.NewPCG(1, 2))
}

// fixture builds questions named prefix0..prefixN-1 with the given performance.
func fixture(idx model.PerformanceIndex, prefix string, n int, perf func(i int) model.QuestionPerformance) []model.Question {
	qs := make([]model.Question, n)
	for i := range n {
		id := fmt.Sprintf("%s%d", prefix, i)
		qs[i] = model.Question{ID: id, Kind: model.KindTrueFalse, Text: id}
		p := perf(i)
		p.QuestionID = id
		idx[id] = p
	}
	return qs
}

func masteredPerf(streak int) func(int) model.QuestionPerformance {
	return func(i int) model.QuestionPerformance {
		return model.QuestionPerformance{TotalAttempts: streak + i, CorrectCount: streak + i, SuccessRate: 1, Streak: streak + i, Category: model.CategoryMastered}
	}
}

func strugglingPerf(int) model.QuestionPerformance {
	return model.QuestionPerformance{TotalAttempts: 4, CorrectCount: 1, SuccessRate: 0.25, Category: model.CategoryStruggling}
}

func ids(qs []model.Question) []string {
	out := make([]string, len(qs))
	for i, q := range qs {
		out[i] = q.ID
	}
	return out
}

func TestSelectNoHistory(t *testing.T) {
	idx := model.PerformanceIndex{}
	qs := fixture(idx, "u", 6, func(int) model.QuestionPerformance {
		return model.QuestionPerformance{SuccessRate: model.NeverAttempted, Category: model.CategoryUnseen}
	})

	sel, err := newTestSelector().Select(qs, idx, DefaultRatio)
	require.NoError(t, err)
	assert.True(t, sel.NoHistory)
	assert.Empty(t, sel.Questions)
}

func TestSelectAllMastered(t *testing.T) {
	idx := model.PerformanceIndex{}
	qs := fixture(idx, "m", 4, masteredPerf(3))

	sel, err := newTestSelector().Select(qs, idx, DefaultRatio)
	require.NoError(t, err)
	assert.True(t, sel.AllMastered)
	assert.False(t, sel.NoHistory)
	assert.Empty(t, sel.Questions)
}

func TestSelectRatio(t *testing.T) {
	idx := model.PerformanceIndex{}
	weak := fixture(idx, "w", 3, strugglingPerf)
	strong := fixture(idx, "m", 10, masteredPerf(3))

	sel, err := newTestSelector().Select(append(weak, strong...), idx, 0.5)
	require.NoError(t, err)

	assert.Equal(t, 3, sel.ImprovableCount)
	assert.Equal(t, 3, sel.MasteredCount)
	assert.ElementsMatch(t, []string{"w0", "w1", "w2", "m0", "m1", "m2"}, ids(sel.Questions))
}

func TestSelectTopsUpToMinimum(t *testing.T) {
	idx := model.PerformanceIndex{}
	weak := fixture(idx, "w", 1, strugglingPerf)
	strong := fixture(idx, "m", 10, masteredPerf(3))

	sel, err := newTestSelector().Select(append(weak, strong...), idx, 1)
	require.NoError(t, err)

	assert.Len(t, sel.Questions, MinQuestions)
	assert.Equal(t, 1, sel.ImprovableCount)
	assert.Equal(t, 4, sel.MasteredCount)
	assert.ElementsMatch(t, []string{"w0", "m0", "m1", "m2", "m3"}, ids(sel.Questions))
}

func TestSelectTinyRatioTakesEveryMastered(t *testing.T) {
	idx := model.PerformanceIndex{}
	weak := fixture(idx, "w", 10, strugglingPerf)
	strong := fixture(idx, "m", 3, masteredPerf(3))

	var sel model.AdaptiveSelection
	var err error
	require.NotPanics(t, func() {
		sel, err = newTestSelector().Select(append(weak, strong...), idx, 1e-20)
	})
	require.NoError(t, err)
	assert.Equal(t, 10, sel.ImprovableCount)
	assert.Equal(t, 3, sel.MasteredCount)
	assert.Len(t, sel.Questions, 13)
}

func TestSelectMinimumCappedByAvailability(t *testing.T) {
	idx := model.PerformanceIndex{}
	weak := fixture(idx, "w", 1, strugglingPerf)
	strong := fixture(idx, "m", 2, masteredPerf(3))

	sel, err := newTestSelector().Select(append(weak, strong...), idx, DefaultRatio)
	require.NoError(t, err)
	assert.Len(t, sel.Questions, 3)
	assert.Equal(t, 2, sel.MasteredCount)
}

func TestSelectNoDuplicates(t *testing.T) {
	idx := model.PerformanceIndex{}
	weak := fixture(idx, "w", 7, strugglingPerf)
	strong := fixture(idx, "m", 20, masteredPerf(3))
	all := append(weak, strong...)

	s := newTestSelector()
	for _, ratio := range []float64{0.1, 0.3, 0.5, DefaultRatio, 1} {
		sel, err := s.Select(all, idx, ratio)
		require.NoError(t, err)

		seen := map[string]bool{}
		for _, q := range sel.Questions {
			assert.False(t, seen[q.ID], "duplicate %s at ratio %v", q.ID, ratio)
			seen[q.ID] = true
		}
		assert.GreaterOrEqual(t, len(sel.Questions), MinQuestions)
		assert.Equal(t, sel.ImprovableCount+sel.MasteredCount, len(sel.Questions))
	}
}

func TestSelectUnindexedQuestionsAreImprovable(t *testing.T) {
	idx := model.PerformanceIndex{}
	strong := fixture(idx, "m", 5, masteredPerf(3))
	fresh := model.Question{ID: "new", Kind: model.KindShortAnswer, Text: "new question"}

	sel, err := newTestSelector().Select(append(strong, fresh), idx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, sel.ImprovableCount)
	assert.Contains(t, ids(sel.Questions), "new")
}

func TestSelectInvalidRatio(t *testing.T) {
	for _, r := range []float64{0, -0.5, 1.01, math.NaN()} {
		_, err := newTestSelector().Select(nil, nil, r)
		assert.ErrorIs(t, err, ErrInvalidRatio, "ratio %v", r)
	}
}

func TestRankImprovable(t *testing.T) {
	cs := []candidate{
		{p: model.QuestionPerformance{QuestionID: "improving", SuccessRate: 0.75, LastAttemptAt: 1}},
		{p: model.QuestionPerformance{QuestionID: "unseen", SuccessRate: model.NeverAttempted}},
		{p: model.QuestionPerformance{QuestionID: "half-recent", SuccessRate: 0.5, LastAttemptAt: 50}},
		{p: model.QuestionPerformance{QuestionID: "failed", SuccessRate: 0, LastAttemptAt: 10}},
		{p: model.QuestionPerformance{QuestionID: "struggling", SuccessRate: 0.25, LastAttemptAt: 5}},
	}
	rankImprovable(cs)

	var got []string
	for _, c := range cs {
		got = append(got, c.p.QuestionID)
	}
	assert.Equal(t, []string{"failed", "struggling", "unseen", "half-recent", "improving"}, got)
}

func TestMasteredCount(t *testing.T) {
	tests := []struct {
		improvable, available int
		ratio                 float64
		want                  int
	}{
		{3, 10, 0.5, 3},
		{4, 10, 0.8, 1},
		{10, 2, 0.5, 2},
		{1, 10, 1, 4},
		{1, 2, 1, 2},
		{6, 0, 0.5, 0},
		{10, 3, 1e-20, 3},
		{2, 3, math.SmallestNonzeroFloat64, 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, masteredCount(tt.improvable, tt.available, tt.ratio), "%+v", tt)
	}
}
