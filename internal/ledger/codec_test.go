package ledger

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"github.com/pavelanni/flashexam/internal/model"
)

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }

func sampleResult() model.ExamResult {
	return model.ExamResult{
		SessionID:       "a1b2c3d4-0000-4000-8000-000000000001",
		Timestamp:       1772361000000,
		TotalScore:      4,
		MaxScore:        6,
		Percentage:      66.66666,
		Pass:            false,
		DurationSeconds: 125.44,
		QuestionResults: []model.QuestionResult{
			{QuestionID: "q1", Correct: true, Score: 1, Answer: model.AnswerState{Status: model.StatusAnswered, SelectedIndex: intPtr(1)}},
			{QuestionID: "q2", Correct: false, Score: 0, Answer: model.AnswerState{Status: model.StatusAnswered, SelectedIndices: []int{0, 2}, Marked: true}},
			{QuestionID: "q3", Correct: true, Score: 1, Answer: model.AnswerState{Status: model.StatusAnswered, BooleanSelection: boolPtr(false)}},
			{QuestionID: "q4", Correct: true, Score: 1, Answer: model.AnswerState{Status: model.StatusAnswered, TextInputs: []string{"dog"}}},
			{QuestionID: "q5", Correct: true, Score: 1, Answer: model.AnswerState{Status: model.StatusAnswered, MatchedPairs: []model.MatchPair{{Left: 0, Right: 1}, {Left: 1, Right: 0}}}},
			{QuestionID: "q6", Correct: false, Score: 0, Answer: model.AnswerState{Status: model.StatusUnanswered}},
		},
	}
}

func TestCompressRoundTrip(t *testing.T) {
	in := sampleResult()
	got := Decompress(Compress(in))

	want := in
	want.Percentage = 66.7
	want.DurationSeconds = 125.4
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestCompressRoundTripThroughJSON(t *testing.T) {
	in := sampleResult()
	data, err := json.Marshal(Compress(in))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var c CompactResult
	if err := json.Unmarshal(data, &c); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	got := Decompress(c)
	if got.Percentage != 66.7 || got.DurationSeconds != 125.4 {
		t.Errorf("expected rounded pct/dur 66.7/125.4, got %v/%v", got.Percentage, got.DurationSeconds)
	}
	if len(got.QuestionResults) != 6 {
		t.Fatalf("expected 6 results, got %d", len(got.QuestionResults))
	}
	if idx := got.QuestionResults[0].Answer.SelectedIndex; idx == nil || *idx != 1 {
		t.Errorf("expected selected index 1, got %v", idx)
	}
	if v := got.QuestionResults[2].Answer.BooleanSelection; v == nil || *v {
		t.Errorf("expected boolean selection false, got %v", v)
	}
	if !reflect.DeepEqual(got.QuestionResults[4].Answer.MatchedPairs, in.QuestionResults[4].Answer.MatchedPairs) {
		t.Errorf("matched pairs mismatch: %+v", got.QuestionResults[4].Answer.MatchedPairs)
	}
	if got.QuestionResults[5].Answer.Status != model.StatusUnanswered {
		t.Errorf("expected UNANSWERED, got %q", got.QuestionResults[5].Answer.Status)
	}
}

func TestCompressOmitsUnsetAnswerFields(t *testing.T) {
	r := model.ExamResult{
		SessionID: "s1",
		QuestionResults: []model.QuestionResult{
			{QuestionID: "q1", Correct: true, Score: 1, Answer: model.AnswerState{Status: model.StatusAnswered, SelectedIndex: intPtr(0)}},
		},
	}
	data, err := json.Marshal(Compress(r))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	s := string(data)

	for _, key := range []string{`"id":`, `"ts":`, `"sc":`, `"mSc":`, `"pct":`, `"p":`, `"dur":`, `"res":`, `"q":`, `"ok":`, `"s":`, `"st":`, `"idx":0`} {
		if !strings.Contains(s, key) {
			t.Errorf("expected %s in %s", key, s)
		}
	}
	for _, key := range []string{`"idxs"`, `"val"`, `"txt"`, `"pts"`, `"m":`} {
		if strings.Contains(s, key) {
			t.Errorf("unexpected %s in %s", key, s)
		}
	}
}

func TestCompressKeepsEmptyLists(t *testing.T) {
	r := model.ExamResult{
		SessionID: "s1",
		QuestionResults: []model.QuestionResult{
			{QuestionID: "q1", Answer: model.AnswerState{
				Status:          model.StatusAnswered,
				SelectedIndices: []int{},
				TextInputs:      []string{},
				MatchedPairs:    []model.MatchPair{},
			}},
		},
	}
	data, err := json.Marshal(Compress(r))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for _, key := range []string{`"idxs":[]`, `"txt":[]`, `"pts":[]`} {
		if !strings.Contains(string(data), key) {
			t.Errorf("expected %s in %s", key, data)
		}
	}

	var c CompactResult
	if err := json.Unmarshal(data, &c); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	a := Decompress(c).QuestionResults[0].Answer
	if a.SelectedIndices == nil || a.TextInputs == nil || a.MatchedPairs == nil {
		t.Errorf("expected empty lists to stay non-nil, got %+v", a)
	}
	if len(a.SelectedIndices)+len(a.TextInputs)+len(a.MatchedPairs) != 0 {
		t.Errorf("expected empty lists, got %+v", a)
	}
}
