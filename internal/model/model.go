package model

import (
	"errors"
	"time"
)

// ErrDocumentNotFound is returned by document stores when a named document does not exist.
var ErrDocumentNotFound = errors.New("document not found")

// QuestionKind identifies the question variant.
type QuestionKind string

const (
	KindMultipleChoice QuestionKind = "MC"
	KindSelectAll      QuestionKind = "SATA"
	KindTrueFalse      QuestionKind = "TF"
	KindMatching       QuestionKind = "MATCH"
	KindFillInBlank    QuestionKind = "FIB"
	KindShortAnswer    QuestionKind = "SA"
	KindLongAnswer     QuestionKind = "LA"
)

// NoCorrectIndex marks a multiple-choice question whose answer key did not resolve.
const NoCorrectIndex = -1

// MatchPair links a left item index to a right item index.
type MatchPair struct {
	Left  int `json:"left"`
	Right int `json:"right"`
}

// Question is a parsed quiz question. Only the fields of its Kind are populated.
type Question struct {
	ID    string       `json:"id"`
	Order int          `json:"order"`
	Kind  QuestionKind `json:"kind"`
	Text  string       `json:"text"`
	// Issues holds advisory validation messages. Only the first problem is recorded.
	Issues []string `json:"issues,omitempty"`

	// MC and SATA.
	Options        []string `json:"options,omitempty"`
	OptionLabels   []string `json:"option_labels,omitempty"`
	CorrectIndex   int      `json:"correct_index"`
	CorrectIndices []int    `json:"correct_indices,omitempty"`

	// TF.
	IsTrue bool `json:"is_true,omitempty"`

	// MATCH.
	LeftItems  []string    `json:"left_items,omitempty"`
	RightItems []string    `json:"right_items,omitempty"`
	Pairs      []MatchPair `json:"pairs,omitempty"`

	// FIB.
	Segments        []string `json:"segments,omitempty"`
	AcceptedAnswers []string `json:"accepted_answers,omitempty"`

	// SA and LA.
	ReferenceAnswer string `json:"reference_answer,omitempty"`
}

// ExamConfig holds the optional frontmatter settings of a quiz. Nil means the key was absent.
type ExamConfig struct {
	TimeLimitMinutes *int     `json:"time_limit_minutes,omitempty"`
	PassThreshold    *float64 `json:"pass_threshold,omitempty"` // 0-1 fraction
	Shuffle          *bool    `json:"shuffle,omitempty"`
	ShowAnswer       *bool    `json:"show_answer,omitempty"`
	Range            string   `json:"range,omitempty"`
	RangeErrors      []string `json:"range_errors,omitempty"`
}

// ExamSettings is an ExamConfig with every default applied.
type ExamSettings struct {
	TimeLimitMinutes int     `json:"time_limit_minutes"` // 0 means no limit
	PassThreshold    float64 `json:"pass_threshold"`
	Shuffle          bool    `json:"shuffle"`
	ShowAnswer       bool    `json:"show_answer"`
}

// Effective fills unset fields from defaults.
func (c ExamConfig) Effective(defaults ExamSettings) ExamSettings {
	s := defaults
	if c.TimeLimitMinutes != nil {
		s.TimeLimitMinutes = *c.TimeLimitMinutes
	}
	if c.PassThreshold != nil {
		s.PassThreshold = *c.PassThreshold
	}
	if c.Shuffle != nil {
		s.Shuffle = *c.Shuffle
	}
	if c.ShowAnswer != nil {
		s.ShowAnswer = *c.ShowAnswer
	}
	return s
}

// ExamDefinition is a parsed quiz.
type ExamDefinition struct {
	Title      string     `json:"title"`
	SourcePath string     `json:"source_path"`
	Questions  []Question `json:"questions"`
	Config     ExamConfig `json:"config"`
	// FullQuestions is set when Questions is a filtered or adaptive subset.
	FullQuestions []Question `json:"full_questions,omitempty"`
}

// AllQuestions returns the unrestricted question set.
func (d ExamDefinition) AllQuestions() []Question {
	if d.FullQuestions != nil {
		return d.FullQuestions
	}
	return d.Questions
}

// AnswerStatus is the recorded state of a user's answer.
type AnswerStatus string

const (
	StatusAnswered   AnswerStatus = "ANSWERED"
	StatusUnanswered AnswerStatus = "UNANSWERED"
)

// AnswerState is what the user entered for one question.
type AnswerState struct {
	Status           AnswerStatus `json:"status"`
	SelectedIndex    *int         `json:"selected_index,omitempty"`
	SelectedIndices  []int        `json:"selected_indices,omitzero"`
	BooleanSelection *bool        `json:"boolean_selection,omitempty"`
	TextInputs       []string     `json:"text_inputs,omitzero"`
	MatchedPairs     []MatchPair  `json:"matched_pairs,omitzero"`
	Marked           bool         `json:"marked,omitempty"`
}

// QuestionResult is the scored outcome for one question in an attempt.
type QuestionResult struct {
	QuestionID string      `json:"question_id"`
	Correct    bool        `json:"correct"`
	Score      float64     `json:"score"`
	Answer     AnswerState `json:"answer"`
}

// ExamResult is one recorded attempt. It is never edited once stored.
type ExamResult struct {
	SessionID       string           `json:"session_id"`
	Timestamp       int64            `json:"timestamp"` // Unix milliseconds
	TotalScore      float64          `json:"total_score"`
	MaxScore        float64          `json:"max_score"`
	Percentage      float64          `json:"percentage"`
	Pass            bool             `json:"pass"`
	DurationSeconds float64          `json:"duration_seconds"`
	QuestionResults []QuestionResult `json:"question_results"`
}

// Time returns the attempt timestamp as a time.Time.
func (r ExamResult) Time() time.Time {
	return time.UnixMilli(r.Timestamp)
}

// Category is the mastery classification of a question.
type Category string

const (
	CategoryUnseen     Category = "UNSEEN"
	CategoryFailed     Category = "FAILED"
	CategoryStruggling Category = "STRUGGLING"
	CategoryImproving  Category = "IMPROVING"
	CategoryMastered   Category = "MASTERED"
)

// NeverAttempted is the success rate of a question with no attempts.
const NeverAttempted = -1.0

// QuestionPerformance aggregates every recorded attempt at one question.
type QuestionPerformance struct {
	QuestionID         string   `json:"question_id"`
	Order              int      `json:"order"`
	TotalAttempts      int      `json:"total_attempts"`
	CorrectCount       int      `json:"correct_count"`
	IncorrectCount     int      `json:"incorrect_count"`
	UnansweredCount    int      `json:"unanswered_count"`
	SuccessRate        float64  `json:"success_rate"`
	LastAttemptCorrect bool     `json:"last_attempt_correct"`
	LastAttemptAt      int64    `json:"last_attempt_at"` // Unix milliseconds, 0 if never
	Streak             int      `json:"streak"`
	Category           Category `json:"category"`
}

// PerformanceIndex maps question IDs to their aggregated performance.
type PerformanceIndex map[string]QuestionPerformance

// Attempted reports whether any question in the index has been attempted.
func (idx PerformanceIndex) Attempted() bool {
	for _, p := range idx {
		if p.TotalAttempts > 0 {
			return true
		}
	}
	return false
}

// PerformanceSummary counts questions per category.
type PerformanceSummary struct {
	Mastered       int `json:"mastered"`
	Improving      int `json:"improving"`
	Struggling     int `json:"struggling"`
	Failed         int `json:"failed"`
	Unseen         int `json:"unseen"`
	Total          int `json:"total"`
	MasteryPercent int `json:"mastery_percent"`
}

// AdaptiveSelection is a re-study question mix.
type AdaptiveSelection struct {
	Questions       []Question `json:"questions"`
	ImprovableCount int        `json:"improvable_count"`
	MasteredCount   int        `json:"mastered_count"`
	AllMastered     bool       `json:"all_mastered"`
	NoHistory       bool       `json:"no_history"`
}
