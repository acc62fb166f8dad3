// Package quizmark parses plain-text quiz markup into exam definitions.
//
// The grammar is line oriented:
//
//	@mc What is 2+2?
//	a) 3
//	b) 4
//	=b
//
// Anything that does not match a recognized pattern continues the text of the
// current question. Malformed questions are kept with an advisory issue.
package quizmark

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pavelanni/flashexam/internal/model"
)

// DefaultTitle is used when the frontmatter has no quiz-title.
const DefaultTitle = "Untitled Exam"

const maxOptions = 26

var (
	headerRe = regexp.MustCompile(`^@(\w+)\s+(?:\d+[).]\s*)?(.*)`)
	optionRe = regexp.MustCompile(`^(\S+)([).])\s+(.*)`)
	pairRe   = regexp.MustCompile(`^(.+?)\s*\|\s*(.+)$`)
	blankRe  = regexp.MustCompile("`_+`")
)

var kinds = map[string]model.QuestionKind{
	"mc":    model.KindMultipleChoice,
	"sata":  model.KindSelectAll,
	"tf":    model.KindTrueFalse,
	"fib":   model.KindFillInBlank,
	"match": model.KindMatching,
	"sa":    model.KindShortAnswer,
	"la":    model.KindLongAnswer,
}

type rawPair struct {
	left, right string
}

// draft accumulates one question while its lines are read.
type draft struct {
	q      model.Question
	labels []string // option labels including their separator, e.g. "a)"
	keys   []string // lowercased answer-key labels awaiting resolution
	pairs  []rawPair
}

// Parse turns quiz markup into an ExamDefinition. It never fails: problems are
// attached to the affected question as issues and unparseable questions are dropped.
func Parse(content, sourcePath string) model.ExamDefinition {
	fm := parseFrontmatter(content)

	var (
		questions []model.Question
		cur       draft
		open      bool
	)
	for i, raw := range strings.Split(content, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "---") || strings.HasPrefix(line, "#") {
			continue
		}

		if m := headerRe.FindStringSubmatch(line); m != nil {
			if open {
				questions = appendFinished(questions, cur)
			}
			cur, open = startDraft(m[1], m[2], i)
			continue
		}
		if !open {
			continue
		}

		if strings.HasPrefix(line, "=") {
			cur = cur.withAnswer(strings.TrimSpace(line[1:]))
			continue
		}
		cur = cur.withContent(line)
	}
	if open {
		questions = appendFinished(questions, cur)
	}

	for i := range questions {
		questions[i].Order = i + 1
	}

	def := model.ExamDefinition{
		Title:      fm.title,
		SourcePath: sourcePath,
		Questions:  questions,
		Config:     fm.config,
	}
	if def.Title == "" {
		def.Title = DefaultTitle
	}
	if fm.config.Range != "" {
		applyRange(&def)
	}
	return def
}

// startDraft opens a question for a header line. Unknown keywords open nothing.
func startDraft(keyword, text string, lineIndex int) (draft, bool) {
	kind, ok := kinds[strings.ToLower(keyword)]
	if !ok {
		return draft{}, false
	}
	return draft{q: model.Question{
		ID:   questionID(text, lineIndex),
		Kind: kind,
		Text: text,
	}}, true
}

func (d draft) withText(line string) draft {
	d.q.Text += "\n" + line
	return d
}

func (d draft) withContent(line string) draft {
	switch d.q.Kind {
	case model.KindMultipleChoice, model.KindSelectAll:
		if m := optionRe.FindStringSubmatch(line); m != nil {
			d.q.Options = append(d.q.Options, m[3])
			d.labels = append(d.labels, m[1]+m[2])
			return d
		}
		if len(d.q.Options) == 0 {
			return d.withText(line)
		}
		return d
	case model.KindMatching:
		if m := pairRe.FindStringSubmatch(line); m != nil {
			d.pairs = append(d.pairs, rawPair{
				left:  strings.TrimSpace(m[1]),
				right: strings.TrimSpace(m[2]),
			})
			return d
		}
		return d.withText(line)
	default:
		return d.withText(line)
	}
}

func (d draft) withAnswer(text string) draft {
	switch d.q.Kind {
	case model.KindMultipleChoice:
		d.keys = append(d.keys, strings.ToLower(text))
	case model.KindSelectAll:
		for _, k := range strings.Split(text, ",") {
			d.keys = append(d.keys, strings.ToLower(strings.TrimSpace(k)))
		}
	case model.KindTrueFalse:
		d.q.IsTrue = strings.EqualFold(text, "true")
	case model.KindFillInBlank:
		answers := strings.Split(text, ",")
		for i := range answers {
			answers[i] = strings.TrimSpace(answers[i])
		}
		d.q.AcceptedAnswers = answers
		d.q.Segments = blankRe.Split(d.q.Text, -1)
	case model.KindMatching:
		// Matching pairs are correct in the order they were written.
	case model.KindShortAnswer, model.KindLongAnswer:
		d.q.ReferenceAnswer = text
	}
	return d
}

func appendFinished(list []model.Question, d draft) []model.Question {
	if q, ok := d.finish(); ok {
		return append(list, q)
	}
	return list
}

// finish validates the draft and returns the finished question, or false if
// the draft should be dropped.
func (d draft) finish() (model.Question, bool) {
	q := d.q

	switch q.Kind {
	case model.KindMatching:
		if len(d.pairs) == 0 {
			return model.Question{}, false
		}
		q.LeftItems = make([]string, len(d.pairs))
		q.RightItems = make([]string, len(d.pairs))
		q.Pairs = make([]model.MatchPair, len(d.pairs))
		for i, p := range d.pairs {
			q.LeftItems[i] = p.left
			q.RightItems[i] = p.right
			q.Pairs[i] = model.MatchPair{Left: i, Right: i}
		}
	case model.KindMultipleChoice, model.KindSelectAll:
		resolveOptions(&q, d.labels, d.keys)
	}

	if q.ID == "" || q.Text == "" {
		return model.Question{}, false
	}
	return q, true
}

func resolveOptions(q *model.Question, labels, keys []string) {
	if len(labels) > maxOptions {
		addIssue(q, fmt.Sprintf("Question has more than %d options. Maximum allowed is %d (a-z).", maxOptions, maxOptions))
	}

	seen := make(map[string]bool, len(labels))
	index := make(map[string]int, len(labels))
	for i, l := range labels {
		raw := stripSeparator(l)
		if !isOptionLetter(raw) {
			addIssue(q, fmt.Sprintf("Invalid option label '%s'. Labels must be lowercase 'a' through 'z'.", raw))
		}
		key := strings.ToLower(raw)
		if seen[key] {
			addIssue(q, fmt.Sprintf("Duplicate option label '%s' found. Each option must have a unique label.", key))
		}
		seen[key] = true
		index[key] = i
	}
	q.OptionLabels = labels

	if q.Kind == model.KindMultipleChoice {
		var key string
		if len(keys) > 0 {
			key = keys[0]
		}
		idx, ok := index[key]
		if !ok {
			q.CorrectIndex = model.NoCorrectIndex
			if key == "" {
				addIssue(q, "No answer key given.")
			} else {
				addIssue(q, fmt.Sprintf("Correct answer label '%s' does not match any existing options.", key))
			}
			return
		}
		q.CorrectIndex = idx
		return
	}

	var indices []int
	for _, k := range keys {
		idx, ok := index[k]
		if !ok {
			addIssue(q, fmt.Sprintf("Correct answer label '%s' does not match any existing options.", k))
			continue
		}
		indices = append(indices, idx)
	}
	q.CorrectIndices = indices
}

func stripSeparator(label string) string {
	if strings.HasSuffix(label, ")") || strings.HasSuffix(label, ".") {
		return label[:len(label)-1]
	}
	return label
}

func isOptionLetter(s string) bool {
	return len(s) == 1 && s[0] >= 'a' && s[0] <= 'z'
}

// addIssue records msg unless the question already carries an issue.
func addIssue(q *model.Question, msg string) {
	if len(q.Issues) == 0 {
		q.Issues = append(q.Issues, msg)
	}
}
