package quizmark

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/pavelanni/flashexam/internal/model"
)

var (
	frontmatterRe = regexp.MustCompile(`^---\n([\s\S]*?)\n---`)
	titleRe       = regexp.MustCompile(`quiz-title:[ \t]*(.*)`)
	timeLimitRe   = regexp.MustCompile(`time-limit:[ \t]*(\d+)`)
	passScoreRe   = regexp.MustCompile(`pass-score:[ \t]*(\d+)`)
	shuffleRe     = regexp.MustCompile(`shuffle:[ \t]*(true|false)`)
	showAnswerRe  = regexp.MustCompile(`show-answer:[ \t]*(true|false)`)
	examRangeRe   = regexp.MustCompile(`exam-range:[ \t]*(.*)`)
)

type frontmatter struct {
	title  string
	config model.ExamConfig
}

// parseFrontmatter scans a leading ---delimited block for the known quiz keys.
// It is not a YAML parser: each key is matched on its own.
func parseFrontmatter(content string) frontmatter {
	var fm frontmatter
	m := frontmatterRe.FindStringSubmatch(content)
	if m == nil {
		return fm
	}
	block := m[1]

	if v := titleRe.FindStringSubmatch(block); v != nil {
		fm.title = strings.TrimSpace(strings.NewReplacer(`'`, "", `"`, "").Replace(v[1]))
	}
	if v := timeLimitRe.FindStringSubmatch(block); v != nil {
		if n, err := strconv.Atoi(v[1]); err == nil {
			fm.config.TimeLimitMinutes = &n
		}
	}
	if v := passScoreRe.FindStringSubmatch(block); v != nil {
		if n, err := strconv.Atoi(v[1]); err == nil {
			frac := float64(n) / 100
			fm.config.PassThreshold = &frac
		}
	}
	if v := shuffleRe.FindStringSubmatch(block); v != nil {
		b := v[1] == "true"
		fm.config.Shuffle = &b
	}
	if v := showAnswerRe.FindStringSubmatch(block); v != nil {
		b := v[1] == "true"
		fm.config.ShowAnswer = &b
	}
	if v := examRangeRe.FindStringSubmatch(block); v != nil {
		fm.config.Range = strings.Trim(strings.TrimSpace(v[1]), `'"`)
	}
	return fm
}
