package quizmark

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/pavelanni/flashexam/internal/model"
)

var rangeRe = regexp.MustCompile(`^\s*(\d+)\s*(?:-\s*(\d+)\s*)?$`)

// applyRange restricts def.Questions to the 1-based inclusive exam-range and
// keeps the complete list in FullQuestions. An invalid range leaves the full
// list active and records why in Config.RangeErrors.
func applyRange(def *model.ExamDefinition) {
	all := def.Questions
	def.FullQuestions = all

	start, end, errs := parseRange(def.Config.Range, len(all))
	if len(errs) > 0 {
		def.Config.RangeErrors = errs
		return
	}
	def.Questions = append([]model.Question(nil), all[start-1:end]...)
}

func parseRange(s string, count int) (int, int, []string) {
	m := rangeRe.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, []string{fmt.Sprintf("Range %q is not in the form start-end.", s)}
	}
	start, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, 0, []string{fmt.Sprintf("Range start %q is not a number.", m[1])}
	}
	end := start
	if m[2] != "" {
		if end, err = strconv.Atoi(m[2]); err != nil {
			return 0, 0, []string{fmt.Sprintf("Range end %q is not a number.", m[2])}
		}
	}

	var errs []string
	if start < 1 {
		errs = append(errs, fmt.Sprintf("Start %d must be at least 1.", start))
	}
	if end > count {
		errs = append(errs, fmt.Sprintf("End %d exceeds the number of questions (%d).", end, count))
	}
	if start > end {
		errs = append(errs, fmt.Sprintf("Start %d is greater than end %d.", start, end))
	}
	return start, end, errs
}
