package quizmark

import (
	"strconv"
	"unicode/utf16"
)

// questionID derives a stable ID from the question's header text and line
// index: a wrapping 32-bit h*31+c hash over UTF-16 code units, absolute value,
// base 36. Identical text on the same line yields the same ID.
func questionID(text string, lineIndex int) string {
	var h int32
	for _, c := range utf16.Encode([]rune(text + strconv.Itoa(lineIndex))) {
		h = h*31 + int32(c)
	}
	v := int64(h)
	if v < 0 {
		v = -v
	}
	return strconv.FormatInt(v, 36)
}
