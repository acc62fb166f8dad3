package ledger

import (
	"regexp"
	"strings"
)

// Sentinels and headings of the companion document.
const (
	SessionStart     = "<!-- SESSION_DATA_START -->"
	SessionEnd       = "<!-- SESSION_DATA_END -->"
	PerformanceStart = "<!-- PERFORMANCE_DATA_START -->"
	PerformanceEnd   = "<!-- PERFORMANCE_DATA_END -->"

	attemptHeading     = "## Attempt:"
	performanceHeading = "> [!example]- Performance Data"
	frontmatterFence   = "---"
)

var (
	quotePrefixRe = regexp.MustCompile(`^(?:>\s*)+`)
	dividerRe     = regexp.MustCompile(`^\|(?:\s*:?-+:?\s*\|)+\s*$`)
)

type segmentKind int

const (
	segmentText segmentKind = iota
	segmentTable
	segmentSession
	segmentPerformance
)

// segment is a run of consecutive lines of one kind.
type segment struct {
	kind  segmentKind
	lines []string
}

// Document is a companion document split into frontmatter and typed
// segments. Serializing an unedited Document reproduces its input exactly.
type Document struct {
	hasFront bool
	front    []string
	segs     []segment
}

// Block is the unquoted payload of one sentinel-delimited block.
type Block struct {
	Payload string
}

// ParseDocument splits text into frontmatter, prose, the attempt table,
// session entries and performance blocks.
func ParseDocument(text string) *Document {
	lines := strings.Split(text, "\n")
	d := &Document{}

	if len(lines) > 0 && lines[0] == frontmatterFence {
		for k := 1; k < len(lines); k++ {
			if lines[k] == frontmatterFence {
				d.hasFront = true
				d.front = append([]string(nil), lines[1:k]...)
				lines = lines[k+1:]
				break
			}
		}
	}
	d.segs = splitSegments(lines)
	return d
}

// String serializes the document.
func (d *Document) String() string {
	var all []string
	if d.hasFront {
		all = append(all, frontmatterFence)
		all = append(all, d.front...)
		all = append(all, frontmatterFence)
	}
	for _, s := range d.segs {
		all = append(all, s.lines...)
	}
	return strings.Join(all, "\n")
}

// Field returns the value of a frontmatter key.
func (d *Document) Field(key string) (string, bool) {
	for _, line := range d.front {
		if k, v, ok := splitField(line); ok && k == key {
			return v, true
		}
	}
	return "", false
}

// SetField overwrites a frontmatter key, adding it (and the frontmatter) when missing.
func (d *Document) SetField(key, value string) {
	line := key + ": " + value
	for i, l := range d.front {
		if k, _, ok := splitField(l); ok && k == key {
			d.front[i] = line
			return
		}
	}
	d.hasFront = true
	d.front = append(d.front, line)
}

// InsertRow adds a table row directly below the divider of the attempt
// table. It reports false when the document has no table.
func (d *Document) InsertRow(row string) bool {
	for i := range d.segs {
		s := &d.segs[i]
		if s.kind != segmentTable {
			continue
		}
		lines := make([]string, 0, len(s.lines)+1)
		lines = append(lines, s.lines[:2]...)
		lines = append(lines, row)
		lines = append(lines, s.lines[2:]...)
		s.lines = lines
		return true
	}
	return false
}

// RemoveRow deletes the first table row whose first cell equals id.
func (d *Document) RemoveRow(id string) bool {
	for i := range d.segs {
		s := &d.segs[i]
		if s.kind != segmentTable {
			continue
		}
		for j := 2; j < len(s.lines); j++ {
			if firstCell(s.lines[j]) == id {
				s.lines = append(s.lines[:j], s.lines[j+1:]...)
				return true
			}
		}
	}
	return false
}

// Sessions returns the payload of every session entry in document order.
func (d *Document) Sessions() []Block {
	var out []Block
	for _, s := range d.segs {
		if s.kind == segmentSession {
			out = append(out, Block{Payload: payload(s.lines, SessionStart, SessionEnd)})
		}
	}
	return out
}

// RemoveSession deletes the first session entry whose payload satisfies
// match, together with its heading and trailing rule.
func (d *Document) RemoveSession(match func(payload string) bool) bool {
	for i, s := range d.segs {
		if s.kind == segmentSession && match(payload(s.lines, SessionStart, SessionEnd)) {
			d.segs = append(d.segs[:i], d.segs[i+1:]...)
			return true
		}
	}
	return false
}

// Performance returns the payload of the last performance block.
func (d *Document) Performance() (Block, bool) {
	for i := len(d.segs) - 1; i >= 0; i-- {
		if s := d.segs[i]; s.kind == segmentPerformance {
			return Block{Payload: payload(s.lines, PerformanceStart, PerformanceEnd)}, true
		}
	}
	return Block{}, false
}

// RemovePerformance deletes every performance block and returns how many there were.
func (d *Document) RemovePerformance() int {
	kept := d.segs[:0]
	n := 0
	for _, s := range d.segs {
		if s.kind == segmentPerformance {
			n++
			continue
		}
		kept = append(kept, s)
	}
	d.segs = kept
	return n
}

// AppendTable adds an attempt table at the end of the document.
func (d *Document) AppendTable(lines ...string) {
	d.appendSegment(segmentTable, lines)
}

// AppendSession adds a session entry at the end of the document.
func (d *Document) AppendSession(lines ...string) {
	d.appendSegment(segmentSession, lines)
}

// AppendPerformance adds a performance block at the end of the document.
func (d *Document) AppendPerformance(lines ...string) {
	d.appendSegment(segmentPerformance, lines)
}

// appendSegment drops trailing blank lines, then adds one blank separator,
// the segment and a final newline.
func (d *Document) appendSegment(kind segmentKind, lines []string) {
	d.trimTrailingBlank()
	if len(d.segs) > 0 || d.hasFront {
		d.segs = append(d.segs, segment{kind: segmentText, lines: []string{""}})
	}
	d.segs = append(d.segs,
		segment{kind: kind, lines: append([]string(nil), lines...)},
		segment{kind: segmentText, lines: []string{""}},
	)
}

func (d *Document) trimTrailingBlank() {
	for len(d.segs) > 0 {
		last := &d.segs[len(d.segs)-1]
		if last.kind != segmentText {
			return
		}
		for len(last.lines) > 0 && strings.TrimSpace(last.lines[len(last.lines)-1]) == "" {
			last.lines = last.lines[:len(last.lines)-1]
		}
		if len(last.lines) > 0 {
			return
		}
		d.segs = d.segs[:len(d.segs)-1]
	}
}

type span struct {
	start, end int // inclusive
	kind       segmentKind
}

func splitSegments(lines []string) []segment {
	var spans []span
	prevEnd := -1
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		switch {
		case isTableHeader(lines, i):
			end := i + 1
			for end+1 < len(lines) && strings.HasPrefix(strings.TrimSpace(lines[end+1]), "|") {
				end++
			}
			spans = append(spans, span{start: i, end: end, kind: segmentTable})
			prevEnd, i = end, end

		case strings.Contains(line, SessionStart):
			end, ok := closingMarker(lines, i, SessionStart, SessionEnd)
			if !ok {
				continue
			}
			start := sessionHead(lines, i, prevEnd)
			if m := nextNonBlank(lines, end); m >= 0 && strings.TrimSpace(lines[m]) == frontmatterFence {
				end = m
			}
			spans = append(spans, span{start: start, end: end, kind: segmentSession})
			prevEnd, i = end, end

		case strings.Contains(line, PerformanceStart):
			end, ok := closingMarker(lines, i, PerformanceStart, PerformanceEnd)
			if !ok {
				continue
			}
			start := i
			for start-1 > prevEnd && strings.HasPrefix(lines[start-1], ">") {
				start--
			}
			spans = append(spans, span{start: start, end: end, kind: segmentPerformance})
			prevEnd, i = end, end
		}
	}

	var segs []segment
	pos := 0
	for _, sp := range spans {
		if sp.start > pos {
			segs = append(segs, segment{kind: segmentText, lines: lines[pos:sp.start]})
		}
		segs = append(segs, segment{kind: sp.kind, lines: lines[sp.start : sp.end+1]})
		pos = sp.end + 1
	}
	if pos < len(lines) {
		segs = append(segs, segment{kind: segmentText, lines: lines[pos:]})
	}
	return segs
}

func isTableHeader(lines []string, i int) bool {
	return strings.HasPrefix(strings.TrimSpace(lines[i]), "|") &&
		i+1 < len(lines) && dividerRe.MatchString(strings.TrimSpace(lines[i+1]))
}

// closingMarker finds the end marker that belongs to the start marker on
// line i. A second start marker before it means line i is stray text.
func closingMarker(lines []string, i int, start, end string) (int, bool) {
	for j := i + 1; j < len(lines); j++ {
		if strings.Contains(lines[j], end) {
			return j, true
		}
		if strings.Contains(lines[j], start) {
			return 0, false
		}
	}
	return 0, false
}

// sessionHead walks back from a start marker over its quoted lines to the
// attempt heading. Without a heading the entry starts at the quote block.
func sessionHead(lines []string, i, floor int) int {
	quoteStart := i
	for quoteStart-1 > floor && strings.HasPrefix(lines[quoteStart-1], ">") {
		quoteStart--
	}
	for k := i - 1; k > floor; k-- {
		l := strings.TrimSpace(lines[k])
		if strings.HasPrefix(l, attemptHeading) {
			return k
		}
		if l != "" && !strings.HasPrefix(l, ">") {
			break
		}
	}
	return quoteStart
}

func nextNonBlank(lines []string, i int) int {
	for k := i + 1; k < len(lines); k++ {
		if strings.TrimSpace(lines[k]) != "" {
			return k
		}
	}
	return -1
}

// payload unquotes the lines between the markers and drops code fences.
func payload(lines []string, start, end string) string {
	var out []string
	inside := false
	for _, l := range lines {
		switch {
		case strings.Contains(l, start):
			inside = true
			continue
		case strings.Contains(l, end):
			inside = false
			continue
		}
		if !inside {
			continue
		}
		l = quotePrefixRe.ReplaceAllString(l, "")
		if strings.HasPrefix(strings.TrimSpace(l), "```") {
			continue
		}
		out = append(out, l)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

func splitField(line string) (string, string, bool) {
	k, v, ok := strings.Cut(line, ":")
	if !ok {
		return "", "", false
	}
	return strings.TrimSpace(k), strings.TrimSpace(v), true
}

func firstCell(row string) string {
	cells := strings.Split(strings.TrimSpace(row), "|")
	if len(cells) < 2 {
		return ""
	}
	return strings.TrimSpace(cells[1])
}

// quote prefixes every line of s for nesting inside a callout.
func quote(s string) []string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = "> " + l
	}
	return lines
}
