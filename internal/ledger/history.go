// Package ledger keeps a quiz's attempt history and cached performance index
// inside a Markdown companion document next to the quiz.
package ledger

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"path"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/pavelanni/flashexam/internal/model"
)

const (
	companionSuffix = "-history.md"
	shortIDLen      = 8
	dateLayout      = "2006-01-02"
	stampLayout     = "2006-01-02 15:04:05"
	rule            = "---"

	tableHeader  = "| ID | Date | Score | Duration | Status |"
	tableDivider = "| :--- | :--- | :--- | :--- | :--- |"
)

var (
	blankRunRe  = regexp.MustCompile(`\n{3,}`)
	sessionIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

// ErrInvalidSessionID is returned by Append for ids that cannot sit in a table cell.
var ErrInvalidSessionID = errors.New("session id must contain only letters, digits, '-' and '_'")

// DocumentStore reads and writes named text documents. Read returns
// model.ErrDocumentNotFound when the document does not exist.
type DocumentStore interface {
	Read(ctx context.Context, name string) (string, error)
	Write(ctx context.Context, name, text string) error
}

// CompanionName returns the history document name for a quiz: the quiz's
// extension is replaced with "-history.md".
func CompanionName(quizPath string) string {
	return strings.TrimSuffix(quizPath, path.Ext(quizPath)) + companionSuffix
}

// History is the attempt ledger of each quiz.
type History struct {
	store DocumentStore
	now   func() time.Time
}

// NewHistory creates a History backed by store.
func NewHistory(store DocumentStore) *History {
	return &History{store: store, now: time.Now}
}

// Append records an attempt, creating the companion document when needed.
func (h *History) Append(ctx context.Context, quizPath string, r model.ExamResult) error {
	if !sessionIDRe.MatchString(r.SessionID) {
		return fmt.Errorf("append %q: %w", r.SessionID, ErrInvalidSessionID)
	}
	name := CompanionName(quizPath)
	text, err := h.store.Read(ctx, name)
	var doc *Document
	switch {
	case errors.Is(err, model.ErrDocumentNotFound):
		doc = newHistoryDocument(quizPath, h.now())
	case err != nil:
		return fmt.Errorf("read history: %w", err)
	default:
		doc = ParseDocument(text)
	}

	n, _ := strconv.Atoi(fieldOr(doc, "attempts", "0"))
	doc.SetField("attempts", strconv.Itoa(n+1))
	doc.SetField("last-score", formatNumber(r.Percentage))
	doc.SetField("last-attempt-date", h.now().Format(dateLayout))

	row := tableRow(r)
	if !doc.InsertRow(row) {
		doc.AppendTable(tableHeader, tableDivider, row)
	}
	entry, err := sessionEntry(r)
	if err != nil {
		return err
	}
	doc.AppendSession(entry...)

	if err := h.store.Write(ctx, name, doc.String()); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	return nil
}

// List returns every readable attempt, newest first. Entries whose payload
// cannot be parsed are logged and skipped.
func (h *History) List(ctx context.Context, quizPath string) ([]model.ExamResult, error) {
	name := CompanionName(quizPath)
	text, err := h.store.Read(ctx, name)
	if errors.Is(err, model.ErrDocumentNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}

	var results []model.ExamResult
	for i, b := range ParseDocument(text).Sessions() {
		var c CompactResult
		if err := json.Unmarshal([]byte(b.Payload), &c); err != nil {
			slog.Warn("skipping unreadable history entry", "document", name, "entry", i, "error", err)
			continue
		}
		results = append(results, Decompress(c))
	}
	slices.SortStableFunc(results, func(a, b model.ExamResult) int {
		return cmp.Compare(b.Timestamp, a.Timestamp)
	})
	return results, nil
}

// Remove deletes one attempt's table row and session entry. It reports
// whether anything was removed; an absent document is not an error.
func (h *History) Remove(ctx context.Context, quizPath, sessionID string) (bool, error) {
	name := CompanionName(quizPath)
	text, err := h.store.Read(ctx, name)
	if errors.Is(err, model.ErrDocumentNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read history: %w", err)
	}

	doc := ParseDocument(text)
	short := sessionID
	if len(short) > shortIDLen {
		short = short[:shortIDLen]
	}
	rowRemoved := doc.RemoveRow(short)
	entryRemoved := doc.RemoveSession(func(payload string) bool {
		var c CompactResult
		if err := json.Unmarshal([]byte(payload), &c); err == nil {
			return c.ID == sessionID
		}
		return strings.Contains(payload, sessionID)
	})
	if !rowRemoved && !entryRemoved {
		return false, nil
	}

	if v, ok := doc.Field("attempts"); ok {
		n, _ := strconv.Atoi(v)
		doc.SetField("attempts", strconv.Itoa(max(0, n-1)))
	}

	out := blankRunRe.ReplaceAllString(doc.String(), "\n\n")
	out = strings.TrimRight(out, " \t\r\n") + "\n"
	if err := h.store.Write(ctx, name, out); err != nil {
		return false, fmt.Errorf("write history: %w", err)
	}
	return true, nil
}

func newHistoryDocument(quizPath string, now time.Time) *Document {
	today := now.Format(dateLayout)
	return ParseDocument(fmt.Sprintf(`---
source: %q
created: %s
attempts: 0
last-score: 0
last-attempt-date: %s
---

# Exam History: %s

%s
%s
`, quizPath, today, today, quizPath, tableHeader, tableDivider))
}

func fieldOr(doc *Document, key, def string) string {
	if v, ok := doc.Field(key); ok {
		return v
	}
	return def
}

func tableRow(r model.ExamResult) string {
	return fmt.Sprintf("| %s | %s | %.1f%% (%s/%s) | %s | %s |",
		shortID(r.SessionID), stamp(r), r.Percentage,
		formatNumber(r.TotalScore), formatNumber(r.MaxScore),
		formatDuration(r.DurationSeconds), passLabel(r.Pass))
}

func sessionEntry(r model.ExamResult) ([]string, error) {
	data, err := json.Marshal(Compress(r))
	if err != nil {
		return nil, fmt.Errorf("encode attempt: %w", err)
	}
	lines := []string{
		attemptHeading + " " + stamp(r),
		"> [!info] Summary",
		fmt.Sprintf("> Score: %s/%s | Correct: %.1f%% | Time: %s",
			formatNumber(r.TotalScore), formatNumber(r.MaxScore), r.Percentage, formatDuration(r.DurationSeconds)),
		"",
		"> [!abstract]- Raw Session Data",
		"> " + SessionStart,
		"> ```json",
	}
	lines = append(lines, quote(string(data))...)
	lines = append(lines, "> ```", "> "+SessionEnd, "", rule)
	return lines, nil
}

func shortID(id string) string {
	if len(id) > shortIDLen {
		return id[:shortIDLen]
	}
	return id
}

func stamp(r model.ExamResult) string {
	return r.Time().UTC().Format(stampLayout)
}

func passLabel(pass bool) string {
	if pass {
		return "PASS"
	}
	return "FAIL"
}

// formatDuration renders whole minutes and seconds, e.g. "2m 5s".
func formatDuration(seconds float64) string {
	total := int(math.Floor(seconds))
	return fmt.Sprintf("%dm %ds", total/60, total%60)
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
