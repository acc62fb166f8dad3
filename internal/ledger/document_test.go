package ledger

import (
	"encoding/json"
	"strings"
	"testing"
)

const sampleDocument = `---
source: "quiz/go.md"
created: 2026-03-01
attempts: 2
last-score: 50
last-attempt-date: 2026-03-02
---

# Exam History: quiz/go.md

Some notes the user wrote.

| ID | Date | Score | Duration | Status |
| :--- | :--- | :--- | :--- | :--- |
| bbbbbbbb | 2026-03-02 09:00:00 | 50.0% (1/2) | 1m 0s | FAIL |
| aaaaaaaa | 2026-03-01 09:00:00 | 100.0% (2/2) | 0m 30s | PASS |

## Attempt: 2026-03-01 09:00:00
> [!info] Summary
> Score: 2/2 | Correct: 100.0% | Time: 0m 30s

> [!abstract]- Raw Session Data
> <!-- SESSION_DATA_START -->
> ` + "```json" + `
> {"id":"aaaaaaaa-1","ts":1,"sc":2,"mSc":2,"pct":100,"p":true,"dur":30,"res":[]}
> ` + "```" + `
> <!-- SESSION_DATA_END -->

---

## Attempt: 2026-03-02 09:00:00
> [!info] Summary
> Score: 1/2 | Correct: 50.0% | Time: 1m 0s

> [!abstract]- Raw Session Data
> <!-- SESSION_DATA_START -->
> ` + "```json" + `
> {
>   "id": "bbbbbbbb-2",
>   "ts": 2
> }
> ` + "```" + `
> <!-- SESSION_DATA_END -->

---

> [!example]- Performance Data
> <!-- PERFORMANCE_DATA_START -->
> ` + "```json" + `
> {"version":1,"updatedAt":5,"questions":{}}
> ` + "```" + `
> <!-- PERFORMANCE_DATA_END -->
`

func TestParseDocumentRoundTrip(t *testing.T) {
	tests := []string{
		"",
		"no newline",
		"---\nattempts: 1\n---\n",
		"---\nunterminated frontmatter\n",
		"stray <!-- SESSION_DATA_START --> marker\nand nothing else\n",
		"> <!-- PERFORMANCE_DATA_START -->\n> <!-- PERFORMANCE_DATA_START -->\n> {}\n> <!-- PERFORMANCE_DATA_END -->\n",
		sampleDocument,
	}
	for _, in := range tests {
		if got := ParseDocument(in).String(); got != in {
			t.Errorf("round trip changed document:\n got %q\nwant %q", got, in)
		}
	}
}

func TestDocumentFields(t *testing.T) {
	doc := ParseDocument(sampleDocument)

	if v, ok := doc.Field("attempts"); !ok || v != "2" {
		t.Errorf("expected attempts 2, got %q (ok=%v)", v, ok)
	}
	if v, _ := doc.Field("source"); v != `"quiz/go.md"` {
		t.Errorf("expected quoted source, got %q", v)
	}
	if _, ok := doc.Field("missing"); ok {
		t.Error("expected missing field to be absent")
	}

	doc.SetField("attempts", "3")
	doc.SetField("extra", "yes")
	out := doc.String()
	if !strings.Contains(out, "\nattempts: 3\n") {
		t.Errorf("expected updated attempts line in:\n%s", out)
	}
	if !strings.Contains(out, "\nextra: yes\n---\n") {
		t.Errorf("expected new field at end of frontmatter in:\n%s", out)
	}
}

func TestDocumentSessions(t *testing.T) {
	doc := ParseDocument(sampleDocument)
	blocks := doc.Sessions()
	if len(blocks) != 2 {
		t.Fatalf("expected 2 session blocks, got %d", len(blocks))
	}

	var ids []string
	for _, b := range blocks {
		var v struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal([]byte(b.Payload), &v); err != nil {
			t.Fatalf("payload %q: %v", b.Payload, err)
		}
		ids = append(ids, v.ID)
	}
	if ids[0] != "aaaaaaaa-1" || ids[1] != "bbbbbbbb-2" {
		t.Errorf("unexpected ids %v", ids)
	}
}

func TestDocumentRemoveSession(t *testing.T) {
	doc := ParseDocument(sampleDocument)
	removed := doc.RemoveSession(func(p string) bool { return strings.Contains(p, "aaaaaaaa-1") })
	if !removed {
		t.Fatal("expected a session to be removed")
	}
	out := doc.String()
	if strings.Contains(out, "## Attempt: 2026-03-01") {
		t.Errorf("expected attempt heading to be removed:\n%s", out)
	}
	if strings.Count(out, SessionStart) != 1 {
		t.Errorf("expected one remaining session block:\n%s", out)
	}
	if !strings.Contains(out, "## Attempt: 2026-03-02") {
		t.Error("expected the other attempt to survive")
	}

	if doc.RemoveSession(func(string) bool { return false }) {
		t.Error("expected no removal when nothing matches")
	}
}

func TestDocumentRows(t *testing.T) {
	doc := ParseDocument(sampleDocument)

	if !doc.InsertRow("| cccccccc | x | y | z | PASS |") {
		t.Fatal("expected InsertRow to find the table")
	}
	lines := strings.Split(doc.String(), "\n")
	for i, l := range lines {
		if l == tableDivider {
			if lines[i+1] != "| cccccccc | x | y | z | PASS |" {
				t.Errorf("expected new row right after divider, got %q", lines[i+1])
			}
			break
		}
	}

	if !doc.RemoveRow("aaaaaaaa") {
		t.Fatal("expected RemoveRow to remove aaaaaaaa")
	}
	if strings.Contains(doc.String(), "| aaaaaaaa |") {
		t.Error("row aaaaaaaa still present")
	}
	if doc.RemoveRow("zzzzzzzz") {
		t.Error("expected RemoveRow to report false for unknown id")
	}

	if ParseDocument("# no table\n").InsertRow("| x |") {
		t.Error("expected InsertRow to fail without a table")
	}
}

func TestDocumentPerformanceUsesLastValidBlock(t *testing.T) {
	text := "stray <!-- PERFORMANCE_DATA_START --> text\n" +
		"> [!example]- Performance Data\n" +
		"> <!-- PERFORMANCE_DATA_START -->\n" +
		"> ```json\n" +
		"> {\"version\":1}\n" +
		"> ```\n" +
		"> <!-- PERFORMANCE_DATA_END -->\n"
	doc := ParseDocument(text)
	b, ok := doc.Performance()
	if !ok {
		t.Fatal("expected a performance block")
	}
	if b.Payload != `{"version":1}` {
		t.Errorf("unexpected payload %q", b.Payload)
	}

	if n := doc.RemovePerformance(); n != 1 {
		t.Errorf("expected 1 removed block, got %d", n)
	}
	if got := doc.String(); got != "stray <!-- PERFORMANCE_DATA_START --> text\n" {
		t.Errorf("unexpected remainder %q", got)
	}
}

func TestDocumentPerformanceMissingEnd(t *testing.T) {
	doc := ParseDocument("> <!-- PERFORMANCE_DATA_START -->\n> {}\n")
	if _, ok := doc.Performance(); ok {
		t.Error("expected no block without an end marker")
	}
}
