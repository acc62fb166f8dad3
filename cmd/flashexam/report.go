package main

import (
	"context"
	"fmt"
	"image/color"
	"io"
	"strings"

	"charm.land/lipgloss/v2"

	appI18n "github.com/pavelanni/flashexam/internal/i18n"
	"github.com/pavelanni/flashexam/internal/model"
	"github.com/pavelanni/flashexam/internal/store"
	"github.com/pavelanni/flashexam/internal/study"
)

var (
	colorPrimary = lipgloss.Color("#8B5CF6")
	colorSuccess = lipgloss.Color("#22C55E")
	colorWarning = lipgloss.Color("#F97316")
	colorError   = lipgloss.Color("#F43F5E")
	colorDim     = lipgloss.Color("#94A3B8")

	titleStyle  = lipgloss.NewStyle().Foreground(colorPrimary).Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(colorDim)
	passStyle   = lipgloss.NewStyle().Foreground(colorSuccess).Bold(true)
	failStyle   = lipgloss.NewStyle().Foreground(colorError).Bold(true)
	summaryBox  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorPrimary).Padding(0, 1)
	idColumn    = lipgloss.NewStyle().Width(10)
	cellColumn  = lipgloss.NewStyle().Width(12)
	labelColumn = lipgloss.NewStyle().Width(14)
)

var categoryColors = map[model.Category]color.Color{
	model.CategoryMastered:   colorSuccess,
	model.CategoryImproving:  colorPrimary,
	model.CategoryStruggling: colorWarning,
	model.CategoryFailed:     colorError,
	model.CategoryUnseen:     colorDim,
}

func categoryLabel(ctx context.Context, c model.Category) string {
	return lipgloss.NewStyle().Foreground(categoryColors[c]).Render(appI18n.CategoryName(ctx, c))
}

func printPerformance(ctx context.Context, w io.Writer, rep study.Report) {
	s := rep.Summary
	lines := []string{
		titleStyle.Render(appI18n.Td(ctx, "MasteryPercent", map[string]any{"Percent": s.MasteryPercent})),
		fmt.Sprintf("%s %d  %s %d  %s %d  %s %d  %s %d",
			categoryLabel(ctx, model.CategoryMastered), s.Mastered,
			categoryLabel(ctx, model.CategoryImproving), s.Improving,
			categoryLabel(ctx, model.CategoryStruggling), s.Struggling,
			categoryLabel(ctx, model.CategoryFailed), s.Failed,
			categoryLabel(ctx, model.CategoryUnseen), s.Unseen),
	}
	fmt.Fprintln(w, summaryBox.Render(strings.Join(lines, "\n")))

	for _, p := range rep.Questions {
		rate := "-"
		if p.SuccessRate != model.NeverAttempted {
			rate = fmt.Sprintf("%.0f%%", p.SuccessRate*100)
		}
		fmt.Fprintln(w,
			idColumn.Render(fmt.Sprintf("#%d", p.Order)),
			idColumn.Render(p.QuestionID),
			labelColumn.Render(categoryLabel(ctx, p.Category)),
			cellColumn.Render(fmt.Sprintf("%d/%d", p.CorrectCount, p.TotalAttempts)),
			cellColumn.Render(rate),
			dimStyle.Render(fmt.Sprintf("streak %d", p.Streak)),
		)
	}
	if rep.Cached {
		fmt.Fprintln(w, dimStyle.Render("(cached)"))
	}
}

func printHistory(ctx context.Context, w io.Writer, attempts []model.ExamResult) {
	if len(attempts) == 0 {
		fmt.Fprintln(w, dimStyle.Render(appI18n.T(ctx, "HistoryEmpty")))
		return
	}
	fmt.Fprintln(w, titleStyle.Render(appI18n.Tp(ctx, "AttemptsCount", len(attempts))))
	for _, r := range attempts {
		verdict := failStyle.Render(appI18n.T(ctx, "Fail"))
		if r.Pass {
			verdict = passStyle.Render(appI18n.T(ctx, "Pass"))
		}
		fmt.Fprintln(w,
			lipgloss.NewStyle().Width(38).Render(r.SessionID),
			dimStyle.Render(r.Time().UTC().Format("2006-01-02 15:04")),
			cellColumn.Render(fmt.Sprintf("%8.1f%%", r.Percentage)),
			verdict,
		)
	}
}

func printSelection(ctx context.Context, w io.Writer, plan study.Plan) {
	fmt.Fprintln(w, titleStyle.Render(appI18n.AdaptiveMessage(ctx, plan.Selection)))
	for i, q := range plan.Selection.Questions {
		text, _, _ := strings.Cut(q.Text, "\n")
		fmt.Fprintln(w,
			idColumn.Render(fmt.Sprintf("%d.", i+1)),
			dimStyle.Render(fmt.Sprintf("[%s #%d]", q.Kind, q.Order)),
			text,
		)
	}
}

func printDocuments(w io.Writer, docs []store.DocumentInfo) {
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("%d documents", len(docs))))
	for _, d := range docs {
		fmt.Fprintln(w,
			lipgloss.NewStyle().Width(40).Render(d.Name),
			dimStyle.Render(d.UpdatedAt.UTC().Format("2006-01-02 15:04")),
		)
	}
}
