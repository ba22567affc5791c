// Package observability provides formatted output utilities for CLI reports.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/interview-progress/internal/progress"
	"github.com/jonathan/interview-progress/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxOptionsToShow caps the answer options listed for a question
	maxOptionsToShow = 6
)

// Printer handles formatted report output
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, truncate(line, boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintProgress outputs a per-domain summary of record and how far each
// domain is from its next tier under t.
func (p *Printer) PrintProgress(record *types.ProgressRecord, t progress.Thresholds) {
	if record == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Answered: %d  Correct: %d  Accuracy: %s\n",
		record.TotalQuestions, record.CorrectAnswers, percent(record.CorrectAnswers, record.TotalQuestions)))

	for _, domain := range types.Domains {
		dp, ok := record.DomainProgress[domain]
		if !ok {
			dp.CurrentDifficulty = types.DifficultyBeginner
		}
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%-11s %-13s %3d/%-3d %s\n", domain, dp.CurrentDifficulty,
			dp.CorrectAnswers, dp.TotalQuestions, percent(dp.CorrectAnswers, dp.TotalQuestions)))
		sb.WriteString(fmt.Sprintf("  %s\n", nextStep(dp, t)))
	}

	p.printBox("INTERVIEW PROGRESS", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintQuestion outputs a generated question with its options.
func (p *Printer) PrintQuestion(q *types.Question) {
	if q == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Domain:     %s\n", q.Domain))
	sb.WriteString(fmt.Sprintf("Difficulty: %s\n\n", q.Difficulty))
	sb.WriteString(q.Prompt)
	sb.WriteString("\n")

	if len(q.Options) > 0 {
		sb.WriteString("\n")
		count := min(len(q.Options), maxOptionsToShow)
		for i := 0; i < count; i++ {
			sb.WriteString(fmt.Sprintf("  %c) %s\n", 'a'+i, q.Options[i]))
		}
	}

	p.printBox("NEXT QUESTION", strings.TrimSuffix(sb.String(), "\n"))
}

// nextStep describes what a domain still needs before it escalates.
func nextStep(dp types.DomainProgress, t progress.Thresholds) string {
	if dp.CurrentDifficulty == types.DifficultyAdvanced {
		return "top tier reached"
	}
	next := dp.CurrentDifficulty.Next()
	if remaining := t.MinQuestions - dp.TotalQuestions; remaining > 0 {
		return fmt.Sprintf("%d more answer(s) before %s is possible", remaining, next)
	}
	if dp.Accuracy() < t.MinAccuracy {
		return fmt.Sprintf("accuracy must reach %.0f%% for %s", t.MinAccuracy*100, next)
	}
	return fmt.Sprintf("%s on the next answer that keeps accuracy", next)
}

func percent(correct, total int) string {
	if total == 0 {
		return "-"
	}
	return fmt.Sprintf("%.0f%%", float64(correct)/float64(total)*100)
}

// truncate shortens s to width runes, marking the cut with "...".
func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-3]) + "..."
}
