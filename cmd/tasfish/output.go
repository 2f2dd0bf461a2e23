package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	markdown "github.com/MichaelMure/go-term-markdown"
	"github.com/fatih/color"
	"golang.org/x/term"

	"tasfish/internal/assistant"
	"tasfish/internal/evaluation"
)

var (
	blue   = color.New(color.FgBlue).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

// isTTY reports whether stdout is a terminal.
func isTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// configureColor turns colour off for pipes and --no-color.
func configureColor(noColor bool) {
	if noColor || !isTTY() {
		color.NoColor = true
	}
}

// terminalWidth is the stdout width, or 100 when it cannot be read.
func terminalWidth() int {
	if width, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && width > 20 {
		return width
	}
	return 100
}

// renderMarkdown formats composer Markdown for a terminal.
func renderMarkdown(text string, width int) string {
	return strings.TrimRight(string(markdown.Render(text, width, 0)), "\n")
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printAnswer(w io.Writer, answer assistant.Answer, verbose bool) {
	text := answer.Text
	if !color.NoColor {
		text = renderMarkdown(text, terminalWidth())
	}
	fmt.Fprintln(w, text)
	if !verbose {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s %s (%s)\n", bold("Route:"), cyan(answer.Decision.Kind.String()), gray(answer.Decision.Rationale))
	if answer.Decision.ToolName != "" {
		fmt.Fprintf(w, "%s %s %v\n", bold("Tool:"), blue(answer.Decision.ToolName), answer.Decision.ToolParams)
	}
	for _, chunk := range answer.Chunks {
		fmt.Fprintf(w, "%s %s %s\n", gray("•"), chunk.Citation(), gray(fmt.Sprintf("(%.2f)", chunk.Similarity)))
	}
	fmt.Fprintf(w, "%s %s\n", bold("Latency:"), answer.Latency.Round(1e6))
}

func printEvalReport(w io.Writer, report *evaluation.Report) {
	summary := report.Summary()
	fmt.Fprintf(w, "%s %s v%s\n\n", bold("Evaluation"), report.Suite, report.Version)
	for _, res := range report.Passing {
		mark := green("PASS")
		if !res.Passed() {
			mark = red("FAIL")
		}
		fmt.Fprintf(w, "[%s] %s %s\n", mark, bold(res.Case.ID), res.Case.Question)
		for _, p := range res.Problems {
			fmt.Fprintf(w, "       %s\n", yellow(p))
		}
	}
	fmt.Fprintln(w)
	for _, res := range report.Difficult {
		mark := green("ACK")
		if !res.Acknowledged {
			mark = yellow("MISS")
		}
		fmt.Fprintf(w, "[%s] %s %s\n", mark, bold(res.Case.ID), res.Case.Question)
		if len(res.FailureModes) > 0 {
			fmt.Fprintf(w, "       %s\n", gray(strings.Join(res.FailureModes, "; ")))
		}
	}
	fmt.Fprintln(w)

	rate := fmt.Sprintf("%.1f%%", summary.SuccessRate*100)
	if summary.Passed == summary.Total {
		rate = green(rate)
	} else {
		rate = yellow(rate)
	}
	fmt.Fprintf(w, "%s %d/%d passed (%s), %d/%d difficult acknowledged, %s\n",
		bold("Summary:"), summary.Passed, summary.Total, rate, summary.Acknowledged, summary.Difficult,
		report.Duration.Round(1e6))
}
