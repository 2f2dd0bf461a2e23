package evaluation

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
)

// Report collects the results of one run.
type Report struct {
	Suite     string
	Version   string
	StartedAt time.Time
	Duration  time.Duration
	Passing   []CaseResult
	Difficult []DifficultResult
}

// TypeSummary counts results for one case type.
type TypeSummary struct {
	Total  int
	Passed int
}

// Summary is the headline view of a report.
type Summary struct {
	Passed       int
	Total        int
	SuccessRate  float64
	Acknowledged int
	Difficult    int
	ByType       map[string]TypeSummary
	FailureModes map[string]int
}

// Summary aggregates the results.
func (r *Report) Summary() Summary {
	s := Summary{
		Total:        len(r.Passing),
		Difficult:    len(r.Difficult),
		ByType:       make(map[string]TypeSummary),
		FailureModes: make(map[string]int),
	}
	for _, res := range r.Passing {
		t := s.ByType[res.Case.Type]
		t.Total++
		if res.Passed() {
			t.Passed++
			s.Passed++
		}
		s.ByType[res.Case.Type] = t
	}
	if s.Total > 0 {
		s.SuccessRate = float64(s.Passed) / float64(s.Total)
	}
	for _, res := range r.Difficult {
		if res.Acknowledged {
			s.Acknowledged++
		}
		for _, mode := range res.FailureModes {
			s.FailureModes[mode]++
		}
	}
	return s
}

// WriteMarkdown renders the report as Markdown.
func WriteMarkdown(w io.Writer, r *Report) error {
	_, err := io.WriteString(w, r.Markdown())
	return err
}

// Markdown renders the report as a Markdown document.
func (r *Report) Markdown() string {
	var b strings.Builder
	b.WriteString(r.buildHeader())
	b.WriteString("\n")
	b.WriteString(r.buildSummary())
	b.WriteString("\n")
	b.WriteString(r.buildPassingSection())
	b.WriteString("\n")
	b.WriteString(r.buildDifficultSection())
	return b.String()
}

func (r *Report) buildHeader() string {
	return fmt.Sprintf("# Evaluation Report: %s\n\n**Version:** %s  \n**Started:** %s  \n**Duration:** %s\n",
		r.Suite, r.Version, r.StartedAt.Format("2006-01-02 15:04:05"), r.Duration.Round(time.Millisecond))
}

func (r *Report) buildSummary() string {
	s := r.Summary()
	var b strings.Builder
	b.WriteString("## Summary\n\n")
	fmt.Fprintf(&b, "Passing questions: **%d/%d** (%.1f%%)\n\n", s.Passed, s.Total, s.SuccessRate*100)
	fmt.Fprintf(&b, "Difficult questions acknowledged: **%d/%d**\n\n", s.Acknowledged, s.Difficult)

	types := make([]string, 0, len(s.ByType))
	for t := range s.ByType {
		types = append(types, t)
	}
	sort.Strings(types)
	if len(types) > 0 {
		b.WriteString("| Type | Passed | Total |\n|------|--------|-------|\n")
		for _, t := range types {
			fmt.Fprintf(&b, "| %s | %d | %d |\n", t, s.ByType[t].Passed, s.ByType[t].Total)
		}
	}
	return b.String()
}

func (r *Report) buildPassingSection() string {
	var b strings.Builder
	b.WriteString("## Passing Questions\n\n")
	for _, res := range r.Passing {
		status := "PASS"
		if !res.Passed() {
			status = "FAIL"
		}
		fmt.Fprintf(&b, "### %s [%s] %s\n\n", res.Case.ID, status, res.Case.Question)
		fmt.Fprintf(&b, "- Expected: %s, got %s\n", res.Case.Type, res.Decision.Kind)
		if res.Decision.ToolName != "" {
			fmt.Fprintf(&b, "- Tool: %s %v\n", res.Decision.ToolName, res.Decision.ToolParams)
		}
		if len(res.Citations) > 0 {
			fmt.Fprintf(&b, "- Citations: %s\n", strings.Join(res.Citations, ", "))
		}
		for _, p := range res.Problems {
			fmt.Fprintf(&b, "- Problem: %s\n", p)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (r *Report) buildDifficultSection() string {
	var b strings.Builder
	b.WriteString("## Difficult Questions\n\n")
	for _, res := range r.Difficult {
		status := "ACKNOWLEDGED"
		if !res.Acknowledged {
			status = "NOT ACKNOWLEDGED"
		}
		fmt.Fprintf(&b, "### %s [%s] %s\n\n", res.Case.ID, status, res.Case.Question)
		fmt.Fprintf(&b, "- Category: %s\n", res.Case.Category)
		fmt.Fprintf(&b, "- Expected failure: %s\n", res.Case.ExpectedFailure)
		for _, mode := range res.FailureModes {
			fmt.Fprintf(&b, "- Failure mode: %s\n", mode)
		}
		b.WriteString("\n")
	}
	return b.String()
}
