package evaluation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tasfish/internal/assistant"
	"tasfish/internal/composer"
	"tasfish/internal/logging"
	"tasfish/internal/rag"
	"tasfish/internal/router"
	"tasfish/internal/tools"
)

// Pipeline is the assistant surface the runner drives.
type Pipeline interface {
	Ask(ctx context.Context, query string) (assistant.Answer, error)
}

// AcknowledgmentPhrases mark an answer that admits the guide's limits.
var AcknowledgmentPhrases = []string{
	"don't have",
	"do not have",
	"not in my knowledge",
	"not available",
	"can't provide",
	"cannot provide",
	"outside my scope",
	"tasmania only",
	"recommend checking",
	"specialize in tasmania",
	"check the official",
}

// CaseResult is the outcome of one passing case.
type CaseResult struct {
	Case           Case
	Decision       router.Decision
	Citations      []string
	Answer         string
	RoutingCorrect bool
	ToolCorrect    bool
	RAGCorrect     bool
	FactsVerified  bool
	Problems       []string
	Latency        time.Duration
	Err            error
}

// Passed reports whether every check held.
func (r CaseResult) Passed() bool {
	return r.Err == nil && r.RoutingCorrect && r.ToolCorrect && r.RAGCorrect && r.FactsVerified
}

// DifficultResult is the outcome of one difficult case.
type DifficultResult struct {
	Case         DifficultCase
	Decision     router.Decision
	Answer       string
	Acknowledged bool
	FailureModes []string
	Latency      time.Duration
	Err          error
}

// Runner evaluates suites against a pipeline.
type Runner struct {
	pipeline Pipeline
	logger   logging.Logger
}

// NewRunner builds a runner.
func NewRunner(pipeline Pipeline, logger logging.Logger) *Runner {
	if logging.IsNil(logger) {
		logger = logging.NewComponentLogger("evaluation")
	}
	return &Runner{pipeline: pipeline, logger: logger}
}

// Run evaluates every case in order. Cases run one at a time so provider
// rate limits hold.
func (r *Runner) Run(ctx context.Context, suite *Suite) (*Report, error) {
	if suite == nil {
		return nil, fmt.Errorf("suite is required")
	}
	report := &Report{Suite: suite.Name, Version: suite.Version, StartedAt: time.Now()}
	for _, c := range suite.Passing {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		result := r.EvaluateCase(ctx, c)
		r.logger.Info("case %s passed=%t problems=%v", c.ID, result.Passed(), result.Problems)
		report.Passing = append(report.Passing, result)
	}
	for _, c := range suite.Difficult {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		result := r.EvaluateDifficult(ctx, c)
		r.logger.Info("difficult case %s acknowledged=%t", c.ID, result.Acknowledged)
		report.Difficult = append(report.Difficult, result)
	}
	report.Duration = time.Since(report.StartedAt)
	return report, nil
}

// EvaluateCase asks one question and checks the result.
func (r *Runner) EvaluateCase(ctx context.Context, c Case) CaseResult {
	result := CaseResult{Case: c}
	answer, err := r.pipeline.Ask(ctx, c.Question)
	if err != nil {
		result.Err = err
		result.Problems = append(result.Problems, err.Error())
		return result
	}
	result.Decision = answer.Decision
	result.Answer = answer.Text
	result.Latency = answer.Latency
	for _, chunk := range answer.Chunks {
		result.Citations = append(result.Citations, chunk.Citation())
	}

	result.RoutingCorrect = routeMatches(c.Type, answer.Decision)
	if !result.RoutingCorrect {
		result.Problems = append(result.Problems, fmt.Sprintf("expected %s route, got %s", c.Type, answer.Decision.Kind))
	}

	result.ToolCorrect = true
	if c.ExpectedTool != "" {
		if answer.Decision.ToolName != c.ExpectedTool {
			result.ToolCorrect = false
			result.Problems = append(result.Problems, fmt.Sprintf("expected tool %s, got %q", c.ExpectedTool, answer.Decision.ToolName))
		}
		for key, want := range c.ExpectedParams {
			got := fmt.Sprint(answer.Decision.ToolParams[key])
			if !looseMatch(want, got) {
				result.ToolCorrect = false
				result.Problems = append(result.Problems, fmt.Sprintf("expected %s %q, got %q", key, want, got))
			}
		}
	}

	result.RAGCorrect = true
	for _, citation := range c.ExpectedCitations {
		if !hasCitation(citation, answer.Chunks) {
			result.RAGCorrect = false
			result.Problems = append(result.Problems, "missing citation "+citation)
		}
	}

	result.FactsVerified = true
	for _, fact := range c.KeyFacts {
		if !rag.VerifyCitation(fact, answer.Chunks) && !containsFold(answer.Text, fact) {
			result.FactsVerified = false
			result.Problems = append(result.Problems, fmt.Sprintf("fact %q not found", fact))
		}
	}
	return result
}

// EvaluateDifficult asks one difficult question and records how the
// assistant coped with it.
func (r *Runner) EvaluateDifficult(ctx context.Context, c DifficultCase) DifficultResult {
	result := DifficultResult{Case: c}
	answer, err := r.pipeline.Ask(ctx, c.Question)
	if err != nil {
		result.Err = err
		result.FailureModes = []string{"pipeline error: " + err.Error()}
		return result
	}
	result.Decision = answer.Decision
	result.Answer = answer.Text
	result.Latency = answer.Latency
	result.Acknowledged = Acknowledges(answer.Text)
	result.FailureModes = failureModes(answer, result.Acknowledged)
	return result
}

// Acknowledges reports whether text admits missing information.
func Acknowledges(text string) bool {
	if strings.HasPrefix(text, composer.NoAnswerMessage) {
		return true
	}
	for _, phrase := range AcknowledgmentPhrases {
		if containsFold(text, phrase) {
			return true
		}
	}
	return false
}

func failureModes(answer assistant.Answer, acknowledged bool) []string {
	var modes []string
	if !answer.Decision.Succeeded {
		modes = append(modes, "routing fell back to document search")
	}
	if answer.Decision.NeedsDocs && len(answer.Chunks) == 0 {
		modes = append(modes, "no passages retrieved")
	}
	if answer.ToolResult != nil && !tools.IsOk(answer.ToolResult) {
		modes = append(modes, "tool call failed")
	}
	if answer.Text == composer.ErrorMessage {
		modes = append(modes, "answer generation failed")
	}
	if !acknowledged {
		modes = append(modes, "answered without acknowledging missing information")
	}
	return modes
}

func routeMatches(caseType string, d router.Decision) bool {
	switch caseType {
	case TypeRAG:
		return d.NeedsDocs && !d.NeedsTool
	case TypeTool:
		return d.NeedsTool
	case TypeBoth:
		return d.NeedsDocs && d.NeedsTool
	}
	return false
}

// hasCitation matches "source/section" exactly and a bare source against
// the chunk source.
func hasCitation(citation string, chunks []rag.Chunk) bool {
	for _, c := range chunks {
		if strings.Contains(citation, "/") {
			if strings.EqualFold(c.Citation(), citation) {
				return true
			}
		} else if strings.EqualFold(c.Source, citation) {
			return true
		}
	}
	return false
}

func looseMatch(want, got string) bool {
	w, g := strings.ToLower(strings.TrimSpace(want)), strings.ToLower(strings.TrimSpace(got))
	if w == "" || g == "" {
		return w == g
	}
	return strings.Contains(g, w) || strings.Contains(w, g)
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
