// Package assistant runs the question pipeline: classify, gather documents
// and tool output, then compose the answer.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"tasfish/internal/composer"
	"tasfish/internal/logging"
	"tasfish/internal/observability"
	"tasfish/internal/rag"
	"tasfish/internal/rag/gate"
	"tasfish/internal/router"
	"tasfish/internal/tools"
)

// ErrEmptyQuery is returned for blank questions.
var ErrEmptyQuery = errors.New("question is empty")

// DefaultRetrievalTimeout bounds one document search.
const DefaultRetrievalTimeout = 15 * time.Second

// ToolInvoker dispatches a named tool call.
type ToolInvoker interface {
	Invoke(ctx context.Context, name string, params map[string]any) tools.Result
}

// Composer writes the final answer.
type Composer interface {
	Compose(ctx context.Context, query string, decision router.Decision, chunks []rag.Chunk, result tools.Result) string
}

// QueryNormalizer rewrites species aliases before retrieval.
type QueryNormalizer interface {
	NormalizeQuery(query string) string
}

// Config wires the pipeline. Classifier, Searcher, Tools and Composer are
// required.
type Config struct {
	Classifier       router.Classifier
	Searcher         rag.Searcher
	Tools            ToolInvoker
	Composer         Composer
	Normalizer       QueryNormalizer
	TopK             int
	RetrievalTimeout time.Duration
	Evaluator        *gate.Evaluator
	Logger           logging.Logger
	Metrics          *observability.MetricsCollector
	Tracer           *observability.TracerProvider
}

// Answer is the pipeline output with the intermediate results attached.
type Answer struct {
	Query      string          `json:"query"`
	Text       string          `json:"answer"`
	Decision   router.Decision `json:"decision"`
	Chunks     []rag.Chunk     `json:"sources"`
	ToolResult tools.Result    `json:"tool_result,omitempty"`
	Latency    time.Duration   `json:"latency"`
}

// Assistant answers questions. It is safe for concurrent use.
type Assistant struct {
	classifier router.Classifier
	searcher   rag.Searcher
	tools      ToolInvoker
	composer   Composer
	normalizer QueryNormalizer
	topK       int
	timeout    time.Duration
	evaluator  *gate.Evaluator
	logger     logging.Logger
	metrics    *observability.MetricsCollector
	tracer     *observability.TracerProvider
}

// New validates config and builds the assistant.
func New(config Config) (*Assistant, error) {
	switch {
	case config.Classifier == nil:
		return nil, fmt.Errorf("assistant: classifier is required")
	case config.Searcher == nil:
		return nil, fmt.Errorf("assistant: searcher is required")
	case config.Tools == nil:
		return nil, fmt.Errorf("assistant: tool invoker is required")
	case config.Composer == nil:
		return nil, fmt.Errorf("assistant: composer is required")
	}
	a := &Assistant{
		classifier: config.Classifier,
		searcher:   config.Searcher,
		tools:      config.Tools,
		composer:   config.Composer,
		normalizer: config.Normalizer,
		topK:       config.TopK,
		timeout:    config.RetrievalTimeout,
		evaluator:  config.Evaluator,
		logger:     config.Logger,
		metrics:    config.Metrics,
		tracer:     config.Tracer,
	}
	if a.topK <= 0 {
		a.topK = 5
	}
	if a.timeout <= 0 {
		a.timeout = DefaultRetrievalTimeout
	}
	if logging.IsNil(a.logger) {
		a.logger = logging.NewComponentLogger("assistant")
	}
	return a, nil
}

// Route classifies query without answering it.
func (a *Assistant) Route(ctx context.Context, query string) (router.Decision, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return router.Decision{}, ErrEmptyQuery
	}
	decision := a.classifier.Classify(ctx, query)
	a.metrics.RecordRoute(ctx, decision.Kind.String(), decision.Succeeded)
	return decision, nil
}

// Ask answers query. The only error is ErrEmptyQuery; every other problem
// degrades into the answer text.
func (a *Assistant) Ask(ctx context.Context, query string) (Answer, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Answer{}, ErrEmptyQuery
	}
	start := time.Now()
	ctx, span := a.tracer.StartSpan(ctx, observability.SpanAnswer)
	defer span.End()

	decision, _ := a.Route(ctx, query)
	span.SetAttributes(attribute.String(observability.AttrRoute, decision.Kind.String()))
	a.logger.Info("route %s for %q (%s)", decision.Kind, query, decision.Rationale)

	var (
		chunks []rag.Chunk
		result tools.Result
	)
	switch decision.Kind {
	case router.DocsOnly:
		chunks = a.retrieve(ctx, query)
	case router.ToolOnly:
		result = a.invoke(ctx, decision)
	case router.DocsAndTool:
		// Join semantics: neither branch returns an error, so one side
		// failing never cancels the other.
		var g errgroup.Group
		g.Go(func() error {
			chunks = a.retrieve(ctx, query)
			return nil
		})
		g.Go(func() error {
			result = a.invoke(ctx, decision)
			return nil
		})
		_ = g.Wait()
	}

	text := a.composer.Compose(ctx, query, decision, chunks, result)
	answer := Answer{
		Query:      query,
		Text:       text,
		Decision:   decision,
		Chunks:     chunks,
		ToolResult: result,
		Latency:    time.Since(start),
	}
	a.record(ctx, answer)
	return answer, nil
}

func (a *Assistant) retrieve(ctx context.Context, query string) []rag.Chunk {
	if a.normalizer != nil {
		query = a.normalizer.NormalizeQuery(query)
	}
	searchCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	chunks, err := a.searcher.Search(searchCtx, query, a.topK, "")
	if err != nil {
		a.logger.Warn("retrieval failed for %q: %v", query, err)
		return []rag.Chunk{}
	}
	return chunks
}

func (a *Assistant) invoke(ctx context.Context, decision router.Decision) tools.Result {
	params := decision.ToolParams
	if params == nil {
		params = map[string]any{}
	}
	result := a.tools.Invoke(ctx, decision.ToolName, params)
	if r, ok := result.(tools.Err); ok {
		a.logger.Info("tool %s failed with %s", r.Tool, r.Code)
	}
	return result
}

// Status labels an answer for metrics and outcome tracking.
func Status(answer Answer) string {
	switch {
	case answer.Text == composer.ErrorMessage:
		return "error"
	case answer.Text == composer.NoAnswerMessage:
		return "no_answer"
	case answer.ToolResult != nil && !tools.IsOk(answer.ToolResult):
		return "tool_error"
	default:
		return "ok"
	}
}

func (a *Assistant) record(ctx context.Context, answer Answer) {
	status := Status(answer)
	route := answer.Decision.Kind.String()
	a.metrics.RecordAnswer(ctx, route, status, answer.Latency)

	outcome := gate.Outcome{
		Route:           route,
		Succeeded:       status == "ok",
		Fallback:        !answer.Decision.Succeeded,
		RetrievedChunks: len(answer.Chunks),
		Latency:         answer.Latency,
	}
	if answer.ToolResult != nil {
		outcome.ToolCalls = 1
		if !tools.IsOk(answer.ToolResult) {
			outcome.ToolFailures = 1
		}
	}
	a.evaluator.RecordOutcome(outcome)
}

// Stats returns the rolling outcome summary.
func (a *Assistant) Stats() gate.Summary {
	return a.evaluator.Snapshot()
}
