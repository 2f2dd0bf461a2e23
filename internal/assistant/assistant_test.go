package assistant

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasfish/internal/composer"
	"tasfish/internal/llm"
	"tasfish/internal/logging"
	"tasfish/internal/rag"
	"tasfish/internal/rag/gate"
	"tasfish/internal/router"
	"tasfish/internal/species"
	"tasfish/internal/toolregistry"
	"tasfish/internal/tools"
	"tasfish/internal/tools/builtin"
)

type fakeSearcher struct {
	mu      sync.Mutex
	chunks  []rag.Chunk
	err     error
	queries []string
	before  func()
}

func (f *fakeSearcher) Search(_ context.Context, query string, _ int, _ string) ([]rag.Chunk, error) {
	if f.before != nil {
		f.before()
	}
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.chunks, nil
}

type fixedClassifier router.Decision

func (f fixedClassifier) Classify(context.Context, string) router.Decision { return router.Decision(f) }

type invokerFunc func(ctx context.Context, name string, params map[string]any) tools.Result

func (f invokerFunc) Invoke(ctx context.Context, name string, params map[string]any) tools.Result {
	return f(ctx, name, params)
}

func loadTable(t *testing.T) *species.Table {
	t.Helper()
	table, err := species.Load("", nil)
	require.NoError(t, err)
	return table
}

func newPipeline(t *testing.T, classifier router.Classifier, searcher rag.Searcher, invoker ToolInvoker, evaluator *gate.Evaluator) *Assistant {
	t.Helper()
	comp, err := composer.New(composer.Config{Client: llm.NewOfflineClient(), Logger: &logging.Recorder{}})
	require.NoError(t, err)
	a, err := New(Config{
		Classifier: classifier,
		Searcher:   searcher,
		Tools:      invoker,
		Composer:   comp,
		Normalizer: loadTable(t),
		Evaluator:  evaluator,
		Logger:     &logging.Recorder{},
	})
	require.NoError(t, err)
	return a
}

func TestBrownTroutSizeCheckEndToEnd(t *testing.T) {
	table := loadTable(t)
	registry, err := toolregistry.New(toolregistry.Config{}, builtin.NewLegalSize(table))
	require.NoError(t, err)
	searcher := &fakeSearcher{}
	evaluator := gate.NewEvaluator(10)

	a := newPipeline(t, router.NewRuleClassifier(table), searcher, registry, evaluator)
	answer, err := a.Ask(context.Background(), "Is a 26 cm brown trout legal to keep?")
	require.NoError(t, err)

	assert.Equal(t, router.ToolOnly, answer.Decision.Kind)
	assert.Contains(t, answer.Text, "Your 26 cm brown trout is legal to keep")
	assert.Contains(t, answer.Text, "over the limit by 1.0 cm")
	require.IsType(t, tools.Ok{}, answer.ToolResult)
	verdict := answer.ToolResult.(tools.Ok).Payload.(species.Verdict)
	assert.True(t, verdict.Legal)
	assert.InDelta(t, 1.0, verdict.DeltaCM, 1e-9)
	assert.Empty(t, searcher.queries, "tool-only route must not search")

	stats := a.Stats()
	assert.Equal(t, 1, stats.TotalOutcomes)
	assert.Equal(t, 1, stats.Routes["tool_only"].Count)
}

func TestDocsOnlyEmptyRetrievalReturnsNoAnswer(t *testing.T) {
	searcher := &fakeSearcher{chunks: []rag.Chunk{}}
	invoked := false
	invoker := invokerFunc(func(context.Context, string, map[string]any) tools.Result {
		invoked = true
		return nil
	})
	a := newPipeline(t, fixedClassifier{Kind: router.DocsOnly, NeedsDocs: true, Succeeded: true}, searcher, invoker, nil)

	answer, err := a.Ask(context.Background(), "What is the bag limit for brownies?")
	require.NoError(t, err)

	assert.Equal(t, composer.NoAnswerMessage, answer.Text)
	assert.False(t, invoked)
	require.Len(t, searcher.queries, 1)
	assert.Equal(t, "what is the bag limit for brown trout?", searcher.queries[0])
	assert.Equal(t, "no_answer", Status(answer))
}

func TestRetrievalErrorDegradesToNoAnswer(t *testing.T) {
	searcher := &fakeSearcher{err: errors.New("index unavailable")}
	a := newPipeline(t, fixedClassifier{Kind: router.DocsOnly, NeedsDocs: true, Succeeded: true}, searcher, invokerFunc(nil), nil)

	answer, err := a.Ask(context.Background(), "What licence do I need?")
	require.NoError(t, err)
	assert.Equal(t, composer.NoAnswerMessage, answer.Text)
	assert.NotNil(t, answer.Chunks)
}

func TestDocsAndToolRunsBothConcurrently(t *testing.T) {
	toolStarted := make(chan struct{})
	searcher := &fakeSearcher{
		chunks: []rag.Chunk{{Text: "St Helens: flathead and bream from the shore.", Source: "guide", Section: "hot_fishing_spots", Rank: 1}},
		before: func() {
			select {
			case <-toolStarted:
			case <-time.After(2 * time.Second):
			}
		},
	}
	invoker := invokerFunc(func(_ context.Context, name string, params map[string]any) tools.Result {
		close(toolStarted)
		assert.Equal(t, "St Helens", params["location"])
		return tools.Err{Tool: name, Code: "no_api_key", Detail: "Weather API key not configured"}
	})
	decision := router.Decision{
		Kind: router.DocsAndTool, NeedsDocs: true, NeedsTool: true,
		ToolName: builtin.FishingWeatherToolName, ToolParams: map[string]any{"location": "St Helens"}, Succeeded: true,
	}
	evaluator := gate.NewEvaluator(10)
	a := newPipeline(t, fixedClassifier(decision), searcher, invoker, evaluator)

	start := time.Now()
	answer, err := a.Ask(context.Background(), "Where can I fish at St Helens and what's the weather?")
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 2*time.Second, "retrieval waited for the tool, so both ran at once")
	assert.Len(t, answer.Chunks, 1)
	assert.Contains(t, answer.Text, "[Source: guide/hot_fishing_spots]")
	assert.Contains(t, answer.Text, "no_api_key")
	assert.Equal(t, "tool_error", Status(answer))

	summary := evaluator.Snapshot().Routes["docs_and_tool"]
	assert.Equal(t, 1, summary.Count)
	assert.Equal(t, 1.0, summary.ToolFailureRate)
}

func TestFallbackDecisionIsRecorded(t *testing.T) {
	client := llm.Reply("no idea")
	classifier, err := router.NewLLMClassifier(router.LLMConfig{Client: client})
	require.NoError(t, err)
	evaluator := gate.NewEvaluator(10)
	a := newPipeline(t, classifier, &fakeSearcher{chunks: []rag.Chunk{}}, invokerFunc(nil), evaluator)

	answer, err := a.Ask(context.Background(), "Is a 28cm bream legal?")
	require.NoError(t, err)
	assert.Equal(t, router.DocsOnly, answer.Decision.Kind)
	assert.False(t, answer.Decision.Succeeded)
	assert.Nil(t, answer.ToolResult)
	assert.Equal(t, 1.0, evaluator.Snapshot().FallbackRate)
}

func TestEmptyQuery(t *testing.T) {
	a := newPipeline(t, fixedClassifier{}, &fakeSearcher{}, invokerFunc(nil), nil)
	_, err := a.Ask(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyQuery)
	_, err = a.Route(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}
