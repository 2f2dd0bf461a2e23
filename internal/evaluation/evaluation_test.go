package evaluation

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasfish/internal/assistant"
	"tasfish/internal/composer"
	"tasfish/internal/logging"
	"tasfish/internal/rag"
	"tasfish/internal/router"
	"tasfish/internal/tools"
)

type pipelineFunc func(ctx context.Context, query string) (assistant.Answer, error)

func (f pipelineFunc) Ask(ctx context.Context, query string) (assistant.Answer, error) {
	return f(ctx, query)
}

func TestDefaultSuiteLoads(t *testing.T) {
	suite, err := DefaultSuite()
	require.NoError(t, err)
	assert.Equal(t, "tasmania-fishing", suite.Name)
	assert.Len(t, suite.Passing, 8)
	assert.Len(t, suite.Difficult, 2)
	assert.Equal(t, map[string]string{"location": "Port Sorell"}, suite.Passing[6].ExpectedParams)
}

func TestLoadSuiteFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "suite.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: tiny\nversion: \"0.1\"\npassing:\n  - id: A\n    question: q\n    type: RAG\n"), 0o644))

	suite, err := LoadSuite(path)
	require.NoError(t, err)
	assert.Equal(t, "tiny", suite.Name)

	_, err = LoadSuite(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSuiteValidation(t *testing.T) {
	cases := map[string]string{
		"no name":        "version: \"1\"\npassing: [{id: A, question: q, type: RAG}]",
		"no version":     "name: x\npassing: [{id: A, question: q, type: RAG}]",
		"no cases":       "name: x\nversion: \"1\"",
		"duplicate id":   "name: x\nversion: \"1\"\npassing: [{id: A, question: q, type: RAG}]\ndifficult: [{id: A, question: q}]",
		"unknown type":   "name: x\nversion: \"1\"\npassing: [{id: A, question: q, type: Weather}]",
		"tool missing":   "name: x\nversion: \"1\"\npassing: [{id: A, question: q, type: Tool}]",
		"empty question": "name: x\nversion: \"1\"\npassing: [{id: A, question: \" \", type: RAG}]",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseSuite([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestEvaluateCaseChecksRouteToolAndFacts(t *testing.T) {
	pipeline := pipelineFunc(func(_ context.Context, query string) (assistant.Answer, error) {
		return assistant.Answer{
			Query: query,
			Text:  "Flathead must be 32 cm.",
			Decision: router.Decision{
				Kind: router.DocsAndTool, NeedsDocs: true, NeedsTool: true,
				ToolName: "get_fishing_weather", ToolParams: map[string]any{"location": "burnie"}, Succeeded: true,
			},
			Chunks: []rag.Chunk{{Text: "Flathead: 32 cm total length, 20 per day", Source: "tas_fishing_guide", Section: "species"}},
		}, nil
	})
	runner := NewRunner(pipeline, &logging.Recorder{})

	result := runner.EvaluateCase(context.Background(), Case{
		ID: "P8", Question: "flathead at Burnie?", Type: TypeBoth,
		ExpectedTool: "get_fishing_weather", ExpectedParams: map[string]string{"location": "Burnie"},
		ExpectedCitations: []string{"tas_fishing_guide/species"}, KeyFacts: []string{"20 per day"},
	})

	assert.True(t, result.Passed(), result.Problems)
	assert.Equal(t, []string{"tas_fishing_guide/species"}, result.Citations)
}

func TestEvaluateCaseReportsProblems(t *testing.T) {
	pipeline := pipelineFunc(func(context.Context, string) (assistant.Answer, error) {
		return assistant.Answer{
			Text:     "Something unrelated.",
			Decision: router.Decision{Kind: router.DocsOnly, NeedsDocs: true, Succeeded: true},
			Chunks:   []rag.Chunk{{Text: "licence info", Source: "tas_fishing_guide", Section: "fishing_licence"}},
		}, nil
	})
	runner := NewRunner(pipeline, nil)

	result := runner.EvaluateCase(context.Background(), Case{
		ID: "P4", Question: "weather?", Type: TypeTool,
		ExpectedTool: "get_fishing_weather", ExpectedParams: map[string]string{"location": "Hobart"},
		ExpectedCitations: []string{"tas_fishing_guide/species"}, KeyFacts: []string{"12 per day"},
	})

	assert.False(t, result.Passed())
	assert.False(t, result.RoutingCorrect)
	assert.False(t, result.ToolCorrect)
	assert.False(t, result.RAGCorrect)
	assert.False(t, result.FactsVerified)
	assert.Len(t, result.Problems, 5)
}

func TestRouteMatches(t *testing.T) {
	docs := router.Decision{NeedsDocs: true}
	tool := router.Decision{NeedsTool: true}
	both := router.Decision{NeedsDocs: true, NeedsTool: true}

	assert.True(t, routeMatches(TypeRAG, docs))
	assert.False(t, routeMatches(TypeRAG, both))
	assert.True(t, routeMatches(TypeTool, tool))
	assert.True(t, routeMatches(TypeTool, both))
	assert.False(t, routeMatches(TypeBoth, tool))
	assert.True(t, routeMatches(TypeBoth, both))
	assert.False(t, routeMatches("Other", both))
}

func TestHasCitation(t *testing.T) {
	chunks := []rag.Chunk{{Source: "tas_fishing_guide", Section: "species"}}
	assert.True(t, hasCitation("tas_fishing_guide/species", chunks))
	assert.True(t, hasCitation("TAS_FISHING_GUIDE", chunks))
	assert.False(t, hasCitation("tas_fishing_guide/fishing_licence", chunks))
	assert.False(t, hasCitation("tas_fishing_guide/species", nil))
}

func TestDifficultCaseAcknowledgment(t *testing.T) {
	replies := map[string]assistant.Answer{
		"kingfish": {
			Text:     composer.NoAnswerMessage,
			Decision: router.Decision{Kind: router.DocsOnly, NeedsDocs: true, Succeeded: true},
			Chunks:   []rag.Chunk{},
		},
		"lobster": {
			Text:       "Rock lobster limits are 2 per day.",
			Decision:   router.Decision{Kind: router.DocsOnly, NeedsDocs: true},
			Chunks:     []rag.Chunk{{Text: "2 per day"}},
			ToolResult: tools.Err{Tool: "x", Code: "boom"},
		},
	}
	runner := NewRunner(pipelineFunc(func(_ context.Context, query string) (assistant.Answer, error) {
		return replies[query], nil
	}), &logging.Recorder{})

	ok := runner.EvaluateDifficult(context.Background(), DifficultCase{ID: "D1", Question: "kingfish"})
	assert.True(t, ok.Acknowledged)
	assert.Equal(t, []string{"no passages retrieved"}, ok.FailureModes)

	bad := runner.EvaluateDifficult(context.Background(), DifficultCase{ID: "D2", Question: "lobster"})
	assert.False(t, bad.Acknowledged)
	assert.Equal(t, []string{
		"routing fell back to document search",
		"tool call failed",
		"answered without acknowledging missing information",
	}, bad.FailureModes)
}

func TestAcknowledges(t *testing.T) {
	assert.True(t, Acknowledges("Sorry, I don't have details on kingfish."))
	assert.True(t, Acknowledges("I recommend checking the IFS website."))
	assert.False(t, Acknowledges("The bag limit is 5."))
}

func TestRunProducesReport(t *testing.T) {
	suite, err := DefaultSuite()
	require.NoError(t, err)

	calls := 0
	pipeline := pipelineFunc(func(_ context.Context, query string) (assistant.Answer, error) {
		calls++
		if query == suite.Passing[0].Question {
			return assistant.Answer{}, errors.New("offline")
		}
		return assistant.Answer{Text: composer.NoAnswerMessage, Decision: router.Decision{Kind: router.DocsOnly, NeedsDocs: true, Succeeded: true}}, nil
	})

	report, err := NewRunner(pipeline, &logging.Recorder{}).Run(context.Background(), suite)
	require.NoError(t, err)
	assert.Equal(t, 10, calls)
	require.Len(t, report.Passing, 8)
	require.Len(t, report.Difficult, 2)
	assert.Error(t, report.Passing[0].Err)

	summary := report.Summary()
	assert.Equal(t, 8, summary.Total)
	assert.Equal(t, 2, summary.Acknowledged)
	assert.Equal(t, 3, summary.ByType[TypeRAG].Total)

	var buf bytes.Buffer
	require.NoError(t, WriteMarkdown(&buf, report))
	md := buf.String()
	assert.Contains(t, md, "# Evaluation Report: tasmania-fishing")
	assert.Contains(t, md, "### P1 [FAIL]")
	assert.Contains(t, md, "### D1 [ACKNOWLEDGED]")
	assert.Contains(t, md, "| RAG |")
}

func TestRunStopsOnCancel(t *testing.T) {
	suite, err := DefaultSuite()
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := NewRunner(pipelineFunc(func(context.Context, string) (assistant.Answer, error) {
		t.Fatal("pipeline must not be called after cancel")
		return assistant.Answer{}, nil
	}), &logging.Recorder{}).Run(ctx, suite)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, report.Passing)
}
