package router

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasfish/internal/llm"
	"tasfish/internal/species"
	"tasfish/internal/tools"
	"tasfish/internal/tools/builtin"
)

func TestKindFor(t *testing.T) {
	assert.Equal(t, DocsAndTool, KindFor(true, true))
	assert.Equal(t, ToolOnly, KindFor(false, true))
	assert.Equal(t, DocsOnly, KindFor(true, false))
	assert.Equal(t, Chat, KindFor(false, false))
}

func TestKindTextRoundTrip(t *testing.T) {
	data, err := json.Marshal(Decision{Kind: DocsAndTool})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"kind":"docs_and_tool"`)

	var d Decision
	require.NoError(t, json.Unmarshal([]byte(`{"kind":"tool_only"}`), &d))
	assert.Equal(t, ToolOnly, d.Kind)
	assert.Error(t, json.Unmarshal([]byte(`{"kind":"sideways"}`), &d))
}

func TestExtractJSON(t *testing.T) {
	cases := map[string]string{
		"fenced":     "Sure!\n```json\n{\"a\": {\"b\": 1}}\n```\nthanks",
		"bare fence": "```\n{\"a\": {\"b\": 1}}\n```",
		"braces":     "Decision: {\"a\": {\"b\": 1}} done",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, `{"a": {"b": 1}}`, ExtractJSON(raw))
		})
	}
	assert.Empty(t, ExtractJSON("no json here"))
	assert.Empty(t, ExtractJSON("} backwards {"))
}

func TestParseDecisionMapsFlags(t *testing.T) {
	d, err := ParseDecision(`{"needs_rag": true, "needs_tool": true, "tool_name": "check_legal_size",
		"tool_params": {"species": "bream", "length_cm": 28}, "reasoning": "size and rules"}`)
	require.NoError(t, err)
	assert.Equal(t, DocsAndTool, d.Kind)
	assert.True(t, d.Succeeded)
	assert.Equal(t, "check_legal_size", d.ToolName)
	assert.Equal(t, "bream", d.ToolParams["species"])
	assert.Equal(t, "size and rules", d.Rationale)
}

func TestParseDecisionDropsToolWhenNotNeeded(t *testing.T) {
	d, err := ParseDecision(`{"needs_rag": true, "needs_tool": false, "tool_name": "get_fishing_weather", "tool_params": {"location": "Hobart"}}`)
	require.NoError(t, err)
	assert.Equal(t, DocsOnly, d.Kind)
	assert.Empty(t, d.ToolName)
	assert.Nil(t, d.ToolParams)
	assert.Equal(t, "LLM routing decision", d.Rationale)
}

func TestParseDecisionToolWithoutParams(t *testing.T) {
	d, err := ParseDecision(`{"needs_rag": false, "needs_tool": true, "tool_name": "get_fishing_weather", "tool_params": null}`)
	require.NoError(t, err)
	assert.Equal(t, ToolOnly, d.Kind)
	assert.NotNil(t, d.ToolParams)
	assert.Empty(t, d.ToolParams)
}

func TestParseDecisionRepairsSloppyJSON(t *testing.T) {
	d, err := ParseDecision(`{needs_rag: false, needs_tool: false, reasoning: 'just saying hi',}`)
	require.NoError(t, err)
	assert.Equal(t, Chat, d.Kind)
}

func TestParseDecisionRejects(t *testing.T) {
	for name, raw := range map[string]string{
		"garbage":         "I think you should look at the documents.",
		"missing flags":   `{"tool_name": null}`,
		"tool no name":    `{"needs_rag": false, "needs_tool": true, "tool_name": null}`,
		"wrong flag type": `{"needs_rag": "maybe", "needs_tool": false}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseDecision(raw)
			assert.Error(t, err)
		})
	}
}

func TestLLMClassifierFallsBackOnGarbage(t *testing.T) {
	client := llm.Reply("¯\\_(ツ)_/¯ not json at all")
	c, err := NewLLMClassifier(LLMConfig{Client: client})
	require.NoError(t, err)

	d := c.Classify(context.Background(), "Is a 28cm bream legal?")
	assert.Equal(t, DocsOnly, d.Kind)
	assert.False(t, d.Succeeded)
	assert.True(t, d.NeedsDocs)
	assert.False(t, d.NeedsTool)
	assert.Empty(t, d.ToolName)
	assert.NotEmpty(t, d.Rationale)
}

func TestLLMClassifierRequestsZeroTemperature(t *testing.T) {
	client := llm.Reply(`{"needs_rag": false, "needs_tool": false, "reasoning": "greeting"}`)
	c, err := NewLLMClassifier(LLMConfig{Client: client})
	require.NoError(t, err)

	d := c.Classify(context.Background(), "hi there")
	assert.Equal(t, Chat, d.Kind)

	calls := client.Calls()
	require.Len(t, calls, 1)
	require.NotNil(t, calls[0].Temperature)
	assert.Zero(t, *calls[0].Temperature)
}

func TestLLMClassifierFallsBackOnProviderError(t *testing.T) {
	client := &llm.MockClient{CompleteFunc: func(context.Context, llm.Request) (llm.Response, error) {
		return llm.Response{}, errors.New("connection refused")
	}}
	c, err := NewLLMClassifier(LLMConfig{Client: client})
	require.NoError(t, err)

	d := c.Classify(context.Background(), "hello")
	assert.Equal(t, DocsOnly, d.Kind)
	assert.False(t, d.Succeeded)
}

func TestLLMClassifierPromptListsTools(t *testing.T) {
	table := testTable(t)
	client := llm.Reply("```json\n{\"needs_rag\": false, \"needs_tool\": true, \"tool_name\": \"check_legal_size\", \"tool_params\": {\"species\": \"brown trout\", \"length_cm\": 26}}\n```")
	c, err := NewLLMClassifier(LLMConfig{
		Client: client,
		Tools:  []tools.Definition{builtin.NewLegalSize(table).Definition()},
	})
	require.NoError(t, err)

	d := c.Classify(context.Background(), "Is a 26 cm brown trout legal?")
	assert.True(t, d.Succeeded)
	assert.Equal(t, ToolOnly, d.Kind)
	assert.Equal(t, 26.0, d.ToolParams["length_cm"])

	calls := client.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].System, `"check_legal_size"`)
	assert.Contains(t, calls[0].System, "length_cm")
	assert.True(t, strings.HasSuffix(calls[0].Prompt, "Is a 26 cm brown trout legal?"))
}

func TestNewLLMClassifierRequiresClient(t *testing.T) {
	_, err := NewLLMClassifier(LLMConfig{})
	assert.Error(t, err)
}

func testTable(t *testing.T) *species.Table {
	t.Helper()
	table, err := species.Load("", nil)
	require.NoError(t, err)
	return table
}

func TestRuleClassifier(t *testing.T) {
	c := NewRuleClassifier(testTable(t))
	ctx := context.Background()

	cases := []struct {
		query  string
		kind   Kind
		tool   string
		params map[string]any
	}{
		{"What are the bag limits for flathead?", DocsOnly, "", nil},
		{"Is a 28cm bream legal to keep?", ToolOnly, builtin.LegalSizeToolName,
			map[string]any{"species": "bream", "length_cm": 28.0}},
		{"Is a 26 cm brownie legal?", ToolOnly, builtin.LegalSizeToolName,
			map[string]any{"species": "brown trout", "length_cm": 26.0}},
		{"I caught a 350mm flathead, can I keep it and what is the bag limit?", DocsAndTool, builtin.LegalSizeToolName,
			map[string]any{"species": "flathead", "length_cm": 35.0}},
		{"What's the weather in Hobart this weekend?", ToolOnly, builtin.FishingWeatherToolName,
			map[string]any{"location": "Hobart", "days": 5}},
		{"Fishing conditions at St Helens tomorrow, and where are the best spots?", DocsAndTool, builtin.FishingWeatherToolName,
			map[string]any{"location": "St Helens", "days": 2}},
		{"3 day forecast for launceston", ToolOnly, builtin.FishingWeatherToolName,
			map[string]any{"location": "launceston", "days": 3}},
		{"Where can I fish in the Derwent River?", DocsOnly, "", nil},
		{"What licence do I need for rock lobster fishing?", DocsOnly, "", nil},
		{"hello", Chat, "", nil},
		{"What's the capital of France?", Chat, "", nil},
	}
	for _, tc := range cases {
		t.Run(tc.query, func(t *testing.T) {
			d := c.Classify(ctx, tc.query)
			assert.True(t, d.Succeeded)
			assert.Equal(t, tc.kind, d.Kind, d.Rationale)
			assert.Equal(t, tc.tool, d.ToolName)
			assert.Equal(t, tc.tool != "", d.NeedsTool)
			if tc.params != nil {
				assert.Equal(t, tc.params, d.ToolParams)
			}
		})
	}
}

func TestRuleClassifierUnknownSpeciesStillChecks(t *testing.T) {
	d := NewRuleClassifier(testTable(t)).Classify(context.Background(), "Is a 30cm snapper legal?")
	assert.Equal(t, ToolOnly, d.Kind)
	assert.Equal(t, "snapper", d.ToolParams["species"])
}

func TestRuleClassifierWeatherWithoutPlace(t *testing.T) {
	d := NewRuleClassifier(nil).Classify(context.Background(), "what's the weather like?")
	assert.Equal(t, ToolOnly, d.Kind)
	_, ok := d.ToolParams["location"]
	assert.False(t, ok)
}

func TestFallbackNeverCallsTool(t *testing.T) {
	d := Fallback("bad output")
	assert.Equal(t, DocsOnly, d.Kind)
	assert.False(t, d.Succeeded)
	assert.False(t, d.NeedsTool)
	assert.Contains(t, d.String(), `"succeeded":false`)
}
