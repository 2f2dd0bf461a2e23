package composer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasfish/internal/forecast"
	"tasfish/internal/llm"
	"tasfish/internal/logging"
	"tasfish/internal/rag"
	"tasfish/internal/router"
	"tasfish/internal/species"
	"tasfish/internal/tools"
)

func newComposer(t *testing.T, client llm.Client) *Composer {
	t.Helper()
	c, err := New(Config{Client: client, Logger: &logging.Recorder{}})
	require.NoError(t, err)
	return c
}

func guideChunks() []rag.Chunk {
	return []rag.Chunk{
		{ID: "guide:species:0", Text: "Flathead: minimum size 32 cm, bag limit 20 per day.", Source: "guide", Section: "species", Rank: 1},
		{ID: "guide:fishing_licence:0", Text: "No licence is needed for sea fishing with a rod and line.", Source: "guide", Section: "fishing_licence", Rank: 2},
	}
}

func TestBrownTroutVerdictIsRenderedWithoutGeneration(t *testing.T) {
	table, err := species.Load("", nil)
	require.NoError(t, err)
	verdict, err := table.Check("brown trout", 26)
	require.NoError(t, err)

	client := &llm.MockClient{}
	c := newComposer(t, client)
	decision := router.Decision{Kind: router.ToolOnly, NeedsTool: true, ToolName: "check_legal_size", Succeeded: true}

	answer := c.Compose(context.Background(), "Is a 26 cm brown trout legal?", decision, nil,
		tools.Ok{Tool: "check_legal_size", Payload: verdict})

	assert.True(t, strings.HasPrefix(answer, "Your 26 cm brown trout is legal to keep. The minimum size is 25 cm, so it is over the limit by 1.0 cm."))
	assert.Contains(t, answer, "**What else can I help with?**\n• Want to check another fish size?\n• Need to know the bag limit?")
	assert.Empty(t, client.Calls())
}

func TestNarratedVerdictUsesToolPrompt(t *testing.T) {
	client := llm.Reply("Yes, you can keep it.")
	c, err := New(Config{Client: client, NarrateVerdicts: true})
	require.NoError(t, err)

	verdict := species.Verdict{Species: "bream", LengthCM: 28, Legal: true, MinimumCM: 25, DeltaCM: 3}
	answer := c.Compose(context.Background(), "Is a 28cm bream ok?", router.Decision{Kind: router.ToolOnly},
		nil, tools.Ok{Tool: "check_legal_size", Payload: verdict})

	assert.Equal(t, "Yes, you can keep it.", answer)
	calls := client.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Prompt, llm.ToolResultOpen+"\n"+verdict.Summary()+"\n"+llm.ToolResultClose)
	assert.Contains(t, calls[0].System, "Tasmanian recreational fishing assistant")
}

func TestDocsOnlyWithoutPassagesReturnsNoAnswer(t *testing.T) {
	client := &llm.MockClient{}
	c := newComposer(t, client)

	answer := c.Compose(context.Background(), "What is the bag limit for snapper?", router.Decision{Kind: router.DocsOnly}, []rag.Chunk{}, nil)

	assert.Equal(t, NoAnswerMessage, answer)
	assert.Contains(t, answer, "https://ifs.tas.gov.au/")
	assert.Empty(t, client.Calls())
}

func TestDocsOnlyKeepsCitations(t *testing.T) {
	c := newComposer(t, llm.NewOfflineClient())

	answer := c.Compose(context.Background(), "What is the flathead bag limit?", router.Decision{Kind: router.DocsOnly}, guideChunks(), nil)

	assert.Contains(t, answer, "[Source: guide/species]")
	assert.Contains(t, answer, "bag limit 20 per day")
	assert.NotContains(t, answer, "fishing_licence", "only the primary passage is echoed")
	assert.Contains(t, answer, "• Want to know the size limits too?")
}

func TestToolErrorIsExplained(t *testing.T) {
	client := llm.Reply("I don't know that species.")
	c := newComposer(t, client)

	answer := c.Compose(context.Background(), "Is a 30cm snapper legal?", router.Decision{Kind: router.ToolOnly},
		nil, tools.Err{Tool: "check_legal_size", Code: "unknown_species", Detail: "Known species: bream, flathead."})

	assert.True(t, strings.HasPrefix(answer, "I don't know that species."))
	prompt := client.Calls()[0].Prompt
	assert.Contains(t, prompt, "error code unknown_species")
	assert.Contains(t, prompt, "Known species: bream, flathead.")
}

func TestDocsAndToolOrdersRegulationsBeforeConditions(t *testing.T) {
	client := llm.Reply("combined")
	c := newComposer(t, client)
	report := forecast.BuildReport("St Helens", []forecast.DailyForecast{
		{Date: "2026-10-18", TempAvgC: 17, WindKMH: 10, RainfallMM: 0, Conditions: "clear sky"},
	})

	answer := c.Compose(context.Background(), "Where should I fish near St Helens this weekend?", router.Decision{Kind: router.DocsAndTool},
		guideChunks(), tools.Ok{Tool: "get_fishing_weather", Payload: report})

	assert.True(t, strings.HasPrefix(answer, "combined"))
	prompt := client.Calls()[0].Prompt
	ctxAt := strings.Index(prompt, llm.ContextOpen)
	toolAt := strings.Index(prompt, llm.ToolResultOpen)
	require.True(t, ctxAt >= 0 && toolAt > ctxAt)
	assert.Contains(t, prompt, "Best fishing day: 2026-10-18, score 10/10 (Excellent)")
	assert.Contains(t, prompt, "[Source: guide/fishing_licence]")
}

func TestDocsAndToolWithoutPassagesUsesToolPhrasing(t *testing.T) {
	client := llm.Reply("tool only")
	c := newComposer(t, client)

	c.Compose(context.Background(), "weather and spots at Bruny?", router.Decision{Kind: router.DocsAndTool},
		nil, tools.Err{Tool: "get_fishing_weather", Code: "no_api_key", Detail: "Weather API key not configured"})

	prompt := client.Calls()[0].Prompt
	assert.NotContains(t, prompt, llm.ContextOpen)
	assert.Contains(t, prompt, "no_api_key")
}

func TestChatCannedReplies(t *testing.T) {
	client := &llm.MockClient{}
	c := newComposer(t, client)
	ctx := context.Background()
	chat := router.Decision{Kind: router.Chat}

	assert.Equal(t, greetingReply, c.Compose(ctx, "Hi there!", chat, nil, nil))
	assert.Equal(t, thanksReply, c.Compose(ctx, "thanks a lot", chat, nil, nil))
	assert.Equal(t, goodbyeReply, c.Compose(ctx, "bye", chat, nil, nil))
	assert.Contains(t, c.Compose(ctx, "help", chat, nil, nil), ExampleQueries[0])
	assert.Empty(t, client.Calls())
}

func TestChatOutOfScopeUsesGeneration(t *testing.T) {
	client := llm.Reply("I only know about fishing.")
	c := newComposer(t, client)

	answer := c.Compose(context.Background(), "What's the capital of France?", router.Decision{Kind: router.Chat}, nil, nil)

	assert.Equal(t, "I only know about fishing.", answer)
	assert.Contains(t, client.Calls()[0].Prompt, `"What's the capital of France?"`)
}

func TestFailuresBecomeUniformApology(t *testing.T) {
	failing := &llm.MockClient{CompleteFunc: func(context.Context, llm.Request) (llm.Response, error) {
		return llm.Response{}, errors.New("upstream down")
	}}
	panicking := &llm.MockClient{CompleteFunc: func(context.Context, llm.Request) (llm.Response, error) {
		panic("boom")
	}}
	empty := llm.Reply("   ")

	for name, client := range map[string]llm.Client{"error": failing, "panic": panicking, "empty": empty} {
		t.Run(name, func(t *testing.T) {
			c := newComposer(t, client)
			answer := c.Compose(context.Background(), "What is the flathead bag limit?", router.Decision{Kind: router.DocsOnly}, guideChunks(), nil)
			assert.Equal(t, ErrorMessage, answer)
		})
	}
}

func TestToolRouteWithoutResultIsAnError(t *testing.T) {
	c := newComposer(t, &llm.MockClient{})
	assert.Equal(t, ErrorMessage, c.Compose(context.Background(), "q", router.Decision{Kind: router.ToolOnly}, nil, nil))
}

func TestFollowUps(t *testing.T) {
	cases := map[string][]string{
		"How many bream can I take where I fish?": {"Want to know the size limits too?", "Need good locations for this species?"},
		"Where is Great Lake?":                    {"Would you like the weather forecast for this location?", "Want to know what species are there?"},
		"Do I need a licence?":                    {"Need to know the bag limits for your licence type?", "Want to know where to get your licence?"},
		"I caught a flathead":                     {"Want to check another fish size?", "Need to know the bag limit?"},
		"Tell me about abalone":                   nil,
	}
	for query, want := range cases {
		got := FollowUps(query)
		assert.Equal(t, want, got, query)
		assert.LessOrEqual(t, len(got), 2)
	}
	assert.Equal(t, "answer", WithFollowUps("answer", "Tell me about abalone"))
}

func TestDescribeResult(t *testing.T) {
	assert.Equal(t, "No tool result is available.", DescribeResult(nil))
	assert.Contains(t, DescribeResult(tools.Ok{Tool: "x", Payload: map[string]int{"a": 1}}), `"a": 1`)

	report := forecast.BuildReport("Hobart", []forecast.DailyForecast{
		{Date: "2026-10-18", TempAvgC: 12, TempMinC: 8, TempMaxC: 15, WindKMH: 30, RainfallMM: 12, HumidityPct: 80, Conditions: "light rain"},
		{Date: "2026-10-19", TempAvgC: 17, TempMinC: 12, TempMaxC: 20, WindKMH: 10, RainfallMM: 0, HumidityPct: 60, Conditions: "clear sky"},
	})
	text := DescribeResult(tools.Ok{Tool: "get_fishing_weather", Payload: report})
	assert.Contains(t, text, "Fishing forecast for Hobart (2 days):")
	assert.Contains(t, text, "- 2026-10-18: light rain, 12.0°C (min 8.0, max 15.0), wind 30.0 km/h, rain 12.0 mm, humidity 80%, fishing score 6/10 (Good)")
	assert.Contains(t, text, "Best fishing day: 2026-10-19, score 10/10 (Excellent)")
	assert.Contains(t, text, "Outlook: ")
}
