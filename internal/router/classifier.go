package router

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/kaptinlin/jsonrepair"
	"go.opentelemetry.io/otel/attribute"

	"tasfish/internal/llm"
	"tasfish/internal/logging"
	"tasfish/internal/observability"
	"tasfish/internal/prompts"
	"tasfish/internal/tools"
)

// DefaultTimeout bounds one classification call.
const DefaultTimeout = 20 * time.Second

// LLMConfig holds the collaborators of an LLMClassifier.
type LLMConfig struct {
	Client  llm.Client
	Tools   []tools.Definition
	Timeout time.Duration
	Logger  logging.Logger
	Tracer  *observability.TracerProvider
}

// LLMClassifier asks a text-generation model for a JSON routing decision.
type LLMClassifier struct {
	client  llm.Client
	system  string
	timeout time.Duration
	logger  logging.Logger
	tracer  *observability.TracerProvider
}

// NewLLMClassifier builds the classifier. The routing instructions are
// rendered once from the tool definitions.
func NewLLMClassifier(config LLMConfig) (*LLMClassifier, error) {
	if config.Client == nil {
		return nil, fmt.Errorf("router: llm client is required")
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger := config.Logger
	if logging.IsNil(logger) {
		logger = logging.NewComponentLogger("router")
	}
	return &LLMClassifier{
		client:  config.Client,
		system:  RoutingInstructions(config.Tools),
		timeout: timeout,
		logger:  logger,
		tracer:  config.Tracer,
	}, nil
}

// Classify never returns an error. Generation or parse failures produce a
// Fallback decision.
func (c *LLMClassifier) Classify(ctx context.Context, query string) Decision {
	ctx, span := c.tracer.StartSpan(ctx, observability.SpanRoute)
	defer span.End()

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := llm.Text(callCtx, c.client, llm.Request{
		System:      c.system,
		Prompt:      "User Question: " + query,
		Temperature: llm.Float(0),
		MaxTokens:   300,
	})
	if err != nil {
		c.logger.Warn("routing call failed, searching documents instead: %v", err)
		span.RecordError(err)
		return Fallback("routing call failed")
	}

	decision, err := ParseDecision(raw)
	if err != nil {
		c.logger.Warn("routing output unusable, searching documents instead: %v", err)
		decision = Fallback(err.Error())
	}
	span.SetAttributes(attribute.String(observability.AttrRoute, decision.Kind.String()))
	c.logger.Debug("route=%s tool=%q succeeded=%t", decision.Kind, decision.ToolName, decision.Succeeded)
	return decision
}

type routingPayload struct {
	NeedsRAG   *bool          `json:"needs_rag"`
	NeedsTool  *bool          `json:"needs_tool"`
	ToolName   *string        `json:"tool_name"`
	ToolParams map[string]any `json:"tool_params"`
	Reasoning  string         `json:"reasoning"`
}

// ParseDecision turns raw model output into a successful decision. It
// returns an error when no JSON object can be recovered or a required field
// is missing.
func ParseDecision(raw string) (Decision, error) {
	obj := ExtractJSON(raw)
	if obj == "" {
		return Decision{}, fmt.Errorf("no JSON object in routing output")
	}

	var payload routingPayload
	if err := json.Unmarshal([]byte(obj), &payload); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(obj)
		if repairErr != nil {
			return Decision{}, fmt.Errorf("parse routing JSON: %w", err)
		}
		payload = routingPayload{}
		if err := json.Unmarshal([]byte(repaired), &payload); err != nil {
			return Decision{}, fmt.Errorf("parse repaired routing JSON: %w", err)
		}
	}

	if payload.NeedsRAG == nil || payload.NeedsTool == nil {
		return Decision{}, fmt.Errorf("routing JSON lacks needs_rag or needs_tool")
	}
	toolName := ""
	if payload.ToolName != nil {
		toolName = strings.TrimSpace(*payload.ToolName)
	}
	needsTool := *payload.NeedsTool
	if needsTool && toolName == "" {
		return Decision{}, fmt.Errorf("needs_tool set without tool_name")
	}
	if !needsTool {
		toolName = ""
		payload.ToolParams = nil
	}
	if needsTool && payload.ToolParams == nil {
		payload.ToolParams = map[string]any{}
	}

	reasoning := strings.TrimSpace(payload.Reasoning)
	if reasoning == "" {
		reasoning = "LLM routing decision"
	}
	return Decision{
		Kind:       KindFor(*payload.NeedsRAG, needsTool),
		NeedsDocs:  *payload.NeedsRAG,
		NeedsTool:  needsTool,
		ToolName:   toolName,
		ToolParams: payload.ToolParams,
		Rationale:  reasoning,
		Succeeded:  true,
	}, nil
}

var fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// ExtractJSON returns the JSON object inside raw: a fenced block when one is
// present, otherwise the text from the first '{' to the last '}'.
func ExtractJSON(raw string) string {
	text := strings.TrimSpace(raw)
	if m := fencedJSON.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}

// RoutingInstructions renders the system prompt for the classifier.
func RoutingInstructions(defs []tools.Definition) string {
	var b strings.Builder
	for _, def := range defs {
		fmt.Fprintf(&b, "- Tool %q: %s\n", def.Name, def.Description)
		for _, name := range sortedKeys(def.Parameters.Properties) {
			prop := def.Parameters.Properties[name]
			fmt.Fprintf(&b, "    %s (%s): %s\n", name, prop.Type, prop.Description)
		}
	}
	return prompts.Default().MustRender(prompts.Routing, map[string]string{
		"tools": strings.TrimRight(b.String(), "\n"),
	})
}

func sortedKeys(m map[string]tools.Property) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
