// Package composer turns a routing decision, retrieved passages and a tool
// result into the final answer text.
package composer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tasfish/internal/llm"
	"tasfish/internal/logging"
	"tasfish/internal/prompts"
	"tasfish/internal/rag"
	"tasfish/internal/router"
	"tasfish/internal/species"
	"tasfish/internal/tools"
)

// DefaultTimeout bounds one generation call.
const DefaultTimeout = 60 * time.Second

// NoDocumentsContext stands in for an empty retrieval in combined prompts.
const NoDocumentsContext = "No relevant documents found."

// Config holds the composer collaborators.
type Config struct {
	Client  llm.Client
	Prompts *prompts.Loader
	// Counter and ContextBudget cap the retrieved context sent to the
	// model. A zero budget sends every passage.
	Counter       *rag.TokenCounter
	ContextBudget int
	Timeout       time.Duration
	// NarrateVerdicts sends size verdicts through the model instead of the
	// fixed sentence from species.Verdict.Summary.
	NarrateVerdicts bool
	Logger          logging.Logger
}

// Composer builds answers. It is safe for concurrent use.
type Composer struct {
	client          llm.Client
	prompts         *prompts.Loader
	system          string
	counter         *rag.TokenCounter
	budget          int
	timeout         time.Duration
	narrateVerdicts bool
	logger          logging.Logger
}

// New builds a composer.
func New(config Config) (*Composer, error) {
	if config.Client == nil {
		return nil, fmt.Errorf("composer: llm client is required")
	}
	loader := config.Prompts
	if loader == nil {
		loader = prompts.Default()
	}
	system, err := loader.Render(prompts.System, nil)
	if err != nil {
		return nil, fmt.Errorf("composer: %w", err)
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger := config.Logger
	if logging.IsNil(logger) {
		logger = logging.NewComponentLogger("composer")
	}
	return &Composer{
		client:          config.Client,
		prompts:         loader,
		system:          system,
		counter:         config.Counter,
		budget:          config.ContextBudget,
		timeout:         timeout,
		narrateVerdicts: config.NarrateVerdicts,
		logger:          logger,
	}, nil
}

var errNoToolResult = errors.New("tool route without a tool result")

// Compose produces the answer for one query. It never fails: generation
// errors and panics become ErrorMessage.
func (c *Composer) Compose(ctx context.Context, query string, decision router.Decision, chunks []rag.Chunk, result tools.Result) (answer string) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("compose panicked on %s route: %v", decision.Kind, r)
			answer = ErrorMessage
		}
	}()

	var (
		text      string
		followUps = true
		err       error
	)
	switch decision.Kind {
	case router.Chat:
		text, err = c.chat(ctx, query)
		followUps = false
	case router.DocsOnly:
		if len(chunks) == 0 {
			c.logger.Info("no passages for %q", query)
			return NoAnswerMessage
		}
		text, err = c.docsOnly(ctx, query, chunks)
	case router.ToolOnly:
		text, err = c.toolOnly(ctx, query, result)
	case router.DocsAndTool:
		if len(chunks) == 0 {
			text, err = c.toolOnly(ctx, query, result)
		} else {
			text, err = c.docsAndTool(ctx, query, chunks, result)
		}
	default:
		err = fmt.Errorf("unknown route %s", decision.Kind)
	}
	if err != nil {
		c.logger.Error("compose failed on %s route: %v", decision.Kind, err)
		return ErrorMessage
	}
	if followUps {
		text = WithFollowUps(text, query)
	}
	return text
}

func (c *Composer) chat(ctx context.Context, query string) (string, error) {
	if reply, ok := cannedReply(query); ok {
		return reply, nil
	}
	prompt, err := c.prompts.Render(prompts.Chat, map[string]string{"query": query})
	if err != nil {
		return "", err
	}
	return c.generate(ctx, prompt)
}

func (c *Composer) docsOnly(ctx context.Context, query string, chunks []rag.Chunk) (string, error) {
	prompt, err := c.prompts.Render(prompts.DocsAnswer, map[string]string{
		"query":   query,
		"context": rag.FormatContext(chunks, c.counter, c.budget),
	})
	if err != nil {
		return "", err
	}
	return c.generate(ctx, prompt)
}

func (c *Composer) toolOnly(ctx context.Context, query string, result tools.Result) (string, error) {
	switch r := result.(type) {
	case tools.Ok:
		if v, ok := r.Payload.(species.Verdict); ok && !c.narrateVerdicts {
			return v.Summary(), nil
		}
	case tools.Err:
		c.logger.Info("tool %s returned %s", r.Tool, r.Code)
	case nil:
		return "", errNoToolResult
	}
	prompt, err := c.prompts.Render(prompts.ToolAnswer, map[string]string{
		"query":       query,
		"tool_result": DescribeResult(result),
	})
	if err != nil {
		return "", err
	}
	return c.generate(ctx, prompt)
}

func (c *Composer) docsAndTool(ctx context.Context, query string, chunks []rag.Chunk, result tools.Result) (string, error) {
	if result == nil {
		return "", errNoToolResult
	}
	docs := rag.FormatContext(chunks, c.counter, c.budget)
	if docs == "" {
		docs = NoDocumentsContext
	}
	prompt, err := c.prompts.Render(prompts.ToolIntegration, map[string]string{
		"query":       query,
		"context":     docs,
		"tool_result": DescribeResult(result),
	})
	if err != nil {
		return "", err
	}
	return c.generate(ctx, prompt)
}

func (c *Composer) generate(ctx context.Context, prompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	text, err := llm.Text(callCtx, c.client, llm.Request{System: c.system, Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("generate: empty response")
	}
	return text, nil
}
