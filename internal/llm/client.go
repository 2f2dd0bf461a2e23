// Package llm provides text-generation clients and the decorators that add
// retries, rate limiting, caching and telemetry around them.
package llm

import (
	"context"
	"fmt"
	"time"
)

// Request is a single-turn completion request. A nil Temperature uses the
// client's configured default; zero is a valid setting.
type Request struct {
	System      string
	Prompt      string
	Temperature *float64
	MaxTokens   int
}

// Float returns a pointer to v, for Request.Temperature.
func Float(v float64) *float64 { return &v }

func (r Request) temperatureOr(fallback float64) float64 {
	if r.Temperature == nil {
		return fallback
	}
	return *r.Temperature
}

// Usage reports token consumption when the provider returns it.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Response is the generated text.
type Response struct {
	Content    string
	StopReason string
	Usage      Usage
}

// Client generates text for a prompt.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
	Model() string
}

// Config selects and configures a provider.
type Config struct {
	Provider    string // groq, gemini or mock
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// Provider names.
const (
	ProviderGroq   = "groq"
	ProviderGemini = "gemini"
	ProviderMock   = "mock"
)

// New constructs the bare client for config.Provider. Callers usually wrap
// the result with WrapWithRetry and friends.
func New(ctx context.Context, config Config) (Client, error) {
	switch config.Provider {
	case ProviderGroq:
		return NewOpenAIClient(config)
	case ProviderGemini:
		return NewGeminiClient(ctx, config)
	case ProviderMock, "":
		return NewOfflineClient(), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", config.Provider)
	}
}

// Text is a convenience for callers that only need the content.
func Text(ctx context.Context, client Client, req Request) (string, error) {
	resp, err := client.Complete(ctx, req)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}
