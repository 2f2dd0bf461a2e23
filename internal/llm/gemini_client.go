package llm

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	fisherrors "tasfish/internal/errors"
	"tasfish/internal/logging"
)

type geminiClient struct {
	client      *genai.Client
	model       string
	temperature float64
	maxTokens   int
	logger      logging.Logger
}

// NewGeminiClient builds a client for the Gemini developer API.
func NewGeminiClient(ctx context.Context, config Config) (Client, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("gemini requires an API key")
	}
	if config.Model == "" {
		config.Model = "gemini-2.0-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &geminiClient{
		client:      client,
		model:       config.Model,
		temperature: config.Temperature,
		maxTokens:   config.MaxTokens,
		logger:      logging.NewComponentLogger("llm-gemini"),
	}, nil
}

func (c *geminiClient) Model() string { return c.model }

func (c *geminiClient) Complete(ctx context.Context, req Request) (Response, error) {
	genCfg := &genai.GenerateContentConfig{}
	genCfg.Temperature = genai.Ptr(float32(req.temperatureOr(c.temperature)))
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}
	if maxTokens > 0 {
		genCfg.MaxOutputTokens = int32(maxTokens)
	}
	if req.System != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(req.Prompt), genCfg)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return Response{}, &fisherrors.StatusError{Provider: "gemini", StatusCode: apiErr.Code, Body: apiErr.Message}
		}
		return Response{}, fmt.Errorf("gemini generate: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return Response{}, fisherrors.NewTransientError(errors.New("empty gemini response"), "LLM returned an empty response. Please retry.")
	}

	out := Response{Content: text}
	if len(resp.Candidates) > 0 {
		out.StopReason = string(resp.Candidates[0].FinishReason)
	}
	if resp.UsageMetadata != nil {
		out.Usage = Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	c.logger.Debug("gemini completion: %d chars", len(text))
	return out, nil
}
