package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	fisherrors "tasfish/internal/errors"
	"tasfish/internal/httpclient"
	"tasfish/internal/logging"
)

// OpenAI API compatible client. Groq serves this API.
type openaiClient struct {
	model       string
	apiKey      string
	baseURL     string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
	logger      logging.Logger
}

// NewOpenAIClient constructs a client for an OpenAI-compatible chat
// completions endpoint.
func NewOpenAIClient(config Config) (Client, error) {
	if config.BaseURL == "" {
		config.BaseURL = "https://api.groq.com/openai/v1"
	}
	if config.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	logger := logging.NewComponentLogger("llm-openai")

	return &openaiClient{
		model:       config.Model,
		apiKey:      config.APIKey,
		baseURL:     strings.TrimRight(config.BaseURL, "/"),
		temperature: config.Temperature,
		maxTokens:   config.MaxTokens,
		httpClient:  httpclient.New(timeout, logger),
		logger:      logger,
	}, nil
}

func (c *openaiClient) Model() string { return c.model }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (c *openaiClient) Complete(ctx context.Context, req Request) (Response, error) {
	messages := make([]chatMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	temperature := req.temperatureOr(c.temperature)
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}
	oaiReq := map[string]any{
		"model":       c.model,
		"messages":    messages,
		"temperature": temperature,
		"stream":      false,
	}
	if maxTokens > 0 {
		oaiReq["max_tokens"] = maxTokens
	}

	body, err := json.Marshal(oaiReq)
	if err != nil {
		return Response{}, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := c.baseURL + "/chat/completions"
	c.logger.Debug("POST %s model=%s prompt=%d chars", endpoint, c.model, len(req.Prompt))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Response{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("chat completion request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := httpclient.ReadAllWithLimit(resp.Body, httpclient.DefaultResponseLimit)
	if err != nil {
		return Response{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Debug("error response %d: %s", resp.StatusCode, string(respBody))
		return Response{}, &fisherrors.StatusError{Provider: "openai-compatible", StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var oaiResp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
			TotalTokens      int `json:"total_tokens"`
		} `json:"usage"`
		Error *struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(respBody, &oaiResp); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}
	if oaiResp.Error != nil && oaiResp.Error.Message != "" {
		return Response{}, &fisherrors.StatusError{Provider: "openai-compatible", StatusCode: resp.StatusCode, Body: oaiResp.Error.Type + ": " + oaiResp.Error.Message}
	}
	if len(oaiResp.Choices) == 0 {
		return Response{}, fisherrors.NewTransientError(errors.New("no choices in response"), "LLM returned an empty response. Please retry.")
	}

	result := Response{
		Content:    oaiResp.Choices[0].Message.Content,
		StopReason: oaiResp.Choices[0].FinishReason,
		Usage: Usage{
			PromptTokens:     oaiResp.Usage.PromptTokens,
			CompletionTokens: oaiResp.Usage.CompletionTokens,
			TotalTokens:      oaiResp.Usage.TotalTokens,
		},
	}
	c.logger.Debug("completion: stop=%s %d chars, %d tokens", result.StopReason, len(result.Content), result.Usage.TotalTokens)
	return result, nil
}
