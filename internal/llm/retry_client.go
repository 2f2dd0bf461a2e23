package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	fisherrors "tasfish/internal/errors"
	"tasfish/internal/logging"
	"tasfish/internal/observability"
)

// retryClient wraps a client with retry logic, a circuit breaker and
// request telemetry.
type retryClient struct {
	underlying     Client
	retryConfig    fisherrors.RetryConfig
	circuitBreaker *fisherrors.CircuitBreaker
	logger         logging.Logger
	metrics        *observability.MetricsCollector
	tracer         *observability.TracerProvider
}

// RetryOptions configures WrapWithRetry.
type RetryOptions struct {
	Retry   fisherrors.RetryConfig
	Breaker fisherrors.CircuitBreakerConfig
	Logger  logging.Logger
	Metrics *observability.MetricsCollector
	Tracer  *observability.TracerProvider
}

// WrapWithRetry wraps client with retries and a per-model circuit breaker.
func WrapWithRetry(client Client, opts RetryOptions) Client {
	logger := opts.Logger
	if logging.IsNil(logger) {
		logger = logging.NewComponentLogger("llm-retry")
	}
	return &retryClient{
		underlying:     client,
		retryConfig:    opts.Retry,
		circuitBreaker: fisherrors.NewCircuitBreaker(fmt.Sprintf("llm-%s", client.Model()), opts.Breaker, logger),
		logger:         logger,
		metrics:        opts.Metrics,
		tracer:         opts.Tracer,
	}
}

func (c *retryClient) Model() string { return c.underlying.Model() }

// Complete executes the completion with retry logic.
func (c *retryClient) Complete(ctx context.Context, req Request) (Response, error) {
	ctx, span := c.tracer.StartSpan(ctx, observability.SpanLLMCall)
	startTime := time.Now()

	resp, err := fisherrors.RetryWithResult(ctx, c.retryConfig, func(ctx context.Context) (Response, error) {
		return fisherrors.ExecuteFunc(c.circuitBreaker, ctx, func(ctx context.Context) (Response, error) {
			response, err := c.underlying.Complete(ctx, req)
			if err != nil {
				return Response{}, classifyLLMError(err)
			}
			return response, nil
		})
	}, c.logger)

	duration := time.Since(startTime)
	status := "success"
	if err != nil {
		status = "error"
		c.logger.Warn("LLM request failed after retries (took %v): %v", duration, err)
	}
	c.metrics.RecordLLMRequest(ctx, c.Model(), status, duration)
	observability.EndSpan(span, err)
	return resp, err
}

// classifyLLMError marks provider failures transient or permanent so the
// retry loop knows whether to try again.
func classifyLLMError(err error) error {
	if err == nil {
		return nil
	}
	var transient *fisherrors.TransientError
	var permanent *fisherrors.PermanentError
	if errors.As(err, &transient) || errors.As(err, &permanent) || fisherrors.IsDegraded(err) {
		return err
	}

	var statusErr *fisherrors.StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == 429:
			return fisherrors.NewTransientError(err, "API rate limit reached. Retrying with exponential backoff.")
		case statusErr.StatusCode >= 500:
			return fisherrors.NewTransientError(err, fmt.Sprintf("Server error (%d). Retrying request.", statusErr.StatusCode))
		case statusErr.StatusCode == 401 || statusErr.StatusCode == 403:
			return fisherrors.NewPermanentError(err, "Authentication failed. Please check your API key configuration.")
		case statusErr.StatusCode == 404:
			return fisherrors.NewPermanentError(err, "Model or endpoint not found. Please verify the model name.")
		case statusErr.StatusCode >= 400:
			return fisherrors.NewPermanentError(err, "Invalid request. Please check the parameters.")
		}
	}

	if errors.Is(err, context.Canceled) {
		return err
	}
	lowerErr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lowerErr, "timeout") || strings.Contains(lowerErr, "deadline exceeded"):
		return fisherrors.NewTransientError(err, "Request timed out. Retrying with backoff.")
	case strings.Contains(lowerErr, "connection reset") || strings.Contains(lowerErr, "connection refused") || strings.Contains(lowerErr, "broken pipe"):
		return fisherrors.NewTransientError(err, "Network connectivity issue. Retrying request.")
	}
	return err
}
