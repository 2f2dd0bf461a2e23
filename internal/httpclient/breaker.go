package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	fisherrors "tasfish/internal/errors"
	"tasfish/internal/logging"
)

type circuitBreakerRoundTripper struct {
	base    http.RoundTripper
	breaker *fisherrors.CircuitBreaker
}

// NewWithCircuitBreaker builds an HTTP client guarded by a circuit breaker.
func NewWithCircuitBreaker(timeout time.Duration, logger logging.Logger, name string) *http.Client {
	client := New(timeout, logger)
	client.Transport = WrapTransportWithCircuitBreaker(client.Transport, name, fisherrors.DefaultCircuitBreakerConfig(), logger)
	return client
}

// WrapTransportWithCircuitBreaker wraps base so that repeated 5xx, 429 or
// transport failures open the circuit and short-circuit later requests.
func WrapTransportWithCircuitBreaker(base http.RoundTripper, name string, config fisherrors.CircuitBreakerConfig, logger logging.Logger) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	if name == "" {
		name = "http-client"
	}
	return &circuitBreakerRoundTripper{
		base:    base,
		breaker: fisherrors.NewCircuitBreaker(name, config, logger),
	}
}

func (t *circuitBreakerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, fmt.Errorf("nil request")
	}
	if err := t.breaker.Allow(); err != nil {
		return nil, err
	}
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		// A caller giving up says nothing about upstream health.
		if errors.Is(err, context.Canceled) {
			t.breaker.Mark(nil)
		} else {
			t.breaker.Mark(err)
		}
		return nil, err
	}
	if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
		t.breaker.Mark(fmt.Errorf("http status %d", resp.StatusCode))
	} else {
		t.breaker.Mark(nil)
	}
	return resp, nil
}
