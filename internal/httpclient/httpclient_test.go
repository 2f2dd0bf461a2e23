package httpclient

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	fisherrors "tasfish/internal/errors"
)

func TestReadAllWithLimit(t *testing.T) {
	payload := []byte("hello")

	got, err := ReadAllWithLimit(bytes.NewReader(payload), int64(len(payload)))
	if err != nil || !bytes.Equal(got, payload) {
		t.Fatalf("within limit: got %q, %v", got, err)
	}

	if _, err := ReadAllWithLimit(bytes.NewReader(payload), 2); !IsResponseTooLarge(err) {
		t.Fatalf("expected ResponseTooLargeError, got %v", err)
	}

	got, err = ReadAllWithLimit(bytes.NewReader(payload), 0)
	if err != nil || !bytes.Equal(got, payload) {
		t.Fatalf("unlimited: got %q, %v", got, err)
	}
}

func TestCircuitBreakerTransportOpensOnServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := New(time.Second, nil)
	client.Transport = WrapTransportWithCircuitBreaker(client.Transport, "forecast",
		fisherrors.CircuitBreakerConfig{FailureThreshold: 2, SuccessThreshold: 1, Timeout: time.Hour}, nil)

	for i := 0; i < 2; i++ {
		resp, err := client.Get(srv.URL)
		if err != nil {
			t.Fatalf("request %d: unexpected error %v", i, err)
		}
		resp.Body.Close()
	}

	_, err := client.Get(srv.URL)
	if err == nil {
		t.Fatal("expected open circuit to reject the request")
	}
	if !fisherrors.IsDegraded(err) {
		t.Fatalf("expected degraded error, got %v", err)
	}
	if got := hits.Load(); got != 2 {
		t.Fatalf("expected 2 upstream hits, got %d", got)
	}
}

func TestCircuitBreakerTransportPassesSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	client := NewWithCircuitBreaker(time.Second, nil, "")
	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()
	body, err := ReadAllWithLimit(resp.Body, DefaultResponseLimit)
	if err != nil || string(body) != "ok" {
		t.Fatalf("got %q, %v", body, err)
	}
}
