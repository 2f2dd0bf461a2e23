package logging

import (
	"bytes"
	"testing"

	"tasfish/internal/observability"
)

func TestOrNopHandlesTypedNilPointers(t *testing.T) {
	var recorder *Recorder
	var logger Logger = recorder
	if !IsNil(logger) {
		t.Fatalf("expected typed nil pointer to be detected")
	}
	safe := OrNop(logger)
	if IsNil(safe) {
		t.Fatalf("expected OrNop to return a usable logger")
	}
	safe.Info("hello %s", "world")
}

func TestFromObservabilityFormatsMessages(t *testing.T) {
	buf := &bytes.Buffer{}
	base := observability.NewLogger(observability.LogConfig{
		Level:  "info",
		Format: "text",
		Output: buf,
	})

	logger := FromObservabilityWithComponent(base, "router")
	logger.Info("hello %s", "world")

	if want := "hello world"; !bytes.Contains(buf.Bytes(), []byte(want)) {
		t.Fatalf("expected %q in output, got %q", want, buf.String())
	}
	if want := "component=router"; !bytes.Contains(buf.Bytes(), []byte(want)) {
		t.Fatalf("expected %q in output, got %q", want, buf.String())
	}
}

func TestSetDefaultRoutesComponentLoggers(t *testing.T) {
	buf := &bytes.Buffer{}
	SetDefault(observability.NewLogger(observability.LogConfig{Level: "debug", Output: buf}))
	t.Cleanup(func() { SetDefault(observability.NewLogger(observability.LogConfig{Level: "info"})) })

	NewComponentLogger("forecast").Debug("clamped days %d", 9)
	if !bytes.Contains(buf.Bytes(), []byte("clamped days 9")) {
		t.Fatalf("expected message in output, got %q", buf.String())
	}
}

func TestMultiFlattensAndSkipsNil(t *testing.T) {
	a, b := &Recorder{}, &Recorder{}
	var missing *Recorder

	logger := Multi(a, Multi(b, missing), nil)
	logger.Warn("low water %d", 3)

	if !a.Contains("WARN low water 3") || !b.Contains("WARN low water 3") {
		t.Fatalf("expected both recorders to receive the line: %v %v", a.Lines(), b.Lines())
	}
	if _, ok := Multi(nil, missing).(nopLogger); !ok {
		t.Fatalf("expected nop logger when no logger is usable")
	}
	if got := Multi(a); got != Logger(a) {
		t.Fatalf("expected single logger to be returned unchanged")
	}
}
