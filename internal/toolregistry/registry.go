// Package toolregistry owns the immutable table of tools and the single
// dispatch path that turns every tool outcome into a tools.Result.
package toolregistry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"tasfish/internal/logging"
	"tasfish/internal/observability"
	"tasfish/internal/tools"
)

// DefaultTimeout bounds a single tool call when Config.Timeout is zero.
const DefaultTimeout = 10 * time.Second

// Config holds the dispatcher collaborators. Nil fields are replaced with
// no-op implementations.
type Config struct {
	Timeout time.Duration
	Logger  logging.Logger
	Metrics *observability.MetricsCollector
	Tracer  *observability.TracerProvider
}

// Registry maps tool names to implementations. It is built once and never
// mutated, so it is safe to share between goroutines.
type Registry struct {
	tools   map[string]tools.Tool
	names   []string
	timeout time.Duration
	logger  logging.Logger
	metrics *observability.MetricsCollector
	tracer  *observability.TracerProvider
}

// New builds a registry from the given tools. Duplicate or empty names are
// rejected.
func New(config Config, toolset ...tools.Tool) (*Registry, error) {
	r := &Registry{
		tools:   make(map[string]tools.Tool, len(toolset)),
		timeout: config.Timeout,
		logger:  logging.OrNop(config.Logger),
		metrics: config.Metrics,
		tracer:  config.Tracer,
	}
	if r.timeout <= 0 {
		r.timeout = DefaultTimeout
	}
	for _, tool := range toolset {
		if tool == nil {
			continue
		}
		name := tool.Definition().Name
		if name == "" {
			return nil, fmt.Errorf("tool with empty name")
		}
		if _, exists := r.tools[name]; exists {
			return nil, fmt.Errorf("tool already exists: %s", name)
		}
		r.tools[name] = tool
		r.names = append(r.names, name)
	}
	sort.Strings(r.names)
	return r, nil
}

// Names returns the registered tool names in sorted order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.tools[name]
	return ok
}

// Definitions lists every tool description in name order.
func (r *Registry) Definitions() []tools.Definition {
	defs := make([]tools.Definition, 0, len(r.names))
	for _, name := range r.names {
		defs = append(defs, r.tools[name].Definition())
	}
	return defs
}

type outcome struct {
	payload any
	err     error
}

// Invoke runs the named tool and always returns a Result. Unknown names,
// parameter problems, timeouts and panics all become Err values.
func (r *Registry) Invoke(ctx context.Context, name string, params map[string]any) tools.Result {
	ctx, span := r.tracer.StartSpan(ctx, observability.SpanToolCall, attribute.String(observability.AttrToolName, name))
	start := time.Now()

	result := r.invoke(ctx, name, params)

	status := "success"
	var spanErr error
	if e, ok := result.(tools.Err); ok {
		status = e.Code
		spanErr = errors.New(e.Code)
	}
	r.metrics.RecordToolExecution(ctx, name, status, time.Since(start))
	observability.EndSpan(span, spanErr)
	return result
}

func (r *Registry) invoke(ctx context.Context, name string, params map[string]any) tools.Result {
	tool, ok := r.tools[name]
	if !ok {
		r.logger.Warn("unknown tool requested: %q", name)
		return tools.Err{
			Tool:   name,
			Code:   tools.CodeUnknownTool,
			Detail: fmt.Sprintf("Unknown tool %q. Available tools: %s", name, strings.Join(r.names, ", ")),
		}
	}
	if params == nil {
		params = map[string]any{}
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- outcome{err: fmt.Errorf("tool panicked: %v", rec)}
			}
		}()
		payload, err := tool.Execute(callCtx, params)
		done <- outcome{payload: payload, err: err}
	}()

	select {
	case out := <-done:
		if out.err == nil {
			r.logger.Debug("tool %s succeeded", name)
			return tools.Ok{Tool: name, Payload: out.payload}
		}
		return r.failure(name, out.err)
	case <-callCtx.Done():
		r.logger.Warn("tool %s timed out after %s", name, r.timeout)
		return tools.Err{
			Tool:   name,
			Code:   tools.CodeTimeout,
			Detail: fmt.Sprintf("The %s tool took too long to respond. Please try again later.", name),
		}
	}
}

func (r *Registry) failure(name string, err error) tools.Result {
	var toolErr *tools.Error
	if errors.As(err, &toolErr) {
		r.logger.Info("tool %s returned %s: %s", name, toolErr.Code, toolErr.Detail)
		return tools.Err{Tool: name, Code: toolErr.Code, Detail: toolErr.Detail}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		r.logger.Warn("tool %s deadline exceeded: %v", name, err)
		return tools.Err{Tool: name, Code: tools.CodeTimeout, Detail: fmt.Sprintf("The %s tool took too long to respond. Please try again later.", name)}
	}
	r.logger.Error("tool %s failed: %v", name, err)
	return tools.Err{Tool: name, Code: tools.CodeToolError, Detail: err.Error()}
}
