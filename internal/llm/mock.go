package llm

import (
	"context"
	"strings"
	"sync"
)

// Prompt markers understood by OfflineClient. Prompt builders wrap retrieved
// passages and tool output in these tags.
const (
	ContextOpen     = "<context>"
	ContextClose    = "</context>"
	ToolResultOpen  = "<tool_result>"
	ToolResultClose = "</tool_result>"
)

// OfflineClient answers without a network. It echoes the tagged context and
// tool output from the prompt, so answers stay grounded in what retrieval
// returned. It is the fallback when no provider credentials are configured.
type OfflineClient struct{}

// NewOfflineClient returns the offline client.
func NewOfflineClient() *OfflineClient { return &OfflineClient{} }

func (OfflineClient) Model() string { return "offline" }

func (OfflineClient) Complete(_ context.Context, req Request) (Response, error) {
	var parts []string
	if ctx := between(req.Prompt, ContextOpen, ContextClose); ctx != "" {
		passage := ctx
		if i := strings.Index(ctx, "\n\n[Source:"); i > 0 {
			passage = ctx[:i]
		}
		parts = append(parts, "Here is what the official guide says:\n\n"+passage)
	}
	if tool := between(req.Prompt, ToolResultOpen, ToolResultClose); tool != "" {
		parts = append(parts, tool)
	}
	if len(parts) == 0 {
		parts = append(parts, "I can help with Tasmanian fishing rules: licences, bag and size limits, seasons, fishing spots and fishing weather.")
	}
	return Response{Content: strings.Join(parts, "\n\n"), StopReason: "stop"}, nil
}

func between(s, open, close string) string {
	start := strings.Index(s, open)
	if start < 0 {
		return ""
	}
	rest := s[start+len(open):]
	end := strings.Index(rest, close)
	if end < 0 {
		return ""
	}
	return strings.TrimSpace(rest[:end])
}

// MockClient is a scriptable client for tests.
type MockClient struct {
	ModelName    string
	CompleteFunc func(ctx context.Context, req Request) (Response, error)

	mu    sync.Mutex
	calls []Request
}

func (m *MockClient) Model() string {
	if m.ModelName == "" {
		return "mock"
	}
	return m.ModelName
}

func (m *MockClient) Complete(ctx context.Context, req Request) (Response, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()
	if m.CompleteFunc == nil {
		return Response{Content: "mock response"}, nil
	}
	return m.CompleteFunc(ctx, req)
}

// Calls returns the requests received so far.
func (m *MockClient) Calls() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.calls...)
}

// Reply returns a MockClient that always answers content.
func Reply(content string) *MockClient {
	return &MockClient{CompleteFunc: func(context.Context, Request) (Response, error) {
		return Response{Content: content}, nil
	}}
}
