// Package router classifies a question into the information sources needed
// to answer it: the regulation documents, one structured tool, both, or
// neither.
package router

import (
	"context"
	"encoding/json"
	"fmt"
)

// Kind is the answer route chosen for a query.
type Kind int

const (
	DocsOnly Kind = iota
	ToolOnly
	DocsAndTool
	Chat
)

var kindNames = [...]string{
	DocsOnly:    "docs_only",
	ToolOnly:    "tool_only",
	DocsAndTool: "docs_and_tool",
	Chat:        "chat",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses a kind name.
func (k *Kind) UnmarshalText(text []byte) error {
	kind, ok := ParseKind(string(text))
	if !ok {
		return fmt.Errorf("unknown route kind %q", text)
	}
	*k = kind
	return nil
}

// ParseKind resolves a kind name.
func ParseKind(name string) (Kind, bool) {
	for i, n := range kindNames {
		if n == name {
			return Kind(i), true
		}
	}
	return DocsOnly, false
}

// KindFor maps the two source flags onto a route.
func KindFor(needsDocs, needsTool bool) Kind {
	switch {
	case needsDocs && needsTool:
		return DocsAndTool
	case needsTool:
		return ToolOnly
	case needsDocs:
		return DocsOnly
	default:
		return Chat
	}
}

// Decision is the outcome of classifying one query. It is not modified after
// Classify returns.
type Decision struct {
	Kind       Kind           `json:"kind"`
	NeedsDocs  bool           `json:"needs_docs"`
	NeedsTool  bool           `json:"needs_tool"`
	ToolName   string         `json:"tool_name,omitempty"`
	ToolParams map[string]any `json:"tool_params,omitempty"`
	Rationale  string         `json:"rationale"`
	Succeeded  bool           `json:"succeeded"`
}

// Fallback is the decision used when classification fails. It always
// searches the documents and never calls a tool.
func Fallback(reason string) Decision {
	return Decision{
		Kind:      DocsOnly,
		NeedsDocs: true,
		Rationale: "Fallback to document search: " + reason,
		Succeeded: false,
	}
}

// String renders the decision as compact JSON for logs and the CLI.
func (d Decision) String() string {
	data, err := json.Marshal(d)
	if err != nil {
		return d.Kind.String()
	}
	return string(data)
}

// Classifier decides how a query should be answered. Implementations never
// fail: problems are reported through a Fallback decision.
type Classifier interface {
	Classify(ctx context.Context, query string) Decision
}
