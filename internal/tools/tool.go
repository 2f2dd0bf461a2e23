// Package tools defines the contract shared by every structured tool and the
// tagged result type the dispatcher hands back to callers.
package tools

import (
	"context"
	"fmt"
)

// Tool is a named operation with validated parameters.
type Tool interface {
	Definition() Definition
	// Execute validates params and runs the tool. Input problems are reported
	// as *Error so the caller sees a specific code.
	Execute(ctx context.Context, params map[string]any) (any, error)
}

// Definition describes a tool for routing prompts and API listings.
type Definition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  ParameterSchema `json:"parameters"`
}

// ParameterSchema is a JSON-schema object description.
type ParameterSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// Property describes one parameter.
type Property struct {
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Enum        []string `json:"enum,omitempty"`
	Minimum     *float64 `json:"minimum,omitempty"`
	Maximum     *float64 `json:"maximum,omitempty"`
	Default     any      `json:"default,omitempty"`
}

// Error is a tool failure with a stable machine-readable code.
type Error struct {
	Code   string
	Detail string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Detail)
}

// NewError builds a coded tool error.
func NewError(code, detail string) *Error {
	return &Error{Code: code, Detail: detail}
}

// Error codes shared across tools and the dispatcher.
const (
	CodeUnknownTool   = "unknown_tool"
	CodeInvalidParams = "invalid_params"
	CodeTimeout       = "timeout"
	CodeToolError     = "tool_error"
)
