package tools

import "encoding/json"

// Result is the outcome of a tool invocation: exactly one of Ok or Err.
// Callers branch with a type switch over the two variants.
type Result interface {
	ToolName() string
	isResult()
}

// Ok carries a successful payload.
type Ok struct {
	Tool    string
	Payload any
}

// Err carries a failure code and a human-readable detail.
type Err struct {
	Tool   string
	Code   string
	Detail string
}

func (r Ok) ToolName() string  { return r.Tool }
func (r Err) ToolName() string { return r.Tool }
func (Ok) isResult()           {}
func (Err) isResult()          {}

func (r Ok) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Success bool   `json:"success"`
		Tool    string `json:"tool"`
		Data    any    `json:"data"`
	}{true, r.Tool, r.Payload})
}

func (r Err) MarshalJSON() ([]byte, error) {
	type errBody struct {
		Code   string `json:"code"`
		Detail string `json:"detail"`
	}
	return json.Marshal(struct {
		Success bool    `json:"success"`
		Tool    string  `json:"tool"`
		Error   errBody `json:"error"`
	}{false, r.Tool, errBody{r.Code, r.Detail}})
}

// IsOk reports whether r is a successful result.
func IsOk(r Result) bool {
	_, ok := r.(Ok)
	return ok
}
