package tools

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// StringParam returns a trimmed, non-empty string parameter.
func StringParam(params map[string]any, key string) (string, bool) {
	s, ok := params[key].(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

var lengthWithUnit = regexp.MustCompile(`(?i)^\s*(-?\d+(?:\.\d+)?)\s*(cm|mm)?\s*$`)

// NumberParam accepts JSON numbers, Go numerics and numeric strings such as
// "26". Models are not consistent about quoting numbers. Strings carrying a
// unit are rejected.
func NumberParam(params map[string]any, key string) (float64, bool) {
	var f float64
	switch n := params[key].(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// LengthCMParam is NumberParam for lengths in centimetres. Strings may end in
// "cm" or "mm"; millimetres are converted.
func LengthCMParam(params map[string]any, key string) (float64, bool) {
	s, ok := params[key].(string)
	if !ok {
		return NumberParam(params, key)
	}
	m := lengthWithUnit.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	if strings.EqualFold(m[2], "mm") {
		f /= 10
	}
	return f, true
}

// IntParam is NumberParam truncated toward zero.
func IntParam(params map[string]any, key string) (int, bool) {
	f, ok := NumberParam(params, key)
	if !ok {
		return 0, false
	}
	return int(f), true
}

// Float returns a pointer to f, for schema bounds.
func Float(f float64) *float64 { return &f }
