package errorutil

import (
	"fmt"
	"strings"
)

// DecodeError reports a payload that did not have the expected shape
type DecodeError struct {
	Payload    string   // What was being decoded (e.g., "realtime", "forecast date")
	Value      string   // Offending raw value, when one is known
	Formats    []string // Layouts that were tried, for date values
	Underlying error
}

func (e *DecodeError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "cannot decode %s", e.Payload)
	if e.Value != "" {
		fmt.Fprintf(&b, " %q", e.Value)
	}
	if len(e.Formats) > 0 {
		fmt.Fprintf(&b, " (tried %s)", strings.Join(e.Formats, ", "))
	}
	if e.Underlying != nil {
		fmt.Fprintf(&b, ": %v", e.Underlying)
	}
	return b.String()
}

func (e *DecodeError) Unwrap() error {
	return e.Underlying
}

// NewDecodeError wraps a decoding failure for payload
func NewDecodeError(payload string, err error) *DecodeError {
	return &DecodeError{Payload: payload, Underlying: err}
}
