package models

import "fmt"

// Response is the envelope every HTTP endpoint returns.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

// InvariantError reports a record that failed its own consistency check
// before being written.
type InvariantError struct {
	Record string
	Reason string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Record, e.Reason)
}

func invalid(record, format string, args ...any) error {
	return &InvariantError{Record: record, Reason: fmt.Sprintf(format, args...)}
}
