package mcp

import (
	"fmt"
	"strings"
)

// AuthError means the remote service rejected the user's bearer token.
type AuthError struct {
	Detail string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication rejected: %s", e.Detail)
}

// ToolError means the remote service executed the tool but returned a
// business-level failure (e.g. coupon already claimed, inventory exhausted).
type ToolError struct {
	Tool   string
	Detail string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool %s failed: %s", e.Tool, e.Detail)
}

// TransportError covers network failures, timeouts and malformed responses.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// classifyCallError maps a raw client error onto the error taxonomy. The
// streamable HTTP transport surfaces HTTP-level auth rejections as plain
// errors, so token problems are recognized by status code markers.
func classifyCallError(op string, err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "401"),
		strings.Contains(msg, "403"),
		strings.Contains(msg, "unauthorized"),
		strings.Contains(msg, "forbidden"),
		strings.Contains(msg, "invalid token"):
		return &AuthError{Detail: err.Error()}
	}
	return &TransportError{Op: op, Err: err}
}
