package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for infrastructure-level failures. These abort the current
// step and propagate to the caller; the previously committed session state is
// left unchanged so the client may retry.
var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionExists    = errors.New("session already exists")
	ErrModelUnavailable = errors.New("model unavailable")
	ErrNoPendingAction  = errors.New("no pending action")
)

// UnknownToolError reports a tool name the invoker does not know about.
// It is absorbed into the conversation as a tool message, not propagated.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool %q", e.Name)
}

// ToolExecutionError reports a failure from the backing tool service,
// carrying the backend's message. Absorbed like UnknownToolError.
type ToolExecutionError struct {
	Name string
	Err  error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %s failed: %v", e.Name, e.Err)
}

func (e *ToolExecutionError) Unwrap() error { return e.Err }
