package core

import (
	"context"

	"github.com/google/uuid"
)

// ToolCall is a single invocation of a named tool. A fresh ID is minted for
// every dispatch, including retries of the same step.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// NewToolCall builds a tool call with a generated invocation ID.
func NewToolCall(name string, args map[string]any) ToolCall {
	return ToolCall{
		ID:        "call-" + uuid.NewString(),
		Name:      name,
		Arguments: args,
	}
}

// ToolResult is the outcome of a ToolCall. Either Payload or Error is set.
// A payload carrying `success: false` also counts as a failure.
type ToolResult struct {
	CallID  string `json:"call_id"`
	Name    string `json:"name"`
	Payload any    `json:"payload,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Failed reports whether the result represents a failure, along with the
// failure reason when one is available.
func (r ToolResult) Failed() (bool, string) {
	if r.Error != "" {
		return true, r.Error
	}
	if ok, reason := embeddedFailure(r.Payload); ok {
		return true, reason
	}
	return false, ""
}

// EmbeddedFailure reports whether a structured payload carries an explicit
// `success: false` field, returning the embedded message or error if present.
func (r ToolResult) EmbeddedFailure() (bool, string) {
	return embeddedFailure(r.Payload)
}

func embeddedFailure(payload any) (bool, string) {
	m, ok := payload.(map[string]any)
	if !ok {
		return false, ""
	}
	success, ok := m["success"].(bool)
	if !ok || success {
		return false, ""
	}
	if msg, ok := m["message"].(string); ok && msg != "" {
		return true, msg
	}
	if msg, ok := m["error"].(string); ok && msg != "" {
		return true, msg
	}
	return true, "tool reported success=false"
}

// FailureResult builds a failing ToolResult for the given call.
func FailureResult(call ToolCall, reason string) ToolResult {
	return ToolResult{CallID: call.ID, Name: call.Name, Error: reason}
}

// SuccessResult builds a successful ToolResult for the given call.
func SuccessResult(call ToolCall, payload any) ToolResult {
	return ToolResult{CallID: call.ID, Name: call.Name, Payload: payload}
}

// ToolHandler executes any tool belonging to one skill. Implementations own
// network I/O, timeouts and per-call retries below the tool boundary.
type ToolHandler interface {
	Execute(ctx context.Context, call ToolCall) (ToolResult, error)
}

// ToolHandlerFunc adapts a function to the ToolHandler interface.
type ToolHandlerFunc func(ctx context.Context, call ToolCall) (ToolResult, error)

// Execute implements ToolHandler.
func (f ToolHandlerFunc) Execute(ctx context.Context, call ToolCall) (ToolResult, error) {
	return f(ctx, call)
}
