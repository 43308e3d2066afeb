package core

import (
	"context"
	"testing"
)

func TestNewToolCallIDs(t *testing.T) {
	a := NewToolCall("web_search", map[string]any{"query": "go"})
	b := NewToolCall("web_search", map[string]any{"query": "go"})
	if a.ID == "" || b.ID == "" {
		t.Fatalf("expected generated ids")
	}
	if a.ID == b.ID {
		t.Fatalf("expected unique ids per invocation")
	}
}

func TestToolResultFailed(t *testing.T) {
	call := NewToolCall("get_weather", nil)

	tests := []struct {
		name   string
		result ToolResult
		failed bool
		reason string
	}{
		{
			name:   "success payload",
			result: SuccessResult(call, map[string]any{"temp": 21}),
			failed: false,
		},
		{
			name:   "explicit error",
			result: FailureResult(call, "ECONNRESET"),
			failed: true,
			reason: "ECONNRESET",
		},
		{
			name:   "embedded success false with message",
			result: SuccessResult(call, map[string]any{"success": false, "message": "quota exceeded"}),
			failed: true,
			reason: "quota exceeded",
		},
		{
			name:   "embedded success false without message",
			result: SuccessResult(call, map[string]any{"success": false}),
			failed: true,
			reason: "tool reported success=false",
		},
		{
			name:   "embedded success true",
			result: SuccessResult(call, map[string]any{"success": true}),
			failed: false,
		},
		{
			name:   "scalar payload",
			result: SuccessResult(call, "plain text"),
			failed: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			failed, reason := tt.result.Failed()
			if failed != tt.failed {
				t.Fatalf("expected failed=%v, got %v", tt.failed, failed)
			}
			if tt.failed && reason != tt.reason {
				t.Fatalf("expected reason %q, got %q", tt.reason, reason)
			}
		})
	}
}

func TestRunIDContext(t *testing.T) {
	ctx, id := EnsureRunID(context.Background())
	if id == "" {
		t.Fatalf("expected run id")
	}
	ctx2, id2 := EnsureRunID(ctx)
	if id2 != id {
		t.Fatalf("expected stable run id, got %q and %q", id, id2)
	}
	if ctx2 != ctx {
		t.Fatalf("expected same context when id already present")
	}
}
