package llm

import (
	"context"
	"testing"
)

func TestCollectContent(t *testing.T) {
	chunks := make(chan StreamChunk, 4)
	chunks <- StreamChunk{Content: "Hello, "}
	chunks <- StreamChunk{Content: "world"}
	chunks <- StreamChunk{FinishReason: FinishStop, Usage: &Usage{TotalTokens: 5}}
	close(chunks)

	resp, err := Collect(context.Background(), chunks)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if resp.Content != "Hello, world" {
		t.Fatalf("unexpected content: %q", resp.Content)
	}
	if resp.FinishReason != FinishStop {
		t.Fatalf("unexpected finish reason: %q", resp.FinishReason)
	}
	if resp.Usage.TotalTokens != 5 {
		t.Fatalf("unexpected usage: %+v", resp.Usage)
	}
}

func TestCollectToolCallDeltas(t *testing.T) {
	chunks := make(chan StreamChunk, 8)
	chunks <- StreamChunk{ToolCall: &ToolCallDelta{Index: 0, ID: "call_1", Name: "get_weather"}}
	chunks <- StreamChunk{ToolCall: &ToolCallDelta{Index: 0, Arguments: `{"city":`}}
	chunks <- StreamChunk{ToolCall: &ToolCallDelta{Index: 0, Arguments: `"Denver"}`}}
	chunks <- StreamChunk{ToolCall: &ToolCallDelta{Index: 1, ID: "call_2", Name: "get_time", Arguments: `{}`}}
	chunks <- StreamChunk{FinishReason: FinishToolCalls}
	close(chunks)

	resp, err := Collect(context.Background(), chunks)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(resp.ToolCalls) != 2 {
		t.Fatalf("expected 2 tool calls, got %d", len(resp.ToolCalls))
	}
	first := resp.ToolCalls[0]
	if first.ID != "call_1" || first.Function.Name != "get_weather" {
		t.Fatalf("unexpected first call: %+v", first)
	}
	if first.Function.Arguments != `{"city":"Denver"}` {
		t.Fatalf("arguments not assembled: %q", first.Function.Arguments)
	}
	if resp.ToolCalls[1].Function.Name != "get_time" {
		t.Fatalf("unexpected second call: %+v", resp.ToolCalls[1])
	}
	if resp.FinishReason != FinishToolCalls {
		t.Fatalf("unexpected finish reason: %q", resp.FinishReason)
	}
}

func TestCollectStreamError(t *testing.T) {
	chunks := make(chan StreamChunk, 2)
	chunks <- StreamChunk{Content: "partial"}
	chunks <- StreamChunk{Err: context.DeadlineExceeded}
	close(chunks)

	if _, err := Collect(context.Background(), chunks); err == nil {
		t.Fatalf("expected stream error to surface")
	}
}

func TestScriptedMock(t *testing.T) {
	mock := NewScriptedMockProvider("first", "second")
	mock.AddToolCallResponse(ToolCall{
		ID:       "call_1",
		Type:     ToolTypeFunction,
		Function: FunctionCall{Name: "search", Arguments: `{"q":"go"}`},
	})

	for i, want := range []string{"first", "second"} {
		resp, err := Chat(context.Background(), mock, ChatRequest{})
		if err != nil {
			t.Fatalf("chat %d: %v", i, err)
		}
		if resp.Content != want {
			t.Fatalf("chat %d: expected %q, got %q", i, want, resp.Content)
		}
	}

	resp, err := Chat(context.Background(), mock, ChatRequest{})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].Function.Name != "search" {
		t.Fatalf("expected scripted tool call, got %+v", resp.ToolCalls)
	}
	if mock.CallCount != 3 {
		t.Fatalf("expected 3 calls, got %d", mock.CallCount)
	}

	if _, err := Chat(context.Background(), mock, ChatRequest{}); err == nil {
		t.Fatalf("expected error when script exhausted")
	}
}
