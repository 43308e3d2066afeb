package llm

import (
	"context"
	"sort"
	"strings"
)

// FinishReason signals why the model stopped producing output.
type FinishReason string

const (
	FinishStop      FinishReason = "stop"
	FinishToolCalls FinishReason = "tool_calls"
	FinishLength    FinishReason = "length"
)

// ToolCallDelta is an incrementally-assembled fragment of a tool call.
// Providers that emit complete tool calls send a single delta per call.
type ToolCallDelta struct {
	Index     int    `json:"index"`
	ID        string `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"` // partial JSON text
}

// StreamChunk is one increment of a streamed chat response.
type StreamChunk struct {
	Content      string         // content delta, may be empty
	ToolCall     *ToolCallDelta // tool-call delta, may be nil
	FinishReason FinishReason   // non-empty on the terminal chunk
	Usage        *Usage         // set on the terminal chunk when known
	Err          error          // stream-level failure; terminal
}

// Collect drains a chunk stream into a single ChatResponse, assembling
// tool-call deltas by index and concatenating content deltas.
func Collect(ctx context.Context, chunks <-chan StreamChunk) (*ChatResponse, error) {
	var content strings.Builder
	calls := make(map[int]*ToolCall)
	resp := &ChatResponse{}

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case chunk, ok := <-chunks:
			if !ok {
				resp.Content = content.String()
				resp.ToolCalls = assembleToolCalls(calls)
				if resp.FinishReason == "" && len(resp.ToolCalls) > 0 {
					resp.FinishReason = FinishToolCalls
				}
				return resp, nil
			}
			if chunk.Err != nil {
				return nil, chunk.Err
			}
			if chunk.Content != "" {
				content.WriteString(chunk.Content)
			}
			if chunk.ToolCall != nil {
				applyToolCallDelta(calls, chunk.ToolCall)
			}
			if chunk.FinishReason != "" {
				resp.FinishReason = chunk.FinishReason
			}
			if chunk.Usage != nil {
				resp.Usage = *chunk.Usage
			}
		}
	}
}

func applyToolCallDelta(calls map[int]*ToolCall, delta *ToolCallDelta) {
	call, ok := calls[delta.Index]
	if !ok {
		call = &ToolCall{Type: ToolTypeFunction}
		calls[delta.Index] = call
	}
	if delta.ID != "" {
		call.ID = delta.ID
	}
	if delta.Name != "" {
		call.Function.Name = delta.Name
	}
	if delta.Arguments != "" {
		call.Function.Arguments += delta.Arguments
	}
}

func assembleToolCalls(calls map[int]*ToolCall) []ToolCall {
	if len(calls) == 0 {
		return nil
	}
	indexes := make([]int, 0, len(calls))
	for idx := range calls {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)
	out := make([]ToolCall, 0, len(indexes))
	for _, idx := range indexes {
		out = append(out, *calls[idx])
	}
	return out
}
