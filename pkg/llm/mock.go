package llm

import (
	"context"
	"fmt"
)

// MockProvider is a testing implementation of Provider.
type MockProvider struct {
	Response  string
	ToolCalls []ToolCall
	Err       error
	ChatFunc  func(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// ChatStream implements Provider by streaming the configured response.
func (m *MockProvider) ChatStream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error) {
	if m.ChatFunc != nil {
		resp, err := m.ChatFunc(ctx, req)
		if err != nil {
			return nil, err
		}
		return streamResponse(resp), nil
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return streamResponse(&ChatResponse{
		Content:   m.Response,
		ToolCalls: m.ToolCalls,
		Usage: Usage{
			PromptTokens:     10,
			CompletionTokens: 10,
			TotalTokens:      20,
		},
	}), nil
}

// FailingMockProvider always fails.
type FailingMockProvider struct {
	Err error
}

// ChatStream implements Provider.
func (f *FailingMockProvider) ChatStream(_ context.Context, _ ChatRequest) (<-chan StreamChunk, error) {
	if f.Err == nil {
		return nil, fmt.Errorf("mock error")
	}
	return nil, f.Err
}

// streamResponse replays an assembled response as a chunk stream, the same
// way a real provider would deliver it.
func streamResponse(resp *ChatResponse) <-chan StreamChunk {
	chunks := make(chan StreamChunk, len(resp.ToolCalls)+2)
	if resp.Content != "" {
		chunks <- StreamChunk{Content: resp.Content}
	}
	for i, tc := range resp.ToolCalls {
		chunks <- StreamChunk{ToolCall: &ToolCallDelta{
			Index:     i,
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		}}
	}
	finish := resp.FinishReason
	if finish == "" {
		finish = FinishStop
		if len(resp.ToolCalls) > 0 {
			finish = FinishToolCalls
		}
	}
	usage := resp.Usage
	chunks <- StreamChunk{FinishReason: finish, Usage: &usage}
	close(chunks)
	return chunks
}
