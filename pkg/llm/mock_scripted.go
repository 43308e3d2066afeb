package llm

import (
	"context"
	"errors"
	"sync"
)

// ScriptedMockProvider is a mock provider that returns a pre-defined sequence
// of responses. Useful for testing multi-turn interactions (plan creation
// followed by summarization, for example).
type ScriptedMockProvider struct {
	mu        sync.Mutex
	Responses []*ChatResponse
	Err       error
	// CallCount tracks how many times ChatStream has been called
	CallCount int
	// Requests records every request for later inspection.
	Requests []ChatRequest
}

// NewScriptedMockProvider creates a ScriptedMockProvider from plain content
// responses.
func NewScriptedMockProvider(responses ...string) *ScriptedMockProvider {
	s := &ScriptedMockProvider{}
	for _, content := range responses {
		s.Responses = append(s.Responses, &ChatResponse{Content: content})
	}
	return s
}

// ChatStream pops the next scripted response or returns the configured error.
func (s *ScriptedMockProvider) ChatStream(_ context.Context, req ChatRequest) (<-chan StreamChunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.CallCount++
	s.Requests = append(s.Requests, req)

	if s.Err != nil {
		return nil, s.Err
	}

	if len(s.Responses) == 0 {
		return nil, errors.New("scripted mock: no more responses available")
	}

	resp := s.Responses[0]
	s.Responses = s.Responses[1:]
	if resp.Usage.TotalTokens == 0 {
		resp.Usage = Usage{PromptTokens: 10, CompletionTokens: 10, TotalTokens: 20}
	}
	return streamResponse(resp), nil
}

// AddResponse appends a content-only response to the queue.
func (s *ScriptedMockProvider) AddResponse(content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Responses = append(s.Responses, &ChatResponse{Content: content})
}

// AddToolCallResponse appends a response that requests tool calls.
func (s *ScriptedMockProvider) AddToolCallResponse(calls ...ToolCall) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Responses = append(s.Responses, &ChatResponse{
		ToolCalls:    calls,
		FinishReason: FinishToolCalls,
	})
}
