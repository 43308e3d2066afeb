// Copyright 2026 © The Telos Authors
// SPDX-License-Identifier: Apache-2.0

// Package anthropic provides an Anthropic Claude API provider for Telos.
package anthropic

import (
	"context"
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/jllopis/telos/pkg/llm"
)

// Provider implements llm.Provider for the Anthropic Messages API.
type Provider struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// Option configures the Provider.
type Option func(*Provider)

// WithModel sets the default model.
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithMaxTokens sets the maximum tokens for responses.
func WithMaxTokens(tokens int64) Option {
	return func(p *Provider) {
		p.maxTokens = tokens
	}
}

// WithBaseURL sets a custom base URL.
func WithBaseURL(url string) Option {
	return func(p *Provider) {
		p.client = anthropic.NewClient(option.WithBaseURL(url))
	}
}

// WithAPIKey sets the API key.
func WithAPIKey(apiKey string) Option {
	return func(p *Provider) {
		p.client = anthropic.NewClient(option.WithAPIKey(apiKey))
	}
}

// New creates a new Anthropic provider.
// API key is read from ANTHROPIC_API_KEY environment variable by default.
func New(opts ...Option) *Provider {
	p := &Provider{
		client:    anthropic.NewClient(),
		model:     "claude-sonnet-4-20250514",
		maxTokens: 4096,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewWithAPIKey creates a new Anthropic provider with explicit API key.
func NewWithAPIKey(apiKey string, opts ...Option) *Provider {
	opts = append([]Option{WithAPIKey(apiKey)}, opts...)
	return New(opts...)
}

// ChatStream implements llm.Provider over the Messages streaming API.
//
// Anthropic identifies tool-use blocks by content-block index, which
// counts text blocks too; the adapter remaps those to dense tool-call
// indexes so argument fragments reassemble per call.
func (p *Provider) ChatStream(ctx context.Context, req llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	params := p.buildParams(req)
	stream := p.client.Messages.NewStreaming(ctx, params)
	chunks := make(chan llm.StreamChunk, 100)

	go func() {
		defer close(chunks)

		emit := func(chunk llm.StreamChunk) bool {
			select {
			case chunks <- chunk:
				return true
			case <-ctx.Done():
				chunks <- llm.StreamChunk{Err: ctx.Err()}
				return false
			}
		}

		toolIndex := make(map[int64]int) // content block index -> tool call index
		nextTool := 0
		var promptTokens int64
		sawToolUse := false

		for stream.Next() {
			switch event := stream.Current().AsAny().(type) {
			case anthropic.MessageStartEvent:
				promptTokens = event.Message.Usage.InputTokens

			case anthropic.ContentBlockStartEvent:
				block, ok := event.ContentBlock.AsAny().(anthropic.ToolUseBlock)
				if !ok {
					continue
				}
				sawToolUse = true
				toolIndex[event.Index] = nextTool
				ok = emit(llm.StreamChunk{ToolCall: &llm.ToolCallDelta{
					Index: nextTool,
					ID:    block.ID,
					Name:  block.Name,
				}})
				if !ok {
					return
				}
				nextTool++

			case anthropic.ContentBlockDeltaEvent:
				switch delta := event.Delta.AsAny().(type) {
				case anthropic.TextDelta:
					if delta.Text != "" && !emit(llm.StreamChunk{Content: delta.Text}) {
						return
					}
				case anthropic.InputJSONDelta:
					idx, known := toolIndex[event.Index]
					if !known || delta.PartialJSON == "" {
						continue
					}
					ok := emit(llm.StreamChunk{ToolCall: &llm.ToolCallDelta{
						Index:     idx,
						Arguments: delta.PartialJSON,
					}})
					if !ok {
						return
					}
				}

			case anthropic.MessageDeltaEvent:
				usage := llm.Usage{
					PromptTokens:     int(promptTokens),
					CompletionTokens: int(event.Usage.OutputTokens),
					TotalTokens:      int(promptTokens + event.Usage.OutputTokens),
				}
				chunk := llm.StreamChunk{
					FinishReason: finishReason(string(event.Delta.StopReason), sawToolUse),
					Usage:        &usage,
				}
				if !emit(chunk) {
					return
				}
			}
		}

		if err := stream.Err(); err != nil {
			chunks <- llm.StreamChunk{Err: err}
		}
	}()

	return chunks, nil
}

func (p *Provider) buildParams(req llm.ChatRequest) anthropic.MessageNewParams {
	model := req.Model
	if model == "" {
		model = p.model
	}

	// Anthropic carries the system prompt outside the message list.
	var systemPrompt string
	messages := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, msg := range req.Messages {
		if msg.Role == llm.RoleSystem {
			systemPrompt = msg.Content
			continue
		}
		messages = append(messages, convertMessage(msg))
	}

	params := anthropic.MessageNewParams{
		Model:     model,
		MaxTokens: p.maxTokens,
		Messages:  messages,
	}

	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{
			{Type: "text", Text: systemPrompt},
		}
	}

	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}

	if len(req.Tools) > 0 {
		tools := make([]anthropic.ToolUnionParam, 0, len(req.Tools))
		for _, tool := range req.Tools {
			tools = append(tools, convertTool(tool))
		}
		params.Tools = tools
	}

	return params
}

func finishReason(stopReason string, hasToolUse bool) llm.FinishReason {
	switch stopReason {
	case "tool_use":
		return llm.FinishToolCalls
	case "max_tokens":
		return llm.FinishLength
	default:
		if hasToolUse {
			return llm.FinishToolCalls
		}
		return llm.FinishStop
	}
}

// convertMessage converts a Telos message to Anthropic format.
func convertMessage(msg llm.Message) anthropic.MessageParam {
	switch msg.Role {
	case llm.RoleUser:
		return anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content))
	case llm.RoleAssistant:
		if len(msg.ToolCalls) > 0 {
			blocks := make([]anthropic.ContentBlockParamUnion, 0, len(msg.ToolCalls)+1)
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				var input map[string]interface{}
				json.Unmarshal([]byte(tc.Function.Arguments), &input)
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, input, tc.Function.Name))
			}
			return anthropic.MessageParam{
				Role:    "assistant",
				Content: blocks,
			}
		}
		return anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content))
	case llm.RoleTool:
		// Anthropic requires tool results as user messages.
		return anthropic.NewUserMessage(
			anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, false),
		)
	default:
		return anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content))
	}
}

// convertTool converts a Telos tool to Anthropic format.
func convertTool(tool llm.Tool) anthropic.ToolUnionParam {
	paramsJSON, _ := json.Marshal(tool.Function.Parameters)
	var inputSchema anthropic.ToolInputSchemaParam
	json.Unmarshal(paramsJSON, &inputSchema)

	return anthropic.ToolUnionParam{
		OfTool: &anthropic.ToolParam{
			Name:        tool.Function.Name,
			Description: anthropic.String(tool.Function.Description),
			InputSchema: inputSchema,
		},
	}
}

// Ensure Provider implements llm.Provider.
var _ llm.Provider = (*Provider)(nil)
