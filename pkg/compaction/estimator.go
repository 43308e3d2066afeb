// Copyright 2026 © The Telos Authors
// SPDX-License-Identifier: Apache-2.0

// Package compaction keeps conversation state within a token budget derived
// from the model context length, by summarization across turns and selective
// truncation within a turn.
package compaction

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/jllopis/telos/pkg/llm"
)

const (
	// perMessageOverhead accounts for role framing and separators.
	perMessageOverhead = 4
	// perToolCallOverhead accounts for tool-call envelope framing.
	perToolCallOverhead = 8
	// exactWindow is how close (as a fraction of budget) the heuristic
	// estimate must be before the exact tokenizer is consulted.
	exactWindow = 0.1
)

// Estimator approximates token cost as ceil(chars/4) per message plus fixed
// per-message and per-tool-call overhead. When Exact is enabled, an exact
// tiktoken count replaces the heuristic only near the budget boundary, so
// the tokenizer cost is not paid on every message.
type Estimator struct {
	Exact    bool
	Encoding string

	once sync.Once
	enc  *tiktoken.Tiktoken
}

// Message estimates the token cost of a single message.
func (e *Estimator) Message(msg llm.Message) int {
	cost := perMessageOverhead + ceilDiv(len(msg.Content), 4)
	for _, tc := range msg.ToolCalls {
		cost += perToolCallOverhead + ceilDiv(len(tc.Function.Name)+len(tc.Function.Arguments), 4)
	}
	return cost
}

// Messages estimates the total token cost of a message list.
func (e *Estimator) Messages(messages []llm.Message) int {
	total := 0
	for _, msg := range messages {
		total += e.Message(msg)
	}
	return total
}

// MessagesNear estimates total cost, switching to the exact tokenizer when
// the heuristic lands within 10% of the budget boundary.
func (e *Estimator) MessagesNear(messages []llm.Message, budget int) int {
	heuristic := e.Messages(messages)
	if !e.Exact || budget <= 0 {
		return heuristic
	}
	margin := int(float64(budget) * exactWindow)
	if heuristic < budget-margin || heuristic > budget+margin {
		return heuristic
	}
	enc := e.encoder()
	if enc == nil {
		return heuristic
	}
	exact := 0
	for _, msg := range messages {
		exact += perMessageOverhead + len(enc.Encode(msg.Content, nil, nil))
		for _, tc := range msg.ToolCalls {
			exact += perToolCallOverhead + len(enc.Encode(tc.Function.Name+tc.Function.Arguments, nil, nil))
		}
	}
	return exact
}

// Text estimates the token cost of a bare string.
func (e *Estimator) Text(s string) int {
	return ceilDiv(len(s), 4)
}

func (e *Estimator) encoder() *tiktoken.Tiktoken {
	e.once.Do(func() {
		name := e.Encoding
		if name == "" {
			name = "cl100k_base"
		}
		enc, err := tiktoken.GetEncoding(name)
		if err == nil {
			e.enc = enc
		}
	})
	return e.enc
}

func ceilDiv(n, d int) int {
	return (n + d - 1) / d
}
