// Copyright 2026 © The Telos Authors
// SPDX-License-Identifier: Apache-2.0

package compaction

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/jllopis/telos/pkg/llm"
)

func userMsg(content string) llm.Message {
	return llm.Message{Role: llm.RoleUser, Content: content}
}

func assistantMsg(content string) llm.Message {
	return llm.Message{Role: llm.RoleAssistant, Content: content}
}

func TestCompactHistoryWithinBudgetUnchanged(t *testing.T) {
	svc := NewService(&llm.MockProvider{Response: "should not be called"}, Config{
		ContextLength: 128000,
	})

	history := []llm.Message{
		userMsg("hello"),
		assistantMsg("hi there"),
		userMsg("what is the weather?"),
	}

	res, err := svc.CompactHistory(context.Background(), history, "", 0)
	if err != nil {
		t.Fatalf("compact: %v", err)
	}
	if res.SummaryUpdated {
		t.Fatalf("expected summaryUpdated=false for in-budget history")
	}
	if res.MessagesDropped != 0 {
		t.Fatalf("expected 0 dropped, got %d", res.MessagesDropped)
	}
	if len(res.Messages) != len(history) {
		t.Fatalf("expected input unchanged, got %d messages", len(res.Messages))
	}
	if res.TokensBefore != res.TokensAfter {
		t.Fatalf("expected identical before/after estimates")
	}
}

func TestCompactHistoryFloor(t *testing.T) {
	// Extreme pressure: the budget collapses to nothing, yet the last 4
	// messages must be retained verbatim.
	svc := NewService(nil, Config{ContextLength: 2})

	history := make([]llm.Message, 0, 20)
	for i := 0; i < 20; i++ {
		history = append(history, userMsg(strings.Repeat("x", 200)))
	}

	res, err := svc.CompactHistory(context.Background(), history, "", 0)
	if err != nil {
		t.Fatalf("compact: %v", err)
	}
	if len(res.Messages) != 4 {
		t.Fatalf("expected exactly 4 retained messages, got %d", len(res.Messages))
	}
	for i, msg := range res.Messages {
		if msg.Content != history[16+i].Content {
			t.Fatalf("retained message %d is not verbatim tail", i)
		}
	}
	if res.MessagesDropped != 16 {
		t.Fatalf("expected 16 dropped, got %d", res.MessagesDropped)
	}
	if !res.SummaryUpdated {
		t.Fatalf("expected summary to be produced")
	}
}

func TestCompactHistoryModelSummary(t *testing.T) {
	provider := &llm.MockProvider{Response: "A digest of the earlier conversation."}
	svc := NewService(provider, Config{ContextLength: 400})

	history := make([]llm.Message, 0, 12)
	for i := 0; i < 12; i++ {
		history = append(history, userMsg(strings.Repeat("long message body ", 20)))
	}

	res, err := svc.CompactHistory(context.Background(), history, "prior summary", 0)
	if err != nil {
		t.Fatalf("compact: %v", err)
	}
	if !res.SummaryUpdated {
		t.Fatalf("expected summary update")
	}
	if res.Summary != "A digest of the earlier conversation." {
		t.Fatalf("expected model summary, got %q", res.Summary)
	}
	if res.TokensAfter >= res.TokensBefore {
		t.Fatalf("expected token reduction: before=%d after=%d", res.TokensBefore, res.TokensAfter)
	}
}

func TestCompactHistorySummarizerFallback(t *testing.T) {
	provider := &llm.FailingMockProvider{Err: errors.New("provider down")}
	svc := NewService(provider, Config{ContextLength: 400})

	history := make([]llm.Message, 0, 12)
	for i := 0; i < 12; i++ {
		history = append(history, userMsg(strings.Repeat("fact-bearing message ", 20)))
	}

	res, err := svc.CompactHistory(context.Background(), history, "", 0)
	if err != nil {
		t.Fatalf("compact: %v", err)
	}
	if !strings.Contains(res.Summary, "[mechanical digest]") {
		t.Fatalf("expected mechanical digest fallback, got %q", res.Summary)
	}
	if !strings.Contains(res.Summary, "fact-bearing") {
		t.Fatalf("expected digest to carry message previews")
	}
}

func TestCompactHistoryMergesExistingSummary(t *testing.T) {
	svc := NewService(nil, Config{ContextLength: 400})

	history := make([]llm.Message, 0, 12)
	for i := 0; i < 12; i++ {
		history = append(history, assistantMsg(strings.Repeat("assistant reply ", 20)))
	}

	res, err := svc.CompactHistory(context.Background(), history, "earlier facts", 0)
	if err != nil {
		t.Fatalf("compact: %v", err)
	}
	if !strings.HasPrefix(res.Summary, "earlier facts") {
		t.Fatalf("mechanical digest must carry the prior summary forward: %q", res.Summary)
	}
}

func TestEstimatorHeuristic(t *testing.T) {
	est := &Estimator{}
	msg := userMsg(strings.Repeat("a", 40))
	// 40 chars / 4 + per-message overhead
	if got := est.Message(msg); got != 10+perMessageOverhead {
		t.Fatalf("unexpected estimate: %d", got)
	}

	withCall := llm.Message{
		Role: llm.RoleAssistant,
		ToolCalls: []llm.ToolCall{{
			Function: llm.FunctionCall{Name: "search", Arguments: `{"q":"golang"}`},
		}},
	}
	if got := est.Message(withCall); got <= perMessageOverhead {
		t.Fatalf("tool call must add cost, got %d", got)
	}
}

func TestMechanicalDigestKeepsRuneBoundary(t *testing.T) {
	long := "#" + strings.Repeat("é", previewLen)
	digest := mechanicalDigest([]llm.Message{userMsg(long)}, "")
	if !utf8.ValidString(digest) {
		t.Fatalf("digest is invalid UTF-8: %q", digest)
	}
	if !strings.Contains(digest, "…") {
		t.Fatalf("expected truncation marker, got %q", digest)
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := truncateRunes("hello", 10); got != "hello" {
		t.Fatalf("short string must pass through, got %q", got)
	}
	got := truncateRunes("aé", 2)
	if got != "a" {
		t.Fatalf("expected cut before the split rune, got %q", got)
	}
	if got = truncateRunes("héllo", 3); got != "hé" {
		t.Fatalf("expected cut on the rune boundary, got %q", got)
	}
}
