// Copyright 2026 © The Telos Authors
// SPDX-License-Identifier: Apache-2.0

package compaction

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/jllopis/telos/pkg/llm"
	"github.com/jllopis/telos/pkg/telemetry"
)

const (
	defaultBudgetRatio     = 0.5
	defaultMinRetained     = 4
	defaultResponseReserve = 1024
	// fillFraction is how much of the available budget the retained tail
	// may consume during cross-turn compaction.
	fillFraction = 0.75
	// previewLen bounds message previews in the mechanical digest.
	previewLen = 120
)

// Config controls the compaction service.
type Config struct {
	// ContextLength is the model's context window in tokens.
	ContextLength int
	// BudgetRatio scales the context length into a history budget
	// (default 0.5, leaving headroom for schema and response).
	BudgetRatio float64
	// MinRetained is the floor of most-recent messages always kept
	// verbatim (default 4), even if that exceeds the budget.
	MinRetained int
	// ResponseReserve is the token allowance held back for the model's
	// response (default 1024).
	ResponseReserve int
	// Model used for summarization calls.
	Model string
	// KeepRecentGroups is how many trailing assistant+tool-call groups
	// within-turn compaction leaves untouched (default 2).
	KeepRecentGroups int
	// StubThreshold is the minimum estimated token cost before an old
	// tool result is stubbed (default 200).
	StubThreshold int
	// ExactTokens enables the exact tokenizer near the budget boundary.
	ExactTokens bool
}

func (c Config) withDefaults() Config {
	if c.BudgetRatio <= 0 {
		c.BudgetRatio = defaultBudgetRatio
	}
	if c.MinRetained <= 0 {
		c.MinRetained = defaultMinRetained
	}
	if c.ResponseReserve <= 0 {
		c.ResponseReserve = defaultResponseReserve
	}
	if c.KeepRecentGroups <= 0 {
		c.KeepRecentGroups = defaultKeepRecentGroups
	}
	if c.StubThreshold <= 0 {
		c.StubThreshold = defaultStubThreshold
	}
	return c
}

// Service performs cross-turn and within-turn compaction.
type Service struct {
	provider llm.Provider
	cfg      Config
	est      *Estimator
	metrics  *telemetry.PlanMetrics
}

// NewService creates a compaction service. The provider is used only for
// summarization; a nil provider forces the mechanical digest fallback.
func NewService(provider llm.Provider, cfg Config) *Service {
	cfg = cfg.withDefaults()
	s := &Service{
		provider: provider,
		cfg:      cfg,
		est:      &Estimator{Exact: cfg.ExactTokens},
	}
	// A nil PlanMetrics is a safe no-op.
	s.metrics, _ = telemetry.NewPlanMetrics()
	return s
}

// HistoryResult reports the outcome of a cross-turn compaction.
type HistoryResult struct {
	Messages        []llm.Message
	Summary         string
	SummaryUpdated  bool
	MessagesDropped int
	TokensBefore    int
	TokensAfter     int
	Budget          BudgetInfo
}

// CompactHistory trims conversation history to the budget once per user
// turn, before planning or response generation begins. schemaTokens is the
// estimated cost of the tool schema included with the next model call.
// An existing summary is merged into the new one, not concatenated.
func (s *Service) CompactHistory(ctx context.Context, messages []llm.Message, existingSummary string, schemaTokens int) (HistoryResult, error) {
	overhead := schemaTokens + s.cfg.ResponseReserve + s.est.Text(existingSummary)
	budget := computeBudget(s.cfg.ContextLength, s.cfg.BudgetRatio, overhead)

	before := s.est.MessagesNear(messages, budget.Available)
	res := HistoryResult{
		Messages:     messages,
		Summary:      existingSummary,
		TokensBefore: before,
		TokensAfter:  before,
		Budget:       budget,
	}
	if before <= budget.Available {
		return res, nil
	}

	// Walk backward accumulating tokens until 75% of the available budget
	// is consumed; everything older is summarized.
	target := int(float64(budget.Available) * fillFraction)
	boundary := len(messages)
	acc := 0
	for i := len(messages) - 1; i >= 0; i-- {
		cost := s.est.Message(messages[i])
		if acc+cost > target {
			break
		}
		acc += cost
		boundary = i
	}

	// Recent-context floor wins over strict budget adherence.
	if floor := len(messages) - s.cfg.MinRetained; boundary > floor {
		boundary = floor
	}
	if boundary <= 0 {
		return res, nil
	}

	dropped := messages[:boundary]
	retained := messages[boundary:]

	summary, err := s.summarize(ctx, dropped, existingSummary)
	if err != nil {
		slog.Warn("compaction.summarize.fallback", slog.String("error", err.Error()))
		summary = mechanicalDigest(dropped, existingSummary)
	}

	res.Messages = retained
	res.Summary = summary
	res.SummaryUpdated = true
	res.MessagesDropped = len(dropped)
	res.TokensAfter = s.est.Messages(retained)
	s.metrics.RecordCompaction(ctx, "history", res.TokensBefore, res.TokensAfter)
	return res, nil
}

// summarize asks the model for a third-person, fact-preserving digest that
// merges with any prior summary.
func (s *Service) summarize(ctx context.Context, dropped []llm.Message, existingSummary string) (string, error) {
	if s.provider == nil {
		return "", fmt.Errorf("no summarization provider configured")
	}

	var b strings.Builder
	if existingSummary != "" {
		b.WriteString("Earlier summary (merge, do not repeat verbatim):\n")
		b.WriteString(existingSummary)
		b.WriteString("\n\n")
	}
	b.WriteString("Conversation to fold in:\n")
	for _, msg := range dropped {
		fmt.Fprintf(&b, "%s: %s\n", msg.Role, msg.Content)
	}

	resp, err := llm.Chat(ctx, s.provider, llm.ChatRequest{
		Model: s.cfg.Model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: "You summarize conversations. Write a third-person digest of 200-400 words that preserves facts, names, numbers, decisions and open questions. Merge with any earlier summary into a single coherent digest."},
			{Role: llm.RoleUser, Content: b.String()},
		},
	})
	if err != nil {
		return "", err
	}
	summary := strings.TrimSpace(resp.Content)
	if summary == "" {
		return "", fmt.Errorf("empty summary from model")
	}
	return summary, nil
}

// mechanicalDigest is the deterministic fallback: truncated previews of the
// dropped user and assistant messages, no model call.
func mechanicalDigest(dropped []llm.Message, existingSummary string) string {
	var b strings.Builder
	if existingSummary != "" {
		b.WriteString(existingSummary)
		b.WriteString("\n")
	}
	b.WriteString("[mechanical digest]\n")
	for _, msg := range dropped {
		if msg.Role != llm.RoleUser && msg.Role != llm.RoleAssistant {
			continue
		}
		preview := strings.TrimSpace(msg.Content)
		if preview == "" {
			continue
		}
		if len(preview) > previewLen {
			preview = truncateRunes(preview, previewLen) + "…"
		}
		fmt.Fprintf(&b, "%s: %s\n", msg.Role, preview)
	}
	return strings.TrimSpace(b.String())
}

// truncateRunes cuts s to at most n bytes without splitting a UTF-8 rune.
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
