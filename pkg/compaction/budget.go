// Copyright 2026 © The Telos Authors
// SPDX-License-Identifier: Apache-2.0

package compaction

import "math"

// BudgetInfo is the token budget for one compaction call. It is recomputed
// on every call and never cached across turns.
type BudgetInfo struct {
	// Total is floor(context_length * budget_ratio).
	Total int
	// Overhead is the fixed cost outside history: system prompt, tool
	// schema and reserved response tokens.
	Overhead int
	// Available is what remains for message history.
	Available int
}

// computeBudget derives the budget from model context length.
func computeBudget(contextLength int, ratio float64, overhead int) BudgetInfo {
	if ratio <= 0 {
		ratio = defaultBudgetRatio
	}
	total := int(math.Floor(float64(contextLength) * ratio))
	available := total - overhead
	if available < 0 {
		available = 0
	}
	return BudgetInfo{Total: total, Overhead: overhead, Available: available}
}
