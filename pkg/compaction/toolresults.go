// Copyright 2026 © The Telos Authors
// SPDX-License-Identifier: Apache-2.0

package compaction

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jllopis/telos/pkg/llm"
)

const (
	defaultKeepRecentGroups = 2
	defaultStubThreshold    = 200
	// stubMaxDepth is how deep the structural stub recurses before
	// collapsing to a nesting marker.
	stubMaxDepth = 3
	// stubScalarLen is the longest string kept whole inside a stub.
	stubScalarLen = 80
	// hardTruncateLen is the prefix kept for unparseable content.
	hardTruncateLen = 500
)

// ToolResultsResult reports the outcome of a within-turn compaction.
type ToolResultsResult struct {
	Messages     []llm.Message
	Stubbed      int
	TokensBefore int
	TokensAfter  int
}

// CompactToolResults controls growth of tool-result payloads accumulated
// mid-turn. The last KeepRecentGroups assistant+tool-call groups are
// preserved unmodified; older tool results above the threshold are replaced
// with structurally-faithful stubs.
func (s *Service) CompactToolResults(messages []llm.Message) ToolResultsResult {
	res := ToolResultsResult{
		Messages:     messages,
		TokensBefore: s.est.Messages(messages),
	}
	res.TokensAfter = res.TokensBefore

	// Find the boundary by walking backward over assistant messages that
	// carry tool calls.
	boundary := 0
	groups := 0
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == llm.RoleAssistant && len(messages[i].ToolCalls) > 0 {
			groups++
			if groups == s.cfg.KeepRecentGroups {
				boundary = i
				break
			}
		}
	}
	if groups < s.cfg.KeepRecentGroups {
		return res
	}

	out := append([]llm.Message(nil), messages...)
	for i := 0; i < boundary; i++ {
		if out[i].Role != llm.RoleTool {
			continue
		}
		if s.est.Message(out[i]) <= s.cfg.StubThreshold {
			continue
		}
		out[i].Content = stubContent(out[i].Content)
		res.Stubbed++
	}
	if res.Stubbed == 0 {
		return res
	}
	res.Messages = out
	res.TokensAfter = s.est.Messages(out)
	s.metrics.RecordCompaction(context.Background(), "tool_results", res.TokensBefore, res.TokensAfter)
	return res
}

// stubContent reduces a tool-result body while keeping its shape readable.
// Structured content keeps small scalars and collapses the rest; anything
// unparseable is hard-truncated with an explicit marker.
func stubContent(content string) string {
	var parsed any
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		if len(content) <= hardTruncateLen {
			return content
		}
		cut := truncateRunes(content, hardTruncateLen)
		return fmt.Sprintf("%s\n[truncated %d chars]", cut, len(content)-len(cut))
	}
	stubbed := stubValue(parsed, 0)
	data, err := json.Marshal(stubbed)
	if err != nil {
		return "[unrenderable tool result]"
	}
	return string(data)
}

func stubValue(v any, depth int) any {
	if depth >= stubMaxDepth {
		return "[nested]"
	}
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = stubValue(item, depth+1)
		}
		return out
	case []any:
		if len(val) == 0 {
			return val
		}
		first := stubValue(val[0], depth+1)
		if len(val) == 1 {
			return []any{first}
		}
		return fmt.Sprintf("[%d items, first: %s]", len(val), renderScalar(first))
	case string:
		if len(val) <= stubScalarLen {
			return val
		}
		return fmt.Sprintf("[string: %d chars, %q…]", len(val), truncateRunes(val, stubScalarLen))
	default:
		return val
	}
}

func renderScalar(v any) string {
	switch val := v.(type) {
	case string:
		return val
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return "?"
		}
		return strings.TrimSpace(string(data))
	}
}
