// Copyright 2026 © The Telos Authors
// SPDX-License-Identifier: Apache-2.0

package planner

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// templatePattern matches {{step_id.result.field}} and
// {{prev.result.field.subfield}} references inside string arguments.
var templatePattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_-]+)\.result\.([A-Za-z0-9_.-]+)\s*\}\}`)

// resolveString substitutes step-output references in a single string.
// Unresolved references become an explicit "[unresolved: id.field]" marker
// so the tool still receives syntactically valid input and downstream
// validation surfaces the problem.
func resolveString(s string, results map[string]any, prevID string) string {
	return templatePattern.ReplaceAllStringFunc(s, func(match string) string {
		groups := templatePattern.FindStringSubmatch(match)
		id, field := groups[1], groups[2]

		lookupID := id
		if id == "prev" {
			lookupID = prevID
		}
		value, ok := lookupField(results[lookupID], field)
		if !ok {
			return fmt.Sprintf("[unresolved: %s.%s]", id, field)
		}
		return renderValue(value)
	})
}

// lookupField walks a dotted field path through nested object results.
func lookupField(result any, field string) (any, bool) {
	current := result
	for _, part := range strings.Split(field, ".") {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = obj[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func renderValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case nil:
		return "null"
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}

// resolveArgs resolves templates in every string-valued argument,
// descending into nested maps and slices. The input map is not mutated.
func resolveArgs(args map[string]any, results map[string]any, prevID string) map[string]any {
	if args == nil {
		return nil
	}
	out := make(map[string]any, len(args))
	for k, v := range args {
		out[k] = resolveValue(v, results, prevID)
	}
	return out
}

func resolveValue(v any, results map[string]any, prevID string) any {
	switch val := v.(type) {
	case string:
		return resolveString(val, results, prevID)
	case map[string]any:
		return resolveArgs(val, results, prevID)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = resolveValue(item, results, prevID)
		}
		return out
	default:
		return v
	}
}
