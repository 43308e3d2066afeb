// Copyright 2026 © The Telos Authors
// SPDX-License-Identifier: Apache-2.0

package planner

import (
	"testing"
)

func TestResolveStringField(t *testing.T) {
	results := map[string]any{
		"step_1": map[string]any{"city": "Denver"},
	}
	got := resolveString("weather in {{step_1.result.city}}", results, "")
	if got != "weather in Denver" {
		t.Fatalf("unexpected resolution: %q", got)
	}
}

func TestResolveStringMissingStep(t *testing.T) {
	got := resolveString("{{step_1.result.city}}", map[string]any{}, "")
	if got != "[unresolved: step_1.city]" {
		t.Fatalf("expected unresolved marker, got %q", got)
	}
}

func TestResolveStringMissingField(t *testing.T) {
	results := map[string]any{
		"step_1": map[string]any{"city": "Denver"},
	}
	got := resolveString("{{step_1.result.country}}", results, "")
	if got != "[unresolved: step_1.country]" {
		t.Fatalf("expected unresolved marker, got %q", got)
	}
}

func TestResolveStringNonObjectResult(t *testing.T) {
	results := map[string]any{
		"step_1": "plain text result",
	}
	got := resolveString("{{step_1.result.city}}", results, "")
	if got != "[unresolved: step_1.city]" {
		t.Fatalf("expected unresolved marker for non-object result, got %q", got)
	}
}

func TestResolveStringPrev(t *testing.T) {
	results := map[string]any{
		"step_2": map[string]any{"id": "abc-123"},
	}
	got := resolveString("cleanup {{prev.result.id}}", results, "step_2")
	if got != "cleanup abc-123" {
		t.Fatalf("unexpected prev resolution: %q", got)
	}

	got = resolveString("{{prev.result.id}}", results, "")
	if got != "[unresolved: prev.id]" {
		t.Fatalf("expected unresolved prev marker, got %q", got)
	}
}

func TestResolveStringNestedField(t *testing.T) {
	results := map[string]any{
		"step_1": map[string]any{
			"location": map[string]any{"city": "Madrid"},
		},
	}
	got := resolveString("{{step_1.result.location.city}}", results, "")
	if got != "Madrid" {
		t.Fatalf("unexpected nested resolution: %q", got)
	}
}

func TestResolveStringNonStringValue(t *testing.T) {
	results := map[string]any{
		"step_1": map[string]any{"count": float64(7)},
	}
	got := resolveString("found {{step_1.result.count}} rows", results, "")
	if got != "found 7 rows" {
		t.Fatalf("unexpected numeric resolution: %q", got)
	}
}

func TestResolveArgsNested(t *testing.T) {
	results := map[string]any{
		"step_1": map[string]any{"city": "Denver"},
	}
	args := map[string]any{
		"query": "{{step_1.result.city}}",
		"options": map[string]any{
			"region": "{{step_1.result.city}} metro",
		},
		"tags":  []any{"{{step_1.result.city}}", 42},
		"limit": 10,
	}

	resolved := resolveArgs(args, results, "")
	if resolved["query"] != "Denver" {
		t.Fatalf("top-level arg not resolved: %v", resolved["query"])
	}
	opts := resolved["options"].(map[string]any)
	if opts["region"] != "Denver metro" {
		t.Fatalf("nested map arg not resolved: %v", opts["region"])
	}
	tags := resolved["tags"].([]any)
	if tags[0] != "Denver" || tags[1] != 42 {
		t.Fatalf("slice arg not resolved: %v", tags)
	}
	if resolved["limit"] != 10 {
		t.Fatalf("non-string arg must pass through: %v", resolved["limit"])
	}
	// Input untouched.
	if args["query"] != "{{step_1.result.city}}" {
		t.Fatalf("input args mutated")
	}
}
