// Copyright 2026 © The Telos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/jllopis/telos/pkg/config"
	"github.com/jllopis/telos/pkg/core"
)

func TestParseGlobalFlags(t *testing.T) {
	flags, args, err := parseGlobalFlags([]string{"--json", "--config", "telos.yaml", "run", "--goal", "x"})
	if err != nil {
		t.Fatalf("parseGlobalFlags failed: %v", err)
	}
	if !flags.JSON {
		t.Error("expected JSON flag set")
	}
	if flags.ConfigPath != "telos.yaml" {
		t.Errorf("expected config path telos.yaml, got %q", flags.ConfigPath)
	}
	if len(args) != 3 || args[0] != "run" {
		t.Errorf("expected remaining args starting at run, got %v", args)
	}
}

func TestParseGlobalFlagsConfigEquals(t *testing.T) {
	flags, _, err := parseGlobalFlags([]string{"--config=other.yaml", "skills"})
	if err != nil {
		t.Fatalf("parseGlobalFlags failed: %v", err)
	}
	if flags.ConfigPath != "other.yaml" {
		t.Errorf("expected config path other.yaml, got %q", flags.ConfigPath)
	}
}

func TestParseGlobalFlagsUnknown(t *testing.T) {
	if _, _, err := parseGlobalFlags([]string{"--bogus"}); err == nil {
		t.Fatal("expected error for unknown flag")
	}
}

func TestCreateProvider(t *testing.T) {
	tests := []struct {
		provider string
		wantErr  bool
	}{
		{"ollama", false},
		{"", false},
		{"mock", false},
		{"something-else", true},
	}

	for _, tt := range tests {
		cfg := &config.Config{}
		cfg.LLM.Provider = tt.provider
		_, err := createProvider(cfg)
		if tt.wantErr && err == nil {
			t.Errorf("createProvider(%q): expected error", tt.provider)
		}
		if !tt.wantErr && err != nil {
			t.Errorf("createProvider(%q): unexpected error %v", tt.provider, err)
		}
	}
}

func TestConsoleEmitterText(t *testing.T) {
	var buf bytes.Buffer
	emitter := newConsoleEmitter(&buf, false)

	emitter.Emit(context.Background(), core.NewEvent(core.EventPlanCreated, "plan-1", map[string]any{
		"goal": "fetch weather",
		"steps": []map[string]any{
			{"id": "step_1", "description": "Get forecast", "toolName": "get_weather", "status": "pending"},
		},
	}))
	emitter.Emit(context.Background(), core.NewEvent(core.EventPlanStepUpdate, "plan-1", map[string]any{
		"stepId": "step_1",
		"status": "completed",
		"result": "sunny",
	}))
	emitter.Emit(context.Background(), core.NewEvent(core.EventPlanCompleted, "plan-1", map[string]any{
		"summary": "1 succeeded, 0 failed of 1 steps",
	}))

	out := buf.String()
	for _, want := range []string{"fetch weather", "step_1", "get_weather", "sunny", "1 succeeded"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestConsoleEmitterJSON(t *testing.T) {
	var buf bytes.Buffer
	emitter := newConsoleEmitter(&buf, true)

	emitter.Emit(context.Background(), core.NewEvent(core.EventPlanCompleted, "plan-1", map[string]any{
		"summary": "done",
	}))

	out := buf.String()
	if !strings.Contains(out, `"plan_completed"`) || !strings.Contains(out, `"plan-1"`) {
		t.Errorf("expected JSON event output, got %s", out)
	}
}
