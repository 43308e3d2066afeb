// Copyright 2026 © The Telos Authors
// SPDX-License-Identifier: Apache-2.0

package planner

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jllopis/telos/pkg/core"
	"github.com/jllopis/telos/pkg/llm"
	"github.com/jllopis/telos/pkg/skills"
)

func testRegistry(t *testing.T) *skills.Registry {
	t.Helper()
	reg := skills.NewRegistry()
	handler := core.ToolHandlerFunc(func(_ context.Context, call core.ToolCall) (core.ToolResult, error) {
		return core.SuccessResult(call, "ok"), nil
	})
	err := reg.Register(
		skills.SkillMetadata{Name: "weather", Description: "Weather lookups", Enabled: true},
		"Full weather documentation.",
		[]skills.ToolDefinition{{Name: "get_weather", Description: "Fetch current weather"}},
		handler,
	)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return reg
}

const validPlanResponse = `{
  "goal": "check the weather and report",
  "steps": [
    {"id": "step_1", "description": "fetch weather", "type": "tool", "tool": "get_weather", "arguments": {"city": "Denver"}},
    {"id": "step_2", "description": "report", "type": "tool", "tool": "send_report", "arguments": {"body": "{{step_1.result.summary}}"}, "depends_on": ["step_1"]}
  ]
}`

func TestCreatePlan(t *testing.T) {
	provider := &llm.MockProvider{Response: validPlanResponse}
	creator := NewCreator(provider, testRegistry(t), "test-model")

	plan, err := creator.Create(context.Background(), "check the weather and report")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if plan.Goal != "check the weather and report" {
		t.Fatalf("unexpected goal: %q", plan.Goal)
	}
	if len(plan.Steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(plan.Steps))
	}
	if plan.Steps[0].Status != StepPending {
		t.Fatalf("new steps must be pending, got %s", plan.Steps[0].Status)
	}
	if plan.MaxRetries != DefaultMaxRetries {
		t.Fatalf("unexpected retry budget: %d", plan.MaxRetries)
	}
	// Unknown tool references survive plan construction.
	if plan.Steps[1].Tool != "send_report" {
		t.Fatalf("unknown tool must be kept: %q", plan.Steps[1].Tool)
	}
}

func TestCreatePlanFencedAndRepaired(t *testing.T) {
	// Trailing comma plus a markdown fence: both recoverable.
	response := "Here is the plan:\n```json\n{\"goal\": \"g\", \"steps\": [{\"id\": \"step_1\", \"type\": \"tool\", \"tool\": \"get_weather\",},]}\n```"
	provider := &llm.MockProvider{Response: response}
	creator := NewCreator(provider, testRegistry(t), "test-model")

	plan, err := creator.Create(context.Background(), "g")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(plan.Steps) != 1 || plan.Steps[0].Tool != "get_weather" {
		t.Fatalf("unexpected plan: %+v", plan.Steps)
	}
}

func TestCreatePlanNullGoal(t *testing.T) {
	provider := &llm.MockProvider{Response: `{"goal": null, "steps": []}`}
	creator := NewCreator(provider, testRegistry(t), "test-model")

	_, err := creator.Create(context.Background(), "simple question")
	if !stderrors.Is(err, ErrNoPlan) {
		t.Fatalf("expected ErrNoPlan, got %v", err)
	}
}

func TestCreatePlanUnparseable(t *testing.T) {
	provider := &llm.MockProvider{Response: "I cannot produce a plan for that."}
	creator := NewCreator(provider, testRegistry(t), "test-model")

	_, err := creator.Create(context.Background(), "goal")
	if !stderrors.Is(err, ErrNoPlan) {
		t.Fatalf("expected ErrNoPlan, got %v", err)
	}
}

func TestCreatePlanStepCap(t *testing.T) {
	var steps []string
	for i := 1; i <= 15; i++ {
		steps = append(steps, fmt.Sprintf(`{"id": "step_%d", "type": "tool", "tool": "get_weather"}`, i))
	}
	response := fmt.Sprintf(`{"goal": "big", "steps": [%s]}`, strings.Join(steps, ","))
	provider := &llm.MockProvider{Response: response}
	creator := NewCreator(provider, testRegistry(t), "test-model")

	plan, err := creator.Create(context.Background(), "big")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(plan.Steps) != maxPlanSteps {
		t.Fatalf("expected cap at %d steps, got %d", maxPlanSteps, len(plan.Steps))
	}
}

func TestCreatePlanPromptCarriesSummaries(t *testing.T) {
	provider := llm.NewScriptedMockProvider(validPlanResponse)
	creator := NewCreator(provider, testRegistry(t), "test-model")

	if _, err := creator.Create(context.Background(), "goal"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(provider.Requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(provider.Requests))
	}
	system := provider.Requests[0].Messages[0].Content
	if !strings.Contains(system, "weather: Weather lookups") {
		t.Fatalf("system prompt must carry skill summaries, got:\n%s", system)
	}
}

func TestNeedsPlan(t *testing.T) {
	cases := []struct {
		message string
		want    bool
	}{
		{"what time is it?", false},
		{"fetch the weather and then email it to the team", true},
		{"first, download the report. second, summarize it", true},
		{"hello", false},
	}
	for _, tc := range cases {
		if got := NeedsPlan(tc.message); got != tc.want {
			t.Fatalf("NeedsPlan(%q) = %v, want %v", tc.message, got, tc.want)
		}
	}
}
