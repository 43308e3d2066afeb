// Copyright 2026 © The Telos Authors
// SPDX-License-Identifier: Apache-2.0

package planner

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/jllopis/telos/pkg/llm"
	"github.com/jllopis/telos/pkg/skills"
	"github.com/kaptinlin/jsonrepair"
)

// ErrNoPlan signals that the model declined to plan or produced output that
// could not be recovered into a plan. Callers fall back to single-shot
// tool calling.
var ErrNoPlan = stderrors.New("planner: no plan produced")

// maxPlanSteps caps how many steps a generated plan may carry.
const maxPlanSteps = 10

const planSystemPrompt = `You are a planning assistant. Decompose the user's goal into an ordered list of steps.

Respond with a single JSON object and nothing else:
{
  "goal": "restated goal, or null if no multi-step plan is needed",
  "steps": [
    {
      "id": "step_1",
      "description": "what this step does",
      "type": "tool" | "delegate",
      "tool": "tool name (type=tool only)",
      "arguments": {"param": "value"},
      "agent": "collaborator name (type=delegate only)",
      "task": "task text for the collaborator (type=delegate only)",
      "depends_on": ["step ids this step needs"],
      "expected": "expected outcome"
    }
  ]
}

Reference earlier step outputs in string arguments with {{step_id.result.field}} or {{prev.result.field}}.
If the goal is simple enough for a single tool call, return {"goal": null, "steps": []}.

Available skills:
`

// Creator produces execution plans from a model given the registry's
// Level-1 skill summaries.
type Creator struct {
	provider llm.Provider
	registry *skills.Registry
	model    string
	log      *slog.Logger
}

// NewCreator wires a plan creator to a provider and a skill registry.
func NewCreator(provider llm.Provider, registry *skills.Registry, model string) *Creator {
	return &Creator{
		provider: provider,
		registry: registry,
		model:    model,
		log:      slog.Default(),
	}
}

var multiStepMarkers = []string{
	" then ", " after that", " and then", " followed by", " finally ",
	"first,", "second,", "next,", "step 1", "step 2", "1.", "2.",
}

// NeedsPlan is a cheap gate that decides whether a message warrants a
// planning round trip at all. Best-effort: false negatives fall back to
// single-shot tool calling, which still works.
func NeedsPlan(message string) bool {
	lower := strings.ToLower(message)
	for _, marker := range multiStepMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	// Long multi-sentence requests tend to hide multiple actions.
	return len(message) > 240 && strings.Count(message, ".") >= 2
}

// Create asks the model for a plan. A null goal or unparseable response
// yields ErrNoPlan, never a hard failure.
func (c *Creator) Create(ctx context.Context, goal string) (*ExecutionPlan, error) {
	resp, err := llm.Chat(ctx, c.provider, llm.ChatRequest{
		Model: c.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: planSystemPrompt + c.registry.Level1Summaries()},
			{Role: llm.RoleUser, Content: goal},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("plan generation: %w", err)
	}

	parsed, err := parsePlanJSON(resp.Content)
	if err != nil {
		c.log.Warn("planner.parse_failed", slog.String("error", err.Error()))
		return nil, ErrNoPlan
	}
	if parsed.Goal == nil || strings.TrimSpace(*parsed.Goal) == "" || len(parsed.Steps) == 0 {
		return nil, ErrNoPlan
	}

	steps := parsed.Steps
	if len(steps) > maxPlanSteps {
		c.log.Warn("planner.steps_capped",
			slog.Int("requested", len(steps)),
			slog.Int("cap", maxPlanSteps),
		)
		steps = steps[:maxPlanSteps]
	}

	out := make([]*Step, 0, len(steps))
	for i, raw := range steps {
		step := raw.toStep()
		if step.ID == "" {
			step.ID = fmt.Sprintf("step_%d", i+1)
		}
		if step.Type == "" {
			step.Type = StepTool
		}
		// Unknown tool names are kept: the dispatch failure surfaces as
		// a per-step error instead of aborting plan construction.
		out = append(out, step)
	}
	return NewPlan(*parsed.Goal, out), nil
}

type stepJSON struct {
	ID           string         `json:"id"`
	Description  string         `json:"description"`
	Type         StepType       `json:"type"`
	Tool         string         `json:"tool"`
	Arguments    map[string]any `json:"arguments"`
	Agent        string         `json:"agent"`
	Task         string         `json:"task"`
	DependsOn    []string       `json:"depends_on"`
	Expected     string         `json:"expected"`
	Compensation *Compensation  `json:"compensation"`
}

func (s stepJSON) toStep() *Step {
	return &Step{
		ID:           s.ID,
		Description:  s.Description,
		Type:         s.Type,
		Tool:         s.Tool,
		Arguments:    s.Arguments,
		Agent:        s.Agent,
		Task:         s.Task,
		DependsOn:    s.DependsOn,
		Expected:     s.Expected,
		Compensation: s.Compensation,
		Status:       StepPending,
	}
}

type planJSON struct {
	Goal  *string    `json:"goal"`
	Steps []stepJSON `json:"steps"`
}

var jsonFencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// parsePlanJSON extracts the plan object from a model response, tolerating
// markdown fences and mildly malformed JSON.
func parsePlanJSON(content string) (*planJSON, error) {
	body := strings.TrimSpace(content)
	if m := jsonFencePattern.FindStringSubmatch(body); m != nil {
		body = strings.TrimSpace(m[1])
	}

	var plan planJSON
	if err := json.Unmarshal([]byte(body), &plan); err == nil {
		return &plan, nil
	}

	repaired, err := jsonrepair.JSONRepair(body)
	if err != nil {
		return nil, fmt.Errorf("unrecoverable plan JSON: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), &plan); err != nil {
		return nil, fmt.Errorf("repaired plan JSON still invalid: %w", err)
	}
	return &plan, nil
}
