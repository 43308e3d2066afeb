// Copyright 2026 © The Telos Authors
// SPDX-License-Identifier: Apache-2.0

// Package planner turns a goal into an executable multi-step plan and runs
// it to completion: dependency gating, templated data flow between steps,
// retry/skip/rollback/abort recovery, and streamed progress events.
package planner

import (
	"github.com/google/uuid"
)

// StepStatus is the lifecycle state of a plan step. Steps move
// pending → running → one of the four terminal states and never back.
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepRunning    StepStatus = "running"
	StepCompleted  StepStatus = "completed"
	StepFailed     StepStatus = "failed"
	StepRolledBack StepStatus = "rolled_back"
	StepSkipped    StepStatus = "skipped"
)

// Terminal reports whether the status is final.
func (s StepStatus) Terminal() bool {
	switch s {
	case StepCompleted, StepFailed, StepRolledBack, StepSkipped:
		return true
	}
	return false
}

// StepType distinguishes direct tool calls from delegations to a
// collaborating agent. Delegation is dispatched through the same tool
// executor, rewritten to a fixed delegation tool.
type StepType string

const (
	StepTool     StepType = "tool"
	StepDelegate StepType = "delegate"
)

// Compensation is an optional compensating tool call run during rollback.
type Compensation struct {
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// Step is one planned unit of work. Target fields depend on Type: Tool and
// Arguments for tool steps, Agent and Task for delegate steps.
type Step struct {
	ID          string         `json:"id"`
	Description string         `json:"description"`
	Type        StepType       `json:"type"`
	Tool        string         `json:"tool,omitempty"`
	Arguments   map[string]any `json:"arguments,omitempty"`
	Agent       string         `json:"agent,omitempty"`
	Task        string         `json:"task,omitempty"`
	DependsOn   []string       `json:"depends_on,omitempty"`
	Expected    string         `json:"expected,omitempty"`

	Status StepStatus `json:"status"`
	// StatusText carries the human-visible reason for a failed or
	// skipped step.
	StatusText   string        `json:"status_text,omitempty"`
	Retries      int           `json:"retries"`
	Result       any           `json:"result,omitempty"`
	Compensation *Compensation `json:"compensation,omitempty"`
}

// ToolName returns the tool a dispatch for this step targets.
func (s *Step) ToolName() string {
	if s.Type == StepDelegate {
		return DelegateToolName
	}
	return s.Tool
}

// ExecutionPlan is created once per planning decision. Steps mutate in
// place during execution; the plan is not persisted beyond the turn.
type ExecutionPlan struct {
	ID         string  `json:"id"`
	Goal       string  `json:"goal"`
	Steps      []*Step `json:"steps"`
	MaxRetries int     `json:"max_retries"`
}

// DefaultMaxRetries is the per-step retry budget.
const DefaultMaxRetries = 2

// NewPlan builds a plan with a generated ID and the default retry budget.
func NewPlan(goal string, steps []*Step) *ExecutionPlan {
	for _, step := range steps {
		if step.Status == "" {
			step.Status = StepPending
		}
	}
	return &ExecutionPlan{
		ID:         "plan-" + uuid.NewString(),
		Goal:       goal,
		Steps:      steps,
		MaxRetries: DefaultMaxRetries,
	}
}

// Step returns the step with the given ID, or nil.
func (p *ExecutionPlan) Step(id string) *Step {
	for _, step := range p.Steps {
		if step.ID == id {
			return step
		}
	}
	return nil
}
