// Copyright 2026 © The Telos Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Semantic conventions for telos orchestration telemetry. These follow
// OpenTelemetry naming conventions where applicable.
const (
	// Plan attributes
	AttrPlanID    = "telos.plan.id"
	AttrPlanGoal  = "telos.plan.goal"
	AttrPlanSteps = "telos.plan.steps"
	AttrPlanRunID = "telos.plan.run_id"

	// Step attributes
	AttrStepID      = "telos.step.id"
	AttrStepTool    = "telos.step.tool"
	AttrStepType    = "telos.step.type"
	AttrStepStatus  = "telos.step.status"
	AttrStepAttempt = "telos.step.attempt"

	// Tool attributes
	AttrToolName       = "telos.tool.name"
	AttrToolCallID     = "telos.tool.call_id"
	AttrToolSuccess    = "telos.tool.success"
	AttrToolDurationMs = "telos.tool.duration_ms"

	// Skill attributes
	AttrSkillName     = "telos.skill.name"
	AttrSkillVersion  = "telos.skill.version"
	AttrSkillAction   = "telos.skill.action"
	AttrSkillResource = "telos.skill.resource"

	// Compaction attributes
	AttrCompactionKind         = "telos.compaction.kind" // "history", "tool_results"
	AttrCompactionTokensBefore = "telos.compaction.tokens_before"
	AttrCompactionTokensAfter  = "telos.compaction.tokens_after"
	AttrCompactionDropped      = "telos.compaction.messages_dropped"
	AttrCompactionStubbed      = "telos.compaction.messages_stubbed"

	// Watcher attributes
	AttrDecisionKind     = "telos.decision.kind"
	AttrDecisionReason   = "telos.decision.reason"
	AttrDecisionFailures = "telos.decision.consecutive_failures"

	// LLM attributes (extending standard gen_ai conventions)
	AttrLLMModel        = "gen_ai.request.model"
	AttrLLMProvider     = "gen_ai.system"
	AttrLLMTokensInput  = "gen_ai.usage.input_tokens"
	AttrLLMTokensOutput = "gen_ai.usage.output_tokens"
	AttrLLMFinishReason = "gen_ai.finish_reason"
)

// PlanAttributes returns span attributes for a plan execution.
func PlanAttributes(planID, goal, runID string, steps int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrPlanID, planID),
		attribute.String(AttrPlanGoal, goal),
		attribute.String(AttrPlanRunID, runID),
		attribute.Int(AttrPlanSteps, steps),
	}
}

// StepAttributes returns span attributes for one step dispatch.
func StepAttributes(stepID, tool, stepType, status string, attempt int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrStepID, stepID),
		attribute.String(AttrStepTool, tool),
		attribute.String(AttrStepType, stepType),
		attribute.String(AttrStepStatus, status),
		attribute.Int(AttrStepAttempt, attempt),
	}
}

// SkillAttributes returns span attributes for a skill invocation.
func SkillAttributes(name, version, action string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrSkillName, name),
		attribute.String(AttrSkillVersion, version),
		attribute.String(AttrSkillAction, action),
	}
}

// CompactionAttributes returns span attributes for one compaction pass.
func CompactionAttributes(kind string, before, after, affected int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrCompactionKind, kind),
		attribute.Int(AttrCompactionTokensBefore, before),
		attribute.Int(AttrCompactionTokensAfter, after),
		attribute.Int(AttrCompactionDropped, affected),
	}
}

// DecisionAttributes returns span attributes for a watcher decision.
func DecisionAttributes(kind, reason string, failures int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrDecisionKind, kind),
		attribute.String(AttrDecisionReason, reason),
		attribute.Int(AttrDecisionFailures, failures),
	}
}
