// Copyright 2026 © The Telos Authors
// SPDX-License-Identifier: Apache-2.0

package planner

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/jllopis/telos/pkg/core"
	"github.com/jllopis/telos/pkg/errors"
	"github.com/jllopis/telos/pkg/telemetry"
	"github.com/jllopis/telos/pkg/watcher"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DelegateToolName is the fixed tool a delegate step is rewritten to.
// Delegation is a degenerate form of tool dispatch, not a separate path.
const DelegateToolName = "delegate_to_agent"

// resultPreviewLen bounds the result text carried in step-update events.
const resultPreviewLen = 150

// ToolExecutor is the single dispatch point for every step, whether tool
// or delegate typed. attempt is zero-based and increments on retries.
type ToolExecutor interface {
	Execute(ctx context.Context, call core.ToolCall, attempt int) (core.ToolResult, error)
}

// ToolExecutorFunc adapts a function to the ToolExecutor interface.
type ToolExecutorFunc func(ctx context.Context, call core.ToolCall, attempt int) (core.ToolResult, error)

// Execute implements ToolExecutor.
func (f ToolExecutorFunc) Execute(ctx context.Context, call core.ToolCall, attempt int) (core.ToolResult, error) {
	return f(ctx, call, attempt)
}

// DecisionPolicy classifies a step outcome into a recovery action. The
// default is a fresh watcher per run; custom policies can additionally
// request rollbacks.
type DecisionPolicy interface {
	Evaluate(watcher.Outcome) watcher.Decision
}

// PolicyFactory builds one DecisionPolicy per run, so counter state is
// never shared across executions.
type PolicyFactory func() DecisionPolicy

// RunResult summarizes a finished plan execution.
type RunResult struct {
	Succeeded   int
	Failed      int
	Total       int
	Aborted     bool
	AbortReason string
	Summary     string
}

// Runner executes plans sequentially: one step at a time, in declared
// order, awaiting each dispatch to completion. Step execution is
// single-threaded by design; a Runner may serve concurrent Run calls
// because all per-execution state lives in the run, not the Runner.
type Runner struct {
	exec      ToolExecutor
	emitter   core.EventEmitter
	audit     AuditStore
	threshold int
	newPolicy PolicyFactory
	tracer    trace.Tracer
	metrics   *telemetry.PlanMetrics
	log       *slog.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithEmitter sets the progress event sink.
func WithEmitter(e core.EventEmitter) RunnerOption {
	return func(r *Runner) {
		if e != nil {
			r.emitter = e
		}
	}
}

// WithAuditStore records step transitions to the given store.
func WithAuditStore(s AuditStore) RunnerOption {
	return func(r *Runner) { r.audit = s }
}

// WithFailureThreshold overrides the consecutive-failure abort threshold.
func WithFailureThreshold(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.threshold = n
		}
	}
}

// WithDecisionPolicy replaces the default per-run watcher.
func WithDecisionPolicy(f PolicyFactory) RunnerOption {
	return func(r *Runner) {
		if f != nil {
			r.newPolicy = f
		}
	}
}

// NewRunner creates a plan runner around a tool executor.
func NewRunner(exec ToolExecutor, opts ...RunnerOption) *Runner {
	r := &Runner{
		exec:      exec,
		emitter:   core.NoopEventEmitter{},
		threshold: watcher.DefaultFailureThreshold,
		tracer:    otel.Tracer("telos/planner"),
		log:       slog.Default(),
	}
	// Counter registration only fails on a misconfigured meter provider;
	// a nil PlanMetrics is a safe no-op either way.
	r.metrics, _ = telemetry.NewPlanMetrics()
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes the plan to completion and returns aggregate counts. Steps
// mutate in place, so the caller can inspect per-step outcomes afterwards.
// The only error returned is context cancellation; every other fault is
// contained within a step.
func (r *Runner) Run(ctx context.Context, plan *ExecutionPlan) (RunResult, error) {
	ctx, runID := core.EnsureRunID(ctx)
	ctx, span := r.tracer.Start(ctx, "Planner.Run",
		trace.WithAttributes(
			attribute.String("plan.id", plan.ID),
			attribute.String("run.id", runID),
			attribute.Int("plan.steps", len(plan.Steps)),
		),
	)
	defer span.End()

	if plan.MaxRetries <= 0 {
		plan.MaxRetries = DefaultMaxRetries
	}

	policy := DecisionPolicy(nil)
	if r.newPolicy != nil {
		policy = r.newPolicy()
	}
	if policy == nil {
		policy = watcher.New(watcher.WithThreshold(r.threshold))
	}

	run := &planRun{
		runner:  r,
		plan:    plan,
		runID:   runID,
		policy:  policy,
		results: make(map[string]any),
	}

	r.log.Info("planner.run.start",
		slog.String("plan_id", plan.ID),
		slog.String("run_id", runID),
		slog.String("goal", plan.Goal),
		slog.Int("steps", len(plan.Steps)),
	)
	r.metrics.RecordRun(ctx)
	r.emit(ctx, core.EventPlanCreated, plan.ID, map[string]any{
		"goal":  plan.Goal,
		"steps": stepOutlines(plan.Steps),
	})

	for _, step := range plan.Steps {
		if err := ctx.Err(); err != nil {
			return run.finish(ctx, "plan cancelled"), err
		}
		if run.aborted {
			break
		}
		run.executeStep(ctx, step)
	}

	res := run.finish(ctx, "")
	r.log.Info("planner.run.done",
		slog.String("plan_id", plan.ID),
		slog.String("run_id", runID),
		slog.Int("succeeded", res.Succeeded),
		slog.Int("failed", res.Failed),
		slog.Bool("aborted", res.Aborted),
	)
	return res, nil
}

// planRun holds all mutable state of one execution. The watcher's
// consecutive-failure counter lives here and is never shared across runs.
type planRun struct {
	runner  *Runner
	plan    *ExecutionPlan
	runID   string
	policy  DecisionPolicy
	results map[string]any
	prevID  string

	aborted     bool
	abortReason string
}

func (run *planRun) executeStep(ctx context.Context, step *Step) {
	r := run.runner

	// Dependency gate: checked immediately before the step would start.
	if unmet := run.unmetDependency(step); unmet != "" {
		step.Status = StepSkipped
		step.StatusText = fmt.Sprintf("dependency %s did not complete", unmet)
		r.log.Warn("planner.step.dep_skip",
			slog.String("plan_id", run.plan.ID),
			slog.String("step_id", step.ID),
			slog.String("dependency", unmet),
		)
		run.transition(ctx, step, nil)
		return
	}

	step.Status = StepRunning
	run.transition(ctx, step, nil)

	ctx, span := r.tracer.Start(ctx, "Planner.Step",
		trace.WithAttributes(
			attribute.String("step.id", step.ID),
			attribute.String("step.tool", step.ToolName()),
			attribute.String("step.type", string(step.Type)),
		),
	)
	defer span.End()

	args := run.resolveStepArgs(step)
	attempt := 0
	for {
		call := core.NewToolCall(step.ToolName(), args)
		result, code := run.dispatch(ctx, call, attempt)

		decision := run.policy.Evaluate(watcher.Outcome{
			ToolName: step.ToolName(),
			Attempt:  attempt,
			Args:     args,
			Result:   result,
			Code:     code,
		})

		switch decision.Kind {
		case watcher.KindContinue:
			step.Status = StepCompleted
			step.Result = result.Payload
			step.Retries = attempt
			run.results[step.ID] = result.Payload
			run.prevID = step.ID
			run.transition(ctx, step, result.Payload)
			return

		case watcher.KindRetry:
			if attempt >= run.plan.MaxRetries {
				step.Status = StepFailed
				step.StatusText = decision.Reason
				step.Retries = attempt
				run.transition(ctx, step, nil)
				return
			}
			attempt++
			step.Retries = attempt
			if decision.ModifiedArgs != nil {
				args = decision.ModifiedArgs
			}
			r.metrics.RecordRetry(ctx, step.ToolName())
			r.log.Warn("planner.step.retry",
				slog.String("plan_id", run.plan.ID),
				slog.String("step_id", step.ID),
				slog.Int("attempt", attempt),
				slog.String("reason", decision.Reason),
			)

		case watcher.KindSkip:
			// Skip is modeled as failure for aggregate counting;
			// StepSkipped is reserved for dependency gating.
			step.Status = StepFailed
			step.StatusText = decision.Reason
			step.Retries = attempt
			run.transition(ctx, step, nil)
			return

		case watcher.KindRollback:
			run.rollback(ctx, decision.RollbackStepIDs)
			step.Status = StepFailed
			step.StatusText = decision.Reason
			step.Retries = attempt
			run.transition(ctx, step, nil)
			return

		case watcher.KindAbort:
			step.Status = StepFailed
			step.StatusText = decision.Reason
			step.Retries = attempt
			run.transition(ctx, step, nil)
			run.aborted = true
			run.abortReason = decision.Reason
			r.metrics.RecordAbort(ctx, decision.Reason)
			return
		}
	}
}

// dispatch contains every fault at the tool boundary: an error or panic
// from the executor becomes a failing ToolResult before the watcher sees it.
// dispatch executes one attempt and reports the structured error code, when
// the executor surfaced one, so the failure classifier can act on it.
func (run *planRun) dispatch(ctx context.Context, call core.ToolCall, attempt int) (result core.ToolResult, code errors.ErrorCode) {
	defer func() {
		if rec := recover(); rec != nil {
			run.runner.log.Error("planner.dispatch.panic",
				slog.String("tool", call.Name),
				slog.Any("panic", rec),
			)
			result = core.FailureResult(call, fmt.Sprintf("tool panicked: %v", rec))
			code = ""
		}
	}()

	res, err := run.runner.exec.Execute(ctx, call, attempt)
	if err != nil {
		var terr *errors.TelosError
		if stderrors.As(err, &terr) {
			code = terr.Code
		}
		return core.FailureResult(call, err.Error()), code
	}
	if res.CallID == "" {
		res.CallID = call.ID
	}
	if res.Name == "" {
		res.Name = call.Name
	}
	return res, ""
}

func (run *planRun) resolveStepArgs(step *Step) map[string]any {
	if step.Type == StepDelegate {
		return map[string]any{
			"agent":   step.Agent,
			"task":    resolveString(step.Task, run.results, run.prevID),
			"context": run.plan.Goal,
		}
	}
	return resolveArgs(step.Arguments, run.results, run.prevID)
}

func (run *planRun) unmetDependency(step *Step) string {
	for _, dep := range step.DependsOn {
		depStep := run.plan.Step(dep)
		if depStep == nil || depStep.Status != StepCompleted {
			return dep
		}
	}
	return ""
}

// rollback runs compensations best-effort: a failing compensation is
// logged and reported through a rollback-failed event, never re-evaluated
// by the watcher.
func (run *planRun) rollback(ctx context.Context, stepIDs []string) {
	r := run.runner
	for _, id := range stepIDs {
		target := run.plan.Step(id)
		if target == nil || target.Compensation == nil {
			continue
		}
		call := core.NewToolCall(target.Compensation.Tool, target.Compensation.Arguments)
		result, _ := run.dispatch(ctx, call, 0)
		if failed, reason := result.Failed(); failed {
			r.log.Warn("planner.rollback.failed",
				slog.String("plan_id", run.plan.ID),
				slog.String("step_id", id),
				slog.String("tool", call.Name),
				slog.String("error", reason),
			)
			r.emit(ctx, core.EventRollbackFailed, run.plan.ID, map[string]any{
				"stepId": id,
				"tool":   call.Name,
				"error":  reason,
			})
			r.metrics.RecordRollbackFailure(ctx, call.Name)
			continue
		}
		target.Status = StepRolledBack
		run.transition(ctx, target, nil)
	}
}

// transition emits the step-update event and records the audit entry for
// the step's current status.
func (run *planRun) transition(ctx context.Context, step *Step, payload any) {
	r := run.runner

	update := map[string]any{
		"stepId": step.ID,
		"status": string(step.Status),
	}
	if step.StatusText != "" {
		update["description"] = step.StatusText
	}
	if payload != nil {
		update["result"] = preview(payload)
	}
	r.emit(ctx, core.EventPlanStepUpdate, run.plan.ID, update)

	if step.Status.Terminal() {
		r.metrics.RecordStep(ctx, step.ToolName(), string(step.Status))
	}

	if r.audit == nil {
		return
	}
	err := r.audit.Record(ctx, AuditEvent{
		PlanID:     run.plan.ID,
		RunID:      run.runID,
		StepID:     step.ID,
		Tool:       step.ToolName(),
		Status:     string(step.Status),
		Attempt:    step.Retries,
		Output:     payload,
		Error:      step.StatusText,
		RecordedAt: time.Now().UTC(),
	})
	if err != nil {
		r.log.Warn("planner.audit.record_error",
			slog.String("plan_id", run.plan.ID),
			slog.String("step_id", step.ID),
			slog.String("error", err.Error()),
		)
	}
}

// finish skips whatever is still pending, emits the completion event and
// computes the aggregate tallies.
func (run *planRun) finish(ctx context.Context, overrideSummary string) RunResult {
	for _, step := range run.plan.Steps {
		if step.Status == StepPending || step.Status == StepRunning {
			step.Status = StepSkipped
			if run.aborted {
				step.StatusText = "plan aborted"
			}
			run.transition(ctx, step, nil)
		}
	}

	succeeded := 0
	for _, step := range run.plan.Steps {
		if step.Status == StepCompleted {
			succeeded++
		}
	}
	total := len(run.plan.Steps)
	failed := total - succeeded

	summary := overrideSummary
	if summary == "" {
		if run.aborted {
			summary = fmt.Sprintf("plan aborted: %s (%d of %d steps succeeded)", run.abortReason, succeeded, total)
		} else {
			summary = fmt.Sprintf("%d succeeded, %d failed of %d steps", succeeded, failed, total)
		}
	}

	run.runner.emit(ctx, core.EventPlanCompleted, run.plan.ID, map[string]any{
		"summary":   summary,
		"succeeded": succeeded,
		"failed":    failed,
		"total":     total,
	})

	return RunResult{
		Succeeded:   succeeded,
		Failed:      failed,
		Total:       total,
		Aborted:     run.aborted,
		AbortReason: run.abortReason,
		Summary:     summary,
	}
}

func (r *Runner) emit(ctx context.Context, eventType core.EventType, planID string, payload map[string]any) {
	r.emitter.Emit(ctx, core.NewEvent(eventType, planID, payload))
}

func stepOutlines(steps []*Step) []map[string]any {
	out := make([]map[string]any, 0, len(steps))
	for _, step := range steps {
		out = append(out, map[string]any{
			"id":          step.ID,
			"description": step.Description,
			"toolName":    step.ToolName(),
			"status":      string(step.Status),
		})
	}
	return out
}

// preview renders a result payload as a short human-readable string. The
// cut never splits a UTF-8 rune.
func preview(payload any) string {
	text := renderValue(payload)
	if len(text) <= resultPreviewLen {
		return text
	}
	n := resultPreviewLen
	for n > 0 && !utf8.RuneStart(text[n]) {
		n--
	}
	return text[:n] + "…"
}
