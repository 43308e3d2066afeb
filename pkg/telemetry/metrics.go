// Copyright 2026 © The Telos Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jllopis/telos/pkg/errors"
)

// PlanMetrics tracks plan execution counters for production monitoring.
type PlanMetrics struct {
	runCounter       metric.Int64Counter
	stepCounter      metric.Int64Counter
	retryCounter     metric.Int64Counter
	abortCounter     metric.Int64Counter
	rollbackFailures metric.Int64Counter
	compactionSaved  metric.Int64Counter
	errorCounter     metric.Int64Counter
}

// NewPlanMetrics creates counters on the global meter provider.
func NewPlanMetrics() (*PlanMetrics, error) {
	meter := otel.Meter("telos/planner")

	runCounter, err := meter.Int64Counter(
		"telos.plans.total",
		metric.WithDescription("Plan executions started"),
	)
	if err != nil {
		return nil, err
	}
	stepCounter, err := meter.Int64Counter(
		"telos.steps.total",
		metric.WithDescription("Step dispatches by terminal status"),
	)
	if err != nil {
		return nil, err
	}
	retryCounter, err := meter.Int64Counter(
		"telos.steps.retries",
		metric.WithDescription("Step retry dispatches"),
	)
	if err != nil {
		return nil, err
	}
	abortCounter, err := meter.Int64Counter(
		"telos.plans.aborted",
		metric.WithDescription("Plans terminated by the failure threshold"),
	)
	if err != nil {
		return nil, err
	}
	rollbackFailures, err := meter.Int64Counter(
		"telos.rollback.failures",
		metric.WithDescription("Compensating actions that themselves failed"),
	)
	if err != nil {
		return nil, err
	}
	compactionSaved, err := meter.Int64Counter(
		"telos.compaction.tokens_saved",
		metric.WithDescription("Estimated tokens reclaimed by compaction"),
	)
	if err != nil {
		return nil, err
	}
	errorCounter, err := meter.Int64Counter(
		"telos.errors.total",
		metric.WithDescription("Errors by code and component"),
	)
	if err != nil {
		return nil, err
	}

	return &PlanMetrics{
		runCounter:       runCounter,
		stepCounter:      stepCounter,
		retryCounter:     retryCounter,
		abortCounter:     abortCounter,
		rollbackFailures: rollbackFailures,
		compactionSaved:  compactionSaved,
		errorCounter:     errorCounter,
	}, nil
}

// RecordRun counts a plan execution start.
func (m *PlanMetrics) RecordRun(ctx context.Context) {
	if m == nil {
		return
	}
	m.runCounter.Add(ctx, 1)
}

// RecordStep counts one step reaching a terminal status.
func (m *PlanMetrics) RecordStep(ctx context.Context, tool, status string) {
	if m == nil {
		return
	}
	m.stepCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String(AttrStepTool, tool),
			attribute.String(AttrStepStatus, status),
		),
	)
}

// RecordRetry counts a retry dispatch for a tool.
func (m *PlanMetrics) RecordRetry(ctx context.Context, tool string) {
	if m == nil {
		return
	}
	m.retryCounter.Add(ctx, 1,
		metric.WithAttributes(attribute.String(AttrStepTool, tool)),
	)
}

// RecordAbort counts a plan abort with its reason.
func (m *PlanMetrics) RecordAbort(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.abortCounter.Add(ctx, 1,
		metric.WithAttributes(attribute.String(AttrDecisionReason, reason)),
	)
}

// RecordRollbackFailure counts a failed compensating action.
func (m *PlanMetrics) RecordRollbackFailure(ctx context.Context, tool string) {
	if m == nil {
		return
	}
	m.rollbackFailures.Add(ctx, 1,
		metric.WithAttributes(attribute.String(AttrStepTool, tool)),
	)
}

// RecordCompaction counts tokens reclaimed by one compaction pass.
func (m *PlanMetrics) RecordCompaction(ctx context.Context, kind string, before, after int) {
	if m == nil || before <= after {
		return
	}
	m.compactionSaved.Add(ctx, int64(before-after),
		metric.WithAttributes(attribute.String(AttrCompactionKind, kind)),
	)
}

// RecordError counts an error by code and component.
func (m *PlanMetrics) RecordError(ctx context.Context, err error, component string) {
	if m == nil || err == nil {
		return
	}
	if te, ok := err.(*errors.TelosError); ok {
		m.errorCounter.Add(ctx, 1,
			metric.WithAttributes(
				attribute.String("error.code", string(te.Code)),
				attribute.String("component", component),
				attribute.String("recoverable", te.RecoverableString()),
			),
		)
		return
	}
	m.errorCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("error.code", "UNKNOWN"),
			attribute.String("component", component),
			attribute.String("recoverable", "unknown"),
		),
	)
}
