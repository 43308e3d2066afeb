package core

import (
	"context"
	"time"
)

// EventType identifies a semantic event emitted by the planner or compactor.
type EventType string

const (
	EventPlanCreated      EventType = "plan_created"
	EventPlanStepUpdate   EventType = "plan_step_update"
	EventPlanCompleted    EventType = "plan_completed"
	EventRollbackFailed   EventType = "plan_rollback_failed"
	EventCompactionReport EventType = "compaction_report"
)

// Event captures a semantic streaming/logging event.
type Event struct {
	Type      EventType
	PlanID    string
	Timestamp time.Time
	Payload   map[string]any
}

// EventEmitter receives semantic events. Emission is fire-and-forget: there
// is no acknowledgment or backpressure contract.
type EventEmitter interface {
	Emit(ctx context.Context, event Event)
}

// NoopEventEmitter is a default no-op implementation.
type NoopEventEmitter struct{}

// Emit implements EventEmitter.
func (NoopEventEmitter) Emit(_ context.Context, _ Event) {}

// EmitterFunc adapts a plain function to the EventEmitter interface.
type EmitterFunc func(ctx context.Context, event Event)

// Emit implements EventEmitter.
func (f EmitterFunc) Emit(ctx context.Context, event Event) { f(ctx, event) }

// NewEvent builds a default event with timestamp.
func NewEvent(eventType EventType, planID string, payload map[string]any) Event {
	return Event{
		Type:      eventType,
		PlanID:    planID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}
