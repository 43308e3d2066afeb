// Copyright 2026 © The Telos Authors
// SPDX-License-Identifier: Apache-2.0

package planner

import (
	"context"
	"database/sql"
	"testing"
	"time"
)

func TestMemoryAuditStore(t *testing.T) {
	store := NewMemoryAuditStore()
	event := AuditEvent{
		PlanID:     "plan-1",
		RunID:      "run-1",
		StepID:     "step_1",
		Tool:       "get_weather",
		Status:     "completed",
		Output:     map[string]any{"ok": true},
		RecordedAt: time.Now().UTC(),
	}
	if err := store.Record(context.Background(), event); err != nil {
		t.Fatalf("record: %v", err)
	}
	events, err := store.List(context.Background(), AuditFilter{PlanID: "plan-1"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].StepID != "step_1" {
		t.Fatalf("unexpected step id: %s", events[0].StepID)
	}
}

func TestSQLiteAuditStore(t *testing.T) {
	db, err := sql.Open("sqlite", "file:step_audit_test?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer db.Close()

	store, err := NewSQLiteAuditStore(db)
	if err != nil {
		t.Fatalf("new sqlite store: %v", err)
	}
	event := AuditEvent{
		PlanID:     "plan-1",
		RunID:      "run-1",
		StepID:     "step_1",
		Tool:       "get_weather",
		Status:     "failed",
		Attempt:    2,
		Error:      "quota exceeded",
		RecordedAt: time.Now().UTC(),
	}
	if err := store.Record(context.Background(), event); err != nil {
		t.Fatalf("record: %v", err)
	}
	events, err := store.List(context.Background(), AuditFilter{PlanID: "plan-1", Limit: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].RunID != "run-1" {
		t.Fatalf("unexpected run id: %s", events[0].RunID)
	}
	if events[0].Attempt != 2 {
		t.Fatalf("unexpected attempt: %d", events[0].Attempt)
	}
	if events[0].Error != "quota exceeded" {
		t.Fatalf("unexpected error text: %s", events[0].Error)
	}
}
