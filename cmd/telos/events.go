// Copyright 2026 © The Telos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/jllopis/telos/pkg/core"
)

// consoleEmitter renders plan events to the terminal, either as
// human-readable progress lines or as one JSON object per event.
type consoleEmitter struct {
	out  io.Writer
	json bool
}

func newConsoleEmitter(out io.Writer, jsonOutput bool) *consoleEmitter {
	return &consoleEmitter{out: out, json: jsonOutput}
}

// Emit implements core.EventEmitter.
func (e *consoleEmitter) Emit(_ context.Context, event core.Event) {
	if e.json {
		data, err := json.Marshal(map[string]any{
			"type":      event.Type,
			"plan_id":   event.PlanID,
			"timestamp": event.Timestamp,
			"payload":   event.Payload,
		})
		if err != nil {
			return
		}
		fmt.Fprintln(e.out, string(data))
		return
	}

	switch event.Type {
	case core.EventPlanCreated:
		fmt.Fprintf(e.out, "Plan %s: %v\n", event.PlanID, event.Payload["goal"])
		steps, _ := event.Payload["steps"].([]map[string]any)
		for _, step := range steps {
			fmt.Fprintf(e.out, "  %v. %v (%v)\n", step["id"], step["description"], step["toolName"])
		}
	case core.EventPlanStepUpdate:
		line := fmt.Sprintf("  [%v] %v", event.Payload["status"], event.Payload["stepId"])
		if result, ok := event.Payload["result"]; ok {
			line += fmt.Sprintf(" -> %v", result)
		}
		fmt.Fprintln(e.out, line)
	case core.EventPlanCompleted:
		fmt.Fprintf(e.out, "Done: %v\n", event.Payload["summary"])
	case core.EventRollbackFailed:
		fmt.Fprintf(e.out, "  rollback failed for %v: %v\n", event.Payload["stepId"], event.Payload["error"])
	case core.EventCompactionReport:
		fmt.Fprintf(e.out, "  [compacted %v results: %v -> %v tokens]\n",
			event.Payload["kind"], event.Payload["tokens_before"], event.Payload["tokens_after"])
	default:
		fmt.Fprintf(e.out, "  [%s] %v\n", event.Type, event.Payload)
	}
}

var _ core.EventEmitter = (*consoleEmitter)(nil)
