// Copyright 2026 © The Telos Authors
// SPDX-License-Identifier: Apache-2.0

package planner

import (
	"context"
	"fmt"

	"github.com/jllopis/telos/pkg/core"
	"github.com/jllopis/telos/pkg/skills"
)

// RegistryExecutor dispatches tool calls through a skill registry. An
// unknown or disabled tool yields a failing ToolResult, not an error: the
// watcher classifies it like any other per-step failure.
type RegistryExecutor struct {
	registry *skills.Registry
}

// NewRegistryExecutor wires a ToolExecutor to a skill registry.
func NewRegistryExecutor(registry *skills.Registry) *RegistryExecutor {
	return &RegistryExecutor{registry: registry}
}

// Execute implements ToolExecutor.
func (e *RegistryExecutor) Execute(ctx context.Context, call core.ToolCall, _ int) (core.ToolResult, error) {
	skill, ok := e.registry.Resolve(call.Name)
	if !ok {
		return core.FailureResult(call, fmt.Sprintf("tool not found: %s", call.Name)), nil
	}
	return skill.Handler.Execute(ctx, call)
}
