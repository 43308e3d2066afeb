// Copyright 2026 © The Telos Authors
// SPDX-License-Identifier: Apache-2.0

// Package skills maintains the catalog of tools available to the planner,
// grouped into named skills with tiered documentation.
package skills

import "github.com/jllopis/telos/pkg/llm"

// Property describes one parameter of a tool.
type Property struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
	Default     any      `json:"default,omitempty"`
}

// ParameterSpec is a JSON-schema-like description of a tool's arguments.
type ParameterSpec struct {
	Properties map[string]Property `json:"properties,omitempty"`
	Required   []string            `json:"required,omitempty"`
}

// ToolDefinition declares a single callable capability. Immutable once
// registered.
type ToolDefinition struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Parameters  ParameterSpec `json:"parameters"`
}

// LLMTool converts the definition into the tool-calling schema sent to the
// model.
func (d ToolDefinition) LLMTool() llm.Tool {
	properties := make(map[string]any, len(d.Parameters.Properties))
	for name, prop := range d.Parameters.Properties {
		spec := map[string]any{"type": prop.Type}
		if prop.Description != "" {
			spec["description"] = prop.Description
		}
		if len(prop.Enum) > 0 {
			spec["enum"] = prop.Enum
		}
		if prop.Default != nil {
			spec["default"] = prop.Default
		}
		properties[name] = spec
	}
	required := d.Parameters.Required
	if required == nil {
		required = []string{}
	}
	return llm.Tool{
		Type: llm.ToolTypeFunction,
		Function: llm.FunctionDef{
			Name:        d.Name,
			Description: d.Description,
			Parameters: map[string]any{
				"type":       "object",
				"properties": properties,
				"required":   required,
			},
		},
	}
}

// LLMTools converts a definition list into the model tool schema.
func LLMTools(defs []ToolDefinition) []llm.Tool {
	out := make([]llm.Tool, 0, len(defs))
	for _, def := range defs {
		out = append(out, def.LLMTool())
	}
	return out
}
