// Copyright 2026 © The Telos Authors
// SPDX-License-Identifier: Apache-2.0

package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jllopis/telos/pkg/core"
	"github.com/jllopis/telos/pkg/skills"
	"github.com/mark3labs/mcp-go/mcp"
)

// ToolCaller abstracts MCP tool execution for adapters.
type ToolCaller interface {
	CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error)
}

// ToolLister abstracts MCP tool discovery for adapters.
type ToolLister interface {
	ToolCaller
	ListTools(ctx context.Context) ([]mcp.Tool, error)
}

// RegisterServer discovers the tools of one MCP server and registers them
// as a single skill. The server's protocol errors surface as failing
// ToolResults, so the watcher classifies them like any other tool fault.
func RegisterServer(ctx context.Context, registry *skills.Registry, name string, lister ToolLister) error {
	if name == "" {
		return errors.New("mcp skill name is required")
	}
	tools, err := lister.ListTools(ctx)
	if err != nil {
		return fmt.Errorf("mcp %s: list tools: %w", name, err)
	}
	if len(tools) == 0 {
		return fmt.Errorf("mcp %s: server exposes no tools", name)
	}

	defs := make([]skills.ToolDefinition, 0, len(tools))
	for _, tool := range tools {
		defs = append(defs, toolDefinition(tool))
	}

	meta := skills.SkillMetadata{
		Name:        name,
		Description: fmt.Sprintf("Tools provided by the %s MCP server", name),
		Enabled:     true,
	}
	doc := serverDoc(name, tools)
	return registry.Register(meta, doc, defs, &serverHandler{caller: lister})
}

// serverHandler dispatches any tool of one MCP-backed skill.
type serverHandler struct {
	caller ToolCaller
}

// Execute implements core.ToolHandler.
func (h *serverHandler) Execute(ctx context.Context, call core.ToolCall) (core.ToolResult, error) {
	result, err := h.caller.CallTool(ctx, call.Name, call.Arguments)
	if err != nil {
		return core.FailureResult(call, err.Error()), nil
	}
	return toToolResult(call, result), nil
}

// toolDefinition converts an MCP tool schema into a registry definition.
func toolDefinition(tool mcp.Tool) skills.ToolDefinition {
	def := skills.ToolDefinition{
		Name:        tool.Name,
		Description: tool.Description,
		Parameters: skills.ParameterSpec{
			Required: tool.InputSchema.Required,
		},
	}
	if len(tool.InputSchema.Properties) > 0 {
		def.Parameters.Properties = make(map[string]skills.Property, len(tool.InputSchema.Properties))
		for name, raw := range tool.InputSchema.Properties {
			def.Parameters.Properties[name] = toProperty(raw)
		}
	}
	return def
}

func toProperty(raw any) skills.Property {
	spec, ok := raw.(map[string]any)
	if !ok {
		return skills.Property{Type: "string"}
	}
	prop := skills.Property{Type: "string"}
	if t, ok := spec["type"].(string); ok && t != "" {
		prop.Type = t
	}
	if d, ok := spec["description"].(string); ok {
		prop.Description = d
	}
	if enum, ok := spec["enum"].([]any); ok {
		for _, item := range enum {
			if s, ok := item.(string); ok {
				prop.Enum = append(prop.Enum, s)
			}
		}
	}
	if def, ok := spec["default"]; ok {
		prop.Default = def
	}
	return prop
}

// toToolResult normalizes an MCP call result. IsError and protocol faults
// both map to the error side of the ToolResult.
func toToolResult(call core.ToolCall, result *mcp.CallToolResult) core.ToolResult {
	if result == nil {
		return core.FailureResult(call, "mcp tool result is nil")
	}
	if result.IsError {
		msg := extractTextContent(result.Content)
		if msg == "" {
			msg = "mcp tool returned an error"
		}
		return core.FailureResult(call, msg)
	}
	if result.StructuredContent != nil {
		return core.SuccessResult(call, result.StructuredContent)
	}
	if text := extractTextContent(result.Content); text != "" {
		return core.SuccessResult(call, text)
	}
	return core.SuccessResult(call, result)
}

func extractTextContent(items []mcp.Content) string {
	if len(items) == 0 {
		return ""
	}
	var parts []string
	for _, item := range items {
		switch content := item.(type) {
		case mcp.TextContent:
			parts = append(parts, content.Text)
		case *mcp.TextContent:
			parts = append(parts, content.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func serverDoc(name string, tools []mcp.Tool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\nTools exposed by the %s MCP server:\n\n", name, name)
	for _, tool := range tools {
		fmt.Fprintf(&b, "- %s: %s\n", tool.Name, tool.Description)
	}
	return b.String()
}
