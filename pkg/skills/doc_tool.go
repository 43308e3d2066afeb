// Copyright 2026 © The Telos Authors
// SPDX-License-Identifier: Apache-2.0

package skills

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jllopis/telos/pkg/core"
)

// DocHandler serves a documentation-backed skill loaded from a SKILL.md
// directory. It implements the third disclosure tier: the model sees the
// Level-1 summary permanently, the Level-2 body when relevant, and fetches
// reference files on demand through these tool actions.
type DocHandler struct {
	spec SkillSpec
}

// NewDocHandler creates a handler for a loaded SkillSpec.
func NewDocHandler(spec SkillSpec) *DocHandler {
	return &DocHandler{spec: spec}
}

// Execute implements core.ToolHandler.
func (h *DocHandler) Execute(_ context.Context, call core.ToolCall) (core.ToolResult, error) {
	action, _ := call.Arguments["action"].(string)
	switch action {
	case "", "activate":
		resources, _ := h.listResources()
		return core.SuccessResult(call, map[string]any{
			"name":         h.spec.Name,
			"instructions": h.spec.Body,
			"resources":    resources,
		}), nil
	case "load_resource":
		resource, _ := call.Arguments["resource"].(string)
		content, err := h.loadResource(resource)
		if err != nil {
			return core.FailureResult(call, err.Error()), nil
		}
		return core.SuccessResult(call, content), nil
	case "list_resources":
		resources, err := h.listResources()
		if err != nil {
			return core.FailureResult(call, err.Error()), nil
		}
		return core.SuccessResult(call, resources), nil
	default:
		return core.FailureResult(call, fmt.Sprintf("unknown action %q", action)), nil
	}
}

// loadResource loads a specific resource file from the skill directory.
func (h *DocHandler) loadResource(resourcePath string) (string, error) {
	if resourcePath == "" {
		return "", fmt.Errorf("resource path is required")
	}

	// Security: prevent directory traversal
	cleanPath := filepath.Clean(resourcePath)
	if strings.HasPrefix(cleanPath, "..") || filepath.IsAbs(cleanPath) {
		return "", fmt.Errorf("resource path not allowed: %s", resourcePath)
	}

	fullPath := filepath.Join(h.spec.Dir, cleanPath)
	absDir, _ := filepath.Abs(h.spec.Dir)
	absPath, _ := filepath.Abs(fullPath)
	if !strings.HasPrefix(absPath, absDir) {
		return "", fmt.Errorf("resource path not allowed: outside skill directory")
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to load resource %s: %w", resourcePath, err)
	}
	return string(data), nil
}

// listResources returns available resources in the skill directory.
func (h *DocHandler) listResources() ([]string, error) {
	var resources []string
	subdirs := []string{"scripts", "references", "assets"}
	for _, subdir := range subdirs {
		entries, err := os.ReadDir(filepath.Join(h.spec.Dir, subdir))
		if err != nil {
			continue // Directory doesn't exist, skip
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				resources = append(resources, filepath.Join(subdir, entry.Name()))
			}
		}
	}
	return resources, nil
}

// DocToolDefinition returns the single tool a documentation skill exposes.
func DocToolDefinition(spec SkillSpec) ToolDefinition {
	return ToolDefinition{
		Name:        spec.Name,
		Description: spec.Description,
		Parameters: ParameterSpec{
			Properties: map[string]Property{
				"action": {
					Type:        "string",
					Enum:        []string{"activate", "load_resource", "list_resources"},
					Description: "Action to perform: 'activate' to get skill instructions, 'load_resource' to load a specific file, 'list_resources' to see available resources",
					Default:     "activate",
				},
				"resource": {
					Type:        "string",
					Description: "Path to resource file (for load_resource action)",
				},
			},
		},
	}
}

// RegisterDir loads every SKILL.md under root and registers each as a
// documentation skill on the registry.
func RegisterDir(registry *Registry, root string) error {
	specs, err := LoadDir(root)
	if err != nil {
		return err
	}
	for _, spec := range specs {
		defs := []ToolDefinition{DocToolDefinition(spec)}
		if err := registry.Register(spec.Metadata(), spec.Body, defs, NewDocHandler(spec)); err != nil {
			return err
		}
	}
	return nil
}
