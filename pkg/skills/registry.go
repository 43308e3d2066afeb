// Copyright 2026 © The Telos Authors
// SPDX-License-Identifier: Apache-2.0

package skills

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/jllopis/telos/pkg/core"
)

// maxSummaryDescLen bounds the per-skill description in Level-1 summaries so
// the whole block stays cheap enough for permanent prompt inclusion.
const maxSummaryDescLen = 120

// SkillMetadata identifies a skill: a named bundle of tools sharing one handler.
type SkillMetadata struct {
	Name        string
	Version     string
	Description string
	// Keywords widen the relevance match beyond the description text.
	Keywords []string
	Enabled  bool
}

// LoadedSkill is a registered skill: metadata, full documentation body,
// tool definitions and the single handler that executes all of them.
type LoadedSkill struct {
	Metadata SkillMetadata
	Doc      string
	Tools    []ToolDefinition
	Handler  core.ToolHandler
}

// Registry holds the authoritative mapping from tool name to owning skill.
// Registries are explicitly constructed and injected; there is no package
// level singleton. Reads are safe for concurrent plan executions;
// registration is an administrative action expected outside in-flight runs.
type Registry struct {
	mu        sync.RWMutex
	skills    map[string]*LoadedSkill
	order     []string
	toolIndex map[string]string // tool name -> skill name, last registration wins
}

// NewRegistry creates an empty skill registry.
func NewRegistry() *Registry {
	return &Registry{
		skills:    make(map[string]*LoadedSkill),
		toolIndex: make(map[string]string),
	}
}

// Register adds or replaces a skill and indexes every tool name to it.
// Handler correctness beyond existence is not validated here.
func (r *Registry) Register(meta SkillMetadata, doc string, tools []ToolDefinition, handler core.ToolHandler) error {
	name := strings.TrimSpace(meta.Name)
	if name == "" {
		return fmt.Errorf("skill name is required")
	}
	if handler == nil {
		return fmt.Errorf("skill %q: handler is required", name)
	}
	meta.Name = name

	r.mu.Lock()
	defer r.mu.Unlock()

	if old, exists := r.skills[name]; exists {
		r.dropToolIndex(name, old.Tools)
	} else {
		r.order = append(r.order, name)
	}

	skill := &LoadedSkill{
		Metadata: meta,
		Doc:      doc,
		Tools:    append([]ToolDefinition(nil), tools...),
		Handler:  handler,
	}
	r.skills[name] = skill
	for _, tool := range skill.Tools {
		r.toolIndex[tool.Name] = name
	}
	return nil
}

// Resolve returns the enabled skill owning the tool name. Disabled skills
// behave as absent; the caller converts absence into a ToolResult error.
func (r *Registry) Resolve(toolName string) (*LoadedSkill, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	skillName, ok := r.toolIndex[toolName]
	if !ok {
		return nil, false
	}
	skill, ok := r.skills[skillName]
	if !ok || !skill.Metadata.Enabled {
		return nil, false
	}
	return skill, true
}

// Skill returns a skill by name regardless of enablement.
func (r *Registry) Skill(name string) (*LoadedSkill, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	skill, ok := r.skills[name]
	return skill, ok
}

// AllToolDefinitions returns the tool definitions of every enabled skill in
// registration order; this builds the tool-calling schema sent to the model.
func (r *Registry) AllToolDefinitions() []ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []ToolDefinition
	for _, name := range r.order {
		skill, ok := r.skills[name]
		if !ok || !skill.Metadata.Enabled {
			continue
		}
		out = append(out, skill.Tools...)
	}
	return out
}

// Level1Summaries renders one line per enabled skill: name, truncated
// description and bracketed tool list. Cheap enough to include in every
// model call.
func (r *Registry) Level1Summaries() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var b strings.Builder
	for _, name := range r.order {
		skill, ok := r.skills[name]
		if !ok || !skill.Metadata.Enabled {
			continue
		}
		desc := strings.TrimSpace(skill.Metadata.Description)
		if len(desc) > maxSummaryDescLen {
			desc = desc[:maxSummaryDescLen-1] + "…"
		}
		toolNames := make([]string, 0, len(skill.Tools))
		for _, tool := range skill.Tools {
			toolNames = append(toolNames, tool.Name)
		}
		fmt.Fprintf(&b, "- %s: %s [%s]\n", name, desc, strings.Join(toolNames, ", "))
	}
	return b.String()
}

// Level2Doc returns the skill's full documentation body. Injected only when
// the skill is judged relevant to the current message.
func (r *Registry) Level2Doc(skillName string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	skill, ok := r.skills[skillName]
	if !ok || !skill.Metadata.Enabled {
		return "", false
	}
	return skill.Doc, true
}

// SetEnabled toggles a skill's enablement flag. Returns false if the skill
// is not registered.
func (r *Registry) SetEnabled(skillName string, enabled bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	skill, ok := r.skills[skillName]
	if !ok {
		return false
	}
	skill.Metadata.Enabled = enabled
	return true
}

// Unregister removes a skill and all of its tool-name index entries.
func (r *Registry) Unregister(skillName string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	skill, ok := r.skills[skillName]
	if !ok {
		return false
	}
	r.dropToolIndex(skillName, skill.Tools)
	delete(r.skills, skillName)
	for i, name := range r.order {
		if name == skillName {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Names returns the registered skill names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// dropToolIndex removes index entries still owned by skillName. An entry
// overwritten by a later registration belongs to the newer skill and stays.
func (r *Registry) dropToolIndex(skillName string, tools []ToolDefinition) {
	for _, tool := range tools {
		if owner, ok := r.toolIndex[tool.Name]; ok && owner == skillName {
			delete(r.toolIndex, tool.Name)
		}
	}
}

// RelevantSkills returns the names of enabled skills whose description,
// name or keywords match the message. Best-effort keyword matching, not
// guaranteed precision or recall.
func (r *Registry) RelevantSkills(message string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lowered := strings.ToLower(message)
	var matched []string
	for _, name := range r.order {
		skill, ok := r.skills[name]
		if !ok || !skill.Metadata.Enabled {
			continue
		}
		if skillMatches(skill.Metadata, lowered) {
			matched = append(matched, name)
		}
	}
	sort.Strings(matched)
	return matched
}

func skillMatches(meta SkillMetadata, loweredMessage string) bool {
	if strings.Contains(loweredMessage, strings.ToLower(meta.Name)) {
		return true
	}
	for _, kw := range meta.Keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(loweredMessage, kw) {
			return true
		}
	}
	// Fall back to significant description words.
	for _, word := range strings.Fields(strings.ToLower(meta.Description)) {
		word = strings.Trim(word, ".,:;()")
		if len(word) >= 5 && strings.Contains(loweredMessage, word) {
			return true
		}
	}
	return false
}
