// Copyright 2026 © The Telos Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads layered configuration: built-in defaults, an
// optional YAML file, then TELOS_-prefixed environment variables.
package config

import (
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Log        LogConfig        `koanf:"log"`
	LLM        LLMConfig        `koanf:"llm"`
	Planner    PlannerConfig    `koanf:"planner"`
	Compaction CompactionConfig `koanf:"compaction"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
	Skills     SkillsConfig     `koanf:"skills"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, text
}

type LLMConfig struct {
	Provider string `koanf:"provider"` // openai, anthropic, ollama
	Model    string `koanf:"model"`
	BaseURL  string `koanf:"base_url"`
	APIKey   string `koanf:"api_key"`
}

type PlannerConfig struct {
	MaxRetries       int    `koanf:"max_retries"`
	FailureThreshold int    `koanf:"failure_threshold"`
	AuditDB          string `koanf:"audit_db"` // path to SQLite file; empty = in-memory store
}

type CompactionConfig struct {
	ContextLength    int     `koanf:"context_length"`
	BudgetRatio      float64 `koanf:"budget_ratio"`
	MinRetained      int     `koanf:"min_retained"`
	ResponseReserve  int     `koanf:"response_reserve"`
	KeepRecentGroups int     `koanf:"keep_recent_groups"`
	StubThreshold    int     `koanf:"stub_threshold"`
	ExactTokens      bool    `koanf:"exact_tokens"`
}

type TelemetryConfig struct {
	Exporter     string `koanf:"exporter"` // stdout, otlp
	OTLPEndpoint string `koanf:"otlp_endpoint"`
	OTLPInsecure bool   `koanf:"otlp_insecure"`
}

type SkillsConfig struct {
	Dir        string            `koanf:"dir"`
	MCPServers []MCPServerConfig `koanf:"mcp_servers"`
}

type MCPServerConfig struct {
	Name    string   `koanf:"name"`
	Command string   `koanf:"command"`
	Args    []string `koanf:"args"`
	URL     string   `koanf:"url"` // streamable HTTP endpoint; used when Command is empty
}

// Load reads configuration from the optional file at path, environment
// variables layered on top (TELOS_LLM_PROVIDER -> llm.provider).
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Defaults
	k.Set("log.level", "info")
	k.Set("log.format", "text")
	k.Set("llm.provider", "ollama")
	k.Set("llm.model", "qwen2.5-coder:7b-instruct-q5_K_M")
	k.Set("llm.base_url", "http://localhost:11434")

	k.Set("planner.max_retries", 2)
	k.Set("planner.failure_threshold", 3)

	k.Set("compaction.context_length", 32768)
	k.Set("compaction.budget_ratio", 0.5)
	k.Set("compaction.min_retained", 4)
	k.Set("compaction.response_reserve", 1024)
	k.Set("compaction.keep_recent_groups", 2)
	k.Set("compaction.stub_threshold", 200)
	k.Set("compaction.exact_tokens", false)

	k.Set("telemetry.exporter", "stdout")
	k.Set("skills.dir", "./skills")

	// 1. Load from file
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	// 2. Load from ENV (TELOS_LLM_PROVIDER -> llm.provider)
	if err := k.Load(env.Provider("TELOS_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "TELOS_")), "_", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
