// Copyright 2026 © The Telos Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Fatalf("unexpected log defaults: %+v", cfg.Log)
	}
	if cfg.LLM.Provider != "ollama" {
		t.Fatalf("unexpected llm provider default: %s", cfg.LLM.Provider)
	}
	if cfg.Planner.MaxRetries != 2 || cfg.Planner.FailureThreshold != 3 {
		t.Fatalf("unexpected planner defaults: %+v", cfg.Planner)
	}
	if cfg.Compaction.BudgetRatio != 0.5 || cfg.Compaction.MinRetained != 4 {
		t.Fatalf("unexpected compaction defaults: %+v", cfg.Compaction)
	}
	if cfg.Compaction.KeepRecentGroups != 2 || cfg.Compaction.StubThreshold != 200 {
		t.Fatalf("unexpected compaction defaults: %+v", cfg.Compaction)
	}
	if cfg.Telemetry.Exporter != "stdout" {
		t.Fatalf("unexpected telemetry default: %+v", cfg.Telemetry)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "telos.yaml")
	body := `
log:
  level: debug
  format: json
llm:
  provider: openai
  model: gpt-4o-mini
compaction:
  context_length: 128000
skills:
  dir: /opt/telos/skills
  mcp_servers:
    - name: files
      command: mcp-files
      args: ["--root", "/data"]
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Fatalf("file values not applied: %+v", cfg.Log)
	}
	if cfg.LLM.Provider != "openai" || cfg.LLM.Model != "gpt-4o-mini" {
		t.Fatalf("file llm values not applied: %+v", cfg.LLM)
	}
	if cfg.Compaction.ContextLength != 128000 {
		t.Fatalf("file compaction value not applied: %+v", cfg.Compaction)
	}
	// Defaults survive for untouched keys.
	if cfg.Compaction.MinRetained != 4 {
		t.Fatalf("default lost: %+v", cfg.Compaction)
	}
	if len(cfg.Skills.MCPServers) != 1 || cfg.Skills.MCPServers[0].Name != "files" {
		t.Fatalf("mcp servers not parsed: %+v", cfg.Skills.MCPServers)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("TELOS_LLM_PROVIDER", "anthropic")
	t.Setenv("TELOS_LOG_LEVEL", "warn")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LLM.Provider != "anthropic" {
		t.Fatalf("env override not applied: %s", cfg.LLM.Provider)
	}
	if cfg.Log.Level != "warn" {
		t.Fatalf("env override not applied: %s", cfg.Log.Level)
	}
}

func TestWatcherReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "telos.yaml")
	if err := os.WriteFile(path, []byte("log:\n  level: info\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	w, err := NewWatcher([]string{path}, WithWatchInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}

	changed := make(chan *Config, 1)
	w.OnChange(func(cfg *Config) {
		select {
		case changed <- cfg:
		default:
		}
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)
	defer w.Stop()

	// mtime granularity can be coarse; write after a pause.
	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(path, []byte("log:\n  level: error\n"), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}
	now := time.Now().Add(time.Second)
	if err := os.Chtimes(path, now, now); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	select {
	case cfg := <-changed:
		if cfg.Log.Level != "error" {
			t.Fatalf("reloaded config stale: %+v", cfg.Log)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("config change never observed")
	}
	if w.Config().Log.Level != "error" {
		t.Fatalf("watcher config not updated: %+v", w.Config().Log)
	}
}

func TestReloadableConfig(t *testing.T) {
	base, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	rc := NewReloadableConfig(base)
	if rc.Planner().FailureThreshold != 3 {
		t.Fatalf("unexpected planner view: %+v", rc.Planner())
	}

	next := *base
	next.LLM.Provider = "openai"
	rc.Update(&next)
	if rc.LLM().Provider != "openai" {
		t.Fatalf("update not visible: %+v", rc.LLM())
	}
}
