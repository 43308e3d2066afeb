// Copyright 2026 © The Telos Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/jllopis/telos/pkg/errors"
)

func TestInit(t *testing.T) {
	shutdown, err := Init("test-service", "v0.0.1")
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if shutdown == nil {
		t.Fatal("Shutdown function should not be nil")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
}

func TestInitWithConfigNoneExporter(t *testing.T) {
	shutdown, err := InitWithConfig("svc", "v1", Config{Exporter: "none"})
	if err != nil {
		t.Fatalf("InitWithConfig failed: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
}

func TestInitWithConfigUnknownExporter(t *testing.T) {
	if _, err := InitWithConfig("svc", "v1", Config{Exporter: "bogus"}); err == nil {
		t.Fatal("expected error for unknown exporter")
	}
}

func TestConfigureSlog(t *testing.T) {
	var buf bytes.Buffer
	logger := ConfigureSlog(&buf, "debug", "json")

	logger.Debug("telemetry.test", slog.String("key", "value"))
	if !strings.Contains(buf.String(), "telemetry.test") {
		t.Fatalf("expected log output, got %q", buf.String())
	}
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := parseLogLevel(in); got != want {
			t.Fatalf("parseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestPlanMetrics(t *testing.T) {
	m, err := NewPlanMetrics()
	if err != nil {
		t.Fatalf("failed to create plan metrics: %v", err)
	}
	ctx := context.Background()

	m.RecordRun(ctx)
	m.RecordStep(ctx, "get_weather", "completed")
	m.RecordRetry(ctx, "get_weather")
	m.RecordAbort(ctx, "quota exceeded")
	m.RecordRollbackFailure(ctx, "alpha_undo")
	m.RecordCompaction(ctx, "history", 1000, 400)
	m.RecordError(ctx, errors.New(errors.CodeToolFailure, "tool failed", nil), "planner")

	// Nil receiver and nil error must not panic.
	var nilMetrics *PlanMetrics
	nilMetrics.RecordRun(ctx)
	m.RecordError(ctx, nil, "planner")
}
