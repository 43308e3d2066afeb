// Copyright 2026 © The Telos Authors
// SPDX-License-Identifier: Apache-2.0

// Package watcher classifies step outcomes into recovery actions. It is a
// pure decision policy: it never mutates plan state, it only tells the
// caller what to do next. Classification prefers structured error codes
// supplied by the tool handler and falls back to substring heuristics for
// handlers that cannot provide one.
package watcher

import (
	"strings"

	"github.com/jllopis/telos/pkg/core"
	"github.com/jllopis/telos/pkg/errors"
)

// DefaultFailureThreshold is how many consecutive failures force an abort.
const DefaultFailureThreshold = 3

// Kind identifies which decision variant is active.
type Kind string

const (
	KindContinue Kind = "continue"
	KindRetry    Kind = "retry"
	KindSkip     Kind = "skip"
	KindRollback Kind = "rollback"
	KindAbort    Kind = "abort"
)

// Decision is the tagged outcome of one evaluation. Exactly one variant is
// active; the payload fields are meaningful only for their variant.
type Decision struct {
	Kind   Kind
	Reason string
	// ModifiedArgs optionally replaces the step arguments on retry.
	ModifiedArgs map[string]any
	// RollbackStepIDs names the steps whose compensations should run.
	RollbackStepIDs []string
}

// Continue reports a healthy step outcome.
func Continue() Decision { return Decision{Kind: KindContinue} }

// Retry asks for a re-dispatch, optionally with modified arguments.
func Retry(reason string, args map[string]any) Decision {
	return Decision{Kind: KindRetry, Reason: reason, ModifiedArgs: args}
}

// Skip abandons the step; retrying would not help.
func Skip(reason string) Decision { return Decision{Kind: KindSkip, Reason: reason} }

// Rollback requests best-effort compensation of the named steps.
func Rollback(stepIDs []string, reason string) Decision {
	return Decision{Kind: KindRollback, Reason: reason, RollbackStepIDs: stepIDs}
}

// Abort terminates the whole plan.
func Abort(reason string) Decision { return Decision{Kind: KindAbort, Reason: reason} }

// Outcome is the planner-agnostic view of a just-completed dispatch.
type Outcome struct {
	ToolName string
	// Attempt is zero-based: 0 is the first dispatch of the step.
	Attempt int
	// Args are the arguments the call was dispatched with.
	Args   map[string]any
	Result core.ToolResult
	// Code is an optional structured error code from the handler;
	// when present it takes precedence over text classification.
	Code errors.ErrorCode
}

// Watcher tracks a rolling consecutive-failure counter across one plan
// execution. It is owned by exactly one execution and is not safe for
// concurrent use.
type Watcher struct {
	threshold int
	failures  int
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithThreshold overrides the consecutive-failure abort threshold.
func WithThreshold(n int) Option {
	return func(w *Watcher) {
		if n > 0 {
			w.threshold = n
		}
	}
}

// New creates a Watcher with the default threshold of 3.
func New(opts ...Option) *Watcher {
	w := &Watcher{threshold: DefaultFailureThreshold}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Failures returns the current consecutive-failure count.
func (w *Watcher) Failures() int { return w.failures }

// Reset clears the consecutive-failure counter.
func (w *Watcher) Reset() { w.failures = 0 }

// Evaluate classifies one outcome into exactly one decision. Rules apply in
// order, first match wins.
func (w *Watcher) Evaluate(o Outcome) Decision {
	failed, reason := o.Result.Failed()
	if !failed {
		if falseSuccess(o) {
			return Retry("write tool reported success with empty content", nil)
		}
		w.failures = 0
		return Continue()
	}

	w.failures++
	if w.failures >= w.threshold {
		return Abort(reason)
	}

	if embedded, msg := o.Result.EmbeddedFailure(); embedded {
		return Retry(msg, nil)
	}
	return w.classify(reason, o)
}

// falseSuccess catches write-type tools that report success despite being
// invoked with empty content.
func falseSuccess(o Outcome) bool {
	if !strings.Contains(strings.ToLower(o.ToolName), "write") {
		return false
	}
	content, ok := o.Args["content"]
	if !ok {
		return true
	}
	s, isString := content.(string)
	return isString && strings.TrimSpace(s) == ""
}

// classify maps an explicit error to a decision, by structured code when
// the handler supplied one, otherwise by substring heuristics.
func (w *Watcher) classify(reason string, o Outcome) Decision {
	if o.Code != "" {
		if d, ok := classifyCode(o.Code, reason, o.Attempt); ok {
			return d
		}
	}
	return classifyText(reason, o.Attempt)
}

func classifyCode(code errors.ErrorCode, reason string, attempt int) (Decision, bool) {
	switch code {
	case errors.CodeTimeout, errors.CodeRateLimit:
		return Retry(reason, nil), true
	case errors.CodeUnauthorized, errors.CodeNotFound, errors.CodeToolNotFound:
		return Skip(reason), true
	case errors.CodeInvalidInput:
		if attempt == 0 {
			return Retry(reason, nil), true
		}
		return Skip(reason), true
	default:
		return Decision{}, false
	}
}

// classifyText is the heuristic fallback. Network takes precedence over
// validation when a message matches both; see DESIGN.md.
func classifyText(reason string, attempt int) Decision {
	lower := strings.ToLower(reason)
	switch {
	case containsAny(lower, "econnreset", "econnrefused", "timeout", "timed out", "connection", "network", "unexpected eof"):
		return Retry(reason, nil)
	case containsAny(lower, "rate limit", "ratelimit", "too many requests", "429"):
		return Retry(reason, nil)
	case containsAny(lower, "unauthorized", "forbidden", "expired token", "invalid token", "401", "403"):
		return Skip(reason)
	case containsAny(lower, "not found", "404", "no such"):
		return Skip(reason)
	case containsAny(lower, "validation", "invalid argument", "missing parameter", "missing required"):
		if attempt == 0 {
			return Retry(reason, nil)
		}
		return Skip(reason)
	case containsAny(lower, "path traversal", "not allowed"):
		return Skip(reason)
	default:
		if attempt == 0 {
			return Retry(reason, nil)
		}
		return Skip(reason)
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
