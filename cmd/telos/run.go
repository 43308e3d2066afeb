// Copyright 2026 © The Telos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jllopis/telos/pkg/compaction"
	"github.com/jllopis/telos/pkg/config"
	"github.com/jllopis/telos/pkg/core"
	"github.com/jllopis/telos/pkg/llm"
	telosmcp "github.com/jllopis/telos/pkg/mcp"
	"github.com/jllopis/telos/pkg/planner"
	"github.com/jllopis/telos/pkg/skills"
	"github.com/jllopis/telos/pkg/telemetry"
	"github.com/kaptinlin/jsonrepair"
	"github.com/mattn/go-isatty"
)

func runRun(ctx context.Context, flags globalFlags, args []string) {
	cmd := flag.NewFlagSet("run", flag.ContinueOnError)
	goal := cmd.String("goal", "", "Single goal to run (non-interactive)")
	skillsDir := cmd.String("skills", "", "Directory containing SKILL.md skills (overrides config)")
	interactive := cmd.Bool("interactive", true, "Run in interactive REPL mode")
	noTelemetry := cmd.Bool("no-telemetry", false, "Disable telemetry output")
	watch := cmd.Bool("watch", false, "Watch the config file for changes and hot-reload")

	if err := cmd.Parse(args); err != nil {
		fatal(err)
	}

	cfg, err := config.Load(flags.ConfigPath)
	if err != nil {
		fatal(fmt.Errorf("failed to load config: %w", err))
	}

	telemetry.ConfigureSlog(os.Stderr, cfg.Log.Level, cfg.Log.Format)

	exporter := cfg.Telemetry.Exporter
	if *noTelemetry {
		exporter = "none"
	}
	shutdown, err := telemetry.InitWithConfig("telos", version, telemetry.Config{
		Exporter:     exporter,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure: cfg.Telemetry.OTLPInsecure,
	})
	if err != nil {
		fatal(fmt.Errorf("failed to init telemetry: %w", err))
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "telemetry shutdown: %v\n", err)
		}
	}()

	// Hot-reload keeps the live view of tunables current; already-built
	// components keep the values they were constructed with.
	reloadable := config.NewReloadableConfig(cfg)
	if *watch && flags.ConfigPath != "" {
		watcher, err := config.NewWatcher([]string{flags.ConfigPath},
			config.WithWatchInterval(1*time.Second),
		)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not watch config: %v\n", err)
		} else {
			watcher.OnChange(func(newCfg *config.Config) {
				reloadable.Update(newCfg)
				if !flags.JSON {
					fmt.Println("\n[Config reloaded]")
				}
			})
			watcher.Start(ctx)
			defer watcher.Stop()
			if !flags.JSON {
				fmt.Printf("Watching config: %s\n", flags.ConfigPath)
			}
		}
	}

	provider, err := createProvider(cfg)
	if err != nil {
		fatal(err)
	}

	registry := skills.NewRegistry()

	dir := cfg.Skills.Dir
	if *skillsDir != "" {
		dir = *skillsDir
	}
	if dir != "" {
		if err := skills.RegisterDir(registry, dir); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: skills from %s: %v\n", dir, err)
		}
	}

	closers := connectMCPServers(ctx, registry, cfg.Skills.MCPServers)
	defer func() {
		for _, c := range closers {
			c.Close()
		}
	}()

	audit, auditClose, err := openAuditStore(cfg.Planner.AuditDB)
	if err != nil {
		fatal(fmt.Errorf("failed to open audit store: %w", err))
	}
	if auditClose != nil {
		defer auditClose()
	}

	emitter := newConsoleEmitter(os.Stdout, flags.JSON)
	runnerOpts := []planner.RunnerOption{
		planner.WithEmitter(emitter),
		planner.WithAuditStore(audit),
	}
	if cfg.Planner.FailureThreshold > 0 {
		runnerOpts = append(runnerOpts, planner.WithFailureThreshold(cfg.Planner.FailureThreshold))
	}

	s := &session{
		provider: provider,
		registry: registry,
		creator:  planner.NewCreator(provider, registry, cfg.LLM.Model),
		runner:   planner.NewRunner(planner.NewRegistryExecutor(registry), runnerOpts...),
		compacter: compaction.NewService(provider, compaction.Config{
			ContextLength:    cfg.Compaction.ContextLength,
			BudgetRatio:      cfg.Compaction.BudgetRatio,
			MinRetained:      cfg.Compaction.MinRetained,
			ResponseReserve:  cfg.Compaction.ResponseReserve,
			Model:            cfg.LLM.Model,
			KeepRecentGroups: cfg.Compaction.KeepRecentGroups,
			StubThreshold:    cfg.Compaction.StubThreshold,
			ExactTokens:      cfg.Compaction.ExactTokens,
		}),
		cfg:     reloadable,
		emitter: emitter,
		json:    flags.JSON,
	}

	if !flags.JSON {
		fmt.Printf("Telos %s\n", version)
		fmt.Printf("LLM: %s (%s)\n", cfg.LLM.Provider, cfg.LLM.Model)
		if names := registry.Names(); len(names) > 0 {
			fmt.Printf("Skills: %s\n", strings.Join(names, ", "))
		}
		fmt.Println()
	}

	if *goal != "" {
		s.handle(ctx, *goal)
		return
	}
	if *interactive && isatty.IsTerminal(os.Stdin.Fd()) {
		s.repl(ctx)
		return
	}
	s.pipe(ctx)
}

// session holds per-conversation state: the rolling history and its
// cross-turn summary, compacted before every turn.
type session struct {
	provider  llm.Provider
	registry  *skills.Registry
	creator   *planner.Creator
	runner    *planner.Runner
	compacter *compaction.Service
	cfg       *config.ReloadableConfig
	emitter   core.EventEmitter
	json      bool

	history []llm.Message
	summary string
}

func (s *session) handle(ctx context.Context, input string) {
	res, err := s.compacter.CompactHistory(ctx, s.history, s.summary, 0)
	if err == nil {
		s.history = res.Messages
		s.summary = res.Summary
		if res.MessagesDropped > 0 && !s.json {
			fmt.Printf("[compacted %d messages]\n", res.MessagesDropped)
		}
	}

	if planner.NeedsPlan(input) {
		if s.runGoal(ctx, input) {
			return
		}
	}
	s.chat(ctx, input)
}

// runGoal plans and executes. Returns false when the model declined to
// plan, in which case the input falls through to direct chat.
func (s *session) runGoal(ctx context.Context, goal string) bool {
	plan, err := s.creator.Create(ctx, goal)
	if err != nil {
		if errors.Is(err, planner.ErrNoPlan) {
			return false
		}
		s.printError(err)
		return true
	}
	if maxRetries := s.cfg.Planner().MaxRetries; maxRetries > 0 {
		plan.MaxRetries = maxRetries
	}

	result, err := s.runner.Run(ctx, plan)
	if err != nil {
		s.printError(err)
		return true
	}

	s.history = append(s.history,
		llm.Message{Role: llm.RoleUser, Content: goal},
		llm.Message{Role: llm.RoleAssistant, Content: result.Summary},
	)
	return true
}

// chat answers without a plan: a single-shot tool-calling turn. The model
// sees every registered tool at its Level-1 summary, plus the full Level-2
// document for skills judged relevant to the input. At most one round of
// tool calls is executed before the final answer.
func (s *session) chat(ctx context.Context, input string) {
	messages := make([]llm.Message, 0, len(s.history)+3)
	if s.summary != "" {
		messages = append(messages, llm.Message{
			Role:    llm.RoleSystem,
			Content: "Summary of the conversation so far:\n" + s.summary,
		})
	}
	if docs := s.relevantDocs(input); docs != "" {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: docs})
	}
	messages = append(messages, s.history...)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: input})

	resp, err := llm.Chat(ctx, s.provider, llm.ChatRequest{
		Model:    s.cfg.LLM().Model,
		Messages: messages,
		Tools:    skills.LLMTools(s.registry.AllToolDefinitions()),
	})
	if err != nil {
		s.printError(err)
		return
	}

	if len(resp.ToolCalls) > 0 {
		messages = s.executeToolCalls(ctx, messages, resp)
		resp, err = llm.Chat(ctx, s.provider, llm.ChatRequest{
			Model:    s.cfg.LLM().Model,
			Messages: messages,
		})
		if err != nil {
			s.printError(err)
			return
		}
	}

	s.history = append(s.history,
		llm.Message{Role: llm.RoleUser, Content: input},
		llm.Message{Role: llm.RoleAssistant, Content: resp.Content},
	)

	if s.json {
		printJSON(map[string]string{"prompt": input, "response": resp.Content})
		return
	}
	fmt.Printf("\n%s\n", resp.Content)
}

// relevantDocs assembles the Level-2 documents for skills matching the
// input. Skills that don't match stay at their Level-1 summary inside the
// tool schema.
func (s *session) relevantDocs(input string) string {
	names := s.registry.RelevantSkills(input)
	if len(names) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Documentation for skills relevant to this request:")
	for _, name := range names {
		doc, ok := s.registry.Level2Doc(name)
		if !ok {
			continue
		}
		b.WriteString("\n\n")
		b.WriteString(doc)
	}
	return b.String()
}

// executeToolCalls runs one round of model-requested tool calls through the
// registry, appending the assistant turn and one tool message per call.
// Accumulated tool results are compacted after every executed step.
func (s *session) executeToolCalls(ctx context.Context, messages []llm.Message, resp *llm.ChatResponse) []llm.Message {
	messages = append(messages, llm.Message{
		Role:      llm.RoleAssistant,
		Content:   resp.Content,
		ToolCalls: resp.ToolCalls,
	})

	for _, tc := range resp.ToolCalls {
		messages = append(messages, llm.Message{
			Role:       llm.RoleTool,
			Content:    s.executeToolCall(ctx, tc),
			ToolCallID: tc.ID,
		})
		messages = s.compactToolResults(ctx, messages)
	}
	return messages
}

// executeToolCall dispatches a single call and renders its outcome as the
// tool message content. Failures are reported to the model as text so it
// can recover in its final answer.
func (s *session) executeToolCall(ctx context.Context, tc llm.ToolCall) string {
	args, err := decodeToolArguments(tc.Function.Arguments)
	if err != nil {
		return fmt.Sprintf("invalid arguments for %s: %v", tc.Function.Name, err)
	}
	call := core.ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: args}

	skill, ok := s.registry.Resolve(call.Name)
	if !ok {
		return fmt.Sprintf("tool not found: %s", call.Name)
	}
	result, err := skill.Handler.Execute(ctx, call)
	if err != nil {
		return fmt.Sprintf("tool %s failed: %v", call.Name, err)
	}
	if failed, reason := result.Failed(); failed {
		return fmt.Sprintf("tool %s failed: %s", call.Name, reason)
	}
	return renderPayload(result.Payload)
}

// compactToolResults trims accumulated tool payloads mid-turn, reporting
// what changed through the event stream.
func (s *session) compactToolResults(ctx context.Context, messages []llm.Message) []llm.Message {
	res := s.compacter.CompactToolResults(messages)
	if res.Stubbed > 0 && s.emitter != nil {
		s.emitter.Emit(ctx, core.NewEvent(core.EventCompactionReport, "", map[string]any{
			"kind":          "tool_results",
			"stubbed":       res.Stubbed,
			"tokens_before": res.TokensBefore,
			"tokens_after":  res.TokensAfter,
		}))
	}
	return res.Messages
}

// decodeToolArguments parses the model-produced arguments JSON, repairing
// near-miss output before giving up.
func decodeToolArguments(raw string) (map[string]any, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err == nil {
		return args, nil
	}
	repaired, err := jsonrepair.JSONRepair(raw)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(repaired), &args); err != nil {
		return nil, err
	}
	return args, nil
}

func renderPayload(payload any) string {
	if payload == nil {
		return "(no output)"
	}
	if str, ok := payload.(string); ok {
		return str
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprintf("%v", payload)
	}
	return string(data)
}

func (s *session) repl(ctx context.Context) {
	if !s.json {
		fmt.Println("Interactive mode. Type 'exit' or Ctrl+C to quit.")
		fmt.Println("---")
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		if !s.json {
			fmt.Print("\n> ")
		}

		select {
		case <-ctx.Done():
			if !s.json {
				fmt.Println("\nGoodbye!")
			}
			return
		default:
		}

		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
			if !s.json {
				fmt.Println("Goodbye!")
			}
			return
		}

		s.handle(ctx, input)
	}

	if err := scanner.Err(); err != nil && err != io.EOF {
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
	}
}

func (s *session) pipe(ctx context.Context) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		s.handle(ctx, input)
	}
}

func (s *session) printError(err error) {
	if s.json {
		printJSON(map[string]string{"error": err.Error()})
		return
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
}

func createProvider(cfg *config.Config) (llm.Provider, error) {
	switch strings.ToLower(cfg.LLM.Provider) {
	case "ollama", "":
		baseURL := cfg.LLM.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		return llm.NewOllama(baseURL), nil

	case "mock":
		return &llm.MockProvider{Response: "This is a mock response."}, nil

	default:
		// openai and anthropic live in separate provider modules to keep
		// their SDKs out of the core dependency graph.
		return nil, fmt.Errorf("unknown LLM provider: %s", cfg.LLM.Provider)
	}
}

func connectMCPServers(ctx context.Context, registry *skills.Registry, servers []config.MCPServerConfig) []io.Closer {
	var closers []io.Closer
	for _, server := range servers {
		cl, err := connectMCP(server)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: mcp server %s: %v\n", server.Name, err)
			continue
		}
		if err := telosmcp.RegisterServer(ctx, registry, server.Name, cl); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: mcp server %s: %v\n", server.Name, err)
			cl.Close()
			continue
		}
		closers = append(closers, cl)
	}
	return closers
}

func connectMCP(server config.MCPServerConfig) (*telosmcp.Client, error) {
	if server.Command != "" {
		return telosmcp.NewClientWithStdio(server.Command, server.Args)
	}
	if server.URL != "" {
		return telosmcp.NewClientWithStreamableHTTP(server.URL)
	}
	return nil, fmt.Errorf("server needs a command or url")
}

func openAuditStore(path string) (planner.AuditStore, func() error, error) {
	if path == "" {
		return planner.NewMemoryAuditStore(), nil, nil
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, nil, err
	}
	store, err := planner.NewSQLiteAuditStore(db)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return store, db.Close, nil
}
