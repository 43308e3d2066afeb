// Copyright 2026 © The Telos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/jllopis/telos/pkg/config"
	"github.com/jllopis/telos/pkg/skills"
)

func runSkills(ctx context.Context, flags globalFlags, args []string) {
	sub := "list"
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		sub = args[0]
		args = args[1:]
	}

	cmd := flag.NewFlagSet("skills", flag.ContinueOnError)
	skillsDir := cmd.String("skills", "", "Directory containing SKILL.md skills (overrides config)")
	if err := cmd.Parse(args); err != nil {
		fatal(err)
	}

	cfg, err := config.Load(flags.ConfigPath)
	if err != nil {
		fatal(fmt.Errorf("failed to load config: %w", err))
	}

	dir := cfg.Skills.Dir
	if *skillsDir != "" {
		dir = *skillsDir
	}

	registry := skills.NewRegistry()
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

	switch sub {
	case "list":
		listSkills(registry, flags.JSON)
	case "doc":
		rest := cmd.Args()
		if len(rest) == 0 {
			fatal(fmt.Errorf("usage: telos skills doc <skill>"))
		}
		showSkillDoc(registry, rest[0], flags.JSON)
	default:
		fatal(fmt.Errorf("unknown skills subcommand %q", sub))
	}
}

func listSkills(registry *skills.Registry, jsonOutput bool) {
	if jsonOutput {
		printJSON(map[string]any{"skills": registry.Names()})
		return
	}
	summaries := registry.Level1Summaries()
	if summaries == "" {
		fmt.Println("No skills registered.")
		return
	}
	fmt.Print(summaries)
}

func showSkillDoc(registry *skills.Registry, name string, jsonOutput bool) {
	doc, ok := registry.Level2Doc(name)
	if !ok {
		fatal(fmt.Errorf("unknown skill %q", name))
	}
	if jsonOutput {
		printJSON(map[string]string{"skill": name, "doc": doc})
		return
	}
	fmt.Println(doc)
}
