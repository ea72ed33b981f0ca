// Package main provides the CLI entry point for the mini-agent runtime.
//
// mini-agent drives a conversational agent loop against an LLM provider
// (Anthropic, OpenAI) with tool execution, skills, session persistence,
// and context compaction.
//
// # Basic usage
//
//	miniagent chat --agent myagent mysession
//	miniagent doctor
//	miniagent version
//
// # Environment variables
//
//   - MINI_AGENT_CONFIG: path to the YAML configuration file (default: .mini-agent/config.yaml)
//   - ANTHROPIC_API_KEY / OPENAI_API_KEY: provider credentials
//   - OPENCLAW_MINI_AGENT_ID: fallback agent id when --agent is not passed
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd assembles the command tree. Separated from main so
// tests can exercise it without a process exit.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "miniagent",
		Short:        "mini-agent - conversational agent runtime",
		Version:      version + " (commit: " + commit + ", built: " + date + ")",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildChatCmd(),
		buildVersionCmd(),
		buildDoctorCmd(),
	)

	return rootCmd
}
