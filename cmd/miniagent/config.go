package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/miniagent-dev/core/internal/config"
)

// defaultConfigPath is the workspace-relative config file under
// .mini-agent/ used when neither --config nor the config.EnvConfigPath
// environment variable names one.
const defaultConfigPath = ".mini-agent/config.yaml"

// resolveConfigPath applies an explicit --config flag value over the
// MINI_AGENT_CONFIG environment variable, falling back to
// defaultConfigPath.
func resolveConfigPath(flagValue string) string {
	if strings.TrimSpace(flagValue) != "" {
		return flagValue
	}
	if v := strings.TrimSpace(os.Getenv(config.EnvConfigPath)); v != "" {
		return v
	}
	return defaultConfigPath
}

// loadConfig reads path if it exists, otherwise returns a config built
// entirely from applyDefaults so a first run never needs a config file
// on disk to work with the default provider and workspace.
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}
		return config.Default(), nil
	}
	return config.Load(path)
}

// providerAPIKeyEnvVar names the environment variable holding the
// credential for cfg's selected provider.
func providerAPIKeyEnvVar(providerName string) string {
	switch providerName {
	case "openai":
		return "OPENAI_API_KEY"
	default:
		return "ANTHROPIC_API_KEY"
	}
}

// envAgentID is the fallback agent id environment variable,
// consulted when --agent is not passed on the command line.
const envAgentID = "OPENCLAW_MINI_AGENT_ID"

// resolveAgentID applies --agent over OPENCLAW_MINI_AGENT_ID over the
// config file's agent.id, matching the same flag-over-env-over-file
// precedence resolveConfigPath uses for the config path itself.
func resolveAgentID(flagValue string, cfg *config.Config) string {
	if strings.TrimSpace(flagValue) != "" {
		return flagValue
	}
	if v := strings.TrimSpace(os.Getenv(envAgentID)); v != "" {
		return v
	}
	return cfg.Agent.ID
}
