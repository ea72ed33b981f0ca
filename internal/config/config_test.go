package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "agent.yaml", `
agent:
  id: myagent
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Agent.ID != "myagent" {
		t.Fatalf("Agent.ID = %q, want %q", cfg.Agent.ID, "myagent")
	}
	if cfg.Agent.MaxTurns != 25 {
		t.Fatalf("Agent.MaxTurns = %d, want 25", cfg.Agent.MaxTurns)
	}
	if cfg.Provider.Name != "anthropic" {
		t.Fatalf("Provider.Name = %q, want anthropic", cfg.Provider.Name)
	}
	if cfg.Lane.MaxConcurrentGlobal != 2 {
		t.Fatalf("Lane.MaxConcurrentGlobal = %d, want 2", cfg.Lane.MaxConcurrentGlobal)
	}
	if cfg.Heartbeat.TaskFilePath != "HEARTBEAT.md" {
		t.Fatalf("Heartbeat.TaskFilePath = %q, want HEARTBEAT.md", cfg.Heartbeat.TaskFilePath)
	}
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("TEST_MINI_AGENT_KEY", "sk-test-123")
	path := writeConfig(t, "agent.yaml", `
provider:
  api_key: ${TEST_MINI_AGENT_KEY}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Provider.APIKey != "sk-test-123" {
		t.Fatalf("Provider.APIKey = %q, want sk-test-123", cfg.Provider.APIKey)
	}
}

func TestLoadRejectsProviderName(t *testing.T) {
	path := writeConfig(t, "agent.yaml", `
provider:
  name: gemini
`)

	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "provider.name") {
		t.Fatalf("expected provider.name error, got %v", err)
	}
}

func TestLoadRejectsBudgetBelowHardFloor(t *testing.T) {
	path := writeConfig(t, "agent.yaml", `
token_budget:
  window: 100
  hard_floor: 2000
`)

	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "token_budget.window") {
		t.Fatalf("expected token_budget.window error, got %v", err)
	}
}

func TestLoadRejectsMalformedActiveHours(t *testing.T) {
	path := writeConfig(t, "agent.yaml", `
heartbeat:
  active_hours_from: "8am"
  active_hours_to: "22:00"
`)

	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "active_hours_from") {
		t.Fatalf("expected active_hours_from error, got %v", err)
	}
}

func TestLoadParsesJSON5(t *testing.T) {
	path := writeConfig(t, "agent.json5", `
{
  // trailing commas and comments are fine in json5
  agent: { id: "json5agent" },
  lane: { max_concurrent_global: 4 },
}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Agent.ID != "json5agent" {
		t.Fatalf("Agent.ID = %q, want json5agent", cfg.Agent.ID)
	}
	if cfg.Lane.MaxConcurrentGlobal != 4 {
		t.Fatalf("Lane.MaxConcurrentGlobal = %d, want 4", cfg.Lane.MaxConcurrentGlobal)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default() produced an invalid config: %v", err)
	}
}

func TestHeartbeatConfigDuplicateWindow(t *testing.T) {
	h := HeartbeatConfig{DuplicateHours: 48}
	if got, want := h.DuplicateWindow().Hours(), 48.0; got != want {
		t.Fatalf("DuplicateWindow() = %v hours, want %v", got, want)
	}
}

func writeConfig(t *testing.T, name, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(strings.TrimSpace(contents)), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}
