// Package config loads the single YAML document that configures a
// process: provider selection and credentials, token budget,
// concurrency defaults, heartbeat cadence, and filesystem roots for
// skills/context/memory/session data. Environment references are
// expanded before unmarshaling, defaults applied once, and validation
// problems aggregated into a single error.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	json5 "github.com/yosuke-furukawa/json5/encoding/json5"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration document. Every subsystem owns its
// own struct; Config only composes them. It is loaded once at process
// start and handed to every component by constructor injection — no
// component reads it from a package-global.
type Config struct {
	Agent     AgentConfig       `yaml:"agent"`
	Provider  ProviderConfig    `yaml:"provider"`
	Lane      LaneConfig        `yaml:"lane"`
	Budget    TokenBudgetConfig `yaml:"token_budget"`
	Heartbeat HeartbeatConfig   `yaml:"heartbeat"`
	Skills    SkillsConfig      `yaml:"skills"`
	Logging   LoggingConfig     `yaml:"logging"`
}

// AgentConfig names the default agent identity and the filesystem
// roots its workspace and user-home tiers resolve against.
type AgentConfig struct {
	ID        string `yaml:"id"`
	Workspace string `yaml:"workspace"`
	UserHome  string `yaml:"user_home"`
	MaxTurns  int    `yaml:"max_turns"`
}

// ProviderConfig selects and credentials an LLM backend.
type ProviderConfig struct {
	Name         string  `yaml:"name"` // "anthropic" or "openai"
	APIKey       string  `yaml:"api_key"`
	BaseURL      string  `yaml:"base_url"`
	DefaultModel string  `yaml:"default_model"`
	MaxRetries   int     `yaml:"max_retries"`
	Temperature  float64 `yaml:"temperature"`
	MaxTokens    int     `yaml:"max_tokens"`
}

// LaneConfig sets the global lane's concurrency cap; the per-session
// lane is always maxConcurrent=1 and is not configurable.
type LaneConfig struct {
	GlobalName          string `yaml:"global_name"`
	MaxConcurrentGlobal int    `yaml:"max_concurrent_global"`
}

// TokenBudgetConfig bounds the pruner/compactor's working-set target
// and guards against configuring a window too small to be useful.
type TokenBudgetConfig struct {
	Window    int `yaml:"window"`
	HardFloor int `yaml:"hard_floor"`
	SoftFloor int `yaml:"soft_floor"`
	MinKeep   int `yaml:"min_keep"`
}

// HeartbeatConfig configures the runner: cadence, active-hours gate,
// and the task file it drives.
type HeartbeatConfig struct {
	Enabled         bool   `yaml:"enabled"`
	IntervalMs      int    `yaml:"interval_ms"`
	TaskFilePath    string `yaml:"task_file_path"`
	CoalesceMs      int    `yaml:"coalesce_ms"`
	DuplicateHours  int    `yaml:"duplicate_window_hours"`
	ActiveHoursFrom string `yaml:"active_hours_from"` // "HH:MM", empty disables the gate
	ActiveHoursTo   string `yaml:"active_hours_to"`
}

// SkillsConfig has no tunables of its own today: discovery is always
// the fixed two tiers resolved off AgentConfig's Workspace/UserHome.
// It exists so a future knob (e.g. an extra tier) has a documented
// home instead of growing AgentConfig.
type SkillsConfig struct{}

// LoggingConfig controls the slog handler's level and format.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// EnvConfigPath is the environment variable that overrides the
// default config file location.
const EnvConfigPath = "MINI_AGENT_CONFIG"

// Default returns a Config with every field at its zero value run
// through applyDefaults, letting a caller start a process against
// sane defaults without a config file on disk.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads, expands, and parses the configuration document at path,
// then applies defaults and validates it. ${VAR} references are
// expanded against the process environment before unmarshaling. A
// ".json" or ".json5" extension is parsed with a JSON5 decoder (so
// comments and trailing commas are tolerated); anything else is
// parsed as YAML.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	expanded := os.ExpandEnv(string(data))

	cfg, err := parseDocument([]byte(expanded), path)
	if err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseDocument(data []byte, pathHint string) (*Config, error) {
	ext := strings.ToLower(filepath.Ext(pathHint))
	if ext != ".json" && ext != ".json5" {
		var cfg Config
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
		return &cfg, nil
	}

	var raw map[string]any
	if err := json5.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	// Round-trip through YAML so the json5-decoded map picks up the
	// struct's `yaml:"..."` tags without a second set of json tags.
	payload, err := yaml.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(payload, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in every zero-valued field that has a sane
// default. Run once, after unmarshaling, before validation.
func (c *Config) applyDefaults() {
	if c.Agent.ID == "" {
		c.Agent.ID = "default"
	}
	if c.Agent.MaxTurns <= 0 {
		c.Agent.MaxTurns = 25
	}
	if c.Provider.Name == "" {
		c.Provider.Name = "anthropic"
	}
	if c.Provider.MaxRetries <= 0 {
		c.Provider.MaxRetries = 3
	}
	if c.Provider.MaxTokens <= 0 {
		c.Provider.MaxTokens = 4096
	}
	if c.Lane.GlobalName == "" {
		c.Lane.GlobalName = "main"
	}
	if c.Lane.MaxConcurrentGlobal <= 0 {
		c.Lane.MaxConcurrentGlobal = 2
	}
	if c.Budget.Window <= 0 {
		c.Budget.Window = 150000
	}
	if c.Budget.HardFloor <= 0 {
		c.Budget.HardFloor = 2000
	}
	if c.Budget.SoftFloor <= 0 {
		c.Budget.SoftFloor = 8000
	}
	if c.Budget.MinKeep <= 0 {
		c.Budget.MinKeep = 4
	}
	if c.Heartbeat.IntervalMs <= 0 {
		c.Heartbeat.IntervalMs = 15 * 60 * 1000
	}
	if c.Heartbeat.CoalesceMs <= 0 {
		c.Heartbeat.CoalesceMs = 250
	}
	if c.Heartbeat.DuplicateHours <= 0 {
		c.Heartbeat.DuplicateHours = 24
	}
	if c.Heartbeat.TaskFilePath == "" {
		c.Heartbeat.TaskFilePath = "HEARTBEAT.md"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate aggregates every invalid field into a single error rather
// than stopping at the first.
func (c *Config) Validate() error {
	var problems []string

	if c.Budget.Window < c.Budget.HardFloor {
		problems = append(problems, fmt.Sprintf("token_budget.window (%d) must be >= token_budget.hard_floor (%d)", c.Budget.Window, c.Budget.HardFloor))
	}
	if c.Budget.HardFloor > c.Budget.SoftFloor {
		problems = append(problems, fmt.Sprintf("token_budget.hard_floor (%d) must be <= token_budget.soft_floor (%d)", c.Budget.HardFloor, c.Budget.SoftFloor))
	}
	if c.Lane.MaxConcurrentGlobal < 1 {
		problems = append(problems, "lane.max_concurrent_global must be >= 1")
	}
	if c.Provider.Name != "anthropic" && c.Provider.Name != "openai" {
		problems = append(problems, fmt.Sprintf("provider.name %q must be \"anthropic\" or \"openai\"", c.Provider.Name))
	}
	if from, to := c.Heartbeat.ActiveHoursFrom, c.Heartbeat.ActiveHoursTo; (from == "") != (to == "") {
		problems = append(problems, "heartbeat.active_hours_from and active_hours_to must both be set or both be empty")
	} else if from != "" {
		if _, err := parseHHMM(from); err != nil {
			problems = append(problems, fmt.Sprintf("heartbeat.active_hours_from: %v", err))
		}
		if _, err := parseHHMM(to); err != nil {
			problems = append(problems, fmt.Sprintf("heartbeat.active_hours_to: %v", err))
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return &ValidationError{Problems: problems}
}

// ValidationError aggregates every invalid field found during Validate.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: invalid configuration:\n  - %s", strings.Join(e.Problems, "\n  - "))
}

// parseHHMM parses "HH:MM" into minutes-of-day.
func parseHHMM(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("malformed time %q, want HH:MM", s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("time %q out of range", s)
	}
	return h*60 + m, nil
}

// DuplicateWindow renders DuplicateHours as a time.Duration.
func (h HeartbeatConfig) DuplicateWindow() time.Duration {
	return time.Duration(h.DuplicateHours) * time.Hour
}
