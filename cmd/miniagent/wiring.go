package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	agentcontext "github.com/miniagent-dev/core/internal/context"
	"github.com/miniagent-dev/core/internal/agentloop"
	"github.com/miniagent-dev/core/internal/config"
	"github.com/miniagent-dev/core/internal/eventbus"
	"github.com/miniagent-dev/core/internal/heartbeat"
	"github.com/miniagent-dev/core/internal/memory"
	"github.com/miniagent-dev/core/internal/observability"
	"github.com/miniagent-dev/core/internal/orchestrator"
	"github.com/miniagent-dev/core/internal/provider"
	"github.com/miniagent-dev/core/internal/sessionlog"
	"github.com/miniagent-dev/core/internal/skills"
	"github.com/miniagent-dev/core/internal/toolpolicy"
)

// buildLogger constructs the process logger from cfg.Logging: text or
// JSON handler, at the configured level, writing to stderr so stdout
// stays reserved for the chat transcript.
func buildLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.ToLower(cfg.Logging.Format) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

// resolveWorkspace/resolveUserHome fill in the filesystem roots a
// config file may leave blank: the current directory and the real
// user home, matching what a bare "miniagent chat" with no config
// should do.
func resolveWorkspace(cfg *config.Config) string {
	if strings.TrimSpace(cfg.Agent.Workspace) != "" {
		return cfg.Agent.Workspace
	}
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

func resolveUserHome(cfg *config.Config) string {
	if strings.TrimSpace(cfg.Agent.UserHome) != "" {
		return cfg.Agent.UserHome
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home
}

// buildProvider constructs the provider adapter named by cfg, pulling
// its credential from the environment when cfg.Provider.APIKey is
// unset (the normal case: config files should not carry secrets
// in plain text).
func buildProvider(cfg *config.Config) (provider.Provider, error) {
	apiKey := strings.TrimSpace(cfg.Provider.APIKey)
	if apiKey == "" {
		apiKey = strings.TrimSpace(os.Getenv(providerAPIKeyEnvVar(cfg.Provider.Name)))
	}

	switch cfg.Provider.Name {
	case "openai":
		return provider.NewOpenAI(provider.OpenAIConfig{
			APIKey:       apiKey,
			DefaultModel: cfg.Provider.DefaultModel,
			MaxRetries:   cfg.Provider.MaxRetries,
		})
	default:
		return provider.NewAnthropic(provider.AnthropicConfig{
			APIKey:       apiKey,
			BaseURL:      cfg.Provider.BaseURL,
			DefaultModel: cfg.Provider.DefaultModel,
			MaxRetries:   cfg.Provider.MaxRetries,
		})
	}
}

// buildOrchestrator wires every component an orchestrator.Config needs
// from a loaded Config and the resolved agent id, returning the bus and
// the metrics instance alongside it so the caller can subscribe to
// live output and share the same metrics registration with a heartbeat
// runner built against the same process.
func buildOrchestrator(cfg *config.Config, agentID string, logger *slog.Logger) (*orchestrator.Orchestrator, *eventbus.Bus, *observability.Metrics, error) {
	p, err := buildProvider(cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("build provider: %w", err)
	}

	workspace := resolveWorkspace(cfg)
	userHome := resolveUserHome(cfg)

	skillMgr := skills.NewManager(userHome, workspace)
	if err := skillMgr.Load(); err != nil {
		return nil, nil, nil, fmt.Errorf("load skills: %w", err)
	}

	sessionsDir := filepath.Join(workspace, ".mini-agent", "sessions")
	store := sessionlog.NewStore(sessionsDir)

	bus := eventbus.New()

	summarizer := agentcontext.NewProviderSummarizer(p, cfg.Provider.DefaultModel, 0)

	metrics := observability.NewMetrics(nil)
	tracer := observability.NewTracer(observability.TraceConfig{ServiceName: "miniagent", ServiceVersion: version})

	memoryMgr := memory.NewManager(memory.Config{Path: filepath.Join(workspace, ".mini-agent", "memory", "index.json")})
	tools := agentloop.NewRegistry()
	tools.Register(&memory.SearchTool{Manager: memoryMgr})
	tools.Register(&memory.AppendTool{Manager: memoryMgr})

	o := orchestrator.New(orchestrator.Config{
		Provider:    p,
		Model:       cfg.Provider.DefaultModel,
		System:      defaultSystemPrompt,
		MaxTokens:   cfg.Provider.MaxTokens,
		Temperature: cfg.Provider.Temperature,

		Tools: tools,
		// AllowWrite covers memory_append; this runtime registers no
		// filesystem-mutating tools, so there is nothing else for the
		// toggle to gate yet.
		Policy: toolpolicy.Policy{AllowWrite: true},

		AgentID:   agentID,
		Workspace: workspace,
		UserHome:  userHome,

		MaxTurns:          cfg.Agent.MaxTurns,
		MaxConcurrentRuns: cfg.Lane.MaxConcurrentGlobal,
		GlobalLane:        cfg.Lane.GlobalName,

		TokenBudget:       cfg.Budget.Window,
		TokenHardFloor:    cfg.Budget.HardFloor,
		TokenSoftFloor:    cfg.Budget.SoftFloor,
		CompactionMinKeep: cfg.Budget.MinKeep,

		Bus:        bus,
		SessionLog: store,
		Skills:     skillMgr,
		Summarizer: summarizer,
		Logger:     logger,

		Metrics: metrics,
		Tracer:  tracer,
	})

	return o, bus, metrics, nil
}

// buildHeartbeatRunner wires a heartbeat.Runner that dispatches pending
// tasks from cfg.Heartbeat.TaskFilePath by running them through orch
// under a synthetic session key, so a heartbeat-triggered invocation
// shares the same lane scheduling, session log and event bus as any
// user-initiated chat turn.
func buildHeartbeatRunner(cfg *config.Config, orch *orchestrator.Orchestrator, agentID string, metrics *observability.Metrics) *heartbeat.Runner {
	sessionID := "heartbeat"

	handler := func(ctx context.Context, pending []heartbeat.Task, req heartbeat.Request) (string, error) {
		var sb strings.Builder
		sb.WriteString("The following tasks are pending in the heartbeat task list:\n")
		for _, t := range pending {
			sb.WriteString("- ")
			sb.WriteString(t.Text)
			sb.WriteString("\n")
		}
		sb.WriteString("\nReview them and take any action warranted, given this wake was triggered by: ")
		sb.WriteString(string(req.Reason))

		result, err := orch.Run(ctx, agentID, sessionID, sb.String())
		if err != nil {
			return "", err
		}
		return result.Text, nil
	}

	return heartbeat.NewRunner(heartbeat.Config{
		TaskFilePath:    cfg.Heartbeat.TaskFilePath,
		IntervalMs:      cfg.Heartbeat.IntervalMs,
		ActiveHours:     parseActiveHours(cfg.Heartbeat.ActiveHoursFrom, cfg.Heartbeat.ActiveHoursTo),
		DuplicateWindow: time.Duration(cfg.Heartbeat.DuplicateHours) * time.Hour,
		CoalesceMs:      cfg.Heartbeat.CoalesceMs,
		Metrics:         metrics,
	}, handler)
}

// parseActiveHours turns two "HH:MM" config strings into minutes-of-day,
// leaving the gate disabled when either is blank or malformed.
func parseActiveHours(from, to string) heartbeat.ActiveHours {
	start, ok1 := parseHHMM(from)
	end, ok2 := parseHHMM(to)
	if !ok1 || !ok2 {
		return heartbeat.ActiveHours{}
	}
	return heartbeat.ActiveHours{Enabled: true, Start: start, End: end}
}

func parseHHMM(s string) (int, bool) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}

const defaultSystemPrompt = "You are a helpful conversational assistant running as a local agent process. Use the tools and skills available to you when they help answer the user."
