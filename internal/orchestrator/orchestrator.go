// Package orchestrator wires the session lane, agent loop, session log,
// skills resolver and event bus into the single entry point the CLI
// (and the heartbeat runner) drive a conversational run through.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	agentcontext "github.com/miniagent-dev/core/internal/context"
	"github.com/miniagent-dev/core/internal/contextfiles"
	"github.com/miniagent-dev/core/internal/eventbus"
	"github.com/miniagent-dev/core/internal/lane"
	"github.com/miniagent-dev/core/internal/observability"
	"github.com/miniagent-dev/core/internal/provider"
	"github.com/miniagent-dev/core/internal/retry"
	"github.com/miniagent-dev/core/internal/sessionkey"
	"github.com/miniagent-dev/core/internal/sessionlog"
	"github.com/miniagent-dev/core/internal/skills"
	"github.com/miniagent-dev/core/internal/toolpolicy"

	"github.com/miniagent-dev/core/internal/agentloop"
	"github.com/miniagent-dev/core/pkg/models"
)

// defaultGlobalLane bounds process-wide parallelism; every session
// lane's admitted work funnels through it.
const defaultGlobalLane = "main"
const sessionLaneConcurrency = 1

// maxSubagentSummaryChars bounds the continuation text written back
// into a parent session's log once a subagent run completes.
const maxSubagentSummaryChars = 600

// Config fixes everything an Orchestrator needs at construction: the
// provider it drives every run through, the tool registry and policy a
// run is allowed, and the turn/concurrency/budget limits guarding it.
// Nothing here is read from a package-global; every run goes through
// the instance it was constructed with.
type Config struct {
	Provider    provider.Provider
	Model       string
	System      string
	MaxTokens   int
	Temperature float64

	Tools  *agentloop.Registry
	Policy toolpolicy.Policy

	AgentID   string
	Workspace string
	UserHome  string

	MaxTurns          int
	MaxConcurrentRuns int

	// GlobalLane names the lane bounding process-wide parallelism.
	// Defaults to "main".
	GlobalLane string

	TokenBudget       int
	TokenHardFloor    int
	TokenSoftFloor    int
	CompactionMinKeep int

	Bus        *eventbus.Bus
	SessionLog *sessionlog.Store
	Skills     *skills.Manager
	Summarizer agentcontext.Summarizer

	// Metrics and Tracer instrument run lifecycle, LLM calls, and tool
	// dispatches. Both are nil-safe; either may be left unset.
	Metrics *observability.Metrics
	Tracer  *observability.Tracer

	// Logger receives one structured log line per error decided at the
	// orchestrator (retried, escalated, or swallowed), never logged
	// again further up the call stack. Defaults to slog.Default() when
	// nil.
	Logger *slog.Logger
}

// ErrBelowHardFloor is returned by Run when the configured token budget
// is at or below TokenHardFloor; the run refuses to start rather than
// produce an unusable context window.
var ErrBelowHardFloor = fmt.Errorf("orchestrator: token budget is at or below the configured hard floor")

// Orchestrator is the process-wide coordinator for one agent identity.
// It is safe for concurrent use from many goroutines (e.g. the CLI's
// REPL loop and the heartbeat runner's task handler at once).
type Orchestrator struct {
	cfg Config

	scheduler *lane.Scheduler

	mu        sync.Mutex
	steering  map[string]*steeringQueue // session key -> queue
	cancels   map[string]context.CancelCauseFunc
	subagents map[string]subagentRecord // child run id -> record
}

type subagentRecord struct {
	parentSessionKey string
}

// New returns an Orchestrator bound to cfg. MaxTurns/MaxConcurrentRuns
// default to 25/2 when unset, matching the agent loop's and the lane
// scheduler's own defaults.
func New(cfg Config) *Orchestrator {
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = 25
	}
	if cfg.MaxConcurrentRuns <= 0 {
		cfg.MaxConcurrentRuns = 2
	}
	if cfg.GlobalLane == "" {
		cfg.GlobalLane = defaultGlobalLane
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Orchestrator{
		cfg:       cfg,
		scheduler: lane.New(),
		steering:  make(map[string]*steeringQueue),
		cancels:   make(map[string]context.CancelCauseFunc),
		subagents: make(map[string]subagentRecord),
	}
}

// SessionLog returns the session log store this orchestrator persists
// every run's history to, so a caller (the CLI's /history, /reset and
// /sessions commands) can read or clear it without duplicating the
// storage layout orchestrator.Config already owns.
func (o *Orchestrator) SessionLog() *sessionlog.Store {
	return o.cfg.SessionLog
}

// RunResult is what one invocation of Run produced.
type RunResult struct {
	RunID     string
	Text      string
	Turns     int
	ToolCalls int
	Steered   bool
}

// Run resolves agentIDOrBlank/sessionIDOrKey into a canonical session
// key, appends userText to that session's log, and drives one agent
// loop run over its full history under the session lane (nested inside
// the global lane). It blocks until the run completes or fails.
func (o *Orchestrator) Run(ctx context.Context, agentIDOrBlank, sessionIDOrKey, userText string) (*RunResult, error) {
	if o.cfg.TokenBudget > 0 && o.cfg.TokenBudget <= o.cfg.TokenHardFloor {
		return nil, ErrBelowHardFloor
	}
	if o.cfg.TokenBudget > 0 && o.cfg.TokenSoftFloor > 0 && o.cfg.TokenBudget <= o.cfg.TokenSoftFloor {
		o.cfg.Logger.Warn("token budget is at or below the configured soft floor",
			"token_budget", o.cfg.TokenBudget, "soft_floor", o.cfg.TokenSoftFloor)
	}

	agentID := agentIDOrBlank
	if agentID == "" {
		agentID = o.cfg.AgentID
	}
	key := sessionkey.Resolve(agentID, sessionIDOrKey)
	return o.run(ctx, key, userText, uuid.NewString(), false)
}

// run is the shared path for both top-level invocations and subagent
// spawns; isSubagent disables further subagent spawning for the run it
// drives (subagents cannot themselves spawn subagents). runID is
// assigned by the caller so a spawner holds the child's id before the
// run is admitted.
func (o *Orchestrator) run(ctx context.Context, key sessionkey.Key, userText, runID string, isSubagent bool) (*RunResult, error) {
	sessionKey := key.String()

	result, err := lane.Enqueue(ctx, o.scheduler, "session:"+sessionKey, sessionLaneConcurrency, func(ctx context.Context) (*RunResult, error) {
		return lane.Enqueue(ctx, o.scheduler, o.cfg.GlobalLane, o.cfg.MaxConcurrentRuns, func(ctx context.Context) (*RunResult, error) {
			return o.runOnce(ctx, key, userText, runID, isSubagent)
		})
	})
	return result, err
}

func (o *Orchestrator) runOnce(ctx context.Context, key sessionkey.Key, userText, runID string, isSubagent bool) (result *RunResult, err error) {
	sessionKey := key.String()

	runCtx, cancel := context.WithCancelCause(ctx)
	o.registerCancel(runID, cancel)
	defer o.deregisterCancel(runID)
	defer cancel(nil)

	o.cfg.Metrics.SessionStarted()
	defer o.cfg.Metrics.SessionEnded()
	start := time.Now()
	runCtx, span := o.cfg.Tracer.TraceRun(runCtx, sessionKey, runID)
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
			if ctx.Err() != nil {
				status = "cancelled"
			}
			o.cfg.Tracer.RecordError(span, err)
			o.cfg.Metrics.RecordError("orchestrator", status)
		}
		o.cfg.Metrics.RecordRunAttempt(status, time.Since(start).Seconds())
		span.End()
	}()

	emitter := eventbus.NewEmitter(o.cfg.Bus, runID, sessionKey, key.AgentID)
	emitter.RunStarted()

	history, err := o.loadHistory(sessionKey)
	if err != nil {
		o.logRunError(sessionKey, runID, err)
		emitter.RunFailed(err)
		return nil, fmt.Errorf("orchestrator: load history: %w", err)
	}

	rewritten := userText
	if o.cfg.Skills != nil {
		if out, ok := o.cfg.Skills.Resolve(userText); ok {
			rewritten = out
		}
	}

	userMsg := models.NewUserText(rewritten, nowMs())
	if _, err := o.cfg.SessionLog.Append(sessionKey, userMsg); err != nil {
		o.logRunError(sessionKey, runID, err)
		emitter.RunFailed(err)
		return nil, fmt.Errorf("orchestrator: append user message: %w", err)
	}
	history = append(history, userMsg)

	if o.cfg.TokenBudget > 0 && agentcontext.EstimateMessages(history) > o.cfg.TokenBudget && o.cfg.Summarizer != nil {
		compactor := agentcontext.NewCompactor(o.cfg.Summarizer)
		compacted, _, compErr := compactor.Compact(runCtx, history, agentcontext.CompactConfig{
			Budget:  o.cfg.TokenBudget,
			MinKeep: o.cfg.CompactionMinKeep,
		}, nowMs())
		if compErr == nil {
			history = compacted
		}
	}

	system, err := o.systemPrompt()
	if err != nil {
		o.logRunError(sessionKey, runID, err)
		emitter.RunFailed(err)
		return nil, fmt.Errorf("orchestrator: build system prompt: %w", err)
	}

	loop := agentloop.New(agentloop.Config{
		Provider: o.cfg.Provider,
		Tools:    o.toolsFor(isSubagent),
		Policy:   o.cfg.Policy,

		Pruner:        agentcontext.NewPruner(o.cfg.TokenBudget),
		Compactor:     agentcontext.NewCompactor(o.cfg.Summarizer),
		CompactConfig: agentcontext.CompactConfig{Budget: o.cfg.TokenBudget, MinKeep: o.cfg.CompactionMinKeep},

		Emitter: emitter,
		Metrics: o.cfg.Metrics,
		Tracer:  o.cfg.Tracer,

		Model:       o.cfg.Model,
		System:      system,
		MaxTokens:   o.cfg.MaxTokens,
		Temperature: o.cfg.Temperature,
		MaxTurns:    o.cfg.MaxTurns,
	})

	queue := o.steeringQueueFor(sessionKey)
	loopResult, runErr := loop.Run(runCtx, history, queue)
	if runErr != nil {
		// The loop already emitted the lifecycle "error" event; only log here.
		o.logRunError(sessionKey, runID, runErr)
		return nil, fmt.Errorf("orchestrator: run: %w", runErr)
	}

	if err := o.persistNewMessages(sessionKey, history, loopResult.Messages); err != nil {
		o.logRunError(sessionKey, runID, err)
		return nil, fmt.Errorf("orchestrator: persist messages: %w", err)
	}

	return &RunResult{
		RunID:     runID,
		Text:      loopResult.Text,
		Turns:     loopResult.Turns,
		ToolCalls: loopResult.ToolCalls,
		Steered:   loopResult.Steered,
	}, nil
}

// persistNewMessages appends every message produced past the end of
// history (the pre-loop working set) to the session log, in order.
func (o *Orchestrator) persistNewMessages(sessionKey string, history []*models.Message, final []*models.Message) error {
	for i := len(history); i < len(final); i++ {
		if _, err := o.cfg.SessionLog.Append(sessionKey, final[i]); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) loadHistory(sessionKey string) ([]*models.Message, error) {
	entries, err := o.cfg.SessionLog.Load(sessionKey)
	if err != nil {
		return nil, err
	}
	messages := make([]*models.Message, 0, len(entries))
	for _, e := range entries {
		messages = append(messages, e.Message)
	}
	return messages, nil
}

func (o *Orchestrator) systemPrompt() (string, error) {
	var sb strings.Builder
	sb.WriteString(o.cfg.System)

	ctxDocs, err := contextfiles.Load(o.cfg.UserHome, o.cfg.Workspace)
	if err != nil {
		return "", err
	}
	if ctxDocs != "" {
		sb.WriteString("\n\n")
		sb.WriteString(ctxDocs)
	}

	if o.cfg.Skills != nil {
		if fragment := o.cfg.Skills.PromptFragment(); fragment != "" {
			sb.WriteString("\n\n")
			sb.WriteString(fragment)
		}
	}
	return sb.String(), nil
}

// toolsFor returns the registry a run may dispatch against. Subagent
// runs share the same tool registry as their parent; subagent spawning
// itself is gated separately (see SpawnSubagent) rather than by
// filtering the registry.
func (o *Orchestrator) toolsFor(isSubagent bool) *agentloop.Registry {
	return o.cfg.Tools
}

// logRunError logs err once, at the point the orchestrator decides its
// fate (here: always fatal to the run). error_kind classifies it per
// the same taxonomy the retry package uses for provider errors.
func (o *Orchestrator) logRunError(sessionKey, runID string, err error) {
	o.cfg.Logger.Error("run failed",
		"session_key", sessionKey,
		"run_id", runID,
		"error_kind", string(retry.Classify(err.Error())),
		"error", err,
	)
}

func nowMs() int64 {
	return time.Now().UnixMilli()
}
