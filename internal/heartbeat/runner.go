package heartbeat

import (
	"context"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/miniagent-dev/core/internal/observability"
)

// DefaultDuplicateWindow is how long an identical response text is
// suppressed from being forwarded twice.
const DefaultDuplicateWindow = 24 * time.Hour

// Request carries the reason and originating source of a heartbeat
// run through to its task handlers.
type Request struct {
	Reason Reason
	Source string
}

// TaskHandler processes the pending tasks for one heartbeat run and
// optionally returns response text to forward to the user.
type TaskHandler func(ctx context.Context, pending []Task, req Request) (string, error)

// Config controls a Runner's task file, cadence and active window.
type Config struct {
	TaskFilePath    string
	IntervalMs      int
	ActiveHours     ActiveHours
	DuplicateWindow time.Duration
	CoalesceMs      int

	// Metrics records dispatch outcomes. Nil-safe; may be left unset.
	Metrics *observability.Metrics
}

// Runner drives a markdown task file through the coalescer on a
// fixed cadence, re-arming a single-shot timer off of its own last
// run time rather than a periodic ticker, so a slow run never causes
// the next one to fire early.
type Runner struct {
	cfg      Config
	handlers []TaskHandler
	now      func() time.Time

	coalescer *Coalescer

	mu            sync.Mutex
	dispatching   bool
	lastRunAt     time.Time
	lastText      string
	lastTextAt    time.Time
	scheduleTimer *time.Timer
}

// NewRunner builds a Runner and its internal coalescer. Handlers are
// invoked in order on every run that has pending tasks.
func NewRunner(cfg Config, handlers ...TaskHandler) *Runner {
	r := &Runner{cfg: cfg, handlers: handlers, now: time.Now}
	r.coalescer = NewCoalescer(time.Duration(cfg.CoalesceMs)*time.Millisecond, r.runOnce)
	return r
}

// Start schedules the first run: immediately if the runner has never
// run, otherwise at lastRunAt + IntervalMs.
func (r *Runner) Start(ctx context.Context) {
	r.scheduleNext(ctx)
}

// Stop cancels the scheduling timer and the coalescer's pending run.
func (r *Runner) Stop() {
	r.mu.Lock()
	if r.scheduleTimer != nil {
		r.scheduleTimer.Stop()
		r.scheduleTimer = nil
	}
	r.mu.Unlock()
	r.coalescer.Stop()
}

// RequestRun asks for an out-of-cadence run, e.g. in response to an
// explicit command. It flows through the same coalescer as scheduled
// runs.
func (r *Runner) RequestRun(ctx context.Context, reason Reason, source string) {
	r.coalescer.Request(ctx, reason, source)
}

// LastRunAt reports when the runner last completed a run (zero if
// never).
func (r *Runner) LastRunAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastRunAt
}

func (r *Runner) scheduleNext(ctx context.Context) {
	r.mu.Lock()
	lastRun := r.lastRunAt
	interval := time.Duration(r.cfg.IntervalMs) * time.Millisecond
	delay := time.Duration(0)
	if !lastRun.IsZero() {
		next := lastRun.Add(interval)
		now := r.now()
		if next.After(now) {
			delay = next.Sub(now)
		}
	}
	if r.scheduleTimer != nil {
		r.scheduleTimer.Stop()
	}
	r.scheduleTimer = time.AfterFunc(delay, func() {
		r.coalescer.Request(ctx, ReasonInterval, "scheduler")
	})
	r.mu.Unlock()
}

// runOnce is the Coalescer Handler: it gates on active hours, parses
// the task file, dispatches pending tasks to every handler, suppresses
// duplicate response text, and always reschedules the next run before
// returning.
func (r *Runner) runOnce(ctx context.Context, reason Reason, source string) Result {
	r.mu.Lock()
	if r.dispatching {
		r.mu.Unlock()
		return Result{Status: "skipped", Reason: "requests-in-flight"}
	}
	r.dispatching = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.dispatching = false
		r.mu.Unlock()
	}()

	now := r.now()
	minuteOfDay := now.Hour()*60 + now.Minute()
	if !r.cfg.ActiveHours.Contains(minuteOfDay) {
		r.scheduleNext(ctx)
		r.cfg.Metrics.RecordHeartbeatRun("skipped")
		return Result{Status: "skipped", Reason: "outside-active-hours"}
	}

	tasks, err := r.loadTasks()
	if err != nil {
		r.scheduleNext(ctx)
		r.cfg.Metrics.RecordHeartbeatRun("skipped")
		return Result{Status: "skipped", Reason: "task-file-error"}
	}
	pending := IncompleteTasks(tasks)

	if len(pending) == 0 && reason != ReasonExec {
		r.commit(now, "")
		r.scheduleNext(ctx)
		r.cfg.Metrics.RecordHeartbeatRun("skipped")
		return Result{Status: "skipped", Reason: "no-pending-tasks"}
	}

	req := Request{Reason: reason, Source: source}
	var text string
	for _, h := range r.handlers {
		out, err := h(ctx, pending, req)
		if err != nil {
			continue
		}
		if out != "" {
			text = out
		}
	}

	r.mu.Lock()
	dupWindow := r.cfg.DuplicateWindow
	if dupWindow <= 0 {
		dupWindow = DefaultDuplicateWindow
	}
	isDuplicate := text != "" &&
		strings.TrimSpace(text) == strings.TrimSpace(r.lastText) &&
		now.Sub(r.lastTextAt) < dupWindow
	r.mu.Unlock()

	if isDuplicate {
		r.commit(now, "")
		r.scheduleNext(ctx)
		r.cfg.Metrics.RecordHeartbeatRun("skipped")
		return Result{Status: "skipped", Reason: "duplicate-text"}
	}

	r.commit(now, text)
	r.scheduleNext(ctx)
	r.cfg.Metrics.RecordHeartbeatRun("dispatched")
	return Result{Status: "ok", Text: text}
}

func (r *Runner) commit(now time.Time, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastRunAt = now
	if text != "" {
		r.lastText = text
		r.lastTextAt = now
	}
}

func (r *Runner) loadTasks() ([]Task, error) {
	data, err := os.ReadFile(r.cfg.TaskFilePath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ParseTasks(string(data)), nil
}
