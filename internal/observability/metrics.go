// Package observability provides the Prometheus metrics and OpenTelemetry
// span helpers every long-running component reports through: the agent
// loop's LLM calls and tool dispatches, the orchestrator's run lifecycle,
// and the heartbeat runner's dispatch outcomes.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics centralizes the Prometheus instrumentation for one process. A nil
// *Metrics is valid everywhere it is accepted as a dependency: every method
// on it guards against a nil receiver so instrumentation stays optional.
type Metrics struct {
	// RunAttempts counts orchestrator runs by outcome.
	// Labels: status (success|error|cancelled)
	RunAttempts *prometheus.CounterVec

	// RunDuration measures wall-clock run time in seconds.
	RunDuration prometheus.Histogram

	// ActiveSessions tracks sessions currently holding the session lane.
	ActiveSessions prometheus.Gauge

	// LLMRequestCounter counts provider completion calls.
	// Labels: provider, model, status (success|error)
	LLMRequestCounter *prometheus.CounterVec

	// LLMRequestDuration measures provider completion call latency.
	// Labels: provider, model
	LLMRequestDuration *prometheus.HistogramVec

	// LLMTokensUsed tracks estimated token consumption by type.
	// Labels: provider, model, type (prompt|completion)
	LLMTokensUsed *prometheus.CounterVec

	// ToolExecutionCounter counts tool dispatches.
	// Labels: tool_name, status (success|error)
	ToolExecutionCounter *prometheus.CounterVec

	// ToolExecutionDuration measures tool execution latency.
	// Labels: tool_name
	ToolExecutionDuration *prometheus.HistogramVec

	// ErrorCounter tracks classified errors by component and kind.
	// Labels: component, error_kind
	ErrorCounter *prometheus.CounterVec

	// ContextWindowUsed tracks estimated tokens in the working message
	// list at prune time.
	ContextWindowUsed prometheus.Histogram

	// HeartbeatRuns counts heartbeat runner dispatches by outcome.
	// Labels: status (dispatched|skipped)
	HeartbeatRuns *prometheus.CounterVec
}

// NewMetrics registers and returns a fresh set of metrics against
// reg. A nil reg registers against prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RunAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "miniagent_run_attempts_total",
				Help: "Total number of orchestrator runs by outcome.",
			},
			[]string{"status"},
		),
		RunDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "miniagent_run_duration_seconds",
				Help:    "Duration of a full orchestrator run in seconds.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
			},
		),
		ActiveSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "miniagent_active_sessions",
				Help: "Number of sessions currently holding the session lane.",
			},
		),
		LLMRequestCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "miniagent_llm_requests_total",
				Help: "Total number of provider completion requests.",
			},
			[]string{"provider", "model", "status"},
		),
		LLMRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "miniagent_llm_request_duration_seconds",
				Help:    "Duration of provider completion requests in seconds.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"provider", "model"},
		),
		LLMTokensUsed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "miniagent_llm_tokens_total",
				Help: "Total estimated tokens by provider, model, and type.",
			},
			[]string{"provider", "model", "type"},
		),
		ToolExecutionCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "miniagent_tool_executions_total",
				Help: "Total number of tool dispatches by tool name and status.",
			},
			[]string{"tool_name", "status"},
		),
		ToolExecutionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "miniagent_tool_execution_duration_seconds",
				Help:    "Duration of tool executions in seconds.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"tool_name"},
		),
		ErrorCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "miniagent_errors_total",
				Help: "Total number of classified errors by component and kind.",
			},
			[]string{"component", "error_kind"},
		),
		ContextWindowUsed: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "miniagent_context_window_tokens",
				Help:    "Estimated tokens in the working message list at prune time.",
				Buckets: []float64{500, 1000, 4000, 8000, 16000, 32000, 64000, 128000},
			},
		),
		HeartbeatRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "miniagent_heartbeat_runs_total",
				Help: "Total number of heartbeat runner dispatches by outcome.",
			},
			[]string{"status"},
		),
	}
}

// RecordRunAttempt increments RunAttempts and observes RunDuration. Safe on
// a nil *Metrics.
func (m *Metrics) RecordRunAttempt(status string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.RunAttempts.WithLabelValues(status).Inc()
	m.RunDuration.Observe(durationSeconds)
}

// SessionStarted increments ActiveSessions. Safe on a nil *Metrics.
func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.ActiveSessions.Inc()
}

// SessionEnded decrements ActiveSessions. Safe on a nil *Metrics.
func (m *Metrics) SessionEnded() {
	if m == nil {
		return
	}
	m.ActiveSessions.Dec()
}

// RecordLLMRequest records one provider completion call. Safe on a nil
// *Metrics.
func (m *Metrics) RecordLLMRequest(provider, model, status string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.LLMRequestCounter.WithLabelValues(provider, model, status).Inc()
	m.LLMRequestDuration.WithLabelValues(provider, model).Observe(durationSeconds)
}

// RecordLLMTokens records estimated token usage by kind ("prompt" or
// "completion"). Safe on a nil *Metrics.
func (m *Metrics) RecordLLMTokens(provider, model, kind string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.LLMTokensUsed.WithLabelValues(provider, model, kind).Add(float64(count))
}

// RecordToolExecution records one tool dispatch. Safe on a nil *Metrics.
func (m *Metrics) RecordToolExecution(toolName, status string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.ToolExecutionCounter.WithLabelValues(toolName, status).Inc()
	m.ToolExecutionDuration.WithLabelValues(toolName).Observe(durationSeconds)
}

// RecordError increments ErrorCounter. Safe on a nil *Metrics.
func (m *Metrics) RecordError(component, errorKind string) {
	if m == nil {
		return
	}
	m.ErrorCounter.WithLabelValues(component, errorKind).Inc()
}

// RecordContextWindow observes the estimated token count of a working
// message list at prune time. Safe on a nil *Metrics.
func (m *Metrics) RecordContextWindow(tokens int) {
	if m == nil {
		return
	}
	m.ContextWindowUsed.Observe(float64(tokens))
}

// RecordHeartbeatRun increments HeartbeatRuns. Safe on a nil *Metrics.
func (m *Metrics) RecordHeartbeatRun(status string) {
	if m == nil {
		return
	}
	m.HeartbeatRuns.WithLabelValues(status).Inc()
}
