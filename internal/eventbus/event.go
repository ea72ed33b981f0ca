// Package eventbus implements the process-wide publish-subscribe sink
// that every run's lifecycle, assistant, tool and subagent activity
// flows through. It assigns per-run monotonically increasing sequence
// numbers and fans each event out to every subscriber, swallowing
// subscriber panics so one bad observer can never take down a run.
package eventbus

import "time"

// Stream names the event's channel. Consumers typically subscribe to
// all of them and filter locally.
type Stream string

const (
	StreamLifecycle Stream = "lifecycle"
	StreamAssistant Stream = "assistant"
	StreamTool      Stream = "tool"
	StreamSubagent  Stream = "subagent"
	StreamError     Stream = "error"
)

// Event is one published occurrence on the bus.
type Event struct {
	RunID      string
	Seq        uint64
	Timestamp  time.Time
	Stream     Stream
	SessionKey string
	AgentID    string
	Data       map[string]any
}

// TimestampMillis is the wire-format timestamp: milliseconds since
// the Unix epoch.
func (e Event) TimestampMillis() int64 {
	return e.Timestamp.UnixMilli()
}

// lifecyclePhase reads the "phase" key out of a lifecycle event's
// data map, returning "" if absent or not a string.
func (e Event) lifecyclePhase() string {
	if e.Stream != StreamLifecycle {
		return ""
	}
	phase, _ := e.Data["phase"].(string)
	return phase
}

// IsRunTerminal reports whether this event marks the end of a run's
// sequence: a lifecycle event whose phase is "end" or "error".
func (e Event) IsRunTerminal() bool {
	phase := e.lifecyclePhase()
	return phase == "end" || phase == "error"
}
