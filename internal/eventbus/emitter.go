package eventbus

// Emitter is a per-run convenience wrapper around a Bus: it carries
// the run id, session key and agent id so call sites don't repeat
// them on every Publish call.
type Emitter struct {
	bus        *Bus
	runID      string
	sessionKey string
	agentID    string
}

// NewEmitter returns an Emitter bound to one run.
func NewEmitter(bus *Bus, runID, sessionKey, agentID string) *Emitter {
	return &Emitter{bus: bus, runID: runID, sessionKey: sessionKey, agentID: agentID}
}

func (e *Emitter) publish(stream Stream, data map[string]any) Event {
	return e.bus.Publish(e.runID, stream, e.sessionKey, e.agentID, data)
}

// RunStarted emits the lifecycle event opening a run.
func (e *Emitter) RunStarted() Event {
	return e.publish(StreamLifecycle, map[string]any{"phase": "start"})
}

// RunEnded emits the lifecycle event closing a run successfully,
// releasing its sequence counter.
func (e *Emitter) RunEnded(turns, toolCalls int) Event {
	return e.publish(StreamLifecycle, map[string]any{
		"phase":      "end",
		"turns":      turns,
		"tool_calls": toolCalls,
	})
}

// RunFailed emits the lifecycle event closing a run with an error,
// releasing its sequence counter.
func (e *Emitter) RunFailed(err error) Event {
	return e.publish(StreamLifecycle, map[string]any{
		"phase": "error",
		"error": err.Error(),
	})
}

// TextDelta emits an incremental assistant text chunk.
func (e *Emitter) TextDelta(delta string) Event {
	return e.publish(StreamAssistant, map[string]any{"delta": delta})
}

// TextCompleted emits the accumulated assistant text for a turn.
func (e *Emitter) TextCompleted(text string) Event {
	return e.publish(StreamAssistant, map[string]any{"text": text})
}

// ToolStarted emits the start of a tool call.
func (e *Emitter) ToolStarted(callID, name string, args map[string]any) Event {
	return e.publish(StreamTool, map[string]any{
		"call_id": callID,
		"name":    name,
		"args":    args,
		"phase":   "start",
	})
}

// ToolFinished emits the end of a tool call.
func (e *Emitter) ToolFinished(callID, name, result string, isError bool) Event {
	return e.publish(StreamTool, map[string]any{
		"call_id":  callID,
		"name":     name,
		"result":   result,
		"is_error": isError,
		"phase":    "end",
	})
}

// SubagentSpawned emits notice that a subagent run was started from
// this one.
func (e *Emitter) SubagentSpawned(childRunID, task string) Event {
	return e.publish(StreamSubagent, map[string]any{
		"child_run_id": childRunID,
		"task":         task,
	})
}

// SubagentCompleted emits a subagent's summary once its fire-and-forget
// continuation finishes.
func (e *Emitter) SubagentCompleted(childRunID, summary string) Event {
	return e.publish(StreamSubagent, map[string]any{
		"child_run_id": childRunID,
		"summary":      summary,
	})
}

// Release drops this emitter's sequence counter on the bus. Only needed
// for emitters whose scope never ends with a lifecycle event.
func (e *Emitter) Release() {
	e.bus.ReleaseRun(e.runID)
}

// Error emits a standalone error event outside the lifecycle stream,
// e.g. a non-fatal tool or provider error surfaced mid-run.
func (e *Emitter) Error(message string) Event {
	return e.publish(StreamError, map[string]any{"message": message})
}
