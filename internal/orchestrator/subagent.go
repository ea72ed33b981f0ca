package orchestrator

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/miniagent-dev/core/internal/eventbus"
	"github.com/miniagent-dev/core/internal/lane"
	"github.com/miniagent-dev/core/internal/sessionkey"
	"github.com/miniagent-dev/core/pkg/models"
)

// ErrSubagentsCannotSpawn is returned by SpawnSubagent when called for
// a session key that is itself a subagent tail: subagents cannot
// themselves spawn subagents.
var ErrSubagentsCannotSpawn = errors.New("orchestrator: a subagent session cannot spawn another subagent")

// SpawnSubagent builds a fresh child session key under parentSessionKey's
// agent id, registers it in the subagent registry, and runs task on it.
// The call returns as soon as the child run id is registered; the run
// itself executes in the background, and its eventual summary is
// written back into the parent's session log asynchronously once it
// completes. The returned childRunID identifies the run for Abort.
func (o *Orchestrator) SpawnSubagent(ctx context.Context, parentSessionKey, task string) (childRunID string, err error) {
	parentKey, ok := sessionkey.Parse(parentSessionKey)
	if !ok {
		return "", errors.New("orchestrator: malformed parent session key")
	}
	if parentKey.IsSubagent() {
		return "", ErrSubagentsCannotSpawn
	}

	childKey := sessionkey.NewSubagent(parentKey.AgentID, uuid.NewString())
	childRunID = uuid.NewString()

	o.mu.Lock()
	o.subagents[childRunID] = subagentRecord{parentSessionKey: parentSessionKey}
	o.mu.Unlock()

	// The parent-side spawned/completed pair gets its own event scope so
	// it never interleaves with the child run's sequence numbering.
	emitter := eventbus.NewEmitter(o.cfg.Bus, uuid.NewString(), parentSessionKey, parentKey.AgentID)
	emitter.SubagentSpawned(childRunID, task)

	go o.runSubagent(ctx, childRunID, childKey, parentSessionKey, task, emitter)

	return childRunID, nil
}

// runSubagent executes the child run to completion and writes its
// summary back into the parent's session log, fire-and-forget from the
// caller's perspective.
func (o *Orchestrator) runSubagent(ctx context.Context, childRunID string, childKey sessionkey.Key, parentSessionKey, task string, emitter *eventbus.Emitter) {
	defer func() {
		o.mu.Lock()
		delete(o.subagents, childRunID)
		o.mu.Unlock()
	}()

	result, err := o.run(ctx, childKey, task, childRunID, true)

	var summary string
	if err != nil {
		summary = "[subagent error]\n" + err.Error()
	} else {
		summary = "[subagent summary]\n" + truncateSummary(result.Text)
	}

	// The summary write goes through the parent's session lane so it
	// serializes against any run in flight on that session.
	msg := models.NewUserText(summary, nowMs())
	_, appendErr := lane.Enqueue(ctx, o.scheduler, "session:"+parentSessionKey, sessionLaneConcurrency,
		func(ctx context.Context) (struct{}, error) {
			_, err := o.cfg.SessionLog.Append(parentSessionKey, msg)
			return struct{}{}, err
		})
	if appendErr == nil {
		emitter.SubagentCompleted(childRunID, summary)
	}
	emitter.Release()
}

func truncateSummary(text string) string {
	if len(text) <= maxSubagentSummaryChars {
		return text
	}
	return text[:maxSubagentSummaryChars]
}
