package orchestrator

import (
	"strings"
	"sync"

	"github.com/miniagent-dev/core/internal/sessionkey"
)

// steeringQueue buffers text injected mid-run for one session. It
// satisfies agentloop.SteeringQueue; the orchestrator owns one per
// session key so a queue's lifetime tracks the session, not any single
// run, letting a steering message sent between two runs still be
// picked up by the next one.
type steeringQueue struct {
	mu      sync.Mutex
	pending []string
}

func (q *steeringQueue) push(text string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, text)
}

// Peek reports whether a steering message is currently queued.
func (q *steeringQueue) Peek() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending) > 0
}

// Drain removes everything queued, newline-joining multiple messages
// that arrived between two tool calls into one.
func (q *steeringQueue) Drain() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return ""
	}
	joined := strings.Join(q.pending, "\n")
	q.pending = nil
	return joined
}

// steeringQueueFor returns the queue for sessionKey, creating it on
// first use.
func (o *Orchestrator) steeringQueueFor(sessionKey string) *steeringQueue {
	o.mu.Lock()
	defer o.mu.Unlock()
	q, ok := o.steering[sessionKey]
	if !ok {
		q = &steeringQueue{}
		o.steering[sessionKey] = q
	}
	return q
}

// Steer appends text to sessionKey's steering queue. The agent loop
// polls this queue between tool calls and, on finding it non-empty,
// stops executing the remaining tool calls of the current turn.
func (o *Orchestrator) Steer(agentIDOrBlank, sessionIDOrKey, text string) {
	agentID := agentIDOrBlank
	if agentID == "" {
		agentID = o.cfg.AgentID
	}
	key := sessionkey.Resolve(agentID, sessionIDOrKey)
	o.steeringQueueFor(key.String()).push(text)
}
