package eventbus

import (
	"log/slog"
	"sync"
	"time"
)

// Subscriber receives published events. Implementations should not
// block or panic; a panic is recovered and logged, not propagated.
type Subscriber func(Event)

// Bus is a process-wide pub-sub sink. It is safe for concurrent use.
type Bus struct {
	now func() time.Time

	mu          sync.RWMutex
	subscribers map[uint64]Subscriber
	nextSubID   uint64
	sequences   map[string]uint64 // per run id, released on run-terminal events
}

// New returns an empty Bus.
func New() *Bus {
	return &Bus{
		now:         time.Now,
		subscribers: make(map[uint64]Subscriber),
		sequences:   make(map[string]uint64),
	}
}

// Subscribe registers fn to receive every future published event. The
// returned disposer unsubscribes it; calling the disposer more than
// once is a no-op.
func (b *Bus) Subscribe(fn Subscriber) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextSubID
	b.nextSubID++
	b.subscribers[id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subscribers, id)
			b.mu.Unlock()
		})
	}
}

// Publish assigns the next sequence number for runID, builds the
// event, and fans it out to every subscriber. When the event is a
// lifecycle event with phase "end" or "error", runID's sequence
// counter is released afterward, so a later run id reuse (the caller
// normally mints a fresh uuid per run, but nothing else enforces that)
// starts back at 1 rather than continuing a stale count.
func (b *Bus) Publish(runID string, stream Stream, sessionKey, agentID string, data map[string]any) Event {
	event := Event{
		RunID:      runID,
		Seq:        b.nextSeq(runID),
		Timestamp:  b.now(),
		Stream:     stream,
		SessionKey: sessionKey,
		AgentID:    agentID,
		Data:       data,
	}

	b.mu.RLock()
	subs := make([]Subscriber, 0, len(b.subscribers))
	for _, fn := range b.subscribers {
		subs = append(subs, fn)
	}
	b.mu.RUnlock()

	for _, fn := range subs {
		dispatch(fn, event)
	}

	if event.IsRunTerminal() {
		b.release(runID)
	}
	return event
}

func dispatch(fn Subscriber, e Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("eventbus subscriber panicked", "run_id", e.RunID, "stream", e.Stream, "recover", r)
		}
	}()
	fn(e)
}

func (b *Bus) nextSeq(runID string) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := b.sequences[runID] + 1
	b.sequences[runID] = n
	return n
}

// ReleaseRun drops runID's sequence counter. Lifecycle end/error events
// release their run automatically; this is for publishers using a scope
// id that never sees a lifecycle event, such as a subagent spawn's
// parent-side event pair.
func (b *Bus) ReleaseRun(runID string) {
	b.release(runID)
}

func (b *Bus) release(runID string) {
	b.mu.Lock()
	delete(b.sequences, runID)
	b.mu.Unlock()
}
