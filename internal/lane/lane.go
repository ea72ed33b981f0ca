// Package lane implements named FIFO lanes with per-lane concurrency
// caps. Callers compose lanes by nesting Enqueue calls — for example,
// a session lane capped at one enqueuing its admitted work on a global
// lane capped at a handful — to get the two-lane scheduling a
// conversational agent runtime needs without any shared global lock.
package lane

import (
	"context"
	"sync"
)

// lane holds the FIFO admission state for one named lane.
type lane struct {
	name          string
	maxConcurrent int
	active        int
	waiters       []chan struct{}
}

// Scheduler owns every lane in the process, keyed by name. The zero
// value is not usable; construct with New.
type Scheduler struct {
	mu    sync.Mutex
	lanes map[string]*lane
}

// New returns an empty Scheduler.
func New() *Scheduler {
	return &Scheduler{lanes: make(map[string]*lane)}
}

// Enqueue runs fn once this caller is admitted to the named lane,
// creating the lane on first use with the given maxConcurrent. If ctx
// is cancelled while waiting for admission, Enqueue returns ctx.Err()
// without running fn. Admission is strict FIFO: callers are granted a
// slot in the order they called Enqueue.
func Enqueue[T any](ctx context.Context, s *Scheduler, laneName string, maxConcurrent int, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	l := s.getOrCreate(laneName, maxConcurrent)
	if err := s.acquire(ctx, l); err != nil {
		return zero, err
	}
	defer s.release(l)
	return fn(ctx)
}

// SetMaxConcurrent changes a lane's concurrency cap, admitting any
// waiters the new capacity can immediately accommodate. It is a no-op
// if the lane does not yet exist.
func (s *Scheduler) SetMaxConcurrent(laneName string, maxConcurrent int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lanes[laneName]
	if !ok {
		return
	}
	l.maxConcurrent = maxConcurrent
	s.admitLocked(l)
}

// Snapshot describes a lane's current state, for diagnostics.
type Snapshot struct {
	Name          string
	Active        int
	Queued        int
	MaxConcurrent int
}

// Inspect returns a Snapshot of every lane currently tracked. Lanes
// with zero active and zero queued tasks are deleted as part of
// release and will not appear here.
func (s *Scheduler) Inspect() []Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Snapshot, 0, len(s.lanes))
	for _, l := range s.lanes {
		out = append(out, Snapshot{
			Name:          l.name,
			Active:        l.active,
			Queued:        len(l.waiters),
			MaxConcurrent: l.maxConcurrent,
		})
	}
	return out
}

func (s *Scheduler) getOrCreate(name string, maxConcurrent int) *lane {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lanes[name]
	if !ok {
		l = &lane{name: name, maxConcurrent: maxConcurrent}
		s.lanes[name] = l
	}
	return l
}

// acquire blocks until l admits the caller or ctx is cancelled.
func (s *Scheduler) acquire(ctx context.Context, l *lane) error {
	s.mu.Lock()
	if l.active < l.maxConcurrent && len(l.waiters) == 0 {
		l.active++
		s.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	l.waiters = append(l.waiters, ch)
	s.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		s.mu.Lock()
		for i, w := range l.waiters {
			if w == ch {
				l.waiters = append(l.waiters[:i], l.waiters[i+1:]...)
				s.mu.Unlock()
				return ctx.Err()
			}
		}
		s.mu.Unlock()
		// The waiter was already granted a slot concurrently with our
		// cancellation; consume the grant and give the slot straight back.
		<-ch
		s.release(l)
		return ctx.Err()
	}
}

// release returns l's active slot to the pool, handing it directly to
// the next FIFO waiter if one is queued, and deletes the lane once it
// is entirely idle.
func (s *Scheduler) release(l *lane) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l.active--
	s.admitLocked(l)
}

// admitLocked must be called with s.mu held. It admits as many queued
// waiters as current capacity allows, then prunes the lane from the
// map once it is entirely idle. It never touches active on behalf of
// a caller releasing its own slot — release does that before calling in.
func (s *Scheduler) admitLocked(l *lane) {
	for l.active < l.maxConcurrent && len(l.waiters) > 0 {
		next := l.waiters[0]
		l.waiters = l.waiters[1:]
		l.active++
		close(next)
	}
	if l.active == 0 && len(l.waiters) == 0 {
		delete(s.lanes, l.name)
	}
}
