package eventbus

import (
	"testing"
	"time"
)

func TestPublish_SequenceIncreasesPerRun(t *testing.T) {
	b := New()
	b.now = func() time.Time { return time.Unix(0, 0) }

	e1 := b.Publish("run-1", StreamAssistant, "", "", nil)
	e2 := b.Publish("run-1", StreamAssistant, "", "", nil)
	e3 := b.Publish("run-2", StreamAssistant, "", "", nil)

	if e1.Seq != 1 || e2.Seq != 2 {
		t.Errorf("run-1 seqs = %d, %d, want 1, 2", e1.Seq, e2.Seq)
	}
	if e3.Seq != 1 {
		t.Errorf("run-2 seq = %d, want 1 (independent counter)", e3.Seq)
	}
}

func TestPublish_FansOutToAllSubscribers(t *testing.T) {
	b := New()
	var gotA, gotB []Event
	b.Subscribe(func(e Event) { gotA = append(gotA, e) })
	b.Subscribe(func(e Event) { gotB = append(gotB, e) })

	b.Publish("run-1", StreamTool, "", "", nil)

	if len(gotA) != 1 || len(gotB) != 1 {
		t.Errorf("gotA = %d events, gotB = %d events, want 1 each", len(gotA), len(gotB))
	}
}

func TestUnsubscribe_StopsFutureDelivery(t *testing.T) {
	b := New()
	var count int
	unsubscribe := b.Subscribe(func(e Event) { count++ })

	b.Publish("run-1", StreamTool, "", "", nil)
	unsubscribe()
	b.Publish("run-1", StreamTool, "", "", nil)

	if count != 1 {
		t.Errorf("count = %d, want 1 (no delivery after unsubscribe)", count)
	}
}

func TestUnsubscribe_IsIdempotent(t *testing.T) {
	b := New()
	unsubscribe := b.Subscribe(func(e Event) {})
	unsubscribe()
	unsubscribe() // must not panic
}

func TestPublish_SwallowsSubscriberPanics(t *testing.T) {
	b := New()
	var called bool
	b.Subscribe(func(e Event) { panic("boom") })
	b.Subscribe(func(e Event) { called = true })

	b.Publish("run-1", StreamTool, "", "", nil)

	if !called {
		t.Error("a panicking subscriber should not prevent later subscribers from running")
	}
}

func TestPublish_LifecycleEndReleasesSequenceCounter(t *testing.T) {
	b := New()
	b.Publish("run-1", StreamAssistant, "", "", nil)
	b.Publish("run-1", StreamLifecycle, "", "", map[string]any{"phase": "end"})

	e := b.Publish("run-1", StreamAssistant, "", "", nil)
	if e.Seq != 1 {
		t.Errorf("Seq after release = %d, want 1 (counter reset)", e.Seq)
	}
}

func TestPublish_LifecycleErrorReleasesSequenceCounter(t *testing.T) {
	b := New()
	b.Publish("run-1", StreamAssistant, "", "", nil)
	b.Publish("run-1", StreamLifecycle, "", "", map[string]any{"phase": "error"})

	e := b.Publish("run-1", StreamAssistant, "", "", nil)
	if e.Seq != 1 {
		t.Errorf("Seq after release = %d, want 1 (counter reset)", e.Seq)
	}
}

func TestPublish_LifecycleStartDoesNotReleaseSequenceCounter(t *testing.T) {
	b := New()
	b.Publish("run-1", StreamLifecycle, "", "", map[string]any{"phase": "start"})
	e := b.Publish("run-1", StreamAssistant, "", "", nil)
	if e.Seq != 2 {
		t.Errorf("Seq = %d, want 2 (counter not reset by phase=start)", e.Seq)
	}
}

func TestEvent_TimestampMillis(t *testing.T) {
	b := New()
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return fixed }

	e := b.Publish("run-1", StreamAssistant, "", "", nil)
	if e.TimestampMillis() != fixed.UnixMilli() {
		t.Errorf("TimestampMillis() = %d, want %d", e.TimestampMillis(), fixed.UnixMilli())
	}
}
