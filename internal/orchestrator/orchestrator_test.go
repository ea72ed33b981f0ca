package orchestrator

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/miniagent-dev/core/internal/agentloop"
	"github.com/miniagent-dev/core/internal/eventbus"
	"github.com/miniagent-dev/core/internal/provider"
	"github.com/miniagent-dev/core/internal/sessionlog"
	"github.com/miniagent-dev/core/pkg/models"
)

// scriptedProvider replays one channel of chunks per Complete call, in
// call order, ignoring the request.
type scriptedProvider struct {
	turns [][]*provider.CompletionChunk
	calls int
}

func (p *scriptedProvider) Complete(ctx context.Context, req *provider.CompletionRequest) (<-chan *provider.CompletionChunk, error) {
	if p.calls >= len(p.turns) {
		return nil, errors.New("scriptedProvider: no more turns scripted")
	}
	turn := p.turns[p.calls]
	p.calls++

	ch := make(chan *provider.CompletionChunk, len(turn))
	for _, c := range turn {
		ch <- c
	}
	close(ch)
	return ch, nil
}

func (p *scriptedProvider) Name() string            { return "scripted" }
func (p *scriptedProvider) Models() []provider.Model { return nil }
func (p *scriptedProvider) SupportsTools() bool      { return true }

func textTurn(text string) []*provider.CompletionChunk {
	return []*provider.CompletionChunk{
		{Kind: provider.ChunkTextDelta, Delta: text},
		{Kind: provider.ChunkSettled, Text: text},
	}
}

func newTestOrchestrator(t *testing.T, turns ...[]*provider.CompletionChunk) (*Orchestrator, *sessionlog.Store) {
	t.Helper()
	dir := t.TempDir()
	store := sessionlog.NewStore(filepath.Join(dir, "sessions"))

	o := New(Config{
		Provider:          &scriptedProvider{turns: turns},
		Model:             "test-model",
		System:            "you are a test agent",
		Tools:             agentloop.NewRegistry(),
		AgentID:           "default",
		Workspace:         dir,
		UserHome:          dir,
		MaxTurns:          5,
		MaxConcurrentRuns: 2,
		Bus:               eventbus.New(),
		SessionLog:        store,
	})
	return o, store
}

func TestOrchestratorRun_AppendsHistoryAndReturnsText(t *testing.T) {
	o, store := newTestOrchestrator(t, textTurn("hello there"))

	result, err := o.Run(context.Background(), "", "s1", "hi")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Text != "hello there" {
		t.Fatalf("Text = %q, want %q", result.Text, "hello there")
	}
	if result.Turns != 1 {
		t.Fatalf("Turns = %d, want 1", result.Turns)
	}

	entries, err := store.Load("agent:default:s1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2 (user + assistant)", len(entries))
	}
	if entries[0].Message.Role != models.RoleUser || entries[0].Message.Text() != "hi" {
		t.Fatalf("entries[0] = %+v, want user message \"hi\"", entries[0])
	}
	if entries[1].Message.Role != models.RoleAssistant || entries[1].Message.Text() != "hello there" {
		t.Fatalf("entries[1] = %+v, want assistant message \"hello there\"", entries[1])
	}
}

func TestOrchestratorRun_SecondInvocationSeesPriorHistory(t *testing.T) {
	o, _ := newTestOrchestrator(t, textTurn("first"), textTurn("second"))

	if _, err := o.Run(context.Background(), "", "s1", "one"); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if _, err := o.Run(context.Background(), "", "s1", "two"); err != nil {
		t.Fatalf("second Run: %v", err)
	}

	entries, err := o.cfg.SessionLog.Load("agent:default:s1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("len(entries) = %d, want 4", len(entries))
	}
}

func TestOrchestratorRun_BelowHardFloorRefuses(t *testing.T) {
	o, _ := newTestOrchestrator(t, textTurn("unreachable"))
	o.cfg.TokenBudget = 100
	o.cfg.TokenHardFloor = 200

	_, err := o.Run(context.Background(), "", "s1", "hi")
	if !errors.Is(err, ErrBelowHardFloor) {
		t.Fatalf("err = %v, want ErrBelowHardFloor", err)
	}
}

func TestOrchestratorRun_AtSoftFloorProceeds(t *testing.T) {
	o, _ := newTestOrchestrator(t, textTurn("hello there"))
	o.cfg.TokenBudget = 150
	o.cfg.TokenHardFloor = 100
	o.cfg.TokenSoftFloor = 200

	result, err := o.Run(context.Background(), "", "s1", "hi")
	if err != nil {
		t.Fatalf("Run: %v, want no error (soft floor only warns)", err)
	}
	if result.Text != "hello there" {
		t.Fatalf("Text = %q, want %q", result.Text, "hello there")
	}
}

func TestOrchestratorSteer_QueuedBeforeRunIsSeenByLoop(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	o.Steer("", "s1", "stop please")

	q := o.steeringQueueFor("agent:default:s1")
	if !q.Peek() {
		t.Fatal("Peek() = false after Steer, want true")
	}
	if got := q.Drain(); got != "stop please" {
		t.Fatalf("Drain() = %q, want %q", got, "stop please")
	}
	if q.Peek() {
		t.Fatal("Peek() = true after Drain, want false")
	}
}

func TestOrchestratorAbort_CancelsLiveRun(t *testing.T) {
	o, _ := newTestOrchestrator(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	o.mu.Lock()
	o.cancels["run-1"] = context.CancelCauseFunc(func(err error) { cancel() })
	o.mu.Unlock()

	o.Abort("run-1")

	select {
	case <-ctx.Done():
	default:
		t.Fatal("expected context to be cancelled after Abort")
	}
}

func TestSpawnSubagent_RejectsNestedSubagent(t *testing.T) {
	o, _ := newTestOrchestrator(t)

	_, err := o.SpawnSubagent(context.Background(), "agent:default:subagent:child-1", "do a thing")
	if !errors.Is(err, ErrSubagentsCannotSpawn) {
		t.Fatalf("err = %v, want ErrSubagentsCannotSpawn", err)
	}
}

func TestSpawnSubagent_WritesSummaryBackToParent(t *testing.T) {
	o, store := newTestOrchestrator(t, textTurn("child done"))

	childRunID, err := o.SpawnSubagent(context.Background(), "agent:default:s1", "investigate")
	if err != nil {
		t.Fatalf("SpawnSubagent: %v", err)
	}
	if childRunID == "" {
		t.Fatal("childRunID is empty")
	}

	var entries []sessionlog.Entry
	for i := 0; i < 200; i++ {
		entries, err = store.Load("agent:default:s1")
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if len(entries) > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if len(entries) == 0 {
		t.Fatal("timed out waiting for the subagent summary write-back")
	}
}
