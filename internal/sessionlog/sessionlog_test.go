package sessionlog

import (
	"path/filepath"
	"testing"

	"github.com/miniagent-dev/core/pkg/models"
)

func TestAppendThenLoad_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	key := "agent:billing-bot:main"

	if _, err := store.Append(key, models.NewUserText("hi", 1000)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := store.Append(key, models.NewAssistantMessage([]models.ContentBlock{models.TextBlock{Text: "hello"}}, 2000)); err != nil {
		t.Fatalf("Append: %v", err)
	}

	entries, err := store.Load(key)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Message.Text() != "hi" || entries[1].Message.Text() != "hello" {
		t.Errorf("entries = %+v", entries)
	}
	if entries[0].ID == "" || entries[1].ID == "" || entries[0].ID == entries[1].ID {
		t.Errorf("expected distinct non-empty ids, got %q and %q", entries[0].ID, entries[1].ID)
	}
}

func TestLoad_MissingSessionReturnsNil(t *testing.T) {
	store := NewStore(t.TempDir())
	entries, err := store.Load("agent:nobody:main")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if entries != nil {
		t.Errorf("entries = %v, want nil", entries)
	}
}

func TestLoadTail_ReturnsOnlyLastN(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	key := "agent:billing-bot:main"
	for i := 0; i < 5; i++ {
		if _, err := store.Append(key, models.NewUserText("msg", 1000)); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	tail, err := store.LoadTail(key, 2)
	if err != nil {
		t.Fatalf("LoadTail: %v", err)
	}
	if len(tail) != 2 {
		t.Fatalf("got %d entries, want 2", len(tail))
	}
}

func TestClear_RemovesLog(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	key := "agent:billing-bot:main"
	if _, err := store.Append(key, models.NewUserText("hi", 1000)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := store.Clear(key); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	entries, err := store.Load(key)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if entries != nil {
		t.Errorf("entries = %v, want nil after Clear", entries)
	}
}

func TestClear_NonexistentSessionIsNotAnError(t *testing.T) {
	store := NewStore(t.TempDir())
	if err := store.Clear("agent:nobody:main"); err != nil {
		t.Errorf("Clear on missing session returned error: %v", err)
	}
}

func TestList_ReturnsSortedSessionKeys(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	for _, key := range []string{"agent:b:main", "agent:a:main", "agent:a:subagent:xyz"} {
		if _, err := store.Append(key, models.NewUserText("hi", 1000)); err != nil {
			t.Fatalf("Append(%q): %v", key, err)
		}
	}

	keys, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{"agent:a:main", "agent:a:subagent:xyz", "agent:b:main"}
	if len(keys) != len(want) {
		t.Fatalf("keys = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("keys = %v, want %v", keys, want)
			break
		}
	}
}

func TestList_EmptyDirReturnsNil(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "does-not-exist"))
	keys, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if keys != nil {
		t.Errorf("keys = %v, want nil", keys)
	}
}
