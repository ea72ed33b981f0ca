package memory

import (
	"context"
	"strings"
	"testing"

	"github.com/miniagent-dev/core/pkg/models"
)

func TestAppendTool_SavesNoteAndReturnsID(t *testing.T) {
	mgr := newTestManager(t)
	tool := &AppendTool{Manager: mgr}

	out, err := tool.Execute(context.Background(), map[string]any{"content": "remember the deploy key rotates weekly"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.HasPrefix(out, "saved memory note ") {
		t.Fatalf("Execute() = %q, want a saved-note confirmation", out)
	}

	entries, err := mgr.All(context.Background())
	if err != nil {
		t.Fatalf("All() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Content != "remember the deploy key rotates weekly" {
		t.Fatalf("All() = %+v, want one entry with the saved content", entries)
	}
	if entries[0].Source != models.MemorySourceAgent {
		t.Fatalf("Source = %q, want agent", entries[0].Source)
	}
}

func TestAppendTool_RejectsEmptyContent(t *testing.T) {
	tool := &AppendTool{Manager: newTestManager(t)}
	if _, err := tool.Execute(context.Background(), map[string]any{"content": "   "}); err == nil {
		t.Fatalf("expected an error for empty content")
	}
}

func TestAppendTool_CapabilityRequiresWrite(t *testing.T) {
	tool := &AppendTool{}
	if !tool.Capability().Write {
		t.Fatalf("AppendTool.Capability().Write = false, want true")
	}
}

func TestSearchTool_ReturnsFormattedResults(t *testing.T) {
	mgr := newTestManager(t)
	ctx := context.Background()
	if _, err := mgr.Append(ctx, models.MemoryEntry{Content: "the staging db password was rotated"}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	tool := &SearchTool{Manager: mgr}
	out, err := tool.Execute(ctx, map[string]any{"query": "password"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(out, "staging db password") {
		t.Fatalf("Execute() = %q, want it to contain the matching note", out)
	}
}

func TestSearchTool_NoMatchesReportsEmpty(t *testing.T) {
	tool := &SearchTool{Manager: newTestManager(t)}
	out, err := tool.Execute(context.Background(), map[string]any{"query": "nothing will match this"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if out != "no matching memory notes" {
		t.Fatalf("Execute() = %q, want the no-match message", out)
	}
}

func TestSearchTool_CapabilityHasNoRestrictions(t *testing.T) {
	tool := &SearchTool{}
	cap := tool.Capability()
	if cap.Write || cap.Exec {
		t.Fatalf("SearchTool.Capability() = %+v, want no restrictions", cap)
	}
}
