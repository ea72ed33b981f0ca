package context

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/miniagent-dev/core/pkg/models"
)

type fakeSummarizer struct {
	text string
	err  error
	got  []*models.Message
}

func (f *fakeSummarizer) Summarize(ctx context.Context, dropped []*models.Message) (string, error) {
	f.got = dropped
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

func longMessages(n int, role models.Role) []*models.Message {
	long := strings.Repeat("x", 1000)
	var out []*models.Message
	for i := 0; i < n; i++ {
		out = append(out, textMsg(role, long, int64(i)))
	}
	return out
}

func TestCompact_UnderBudgetIsNoOp(t *testing.T) {
	c := NewCompactor(nil)
	messages := []*models.Message{textMsg(models.RoleUser, "hi", 1)}
	out, result, err := c.Compact(context.Background(), messages, CompactConfig{Budget: 10000, MinKeep: 2}, 5000)
	if err != nil {
		t.Fatalf("Compact: %v", err)
	}
	if len(out) != 1 || result.Summarized {
		t.Fatalf("out=%d result=%+v", len(out), result)
	}
}

func TestCompact_SummarizesDroppedPrefix(t *testing.T) {
	messages := append(longMessages(4, models.RoleUser), textMsg(models.RoleAssistant, "recent reply", 100))
	sum := &fakeSummarizer{text: "summary of earlier turns"}
	c := NewCompactor(sum)

	out, result, err := c.Compact(context.Background(), messages, CompactConfig{Budget: 50, MinKeep: 1}, 9999)
	if err != nil {
		t.Fatalf("Compact: %v", err)
	}
	if !result.Summarized {
		t.Fatal("expected Summarized = true")
	}
	if len(result.Dropped) == 0 {
		t.Fatal("expected non-empty Dropped")
	}
	if out[0].Text() != "summary of earlier turns" {
		t.Errorf("out[0].Text() = %q, want synthesized summary first", out[0].Text())
	}
	if out[0].Role != models.RoleUser {
		t.Errorf("summary message role = %q, want user", out[0].Role)
	}
	if out[0].TimestampMs != 9999 {
		t.Errorf("summary message timestamp = %d, want 9999", out[0].TimestampMs)
	}
	last := out[len(out)-1]
	if last.Text() != "recent reply" {
		t.Errorf("last retained message = %q, want the protected tail preserved", last.Text())
	}
}

func TestCompact_NoSummarizerStillPrunes(t *testing.T) {
	messages := append(longMessages(4, models.RoleUser), textMsg(models.RoleAssistant, "recent reply", 100))
	c := NewCompactor(nil)

	out, result, err := c.Compact(context.Background(), messages, CompactConfig{Budget: 50, MinKeep: 1}, 9999)
	if err != nil {
		t.Fatalf("Compact: %v", err)
	}
	if result.Summarized {
		t.Fatal("expected Summarized = false with no summarizer configured")
	}
	if len(result.Dropped) == 0 {
		t.Fatal("expected dropped messages even without a summarizer")
	}
	if len(out) >= len(messages) {
		t.Errorf("out len = %d, want fewer than original %d", len(out), len(messages))
	}
}

func TestCompact_MinKeepProtectsTailEvenOverBudget(t *testing.T) {
	messages := longMessages(1, models.RoleUser)
	c := NewCompactor(nil)
	out, result, err := c.Compact(context.Background(), messages, CompactConfig{Budget: 1, MinKeep: 5}, 0)
	if err != nil {
		t.Fatalf("Compact: %v", err)
	}
	if len(result.Dropped) != 0 {
		t.Errorf("expected nothing droppable when MinKeep exceeds message count, got %d dropped", len(result.Dropped))
	}
	if len(out) != len(messages) {
		t.Errorf("out len = %d, want %d (all protected)", len(out), len(messages))
	}
}

func TestCompact_SummarizerErrorPropagates(t *testing.T) {
	messages := longMessages(4, models.RoleUser)
	sum := &fakeSummarizer{err: errors.New("provider down")}
	c := NewCompactor(sum)
	_, _, err := c.Compact(context.Background(), messages, CompactConfig{Budget: 50, MinKeep: 1}, 0)
	if err == nil {
		t.Fatal("expected error from failing summarizer")
	}
}

func TestBuildSummarizationPrompt_IncludesToolActivity(t *testing.T) {
	dropped := []*models.Message{
		models.NewAssistantMessage([]models.ContentBlock{
			models.ToolUseBlock{ID: "t1", Name: "read", Arguments: map[string]any{"path": "a.txt"}},
		}, 1),
		models.NewToolResultsMessage([]models.ToolResultBlock{
			{ToolUseID: "t1", ToolName: "read", Content: "file contents"},
		}, 2),
	}
	prompt := buildSummarizationPrompt(dropped, 2000)
	if !strings.Contains(prompt, "called tool: read") {
		t.Errorf("prompt missing tool call mention: %s", prompt)
	}
	if !strings.Contains(prompt, "tool result: file contents") {
		t.Errorf("prompt missing tool result mention: %s", prompt)
	}
}
