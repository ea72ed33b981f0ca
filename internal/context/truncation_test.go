package context

import (
	"testing"

	"github.com/miniagent-dev/core/pkg/models"
)

func textMsg(role models.Role, text string, ts int64) *models.Message {
	if role == models.RoleUser {
		return models.NewUserText(text, ts)
	}
	return models.NewAssistantMessage([]models.ContentBlock{models.TextBlock{Text: text}}, ts)
}

func TestPrune_UnderBudgetReturnsUnchanged(t *testing.T) {
	messages := []*models.Message{
		textMsg(models.RoleUser, "hi", 1),
		textMsg(models.RoleAssistant, "hello", 2),
	}
	p := NewPruner(10000)
	retained, dropped, result := p.Prune(messages)
	if len(retained) != 2 || dropped != nil {
		t.Fatalf("retained=%d dropped=%v, want unchanged", len(retained), dropped)
	}
	if result.RetainedCount != 2 {
		t.Errorf("result = %+v", result)
	}
}

func TestPrune_DropsOldestFirst(t *testing.T) {
	long := make([]byte, 2000)
	for i := range long {
		long[i] = 'x'
	}
	messages := []*models.Message{
		textMsg(models.RoleUser, string(long), 1),
		textMsg(models.RoleAssistant, string(long), 2),
		textMsg(models.RoleUser, "recent", 3),
		textMsg(models.RoleAssistant, "reply", 4),
	}
	p := NewPruner(50)
	retained, dropped, result := p.Prune(messages)
	if len(dropped) == 0 {
		t.Fatal("expected some messages dropped")
	}
	if len(retained) == 0 {
		t.Fatal("expected some messages retained")
	}
	// the oldest messages should be the ones dropped
	if dropped[0].Text() != string(long) {
		t.Error("expected oldest message to be dropped first")
	}
	if result.TokensFreed <= 0 {
		t.Errorf("TokensFreed = %d, want > 0", result.TokensFreed)
	}
}

func TestPrune_PreservesToolUseToolResultPairing(t *testing.T) {
	long := make([]byte, 3000)
	for i := range long {
		long[i] = 'x'
	}
	assistantWithTool := models.NewAssistantMessage([]models.ContentBlock{
		models.TextBlock{Text: string(long)},
		models.ToolUseBlock{ID: "t1", Name: "read", Arguments: map[string]any{"path": "a.txt"}},
	}, 1)
	toolResult := models.NewToolResultsMessage([]models.ToolResultBlock{
		{ToolUseID: "t1", ToolName: "read", Content: "small result"},
	}, 2)
	recent := textMsg(models.RoleUser, "what next", 3)

	messages := []*models.Message{assistantWithTool, toolResult, recent}
	p := NewPruner(30)
	retained, dropped, _ := p.Prune(messages)

	for _, m := range retained {
		for _, tr := range m.ToolResults() {
			found := false
			for _, r := range retained {
				for _, u := range r.ToolUses() {
					if u.ID == tr.ToolUseID {
						found = true
					}
				}
			}
			if !found {
				t.Errorf("retained tool_result %q has no matching tool_use in retained set", tr.ToolUseID)
			}
		}
	}

	if len(dropped) > 0 {
		// if the assistant message with the tool_use was dropped, its
		// paired tool_result message must have been dropped too
		droppedToolUse := false
		for _, m := range dropped {
			if len(m.ToolUses()) > 0 {
				droppedToolUse = true
			}
		}
		if droppedToolUse {
			droppedToolResult := false
			for _, m := range dropped {
				if len(m.ToolResults()) > 0 {
					droppedToolResult = true
				}
			}
			if !droppedToolResult {
				t.Error("tool_use dropped but its paired tool_result was retained")
			}
		}
	}
}

func TestPrune_ImpossiblyTinyBudgetStillConsistent(t *testing.T) {
	messages := []*models.Message{
		textMsg(models.RoleUser, "hi", 1),
		textMsg(models.RoleAssistant, "hello", 2),
	}
	p := NewPruner(1)
	retained, dropped, result := p.Prune(messages)
	if len(retained)+len(dropped) != len(messages) {
		t.Errorf("retained+dropped = %d, want %d", len(retained)+len(dropped), len(messages))
	}
	if result.OriginalCount != 2 {
		t.Errorf("OriginalCount = %d, want 2", result.OriginalCount)
	}
}

func TestEstimateMessage_SumsAllBlockForms(t *testing.T) {
	msg := models.NewAssistantMessage([]models.ContentBlock{
		models.TextBlock{Text: "hello world"},
		models.ToolUseBlock{ID: "t1", Name: "read", Arguments: map[string]any{"path": "a.txt"}},
	}, 1)
	if got := EstimateMessage(msg); got <= 0 {
		t.Errorf("EstimateMessage() = %d, want > 0", got)
	}
}

func TestEstimateMessages_SumsAcrossHistory(t *testing.T) {
	messages := []*models.Message{
		textMsg(models.RoleUser, "hi", 1),
		textMsg(models.RoleAssistant, "hello", 2),
	}
	single := EstimateMessage(messages[0]) + EstimateMessage(messages[1])
	if got := EstimateMessages(messages); got != single {
		t.Errorf("EstimateMessages() = %d, want %d", got, single)
	}
}
