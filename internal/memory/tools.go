package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/miniagent-dev/core/internal/toolpolicy"
	"github.com/miniagent-dev/core/pkg/models"
)

// SearchTool exposes Manager.Search as a model-callable tool: the
// model's only way to consult the memory journal, per the runtime's
// "retrieval interface" boundary around the memory store.
type SearchTool struct {
	Manager *Manager
}

func (t *SearchTool) Name() string        { return "memory_search" }
func (t *SearchTool) Description() string { return "Search saved memory notes by keyword, most relevant first." }

func (t *SearchTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {"type": "string", "description": "Keywords to search for. Empty returns the most recent notes."},
			"limit": {"type": "integer", "description": "Maximum number of results (default 10)."}
		}
	}`)
}

func (t *SearchTool) Capability() toolpolicy.Capability {
	return toolpolicy.Capability{}
}

func (t *SearchTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	query, _ := args["query"].(string)
	limit := 0
	if v, ok := args["limit"].(float64); ok {
		limit = int(v)
	}

	results, err := t.Manager.Search(ctx, query, limit)
	if err != nil {
		return "", fmt.Errorf("memory_search: %w", err)
	}
	if len(results) == 0 {
		return "no matching memory notes", nil
	}

	var b strings.Builder
	for _, r := range results {
		fmt.Fprintf(&b, "[%s] (%s, score %.2f) %s\n", r.Entry.ID, r.Entry.Source, r.Score, r.Entry.Content)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// AppendTool exposes Manager.Append as a model-callable tool, letting
// the agent save a durable note for future sessions to retrieve.
type AppendTool struct {
	Manager *Manager
}

func (t *AppendTool) Name() string        { return "memory_append" }
func (t *AppendTool) Description() string { return "Save a note to the memory journal for future sessions to find." }

func (t *AppendTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"content": {"type": "string", "description": "The note to remember."},
			"tags": {"type": "array", "items": {"type": "string"}, "description": "Optional keyword tags."}
		},
		"required": ["content"]
	}`)
}

func (t *AppendTool) Capability() toolpolicy.Capability {
	return toolpolicy.Capability{Write: true}
}

func (t *AppendTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	content, _ := args["content"].(string)
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("memory_append: content must not be empty")
	}

	var tags []string
	if raw, ok := args["tags"].([]any); ok {
		for _, v := range raw {
			if s, ok := v.(string); ok {
				tags = append(tags, s)
			}
		}
	}

	entry, err := t.Manager.Append(ctx, models.MemoryEntry{
		Content: content,
		Source:  models.MemorySourceAgent,
		Tags:    tags,
	})
	if err != nil {
		return "", fmt.Errorf("memory_append: %w", err)
	}
	return fmt.Sprintf("saved memory note %s", entry.ID), nil
}
