package context

import (
	"context"
	"fmt"
	"strings"

	"github.com/miniagent-dev/core/internal/provider"
	"github.com/miniagent-dev/core/pkg/models"
)

// ProviderSummarizer implements Summarizer by rendering the dropped
// message prefix into a single prompt and asking the configured
// provider for a plain-text summary in one turn.
type ProviderSummarizer struct {
	provider  provider.Provider
	model     string
	maxLength int
}

// NewProviderSummarizer returns a ProviderSummarizer that drives p.
// maxLength bounds the requested summary length in characters; it
// defaults to 2000 when non-positive.
func NewProviderSummarizer(p provider.Provider, model string, maxLength int) *ProviderSummarizer {
	if maxLength <= 0 {
		maxLength = 2000
	}
	return &ProviderSummarizer{provider: p, model: model, maxLength: maxLength}
}

// Summarize asks the provider to condense dropped into a short plain
// text passage and collects the streamed response into one string.
func (s *ProviderSummarizer) Summarize(ctx context.Context, dropped []*models.Message) (string, error) {
	if len(dropped) == 0 {
		return "", nil
	}

	prompt := buildSummarizationPrompt(dropped, s.maxLength)
	req := &provider.CompletionRequest{
		Model:     s.model,
		System:    "You summarize conversation history concisely and factually.",
		Messages:  []models.Message{*models.NewUserText(prompt, 0)},
		MaxTokens: s.maxLength / 2,
	}

	chunks, err := s.provider.Complete(ctx, req)
	if err != nil {
		return "", fmt.Errorf("context: summarize: %w", err)
	}

	var text string
	for chunk := range chunks {
		switch chunk.Kind {
		case provider.ChunkSettled:
			text = chunk.Text
		case provider.ChunkError:
			return "", fmt.Errorf("context: summarize: %w", chunk.Err)
		}
	}
	return strings.TrimSpace(text), nil
}

// buildSummarizationPrompt renders dropped into the instruction text
// sent to the provider, folding in tool calls and tool results the way
// the plain-text transcript view does.
func buildSummarizationPrompt(dropped []*models.Message, maxLength int) string {
	var sb strings.Builder
	sb.WriteString("Summarize the following conversation excerpt concisely. ")
	fmt.Fprintf(&sb, "Keep the summary under %d characters. ", maxLength)
	sb.WriteString("Focus on:\n")
	sb.WriteString("- Key topics discussed\n")
	sb.WriteString("- Important decisions or conclusions\n")
	sb.WriteString("- Any pending tasks or open questions\n")
	sb.WriteString("- Tool calls and their outcomes\n\n")
	sb.WriteString("Conversation:\n\n")

	for _, m := range dropped {
		if m == nil {
			continue
		}
		fmt.Fprintf(&sb, "[%s]: ", m.Role)
		if text := m.Text(); text != "" {
			sb.WriteString(text)
		}
		for _, tc := range m.ToolUses() {
			fmt.Fprintf(&sb, "\n  [called tool: %s]", tc.Name)
		}
		for _, tr := range m.ToolResults() {
			content := tr.Content
			if len(content) > 200 {
				content = content[:200] + "..."
			}
			fmt.Fprintf(&sb, "\n  [tool result: %s]", content)
		}
		sb.WriteString("\n\n")
	}

	sb.WriteString("---\nProvide a concise summary:")
	return sb.String()
}
