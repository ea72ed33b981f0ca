// Package context manages the working message list against a token
// budget: coarse estimation, oldest-first pruning that keeps tool_use
// and tool_result blocks paired, and summary-backed compaction.
package context

import (
	"fmt"
	"unicode/utf8"

	"github.com/miniagent-dev/core/pkg/models"
)

// Estimation is deliberately coarse: roughly four characters per token,
// plus a small fixed overhead per message for role and formatting. The
// budget this feeds is a soft target, not a provider-enforced limit.
const (
	charsPerToken      = 4
	perMessageOverhead = 4
)

// EstimateTokens estimates the token count of a piece of text. Counting
// is rune-aware so CJK text does not undercount. Non-empty text always
// estimates to at least one token.
func EstimateTokens(text string) int {
	runes := utf8.RuneCountInString(text)
	if runes == 0 {
		return 0
	}
	tokens := runes / charsPerToken
	if tokens == 0 {
		return 1
	}
	return tokens
}

// EstimateMessage estimates tokens for one message by summing
// EstimateTokens over the string form of every content block, plus the
// per-message overhead.
func EstimateMessage(msg *models.Message) int {
	if msg == nil {
		return 0
	}
	total := perMessageOverhead
	for _, b := range msg.Content {
		total += EstimateTokens(blockString(b))
	}
	return total
}

// EstimateMessages sums EstimateMessage over a whole history.
func EstimateMessages(messages []*models.Message) int {
	total := 0
	for _, msg := range messages {
		total += EstimateMessage(msg)
	}
	return total
}

// blockString renders a content block to the text the estimator counts:
// tool_use blocks count their name and arguments, tool_result blocks
// their payload.
func blockString(b models.ContentBlock) string {
	switch v := b.(type) {
	case models.TextBlock:
		return v.Text
	case models.ToolUseBlock:
		s := v.Name
		for k, val := range v.Arguments {
			s += fmt.Sprintf(" %s=%v", k, val)
		}
		return s
	case models.ToolResultBlock:
		return v.Content
	default:
		return ""
	}
}
