package context

import (
	"context"
	"fmt"

	"github.com/miniagent-dev/core/pkg/models"
)

// Summarizer produces a compact summary of a dropped message prefix.
// A concrete implementation typically wraps a provider call; tests can
// substitute a fake.
type Summarizer interface {
	Summarize(ctx context.Context, dropped []*models.Message) (string, error)
}

// CompactConfig bounds how much of the retained tail is protected from
// pruning before compaction's summarizer gets involved.
type CompactConfig struct {
	Budget  int
	MinKeep int
}

// Compactor prunes a working history against a token budget with a
// protected tail, and summarizes whatever had to be dropped so its
// substance survives as a short synthetic message.
type Compactor struct {
	summarizer Summarizer
}

// NewCompactor returns a Compactor that calls summarizer for any
// dropped prefix. summarizer may be nil, in which case Compact still
// prunes but returns no summary for the dropped messages.
func NewCompactor(summarizer Summarizer) *Compactor {
	return &Compactor{summarizer: summarizer}
}

// CompactResult reports what Compact did.
type CompactResult struct {
	Dropped     []*models.Message
	SummaryText string
	Summarized  bool
}

// Compact prunes messages to cfg.Budget, always keeping the last
// cfg.MinKeep messages untouched regardless of budget. If anything had
// to be dropped from the remaining prefix, it is summarized (when a
// summarizer is configured) and the summary becomes a synthetic
// user-role message prepended ahead of the retained tail.
func (c *Compactor) Compact(ctx context.Context, messages []*models.Message, cfg CompactConfig, nowMs int64) ([]*models.Message, CompactResult, error) {
	var result CompactResult

	if cfg.Budget <= 0 || EstimateMessages(messages) <= cfg.Budget {
		return messages, result, nil
	}

	floorStart := len(messages) - cfg.MinKeep
	if floorStart < 0 {
		floorStart = 0
	}
	prefix := messages[:floorStart]
	tail := messages[floorStart:]

	tailTokens := EstimateMessages(tail)
	remaining := cfg.Budget - tailTokens
	if remaining < 0 {
		remaining = 0
	}

	// A Pruner treats Budget 0 as "no budget", so a tail that already
	// fills the budget drops the whole prefix here instead.
	var retainedPrefix, dropped []*models.Message
	if remaining == 0 {
		dropped = prefix
	} else {
		pruner := &Pruner{Budget: remaining}
		retainedPrefix, dropped, _ = pruner.Prune(prefix)
	}
	if len(dropped) == 0 {
		return messages, result, nil
	}
	result.Dropped = dropped

	final := make([]*models.Message, 0, 1+len(retainedPrefix)+len(tail))
	if c.summarizer != nil {
		summary, err := c.summarizer.Summarize(ctx, dropped)
		if err != nil {
			return nil, result, fmt.Errorf("context: summarize dropped prefix: %w", err)
		}
		if summary != "" {
			result.SummaryText = summary
			result.Summarized = true
			final = append(final, models.NewUserText(summary, nowMs))
		}
	}
	final = append(final, retainedPrefix...)
	final = append(final, tail...)
	return final, result, nil
}
