package context

import "github.com/miniagent-dev/core/pkg/models"

// PruneResult holds the outcome of a Prune call.
type PruneResult struct {
	OriginalCount int
	RetainedCount int
	TokensFreed   int
}

// Pruner drops the oldest messages from a working history until the
// estimated token count fits Budget, preserving the invariant that a
// tool_result never survives without its matching tool_use: the
// assistant message that produced a tool call and the message holding
// its result are dropped together as one atomic unit.
type Pruner struct {
	Budget int
}

// Fits reports whether messages already fit within Budget, without
// computing a prune.
func (p *Pruner) Fits(messages []*models.Message) bool {
	return p.Budget <= 0 || EstimateMessages(messages) <= p.Budget
}

// NewPruner returns a Pruner targeting the given token budget.
func NewPruner(budget int) *Pruner {
	return &Pruner{Budget: budget}
}

// Prune returns the retained tail of messages and the dropped prefix,
// in original order. If messages already fit Budget, it returns them
// unchanged with a nil dropped slice.
func (p *Pruner) Prune(messages []*models.Message) (retained, dropped []*models.Message, result PruneResult) {
	result.OriginalCount = len(messages)
	total := EstimateMessages(messages)
	if p.Budget <= 0 || total <= p.Budget {
		result.RetainedCount = len(messages)
		return messages, nil, result
	}

	drop := make([]bool, len(messages))
	i := 0
	for total > p.Budget && i < len(messages) {
		group := pairedGroup(messages, i)
		for _, idx := range group {
			if !drop[idx] {
				drop[idx] = true
				total -= EstimateMessage(messages[idx])
			}
		}
		i = group[len(group)-1] + 1
	}

	for idx, msg := range messages {
		if drop[idx] {
			dropped = append(dropped, msg)
			result.TokensFreed += EstimateMessage(msg)
		} else {
			retained = append(retained, msg)
		}
	}
	result.RetainedCount = len(retained)
	return retained, dropped, result
}

// pairedGroup returns the indices, starting at i, that must be dropped
// together: i itself, plus every later message whose tool_result
// blocks reference a tool_use id produced at i.
func pairedGroup(messages []*models.Message, i int) []int {
	group := []int{i}
	ids := toolUseIDs(messages[i])
	if len(ids) == 0 {
		return group
	}
	for j := i + 1; j < len(messages) && len(ids) > 0; j++ {
		matched := false
		for _, tr := range messages[j].ToolResults() {
			if ids[tr.ToolUseID] {
				delete(ids, tr.ToolUseID)
				matched = true
			}
		}
		if matched {
			group = append(group, j)
		}
	}
	return group
}

func toolUseIDs(msg *models.Message) map[string]bool {
	uses := msg.ToolUses()
	if len(uses) == 0 {
		return nil
	}
	ids := make(map[string]bool, len(uses))
	for _, u := range uses {
		ids[u.ID] = true
	}
	return ids
}
