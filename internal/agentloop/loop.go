package agentloop

import (
	"context"
	"fmt"
	"time"

	agentcontext "github.com/miniagent-dev/core/internal/context"
	"github.com/miniagent-dev/core/internal/eventbus"
	"github.com/miniagent-dev/core/internal/observability"
	"github.com/miniagent-dev/core/internal/provider"
	"github.com/miniagent-dev/core/internal/retry"
	"github.com/miniagent-dev/core/internal/toolpolicy"
	"github.com/miniagent-dev/core/pkg/models"
)

// Config wires a Loop to the components it drives. Provider, Tools and
// Emitter are required; Pruner and Compactor may be nil, in which case
// the loop skips pruning and context-overflow compaction respectively.
type Config struct {
	Provider provider.Provider
	Tools    *Registry
	Policy   toolpolicy.Policy

	Pruner        *agentcontext.Pruner
	Compactor     *agentcontext.Compactor
	CompactConfig agentcontext.CompactConfig

	Emitter *eventbus.Emitter

	// Metrics and Tracer instrument the per-turn LLM call and each tool
	// dispatch. Both are nil-safe; either may be left unset.
	Metrics *observability.Metrics
	Tracer  *observability.Tracer

	Model       string
	System      string
	MaxTokens   int
	Temperature float64

	// MaxTurns bounds how many assistant turns one Run executes before
	// returning with whatever text the last turn produced. Defaults to
	// 25 when unset.
	MaxTurns int
}

// Result is what a completed or turn-exhausted Run produced.
type Result struct {
	Text      string
	Turns     int
	ToolCalls int
	Steered   bool

	// Messages is the full working message list at the point Run
	// returned, history included — every message a caller still needs
	// to persist (e.g. to the session log) beyond the initial history
	// it passed in.
	Messages []*models.Message
}

// Loop drives one run: prune, stream, dispatch tool calls, check for
// steering, repeat until the model stops calling tools or a
// termination condition fires.
type Loop struct {
	cfg Config
}

// New returns a Loop bound to cfg.
func New(cfg Config) *Loop {
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = 25
	}
	return &Loop{cfg: cfg}
}

// Run executes turns against history (the packed, pre-loop message
// list) until termination. steering may be nil, in which case the loop
// never stops mid-turn for steering.
func (l *Loop) Run(ctx context.Context, history []*models.Message, steering SteeringQueue) (*Result, error) {
	messages := append([]*models.Message{}, history...)
	result := &Result{}
	compactedOnce := false

	for result.Turns < l.cfg.MaxTurns {
		if err := ctx.Err(); err != nil {
			result.Messages = messages
			return result, err
		}

		if l.cfg.Pruner != nil {
			retained, _, _ := l.cfg.Pruner.Prune(messages)
			messages = retained
		}
		l.cfg.Metrics.RecordContextWindow(agentcontext.EstimateMessages(messages))

		assistantMsg, toolCalls, err := l.streamTurnWithRetry(ctx, messages)
		if err != nil {
			if !compactedOnce && l.cfg.Compactor != nil && retry.IsContextOverflow(err.Error()) {
				compactedOnce = true
				compacted, compResult, compErr := l.cfg.Compactor.Compact(ctx, messages, l.cfg.CompactConfig, nowMs())
				if compErr == nil && compResult.Summarized {
					messages = compacted
					continue
				}
				wrapped := fmt.Errorf("agentloop: context overflow, compaction did not resolve it: %w", err)
				if l.cfg.Emitter != nil {
					l.cfg.Emitter.RunFailed(wrapped)
				}
				result.Messages = messages
				return result, wrapped
			}
			if l.cfg.Emitter != nil {
				l.cfg.Emitter.RunFailed(err)
			}
			result.Messages = messages
			return result, err
		}

		messages = append(messages, assistantMsg)
		result.Turns++

		if len(toolCalls) == 0 {
			result.Text = assistantMsg.Text()
			result.Messages = messages
			if l.cfg.Emitter != nil {
				l.cfg.Emitter.RunEnded(result.Turns, result.ToolCalls)
			}
			return result, nil
		}

		toolResults, steered := l.executeTools(ctx, toolCalls, steering)
		result.ToolCalls += len(toolCalls)
		messages = append(messages, models.NewToolResultsMessage(toolResults, nowMs()))

		if steered {
			result.Steered = true
			if text := steering.Drain(); text != "" {
				messages = append(messages, models.NewUserText(text, nowMs()))
			}
		}
	}

	result.Text = lastAssistantText(messages)
	result.Messages = messages
	if l.cfg.Emitter != nil {
		l.cfg.Emitter.RunEnded(result.Turns, result.ToolCalls)
	}
	return result, nil
}

// streamTurnWithRetry wraps one streamTurn call in a retry that only
// fires for rate_limit-classified errors; any other error is marked
// Permanent so it surfaces on the first attempt.
func (l *Loop) streamTurnWithRetry(ctx context.Context, messages []*models.Message) (*models.Message, []models.ToolUseBlock, error) {
	type turnOutcome struct {
		msg   *models.Message
		calls []models.ToolUseBlock
	}

	outcome, _, err := retry.Do(ctx, retry.Options{Attempts: 3}, func(attempt int) (turnOutcome, error) {
		msg, calls, err := l.streamTurn(ctx, messages)
		if err != nil && retry.Classify(err.Error()) != retry.KindRateLimit {
			return turnOutcome{}, retry.Permanent(err)
		}
		return turnOutcome{msg: msg, calls: calls}, err
	})
	if err != nil {
		return nil, nil, err
	}
	return outcome.msg, outcome.calls, nil
}

// streamTurn opens one completion stream and emits observability events
// for each delta as it arrives. The settled chunk is authoritative for
// the returned message and tool calls, per the provider contract.
func (l *Loop) streamTurn(ctx context.Context, messages []*models.Message) (*models.Message, []models.ToolUseBlock, error) {
	req := &provider.CompletionRequest{
		Model:       l.cfg.Model,
		System:      l.cfg.System,
		Messages:    dereference(messages),
		Tools:       l.cfg.Tools.Descriptors(l.cfg.Policy),
		MaxTokens:   l.cfg.MaxTokens,
		Temperature: l.cfg.Temperature,
	}

	providerName, model := l.cfg.Provider.Name(), l.cfg.Model
	spanCtx, span := l.cfg.Tracer.TraceLLMRequest(ctx, providerName, model)
	start := time.Now()

	chunks, err := l.cfg.Provider.Complete(spanCtx, req)
	if err != nil {
		l.cfg.Tracer.RecordError(span, err)
		span.End()
		l.cfg.Metrics.RecordLLMRequest(providerName, model, "error", time.Since(start).Seconds())
		return nil, nil, err
	}

	for chunk := range chunks {
		switch chunk.Kind {
		case provider.ChunkTextDelta:
			if l.cfg.Emitter != nil {
				l.cfg.Emitter.TextDelta(chunk.Delta)
			}
		case provider.ChunkToolCallStart:
			if l.cfg.Emitter != nil {
				l.cfg.Emitter.ToolStarted(chunk.ToolCallID, chunk.ToolCallName, nil)
			}
		case provider.ChunkSettled:
			if l.cfg.Emitter != nil {
				l.cfg.Emitter.TextCompleted(chunk.Text)
			}
			span.End()
			l.cfg.Metrics.RecordLLMRequest(providerName, model, "success", time.Since(start).Seconds())
			l.cfg.Metrics.RecordLLMTokens(providerName, model, "prompt", chunk.InputTokens)
			l.cfg.Metrics.RecordLLMTokens(providerName, model, "completion", chunk.OutputTokens)
			return settledMessage(chunk), chunk.ToolCalls, nil
		case provider.ChunkError:
			l.cfg.Tracer.RecordError(span, chunk.Err)
			span.End()
			l.cfg.Metrics.RecordLLMRequest(providerName, model, "error", time.Since(start).Seconds())
			return nil, nil, chunk.Err
		}
	}

	span.End()
	err = fmt.Errorf("agentloop: provider stream closed without a settled event")
	l.cfg.Metrics.RecordLLMRequest(providerName, model, "error", time.Since(start).Seconds())
	return nil, nil, err
}

func settledMessage(chunk *provider.CompletionChunk) *models.Message {
	var blocks []models.ContentBlock
	if chunk.Text != "" {
		blocks = append(blocks, models.TextBlock{Text: chunk.Text})
	}
	for _, tc := range chunk.ToolCalls {
		blocks = append(blocks, tc)
	}
	return models.NewAssistantMessage(blocks, nowMs())
}

// executeTools runs calls sequentially, resolving each by name and
// coercing unknown names or execution errors into tool_result bodies
// rather than aborting the run. Between calls it checks steering; once
// non-empty, remaining calls are left unexecuted and instead receive a
// synthesized cancellation result so every tool_use still gets exactly
// one tool_result.
func (l *Loop) executeTools(ctx context.Context, calls []models.ToolUseBlock, steering SteeringQueue) (results []models.ToolResultBlock, steered bool) {
	for i, call := range calls {
		if ctx.Err() != nil {
			return results, steered
		}
		if l.cfg.Emitter != nil {
			l.cfg.Emitter.ToolStarted(call.ID, call.Name, call.Arguments)
		}

		var body string
		isError := false
		if tool, ok := l.cfg.Tools.Get(call.Name); ok {
			spanCtx, span := l.cfg.Tracer.TraceToolExecution(ctx, call.Name)
			start := time.Now()
			out, err := tool.Execute(spanCtx, call.Arguments)
			status := "success"
			if err != nil {
				body = toolErrorResult(err)
				isError = true
				status = "error"
				l.cfg.Tracer.RecordError(span, err)
			} else {
				body = out
			}
			span.End()
			l.cfg.Metrics.RecordToolExecution(call.Name, status, time.Since(start).Seconds())
		} else {
			body = unknownToolResult(call.Name)
			isError = true
			l.cfg.Metrics.RecordToolExecution(call.Name, "unknown", 0)
		}

		if l.cfg.Emitter != nil {
			l.cfg.Emitter.ToolFinished(call.ID, call.Name, body, isError)
		}
		results = append(results, models.ToolResultBlock{ToolUseID: call.ID, ToolName: call.Name, Content: body})

		if steering != nil && steering.Peek() {
			steered = true
			for _, remaining := range calls[i+1:] {
				results = append(results, models.ToolResultBlock{
					ToolUseID: remaining.ID,
					ToolName:  remaining.Name,
					Content:   cancelledToolResult,
				})
			}
			return results, steered
		}
	}
	return results, steered
}

func dereference(messages []*models.Message) []models.Message {
	out := make([]models.Message, len(messages))
	for i, m := range messages {
		out[i] = *m
	}
	return out
}

func lastAssistantText(messages []*models.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == models.RoleAssistant {
			return messages[i].Text()
		}
	}
	return ""
}

func nowMs() int64 {
	return time.Now().UnixMilli()
}
