package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
	"github.com/miniagent-dev/core/internal/backoff"
	"github.com/miniagent-dev/core/pkg/models"
)

// AnthropicConfig configures Anthropic.
type AnthropicConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	MaxRetries   int
	Policy       backoff.Policy
}

// Anthropic adapts Anthropic's Messages API to the Provider contract.
type Anthropic struct {
	client       anthropic.Client
	defaultModel string
	maxRetries   int
	policy       backoff.Policy
}

// NewAnthropic builds an Anthropic provider. APIKey is required.
func NewAnthropic(cfg AnthropicConfig) (*Anthropic, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic: API key is required")
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "claude-sonnet-4-20250514"
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Policy == (backoff.Policy{}) {
		cfg.Policy = backoff.DefaultPolicy()
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Anthropic{
		client:       anthropic.NewClient(opts...),
		defaultModel: cfg.DefaultModel,
		maxRetries:   cfg.MaxRetries,
		policy:       cfg.Policy,
	}, nil
}

func (p *Anthropic) Name() string { return "anthropic" }

func (p *Anthropic) Models() []Model {
	return []Model{
		{ID: "claude-sonnet-4-20250514", Name: "Claude Sonnet 4", ContextSize: 200000, SupportsVision: true},
		{ID: "claude-opus-4-20250514", Name: "Claude Opus 4", ContextSize: 200000, SupportsVision: true},
		{ID: "claude-3-5-sonnet-20241022", Name: "Claude 3.5 Sonnet", ContextSize: 200000, SupportsVision: true},
		{ID: "claude-3-haiku-20240307", Name: "Claude 3 Haiku", ContextSize: 200000, SupportsVision: true},
	}
}

func (p *Anthropic) SupportsTools() bool { return true }

func (p *Anthropic) model(requested string) string {
	if requested == "" {
		return p.defaultModel
	}
	return requested
}

func maxTokensOrDefault(n int) int64 {
	if n <= 0 {
		return 4096
	}
	return int64(n)
}

// Complete opens a stream. The returned channel is always closed by
// the spawned goroutine; a creation-time conversion error is sent as
// the first and only chunk rather than returned directly, so callers
// have one consumption path regardless of where the failure occurred.
func (p *Anthropic) Complete(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error) {
	chunks := make(chan *CompletionChunk)

	go func() {
		defer close(chunks)

		model := p.model(req.Model)
		var stream *ssestream.Stream[anthropic.MessageStreamEventUnion]
		var err error

		for attempt := 1; attempt <= p.maxRetries; attempt++ {
			stream, err = p.createStream(ctx, req, model)
			if err == nil {
				break
			}
			if attempt == p.maxRetries || isCancelled(err) {
				break
			}
			delay := backoff.Compute(p.policy, attempt)
			select {
			case <-ctx.Done():
				chunks <- &CompletionChunk{Kind: ChunkError, Err: ctx.Err()}
				return
			case <-time.After(delay):
			}
		}
		if err != nil {
			chunks <- &CompletionChunk{Kind: ChunkError, Err: wrapError("anthropic", model, err)}
			return
		}

		p.processStream(stream, chunks, model)
	}()

	return chunks, nil
}

func (p *Anthropic) createStream(ctx context.Context, req *CompletionRequest, model string) (*ssestream.Stream[anthropic.MessageStreamEventUnion], error) {
	messages, err := convertMessages(req.Messages)
	if err != nil {
		return nil, fmt.Errorf("convert messages: %w", err)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		Messages:  messages,
		MaxTokens: maxTokensOrDefault(req.MaxTokens),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Type: "text", Text: req.System}}
	}
	if len(req.Tools) > 0 {
		tools, err := convertTools(req.Tools)
		if err != nil {
			return nil, fmt.Errorf("convert tools: %w", err)
		}
		params.Tools = tools
	}
	if req.EnableThinking {
		budget := int64(req.ThinkingBudgetTokens)
		if budget < 1024 {
			budget = 10000
		}
		params.Thinking = anthropic.ThinkingConfigParamOfEnabled(budget)
	}

	return p.client.Messages.NewStreaming(ctx, params), nil
}

// processStream converts Anthropic's SSE event stream into
// CompletionChunks, accumulating text and tool calls so the final
// settled chunk is self-contained.
func (p *Anthropic) processStream(stream *ssestream.Stream[anthropic.MessageStreamEventUnion], chunks chan<- *CompletionChunk, model string) {
	var text strings.Builder
	var toolCalls []models.ToolUseBlock
	var currentToolID, currentToolName string
	var currentToolInput strings.Builder
	var currentBlockText strings.Builder
	var inTextBlock bool
	var inputTokens, outputTokens int

	for stream.Next() {
		event := stream.Current()

		switch event.Type {
		case "message_start":
			if ms := event.AsMessageStart(); ms.Message.Usage.InputTokens > 0 {
				inputTokens = int(ms.Message.Usage.InputTokens)
			}

		case "content_block_start":
			block := event.AsContentBlockStart().ContentBlock
			switch block.Type {
			case "tool_use":
				toolUse := block.AsToolUse()
				currentToolID = toolUse.ID
				currentToolName = toolUse.Name
				currentToolInput.Reset()
				chunks <- &CompletionChunk{Kind: ChunkToolCallStart, ToolCallID: currentToolID, ToolCallName: currentToolName}
			case "text":
				inTextBlock = true
				currentBlockText.Reset()
			}

		case "content_block_delta":
			delta := event.AsContentBlockDelta().Delta
			switch delta.Type {
			case "text_delta":
				if delta.Text != "" {
					text.WriteString(delta.Text)
					currentBlockText.WriteString(delta.Text)
					chunks <- &CompletionChunk{Kind: ChunkTextDelta, Delta: delta.Text}
				}
			case "input_json_delta":
				currentToolInput.WriteString(delta.PartialJSON)
			}

		case "content_block_stop":
			switch {
			case currentToolID != "":
				args := map[string]any{}
				_ = json.Unmarshal([]byte(currentToolInput.String()), &args)
				call := models.ToolUseBlock{ID: currentToolID, Name: currentToolName, Arguments: args}
				toolCalls = append(toolCalls, call)
				chunks <- &CompletionChunk{Kind: ChunkToolCallEnd, ToolCall: &call}
				currentToolID = ""
			case inTextBlock:
				chunks <- &CompletionChunk{Kind: ChunkTextEnd, Content: currentBlockText.String()}
				inTextBlock = false
			}

		case "message_delta":
			if md := event.AsMessageDelta(); md.Usage.OutputTokens > 0 {
				outputTokens = int(md.Usage.OutputTokens)
			}

		case "message_stop":
			chunks <- &CompletionChunk{
				Kind:         ChunkSettled,
				Text:         text.String(),
				ToolCalls:    toolCalls,
				InputTokens:  inputTokens,
				OutputTokens: outputTokens,
			}
			return

		case "error":
			chunks <- &CompletionChunk{Kind: ChunkError, Err: wrapError("anthropic", model, errors.New("stream error"))}
			return
		}
	}

	if err := stream.Err(); err != nil {
		chunks <- &CompletionChunk{Kind: ChunkError, Err: wrapError("anthropic", model, err)}
	}
}

func convertMessages(messages []models.Message) ([]anthropic.MessageParam, error) {
	result := make([]anthropic.MessageParam, 0, len(messages))
	for _, msg := range messages {
		var content []anthropic.ContentBlockParamUnion
		for _, b := range msg.Content {
			switch v := b.(type) {
			case models.TextBlock:
				content = append(content, anthropic.NewTextBlock(v.Text))
			case models.ToolUseBlock:
				content = append(content, anthropic.NewToolUseBlock(v.ID, v.Arguments, v.Name))
			case models.ToolResultBlock:
				content = append(content, anthropic.NewToolResultBlock(v.ToolUseID, v.Content, false))
			}
		}

		if msg.Role == models.RoleAssistant {
			result = append(result, anthropic.NewAssistantMessage(content...))
		} else {
			result = append(result, anthropic.NewUserMessage(content...))
		}
	}
	return result, nil
}

func convertTools(tools []ToolDescriptor) ([]anthropic.ToolUnionParam, error) {
	result := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(t.Schema, &schema); err != nil {
			return nil, fmt.Errorf("invalid tool schema for %s: %w", t.Name, err)
		}
		param := anthropic.ToolUnionParamOfTool(schema, t.Name)
		if param.OfTool == nil {
			return nil, fmt.Errorf("invalid tool schema for %s: missing tool definition", t.Name)
		}
		param.OfTool.Description = anthropic.String(t.Description)
		result = append(result, param)
	}
	return result, nil
}
