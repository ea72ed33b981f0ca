package provider

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/miniagent-dev/core/internal/backoff"
	"github.com/miniagent-dev/core/pkg/models"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAIConfig configures OpenAI.
type OpenAIConfig struct {
	APIKey       string
	DefaultModel string
	MaxRetries   int
	Policy       backoff.Policy
}

// OpenAI adapts the Chat Completions streaming API to the Provider
// contract.
type OpenAI struct {
	client       *openai.Client
	defaultModel string
	maxRetries   int
	policy       backoff.Policy
}

// NewOpenAI builds an OpenAI provider. APIKey is required.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: API key is required")
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "gpt-4o"
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Policy == (backoff.Policy{}) {
		cfg.Policy = backoff.DefaultPolicy()
	}

	return &OpenAI{
		client:       openai.NewClient(cfg.APIKey),
		defaultModel: cfg.DefaultModel,
		maxRetries:   cfg.MaxRetries,
		policy:       cfg.Policy,
	}, nil
}

func (p *OpenAI) Name() string { return "openai" }

func (p *OpenAI) Models() []Model {
	return []Model{
		{ID: "gpt-4o", Name: "GPT-4o", ContextSize: 128000, SupportsVision: true},
		{ID: "gpt-4-turbo", Name: "GPT-4 Turbo", ContextSize: 128000, SupportsVision: true},
		{ID: "gpt-3.5-turbo", Name: "GPT-3.5 Turbo", ContextSize: 16385, SupportsVision: false},
	}
}

func (p *OpenAI) SupportsTools() bool { return true }

func (p *OpenAI) model(requested string) string {
	if requested == "" {
		return p.defaultModel
	}
	return requested
}

func (p *OpenAI) Complete(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error) {
	model := p.model(req.Model)
	messages := convertMessagesOpenAI(req.Messages, req.System)

	chatReq := openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
		Stream:   true,
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}
	if len(req.Tools) > 0 {
		chatReq.Tools = convertToolsOpenAI(req.Tools)
	}

	var stream *openai.ChatCompletionStream
	var err error
	for attempt := 1; attempt <= p.maxRetries; attempt++ {
		stream, err = p.client.CreateChatCompletionStream(ctx, chatReq)
		if err == nil {
			break
		}
		if attempt == p.maxRetries || isCancelled(err) {
			break
		}
		delay := backoff.Compute(p.policy, attempt)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	if err != nil {
		return nil, wrapError("openai", model, err)
	}

	chunks := make(chan *CompletionChunk)
	go p.processStream(model, stream, chunks)
	return chunks, nil
}

// processStream reassembles OpenAI's index-keyed tool call deltas and
// emits a toolcall_start/toolcall_end pair per completed call, plus a
// closing settled chunk carrying the full accumulated text and calls.
func (p *OpenAI) processStream(model string, stream *openai.ChatCompletionStream, chunks chan<- *CompletionChunk) {
	defer close(chunks)
	defer stream.Close()

	var text string
	order := []int{}
	calls := make(map[int]*models.ToolUseBlock)
	started := make(map[int]bool)
	args := make(map[int]string)
	flushed := false

	for {
		resp, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				if !flushed {
					p.flushToolCalls(chunks, order, calls, args)
				}
				chunks <- &CompletionChunk{Kind: ChunkSettled, Text: text, ToolCalls: collectToolCalls(order, calls)}
				return
			}
			chunks <- &CompletionChunk{Kind: ChunkError, Err: wrapError("openai", model, err)}
			return
		}

		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta

		if delta.Content != "" {
			text += delta.Content
			chunks <- &CompletionChunk{Kind: ChunkTextDelta, Delta: delta.Content}
		}

		for _, tc := range delta.ToolCalls {
			index := 0
			if tc.Index != nil {
				index = *tc.Index
			}
			if calls[index] == nil {
				calls[index] = &models.ToolUseBlock{Arguments: map[string]any{}}
				order = append(order, index)
			}
			if tc.ID != "" {
				calls[index].ID = tc.ID
			}
			if tc.Function.Name != "" {
				calls[index].Name = tc.Function.Name
			}
			if tc.Function.Arguments != "" {
				args[index] += tc.Function.Arguments
			}
			if !started[index] && calls[index].ID != "" && calls[index].Name != "" {
				started[index] = true
				chunks <- &CompletionChunk{Kind: ChunkToolCallStart, ToolCallID: calls[index].ID, ToolCallName: calls[index].Name}
			}
		}

		switch resp.Choices[0].FinishReason {
		case openai.FinishReasonToolCalls:
			if !flushed {
				p.flushToolCalls(chunks, order, calls, args)
				flushed = true
			}
		case openai.FinishReasonStop:
			if text != "" {
				chunks <- &CompletionChunk{Kind: ChunkTextEnd, Content: text}
			}
		}
	}
}

func (p *OpenAI) flushToolCalls(chunks chan<- *CompletionChunk, order []int, calls map[int]*models.ToolUseBlock, args map[int]string) {
	for _, idx := range order {
		call := calls[idx]
		if call == nil || call.ID == "" {
			continue
		}
		parsed := map[string]any{}
		_ = json.Unmarshal([]byte(args[idx]), &parsed)
		call.Arguments = parsed
		chunks <- &CompletionChunk{Kind: ChunkToolCallEnd, ToolCall: call}
	}
}

func collectToolCalls(order []int, calls map[int]*models.ToolUseBlock) []models.ToolUseBlock {
	out := make([]models.ToolUseBlock, 0, len(order))
	for _, idx := range order {
		if c := calls[idx]; c != nil && c.ID != "" {
			out = append(out, *c)
		}
	}
	return out
}

func convertMessagesOpenAI(messages []models.Message, system string) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	if system != "" {
		result = append(result, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}

	for _, msg := range messages {
		if msg.Role == models.RoleAssistant {
			result = append(result, assistantMessageOpenAI(msg))
			continue
		}

		// User-role messages carry a mix of text and tool_result blocks;
		// OpenAI wants tool results as their own role:"tool" messages.
		var text string
		for _, b := range msg.Content {
			switch v := b.(type) {
			case models.TextBlock:
				text += v.Text
			case models.ToolResultBlock:
				result = append(result, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					Content:    v.Content,
					ToolCallID: v.ToolUseID,
				})
			}
		}
		if text != "" {
			result = append(result, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: text})
		}
	}

	return result
}

func assistantMessageOpenAI(msg models.Message) openai.ChatCompletionMessage {
	out := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant}
	for _, b := range msg.Content {
		switch v := b.(type) {
		case models.TextBlock:
			out.Content += v.Text
		case models.ToolUseBlock:
			argsJSON, _ := json.Marshal(v.Arguments)
			out.ToolCalls = append(out.ToolCalls, openai.ToolCall{
				ID:   v.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      v.Name,
					Arguments: string(argsJSON),
				},
			})
		}
	}
	return out
}

func convertToolsOpenAI(tools []ToolDescriptor) []openai.Tool {
	result := make([]openai.Tool, len(tools))
	for i, t := range tools {
		schema := map[string]any{"type": "object", "properties": map[string]any{}}
		_ = json.Unmarshal(t.Schema, &schema)
		result[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  schema,
			},
		}
	}
	return result
}
