// Package provider defines the contract the agent loop uses to talk to
// an LLM backend, plus concrete adapters (Anthropic, OpenAI) behind it.
package provider

import (
	"context"

	"github.com/miniagent-dev/core/pkg/models"
)

// Provider streams a completion for a conversation. Implementations
// must be safe for concurrent use: multiple goroutines may call
// Complete for different requests at once.
type Provider interface {
	// Complete starts a streaming completion. The returned channel is
	// closed when the stream ends, whether by completion, error, or
	// context cancellation; its last sent chunk before close carries the
	// authoritative accumulated text and tool calls for the turn.
	Complete(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error)

	// Name is the provider identifier used in logs and error wrapping.
	Name() string

	// Models lists the models this provider can serve.
	Models() []Model

	// SupportsTools reports whether Complete honors req.Tools.
	SupportsTools() bool
}

// CompletionRequest is everything needed to start one completion.
type CompletionRequest struct {
	Model                string
	System               string
	Messages             []models.Message
	Tools                []ToolDescriptor
	MaxTokens            int
	Temperature          float64
	EnableThinking       bool
	ThinkingBudgetTokens int
}

// ToolDescriptor is the wire shape of a tool offered to the model: a
// name, a natural-language description, and a JSON Schema for its
// arguments.
type ToolDescriptor struct {
	Name        string
	Description string
	Schema      []byte // raw JSON Schema
}

// ChunkKind discriminates the four event kinds the provider stream
// contract names, plus the terminal settle/error kinds that have no
// direct spec counterpart but are needed to drive a Go channel.
type ChunkKind string

const (
	ChunkTextDelta     ChunkKind = "text_delta"
	ChunkTextEnd       ChunkKind = "text_end"
	ChunkToolCallStart ChunkKind = "toolcall_start"
	ChunkToolCallEnd   ChunkKind = "toolcall_end"
	ChunkSettled       ChunkKind = "settled"
	ChunkError         ChunkKind = "error"
)

// CompletionChunk is one event in a completion stream.
//
// Text deltas carry Delta; a text_end chunk carries the accumulated
// Content for the block that just closed. A toolcall_start chunk
// carries ToolCallID/ToolCallName; a toolcall_end chunk carries the
// completed ToolCall. The final chunk before the channel closes is
// always ChunkSettled (success) or ChunkError (failure) and carries
// the run's total accumulated Text, ToolCalls, and token usage.
type CompletionChunk struct {
	Kind ChunkKind

	Delta   string
	Content string

	ToolCallID   string
	ToolCallName string
	ToolCall     *models.ToolUseBlock

	Text         string
	ToolCalls    []models.ToolUseBlock
	InputTokens  int
	OutputTokens int

	Err error
}

// Model describes one model a provider can serve.
type Model struct {
	ID             string
	Name           string
	ContextSize    int
	SupportsVision bool
}
