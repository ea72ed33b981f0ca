// Package models holds the data types shared across the agent runtime:
// messages, their content blocks, and memory journal entries.
package models

import (
	"encoding/json"
	"fmt"
)

// Role indicates the message author.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// BlockKind discriminates the concrete type behind a ContentBlock.
type BlockKind string

const (
	BlockText       BlockKind = "text"
	BlockToolUse    BlockKind = "tool_use"
	BlockToolResult BlockKind = "tool_result"
)

// ContentBlock is one piece of a message's content. Source material for
// this kind of runtime modeled content as an untagged object bag; here
// it is a closed set of three concrete types, each reporting its own
// Kind for serialization.
type ContentBlock interface {
	Kind() BlockKind
}

// TextBlock is plain text content.
type TextBlock struct {
	Text string `json:"text"`
}

func (TextBlock) Kind() BlockKind { return BlockText }

// ToolUseBlock is an assistant turn's request to invoke a tool.
type ToolUseBlock struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

func (ToolUseBlock) Kind() BlockKind { return BlockToolUse }

// ToolResultBlock answers a ToolUseBlock with the same ID. It is only
// ever carried as content of a user-role message.
type ToolResultBlock struct {
	ToolUseID string `json:"tool_use_id"`
	ToolName  string `json:"tool_name"`
	Content   string `json:"content"`
}

func (ToolResultBlock) Kind() BlockKind { return BlockToolResult }

// Message is a role-tagged conversational record. Content is always a
// slice of ContentBlock, even for a plain-text message (a single
// TextBlock). TimestampMs is milliseconds since the Unix epoch.
type Message struct {
	Role        Role
	Content     []ContentBlock
	TimestampMs int64
}

// NewUserText builds a single-text-block user message.
func NewUserText(text string, timestampMs int64) *Message {
	return &Message{Role: RoleUser, Content: []ContentBlock{TextBlock{Text: text}}, TimestampMs: timestampMs}
}

// NewAssistantMessage builds an assistant message from accumulated blocks.
func NewAssistantMessage(blocks []ContentBlock, timestampMs int64) *Message {
	return &Message{Role: RoleAssistant, Content: blocks, TimestampMs: timestampMs}
}

// NewToolResultsMessage builds the single user-role message that carries
// every tool_result produced by one turn.
func NewToolResultsMessage(results []ToolResultBlock, timestampMs int64) *Message {
	blocks := make([]ContentBlock, 0, len(results))
	for _, r := range results {
		blocks = append(blocks, r)
	}
	return &Message{Role: RoleUser, Content: blocks, TimestampMs: timestampMs}
}

// Text concatenates every TextBlock in the message's content, ignoring
// tool_use/tool_result blocks. Useful for token estimation and for the
// CLI's transcript rendering.
func (m *Message) Text() string {
	var out string
	for _, b := range m.Content {
		if t, ok := b.(TextBlock); ok {
			out += t.Text
		}
	}
	return out
}

// ToolUses returns every tool_use block in the message, in order.
func (m *Message) ToolUses() []ToolUseBlock {
	var out []ToolUseBlock
	for _, b := range m.Content {
		if u, ok := b.(ToolUseBlock); ok {
			out = append(out, u)
		}
	}
	return out
}

// ToolResults returns every tool_result block in the message, in order.
func (m *Message) ToolResults() []ToolResultBlock {
	var out []ToolResultBlock
	for _, b := range m.Content {
		if r, ok := b.(ToolResultBlock); ok {
			out = append(out, r)
		}
	}
	return out
}

// wireBlock is the on-the-wire shape of a ContentBlock: a discriminator
// plus every field any variant might use, left empty where unused.
type wireBlock struct {
	Kind      BlockKind      `json:"kind"`
	Text      string         `json:"text,omitempty"`
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name,omitempty"`
	Arguments map[string]any `json:"arguments,omitempty"`
	ToolUseID string         `json:"tool_use_id,omitempty"`
	ToolName  string         `json:"tool_name,omitempty"`
	Content   string         `json:"content,omitempty"`
}

func toWire(b ContentBlock) wireBlock {
	switch v := b.(type) {
	case TextBlock:
		return wireBlock{Kind: BlockText, Text: v.Text}
	case ToolUseBlock:
		return wireBlock{Kind: BlockToolUse, ID: v.ID, Name: v.Name, Arguments: v.Arguments}
	case ToolResultBlock:
		return wireBlock{Kind: BlockToolResult, ToolUseID: v.ToolUseID, ToolName: v.ToolName, Content: v.Content}
	default:
		return wireBlock{}
	}
}

func fromWire(w wireBlock) (ContentBlock, error) {
	switch w.Kind {
	case BlockText:
		return TextBlock{Text: w.Text}, nil
	case BlockToolUse:
		return ToolUseBlock{ID: w.ID, Name: w.Name, Arguments: w.Arguments}, nil
	case BlockToolResult:
		return ToolResultBlock{ToolUseID: w.ToolUseID, ToolName: w.ToolName, Content: w.Content}, nil
	default:
		return nil, fmt.Errorf("models: unknown content block kind %q", w.Kind)
	}
}

// wireMessage is the on-the-wire shape of Message, used for the
// session log's one-JSON-object-per-line format.
type wireMessage struct {
	Role        Role        `json:"role"`
	Content     []wireBlock `json:"content"`
	TimestampMs int64       `json:"timestamp_ms"`
}

// MarshalJSON renders content blocks with an explicit discriminator.
func (m Message) MarshalJSON() ([]byte, error) {
	w := wireMessage{Role: m.Role, TimestampMs: m.TimestampMs}
	for _, b := range m.Content {
		w.Content = append(w.Content, toWire(b))
	}
	return json.Marshal(w)
}

// UnmarshalJSON reconstructs typed content blocks from the discriminator.
func (m *Message) UnmarshalJSON(data []byte) error {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	blocks := make([]ContentBlock, 0, len(w.Content))
	for _, wb := range w.Content {
		b, err := fromWire(wb)
		if err != nil {
			return err
		}
		blocks = append(blocks, b)
	}
	m.Role = w.Role
	m.Content = blocks
	m.TimestampMs = w.TimestampMs
	return nil
}
