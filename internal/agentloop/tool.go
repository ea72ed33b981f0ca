// Package agentloop implements the per-invocation prune, stream,
// tool-dispatch, steering-check cycle that drives a model through a
// multi-turn tool-using conversation.
package agentloop

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/miniagent-dev/core/internal/provider"
	"github.com/miniagent-dev/core/internal/toolpolicy"
)

// Tool is one callable the loop may dispatch a tool_use block to.
// Execute's error return is never surfaced to the caller of Run; it is
// coerced into the tool_result body the model sees.
type Tool interface {
	Name() string
	Description() string
	Schema() json.RawMessage
	Capability() toolpolicy.Capability
	Execute(ctx context.Context, args map[string]any) (string, error)
}

// Registry resolves tool names to Tools and renders provider-facing
// descriptors filtered by a toolpolicy.Policy.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds or replaces a tool by name.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// Get resolves a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Descriptors renders the tools permitted by policy as provider tool
// descriptors, sorted by name for deterministic prompts.
func (r *Registry) Descriptors(policy toolpolicy.Policy) []provider.ToolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]provider.ToolDescriptor, 0, len(names))
	for _, name := range names {
		t := r.tools[name]
		if !policy.Permits(name, t.Capability()) {
			continue
		}
		out = append(out, provider.ToolDescriptor{
			Name:        t.Name(),
			Description: t.Description(),
			Schema:      t.Schema(),
		})
	}
	return out
}

// The model-facing error bodies keep the original runtime's wording so
// prompts tuned against it keep working.
func unknownToolResult(name string) string {
	return fmt.Sprintf("未知工具: %s", name)
}

func toolErrorResult(err error) string {
	return fmt.Sprintf("执行错误: %s", err.Error())
}

const cancelledToolResult = "cancelled: run steered before execution"
