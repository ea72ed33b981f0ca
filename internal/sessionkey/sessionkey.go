// Package sessionkey builds and parses the canonical session key format
// that binds messages, lane scheduling, and memory to one conversation.
package sessionkey

import (
	"fmt"
	"regexp"
	"strings"
)

const subagentPrefix = "subagent:"

var agentIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

var nonConformingChar = regexp.MustCompile(`[^a-z0-9_-]+`)

// Key is a canonical session key of the form agent:<agentId>:<tail>.
type Key struct {
	AgentID string
	Tail    string
}

// New builds a canonical Key from a raw agent id and a raw tail,
// normalizing the agent id per NormalizeAgentID. The tail is used
// verbatim; callers that need a subagent tail should use NewSubagent.
func New(agentID, tail string) Key {
	return Key{AgentID: NormalizeAgentID(agentID), Tail: tail}
}

// NewSubagent builds the canonical child key for a subagent run spawned
// from a parent with the given agent id, tagged with a fresh uuid.
func NewSubagent(agentID, uuid string) Key {
	return New(agentID, subagentPrefix+uuid)
}

// NormalizeAgentID lowercases id and replaces any run of characters
// outside [a-z0-9_-] with a single hyphen, then trims leading/trailing
// hyphens. Already-conforming ids are returned unchanged.
func NormalizeAgentID(id string) string {
	if agentIDPattern.MatchString(id) {
		return id
	}
	lowered := strings.ToLower(id)
	replaced := nonConformingChar.ReplaceAllString(lowered, "-")
	trimmed := strings.Trim(replaced, "-")
	if trimmed == "" {
		trimmed = "agent"
	}
	if len(trimmed) > 64 {
		trimmed = trimmed[:64]
		trimmed = strings.TrimRight(trimmed, "-")
	}
	return trimmed
}

// String renders the canonical agent:<agentId>:<tail> form.
func (k Key) String() string {
	return "agent:" + k.AgentID + ":" + k.Tail
}

// IsSubagent reports whether the key's tail identifies a subagent run.
func (k Key) IsSubagent() bool {
	return strings.HasPrefix(k.Tail, subagentPrefix)
}

// Resolve accepts either a bare session id or an already-formed
// "agent:<id>:<tail>" key and returns the canonical Key. A bare id
// becomes the tail under agentID. Resolve is idempotent: resolving an
// already-canonical key's String() with the same agentID returns the
// same Key.
func Resolve(agentID, sessionIDOrKey string) Key {
	if parsed, ok := Parse(sessionIDOrKey); ok {
		return New(parsed.AgentID, parsed.Tail)
	}
	return New(agentID, sessionIDOrKey)
}

// Parse splits a canonical "agent:<id>:<tail>" string into its parts.
// It returns ok=false if s does not have the agent:<id>: prefix form.
func Parse(s string) (Key, bool) {
	rest, ok := strings.CutPrefix(s, "agent:")
	if !ok {
		return Key{}, false
	}
	idx := strings.Index(rest, ":")
	if idx < 0 {
		return Key{}, false
	}
	agentID := rest[:idx]
	tail := rest[idx+1:]
	if agentID == "" || tail == "" {
		return Key{}, false
	}
	return Key{AgentID: agentID, Tail: tail}, true
}

// MustParse is like Parse but panics on malformed input; for use only
// with keys already validated by New/Resolve.
func MustParse(s string) Key {
	k, ok := Parse(s)
	if !ok {
		panic(fmt.Sprintf("sessionkey: malformed key %q", s))
	}
	return k
}
