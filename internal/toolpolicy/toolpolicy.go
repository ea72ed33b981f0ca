// Package toolpolicy implements the allow/deny glob filter over tool
// names, plus a write/exec capability toggle, used in place of a full
// risk-tier approval workflow.
package toolpolicy

import "strings"

// Policy filters which tools a run may invoke. An empty Allow list
// means "allow anything not denied"; Deny always takes precedence
// over Allow. AllowWrite and AllowExec gate tools that mutate the
// filesystem or spawn processes, independent of name matching.
type Policy struct {
	Allow      []string
	Deny       []string
	AllowWrite bool
	AllowExec  bool
}

// Capability describes what a candidate tool call would do, so Permits
// can apply the write/exec toggle on top of name matching.
type Capability struct {
	Write bool
	Exec  bool
}

// Permits reports whether toolName may run under p, given what the
// call would do. Matching is case-insensitive and whitespace-trimmed.
func (p Policy) Permits(toolName string, cap Capability) bool {
	normalized := normalize(toolName)
	if normalized == "" {
		return false
	}
	if matchesAny(normalized, normalizeAll(p.Deny)) {
		return false
	}
	if allow := normalizeAll(p.Allow); len(allow) > 0 && !matchesAny(normalized, allow) {
		return false
	}
	if cap.Write && !p.AllowWrite {
		return false
	}
	if cap.Exec && !p.AllowExec {
		return false
	}
	return true
}

// Merge combines two policies into the more restrictive of the two:
// denylists union (anything either side denies stays denied), the
// write/exec toggles are ANDed, and the allow list narrows to patterns
// common to both sides — unless one side has an empty ("allow
// everything") list, in which case the other side's list is kept
// unchanged, since allow-all intersected with X is X.
func Merge(a, b Policy) Policy {
	return Policy{
		Deny:       unionPatterns(a.Deny, b.Deny),
		Allow:      intersectAllow(a.Allow, b.Allow),
		AllowWrite: a.AllowWrite && b.AllowWrite,
		AllowExec:  a.AllowExec && b.AllowExec,
	}
}

func intersectAllow(a, b []string) []string {
	na, nb := normalizeAll(a), normalizeAll(b)
	if len(na) == 0 {
		return nb
	}
	if len(nb) == 0 {
		return na
	}
	inB := make(map[string]bool, len(nb))
	for _, p := range nb {
		inB[p] = true
	}
	var out []string
	for _, p := range na {
		if inB[p] {
			out = append(out, p)
		}
	}
	return out
}

func unionPatterns(a, b []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range normalizeAll(a) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	for _, p := range normalizeAll(b) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func normalizeAll(patterns []string) []string {
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if v := normalize(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func matchesAny(name string, patterns []string) bool {
	for _, p := range patterns {
		if wildcardMatch(p, name) {
			return true
		}
	}
	return false
}

// wildcardMatch matches value against pattern, where '*' in pattern
// matches any run of characters (including none).
func wildcardMatch(pattern, value string) bool {
	if pattern == "*" {
		return true
	}
	if !strings.Contains(pattern, "*") {
		return pattern == value
	}
	parts := strings.Split(pattern, "*")
	idx := 0
	if parts[0] != "" {
		if !strings.HasPrefix(value, parts[0]) {
			return false
		}
		idx = len(parts[0])
	}
	for i := 1; i < len(parts)-1; i++ {
		part := parts[i]
		if part == "" {
			continue
		}
		pos := strings.Index(value[idx:], part)
		if pos < 0 {
			return false
		}
		idx += pos + len(part)
	}
	last := parts[len(parts)-1]
	if last != "" && !strings.HasSuffix(value, last) {
		return false
	}
	return true
}
