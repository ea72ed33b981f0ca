package skills

import (
	"fmt"
	"strings"
)

// Table is a resolved command table over which slash-command input is
// looked up.
type Table struct {
	commands []Command
}

// NewTable builds a lookup table from the given skills, via
// BuildCommandTable.
func NewTable(skills []*Skill) *Table {
	return &Table{commands: BuildCommandTable(skills)}
}

// Commands returns the underlying command list, in discovery order.
func (t *Table) Commands() []Command {
	return t.commands
}

// Lookup resolves name against the table: first by exact command name
// (case-insensitive), then by underlying skill name, then by a
// hyphen-normalized match (spaces/underscores collapsed to hyphens).
func (t *Table) Lookup(name string) (Command, bool) {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return Command{}, false
	}

	for _, c := range t.commands {
		if strings.ToLower(c.Name) == needle {
			return c, true
		}
	}
	for _, c := range t.commands {
		if strings.ToLower(c.SkillName) == needle {
			return c, true
		}
	}
	normalizedNeedle := normalizeHyphens(needle)
	for _, c := range t.commands {
		if normalizeHyphens(strings.ToLower(c.Name)) == normalizedNeedle {
			return c, true
		}
		if normalizeHyphens(strings.ToLower(c.SkillName)) == normalizedNeedle {
			return c, true
		}
	}
	return Command{}, false
}

func normalizeHyphens(s string) string {
	s = strings.ReplaceAll(s, " ", "-")
	s = strings.ReplaceAll(s, "_", "-")
	return s
}

// Resolve parses a raw user input against the table. It recognizes
// two forms: "/<cmd> [args]" and "/skill <name> [args]". On a hit, it
// returns the rewritten message per the fixed template; ok is false
// when input does not start with "/" or names no known command.
func (t *Table) Resolve(input string) (rewritten string, ok bool) {
	if !strings.HasPrefix(input, "/") {
		return "", false
	}
	rest := strings.TrimPrefix(input, "/")
	cmd, args := splitFirstToken(rest)
	if cmd == "" {
		return "", false
	}

	if strings.EqualFold(cmd, "skill") {
		cmd, args = splitFirstToken(args)
		if cmd == "" {
			return "", false
		}
	}

	c, found := t.Lookup(cmd)
	if !found {
		return "", false
	}
	return fmt.Sprintf("Use the %q skill for this request.\n\nUser input:\n%s", c.SkillName, args), true
}

// splitFirstToken splits s on the first run of whitespace, returning
// the leading token and the remainder with leading whitespace trimmed.
func splitFirstToken(s string) (token, rest string) {
	s = strings.TrimLeft(s, " \t")
	idx := strings.IndexAny(s, " \t")
	if idx == -1 {
		return s, ""
	}
	return s[:idx], strings.TrimLeft(s[idx+1:], " \t")
}
