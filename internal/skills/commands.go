package skills

import (
	"regexp"
	"strings"
)

const (
	maxCommandNameLen = 32
	maxDescriptionLen = 100
)

var nonCommandChar = regexp.MustCompile(`[^a-z0-9_]+`)

// BuildCommandTable produces the slash-command table for a set of
// skills: one Command per user-invocable skill, with a sanitized,
// collision-free name and a truncated description.
func BuildCommandTable(skills []*Skill) []Command {
	used := make(map[string]int)
	var out []Command
	for _, s := range skills {
		if !s.UserInvocable {
			continue
		}
		name := uniqueCommandName(sanitizeCommandName(s.Name), used)
		out = append(out, Command{
			Name:          name,
			SkillName:     s.Name,
			Description:   s.Description,
			TruncatedDesc: truncateDescription(s.Description),
			Location:      s.Path,
		})
	}
	return out
}

// sanitizeCommandName lowercases a skill name, collapses every run of
// non [a-z0-9_] characters to a single underscore, and caps the
// result's length at 32.
func sanitizeCommandName(name string) string {
	lower := strings.ToLower(name)
	sanitized := nonCommandChar.ReplaceAllString(lower, "_")
	if len(sanitized) > maxCommandNameLen {
		sanitized = sanitized[:maxCommandNameLen]
	}
	return sanitized
}

// uniqueCommandName resolves a collision against an already-assigned
// name by appending "_2", "_3", and so on, tracking counts in used.
func uniqueCommandName(name string, used map[string]int) string {
	count := used[name]
	used[name]++
	if count == 0 {
		return name
	}
	suffix := suffixFor(count + 1)
	candidate := name
	if len(candidate)+len(suffix) > maxCommandNameLen {
		candidate = candidate[:maxCommandNameLen-len(suffix)]
	}
	candidate += suffix
	// A truncated candidate could itself collide; keep incrementing
	// until a free slot is found.
	for used[candidate] > 0 {
		count++
		suffix = suffixFor(count + 1)
		candidate = name
		if len(candidate)+len(suffix) > maxCommandNameLen {
			candidate = candidate[:maxCommandNameLen-len(suffix)]
		}
		candidate += suffix
	}
	used[candidate]++
	return candidate
}

func suffixFor(n int) string {
	return "_" + itoa(n)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

// truncateDescription caps a description at 100 characters, appending
// an ellipsis when it had to cut.
func truncateDescription(desc string) string {
	if len(desc) <= maxDescriptionLen {
		return desc
	}
	return desc[:maxDescriptionLen-3] + "..."
}

// RenderAvailableSkills renders the model-visible <available_skills>
// prompt fragment for every skill with model invocation enabled.
func RenderAvailableSkills(skills []*Skill) string {
	var visible []*Skill
	for _, s := range skills {
		if !s.DisableModelInvocation {
			visible = append(visible, s)
		}
	}
	if len(visible) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("<available_skills>\n")
	for _, s := range visible {
		sb.WriteString("  <skill><name>")
		sb.WriteString(xmlEscape(s.Name))
		sb.WriteString("</name><description>")
		sb.WriteString(xmlEscape(s.Description))
		sb.WriteString("</description><location>")
		sb.WriteString(xmlEscape(s.Path))
		sb.WriteString("</location></skill>\n")
	}
	sb.WriteString("</available_skills>")
	return sb.String()
}

func xmlEscape(s string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
	)
	return replacer.Replace(s)
}
