package skills

import (
	"bufio"
	"bytes"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// SkillFilename is the expected filename for a subdirectory skill.
const SkillFilename = "SKILL.md"

// frontmatterDelimiter marks the beginning and end of the frontmatter block.
const frontmatterDelimiter = "---"

// ParseSkill parses a skill file's content. name is used as the skill's
// name when the frontmatter omits one.
func ParseSkill(data []byte, path string, name string) (*Skill, error) {
	fields, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, fmt.Errorf("split frontmatter: %w", err)
	}

	s := &Skill{
		Name:          name,
		Path:          path,
		UserInvocable: true,
	}
	for key, value := range fields {
		switch key {
		case "name":
			s.Name = value
		case "description":
			s.Description = value
		case "user-invocable":
			b, err := strconv.ParseBool(value)
			if err != nil {
				return nil, fmt.Errorf("user-invocable: %w", err)
			}
			s.UserInvocable = b
		case "disable-model-invocation":
			b, err := strconv.ParseBool(value)
			if err != nil {
				return nil, fmt.Errorf("disable-model-invocation: %w", err)
			}
			s.DisableModelInvocation = b
		}
	}

	if s.Description == "" {
		return nil, fmt.Errorf("skill %s: description is required", path)
	}

	s.Content = strings.TrimSpace(string(body))
	return s, nil
}

// splitFrontmatter separates the optional leading frontmatter block from
// the markdown body. If the file has no opening delimiter, the whole
// file is treated as body and fields is empty.
func splitFrontmatter(data []byte) (fields map[string]string, body []byte, err error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)

	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, err
	}

	if len(lines) == 0 || strings.TrimSpace(lines[0]) != frontmatterDelimiter {
		return nil, data, nil
	}

	closeIdx := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == frontmatterDelimiter {
			closeIdx = i
			break
		}
	}
	if closeIdx == -1 {
		return nil, nil, fmt.Errorf("missing closing frontmatter delimiter")
	}

	fields = make(map[string]string)
	for _, line := range lines[1:closeIdx] {
		key, value, ok := parseFrontmatterLine(line)
		if ok {
			fields[key] = value
		}
	}

	bodyText := strings.Join(lines[closeIdx+1:], "\n")
	return fields, []byte(bodyText), nil
}

// parseFrontmatterLine parses a single "key: value" line, stripping
// surrounding whitespace and a single layer of matching quotes from the
// value.
func parseFrontmatterLine(line string) (key, value string, ok bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return "", "", false
	}
	idx := strings.Index(trimmed, ":")
	if idx == -1 {
		return "", "", false
	}
	key = strings.ToLower(strings.TrimSpace(trimmed[:idx]))
	value = strings.TrimSpace(trimmed[idx+1:])
	value = unquote(value)
	return key, value, true
}

func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// nameFromFilename derives a skill's default name from its path when
// the frontmatter omits one: the filename without extension, or the
// containing directory's name for a SKILL.md.
func nameFromFilename(path string) string {
	base := filepath.Base(path)
	if base == SkillFilename {
		return filepath.Base(filepath.Dir(path))
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}
