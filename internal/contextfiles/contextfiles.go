// Package contextfiles loads the workspace's standing context
// documents (AGENT.md, HEARTBEAT.md, CONTEXT.md) into the text
// injected ahead of the system prompt's context section.
package contextfiles

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Names is the fixed, ordered set of context document filenames.
var Names = []string{"AGENT.md", "HEARTBEAT.md", "CONTEXT.md"}

// Load resolves and concatenates the standing context documents. For
// each name, the user-home tier (`<userHome>/.mini-agent/<name>`) is
// consulted first and overridden by the workspace tier
// (`<workspace>/.mini-agent/<name>`, then `<workspace>/<name>`); the
// last existing candidate wins. Missing files are silently skipped.
// The returned string is empty when none of the documents exist.
func Load(userHome, workspace string) (string, error) {
	var sb strings.Builder
	for _, name := range Names {
		content, found, err := resolve(userHome, workspace, name)
		if err != nil {
			return "", err
		}
		if !found {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "# %s\n\n%s", name, strings.TrimSpace(content))
	}
	return sb.String(), nil
}

// resolve walks the tiers for a single filename in consult order,
// returning the content of the last one found.
func resolve(userHome, workspace, name string) (content string, found bool, err error) {
	candidates := []string{
		filepath.Join(userHome, ".mini-agent", name),
		filepath.Join(workspace, ".mini-agent", name),
		filepath.Join(workspace, name),
	}
	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return "", false, fmt.Errorf("read %s: %w", path, err)
		}
		content, found = string(data), true
	}
	return content, found, nil
}
