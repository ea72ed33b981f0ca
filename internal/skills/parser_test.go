package skills

import (
	"strings"
	"testing"
)

func TestParseSkill(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		path        string
		defaultName string
		wantName    string
		wantDesc    string
		wantInvoke  bool
		wantHidden  bool
		wantErr     bool
	}{
		{
			name: "full frontmatter",
			content: `---
name: code-review
description: Reviews a diff for bugs
user-invocable: true
disable-model-invocation: false
---

# Code Review

Do the review.
`,
			path:        "/skills/code-review/SKILL.md",
			defaultName: "code-review",
			wantName:    "code-review",
			wantDesc:    "Reviews a diff for bugs",
			wantInvoke:  true,
		},
		{
			name: "quoted values",
			content: `---
name: "deploy"
description: 'Ships the current build'
---
body
`,
			path:        "/skills/deploy.md",
			defaultName: "deploy",
			wantName:    "deploy",
			wantDesc:    "Ships the current build",
			wantInvoke:  true,
		},
		{
			name: "defaults applied",
			content: `---
description: Has no name or toggles set
---
body
`,
			path:        "/skills/untitled.md",
			defaultName: "untitled",
			wantName:    "untitled",
			wantDesc:    "Has no name or toggles set",
			wantInvoke:  true,
			wantHidden:  false,
		},
		{
			name: "invocation toggles",
			content: `---
description: Model-only helper
user-invocable: false
disable-model-invocation: true
---
body
`,
			path:        "/skills/helper.md",
			defaultName: "helper",
			wantName:    "helper",
			wantDesc:    "Model-only helper",
			wantInvoke:  false,
			wantHidden:  true,
		},
		{
			name:        "missing description rejected",
			content:     "---\nname: broken\n---\nbody\n",
			path:        "/skills/broken.md",
			defaultName: "broken",
			wantErr:     true,
		},
		{
			name:        "no frontmatter treated as body only",
			content:     "just a plain file\n",
			path:        "/skills/plain.md",
			defaultName: "plain",
			wantErr:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := ParseSkill([]byte(tt.content), tt.path, tt.defaultName)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseSkill: %v", err)
			}
			if s.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", s.Name, tt.wantName)
			}
			if s.Description != tt.wantDesc {
				t.Errorf("Description = %q, want %q", s.Description, tt.wantDesc)
			}
			if s.UserInvocable != tt.wantInvoke {
				t.Errorf("UserInvocable = %v, want %v", s.UserInvocable, tt.wantInvoke)
			}
			if s.DisableModelInvocation != tt.wantHidden {
				t.Errorf("DisableModelInvocation = %v, want %v", s.DisableModelInvocation, tt.wantHidden)
			}
			if s.Path != tt.path {
				t.Errorf("Path = %q, want %q", s.Path, tt.path)
			}
		})
	}
}

func TestParseSkill_BodyTrimmed(t *testing.T) {
	content := "---\ndescription: d\n---\n\n\n  body text  \n\n"
	s, err := ParseSkill([]byte(content), "p.md", "p")
	if err != nil {
		t.Fatalf("ParseSkill: %v", err)
	}
	if !strings.Contains(s.Content, "body text") {
		t.Errorf("Content = %q, want to contain body text", s.Content)
	}
	if strings.HasPrefix(s.Content, "\n") || strings.HasSuffix(s.Content, "\n") {
		t.Errorf("Content = %q, want surrounding newlines trimmed", s.Content)
	}
}

func TestParseSkill_MissingClosingDelimiter(t *testing.T) {
	_, err := ParseSkill([]byte("---\ndescription: d\n"), "p.md", "p")
	if err == nil {
		t.Fatal("expected error for missing closing delimiter")
	}
}
