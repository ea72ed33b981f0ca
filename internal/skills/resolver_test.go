package skills

import "testing"

func sampleSkills() []*Skill {
	return []*Skill{
		{Name: "code-review", Description: "Reviews a diff", Path: "/skills/review/SKILL.md", UserInvocable: true},
		{Name: "deploy prod", Description: "Ships to prod", Path: "/skills/deploy.md", UserInvocable: true},
	}
}

func TestTable_Lookup_ExactCommandName(t *testing.T) {
	table := NewTable(sampleSkills())
	c, ok := table.Lookup("code-review")
	if !ok || c.SkillName != "code-review" {
		t.Fatalf("Lookup = %+v, %v", c, ok)
	}
}

func TestTable_Lookup_CaseInsensitive(t *testing.T) {
	table := NewTable(sampleSkills())
	c, ok := table.Lookup("Code-Review")
	if !ok || c.SkillName != "code-review" {
		t.Fatalf("Lookup = %+v, %v", c, ok)
	}
}

func TestTable_Lookup_HyphenNormalized(t *testing.T) {
	table := NewTable(sampleSkills())
	c, ok := table.Lookup("deploy-prod")
	if !ok || c.SkillName != "deploy prod" {
		t.Fatalf("Lookup = %+v, %v", c, ok)
	}
}

func TestTable_Lookup_Unknown(t *testing.T) {
	table := NewTable(sampleSkills())
	if _, ok := table.Lookup("nonexistent"); ok {
		t.Fatal("expected no match")
	}
}

func TestTable_Resolve_SlashCommandForm(t *testing.T) {
	table := NewTable(sampleSkills())
	got, ok := table.Resolve("/code-review src/a.ts")
	if !ok {
		t.Fatal("expected resolution")
	}
	want := "Use the \"code-review\" skill for this request.\n\nUser input:\nsrc/a.ts"
	if got != want {
		t.Errorf("got = %q, want %q", got, want)
	}
}

func TestTable_Resolve_SkillDispatchForm(t *testing.T) {
	table := NewTable(sampleSkills())
	got, ok := table.Resolve("/skill code-review src/a.ts")
	if !ok {
		t.Fatal("expected resolution")
	}
	want := "Use the \"code-review\" skill for this request.\n\nUser input:\nsrc/a.ts"
	if got != want {
		t.Errorf("got = %q, want %q", got, want)
	}
}

func TestTable_Resolve_NoArgs(t *testing.T) {
	table := NewTable(sampleSkills())
	got, ok := table.Resolve("/code-review")
	if !ok {
		t.Fatal("expected resolution")
	}
	want := "Use the \"code-review\" skill for this request.\n\nUser input:\n"
	if got != want {
		t.Errorf("got = %q, want %q", got, want)
	}
}

func TestTable_Resolve_NotASlashCommand(t *testing.T) {
	table := NewTable(sampleSkills())
	if _, ok := table.Resolve("plain text message"); ok {
		t.Fatal("expected no resolution for non-slash input")
	}
}

func TestTable_Resolve_UnknownCommandFallsThrough(t *testing.T) {
	table := NewTable(sampleSkills())
	if _, ok := table.Resolve("/does-not-exist args"); ok {
		t.Fatal("expected no resolution for unknown command")
	}
}
