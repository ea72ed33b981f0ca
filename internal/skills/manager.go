package skills

// Manager owns a loaded skill set and the command table and prompt
// fragment derived from it. It is rebuilt (not hot-reloaded) by
// calling Load again; callers typically do this once at startup.
type Manager struct {
	userHome  string
	workspace string

	skills []*Skill
	table  *Table
	prompt string
}

// NewManager returns a Manager that loads skills from userHome and
// workspace when Load is called.
func NewManager(userHome, workspace string) *Manager {
	return &Manager{userHome: userHome, workspace: workspace}
}

// Load discovers skills from both tiers and rebuilds the command
// table and model-visible prompt fragment.
func (m *Manager) Load() error {
	skills, err := Discover(m.userHome, m.workspace)
	if err != nil {
		return err
	}
	m.skills = skills
	m.table = NewTable(skills)
	m.prompt = RenderAvailableSkills(skills)
	return nil
}

// Skills returns the currently loaded skill set.
func (m *Manager) Skills() []*Skill {
	return m.skills
}

// Commands returns the currently loaded command table.
func (m *Manager) Commands() []Command {
	if m.table == nil {
		return nil
	}
	return m.table.Commands()
}

// PromptFragment returns the rendered <available_skills> XML fragment,
// or an empty string when no skill permits model invocation.
func (m *Manager) PromptFragment() string {
	return m.prompt
}

// Resolve rewrites a slash-command user input per the loaded command
// table. ok is false when input names no known command.
func (m *Manager) Resolve(input string) (string, bool) {
	if m.table == nil {
		return "", false
	}
	return m.table.Resolve(input)
}
