// Package skills discovers skill definitions from layered directories,
// parses their frontmatter, builds a slash-command table, and resolves
// user input against that table.
package skills

// Tier identifies which layered directory a skill came from. Workspace
// skills override managed (user-home) skills on name collision.
type Tier string

const (
	TierManaged   Tier = "managed"
	TierWorkspace Tier = "workspace"
)

// Skill is a single loaded skill definition.
type Skill struct {
	// Name is the skill's declared name (frontmatter "name"; when that
	// is omitted, the filename without extension, or the containing
	// directory's name for a SKILL.md).
	Name string

	// Description is shown to the model and to the user; required.
	Description string

	// Path is the file the skill was loaded from.
	Path string

	// SourceTier records which tier Path belongs to.
	SourceTier Tier

	// Content is the markdown body following the frontmatter.
	Content string

	// UserInvocable marks the skill eligible for a slash command.
	// Defaults to true.
	UserInvocable bool

	// DisableModelInvocation hides the skill from the model-visible
	// <available_skills> prompt fragment. Defaults to false.
	DisableModelInvocation bool
}

// Command is one entry in the resolved command table: a sanitized,
// collision-free command name bound to the skill it dispatches to.
type Command struct {
	Name          string
	SkillName     string
	Description   string
	TruncatedDesc string
	Location      string
}
