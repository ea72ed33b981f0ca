package skills

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Discover walks the two standard skill tiers in order — the user
// home directory's skills directory, then the workspace's — and
// returns the merged set. A skill discovered in the later tier
// replaces a same-named skill from the earlier tier.
func Discover(userHome, workspace string) ([]*Skill, error) {
	byName := make(map[string]*Skill)
	var order []string

	tiers := []struct {
		root string
		tier Tier
	}{
		{filepath.Join(userHome, ".mini-agent", "skills"), TierManaged},
		{filepath.Join(workspace, "skills"), TierWorkspace},
	}
	for _, t := range tiers {
		found, err := discoverTier(t.root)
		if err != nil {
			return nil, err
		}
		for _, s := range found {
			s.SourceTier = t.tier
			if _, exists := byName[s.Name]; !exists {
				order = append(order, s.Name)
			}
			byName[s.Name] = s
		}
	}

	out := make([]*Skill, 0, len(order))
	for _, name := range order {
		out = append(out, byName[name])
	}
	return out, nil
}

// discoverTier loads top-level *.md files, and for each subdirectory
// recurses looking for SKILL.md, skipping node_modules and
// dot-directories along the way. A missing root directory is not an
// error.
func discoverTier(root string) ([]*Skill, error) {
	info, err := os.Stat(root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, nil
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}

	var out []*Skill
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			if name == "node_modules" || strings.HasPrefix(name, ".") {
				continue
			}
			out = append(out, discoverSkillFiles(filepath.Join(root, name))...)
			continue
		}
		if !strings.HasSuffix(name, ".md") {
			continue
		}
		path := filepath.Join(root, name)
		skill, err := loadFile(path, nameFromFilename(path))
		if err != nil {
			continue
		}
		out = append(out, skill)
	}
	return out, nil
}

// discoverSkillFiles recurses through dir looking for SKILL.md files,
// skipping node_modules and dot-directories at every level.
func discoverSkillFiles(dir string) []*Skill {
	var out []*Skill
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			base := d.Name()
			if path != dir && (base == "node_modules" || strings.HasPrefix(base, ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() != SkillFilename {
			return nil
		}
		skill, err := loadFile(path, nameFromFilename(path))
		if err == nil {
			out = append(out, skill)
		}
		return nil
	})
	return out
}

func loadFile(path, defaultName string) (*Skill, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseSkill(data, path, defaultName)
}
