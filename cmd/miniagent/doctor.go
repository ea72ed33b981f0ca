package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/miniagent-dev/core/internal/skills"
)

// buildDoctorCmd creates the "doctor" command: validates config,
// credentials and the filesystem roots a run would need, without
// starting a provider session.
func buildDoctorCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Validate configuration, credentials and filesystem roots",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")
	return cmd
}

func runDoctor(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()
	path := resolveConfigPath(configPath)

	cfg, err := loadConfig(path)
	if err != nil {
		return fmt.Errorf("doctor: %w", err)
	}
	fmt.Fprintf(out, "config: ok (%s)\n", path)

	var problems []string

	keyVar := providerAPIKeyEnvVar(cfg.Provider.Name)
	if cfg.Provider.APIKey == "" && strings.TrimSpace(os.Getenv(keyVar)) == "" {
		problems = append(problems, fmt.Sprintf("provider %q has no credential: set %s or provider.api_key", cfg.Provider.Name, keyVar))
	} else {
		fmt.Fprintf(out, "provider: %s credential present\n", cfg.Provider.Name)
	}

	workspace := resolveWorkspace(cfg)
	if info, err := os.Stat(workspace); err != nil || !info.IsDir() {
		problems = append(problems, fmt.Sprintf("workspace %q is not a directory", workspace))
	} else {
		fmt.Fprintf(out, "workspace: %s\n", workspace)
	}

	userHome := resolveUserHome(cfg)
	if userHome == "" {
		problems = append(problems, "user home could not be resolved")
	} else {
		fmt.Fprintf(out, "user home: %s\n", userHome)
	}

	skillMgr := skills.NewManager(userHome, workspace)
	if err := skillMgr.Load(); err != nil {
		problems = append(problems, fmt.Sprintf("skills: %v", err))
	} else {
		fmt.Fprintf(out, "skills: %d loaded\n", len(skillMgr.Skills()))
	}

	if len(problems) == 0 {
		fmt.Fprintln(out, "all checks passed")
		return nil
	}

	fmt.Fprintln(out, "problems found:")
	for _, p := range problems {
		fmt.Fprintf(out, "  - %s\n", p)
	}
	return fmt.Errorf("doctor: %d problem(s) found", len(problems))
}
