package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// buildVersionCmd creates the "version" command.
func buildVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "miniagent %s (commit: %s, built: %s)\n", version, commit, date)
			return nil
		},
	}
}
