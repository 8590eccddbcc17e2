// Package cli defines the drover command tree.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/drover-sh/drover/internal/version"
)

var rootCmd = &cobra.Command{
	Use:     "drover",
	Short:   "Checklist-driven loop runner for coding agents",
	Long:    `Drover walks a markdown task checklist, prompting a coding agent one task at a time and advancing only when the test suite proves the work did not break anything.`,
	Version: version.Version,

	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(initCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
