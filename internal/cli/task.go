package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	addRunFlags(taskCmd)
}

var taskCmd = &cobra.Command{
	Use:   "task <description>",
	Short: "Run a single ad-hoc task",
	Long:  `Run one task through the same verification gate as a checklist iteration. The task list document is never read or modified.`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return executeLoop(cmd, strings.Join(args, " "))
	},
}
