package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/drover-sh/drover/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Fprintf(os.Stdout, "drover %s (commit %s, built %s)\n",
			version.Version, version.CommitSHA, version.BuildDate)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
