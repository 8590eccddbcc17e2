package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/drover-sh/drover/internal/config"
	"github.com/drover-sh/drover/internal/display"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the .drover directory with a default config",
	Args:  cobra.NoArgs,
	RunE:  runInit,
}

func runInit(cmd *cobra.Command, _ []string) error {
	if err := checkGitRepo(); err != nil {
		return err
	}

	path := config.Path()
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}

	cfg := config.Default()
	if err := cfg.Save(path); err != nil {
		return err
	}

	disp := display.New(os.Stdout)
	disp.Success("wrote %s", path)
	disp.Info("edit it to set your task list and test command, then run 'drover run'")
	return nil
}
