package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/drover-sh/drover/internal/checklist"
	"github.com/drover-sh/drover/internal/config"
	"github.com/drover-sh/drover/internal/display"
	"github.com/drover-sh/drover/internal/progress"
	"github.com/drover-sh/drover/internal/runner"
)

var statusTail int

func init() {
	statusCmd.Flags().IntVar(&statusTail, "tail", 5, "Number of recent log entries to show")
	statusCmd.Flags().StringVar(&flagConfig, "config", "", "Config file (default .drover/config.yaml)")
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show checklist progress and recent run activity",
	Args:  cobra.NoArgs,
	RunE:  showStatus,
}

func showStatus(cmd *cobra.Command, _ []string) error {
	path := flagConfig
	if path == "" {
		path = config.Path()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return &runner.ConfigError{Msg: err.Error()}
	}

	disp := display.New(os.Stdout)

	tasks, err := checklist.ParseFile(cfg.TaskList)
	if err != nil {
		return err
	}
	remaining := checklist.CountIncomplete(tasks)
	disp.Header("%s: %d tasks, %d remaining", cfg.TaskList, len(tasks), remaining)
	if task, ok := checklist.FirstIncomplete(tasks); ok {
		disp.Info("next task: %s", task.Text)
	}

	store, err := progress.NewStore(config.DefaultDir, cfg.Project)
	if err != nil {
		return err
	}
	iteration, task, err := store.ReadResume()
	if err != nil {
		return err
	}
	if iteration > 0 {
		disp.Info("last run stopped at iteration %d (task: %s)", iteration, task)
	}

	entries, err := store.Tail(statusTail)
	if err != nil {
		return err
	}
	for _, e := range entries {
		line := e.Status
		if e.Task != "" {
			line += ": " + e.Task
		}
		if e.Message != "" {
			line += " (" + e.Message + ")"
		}
		disp.Subtle("%s  %s", e.Timestamp.Format("2006-01-02 15:04:05"), line)
	}
	return nil
}
