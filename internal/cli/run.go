package cli

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/drover-sh/drover/internal/config"
	"github.com/drover-sh/drover/internal/display"
	"github.com/drover-sh/drover/internal/engine"
	"github.com/drover-sh/drover/internal/progress"
	"github.com/drover-sh/drover/internal/runner"
	"github.com/drover-sh/drover/internal/verify"
)

var (
	flagConfig        string
	flagTasks         string
	flagTestCommand   string
	flagEngine        string
	flagModel         string
	flagFallbackModel string
	flagMaxIterations int
	flagFailureLimit  int
)

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagConfig, "config", "", "Config file (default .drover/config.yaml)")
	cmd.Flags().StringVar(&flagTasks, "tasks", "", "Task list document")
	cmd.Flags().StringVar(&flagTestCommand, "test-command", "", "Command that runs the test suite")
	cmd.Flags().StringVar(&flagEngine, "engine", "", "Agent engine: claude or command")
	cmd.Flags().StringVar(&flagModel, "model", "", "Primary model (claude engine)")
	cmd.Flags().StringVar(&flagFallbackModel, "fallback-model", "", "Fallback model after a hard rate limit (claude engine)")
	cmd.Flags().IntVar(&flagMaxIterations, "max-iterations", 0, "Iteration budget for the run")
	cmd.Flags().IntVar(&flagFailureLimit, "failure-limit", 0, "Consecutive verification failures before aborting")
}

func init() {
	addRunFlags(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run [tasklist]",
	Short: "Work through the task checklist",
	Long:  `Run the iteration loop over the task list, prompting the agent for the first incomplete task and checking items off as verification passes.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			if err := cmd.Flags().Set("tasks", args[0]); err != nil {
				return err
			}
		}
		return executeLoop(cmd, "")
	},
}

// loadRunConfig loads the config file and overlays any flags the user set.
func loadRunConfig(cmd *cobra.Command) (*config.Config, error) {
	path := flagConfig
	if path == "" {
		path = config.Path()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, &runner.ConfigError{Msg: err.Error()}
	}

	flags := cmd.Flags()
	if flags.Changed("tasks") {
		cfg.TaskList = flagTasks
	}
	if flags.Changed("test-command") {
		cfg.TestCommand = flagTestCommand
	}
	if flags.Changed("engine") {
		cfg.Engine.Name = flagEngine
	}
	if flags.Changed("model") {
		cfg.Engine.Model = flagModel
	}
	if flags.Changed("fallback-model") {
		cfg.Engine.FallbackModel = flagFallbackModel
	}
	if flags.Changed("max-iterations") {
		cfg.MaxIterations = flagMaxIterations
	}
	if flags.Changed("failure-limit") {
		cfg.FailureLimit = flagFailureLimit
	}

	if err := cfg.Validate(); err != nil {
		return nil, &runner.ConfigError{Msg: err.Error()}
	}
	return cfg, nil
}

// buildEngine constructs the configured agent engine.
func buildEngine(cfg *config.Config) engine.Engine {
	if cfg.Engine.Name == "command" {
		return engine.NewCommandEngine(cfg.Engine.Command, cfg.Engine.Args...)
	}
	return engine.NewClaudeEngine(cfg.Engine.Model, cfg.Engine.FallbackModel)
}

// executeLoop wires a runner for either checklist or single-task mode and
// runs it with signal handling.
func executeLoop(cmd *cobra.Command, singleTask string) error {
	cfg, err := loadRunConfig(cmd)
	if err != nil {
		return err
	}
	if err := checkPrerequisites(cfg); err != nil {
		return err
	}

	workDir, err := os.Getwd()
	if err != nil {
		return err
	}

	store, err := progress.NewStore(config.DefaultDir, cfg.Project)
	if err != nil {
		return &runner.ConfigError{Msg: err.Error()}
	}
	disp := display.New(os.Stdout)

	r := runner.New(runner.Options{
		Config:     cfg,
		Engine:     buildEngine(cfg),
		Verifier:   verify.NewEngine(cfg.TestCommand, workDir, nil),
		Store:      store,
		Display:    disp,
		WorkDir:    workDir,
		SingleTask: singleTask,
		LockPath:   filepath.Join(config.DefaultDir, "run.lock"),
	})

	// An interrupt reports where the run stopped and how to pick it back
	// up, then exits with the conventional signal code.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)
	go func() {
		sig := <-sigCh
		iteration, task := r.Snapshot()
		iterPath, taskPath := store.ResumePaths()
		fmt.Fprintf(os.Stderr, "\nreceived %s during iteration %d (task: %s)\n", sig, iteration, task)
		fmt.Fprintf(os.Stderr, "progress log: %s\n", store.LogPath())
		fmt.Fprintf(os.Stderr, "resume state: %s, %s\n", iterPath, taskPath)
		code := 128 + int(syscall.SIGTERM)
		if s, ok := sig.(syscall.Signal); ok {
			code = 128 + int(s)
		}
		os.Exit(code)
	}()

	runErr := r.Run(cmd.Context())
	if runErr != nil {
		disp.Error("%v", runErr)
		disp.Subtle("progress log: %s", store.LogPath())
	}
	return runErr
}
