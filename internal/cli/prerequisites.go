package cli

import (
	"fmt"
	"os/exec"

	"github.com/drover-sh/drover/internal/config"
	"github.com/drover-sh/drover/internal/git"
)

// PrerequisiteError is a failed environment check with remediation help.
type PrerequisiteError struct {
	Check   string
	Message string
	Help    string
}

func (e *PrerequisiteError) Error() string {
	return fmt.Sprintf("%s: %s\n\n%s", e.Check, e.Message, e.Help)
}

// checkPrerequisites validates the environment before a run starts.
func checkPrerequisites(cfg *config.Config) error {
	if err := checkGitRepo(); err != nil {
		return err
	}
	return checkEngine(cfg)
}

// checkGitRepo verifies the working directory is inside a git repository.
// The tests-written check reads change sets from git, so this is mandatory.
func checkGitRepo() error {
	if !git.IsRepo(".") {
		return &PrerequisiteError{
			Check:   "Git repository",
			Message: "Not a git repository",
			Help:    "Drover tracks test changes through git. Run 'git init' first.",
		}
	}
	return nil
}

// checkEngine verifies the configured agent command exists in PATH.
func checkEngine(cfg *config.Config) error {
	command := cfg.Engine.Command
	help := fmt.Sprintf("Install %q or point engine.command at an existing binary.", command)
	if cfg.Engine.Name == "claude" {
		command = "claude"
		help = "Install Claude Code: https://claude.ai/code"
	}
	if _, err := exec.LookPath(command); err != nil {
		return &PrerequisiteError{
			Check:   "Agent command",
			Message: fmt.Sprintf("%q not found in PATH", command),
			Help:    help,
		}
	}
	return nil
}
