package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/drover-sh/drover/internal/ratelimit"
)

// CommandEngine runs an arbitrary agent command with the prompt appended as
// the final argument. It only does binary rate-limit detection: any
// indicator in the output counts, with no soft/hard distinction, and there
// is no fallback model.
type CommandEngine struct {
	command string
	args    []string

	Console io.Writer
}

// NewCommandEngine creates an engine around the given command and fixed
// leading arguments.
func NewCommandEngine(command string, args ...string) *CommandEngine {
	return &CommandEngine{command: command, args: args, Console: os.Stdout}
}

func (e *CommandEngine) Name() string { return e.command }

// CurrentModel returns "default"; generic commands do not expose model
// selection.
func (e *CommandEngine) CurrentModel() string { return "default" }

func (e *CommandEngine) Available() bool {
	_, err := exec.LookPath(e.command)
	return err == nil
}

func (e *CommandEngine) Capabilities() Capabilities {
	return Capabilities{}
}

func (e *CommandEngine) SupportsFallback() bool { return false }

func (e *CommandEngine) SwitchToFallback() bool { return false }

// Run invokes the command with the prompt appended. An undifferentiated
// rate-limit hit is reported as soft so the controller walks the backoff
// path first and escalates on exhaustion.
func (e *CommandEngine) Run(ctx context.Context, prompt string) (*Result, error) {
	args := append(append([]string{}, e.args...), prompt)
	cmd := CommandContext(ctx, e.command, args...)

	var captured bytes.Buffer
	console := e.Console
	if console == nil {
		console = os.Stdout
	}
	cmd.Stdout = io.MultiWriter(console, &captured)
	cmd.Stderr = io.MultiWriter(console, &captured)

	err := cmd.Run()
	if err != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	code := exitCode(err)
	if err != nil && code < 0 {
		return nil, fmt.Errorf("failed to run %s: %w", e.command, err)
	}

	output := captured.String()
	sev := ratelimit.None
	if ratelimit.Detect(output) {
		sev = ratelimit.Soft
	}
	return &Result{
		Success:   code == 0,
		ExitCode:  code,
		Output:    output,
		RateLimit: sev,
	}, nil
}
