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

// ClaudeEngine drives the Claude Code CLI. It classifies rate-limit severity
// from the CLI's output and can switch to a fallback model once per run.
type ClaudeEngine struct {
	model         string
	fallbackModel string
	usingFallback bool

	// Console receives a live copy of the agent's output. Defaults to
	// os.Stdout; tests set it to a buffer.
	Console io.Writer
}

// NewClaudeEngine creates a Claude engine on the given primary model.
// fallbackModel may be empty, which disables the fallback capability.
func NewClaudeEngine(model, fallbackModel string) *ClaudeEngine {
	return &ClaudeEngine{
		model:         model,
		fallbackModel: fallbackModel,
		Console:       os.Stdout,
	}
}

func (e *ClaudeEngine) Name() string { return "claude" }

func (e *ClaudeEngine) CurrentModel() string { return e.model }

// Available reports whether the claude command exists in PATH.
func (e *ClaudeEngine) Available() bool {
	_, err := exec.LookPath("claude")
	return err == nil
}

func (e *ClaudeEngine) Capabilities() Capabilities {
	return Capabilities{
		SupportsFallback:   e.fallbackModel != "",
		ClassifiesSeverity: true,
	}
}

// SupportsFallback mirrors the capability flag for the rate-limit controller.
func (e *ClaudeEngine) SupportsFallback() bool {
	return e.Capabilities().SupportsFallback
}

// SwitchToFallback moves to the fallback model. The switch is irreversible
// within a run and can happen at most once.
func (e *ClaudeEngine) SwitchToFallback() bool {
	if e.fallbackModel == "" || e.usingFallback {
		return false
	}
	e.model = e.fallbackModel
	e.usingFallback = true
	return true
}

// Run invokes the Claude CLI with the prompt, streaming output to the
// console while capturing it for classification.
func (e *ClaudeEngine) Run(ctx context.Context, prompt string) (*Result, error) {
	args := []string{"-p", prompt, "--dangerously-skip-permissions"}
	if e.model != "" {
		args = append(args, "--model", e.model)
	}
	cmd := CommandContext(ctx, "claude", args...)

	var captured bytes.Buffer
	console := e.Console
	if console == nil {
		console = os.Stdout
	}
	// stdout and stderr share one buffer so Result.Output is the merged
	// text the classifier scans.
	cmd.Stdout = io.MultiWriter(console, &captured)
	cmd.Stderr = io.MultiWriter(console, &captured)

	err := cmd.Run()
	if err != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	code := exitCode(err)
	if err != nil && code < 0 {
		return nil, fmt.Errorf("failed to run claude: %w", err)
	}

	output := captured.String()
	sev, _ := ratelimit.Classify(output)
	return &Result{
		Success:   code == 0,
		ExitCode:  code,
		Output:    output,
		RateLimit: sev,
	}, nil
}
