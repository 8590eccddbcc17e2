// Package engine abstracts the external code-generation agent. Every engine
// takes a single prompt string and returns the merged process output, the
// exit code, and a rate-limit classification; the capability flags tell the
// runner which recovery paths the engine can participate in.
package engine

import (
	"context"
	"os/exec"

	"github.com/drover-sh/drover/internal/ratelimit"
)

// Result is the outcome of one agent invocation. Output is the concatenation
// of everything the process wrote to stdout and stderr.
type Result struct {
	Success   bool
	ExitCode  int
	Output    string
	RateLimit ratelimit.Severity
}

// Capabilities describes what an engine can do beyond running a prompt.
// The runner branches on these flags, never on engine identity.
type Capabilities struct {
	// SupportsFallback means SwitchToFallback can move to a secondary
	// model once per run.
	SupportsFallback bool
	// ClassifiesSeverity means rate-limit hits are split into soft and
	// hard; engines without it report every hit undifferentiated.
	ClassifiesSeverity bool
}

// Engine is the invocation port for a code-generation agent.
type Engine interface {
	Name() string
	CurrentModel() string
	Available() bool
	Capabilities() Capabilities

	// Run invokes the agent with a prompt and blocks until it exits.
	// A non-nil Result is returned even for nonzero exits; the error is
	// reserved for failures to start or observe the process.
	Run(ctx context.Context, prompt string) (*Result, error)

	// SwitchToFallback moves to the fallback model. Engines without
	// fallback support return false.
	SwitchToFallback() bool
}

// CommandContext creates the exec.Cmd instances engines run. Tests swap it
// to fake subprocess behavior.
var CommandContext = exec.CommandContext

// exitCode extracts the process exit code from an exec error. Returns -1
// when the process never ran.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	return -1
}
