package runner

import (
	"errors"
	"fmt"
)

// Process exit codes. Invocation failures exit with the agent's own code,
// signals with 128+signum.
const (
	ExitFailureLimit  = 1
	ExitMaxIterations = 2
	ExitConfig        = 3
)

// ConfigError means the run could not start: unusable engine, bad
// configuration, or a test command that cannot execute at all.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return e.Msg }

// InvocationError is a non-rate-limit nonzero exit from the agent. Fatal;
// the process exits with the agent's code.
type InvocationError struct {
	ExitCode int
	Output   string
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("agent exited with code %d", e.ExitCode)
}

// RateLimitAbort means rate-limit recovery is exhausted: no fallback model
// remains.
type RateLimitAbort struct {
	Reason string
}

func (e *RateLimitAbort) Error() string {
	return fmt.Sprintf("rate limited: %s", e.Reason)
}

// FailureLimitError means the same task failed verification too many times
// in a row; manual intervention is required.
type FailureLimitError struct {
	Task  string
	Count int
}

func (e *FailureLimitError) Error() string {
	return fmt.Sprintf("task %q failed verification %d times in a row", e.Task, e.Count)
}

// MaxIterationsError is the non-error terminal: the iteration budget ran
// out before the checklist finished. Nonzero exit by convention.
type MaxIterationsError struct {
	Limit int
}

func (e *MaxIterationsError) Error() string {
	return fmt.Sprintf("reached the maximum of %d iterations", e.Limit)
}

// VerificationError is the single-task mode failure: the one iteration did
// not pass the gate.
type VerificationError struct {
	Reason      string
	Regressions []string
}

func (e *VerificationError) Error() string {
	if len(e.Regressions) > 0 {
		return fmt.Sprintf("verification failed (%s): %v", e.Reason, e.Regressions)
	}
	return fmt.Sprintf("verification failed (%s)", e.Reason)
}

// ExitCode maps a run error to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var invocation *InvocationError
	if errors.As(err, &invocation) {
		if invocation.ExitCode > 0 {
			return invocation.ExitCode
		}
		return 1
	}
	var maxIter *MaxIterationsError
	if errors.As(err, &maxIter) {
		return ExitMaxIterations
	}
	var cfg *ConfigError
	if errors.As(err, &cfg) {
		return ExitConfig
	}
	return ExitFailureLimit
}
