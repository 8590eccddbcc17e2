// Package verify gates iteration progress on test results. A baseline of
// failing tests is captured once before any task work; afterwards only
// newly-failing tests (regressions against that baseline) block progress, so
// a repository with pre-existing failures can still move forward.
package verify

import (
	"context"
	"fmt"
	"os/exec"
	"sort"

	"github.com/drover-sh/drover/internal/git"
)

// RunCommand executes a shell command string and returns its exit code and
// merged output. The error is reserved for failures to run the command at
// all.
type RunCommand func(ctx context.Context, command string) (int, string, error)

// Shell is the default RunCommand, running the command through sh -c.
func Shell(ctx context.Context, command string) (int, string, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return exitErr.ExitCode(), string(output), nil
		}
		return -1, string(output), fmt.Errorf("failed to run %q: %w", command, err)
	}
	return 0, string(output), nil
}

// Baseline is the test-failure snapshot captured before any task iteration.
// It is immutable for the duration of a run except through MarkFixed.
type Baseline struct {
	ExitCode     int
	RawOutput    string
	FailingTests map[string]struct{}
}

// Clean reports whether the baseline run passed outright.
func (b *Baseline) Clean() bool { return b.ExitCode == 0 }

// Reason tags why a verification attempt failed.
type Reason string

const (
	// ReasonTestsNotWritten means no test files changed anywhere the
	// version-control collaborator can see.
	ReasonTestsNotWritten Reason = "tests_not_written"
	// ReasonRegression means the current run fails tests the baseline
	// did not.
	ReasonRegression Reason = "test_regression"
)

// Verdict is the outcome of one verification pass.
type Verdict struct {
	Passed      bool
	Reason      Reason
	Regressions []string
	RawOutput   string
}

// Engine runs the differential verification gate for a single run.
type Engine struct {
	testCommand string
	workDir     string
	run         RunCommand
	baseline    *Baseline

	// changedTestFiles is swappable for tests; defaults to the git
	// collaborator.
	changedTestFiles func(dir string) ([]string, error)
}

// NewEngine creates a verification engine for the given test command,
// rooted at workDir.
func NewEngine(testCommand, workDir string, run RunCommand) *Engine {
	if run == nil {
		run = Shell
	}
	return &Engine{
		testCommand:      testCommand,
		workDir:          workDir,
		run:              run,
		changedTestFiles: git.ChangedTestFiles,
	}
}

// Baseline returns the captured baseline, or nil before CaptureBaseline.
func (e *Engine) Baseline() *Baseline { return e.baseline }

// SetChangedTestFiles replaces the version-control collaborator used by the
// tests-written check. Tests swap it to avoid real repositories.
func (e *Engine) SetChangedTestFiles(fn func(dir string) ([]string, error)) {
	e.changedTestFiles = fn
}

// CaptureBaseline runs the test command once and records the failure
// snapshot. A failing pre-flight is recorded, not fatal.
func (e *Engine) CaptureBaseline(ctx context.Context) (*Baseline, error) {
	code, output, err := e.run(ctx, e.testCommand)
	if err != nil {
		return nil, fmt.Errorf("baseline test run: %w", err)
	}
	e.baseline = &Baseline{
		ExitCode:     code,
		RawOutput:    output,
		FailingTests: ExtractFailingTests(output),
	}
	return e.baseline, nil
}

// MarkFixed records a successful auto-fix pass: the baseline becomes clean,
// so every subsequent failure is a regression.
func (e *Engine) MarkFixed() {
	e.baseline = &Baseline{ExitCode: 0, FailingTests: map[string]struct{}{}}
}

// RunTests executes the test command and reports whether the result is
// clean. Used by the auto-fix pre-pass between attempts.
func (e *Engine) RunTests(ctx context.Context) (bool, string, error) {
	code, output, err := e.run(ctx, e.testCommand)
	if err != nil {
		return false, output, err
	}
	return code == 0, output, nil
}

// Check runs the full per-iteration verification gate:
//
//  1. The tests-written check: some test file must have changed in the
//     working tree, the index, or the last commit.
//  2. The differential run: against a clean baseline any failure is a
//     regression; against a dirty baseline only failures absent from the
//     baseline set are. Pre-existing failures never block progress.
func (e *Engine) Check(ctx context.Context) (*Verdict, error) {
	if e.baseline == nil {
		return nil, fmt.Errorf("verification baseline not captured")
	}

	changed, err := e.changedTestFiles(e.workDir)
	if err != nil {
		return nil, fmt.Errorf("tests-written check: %w", err)
	}
	if len(changed) == 0 {
		return &Verdict{Passed: false, Reason: ReasonTestsNotWritten}, nil
	}

	code, output, err := e.run(ctx, e.testCommand)
	if err != nil {
		return nil, fmt.Errorf("verification test run: %w", err)
	}

	currentFailing := ExtractFailingTests(output)

	var regressions []string
	if e.baseline.Clean() {
		// Clean baseline: any failure at all is new. Catch nonzero exits
		// even when no name could be extracted.
		for name := range currentFailing {
			regressions = append(regressions, name)
		}
		if code != 0 && len(regressions) == 0 {
			regressions = append(regressions, "(unidentified failure)")
		}
	} else {
		for name := range currentFailing {
			if _, ok := e.baseline.FailingTests[name]; !ok {
				regressions = append(regressions, name)
			}
		}
	}
	sort.Strings(regressions)

	if len(regressions) > 0 {
		return &Verdict{
			Passed:      false,
			Reason:      ReasonRegression,
			Regressions: regressions,
			RawOutput:   output,
		}, nil
	}
	return &Verdict{Passed: true, RawOutput: output}, nil
}
