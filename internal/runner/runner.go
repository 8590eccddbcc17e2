// Package runner drives the iteration loop: pick the next checklist task,
// prompt the agent, gate the result on differential test verification, and
// decide whether to advance, re-prompt, back off, or stop.
package runner

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/drover-sh/drover/internal/checklist"
	"github.com/drover-sh/drover/internal/config"
	"github.com/drover-sh/drover/internal/display"
	"github.com/drover-sh/drover/internal/engine"
	"github.com/drover-sh/drover/internal/git"
	"github.com/drover-sh/drover/internal/progress"
	"github.com/drover-sh/drover/internal/ratelimit"
	"github.com/drover-sh/drover/internal/verify"
)

// state is the runner's position in its iteration state machine. Completion
// and abort are terminal returns rather than states the loop re-enters.
type state int

const (
	// stateNormal drives the next incomplete checklist task.
	stateNormal state = iota
	// stateFixTests re-drives the current task with the regression output
	// until verification passes again.
	stateFixTests
)

// Options wires a Runner. Engine, Verifier, Store, and Display are required;
// zero hooks get production defaults.
type Options struct {
	Config   *config.Config
	Engine   engine.Engine
	Verifier *verify.Engine
	Store    *progress.Store
	Display  *display.Display
	WorkDir  string

	// SingleTask, when non-empty, runs one ad-hoc task instead of the
	// checklist. The task-list document is never read or written.
	SingleTask string

	// LockPath overrides the run-lock location. Empty disables locking;
	// the CLI always sets it.
	LockPath string

	// Sleep and ChangedFiles are swappable for tests.
	Sleep        func(time.Duration)
	ChangedFiles func(dir string) ([]string, error)
}

// Runner executes one full run. It is not reusable.
type Runner struct {
	cfg      *config.Config
	eng      engine.Engine
	limiter  *ratelimit.Controller
	verifier *verify.Engine
	store    *progress.Store
	disp     *display.Display
	workDir  string

	singleTask   string
	lockPath     string
	sleep        func(time.Duration)
	changedFiles func(dir string) ([]string, error)

	state          state
	lastVerdict    *verify.Verdict
	failStreak     int
	lastFailedTask string

	mu           sync.Mutex
	curIteration int
	curTask      string
}

// New creates a runner from options.
func New(opts Options) *Runner {
	sleep := opts.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	changed := opts.ChangedFiles
	if changed == nil {
		changed = git.ChangedFiles
	}
	policy := ratelimit.Policy{
		MaxSoftRetries: opts.Config.SoftRetries,
		BaseDelay:      opts.Config.SoftRetryDelay.Std(),
	}
	return &Runner{
		cfg:          opts.Config,
		eng:          opts.Engine,
		limiter:      ratelimit.NewController(policy),
		verifier:     opts.Verifier,
		store:        opts.Store,
		disp:         opts.Display,
		workDir:      opts.WorkDir,
		singleTask:   opts.SingleTask,
		lockPath:     opts.LockPath,
		sleep:        sleep,
		changedFiles: changed,
	}
}

// Snapshot returns the current iteration and task for the signal handler.
func (r *Runner) Snapshot() (iteration int, task string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.curIteration, r.curTask
}

func (r *Runner) setSnapshot(iteration int, task string) {
	r.mu.Lock()
	r.curIteration = iteration
	r.curTask = task
	r.mu.Unlock()
}

// switcher adapts the engine to the rate-limit controller, which asks for
// fallback support as a method rather than a capability flag.
type switcher struct {
	engine.Engine
}

func (s switcher) SupportsFallback() bool {
	return s.Engine.Capabilities().SupportsFallback
}

// Run executes the loop until the checklist completes, a budget runs out, or
// recovery is exhausted. The returned error's type decides the process exit
// code.
func (r *Runner) Run(ctx context.Context) error {
	if !r.eng.Available() {
		return &ConfigError{Msg: "engine " + r.eng.Name() + " is not available on this system"}
	}

	if r.lockPath != "" {
		lock := NewLock(r.lockPath)
		if err := lock.Acquire(); err != nil {
			return &ConfigError{Msg: err.Error()}
		}
		defer lock.Release()
	}

	r.disp.Header("drover: %s (%s)", r.eng.Name(), r.eng.CurrentModel())
	r.disp.Subtle("progress log: %s", r.store.LogPath())

	baseline, err := r.verifier.CaptureBaseline(ctx)
	if err != nil {
		return &ConfigError{Msg: "test command cannot run: " + err.Error()}
	}
	if baseline.Clean() {
		r.disp.Info("baseline: tests passing")
	} else {
		r.disp.Warn("baseline: %d known failing tests (exit %d)", len(baseline.FailingTests), baseline.ExitCode)
		if r.cfg.AutoFixAttempts > 0 {
			if err := r.autoFix(ctx); err != nil {
				return err
			}
		}
	}

	if r.singleTask == "" {
		tasks, err := checklist.ParseFile(r.cfg.TaskList)
		if err != nil {
			return &ConfigError{Msg: err.Error()}
		}
		if len(tasks) == 0 {
			r.disp.Info("no tasks found in %s", r.cfg.TaskList)
			return nil
		}
		if checklist.AllComplete(tasks) {
			r.disp.Success("all tasks in %s are already complete", r.cfg.TaskList)
			return nil
		}
	}

	maxIterations := r.cfg.MaxIterations
	if r.singleTask != "" {
		maxIterations = 1
	}

	start := time.Now()
	for iteration := 1; iteration <= maxIterations; iteration++ {
		task, ok, err := r.nextTask()
		if err != nil {
			return err
		}
		if !ok {
			// Every box is checked. Confirm with a final verification
			// before declaring success; a failure here counts against the
			// streak and re-drives the last task in fix mode.
			done, err := r.confirmComplete(ctx, iteration)
			if err != nil {
				return err
			}
			if done {
				r.disp.Subtle("elapsed: %s", display.FormatDuration(time.Since(start)))
				return nil
			}
			if iteration < maxIterations {
				r.sleep(r.cfg.IterationDelay.Std())
			}
			continue
		}

		r.setSnapshot(iteration, task.Text)
		if err := r.store.WriteResume(iteration, task.Text); err != nil {
			r.disp.Warn("could not persist resume state: %v", err)
		}
		r.store.Append(progress.Entry{
			Iteration: iteration,
			Task:      task.Text,
			Status:    progress.StatusStarted,
		})
		r.disp.Iteration(iteration, maxIterations, task.Text)

		res, err := r.invoke(ctx, r.buildPrompt(task))
		if err != nil {
			return err
		}
		if !res.Success {
			r.store.Append(progress.Entry{
				Iteration: iteration,
				Task:      task.Text,
				Status:    progress.StatusAborted,
				Message:   "agent invocation failed",
			})
			return &InvocationError{ExitCode: res.ExitCode, Output: res.Output}
		}

		verdict, err := r.verifier.Check(ctx)
		if err != nil {
			return &ConfigError{Msg: err.Error()}
		}

		if !verdict.Passed {
			if err := r.recordFailure(iteration, task, verdict); err != nil {
				return err
			}
			if iteration < maxIterations {
				r.sleep(r.cfg.IterationDelay.Std())
			}
			continue
		}

		// Verification passed: the task is done, whatever mode got us here.
		r.state = stateNormal
		r.lastVerdict = nil
		r.failStreak = 0
		r.lastFailedTask = ""

		changed, _ := r.changedFiles(r.workDir)
		r.store.Append(progress.Entry{
			Iteration:    iteration,
			Task:         task.Text,
			Status:       progress.StatusPassed,
			ChangedFiles: changed,
		})
		r.disp.Success("verification passed")

		if r.singleTask != "" {
			r.store.Append(progress.Entry{Iteration: iteration, Task: task.Text, Status: progress.StatusCompleted})
			r.disp.Subtle("elapsed: %s", display.FormatDuration(time.Since(start)))
			return nil
		}

		if err := checklist.MarkComplete(r.cfg.TaskList, task); err != nil {
			r.disp.Warn("could not mark task complete: %v", err)
		}

		if strings.Contains(res.Output, CompletionSentinel) {
			done, err := r.handleSentinel(ctx, iteration)
			if err != nil {
				return err
			}
			if done {
				r.disp.Subtle("elapsed: %s", display.FormatDuration(time.Since(start)))
				return nil
			}
		}

		if iteration < maxIterations {
			r.sleep(r.cfg.IterationDelay.Std())
		}
	}

	if r.singleTask != "" {
		// One iteration ran and did not pass.
		if r.lastVerdict != nil {
			return &VerificationError{
				Reason:      string(r.lastVerdict.Reason),
				Regressions: r.lastVerdict.Regressions,
			}
		}
	}

	r.store.Append(progress.Entry{Status: progress.StatusAborted, Message: "iteration budget exhausted"})
	return &MaxIterationsError{Limit: maxIterations}
}

// nextTask picks what the next iteration works on. In single-task mode the
// synthetic task is always pending; in checklist mode the document is
// re-parsed every iteration because the agent may have edited it. When every
// box is checked but the previous iteration's verification failed, the last
// task is re-driven so the agent sees the failure instead of the run spinning
// on verification alone.
func (r *Runner) nextTask() (checklist.Task, bool, error) {
	if r.singleTask != "" {
		return checklist.Task{Text: r.singleTask, Position: -1}, true, nil
	}
	tasks, err := checklist.ParseFile(r.cfg.TaskList)
	if err != nil {
		return checklist.Task{}, false, &ConfigError{Msg: err.Error()}
	}
	task, ok := checklist.FirstIncomplete(tasks)
	if !ok && r.lastVerdict != nil && len(tasks) > 0 {
		return tasks[len(tasks)-1], true, nil
	}
	return task, ok, nil
}

// buildPrompt selects the prompt for the current mode and failure history.
func (r *Runner) buildPrompt(task checklist.Task) string {
	if r.lastVerdict != nil && r.lastVerdict.Reason == verify.ReasonTestsNotWritten {
		return missingTestsPrompt(task.Text, r.cfg.TestCommand)
	}
	if r.state == stateFixTests && r.lastVerdict != nil {
		return fixTestsPrompt(task.Text, r.lastVerdict.Regressions, r.lastVerdict.RawOutput, r.cfg.TestCommand)
	}
	if r.singleTask != "" {
		return singleTaskPrompt(task.Text, r.cfg.TestCommand)
	}
	return taskPrompt(task.Text, r.cfg.TaskList, r.cfg.TestCommand)
}

// invoke runs the agent, absorbing rate-limit hits. Retries and the fallback
// switch happen here without consuming iteration or failure budget; only a
// result free of rate limiting is returned.
func (r *Runner) invoke(ctx context.Context, prompt string) (*engine.Result, error) {
	for {
		res, err := r.eng.Run(ctx, prompt)
		if err != nil {
			return nil, err
		}
		if res.RateLimit == ratelimit.None {
			r.limiter.ResetSoft()
			return res, nil
		}

		iteration, task := r.Snapshot()
		r.store.Append(progress.Entry{
			Iteration: iteration,
			Task:      task,
			Status:    progress.StatusRateLimited,
			Message:   res.RateLimit.String(),
		})

		decision := r.limiter.OnRateLimit(res.RateLimit, switcher{r.eng})
		switch decision.Action {
		case ratelimit.Retry:
			r.disp.Warn("%s; retrying in %s", decision.Reason, decision.Wait)
			r.sleep(decision.Wait)
		case ratelimit.Switched:
			r.disp.Warn("%s", decision.Reason)
			r.store.Append(progress.Entry{
				Iteration: iteration,
				Task:      task,
				Status:    progress.StatusFallbackSwitch,
				Message:   r.eng.CurrentModel(),
			})
		case ratelimit.Abort:
			r.store.Append(progress.Entry{
				Iteration: iteration,
				Task:      task,
				Status:    progress.StatusAborted,
				Message:   decision.Reason,
			})
			return nil, &RateLimitAbort{Reason: decision.Reason}
		}
	}
}

// recordFailure updates the consecutive-failure streak, which resets when
// the failing task changes, and aborts once the streak hits the limit.
func (r *Runner) recordFailure(iteration int, task checklist.Task, verdict *verify.Verdict) error {
	if task.Text == r.lastFailedTask {
		r.failStreak++
	} else {
		r.failStreak = 1
		r.lastFailedTask = task.Text
	}
	r.lastVerdict = verdict
	if verdict.Reason == verify.ReasonRegression {
		r.state = stateFixTests
	}

	r.store.Append(progress.Entry{
		Iteration:  iteration,
		Task:       task.Text,
		Status:     progress.StatusFailed,
		Message:    string(verdict.Reason),
		TestOutput: verdict.RawOutput,
	})

	switch verdict.Reason {
	case verify.ReasonTestsNotWritten:
		r.disp.Error("verification failed: no test files were added or changed")
	default:
		r.disp.Error("verification failed: %d new failing tests", len(verdict.Regressions))
		for _, name := range verdict.Regressions {
			r.disp.Subtle("  %s", name)
		}
	}

	if r.failStreak >= r.cfg.FailureLimit {
		r.store.Append(progress.Entry{
			Iteration: iteration,
			Task:      task.Text,
			Status:    progress.StatusAborted,
			Message:   "failure limit reached",
		})
		return &FailureLimitError{Task: task.Text, Count: r.failStreak}
	}
	return nil
}

// handleSentinel runs when the agent claims the whole checklist is done. The
// claim is only trusted after re-parsing the document and re-running
// verification.
func (r *Runner) handleSentinel(ctx context.Context, iteration int) (bool, error) {
	tasks, err := checklist.ParseFile(r.cfg.TaskList)
	if err != nil {
		return false, &ConfigError{Msg: err.Error()}
	}
	if remaining := checklist.CountIncomplete(tasks); remaining > 0 {
		r.disp.Warn("agent reported completion but %d tasks remain", remaining)
		return false, nil
	}
	return r.confirmComplete(ctx, iteration)
}

// confirmComplete runs the final verification over a fully checked list. A
// failure is recorded against the last task so the next iteration re-drives
// it with the failure output, under the normal streak accounting.
func (r *Runner) confirmComplete(ctx context.Context, iteration int) (bool, error) {
	verdict, err := r.verifier.Check(ctx)
	if err != nil {
		return false, &ConfigError{Msg: err.Error()}
	}
	if verdict.Passed {
		r.store.Append(progress.Entry{Iteration: iteration, Status: progress.StatusCompleted})
		r.disp.Success("all tasks complete")
		return true, nil
	}

	r.disp.Warn("final verification failed (%s)", verdict.Reason)
	tasks, perr := checklist.ParseFile(r.cfg.TaskList)
	if perr != nil {
		return false, &ConfigError{Msg: perr.Error()}
	}
	if len(tasks) == 0 {
		return false, nil
	}
	return false, r.recordFailure(iteration, tasks[len(tasks)-1], verdict)
}

// autoFix tries to repair a dirty baseline before task work starts. Success
// tightens the baseline to clean; giving up leaves differential verification
// to tolerate the pre-existing failures.
func (r *Runner) autoFix(ctx context.Context) error {
	baseline := r.verifier.Baseline()
	r.disp.Warn("attempting to fix failing tests before starting (%d attempts)", r.cfg.AutoFixAttempts)

	for attempt := 1; attempt <= r.cfg.AutoFixAttempts; attempt++ {
		r.store.Append(progress.Entry{
			Status:  progress.StatusAutoFixAttempt,
			Message: fmt.Sprintf("attempt %d of %d", attempt, r.cfg.AutoFixAttempts),
		})

		res, err := r.invoke(ctx, autoFixPrompt(baseline.RawOutput, r.cfg.TestCommand, attempt, r.cfg.AutoFixAttempts))
		if err != nil {
			return err
		}
		if !res.Success {
			return &InvocationError{ExitCode: res.ExitCode, Output: res.Output}
		}

		clean, output, err := r.verifier.RunTests(ctx)
		if err != nil {
			return &ConfigError{Msg: err.Error()}
		}
		if clean {
			r.verifier.MarkFixed()
			r.store.Append(progress.Entry{Status: progress.StatusAutoFixSucceeded})
			r.disp.Success("baseline fixed; all tests passing")
			return nil
		}
		baseline = &verify.Baseline{RawOutput: output, FailingTests: verify.ExtractFailingTests(output)}
	}

	r.store.Append(progress.Entry{Status: progress.StatusAutoFixGaveUp})
	r.disp.Warn("could not fix failing tests; continuing with them as the baseline")
	return nil
}
