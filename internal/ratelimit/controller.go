package ratelimit

import (
	"time"
)

// Switcher is the slice of the engine surface the controller needs to decide
// a fallback: whether the engine can switch models at all, and the switch
// itself.
type Switcher interface {
	Name() string
	CurrentModel() string
	SupportsFallback() bool
	SwitchToFallback() bool
}

// Policy configures soft-limit retry behavior.
type Policy struct {
	// MaxSoftRetries is the number of backoff retries before a soft limit
	// escalates to the hard-limit path.
	MaxSoftRetries int
	// BaseDelay is the wait for the first retry; attempt k (0-indexed)
	// waits BaseDelay * 2^k.
	BaseDelay time.Duration
}

// DefaultPolicy returns the stock soft-retry policy.
func DefaultPolicy() Policy {
	return Policy{MaxSoftRetries: 3, BaseDelay: 30 * time.Second}
}

// Delay returns the backoff wait for the given 0-indexed attempt.
func (p Policy) Delay(attempt int) time.Duration {
	return p.BaseDelay * time.Duration(1<<attempt)
}

// Action tells the caller how to proceed after a rate-limit hit.
type Action int

const (
	// Retry repeats the same iteration after waiting Decision.Wait.
	Retry Action = iota
	// Switched means the engine moved to its fallback model; repeat the
	// same iteration immediately.
	Switched
	// Abort means no recovery remains; the run must stop.
	Abort
)

// Decision is the controller's verdict for a single rate-limit hit.
type Decision struct {
	Action Action
	Wait   time.Duration
	Reason string
}

// Controller tracks rate-limit recovery state across a run: the soft-retry
// count for the current iteration and whether the one-shot fallback switch
// has been spent.
type Controller struct {
	policy       Policy
	softRetries  int
	usedFallback bool
}

// NewController creates a controller with the given policy.
func NewController(policy Policy) *Controller {
	return &Controller{policy: policy}
}

// OnRateLimit decides the recovery for a classified hit. Soft hits retry
// with exponential backoff until the policy's budget is spent, then fall
// through to the hard path. Hard hits switch to the fallback model exactly
// once per run if the engine supports it; otherwise the run aborts.
func (c *Controller) OnRateLimit(sev Severity, eng Switcher) Decision {
	if sev == Soft && c.softRetries < c.policy.MaxSoftRetries {
		wait := c.policy.Delay(c.softRetries)
		c.softRetries++
		return Decision{
			Action: Retry,
			Wait:   wait,
			Reason: "soft rate limit, backing off",
		}
	}

	// Hard limit, or soft retries exhausted.
	if !c.usedFallback && eng.SupportsFallback() && eng.SwitchToFallback() {
		c.usedFallback = true
		c.softRetries = 0
		return Decision{
			Action: Switched,
			Reason: "switched to fallback model " + eng.CurrentModel(),
		}
	}

	return Decision{
		Action: Abort,
		Reason: "no fallback available",
	}
}

// ResetSoft clears the soft-retry count. Call it after any iteration that
// completes without hitting a soft limit.
func (c *Controller) ResetSoft() {
	c.softRetries = 0
}

// UsingFallback reports whether the one-shot fallback switch has been spent.
func (c *Controller) UsingFallback() bool {
	return c.usedFallback
}
