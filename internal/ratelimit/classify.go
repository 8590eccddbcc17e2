// Package ratelimit interprets agent output for rate-limit indicators and
// decides how a run recovers from them: exponential backoff for transient
// throttling, a one-shot model fallback for quota exhaustion.
package ratelimit

import "regexp"

// Severity describes how a rate-limit hit should be handled.
type Severity int

const (
	// None means no rate-limit indicator was found.
	None Severity = iota
	// Soft is transient throttling, recoverable by waiting and retrying.
	Soft
	// Hard is quota or billing exhaustion, not resolved by waiting.
	Hard
)

func (s Severity) String() string {
	switch s {
	case Soft:
		return "soft"
	case Hard:
		return "hard"
	default:
		return "none"
	}
}

// rule is a single ordered classification entry. Patterns carry their own
// context requirements so that ordinary prose ("the pool is exhausted",
// "capacity planning") cannot trip them.
type rule struct {
	name     string
	severity Severity
	re       *regexp.Regexp
}

// Rules are checked in order; the first hit wins. Quota and billing phrasing
// is hard, throttling and capacity phrasing is soft.
var rules = []rule{
	{"quota", Hard, regexp.MustCompile(`(?i)quota\s+(?:has\s+been\s+)?(?:exceeded|reached|exhausted)`)},
	{"not-in-plan", Hard, regexp.MustCompile(`(?i)not\s+included\s+in\s+(?:your|the)\s+(?:\w+\s+)?plan`)},
	{"rate-limit", Soft, regexp.MustCompile(`(?i)rate[\s_-]?limit`)},
	{"http-429", Soft, regexp.MustCompile(`(?i)(?:http|status(?:\s+code)?|error)[:\s]+429\b`)},
	{"too-many-requests", Soft, regexp.MustCompile(`(?i)too\s+many\s+requests`)},
	{"capacity", Soft, regexp.MustCompile(`(?i)(?:over|at)\s+capacity\b`)},
}

// Classify scans output against the ordered rule set and returns the
// severity of the first matching rule along with the rule's name. Returns
// (None, "") when nothing matches.
func Classify(output string) (Severity, string) {
	for _, r := range rules {
		if r.re.MatchString(output) {
			return r.severity, r.name
		}
	}
	return None, ""
}

// Detect is the binary strategy: it reports whether any rate-limit indicator
// is present at all, without distinguishing severity. Engines that cannot
// classify severity use this and let the controller treat every hit the same.
func Detect(output string) bool {
	sev, _ := Classify(output)
	return sev != None
}
