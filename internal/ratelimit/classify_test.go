package ratelimit

import "testing"

func TestClassify(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		output string
		want   Severity
		rule   string
	}{
		{"quota exceeded is hard", "Error: monthly quota exceeded for this key", Hard, "quota"},
		{"quota reached is hard", "your quota has been reached", Hard, "quota"},
		{"quota exhausted is hard", "API quota exhausted, upgrade required", Hard, "quota"},
		{"plan exclusion is hard", "this model is not included in your current plan", Hard, "not-in-plan"},
		{"rate limit is soft", "rate limit exceeded, retry shortly", Soft, "rate-limit"},
		{"rate-limited spelling is soft", "you have been rate-limited", Soft, "rate-limit"},
		{"http 429 is soft", "request failed with status 429", Soft, "http-429"},
		{"status code 429 is soft", "HTTP: 429 returned by upstream", Soft, "http-429"},
		{"too many requests is soft", "429 Too Many Requests", Soft, "too-many-requests"},
		{"over capacity is soft", "the service is over capacity right now", Soft, "capacity"},
		{"at capacity is soft", "we are currently at capacity", Soft, "capacity"},
		{"clean output", "all 42 tests passed\ncommitted changes", None, ""},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			sev, rule := Classify(tc.output)
			if sev != tc.want {
				t.Errorf("Classify(%q) severity = %v, want %v", tc.output, sev, tc.want)
			}
			if rule != tc.rule {
				t.Errorf("Classify(%q) rule = %q, want %q", tc.output, rule, tc.rule)
			}
		})
	}
}

// The classifier must not fire on ordinary prose that happens to contain
// indicator words without their required context.
func TestClassifyFalsePositiveGuards(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		output string
	}{
		{"bare capacity", "increased the channel capacity to 64"},
		{"capacity planning prose", "wrote a capacity estimate in the design doc"},
		{"bare exhausted", "the worker pool is exhausted, scaling up"},
		{"bare reached", "reached the end of the file"},
		{"429 as plain number", "processed 429 records in 3s"},
		{"quota without verb", "checked the quota configuration"},
		{"plan without exclusion", "updated the project plan"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if sev, rule := Classify(tc.output); sev != None {
				t.Errorf("Classify(%q) = %v via rule %q, want None", tc.output, sev, rule)
			}
			if Detect(tc.output) {
				t.Errorf("Detect(%q) = true, want false", tc.output)
			}
		})
	}
}

func TestClassifyOrderPrefersQuota(t *testing.T) {
	t.Parallel()

	// Real agent errors often mention both; quota phrasing must win so the
	// run falls back instead of retrying forever.
	out := "rate limit error: quota exceeded for the current billing period"
	sev, rule := Classify(out)
	if sev != Hard || rule != "quota" {
		t.Errorf("Classify(%q) = %v/%q, want Hard/quota", out, sev, rule)
	}
}

func TestDetect(t *testing.T) {
	t.Parallel()

	if !Detect("upstream says too many requests") {
		t.Error("expected binary detection to fire")
	}
	if Detect("tests green, nothing to do") {
		t.Error("expected no detection on clean output")
	}
}
