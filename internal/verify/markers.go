package verify

import (
	"regexp"
	"strings"
)

// failureMarkers are ordered textual patterns that pull a failing test name
// out of raw runner output. One family per common runner style; submatch 1
// is the test name. No structured output formats are parsed, the contract
// with the test command is exit code plus free text.
var failureMarkers = []*regexp.Regexp{
	// go test: --- FAIL: TestName (0.00s)
	regexp.MustCompile(`(?m)^--- FAIL: (\S+)`),
	// pytest: FAILED tests/test_x.py::test_name - AssertionError
	regexp.MustCompile(`(?m)^FAILED\s+(\S+)`),
	// unittest and friends: FAIL: test_name (module.Class)
	regexp.MustCompile(`(?m)^FAIL:?\s+(\S+)`),
	// glyph runners (jest, mocha, vitest): ✕ adds numbers (3 ms)
	regexp.MustCompile(`(?m)^\s*[✗✖✕✘]\s+(.+?)\s*$`),
	// TAP: not ok 3 - name of the test
	regexp.MustCompile(`(?m)^not ok\s+\d+\s*-?\s*(.+?)\s*$`),
}

// trailingJunk trims timing and location suffixes from extracted names,
// e.g. "should work (3 ms)" or "TestFoo (0.01s)".
var trailingJunk = regexp.MustCompile(`\s*\(\d[^)]*\)\s*$`)

// ExtractFailingTests derives the deduplicated set of failing test names
// from raw test-command output.
func ExtractFailingTests(output string) map[string]struct{} {
	failing := make(map[string]struct{})
	for _, re := range failureMarkers {
		for _, m := range re.FindAllStringSubmatch(output, -1) {
			name := strings.TrimSpace(trailingJunk.ReplaceAllString(m[1], ""))
			if name != "" {
				failing[name] = struct{}{}
			}
		}
	}
	return failing
}
