// Package git answers the one version-control question the verification
// gate asks: did any test files change in the working tree, the index, or
// the most recent commit?
package git

import (
	"os/exec"
	"path"
	"regexp"
	"strings"
)

// testFilePatterns covers test-file naming conventions across the common
// ecosystems. Matched against the path's base name.
var testFilePatterns = []*regexp.Regexp{
	regexp.MustCompile(`_test\.go$`),
	regexp.MustCompile(`^test_.*\.py$`),
	regexp.MustCompile(`_test\.py$`),
	regexp.MustCompile(`\.(test|spec)\.[jt]sx?$`),
	regexp.MustCompile(`Test\.java$`),
	regexp.MustCompile(`_spec\.rb$`),
}

// testDirSegments are directory names that mark anything inside as a test.
var testDirSegments = map[string]bool{
	"tests":     true,
	"__tests__": true,
}

// IsTestFile reports whether a repository-relative path looks like a test
// file by naming convention.
func IsTestFile(p string) bool {
	base := path.Base(p)
	for _, re := range testFilePatterns {
		if re.MatchString(base) {
			return true
		}
	}
	for _, seg := range strings.Split(path.Dir(p), "/") {
		if testDirSegments[seg] {
			return true
		}
	}
	return false
}

// IsRepo reports whether dir is inside a git repository.
func IsRepo(dir string) bool {
	cmd := exec.Command("git", "rev-parse", "--git-dir")
	if dir != "" {
		cmd.Dir = dir
	}
	return cmd.Run() == nil
}

// ChangedTestFiles returns the test files changed in the working tree, the
// index, or the last commit, deduplicated. Any one of the three sources is
// enough to satisfy the tests-written check. A repository without commits
// contributes nothing from the last-commit source.
func ChangedTestFiles(dir string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string

	collect := func(paths []string) {
		for _, p := range paths {
			if p == "" || seen[p] || !IsTestFile(p) {
				continue
			}
			seen[p] = true
			out = append(out, p)
		}
	}

	worktree, err := gitLines(dir, "diff", "--name-only")
	if err != nil {
		return nil, err
	}
	collect(worktree)

	// Untracked files are part of the working-tree view: a brand-new test
	// file counts before it is ever staged.
	untracked, err := gitLines(dir, "ls-files", "--others", "--exclude-standard")
	if err != nil {
		return nil, err
	}
	collect(untracked)

	staged, err := gitLines(dir, "diff", "--name-only", "--cached")
	if err != nil {
		return nil, err
	}
	collect(staged)

	// diff-tree fails on a repository with no commits yet; that just means
	// there is no last commit to inspect. --root makes a root commit list
	// its files instead of printing nothing.
	if lastCommit, err := gitLines(dir, "diff-tree", "--no-commit-id", "--name-only", "-r", "--root", "HEAD"); err == nil {
		collect(lastCommit)
	}

	return out, nil
}

// ChangedFiles returns every path with uncommitted changes, staged or not,
// including untracked files. Used for progress-log entries.
func ChangedFiles(dir string) ([]string, error) {
	lines, err := gitLines(dir, "status", "--porcelain")
	if err != nil {
		return nil, err
	}

	var files []string
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		// Porcelain format: two status chars, a space, then the path.
		if len(line) > 3 {
			files = append(files, line[3:])
		} else {
			files = append(files, strings.TrimSpace(line))
		}
	}
	return files, nil
}

func gitLines(dir string, args ...string) ([]string, error) {
	cmd := exec.Command("git", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	output, err := cmd.Output()
	if err != nil {
		return nil, err
	}
	return strings.Split(strings.TrimRight(string(output), "\n"), "\n"), nil
}
