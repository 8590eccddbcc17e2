package runner

import (
	"fmt"
	"strings"
)

// CompletionSentinel is the token the agent is told to print once every
// checklist item is done. The runner never trusts it alone; it re-parses the
// document and re-runs verification before finishing.
const CompletionSentinel = "DROVER_COMPLETE"

// taskPrompt drives one checklist task in normal mode.
func taskPrompt(task, taskList, testCommand string) string {
	var b strings.Builder

	b.WriteString("You are working through a task checklist one item at a time.\n\n")
	fmt.Fprintf(&b, "Current task:\n%s\n\n", task)
	b.WriteString("Instructions:\n")
	b.WriteString("- Implement only this task. Do not start other checklist items.\n")
	b.WriteString("- Write or update automated tests covering the change.\n")
	fmt.Fprintf(&b, "- Run the test suite with `%s` and make it pass before finishing.\n", testCommand)
	b.WriteString("- Commit your work with a descriptive message.\n")
	fmt.Fprintf(&b, "- The checklist lives in %s. Do not edit checkbox states; they are managed for you.\n", taskList)
	fmt.Fprintf(&b, "\nIf, after this task, every item in %s is complete, print the exact token %s on its own line.\n", taskList, CompletionSentinel)

	return b.String()
}

// singleTaskPrompt drives an ad-hoc task with no checklist behind it.
func singleTaskPrompt(task, testCommand string) string {
	var b strings.Builder

	b.WriteString("Complete the following task in this repository.\n\n")
	fmt.Fprintf(&b, "Task:\n%s\n\n", task)
	b.WriteString("Instructions:\n")
	b.WriteString("- Write or update automated tests covering the change.\n")
	fmt.Fprintf(&b, "- Run the test suite with `%s` and make it pass before finishing.\n", testCommand)
	b.WriteString("- Commit your work with a descriptive message.\n")

	return b.String()
}

// fixTestsPrompt re-drives the current task after a test regression, carrying
// the raw failure output so the agent sees exactly what broke.
func fixTestsPrompt(task string, regressions []string, testOutput, testCommand string) string {
	var b strings.Builder

	b.WriteString("Your previous change broke tests that were passing before it.\n\n")
	fmt.Fprintf(&b, "Task you were working on:\n%s\n\n", task)
	fmt.Fprintf(&b, "Newly failing tests:\n")
	for _, name := range regressions {
		fmt.Fprintf(&b, "- %s\n", name)
	}
	fmt.Fprintf(&b, "\nTest output:\n```\n%s\n```\n\n", strings.TrimSpace(testOutput))
	b.WriteString("Fix the regressions without deleting or skipping the failing tests. ")
	fmt.Fprintf(&b, "Run `%s` to confirm they pass again, then commit the fix.\n", testCommand)

	return b.String()
}

// missingTestsPrompt re-drives the current task when no test files changed.
func missingTestsPrompt(task, testCommand string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You completed work on this task but did not add or modify any test files:\n%s\n\n", task)
	b.WriteString("Every task must be covered by tests. Add tests exercising the change you made, ")
	fmt.Fprintf(&b, "run `%s` to confirm they pass, and commit them.\n", testCommand)

	return b.String()
}

// autoFixPrompt asks the agent to repair a dirty baseline before the
// checklist work starts.
func autoFixPrompt(testOutput, testCommand string, attempt, max int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "The test suite is failing before any new work has started (fix attempt %d of %d).\n\n", attempt, max)
	fmt.Fprintf(&b, "Output of `%s`:\n```\n%s\n```\n\n", testCommand, strings.TrimSpace(testOutput))
	b.WriteString("Fix the failing tests. Do not delete or skip them; make them pass. ")
	fmt.Fprintf(&b, "Run `%s` to confirm, then commit the fix.\n", testCommand)

	return b.String()
}
