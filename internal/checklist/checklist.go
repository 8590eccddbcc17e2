// Package checklist parses and mutates markdown task-list documents.
//
// A task line is an optionally-indented checkbox item:
//
//	- [ ] implement the parser
//	- [x] write the design doc
//
// Mutations rewrite a single byte (the bracket character) so that the rest
// of the document survives untouched.
package checklist

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// Task is a single checklist item. Position is the zero-based line index in
// the document the task was parsed from; it is only valid against that
// snapshot of the document.
type Task struct {
	Text      string
	Completed bool
	Position  int
}

var taskLineRe = regexp.MustCompile(`^(\s*-\s*\[)([ xX])(\]\s*)(.+)$`)

// Parse extracts all checklist tasks from a document.
func Parse(doc string) []Task {
	var tasks []Task
	for i, line := range strings.Split(doc, "\n") {
		m := taskLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		tasks = append(tasks, Task{
			Text:      strings.TrimSpace(m[4]),
			Completed: m[2] != " ",
			Position:  i,
		})
	}
	return tasks
}

// ParseFile reads and parses a task-list document. A missing file yields an
// empty task list, not an error.
func ParseFile(path string) ([]Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read task list: %w", err)
	}
	return Parse(string(data)), nil
}

// FirstIncomplete returns the first task that is not completed.
func FirstIncomplete(tasks []Task) (Task, bool) {
	for _, t := range tasks {
		if !t.Completed {
			return t, true
		}
	}
	return Task{}, false
}

// CountIncomplete returns the number of tasks that are not completed.
func CountIncomplete(tasks []Task) int {
	count := 0
	for _, t := range tasks {
		if !t.Completed {
			count++
		}
	}
	return count
}

// AllComplete reports whether the list is non-empty and every task is
// completed. An empty list is never "complete".
func AllComplete(tasks []Task) bool {
	if len(tasks) == 0 {
		return false
	}
	for _, t := range tasks {
		if !t.Completed {
			return false
		}
	}
	return true
}

// MarkComplete flips the bracket character of the task's line from space to
// 'x', leaving every other byte of the document identical. Marking an
// already-complete task is a no-op, as is a document that no longer exists.
// Returns an error if the line at the task's position no longer parses as a
// checklist item.
func MarkComplete(path string, t Task) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read task list: %w", err)
	}

	// Split keeping line terminators so the rewrite is byte-exact.
	lines := strings.SplitAfter(string(data), "\n")
	if t.Position < 0 || t.Position >= len(lines) {
		return fmt.Errorf("task position %d out of range", t.Position)
	}

	line := lines[t.Position]
	body := strings.TrimRight(line, "\r\n")
	suffix := line[len(body):]

	m := taskLineRe.FindStringSubmatchIndex(body)
	if m == nil {
		return fmt.Errorf("line %d is no longer a checklist item", t.Position)
	}

	// Submatch 2 is the bracket character.
	start := m[4]
	if body[start] != ' ' {
		// Already complete. Idempotent.
		return nil
	}
	lines[t.Position] = body[:start] + "x" + body[start+1:] + suffix

	return os.WriteFile(path, []byte(strings.Join(lines, "")), 0644)
}
