package progress

import (
	"bufio"
	"encoding/json"
	"os"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir(), "myproject")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return s
}

func TestAppendIsAppendOnly(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)

	entries := []Entry{
		{Iteration: 1, Task: "task A", Status: StatusStarted},
		{Iteration: 1, Task: "task A", Status: StatusFailed, Message: "regression", TestOutput: "--- FAIL: TestX"},
		{Iteration: 2, Task: "task A", Status: StatusPassed, ChangedFiles: []string{"x_test.go"}},
	}
	for _, e := range entries {
		if err := s.Append(e); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	f, err := os.Open(s.LogPath())
	if err != nil {
		t.Fatalf("failed to open log: %v", err)
	}
	defer f.Close()

	var got []Entry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("bad log line %q: %v", scanner.Text(), err)
		}
		got = append(got, e)
	}

	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}
	for i, e := range got {
		if e.Status != entries[i].Status {
			t.Errorf("entry %d status = %q, want %q", i, e.Status, entries[i].Status)
		}
		if e.RunID != s.RunID() {
			t.Errorf("entry %d runId = %q, want %q", i, e.RunID, s.RunID())
		}
		if e.Timestamp.IsZero() {
			t.Errorf("entry %d missing timestamp", i)
		}
	}
	if got[1].TestOutput != "--- FAIL: TestX" {
		t.Errorf("test output not preserved: %+v", got[1])
	}
}

func TestWriteAndReadResume(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)

	if err := s.WriteResume(3, "implement the parser"); err != nil {
		t.Fatalf("write resume: %v", err)
	}
	// Overwritten every iteration.
	if err := s.WriteResume(4, "wire up the CLI"); err != nil {
		t.Fatalf("write resume: %v", err)
	}

	iter, task, err := s.ReadResume()
	if err != nil {
		t.Fatalf("read resume: %v", err)
	}
	if iter != 4 {
		t.Errorf("iteration = %d, want 4", iter)
	}
	if task != "wire up the CLI" {
		t.Errorf("task = %q, want %q", task, "wire up the CLI")
	}

	iterPath, taskPath := s.ResumePaths()
	for _, p := range []string{iterPath, taskPath} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("resume file %s missing: %v", p, err)
		}
	}
}

func TestReadResumeWithoutWrites(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	iter, task, err := s.ReadResume()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if iter != 0 || task != "" {
		t.Errorf("got %d/%q, want zero values", iter, task)
	}
}

func TestTail(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	for i := 1; i <= 5; i++ {
		if err := s.Append(Entry{Iteration: i, Status: StatusPassed}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	got, err := s.Tail(2)
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].Iteration != 4 || got[1].Iteration != 5 {
		t.Errorf("tail = %d,%d, want 4,5", got[0].Iteration, got[1].Iteration)
	}

	empty, err := NewStore(t.TempDir(), "other")
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	if entries, err := empty.Tail(10); err != nil || len(entries) != 0 {
		t.Errorf("empty tail = %v, %v; want none", entries, err)
	}
}
