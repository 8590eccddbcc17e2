package verify

import (
	"context"
	"testing"
)

// scriptedRunner returns queued test-command results in order, repeating the
// last one when the queue empties.
type scriptedRunner struct {
	results []struct {
		code   int
		output string
	}
	calls int
}

func (s *scriptedRunner) run(ctx context.Context, command string) (int, string, error) {
	i := s.calls
	if i >= len(s.results) {
		i = len(s.results) - 1
	}
	s.calls++
	r := s.results[i]
	return r.code, r.output, nil
}

func (s *scriptedRunner) add(code int, output string) *scriptedRunner {
	s.results = append(s.results, struct {
		code   int
		output string
	}{code, output})
	return s
}

// newTestEngine builds an engine with a scripted test command and a stubbed
// tests-written check.
func newTestEngine(t *testing.T, runner *scriptedRunner, changedTests []string) *Engine {
	t.Helper()
	e := NewEngine("make test", ".", runner.run)
	e.changedTestFiles = func(dir string) ([]string, error) {
		return changedTests, nil
	}
	return e
}

func TestCaptureBaseline(t *testing.T) {
	t.Parallel()

	runner := (&scriptedRunner{}).add(1, "--- FAIL: TestA (0.00s)\n--- FAIL: TestB (0.00s)\nFAIL")
	e := newTestEngine(t, runner, []string{"x_test.go"})

	b, err := e.CaptureBaseline(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.ExitCode != 1 || b.Clean() {
		t.Errorf("baseline exit = %d, want dirty 1", b.ExitCode)
	}
	if len(b.FailingTests) != 2 {
		t.Errorf("failing set = %v, want {TestA, TestB}", b.FailingTests)
	}
	if _, ok := b.FailingTests["TestA"]; !ok {
		t.Error("TestA missing from baseline set")
	}
}

func TestCheckAgainstDirtyBaseline(t *testing.T) {
	t.Parallel()

	t.Run("subset of baseline failures passes", func(t *testing.T) {
		t.Parallel()
		runner := (&scriptedRunner{}).
			add(1, "--- FAIL: TestA (0.00s)\n--- FAIL: TestB (0.00s)").
			add(1, "--- FAIL: TestA (0.00s)")
		e := newTestEngine(t, runner, []string{"x_test.go"})
		if _, err := e.CaptureBaseline(context.Background()); err != nil {
			t.Fatalf("baseline: %v", err)
		}

		v, err := e.Check(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !v.Passed {
			t.Errorf("verdict = %+v, want pass despite nonzero exit", v)
		}
	})

	t.Run("new failure is a regression", func(t *testing.T) {
		t.Parallel()
		runner := (&scriptedRunner{}).
			add(1, "--- FAIL: TestA (0.00s)\n--- FAIL: TestB (0.00s)").
			add(1, "--- FAIL: TestA (0.00s)\n--- FAIL: TestC (0.00s)")
		e := newTestEngine(t, runner, []string{"x_test.go"})
		if _, err := e.CaptureBaseline(context.Background()); err != nil {
			t.Fatalf("baseline: %v", err)
		}

		v, err := e.Check(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v.Passed {
			t.Fatalf("verdict = %+v, want fail", v)
		}
		if v.Reason != ReasonRegression {
			t.Errorf("reason = %q, want %q", v.Reason, ReasonRegression)
		}
		if len(v.Regressions) != 1 || v.Regressions[0] != "TestC" {
			t.Errorf("regressions = %v, want [TestC]", v.Regressions)
		}
	})
}

func TestCheckAgainstCleanBaseline(t *testing.T) {
	t.Parallel()

	t.Run("any failure blocks", func(t *testing.T) {
		t.Parallel()
		runner := (&scriptedRunner{}).
			add(0, "ok").
			add(1, "--- FAIL: TestNew (0.00s)")
		e := newTestEngine(t, runner, []string{"x_test.go"})
		if _, err := e.CaptureBaseline(context.Background()); err != nil {
			t.Fatalf("baseline: %v", err)
		}

		v, err := e.Check(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v.Passed || v.Reason != ReasonRegression {
			t.Errorf("verdict = %+v, want regression fail", v)
		}
	})

	t.Run("nonzero exit without extractable names still blocks", func(t *testing.T) {
		t.Parallel()
		runner := (&scriptedRunner{}).
			add(0, "ok").
			add(2, "build error: syntax error on line 3")
		e := newTestEngine(t, runner, []string{"x_test.go"})
		if _, err := e.CaptureBaseline(context.Background()); err != nil {
			t.Fatalf("baseline: %v", err)
		}

		v, err := e.Check(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v.Passed {
			t.Errorf("verdict = %+v, want fail", v)
		}
	})

	t.Run("clean run passes", func(t *testing.T) {
		t.Parallel()
		runner := (&scriptedRunner{}).add(0, "ok")
		e := newTestEngine(t, runner, []string{"x_test.go"})
		if _, err := e.CaptureBaseline(context.Background()); err != nil {
			t.Fatalf("baseline: %v", err)
		}

		v, err := e.Check(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !v.Passed {
			t.Errorf("verdict = %+v, want pass", v)
		}
	})
}

func TestCheckTestsNotWritten(t *testing.T) {
	t.Parallel()

	runner := (&scriptedRunner{}).add(0, "ok")
	e := newTestEngine(t, runner, nil)
	if _, err := e.CaptureBaseline(context.Background()); err != nil {
		t.Fatalf("baseline: %v", err)
	}
	testRunsBefore := runner.calls

	v, err := e.Check(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Passed {
		t.Fatalf("verdict = %+v, want fail", v)
	}
	if v.Reason != ReasonTestsNotWritten {
		t.Errorf("reason = %q, want %q", v.Reason, ReasonTestsNotWritten)
	}
	if runner.calls != testRunsBefore {
		t.Error("tests must not run when the tests-written check fails")
	}
}

func TestMarkFixed(t *testing.T) {
	t.Parallel()

	runner := (&scriptedRunner{}).
		add(1, "--- FAIL: TestA (0.00s)").
		add(1, "--- FAIL: TestA (0.00s)")
	e := newTestEngine(t, runner, []string{"x_test.go"})
	if _, err := e.CaptureBaseline(context.Background()); err != nil {
		t.Fatalf("baseline: %v", err)
	}

	// Against the dirty baseline TestA is pre-existing and passes...
	v, err := e.Check(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !v.Passed {
		t.Fatalf("verdict = %+v, want pass", v)
	}

	// ...but after a successful auto-fix the baseline is clean and the
	// same failure becomes a regression.
	e.MarkFixed()
	if !e.Baseline().Clean() {
		t.Fatal("baseline should be clean after MarkFixed")
	}
	v, err = e.Check(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Passed {
		t.Errorf("verdict = %+v, want regression fail", v)
	}
}
