// Package progress persists two artifacts per project: an append-only JSON
// Lines log of iteration outcomes, and two small overwritten files holding
// the latest iteration index and active task for crash-resume visibility.
package progress

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Iteration outcome statuses recorded in the log.
const (
	StatusStarted          = "started"
	StatusPassed           = "passed"
	StatusFailed           = "failed"
	StatusRateLimited      = "rate_limited"
	StatusFallbackSwitch   = "fallback_switch"
	StatusAutoFixAttempt   = "autofix_attempt"
	StatusAutoFixSucceeded = "autofix_succeeded"
	StatusAutoFixGaveUp    = "autofix_gave_up"
	StatusCompleted        = "completed"
	StatusAborted          = "aborted"
)

// Entry is one progress-log record.
type Entry struct {
	Timestamp    time.Time `json:"timestamp"`
	RunID        string    `json:"runId"`
	Iteration    int       `json:"iteration,omitempty"`
	Task         string    `json:"task,omitempty"`
	Status       string    `json:"status"`
	Message      string    `json:"message,omitempty"`
	ChangedFiles []string  `json:"changedFiles,omitempty"`
	TestOutput   string    `json:"testOutput,omitempty"`
}

const (
	logFileName       = "progress.jsonl"
	iterationFileName = "iteration"
	taskFileName      = "current-task"
)

// Store writes progress and resume state for one project under a base
// directory: logs/<project>/progress.jsonl and state/<project>/{iteration,
// current-task}.
type Store struct {
	logDir   string
	stateDir string
	runID    string
}

// NewStore creates a store for the given project, creating its directories.
func NewStore(baseDir, project string) (*Store, error) {
	s := &Store{
		logDir:   filepath.Join(baseDir, "logs", project),
		stateDir: filepath.Join(baseDir, "state", project),
		runID:    uuid.NewString(),
	}
	for _, dir := range []string{s.logDir, s.stateDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create progress directory: %w", err)
		}
	}
	return s, nil
}

// RunID identifies this run in log entries.
func (s *Store) RunID() string { return s.runID }

// LogPath returns the location of the append-only progress log.
func (s *Store) LogPath() string {
	return filepath.Join(s.logDir, logFileName)
}

// ResumePaths returns the iteration and task resume-file locations. The
// signal handler reports these without doing any further I/O.
func (s *Store) ResumePaths() (iterationPath, taskPath string) {
	return filepath.Join(s.stateDir, iterationFileName),
		filepath.Join(s.stateDir, taskFileName)
}

// Append adds one entry to the progress log. The run ID and timestamp are
// filled in when absent.
func (s *Store) Append(e Entry) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	if e.RunID == "" {
		e.RunID = s.runID
	}

	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	f, err := os.OpenFile(s.LogPath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(data)
	return err
}

// WriteResume overwrites the resume breadcrumb with the current iteration
// index and active task text. Both files are written atomically.
func (s *Store) WriteResume(iteration int, task string) error {
	iterPath, taskPath := s.ResumePaths()
	if err := writeAtomic(iterPath, strconv.Itoa(iteration)); err != nil {
		return err
	}
	return writeAtomic(taskPath, task)
}

// ReadResume returns the last persisted iteration index and task text.
// Missing files yield zero values.
func (s *Store) ReadResume() (int, string, error) {
	iterPath, taskPath := s.ResumePaths()

	iteration := 0
	if data, err := os.ReadFile(iterPath); err == nil {
		iteration, err = strconv.Atoi(strings.TrimSpace(string(data)))
		if err != nil {
			return 0, "", fmt.Errorf("corrupt iteration file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return 0, "", err
	}

	task := ""
	if data, err := os.ReadFile(taskPath); err == nil {
		task = strings.TrimSpace(string(data))
	} else if !os.IsNotExist(err) {
		return 0, "", err
	}

	return iteration, task, nil
}

// Tail returns up to n of the most recent log entries, oldest first.
// Unparseable lines are skipped.
func (s *Store) Tail(n int) ([]Entry, error) {
	f, err := os.Open(s.LogPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if len(entries) > n {
		entries = entries[len(entries)-n:]
	}
	return entries, nil
}

// writeAtomic writes content via a temp file and rename so a crash never
// leaves a half-written resume file.
func writeAtomic(path, content string) error {
	tmp := fmt.Sprintf("%s.tmp.%d", path, os.Getpid())
	if err := os.WriteFile(tmp, []byte(content), 0644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
