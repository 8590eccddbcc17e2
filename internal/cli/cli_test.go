package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/drover-sh/drover/internal/engine"
)

func newFlagCommand(t *testing.T) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	addRunFlags(cmd)
	return cmd
}

func setFlag(t *testing.T, cmd *cobra.Command, name, value string) {
	t.Helper()
	if err := cmd.Flags().Set(name, value); err != nil {
		t.Fatalf("set --%s: %v", name, err)
	}
}

func TestLoadRunConfigOverlaysFlags(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	doc := "project: demo\ntestCommand: make test\nmaxIterations: 20\n"
	if err := os.WriteFile(cfgPath, []byte(doc), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cmd := newFlagCommand(t)
	setFlag(t, cmd, "config", cfgPath)
	setFlag(t, cmd, "test-command", "go test ./...")
	setFlag(t, cmd, "max-iterations", "5")

	cfg, err := loadRunConfig(cmd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.TestCommand != "go test ./..." {
		t.Errorf("testCommand = %q, flag should win", cfg.TestCommand)
	}
	if cfg.MaxIterations != 5 {
		t.Errorf("maxIterations = %d, flag should win", cfg.MaxIterations)
	}
	// Untouched fields come from the file.
	if cfg.Project != "demo" {
		t.Errorf("project = %q, want demo", cfg.Project)
	}
}

func TestLoadRunConfigRejectsInvalid(t *testing.T) {
	cmd := newFlagCommand(t)
	setFlag(t, cmd, "config", filepath.Join(t.TempDir(), "absent.yaml"))
	setFlag(t, cmd, "engine", "hal9000")

	if _, err := loadRunConfig(cmd); err == nil {
		t.Error("expected validation error for unknown engine")
	}
}

func TestBuildEngine(t *testing.T) {
	cmd := newFlagCommand(t)
	setFlag(t, cmd, "config", filepath.Join(t.TempDir(), "absent.yaml"))
	setFlag(t, cmd, "engine", "command")

	cfg, err := loadRunConfig(cmd)
	if err == nil {
		t.Fatal("command engine without a command should not validate")
	}

	setFlag(t, cmd, "engine", "claude")
	setFlag(t, cmd, "model", "sonnet")
	cfg, err = loadRunConfig(cmd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	eng := buildEngine(cfg)
	if _, ok := eng.(*engine.ClaudeEngine); !ok {
		t.Errorf("engine = %T, want *engine.ClaudeEngine", eng)
	}
	if eng.CurrentModel() != "sonnet" {
		t.Errorf("model = %q, want sonnet", eng.CurrentModel())
	}
}

func TestPrerequisiteErrorIncludesHelp(t *testing.T) {
	t.Parallel()

	err := &PrerequisiteError{
		Check:   "Git repository",
		Message: "Not a git repository",
		Help:    "Run 'git init' first.",
	}
	msg := err.Error()
	if !strings.Contains(msg, "Not a git repository") || !strings.Contains(msg, "git init") {
		t.Errorf("error should carry message and help: %q", msg)
	}
}
