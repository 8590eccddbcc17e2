// Package config loads the run configuration from .drover/config.yaml and
// merges command-line overrides on top.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultDir is the project-local directory holding config and run state.
const DefaultDir = ".drover"

// Duration wraps time.Duration so YAML values can be written as "30s"/"2m".
type Duration time.Duration

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration in its string form.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Engine selects and parameterizes the code-generation agent.
type Engine struct {
	// Name is "claude" or "command".
	Name string `yaml:"name"`
	// Model and FallbackModel apply to the claude engine.
	Model         string `yaml:"model,omitempty"`
	FallbackModel string `yaml:"fallbackModel,omitempty"`
	// Command and Args apply to the command engine.
	Command string   `yaml:"command,omitempty"`
	Args    []string `yaml:"args,omitempty"`
}

// Config is the full run configuration.
type Config struct {
	Project     string `yaml:"project"`
	TaskList    string `yaml:"taskList"`
	TestCommand string `yaml:"testCommand"`
	Engine      Engine `yaml:"engine"`

	MaxIterations   int      `yaml:"maxIterations"`
	FailureLimit    int      `yaml:"failureLimit"`
	SoftRetries     int      `yaml:"softRetries"`
	SoftRetryDelay  Duration `yaml:"softRetryDelay"`
	AutoFixAttempts int      `yaml:"autoFixAttempts"`
	IterationDelay  Duration `yaml:"iterationDelay"`
}

// Default returns a usable configuration for a project named after the
// current directory.
func Default() *Config {
	project := "project"
	if wd, err := os.Getwd(); err == nil {
		project = filepath.Base(wd)
	}
	return &Config{
		Project:         project,
		TaskList:        "TASKS.md",
		TestCommand:     "make test",
		Engine:          Engine{Name: "claude"},
		MaxIterations:   50,
		FailureLimit:    5,
		SoftRetries:     3,
		SoftRetryDelay:  Duration(30 * time.Second),
		AutoFixAttempts: 3,
		IterationDelay:  Duration(5 * time.Second),
	}
}

// Path returns the default config-file location.
func Path() string {
	return filepath.Join(DefaultDir, "config.yaml")
}

// Load reads the config file, layering it over the defaults. A missing file
// yields the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration to path, creating parent directories.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// Validate rejects configurations the runner cannot start with.
func (c *Config) Validate() error {
	if c.Project == "" {
		return fmt.Errorf("project name is required")
	}
	if c.TestCommand == "" {
		return fmt.Errorf("test command is required")
	}
	switch c.Engine.Name {
	case "claude":
	case "command":
		if c.Engine.Command == "" {
			return fmt.Errorf("command engine requires a command")
		}
	default:
		return fmt.Errorf("unknown engine %q", c.Engine.Name)
	}
	if c.MaxIterations <= 0 {
		return fmt.Errorf("maxIterations must be positive")
	}
	if c.FailureLimit <= 0 {
		return fmt.Errorf("failureLimit must be positive")
	}
	return nil
}
