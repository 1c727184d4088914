package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"
)

// Config holds all configurable chronicle settings.
type Config struct {
	SnapshotIntervalMinutes int      `json:"snapshot_interval_minutes"` // file snapshot flush interval
	PollIntervalMinutes     int      `json:"poll_interval_minutes"`     // git poll interval
	DebounceSeconds         int      `json:"debounce_seconds"`          // quiescence threshold before a file change is flushed
	CommitWindow            int      `json:"commit_window"`             // commits fetched per poll
	IgnorePatterns          []string `json:"ignore_patterns"`
	DatabasePath            string   `json:"database_path"`  // override default store location
	DefaultFormat           string   `json:"default_format"` // "markdown" | "json"
	OutputDir               string   `json:"output_dir"`
}

// Defaults returns sensible default configuration values.
func Defaults() Config {
	return Config{
		SnapshotIntervalMinutes: 30,
		PollIntervalMinutes:     5,
		DebounceSeconds:         2,
		CommitWindow:            5,
		IgnorePatterns:          []string{},
		DefaultFormat:           "markdown",
		OutputDir:               ".",
	}
}

// SnapshotInterval returns the snapshot flush interval as a duration.
func (c Config) SnapshotInterval() time.Duration {
	return time.Duration(c.SnapshotIntervalMinutes) * time.Minute
}

// PollInterval returns the git poll interval as a duration.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMinutes) * time.Minute
}

// Debounce returns the file stability threshold as a duration.
func (c Config) Debounce() time.Duration {
	return time.Duration(c.DebounceSeconds) * time.Second
}

// LoadGlobal reads ~/.config/chronicle/config.json.
// Returns defaults if the file is absent.
func LoadGlobal() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	path := filepath.Join(home, ".config", "chronicle", "config.json")
	return loadFile(path, true)
}

// LoadProject reads .chronicleconfig in the current working directory.
// Returns nil (no error) if the file is absent.
func LoadProject() (*Config, error) {
	return loadFile(".chronicleconfig", false)
}

// loadFile reads and parses a JSON config file at path.
// If returnDefaults is true, returns defaults when the file is absent.
// If returnDefaults is false, returns nil when the file is absent.
func loadFile(path string, returnDefaults bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if returnDefaults {
				d := Defaults()
				return &d, nil
			}
			return nil, nil
		}
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return &cfg, nil
}

// Merge combines global and project configs, with project taking precedence.
// Missing keys fall back to global, then defaults.
func Merge(global, project *Config) Config {
	result := Defaults()

	apply := func(c *Config) {
		if c == nil {
			return
		}
		if c.SnapshotIntervalMinutes > 0 {
			result.SnapshotIntervalMinutes = c.SnapshotIntervalMinutes
		}
		if c.PollIntervalMinutes > 0 {
			result.PollIntervalMinutes = c.PollIntervalMinutes
		}
		if c.DebounceSeconds > 0 {
			result.DebounceSeconds = c.DebounceSeconds
		}
		if c.CommitWindow > 0 {
			result.CommitWindow = c.CommitWindow
		}
		if len(c.IgnorePatterns) > 0 {
			result.IgnorePatterns = c.IgnorePatterns
		}
		if c.DatabasePath != "" {
			result.DatabasePath = c.DatabasePath
		}
		if c.DefaultFormat != "" {
			result.DefaultFormat = c.DefaultFormat
		}
		if c.OutputDir != "" {
			result.OutputDir = c.OutputDir
		}
	}

	// Global values over defaults, then project values over global.
	apply(global)
	apply(project)

	return result
}

// ParseError is returned when a config file exists but cannot be parsed.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return "failed to parse config file " + e.Path + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
