// Package logger provides the shared slog logger for chronicle. All output
// goes to a log file rather than the terminal so monitor chatter never
// interleaves with command output.
package logger

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

var (
	root     *slog.Logger
	levelVar = new(slog.LevelVar)
	logFile  *os.File
	mu       sync.Mutex
	initDone bool
)

// DefaultLogPath returns the default log file path.
// Path: $XDG_STATE_HOME/chronicle/chronicle.log or ~/.local/state/chronicle/chronicle.log
func DefaultLogPath() (string, error) {
	base := os.Getenv("XDG_STATE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(base, "chronicle", "chronicle.log"), nil
}

// SetDebug enables or disables debug level logging.
func SetDebug(enabled bool) {
	if enabled {
		levelVar.Set(slog.LevelDebug)
	} else {
		levelVar.Set(slog.LevelInfo)
	}
}

// Init initializes the logger with a custom path. If not called, the default
// path is used on first log call. Calling Init twice is a no-op.
func Init(path string) error {
	mu.Lock()
	defer mu.Unlock()

	if initDone {
		return nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	logFile = f
	root = slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: levelVar}))
	initDone = true
	return nil
}

// ensureInit initializes the logger with default settings if needed.
// Caller must hold mu.
func ensureInit() {
	if initDone {
		return
	}

	path, err := DefaultLogPath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to resolve log path: %v\n", err)
		root = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: levelVar}))
		initDone = true
		return
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err == nil {
		if f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644); err == nil {
			logFile = f
			root = slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: levelVar}))
			initDone = true
			return
		}
	}

	// Fall back to stderr when the state directory is unusable.
	root = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: levelVar}))
	initDone = true
}

// WithComponent returns a logger tagged with a component name.
func WithComponent(name string) *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	ensureInit()
	return root.With("component", name)
}

// Debug logs at debug level using the root logger.
func Debug(msg string, args ...any) {
	mu.Lock()
	ensureInit()
	l := root
	mu.Unlock()
	l.Debug(msg, args...)
}

// Info logs at info level using the root logger.
func Info(msg string, args ...any) {
	mu.Lock()
	ensureInit()
	l := root
	mu.Unlock()
	l.Info(msg, args...)
}

// Warn logs at warn level using the root logger.
func Warn(msg string, args ...any) {
	mu.Lock()
	ensureInit()
	l := root
	mu.Unlock()
	l.Warn(msg, args...)
}

// Error logs at error level using the root logger.
func Error(msg string, args ...any) {
	mu.Lock()
	ensureInit()
	l := root
	mu.Unlock()
	l.Error(msg, args...)
}

// Close flushes and closes the underlying log file. Safe to call multiple times.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	initDone = false
	root = nil
}
