// Package tracker owns the session lifecycle: it enforces the
// single-active-session invariant, starts and stops the two capture monitors
// together, and aggregates their live status.
package tracker

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chronicle-dev/chronicle/internal/logger"
	"github.com/chronicle-dev/chronicle/internal/monitor"
	"github.com/chronicle-dev/chronicle/internal/store"
)

// ErrPathNotFound is returned by StartSession when the supplied project path
// does not resolve to an existing filesystem entry.
var ErrPathNotFound = errors.New("project path not found")

// ErrSessionConflict is returned by StartSession while another session is
// active. The wrapped message carries the active session's id.
var ErrSessionConflict = errors.New("session already active")

// StartResult is the payload of a successful StartSession. Warnings carry
// monitor attach failures; the session is active regardless (degraded mode).
type StartResult struct {
	Session  *store.Session `json:"session"`
	Warnings []string       `json:"warnings,omitempty"`
}

// StopResult is the payload of StopSession. Stopped is false when there was
// nothing to stop; that is a normal outcome, not an error.
type StopResult struct {
	Stopped bool           `json:"stopped"`
	Session *store.Session `json:"session,omitempty"`
}

// FileStatus is the file monitor's contribution to Status.
type FileStatus struct {
	Watching     bool `json:"watching"`
	PendingFiles int  `json:"pending_files"`
}

// GitStatus is the git monitor's contribution to Status.
type GitStatus struct {
	Monitoring bool   `json:"monitoring"`
	Branch     string `json:"branch,omitempty"`
}

// Status is the aggregated live view of the current session.
type Status struct {
	Active          bool           `json:"active"`
	Session         *store.Session `json:"session,omitempty"`
	DurationSeconds float64        `json:"duration_seconds,omitempty"`
	Stats           store.Stats    `json:"stats"`
	Files           FileStatus     `json:"files"`
	Git             GitStatus      `json:"git"`
}

// Tracker is the session lifecycle coordinator. External callers (CLI,
// status queries) go through it rather than touching the monitors directly.
type Tracker struct {
	store *store.Store
	files *monitor.FileMonitor
	git   *monitor.GitMonitor
	log   *slog.Logger

	mu      sync.Mutex
	current *store.Session
	closed  bool
}

// New creates a Tracker over the given store and monitors.
func New(st *store.Store, files *monitor.FileMonitor, git *monitor.GitMonitor) *Tracker {
	return &Tracker{
		store: st,
		files: files,
		git:   git,
		log:   logger.WithComponent("tracker"),
	}
}

// StartSession validates path, creates the session row and starts both
// monitors tagged with the new session id. A monitor that cannot attach is
// downgraded to a warning; the session remains active without it.
func (t *Tracker) StartSession(path string) (*StartResult, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrPathNotFound, path)
	}

	active, err := t.store.ActiveSession()
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, fmt.Errorf("%w (session %s)", ErrSessionConflict, active.ID)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving project path: %w", err)
	}

	id, err := t.store.CreateSession(abs)
	if err != nil {
		return nil, err
	}
	sess, err := t.store.GetSession(id)
	if err != nil {
		return nil, err
	}

	result := &StartResult{Session: sess}
	if !t.files.Start(abs, id) {
		result.Warnings = append(result.Warnings, "file watching unavailable for this session")
	}
	if !t.git.Start(abs, id) {
		result.Warnings = append(result.Warnings, "git monitoring unavailable for this session")
	}

	t.mu.Lock()
	t.current = sess
	t.mu.Unlock()

	t.log.Info("session started", "session", id, "path", abs, "warnings", len(result.Warnings))
	return result, nil
}

// StopSession stops both monitors (best-effort, independently), closes the
// session row and clears the in-memory reference. With no active session it
// returns {Stopped:false} without error and is idempotent.
func (t *Tracker) StopSession() (*StopResult, error) {
	active, err := t.store.ActiveSession()
	if err != nil {
		return nil, err
	}
	if active == nil {
		return &StopResult{Stopped: false}, nil
	}

	// Each monitor tears down on its own; a wedged one doesn't block the
	// session close.
	t.files.Stop()
	t.git.Stop()

	closed, err := t.store.EndSession(active.ID)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	t.current = nil
	t.mu.Unlock()

	sess, err := t.store.GetSession(active.ID)
	if err != nil {
		return nil, err
	}

	t.log.Info("session stopped", "session", active.ID, "closed", closed)
	return &StopResult{Stopped: closed, Session: sess}, nil
}

// Status reports the aggregated live status: elapsed duration, store counts
// and each monitor's own view.
func (t *Tracker) Status() (*Status, error) {
	active, err := t.store.ActiveSession()
	if err != nil {
		return nil, err
	}
	if active == nil {
		return &Status{Active: false}, nil
	}

	stats, err := t.store.SessionStats(active.ID)
	if err != nil {
		return nil, err
	}

	watching, pending := t.files.Status()
	monitoring, branch := t.git.Status()

	return &Status{
		Active:          true,
		Session:         active,
		DurationSeconds: time.Since(active.StartedAt).Seconds(),
		Stats:           stats,
		Files:           FileStatus{Watching: watching, PendingFiles: pending},
		Git:             GitStatus{Monitoring: monitoring, Branch: branch},
	}, nil
}

// Active reports whether a session is currently active.
func (t *Tracker) Active() (bool, error) {
	active, err := t.store.ActiveSession()
	if err != nil {
		return false, err
	}
	return active != nil, nil
}

// Close stops any running monitors and releases the store. Safe to call
// multiple times and from any state.
func (t *Tracker) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.current = nil
	t.mu.Unlock()

	t.files.Stop()
	t.git.Stop()
	return t.store.Close()
}
