package monitor

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/chronicle-dev/chronicle/internal/logger"
	"github.com/chronicle-dev/chronicle/internal/store"
)

// skipDirs are directory names never watched: VCS internals and
// dependency/build trees produce event storms with no narrative value.
var skipDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	".svn":         true,
	"node_modules": true,
	"vendor":       true,
	".venv":        true,
	"__pycache__":  true,
	"dist":         true,
	"build":        true,
	"target":       true,
	".idea":        true,
}

// pendingChange is one coalesced entry in the pending map: only the most
// recent change kind for a path survives between flushes.
type pendingChange struct {
	kind      string
	lastEvent time.Time
}

// FileMonitorOptions configures a FileMonitor. Zero values fall back to the
// defaults (30m snapshot interval, 2s debounce).
type FileMonitorOptions struct {
	SnapshotInterval time.Duration
	Debounce         time.Duration
	IgnorePatterns   []string
}

// FileMonitor watches a project tree via fsnotify and periodically flushes
// coalesced file changes into the store as snapshot rows.
//
// The pending map is shared between the event path and the flush path. A
// flush takes ownership of the whole map and replaces it with an empty one
// under the mutex, so events arriving during the stat/write loop land in the
// fresh map and are neither lost nor double-counted.
type FileMonitor struct {
	store    *store.Store
	interval time.Duration
	debounce time.Duration
	patterns []string
	log      *slog.Logger

	mu        sync.Mutex
	watching  bool
	sessionID string
	root      string
	pending   map[string]pendingChange

	watcher *fsnotify.Watcher
	ticker  *time.Ticker
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewFileMonitor returns an idle FileMonitor writing to st.
func NewFileMonitor(st *store.Store, opts FileMonitorOptions) *FileMonitor {
	if opts.SnapshotInterval <= 0 {
		opts.SnapshotInterval = 30 * time.Minute
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 2 * time.Second
	}
	return &FileMonitor{
		store:    st,
		interval: opts.SnapshotInterval,
		debounce: opts.Debounce,
		patterns: opts.IgnorePatterns,
		log:      logger.WithComponent("files"),
	}
}

// Start begins recursive observation rooted at path, tagging all snapshots
// with sessionID. It returns false when the watch cannot be established
// (already watching, permission denied, root missing); the session proceeds
// without file capture in that case.
func (m *FileMonitor) Start(path, sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.watching {
		m.log.Warn("start requested while already watching", "root", m.root)
		return false
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		m.log.Warn("failed to create watcher", "error", err)
		return false
	}

	// Walk the tree and add a watch for every directory we don't exclude.
	// A failure on the root is fatal for the attach; failures deeper in the
	// tree only lose that subtree.
	rootErr := watcher.Add(path)
	if rootErr != nil {
		m.log.Warn("failed to watch project root", "root", path, "error", rootErr)
		watcher.Close()
		return false
	}
	_ = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable entries
		}
		if !d.IsDir() {
			return nil
		}
		if p == path {
			return nil // already added
		}
		if skipDirs[d.Name()] {
			return filepath.SkipDir
		}
		if err := watcher.Add(p); err != nil {
			m.log.Debug("failed to watch directory", "dir", p, "error", err)
		}
		return nil
	})

	m.watching = true
	m.sessionID = sessionID
	m.root = path
	m.pending = make(map[string]pendingChange)
	m.watcher = watcher
	m.ticker = time.NewTicker(m.interval)
	m.done = make(chan struct{})

	m.wg.Add(1)
	go m.run(watcher, m.ticker, m.done)

	m.log.Info("watching started", "root", path, "session", sessionID)
	return true
}

// Stop performs one final flush, cancels the interval timer, releases the
// watcher and clears in-memory state. Calling Stop when not watching is a
// no-op.
func (m *FileMonitor) Stop() {
	m.mu.Lock()
	if !m.watching {
		m.mu.Unlock()
		return
	}
	done := m.done
	ticker := m.ticker
	watcher := m.watcher
	m.mu.Unlock()

	close(done)
	m.wg.Wait()
	ticker.Stop()
	watcher.Close()

	// Final flush ignores the debounce window so nothing stays behind.
	m.flush(true)

	m.mu.Lock()
	m.watching = false
	m.sessionID = ""
	m.root = ""
	m.pending = nil
	m.watcher = nil
	m.ticker = nil
	m.done = nil
	m.mu.Unlock()

	m.log.Info("watching stopped")
}

// Status reports the live watching flag and the number of pending files.
func (m *FileMonitor) Status() (watching bool, pending int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.watching, len(m.pending)
}

// run is the event loop: watcher events coalesce into the pending map, the
// ticker drives periodic flushes. An immediate flush runs at start.
func (m *FileMonitor) run(watcher *fsnotify.Watcher, ticker *time.Ticker, done chan struct{}) {
	defer m.wg.Done()

	m.flush(false)

	for {
		select {
		case <-done:
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			m.handleEvent(watcher, event)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			// Watcher errors are non-fatal; keep watching.
			m.log.Warn("watcher error", "error", err)

		case <-ticker.C:
			m.flush(false)
		}
	}
}

// handleEvent coalesces one fsnotify event into the pending map.
func (m *FileMonitor) handleEvent(watcher *fsnotify.Watcher, event fsnotify.Event) {
	var kind string
	switch {
	case event.Has(fsnotify.Create):
		kind = store.ChangeAdded
	case event.Has(fsnotify.Write):
		kind = store.ChangeModified
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		kind = store.ChangeDeleted
	default:
		return // chmod and friends carry no content change
	}

	m.mu.Lock()
	root := m.root
	m.mu.Unlock()

	rel, err := filepath.Rel(root, event.Name)
	if err != nil || strings.HasPrefix(rel, "..") {
		return
	}
	if m.isIgnored(rel) {
		return
	}

	// A newly created directory joins the watch; it isn't a file change.
	if kind == store.ChangeAdded {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !skipDirs[filepath.Base(event.Name)] {
				_ = watcher.Add(event.Name)
			}
			return
		}
	}

	m.record(rel, kind)
}

// record stores the most recent change kind for rel, collapsing rapid
// repeated edits into a single pending entry.
func (m *FileMonitor) record(rel, kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == nil {
		return // stopped concurrently
	}
	m.pending[rel] = pendingChange{kind: kind, lastEvent: time.Now()}
}

// flush takes ownership of the pending map and writes one snapshot row per
// entry. Entries still inside the debounce window are re-staged instead of
// written (unless final), so a file mid-write is reported once it settles.
// A flush with nothing pending writes no rows. Per-file stat failures skip
// that file only.
func (m *FileMonitor) flush(final bool) {
	m.mu.Lock()
	if !m.watching && m.pending == nil {
		m.mu.Unlock()
		return
	}
	taken := m.pending
	m.pending = make(map[string]pendingChange)
	sessionID := m.sessionID
	root := m.root
	m.mu.Unlock()

	if len(taken) == 0 {
		return
	}

	now := time.Now()
	written := 0
	for rel, change := range taken {
		if !final && now.Sub(change.lastEvent) < m.debounce {
			// Still being written; carry it over to the next flush.
			m.restage(rel, change)
			continue
		}

		rec := store.SnapshotRecord{
			CapturedAt: now,
			Path:       rel,
			ChangeKind: change.kind,
		}
		if change.kind != store.ChangeDeleted {
			info, err := os.Stat(filepath.Join(root, rel))
			if err != nil {
				// File vanished between event and flush; skip this entry,
				// the rest of the batch still flushes.
				m.log.Debug("stat failed during flush", "path", rel, "error", err)
				continue
			}
			size := info.Size()
			mtime := info.ModTime()
			rec.Size = &size
			rec.ModifiedAt = &mtime
		}

		if err := m.store.AppendSnapshot(sessionID, rec); err != nil {
			m.log.Warn("failed to write snapshot", "path", rel, "error", err)
			continue
		}
		written++
	}

	if written > 0 {
		m.log.Debug("snapshot flush", "written", written, "session", sessionID)
	}
}

// restage puts a debounced entry back into the live pending map unless a
// newer event for the same path already replaced it.
func (m *FileMonitor) restage(rel string, change pendingChange) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == nil {
		return
	}
	if _, exists := m.pending[rel]; !exists {
		m.pending[rel] = change
	}
}

// isIgnored reports whether rel matches any configured ignore pattern.
func (m *FileMonitor) isIgnored(rel string) bool {
	base := filepath.Base(rel)
	for _, pattern := range m.patterns {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
		if matched, _ := filepath.Match(pattern, rel); matched {
			return true
		}
	}
	// Never record the store's own database (or its WAL sidecars) when the
	// project dir doubles as the data dir.
	if dbBase := filepath.Base(m.store.Path()); dbBase != "." && strings.HasPrefix(base, dbBase) {
		return true
	}
	return false
}
