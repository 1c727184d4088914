// Package store implements the SQLite-backed timeline store: sessions,
// file-change snapshots, version-control events and browser visits. It is a
// pure data-access layer; session policy lives in the tracker.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// StoreError wraps a persistence failure with the operation that failed.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return "store: " + e.Op + ": " + e.Err.Error()
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func wrap(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}

// Store is the SQLite timeline store. All methods are safe for concurrent
// use; database/sql serializes access to the single connection pool.
type Store struct {
	db   *sql.DB
	path string
}

// DefaultPath returns the default database location.
// Path: $XDG_DATA_HOME/chronicle/chronicle.db or ~/.local/share/chronicle/chronicle.db
func DefaultPath() (string, error) {
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(base, "chronicle", "chronicle.db"), nil
}

// Open opens (creating if necessary) the database at path and runs migrations.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, wrap("create data directory", err)
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, wrap("open database", err)
	}

	s := &Store{db: db, path: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Path returns the database file path. The file monitor excludes it from
// watching so flushes don't observe themselves.
func (s *Store) Path() string {
	return s.path
}

// Close releases the underlying database handle. Safe to call multiple times.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	if err != nil {
		return wrap("close database", err)
	}
	return nil
}

// migrate creates the schema. The partial unique index on sessions enforces
// the single-active-session invariant at the storage layer.
func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			project_path TEXT NOT NULL,
			started_at DATETIME NOT NULL,
			ended_at DATETIME,
			status TEXT NOT NULL DEFAULT 'active'
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_sessions_single_active
			ON sessions(status) WHERE status = 'active';

		CREATE TABLE IF NOT EXISTS snapshots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			captured_at DATETIME NOT NULL,
			path TEXT NOT NULL,
			change_kind TEXT NOT NULL,
			size INTEGER,
			modified_at DATETIME,
			FOREIGN KEY (session_id) REFERENCES sessions(id)
		);

		CREATE INDEX IF NOT EXISTS idx_snapshots_session ON snapshots(session_id);

		CREATE TABLE IF NOT EXISTS vcs_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			occurred_at DATETIME NOT NULL,
			kind TEXT NOT NULL,
			branch TEXT,
			commit_hash TEXT,
			message TEXT,
			files_changed TEXT,
			FOREIGN KEY (session_id) REFERENCES sessions(id)
		);

		CREATE INDEX IF NOT EXISTS idx_vcs_events_session ON vcs_events(session_id);

		CREATE TABLE IF NOT EXISTS browser_visits (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			visited_at DATETIME NOT NULL,
			url TEXT NOT NULL,
			title TEXT,
			FOREIGN KEY (session_id) REFERENCES sessions(id)
		);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return wrap("migrate schema", err)
	}
	return nil
}

// CreateSession inserts a new active session for projectPath and returns its id.
func (s *Store) CreateSession(projectPath string) (string, error) {
	id := uuid.New().String()
	_, err := s.db.Exec(
		`INSERT INTO sessions (id, project_path, started_at, status) VALUES (?, ?, ?, ?)`,
		id, projectPath, time.Now(), StatusActive,
	)
	if err != nil {
		return "", wrap("create session", err)
	}
	return id, nil
}

// EndSession closes the session with the given id. Returns false (without
// error) when no matching active row exists.
func (s *Store) EndSession(id string) (bool, error) {
	res, err := s.db.Exec(
		`UPDATE sessions SET ended_at = ?, status = ? WHERE id = ? AND status = ?`,
		time.Now(), StatusCompleted, id, StatusActive,
	)
	if err != nil {
		return false, wrap("end session", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, wrap("end session", err)
	}
	return n > 0, nil
}

// ActiveSession returns the currently active session, or nil if none exists.
func (s *Store) ActiveSession() (*Session, error) {
	row := s.db.QueryRow(
		`SELECT id, project_path, started_at, ended_at, status FROM sessions WHERE status = ?`,
		StatusActive,
	)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("query active session", err)
	}
	return sess, nil
}

// GetSession returns the session with the given id, or nil if it doesn't exist.
func (s *Store) GetSession(id string) (*Session, error) {
	row := s.db.QueryRow(
		`SELECT id, project_path, started_at, ended_at, status FROM sessions WHERE id = ?`,
		id,
	)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("query session", err)
	}
	return sess, nil
}

// ListSessions returns sessions newest-first. limit <= 0 means no limit.
func (s *Store) ListSessions(limit int) ([]Session, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(
		`SELECT id, project_path, started_at, ended_at, status
		   FROM sessions ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, wrap("list sessions", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, wrap("list sessions", err)
		}
		sessions = append(sessions, *sess)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("list sessions", err)
	}
	return sessions, nil
}

// SessionStats returns aggregate row counts for the given session.
func (s *Store) SessionStats(id string) (Stats, error) {
	var st Stats
	if err := s.db.QueryRow(
		`SELECT COUNT(*) FROM snapshots WHERE session_id = ?`, id,
	).Scan(&st.Snapshots); err != nil {
		return Stats{}, wrap("count snapshots", err)
	}
	if err := s.db.QueryRow(
		`SELECT COUNT(*) FROM vcs_events WHERE session_id = ?`, id,
	).Scan(&st.GitEvents); err != nil {
		return Stats{}, wrap("count vcs events", err)
	}
	return st, nil
}

// AppendSnapshot writes one snapshot row. Each row is its own implicit
// transaction: a flush interrupted mid-batch leaves a prefix of the batch
// persisted. Rows are independently meaningful, so this partial-write
// behavior is accepted rather than masked.
func (s *Store) AppendSnapshot(sessionID string, rec SnapshotRecord) error {
	var size sql.NullInt64
	if rec.Size != nil {
		size = sql.NullInt64{Int64: *rec.Size, Valid: true}
	}
	var modified sql.NullTime
	if rec.ModifiedAt != nil {
		modified = sql.NullTime{Time: *rec.ModifiedAt, Valid: true}
	}
	_, err := s.db.Exec(
		`INSERT INTO snapshots (session_id, captured_at, path, change_kind, size, modified_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sessionID, rec.CapturedAt, rec.Path, rec.ChangeKind, size, modified,
	)
	if err != nil {
		return wrap("append snapshot", err)
	}
	return nil
}

// AppendVcsEvent writes one vcs event row and returns its id.
func (s *Store) AppendVcsEvent(sessionID string, rec VcsEventRecord) (int64, error) {
	var files sql.NullString
	if len(rec.FilesChanged) > 0 {
		data, err := json.Marshal(rec.FilesChanged)
		if err != nil {
			return 0, wrap("encode file changes", err)
		}
		files = sql.NullString{String: string(data), Valid: true}
	}
	res, err := s.db.Exec(
		`INSERT INTO vcs_events (session_id, occurred_at, kind, branch, commit_hash, message, files_changed)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sessionID, rec.OccurredAt, rec.Kind,
		nullString(rec.Branch), nullString(rec.CommitHash), nullString(rec.Message), files,
	)
	if err != nil {
		return 0, wrap("append vcs event", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, wrap("append vcs event", err)
	}
	return id, nil
}

// ListSnapshots returns snapshots for a session in capture order.
// limit <= 0 means no limit.
func (s *Store) ListSnapshots(sessionID string, limit int) ([]Snapshot, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(
		`SELECT id, session_id, captured_at, path, change_kind, size, modified_at
		   FROM snapshots WHERE session_id = ? ORDER BY captured_at ASC, id ASC LIMIT ?`,
		sessionID, limit,
	)
	if err != nil {
		return nil, wrap("list snapshots", err)
	}
	defer rows.Close()

	var snaps []Snapshot
	for rows.Next() {
		var snap Snapshot
		var size sql.NullInt64
		var modified sql.NullTime
		if err := rows.Scan(&snap.ID, &snap.SessionID, &snap.CapturedAt,
			&snap.Path, &snap.ChangeKind, &size, &modified); err != nil {
			return nil, wrap("list snapshots", err)
		}
		if size.Valid {
			snap.Size = &size.Int64
		}
		if modified.Valid {
			t := modified.Time
			snap.ModifiedAt = &t
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("list snapshots", err)
	}
	return snaps, nil
}

// ListVcsEvents returns vcs events for a session in timestamp order.
// limit <= 0 means no limit.
func (s *Store) ListVcsEvents(sessionID string, limit int) ([]VcsEvent, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(
		`SELECT id, session_id, occurred_at, kind, branch, commit_hash, message, files_changed
		   FROM vcs_events WHERE session_id = ? ORDER BY occurred_at ASC, id ASC LIMIT ?`,
		sessionID, limit,
	)
	if err != nil {
		return nil, wrap("list vcs events", err)
	}
	defer rows.Close()

	var events []VcsEvent
	for rows.Next() {
		var ev VcsEvent
		var branch, hash, message, files sql.NullString
		if err := rows.Scan(&ev.ID, &ev.SessionID, &ev.OccurredAt, &ev.Kind,
			&branch, &hash, &message, &files); err != nil {
			return nil, wrap("list vcs events", err)
		}
		ev.Branch = branch.String
		ev.CommitHash = hash.String
		ev.Message = message.String
		if files.Valid && files.String != "" {
			if err := json.Unmarshal([]byte(files.String), &ev.FilesChanged); err != nil {
				return nil, wrap("decode file changes", err)
			}
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("list vcs events", err)
	}
	return events, nil
}

// AppendBrowserVisit writes one browser visit row on behalf of the optional
// browser-history monitor.
func (s *Store) AppendBrowserVisit(sessionID string, visitedAt time.Time, url, title string) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO browser_visits (session_id, visited_at, url, title) VALUES (?, ?, ?, ?)`,
		sessionID, visitedAt, url, nullString(title),
	)
	if err != nil {
		return 0, wrap("append browser visit", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, wrap("append browser visit", err)
	}
	return id, nil
}

// ListBrowserVisits returns browser visits for a session in visit order.
// limit <= 0 means no limit.
func (s *Store) ListBrowserVisits(sessionID string, limit int) ([]BrowserVisit, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(
		`SELECT id, session_id, visited_at, url, title
		   FROM browser_visits WHERE session_id = ? ORDER BY visited_at ASC, id ASC LIMIT ?`,
		sessionID, limit,
	)
	if err != nil {
		return nil, wrap("list browser visits", err)
	}
	defer rows.Close()

	var visits []BrowserVisit
	for rows.Next() {
		var v BrowserVisit
		var title sql.NullString
		if err := rows.Scan(&v.ID, &v.SessionID, &v.VisitedAt, &v.URL, &title); err != nil {
			return nil, wrap("list browser visits", err)
		}
		v.Title = title.String
		visits = append(visits, v)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("list browser visits", err)
	}
	return visits, nil
}

// scanner abstracts *sql.Row and *sql.Rows for scanSession.
type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*Session, error) {
	var sess Session
	var ended sql.NullTime
	if err := row.Scan(&sess.ID, &sess.ProjectPath, &sess.StartedAt, &ended, &sess.Status); err != nil {
		return nil, err
	}
	if ended.Valid {
		t := ended.Time
		sess.EndedAt = &t
	}
	return &sess, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
