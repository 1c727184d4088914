package store

import "time"

// Session status values.
const (
	StatusActive    = "active"
	StatusCompleted = "completed"
)

// Snapshot change kinds.
const (
	ChangeAdded    = "added"
	ChangeModified = "modified"
	ChangeDeleted  = "deleted"
)

// VcsEvent kinds.
const (
	EventSessionStart = "session_start"
	EventSessionEnd   = "session_end"
	EventBranchChange = "branch_change"
	EventCommit       = "commit"
	EventStatusChange = "status_change"
)

// Session represents an active or completed tracking session.
type Session struct {
	ID          string     `json:"id"`
	ProjectPath string     `json:"project_path"`
	StartedAt   time.Time  `json:"started_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
	Status      string     `json:"status"`
}

// Snapshot records one coalesced file change written at flush time.
// Size and ModifiedAt are absent when the file was deleted before capture.
type Snapshot struct {
	ID         int64      `json:"id"`
	SessionID  string     `json:"session_id"`
	CapturedAt time.Time  `json:"captured_at"`
	Path       string     `json:"path"` // relative to the session's project path
	ChangeKind string     `json:"change_kind"`
	Size       *int64     `json:"size,omitempty"`
	ModifiedAt *time.Time `json:"modified_at,omitempty"`
}

// SnapshotRecord is the write-side shape of a Snapshot.
type SnapshotRecord struct {
	CapturedAt time.Time
	Path       string
	ChangeKind string
	Size       *int64
	ModifiedAt *time.Time
}

// FileChange is one entry in a VcsEvent's serialized file-change list.
// For commit events Status is the git name-status code (M, A, D, ...);
// for status_change events it is the working-tree category
// (staged, modified, untracked, deleted).
type FileChange struct {
	Path   string `json:"path"`
	Status string `json:"status"`
}

// VcsEvent is a discrete version-control occurrence, append-only and
// strictly ordered by timestamp within a session.
type VcsEvent struct {
	ID           int64        `json:"id"`
	SessionID    string       `json:"session_id"`
	OccurredAt   time.Time    `json:"occurred_at"`
	Kind         string       `json:"kind"`
	Branch       string       `json:"branch,omitempty"`
	CommitHash   string       `json:"commit_hash,omitempty"`
	Message      string       `json:"message,omitempty"`
	FilesChanged []FileChange `json:"files_changed,omitempty"`
}

// VcsEventRecord is the write-side shape of a VcsEvent.
type VcsEventRecord struct {
	OccurredAt   time.Time
	Kind         string
	Branch       string
	CommitHash   string
	Message      string
	FilesChanged []FileChange
}

// BrowserVisit is a page visit recorded by the optional browser-history
// monitor. The store owns the schema; the monitor itself lives outside
// this repository.
type BrowserVisit struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	VisitedAt time.Time `json:"visited_at"`
	URL       string    `json:"url"`
	Title     string    `json:"title,omitempty"`
}

// Stats holds aggregate row counts for one session.
type Stats struct {
	Snapshots int `json:"snapshots"`
	GitEvents int `json:"git_events"`
}
