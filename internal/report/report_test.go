package report_test

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronicle-dev/chronicle/internal/report"
	"github.com/chronicle-dev/chronicle/internal/store"
)

func seedSession(t *testing.T) (*store.Store, string) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "chronicle.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	id, err := st.CreateSession("/home/dev/proj")
	require.NoError(t, err)

	base := time.Now().UTC().Truncate(time.Second).Add(-time.Hour)

	_, err = st.AppendVcsEvent(id, store.VcsEventRecord{
		OccurredAt: base,
		Kind:       store.EventSessionStart,
		Branch:     "main",
		Message:    "session started",
	})
	require.NoError(t, err)

	require.NoError(t, st.AppendSnapshot(id, store.SnapshotRecord{
		CapturedAt: base.Add(10 * time.Minute),
		Path:       "cmd/root.go",
		ChangeKind: store.ChangeModified,
	}))

	_, err = st.AppendVcsEvent(id, store.VcsEventRecord{
		OccurredAt: base.Add(20 * time.Minute),
		Kind:       store.EventCommit,
		CommitHash: "abcdef1234567890",
		Message:    "wire root command",
		FilesChanged: []store.FileChange{
			{Path: "cmd/root.go", Status: "M"},
		},
	})
	require.NoError(t, err)

	_, err = st.EndSession(id)
	require.NoError(t, err)
	return st, id
}

func TestBuildMergesChronologically(t *testing.T) {
	st, id := seedSession(t)

	tl, err := report.Build(st, id)
	require.NoError(t, err)

	assert.Equal(t, id, tl.Session.ID)
	assert.NotEmpty(t, tl.Duration)
	require.Len(t, tl.Snapshots, 1)
	require.Len(t, tl.Events, 2)

	// session_start, then the snapshot, then the commit.
	require.Len(t, tl.Entries, 3)
	assert.Equal(t, store.EventSessionStart, tl.Entries[0].Kind)
	assert.Equal(t, store.ChangeModified, tl.Entries[1].Kind)
	assert.Equal(t, store.EventCommit, tl.Entries[2].Kind)
	assert.Contains(t, tl.Entries[2].Text, "abcdef12")
	assert.Contains(t, tl.Entries[2].Text, "wire root command")
}

func TestBuildUnknownSession(t *testing.T) {
	st, _ := seedSession(t)

	_, err := report.Build(st, "no-such-id")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session not found")
}

func TestMarkdownRenderer(t *testing.T) {
	st, id := seedSession(t)

	tl, err := report.Build(st, id)
	require.NoError(t, err)

	data, err := (&report.MarkdownRenderer{}).Render(tl)
	require.NoError(t, err)
	out := string(data)

	assert.Contains(t, out, "# Session — /home/dev/proj")
	assert.Contains(t, out, "## Summary")
	assert.Contains(t, out, "- File changes recorded: 1")
	assert.Contains(t, out, "- Version-control events: 2")
	assert.Contains(t, out, "| cmd/root.go | modified |")
	assert.Contains(t, out, "(commit)")
	assert.Contains(t, out, "wire root command")
	assert.Contains(t, out, "  - M cmd/root.go")
	assert.Contains(t, out, "## Timeline")
}

func TestMarkdownRendererEmptySession(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "chronicle.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	id, err := st.CreateSession("/home/dev/empty")
	require.NoError(t, err)

	tl, err := report.Build(st, id)
	require.NoError(t, err)

	data, err := (&report.MarkdownRenderer{}).Render(tl)
	require.NoError(t, err)
	out := string(data)

	assert.Contains(t, out, "_No file changes recorded._")
	assert.Contains(t, out, "_No version-control events recorded._")
	assert.Contains(t, out, "_Nothing recorded in this session._")
}

func TestJSONRendererRoundTrip(t *testing.T) {
	st, id := seedSession(t)

	tl, err := report.Build(st, id)
	require.NoError(t, err)

	data, err := (&report.JSONRenderer{}).Render(tl)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(data), "{"))

	var decoded report.Timeline
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, tl.Session.ID, decoded.Session.ID)
	assert.Len(t, decoded.Entries, len(tl.Entries))
}
