package monitor

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronicle-dev/chronicle/internal/store"
)

// exitCode128Error returns a real *exec.ExitError with exit code 128
// by running a shell command that exits with that code.
func exitCode128Error() error {
	cmd := exec.Command("sh", "-c", "exit 128")
	return cmd.Run()
}

// fakeRepo is a mutable mock GitRunner. Keys are the joined git arguments;
// "log" and "show" commands match by prefix.
type fakeRepo struct {
	mu        sync.Mutex
	branch    string
	head      string
	log       []string // "<hash>\t<subject>" newest first
	porcelain string
	showFiles string // name-status output for any commit
	failing   map[string]error
}

func (f *fakeRepo) run(workDir string, args ...string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := strings.Join(args, " ")
	for prefix, err := range f.failing {
		if strings.HasPrefix(key, prefix) {
			return "", err
		}
	}

	switch {
	case key == "rev-parse --abbrev-ref HEAD":
		return f.branch + "\n", nil
	case key == "rev-parse HEAD":
		return f.head + "\n", nil
	case strings.HasPrefix(key, "log "):
		return strings.Join(f.log, "\n") + "\n", nil
	case strings.HasPrefix(key, "show "):
		return f.showFiles, nil
	case key == "status --porcelain":
		return f.porcelain, nil
	}
	return "", fmt.Errorf("unexpected git command: %q", key)
}

func (f *fakeRepo) set(fn func(*fakeRepo)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func startedGitMonitor(t *testing.T, st *store.Store, sessionID string, repo *fakeRepo) *GitMonitor {
	t.Helper()
	m := NewGitMonitor(st, GitMonitorOptions{
		PollInterval: time.Hour, // polls are driven manually in tests
		Runner:       repo.run,
	})
	require.True(t, m.Start("/repo", sessionID))
	t.Cleanup(m.Stop)
	return m
}

func eventKinds(events []store.VcsEvent) []string {
	kinds := make([]string, len(events))
	for i, e := range events {
		kinds[i] = e.Kind
	}
	return kinds
}

func TestStartReturnsFalseOutsideRepository(t *testing.T) {
	st, id := newTestSession(t)

	exitErr := exitCode128Error()
	require.Error(t, exitErr)
	var exitErrTyped *exec.ExitError
	require.True(t, errors.As(exitErr, &exitErrTyped))

	m := NewGitMonitor(st, GitMonitorOptions{
		Runner: func(workDir string, args ...string) (string, error) {
			return "", exitErr
		},
	})

	assert.False(t, m.Start("/not/a/repo", id))

	monitoring, _ := m.Status()
	assert.False(t, monitoring)

	events, err := st.ListVcsEvents(id, 0)
	require.NoError(t, err)
	assert.Empty(t, events, "no events when monitoring never started")
}

func TestStartAndStopWriteBoundaryEvents(t *testing.T) {
	st, id := newTestSession(t)
	repo := &fakeRepo{branch: "main", head: "c1", log: []string{"c1\tinitial"}}

	m := startedGitMonitor(t, st, id, repo)

	monitoring, branch := m.Status()
	assert.True(t, monitoring)
	assert.Equal(t, "main", branch)

	m.Stop()

	events, err := st.ListVcsEvents(id, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, store.EventSessionStart, events[0].Kind)
	assert.Equal(t, "main", events[0].Branch)
	assert.Equal(t, "c1", events[0].CommitHash)
	assert.Equal(t, store.EventSessionEnd, events[1].Kind)
}

// Last-known head c1, poll sees [c4,c3,c2,c1]: exactly the three newer
// commits are recorded, oldest first.
func TestCommitDetectionOrdersOldestFirst(t *testing.T) {
	st, id := newTestSession(t)
	repo := &fakeRepo{
		branch:    "main",
		head:      "c1",
		log:       []string{"c1\tfirst"},
		showFiles: "M\tmain.go\n",
	}
	m := startedGitMonitor(t, st, id, repo)

	repo.set(func(f *fakeRepo) {
		f.head = "c4"
		f.log = []string{"c4\tfourth", "c3\tthird", "c2\tsecond", "c1\tfirst"}
	})

	m.poll()

	events, err := st.ListVcsEvents(id, 0)
	require.NoError(t, err)
	require.Equal(t,
		[]string{store.EventSessionStart, store.EventCommit, store.EventCommit, store.EventCommit},
		eventKinds(events))

	assert.Equal(t, "c2", events[1].CommitHash)
	assert.Equal(t, "second", events[1].Message)
	assert.Equal(t, "c3", events[2].CommitHash)
	assert.Equal(t, "c4", events[3].CommitHash)
	require.Len(t, events[1].FilesChanged, 1)
	assert.Equal(t, store.FileChange{Path: "main.go", Status: "M"}, events[1].FilesChanged[0])

	// A second poll with no new commits writes nothing.
	m.poll()
	events, err = st.ListVcsEvents(id, 0)
	require.NoError(t, err)
	assert.Len(t, events, 4)
}

// When the last-known hash left the polled window (rebase or force-push),
// every polled commit counts as new.
func TestCommitDetectionAfterRewrittenHistory(t *testing.T) {
	st, id := newTestSession(t)
	repo := &fakeRepo{branch: "main", head: "old", log: []string{"old\tinitial"}}
	m := startedGitMonitor(t, st, id, repo)

	repo.set(func(f *fakeRepo) {
		f.head = "n3"
		f.log = []string{"n3\tthree", "n2\ttwo", "n1\tone"}
	})

	m.poll()

	events, err := st.ListVcsEvents(id, 0)
	require.NoError(t, err)
	require.Len(t, events, 4) // session_start + 3 commits
	assert.Equal(t, "n1", events[1].CommitHash)
	assert.Equal(t, "n2", events[2].CommitHash)
	assert.Equal(t, "n3", events[3].CommitHash)
}

// Branch change is an edge trigger: one event on the switch, none while the
// branch stays put.
func TestBranchChangeEdgeTrigger(t *testing.T) {
	st, id := newTestSession(t)
	repo := &fakeRepo{branch: "main", head: "c1", log: []string{"c1\tfirst"}}
	m := startedGitMonitor(t, st, id, repo)

	repo.set(func(f *fakeRepo) { f.branch = "feature/x" })
	m.poll()
	m.poll()

	events, err := st.ListVcsEvents(id, 0)
	require.NoError(t, err)

	var branchChanges []store.VcsEvent
	for _, e := range events {
		if e.Kind == store.EventBranchChange {
			branchChanges = append(branchChanges, e)
		}
	}
	require.Len(t, branchChanges, 1)
	assert.Equal(t, "feature/x", branchChanges[0].Branch)
	assert.Contains(t, branchChanges[0].Message, "main")
	assert.Contains(t, branchChanges[0].Message, "feature/x")

	_, branch := m.Status()
	assert.Equal(t, "feature/x", branch)
}

// Dirty-tree status is a level trigger: it fires on every poll while dirty.
func TestStatusChangeLevelTrigger(t *testing.T) {
	st, id := newTestSession(t)
	repo := &fakeRepo{branch: "main", head: "c1", log: []string{"c1\tfirst"}}
	m := startedGitMonitor(t, st, id, repo)

	repo.set(func(f *fakeRepo) {
		f.porcelain = "M  staged.go\n M worktree.go\n?? new.go\n D gone.go\n"
	})

	m.poll()
	m.poll()

	events, err := st.ListVcsEvents(id, 0)
	require.NoError(t, err)

	var statusEvents []store.VcsEvent
	for _, e := range events {
		if e.Kind == store.EventStatusChange {
			statusEvents = append(statusEvents, e)
		}
	}
	require.Len(t, statusEvents, 2, "level trigger fires per dirty poll")

	first := statusEvents[0]
	require.Len(t, first.FilesChanged, 4)
	byPath := map[string]string{}
	for _, f := range first.FilesChanged {
		byPath[f.Path] = f.Status
	}
	assert.Equal(t, "staged", byPath["staged.go"])
	assert.Equal(t, "modified", byPath["worktree.go"])
	assert.Equal(t, "untracked", byPath["new.go"])
	assert.Equal(t, "deleted", byPath["gone.go"])

	// Clean tree writes nothing.
	repo.set(func(f *fakeRepo) { f.porcelain = "" })
	m.poll()
	events, err = st.ListVcsEvents(id, 0)
	require.NoError(t, err)
	count := 0
	for _, e := range events {
		if e.Kind == store.EventStatusChange {
			count++
		}
	}
	assert.Equal(t, 2, count)
}

// A failing poll step is absorbed; the remaining steps still run and the
// monitor keeps going.
func TestPollStepFailureIsIsolated(t *testing.T) {
	st, id := newTestSession(t)
	repo := &fakeRepo{
		branch:    "main",
		head:      "c1",
		log:       []string{"c1\tfirst"},
		porcelain: "M  a.go\n",
		failing:   map[string]error{"log ": errors.New("git hung up")},
	}
	m := startedGitMonitor(t, st, id, repo)

	m.poll()

	events, err := st.ListVcsEvents(id, 0)
	require.NoError(t, err)

	// The log step failed, yet the status step still produced its event.
	assert.Equal(t, []string{store.EventSessionStart, store.EventStatusChange}, eventKinds(events))

	monitoring, _ := m.Status()
	assert.True(t, monitoring)
}

func TestStopWhenIdleIsNoopGit(t *testing.T) {
	st, _ := newTestSession(t)
	m := NewGitMonitor(st, GitMonitorOptions{})

	m.Stop()
	m.Stop()

	monitoring, _ := m.Status()
	assert.False(t, monitoring)
}

func TestParsePorcelainCategories(t *testing.T) {
	files, summary := parsePorcelain("M  staged.go\n M worktree.go\n?? new.go\nD  gone.go\n")
	require.Len(t, files, 4)
	assert.Equal(t, "1 staged, 1 modified, 1 untracked, 1 deleted", summary)

	files, summary = parsePorcelain("")
	assert.Nil(t, files)
	assert.Empty(t, summary)
}
