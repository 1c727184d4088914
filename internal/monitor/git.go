package monitor

import (
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/chronicle-dev/chronicle/internal/logger"
	"github.com/chronicle-dev/chronicle/internal/store"
)

// GitRunner executes a git command and returns its output.
// This abstraction allows mocking in tests.
type GitRunner func(workDir string, args ...string) (string, error)

// defaultGitRunner runs git as a real subprocess.
func defaultGitRunner(workDir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = workDir
	out, err := cmd.Output()
	return string(out), err
}

// commitInfo is one parsed `git log` entry.
type commitInfo struct {
	hash    string
	subject string
}

// GitMonitorOptions configures a GitMonitor. Zero values fall back to the
// defaults (5m poll interval, 5-commit window).
type GitMonitorOptions struct {
	PollInterval time.Duration
	CommitWindow int
	Runner       GitRunner // if nil, uses the real git subprocess
}

// GitMonitor polls a repository on a fixed interval, diffs its state against
// the last-known baseline and appends discrete vcs events to the store.
type GitMonitor struct {
	store    *store.Store
	runner   GitRunner
	interval time.Duration
	window   int
	log      *slog.Logger

	mu         sync.Mutex
	monitoring bool
	sessionID  string
	repoPath   string
	lastBranch string
	lastHead   string

	ticker *time.Ticker
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewGitMonitor returns an idle GitMonitor writing to st.
func NewGitMonitor(st *store.Store, opts GitMonitorOptions) *GitMonitor {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Minute
	}
	if opts.CommitWindow <= 0 {
		opts.CommitWindow = 5
	}
	if opts.Runner == nil {
		opts.Runner = defaultGitRunner
	}
	return &GitMonitor{
		store:    st,
		runner:   opts.Runner,
		interval: opts.PollInterval,
		window:   opts.CommitWindow,
		log:      logger.WithComponent("git"),
	}
}

// Start probes path for a repository and, on success, records the baseline
// branch and HEAD, writes a session_start event and begins polling. It
// returns false when path is not a repository (or the probe fails); no timer
// is started in that case.
func (m *GitMonitor) Start(path, sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.monitoring {
		m.log.Warn("start requested while already monitoring", "repo", m.repoPath)
		return false
	}

	// Branch read doubles as the "is this a git repo?" probe.
	branchOut, err := m.runner(path, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		if isExitCode128(err) {
			m.log.Info("not a git repository, monitoring disabled", "path", path)
		} else {
			m.log.Warn("repository probe failed", "path", path, "error", err)
		}
		return false
	}
	branch := strings.TrimSpace(branchOut)

	head := ""
	if headOut, err := m.runner(path, "rev-parse", "HEAD"); err == nil {
		head = strings.TrimSpace(headOut)
	}
	// A missing HEAD (fresh repo with no commits) is fine; the first poll
	// that sees a commit will treat it as new.

	m.monitoring = true
	m.sessionID = sessionID
	m.repoPath = path
	m.lastBranch = branch
	m.lastHead = head

	m.appendEvent(sessionID, store.VcsEventRecord{
		OccurredAt: time.Now(),
		Kind:       store.EventSessionStart,
		Branch:     branch,
		CommitHash: head,
		Message:    "session started",
	})

	m.ticker = time.NewTicker(m.interval)
	m.done = make(chan struct{})
	m.wg.Add(1)
	go m.run(m.ticker, m.done)

	m.log.Info("monitoring started", "repo", path, "branch", branch, "session", sessionID)
	return true
}

// Stop writes a session_end event (best-effort), cancels the poll timer and
// clears the baseline. Calling Stop when not monitoring is a no-op.
func (m *GitMonitor) Stop() {
	m.mu.Lock()
	if !m.monitoring {
		m.mu.Unlock()
		return
	}
	done := m.done
	ticker := m.ticker
	sessionID := m.sessionID
	branch := m.lastBranch
	m.mu.Unlock()

	close(done)
	m.wg.Wait()
	ticker.Stop()

	if sessionID != "" {
		m.appendEvent(sessionID, store.VcsEventRecord{
			OccurredAt: time.Now(),
			Kind:       store.EventSessionEnd,
			Branch:     branch,
			Message:    "session ended",
		})
	}

	m.mu.Lock()
	m.monitoring = false
	m.sessionID = ""
	m.repoPath = ""
	m.lastBranch = ""
	m.lastHead = ""
	m.ticker = nil
	m.done = nil
	m.mu.Unlock()

	m.log.Info("monitoring stopped")
}

// Status reports the live monitoring flag and the last-known branch.
func (m *GitMonitor) Status() (monitoring bool, branch string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.monitoring, m.lastBranch
}

func (m *GitMonitor) run(ticker *time.Ticker, done chan struct{}) {
	defer m.wg.Done()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			m.poll()
		}
	}
}

// poll runs one cycle of the three checks. Each step's failure is logged and
// absorbed; the remaining steps and the next poll proceed independently.
func (m *GitMonitor) poll() {
	m.mu.Lock()
	if !m.monitoring {
		m.mu.Unlock()
		return
	}
	repoPath := m.repoPath
	sessionID := m.sessionID
	m.mu.Unlock()

	m.checkBranch(repoPath, sessionID)
	m.checkCommits(repoPath, sessionID)
	m.checkStatus(repoPath, sessionID)
}

// checkBranch writes a branch_change event when the current branch differs
// from the last-known one. This is an edge trigger.
func (m *GitMonitor) checkBranch(repoPath, sessionID string) {
	out, err := m.runner(repoPath, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		m.log.Warn("branch read failed", "error", err)
		return
	}
	branch := strings.TrimSpace(out)

	m.mu.Lock()
	previous := m.lastBranch
	if branch != previous {
		m.lastBranch = branch
	}
	m.mu.Unlock()

	if branch == previous {
		return
	}
	m.appendEvent(sessionID, store.VcsEventRecord{
		OccurredAt: time.Now(),
		Kind:       store.EventBranchChange,
		Branch:     branch,
		Message:    fmt.Sprintf("switched from %s to %s", previous, branch),
	})
}

// checkCommits reads the most recent commits and writes one commit event per
// commit newer than the last-known head, oldest first. If the last-known
// head is not inside the polled window (rebase, force-push), every polled
// commit is treated as new.
func (m *GitMonitor) checkCommits(repoPath, sessionID string) {
	commits, err := m.recentCommits(repoPath)
	if err != nil {
		m.log.Warn("log read failed", "error", err)
		return
	}
	if len(commits) == 0 {
		return
	}

	m.mu.Lock()
	lastHead := m.lastHead
	m.mu.Unlock()

	if commits[0].hash == lastHead {
		return
	}

	// Walk newest-first until the last-known hash, collecting the strictly
	// newer commits.
	var fresh []commitInfo
	found := false
	for _, c := range commits {
		if c.hash == lastHead {
			found = true
			break
		}
		fresh = append(fresh, c)
	}
	if !found && lastHead != "" {
		m.log.Debug("last-known commit not in polled window, treating all as new",
			"last_head", lastHead, "window", len(commits))
	}

	// Reverse to oldest-first so events land in chronological order.
	for i := len(fresh) - 1; i >= 0; i-- {
		c := fresh[i]
		files, err := m.commitFiles(repoPath, c.hash)
		if err != nil {
			// The diff for this one commit is lost; the event still records
			// the commit itself.
			m.log.Warn("commit diff read failed", "commit", c.hash, "error", err)
			files = nil
		}
		m.appendEvent(sessionID, store.VcsEventRecord{
			OccurredAt:   time.Now(),
			Kind:         store.EventCommit,
			CommitHash:   c.hash,
			Message:      c.subject,
			FilesChanged: files,
		})
	}

	m.mu.Lock()
	m.lastHead = commits[0].hash
	m.mu.Unlock()
}

// checkStatus writes a status_change event whenever the working tree is
// dirty. This is a level trigger: it fires on every poll while dirty.
func (m *GitMonitor) checkStatus(repoPath, sessionID string) {
	out, err := m.runner(repoPath, "status", "--porcelain")
	if err != nil {
		m.log.Warn("status read failed", "error", err)
		return
	}

	files, summary := parsePorcelain(out)
	if len(files) == 0 {
		return
	}
	m.appendEvent(sessionID, store.VcsEventRecord{
		OccurredAt:   time.Now(),
		Kind:         store.EventStatusChange,
		Message:      summary,
		FilesChanged: files,
	})
}

// recentCommits returns up to the configured window of commits, newest first.
func (m *GitMonitor) recentCommits(repoPath string) ([]commitInfo, error) {
	out, err := m.runner(repoPath, "log", "-n", fmt.Sprintf("%d", m.window), "--pretty=format:%H%x09%s")
	if err != nil {
		return nil, err
	}
	var commits []commitInfo
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		hash, subject, _ := strings.Cut(line, "\t")
		commits = append(commits, commitInfo{hash: hash, subject: subject})
	}
	return commits, nil
}

// commitFiles returns the name-status file list for one commit.
func (m *GitMonitor) commitFiles(repoPath, hash string) ([]store.FileChange, error) {
	out, err := m.runner(repoPath, "show", "--name-status", "--format=", hash)
	if err != nil {
		return nil, err
	}
	var files []store.FileChange
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		status, path, ok := strings.Cut(line, "\t")
		if !ok {
			continue
		}
		// Renames come through as "R100\told\tnew"; keep the new path.
		if i := strings.LastIndex(path, "\t"); i >= 0 {
			path = path[i+1:]
		}
		files = append(files, store.FileChange{Path: path, Status: status})
	}
	return files, nil
}

// appendEvent writes one vcs event, logging (not propagating) store failures
// so a bad write never stops the poll timer.
func (m *GitMonitor) appendEvent(sessionID string, rec store.VcsEventRecord) {
	if _, err := m.store.AppendVcsEvent(sessionID, rec); err != nil {
		m.log.Warn("failed to write vcs event", "kind", rec.Kind, "error", err)
	}
}

// parsePorcelain categorizes `git status --porcelain` output into staged,
// modified, untracked and deleted paths. Returns the file list and a short
// human-readable summary.
func parsePorcelain(out string) ([]store.FileChange, string) {
	var files []store.FileChange
	var staged, modified, untracked, deleted int

	// Leading space is significant in porcelain format: " M foo" means
	// modified in the worktree only.
	for _, line := range strings.Split(strings.TrimRight(out, "\n"), "\n") {
		if len(line) < 4 {
			continue
		}
		index, worktree := line[0], line[1]
		path := strings.TrimSpace(line[3:])

		switch {
		case index == '?' && worktree == '?':
			untracked++
			files = append(files, store.FileChange{Path: path, Status: "untracked"})
		case index == 'D' || worktree == 'D':
			deleted++
			files = append(files, store.FileChange{Path: path, Status: "deleted"})
		case index != ' ' && index != '?':
			staged++
			files = append(files, store.FileChange{Path: path, Status: "staged"})
		default:
			modified++
			files = append(files, store.FileChange{Path: path, Status: "modified"})
		}
	}

	if len(files) == 0 {
		return nil, ""
	}

	var parts []string
	if staged > 0 {
		parts = append(parts, fmt.Sprintf("%d staged", staged))
	}
	if modified > 0 {
		parts = append(parts, fmt.Sprintf("%d modified", modified))
	}
	if untracked > 0 {
		parts = append(parts, fmt.Sprintf("%d untracked", untracked))
	}
	if deleted > 0 {
		parts = append(parts, fmt.Sprintf("%d deleted", deleted))
	}
	return files, strings.Join(parts, ", ")
}

// isExitCode128 reports whether err is an *exec.ExitError with exit code 128,
// git's "not a repository" signal.
func isExitCode128(err error) bool {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode() == 128
	}
	return false
}
