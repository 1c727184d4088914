// Package report assembles a recorded session into a renderable timeline.
// The rendered output is what the external text-generation collaborator
// consumes; the generation call itself lives outside this repository.
package report

import (
	"fmt"
	"sort"
	"time"

	"github.com/chronicle-dev/chronicle/internal/store"
)

// Entry is one item on the merged chronological timeline.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Kind      string    `json:"kind"` // snapshot change kind or vcs event kind
	Text      string    `json:"text"`
}

// Timeline is the complete, renderable representation of one session.
type Timeline struct {
	Session   store.Session    `json:"session"`
	Duration  string           `json:"duration"` // human-readable, e.g. "2h15m0s"
	Snapshots []store.Snapshot `json:"snapshots"`
	Events    []store.VcsEvent `json:"events"`
	Entries   []Entry          `json:"entries"`
}

// Build reads a session and its recorded activity from the store and merges
// everything into a chronological timeline.
func Build(st *store.Store, sessionID string) (*Timeline, error) {
	sess, err := st.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, fmt.Errorf("session not found: %s", sessionID)
	}

	snapshots, err := st.ListSnapshots(sessionID, 0)
	if err != nil {
		return nil, err
	}
	events, err := st.ListVcsEvents(sessionID, 0)
	if err != nil {
		return nil, err
	}

	end := time.Now()
	if sess.EndedAt != nil {
		end = *sess.EndedAt
	}

	tl := &Timeline{
		Session:   *sess,
		Duration:  end.Sub(sess.StartedAt).Round(time.Second).String(),
		Snapshots: snapshots,
		Events:    events,
	}
	tl.Entries = mergeEntries(snapshots, events)
	return tl, nil
}

// mergeEntries interleaves snapshots and vcs events oldest-first.
func mergeEntries(snapshots []store.Snapshot, events []store.VcsEvent) []Entry {
	entries := make([]Entry, 0, len(snapshots)+len(events))
	for _, s := range snapshots {
		entries = append(entries, Entry{
			Timestamp: s.CapturedAt,
			Kind:      s.ChangeKind,
			Text:      s.Path,
		})
	}
	for _, e := range events {
		entries = append(entries, Entry{
			Timestamp: e.OccurredAt,
			Kind:      e.Kind,
			Text:      eventText(e),
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})
	return entries
}

// eventText builds the one-line timeline text for a vcs event.
func eventText(e store.VcsEvent) string {
	switch e.Kind {
	case store.EventCommit:
		hash := e.CommitHash
		if len(hash) > 8 {
			hash = hash[:8]
		}
		return fmt.Sprintf("%s %s", hash, e.Message)
	case store.EventBranchChange:
		return e.Message
	case store.EventStatusChange:
		return "working tree dirty: " + e.Message
	case store.EventSessionStart, store.EventSessionEnd:
		if e.Branch != "" {
			return e.Message + " on " + e.Branch
		}
		return e.Message
	default:
		return e.Message
	}
}
