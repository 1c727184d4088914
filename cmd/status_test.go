package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/chronicle-dev/chronicle/internal/store"
)

// TestStatusNoSession verifies the inactive report.
func TestStatusNoSession(t *testing.T) {
	isolateState(t)
	statusJSON = false

	out, err := executeCommand(rootCmd, "status")
	if err != nil {
		t.Fatalf("status command error: %v", err)
	}
	if !strings.Contains(out, "no active session") {
		t.Errorf("expected output to contain %q, got:\n%s", "no active session", out)
	}
}

// TestStatusCountsAccuracy checks that the status output reports exactly the
// number of snapshots and git events recorded for the active session.
func TestStatusCountsAccuracy(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(0, 20).Draw(rt, "snapshots")
		m := rapid.IntRange(0, 20).Draw(rt, "events")

		tmp := t.TempDir()
		t.Setenv("HOME", tmp)
		t.Setenv("XDG_DATA_HOME", tmp)
		statusJSON = false

		path, err := store.DefaultPath()
		if err != nil {
			rt.Fatalf("DefaultPath: %v", err)
		}
		st, err := store.Open(path)
		if err != nil {
			rt.Fatalf("Open: %v", err)
		}
		id, err := st.CreateSession(tmp)
		if err != nil {
			rt.Fatalf("CreateSession: %v", err)
		}
		for i := 0; i < n; i++ {
			err := st.AppendSnapshot(id, store.SnapshotRecord{
				CapturedAt: time.Now(),
				Path:       fmt.Sprintf("file%d.go", i),
				ChangeKind: store.ChangeModified,
			})
			if err != nil {
				rt.Fatalf("AppendSnapshot: %v", err)
			}
		}
		for i := 0; i < m; i++ {
			_, err := st.AppendVcsEvent(id, store.VcsEventRecord{
				OccurredAt: time.Now(),
				Kind:       store.EventCommit,
				CommitHash: fmt.Sprintf("%040d", i),
				Message:    fmt.Sprintf("commit %d", i),
			})
			if err != nil {
				rt.Fatalf("AppendVcsEvent: %v", err)
			}
		}
		if err := st.Close(); err != nil {
			rt.Fatalf("Close: %v", err)
		}

		out, err := executeCommand(rootCmd, "status")
		if err != nil {
			rt.Fatalf("status command error: %v", err)
		}

		wantSnapshots := fmt.Sprintf("Snapshots: %d", n)
		wantEvents := fmt.Sprintf("Git events: %d", m)
		if !strings.Contains(out, wantSnapshots) {
			rt.Errorf("expected output to contain %q, got:\n%s", wantSnapshots, out)
		}
		if !strings.Contains(out, wantEvents) {
			rt.Errorf("expected output to contain %q, got:\n%s", wantEvents, out)
		}
	})
}

// TestStatusJSONOutput verifies that --json prints a decodable document.
func TestStatusJSONOutput(t *testing.T) {
	tmp := isolateState(t)
	id := seedActiveSession(t, tmp)

	out, err := executeCommand(rootCmd, "status", "--json")
	statusJSON = false
	if err != nil {
		t.Fatalf("status command error: %v", err)
	}

	var decoded struct {
		Active  bool `json:"active"`
		Session *struct {
			ID string `json:"id"`
		} `json:"session"`
	}
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("unmarshal status output: %v\noutput:\n%s", err, out)
	}
	if !decoded.Active {
		t.Error("expected active=true in JSON status")
	}
	if decoded.Session == nil || decoded.Session.ID != id {
		t.Errorf("expected session id %s in JSON status, got: %+v", id, decoded.Session)
	}
}
