package cmd

import (
	"strings"
	"testing"
)

// TestStopNoSession verifies that "stop" with nothing active reports so
// without failing.
func TestStopNoSession(t *testing.T) {
	isolateState(t)

	out, err := executeCommand(rootCmd, "stop")
	if err != nil {
		t.Fatalf("stop command error: %v", err)
	}
	if !strings.Contains(out, "no active session to stop") {
		t.Errorf("expected output to contain %q, got:\n%s", "no active session to stop", out)
	}
}

// TestStopEndsSeededSession verifies that "stop" closes a session started by
// another process.
func TestStopEndsSeededSession(t *testing.T) {
	tmp := isolateState(t)
	id := seedActiveSession(t, tmp)

	out, err := executeCommand(rootCmd, "stop")
	if err != nil {
		t.Fatalf("stop command error: %v", err)
	}
	if !strings.Contains(out, "Session stopped: "+id) {
		t.Errorf("expected output to contain %q, got:\n%s", "Session stopped: "+id, out)
	}
	if !strings.Contains(out, "Duration:") {
		t.Errorf("expected output to contain a duration line, got:\n%s", out)
	}

	// A second stop finds nothing active.
	out, err = executeCommand(rootCmd, "stop")
	if err != nil {
		t.Fatalf("second stop command error: %v", err)
	}
	if !strings.Contains(out, "no active session to stop") {
		t.Errorf("expected second stop to report nothing active, got:\n%s", out)
	}
}
