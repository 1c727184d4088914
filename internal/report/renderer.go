package report

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Renderer serializes a Timeline to bytes.
type Renderer interface {
	Render(tl *Timeline) ([]byte, error)
}

// JSONRenderer renders a Timeline as indented JSON.
type JSONRenderer struct{}

func (r *JSONRenderer) Render(tl *Timeline) ([]byte, error) {
	return json.MarshalIndent(tl, "", "  ")
}

// MarkdownRenderer renders a Timeline as human-readable Markdown, shaped as
// the narrative input handed to the text-generation service.
type MarkdownRenderer struct{}

func (r *MarkdownRenderer) Render(tl *Timeline) ([]byte, error) {
	var sb strings.Builder

	// Title.
	fmt.Fprintf(&sb, "# Session — %s — %s\n\n",
		tl.Session.ProjectPath,
		tl.Session.StartedAt.Format("2006-01-02 15:04:05 MST"),
	)

	// ## Summary
	sb.WriteString("## Summary\n\n")
	fmt.Fprintf(&sb, "- Session: %s\n", tl.Session.ID)
	fmt.Fprintf(&sb, "- Status: %s\n", tl.Session.Status)
	fmt.Fprintf(&sb, "- Duration: %s\n", tl.Duration)
	fmt.Fprintf(&sb, "- File changes recorded: %d\n", len(tl.Snapshots))
	fmt.Fprintf(&sb, "- Version-control events: %d\n", len(tl.Events))
	sb.WriteString("\n")

	// ## File Activity
	sb.WriteString("## File Activity\n\n")
	if len(tl.Snapshots) == 0 {
		sb.WriteString("_No file changes recorded._\n")
	} else {
		sb.WriteString("| Path | Change | Captured |\n")
		sb.WriteString("|------|--------|----------|\n")
		for _, s := range tl.Snapshots {
			fmt.Fprintf(&sb, "| %s | %s | %s |\n",
				s.Path,
				s.ChangeKind,
				s.CapturedAt.Format("2006-01-02 15:04:05"),
			)
		}
	}
	sb.WriteString("\n")

	// ## Version Control
	sb.WriteString("## Version Control\n\n")
	if len(tl.Events) == 0 {
		sb.WriteString("_No version-control events recorded._\n")
	} else {
		for _, e := range tl.Events {
			fmt.Fprintf(&sb, "- [%s] (%s) %s\n",
				e.OccurredAt.Format("2006-01-02 15:04:05"),
				e.Kind,
				eventText(e),
			)
			for _, f := range e.FilesChanged {
				fmt.Fprintf(&sb, "  - %s %s\n", f.Status, f.Path)
			}
		}
	}
	sb.WriteString("\n")

	// ## Timeline
	sb.WriteString("## Timeline\n\n")
	if len(tl.Entries) == 0 {
		sb.WriteString("_Nothing recorded in this session._\n")
	} else {
		for _, entry := range tl.Entries {
			fmt.Fprintf(&sb, "- %s  %-13s %s\n",
				entry.Timestamp.Format("15:04:05"),
				entry.Kind,
				entry.Text,
			)
		}
	}
	sb.WriteString("\n")

	return []byte(sb.String()), nil
}
