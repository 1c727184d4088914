package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"github.com/chronicle-dev/chronicle/internal/report"
	"github.com/chronicle-dev/chronicle/internal/tui"
)

var plainOutput bool

var viewCmd = &cobra.Command{
	Use:   "view [session-id]",
	Short: "Browse a recorded session's timeline",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		sessionID := ""
		if len(args) > 0 {
			sessionID = args[0]
		} else {
			sessionID, err = latestSessionID(st)
			if err != nil {
				return err
			}
			if sessionID == "" {
				return fmt.Errorf("no recorded sessions")
			}
		}

		timeline, err := report.Build(st, sessionID)
		if err != nil {
			return err
		}

		if plainOutput || !term.IsTerminal(os.Stdout.Fd()) {
			printTimeline(cmd, timeline)
			return nil
		}
		return tui.Run(timeline)
	},
}

// printTimeline writes a plain-text summary.
func printTimeline(cmd *cobra.Command, tl *report.Timeline) {
	s := tl.Session
	cmd.Println("## Summary")
	cmd.Printf("  Session:   %s\n", s.ID)
	cmd.Printf("  Project:   %s\n", s.ProjectPath)
	cmd.Printf("  Status:    %s\n", s.Status)
	cmd.Printf("  Started:   %s\n", s.StartedAt.Format("2006-01-02 15:04:05 MST"))
	if s.EndedAt != nil {
		cmd.Printf("  Ended:     %s\n", s.EndedAt.Format("2006-01-02 15:04:05 MST"))
	}
	cmd.Printf("  Duration:  %s\n", tl.Duration)
	cmd.Println()

	cmd.Printf("## Timeline (%d entries)\n", len(tl.Entries))
	if len(tl.Entries) == 0 {
		cmd.Println("  (nothing recorded)")
		return
	}
	for _, entry := range tl.Entries {
		cmd.Printf("  %s  %-13s %s\n",
			entry.Timestamp.Format(time.TimeOnly),
			entry.Kind,
			entry.Text,
		)
	}
}

func init() {
	viewCmd.Flags().BoolVar(&plainOutput, "plain", false, "Print a plain-text summary instead of the TUI")
	rootCmd.AddCommand(viewCmd)
}
