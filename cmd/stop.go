package cmd

import (
	"time"

	"github.com/spf13/cobra"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "End the current tracking session",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		tr := newTracker(st)
		defer tr.Close()

		result, err := tr.StopSession()
		if err != nil {
			return err
		}
		if !result.Stopped {
			cmd.Println("no active session to stop")
			return nil
		}

		s := result.Session
		duration := ""
		if s.EndedAt != nil {
			duration = s.EndedAt.Sub(s.StartedAt).Round(time.Second).String()
		}
		cmd.Printf("Session stopped: %s\n", s.ID)
		if duration != "" {
			cmd.Printf("Duration: %s\n", duration)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(stopCmd)
}
