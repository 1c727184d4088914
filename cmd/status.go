package cmd

import (
	"encoding/json"
	"time"

	"github.com/spf13/cobra"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current tracking session status",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		tr := newTracker(st)
		defer tr.Close()

		status, err := tr.Status()
		if err != nil {
			return err
		}

		if statusJSON {
			data, err := json.MarshalIndent(status, "", "  ")
			if err != nil {
				return err
			}
			cmd.Println(string(data))
			return nil
		}

		if !status.Active {
			cmd.Println("no active session")
			return nil
		}

		s := status.Session
		cmd.Printf("Session: %s\n", s.ID)
		cmd.Printf("Project: %s\n", s.ProjectPath)
		cmd.Printf("Started: %s\n", s.StartedAt.Format(time.RFC3339))
		cmd.Printf("Duration: %s\n", (time.Duration(status.DurationSeconds)*time.Second).String())
		cmd.Printf("Snapshots: %d\n", status.Stats.Snapshots)
		cmd.Printf("Git events: %d\n", status.Stats.GitEvents)
		if status.Files.Watching {
			cmd.Printf("Watcher: active (%d pending)\n", status.Files.PendingFiles)
		} else {
			cmd.Println("Watcher: inactive")
		}
		if status.Git.Monitoring {
			cmd.Printf("Git: monitoring (branch %s)\n", status.Git.Branch)
		} else {
			cmd.Println("Git: inactive")
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Print status as JSON")
	rootCmd.AddCommand(statusCmd)
}
