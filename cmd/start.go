package cmd

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start [path]",
	Short: "Begin a new tracking session",
	Long: `Begin tracking activity under the given project path (default: the
current directory). The command keeps running while monitors capture file and
git activity; interrupt it, or run "chronicle stop" from another terminal, to
end the session.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "."
		if len(args) > 0 {
			path = args[0]
		}

		st, err := openStore()
		if err != nil {
			return err
		}
		tr := newTracker(st)
		defer tr.Close()

		result, err := tr.StartSession(path)
		if err != nil {
			return err
		}

		cmd.Printf("Session started: %s\n", result.Session.ID)
		cmd.Printf("Project: %s\n", result.Session.ProjectPath)
		for _, w := range result.Warnings {
			cmd.Printf("warning: %s\n", w)
		}
		cmd.Println("Tracking. Press Ctrl-C or run \"chronicle stop\" to end the session.")

		// Block while the monitors run. Two ways out: an interrupt here, or
		// "chronicle stop" from another process closing the session row.
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sig)

		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-sig:
				res, err := tr.StopSession()
				if err != nil {
					return err
				}
				if res.Stopped {
					cmd.Printf("Session stopped: %s\n", res.Session.ID)
				}
				return nil

			case <-ticker.C:
				active, err := tr.Active()
				if err != nil {
					continue // transient store hiccup; keep tracking
				}
				if !active {
					// Stopped externally; tr.Close (deferred) flushes and
					// releases the monitors.
					cmd.Println("Session stopped.")
					return nil
				}
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(startCmd)
}
