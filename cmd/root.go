package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/chronicle-dev/chronicle/internal/config"
	"github.com/chronicle-dev/chronicle/internal/logger"
	"github.com/chronicle-dev/chronicle/internal/monitor"
	"github.com/chronicle-dev/chronicle/internal/store"
	"github.com/chronicle-dev/chronicle/internal/tracker"
)

// cfg holds the merged configuration, populated in PersistentPreRunE.
var cfg config.Config

var debugFlag bool

var rootCmd = &cobra.Command{
	Use:   "chronicle",
	Short: "Record developer activity into a local timeline and turn it into reports",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Load and merge config files.
		global, err := config.LoadGlobal()
		if err != nil {
			return err
		}
		project, err := config.LoadProject()
		if err != nil {
			return err
		}
		cfg = config.Merge(global, project)

		logger.SetDebug(debugFlag)
		return nil
	},
}

// Execute runs the root command. Exits with code 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// GetConfig returns the merged configuration for use by subcommands.
func GetConfig() config.Config {
	return cfg
}

// openStore opens the timeline store at the configured (or default) location.
func openStore() (*store.Store, error) {
	path := cfg.DatabasePath
	if path == "" {
		var err error
		path, err = store.DefaultPath()
		if err != nil {
			return nil, err
		}
	}
	return store.Open(path)
}

// newTracker wires a coordinator over st with config-driven monitors.
func newTracker(st *store.Store) *tracker.Tracker {
	files := monitor.NewFileMonitor(st, monitor.FileMonitorOptions{
		SnapshotInterval: cfg.SnapshotInterval(),
		Debounce:         cfg.Debounce(),
		IgnorePatterns:   cfg.IgnorePatterns,
	})
	git := monitor.NewGitMonitor(st, monitor.GitMonitorOptions{
		PollInterval: cfg.PollInterval(),
		CommitWindow: cfg.CommitWindow,
	})
	return tracker.New(st, files, git)
}

// latestSessionID returns the most recent session's id, or "" when the store
// is empty.
func latestSessionID(st *store.Store) (string, error) {
	sessions, err := st.ListSessions(1)
	if err != nil {
		return "", err
	}
	if len(sessions) == 0 {
		return "", nil
	}
	return sessions[0].ID, nil
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Enable debug logging")
}
