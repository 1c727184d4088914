package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chronicle-dev/chronicle/internal/report"
)

var reportFormat string
var reportOutput string

var reportCmd = &cobra.Command{
	Use:   "report [session-id]",
	Short: "Render a recorded session's timeline as a report",
	Long: `Render the timeline of a session (default: the most recent one) as
Markdown or JSON. The Markdown output is the narrative input handed to a
text-generation service.`,
	Args: cobra.MaximumNArgs(1),
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

		// Select renderer based on --format flag or config DefaultFormat.
		format := reportFormat
		if format == "" {
			format = cfg.DefaultFormat
		}
		var renderer report.Renderer
		if format == "json" {
			renderer = &report.JSONRenderer{}
		} else {
			renderer = &report.MarkdownRenderer{}
		}

		data, err := renderer.Render(timeline)
		if err != nil {
			return fmt.Errorf("render report: %w", err)
		}

		if reportOutput != "" {
			if err := os.WriteFile(reportOutput, data, 0644); err != nil {
				return fmt.Errorf("write report file: %w", err)
			}
			cmd.Printf("Report written: %s\n", reportOutput)
			return nil
		}
		cmd.Print(string(data))
		return nil
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportFormat, "format", "", "Output format: markdown or json (overrides config)")
	reportCmd.Flags().StringVarP(&reportOutput, "output", "o", "", "Write the report to a file instead of stdout")
	rootCmd.AddCommand(reportCmd)
}
