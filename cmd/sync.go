package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var syncJSON bool

func init() {
	syncCmd.Flags().BoolVar(&syncJSON, "json", false, "machine-readable output")
	rootCmd.AddCommand(syncCmd)
}

var syncCmd = &cobra.Command{
	Use:   "sync [response-file]",
	Short: "Stage a tagged response and flush it to the project directory",
	Long: `Like apply, but reports only the sync outcome. Reads the agent
response from a file or stdin, stages its operations, and writes them
through to disk.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		response, err := readInput(args)
		if err != nil {
			return err
		}

		reg := newRegistry()
		p := project()
		defer func() { _ = reg.Dispose(p.ID) }()

		if _, err := reg.ApplyTurn(cmd.Context(), p, response, nil); err != nil {
			return err
		}
		report, err := reg.SyncToDisk(cmd.Context(), p)
		if err != nil {
			return err
		}

		if syncJSON {
			printJSON(report)
		} else {
			fmt.Printf("written: %d, removed: %d, failed: %d\n",
				len(report.Written), len(report.Removed), len(report.Failed))
			for _, f := range report.Failed {
				fmt.Printf("  %s: %s\n", f.Path, f.Reason)
			}
		}

		if !report.Ok() {
			return fmt.Errorf("%d path(s) failed to sync", len(report.Failed))
		}
		return nil
	},
}
