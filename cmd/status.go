package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/agentic-research/loom/internal/journal"
	"github.com/agentic-research/loom/internal/registry"
)

var statusJSON bool

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "machine-readable output")
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the project's engine state",
	Long: `Shows the project directory, configuration, and journal summary.
Staged overlay state is process-local, so status reports the durable
state under .loom; use apply --dry-run to preview a response.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		journalPath := filepath.Join(projectDir, registry.StateDirName, journal.DefaultFileName)

		var turnCount int
		var lastSummary string
		var lastAt string
		if _, err := os.Stat(journalPath); err == nil {
			j, err := journal.Open(journalPath)
			if err != nil {
				return err
			}
			defer j.Close()

			turns, err := j.Turns(0)
			if err != nil {
				return err
			}
			turnCount = len(turns)
			if turnCount > 0 {
				lastSummary = turns[0].Summary
				lastAt = turns[0].At.Format("2006-01-02 15:04:05")
			}
		}

		if statusJSON {
			printJSON(map[string]any{
				"dir":          projectDir,
				"config":       configPath,
				"journal":      journalPath,
				"turns":        turnCount,
				"last_summary": lastSummary,
				"last_at":      lastAt,
			})
			return nil
		}

		fmt.Printf("Project:  %s\n", projectDir)
		fmt.Printf("Config:   %s\n", configPath)
		if turnCount == 0 {
			fmt.Println("Journal:  no recorded turns")
			return nil
		}
		fmt.Printf("Journal:  %d turn(s)\n", turnCount)
		if lastSummary != "" {
			fmt.Printf("Last:     %s (%s)\n", lastSummary, lastAt)
		} else {
			fmt.Printf("Last:     %s\n", lastAt)
		}
		return nil
	},
}
