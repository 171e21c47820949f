package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/agentic-research/loom/api"
	"github.com/agentic-research/loom/internal/journal"
	"github.com/agentic-research/loom/internal/registry"
)

var (
	historyLimit int
	historyPath  string
	historyJSON  bool
)

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "maximum turns to show (0 for all)")
	historyCmd.Flags().StringVarP(&historyPath, "path", "p", "", "only turns that touched this file")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "machine-readable output")
	rootCmd.AddCommand(historyCmd)
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List journaled turns, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		journalPath := filepath.Join(projectDir, registry.StateDirName, journal.DefaultFileName)
		if _, err := os.Stat(journalPath); err != nil {
			return fmt.Errorf("no journal at %s (has anything been applied?)", journalPath)
		}

		j, err := journal.Open(journalPath)
		if err != nil {
			return err
		}
		defer j.Close()

		if historyPath != "" {
			seqs, err := j.TurnsForPath(historyPath)
			if err != nil {
				return err
			}
			if historyJSON {
				printJSON(map[string]any{"path": historyPath, "turns": seqs})
				return nil
			}
			if len(seqs) == 0 {
				fmt.Printf("no turns touched %s\n", historyPath)
				return nil
			}
			fmt.Printf("%s touched in turn(s): ", historyPath)
			for i, seq := range seqs {
				if i > 0 {
					fmt.Print(", ")
				}
				fmt.Printf("#%d", seq)
			}
			fmt.Println()
			return nil
		}

		turns, err := j.Turns(historyLimit)
		if err != nil {
			return err
		}
		if historyJSON {
			printJSON(turns)
			return nil
		}

		for _, t := range turns {
			summary := t.Summary
			if summary == "" {
				summary = "(no summary)"
			}
			fmt.Printf("#%d  %s  %s\n", t.Seq, t.At.Format("2006-01-02 15:04"), summary)
			for _, op := range t.Ops {
				switch op.Kind {
				case api.OpRename:
					fmt.Printf("    %-14s %s -> %s\n", op.Kind, op.Path, op.Detail)
				case api.OpWrite, api.OpDelete:
					fmt.Printf("    %-14s %s\n", op.Kind, op.Path)
				default:
					fmt.Printf("    %-14s %s\n", op.Kind, op.Detail)
				}
			}
		}
		return nil
	},
}
