package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/ohler55/ojg/oj"
	"github.com/spf13/cobra"
)

var applyDryRun bool

func init() {
	applyCmd.Flags().BoolVar(&applyDryRun, "dry-run", false, "stage only; do not write to disk")
	rootCmd.AddCommand(applyCmd)
}

var applyCmd = &cobra.Command{
	Use:   "apply [response-file]",
	Short: "Parse a tagged agent response and apply it to the project",
	Long: `Reads an agent response (from a file or stdin), extracts the
protocol tags, stages the operations, and syncs them to the project
directory. With --dry-run the staged snapshot is printed instead and
nothing touches disk.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		response, err := readInput(args)
		if err != nil {
			return err
		}

		reg := newRegistry()
		p := project()
		defer func() { _ = reg.Dispose(p.ID) }()

		turn, err := reg.ApplyTurn(cmd.Context(), p, response, nil)
		if err != nil {
			return err
		}

		if applyDryRun {
			printJSON(map[string]any{
				"turn":    turn,
				"pending": reg.Snapshot(p.ID),
			})
			return nil
		}

		report, err := reg.SyncToDisk(cmd.Context(), p)
		if err != nil {
			return err
		}
		turn.Sync = &report
		printJSON(turn)

		if !report.Ok() {
			return fmt.Errorf("%d path(s) failed to sync", len(report.Failed))
		}
		return nil
	},
}

// readInput returns the response text from the named file, or stdin
// when no file (or "-") is given.
func readInput(args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func printJSON(v any) {
	fmt.Println(oj.JSON(v, &oj.Options{Indent: 2, Sort: true}))
}
