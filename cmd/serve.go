package cmd

import (
	"github.com/spf13/cobra"

	"github.com/agentic-research/loom/internal/mcpserver"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the engine as an MCP server on stdio",
	Long: `Exposes the build engine to agents over the Model Context
Protocol: apply_response, snapshot, sync_to_disk, reset, history.
Overlays stay alive for the lifetime of the server, so staged edits
accumulate across tool calls.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		reg := newRegistry()
		return mcpserver.ServeStdio(mcpserver.New(reg))
	},
}
