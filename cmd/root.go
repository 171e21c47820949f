// Package cmd implements the loom CLI. Staged overlay state lives in
// the running process: apply syncs by default, while mount and serve
// keep the registry alive across turns.
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/agentic-research/loom/internal/config"
	"github.com/agentic-research/loom/internal/logging"
	"github.com/agentic-research/loom/internal/registry"
	"github.com/agentic-research/loom/internal/syncer"
)

var (
	projectID  string
	projectDir string
	configPath string

	cfg config.Config
)

var rootCmd = &cobra.Command{
	Use:   "loom",
	Short: "Loom: continuous build engine for agent-driven app building",
	Long: `Loom parses the tag protocol emitted by app-building agents,
stages the resulting file operations on a per-project overlay, and
materializes them onto disk.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if projectDir, err = filepath.Abs(projectDir); err != nil {
			return fmt.Errorf("resolve project dir: %w", err)
		}
		if configPath == "" {
			configPath = filepath.Join(projectDir, config.DefaultFileName)
		}
		if cfg, err = config.Load(configPath); err != nil {
			return err
		}
		return logging.Init(logging.Config{
			Level: cfg.LogLevel,
			// The MCP server owns stdout; keep logs off the wire.
			Quiet: cmd.Name() == "serve",
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&projectID, "id", "", "project id (defaults to a generated uuid)")
	rootCmd.PersistentFlags().StringVarP(&projectDir, "dir", "d", ".", "project directory")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to loom.hcl (defaults to <dir>/loom.hcl)")
}

// project resolves the project identity from flags.
func project() registry.Project {
	id := projectID
	if id == "" {
		id = uuid.NewString()
	}
	return registry.Project{ID: id, Dir: projectDir}
}

// newRegistry builds a registry from the loaded configuration.
func newRegistry() *registry.Registry {
	return registry.New(registry.Options{
		Sync: syncer.Options{
			Parallelism: cfg.Sync.Parallelism,
			Validate:    cfg.Sync.Validate,
			Format:      cfg.Sync.Format,
			Logger:      logging.Get("syncer"),
		},
		Journal: cfg.Journal.Enabled,
		Logger:  logging.Get("registry"),
	})
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
