package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"

	"github.com/agentic-research/loom/internal/logging"
	"github.com/agentic-research/loom/internal/stagemount"
)

var (
	mountApplyFile string
	mountPoint     string
)

func init() {
	mountCmd.Flags().StringVar(&mountApplyFile, "apply", "", "stage a tagged response file before serving")
	mountCmd.Flags().StringVar(&mountPoint, "mountpoint", "", "mount the served view at this directory (needs sudo)")
	rootCmd.AddCommand(mountCmd)
}

// MountMetadata is written to a sidecar file beside the mount point so
// tooling can discover live staged views.
type MountMetadata struct {
	PID        int       `json:"pid"`
	ProjectID  string    `json:"project_id"`
	ProjectDir string    `json:"project_dir"`
	Port       int       `json:"port"`
	MountPoint string    `json:"mount_point,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

var mountCmd = &cobra.Command{
	Use:   "mount",
	Short: "Serve the staged project view read-only over NFS",
	Long: `Serves the merged view (staged overlay over the real project
directory) as a read-only NFS export. With --apply a tagged response is
staged first, so the export previews what a sync would produce.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := logging.Get("mount")
		reg := newRegistry()
		p := project()

		if mountApplyFile != "" {
			data, err := os.ReadFile(mountApplyFile)
			if err != nil {
				return err
			}
			turn, err := reg.ApplyTurn(cmd.Context(), p, string(data), nil)
			if err != nil {
				return err
			}
			logger.Info("staged response", "ops", len(turn.Operations), "problems", len(turn.Problems))
		}

		ov, err := reg.GetOrCreate(p)
		if err != nil {
			return err
		}

		fs := stagemount.New(ov, osfs.New(p.Dir))
		srv, err := stagemount.NewServer(fs, cfg.Mount.Port)
		if err != nil {
			return err
		}
		defer srv.Close()

		meta := &MountMetadata{
			PID:        os.Getpid(),
			ProjectID:  p.ID,
			ProjectDir: p.Dir,
			Port:       srv.Port(),
			MountPoint: mountPoint,
			Timestamp:  time.Now(),
		}
		sidecar := filepath.Join(p.Dir, ".loom", "mount.meta.json")
		if err := saveMountMetadata(sidecar, meta); err != nil {
			logger.Warn("could not write mount metadata", "err", err)
		} else {
			defer os.Remove(sidecar)
		}

		fmt.Printf("Serving staged view of %s on nfs://localhost:%d/\n", p.Dir, srv.Port())

		if mountPoint != "" {
			if err := stagemount.Mount(srv.Port(), mountPoint); err != nil {
				return err
			}
			defer func() {
				if err := stagemount.Unmount(mountPoint); err != nil {
					logger.Warn("unmount failed", "err", err)
				}
			}()
			fmt.Printf("Mounted at %s\n", mountPoint)
		}

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		fmt.Println("shutting down")
		return nil
	},
}

func saveMountMetadata(path string, meta *MountMetadata) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
