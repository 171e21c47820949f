package syncer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

// DiskWriter applies a single staged mutation to the project directory.
// Paths are relative to the project root, forward-slash separated.
type DiskWriter interface {
	// WriteFile replaces path with content, creating parent
	// directories as needed.
	WriteFile(path string, content []byte) error
	// Remove deletes path. Removing a missing file is not an error.
	Remove(path string) error
}

// osWriter writes through to a real directory with atomic replacement:
// temp file in the destination directory, then rename over the target.
type osWriter struct {
	root string
}

// NewDiskWriter returns a DiskWriter rooted at dir.
func NewDiskWriter(dir string) DiskWriter {
	return &osWriter{root: dir}
}

func (w *osWriter) WriteFile(path string, content []byte) error {
	dst := filepath.Join(w.root, filepath.FromSlash(path))
	if !strings.HasPrefix(dst, filepath.Clean(w.root)+string(filepath.Separator)) {
		return fmt.Errorf("path %q escapes project root", path)
	}
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create parent dirs: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".loom-sync-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName) // best-effort cleanup
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName) // best-effort cleanup
		return fmt.Errorf("close temp file: %w", err)
	}

	// Preserve original file permissions
	if info, err := os.Stat(dst); err == nil {
		_ = os.Chmod(tmpName, info.Mode()) // best-effort permission sync
	}

	if err := os.Rename(tmpName, dst); err != nil {
		_ = os.Remove(tmpName) // best-effort cleanup
		return fmt.Errorf("rename temp to %s: %w", dst, err)
	}
	return nil
}

func (w *osWriter) Remove(path string) error {
	dst := filepath.Join(w.root, filepath.FromSlash(path))
	if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", dst, err)
	}
	return nil
}

// billyWriter targets a billy filesystem. Used by tests and the staging
// mount, where atomicity is the in-memory store's problem.
type billyWriter struct {
	fs billy.Filesystem
}

// NewBillyWriter returns a DiskWriter over an arbitrary billy filesystem.
func NewBillyWriter(fs billy.Filesystem) DiskWriter {
	return &billyWriter{fs: fs}
}

func (w *billyWriter) WriteFile(path string, content []byte) error {
	if err := w.fs.MkdirAll(gopathDir(path), 0o755); err != nil {
		return fmt.Errorf("create parent dirs: %w", err)
	}
	if err := util.WriteFile(w.fs, path, content, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func (w *billyWriter) Remove(path string) error {
	if err := w.fs.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

func gopathDir(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[:i]
	}
	return "."
}
