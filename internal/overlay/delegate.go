package overlay

import (
	"os"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
)

// ReadDelegate gives an overlay access to the real files beneath it.
// Paths are relative to the project base directory.
type ReadDelegate interface {
	Exists(path string) bool
	Read(path string) ([]byte, error)
}

// billyDelegate adapts any billy.Filesystem to ReadDelegate. Production
// overlays use an osfs rooted at the project base; tests use a memfs.
type billyDelegate struct {
	fs billy.Filesystem
}

// NewBillyDelegate wraps a billy filesystem as a read delegate.
func NewBillyDelegate(fs billy.Filesystem) ReadDelegate {
	return &billyDelegate{fs: fs}
}

// NewDiskDelegate returns a read delegate over the real directory at base.
func NewDiskDelegate(base string) ReadDelegate {
	return &billyDelegate{fs: osfs.New(base)}
}

// NewMemDelegate returns an empty in-memory delegate, seeded with the given
// path → content fixtures. Intended for tests and pure in-memory use.
func NewMemDelegate(files map[string]string) ReadDelegate {
	fs := memfs.New()
	for p, content := range files {
		_ = util.WriteFile(fs, p, []byte(content), 0o644)
	}
	return &billyDelegate{fs: fs}
}

func (d *billyDelegate) Exists(path string) bool {
	_, err := d.fs.Stat(path)
	return err == nil
}

func (d *billyDelegate) Read(path string) ([]byte, error) {
	data, err := util.ReadFile(d.fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, os.ErrNotExist
		}
		return nil, err
	}
	return data, nil
}
