// Package stagemount serves a project's staged view over NFS: the
// overlay's pending writes and tombstones merged on top of the real
// directory, so preview tooling can inspect what a sync would produce
// without touching disk.
package stagemount

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/helper/chroot"
	"github.com/ohler55/ojg/oj"

	"github.com/agentic-research/loom/internal/overlay"
)

var errReadOnly = fmt.Errorf("read-only filesystem")

// PendingFileName is a virtual file at the mount root listing the
// staged writes and deletes as JSON.
const PendingFileName = "_pending.json"

// stateDirName is hidden from the merged view; it holds engine state,
// not project files.
const stateDirName = ".loom"

// StageFS adapts an overlay-over-directory merged view to
// billy.Filesystem for use with go-nfs.
type StageFS struct {
	ov        *overlay.Overlay
	base      billy.Filesystem
	mountTime time.Time
}

// New creates the merged filesystem: pending content wins, tombstones
// hide real files, everything else falls through to base.
func New(ov *overlay.Overlay, base billy.Filesystem) *StageFS {
	return &StageFS{ov: ov, base: base, mountTime: time.Now()}
}

// --- billy.Basic ---

func (fs *StageFS) Create(filename string) (billy.File, error) {
	return nil, errReadOnly
}

func (fs *StageFS) Open(filename string) (billy.File, error) {
	return fs.OpenFile(filename, os.O_RDONLY, 0)
}

func (fs *StageFS) OpenFile(filename string, flag int, perm os.FileMode) (billy.File, error) {
	if flag&(os.O_WRONLY|os.O_RDWR|os.O_CREATE|os.O_TRUNC) != 0 {
		return nil, errReadOnly
	}
	rel := relPath(filename)

	if rel == PendingFileName {
		return &bytesFile{name: PendingFileName, data: fs.pendingJSON()}, nil
	}

	snap := fs.snapshot()
	if _, dead := snap.deletes[rel]; dead {
		return nil, &os.PathError{Op: "open", Path: filename, Err: os.ErrNotExist}
	}
	if _, staged := snap.writes[rel]; staged {
		content, ok := fs.ov.Read(rel)
		if !ok {
			return nil, &os.PathError{Op: "open", Path: filename, Err: os.ErrNotExist}
		}
		return &bytesFile{name: rel, data: []byte(content)}, nil
	}
	return fs.base.Open(rel)
}

func (fs *StageFS) Stat(filename string) (os.FileInfo, error) {
	return fs.Lstat(filename)
}

func (fs *StageFS) Rename(oldpath, newpath string) error { return errReadOnly }

func (fs *StageFS) Remove(filename string) error { return errReadOnly }

func (fs *StageFS) Join(elem ...string) string { return filepath.Join(elem...) }

// --- billy.TempFile ---

func (fs *StageFS) TempFile(dir, prefix string) (billy.File, error) {
	return nil, billy.ErrNotSupported
}

// --- billy.Dir ---

func (fs *StageFS) ReadDir(path string) ([]os.FileInfo, error) {
	rel := relPath(path)
	snap := fs.snapshot()

	entries := make(map[string]os.FileInfo)

	baseRel := rel
	if baseRel == "" {
		baseRel = "/"
	}
	if infos, err := fs.base.ReadDir(baseRel); err == nil {
		for _, info := range infos {
			child := joinRel(rel, info.Name())
			if child == stateDirName {
				continue
			}
			if _, dead := snap.deletes[child]; dead && !info.IsDir() {
				continue
			}
			entries[info.Name()] = info
		}
	} else if !fs.dirStagedUnder(snap, rel) && rel != "" {
		return nil, &os.PathError{Op: "readdir", Path: path, Err: os.ErrNotExist}
	}

	// Staged writes appear as files; intermediate path segments as dirs.
	for staged := range snap.writes {
		name, isDir, under := childSegment(rel, staged)
		if !under {
			continue
		}
		if isDir {
			if _, ok := entries[name]; !ok {
				entries[name] = &staticFileInfo{
					name:    name,
					mode:    os.ModeDir | 0o555,
					modTime: fs.mountTime,
				}
			}
			continue
		}
		content, _ := fs.ov.Read(staged)
		entries[name] = &staticFileInfo{
			name:    name,
			size:    int64(len(content)),
			mode:    0o444,
			modTime: fs.mountTime,
		}
	}

	if rel == "" {
		data := fs.pendingJSON()
		entries[PendingFileName] = &staticFileInfo{
			name:    PendingFileName,
			size:    int64(len(data)),
			mode:    0o444,
			modTime: fs.mountTime,
		}
	}

	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	infos := make([]os.FileInfo, 0, len(names))
	for _, name := range names {
		infos = append(infos, entries[name])
	}
	return infos, nil
}

func (fs *StageFS) MkdirAll(filename string, perm os.FileMode) error {
	return errReadOnly
}

// --- billy.Symlink ---

func (fs *StageFS) Lstat(filename string) (os.FileInfo, error) {
	rel := relPath(filename)

	if rel == "" {
		return &staticFileInfo{
			name:    "/",
			mode:    os.ModeDir | 0o555,
			modTime: fs.mountTime,
		}, nil
	}
	if rel == PendingFileName {
		data := fs.pendingJSON()
		return &staticFileInfo{
			name:    PendingFileName,
			size:    int64(len(data)),
			mode:    0o444,
			modTime: fs.mountTime,
		}, nil
	}

	snap := fs.snapshot()
	if _, dead := snap.deletes[rel]; dead {
		return nil, &os.PathError{Op: "lstat", Path: filename, Err: os.ErrNotExist}
	}
	if _, staged := snap.writes[rel]; staged {
		content, _ := fs.ov.Read(rel)
		return &staticFileInfo{
			name:    filepath.Base(rel),
			size:    int64(len(content)),
			mode:    0o444,
			modTime: fs.mountTime,
		}, nil
	}
	if fs.dirStagedUnder(snap, rel) {
		if _, err := fs.base.Lstat(rel); err != nil {
			return &staticFileInfo{
				name:    filepath.Base(rel),
				mode:    os.ModeDir | 0o555,
				modTime: fs.mountTime,
			}, nil
		}
	}
	return fs.base.Lstat(rel)
}

func (fs *StageFS) Symlink(target, link string) error {
	return billy.ErrNotSupported
}

func (fs *StageFS) Readlink(link string) (string, error) {
	return "", billy.ErrNotSupported
}

// --- billy.Chroot ---

func (fs *StageFS) Chroot(path string) (billy.Filesystem, error) {
	return chroot.New(fs, path), nil
}

func (fs *StageFS) Root() string { return "/" }

// --- billy.Capable ---

func (fs *StageFS) Capabilities() billy.Capability {
	return billy.ReadCapability | billy.SeekCapability
}

// --- internals ---

type stageSnapshot struct {
	writes  map[string]struct{}
	deletes map[string]struct{}
}

func (fs *StageFS) snapshot() stageSnapshot {
	pending := fs.ov.ListPending()
	snap := stageSnapshot{
		writes:  make(map[string]struct{}, len(pending.Writes)),
		deletes: make(map[string]struct{}, len(pending.Deletes)),
	}
	for _, w := range pending.Writes {
		snap.writes[w] = struct{}{}
	}
	for _, d := range pending.Deletes {
		snap.deletes[d] = struct{}{}
	}
	return snap
}

func (fs *StageFS) pendingJSON() []byte {
	data := oj.JSON(map[string]any{
		"writes":  fs.ov.ListPending().Writes,
		"deletes": fs.ov.ListPending().Deletes,
	}, &oj.Options{Indent: 2, Sort: true})
	return append([]byte(data), '\n')
}

// dirStagedUnder reports whether any staged write lives below rel, which
// makes rel a directory in the merged view even when it is absent on
// disk.
func (fs *StageFS) dirStagedUnder(snap stageSnapshot, rel string) bool {
	prefix := rel + "/"
	if rel == "" {
		prefix = ""
	}
	for staged := range snap.writes {
		if strings.HasPrefix(staged, prefix) && staged != rel {
			return true
		}
	}
	return false
}

// joinRel joins a project-relative directory with a child name, keeping
// the root convention of relPath (empty string, no leading slash).
func joinRel(dir, name string) string {
	if dir == "" {
		return name
	}
	return dir + "/" + name
}

// childSegment returns the immediate child name of dir on the way to
// staged, and whether that child is an intermediate directory.
func childSegment(dir, staged string) (name string, isDir, under bool) {
	prefix := dir + "/"
	if dir == "" {
		prefix = ""
	}
	rest, ok := strings.CutPrefix(staged, prefix)
	if !ok || rest == "" {
		return "", false, false
	}
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		return rest[:i], true, true
	}
	return rest, false, true
}

// relPath normalizes a billy path to a clean project-relative path,
// empty string for the root.
func relPath(path string) string {
	p := filepath.ToSlash(filepath.Clean("/" + path))
	return strings.TrimPrefix(p, "/")
}

// staticFileInfo implements os.FileInfo with static values.
type staticFileInfo struct {
	name    string
	size    int64
	mode    os.FileMode
	modTime time.Time
}

func (fi *staticFileInfo) Name() string       { return fi.name }
func (fi *staticFileInfo) Size() int64        { return fi.size }
func (fi *staticFileInfo) Mode() os.FileMode  { return fi.mode }
func (fi *staticFileInfo) ModTime() time.Time { return fi.modTime }
func (fi *staticFileInfo) IsDir() bool        { return fi.mode.IsDir() }
func (fi *staticFileInfo) Sys() interface{}   { return nil }

// Compile-time interface checks.
var (
	_ billy.Filesystem = (*StageFS)(nil)
	_ billy.Capable    = (*StageFS)(nil)
)
