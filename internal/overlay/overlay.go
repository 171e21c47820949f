// Package overlay implements the per-project virtual file layer: a
// read/write view that shadows the project's real directory so agent
// operations can be staged, inspected, and only later materialized.
package overlay

import (
	"errors"
	"fmt"
	gopath "path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/agentic-research/loom/api"
)

// ErrRenameUnresolved is returned when a rename source has no staged
// content and no delegate can supply the real file, so the in-memory
// layer cannot resolve the rename alone.
var ErrRenameUnresolved = errors.New("rename source not staged and not readable")

// Overlay stages pending writes and tombstones for one project. Keys are
// canonical: absolute, forward-slash, resolved against the project base
// directory, so relative and absolute spellings of one path collide.
type Overlay struct {
	mu         sync.RWMutex
	base       string // canonical base dir, no trailing slash
	delegate   ReadDelegate
	pending    map[string]string
	tombstones map[string]struct{}
}

// New creates an overlay over base. delegate may be nil for pure
// in-memory use; Exists then optimistically assumes untouched paths exist.
func New(base string, delegate ReadDelegate) *Overlay {
	return &Overlay{
		base:       canonBase(base),
		delegate:   delegate,
		pending:    make(map[string]string),
		tombstones: make(map[string]struct{}),
	}
}

// Base returns the canonical project base directory.
func (o *Overlay) Base() string { return o.base }

// key normalizes a relative-or-absolute path to the canonical map key.
func (o *Overlay) key(p string) string {
	p = filepath.ToSlash(p)
	if !strings.HasPrefix(p, "/") {
		p = o.base + "/" + p
	}
	return gopath.Clean(p)
}

// rel converts a canonical key back to a project-relative path. Keys
// outside the base directory are returned as-is.
func (o *Overlay) rel(key string) string {
	if rest, ok := strings.CutPrefix(key, o.base+"/"); ok {
		return rest
	}
	return key
}

// Read resolves a path against the staged state first: pending content
// wins, a tombstone hides the real file, and only then is the delegate
// consulted. ok is false when no content exists anywhere.
func (o *Overlay) Read(path string) (string, bool) {
	k := o.key(path)

	o.mu.RLock()
	content, pending := o.pending[k]
	_, dead := o.tombstones[k]
	o.mu.RUnlock()

	if pending {
		return content, true
	}
	if dead {
		return "", false
	}
	if o.delegate == nil {
		return "", false
	}
	data, err := o.delegate.Read(o.rel(k))
	if err != nil {
		return "", false
	}
	return string(data), true
}

// Exists reports whether the path resolves to content. Without a delegate
// an untouched path is optimistically assumed to exist.
func (o *Overlay) Exists(path string) bool {
	k := o.key(path)

	o.mu.RLock()
	_, pending := o.pending[k]
	_, dead := o.tombstones[k]
	o.mu.RUnlock()

	if pending {
		return true
	}
	if dead {
		return false
	}
	if o.delegate == nil {
		return true
	}
	return o.delegate.Exists(o.rel(k))
}

// Write stages full-file content for the path, clearing any tombstone.
func (o *Overlay) Write(path, content string) {
	k := o.key(path)
	o.mu.Lock()
	o.pending[k] = content
	delete(o.tombstones, k)
	o.mu.Unlock()
}

// Delete tombstones the path and drops any staged content for it.
func (o *Overlay) Delete(path string) {
	k := o.key(path)
	o.mu.Lock()
	o.tombstones[k] = struct{}{}
	delete(o.pending, k)
	o.mu.Unlock()
}

// Rename tombstones from and stages its content under to. Staged content
// moves directly; content that exists only on disk is pulled through the
// delegate before the source is tombstoned, so nothing is silently lost.
// Without either source, ErrRenameUnresolved is returned and the overlay
// is left untouched.
func (o *Overlay) Rename(from, to string) error {
	fk, tk := o.key(from), o.key(to)

	o.mu.Lock()
	if content, ok := o.pending[fk]; ok {
		delete(o.pending, fk)
		o.tombstones[fk] = struct{}{}
		o.pending[tk] = content
		delete(o.tombstones, tk)
		o.mu.Unlock()
		return nil
	}
	_, dead := o.tombstones[fk]
	o.mu.Unlock()

	if dead || o.delegate == nil {
		return fmt.Errorf("rename %s -> %s: %w", from, to, ErrRenameUnresolved)
	}
	data, err := o.delegate.Read(o.rel(fk))
	if err != nil {
		return fmt.Errorf("rename %s -> %s: %w", from, to, ErrRenameUnresolved)
	}

	o.mu.Lock()
	o.tombstones[fk] = struct{}{}
	delete(o.pending, fk)
	o.pending[tk] = string(data)
	delete(o.tombstones, tk)
	o.mu.Unlock()
	return nil
}

// ApplyChangeSet applies one batch: deletes, then renames, then writes,
// so a rename followed by a write to the same destination has the write
// win. Unresolvable renames are collected and skipped; they never abort
// the rest of the batch. Applying the same set twice converges to the
// same state.
func (o *Overlay) ApplyChangeSet(cs api.ChangeSet) []error {
	var errs []error
	for _, d := range cs.Deletes {
		o.Delete(d.Path)
	}
	for _, r := range cs.Renames {
		if err := o.Rename(r.From, r.To); err != nil {
			errs = append(errs, err)
		}
	}
	for _, w := range cs.Writes {
		o.Write(w.Path, w.Content)
	}
	return errs
}

// ListPending returns the staged state as sorted project-relative paths.
func (o *Overlay) ListPending() api.PendingSnapshot {
	o.mu.RLock()
	defer o.mu.RUnlock()

	snap := api.PendingSnapshot{
		Writes:  make([]string, 0, len(o.pending)),
		Deletes: make([]string, 0, len(o.tombstones)),
	}
	for k := range o.pending {
		snap.Writes = append(snap.Writes, o.rel(k))
	}
	for k := range o.tombstones {
		snap.Deletes = append(snap.Deletes, o.rel(k))
	}
	sort.Strings(snap.Writes)
	sort.Strings(snap.Deletes)
	return snap
}

// Reset discards all pending and tombstone state, e.g. when the user
// explicitly rejects the agent's staged changes.
func (o *Overlay) Reset() {
	o.mu.Lock()
	o.pending = make(map[string]string)
	o.tombstones = make(map[string]struct{})
	o.mu.Unlock()
}

// canonBase normalizes the base directory to an absolute forward-slash
// path with no trailing separator.
func canonBase(base string) string {
	b := filepath.ToSlash(base)
	if !strings.HasPrefix(b, "/") {
		if abs, err := filepath.Abs(base); err == nil {
			b = filepath.ToSlash(abs)
		}
	}
	return strings.TrimSuffix(gopath.Clean(b), "/")
}
