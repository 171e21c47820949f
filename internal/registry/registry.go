// Package registry keeps one live overlay per project across agent
// turns and drives the parse, apply, sync cycle. Callers construct one
// Registry for the session and inject it; there is no package-level
// instance.
package registry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/agentic-research/loom/api"
	"github.com/agentic-research/loom/internal/journal"
	"github.com/agentic-research/loom/internal/lockfile"
	"github.com/agentic-research/loom/internal/manifest"
	"github.com/agentic-research/loom/internal/overlay"
	"github.com/agentic-research/loom/internal/syncer"
	"github.com/agentic-research/loom/internal/tagproto"
)

// StateDirName is the per-project directory holding the journal and
// sync lock.
const StateDirName = ".loom"

// Project identifies one agent-managed codebase.
type Project struct {
	ID  string
	Dir string
}

// TurnCallback receives the chat-facing output after one full cycle.
type TurnCallback func(chatContent, chatSummary string)

// Options configure a Registry.
type Options struct {
	Sync syncer.Options
	// AutoSync flushes the overlay to disk at the end of every turn.
	AutoSync bool
	// Journal records applied turns in the project's .loom directory.
	Journal bool
	Logger  *log.Logger
}

// Turn is the outcome of one applied agent response.
type Turn struct {
	api.TurnResult
	// Seq is the journal sequence, zero when journaling is off.
	Seq int64 `json:"seq,omitempty"`
	// Problems are non-fatal parse and apply issues.
	Problems []tagproto.Problem `json:"problems,omitempty"`
	// Sync is set when the turn auto-synced.
	Sync *api.SyncReport `json:"sync,omitempty"`
}

type app struct {
	project Project
	overlay *overlay.Overlay
	journal *journal.Journal
}

// Registry owns the overlays. One live overlay per project id; all
// access routes through GetOrCreate.
type Registry struct {
	mu   sync.Mutex
	opts Options
	apps map[string]*app
}

// New constructs an empty registry.
func New(opts Options) *Registry {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Registry{opts: opts, apps: make(map[string]*app)}
}

// GetOrCreate returns the project's overlay, building it on first touch
// with a read delegate over the project's real directory. Subsequent
// calls return the same instance so edits accumulate turn over turn.
func (r *Registry) GetOrCreate(p Project) (*overlay.Overlay, error) {
	a, err := r.getOrCreateApp(p)
	if err != nil {
		return nil, err
	}
	return a.overlay, nil
}

func (r *Registry) getOrCreateApp(p Project) (*app, error) {
	if p.ID == "" {
		return nil, fmt.Errorf("project id is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if a, ok := r.apps[p.ID]; ok {
		return a, nil
	}

	a := &app{
		project: p,
		overlay: overlay.New(p.Dir, overlay.NewDiskDelegate(p.Dir)),
	}
	if r.opts.Journal {
		dir := filepath.Join(p.Dir, StateDirName)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create state dir: %w", err)
		}
		j, err := journal.Open(filepath.Join(dir, journal.DefaultFileName))
		if err != nil {
			return nil, err
		}
		a.journal = j
	}
	r.apps[p.ID] = a
	return a, nil
}

// Snapshot returns the read-only pending view for a project, for UI use
// such as modified badges in a file tree. Unknown ids yield an empty
// snapshot.
func (r *Registry) Snapshot(projectID string) api.PendingSnapshot {
	r.mu.Lock()
	a, ok := r.apps[projectID]
	r.mu.Unlock()
	if !ok {
		return api.PendingSnapshot{}
	}
	return a.overlay.ListPending()
}

// Reset discards the pending state of one project. Other projects are
// unaffected.
func (r *Registry) Reset(projectID string) {
	r.mu.Lock()
	a, ok := r.apps[projectID]
	r.mu.Unlock()
	if ok {
		a.overlay.Reset()
	}
}

// Dispose removes a project's overlay entirely and closes its journal.
func (r *Registry) Dispose(projectID string) error {
	r.mu.Lock()
	a, ok := r.apps[projectID]
	delete(r.apps, projectID)
	r.mu.Unlock()

	if ok && a.journal != nil {
		return a.journal.Close()
	}
	return nil
}

// Journal returns the project's journal, or nil when journaling is off
// or the project is unknown.
func (r *Registry) Journal(projectID string) *journal.Journal {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.apps[projectID]; ok {
		return a.journal
	}
	return nil
}

// SyncToDisk flushes a project's pending state to its real directory,
// holding the cross-process sync lock for the duration.
func (r *Registry) SyncToDisk(ctx context.Context, p Project) (api.SyncReport, error) {
	a, err := r.getOrCreateApp(p)
	if err != nil {
		return api.SyncReport{}, err
	}

	lock, err := lockfile.Acquire(filepath.Join(p.Dir, StateDirName, "sync.lock"))
	if err != nil {
		return api.SyncReport{}, err
	}
	defer func() { _ = lock.Release() }()

	s := syncer.New(syncer.NewDiskWriter(p.Dir), r.opts.Sync)
	return s.Sync(ctx, a.overlay)
}

// ApplyTurn runs one full agent turn: parse the response, stage the
// resulting change set on the project's overlay, journal it, optionally
// sync, then invoke the callback with the chat-facing output. A response
// with one malformed tag still applies the rest.
func (r *Registry) ApplyTurn(ctx context.Context, p Project, response string, cb TurnCallback) (Turn, error) {
	a, err := r.getOrCreateApp(p)
	if err != nil {
		return Turn{}, err
	}

	parsed := tagproto.Parse(response)
	turn := Turn{
		TurnResult: api.TurnResult{
			ChatContent: parsed.ChatContent,
			ChatSummary: parsed.ChatSummary,
			Operations:  parsed.Operations,
		},
		Problems: parsed.Problems,
	}

	cs := api.BuildChangeSet(parsed.Operations)
	for _, applyErr := range a.overlay.ApplyChangeSet(cs) {
		turn.Problems = append(turn.Problems, tagproto.Problem{
			Kind:   tagproto.ProblemApply,
			Tag:    "rename",
			Detail: applyErr.Error(),
		})
	}

	// Dependency requests become a staged manifest write so they sync
	// like any other file. Merging after the changeset lets a same-turn
	// write of the manifest contribute its content to the merge instead
	// of clobbering it.
	for _, op := range parsed.Operations {
		dep, ok := op.(api.AddDependency)
		if !ok {
			continue
		}
		current, _ := a.overlay.Read(manifest.FileName)
		merged, changed, err := manifest.Merge(current, dep.Packages)
		if err != nil {
			turn.Problems = append(turn.Problems, tagproto.Problem{
				Kind:   tagproto.ProblemApply,
				Tag:    "add-dependency",
				Detail: err.Error(),
			})
			continue
		}
		if changed {
			a.overlay.Write(manifest.FileName, merged)
		}
	}

	if a.journal != nil {
		seq, err := a.journal.Record(parsed.ChatSummary, parsed.Operations)
		if err != nil {
			r.opts.Logger.Error("journal record failed", "project", p.ID, "err", err)
		} else {
			turn.Seq = seq
		}
	}

	if r.opts.AutoSync {
		report, err := r.SyncToDisk(ctx, p)
		if err != nil {
			return turn, err
		}
		turn.Sync = &report
	}

	if cb != nil {
		cb(turn.ChatContent, turn.ChatSummary)
	}
	return turn, nil
}
