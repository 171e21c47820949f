// Package syncer materializes an overlay's pending state onto the real
// project directory. Each pending path is an independent unit of work:
// one failed write never blocks the rest of the batch, and a repeated
// sync converges on the same on-disk state.
package syncer

import (
	"context"
	"sort"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/agentic-research/loom/api"
	"github.com/agentic-research/loom/internal/overlay"
	"github.com/agentic-research/loom/internal/writeback"
)

// DefaultParallelism bounds concurrent file operations per sync.
const DefaultParallelism = 8

// Options tune a Syncer.
type Options struct {
	// Parallelism caps concurrent file operations. Zero or negative
	// falls back to DefaultParallelism.
	Parallelism int
	// Validate runs the tree-sitter syntax gate on staged buffers
	// before they reach disk. Invalid buffers are reported and
	// skipped; they stay pending for the next attempt.
	Validate bool
	// Format runs gofumpt over staged .go buffers before writing.
	Format bool
	Logger *log.Logger
}

// Syncer flushes pending overlay entries through a DiskWriter.
type Syncer struct {
	writer DiskWriter
	opts   Options
}

// New returns a Syncer writing through w.
func New(w DiskWriter, opts Options) *Syncer {
	if opts.Parallelism <= 0 {
		opts.Parallelism = DefaultParallelism
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Syncer{writer: w, opts: opts}
}

// Sync walks the overlay's pending state and performs the corresponding
// writes and removals. The returned report lists what landed and what
// failed; a non-empty Failed list is not an error from Sync itself.
func (s *Syncer) Sync(ctx context.Context, ov *overlay.Overlay) (api.SyncReport, error) {
	snap := ov.ListPending()

	var (
		mu     sync.Mutex
		report api.SyncReport
	)
	fail := func(path, reason string) {
		mu.Lock()
		report.Failed = append(report.Failed, api.SyncFailure{Path: path, Reason: reason})
		mu.Unlock()
	}

	// Keep the caller's ctx separate from the errgroup's derived context:
	// the derived one is always canceled once Wait returns, so it must not
	// shadow the ctx whose Err we report.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Parallelism)

	for _, path := range snap.Writes {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				fail(path, err.Error())
				return nil
			}
			content, ok := ov.Read(path)
			if !ok {
				// Tombstoned or reset between snapshot and here.
				return nil
			}
			if s.opts.Validate {
				if err := writeback.Validate(gctx, []byte(content), path); err != nil {
					s.opts.Logger.Warn("staged buffer failed validation", "path", path, "err", err)
					fail(path, err.Error())
					return nil
				}
			}
			if s.opts.Format {
				content = string(writeback.FormatBuffer([]byte(content), path))
			}
			if err := s.writer.WriteFile(path, []byte(content)); err != nil {
				fail(path, err.Error())
				return nil
			}
			mu.Lock()
			report.Written = append(report.Written, path)
			mu.Unlock()
			return nil
		})
	}

	for _, path := range snap.Deletes {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				fail(path, err.Error())
				return nil
			}
			if err := s.writer.Remove(path); err != nil {
				fail(path, err.Error())
				return nil
			}
			mu.Lock()
			report.Removed = append(report.Removed, path)
			mu.Unlock()
			return nil
		})
	}

	// Workers report failures through the report, not as errors, so the
	// only error surface left is context cancellation.
	_ = g.Wait()

	sort.Strings(report.Written)
	sort.Strings(report.Removed)
	sort.Slice(report.Failed, func(i, j int) bool {
		return report.Failed[i].Path < report.Failed[j].Path
	})

	s.opts.Logger.Debug("sync complete",
		"written", len(report.Written),
		"removed", len(report.Removed),
		"failed", len(report.Failed))
	return report, ctx.Err()
}
