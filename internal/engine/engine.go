// Package engine orchestrates concurrent metadata refreshes. It fans probe
// bundles out across repositories on a bounded worker pool and hands every
// outcome back to the single orchestrating context (the UI update loop) as
// an event. The engine itself never mutates a Repository from a worker:
// workers only probe and publish, integration is always performed by the
// caller draining Events — one writer, no races.
package engine

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/jturner86/lzm/internal/gitprobe"
	"github.com/jturner86/lzm/internal/repo"
	"github.com/jturner86/lzm/internal/store"
)

// DefaultMaxConcurrent bounds simultaneous probe bundles. Each bundle
// spawns several git subprocesses, so an unbounded fan-out over a large
// base directory would fork-bomb the machine.
const DefaultMaxConcurrent = 8

// BundleDone reports one repository's finished probe bundle.
type BundleDone struct {
	Result   gitprobe.BundleResult
	Targeted bool
}

// BatchDone reports that every bundle of one refresh call has finished and
// been published. The orchestrator persists the cache and repaints once
// per batch on receipt.
type BatchDone struct {
	Targeted bool
	Count    int
}

// Engine schedules probe bundles and integrates their results.
type Engine struct {
	prober *gitprobe.Prober
	store  *store.Store
	log    zerolog.Logger
	limit  int

	events chan any

	// inflight is keyed by repository path. It is only touched from the
	// orchestrating context (Refresh* and Integrate), never from workers.
	inflight map[string]struct{}

	// queued holds dirty repositories whose refresh was rejected because a
	// bundle was already running. That bundle predates the change, so
	// Integrate must not clear the dirty flag and the caller goes again.
	queued map[string]struct{}
}

// New creates an Engine. maxConcurrent <= 0 selects DefaultMaxConcurrent.
func New(prober *gitprobe.Prober, st *store.Store, log zerolog.Logger, maxConcurrent int) *Engine {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	return &Engine{
		prober:   prober,
		store:    st,
		log:      log,
		limit:    maxConcurrent,
		events:   make(chan any, 64),
		inflight: make(map[string]struct{}),
		queued:   make(map[string]struct{}),
	}
}

// Events delivers BundleDone and BatchDone values. The orchestrating
// context must drain this channel and call Integrate for each BundleDone.
func (e *Engine) Events() <-chan any { return e.events }

// InFlight reports whether a bundle is currently running for path.
func (e *Engine) InFlight(path string) bool {
	_, ok := e.inflight[path]
	return ok
}

// RefreshAll schedules a probe bundle for every given repository and
// returns how many were accepted. Repositories already in flight are
// skipped: a repository never has two bundles running at once.
func (e *Engine) RefreshAll(ctx context.Context, repos []*repo.Repository) int {
	return e.refresh(ctx, repos, false)
}

// RefreshSubset is the targeted entry point used after filesystem events.
// Identical contract to RefreshAll, but results carry the targeted flag so
// the orchestrator can account batches separately.
func (e *Engine) RefreshSubset(ctx context.Context, repos []*repo.Repository) int {
	return e.refresh(ctx, repos, true)
}

func (e *Engine) refresh(ctx context.Context, repos []*repo.Repository, targeted bool) int {
	var paths []string
	for _, r := range repos {
		if _, dup := e.inflight[r.Path]; dup {
			if r.Dirty {
				e.queued[r.Path] = struct{}{}
				e.log.Debug().Str("repo", r.Name).Msg("refresh queued behind in-flight bundle")
			} else {
				e.log.Debug().Str("repo", r.Name).Msg("refresh skipped, bundle already in flight")
			}
			continue
		}
		e.inflight[r.Path] = struct{}{}
		r.Loading = true
		paths = append(paths, r.Path)
	}
	if len(paths) == 0 {
		return 0
	}

	e.log.Debug().Int("repos", len(paths)).Bool("targeted", targeted).Msg("refresh batch started")
	go e.dispatch(ctx, paths, targeted)
	return len(paths)
}

// dispatch runs the bundles on a bounded pool and publishes results as
// they complete. There is no batch-wide cancellation: a timeout inside one
// probe degrades that probe alone.
func (e *Engine) dispatch(ctx context.Context, paths []string, targeted bool) {
	g := new(errgroup.Group)
	g.SetLimit(e.limit)
	for _, path := range paths {
		g.Go(func() error {
			e.events <- BundleDone{Result: e.prober.Bundle(ctx, path), Targeted: targeted}
			return nil
		})
	}
	_ = g.Wait()
	e.events <- BatchDone{Targeted: targeted, Count: len(paths)}
}

// Integrate writes one bundle's results into the repository record and the
// metadata cache. Must be called from the orchestrating context only.
//
// Fields always reflect the latest bundle: a probe that hard-errored
// clears its field back to unknown rather than keeping a stale value that
// can no longer be trusted. The dirty flag survives an errored bundle so a
// later refresh retries the repository.
//
// The return value reports whether the repository was invalidated while
// this bundle was running. The results then predate the change, the dirty
// flag is kept, and the caller must schedule another targeted refresh.
func (e *Engine) Integrate(r *repo.Repository, res gitprobe.BundleResult) bool {
	delete(e.inflight, r.Path)
	_, stale := e.queued[r.Path]
	delete(e.queued, r.Path)
	r.Loading = false
	r.HasError = res.HasError()

	r.LastCommit = nil
	if t, ok := res.LastCommit.Value(); ok {
		r.LastCommit = &t
	}
	r.Branch = nil
	if b, ok := res.Branch.Value(); ok {
		r.Branch = &b
	}
	r.Status = nil
	if s, ok := res.WorkStatus.Value(); ok {
		r.Status = &s
	}

	r.Ahead, r.Behind, r.HasUpstream = nil, nil, nil
	switch res.Tracking.Outcome() {
	case gitprobe.OK:
		ab, _ := res.Tracking.Value()
		ahead, behind, has := ab.Ahead, ab.Behind, true
		r.Ahead, r.Behind, r.HasUpstream = &ahead, &behind, &has
	case gitprobe.Absent:
		has := false
		r.HasUpstream = &has
	}

	if !r.HasError && !stale {
		r.Dirty = false
	}

	e.store.PutMetadata(r.Path, store.Metadata{
		Branch:      r.Branch,
		Status:      r.Status,
		Ahead:       r.Ahead,
		Behind:      r.Behind,
		HasUpstream: r.HasUpstream,
		LastCommit:  r.LastCommit,
	})
	return stale
}

// Flush persists the metadata cache. Called once per completed batch.
func (e *Engine) Flush() error {
	return e.store.SaveMetadataCache()
}
