// Package scan discovers git working copies directly under a base
// directory and seeds them from the persisted caches.
package scan

import (
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/jturner86/lzm/internal/repo"
	"github.com/jturner86/lzm/internal/store"
)

// Scan lists the immediate children of basePath and returns a Repository
// for every directory that contains a .git directory. A .git that is a
// plain file (worktree or submodule checkout) is logged and skipped — those
// share state with a primary checkout elsewhere and would double-count.
//
// Children that cannot be inspected are logged and skipped. A basePath that
// cannot be listed at all yields an empty slice, never an error: the UI
// renders "no repositories found" and the user fixes the config.
func Scan(basePath string, st *store.Store, log zerolog.Logger) []*repo.Repository {
	// Identity is the absolute path: the cache documents and the engine's
	// in-flight set are keyed by it, so a relative base (e.g. "--path .")
	// would mint a different identity per working directory.
	basePath, err := filepath.Abs(basePath)
	if err != nil {
		log.Warn().Str("base", basePath).Err(err).Msg("cannot resolve base directory")
		return nil
	}

	entries, err := os.ReadDir(basePath)
	if err != nil {
		log.Warn().Str("base", basePath).Err(err).Msg("cannot list base directory")
		return nil
	}

	var repos []*repo.Repository
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(basePath, entry.Name())
		marker, err := os.Stat(filepath.Join(path, ".git"))
		if err != nil {
			if !os.IsNotExist(err) {
				log.Warn().Str("path", path).Err(err).Msg("skipping unreadable entry")
			}
			continue
		}
		if !marker.IsDir() {
			log.Info().Str("path", path).Msg("skipping .git file marker (worktree or submodule)")
			continue
		}

		r := &repo.Repository{Path: path, Name: entry.Name()}
		seed(r, st)
		repos = append(repos, r)
	}
	return repos
}

// seed pre-populates a freshly discovered repository from the caches so the
// table shows last-known state immediately, before the first probe lands.
func seed(r *repo.Repository, st *store.Store) {
	if t, ok := st.Access[r.Path]; ok {
		ts := t
		r.LastAccessed = &ts
	}
	m, ok := st.Metadata[r.Path]
	if !ok {
		return
	}
	r.Branch = m.Branch
	r.Status = m.Status
	r.Ahead = m.Ahead
	r.Behind = m.Behind
	r.HasUpstream = m.HasUpstream
	r.LastCommit = m.LastCommit
}
