// Package watch observes git-internal state files across many repositories
// and turns bursts of filesystem events into one debounced dirty signal per
// repository. Only a fixed set of paths inside each .git is considered:
//
//   - HEAD        → branch switches, commits
//   - index       → staging changes
//   - FETCH_HEAD  → fetch completions
//   - refs/heads  → local branch updates (recursive)
//
// A single logical git operation (a commit, say) touches several of these
// in quick succession; without the debounce every burst would trigger a
// redundant refresh storm. Lock files are ignored outright — git creates
// and removes them transiently during normal operations.
package watch

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultDebounce is the quiescence window before a repository is marked
// dirty. One second comfortably covers the burst a single commit produces.
const DefaultDebounce = time.Second

// Event signals that a repository's git state settled after a change burst.
type Event struct {
	RepoPath string
}

// expiry is one debounce timer firing. The generation ties it to the timer
// arming that produced it: an expiry whose send was still queued when a new
// event re-armed the window is stale and must not become an Event.
type expiry struct {
	path string
	gen  uint64
}

type debounceEntry struct {
	timer *time.Timer
	gen   uint64
}

// Watcher multiplexes one fsnotify watcher across all repositories.
type Watcher struct {
	fsw      *fsnotify.Watcher
	debounce time.Duration
	log      zerolog.Logger

	// gitDirs maps each watched .git directory to its repository path.
	// Populated by Add before Start; read-only afterwards.
	gitDirs map[string]string

	out   chan Event
	fired chan expiry
	done  chan struct{}

	// timers holds the live debounce timer per repository. Owned by the
	// run loop; expiry is routed back through the fired channel instead of
	// mutating anything from the timer thread.
	timers map[string]*debounceEntry
}

// New creates a Watcher. debounce <= 0 selects DefaultDebounce.
func New(debounce time.Duration, log zerolog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		fsw:      fsw,
		debounce: debounce,
		log:      log,
		gitDirs:  make(map[string]string),
		out:      make(chan Event, 64),
		fired:    make(chan expiry, 64),
		done:     make(chan struct{}),
		timers:   make(map[string]*debounceEntry),
	}, nil
}

// Add registers a repository's watch set. Must be called before Start.
// Failure to watch one repository is logged and leaves the others intact.
func (w *Watcher) Add(repoPath string) error {
	gitDir := filepath.Join(repoPath, ".git")
	if err := w.fsw.Add(gitDir); err != nil {
		return err
	}
	w.gitDirs[gitDir] = repoPath

	// Watch the heads subtree recursively. fsnotify watches are not
	// recursive, so every existing subdirectory gets its own watch;
	// directories created later are picked up in the event loop.
	heads := filepath.Join(gitDir, "refs", "heads")
	_ = filepath.WalkDir(heads, func(path string, d os.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if addErr := w.fsw.Add(path); addErr != nil {
			w.log.Warn().Str("path", path).Err(addErr).Msg("cannot watch heads subtree")
		}
		return nil
	})
	return nil
}

// Events delivers debounced dirty signals. The orchestrating context turns
// each into a targeted refresh; the watcher itself never touches
// Repository state.
func (w *Watcher) Events() <-chan Event { return w.out }

// Start launches the event loop.
func (w *Watcher) Start() {
	go w.run()
}

// Close tears the watcher down. Pending debounce timers are abandoned.
func (w *Watcher) Close() {
	close(w.done)
	_ = w.fsw.Close()
}

func (w *Watcher) run() {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if repoPath := w.classify(ev); repoPath != "" {
				w.bump(repoPath)
			}

		case ex := <-w.fired:
			if !w.settle(ex) {
				continue
			}
			w.log.Debug().Str("repo", filepath.Base(ex.path)).Msg("git state settled, marking dirty")
			select {
			case w.out <- Event{RepoPath: ex.path}:
			case <-w.done:
				return
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Msg("watcher error")

		case <-w.done:
			return
		}
	}
}

// bump (re)starts the debounce window for one repository. The previous
// timer may already have expired with its send queued on fired; bumping
// the generation invalidates that queued expiry, so a burst straddling the
// window boundary still collapses into a single Event. Run-loop only.
func (w *Watcher) bump(repoPath string) {
	en, ok := w.timers[repoPath]
	if ok {
		en.timer.Stop()
		en.gen++
	} else {
		en = &debounceEntry{}
		w.timers[repoPath] = en
	}
	gen := en.gen
	en.timer = time.AfterFunc(w.debounce, func() {
		select {
		case w.fired <- expiry{path: repoPath, gen: gen}:
		case <-w.done:
		}
	})
}

// settle checks one expiry against the current timer state and reports
// whether it should become an Event. A stale expiry from a superseded
// timer arming is dropped. Run-loop only.
func (w *Watcher) settle(ex expiry) bool {
	en, ok := w.timers[ex.path]
	if !ok || en.gen != ex.gen {
		return false
	}
	delete(w.timers, ex.path)
	return true
}

// classify maps a raw fsnotify event to the repository it belongs to, or
// "" when the event is outside the fixed watch set. New directories under
// refs/heads are added to the watcher as a side effect.
func (w *Watcher) classify(ev fsnotify.Event) string {
	base := filepath.Base(ev.Name)
	if strings.HasSuffix(base, ".lock") {
		return ""
	}

	for gitDir, repoPath := range w.gitDirs {
		rel, err := filepath.Rel(gitDir, ev.Name)
		if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
			continue
		}
		headsPrefix := filepath.Join("refs", "heads")
		switch {
		case rel == "HEAD" || rel == "index" || rel == "FETCH_HEAD":
			return repoPath
		case rel == headsPrefix || strings.HasPrefix(rel, headsPrefix+string(filepath.Separator)):
			if ev.Op.Has(fsnotify.Create) {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					_ = w.fsw.Add(ev.Name)
				}
			}
			return repoPath
		default:
			return ""
		}
	}
	return ""
}
