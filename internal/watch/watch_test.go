package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

const testDebounce = 100 * time.Millisecond

func mkGitRepo(t *testing.T, base, name string) string {
	t.Helper()
	path := filepath.Join(base, name)
	if err := os.MkdirAll(filepath.Join(path, ".git", "refs", "heads"), 0o755); err != nil {
		t.Fatal(err)
	}
	touch(t, filepath.Join(path, ".git", "HEAD"), "ref: refs/heads/main\n")
	return path
}

func touch(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func newTestWatcher(t *testing.T, repos ...string) *Watcher {
	t.Helper()
	w, err := New(testDebounce, zerolog.Nop())
	if err != nil {
		t.Fatalf("creating watcher: %v", err)
	}
	t.Cleanup(w.Close)
	for _, r := range repos {
		if err := w.Add(r); err != nil {
			t.Fatalf("watching %s: %v", r, err)
		}
	}
	w.Start()
	return w
}

// waitEvent blocks until one event arrives or the deadline passes.
func waitEvent(t *testing.T, w *Watcher) (Event, bool) {
	t.Helper()
	select {
	case ev := <-w.Events():
		return ev, true
	case <-time.After(2 * time.Second):
		return Event{}, false
	}
}

// assertQuiet asserts that no further event arrives within a few debounce
// windows.
func assertQuiet(t *testing.T, w *Watcher) {
	t.Helper()
	select {
	case ev := <-w.Events():
		t.Fatalf("unexpected extra event for %s", ev.RepoPath)
	case <-time.After(4 * testDebounce):
	}
}

func TestBurstCollapsesToOneEvent(t *testing.T) {
	base := t.TempDir()
	repoPath := mkGitRepo(t, base, "alpha")
	w := newTestWatcher(t, repoPath)

	// A commit touches HEAD, index, and a branch ref in rapid succession.
	head := filepath.Join(repoPath, ".git", "HEAD")
	index := filepath.Join(repoPath, ".git", "index")
	ref := filepath.Join(repoPath, ".git", "refs", "heads", "main")
	for i := 0; i < 5; i++ {
		touch(t, head, "ref: refs/heads/main\n")
		touch(t, index, "index-bytes")
		touch(t, ref, "abc123\n")
		time.Sleep(5 * time.Millisecond)
	}

	ev, ok := waitEvent(t, w)
	if !ok {
		t.Fatal("no event after change burst")
	}
	if ev.RepoPath != repoPath {
		t.Errorf("event for %q, want %q", ev.RepoPath, repoPath)
	}
	assertQuiet(t, w)
}

func TestContinuedActivityExtendsDebounce(t *testing.T) {
	base := t.TempDir()
	repoPath := mkGitRepo(t, base, "alpha")
	w := newTestWatcher(t, repoPath)

	head := filepath.Join(repoPath, ".git", "HEAD")

	// Keep writing at intervals shorter than the debounce window; the
	// timer keeps resetting and only one event fires at the end.
	for i := 0; i < 6; i++ {
		touch(t, head, "ref: refs/heads/main\n")
		time.Sleep(testDebounce / 2)
	}

	if _, ok := waitEvent(t, w); !ok {
		t.Fatal("no event after activity stopped")
	}
	assertQuiet(t, w)
}

func TestLockFilesIgnored(t *testing.T) {
	base := t.TempDir()
	repoPath := mkGitRepo(t, base, "alpha")
	w := newTestWatcher(t, repoPath)

	lock := filepath.Join(repoPath, ".git", "index.lock")
	touch(t, lock, "")
	if err := os.Remove(lock); err != nil {
		t.Fatal(err)
	}

	assertQuiet(t, w)
}

func TestUnwatchedFilesIgnored(t *testing.T) {
	base := t.TempDir()
	repoPath := mkGitRepo(t, base, "alpha")
	w := newTestWatcher(t, repoPath)

	// COMMIT_EDITMSG changes during a commit but is not in the watch set.
	touch(t, filepath.Join(repoPath, ".git", "COMMIT_EDITMSG"), "wip\n")

	assertQuiet(t, w)
}

func TestEventsAttributedPerRepository(t *testing.T) {
	base := t.TempDir()
	alpha := mkGitRepo(t, base, "alpha")
	beta := mkGitRepo(t, base, "beta")
	w := newTestWatcher(t, alpha, beta)

	touch(t, filepath.Join(alpha, ".git", "FETCH_HEAD"), "abc\tbranch 'main'\n")
	touch(t, filepath.Join(beta, ".git", "index"), "index-bytes")

	got := make(map[string]int)
	for i := 0; i < 2; i++ {
		ev, ok := waitEvent(t, w)
		if !ok {
			t.Fatalf("only %d of 2 events arrived", i)
		}
		got[ev.RepoPath]++
	}
	if got[alpha] != 1 || got[beta] != 1 {
		t.Errorf("event counts = %v, want one per repository", got)
	}
	assertQuiet(t, w)
}

// TestStaleExpiryDropped drives the debounce state directly (no Start) to
// pin the race where a timer expires and its send is still queued when a
// new event re-arms the window: the queued expiry must not produce a
// second Event for one logical change.
func TestStaleExpiryDropped(t *testing.T) {
	w, err := New(testDebounce, zerolog.Nop())
	if err != nil {
		t.Fatalf("creating watcher: %v", err)
	}
	t.Cleanup(w.Close)

	w.bump("/repos/alpha")

	var stale expiry
	select {
	case stale = <-w.fired:
	case <-time.After(2 * time.Second):
		t.Fatal("first arming never expired")
	}

	// The next filesystem event lands before the run loop drains the
	// queued expiry.
	w.bump("/repos/alpha")

	if w.settle(stale) {
		t.Fatal("stale expiry from the superseded arming must be dropped")
	}

	var fresh expiry
	select {
	case fresh = <-w.fired:
	case <-time.After(2 * time.Second):
		t.Fatal("re-armed window never expired")
	}
	if !w.settle(fresh) {
		t.Fatal("current expiry must settle into an event")
	}
	if w.settle(fresh) {
		t.Error("a settled expiry must not settle twice")
	}
}

func TestBranchRefUpdates(t *testing.T) {
	base := t.TempDir()
	repoPath := mkGitRepo(t, base, "alpha")
	heads := filepath.Join(repoPath, ".git", "refs", "heads")
	if err := os.MkdirAll(filepath.Join(heads, "feature"), 0o755); err != nil {
		t.Fatal(err)
	}
	w := newTestWatcher(t, repoPath)

	// A nested branch ref (feature/x) lives one directory down.
	touch(t, filepath.Join(heads, "feature", "x"), "abc123\n")

	ev, ok := waitEvent(t, w)
	if !ok {
		t.Fatal("no event for nested branch ref update")
	}
	if ev.RepoPath != repoPath {
		t.Errorf("event for %q, want %q", ev.RepoPath, repoPath)
	}
	assertQuiet(t, w)
}
