package store

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/jturner86/lzm/internal/repo"
)

func ptr[T any](v T) *T { return &v }

func testMetadata() Metadata {
	return Metadata{
		Branch:      ptr("main"),
		Status:      ptr(repo.StatusClean),
		Ahead:       ptr(2),
		Behind:      ptr(1),
		HasUpstream: ptr(true),
		LastCommit:  ptr(time.Date(2026, 8, 1, 10, 30, 0, 0, time.UTC)),
	}
}

func TestMetadataRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		m    Metadata
	}{
		{"all fields known", testMetadata()},
		{"all fields pending", Metadata{}},
		{"no upstream", Metadata{
			Branch:      ptr("main"),
			Status:      ptr(repo.StatusModified),
			HasUpstream: ptr(false),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			dir := t.TempDir()

			s := Open(dir, zerolog.Nop())
			s.PutMetadata("/repos/demo", tt.m)
			if err := s.SaveMetadataCache(); err != nil {
				t.Fatalf("save: %v", err)
			}

			reloaded := Open(dir, zerolog.Nop())
			got, ok := reloaded.Metadata["/repos/demo"]
			if !ok {
				t.Fatal("entry missing after reload")
			}
			if !reflect.DeepEqual(got, tt.m) {
				t.Errorf("reloaded = %+v, want %+v", got, tt.m)
			}
		})
	}
}

func TestAccessHistoryRoundTrip(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	when := time.Date(2026, 8, 27, 9, 15, 0, 0, time.UTC)
	s := Open(dir, zerolog.Nop())
	s.RecordAccess("/repos/demo", when)
	if err := s.SaveAccessHistory(); err != nil {
		t.Fatalf("save: %v", err)
	}

	reloaded := Open(dir, zerolog.Nop())
	got, ok := reloaded.Access["/repos/demo"]
	if !ok {
		t.Fatal("entry missing after reload")
	}
	if !got.Equal(when) {
		t.Errorf("timestamp = %v, want %v", got, when)
	}
}

func TestSaveIsIdempotent(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	s := Open(dir, zerolog.Nop())
	s.PutMetadata("/repos/a", testMetadata())
	s.PutMetadata("/repos/b", Metadata{Branch: ptr("dev")})

	if err := s.SaveMetadataCache(); err != nil {
		t.Fatalf("first save: %v", err)
	}
	first, err := os.ReadFile(s.MetadataPath())
	if err != nil {
		t.Fatal(err)
	}

	if err := s.SaveMetadataCache(); err != nil {
		t.Fatalf("second save: %v", err)
	}
	second, err := os.ReadFile(s.MetadataPath())
	if err != nil {
		t.Fatal(err)
	}

	if string(first) != string(second) {
		t.Error("unchanged state produced different documents")
	}
}

func TestLoadTolerance(t *testing.T) {
	t.Parallel()

	t.Run("missing files", func(t *testing.T) {
		t.Parallel()
		s := Open(t.TempDir(), zerolog.Nop())
		if len(s.Metadata) != 0 || len(s.Access) != 0 {
			t.Error("missing documents should load as empty mappings")
		}
	})

	t.Run("malformed metadata document", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		path := filepath.Join(dir, "metadata_cache.json")
		if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
			t.Fatal(err)
		}

		s := Open(dir, zerolog.Nop())
		if len(s.Metadata) != 0 {
			t.Error("malformed document should load as an empty mapping")
		}
	})

	t.Run("malformed access document", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		path := filepath.Join(dir, "access_history.json")
		if err := os.WriteFile(path, []byte(`{"x": "not-a-time"}`), 0o600); err != nil {
			t.Fatal(err)
		}

		s := Open(dir, zerolog.Nop())
		if len(s.Access) != 0 {
			t.Error("malformed document should load as an empty mapping")
		}
	})
}

// TestInterruptedSaveLeavesDocumentIntact simulates a crash that left a
// partial temp file behind: the committed document must stay readable and
// the next save must still land atomically.
func TestInterruptedSaveLeavesDocumentIntact(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	s := Open(dir, zerolog.Nop())
	s.PutMetadata("/repos/demo", testMetadata())
	if err := s.SaveMetadataCache(); err != nil {
		t.Fatalf("save: %v", err)
	}

	// A crash mid-write leaves a truncated temp file next to the target.
	tmp := s.MetadataPath() + ".tmp"
	if err := os.WriteFile(tmp, []byte(`{"/repos/demo": {"bran`), 0o600); err != nil {
		t.Fatal(err)
	}

	reloaded := Open(dir, zerolog.Nop())
	if _, ok := reloaded.Metadata["/repos/demo"]; !ok {
		t.Fatal("committed document lost after simulated interruption")
	}

	// The next save replaces both the stale temp file and the target.
	reloaded.PutMetadata("/repos/other", Metadata{Branch: ptr("dev")})
	if err := reloaded.SaveMetadataCache(); err != nil {
		t.Fatalf("save after interruption: %v", err)
	}
	final := Open(dir, zerolog.Nop())
	if len(final.Metadata) != 2 {
		t.Errorf("got %d entries, want 2", len(final.Metadata))
	}
}
