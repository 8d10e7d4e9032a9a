// Package store persists the two cache documents that survive restarts:
// the access history (repo path → last launch time) and the metadata cache
// (repo path → last-known probe snapshot). Both are plain JSON files in the
// per-user config directory, written atomically so a crash mid-save can
// never leave a truncated document behind.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/jturner86/lzm/internal/repo"
)

const (
	metadataFile = "metadata_cache.json"
	accessFile   = "access_history.json"
)

// Metadata is the persisted snapshot of one repository's probed state.
// Pointer fields serialise as null when the value was never determined, so
// reloading reproduces the exact unknown/known split.
type Metadata struct {
	Branch      *string          `json:"branch"`
	Status      *repo.WorkStatus `json:"status"`
	Ahead       *int             `json:"ahead"`
	Behind      *int             `json:"behind"`
	HasUpstream *bool            `json:"hasUpstream"`
	LastCommit  *time.Time       `json:"lastCommit,omitempty"`
}

// Store holds the in-memory cache mappings and their on-disk location.
// The mappings are mutated only by the orchestrating update loop.
type Store struct {
	dir string
	log zerolog.Logger

	Metadata map[string]Metadata
	Access   map[string]time.Time
}

// Dir returns the per-user config directory, creating it if needed.
func Dir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve user home dir: %w", err)
		}
		base = filepath.Join(home, ".config")
	}
	dir := filepath.Join(base, "lzm")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create config dir: %w", err)
	}
	return dir, nil
}

// Open creates a Store rooted at dir and loads both cache documents.
// Loading never fails: a missing, unreadable, or corrupt document simply
// yields an empty mapping.
func Open(dir string, log zerolog.Logger) *Store {
	s := &Store{
		dir:      dir,
		log:      log,
		Metadata: make(map[string]Metadata),
		Access:   make(map[string]time.Time),
	}
	s.LoadMetadataCache()
	s.LoadAccessHistory()
	return s
}

// MetadataPath returns the on-disk location of the metadata cache.
func (s *Store) MetadataPath() string { return filepath.Join(s.dir, metadataFile) }

// AccessPath returns the on-disk location of the access history.
func (s *Store) AccessPath() string { return filepath.Join(s.dir, accessFile) }

// LoadMetadataCache reads the metadata document into memory. Any failure
// resets the mapping to empty; cache absence is never fatal to startup.
func (s *Store) LoadMetadataCache() {
	m := make(map[string]Metadata)
	s.loadJSON(s.MetadataPath(), &m)
	s.Metadata = m
}

// LoadAccessHistory reads the access-history document into memory.
func (s *Store) LoadAccessHistory() {
	a := make(map[string]time.Time)
	s.loadJSON(s.AccessPath(), &a)
	s.Access = a
}

func (s *Store) loadJSON(path string, dest any) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.log.Warn().Str("path", path).Err(err).Msg("cache unreadable, starting empty")
		}
		return
	}
	if err := json.Unmarshal(data, dest); err != nil {
		s.log.Warn().Str("path", path).Err(err).Msg("cache malformed, starting empty")
	}
}

// SaveMetadataCache persists the metadata mapping atomically. Unlike loads,
// a failed save is returned to the caller: silently dropping a write would
// leave the on-disk state out of step with what the user saw persisted.
func (s *Store) SaveMetadataCache() error {
	return saveJSON(s.MetadataPath(), s.Metadata)
}

// SaveAccessHistory persists the access-history mapping atomically.
func (s *Store) SaveAccessHistory() error {
	return saveJSON(s.AccessPath(), s.Access)
}

// RecordAccess stamps path with now in the access history.
func (s *Store) RecordAccess(path string, now time.Time) {
	s.Access[path] = now
}

// PutMetadata stores the snapshot for one repository path.
func (s *Store) PutMetadata(path string, m Metadata) {
	s.Metadata[path] = m
}

// saveJSON writes v to path via a sibling temp file: marshal, write, fsync,
// then rename over the destination. A reader therefore only ever observes
// the previous or the new complete document.
func saveJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("serialize %s: %w", filepath.Base(path), err)
	}
	data = append(data, '\n')

	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write temp cache file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("sync temp cache file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close temp cache file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace cache file: %w", err)
	}
	return nil
}
