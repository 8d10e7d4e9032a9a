// Package repo defines the Repository record shared by the scanner, the
// sync engine, and the UI. A Repository is identified by its absolute path;
// every metadata field starts out as nil ("pending") and is only ever filled
// in by the sync engine's integration step.
package repo

import (
	"strconv"
	"strings"
	"time"
)

// WorkStatus describes the working-tree state of a repository.
type WorkStatus string

// Working-tree states as reported by the status probe.
const (
	StatusClean    WorkStatus = "clean"
	StatusModified WorkStatus = "modified"
)

// Repository is one git working copy under the scanned base directory.
//
// Identity is the absolute Path: two records describe the same repository
// iff their paths are equal. All optional fields use pointers so that
// "unknown" is distinguishable from any real value — a repo with zero
// commits ahead is not the same as a repo whose upstream was never probed.
//
// Only the orchestrating update loop mutates a Repository after creation.
type Repository struct {
	Path string
	Name string

	LastAccessed *time.Time
	LastCommit   *time.Time
	Branch       *string
	Status       *WorkStatus
	Ahead        *int
	Behind       *int
	// HasUpstream is tri-state: nil = not yet determined, false = no
	// upstream configured, true = upstream exists and counts are valid.
	HasUpstream *bool

	// HasError aggregates the four probe outcomes of the latest bundle.
	HasError bool
	// Loading is set while a probe bundle is in flight for this repo.
	Loading bool
	// Dirty marks the repo for a targeted refresh after a filesystem event.
	Dirty bool
}

// SortKeyName returns the case-folded name used for name ordering.
func (r *Repository) SortKeyName() string { return strings.ToLower(r.Name) }

// SortKeyAccessed returns the last-access instant, or the zero time when
// the repository was never launched.
func (r *Repository) SortKeyAccessed() time.Time {
	if r.LastAccessed != nil {
		return *r.LastAccessed
	}
	return time.Time{}
}

// SortKeyCommit returns the last-commit instant, or the zero time when it
// is still unknown.
func (r *Repository) SortKeyCommit() time.Time {
	if r.LastCommit != nil {
		return *r.LastCommit
	}
	return time.Time{}
}

// AheadBehindDisplay renders the tracking state for the table:
// "-" when no upstream is configured, "..." while unknown, "=" when in
// sync, otherwise "↑n ↓m" with zero components omitted.
func (r *Repository) AheadBehindDisplay() string {
	if r.HasUpstream != nil && !*r.HasUpstream {
		return "-"
	}
	if r.Ahead == nil && r.Behind == nil {
		return "..."
	}
	var parts []string
	if r.Ahead != nil && *r.Ahead > 0 {
		parts = append(parts, "↑"+strconv.Itoa(*r.Ahead))
	}
	if r.Behind != nil && *r.Behind > 0 {
		parts = append(parts, "↓"+strconv.Itoa(*r.Behind))
	}
	if len(parts) == 0 {
		return "="
	}
	return strings.Join(parts, " ")
}
