package app

import (
	"testing"
	"time"

	"github.com/jturner86/lzm/internal/repo"
)

func ptr[T any](v T) *T { return &v }

func TestCellFormatting(t *testing.T) {
	t.Parallel()

	when := time.Date(2026, 8, 20, 14, 30, 0, 0, time.UTC)

	t.Run("accessed", func(t *testing.T) {
		t.Parallel()
		if got := accessedCell(&repo.Repository{}); got != cellNever {
			t.Errorf("never accessed = %q, want %q", got, cellNever)
		}
		r := &repo.Repository{LastAccessed: &when}
		if got := accessedCell(r); got != when.Local().Format("2006-01-02 15:04") {
			t.Errorf("accessed = %q", got)
		}
	})

	t.Run("commit", func(t *testing.T) {
		t.Parallel()
		if got := commitCell(&repo.Repository{}); got != cellNone {
			t.Errorf("unknown commit = %q, want %q", got, cellNone)
		}
		if got := commitCell(&repo.Repository{HasError: true}); got != cellAlarm {
			t.Errorf("errored commit = %q, want %q", got, cellAlarm)
		}
		r := &repo.Repository{LastCommit: &when}
		if got := commitCell(r); got != when.Local().Format("2006-01-02") {
			t.Errorf("commit = %q", got)
		}
		// A known value wins over the error flag: only missing data alarms.
		r.HasError = true
		if got := commitCell(r); got == cellAlarm {
			t.Error("known commit date should render even when the bundle errored")
		}
	})

	t.Run("branch", func(t *testing.T) {
		t.Parallel()
		if got := branchCell(&repo.Repository{}); got != cellPending {
			t.Errorf("pending branch = %q, want %q", got, cellPending)
		}
		if got := branchCell(&repo.Repository{HasError: true}); got != cellAlarm {
			t.Errorf("errored branch = %q, want %q", got, cellAlarm)
		}
		if got := branchCell(&repo.Repository{Branch: ptr("main")}); got != "main" {
			t.Errorf("branch = %q, want main", got)
		}
	})

	t.Run("status", func(t *testing.T) {
		t.Parallel()
		if got := statusCell(&repo.Repository{}); got != cellPending {
			t.Errorf("pending status = %q, want %q", got, cellPending)
		}
		if got := statusCell(&repo.Repository{Status: ptr(repo.StatusModified)}); got != "modified" {
			t.Errorf("status = %q, want modified", got)
		}
	})

	t.Run("tracking", func(t *testing.T) {
		t.Parallel()
		if got := trackingCell(&repo.Repository{HasError: true}); got != cellAlarm {
			t.Errorf("errored tracking = %q, want %q", got, cellAlarm)
		}
		r := &repo.Repository{HasUpstream: ptr(true), Ahead: ptr(1), Behind: ptr(0)}
		if got := trackingCell(r); got != "↑1" {
			t.Errorf("tracking = %q, want ↑1", got)
		}
	})

	t.Run("loading", func(t *testing.T) {
		t.Parallel()
		if got := loadingCell(&repo.Repository{Loading: true}); got != "⟳" {
			t.Errorf("loading = %q, want ⟳", got)
		}
		if got := loadingCell(&repo.Repository{}); got != "" {
			t.Errorf("idle = %q, want empty", got)
		}
	})
}
