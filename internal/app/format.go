package app

import (
	"time"

	"github.com/jturner86/lzm/internal/repo"
)

// Table cell placeholders. A pending value renders as "...", a value the
// last bundle failed to determine renders as the alarm indicator.
const (
	cellPending = "..."
	cellAlarm   = "!"
	cellNever   = "Never"
	cellNone    = "N/A"
)

func accessedCell(r *repo.Repository) string {
	if r.LastAccessed == nil {
		return cellNever
	}
	return r.LastAccessed.Local().Format("2006-01-02 15:04")
}

func commitCell(r *repo.Repository) string {
	if r.LastCommit == nil {
		if r.HasError {
			return cellAlarm
		}
		return cellNone
	}
	return r.LastCommit.Local().Format("2006-01-02")
}

func branchCell(r *repo.Repository) string {
	if r.Branch == nil {
		if r.HasError {
			return cellAlarm
		}
		return cellPending
	}
	return *r.Branch
}

func statusCell(r *repo.Repository) string {
	if r.Status == nil {
		if r.HasError {
			return cellAlarm
		}
		return cellPending
	}
	return string(*r.Status)
}

func trackingCell(r *repo.Repository) string {
	if r.HasError {
		return cellAlarm
	}
	return r.AheadBehindDisplay()
}

func loadingCell(r *repo.Repository) string {
	if r.Loading {
		return "⟳"
	}
	return ""
}

func timestamp(t time.Time) string {
	return t.Format("15:04:05")
}
