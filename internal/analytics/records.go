// ABOUTME: Record types and the Store interface for per-identity analytics history
// ABOUTME: Defines the bounded, newest-first collection of completed task summaries

package analytics

import (
	"context"
	"errors"
)

// ErrRecordNotFound is returned when no record matches the given reference.
var ErrRecordNotFound = errors.New("record not found")

// Status values for persisted records.
const (
	StatusCompleted = "Completed"
	StatusVerified  = "Verified"
	StatusFailed    = "Failed"
)

// MaxRecords is the hard cap on the per-identity collection. Appending past
// the cap evicts the oldest record.
const MaxRecords = 50

// MaxRecent is how many completed uploads are kept for dashboard
// repopulation after a restart.
const MaxRecent = 5

// FilterAll is the filename filter value meaning "no filter".
const FilterAll = "all"

// Record is one completed task's summary, persisted for historical display.
type Record struct {
	// ID uniquely identifies the record. Assigned at creation; records
	// persisted by older dashboard versions may lack one.
	ID string `json:"id,omitempty"`

	// Time is the localized time-of-day display string (e.g. "09:15"),
	// not a sortable timestamp.
	Time     string `json:"time"`
	Filename string `json:"filename"`

	// Count is the AI-produced count.
	Count int `json:"count"`

	// ActualCount is the human-corrected count. Nil until verified; the
	// AI count stands in for it in aggregations.
	ActualCount *int `json:"actualCount,omitempty"`

	Status string `json:"status"`
}

// Actual returns the human-corrected count, defaulting to the AI count when
// the record was never verified.
func (r *Record) Actual() int {
	if r.ActualCount != nil {
		return *r.ActualCount
	}
	return r.Count
}

// Ref addresses one record for verify/delete. When ID is set it is matched
// exactly. The (Time, Filename) composite is kept only for records persisted
// without an ID; it is not unique, and resolves to the first match.
type Ref struct {
	ID       string
	Time     string
	Filename string
}

func (ref Ref) matches(r *Record) bool {
	if ref.ID != "" {
		return r.ID == ref.ID
	}
	return r.Time == ref.Time && r.Filename == ref.Filename
}

// RecentUpload is one entry of the last-completed-uploads list shown on the
// dashboard after a reload.
type RecentUpload struct {
	Filename string `json:"filename"`
	Count    int    `json:"count"`
	Time     string `json:"time"`
}

// Store persists per-identity analytics state. Every mutation replaces the
// identity's collection atomically from the caller's point of view.
type Store interface {
	// Append inserts the record at the head of the identity's collection,
	// evicting beyond MaxRecords.
	Append(ctx context.Context, identity string, rec Record) error

	// ListAll returns the full collection, newest first.
	ListAll(ctx context.Context, identity string) ([]Record, error)

	// FilterByFilename returns records whose filename exactly equals name,
	// or the full collection when name is FilterAll.
	FilterByFilename(ctx context.Context, identity, name string) ([]Record, error)

	// Verify marks the referenced record Verified with the given actual count.
	Verify(ctx context.Context, identity string, ref Ref, actualCount int) error

	// Remove deletes the referenced record.
	Remove(ctx context.Context, identity string, ref Ref) error

	// ClearAll deletes the identity's collection and its related counters.
	ClearAll(ctx context.Context, identity string) error

	// AddToTotal adds delta to the identity's cumulative bag total and
	// returns the new total.
	AddToTotal(ctx context.Context, identity string, delta int) (int64, error)

	// Total returns the identity's cumulative bag total.
	Total(ctx context.Context, identity string) (int64, error)

	// SetRecent replaces the identity's last-completed-uploads list.
	SetRecent(ctx context.Context, identity string, items []RecentUpload) error

	// Recent returns the identity's last-completed-uploads list.
	Recent(ctx context.Context, identity string) ([]RecentUpload, error)

	// SetFilterHandoff stores the one-shot filter preselection used when
	// navigating between views.
	SetFilterHandoff(ctx context.Context, identity, name string) error

	// TakeFilterHandoff returns and clears the stored filter preselection.
	// Returns the empty string when none is pending.
	TakeFilterHandoff(ctx context.Context, identity string) (string, error)

	Close() error
}
