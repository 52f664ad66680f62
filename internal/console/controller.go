// ABOUTME: Top-level controller owning dashboard state and wiring the pipeline
// ABOUTME: Connects uploads, polling outcomes, live events, the store, and metrics

package console

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/thirdeye/visioncount/internal/analytics"
	"github.com/thirdeye/visioncount/internal/backend"
	"github.com/thirdeye/visioncount/internal/livefeed"
	"github.com/thirdeye/visioncount/internal/metrics"
	"github.com/thirdeye/visioncount/internal/uploads"
)

// State is the dashboard's live view-state. All mutable state lives here, on
// the controller, rather than in package-level variables.
type State struct {
	// SessionTotal is the cumulative bag count for this identity.
	SessionTotal int64

	// Occupancy is the count visible in the most recent live frame.
	Occupancy int

	// LastFrame is the most recent encoded live frame.
	LastFrame string
}

// SessionResetter is the backend operation the reset flow needs.
type SessionResetter interface {
	Reset(ctx context.Context) error
}

// Controller owns the upload-to-analytics pipeline for one authenticated
// identity. It is the single writer of State.
type Controller struct {
	identity string
	resetter SessionResetter
	uploads  *uploads.Manager
	store    analytics.Store
	logger   *slog.Logger

	mu    sync.Mutex
	state State

	// now is the record-time clock; swapped in tests.
	now func() time.Time
}

// NewController wires the pipeline for one identity. The uploads manager's
// terminal notifications are claimed by the controller: each completed task
// materializes exactly one analytics record.
func NewController(identity string, resetter SessionResetter, uploadMgr *uploads.Manager, store analytics.Store) *Controller {
	c := &Controller{
		identity: identity,
		resetter: resetter,
		uploads:  uploadMgr,
		store:    store,
		logger:   slog.Default().With("component", "console"),
		now:      time.Now,
	}
	uploadMgr.OnTerminal = c.handleTerminal
	return c
}

// Restore repopulates session state persisted across restarts: the
// cumulative total and the recent-uploads list.
func (c *Controller) Restore(ctx context.Context) error {
	total, err := c.store.Total(ctx, c.identity)
	if err != nil {
		return fmt.Errorf("restoring session total: %w", err)
	}

	c.mu.Lock()
	c.state.SessionTotal = total
	c.mu.Unlock()
	return nil
}

// SubmitFile submits a local file for analysis.
func (c *Controller) SubmitFile(ctx context.Context, path string, mode backend.Mode) (uploads.Task, error) {
	f, err := os.Open(path)
	if err != nil {
		return uploads.Task{}, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	return c.uploads.Submit(ctx, filepath.Base(path), f, mode, c.identity), nil
}

// Uploads returns the current in-memory task list, newest first.
func (c *Controller) Uploads() []uploads.Task {
	return c.uploads.Tasks()
}

// WaitForUploads blocks until background polling has finished.
func (c *Controller) WaitForUploads() {
	c.uploads.Wait()
}

// handleTerminal materializes analytics state for finished tasks. Only a
// Completed task produces a record; this is its one and only materialization,
// and the record is never traced back to the task afterwards.
func (c *Controller) handleTerminal(task uploads.Task) {
	if task.Status != uploads.StatusCompleted || task.ResultCount == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	count := *task.ResultCount
	displayTime := c.now().Format("15:04")

	rec := analytics.Record{
		ID:       uuid.New().String(),
		Time:     displayTime,
		Filename: task.FileName,
		Count:    count,
		Status:   analytics.StatusCompleted,
	}
	if err := c.store.Append(ctx, c.identity, rec); err != nil {
		c.logger.Error("recording completed task", "file", task.FileName, "error", err)
		return
	}

	total, err := c.store.AddToTotal(ctx, c.identity, count)
	if err != nil {
		c.logger.Error("updating session total", "error", err)
	} else {
		c.mu.Lock()
		c.state.SessionTotal = total
		c.mu.Unlock()
	}

	c.pushRecent(ctx, analytics.RecentUpload{Filename: task.FileName, Count: count, Time: displayTime})
}

// pushRecent prepends to the last-completed-uploads list, keeping five.
func (c *Controller) pushRecent(ctx context.Context, item analytics.RecentUpload) {
	recent, err := c.store.Recent(ctx, c.identity)
	if err != nil {
		c.logger.Error("loading recent uploads", "error", err)
		return
	}

	recent = append([]analytics.RecentUpload{item}, recent...)
	if len(recent) > analytics.MaxRecent {
		recent = recent[:analytics.MaxRecent]
	}
	if err := c.store.SetRecent(ctx, c.identity, recent); err != nil {
		c.logger.Error("saving recent uploads", "error", err)
	}
}

// Listen applies live channel events until the stream closes or ctx ends.
func (c *Controller) Listen(ctx context.Context, events <-chan livefeed.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			c.ApplyEvent(ctx, ev)
		}
	}
}

// ApplyEvent folds one live channel event into the state. Events are applied
// as received; the channel guarantees no ordering beyond transport order.
func (c *Controller) ApplyEvent(ctx context.Context, ev livefeed.Event) {
	switch ev.Kind {
	case livefeed.KindReset:
		if err := c.clearLocal(ctx); err != nil {
			c.logger.Error("applying reset event", "error", err)
		}
	case livefeed.KindFrame:
		c.mu.Lock()
		c.state.Occupancy = ev.Count
		c.state.LastFrame = ev.FrameData
		c.mu.Unlock()
	case livefeed.KindTotal:
		c.mu.Lock()
		c.state.SessionTotal = int64(ev.Count)
		c.mu.Unlock()
	}
}

// ResetSession clears backend session state and all local analytics for this
// identity. The backend also broadcasts a reset event; applying it again is
// harmless.
func (c *Controller) ResetSession(ctx context.Context) error {
	if err := c.resetter.Reset(ctx); err != nil {
		return err
	}
	return c.clearLocal(ctx)
}

func (c *Controller) clearLocal(ctx context.Context) error {
	if err := c.store.ClearAll(ctx, c.identity); err != nil {
		return fmt.Errorf("clearing analytics: %w", err)
	}

	c.mu.Lock()
	c.state = State{}
	c.mu.Unlock()
	return nil
}

// History returns the filtered record set, honoring a pending one-shot
// filter handoff when filter is empty.
func (c *Controller) History(ctx context.Context, filter string) ([]analytics.Record, error) {
	if filter == "" {
		pending, err := c.store.TakeFilterHandoff(ctx, c.identity)
		if err != nil {
			return nil, err
		}
		filter = pending
		if filter == "" {
			filter = analytics.FilterAll
		}
	}
	return c.store.FilterByFilename(ctx, c.identity, filter)
}

// Stats aggregates dashboard metrics over the filtered record set.
func (c *Controller) Stats(ctx context.Context, filter string) (metrics.Summary, error) {
	records, err := c.History(ctx, filter)
	if err != nil {
		return metrics.Summary{}, err
	}
	return metrics.Aggregate(records), nil
}

// Verify marks a record as human-verified with the corrected count.
func (c *Controller) Verify(ctx context.Context, ref analytics.Ref, actualCount int) error {
	return c.store.Verify(ctx, c.identity, ref, actualCount)
}

// RemoveRecord deletes one analytics record.
func (c *Controller) RemoveRecord(ctx context.Context, ref analytics.Ref) error {
	return c.store.Remove(ctx, c.identity, ref)
}

// Export writes the filtered record set as CSV.
func (c *Controller) Export(ctx context.Context, w io.Writer, filter string) error {
	records, err := c.History(ctx, filter)
	if err != nil {
		return err
	}
	return analytics.WriteCSV(w, records)
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}
