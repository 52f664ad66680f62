// ABOUTME: Tests for the console controller
// ABOUTME: Covers record materialization, live events, reset, history, and export

package console

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thirdeye/visioncount/internal/analytics"
	"github.com/thirdeye/visioncount/internal/backend"
	"github.com/thirdeye/visioncount/internal/livefeed"
	"github.com/thirdeye/visioncount/internal/uploads"
)

// memStore is an in-memory analytics.Store for controller tests.
type memStore struct {
	records map[string][]analytics.Record
	totals  map[string]int64
	recent  map[string][]analytics.RecentUpload
	handoff map[string]string
}

func newMemStore() *memStore {
	return &memStore{
		records: make(map[string][]analytics.Record),
		totals:  make(map[string]int64),
		recent:  make(map[string][]analytics.RecentUpload),
		handoff: make(map[string]string),
	}
}

func (s *memStore) Append(_ context.Context, identity string, rec analytics.Record) error {
	recs := append([]analytics.Record{rec}, s.records[identity]...)
	if len(recs) > analytics.MaxRecords {
		recs = recs[:analytics.MaxRecords]
	}
	s.records[identity] = recs
	return nil
}

func (s *memStore) ListAll(_ context.Context, identity string) ([]analytics.Record, error) {
	return s.records[identity], nil
}

func (s *memStore) FilterByFilename(_ context.Context, identity, name string) ([]analytics.Record, error) {
	if name == analytics.FilterAll {
		return s.records[identity], nil
	}
	var out []analytics.Record
	for _, r := range s.records[identity] {
		if r.Filename == name {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memStore) Verify(_ context.Context, identity string, ref analytics.Ref, actualCount int) error {
	for i, r := range s.records[identity] {
		if r.ID == ref.ID || (ref.ID == "" && r.Time == ref.Time && r.Filename == ref.Filename) {
			r.ActualCount = &actualCount
			r.Status = analytics.StatusVerified
			s.records[identity][i] = r
			return nil
		}
	}
	return analytics.ErrRecordNotFound
}

func (s *memStore) Remove(_ context.Context, identity string, ref analytics.Ref) error {
	for i, r := range s.records[identity] {
		if r.ID == ref.ID || (ref.ID == "" && r.Time == ref.Time && r.Filename == ref.Filename) {
			s.records[identity] = append(s.records[identity][:i], s.records[identity][i+1:]...)
			return nil
		}
	}
	return analytics.ErrRecordNotFound
}

func (s *memStore) ClearAll(_ context.Context, identity string) error {
	delete(s.records, identity)
	delete(s.totals, identity)
	delete(s.recent, identity)
	delete(s.handoff, identity)
	return nil
}

func (s *memStore) AddToTotal(_ context.Context, identity string, delta int) (int64, error) {
	s.totals[identity] += int64(delta)
	return s.totals[identity], nil
}

func (s *memStore) Total(_ context.Context, identity string) (int64, error) {
	return s.totals[identity], nil
}

func (s *memStore) SetRecent(_ context.Context, identity string, items []analytics.RecentUpload) error {
	s.recent[identity] = items
	return nil
}

func (s *memStore) Recent(_ context.Context, identity string) ([]analytics.RecentUpload, error) {
	return s.recent[identity], nil
}

func (s *memStore) SetFilterHandoff(_ context.Context, identity, name string) error {
	s.handoff[identity] = name
	return nil
}

func (s *memStore) TakeFilterHandoff(_ context.Context, identity string) (string, error) {
	name := s.handoff[identity]
	delete(s.handoff, identity)
	return name, nil
}

func (s *memStore) Close() error { return nil }

type fakeSubmitter struct {
	taskID string
	err    error
}

func (f *fakeSubmitter) SubmitUpload(_ context.Context, _ backend.UploadRequest) (string, error) {
	return f.taskID, f.err
}

type fakePoller struct {
	outcome *backend.Outcome
}

func (f *fakePoller) Poll(_ context.Context, _ string) (*backend.Outcome, error) {
	return f.outcome, nil
}

type fakeResetter struct {
	calls int
	err   error
}

func (f *fakeResetter) Reset(_ context.Context) error {
	f.calls++
	return f.err
}

func newTestController(t *testing.T, outcome *backend.Outcome) (*Controller, *memStore, *fakeResetter) {
	t.Helper()
	store := newMemStore()
	resetter := &fakeResetter{}
	mgr := uploads.NewManager(&fakeSubmitter{taskID: "backend-1"}, &fakePoller{outcome: outcome})
	c := NewController("user-1", resetter, mgr, store)
	c.now = func() time.Time { return time.Date(2026, 8, 30, 9, 15, 0, 0, time.UTC) }
	return c, store, resetter
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestSubmitFile_CompletedMaterializesRecord(t *testing.T) {
	c, store, _ := newTestController(t, &backend.Outcome{State: backend.StateCompleted, Count: 42})
	path := writeTempFile(t, "shipment.mp4", "bytes")

	task, err := c.SubmitFile(context.Background(), path, backend.ModeConveyor)
	require.NoError(t, err)
	assert.Equal(t, "shipment.mp4", task.FileName)

	c.WaitForUploads()

	recs := store.records["user-1"]
	require.Len(t, recs, 1)
	assert.NotEmpty(t, recs[0].ID)
	assert.Equal(t, "09:15", recs[0].Time)
	assert.Equal(t, "shipment.mp4", recs[0].Filename)
	assert.Equal(t, 42, recs[0].Count)
	assert.Equal(t, analytics.StatusCompleted, recs[0].Status)
	assert.Nil(t, recs[0].ActualCount)

	assert.Equal(t, int64(42), c.Snapshot().SessionTotal)

	recent := store.recent["user-1"]
	require.Len(t, recent, 1)
	assert.Equal(t, analytics.RecentUpload{Filename: "shipment.mp4", Count: 42, Time: "09:15"}, recent[0])
}

func TestSubmitFile_FailedProducesNoRecord(t *testing.T) {
	store := newMemStore()
	mgr := uploads.NewManager(&fakeSubmitter{err: errors.New("upload failed")}, &fakePoller{})
	c := NewController("user-1", &fakeResetter{}, mgr, store)
	path := writeTempFile(t, "photo.jpg", "img")

	task, err := c.SubmitFile(context.Background(), path, backend.ModeScanning)
	require.NoError(t, err)
	assert.Equal(t, uploads.StatusFailed, task.Status)

	c.WaitForUploads()
	assert.Empty(t, store.records["user-1"])
	assert.Equal(t, int64(0), c.Snapshot().SessionTotal)
}

func TestSubmitFile_MissingFile(t *testing.T) {
	c, _, _ := newTestController(t, nil)

	_, err := c.SubmitFile(context.Background(), filepath.Join(t.TempDir(), "nope.mp4"), backend.ModeStatic)
	assert.Error(t, err)
	assert.Empty(t, c.Uploads(), "no task appears for an unreadable file")
}

func TestRecent_CapsAtFive(t *testing.T) {
	c, store, _ := newTestController(t, &backend.Outcome{State: backend.StateCompleted, Count: 1})

	for i := 0; i < 7; i++ {
		path := writeTempFile(t, "clip.mp4", "bytes")
		_, err := c.SubmitFile(context.Background(), path, backend.ModeStatic)
		require.NoError(t, err)
		c.WaitForUploads()
	}

	assert.Len(t, store.recent["user-1"], analytics.MaxRecent)
}

func TestApplyEvent_FrameAndTotal(t *testing.T) {
	c, _, _ := newTestController(t, nil)
	ctx := context.Background()

	c.ApplyEvent(ctx, livefeed.Event{Kind: livefeed.KindFrame, FrameData: "jpeg", Count: 3})
	state := c.Snapshot()
	assert.Equal(t, 3, state.Occupancy)
	assert.Equal(t, "jpeg", state.LastFrame)

	c.ApplyEvent(ctx, livefeed.Event{Kind: livefeed.KindTotal, Count: 17})
	assert.Equal(t, int64(17), c.Snapshot().SessionTotal)

	// A frame update does not touch the cumulative total.
	c.ApplyEvent(ctx, livefeed.Event{Kind: livefeed.KindFrame, FrameData: "jpeg2", Count: 1})
	assert.Equal(t, int64(17), c.Snapshot().SessionTotal)
}

func TestApplyEvent_ResetClearsEverything(t *testing.T) {
	c, store, _ := newTestController(t, &backend.Outcome{State: backend.StateCompleted, Count: 10})
	ctx := context.Background()

	path := writeTempFile(t, "clip.mp4", "bytes")
	_, err := c.SubmitFile(ctx, path, backend.ModeStatic)
	require.NoError(t, err)
	c.WaitForUploads()
	require.Equal(t, int64(10), c.Snapshot().SessionTotal)

	c.ApplyEvent(ctx, livefeed.Event{Kind: livefeed.KindReset})

	assert.Equal(t, State{}, c.Snapshot())
	assert.Empty(t, store.records["user-1"])
	assert.Equal(t, int64(0), store.totals["user-1"])
}

func TestResetSession(t *testing.T) {
	c, store, resetter := newTestController(t, &backend.Outcome{State: backend.StateCompleted, Count: 5})
	ctx := context.Background()

	path := writeTempFile(t, "clip.mp4", "bytes")
	_, err := c.SubmitFile(ctx, path, backend.ModeStatic)
	require.NoError(t, err)
	c.WaitForUploads()

	require.NoError(t, c.ResetSession(ctx))
	assert.Equal(t, 1, resetter.calls)
	assert.Equal(t, State{}, c.Snapshot())
	assert.Empty(t, store.records["user-1"])
}

func TestResetSession_BackendErrorKeepsLocalState(t *testing.T) {
	c, store, resetter := newTestController(t, &backend.Outcome{State: backend.StateCompleted, Count: 5})
	resetter.err = errors.New("connection refused")
	ctx := context.Background()

	path := writeTempFile(t, "clip.mp4", "bytes")
	_, err := c.SubmitFile(ctx, path, backend.ModeStatic)
	require.NoError(t, err)
	c.WaitForUploads()

	require.Error(t, c.ResetSession(ctx))
	assert.Len(t, store.records["user-1"], 1, "local analytics survive a failed backend reset")
	assert.Equal(t, int64(5), c.Snapshot().SessionTotal)
}

func TestRestore(t *testing.T) {
	c, store, _ := newTestController(t, nil)
	store.totals["user-1"] = 120

	require.NoError(t, c.Restore(context.Background()))
	assert.Equal(t, int64(120), c.Snapshot().SessionTotal)
}

func TestHistory_FilterHandoffIsOneShot(t *testing.T) {
	c, store, _ := newTestController(t, nil)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "user-1", analytics.Record{ID: "a", Filename: "one.mp4", Count: 1, Status: analytics.StatusCompleted}))
	require.NoError(t, store.Append(ctx, "user-1", analytics.Record{ID: "b", Filename: "two.mp4", Count: 2, Status: analytics.StatusCompleted}))
	require.NoError(t, store.SetFilterHandoff(ctx, "user-1", "one.mp4"))

	recs, err := c.History(ctx, "")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "one.mp4", recs[0].Filename)

	// Handoff consumed; the next empty-filter call sees everything.
	recs, err = c.History(ctx, "")
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestHistory_ExplicitFilterIgnoresHandoff(t *testing.T) {
	c, store, _ := newTestController(t, nil)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "user-1", analytics.Record{ID: "a", Filename: "one.mp4", Count: 1, Status: analytics.StatusCompleted}))
	require.NoError(t, store.SetFilterHandoff(ctx, "user-1", "one.mp4"))

	recs, err := c.History(ctx, analytics.FilterAll)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
	assert.Equal(t, "one.mp4", store.handoff["user-1"], "explicit filter leaves the handoff pending")
}

func TestStats(t *testing.T) {
	c, store, _ := newTestController(t, nil)
	ctx := context.Background()

	actual := 9
	require.NoError(t, store.Append(ctx, "user-1", analytics.Record{ID: "a", Time: "09:00", Filename: "one.mp4", Count: 10, ActualCount: &actual, Status: analytics.StatusVerified}))
	require.NoError(t, store.Append(ctx, "user-1", analytics.Record{ID: "b", Time: "14:30", Filename: "two.mp4", Count: 20, Status: analytics.StatusCompleted}))

	summary, err := c.Stats(ctx, analytics.FilterAll)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.TotalUploads)
	assert.Equal(t, 30, summary.TotalBags)
	assert.Equal(t, 15, summary.AvgBags)
	assert.Equal(t, 14, summary.PeakHour, "peak hour uses the AI counts")
}

func TestVerifyAndRemove(t *testing.T) {
	c, store, _ := newTestController(t, nil)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "user-1", analytics.Record{ID: "a", Time: "09:00", Filename: "one.mp4", Count: 10, Status: analytics.StatusCompleted}))

	require.NoError(t, c.Verify(ctx, analytics.Ref{ID: "a"}, 12))
	rec := store.records["user-1"][0]
	assert.Equal(t, analytics.StatusVerified, rec.Status)
	require.NotNil(t, rec.ActualCount)
	assert.Equal(t, 12, *rec.ActualCount)

	require.NoError(t, c.RemoveRecord(ctx, analytics.Ref{ID: "a"}))
	assert.Empty(t, store.records["user-1"])

	assert.ErrorIs(t, c.RemoveRecord(ctx, analytics.Ref{ID: "a"}), analytics.ErrRecordNotFound)
}

func TestExport(t *testing.T) {
	c, store, _ := newTestController(t, nil)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "user-1", analytics.Record{ID: "a", Time: "09:15", Filename: "one.mp4", Count: 10, Status: analytics.StatusCompleted}))

	var buf strings.Builder
	require.NoError(t, c.Export(ctx, &buf, analytics.FilterAll))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Time,File,Count,Status", lines[0])
	assert.Equal(t, "09:15,one.mp4,10,Completed", lines[1])
}

func TestListen_StopsWhenStreamCloses(t *testing.T) {
	c, _, _ := newTestController(t, nil)

	events := make(chan livefeed.Event, 1)
	events <- livefeed.Event{Kind: livefeed.KindTotal, Count: 7}
	close(events)

	done := make(chan struct{})
	go func() {
		c.Listen(context.Background(), events)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Listen did not return after stream close")
	}
	assert.Equal(t, int64(7), c.Snapshot().SessionTotal)
}
