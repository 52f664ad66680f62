// ABOUTME: Tests for the SQLite analytics store
// ABOUTME: Covers the 50-record bound, filtering, verify/remove, counters, and corruption recovery

package analytics

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

func testRecord(filename string, count int) Record {
	return Record{
		ID:       uuid.New().String(),
		Time:     "09:15",
		Filename: filename,
		Count:    count,
		Status:   StatusCompleted,
	}
}

func TestStore_AppendAndList(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "user-1", testRecord("a.mp4", 10)))
	require.NoError(t, store.Append(ctx, "user-1", testRecord("b.mp4", 20)))

	records, err := store.ListAll(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, records, 2)

	// Newest first
	assert.Equal(t, "b.mp4", records[0].Filename)
	assert.Equal(t, "a.mp4", records[1].Filename)
}

func TestStore_BoundInvariant(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for i := 0; i < 60; i++ {
		rec := testRecord(fmt.Sprintf("clip-%d.mp4", i), i)
		require.NoError(t, store.Append(ctx, "user-1", rec))

		records, err := store.ListAll(ctx, "user-1")
		require.NoError(t, err)
		assert.LessOrEqual(t, len(records), MaxRecords)
	}

	records, err := store.ListAll(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, records, MaxRecords)

	// The 50 most recent appends survive, newest first.
	assert.Equal(t, "clip-59.mp4", records[0].Filename)
	assert.Equal(t, "clip-10.mp4", records[MaxRecords-1].Filename)
}

func TestStore_IdentityScoping(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "user-1", testRecord("a.mp4", 10)))
	require.NoError(t, store.Append(ctx, "user-2", testRecord("b.mp4", 20)))

	records, err := store.ListAll(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "a.mp4", records[0].Filename)
}

func TestStore_FilterByFilename(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "user-1", testRecord("a.mp4", 10)))
	require.NoError(t, store.Append(ctx, "user-1", testRecord("b.mp4", 20)))
	require.NoError(t, store.Append(ctx, "user-1", testRecord("a.mp4", 30)))

	filtered, err := store.FilterByFilename(ctx, "user-1", "a.mp4")
	require.NoError(t, err)
	require.Len(t, filtered, 2)
	for _, r := range filtered {
		assert.Equal(t, "a.mp4", r.Filename)
	}
}

func TestStore_FilterAllEqualsListAll(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "user-1", testRecord("a.mp4", 10)))
	require.NoError(t, store.Append(ctx, "user-1", testRecord("b.mp4", 20)))

	all, err := store.ListAll(ctx, "user-1")
	require.NoError(t, err)

	filtered, err := store.FilterByFilename(ctx, "user-1", FilterAll)
	require.NoError(t, err)

	assert.Equal(t, all, filtered)
}

func TestStore_VerifyRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "roundtrip.db")

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	ctx := context.Background()

	rec := testRecord("a.mp4", 100)
	require.NoError(t, store.Append(ctx, "user-1", rec))
	require.NoError(t, store.Verify(ctx, "user-1", Ref{ID: rec.ID}, 90))
	require.NoError(t, store.Close())

	// Reload from persisted state: exact round trip, no loss.
	reloaded, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer reloaded.Close()

	records, err := reloaded.ListAll(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, StatusVerified, records[0].Status)
	require.NotNil(t, records[0].ActualCount)
	assert.Equal(t, 90, *records[0].ActualCount)
}

func TestStore_VerifyLegacyCompositeKey(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	// Records persisted by older dashboard versions carry no ID; the
	// composite key resolves to the first match.
	legacy := Record{Time: "09:15", Filename: "a.mp4", Count: 10, Status: StatusCompleted}
	dup := Record{Time: "09:15", Filename: "a.mp4", Count: 12, Status: StatusCompleted}
	require.NoError(t, store.Append(ctx, "user-1", legacy))
	require.NoError(t, store.Append(ctx, "user-1", dup))

	require.NoError(t, store.Verify(ctx, "user-1", Ref{Time: "09:15", Filename: "a.mp4"}, 11))

	records, err := store.ListAll(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, StatusVerified, records[0].Status, "first match only")
	assert.Equal(t, StatusCompleted, records[1].Status)
}

func TestStore_VerifyNotFound(t *testing.T) {
	store := setupTestStore(t)

	err := store.Verify(context.Background(), "user-1", Ref{ID: "nope"}, 5)
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestStore_Remove(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	rec := testRecord("a.mp4", 10)
	require.NoError(t, store.Append(ctx, "user-1", rec))
	require.NoError(t, store.Append(ctx, "user-1", testRecord("b.mp4", 20)))

	require.NoError(t, store.Remove(ctx, "user-1", Ref{ID: rec.ID}))

	records, err := store.ListAll(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "b.mp4", records[0].Filename)

	err = store.Remove(ctx, "user-1", Ref{ID: rec.ID})
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestStore_ClearAll(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "user-1", testRecord("a.mp4", 10)))
	_, err := store.AddToTotal(ctx, "user-1", 10)
	require.NoError(t, err)
	require.NoError(t, store.SetRecent(ctx, "user-1", []RecentUpload{{Filename: "a.mp4", Count: 10, Time: "09:15"}}))

	require.NoError(t, store.ClearAll(ctx, "user-1"))

	records, err := store.ListAll(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, records)

	total, err := store.Total(ctx, "user-1")
	require.NoError(t, err)
	assert.Zero(t, total)

	recent, err := store.Recent(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestStore_CumulativeTotal(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	total, err := store.AddToTotal(ctx, "user-1", 10)
	require.NoError(t, err)
	assert.EqualValues(t, 10, total)

	total, err = store.AddToTotal(ctx, "user-1", 25)
	require.NoError(t, err)
	assert.EqualValues(t, 35, total)

	total, err = store.Total(ctx, "user-1")
	require.NoError(t, err)
	assert.EqualValues(t, 35, total)

	// Other identities are untouched.
	total, err = store.Total(ctx, "user-2")
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestStore_RecentTruncatedToFive(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	items := make([]RecentUpload, 8)
	for i := range items {
		items[i] = RecentUpload{Filename: fmt.Sprintf("clip-%d.mp4", i), Count: i, Time: "09:15"}
	}
	require.NoError(t, store.SetRecent(ctx, "user-1", items))

	recent, err := store.Recent(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, recent, MaxRecent)
	assert.Equal(t, "clip-0.mp4", recent[0].Filename)
}

func TestStore_FilterHandoffIsOneShot(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetFilterHandoff(ctx, "user-1", "a.mp4"))

	name, err := store.TakeFilterHandoff(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "a.mp4", name)

	name, err = store.TakeFilterHandoff(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, name, "handoff must clear after first read")
}

func TestStore_CorruptedCollectionResetsToEmpty(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.db.ExecContext(ctx,
		"INSERT INTO collections (identity, records, updated_at) VALUES (?, ?, datetime('now'))",
		"user-1", []byte("{not json"))
	require.NoError(t, err)

	records, err := store.ListAll(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, records)

	// Appending on top of corruption starts a fresh collection.
	require.NoError(t, store.Append(ctx, "user-1", testRecord("a.mp4", 10)))
	records, err = store.ListAll(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestStore_DuplicatesPermitted(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	rec := Record{Time: "09:15", Filename: "a.mp4", Count: 10, Status: StatusCompleted}
	require.NoError(t, store.Append(ctx, "user-1", rec))
	require.NoError(t, store.Append(ctx, "user-1", rec))

	records, err := store.ListAll(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, records, 2)
}
