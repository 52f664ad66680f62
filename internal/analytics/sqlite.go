// ABOUTME: SQLite implementation of the analytics Store using modernc.org/sqlite
// ABOUTME: Persists whole per-identity collections as JSON blobs with automatic schema creation

package analytics

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite. Collections are
// stored as one JSON blob per identity and rewritten whole on every mutation,
// the same replace-the-collection semantics the browser dashboard had with
// local storage.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger

	// Serializes read-modify-write cycles on the collection blobs. The
	// cross-process race on a shared database file remains a documented
	// limitation, as it was for multi-tab local storage.
	mu sync.Mutex
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "analytics")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("analytics store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS collections (
			identity TEXT PRIMARY KEY,
			records BLOB NOT NULL,
			updated_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS bag_totals (
			identity TEXT PRIMARY KEY,
			total TEXT NOT NULL,
			updated_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS recent_uploads (
			identity TEXT PRIMARY KEY,
			items BLOB NOT NULL,
			updated_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS filter_handoff (
			identity TEXT PRIMARY KEY,
			filename TEXT NOT NULL
		);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// loadCollection reads and decodes the identity's collection. A missing row
// yields an empty collection; a corrupted blob is reset to empty rather than
// surfaced as a parse error.
func (s *SQLiteStore) loadCollection(ctx context.Context, identity string) ([]Record, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT records FROM collections WHERE identity = ?", identity).Scan(&blob)
	if err == sql.ErrNoRows {
		return []Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading collection: %w", err)
	}

	var records []Record
	if err := json.Unmarshal(blob, &records); err != nil {
		s.logger.Warn("corrupted collection, resetting to empty", "identity", identity, "error", err)
		return []Record{}, nil
	}
	return records, nil
}

// saveCollection re-serializes and replaces the identity's whole collection.
func (s *SQLiteStore) saveCollection(ctx context.Context, identity string, records []Record) error {
	blob, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encoding collection: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO collections (identity, records, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(identity) DO UPDATE SET records = excluded.records, updated_at = excluded.updated_at`,
		identity, blob, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("saving collection: %w", err)
	}
	return nil
}

// Append inserts the record at index 0 and truncates the collection to
// MaxRecords, dropping the oldest entries.
func (s *SQLiteStore) Append(ctx context.Context, identity string, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.loadCollection(ctx, identity)
	if err != nil {
		return err
	}

	records = append([]Record{rec}, records...)
	if len(records) > MaxRecords {
		records = records[:MaxRecords]
	}

	return s.saveCollection(ctx, identity, records)
}

// ListAll returns the full collection in insertion order, newest first.
func (s *SQLiteStore) ListAll(ctx context.Context, identity string) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadCollection(ctx, identity)
}

// FilterByFilename returns records whose filename exactly equals name, or
// everything when name is FilterAll.
func (s *SQLiteStore) FilterByFilename(ctx context.Context, identity, name string) ([]Record, error) {
	records, err := s.ListAll(ctx, identity)
	if err != nil {
		return nil, err
	}
	if name == FilterAll {
		return records, nil
	}

	filtered := make([]Record, 0, len(records))
	for _, r := range records {
		if r.Filename == name {
			filtered = append(filtered, r)
		}
	}
	return filtered, nil
}

// Verify marks the first record matching ref as Verified and stores the
// human-corrected count.
func (s *SQLiteStore) Verify(ctx context.Context, identity string, ref Ref, actualCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.loadCollection(ctx, identity)
	if err != nil {
		return err
	}

	for i := range records {
		if ref.matches(&records[i]) {
			records[i].Status = StatusVerified
			records[i].ActualCount = &actualCount
			return s.saveCollection(ctx, identity, records)
		}
	}
	return ErrRecordNotFound
}

// Remove deletes the first record matching ref.
func (s *SQLiteStore) Remove(ctx context.Context, identity string, ref Ref) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.loadCollection(ctx, identity)
	if err != nil {
		return err
	}

	for i := range records {
		if ref.matches(&records[i]) {
			records = append(records[:i], records[i+1:]...)
			return s.saveCollection(ctx, identity, records)
		}
	}
	return ErrRecordNotFound
}

// ClearAll deletes the identity's collection, cumulative total, recent
// uploads, and any pending filter handoff.
func (s *SQLiteStore) ClearAll(ctx context.Context, identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"collections", "bag_totals", "recent_uploads", "filter_handoff"} {
		if _, err := s.db.ExecContext(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE identity = ?", table), identity); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}
	return nil
}

// AddToTotal adds delta to the cumulative bag total, stored as a decimal
// string the way the dashboard kept it in local storage.
func (s *SQLiteStore) AddToTotal(ctx context.Context, identity string, delta int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	total, err := s.readTotal(ctx, identity)
	if err != nil {
		return 0, err
	}
	total += int64(delta)

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO bag_totals (identity, total, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(identity) DO UPDATE SET total = excluded.total, updated_at = excluded.updated_at`,
		identity, strconv.FormatInt(total, 10), time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("saving total: %w", err)
	}
	return total, nil
}

// Total returns the identity's cumulative bag total.
func (s *SQLiteStore) Total(ctx context.Context, identity string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readTotal(ctx, identity)
}

func (s *SQLiteStore) readTotal(ctx context.Context, identity string) (int64, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		"SELECT total FROM bag_totals WHERE identity = ?", identity).Scan(&raw)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("loading total: %w", err)
	}

	total, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		s.logger.Warn("corrupted bag total, resetting to zero", "identity", identity, "value", raw)
		return 0, nil
	}
	return total, nil
}

// SetRecent replaces the identity's last-completed-uploads list, truncated
// to MaxRecent.
func (s *SQLiteStore) SetRecent(ctx context.Context, identity string, items []RecentUpload) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(items) > MaxRecent {
		items = items[:MaxRecent]
	}

	blob, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encoding recent uploads: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO recent_uploads (identity, items, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(identity) DO UPDATE SET items = excluded.items, updated_at = excluded.updated_at`,
		identity, blob, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("saving recent uploads: %w", err)
	}
	return nil
}

// Recent returns the identity's last-completed-uploads list.
func (s *SQLiteStore) Recent(ctx context.Context, identity string) ([]RecentUpload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var blob []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT items FROM recent_uploads WHERE identity = ?", identity).Scan(&blob)
	if err == sql.ErrNoRows {
		return []RecentUpload{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading recent uploads: %w", err)
	}

	var items []RecentUpload
	if err := json.Unmarshal(blob, &items); err != nil {
		s.logger.Warn("corrupted recent uploads, resetting to empty", "identity", identity, "error", err)
		return []RecentUpload{}, nil
	}
	return items, nil
}

// SetFilterHandoff stores the one-shot filter preselection.
func (s *SQLiteStore) SetFilterHandoff(ctx context.Context, identity, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO filter_handoff (identity, filename) VALUES (?, ?)
		ON CONFLICT(identity) DO UPDATE SET filename = excluded.filename`,
		identity, name)
	if err != nil {
		return fmt.Errorf("saving filter handoff: %w", err)
	}
	return nil
}

// TakeFilterHandoff returns and clears the pending filter preselection.
func (s *SQLiteStore) TakeFilterHandoff(ctx context.Context, identity string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var name string
	err := s.db.QueryRowContext(ctx,
		"SELECT filename FROM filter_handoff WHERE identity = ?", identity).Scan(&name)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("loading filter handoff: %w", err)
	}

	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM filter_handoff WHERE identity = ?", identity); err != nil {
		return "", fmt.Errorf("clearing filter handoff: %w", err)
	}
	return name, nil
}
