package filestate

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ca-srg/syncvec/internal/types"
	_ "modernc.org/sqlite"
)

const timeLayout = time.RFC3339Nano

// Store manages SQLite persistence for file state records. It is the
// single source of truth for what the system believes is on disk, and it
// is shared by the scanner, the worker pool and the orphan reclaimer.
// Every status mutation is an atomic conditional update so concurrent
// callers (including other processes on the same database) never race.
type Store struct {
	db *sql.DB
}

// Open creates a new Store with the database at the given path.
// The database file is created if it doesn't exist.
func Open(dbPath string) (*Store, error) {
	// SQLite allows one writer at a time; a busy timeout lets concurrent
	// claimers queue on the write lock instead of failing immediately.
	// The _pragma form applies to every pooled connection.
	dsn := "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// OpenWithDB creates a Store with an existing database connection.
// This allows sharing the connection with the derived-data writer.
func OpenWithDB(db *sql.DB) (*Store, error) {
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// migrate creates the file_state table if it doesn't exist
func (s *Store) migrate() error {
	createTableSQL := `
		CREATE TABLE IF NOT EXISTS file_state (
			path TEXT PRIMARY KEY,
			content_hash TEXT NOT NULL,
			size INTEGER NOT NULL DEFAULT 0,
			modified_at TEXT NOT NULL,
			status TEXT NOT NULL,
			prev_status TEXT NOT NULL DEFAULT '',
			last_checked TEXT NOT NULL
		);
	`
	if _, err := s.db.Exec(createTableSQL); err != nil {
		return fmt.Errorf("failed to create file_state table: %w", err)
	}

	createIndexSQL := `
		CREATE INDEX IF NOT EXISTS idx_file_state_status
		ON file_state(status, last_checked);
	`
	if _, err := s.db.Exec(createIndexSQL); err != nil {
		return fmt.Errorf("failed to create status index: %w", err)
	}

	createHashIndexSQL := `
		CREATE INDEX IF NOT EXISTS idx_file_state_hash
		ON file_state(content_hash);
	`
	if _, err := s.db.Exec(createHashIndexSQL); err != nil {
		return fmt.Errorf("failed to create hash index: %w", err)
	}

	return nil
}

// DB exposes the underlying connection for stores sharing the database.
func (s *Store) DB() *sql.DB {
	return s.db
}

// GetByPath retrieves a file state record by path. Returns nil when the
// path is unknown.
func (s *Store) GetByPath(ctx context.Context, path string) (*types.FileRecord, error) {
	query := `
		SELECT path, content_hash, size, modified_at, status, prev_status, last_checked
		FROM file_state
		WHERE path = ?
	`
	record, err := scanRecord(s.db.QueryRowContext(ctx, query, path))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get file state: %w", err)
	}
	return record, nil
}

// ListAll retrieves every file state record keyed by path.
func (s *Store) ListAll(ctx context.Context) (map[string]*types.FileRecord, error) {
	query := `
		SELECT path, content_hash, size, modified_at, status, prev_status, last_checked
		FROM file_state
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query file state: %w", err)
	}
	defer func() { _ = rows.Close() }()

	result := make(map[string]*types.FileRecord)
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result[record.Path] = record
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return result, nil
}

// InsertAdded inserts a newly sighted file with status "added".
func (s *Store) InsertAdded(ctx context.Context, path, contentHash string, size int64, modifiedAt time.Time) error {
	insertSQL := `
		INSERT INTO file_state (path, content_hash, size, modified_at, status, prev_status, last_checked)
		VALUES (?, ?, ?, ?, ?, '', ?)
		ON CONFLICT(path) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, insertSQL,
		path, contentHash, size,
		modifiedAt.UTC().Format(timeLayout),
		types.StatusAdded,
		now(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert file state: %w", err)
	}
	return nil
}

// MarkUpdated flips a row to "updated" with the new hash. The scanner never
// touches claimed rows, so the update is conditional on the current status.
func (s *Store) MarkUpdated(ctx context.Context, path, contentHash string, size int64, modifiedAt time.Time) error {
	updateSQL := `
		UPDATE file_state
		SET content_hash = ?, size = ?, modified_at = ?, status = ?, last_checked = ?
		WHERE path = ? AND status != ?
	`
	_, err := s.db.ExecContext(ctx, updateSQL,
		contentHash, size,
		modifiedAt.UTC().Format(timeLayout),
		types.StatusUpdated, now(),
		path, types.StatusClaimed,
	)
	if err != nil {
		return fmt.Errorf("failed to mark file updated: %w", err)
	}
	return nil
}

// MarkDeleted flips a row to "deleted". Claimed rows are left alone; the
// next scan after the claim resolves will classify the path again.
func (s *Store) MarkDeleted(ctx context.Context, path string) error {
	updateSQL := `
		UPDATE file_state
		SET status = ?, last_checked = ?
		WHERE path = ? AND status NOT IN (?, ?)
	`
	_, err := s.db.ExecContext(ctx, updateSQL,
		types.StatusDeleted, now(),
		path, types.StatusClaimed, types.StatusDeleted,
	)
	if err != nil {
		return fmt.Errorf("failed to mark file deleted: %w", err)
	}
	return nil
}

// MovePath updates the path of a record in place. A known hash appearing
// under a new name is a rename, not new content, so no reprocessing is
// triggered.
func (s *Store) MovePath(ctx context.Context, oldPath, newPath string) error {
	updateSQL := `
		UPDATE file_state
		SET path = ?, last_checked = ?
		WHERE path = ? AND status != ?
	`
	_, err := s.db.ExecContext(ctx, updateSQL, newPath, now(), oldPath, types.StatusClaimed)
	if err != nil {
		return fmt.Errorf("failed to move file state path: %w", err)
	}
	return nil
}

// Touch refreshes last_checked for an unchanged row.
func (s *Store) Touch(ctx context.Context, path string) error {
	updateSQL := `
		UPDATE file_state
		SET last_checked = ?
		WHERE path = ? AND status != ?
	`
	_, err := s.db.ExecContext(ctx, updateSQL, now(), path, types.StatusClaimed)
	if err != nil {
		return fmt.Errorf("failed to touch file state: %w", err)
	}
	return nil
}

// ClaimNext atomically selects the highest-priority eligible row and flips
// it to "claimed" in a single statement. Success implies exclusive
// ownership of the file: no other caller, in this process or another, can
// claim the same row. Selection order is deleted > updated > added, oldest
// last_checked first within a tier. The consumed status is preserved in
// prev_status so the orchestrator knows the change type and the orphan
// reclaimer knows where to return the row.
func (s *Store) ClaimNext(ctx context.Context) (*types.FileRecord, bool, error) {
	claimSQL := `
		UPDATE file_state
		SET status = ?, prev_status = status, last_checked = ?
		WHERE path = (
			SELECT path FROM file_state
			WHERE status IN (?, ?, ?)
			ORDER BY CASE status WHEN ? THEN 0 WHEN ? THEN 1 ELSE 2 END,
				last_checked ASC
			LIMIT 1
		)
		AND status IN (?, ?, ?)
		RETURNING path, content_hash, size, modified_at, status, prev_status, last_checked
	`
	row := s.db.QueryRowContext(ctx, claimSQL,
		types.StatusClaimed, now(),
		types.StatusDeleted, types.StatusUpdated, types.StatusAdded,
		types.StatusDeleted, types.StatusUpdated,
		types.StatusDeleted, types.StatusUpdated, types.StatusAdded,
	)

	record, err := scanRecord(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to claim next file: %w", err)
	}
	return record, true, nil
}

// Resolve transitions a claimed row to a terminal status (ok or error).
// The update is conditional on the row still being claimed, so a
// concurrent reclaim cannot be overwritten silently.
func (s *Store) Resolve(ctx context.Context, path string, status types.Status) error {
	if status != types.StatusOK && status != types.StatusError {
		return fmt.Errorf("invalid terminal status: %s", status)
	}

	updateSQL := `
		UPDATE file_state
		SET status = ?, last_checked = ?
		WHERE path = ? AND status = ?
	`
	result, err := s.db.ExecContext(ctx, updateSQL, status, now(), path, types.StatusClaimed)
	if err != nil {
		return fmt.Errorf("failed to resolve file state: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to resolve file state: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("file %s is no longer claimed", path)
	}
	return nil
}

// Remove deletes a claimed row, used after processing a deletion.
func (s *Store) Remove(ctx context.Context, path string) error {
	deleteSQL := `DELETE FROM file_state WHERE path = ? AND status = ?`
	_, err := s.db.ExecContext(ctx, deleteSQL, path, types.StatusClaimed)
	if err != nil {
		return fmt.Errorf("failed to remove file state: %w", err)
	}
	return nil
}

// ReclaimOrphans returns every row stuck in "claimed" to the eligible
// status it was claimed from, so interrupted work re-enters the queue.
// This is the crash-recovery mechanism: a worker that died mid-pipeline
// cannot release its own claim. Rows are never reset to "ok" — the work
// may be incomplete.
func (s *Store) ReclaimOrphans(ctx context.Context) (int64, error) {
	reclaimSQL := `
		UPDATE file_state
		SET status = CASE
			WHEN prev_status IN (?, ?, ?) THEN prev_status
			ELSE ?
		END,
		last_checked = ?
		WHERE status = ?
	`
	result, err := s.db.ExecContext(ctx, reclaimSQL,
		types.StatusAdded, types.StatusUpdated, types.StatusDeleted,
		types.StatusUpdated,
		now(),
		types.StatusClaimed,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to reclaim orphans: %w", err)
	}
	return result.RowsAffected()
}

// ResetErrors returns files stuck in "error" to the queue. This is the
// operator surface for re-trying failures without editing file content.
func (s *Store) ResetErrors(ctx context.Context) (int64, error) {
	resetSQL := `
		UPDATE file_state
		SET status = ?, last_checked = ?
		WHERE status = ?
	`
	result, err := s.db.ExecContext(ctx, resetSQL, types.StatusUpdated, now(), types.StatusError)
	if err != nil {
		return 0, fmt.Errorf("failed to reset error files: %w", err)
	}
	return result.RowsAffected()
}

// CountByStatus returns queue depth per status.
func (s *Store) CountByStatus(ctx context.Context) (map[types.Status]int64, error) {
	query := `SELECT status, COUNT(*) FROM file_state GROUP BY status`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count by status: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[types.Status]int64)
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[types.Status(status)] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating counts: %w", err)
	}

	return counts, nil
}

// ListByStatus retrieves records in a given status, oldest first. Used by
// the status command so an operator can inspect failures without logs.
func (s *Store) ListByStatus(ctx context.Context, status types.Status) ([]*types.FileRecord, error) {
	query := `
		SELECT path, content_hash, size, modified_at, status, prev_status, last_checked
		FROM file_state
		WHERE status = ?
		ORDER BY last_checked ASC
	`
	rows, err := s.db.QueryContext(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list by status: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*types.FileRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return result, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func now() string {
	return time.Now().UTC().Format(timeLayout)
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*types.FileRecord, error) {
	var record types.FileRecord
	var status, prevStatus string
	var modifiedAt, lastChecked string

	err := row.Scan(
		&record.Path,
		&record.ContentHash,
		&record.Size,
		&modifiedAt,
		&status,
		&prevStatus,
		&lastChecked,
	)
	if err != nil {
		return nil, err
	}

	record.Status = types.Status(status)
	record.PrevStatus = types.Status(prevStatus)

	record.ModifiedAt, err = time.Parse(timeLayout, modifiedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse modified_at: %w", err)
	}
	record.LastChecked, err = time.Parse(timeLayout, lastChecked)
	if err != nil {
		return nil, fmt.Errorf("failed to parse last_checked: %w", err)
	}

	return &record, nil
}
