package derived

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ca-srg/syncvec/internal/types"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Writer owns the derived_units table. Units are joined to their source
// file only through file_hash, so replacing the units for a hash must
// happen as one transaction: delete everything for the hash, insert the
// new set. Nothing else writes this table.
type Writer struct {
	db *sql.DB
}

// NewWriter creates a Writer on an existing database connection, typically
// shared with the file state store.
func NewWriter(db *sql.DB) (*Writer, error) {
	w := &Writer{db: db}
	if err := w.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate derived_units: %w", err)
	}
	return w, nil
}

// Open creates a Writer with its own database at the given path.
func Open(dbPath string) (*Writer, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	w, err := NewWriter(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return w, nil
}

func (w *Writer) migrate() error {
	createTableSQL := `
		CREATE TABLE IF NOT EXISTS derived_units (
			id TEXT PRIMARY KEY,
			file_hash TEXT NOT NULL,
			path TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			total_chunks INTEGER NOT NULL,
			content TEXT NOT NULL,
			embedding BLOB NOT NULL,
			metadata TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL
		);
	`
	if _, err := w.db.Exec(createTableSQL); err != nil {
		return fmt.Errorf("failed to create derived_units table: %w", err)
	}

	createIndexSQL := `
		CREATE INDEX IF NOT EXISTS idx_derived_units_hash
		ON derived_units(file_hash, chunk_index);
	`
	if _, err := w.db.Exec(createIndexSQL); err != nil {
		return fmt.Errorf("failed to create hash index: %w", err)
	}

	return nil
}

// Replace deletes all existing units for the file hash and inserts the new
// set in one transaction. Running it twice with identical input yields the
// same unit count, not double.
func (w *Writer) Replace(ctx context.Context, fileHash string, units []*types.DerivedUnit) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM derived_units WHERE file_hash = ?`, fileHash); err != nil {
		return fmt.Errorf("failed to delete existing units: %w", err)
	}

	// A content change gives the file a new hash; units stored for the
	// same path under the old hash are stale and must not survive.
	if len(units) > 0 {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM derived_units WHERE path = ? AND file_hash != ?`,
			units[0].Path, fileHash); err != nil {
			return fmt.Errorf("failed to delete stale units: %w", err)
		}
	}

	insertSQL := `
		INSERT INTO derived_units (id, file_hash, path, chunk_index, total_chunks, content, embedding, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for _, unit := range units {
		id := unit.ID
		if id == "" {
			id = uuid.NewString()
		}
		metadata, err := json.Marshal(unit.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal unit metadata: %w", err)
		}
		createdAt := unit.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}
		_, err = tx.ExecContext(ctx, insertSQL,
			id,
			fileHash,
			unit.Path,
			unit.ChunkIndex,
			unit.TotalChunks,
			unit.Content,
			serializeVector(unit.Embedding),
			string(metadata),
			createdAt.UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("failed to insert unit %d for %s: %w", unit.ChunkIndex, unit.Path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit unit replacement: %w", err)
	}

	return nil
}

// DeleteByHash removes every unit for a file hash. Used when the source
// file disappears.
func (w *Writer) DeleteByHash(ctx context.Context, fileHash string) (int64, error) {
	result, err := w.db.ExecContext(ctx, `DELETE FROM derived_units WHERE file_hash = ?`, fileHash)
	if err != nil {
		return 0, fmt.Errorf("failed to delete units: %w", err)
	}
	return result.RowsAffected()
}

// CountByHash returns the number of stored units for a file hash.
func (w *Writer) CountByHash(ctx context.Context, fileHash string) (int64, error) {
	var count int64
	err := w.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM derived_units WHERE file_hash = ?`, fileHash).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count units: %w", err)
	}
	return count, nil
}

// ListByHash retrieves the units for a file hash in chunk order.
func (w *Writer) ListByHash(ctx context.Context, fileHash string) ([]*types.DerivedUnit, error) {
	query := `
		SELECT id, file_hash, path, chunk_index, total_chunks, content, embedding, metadata, created_at
		FROM derived_units
		WHERE file_hash = ?
		ORDER BY chunk_index ASC
	`
	rows, err := w.db.QueryContext(ctx, query, fileHash)
	if err != nil {
		return nil, fmt.Errorf("failed to query units: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanUnits(rows)
}

// List retrieves up to limit units across all files, newest first. Used by
// the vectors command.
func (w *Writer) List(ctx context.Context, limit int) ([]*types.DerivedUnit, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, file_hash, path, chunk_index, total_chunks, content, embedding, metadata, created_at
		FROM derived_units
		ORDER BY created_at DESC, chunk_index ASC
		LIMIT ?
	`
	rows, err := w.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query units: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanUnits(rows)
}

// Close closes the database connection
func (w *Writer) Close() error {
	if w.db != nil {
		return w.db.Close()
	}
	return nil
}

func scanUnits(rows *sql.Rows) ([]*types.DerivedUnit, error) {
	var units []*types.DerivedUnit
	for rows.Next() {
		var unit types.DerivedUnit
		var embedding []byte
		var metadata, createdAt string
		err := rows.Scan(
			&unit.ID,
			&unit.FileHash,
			&unit.Path,
			&unit.ChunkIndex,
			&unit.TotalChunks,
			&unit.Content,
			&embedding,
			&metadata,
			&createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan unit: %w", err)
		}

		unit.Embedding, err = deserializeVector(embedding)
		if err != nil {
			return nil, fmt.Errorf("failed to decode embedding for %s: %w", unit.ID, err)
		}
		if err := json.Unmarshal([]byte(metadata), &unit.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata for %s: %w", unit.ID, err)
		}
		unit.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse created_at for %s: %w", unit.ID, err)
		}

		units = append(units, &unit)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating units: %w", err)
	}

	return units, nil
}
