package valuestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Repository defines the interface for value persistence operations.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// Get retrieves a value by key.
	// Returns ErrNotFound if no value is persisted for the key.
	Get(ctx context.Context, key Key) (*Record, error)

	// List retrieves all persisted values.
	List(ctx context.Context) ([]Record, error)

	// Upsert inserts or overwrites a value (last-write-wins).
	Upsert(ctx context.Context, record *Record) error

	// Delete removes a value by key. Deleting an absent key is a no-op.
	Delete(ctx context.Context, key Key) error

	// GetMetadata retrieves metadata for a key.
	// Returns ErrNotFound if no metadata is persisted for the key.
	GetMetadata(ctx context.Context, key Key) (*Metadata, error)

	// ListMetadata retrieves all persisted metadata keyed by value key.
	ListMetadata(ctx context.Context) (map[Key]Metadata, error)

	// UpsertMetadata inserts or overwrites metadata for a key.
	UpsertMetadata(ctx context.Context, key Key, meta *Metadata) error

	// DeleteMetadata removes metadata for a key. Absent keys are a no-op.
	DeleteMetadata(ctx context.Context, key Key) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection with the
// endpoint_values and endpoint_value_metadata tables migrated.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Get retrieves a value by key.
func (r *SQLiteRepository) Get(ctx context.Context, key Key) (*Record, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	query := `
		SELECT endpoint, property, user_id, value, updated_at
		FROM endpoint_values
		WHERE endpoint = ? AND property = ? AND user_id = ?`

	row := r.db.QueryRowContext(ctx, query, key.Endpoint, key.Property, key.UserID)
	record, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying value: %w", err)
	}
	return record, nil
}

// List retrieves all persisted values.
func (r *SQLiteRepository) List(ctx context.Context) ([]Record, error) {
	query := `
		SELECT endpoint, property, user_id, value, updated_at
		FROM endpoint_values
		ORDER BY endpoint, property, user_id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing values: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		record, scanErr := scanRecord(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning value row: %w", scanErr)
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating value rows: %w", err)
	}
	return records, nil
}

// Upsert inserts or overwrites a value.
func (r *SQLiteRepository) Upsert(ctx context.Context, record *Record) error {
	if err := record.Key.Validate(); err != nil {
		return err
	}

	valueJSON, err := json.Marshal(record.Value)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEncodingFailed, err)
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO endpoint_values (endpoint, property, user_id, value, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(endpoint, property, user_id)
		DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

	_, err = r.db.ExecContext(ctx, query,
		record.Key.Endpoint, record.Key.Property, record.Key.UserID,
		string(valueJSON), record.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("upserting value: %w", err)
	}
	return nil
}

// Delete removes a value by key. Deleting an absent key is a no-op.
func (r *SQLiteRepository) Delete(ctx context.Context, key Key) error {
	if err := key.Validate(); err != nil {
		return err
	}

	query := `DELETE FROM endpoint_values WHERE endpoint = ? AND property = ? AND user_id = ?`
	if _, err := r.db.ExecContext(ctx, query, key.Endpoint, key.Property, key.UserID); err != nil {
		return fmt.Errorf("deleting value: %w", err)
	}
	return nil
}

// GetMetadata retrieves metadata for a key.
func (r *SQLiteRepository) GetMetadata(ctx context.Context, key Key) (*Metadata, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	query := `
		SELECT metadata
		FROM endpoint_value_metadata
		WHERE endpoint = ? AND property = ? AND user_id = ?`

	var metaJSON string
	err := r.db.QueryRowContext(ctx, query, key.Endpoint, key.Property, key.UserID).Scan(&metaJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying metadata: %w", err)
	}

	var meta Metadata
	if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
		return nil, fmt.Errorf("unmarshalling metadata: %w", err)
	}
	return &meta, nil
}

// ListMetadata retrieves all persisted metadata keyed by value key.
func (r *SQLiteRepository) ListMetadata(ctx context.Context) (map[Key]Metadata, error) {
	query := `
		SELECT endpoint, property, user_id, metadata
		FROM endpoint_value_metadata`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing metadata: %w", err)
	}
	defer rows.Close()

	result := make(map[Key]Metadata)
	for rows.Next() {
		var key Key
		var metaJSON string
		if scanErr := rows.Scan(&key.Endpoint, &key.Property, &key.UserID, &metaJSON); scanErr != nil {
			return nil, fmt.Errorf("scanning metadata row: %w", scanErr)
		}
		var meta Metadata
		if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
			return nil, fmt.Errorf("unmarshalling metadata: %w", err)
		}
		result[key] = meta
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating metadata rows: %w", err)
	}
	return result, nil
}

// UpsertMetadata inserts or overwrites metadata for a key.
func (r *SQLiteRepository) UpsertMetadata(ctx context.Context, key Key, meta *Metadata) error {
	if err := key.Validate(); err != nil {
		return err
	}

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEncodingFailed, err)
	}

	query := `
		INSERT INTO endpoint_value_metadata (endpoint, property, user_id, metadata)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(endpoint, property, user_id)
		DO UPDATE SET metadata = excluded.metadata`

	_, err = r.db.ExecContext(ctx, query, key.Endpoint, key.Property, key.UserID, string(metaJSON))
	if err != nil {
		return fmt.Errorf("upserting metadata: %w", err)
	}
	return nil
}

// DeleteMetadata removes metadata for a key. Absent keys are a no-op.
func (r *SQLiteRepository) DeleteMetadata(ctx context.Context, key Key) error {
	if err := key.Validate(); err != nil {
		return err
	}

	query := `DELETE FROM endpoint_value_metadata WHERE endpoint = ? AND property = ? AND user_id = ?`
	if _, err := r.db.ExecContext(ctx, query, key.Endpoint, key.Property, key.UserID); err != nil {
		return fmt.Errorf("deleting metadata: %w", err)
	}
	return nil
}

// rowScanner abstracts sql.Row and sql.Rows for shared scan logic.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanRecord scans one endpoint_values row into a Record.
func scanRecord(row rowScanner) (*Record, error) {
	var record Record
	var valueJSON, updatedAt string

	if err := row.Scan(&record.Key.Endpoint, &record.Key.Property, &record.Key.UserID,
		&valueJSON, &updatedAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(valueJSON), &record.Value); err != nil {
		return nil, fmt.Errorf("unmarshalling value: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	record.UpdatedAt = ts

	return &record, nil
}
