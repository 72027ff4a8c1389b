package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	_ "modernc.org/sqlite"

	"github.com/gilchrisn/graph-bundling-service/backend/models"
)

// ErrNotFound is returned when a dataset ID is unknown
var ErrNotFound = errors.New("storage: dataset not found")

// Store persists datasets in SQLite
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at path. ":memory:" gives a private
// in-memory database.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS datasets (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		kind TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'ready',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		metadata JSON NOT NULL,
		payload JSON NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_datasets_created ON datasets(created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Put inserts or replaces a dataset
func (s *Store) Put(ctx context.Context, d *models.Dataset) error {
	metadata, err := sonic.Marshal(d.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	payload, err := sonic.Marshal(d.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO datasets (id, name, kind, status, created_at, updated_at, metadata, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			kind = excluded.kind,
			status = excluded.status,
			updated_at = excluded.updated_at,
			metadata = excluded.metadata,
			payload = excluded.payload
	`, d.ID, d.Name, string(d.Kind), string(d.Status),
		d.CreatedAt.UTC().Format(time.RFC3339Nano), d.UpdatedAt.UTC().Format(time.RFC3339Nano),
		string(metadata), string(payload))
	if err != nil {
		return fmt.Errorf("failed to save dataset: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDataset(row scanner, withPayload bool) (*models.Dataset, error) {
	var (
		d                    models.Dataset
		kind, status         string
		created, updated     string
		metadata, payloadRaw string
	)
	dest := []any{&d.ID, &d.Name, &kind, &status, &created, &updated, &metadata}
	if withPayload {
		dest = append(dest, &payloadRaw)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	d.Kind = models.DatasetKind(kind)
	d.Status = models.DatasetStatus(status)

	var err error
	if d.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return nil, fmt.Errorf("invalid created_at for %s: %w", d.ID, err)
	}
	if d.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated); err != nil {
		return nil, fmt.Errorf("invalid updated_at for %s: %w", d.ID, err)
	}
	if err := sonic.UnmarshalString(metadata, &d.Metadata); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata for %s: %w", d.ID, err)
	}
	if withPayload {
		if err := sonic.UnmarshalString(payloadRaw, &d.Payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal payload for %s: %w", d.ID, err)
		}
	}
	return &d, nil
}

// Get loads a dataset including its payload
func (s *Store) Get(ctx context.Context, id string) (*models.Dataset, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, kind, status, created_at, updated_at, metadata, payload
		FROM datasets WHERE id = ?
	`, id)
	d, err := scanDataset(row, true)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("dataset %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset: %w", err)
	}
	return d, nil
}

// List returns all datasets, oldest first, without payloads
func (s *Store) List(ctx context.Context) ([]*models.Dataset, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, kind, status, created_at, updated_at, metadata
		FROM datasets ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query datasets: %w", err)
	}
	defer rows.Close()

	datasets := make([]*models.Dataset, 0)
	for rows.Next() {
		d, err := scanDataset(rows, false)
		if err != nil {
			return nil, fmt.Errorf("failed to scan dataset: %w", err)
		}
		datasets = append(datasets, d)
	}
	return datasets, rows.Err()
}

// Delete removes a dataset
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM datasets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete dataset: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete dataset: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("dataset %s: %w", id, ErrNotFound)
	}
	return nil
}
