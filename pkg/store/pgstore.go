package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
)

// PGStore implements VersionStore against PostgreSQL. Write-once
// semantics come from a unique constraint on (entity_kind, entity_id,
// version); Create detects the conflict via RowsAffected rather than by
// inspecting the driver error, so it works the same against any
// database/sql driver that honors ON CONFLICT DO NOTHING.
type PGStore struct {
	db *sql.DB
}

// NewPGStore wraps an already-opened *sql.DB. The caller owns its
// lifecycle.
func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

const pgSchema = `
CREATE TABLE IF NOT EXISTS entity_versions (
	entity_kind TEXT NOT NULL,
	entity_id TEXT NOT NULL,
	version INTEGER NOT NULL,
	state TEXT NOT NULL,
	payload BYTEA NOT NULL,
	PRIMARY KEY (entity_kind, entity_id, version)
);
`

// Init creates the backing table if it does not already exist.
func (s *PGStore) Init(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, pgSchema)
	return err
}

func (s *PGStore) Create(ctx context.Context, r Record) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO entity_versions (entity_kind, entity_id, version, state, payload)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (entity_kind, entity_id, version) DO NOTHING
	`, r.EntityKind, r.EntityID, r.Version, r.State, r.Payload)
	if err != nil {
		return fmt.Errorf("store: insert version: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: rows affected: %w", err)
	}
	if n == 0 {
		return ErrVersionConflict
	}
	return nil
}

func (s *PGStore) Update(ctx context.Context, r Record) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE entity_versions SET state = $4, payload = $5
		WHERE entity_kind = $1 AND entity_id = $2 AND version = $3
	`, r.EntityKind, r.EntityID, r.Version, r.State, r.Payload)
	if err != nil {
		return fmt.Errorf("store: update version: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) Load(ctx context.Context, entityKind, entityID string, version int) (Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT entity_kind, entity_id, version, state, payload
		FROM entity_versions WHERE entity_kind = $1 AND entity_id = $2 AND version = $3
	`, entityKind, entityID, version)
	return scanRecord(row)
}

func (s *PGStore) LatestVersion(ctx context.Context, entityKind, entityID string) (Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT entity_kind, entity_id, version, state, payload
		FROM entity_versions WHERE entity_kind = $1 AND entity_id = $2
		ORDER BY version DESC LIMIT 1
	`, entityKind, entityID)
	return scanRecord(row)
}

func (s *PGStore) ListVersions(ctx context.Context, entityKind, entityID string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entity_kind, entity_id, version, state, payload
		FROM entity_versions WHERE entity_kind = $1 AND entity_id = $2
		ORDER BY version ASC
	`, entityKind, entityID)
	if err != nil {
		return nil, fmt.Errorf("store: list versions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.EntityKind, &r.EntityID, &r.Version, &r.State, &r.Payload); err != nil {
			return nil, fmt.Errorf("store: scan version row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var r Record
	err := row.Scan(&r.EntityKind, &r.EntityID, &r.Version, &r.State, &r.Payload)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("store: scan version: %w", err)
	}
	return r, nil
}
