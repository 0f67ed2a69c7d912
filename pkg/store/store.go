// Package store persists plan and profile versions as content-
// addressed rows and tracks each entity's current latest version
// pointer. Per spec.md §4.5/§6, a version's content is write-once:
// Create never overwrites an existing (kind, id, version) row. The one
// exception is Update, reserved for state-machine transitions that are
// documented to leave Version unchanged (plan submit/approve/reject) —
// those rewrite the existing row's state and payload in place rather
// than claiming a new version number.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when an entity or version has no record.
var ErrNotFound = errors.New("store: not found")

// ErrVersionConflict is returned when Create targets a version number
// that already exists for the entity — the compare-and-swap failed.
var ErrVersionConflict = errors.New("store: version conflict")

// Record is one persisted version of an entity (a plan or profile),
// stored as its canonical JSON bytes alongside its state for queries
// that don't need to deserialize the full payload.
type Record struct {
	EntityKind string // "plan" or "profile"
	EntityID   string
	Version    int
	State      string
	Payload    []byte
}

// VersionStore persists immutable entity versions and the pointer to
// each entity's current latest version.
type VersionStore interface {
	// Create writes a new version. It fails with ErrVersionConflict if
	// (EntityKind, EntityID, Version) already exists — "must not yet
	// exist" compare-and-swap semantics, versions are write-once for
	// their content.
	Create(ctx context.Context, r Record) error

	// Update overwrites the state and payload of an already-written
	// version row in place, without changing its version number. It
	// exists for state-machine transitions that mutate a version's
	// state without producing a new version — submit/approve/reject
	// move a plan between draft/submitted/approved without bumping
	// Version, so their second write targets the same (EntityKind,
	// EntityID, Version) Create already used. It fails with
	// ErrNotFound if the row does not exist yet.
	Update(ctx context.Context, r Record) error

	// Load retrieves one specific version.
	Load(ctx context.Context, entityKind, entityID string, version int) (Record, error)

	// LatestVersion retrieves the highest version recorded for the
	// entity.
	LatestVersion(ctx context.Context, entityKind, entityID string) (Record, error)

	// ListVersions returns every version recorded for the entity,
	// ascending by version number.
	ListVersions(ctx context.Context, entityKind, entityID string) ([]Record, error)
}
