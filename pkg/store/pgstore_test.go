package store

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPGStore_Put_ConflictOnDuplicateVersion(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewPGStore(db)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO entity_versions")).
		WithArgs("plan", "plan-1", 1, "draft", []byte("{}")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = s.Create(ctx, Record{EntityKind: "plan", EntityID: "plan-1", Version: 1, State: "draft", Payload: []byte("{}")})
	assert.ErrorIs(t, err, ErrVersionConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGStore_Put_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewPGStore(db)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO entity_versions")).
		WithArgs("plan", "plan-1", 1, "draft", []byte("{}")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = s.Create(ctx, Record{EntityKind: "plan", EntityID: "plan-1", Version: 1, State: "draft", Payload: []byte("{}")})
	assert.NoError(t, err)
}

func TestPGStore_Update_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewPGStore(db)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE entity_versions")).
		WithArgs("plan", "plan-1", 1, "submitted", []byte("{}")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = s.Update(ctx, Record{EntityKind: "plan", EntityID: "plan-1", Version: 1, State: "submitted", Payload: []byte("{}")})
	assert.NoError(t, err)
}

func TestPGStore_Update_MissingRowNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewPGStore(db)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE entity_versions")).
		WithArgs("plan", "plan-1", 1, "submitted", []byte("{}")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = s.Update(ctx, Record{EntityKind: "plan", EntityID: "plan-1", Version: 1, State: "submitted", Payload: []byte("{}")})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPGStore_Latest_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewPGStore(db)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT entity_kind, entity_id, version, state, payload")).
		WithArgs("plan", "missing").
		WillReturnRows(sqlmock.NewRows([]string{"entity_kind", "entity_id", "version", "state", "payload"}))

	_, err = s.LatestVersion(ctx, "plan", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPGStore_Get_ReturnsRecord(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewPGStore(db)
	ctx := context.Background()

	rows := sqlmock.NewRows([]string{"entity_kind", "entity_id", "version", "state", "payload"}).
		AddRow("plan", "plan-1", 2, "approved", []byte(`{"version":2}`))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT entity_kind, entity_id, version, state, payload")).
		WithArgs("plan", "plan-1", 2).
		WillReturnRows(rows)

	r, err := s.Load(ctx, "plan", "plan-1", 2)
	require.NoError(t, err)
	assert.Equal(t, "approved", r.State)
	assert.Equal(t, 2, r.Version)
}
