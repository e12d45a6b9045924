package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dimitrije/passkeep/internal/database"
	"github.com/dimitrije/passkeep/internal/envelope"
	"github.com/dimitrije/passkeep/internal/models"
	"github.com/dimitrije/passkeep/internal/records"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var recordRowColumns = []string{"id", "owner_id", "title", "username", "password", "url", "notes", "created_at"}

func setupRecordService(t *testing.T, sealer envelope.Sealer) (*RecordService, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	db := &database.DB{Pool: mock}
	return NewRecordService(db, sealer), mock
}

func TestRecordService_ImplementsStore(t *testing.T) {
	var _ records.Store = (*RecordService)(nil)
}

func TestRecordService_List_NewestFirst(t *testing.T) {
	svc, mock := setupRecordService(t, nil)
	ownerID := uuid.New()
	t1 := time.Now().Add(-time.Hour)
	t2 := time.Now()
	site := "https://mail.example"
	newer, older := uuid.New(), uuid.New()

	rows := pgxmock.NewRows(recordRowColumns).
		AddRow(newer, ownerID, "Mail", "bob", "p2", &site, nil, t2).
		AddRow(older, ownerID, "Bank", "alice", "p1", nil, nil, t1)

	mock.ExpectQuery(`SELECT .+ FROM password_records WHERE owner_id = \$1 ORDER BY created_at DESC`).
		WithArgs(ownerID).
		WillReturnRows(rows)

	recs, err := svc.List(context.Background(), ownerID)

	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, newer, recs[0].ID)
	assert.Equal(t, older, recs[1].ID)
	assert.Equal(t, site, *recs[0].URL)
	assert.Nil(t, recs[1].URL)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordService_List_Empty(t *testing.T) {
	svc, mock := setupRecordService(t, nil)
	ownerID := uuid.New()

	mock.ExpectQuery(`SELECT .+ FROM password_records`).
		WithArgs(ownerID).
		WillReturnRows(pgxmock.NewRows(recordRowColumns))

	recs, err := svc.List(context.Background(), ownerID)

	require.NoError(t, err)
	assert.NotNil(t, recs)
	assert.Empty(t, recs)
}

func TestRecordService_List_Error(t *testing.T) {
	svc, mock := setupRecordService(t, nil)
	ownerID := uuid.New()

	mock.ExpectQuery(`SELECT .+ FROM password_records`).
		WithArgs(ownerID).
		WillReturnError(errors.New("connection refused"))

	_, err := svc.List(context.Background(), ownerID)

	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordService_Insert(t *testing.T) {
	svc, mock := setupRecordService(t, nil)
	ownerID := uuid.New()
	recordID := uuid.New()
	now := time.Now()

	mock.ExpectQuery(`INSERT INTO password_records`).
		WithArgs(ownerID, "Bank", "alice", "p1", (*string)(nil), (*string)(nil)).
		WillReturnRows(pgxmock.NewRows(recordRowColumns).
			AddRow(recordID, ownerID, "Bank", "alice", "p1", nil, nil, now))

	rec, err := svc.Insert(context.Background(), ownerID, models.RecordFields{
		Title:    "Bank",
		Username: "alice",
		Password: "p1",
	})

	require.NoError(t, err)
	assert.Equal(t, recordID, rec.ID)
	assert.Equal(t, ownerID, rec.OwnerID)
	assert.Equal(t, "Bank", rec.Title)
	assert.Equal(t, "alice", rec.Username)
	assert.Equal(t, "p1", rec.Password)
	assert.False(t, rec.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordService_Insert_SealsSecrets(t *testing.T) {
	sealer, err := envelope.NewAESGCM(strings.Repeat("k", 32))
	require.NoError(t, err)
	svc, mock := setupRecordService(t, sealer)
	ownerID := uuid.New()

	sealedPassword, err := sealer.Seal("p1")
	require.NoError(t, err)
	sealedNotes, err := sealer.Seal("pin 1234")
	require.NoError(t, err)

	mock.ExpectQuery(`INSERT INTO password_records`).
		WithArgs(ownerID, "Bank", "alice", pgxmock.AnyArg(), (*string)(nil), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(recordRowColumns).
			AddRow(uuid.New(), ownerID, "Bank", "alice", sealedPassword, nil, &sealedNotes, time.Now()))

	rec, err := svc.Insert(context.Background(), ownerID, models.RecordFields{
		Title:    "Bank",
		Username: "alice",
		Password: "p1",
		Notes:    "pin 1234",
	})

	require.NoError(t, err)
	assert.Equal(t, "p1", rec.Password)
	require.NotNil(t, rec.Notes)
	assert.Equal(t, "pin 1234", *rec.Notes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordService_Insert_Error(t *testing.T) {
	svc, mock := setupRecordService(t, nil)
	ownerID := uuid.New()

	mock.ExpectQuery(`INSERT INTO password_records`).
		WillReturnError(errors.New("check constraint violated"))

	_, err := svc.Insert(context.Background(), ownerID, models.RecordFields{Title: "Bank", Username: "alice", Password: "p1"})

	assert.Error(t, err)
}

func TestRecordService_Get_NotOwned(t *testing.T) {
	svc, mock := setupRecordService(t, nil)
	ownerID, recordID := uuid.New(), uuid.New()

	mock.ExpectQuery(`SELECT .+ FROM password_records WHERE id = \$1 AND owner_id = \$2`).
		WithArgs(recordID, ownerID).
		WillReturnError(pgx.ErrNoRows)

	_, err := svc.Get(context.Background(), ownerID, recordID)

	assert.ErrorIs(t, err, ErrRecordNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordService_Delete(t *testing.T) {
	svc, mock := setupRecordService(t, nil)
	ownerID, recordID := uuid.New(), uuid.New()

	mock.ExpectExec(`DELETE FROM password_records WHERE id = \$1 AND owner_id = \$2`).
		WithArgs(recordID, ownerID).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	err := svc.Delete(context.Background(), ownerID, recordID)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordService_Delete_ForeignOrMissing(t *testing.T) {
	svc, mock := setupRecordService(t, nil)
	ownerID, recordID := uuid.New(), uuid.New()

	mock.ExpectExec(`DELETE FROM password_records`).
		WithArgs(recordID, ownerID).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := svc.Delete(context.Background(), ownerID, recordID)

	assert.ErrorIs(t, err, ErrRecordNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
