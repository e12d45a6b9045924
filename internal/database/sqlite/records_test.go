package sqlite

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/dimitrije/passkeep/internal/envelope"
	"github.com/dimitrije/passkeep/internal/models"
	"github.com/dimitrije/passkeep/internal/records"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ records.Store = (*RecordRepo)(nil)

func makeFields(title string) models.RecordFields {
	return models.RecordFields{
		Title:    title,
		Username: "alice",
		Password: "pw-" + title,
		URL:      "https://" + strings.ToLower(title) + ".example.com",
	}
}

func TestRecordRepo_InsertAndGet(t *testing.T) {
	db := setupTestDB(t)
	owner := createTestUser(t, db, "alice@example.com")
	repo := NewRecordRepo(db, nil)
	ctx := context.Background()

	fields := makeFields("Mail")
	fields.Notes = "recovery codes in the drawer"
	rec, err := repo.Insert(ctx, owner.ID, fields)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, rec.ID)
	assert.Equal(t, owner.ID, rec.OwnerID)
	assert.False(t, rec.CreatedAt.IsZero())

	got, err := repo.Get(ctx, owner.ID, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "Mail", got.Title)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, "pw-Mail", got.Password)
	require.NotNil(t, got.URL)
	assert.Equal(t, "https://mail.example.com", *got.URL)
	require.NotNil(t, got.Notes)
	assert.Equal(t, "recovery codes in the drawer", *got.Notes)
}

func TestRecordRepo_Insert_EmptyOptionalFieldsStayNull(t *testing.T) {
	db := setupTestDB(t)
	owner := createTestUser(t, db, "alice@example.com")
	repo := NewRecordRepo(db, nil)

	rec, err := repo.Insert(context.Background(), owner.ID, models.RecordFields{
		Title: "Bank", Username: "alice", Password: "hunter22",
	})
	require.NoError(t, err)
	assert.Nil(t, rec.URL)
	assert.Nil(t, rec.Notes)
}

func TestRecordRepo_List_NewestFirst(t *testing.T) {
	db := setupTestDB(t)
	owner := createTestUser(t, db, "alice@example.com")
	repo := NewRecordRepo(db, nil)
	ctx := context.Background()

	base := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	for i, title := range []string{"First", "Second", "Third"} {
		at := base.Add(time.Duration(i) * time.Minute)
		repo.now = func() time.Time { return at }
		_, err := repo.Insert(ctx, owner.ID, makeFields(title))
		require.NoError(t, err)
	}

	recs, err := repo.List(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "Third", recs[0].Title)
	assert.Equal(t, "Second", recs[1].Title)
	assert.Equal(t, "First", recs[2].Title)
	assert.Equal(t, base.Add(2*time.Minute), recs[0].CreatedAt)
}

func TestRecordRepo_List_SameInstantNewestInsertFirst(t *testing.T) {
	db := setupTestDB(t)
	owner := createTestUser(t, db, "alice@example.com")
	repo := NewRecordRepo(db, nil)
	ctx := context.Background()

	at := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return at }
	_, err := repo.Insert(ctx, owner.ID, makeFields("Older"))
	require.NoError(t, err)
	_, err = repo.Insert(ctx, owner.ID, makeFields("Newer"))
	require.NoError(t, err)

	recs, err := repo.List(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "Newer", recs[0].Title)
}

func TestRecordRepo_List_EmptyIsNotNil(t *testing.T) {
	db := setupTestDB(t)
	owner := createTestUser(t, db, "alice@example.com")

	recs, err := NewRecordRepo(db, nil).List(context.Background(), owner.ID)
	require.NoError(t, err)
	assert.NotNil(t, recs)
	assert.Empty(t, recs)
}

func TestRecordRepo_OwnerScoping(t *testing.T) {
	db := setupTestDB(t)
	alice := createTestUser(t, db, "alice@example.com")
	bob := createTestUser(t, db, "bob@example.com")
	repo := NewRecordRepo(db, nil)
	ctx := context.Background()

	rec, err := repo.Insert(ctx, alice.ID, makeFields("Mail"))
	require.NoError(t, err)

	bobs, err := repo.List(ctx, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, bobs)

	_, err = repo.Get(ctx, bob.ID, rec.ID)
	assert.ErrorIs(t, err, records.ErrRecordNotFound)

	err = repo.Delete(ctx, bob.ID, rec.ID)
	assert.ErrorIs(t, err, records.ErrRecordNotFound)

	_, err = repo.Get(ctx, alice.ID, rec.ID)
	assert.NoError(t, err, "another owner's delete must not remove the record")
}

func TestRecordRepo_Delete(t *testing.T) {
	db := setupTestDB(t)
	owner := createTestUser(t, db, "alice@example.com")
	repo := NewRecordRepo(db, nil)
	ctx := context.Background()

	rec, err := repo.Insert(ctx, owner.ID, makeFields("Mail"))
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, owner.ID, rec.ID))

	_, err = repo.Get(ctx, owner.ID, rec.ID)
	assert.ErrorIs(t, err, records.ErrRecordNotFound)

	err = repo.Delete(ctx, owner.ID, rec.ID)
	assert.ErrorIs(t, err, records.ErrRecordNotFound)
}

func TestRecordRepo_Insert_UnknownOwnerFails(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRecordRepo(db, nil)

	_, err := repo.Insert(context.Background(), uuid.New(), makeFields("Mail"))
	assert.Error(t, err)
}

func TestRecordRepo_SealsSecretsAtRest(t *testing.T) {
	db := setupTestDB(t)
	owner := createTestUser(t, db, "alice@example.com")
	sealer, err := envelope.NewAESGCM(strings.Repeat("k", envelope.MinMasterKeyLen))
	require.NoError(t, err)
	repo := NewRecordRepo(db, sealer)
	ctx := context.Background()

	fields := makeFields("Mail")
	fields.Notes = "pin 4321"
	rec, err := repo.Insert(ctx, owner.ID, fields)
	require.NoError(t, err)
	assert.Equal(t, "pw-Mail", rec.Password)

	var storedPassword, storedNotes string
	err = db.Reader.QueryRowContext(ctx,
		`SELECT password, notes FROM password_records WHERE id = ?`, rec.ID).
		Scan(&storedPassword, &storedNotes)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(storedPassword, "v1:"))
	assert.NotContains(t, storedPassword, "pw-Mail")
	assert.NotContains(t, storedNotes, "4321")

	got, err := repo.Get(ctx, owner.ID, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "pw-Mail", got.Password)
	assert.Equal(t, "pin 4321", *got.Notes)
}

func TestRecordRepo_DeletingUserCascades(t *testing.T) {
	db := setupTestDB(t)
	owner := createTestUser(t, db, "alice@example.com")
	repo := NewRecordRepo(db, nil)
	ctx := context.Background()

	_, err := repo.Insert(ctx, owner.ID, makeFields("Mail"))
	require.NoError(t, err)

	_, err = db.Writer.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, owner.ID)
	require.NoError(t, err)

	var count int
	require.NoError(t, db.Reader.QueryRowContext(ctx, `SELECT COUNT(*) FROM password_records`).Scan(&count))
	assert.Zero(t, count)
}
