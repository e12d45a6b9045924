package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dimitrije/passkeep/internal/envelope"
	"github.com/dimitrije/passkeep/internal/models"
	"github.com/dimitrije/passkeep/internal/records"
	"github.com/dimitrije/passkeep/internal/services"
	"github.com/google/uuid"
)

const recordColumns = `id, owner_id, title, username, password, url, notes, created_at`

// RecordRepo is the SQLite record store. Every query is scoped to the owner.
type RecordRepo struct {
	db     *DB
	sealer envelope.Sealer
	now    func() time.Time
}

func NewRecordRepo(db *DB, sealer envelope.Sealer) *RecordRepo {
	if sealer == nil {
		sealer = envelope.Plain{}
	}
	return &RecordRepo{db: db, sealer: sealer, now: time.Now}
}

// List returns the owner's records, newest first. Records inserted within the
// same instant keep insertion order reversed via rowid.
func (r *RecordRepo) List(ctx context.Context, ownerID uuid.UUID) ([]models.Record, error) {
	rows, err := r.db.Reader.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM password_records
		WHERE owner_id = ?
		ORDER BY created_at DESC, rowid DESC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	out := []models.Record{}
	for rows.Next() {
		rec, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

func (r *RecordRepo) Get(ctx context.Context, ownerID, id uuid.UUID) (*models.Record, error) {
	rec, err := r.scan(r.db.Reader.QueryRowContext(ctx, `
		SELECT `+recordColumns+` FROM password_records WHERE id = ? AND owner_id = ?
	`, id, ownerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, records.ErrRecordNotFound
	}
	return rec, err
}

func (r *RecordRepo) Insert(ctx context.Context, ownerID uuid.UUID, fields models.RecordFields) (*models.Record, error) {
	password, notes, err := services.SealFields(r.sealer, fields)
	if err != nil {
		return nil, err
	}

	rec, err := r.scan(r.db.Writer.QueryRowContext(ctx, `
		INSERT INTO password_records (id, owner_id, title, username, password, url, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING `+recordColumns,
		uuid.New(), ownerID, fields.Title, fields.Username, password, nullableString(fields.URL), notes, formatTime(r.now())))
	if err != nil {
		return nil, fmt.Errorf("insert record: %w", err)
	}
	return rec, nil
}

func (r *RecordRepo) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	result, err := r.db.Writer.ExecContext(ctx, `
		DELETE FROM password_records WHERE id = ? AND owner_id = ?
	`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete record %s: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete record %s: rows affected: %w", id, err)
	}
	if rows == 0 {
		return records.ErrRecordNotFound
	}
	return nil
}

func (r *RecordRepo) scan(row rowScanner) (*models.Record, error) {
	var (
		rec       models.Record
		createdAt string
	)
	if err := row.Scan(
		&rec.ID, &rec.OwnerID, &rec.Title, &rec.Username, &rec.Password,
		&rec.URL, &rec.Notes, &createdAt,
	); err != nil {
		return nil, err
	}

	var err error
	if rec.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if err := services.OpenFields(r.sealer, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}
