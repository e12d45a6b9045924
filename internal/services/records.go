package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dimitrije/passkeep/internal/database"
	"github.com/dimitrije/passkeep/internal/envelope"
	"github.com/dimitrije/passkeep/internal/models"
	"github.com/dimitrije/passkeep/internal/records"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var ErrRecordNotFound = records.ErrRecordNotFound

const recordColumns = `id, owner_id, title, username, password, url, notes, created_at`

// RecordService is the PostgreSQL record store. Every query is scoped to the owner.
type RecordService struct {
	db     *database.DB
	sealer envelope.Sealer
}

func NewRecordService(db *database.DB, sealer envelope.Sealer) *RecordService {
	if sealer == nil {
		sealer = envelope.Plain{}
	}
	return &RecordService{db: db, sealer: sealer}
}

func (s *RecordService) List(ctx context.Context, ownerID uuid.UUID) ([]models.Record, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT `+recordColumns+`
		FROM password_records
		WHERE owner_id = $1
		ORDER BY created_at DESC
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Record{}
	for rows.Next() {
		rec, err := s.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func (s *RecordService) Get(ctx context.Context, ownerID, id uuid.UUID) (*models.Record, error) {
	rec, err := s.scan(s.db.Pool.QueryRow(ctx, `
		SELECT `+recordColumns+`
		FROM password_records
		WHERE id = $1 AND owner_id = $2
	`, id, ownerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	return rec, err
}

func (s *RecordService) Insert(ctx context.Context, ownerID uuid.UUID, fields models.RecordFields) (*models.Record, error) {
	password, notes, err := SealFields(s.sealer, fields)
	if err != nil {
		return nil, err
	}

	rec, err := s.scan(s.db.Pool.QueryRow(ctx, `
		INSERT INTO password_records (owner_id, title, username, password, url, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+recordColumns,
		ownerID, fields.Title, fields.Username, password, nullableString(fields.URL), notes))
	if err != nil {
		return nil, fmt.Errorf("failed to insert record: %w", err)
	}
	return rec, nil
}

func (s *RecordService) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	result, err := s.db.Pool.Exec(ctx, `
		DELETE FROM password_records WHERE id = $1 AND owner_id = $2
	`, id, ownerID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *RecordService) scan(row pgx.Row) (*models.Record, error) {
	var rec models.Record
	if err := row.Scan(
		&rec.ID, &rec.OwnerID, &rec.Title, &rec.Username, &rec.Password,
		&rec.URL, &rec.Notes, &rec.CreatedAt,
	); err != nil {
		return nil, err
	}
	if err := OpenFields(s.sealer, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// SealFields returns the stored forms of password and notes; empty notes stay
// NULL. Both store backends use it.
func SealFields(sealer envelope.Sealer, fields models.RecordFields) (string, *string, error) {
	password, err := sealer.Seal(fields.Password)
	if err != nil {
		return "", nil, fmt.Errorf("failed to seal password: %w", err)
	}
	if fields.Notes == "" {
		return password, nil, nil
	}
	notes, err := sealer.Seal(fields.Notes)
	if err != nil {
		return "", nil, fmt.Errorf("failed to seal notes: %w", err)
	}
	return password, &notes, nil
}

func OpenFields(sealer envelope.Sealer, rec *models.Record) error {
	password, err := sealer.Open(rec.Password)
	if err != nil {
		return fmt.Errorf("failed to open password of record %s: %w", rec.ID, err)
	}
	rec.Password = password

	if rec.Notes != nil {
		notes, err := sealer.Open(*rec.Notes)
		if err != nil {
			return fmt.Errorf("failed to open notes of record %s: %w", rec.ID, err)
		}
		rec.Notes = &notes
	}
	return nil
}
