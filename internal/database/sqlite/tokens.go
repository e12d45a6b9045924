package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dimitrije/passkeep/internal/services"
	"github.com/google/uuid"
)

type TokenRepo struct {
	db *DB
}

func NewTokenRepo(db *DB) *TokenRepo {
	return &TokenRepo{db: db}
}

func (r *TokenRepo) StoreRefreshToken(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error {
	_, err := r.db.Writer.ExecContext(ctx, `
		INSERT INTO refresh_tokens (user_id, token_hash, expires_at, created_at) VALUES (?, ?, ?, ?)
	`, userID, tokenHash, formatTime(expiresAt), formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("store refresh token: %w", err)
	}
	return nil
}

func (r *TokenRepo) ValidateRefreshToken(ctx context.Context, tokenHash string) (uuid.UUID, error) {
	var userID uuid.UUID
	err := r.db.Reader.QueryRowContext(ctx, `
		SELECT user_id FROM refresh_tokens WHERE token_hash = ? AND expires_at > ?
	`, tokenHash, formatTime(time.Now())).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, services.ErrRefreshTokenNotFound
	}
	return userID, err
}

// RotateRefreshToken swaps oldHash for newHash in one transaction. A token
// that was already used or revoked yields services.ErrRefreshTokenNotFound.
func (r *TokenRepo) RotateRefreshToken(ctx context.Context, userID uuid.UUID, oldHash, newHash string, expiresAt time.Time) error {
	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := formatTime(time.Now())
	result, err := tx.ExecContext(ctx, `
		DELETE FROM refresh_tokens WHERE token_hash = ? AND user_id = ? AND expires_at > ?
	`, oldHash, userID, now)
	if err != nil {
		return fmt.Errorf("delete old refresh token: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete old refresh token: rows affected: %w", err)
	}
	if rows == 0 {
		return services.ErrRefreshTokenNotFound
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO refresh_tokens (user_id, token_hash, expires_at, created_at) VALUES (?, ?, ?, ?)
	`, userID, newHash, formatTime(expiresAt), now); err != nil {
		return fmt.Errorf("store new refresh token: %w", err)
	}

	return tx.Commit()
}

func (r *TokenRepo) RevokeRefreshToken(ctx context.Context, tokenHash string) error {
	_, err := r.db.Writer.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE token_hash = ?`, tokenHash)
	return err
}

func (r *TokenRepo) RevokeAllUserTokens(ctx context.Context, userID uuid.UUID) error {
	_, err := r.db.Writer.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE user_id = ?`, userID)
	return err
}

func (r *TokenRepo) CleanupExpired(ctx context.Context) (int64, error) {
	result, err := r.db.Writer.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE expires_at < ?`, formatTime(time.Now()))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
