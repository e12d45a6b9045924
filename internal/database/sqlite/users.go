package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dimitrije/passkeep/internal/models"
	"github.com/dimitrije/passkeep/internal/oauth"
	"github.com/dimitrije/passkeep/internal/services"
	"github.com/google/uuid"
)

const userColumns = `id, email, name, avatar_url, provider, provider_id, password_hash, created_at, updated_at`

type UserRepo struct {
	db *DB
}

func NewUserRepo(db *DB) *UserRepo {
	return &UserRepo{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		user               models.User
		createdAt, updated string
	)
	err := row.Scan(
		&user.ID, &user.Email, &user.Name, &user.AvatarURL,
		&user.Provider, &user.ProviderID, &user.PasswordHash, &createdAt, &updated,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	if user.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if user.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &user, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint")
}

func (r *UserRepo) FindOrCreateFromOAuth(ctx context.Context, info *oauth.UserInfo) (*models.User, error) {
	user, err := scanUser(r.db.Reader.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users WHERE provider = ? AND provider_id = ?
	`, info.Provider, info.ID))

	if err == nil {
		if user.Email != info.Email || user.Name != info.Name || (user.AvatarURL == nil && info.AvatarURL != "") {
			_, _ = r.db.Writer.ExecContext(ctx, `
				UPDATE users SET email = ?, name = ?, avatar_url = ?, updated_at = ? WHERE id = ?
			`, info.Email, info.Name, nullableString(info.AvatarURL), formatTime(time.Now()), user.ID)
			user.Email = info.Email
			user.Name = info.Name
			if info.AvatarURL != "" {
				user.AvatarURL = &info.AvatarURL
			}
		}
		return user, nil
	}
	if !errors.Is(err, services.ErrUserNotFound) {
		return nil, fmt.Errorf("look up user: %w", err)
	}

	return r.insert(ctx, info.Email, info.Name, nullableString(info.AvatarURL), info.Provider, info.ID, nil)
}

func (r *UserRepo) Register(ctx context.Context, email, name, password string) (*models.User, error) {
	email = services.NormalizeEmail(email)
	if err := services.ValidateSignup(email, password); err != nil {
		return nil, err
	}
	if name == "" {
		name = email
	}

	hash, err := services.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return r.insert(ctx, email, name, nil, models.ProviderPassword, email, &hash)
}

func (r *UserRepo) insert(ctx context.Context, email, name string, avatarURL *string, provider, providerID string, passwordHash *string) (*models.User, error) {
	now := formatTime(time.Now())
	user, err := scanUser(r.db.Writer.QueryRowContext(ctx, `
		INSERT INTO users (id, email, name, avatar_url, provider, provider_id, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING `+userColumns,
		uuid.New(), email, name, avatarURL, provider, providerID, passwordHash, now, now))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, services.ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Authenticate checks an email/password pair. Unknown emails and accounts
// without a password both yield services.ErrInvalidCredentials.
func (r *UserRepo) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := r.GetByEmail(ctx, services.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			services.CheckPassword(nil, password)
			return nil, services.ErrInvalidCredentials
		}
		return nil, err
	}
	if !services.CheckPassword(user.PasswordHash, password) {
		return nil, services.ErrInvalidCredentials
	}
	return user, nil
}

func (r *UserRepo) SetPassword(ctx context.Context, id uuid.UUID, password string) error {
	if len(password) < services.MinPasswordLength {
		return services.ErrWeakPassword
	}
	hash, err := services.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	result, err := r.db.Writer.ExecContext(ctx, `
		UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?
	`, hash, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("set password: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set password: rows affected: %w", err)
	}
	if rows == 0 {
		return services.ErrUserNotFound
	}
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return scanUser(r.db.Reader.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(r.db.Reader.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email))
}

func (r *UserRepo) Update(ctx context.Context, id uuid.UUID, name string) (*models.User, error) {
	return scanUser(r.db.Writer.QueryRowContext(ctx, `
		UPDATE users SET name = ?, updated_at = ? WHERE id = ?
		RETURNING `+userColumns,
		name, formatTime(time.Now()), id))
}
