package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/dimitrije/passkeep/internal/database"
	"github.com/dimitrije/passkeep/internal/models"
	"github.com/dimitrije/passkeep/internal/oauth"
	"github.com/google/uuid"
)

// Fixtures provides factory methods for creating test data
type Fixtures struct {
	db      *database.DB
	counter int
}

// NewFixtures creates a new fixtures factory
func NewFixtures(db *database.DB) *Fixtures {
	return &Fixtures{db: db}
}

// CreateUser creates a test user with default values
func (f *Fixtures) CreateUser(t *testing.T, opts ...UserOption) *models.User {
	t.Helper()
	f.counter++

	user := &models.User{
		Email:      fmt.Sprintf("user%d@example.com", f.counter),
		Name:       fmt.Sprintf("Test User %d", f.counter),
		Provider:   "github",
		ProviderID: fmt.Sprintf("provider-%d", f.counter),
	}

	for _, opt := range opts {
		opt(user)
	}

	ctx := context.Background()
	err := f.db.Pool.QueryRow(ctx, `
		INSERT INTO users (email, name, avatar_url, provider, provider_id, password_hash)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`, user.Email, user.Name, user.AvatarURL, user.Provider, user.ProviderID, user.PasswordHash).Scan(
		&user.ID, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	return user
}

// UserOption configures a test user
type UserOption func(*models.User)

// WithEmail sets the user's email
func WithEmail(email string) UserOption {
	return func(u *models.User) {
		u.Email = email
	}
}

// WithName sets the user's name
func WithName(name string) UserOption {
	return func(u *models.User) {
		u.Name = name
	}
}

// WithProvider sets the user's OAuth provider
func WithProvider(provider, providerID string) UserOption {
	return func(u *models.User) {
		u.Provider = provider
		u.ProviderID = providerID
	}
}

// WithPasswordHash makes the user a password account
func WithPasswordHash(hash string) UserOption {
	return func(u *models.User) {
		u.Provider = models.ProviderPassword
		u.ProviderID = u.Email
		u.PasswordHash = &hash
	}
}

// CreateRecord inserts a plaintext record owned by owner
func (f *Fixtures) CreateRecord(t *testing.T, owner *models.User, opts ...RecordOption) *models.Record {
	t.Helper()
	f.counter++

	rec := &models.Record{
		OwnerID:  owner.ID,
		Title:    fmt.Sprintf("Record %d", f.counter),
		Username: fmt.Sprintf("login%d", f.counter),
		Password: fmt.Sprintf("secret-%d", f.counter),
	}

	for _, opt := range opts {
		opt(rec)
	}

	ctx := context.Background()
	err := f.db.Pool.QueryRow(ctx, `
		INSERT INTO password_records (owner_id, title, username, password, url, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, rec.OwnerID, rec.Title, rec.Username, rec.Password, rec.URL, rec.Notes).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		t.Fatalf("failed to create record: %v", err)
	}

	return rec
}

// RecordOption configures a test record
type RecordOption func(*models.Record)

// WithTitle sets the record title
func WithTitle(title string) RecordOption {
	return func(r *models.Record) {
		r.Title = title
	}
}

// WithURL sets the record url
func WithURL(url string) RecordOption {
	return func(r *models.Record) {
		r.URL = &url
	}
}

// CreateRefreshToken creates a test refresh token
func (f *Fixtures) CreateRefreshToken(t *testing.T, userID uuid.UUID, tokenHash string, expiresAt time.Time) {
	t.Helper()
	ctx := context.Background()

	_, err := f.db.Pool.Exec(ctx, `
		INSERT INTO refresh_tokens (user_id, token_hash, expires_at)
		VALUES ($1, $2, $3)
	`, userID, tokenHash, expiresAt)
	if err != nil {
		t.Fatalf("failed to create refresh token: %v", err)
	}
}

// OAuthUserInfo creates test OAuth user info
func OAuthUserInfo(email, name, provider, id string) *oauth.UserInfo {
	return &oauth.UserInfo{
		Email:     email,
		Name:      name,
		AvatarURL: "https://example.com/avatar.png",
		ID:        id,
		Provider:  provider,
	}
}
