package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/dimitrije/passkeep/internal/models"
	"github.com/dimitrije/passkeep/internal/oauth"
	"github.com/dimitrije/passkeep/internal/services"
	"github.com/dimitrije/passkeep/internal/sse"
	"github.com/google/uuid"
)

// UserServiceInterface defines the methods used by handlers from UserService
type UserServiceInterface interface {
	FindOrCreateFromOAuth(ctx context.Context, info *oauth.UserInfo) (*models.User, error)
	Register(ctx context.Context, email, name, password string) (*models.User, error)
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	Update(ctx context.Context, id uuid.UUID, name string) (*models.User, error)
}

// TokenServiceInterface defines the methods used by handlers from TokenService
type TokenServiceInterface interface {
	StoreRefreshToken(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error
	RotateRefreshToken(ctx context.Context, userID uuid.UUID, oldHash, newHash string, expiresAt time.Time) error
	RevokeRefreshToken(ctx context.Context, tokenHash string) error
	RevokeAllUserTokens(ctx context.Context, userID uuid.UUID) error
}

// JWTServiceInterface defines the methods used by handlers from JWTService
type JWTServiceInterface interface {
	GenerateTokenPair(userID uuid.UUID, email string) (*services.TokenPair, error)
	ValidateRefreshToken(token string) (uuid.UUID, error)
	RefreshExpiry() time.Duration
}

// RecordServiceInterface is the owner-scoped record store client.
type RecordServiceInterface interface {
	List(ctx context.Context, ownerID uuid.UUID) ([]models.Record, error)
	Get(ctx context.Context, ownerID, id uuid.UUID) (*models.Record, error)
	Insert(ctx context.Context, ownerID uuid.UUID, fields models.RecordFields) (*models.Record, error)
	Delete(ctx context.Context, ownerID, id uuid.UUID) error
}

// HubInterface defines the methods used by handlers from the SSE hub
type HubInterface interface {
	Register(client *sse.Client)
	Unregister(client *sse.Client)
	BroadcastRecordCreated(ownerID, recordID uuid.UUID, title string, createdAt time.Time)
	BroadcastRecordDeleted(ownerID, recordID uuid.UUID)
}

// SessionInterface starts and ends browser sessions.
type SessionInterface interface {
	Resolve(ctx context.Context, w http.ResponseWriter, req *http.Request) (*models.User, error)
	Start(ctx context.Context, w http.ResponseWriter, user *models.User) (*services.TokenPair, error)
	Issue(ctx context.Context, user *models.User) (*services.TokenPair, error)
	End(ctx context.Context, w http.ResponseWriter, req *http.Request) error
}
