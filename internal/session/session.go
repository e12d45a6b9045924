package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dimitrije/passkeep/internal/logger"
	"github.com/dimitrije/passkeep/internal/models"
	"github.com/dimitrije/passkeep/internal/services"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	AccessCookie  = "pk_session"
	RefreshCookie = "pk_refresh"
)

// ErrUnauthenticated means the request carries no usable session.
var ErrUnauthenticated = errors.New("not authenticated")

type TokenIssuer interface {
	GenerateTokenPair(userID uuid.UUID, email string) (*services.TokenPair, error)
	ValidateAccessToken(token string) (*services.Claims, error)
	ValidateRefreshToken(token string) (uuid.UUID, error)
	RefreshExpiry() time.Duration
}

type RefreshStore interface {
	StoreRefreshToken(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error
	RotateRefreshToken(ctx context.Context, userID uuid.UUID, oldHash, newHash string, expiresAt time.Time) error
	RevokeRefreshToken(ctx context.Context, tokenHash string) error
}

type UserLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Resolver turns a request into the signed-in user. It makes exactly one
// attempt per call: the access token, then at most one refresh-token rotation.
type Resolver struct {
	jwt           TokenIssuer
	tokens        RefreshStore
	users         UserLookup
	secureCookies bool
}

func NewResolver(jwt TokenIssuer, tokens RefreshStore, users UserLookup, secureCookies bool) *Resolver {
	return &Resolver{
		jwt:           jwt,
		tokens:        tokens,
		users:         users,
		secureCookies: secureCookies,
	}
}

// Resolve returns the user for req or an error wrapping ErrUnauthenticated.
// When the access cookie has expired and w is non-nil, a valid refresh cookie
// is rotated and fresh cookies are written to w.
func (r *Resolver) Resolve(ctx context.Context, w http.ResponseWriter, req *http.Request) (*models.User, error) {
	token, fromHeader := accessToken(req)

	if token != "" {
		claims, err := r.jwt.ValidateAccessToken(token)
		if err == nil {
			return r.lookup(ctx, claims.UserID)
		}
		if fromHeader || !errors.Is(err, services.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
		}
	}

	refresh, err := req.Cookie(RefreshCookie)
	if fromHeader || err != nil || refresh.Value == "" || w == nil {
		return nil, ErrUnauthenticated
	}

	return r.rotate(ctx, w, refresh.Value)
}

func (r *Resolver) rotate(ctx context.Context, w http.ResponseWriter, refreshToken string) (*models.User, error) {
	userID, err := r.jwt.ValidateRefreshToken(refreshToken)
	if err != nil {
		r.clearCookies(w)
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	user, err := r.lookup(ctx, userID)
	if err != nil {
		return nil, err
	}

	pair, err := r.jwt.GenerateTokenPair(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to generate tokens: %w", err)
	}

	expiresAt := time.Now().Add(r.jwt.RefreshExpiry())
	err = r.tokens.RotateRefreshToken(ctx, user.ID, services.HashToken(refreshToken), services.HashToken(pair.RefreshToken), expiresAt)
	if errors.Is(err, services.ErrRefreshTokenNotFound) {
		// Another request may have rotated this token first and written
		// fresh cookies, so leave the browser's cookies alone.
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to rotate refresh token: %w", err)
	}

	logger.Log.Debug("session refreshed", zap.String("user_id", user.ID.String()))
	r.setCookies(w, pair)
	return user, nil
}

func (r *Resolver) lookup(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := r.users.GetByID(ctx, userID)
	if errors.Is(err, services.ErrUserNotFound) {
		return nil, fmt.Errorf("%w: user no longer exists", ErrUnauthenticated)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return user, nil
}

// Start issues a token pair for user, records the refresh token and writes
// both session cookies.
func (r *Resolver) Start(ctx context.Context, w http.ResponseWriter, user *models.User) (*services.TokenPair, error) {
	pair, err := r.Issue(ctx, user)
	if err != nil {
		return nil, err
	}
	r.setCookies(w, pair)
	return pair, nil
}

// Issue creates and records a token pair without touching cookies.
func (r *Resolver) Issue(ctx context.Context, user *models.User) (*services.TokenPair, error) {
	pair, err := r.jwt.GenerateTokenPair(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to generate tokens: %w", err)
	}

	expiresAt := time.Now().Add(r.jwt.RefreshExpiry())
	if err := r.tokens.StoreRefreshToken(ctx, user.ID, services.HashToken(pair.RefreshToken), expiresAt); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}
	return pair, nil
}

// End revokes the refresh cookie, if any, and expires both cookies.
func (r *Resolver) End(ctx context.Context, w http.ResponseWriter, req *http.Request) error {
	defer r.clearCookies(w)

	refresh, err := req.Cookie(RefreshCookie)
	if err != nil || refresh.Value == "" {
		return nil
	}
	return r.tokens.RevokeRefreshToken(ctx, services.HashToken(refresh.Value))
}

func (r *Resolver) setCookies(w http.ResponseWriter, pair *services.TokenPair) {
	// The access cookie outlives its token so an expired token still reaches
	// Resolve and triggers a rotation.
	maxAge := int(r.jwt.RefreshExpiry().Seconds())
	http.SetCookie(w, r.cookie(AccessCookie, pair.AccessToken, maxAge))
	http.SetCookie(w, r.cookie(RefreshCookie, pair.RefreshToken, maxAge))
}

func (r *Resolver) clearCookies(w http.ResponseWriter) {
	http.SetCookie(w, r.cookie(AccessCookie, "", -1))
	http.SetCookie(w, r.cookie(RefreshCookie, "", -1))
}

func (r *Resolver) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   r.secureCookies,
		SameSite: http.SameSiteLaxMode,
	}
}

// accessToken prefers an Authorization bearer header over the session cookie.
func accessToken(req *http.Request) (token string, fromHeader bool) {
	if header := req.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1]), true
		}
		return "", true
	}
	if c, err := req.Cookie(AccessCookie); err == nil {
		return c.Value, false
	}
	return "", false
}
