package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/dimitrije/passkeep/internal/logger"
	"github.com/dimitrije/passkeep/internal/models"
	"github.com/dimitrije/passkeep/internal/session"
	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
	"go.uber.org/zap"
)

const (
	UserIDKey    = "user_id"
	UserEmailKey = "user_email"
	UserKey      = "user"
)

type SessionResolver interface {
	Resolve(ctx context.Context, w http.ResponseWriter, req *http.Request) (*models.User, error)
}

// Auth guards the JSON API. A bearer token is preferred; browsers calling the
// API fall back to the session cookie.
func Auth(resolver SessionResolver) drift.HandlerFunc {
	return func(c *drift.Context) {
		user, err := resolver.Resolve(c.Request.Context(), c.Response, c.Request)
		if errors.Is(err, session.ErrUnauthenticated) {
			c.Unauthorized("invalid or expired session")
			return
		}
		if err != nil {
			logger.Log.Error("failed to resolve session", zap.Error(err))
			c.InternalServerError("failed to resolve session")
			return
		}

		setUser(c, user)
		c.Next()
	}
}

// RequireSession guards HTML pages: without a session the browser is sent to
// /login before any handler reads record data.
func RequireSession(resolver SessionResolver) drift.HandlerFunc {
	return func(c *drift.Context) {
		user, err := resolver.Resolve(c.Request.Context(), c.Response, c.Request)
		if errors.Is(err, session.ErrUnauthenticated) {
			Redirect(c, "/login", http.StatusFound)
			return
		}
		if err != nil {
			logger.Log.Error("failed to resolve session", zap.Error(err))
			c.InternalServerError("failed to resolve session")
			return
		}

		setUser(c, user)
		c.Next()
	}
}

// Redirect writes a redirect response and stops the handler chain.
func Redirect(c *drift.Context, location string, code int) {
	http.Redirect(c.Response, c.Request, location, code)
	c.Abort()
}

func setUser(c *drift.Context, user *models.User) {
	c.Set(UserKey, user)
	c.Set(UserIDKey, user.ID)
	c.Set(UserEmailKey, user.Email)
}

func GetUser(c *drift.Context) *models.User {
	if v, ok := c.Get(UserKey); ok {
		if user, ok := v.(*models.User); ok {
			return user
		}
	}
	return nil
}

func GetUserID(c *drift.Context) uuid.UUID {
	if id, ok := c.Get(UserIDKey); ok {
		if uid, ok := id.(uuid.UUID); ok {
			return uid
		}
	}
	return uuid.Nil
}

func GetUserEmail(c *drift.Context) string {
	if email, ok := c.Get(UserEmailKey); ok {
		if e, ok := email.(string); ok {
			return e
		}
	}
	return ""
}
