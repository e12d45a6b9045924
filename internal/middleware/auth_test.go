package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dimitrije/passkeep/internal/models"
	"github.com/dimitrije/passkeep/internal/services"
	"github.com/dimitrije/passkeep/internal/session"
	"github.com/dimitrije/passkeep/internal/testutil"
	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func setupAuthTest(t *testing.T) (*testutil.MockUserService, *session.Resolver) {
	t.Helper()
	users := new(testutil.MockUserService)
	tokens := new(testutil.MockTokenService)
	return users, session.NewResolver(testutil.TestJWTService(), tokens, users, false)
}

func protectedApp(mw drift.HandlerFunc, seen *uuid.UUID) http.Handler {
	app := drift.New()
	app.Use(mw)
	app.Get("/protected", func(c *drift.Context) {
		if seen != nil {
			*seen = GetUserID(c)
		}
		_ = c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	return app
}

func TestAuth_MissingCredentials(t *testing.T) {
	_, resolver := setupAuthTest(t)
	app := protectedApp(Auth(resolver), nil)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	rec := httptest.NewRecorder()

	app.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid or expired session")
}

func TestAuth_InvalidAuthorizationFormat(t *testing.T) {
	_, resolver := setupAuthTest(t)
	app := protectedApp(Auth(resolver), nil)

	for _, header := range []string{"Token some-token", "Bearer", "Bearer invalid-token"} {
		t.Run(header, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			req.Header.Set("Authorization", header)
			rec := httptest.NewRecorder()

			app.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestAuth_WrongSecret(t *testing.T) {
	_, resolver := setupAuthTest(t)
	app := protectedApp(Auth(resolver), nil)

	other := services.NewJWTService("secret-2", 15*time.Minute, 24*time.Hour)
	pair, err := other.GenerateTokenPair(uuid.New(), "test@example.com")
	assert.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", testutil.AuthHeader(pair.AccessToken))
	rec := httptest.NewRecorder()

	app.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuth_ValidBearerToken(t *testing.T) {
	users, resolver := setupAuthTest(t)
	userID := uuid.New()
	users.On("GetByID", mock.Anything, userID).Return(&models.User{ID: userID, Email: "test@example.com"}, nil)

	var seen uuid.UUID
	app := protectedApp(Auth(resolver), &seen)

	for _, bearer := range []string{"bearer", "BEARER", "BeArEr"} {
		t.Run(bearer, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			req.Header.Set("Authorization", bearer+" "+testutil.GenerateTestToken(t, userID, "test@example.com"))
			rec := httptest.NewRecorder()

			app.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, userID, seen)
		})
	}
}

func TestAuth_SessionCookie(t *testing.T) {
	users, resolver := setupAuthTest(t)
	userID := uuid.New()
	users.On("GetByID", mock.Anything, userID).Return(&models.User{ID: userID}, nil)

	app := protectedApp(Auth(resolver), nil)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: session.AccessCookie, Value: testutil.GenerateTestToken(t, userID, "a@b.c")})
	rec := httptest.NewRecorder()

	app.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuth_StoreFailure(t *testing.T) {
	users, resolver := setupAuthTest(t)
	userID := uuid.New()
	users.On("GetByID", mock.Anything, userID).Return(nil, errors.New("connection refused"))

	app := protectedApp(Auth(resolver), nil)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", testutil.AuthHeader(testutil.GenerateTestToken(t, userID, "a@b.c")))
	rec := httptest.NewRecorder()

	app.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRequireSession_RedirectsToLogin(t *testing.T) {
	_, resolver := setupAuthTest(t)
	app := protectedApp(RequireSession(resolver), nil)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	rec := httptest.NewRecorder()

	app.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
	assert.NotContains(t, rec.Body.String(), "status")
}

func TestRequireSession_DeletedUserRedirects(t *testing.T) {
	users, resolver := setupAuthTest(t)
	userID := uuid.New()
	users.On("GetByID", mock.Anything, userID).Return(nil, services.ErrUserNotFound)

	app := protectedApp(RequireSession(resolver), nil)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: session.AccessCookie, Value: testutil.GenerateTestToken(t, userID, "a@b.c")})
	rec := httptest.NewRecorder()

	app.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
}

func TestRequireSession_SetsUser(t *testing.T) {
	users, resolver := setupAuthTest(t)
	user := &models.User{ID: uuid.New(), Email: "owner@example.com"}
	users.On("GetByID", mock.Anything, user.ID).Return(user, nil)

	var got *models.User
	var email string
	app := drift.New()
	app.Use(RequireSession(resolver))
	app.Get("/protected", func(c *drift.Context) {
		got = GetUser(c)
		email = GetUserEmail(c)
		_ = c.JSON(http.StatusOK, nil)
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: session.AccessCookie, Value: testutil.GenerateTestToken(t, user.ID, user.Email)})
	rec := httptest.NewRecorder()

	app.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, user, got)
	assert.Equal(t, "owner@example.com", email)
}

func TestGetters_NotSet(t *testing.T) {
	app := drift.New()

	var userID uuid.UUID
	var email string
	var user *models.User

	app.Get("/test", func(c *drift.Context) {
		userID = GetUserID(c)
		email = GetUserEmail(c)
		user = GetUser(c)
		_ = c.JSON(http.StatusOK, nil)
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()

	app.ServeHTTP(rec, req)

	assert.Equal(t, uuid.Nil, userID)
	assert.Equal(t, "", email)
	assert.Nil(t, user)
}
