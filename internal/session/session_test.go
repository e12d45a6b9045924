package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dimitrije/passkeep/internal/models"
	"github.com/dimitrije/passkeep/internal/services"
	"github.com/dimitrije/passkeep/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func setupResolver(t *testing.T, jwtSvc *services.JWTService) (*testutil.MockUserService, *testutil.MockTokenService, *Resolver) {
	t.Helper()
	users := new(testutil.MockUserService)
	tokens := new(testutil.MockTokenService)
	return users, tokens, NewResolver(jwtSvc, tokens, users, true)
}

func cookieNamed(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	return testutil.ResponseCookie(rec, name)
}

func TestResolve_NoCredentials(t *testing.T) {
	_, _, r := setupResolver(t, testutil.TestJWTService())

	req := httptest.NewRequest(http.MethodGet, "/app", nil)
	user, err := r.Resolve(context.Background(), httptest.NewRecorder(), req)

	assert.Nil(t, user)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestResolve_ValidCookie(t *testing.T) {
	users, _, r := setupResolver(t, testutil.TestJWTService())
	user := &models.User{ID: uuid.New(), Email: "a@example.com"}
	users.On("GetByID", mock.Anything, user.ID).Return(user, nil)

	req := httptest.NewRequest(http.MethodGet, "/app", nil)
	req.AddCookie(&http.Cookie{Name: AccessCookie, Value: testutil.GenerateTestToken(t, user.ID, user.Email)})
	rec := httptest.NewRecorder()

	got, err := r.Resolve(context.Background(), rec, req)

	require.NoError(t, err)
	assert.Equal(t, user, got)
	assert.Empty(t, rec.Result().Cookies())
}

func TestResolve_BearerWinsOverCookie(t *testing.T) {
	users, _, r := setupResolver(t, testutil.TestJWTService())
	bearerUser := &models.User{ID: uuid.New()}
	users.On("GetByID", mock.Anything, bearerUser.ID).Return(bearerUser, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/records", nil)
	req.Header.Set("Authorization", testutil.AuthHeader(testutil.GenerateTestToken(t, bearerUser.ID, "")))
	req.AddCookie(&http.Cookie{Name: AccessCookie, Value: testutil.GenerateTestToken(t, uuid.New(), "")})

	got, err := r.Resolve(context.Background(), nil, req)

	require.NoError(t, err)
	assert.Equal(t, bearerUser.ID, got.ID)
}

func TestResolve_RefreshTokenIsNotAnAccessToken(t *testing.T) {
	jwtSvc := testutil.TestJWTService()
	_, _, r := setupResolver(t, jwtSvc)

	pair, err := jwtSvc.GenerateTokenPair(uuid.New(), "a@example.com")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/app", nil)
	req.AddCookie(&http.Cookie{Name: AccessCookie, Value: pair.RefreshToken})

	_, err = r.Resolve(context.Background(), httptest.NewRecorder(), req)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestResolve_ExpiredAccessRotatesOnce(t *testing.T) {
	expired := services.NewJWTService("test-secret-key-for-testing-only", -time.Minute, 24*time.Hour)
	users, tokens, r := setupResolver(t, testutil.TestJWTService())
	user := &models.User{ID: uuid.New(), Email: "a@example.com"}

	old, err := expired.GenerateTokenPair(user.ID, user.Email)
	require.NoError(t, err)

	users.On("GetByID", mock.Anything, user.ID).Return(user, nil)
	tokens.On("RotateRefreshToken", mock.Anything, user.ID, services.HashToken(old.RefreshToken), mock.AnythingOfType("string"), mock.AnythingOfType("time.Time")).
		Return(nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/app", nil)
	req.AddCookie(&http.Cookie{Name: AccessCookie, Value: old.AccessToken})
	req.AddCookie(&http.Cookie{Name: RefreshCookie, Value: old.RefreshToken})
	rec := httptest.NewRecorder()

	got, err := r.Resolve(context.Background(), rec, req)

	require.NoError(t, err)
	assert.Equal(t, user, got)
	tokens.AssertExpectations(t)

	access := cookieNamed(rec, AccessCookie)
	refresh := cookieNamed(rec, RefreshCookie)
	require.NotNil(t, access)
	require.NotNil(t, refresh)
	assert.NotEqual(t, old.RefreshToken, refresh.Value)
	assert.True(t, access.HttpOnly)
	assert.True(t, access.Secure)
	assert.Equal(t, http.SameSiteLaxMode, access.SameSite)
}

func TestResolve_LostRotationKeepsCookies(t *testing.T) {
	jwtSvc := testutil.TestJWTService()
	users, tokens, r := setupResolver(t, jwtSvc)
	user := &models.User{ID: uuid.New()}

	pair, err := jwtSvc.GenerateTokenPair(user.ID, "")
	require.NoError(t, err)

	users.On("GetByID", mock.Anything, user.ID).Return(user, nil)
	tokens.On("RotateRefreshToken", mock.Anything, user.ID, mock.Anything, mock.Anything, mock.Anything).
		Return(services.ErrRefreshTokenNotFound)

	req := httptest.NewRequest(http.MethodGet, "/app", nil)
	req.AddCookie(&http.Cookie{Name: RefreshCookie, Value: pair.RefreshToken})
	rec := httptest.NewRecorder()

	_, err = r.Resolve(context.Background(), rec, req)

	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.Nil(t, cookieNamed(rec, AccessCookie))
	assert.Nil(t, cookieNamed(rec, RefreshCookie))
	assert.Empty(t, rec.Header().Values("Set-Cookie"))
}

func TestResolve_InvalidRefreshTokenClearsCookies(t *testing.T) {
	_, _, r := setupResolver(t, testutil.TestJWTService())

	req := httptest.NewRequest(http.MethodGet, "/app", nil)
	req.AddCookie(&http.Cookie{Name: RefreshCookie, Value: "not-a-token"})
	rec := httptest.NewRecorder()

	_, err := r.Resolve(context.Background(), rec, req)

	assert.ErrorIs(t, err, ErrUnauthenticated)
	cleared := cookieNamed(rec, RefreshCookie)
	require.NotNil(t, cleared)
	assert.Equal(t, "", cleared.Value)
	assert.Less(t, cleared.MaxAge, 0)
}

func TestResolve_RotationStoreErrorIsNotAuthError(t *testing.T) {
	jwtSvc := testutil.TestJWTService()
	users, tokens, r := setupResolver(t, jwtSvc)
	user := &models.User{ID: uuid.New()}

	pair, err := jwtSvc.GenerateTokenPair(user.ID, "")
	require.NoError(t, err)

	users.On("GetByID", mock.Anything, user.ID).Return(user, nil)
	tokens.On("RotateRefreshToken", mock.Anything, user.ID, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("connection reset"))

	req := httptest.NewRequest(http.MethodGet, "/app", nil)
	req.AddCookie(&http.Cookie{Name: RefreshCookie, Value: pair.RefreshToken})

	_, err = r.Resolve(context.Background(), httptest.NewRecorder(), req)

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnauthenticated)
}

func TestResolve_BearerNeverRotates(t *testing.T) {
	expired := services.NewJWTService("test-secret-key-for-testing-only", -time.Minute, 24*time.Hour)
	_, tokens, r := setupResolver(t, testutil.TestJWTService())

	pair, err := expired.GenerateTokenPair(uuid.New(), "")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/records", nil)
	req.Header.Set("Authorization", testutil.AuthHeader(pair.AccessToken))
	req.AddCookie(&http.Cookie{Name: RefreshCookie, Value: pair.RefreshToken})

	_, err = r.Resolve(context.Background(), httptest.NewRecorder(), req)

	assert.ErrorIs(t, err, ErrUnauthenticated)
	tokens.AssertNotCalled(t, "RotateRefreshToken", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestStart_StoresRefreshAndSetsCookies(t *testing.T) {
	_, tokens, r := setupResolver(t, testutil.TestJWTService())
	user := &models.User{ID: uuid.New(), Email: "a@example.com"}

	tokens.On("StoreRefreshToken", mock.Anything, user.ID, mock.AnythingOfType("string"), mock.AnythingOfType("time.Time")).Return(nil)

	rec := httptest.NewRecorder()
	pair, err := r.Start(context.Background(), rec, user)

	require.NoError(t, err)
	tokens.AssertCalled(t, "StoreRefreshToken", mock.Anything, user.ID, services.HashToken(pair.RefreshToken), mock.Anything)
	assert.Equal(t, pair.AccessToken, cookieNamed(rec, AccessCookie).Value)
	assert.Equal(t, pair.RefreshToken, cookieNamed(rec, RefreshCookie).Value)
}

func TestStart_StoreFailureWritesNoCookies(t *testing.T) {
	_, tokens, r := setupResolver(t, testutil.TestJWTService())
	tokens.On("StoreRefreshToken", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("db down"))

	rec := httptest.NewRecorder()
	_, err := r.Start(context.Background(), rec, &models.User{ID: uuid.New()})

	assert.Error(t, err)
	assert.Empty(t, rec.Result().Cookies())
}

func TestEnd_RevokesAndClears(t *testing.T) {
	_, tokens, r := setupResolver(t, testutil.TestJWTService())
	tokens.On("RevokeRefreshToken", mock.Anything, services.HashToken("refresh-value")).Return(nil)

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(&http.Cookie{Name: RefreshCookie, Value: "refresh-value"})
	rec := httptest.NewRecorder()

	require.NoError(t, r.End(context.Background(), rec, req))
	tokens.AssertExpectations(t)
	assert.Less(t, cookieNamed(rec, AccessCookie).MaxAge, 0)
	assert.Less(t, cookieNamed(rec, RefreshCookie).MaxAge, 0)
}

func TestEnd_WithoutRefreshCookie(t *testing.T) {
	_, tokens, r := setupResolver(t, testutil.TestJWTService())

	rec := httptest.NewRecorder()
	require.NoError(t, r.End(context.Background(), rec, httptest.NewRequest(http.MethodPost, "/logout", nil)))

	tokens.AssertNotCalled(t, "RevokeRefreshToken", mock.Anything, mock.Anything)
	assert.NotNil(t, cookieNamed(rec, AccessCookie))
}
