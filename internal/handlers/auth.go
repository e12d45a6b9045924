package handlers

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dimitrije/passkeep/internal/logger"
	"github.com/dimitrije/passkeep/internal/middleware"
	"github.com/dimitrije/passkeep/internal/models"
	"github.com/dimitrije/passkeep/internal/oauth"
	"github.com/dimitrije/passkeep/internal/services"
	"github.com/dimitrije/passkeep/internal/views"
	"github.com/dimitrije/passkeep/pkg/dto"
	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
	"go.uber.org/zap"
)

const (
	stateTTL        = 10 * time.Minute
	exchangeTimeout = 30 * time.Second
)

// loginErrors maps the ?error= codes the auth routes redirect with to text
// shown on the login page. Unknown codes show nothing.
var loginErrors = map[string]string{
	"oauth":    "Sign-in with that provider failed. Please try again.",
	"state":    "Your sign-in attempt expired. Please try again.",
	"provider": "That sign-in provider is not available.",
}

type AuthHandler struct {
	providers    map[string]oauth.Provider
	userService  UserServiceInterface
	tokenService TokenServiceInterface
	jwtService   JWTServiceInterface
	sessions     SessionInterface
	states       sync.Map
}

type stateData struct {
	expiresAt time.Time
}

func NewAuthHandler(
	providers map[string]oauth.Provider,
	userService UserServiceInterface,
	tokenService TokenServiceInterface,
	jwtService JWTServiceInterface,
	sessions SessionInterface,
) *AuthHandler {
	if providers == nil {
		providers = make(map[string]oauth.Provider)
	}
	return &AuthHandler{
		providers:    providers,
		userService:  userService,
		tokenService: tokenService,
		jwtService:   jwtService,
		sessions:     sessions,
	}
}

// CleanupStates drops expired OAuth states every minute until ctx is done.
func (h *AuthHandler) CleanupStates(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			h.sweepStates(now)
		}
	}
}

func (h *AuthHandler) sweepStates(now time.Time) {
	h.states.Range(func(key, value any) bool {
		if sd, ok := value.(stateData); ok && now.After(sd.expiresAt) {
			h.states.Delete(key)
		}
		return true
	})
}

func (h *AuthHandler) providerNames() []string {
	names := make([]string, 0, len(h.providers))
	for name := range h.providers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// LoginPage renders the sign-in form. Visitors who already have a session go
// straight to the app.
func (h *AuthHandler) LoginPage(c *drift.Context) {
	if h.signedIn(c) {
		middleware.Redirect(c, "/app", http.StatusFound)
		return
	}

	form := views.AuthForm{
		CSRF:      middleware.CSRFToken(c),
		Error:     loginErrors[c.QueryParam("error")],
		Providers: h.providerNames(),
	}
	if c.QueryParam("logged_out") == "1" {
		form.Notice = "You have been logged out."
	}
	renderPage(c, http.StatusOK, views.Login(form))
}

func (h *AuthHandler) Login(c *drift.Context) {
	if err := c.Request.ParseForm(); err != nil {
		c.BadRequest("invalid form body")
		return
	}
	email := strings.TrimSpace(c.Request.PostForm.Get("email"))
	password := c.Request.PostForm.Get("password")

	form := views.AuthForm{
		CSRF:      middleware.CSRFToken(c),
		Email:     email,
		Providers: h.providerNames(),
	}

	ctx := c.Request.Context()
	user, err := h.userService.Authenticate(ctx, email, password)
	if errors.Is(err, services.ErrInvalidCredentials) {
		form.Error = "Invalid email or password."
		renderPage(c, http.StatusUnauthorized, views.Login(form))
		return
	}
	if err != nil {
		logger.Log.Error("failed to authenticate", zap.Error(err))
		form.Error = "Sign-in is unavailable right now. Please try again."
		renderPage(c, http.StatusInternalServerError, views.Login(form))
		return
	}

	if _, err := h.sessions.Start(ctx, c.Response, user); err != nil {
		logger.Log.Error("failed to start session", zap.String("user_id", user.ID.String()), zap.Error(err))
		form.Error = "Sign-in is unavailable right now. Please try again."
		renderPage(c, http.StatusInternalServerError, views.Login(form))
		return
	}

	middleware.Redirect(c, "/app", http.StatusSeeOther)
}

func (h *AuthHandler) RegisterPage(c *drift.Context) {
	if h.signedIn(c) {
		middleware.Redirect(c, "/app", http.StatusFound)
		return
	}
	renderPage(c, http.StatusOK, views.Register(views.AuthForm{
		CSRF:      middleware.CSRFToken(c),
		Providers: h.providerNames(),
	}))
}

func (h *AuthHandler) Register(c *drift.Context) {
	if err := c.Request.ParseForm(); err != nil {
		c.BadRequest("invalid form body")
		return
	}
	email := strings.TrimSpace(c.Request.PostForm.Get("email"))
	name := strings.TrimSpace(c.Request.PostForm.Get("name"))
	password := c.Request.PostForm.Get("password")

	form := views.AuthForm{
		CSRF:      middleware.CSRFToken(c),
		Email:     email,
		Name:      name,
		Providers: h.providerNames(),
	}

	ctx := c.Request.Context()
	user, err := h.userService.Register(ctx, email, name, password)
	if err != nil {
		status, msg := registerFailure(err)
		if status == http.StatusInternalServerError {
			logger.Log.Error("failed to register user", zap.Error(err))
		}
		form.Error = msg
		renderPage(c, status, views.Register(form))
		return
	}

	if _, err := h.sessions.Start(ctx, c.Response, user); err != nil {
		logger.Log.Error("failed to start session", zap.String("user_id", user.ID.String()), zap.Error(err))
		middleware.Redirect(c, "/login", http.StatusSeeOther)
		return
	}

	logger.Log.Info("user registered", zap.String("user_id", user.ID.String()))
	middleware.Redirect(c, "/app", http.StatusSeeOther)
}

func registerFailure(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrEmailTaken):
		return http.StatusConflict, "An account with this email already exists."
	case errors.Is(err, services.ErrInvalidEmail):
		return http.StatusUnprocessableEntity, "Please enter a valid email address."
	case errors.Is(err, services.ErrWeakPassword):
		return http.StatusUnprocessableEntity, "Password must be at least 8 characters."
	case errors.Is(err, services.ErrPasswordTooLong):
		return http.StatusUnprocessableEntity, "Password must be at most 72 bytes."
	}
	return http.StatusInternalServerError, "Registration is unavailable right now. Please try again."
}

// ProviderLogin sends the browser to the provider's consent screen.
func (h *AuthHandler) ProviderLogin(c *drift.Context) {
	p, ok := h.providers[c.Param("provider")]
	if !ok {
		middleware.Redirect(c, "/login?error=provider", http.StatusFound)
		return
	}

	state, err := oauth.GenerateState()
	if err != nil {
		c.InternalServerError("failed to generate state")
		return
	}

	h.states.Store(state, stateData{expiresAt: time.Now().Add(stateTTL)})

	middleware.Redirect(c, p.GetConsentURL(state), http.StatusFound)
}

func (h *AuthHandler) Callback(c *drift.Context) {
	provider := c.Param("provider")

	p, ok := h.providers[provider]
	if !ok {
		middleware.Redirect(c, "/login?error=provider", http.StatusFound)
		return
	}

	state := c.QueryParam("state")
	sd, ok := h.states.LoadAndDelete(state)
	if state == "" || !ok {
		middleware.Redirect(c, "/login?error=state", http.StatusFound)
		return
	}
	if sdTyped, ok := sd.(stateData); !ok || time.Now().After(sdTyped.expiresAt) {
		middleware.Redirect(c, "/login?error=state", http.StatusFound)
		return
	}

	code := c.QueryParam("code")
	if code == "" {
		middleware.Redirect(c, "/login?error=oauth", http.StatusFound)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), exchangeTimeout)
	defer cancel()

	userInfo, err := p.ExchangeCode(ctx, code)
	if err != nil {
		logger.Log.Warn("oauth code exchange failed", zap.String("provider", provider), zap.Error(err))
		middleware.Redirect(c, "/login?error=oauth", http.StatusFound)
		return
	}

	user, err := h.userService.FindOrCreateFromOAuth(ctx, userInfo)
	if err != nil {
		logger.Log.Error("failed to find or create oauth user", zap.String("provider", provider), zap.Error(err))
		middleware.Redirect(c, "/login?error=oauth", http.StatusFound)
		return
	}

	if _, err := h.sessions.Start(ctx, c.Response, user); err != nil {
		logger.Log.Error("failed to start session", zap.String("user_id", user.ID.String()), zap.Error(err))
		middleware.Redirect(c, "/login?error=oauth", http.StatusFound)
		return
	}

	middleware.Redirect(c, "/app", http.StatusFound)
}

// Logout revokes the refresh token behind the session and clears its cookies.
func (h *AuthHandler) Logout(c *drift.Context) {
	if err := h.sessions.End(c.Request.Context(), c.Response, c.Request); err != nil {
		logger.Log.Error("failed to revoke session", zap.Error(err))
	}
	middleware.Redirect(c, "/login?logged_out=1", http.StatusSeeOther)
}

func (h *AuthHandler) signedIn(c *drift.Context) bool {
	user, err := h.sessions.Resolve(c.Request.Context(), c.Response, c.Request)
	return err == nil && user != nil
}

func (h *AuthHandler) APILogin(c *drift.Context) {
	var req dto.LoginRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		c.BadRequest("email and password are required")
		return
	}

	ctx := c.Request.Context()
	user, err := h.userService.Authenticate(ctx, req.Email, req.Password)
	if errors.Is(err, services.ErrInvalidCredentials) {
		c.Unauthorized("invalid email or password")
		return
	}
	if err != nil {
		logger.Log.Error("failed to authenticate", zap.Error(err))
		c.InternalServerError("failed to authenticate")
		return
	}

	h.issueTokens(c, http.StatusOK, user)
}

func (h *AuthHandler) APIRegister(c *drift.Context) {
	var req dto.RegisterRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	user, err := h.userService.Register(c.Request.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		status, _ := registerFailure(err)
		if status == http.StatusInternalServerError {
			logger.Log.Error("failed to register user", zap.Error(err))
			c.InternalServerError("failed to register user")
			return
		}
		_ = c.JSON(status, map[string]string{"error": err.Error()})
		return
	}

	h.issueTokens(c, http.StatusCreated, user)
}

func (h *AuthHandler) issueTokens(c *drift.Context, status int, user *models.User) {
	tokenPair, err := h.sessions.Issue(c.Request.Context(), user)
	if err != nil {
		logger.Log.Error("failed to issue tokens", zap.String("user_id", user.ID.String()), zap.Error(err))
		c.InternalServerError("failed to generate tokens")
		return
	}

	_ = c.JSON(status, dto.TokenResponse{
		AccessToken:  tokenPair.AccessToken,
		RefreshToken: tokenPair.RefreshToken,
		ExpiresIn:    tokenPair.ExpiresIn,
		User:         dto.NewUserResponse(user),
	})
}

// RefreshToken swaps a refresh token for a new pair. The old token is
// consumed, so replaying it fails.
func (h *AuthHandler) RefreshToken(c *drift.Context) {
	var req dto.RefreshTokenRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	if req.RefreshToken == "" {
		c.BadRequest("refresh_token is required")
		return
	}

	userID, err := h.jwtService.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		c.Unauthorized("invalid refresh token")
		return
	}

	ctx := c.Request.Context()

	user, err := h.userService.GetByID(ctx, userID)
	if err != nil {
		c.Unauthorized("user not found")
		return
	}

	tokenPair, err := h.jwtService.GenerateTokenPair(user.ID, user.Email)
	if err != nil {
		c.InternalServerError("failed to generate tokens")
		return
	}

	expiresAt := time.Now().Add(h.jwtService.RefreshExpiry())
	err = h.tokenService.RotateRefreshToken(ctx, user.ID,
		services.HashToken(req.RefreshToken), services.HashToken(tokenPair.RefreshToken), expiresAt)
	if errors.Is(err, services.ErrRefreshTokenNotFound) {
		c.Unauthorized("refresh token not found or expired")
		return
	}
	if err != nil {
		logger.Log.Error("failed to rotate refresh token", zap.String("user_id", user.ID.String()), zap.Error(err))
		c.InternalServerError("failed to rotate refresh token")
		return
	}

	_ = c.JSON(http.StatusOK, dto.TokenResponse{
		AccessToken:  tokenPair.AccessToken,
		RefreshToken: tokenPair.RefreshToken,
		ExpiresIn:    tokenPair.ExpiresIn,
	})
}

func (h *AuthHandler) APILogout(c *drift.Context) {
	var req dto.RefreshTokenRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	if req.RefreshToken != "" {
		tokenHash := services.HashToken(req.RefreshToken)
		if err := h.tokenService.RevokeRefreshToken(c.Request.Context(), tokenHash); err != nil {
			logger.Log.Error("failed to revoke refresh token", zap.Error(err))
			c.InternalServerError("failed to revoke refresh token")
			return
		}
	}

	_ = c.JSON(http.StatusOK, map[string]string{"message": "logged out"})
}

func (h *AuthHandler) LogoutAll(c *drift.Context) {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		c.Unauthorized("not authenticated")
		return
	}

	if err := h.tokenService.RevokeAllUserTokens(c.Request.Context(), userID); err != nil {
		c.InternalServerError("failed to revoke tokens")
		return
	}

	_ = c.JSON(http.StatusOK, map[string]string{"message": "all sessions logged out"})
}
