package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/dimitrije/passkeep/internal/config"
	"github.com/dimitrije/passkeep/internal/database"
	"github.com/dimitrije/passkeep/internal/database/sqlite"
	"github.com/dimitrije/passkeep/internal/envelope"
	"github.com/dimitrije/passkeep/internal/handlers"
	"github.com/dimitrije/passkeep/internal/logger"
	authmw "github.com/dimitrije/passkeep/internal/middleware"
	"github.com/dimitrije/passkeep/internal/oauth"
	"github.com/dimitrije/passkeep/internal/services"
	"github.com/dimitrije/passkeep/internal/session"
	"github.com/dimitrije/passkeep/internal/sse"
	"github.com/m1z23r/drift/pkg/drift"
	"github.com/m1z23r/drift/pkg/middleware"
	"go.uber.org/zap"

	_ "golang.org/x/crypto/x509roots/fallback"
)

type tokenStore interface {
	handlers.TokenServiceInterface
	session.RefreshStore
	CleanupExpired(ctx context.Context) (int64, error)
}

// stores is the backend chosen by STORE_DRIVER.
type stores struct {
	users   handlers.UserServiceInterface
	tokens  tokenStore
	records handlers.RecordServiceInterface
	close   func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(cfg.LogLevel); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sealer, err := newSealer(cfg)
	if err != nil {
		logger.Log.Fatal("Failed to set up record encryption", zap.Error(err))
	}

	st, err := openStores(ctx, cfg, sealer)
	if err != nil {
		logger.Log.Fatal("Failed to open store", zap.String("driver", cfg.StoreDriver), zap.Error(err))
	}
	defer st.close()

	jwtService := services.NewJWTService(cfg.JWTSecret, cfg.JWTAccessExpiry, cfg.JWTRefreshExpiry)
	sessions := session.NewResolver(jwtService, st.tokens, st.users, cfg.SecureCookies())

	providers := oauth.Providers(cfg)
	if len(providers) == 0 {
		logger.Log.Info("No OAuth providers configured; email sign-in only")
	}

	hub := sse.NewHub()
	go hub.Run(ctx)

	authHandler := handlers.NewAuthHandler(providers, st.users, st.tokens, jwtService, sessions)
	userHandler := handlers.NewUserHandler(st.users)
	recordHandler := handlers.NewRecordHandler(st.records, hub)
	pageHandler := handlers.NewPageHandler(st.records, hub, sessions)
	sseHandler := handlers.NewSSEHandler(hub)

	go authHandler.CleanupStates(ctx)
	go cleanupTokens(ctx, st.tokens)

	app := drift.New()

	if cfg.IsProduction() {
		app.SetMode(drift.ReleaseMode)
	} else {
		app.SetMode(drift.DebugMode)
	}

	app.Use(middleware.Recovery())
	app.Use(authmw.RequestLogger())
	app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{cfg.BaseURL},
		AllowMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		MaxAge:       86400,
	}))

	pages := app.Group("")
	pages.Use(authmw.CSRF(cfg.SecureCookies()))
	pages.Use(authmw.Timeout(cfg.RequestTimeout))

	pages.Get("/", pageHandler.Landing)
	pages.Get("/login", authHandler.LoginPage)
	pages.Post("/login", authHandler.Login)
	pages.Get("/register", authHandler.RegisterPage)
	pages.Post("/register", authHandler.Register)
	pages.Post("/logout", authHandler.Logout)
	pages.Get("/auth/:provider/login", authHandler.ProviderLogin)
	pages.Get("/auth/:provider/callback", authHandler.Callback)

	protectedPages := pages.Group("")
	protectedPages.Use(authmw.RequireSession(sessions))

	protectedPages.Get("/app", pageHandler.Dashboard)
	protectedPages.Post("/app/records", pageHandler.AddRecord)
	protectedPages.Get("/app/records/:id/delete", pageHandler.ConfirmDelete)
	protectedPages.Post("/app/records/:id/delete", pageHandler.DeleteRecord)
	protectedPages.Get("/app/records/:id/secret", pageHandler.Secret)

	// Streams outlive the request timeout, so events sit outside the pages group.
	events := app.Group("")
	events.Use(authmw.Auth(sessions))
	events.Get("/app/events", sseHandler.Connect)

	api := app.Group("/api/v1")
	api.Use(middleware.BodyParser())
	api.Use(authmw.Timeout(cfg.RequestTimeout))

	auth := api.Group("/auth")
	auth.Post("/login", authHandler.APILogin)
	auth.Post("/register", authHandler.APIRegister)
	auth.Post("/refresh", authHandler.RefreshToken)
	auth.Post("/logout", authHandler.APILogout)

	protected := api.Group("")
	protected.Use(authmw.Auth(sessions))

	protected.Post("/auth/logout-all", authHandler.LogoutAll)

	protected.Get("/users/me", userHandler.GetMe)
	protected.Patch("/users/me", userHandler.UpdateMe)

	protected.Get("/records", recordHandler.List)
	protected.Post("/records", recordHandler.Create)
	protected.Get("/records/:id", recordHandler.Get)
	protected.Delete("/records/:id", recordHandler.Delete)

	api.Get("/health", func(c *drift.Context) {
		_ = c.JSON(200, map[string]string{"status": "ok"})
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           app,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Log.Info("Server starting",
			zap.String("addr", srv.Addr),
			zap.String("store", cfg.StoreDriver),
			zap.Int("oauth_providers", len(providers)))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("Graceful shutdown failed", zap.Error(err))
	}
}

func newSealer(cfg *config.Config) (envelope.Sealer, error) {
	if cfg.RecordEncryptionKey == "" {
		logger.Log.Warn("RECORD_ENCRYPTION_KEY not set; record secrets are stored as plaintext")
		return envelope.Plain{}, nil
	}
	return envelope.NewAESGCM(cfg.RecordEncryptionKey)
}

func openStores(ctx context.Context, cfg *config.Config, sealer envelope.Sealer) (*stores, error) {
	switch cfg.StoreDriver {
	case config.StoreSQLite:
		db, err := sqlite.NewDB(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		if err := sqlite.RunMigrations(db.Writer); err != nil {
			_ = db.Close()
			return nil, err
		}
		return &stores{
			users:   sqlite.NewUserRepo(db),
			tokens:  sqlite.NewTokenRepo(db),
			records: sqlite.NewRecordRepo(db, sealer),
			close:   func() { _ = db.Close() },
		}, nil
	default:
		db, err := database.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
		return &stores{
			users:   services.NewUserService(db),
			tokens:  services.NewTokenService(db),
			records: services.NewRecordService(db, sealer),
			close:   db.Close,
		}, nil
	}
}

func cleanupTokens(ctx context.Context, tokens tokenStore) {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := tokens.CleanupExpired(ctx)
			if err != nil {
				logger.Log.Error("Failed to clean up refresh tokens", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Log.Info("Removed expired refresh tokens", zap.Int64("count", n))
			}
		}
	}
}
