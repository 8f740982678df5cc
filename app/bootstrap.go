package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"

	"directory-api/internal/auth"
	"directory-api/internal/config"
	"directory-api/internal/db"
	"directory-api/internal/event"
	"directory-api/internal/maintenance"
	"directory-api/internal/media"
	"directory-api/internal/observability"
	"directory-api/internal/person"
	"directory-api/internal/tag"
	"directory-api/internal/user"
)

type Options struct {
	RunMigrations bool
}

type Runtime struct {
	Handler http.Handler
	Close   func() error
}

// Build assembles the whole service from configuration: database, auth
// core, routers and middleware. Both entrypoints (server and serverless)
// go through here.
func Build(cfg config.Config, options Options) (*Runtime, error) {
	logger := observability.NewLogger()

	if err := observability.InitSentry(cfg.SentryDSN, cfg.AppEnv); err != nil {
		logger.Error("init_sentry_failed", map[string]any{"error": err.Error()})
	}

	database, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	database.SetMaxOpenConns(cfg.DB.MaxOpenConns)
	database.SetMaxIdleConns(cfg.DB.MaxIdleConns)
	database.SetConnMaxLifetime(cfg.DB.ConnMaxLifetime)
	database.SetConnMaxIdleTime(cfg.DB.ConnMaxIdleTime)

	if err := database.Ping(); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if options.RunMigrations {
		if err := db.RunMigrations(database); err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	codec, err := auth.NewTokenCodec(
		cfg.Auth.JWTSecret,
		cfg.Auth.JWTAlgorithm,
		cfg.Auth.Issuer,
		cfg.Auth.Audience,
		cfg.Auth.AccessTokenTTL,
		cfg.Auth.RefreshTokenTTL,
	)
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("init token codec: %w", err)
	}

	authRepo := auth.NewRepository(database)
	hasher := auth.NewPasswordHasher(bcrypt.DefaultCost)
	lockout := auth.NewLockoutPolicy(authRepo, cfg.Auth.LockoutMaxAttempts, cfg.Auth.LockoutDuration)
	authService := auth.NewService(authRepo, codec, hasher, lockout)
	authHandler := auth.NewHandler(authService)

	verifier := auth.NewCredentialVerifier(codec, cfg.Auth.APIKey, cfg.Auth.APIKeyHeader)
	gate := auth.NewGate(verifier, authRepo)

	if err := authService.EnsureAdmin(context.Background(), cfg.AdminEmail, cfg.AdminUsername, cfg.AdminPassword); err != nil {
		_ = database.Close()
		return nil, err
	}

	loginLimiter := auth.NewLoginRateLimiter(cfg.LoginRateLimitMax, cfg.LoginRateLimitWindow)

	userHandler := user.NewHandler(authRepo)
	personHandler := person.NewHandler(person.NewRepository(database))
	eventHandler := event.NewHandler(event.NewRepository(database))
	tagHandler := tag.NewHandler(tag.NewRepository(database))

	var uploader media.Uploader
	if cfg.CloudinaryURL != "" {
		cloudinary, err := media.NewCloudinary(cfg.CloudinaryURL)
		if err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("init cloudinary: %w", err)
		}
		uploader = cloudinary
	}
	avatarHandler := media.NewAvatarHandler(uploader, authRepo)

	cleanupHandler := maintenance.NewCleanupHandler(authRepo, loginLimiter, logger, cfg.CronSecret)

	mux := http.NewServeMux()

	mux.HandleFunc("POST /auth/register", authHandler.Register)
	mux.Handle("POST /auth/login", loginLimiter.Middleware(http.HandlerFunc(authHandler.Login)))
	mux.HandleFunc("POST /auth/refresh", authHandler.Refresh)
	mux.Handle("POST /auth/logout", gate.RequireUser(http.HandlerFunc(authHandler.Logout)))
	mux.Handle("POST /auth/change-password", gate.RequireUser(http.HandlerFunc(authHandler.ChangePassword)))
	mux.Handle("GET /auth/me", gate.RequireUser(http.HandlerFunc(userHandler.Me)))
	mux.Handle("PUT /auth/me", gate.RequireUser(http.HandlerFunc(userHandler.UpdateMe)))

	mux.Handle("GET /users", gate.RequireAdmin(http.HandlerFunc(userHandler.List)))
	mux.Handle("GET /users/active", gate.RequireModerator(http.HandlerFunc(userHandler.ListActive)))
	mux.Handle("GET /users/role/{role}", gate.RequireModerator(http.HandlerFunc(userHandler.ListByRole)))
	mux.Handle("GET /users/{id}", gate.RequireUser(http.HandlerFunc(userHandler.Get)))
	mux.Handle("PUT /users/{id}", gate.RequireUser(http.HandlerFunc(userHandler.Update)))
	mux.Handle("DELETE /users/{id}", gate.RequireAdmin(http.HandlerFunc(userHandler.Delete)))
	mux.Handle("POST /users/{id}/activate", gate.RequireAdmin(http.HandlerFunc(userHandler.Activate)))
	mux.Handle("POST /users/{id}/deactivate", gate.RequireAdmin(http.HandlerFunc(userHandler.Deactivate)))
	mux.Handle("POST /users/{id}/unlock", gate.RequireAdmin(http.HandlerFunc(userHandler.Unlock)))

	mux.Handle("GET /persons", gate.Optional(http.HandlerFunc(personHandler.List)))
	mux.Handle("GET /persons/{id}", gate.Optional(http.HandlerFunc(personHandler.Get)))
	mux.Handle("POST /persons", gate.RequireUser(http.HandlerFunc(personHandler.Create)))
	mux.Handle("PUT /persons/{id}", gate.RequireUser(http.HandlerFunc(personHandler.Update)))
	mux.Handle("DELETE /persons/{id}", gate.RequireModerator(http.HandlerFunc(personHandler.Delete)))
	mux.Handle("GET /persons/{id}/tags", gate.Optional(http.HandlerFunc(personHandler.ListTags)))
	mux.Handle("POST /persons/{id}/tags/{tagID}", gate.RequireUser(http.HandlerFunc(personHandler.AddTag)))
	mux.Handle("DELETE /persons/{id}/tags/{tagID}", gate.RequireModerator(http.HandlerFunc(personHandler.RemoveTag)))

	mux.Handle("GET /events", gate.Optional(http.HandlerFunc(eventHandler.List)))
	mux.Handle("GET /events/{id}", gate.Optional(http.HandlerFunc(eventHandler.Get)))
	mux.Handle("POST /events", gate.RequireUser(http.HandlerFunc(eventHandler.Create)))
	mux.Handle("PUT /events/{id}", gate.RequireUser(http.HandlerFunc(eventHandler.Update)))
	mux.Handle("DELETE /events/{id}", gate.RequireModerator(http.HandlerFunc(eventHandler.Delete)))
	mux.Handle("GET /events/{id}/persons", gate.Optional(http.HandlerFunc(eventHandler.ListParticipants)))
	mux.Handle("POST /events/{id}/persons/{personID}", gate.RequireUser(http.HandlerFunc(eventHandler.AddPerson)))
	mux.Handle("DELETE /events/{id}/persons/{personID}", gate.RequireUser(http.HandlerFunc(eventHandler.RemovePerson)))

	mux.Handle("GET /tags", gate.Optional(http.HandlerFunc(tagHandler.List)))
	mux.Handle("POST /tags", gate.RequireUser(http.HandlerFunc(tagHandler.Create)))
	mux.Handle("PUT /tags/{id}", gate.RequireModerator(http.HandlerFunc(tagHandler.Update)))
	mux.Handle("DELETE /tags/{id}", gate.RequireModerator(http.HandlerFunc(tagHandler.Delete)))

	mux.Handle("POST /media/avatar", gate.RequireUser(http.HandlerFunc(avatarHandler.Upload)))

	mux.HandleFunc("GET /internal/maintenance/cleanup", cleanupHandler.Handle)
	mux.HandleFunc("POST /internal/maintenance/cleanup", cleanupHandler.Handle)

	mux.HandleFunc("GET /health", healthHandler(database))

	handler := observability.RecoverMiddleware(logger, observability.RequestLoggingMiddleware(logger, mux))

	return &Runtime{
		Handler: handler,
		Close: func() error {
			observability.FlushSentry()
			return database.Close()
		},
	}, nil
}

func healthHandler(database *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]any{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)}
		if err := database.PingContext(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body = map[string]any{"status": "degraded", "time": time.Now().UTC().Format(time.RFC3339)}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}
