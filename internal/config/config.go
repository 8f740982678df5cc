package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is read from the environment exactly once at startup and never
// mutated afterwards. Missing or invalid required values abort boot.
type Config struct {
	Port        string
	DatabaseURL string
	AppEnv      string
	SentryDSN   string

	Auth AuthConfig
	DB   PoolConfig

	CloudinaryURL string
	CronSecret    string

	LoginRateLimitMax    int
	LoginRateLimitWindow time.Duration

	AdminEmail    string
	AdminUsername string
	AdminPassword string
}

type AuthConfig struct {
	JWTSecret    string
	JWTAlgorithm string
	Issuer       string
	Audience     string

	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	APIKey       string
	APIKeyHeader string

	LockoutMaxAttempts int
	LockoutDuration    time.Duration
}

type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

var allowedAlgorithms = map[string]bool{
	"HS256": true,
	"HS384": true,
	"HS512": true,
}

func Load() (Config, error) {
	databaseURL, err := mustEnv("DATABASE_URL")
	if err != nil {
		return Config{}, err
	}
	jwtSecret, err := mustEnv("JWT_SECRET")
	if err != nil {
		return Config{}, err
	}
	jwtAlgorithm, err := mustEnv("JWT_ALGORITHM")
	if err != nil {
		return Config{}, err
	}
	if !allowedAlgorithms[jwtAlgorithm] {
		return Config{}, fmt.Errorf("unsupported JWT_ALGORITHM: %s", jwtAlgorithm)
	}
	apiKey, err := mustEnv("API_KEY")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Port:        envOrDefault("PORT", "8080"),
		DatabaseURL: databaseURL,
		AppEnv:      envOrDefault("APP_ENV", "development"),
		SentryDSN:   os.Getenv("SENTRY_DSN"),

		Auth: AuthConfig{
			JWTSecret:          jwtSecret,
			JWTAlgorithm:       jwtAlgorithm,
			Issuer:             strings.TrimSpace(os.Getenv("JWT_ISSUER")),
			Audience:           strings.TrimSpace(os.Getenv("JWT_AUDIENCE")),
			AccessTokenTTL:     envMinutesOrDefault("ACCESS_TOKEN_TTL_MINUTES", 30),
			RefreshTokenTTL:    envDaysOrDefault("REFRESH_TOKEN_TTL_DAYS", 7),
			APIKey:             apiKey,
			APIKeyHeader:       envOrDefault("API_KEY_HEADER", "X-API-Key"),
			LockoutMaxAttempts: envIntOrDefault("LOCKOUT_MAX_ATTEMPTS", 5),
			LockoutDuration:    envMinutesOrDefault("LOCKOUT_DURATION_MINUTES", 30),
		},

		DB: PoolConfig{
			MaxOpenConns:    envIntOrDefault("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    envIntOrDefault("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envMinutesOrDefault("DB_CONN_MAX_LIFETIME_MINUTES", 30),
			ConnMaxIdleTime: envMinutesOrDefault("DB_CONN_MAX_IDLE_TIME_MINUTES", 10),
		},

		CloudinaryURL: strings.TrimSpace(os.Getenv("CLOUDINARY_URL")),
		CronSecret:    strings.TrimSpace(os.Getenv("CRON_SECRET")),

		LoginRateLimitMax:    envIntOrDefault("LOGIN_RATE_LIMIT_MAX", 10),
		LoginRateLimitWindow: envSecondsOrDefault("LOGIN_RATE_LIMIT_WINDOW_SECONDS", 60),

		AdminEmail:    strings.TrimSpace(strings.ToLower(os.Getenv("ADMIN_EMAIL"))),
		AdminUsername: strings.TrimSpace(strings.ToLower(os.Getenv("ADMIN_USERNAME"))),
		AdminPassword: strings.TrimSpace(os.Getenv("ADMIN_PASSWORD")),
	}

	hasAdmin := cfg.AdminEmail != "" || cfg.AdminUsername != "" || cfg.AdminPassword != ""
	if hasAdmin && (cfg.AdminEmail == "" || cfg.AdminUsername == "" || cfg.AdminPassword == "") {
		return Config{}, fmt.Errorf("ADMIN_EMAIL, ADMIN_USERNAME and ADMIN_PASSWORD are required together")
	}

	return cfg, nil
}

func mustEnv(name string) (string, error) {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return "", fmt.Errorf("missing required env: %s", name)
	}
	return value, nil
}

func envOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func envIntOrDefault(name string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func envMinutesOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Minute
}

func envSecondsOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Second
}

func envDaysOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * 24 * time.Hour
}
