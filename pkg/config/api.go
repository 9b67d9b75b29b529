package config

import (
	"log/slog"
	"time"
)

// Storage drivers understood by the API.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// APIConfig holds runtime configuration for the API service.
type APIConfig struct {
	Environment        string
	Addr               string
	LogLevel           slog.Level
	StorageDriver      string
	DatabaseURL        string
	MigrationsDir      string
	JWTSecret          string
	JWTIssuer          string
	JWTAudience        string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	BcryptCost         int
	AuthRateLimit      int
	AuthRateWindow     time.Duration
	UserRateLimit      int
	UserRateWindow     time.Duration
	RequestBodyLimit   int64
	RateLimitRedisAddr string
	RateLimitRedisPass string
	RateLimitRedisDB   int
}

// LoadAPIConfig constructs an APIConfig from environment variables.
func LoadAPIConfig() APIConfig {
	return APIConfig{
		Environment:        GetString("APP_ENV", "development"),
		Addr:               GetString("API_ADDR", ":4000"),
		LogLevel:           GetLevel("LOG_LEVEL", slog.LevelInfo),
		StorageDriver:      GetString("STORAGE_DRIVER", StoragePostgres),
		DatabaseURL:        GetString("DATABASE_URL", "postgres://relgate:relgate@db:5432/relgate?sslmode=disable"),
		MigrationsDir:      GetString("DB_MIGRATIONS_DIR", "db/migrations"),
		JWTSecret:          GetString("JWT_SECRET", ""),
		JWTIssuer:          GetString("JWT_ISSUER", "auth-service"),
		JWTAudience:        GetString("JWT_AUDIENCE", "auth-client"),
		AccessTokenTTL:     GetSeconds("ACCESS_TOKEN_TTL_SECONDS", 15*time.Minute),
		RefreshTokenTTL:    GetSeconds("REFRESH_TOKEN_TTL_SECONDS", 7*24*time.Hour),
		BcryptCost:         GetInt("BCRYPT_COST", 12),
		AuthRateLimit:      GetInt("AUTH_RATE_LIMIT", 10),
		AuthRateWindow:     time.Duration(GetInt("AUTH_RATE_WINDOW_MINUTES", 30)) * time.Minute,
		UserRateLimit:      GetInt("USER_RATE_LIMIT", 120),
		UserRateWindow:     time.Minute,
		RequestBodyLimit:   int64(GetInt("REQUEST_BODY_LIMIT_BYTES", 1<<20)),
		RateLimitRedisAddr: GetString("RATE_LIMIT_REDIS_ADDR", ""),
		RateLimitRedisPass: GetString("RATE_LIMIT_REDIS_PASSWORD", ""),
		RateLimitRedisDB:   GetInt("RATE_LIMIT_REDIS_DB", 0),
	}
}
