package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/james-spears/refactored-computing-machine/internal/app/migrate"
	httpx "github.com/james-spears/refactored-computing-machine/internal/http"
	"github.com/james-spears/refactored-computing-machine/internal/repository"
	"github.com/james-spears/refactored-computing-machine/internal/repository/memory"
	"github.com/james-spears/refactored-computing-machine/internal/repository/postgres"
	"github.com/james-spears/refactored-computing-machine/internal/service/auth"
	"github.com/james-spears/refactored-computing-machine/internal/service/catalog"
	"github.com/james-spears/refactored-computing-machine/pkg/config"
	jwtpkg "github.com/james-spears/refactored-computing-machine/pkg/jwt"
	"github.com/james-spears/refactored-computing-machine/pkg/logger"
)

type store interface {
	repository.AccountStore
	repository.DocumentStore
}

func main() {
	cfg := config.LoadAPIConfig()
	log := logger.New("api", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		repo     store
		dbHealth func(context.Context) error
	)
	switch cfg.StorageDriver {
	case config.StorageMemory:
		log.Warn("using in-memory storage; data is lost on restart")
		repo = memory.New()
	case config.StoragePostgres:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		runner, err := migrate.New(pool, cfg.DatabaseURL, cfg.MigrationsDir, log)
		if err != nil {
			log.Error("failed to configure migrations", "error", err)
			os.Exit(1)
		}
		if err := runner.Ping(ctx); err != nil {
			log.Error("database ping failed", "error", err)
			os.Exit(1)
		}
		if err := runner.Ensure(ctx); err != nil {
			log.Error("migrations failed", "error", err)
			os.Exit(1)
		}
		repo = postgres.New(pool)
		dbHealth = pool.Ping
	default:
		log.Error("unsupported storage driver", "driver", cfg.StorageDriver)
		os.Exit(1)
	}

	secret := []byte(cfg.JWTSecret)
	if len(secret) == 0 {
		generated, err := jwtpkg.GenerateSecret()
		if err != nil {
			log.Error("failed to generate token secret", "error", err)
			os.Exit(1)
		}
		secret = generated
		log.Warn("JWT_SECRET not set; using a random secret, issued tokens will not survive a restart")
	}
	tokens, err := jwtpkg.NewManager(jwtpkg.Config{
		Secret:     secret,
		Issuer:     cfg.JWTIssuer,
		Audience:   cfg.JWTAudience,
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
	})
	if err != nil {
		log.Error("failed to configure tokens", "error", err)
		os.Exit(1)
	}

	authSvc := auth.New(repo, tokens, log, cfg.BcryptCost)
	catalogSvc := catalog.New(repo, log)

	var limiter httpx.RateLimiter
	if addr := strings.TrimSpace(cfg.RateLimitRedisAddr); addr != "" {
		redisLimiter, err := httpx.NewRedisRateLimiter(addr, cfg.RateLimitRedisPass, cfg.RateLimitRedisDB, log)
		if err != nil {
			log.Warn("redis rate limiter unavailable, falling back to memory", "error", err)
		} else {
			limiter = redisLimiter
		}
	}
	if limiter == nil {
		limiter = httpx.NewMemoryRateLimiter()
	}

	router := httpx.NewRouter(httpx.Deps{
		Logger:  log,
		Auth:    authSvc,
		Tokens:  tokens,
		Catalog: catalogSvc,
		Limiter: limiter,
		Limits: httpx.Limits{
			AuthLimit:  cfg.AuthRateLimit,
			AuthWindow: cfg.AuthRateWindow,
			UserLimit:  cfg.UserRateLimit,
			UserWindow: cfg.UserRateWindow,
			BodyBytes:  cfg.RequestBodyLimit,
		},
		DBHealth: dbHealth,
	})
	defer router.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("api server starting", "addr", cfg.Addr, "env", cfg.Environment, "storage", cfg.StorageDriver)
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		log.Info("api server stopped")
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}
}
