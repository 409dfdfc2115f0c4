package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/gpcare/practice/internal/config"
	"github.com/gpcare/practice/internal/domain/billing"
	"github.com/gpcare/practice/internal/domain/patient"
	"github.com/gpcare/practice/internal/domain/practice"
	"github.com/gpcare/practice/internal/domain/scheduling"
	"github.com/gpcare/practice/internal/domain/staff"
	"github.com/gpcare/practice/internal/platform/auth"
	"github.com/gpcare/practice/internal/platform/db"
	"github.com/gpcare/practice/internal/platform/events"
	"github.com/gpcare/practice/internal/platform/middleware"
	"github.com/gpcare/practice/internal/platform/tenant"
)

func runServer(cfg *config.Config, logger zerolog.Logger) error {
	if cfg.IsDev() {
		logger.Warn().Str("default_practice", cfg.DefaultPractice).
			Msg("development mode: requests without a bearer token act as ADMIN")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	limiter, closeLimiter, err := rateLimiter(cfg, logger)
	if err != nil {
		return err
	}
	defer closeLimiter()

	e, err := newRouter(cfg, logger, pool, limiter)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.KafkaBrokers != "" {
		writer := events.NewKafkaWriter(cfg.KafkaBrokers)
		defer writer.Close()
		pub := events.NewPublisher(pool, events.NewOutboxRepo(), writer, logger, events.PublisherConfig{})
		g.Go(func() error {
			pub.Run(gctx)
			return nil
		})
		logger.Info().Str("brokers", cfg.KafkaBrokers).Msg("outbox publisher started")
	}

	g.Go(func() error {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}

// rateLimiter picks the shared Redis limiter when REDIS_URL is set and the
// in-process token bucket otherwise.
func rateLimiter(cfg *config.Config, logger zerolog.Logger) (echo.MiddlewareFunc, func(), error) {
	if cfg.RedisURL == "" {
		rl := middleware.RateLimitConfig{RequestsPerSecond: cfg.RateLimitRPS, BurstSize: cfg.RateLimitBurst}
		if rl.RequestsPerSecond <= 0 {
			rl = middleware.DefaultRateLimitConfig()
		}
		return middleware.RateLimit(rl), func() {}, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	limit := int(cfg.RateLimitRPS * 60)
	if limit <= 0 {
		limit = int(middleware.DefaultRateLimitConfig().RequestsPerSecond * 60)
	}
	mw := middleware.RedisRateLimit(rdb, middleware.RedisRateLimitConfig{
		Limit:    limit,
		Window:   time.Minute,
		Prefix:   "practice:ratelimit:",
		FailOpen: true,
	}, logger)
	logger.Info().Str("addr", opts.Addr).Msg("using redis rate limiter")
	return mw, func() { _ = rdb.Close() }, nil
}

func newRouter(cfg *config.Config, logger zerolog.Logger, pool *pgxpool.Pool, limiter echo.MiddlewareFunc) (*echo.Echo, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", "X-Practice-ID"},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	jwtCfg := auth.JWTConfig{
		Issuer:     cfg.AuthIssuer,
		Audience:   cfg.AuthAudience,
		JWKSURL:    cfg.AuthJWKSURL,
		SigningKey: []byte(cfg.AuthSigningKey),
	}
	authMW := auth.JWTMiddleware(jwtCfg)
	if cfg.IsDev() {
		authMW = auth.DevAuthMiddleware(jwtCfg, cfg.DefaultPractice)
	}

	api := e.Group("/api/v1", authMW, limiter, tenant.Middleware())

	scheduling.NewHandler(scheduling.NewService(scheduling.NewRepoPG(pool), loc)).RegisterRoutes(api)
	patient.NewHandler(patient.NewService(patient.NewRepoPG(pool))).RegisterRoutes(api)
	staff.NewHandler(staff.NewService(staff.NewRepoPG(pool))).RegisterRoutes(api)
	practice.NewHandler(practice.NewService(practice.NewRepoPG(pool))).RegisterRoutes(api)
	billing.NewHandler(billing.NewService(billing.NewRepoPG(pool))).RegisterRoutes(api)

	return e, nil
}
