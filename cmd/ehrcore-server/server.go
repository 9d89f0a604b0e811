package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/ehrcore/internal/config"
	"github.com/ehr/ehrcore/internal/domain/cohort"
	"github.com/ehr/ehrcore/internal/domain/concept"
	"github.com/ehr/ehrcore/internal/platform/auth"
	"github.com/ehr/ehrcore/internal/platform/cache"
	"github.com/ehr/ehrcore/internal/platform/db"
	"github.com/ehr/ehrcore/internal/platform/events"
	"github.com/ehr/ehrcore/internal/platform/metrics"
	"github.com/ehr/ehrcore/internal/platform/middleware"
	"github.com/ehr/ehrcore/migrations"
)

// server owns the echo instance and every backend connection opened for it.
type server struct {
	echo    *echo.Echo
	closers []func()
}

func (s *server) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

type storage struct {
	cohorts  cohort.Repository
	concepts concept.Repository
	ping     db.PingFunc
	pool     *pgxpool.Pool
}

func newServer(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*server, error) {
	srv := &server{}
	m := metrics.New()

	store, err := openStorage(ctx, cfg, logger, srv)
	if err != nil {
		srv.Close()
		return nil, err
	}

	breaker := db.NewBreaker(db.BreakerConfig{
		Name:             "storage",
		FailureThreshold: cfg.BreakerFailureThreshold,
		Timeout:          cfg.BreakerTimeout,
		Logger:           logger,
		Metrics:          m,
	})
	cohortRepo := cohort.NewGuardedRepo(store.cohorts, breaker)
	conceptRepo := concept.NewGuardedRepo(store.concepts, breaker)

	if cfg.RedisURL != "" {
		rc, err := cache.NewRedis(ctx, cfg.RedisURL, "ehrcore")
		if err != nil {
			srv.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		srv.closers = append(srv.closers, func() { _ = rc.Close() })
		cohortRepo = cohort.NewCachedRepo(cohortRepo, rc, cfg.CacheTTL, logger)
		logger.Info().Msg("cohort cache enabled")
	}

	var pub events.Publisher = events.NoopPublisher{}
	if cfg.AMQPURL != "" {
		rp, err := events.NewRabbitMQPublisher(cfg.AMQPURL, logger)
		if err != nil {
			srv.Close()
			return nil, fmt.Errorf("connect amqp: %w", err)
		}
		srv.closers = append(srv.closers, func() { _ = rp.Close() })
		pub = rp
		logger.Info().Msg("event publishing enabled")
	}

	authz := auth.NewRoleAuthorizer(auth.DefaultGrants())
	cohortSvc := cohort.NewService(cohortRepo, authz, logger, m, pub)
	conceptSvc := concept.NewService(conceptRepo, authz, logger, m, pub)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	e.GET("/health", db.HealthHandler(cfg.StorageDriver, store.ping, store.pool))
	e.GET("/metrics", m.Handler())

	authMW := auth.DevAuthMiddleware()
	if cfg.ResolvedAuthMode() == config.AuthJWT {
		authMW = auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			JWKSURL:    cfg.AuthJWKSURL,
			SigningKey: []byte(cfg.AuthSigningKey),
		})
	}
	api := e.Group("/api/v1", authMW)
	fhirGroup := e.Group("/fhir", authMW)

	cohort.NewHandler(cohortSvc, authz).RegisterRoutes(api, fhirGroup)
	concept.NewHandler(conceptSvc, authz).RegisterRoutes(api)

	srv.echo = e
	return srv, nil
}

func openStorage(ctx context.Context, cfg *config.Config, logger zerolog.Logger, srv *server) (*storage, error) {
	switch cfg.StorageDriver {
	case config.DriverPostgres:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, err
		}
		srv.closers = append(srv.closers, pool.Close)
		logger.Info().Msg("connected to database")
		return &storage{
			cohorts:  cohort.NewRepoPG(pool),
			concepts: concept.NewAnswerRepoPG(pool),
			ping:     pool.Ping,
			pool:     pool,
		}, nil

	case config.DriverSQLite:
		sqlDB, err := db.OpenSQLite(ctx, cfg.SQLitePath, migrations.SQLite())
		if err != nil {
			return nil, err
		}
		srv.closers = append(srv.closers, func() { _ = sqlDB.Close() })
		logger.Info().Str("path", cfg.SQLitePath).Msg("opened sqlite database")
		return &storage{
			cohorts:  cohort.NewRepoSQLite(sqlDB),
			concepts: concept.NewAnswerRepoSQLite(sqlDB),
			ping:     sqlDB.PingContext,
		}, nil

	case config.DriverMemory:
		logger.Warn().Msg("using in-memory storage; data is lost on restart")
		return &storage{
			cohorts:  cohort.NewInMemoryRepo(),
			concepts: concept.NewInMemoryRepo(),
		}, nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
}
