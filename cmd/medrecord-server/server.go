package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/medrecord/medrecord/internal/config"
	"github.com/medrecord/medrecord/internal/domain/catalog"
	"github.com/medrecord/medrecord/internal/domain/correspondence"
	"github.com/medrecord/medrecord/internal/domain/doctor"
	"github.com/medrecord/medrecord/internal/domain/entry"
	"github.com/medrecord/medrecord/internal/domain/patientfile"
	"github.com/medrecord/medrecord/internal/platform/apperr"
	"github.com/medrecord/medrecord/internal/platform/auth"
	"github.com/medrecord/medrecord/internal/platform/db"
	"github.com/medrecord/medrecord/internal/platform/idp"
	"github.com/medrecord/medrecord/internal/platform/metrics"
	"github.com/medrecord/medrecord/internal/platform/middleware"
	"github.com/medrecord/medrecord/internal/platform/registry"
)

const shutdownTimeout = 10 * time.Second

func runServer(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg.Env)
	if err := cfg.Validate(); err != nil {
		logger.Error().Err(err).Msg("invalid configuration")
		return err
	}
	if cfg.ResolvedAuthMode() == config.AuthModeDevelopment {
		logger.Warn().Msg("development auth mode: requests without X-User-ID act as admin, do not expose this server")
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, db.PoolOptions{
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	e, err := newServer(cfg, pool, logger)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("auth_mode", cfg.ResolvedAuthMode()).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})

	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		metricsSrv = &http.Server{Addr: cfg.MetricsAddr, Handler: metrics.Handler(), ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			logger.Info().Str("addr", cfg.MetricsAddr).Msg("starting metrics listener")
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down server")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if metricsSrv != nil {
			_ = metricsSrv.Shutdown(sctx)
		}
		return e.Shutdown(sctx)
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server stopped with error")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

// newServer wires repositories, services and handlers onto a new echo
// instance. Nothing touches the database until a request arrives.
func newServer(cfg *config.Config, pool *pgxpool.Pool, logger zerolog.Logger) (*echo.Echo, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("load timezone: %w", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = apperr.HTTPErrorHandler(logger)

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(metrics.Middleware())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
	}))
	if cfg.RateLimitRPS > 0 {
		rl := middleware.DefaultRateLimitConfig()
		rl.RequestsPerSecond = cfg.RateLimitRPS
		if cfg.RateLimitBurst > 0 {
			rl.BurstSize = cfg.RateLimitBurst
		}
		rl.Skipper = func(c echo.Context) bool { return strings.HasPrefix(c.Path(), "/health") }
		e.Use(middleware.RateLimit(rl))
	}

	// Repositories
	doctorRepo := doctor.NewRepoPG(pool)
	fileRepo := patientfile.NewRepoPG(pool)
	corrRepo := correspondence.NewRepoPG(pool)
	catalogRepo := catalog.NewRepoPG(pool)
	store := entry.NewStore(entry.NewRepoPG(pool), doctorRepo, fileRepo, catalogRepo)

	// External systems
	idpSync := idp.NewSync(newIDPClient(cfg), logger)
	verifier := newVerifier(cfg)

	// Services
	doctorSvc := doctor.NewService(doctorRepo, fileRepo, idpSync, logger)
	fileSvc := patientfile.NewService(fileRepo, store, corrRepo, doctorRepo, db.NewTransactor(pool), verifier, idpSync, logger)
	fileSvc.SetClock(time.Now, loc)

	// Authentication
	switch cfg.ResolvedAuthMode() {
	case config.AuthModeDevelopment:
		e.Use(auth.DevAuthMiddleware())
	case config.AuthModeStandalone:
		issuer := auth.NewTokenIssuer([]byte(cfg.AuthSigningKey), "medrecord", cfg.TokenTTL)
		auth.NewTokenHandler(issuer, doctorSvc, fileSvc).RegisterRoutes(e)
		e.Use(issuer.Middleware(auth.AuthSkipper))
	case config.AuthModeExternal:
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:   cfg.AuthIssuer,
			Audience: cfg.AuthAudience,
			JWKSURL:  cfg.AuthJWKSURL,
			Skipper:  auth.AuthSkipper,
		}))
	}

	// Public endpoints
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(pool, pool))
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	api := e.Group("/api/v1")
	catalog.NewHandler(catalogRepo).RegisterRoutes(api)
	doctor.NewHandler(doctorSvc).RegisterRoutes(api)
	patientfile.NewHandler(fileSvc).RegisterRoutes(api)

	return e, nil
}

func newIDPClient(cfg *config.Config) idp.Client {
	if cfg.IDPURL == "" {
		return idp.Noop{}
	}
	return idp.NewKeycloakClient(idp.KeycloakConfig{
		BaseURL:      cfg.IDPURL,
		Realm:        cfg.IDPRealm,
		ClientID:     cfg.IDPClientID,
		ClientSecret: cfg.IDPClientSecret,
	})
}

func newVerifier(cfg *config.Config) registry.Verifier {
	if cfg.RegistryURL == "" {
		return registry.AcceptAll{}
	}
	return registry.NewClient(cfg.RegistryURL, cfg.RegistryAPIKey)
}
