package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"github.com/assassinoNz/CarShare-Server/internal/app"
	"github.com/assassinoNz/CarShare-Server/internal/config"
	"github.com/assassinoNz/CarShare-Server/internal/events"
	"github.com/assassinoNz/CarShare-Server/internal/handler"
	"github.com/assassinoNz/CarShare-Server/internal/logging"
	"github.com/assassinoNz/CarShare-Server/internal/matcher"
	internalRedis "github.com/assassinoNz/CarShare-Server/internal/redis"
	"github.com/assassinoNz/CarShare-Server/internal/repository/postgres"
	"github.com/assassinoNz/CarShare-Server/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	logger := logging.NewLogger(cfg.Log.Level)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "err", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// New Relic first so the database and Redis clients get instrumented.
	nrApp := app.NewNewRelic(cfg.NewRelic, logger)
	if nrApp != nil {
		defer nrApp.Shutdown(5 * time.Second)
	}

	if err := app.MigrateUp(cfg.Database, logger); err != nil {
		return err
	}

	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("connected to PostgreSQL", "host", cfg.Database.Host, "db", cfg.Database.Name)

	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		return err
	}
	defer redisClient.Close()
	logger.Info("connected to Redis", "addr", cfg.Redis.Addr)

	publisher := app.NewPublisher(cfg.Kafka, logger)
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Warn("closing publisher failed", "err", err)
		}
	}()

	server, grids, err := wireServer(db, redisClient, nrApp, publisher, cfg, logger)
	if err != nil {
		return err
	}

	if _, err := grids.ActiveIndex(ctx); err != nil {
		if !errors.Is(err, service.ErrNoActiveGrid) {
			return err
		}
		logger.Warn("no active tile grid; run tilectl rebuild-grid before creating trips")
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		logger.Info("shutting down server", "signal", sig.String())
	case err := <-errCh:
		return err
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	logger.Info("server exited")
	return nil
}

// wireServer wires all dependencies and returns the HTTP server together
// with the grid service, whose index is shared by trip creation.
func wireServer(
	db *sql.DB,
	redisClient *redis.Client,
	nrApp *newrelic.Application,
	publisher events.Publisher,
	cfg *config.Config,
	logger *slog.Logger,
) (*http.Server, *service.GridService, error) {
	cacheStore := internalRedis.NewCacheStore(redisClient)
	lockStore := internalRedis.NewLockStore(redisClient)
	idempotencyStore := internalRedis.NewIdempotencyStore(redisClient)

	hostedRepo := postgres.NewHostedTripRepository(db)
	requestedRepo := postgres.NewRequestedTripRepository(db)
	handshakeRepo := postgres.NewHandshakeRepository(db)
	gridRepo := postgres.NewTileGridRepository(db)
	userRepo := postgres.NewUserRepository(db)
	vehicleRepo := postgres.NewVehicleRepository(db)

	engine, err := app.NewGeometryEngine(cfg.Geometry, db)
	if err != nil {
		return nil, nil, err
	}
	routes, err := app.NewRouteProvider(cfg.Routing, cacheStore, logger)
	if err != nil {
		return nil, nil, err
	}

	authz := service.NewRoleAuthorizer(userRepo)
	routeMatcher := matcher.New(engine)
	notifications := service.NewNotificationService(publisher, logger)

	grids := service.NewGridService(service.GridServiceConfig{
		Grids:     gridRepo,
		Hosted:    hostedRepo,
		Requested: requestedRepo,
		Routes:    routes,
		Engine:    engine,
		Cache:     cacheStore,
		Lock:      lockStore,
		Box:       cfg.Grid.BoundingBox(),
		MaxRoutes: cfg.Matching.ValueLimit,
		Logger:    logger,
	})
	trips := service.NewTripService(
		hostedRepo, requestedRepo, vehicleRepo,
		authz, routes, grids, cfg.Matching.ValueLimit, logger,
	)
	matching := service.NewMatchingService(
		hostedRepo, requestedRepo, authz, routeMatcher, routes,
		service.MatchingConfig{
			ScheduleWindow:        cfg.Matching.ScheduleWindow,
			ProximityRadiusMeters: cfg.Matching.ProximityRadiusMeters,
			Concurrency:           cfg.Matching.Concurrency,
			Timeout:               cfg.Matching.Timeout,
			MaxRoutes:             cfg.Matching.ValueLimit,
		},
		logger,
	)
	handshakes := service.NewHandshakeService(
		handshakeRepo, hostedRepo, requestedRepo, authz, routeMatcher,
		notifications, cfg.Grid.BoundingBox(), logger,
	)

	router := app.NewRouter(app.RouterDeps{
		HostedTripHandler:    handler.NewHostedTripHandler(trips, matching),
		RequestedTripHandler: handler.NewRequestedTripHandler(trips),
		HandshakeHandler:     handler.NewHandshakeHandler(handshakes),
		IdempotencyStore:     idempotencyStore,
		NewRelicApp:          nrApp,
		Logger:               logger,
	})

	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, grids, nil
}
