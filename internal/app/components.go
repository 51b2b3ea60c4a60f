package app

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/newrelic/go-agent/v3/newrelic"

	"github.com/assassinoNz/CarShare-Server/internal/config"
	"github.com/assassinoNz/CarShare-Server/internal/events"
	"github.com/assassinoNz/CarShare-Server/internal/geometry"
	"github.com/assassinoNz/CarShare-Server/internal/redis"
	"github.com/assassinoNz/CarShare-Server/internal/routing"
)

// NewNewRelic starts the agent when enabled. A failed start is logged and
// the process runs uninstrumented.
func NewNewRelic(cfg config.NewRelicConfig, logger *slog.Logger) *newrelic.Application {
	if !cfg.Enabled || cfg.LicenseKey == "" {
		return nil
	}
	nrApp, err := newrelic.NewApplication(
		newrelic.ConfigAppName(cfg.AppName),
		newrelic.ConfigLicense(cfg.LicenseKey),
		newrelic.ConfigDistributedTracerEnabled(true),
		newrelic.ConfigAppLogForwardingEnabled(true),
	)
	if err != nil {
		logger.Error("failed to initialize New Relic", "err", err)
		return nil
	}
	logger.Info("New Relic enabled", "app", cfg.AppName)
	return nrApp
}

// NewGeometryEngine selects the engine named in cfg.
func NewGeometryEngine(cfg config.GeometryConfig, db *sql.DB) (geometry.Engine, error) {
	switch cfg.Engine {
	case "postgis":
		return geometry.NewPostGISEngine(db), nil
	case "planar":
		return geometry.NewPlanarEngine(), nil
	}
	return nil, fmt.Errorf("unknown geometry engine %q", cfg.Engine)
}

// NewRouteProvider builds the configured provider behind the Redis route cache.
func NewRouteProvider(cfg config.RoutingConfig, cache redis.RouteCacheInterface, logger *slog.Logger) (routing.Provider, error) {
	var next routing.Provider
	switch cfg.Provider {
	case "osrm":
		next = routing.NewOSRMProvider(cfg.OSRMURL, cfg.Timeout)
	case "google":
		client := &http.Client{
			Timeout:   cfg.Timeout,
			Transport: newrelic.NewRoundTripper(http.DefaultTransport),
		}
		google, err := routing.NewGoogleProvider(cfg.GoogleAPIKey, client)
		if err != nil {
			return nil, err
		}
		next = google
	default:
		return nil, fmt.Errorf("unknown route provider %q", cfg.Provider)
	}
	if cache == nil {
		return next, nil
	}
	return routing.NewCachedProvider(next, cache, cfg.CacheTTL, logger), nil
}

// NewPublisher returns a Kafka publisher when brokers are configured and a
// log publisher otherwise.
func NewPublisher(cfg config.KafkaConfig, logger *slog.Logger) events.Publisher {
	if len(cfg.Brokers) == 0 {
		return events.NewLogPublisher(logger)
	}
	logger.Info("publishing events to kafka", "brokers", cfg.Brokers, "topic", cfg.Topic)
	return events.NewKafkaPublisher(cfg.Brokers, cfg.Topic)
}
