package app

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/assassinoNz/CarShare-Server/internal/handler"
	"github.com/assassinoNz/CarShare-Server/internal/middleware"
	"github.com/assassinoNz/CarShare-Server/internal/redis"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	HostedTripHandler    *handler.HostedTripHandler
	RequestedTripHandler *handler.RequestedTripHandler
	HandshakeHandler     *handler.HandshakeHandler
	IdempotencyStore     redis.IdempotencyStoreInterface
	NewRelicApp          *newrelic.Application
	Logger               *slog.Logger
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}
	router.Use(middleware.RequestLogger(deps.Logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	v1.Use(middleware.CallerIdentity(), middleware.NewRelicAttributes())
	if deps.IdempotencyStore != nil {
		v1.Use(middleware.Idempotency(deps.IdempotencyStore, deps.Logger))
	}
	{
		hosted := v1.Group("/hosted-trips")
		{
			hosted.POST("", deps.HostedTripHandler.Create)
			hosted.GET("/:id", deps.HostedTripHandler.Get)
			hosted.POST("/:id/state", deps.HostedTripHandler.UpdateState)
			hosted.GET("/:id/matches", deps.HostedTripHandler.FindMatches)
			hosted.GET("/:id/matches/:requestedTripId", deps.HostedTripHandler.MatchDetail)
		}

		requested := v1.Group("/requested-trips")
		{
			requested.POST("", deps.RequestedTripHandler.Create)
			requested.GET("/:id", deps.RequestedTripHandler.Get)
		}

		handshakes := v1.Group("/handshakes")
		{
			handshakes.POST("", deps.HandshakeHandler.Init)
			handshakes.GET("/:id", deps.HandshakeHandler.Get)
			handshakes.POST("/:id/transitions", deps.HandshakeHandler.Transition)
		}
	}

	return router
}
