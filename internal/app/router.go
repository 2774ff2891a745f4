package app

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"bahon/internal/handler"
	"bahon/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	VehicleHandler *handler.VehicleHandler
	RiderHandler   *handler.RiderHandler
	FareHandler    *handler.FareHandler
	RedisClient    *redis.Client
	NewRelicApp    *newrelic.Application
	Logger         logrus.FieldLogger
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(requestLogger(deps.Logger))
	router.Use(middleware.CORSMiddleware())

	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	if deps.RedisClient != nil {
		router.Use(middleware.IdempotencyMiddleware(deps.RedisClient, deps.Logger))
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/v1")
	{
		vehicles := v1.Group("/vehicles/:id")
		{
			vehicles.POST("/locations", deps.VehicleHandler.AppendLocation)
			vehicles.GET("/locations", deps.VehicleHandler.ListLocations)
			vehicles.GET("/locations/latest", deps.VehicleHandler.GetLatestLocation)
			vehicles.GET("/locations/:seq", deps.VehicleHandler.GetLocation)
			vehicles.POST("/scans", deps.VehicleHandler.Scan)
		}

		riders := v1.Group("/riders/:id")
		{
			riders.GET("/account", deps.RiderHandler.GetAccount)
			riders.GET("/journeys", deps.RiderHandler.ListJourneys)
		}

		v1.GET("/fare", deps.FareHandler.GetFare)
	}

	return router
}

// requestLogger logs one structured line per request.
func requestLogger(logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logger.WithFields(logrus.Fields{
			"method":      c.Request.Method,
			"path":        c.FullPath(),
			"status":      c.Writer.Status(),
			"duration_ms": time.Now().Sub(start).Milliseconds(),
			"client_ip":   c.ClientIP(),
		})
		if len(c.Errors) > 0 {
			entry = entry.WithField("errors", c.Errors.String())
		}

		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			entry.Error("Request failed")
		case c.Writer.Status() >= http.StatusBadRequest:
			entry.Warn("Request rejected")
		default:
			entry.Info("Request handled")
		}
	}
}
