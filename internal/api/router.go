// Package api is the thin HTTP facade over the archive orchestrator.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/media-archiver/internal/archiver"
	"github.com/jonesrussell/media-archiver/internal/auth"
	"github.com/jonesrussell/media-archiver/internal/config"
	"github.com/jonesrussell/media-archiver/internal/logger"
	"github.com/jonesrussell/media-archiver/internal/manifest"
)

const (
	healthStatusHealthy  = "healthy"
	healthStatusDegraded = "degraded"
	healthCheckTimeout   = 2 * time.Second
	serviceVersion       = "1.0.0"
)

// Router holds the API dependencies
type Router struct {
	service     *archiver.Service
	store       *manifest.Store
	redisClient *redis.Client
	cfg         *config.Config
	logger      logger.Logger
}

// NewRouter creates a new API router. redisClient may be nil when the URL
// cache is not configured.
func NewRouter(service *archiver.Service, store *manifest.Store, redisClient *redis.Client, cfg *config.Config, log logger.Logger) *Router {
	return &Router{
		service:     service,
		store:       store,
		redisClient: redisClient,
		cfg:         cfg,
		logger:      log,
	}
}

// Engine builds the gin engine with middleware and all routes.
func (r *Router) Engine() *gin.Engine {
	if !r.cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger(r.logger))
	engine.Use(corsMiddleware(r.cfg.Server.CORSOrigins))

	// Public endpoints
	engine.GET("/health", r.healthCheck)
	engine.GET("/health/ready", r.readyCheck)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 routes, bearer-token protected
	v1 := engine.Group("/api/v1")
	v1.Use(auth.Middleware(r.cfg.Auth.APIToken, r.cfg.Auth.JWTSecret, r.logger))

	archive := v1.Group("/archive")
	archive.POST("", r.archiveFile)
	archive.GET("/search", r.searchTag) // More specific route before :hash
	archive.GET("/:hash", r.rehydrate)
	archive.GET("/:hash/record", r.getRecord)
	archive.PUT("/:hash/tags", r.updateTags)

	return engine
}

// Server wraps the engine in an http.Server with the configured timeouts.
func (r *Router) Server() *http.Server {
	return &http.Server{
		Addr:         r.cfg.Server.Address,
		Handler:      r.Engine(),
		ReadTimeout:  r.cfg.Server.ReadTimeout,
		WriteTimeout: r.cfg.Server.WriteTimeout,
	}
}

// healthCheck returns the service health status
func (r *Router) healthCheck(c *gin.Context) {
	health := gin.H{
		"status":  healthStatusHealthy,
		"service": "media-archiver",
		"version": serviceVersion,
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	manifestConnected := true
	if err := r.store.Ping(ctx); err != nil {
		manifestConnected = false
		health["status"] = healthStatusDegraded
	}
	health["manifest"] = gin.H{
		"connected": manifestConnected,
	}

	if r.redisClient != nil {
		redisConnected := r.redisClient.Ping(ctx).Err() == nil
		health["redis"] = gin.H{
			"connected": redisConnected,
		}
		if !redisConnected && health["status"] == healthStatusHealthy {
			health["status"] = healthStatusDegraded
		}
	}

	c.JSON(http.StatusOK, health)
}

// readyCheck reports whether the service can accept traffic; readiness
// requires a reachable manifest store.
func (r *Router) readyCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	if err := r.store.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"ready": false,
			"error": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ready": true})
}
