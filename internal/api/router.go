package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/linkdeck/placement-engine/internal/config"
	"github.com/linkdeck/placement-engine/internal/logger"
	"github.com/linkdeck/placement-engine/internal/metrics"
	"github.com/linkdeck/placement-engine/internal/scheduler"
	"github.com/linkdeck/placement-engine/internal/telemetry"
)

const (
	healthStatusHealthy  = "healthy"
	healthStatusDegraded = "degraded"
	healthCheckTimeout   = 2 * time.Second
	serviceVersion       = "1.0.0"
)

// Pinger abstracts the database connection health probe
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Router holds the API dependencies
type Router struct {
	scheduler   *scheduler.Scheduler
	metrics     *metrics.Tracker
	telemetry   *telemetry.Provider
	db          Pinger
	redisClient *redis.Client
	cfg         *config.Config
	logger      logger.Logger
}

// NewRouter creates a new API router
func NewRouter(
	sched *scheduler.Scheduler,
	tracker *metrics.Tracker,
	provider *telemetry.Provider,
	db Pinger,
	redisClient *redis.Client,
	cfg *config.Config,
	log logger.Logger,
) *Router {
	if provider == nil {
		provider = telemetry.NewProvider()
	}
	return &Router{
		scheduler:   sched,
		metrics:     tracker,
		telemetry:   provider,
		db:          db,
		redisClient: redisClient,
		cfg:         cfg,
		logger:      log,
	}
}

// SetupRoutes builds the gin engine with middleware and all routes
func (r *Router) SetupRoutes() *gin.Engine {
	if !r.cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware(r.cfg.Server.CORSOrigins))

	router.GET("/health", r.healthCheck)
	router.GET("/stats", r.getStats)
	router.GET("/metrics", gin.WrapH(r.telemetry.Handler()))
	router.POST("/place", r.placeOpportunity)
	router.POST("/schedule", r.scheduleUser)

	return router
}

// healthCheck returns the service health status
// GET /health
func (r *Router) healthCheck(c *gin.Context) {
	health := gin.H{
		"status":  healthStatusHealthy,
		"service": "placement-engine",
		"version": serviceVersion,
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	dbConnected := true
	if err := r.db.PingContext(ctx); err != nil {
		dbConnected = false
		health["status"] = healthStatusDegraded
	}
	health["database"] = gin.H{"connected": dbConnected}

	redisConnected := true
	if err := r.redisClient.Ping(ctx).Err(); err != nil {
		redisConnected = false
		if health["status"] == healthStatusHealthy {
			health["status"] = healthStatusDegraded
		}
	}
	health["redis"] = gin.H{"connected": redisConnected}

	c.JSON(http.StatusOK, health)
}

// getStats returns the run counters
// GET /stats
func (r *Router) getStats(c *gin.Context) {
	stats, err := r.metrics.Stats(c.Request.Context())
	if err != nil {
		r.logger.Error("Failed to get stats",
			logger.Error(err),
			logger.String("path", c.Request.URL.Path),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to retrieve statistics",
		})
		return
	}
	c.JSON(http.StatusOK, stats)
}
