// Package http assembles the gin engine and server of the ChemMap API.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/ChemMap/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ChemMap/internal/interfaces/http/handlers"
	"github.com/turtacn/ChemMap/internal/interfaces/http/middleware"
	"github.com/turtacn/ChemMap/pkg/errors"
)

// RouterConfig aggregates all handler and middleware dependencies required
// to construct the route tree. Nil handlers leave their routes unmounted.
type RouterConfig struct {
	// Handlers
	MappingHandler    *handlers.MappingHandler
	VocabularyHandler *handlers.VocabularyHandler
	HealthHandler     *handlers.HealthHandler

	// Middleware
	CORS        *middleware.CORSConfig
	Logging     middleware.LoggingConfig
	RateLimiter middleware.RateLimiter
	RateLimit   middleware.RateLimitConfig

	// Infrastructure
	Logger         logging.Logger
	HTTPMetrics    middleware.HTTPObserver
	MetricsHandler http.Handler
	MetricsPath    string
	MaxBodySize    int64
}

// NewRouter builds the gin engine: global middleware, public health and
// metrics endpoints, and the /api/v1 groups.
func NewRouter(cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID())
	if cfg.CORS != nil {
		r.Use(middleware.CORS(*cfg.CORS))
	}
	r.Use(middleware.RequestLogging(logger, cfg.Logging))
	if cfg.HTTPMetrics != nil {
		r.Use(middleware.Metrics(cfg.HTTPMetrics))
	}

	if cfg.HealthHandler != nil {
		cfg.HealthHandler.RegisterRoutes(r)
	}
	if cfg.MetricsHandler != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(cfg.MetricsHandler))
	}

	api := r.Group("/api/v1")
	if cfg.MaxBodySize > 0 {
		api.Use(limitBody(cfg.MaxBodySize))
	}
	if cfg.VocabularyHandler != nil {
		cfg.VocabularyHandler.RegisterRoutes(api)
	}
	if cfg.MappingHandler != nil {
		mappings := api.Group("")
		if cfg.RateLimiter != nil {
			mappings.Use(middleware.RateLimit(cfg.RateLimiter, cfg.RateLimit))
		}
		cfg.MappingHandler.RegisterRoutes(mappings)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, handlers.ErrorResponse{Code: string(errors.ErrCodeNotFound), Message: "route not found"})
	})
	return r
}

// limitBody caps request bodies; a decoder reading past n fails and the
// handler answers 400.
func limitBody(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		c.Next()
	}
}
