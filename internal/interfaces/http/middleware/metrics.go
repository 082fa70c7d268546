package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

// HTTPObserver records served requests. *prometheus.MappingMetrics
// satisfies it.
type HTTPObserver interface {
	ObserveHTTP(method, path string, status int, took time.Duration)
}

// Metrics observes every request under its route template so that
// /vocabulary/entities/:id is one series, not one per ID. Unrouted requests
// are recorded under "unmatched".
func Metrics(o HTTPObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		o.ObserveHTTP(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
