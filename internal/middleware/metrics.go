package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/flightline-dev/flightline-api/internal/service"
)

// Metrics times every request and records it against the route pattern,
// falling back to the raw URL path for unmatched routes.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	if metricsSvc == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
