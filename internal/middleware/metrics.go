package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/taxdesk-api/internal/service"
)

const unmatchedRoute = "unmatched"

// Metrics tracks in-flight requests and records latency per route template.
// Requests that match no route share one label.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	if metricsSvc == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		done := metricsSvc.TrackInFlight()
		defer done()

		began := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(began))
	}
}
