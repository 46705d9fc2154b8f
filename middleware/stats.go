package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/seo-audit/backend/stats"
)

// AuditTargetKey is the gin context key under which the audit handler
// stores the target URL it audited, so Tracking can attribute the
// request to that page rather than to our own API path.
const AuditTargetKey = "auditTarget"

// Tracking records visitors and per-audit timings. Statistics are
// persisted asynchronously every hundred requests so the hot path never
// waits on disk.
func Tracking(statistics *stats.Statistics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		statistics.TrackVisitor(c.ClientIP())

		c.Next()

		if c.Request.URL.Path == "/api/audit" && c.Request.Method == http.MethodPost {
			loadTime := float64(time.Since(start).Milliseconds())
			statistics.TrackAudit(c.GetString(AuditTargetKey), loadTime, c.Writer.Status() >= 400)

			if statistics.AuditCount()%100 == 0 {
				go statistics.Save()
			}
		}
	}
}
