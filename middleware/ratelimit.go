package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/seo-audit/backend/metrics"
	"github.com/seo-audit/backend/ratelimit"
	"github.com/seo-audit/backend/stats"
)

// RateLimit rejects callers that exceed the limiter's window with a 429
// carrying Retry-After. Allowed requests get the usual X-RateLimit-*
// headers. The caller identity is gin's ClientIP, which honors
// X-Forwarded-For from trusted proxies.
func RateLimit(limiter *ratelimit.Limiter, storage *stats.Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		decision := limiter.Check(c.ClientIP(), time.Now())
		metrics.RecordDecision(decision.Allowed)

		if !decision.Allowed {
			if storage != nil {
				storage.IncrementBlocked()
			}
			retryAfter := int(decision.RetryAfter.Seconds())
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded. Please try again later.",
				"retry_after": retryAfter,
			})
			c.Abort()
			return
		}

		c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		c.Header("X-RateLimit-Reset", strconv.Itoa(int(decision.ResetIn.Seconds())))
		c.Next()
	}
}
