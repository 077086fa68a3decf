package server

import (
	"math"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/voiceassist/internal/observability/logger"
	"go.uber.org/zap"
)

// ToolCallRateLimit throttles tool calls per visitor and route.
func (s *Server) ToolCallRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.toolLimiter == nil || !s.toolLimiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		endpoint := normalizeRateLimitEndpoint(c)
		visitor := visitorFrom(c)

		res := s.toolLimiter.Allow(ctx, visitor.Identity.Key(), endpoint)
		if res.Allowed {
			c.Next()
			return
		}

		retryAfter := int(math.Ceil(res.RetryAfter.Seconds()))
		if retryAfter < 1 {
			retryAfter = 1
		}
		logger.FromContext(ctx).Warn("tool call rate limit exceeded",
			zap.String("endpoint", endpoint),
			zap.Int("retry_after_seconds", retryAfter),
		)
		s.obsMetrics.RecordRateLimitDenied(ctx, endpoint)

		c.Header("Retry-After", strconv.Itoa(retryAfter))
		AbortWithError(c, ErrRateLimited)
	}
}

func normalizeRateLimitEndpoint(c *gin.Context) string {
	if c == nil {
		return "unknown"
	}
	endpoint := strings.TrimSpace(c.FullPath())
	if endpoint == "" {
		endpoint = strings.TrimSpace(c.Request.URL.Path)
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	return endpoint
}
