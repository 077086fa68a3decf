package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/voiceassist/internal/clock"
	"github.com/smallbiznis/voiceassist/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const keyToolCall = "voiceassist:toolcall:%s:%s"

type ToolCallParams struct {
	fx.In

	Config config.Config
	Log    *zap.Logger
	Clock  clock.Clock
	Redis  *redis.Client `optional:"true"`
}

type Result struct {
	Allowed    bool
	RetryAfter time.Duration
}

// ToolCallLimiter throttles storefront tool calls per visitor and route.
// With redis configured the bucket is shared across replicas; otherwise
// each process keeps its own per-minute window.
type ToolCallLimiter struct {
	enabled bool
	log     *zap.Logger

	bucket *TokenBucket
	local  *WindowLimiter
}

func NewToolCallLimiter(p ToolCallParams) *ToolCallLimiter {
	cfg := p.Config.RateLimit
	l := &ToolCallLimiter{
		enabled: cfg.Enabled,
		log:     p.Log.Named("ratelimit.toolcall"),
	}
	if !l.enabled {
		return l
	}

	if cfg.ToolCallLocalPerMinute > 0 {
		l.local = NewWindowLimiter(cfg.ToolCallLocalPerMinute, time.Minute, p.Clock)
	}
	if p.Redis != nil {
		bucket, err := NewTokenBucket(p.Redis, cfg.ToolCallRate, cfg.ToolCallBurst)
		if err != nil {
			l.log.Warn("redis token bucket disabled", zap.Error(err))
		}
		l.bucket = bucket
	}
	return l
}

func (l *ToolCallLimiter) Enabled() bool {
	return l != nil && l.enabled && (l.bucket != nil || l.local != nil)
}

func (l *ToolCallLimiter) Allow(ctx context.Context, visitorKey, route string) Result {
	if !l.Enabled() {
		return Result{Allowed: true}
	}

	key := fmt.Sprintf(keyToolCall, strings.TrimSpace(visitorKey), strings.Trim(route, "/"))

	if l.bucket != nil {
		res, err := l.bucket.Take(ctx, key)
		if err == nil {
			return res
		}
		l.log.Warn("redis token bucket failed", zap.Error(err))
		if l.local == nil {
			return Result{Allowed: true}
		}
	}

	allowed, retryAfter := l.local.Allow(key)
	return Result{Allowed: allowed, RetryAfter: retryAfter}
}
