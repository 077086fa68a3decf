package ratelimit

import (
	"context"
	"errors"
	"math"
	"time"

	redis "github.com/redis/go-redis/v9"
)

var ErrBucketMisconfigured = errors.New("token_bucket_misconfigured")

// Refills by elapsed redis time and answers {allowed, retry_after_ms}.
// Redis truncates Lua numbers on return, so the wait is computed here.
var takeTokenScript = redis.NewScript(`
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])

local t = redis.call("TIME")
local now = t[1] * 1000 + math.floor(t[2] / 1000)

local state = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = tonumber(state[1]) or burst
local ts = tonumber(state[2]) or now
if now > ts then
  tokens = math.min(burst, tokens + (now - ts) / 1000 * rate)
end

local allowed = 0
local wait = 0
if tokens >= 1 then
  allowed = 1
  tokens = tokens - 1
else
  wait = math.ceil((1 - tokens) / rate * 1000)
end

redis.call("HSET", KEYS[1], "tokens", tokens, "ts", now)
redis.call("PEXPIRE", KEYS[1], ttl)
return {allowed, wait}
`)

// TokenBucket is a redis bucket shared by every replica: rate tokens per
// second, up to burst.
type TokenBucket struct {
	client *redis.Client
	rate   float64
	burst  int
	ttl    time.Duration
}

func NewTokenBucket(client *redis.Client, rate float64, burst int) (*TokenBucket, error) {
	if client == nil || rate <= 0 || burst <= 0 {
		return nil, ErrBucketMisconfigured
	}
	// idle keys expire once a full bucket would have refilled twice
	ttl := time.Duration(math.Ceil(2*float64(burst)/rate)) * time.Second
	if ttl < time.Second {
		ttl = time.Second
	}
	return &TokenBucket{client: client, rate: rate, burst: burst, ttl: ttl}, nil
}

func (b *TokenBucket) Take(ctx context.Context, key string) (Result, error) {
	reply, err := takeTokenScript.Run(ctx, b.client, []string{key}, b.rate, b.burst, b.ttl.Milliseconds()).Int64Slice()
	if err != nil {
		return Result{}, err
	}
	if len(reply) != 2 {
		return Result{}, errors.New("token bucket: unexpected script reply")
	}
	return Result{
		Allowed:    reply[0] == 1,
		RetryAfter: time.Duration(reply[1]) * time.Millisecond,
	}, nil
}
