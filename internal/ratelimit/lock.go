package ratelimit

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const lockKeyPrefix = "voiceassist:lock:"

var (
	ErrLockUnavailable = errors.New("lock_unavailable")
	ErrLockHeld        = errors.New("lock_held")
)

// compare-and-delete so a lease that outlived its ttl cannot drop the
// next holder's key.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker hands out leases that keep background jobs to one replica.
type Locker struct {
	client *redis.Client
}

func NewLocker(client *redis.Client) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{client: client}
}

// Lease is a held lock. Release is safe to call more than once.
type Lease struct {
	client *redis.Client
	key    string
	token  string
}

// Acquire takes the named job lock for ttl, or returns ErrLockHeld.
func (l *Locker) Acquire(ctx context.Context, job string, ttl time.Duration) (*Lease, error) {
	if l == nil || l.client == nil {
		return nil, ErrLockUnavailable
	}
	job = strings.TrimSpace(job)
	if job == "" || ttl <= 0 {
		return nil, ErrLockUnavailable
	}

	key := lockKeyPrefix + job
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLockHeld
	}
	return &Lease{client: l.client, key: key, token: token}, nil
}

func (l *Lease) Release(ctx context.Context) error {
	if l == nil || l.token == "" {
		return nil
	}
	token := l.token
	l.token = ""
	return releaseScript.Run(ctx, l.client, []string{l.key}, token).Err()
}
