package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrScript atomically increments a fixed-window counter, setting its expiry only on the first increment of the
// window so a late joiner doesn't reset the window's remaining TTL.
//
//	KEYS[1] = bucket key
//	ARGV[1] = window TTL in seconds
var incrScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
    redis.call('EXPIRE', KEYS[1], ARGV[1])
end
return count
`)

func bucketKey(category Category, principal string, windowStart int64) string {
	return fmt.Sprintf("ratelimit:%s:%s:%d", category, principal, windowStart)
}

// Limiter enforces the per-category fixed-window caps declared in its CategoryConfig map.
type Limiter struct {
	client  *redis.Client
	configs map[Category]CategoryConfig
}

// NewLimiter creates a Limiter over the given category configuration. Pass DefaultCategoryConfigs(), optionally
// overridden from internal/config, as configs.
func NewLimiter(client *redis.Client, configs map[Category]CategoryConfig) *Limiter {
	return &Limiter{client: client, configs: configs}
}

func principalFor(basis IdentifierBasis, ip, userID string) string {
	switch basis {
	case BasisIP:
		return ip
	case BasisUser:
		return userID
	case BasisIPAndUser:
		return ip + ":" + userID
	default:
		return ip
	}
}

// Allow atomically increments the counter for (category, principal, current window) and reports whether the
// request is within the category's cap. When not allowed, retryAfterSeconds is the time remaining until the
// current window rolls over.
func (l *Limiter) Allow(ctx context.Context, category Category, ip, userID string) (allowed bool, retryAfterSeconds int, err error) {
	cfg, ok := l.configs[category]
	if !ok {
		return false, 0, ErrUnknownCategory
	}

	windowSeconds := int64(cfg.Window / time.Second)
	if windowSeconds < 1 {
		windowSeconds = 1
	}
	now := time.Now().Unix()
	windowStart := now - now%windowSeconds

	principal := principalFor(cfg.Basis, ip, userID)
	key := bucketKey(category, principal, windowStart)

	count, err := incrScript.Run(ctx, l.client, []string{key}, windowSeconds).Int64()
	if err != nil {
		return false, 0, fmt.Errorf("ratelimit: increment %s: %w", category, err)
	}

	if count <= int64(cfg.Max) {
		return true, 0, nil
	}
	return false, int(windowStart + windowSeconds - now), nil
}
