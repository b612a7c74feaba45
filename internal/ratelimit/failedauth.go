package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Valkey key patterns:
//
//	authfail:{ip}  → fixed-window failure counter (STRING with TTL)
//	authblock:{ip} → cooldown flag (STRING with TTL), present means blocked

func authFailKey(ip string) string {
	return "authfail:" + ip
}

func authBlockKey(ip string) string {
	return "authblock:" + ip
}

// recordFailureScript atomically increments an IP's failure counter and, once the threshold is crossed, sets
// the cooldown flag. The counter and the flag carry independent TTLs so a burst of failures right at the
// window boundary can't extend the counter's life past its own window.
//
//	KEYS[1] = authfail:{ip}
//	KEYS[2] = authblock:{ip}
//	ARGV[1] = failure window TTL in seconds
//	ARGV[2] = failure threshold
//	ARGV[3] = cooldown TTL in seconds
var recordFailureScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
    redis.call('EXPIRE', KEYS[1], ARGV[1])
end
if count >= tonumber(ARGV[2]) then
    redis.call('SET', KEYS[2], '1', 'EX', ARGV[3])
end
return count
`)

// FailedAuthTracker opaquely blocks an IP for a cool-down once its login failures cross a threshold within a
// window, independent of the per-category request limiter.
type FailedAuthTracker struct {
	client    *redis.Client
	window    time.Duration
	threshold int
	cooldown  time.Duration
}

// NewFailedAuthTracker creates a tracker blocking an IP for cooldown once threshold failures land within window.
func NewFailedAuthTracker(client *redis.Client, window time.Duration, threshold int, cooldown time.Duration) *FailedAuthTracker {
	return &FailedAuthTracker{client: client, window: window, threshold: threshold, cooldown: cooldown}
}

// RecordFailure registers one login failure for ip, arming the cooldown flag once threshold is reached.
func (t *FailedAuthTracker) RecordFailure(ctx context.Context, ip string) error {
	windowSeconds := int64(t.window / time.Second)
	cooldownSeconds := int64(t.cooldown / time.Second)
	err := recordFailureScript.Run(ctx, t.client,
		[]string{authFailKey(ip), authBlockKey(ip)},
		windowSeconds, t.threshold, cooldownSeconds,
	).Err()
	if err != nil {
		return fmt.Errorf("ratelimit: record auth failure: %w", err)
	}
	return nil
}

// IsBlocked reports whether ip is currently under the failed-auth cooldown.
func (t *FailedAuthTracker) IsBlocked(ctx context.Context, ip string) (bool, error) {
	n, err := t.client.Exists(ctx, authBlockKey(ip)).Result()
	if err != nil {
		return false, fmt.Errorf("ratelimit: check auth block: %w", err)
	}
	return n > 0, nil
}

// ClearFailures resets ip's failure counter, called on a successful login.
func (t *FailedAuthTracker) ClearFailures(ctx context.Context, ip string) error {
	if err := t.client.Del(ctx, authFailKey(ip)).Err(); err != nil {
		return fmt.Errorf("ratelimit: clear auth failures: %w", err)
	}
	return nil
}
