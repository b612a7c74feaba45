package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, rdb
}

func TestAllowWithinCap(t *testing.T) {
	t.Parallel()
	_, rdb := setupMiniredis(t)
	limiter := NewLimiter(rdb, map[Category]CategoryConfig{
		CategoryAPI: {Window: time.Minute, Max: 3, Basis: BasisUser},
	})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, _, err := limiter.Allow(ctx, CategoryAPI, "1.2.3.4", "user-1")
		if err != nil {
			t.Fatalf("Allow() error = %v", err)
		}
		if !allowed {
			t.Fatalf("Allow() call %d = false, want true (under cap)", i+1)
		}
	}
}

func TestAllowRejectsOverCap(t *testing.T) {
	t.Parallel()
	_, rdb := setupMiniredis(t)
	limiter := NewLimiter(rdb, map[Category]CategoryConfig{
		CategoryAPI: {Window: time.Minute, Max: 2, Basis: BasisUser},
	})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if allowed, _, err := limiter.Allow(ctx, CategoryAPI, "1.2.3.4", "user-1"); err != nil || !allowed {
			t.Fatalf("Allow() call %d = (%v, err=%v), want (true, nil)", i+1, allowed, err)
		}
	}

	allowed, retryAfter, err := limiter.Allow(ctx, CategoryAPI, "1.2.3.4", "user-1")
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if allowed {
		t.Fatal("Allow() = true, want false once cap is exceeded")
	}
	if retryAfter <= 0 {
		t.Errorf("retryAfterSeconds = %d, want > 0", retryAfter)
	}
}

func TestAllowUnknownCategory(t *testing.T) {
	t.Parallel()
	_, rdb := setupMiniredis(t)
	limiter := NewLimiter(rdb, DefaultCategoryConfigs())

	_, _, err := limiter.Allow(context.Background(), Category("nonexistent"), "1.2.3.4", "user-1")
	if err != ErrUnknownCategory {
		t.Errorf("err = %v, want ErrUnknownCategory", err)
	}
}

func TestAllowDistinctPrincipalsDoNotShareBucket(t *testing.T) {
	t.Parallel()
	_, rdb := setupMiniredis(t)
	limiter := NewLimiter(rdb, map[Category]CategoryConfig{
		CategoryAPI: {Window: time.Minute, Max: 1, Basis: BasisUser},
	})
	ctx := context.Background()

	if allowed, _, err := limiter.Allow(ctx, CategoryAPI, "1.2.3.4", "user-1"); err != nil || !allowed {
		t.Fatalf("Allow() for user-1 = (%v, err=%v), want (true, nil)", allowed, err)
	}
	if allowed, _, err := limiter.Allow(ctx, CategoryAPI, "1.2.3.4", "user-2"); err != nil || !allowed {
		t.Fatalf("Allow() for user-2 = (%v, err=%v), want (true, nil) (distinct principal, own bucket)", allowed, err)
	}
}

func TestAllowIPAndUserBasisCombinesBoth(t *testing.T) {
	t.Parallel()
	_, rdb := setupMiniredis(t)
	limiter := NewLimiter(rdb, map[Category]CategoryConfig{
		CategoryVoiceStats: {Window: time.Minute, Max: 1, Basis: BasisIPAndUser},
	})
	ctx := context.Background()

	if allowed, _, err := limiter.Allow(ctx, CategoryVoiceStats, "1.2.3.4", "user-1"); err != nil || !allowed {
		t.Fatalf("first Allow() = (%v, err=%v), want (true, nil)", allowed, err)
	}
	// Same IP, different user: distinct bucket under ip_and_user basis.
	if allowed, _, err := limiter.Allow(ctx, CategoryVoiceStats, "1.2.3.4", "user-2"); err != nil || !allowed {
		t.Fatalf("Allow() with different user on same IP = (%v, err=%v), want (true, nil)", allowed, err)
	}
	// Same IP and user again: shares the bucket from the first call, now over cap.
	if allowed, _, err := limiter.Allow(ctx, CategoryVoiceStats, "1.2.3.4", "user-1"); err != nil || allowed {
		t.Fatalf("Allow() repeating (ip, user) pair = (%v, err=%v), want (false, nil)", allowed, err)
	}
}

func TestAllowWindowResetsCounterAfterExpiry(t *testing.T) {
	t.Parallel()
	_, rdb := setupMiniredis(t)
	limiter := NewLimiter(rdb, map[Category]CategoryConfig{
		CategoryAPI: {Window: time.Second, Max: 1, Basis: BasisUser},
	})
	ctx := context.Background()

	if allowed, _, err := limiter.Allow(ctx, CategoryAPI, "1.2.3.4", "user-1"); err != nil || !allowed {
		t.Fatalf("Allow() call 1 = (%v, err=%v), want (true, nil)", allowed, err)
	}
	if allowed, _, err := limiter.Allow(ctx, CategoryAPI, "1.2.3.4", "user-1"); err != nil || allowed {
		t.Fatalf("Allow() call 2 = (%v, err=%v), want (false, nil) (within same window)", allowed, err)
	}

	// The window boundary is derived from wall-clock time embedded in the bucket key, not a Redis TTL, so the
	// only way to observe a rollover in a test is to wait for real time to cross it.
	time.Sleep(1100 * time.Millisecond)

	if allowed, _, err := limiter.Allow(ctx, CategoryAPI, "1.2.3.4", "user-1"); err != nil || !allowed {
		t.Fatalf("Allow() after window rollover = (%v, err=%v), want (true, nil)", allowed, err)
	}
}
