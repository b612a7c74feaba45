// Package ratelimit implements the category-keyed fixed-window rate limiter and the failed-login cooldown
// tracker described in spec §4.3, both backed by a single compare-and-increment Lua script per operation to
// avoid extra round-trips to Valkey.
package ratelimit

import "time"

// IdentifierBasis selects what a rate limit category's counters are keyed on.
type IdentifierBasis string

const (
	BasisIP        IdentifierBasis = "ip"
	BasisUser      IdentifierBasis = "user"
	BasisIPAndUser IdentifierBasis = "ip_and_user"
)

// Category names a rate-limited operation class.
type Category string

const (
	// CategoryAPI covers general authenticated REST traffic, keyed by user.
	CategoryAPI Category = "api"
	// CategoryAuth covers login/token-refresh attempts, keyed by IP (a user is not yet known to key on).
	CategoryAuth Category = "auth"
	// CategoryFilterTest is the category for trying an arbitrary content-filter regex, which is cheap to abuse for
	// ReDoS probing if left unbounded. No route in this repository applies it.
	CategoryFilterTest Category = "filter_test"
	// CategoryVoiceStats covers the per-connection voice stats ingest the gateway rate-limits before publishing.
	CategoryVoiceStats Category = "voice_stats"
	// CategoryGatewayFrames covers inbound WebSocket control frames (subscribe/unsubscribe/heartbeat), keyed by
	// user so one connection flooding frames cannot starve the hub's read loop for everyone else.
	CategoryGatewayFrames Category = "gateway_frames"
)

// CategoryConfig declares one category's window, cap, and identifier basis.
type CategoryConfig struct {
	Window time.Duration
	Max    int
	Basis  IdentifierBasis
}

// DefaultCategoryConfigs returns the built-in configuration for each category. Callers may override entries
// (e.g. from internal/config) before passing the map to NewLimiter.
func DefaultCategoryConfigs() map[Category]CategoryConfig {
	return map[Category]CategoryConfig{
		CategoryAPI:        {Window: 60 * time.Second, Max: 60, Basis: BasisUser},
		CategoryAuth:       {Window: 300 * time.Second, Max: 5, Basis: BasisIP},
		CategoryFilterTest: {Window: 60 * time.Second, Max: 20, Basis: BasisUser},
		CategoryVoiceStats:    {Window: 10 * time.Second, Max: 20, Basis: BasisIPAndUser},
		CategoryGatewayFrames: {Window: 10 * time.Second, Max: 40, Basis: BasisUser},
	}
}
