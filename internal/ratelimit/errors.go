package ratelimit

import "errors"

var (
	// ErrUnknownCategory is returned when Allow is called with a category that has no CategoryConfig.
	ErrUnknownCategory = errors.New("ratelimit: unknown category")
	// ErrBlocked is returned by RecordFailure's caller-facing check when an IP is under an active cooldown.
	ErrBlocked = errors.New("ratelimit: ip is under cooldown")
)
