// Package filter implements the per-guild content filter engine: literal keyword matching via Aho-Corasick,
// regex matching with a ReDoS compile/eval budget, and a process-local cache keyed by guild with a generation
// counter for safe concurrent invalidation.
package filter

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Sentinel errors for the filter package.
var (
	ErrPatternNotFound  = errors.New("filter pattern not found")
	ErrPatternTooLong   = errors.New("pattern exceeds the maximum length")
	ErrTooManyPatterns  = errors.New("guild has reached the maximum number of custom patterns")
	ErrPatternTooSlow   = errors.New("pattern exceeds the compile or evaluation time budget")
	ErrTestInputTooLong = errors.New("test input exceeds the maximum length")
	ErrUnknownCategory  = errors.New("unknown filter category")
)

const (
	// MaxPatternsPerGuild is the maximum number of custom FilterPattern rows a guild may hold.
	MaxPatternsPerGuild = 100

	// MaxPatternChars is the maximum length of a single pattern's text.
	MaxPatternChars = 500

	// MaxTestInputChars bounds the size of a one-off sample submitted to the "test a pattern" endpoint.
	MaxTestInputChars = 4000
)

// Category identifies a filter rule grouping. The four built-in categories carry server-maintained keyword
// lists; Custom holds only guild-supplied FilterPattern rows.
type Category string

const (
	CategorySlurs      Category = "slurs"
	CategoryHateSpeech Category = "hate_speech"
	CategorySpam       Category = "spam"
	CategoryAbusive    Category = "abusive"
	CategoryCustom     Category = "custom"
)

// Categories lists every valid Category, built-in and custom.
var Categories = []Category{CategorySlurs, CategoryHateSpeech, CategorySpam, CategoryAbusive, CategoryCustom}

func (c Category) valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Action is the outcome a matching pattern produces. Severity ordering is Block > Warn > Log.
type Action string

const (
	ActionBlock Action = "block"
	ActionWarn  Action = "warn"
	ActionLog   Action = "log"
	// ActionNone is only ever returned in a Decision, never stored as configuration.
	ActionNone Action = "none"
)

func (a Action) precedence() int {
	switch a {
	case ActionBlock:
		return 2
	case ActionWarn:
		return 1
	case ActionLog:
		return 0
	default:
		return -1
	}
}

// FilterConfig is a per-guild, per-category toggle: whether the category is enforced and what action a match
// produces.
type FilterConfig struct {
	GuildID  uuid.UUID
	Category Category
	Enabled  bool
	Action   Action
}

// FilterPattern is a guild-supplied literal or regex rule, always filed under CategoryCustom.
type FilterPattern struct {
	ID        uuid.UUID
	GuildID   uuid.UUID
	Text      string
	IsRegex   bool
	Enabled   bool
	CreatorID uuid.UUID
	CreatedAt time.Time
}

// Decision is the result of checking a piece of text against a compiled engine.
type Decision struct {
	Matched   bool
	Action    Action
	PatternID string
	Category  Category
}
