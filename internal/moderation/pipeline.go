// Package moderation implements the Moderation Pipeline (spec §4.9): the hook run on every guild-channel,
// unencrypted text ingress that checks the content filter, records what it did, and rewrites mass-mentions the
// author isn't allowed to make.
package moderation

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/uncord-chat/uncord-server/internal/filter"
	"github.com/uncord-chat/uncord-server/internal/wire"
)

// maxOriginalContentRunes bounds ModerationAction.original_content per spec §3's data-minimization note: keep
// enough to understand what triggered the action without retaining the full message.
const maxOriginalContentRunes = 200

// ErrBlocked is returned by Check when the filter engine's verdict for content is block; the caller should
// reject the write and surface a user-facing reason rather than persisting the message.
var ErrBlocked = fmt.Errorf("moderation: message blocked by content filter")

// Outcome is the result of running the pipeline on one piece of content.
type Outcome struct {
	// RewrittenContent is content with disallowed @everyone/@here mentions zero-width-space-broken, or the
	// original content unchanged if no rewrite was needed.
	RewrittenContent string
	// Warned is true when the filter matched with action=warn; the caller publishes a warning event to the
	// author's user:{id} scope but still persists RewrittenContent.
	Warned bool
	Decision filter.Decision
}

// Pipeline wires the filter cache and the moderation action log into message ingress.
type Pipeline struct {
	filters *filter.Cache
	store   *Store
	log     zerolog.Logger
}

// NewPipeline creates a Pipeline over a filter cache and a moderation action store.
func NewPipeline(filters *filter.Cache, store *Store, logger zerolog.Logger) *Pipeline {
	return &Pipeline{filters: filters, store: store, log: logger}
}

// Check runs the full pipeline for one message: filter lookup, block/warn/log handling, mass-mention rewrite, and
// a moderation action record for any non-none verdict. Callers must call it only for guild channels with
// unencrypted content (spec §4.9's precondition); DM channels and encrypted messages never reach the filter.
func (p *Pipeline) Check(ctx context.Context, guildID, channelID, authorID uuid.UUID, content string, authorPerms wire.Permission) (Outcome, error) {
	engine, err := p.filters.GetOrBuild(ctx, guildID)
	if err != nil {
		return Outcome{}, fmt.Errorf("moderation: load filter engine: %w", err)
	}

	decision := engine.Check(content)
	rewritten := rewriteMassMentions(content, authorPerms)

	outcome := Outcome{RewrittenContent: rewritten, Decision: decision}

	switch decision.Action {
	case filter.ActionBlock:
		p.recordAction(ctx, guildID, channelID, authorID, decision, content)
		return outcome, ErrBlocked
	case filter.ActionWarn:
		outcome.Warned = true
		p.recordAction(ctx, guildID, channelID, authorID, decision, content)
	case filter.ActionLog:
		p.recordAction(ctx, guildID, channelID, authorID, decision, content)
	}

	return outcome, nil
}

func (p *Pipeline) recordAction(ctx context.Context, guildID, channelID, authorID uuid.UUID, decision filter.Decision, original string) {
	if p.store == nil {
		return
	}
	truncated := truncateAtRuneBoundary(original, maxOriginalContentRunes)

	var patternID *string
	if decision.PatternID != "" && decision.Category == filter.CategoryCustom {
		patternID = &decision.PatternID
	}

	if err := p.store.Record(ctx, guildID, channelID, authorID, decision.Category, patternID, decision.Action, truncated); err != nil {
		p.log.Warn().Err(err).Msg("failed to record moderation action")
	}
}

// truncateAtRuneBoundary truncates s to at most maxRunes runes, never splitting a multi-byte codepoint.
func truncateAtRuneBoundary(s string, maxRunes int) string {
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxRunes])
}

const zeroWidthSpace = "​"

// rewriteMassMentions inserts a zero-width space inside every literal "@everyone"/"@here" the author is not
// allowed to use, so downstream clients still render the text but do not trigger a notification. No error is
// raised; the message is simply defanged.
func rewriteMassMentions(content string, authorPerms wire.Permission) string {
	if authorPerms.Has(wire.MentionEveryone) {
		return content
	}
	content = strings.ReplaceAll(content, "@everyone", "@"+zeroWidthSpace+"everyone")
	content = strings.ReplaceAll(content, "@here", "@"+zeroWidthSpace+"here")
	return content
}
