package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/uncord-chat/uncord-server/internal/permission"
	"github.com/uncord-chat/uncord-server/internal/wire"
)

// ScopeAuthorizer decides whether a user may subscribe to a scope key (spec §4.6, "Authorization on publish").
// Rejected subscribes get an error frame, not a silent drop.
type ScopeAuthorizer interface {
	CanViewChannel(ctx context.Context, userID, channelID uuid.UUID) (bool, error)
	IsGuildMember(ctx context.Context, userID, guildID uuid.UUID) (bool, error)
	IsChannelParticipant(ctx context.Context, userID, channelID uuid.UUID) (bool, error)
}

// PGAuthorizer implements ScopeAuthorizer directly against Postgres. Guild/channel permission checks delegate to
// the permission resolver; DM and call participation are simple membership lookups the resolver has no opinion
// on, since DM channels carry no roles (spec §4.1 edge case c).
type PGAuthorizer struct {
	db       *pgxpool.Pool
	resolver *permission.Resolver
}

// NewPGAuthorizer creates a PGAuthorizer over the given pool and permission resolver.
func NewPGAuthorizer(db *pgxpool.Pool, resolver *permission.Resolver) *PGAuthorizer {
	return &PGAuthorizer{db: db, resolver: resolver}
}

func (a *PGAuthorizer) CanViewChannel(ctx context.Context, userID, channelID uuid.UUID) (bool, error) {
	return a.resolver.HasPermission(ctx, userID, channelID, wire.ViewChannels)
}

func (a *PGAuthorizer) IsGuildMember(ctx context.Context, userID, guildID uuid.UUID) (bool, error) {
	var exists bool
	err := a.db.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM members WHERE guild_id = $1 AND user_id = $2 AND status = 'active')
	`, guildID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check guild membership: %w", err)
	}
	return exists, nil
}

func (a *PGAuthorizer) IsChannelParticipant(ctx context.Context, userID, channelID uuid.UUID) (bool, error) {
	var exists bool
	err := a.db.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM channel_participants WHERE channel_id = $1 AND user_id = $2)
	`, channelID, userID).Scan(&exists)
	if err != nil && err != pgx.ErrNoRows {
		return false, fmt.Errorf("check channel participation: %w", err)
	}
	return exists, nil
}

// splitScope breaks a scope key like "channel:<uuid>" into its prefix and id at the first ":" (so
// "presence:global" splits into "presence" and "global"). A key with no ":" returns ok=false for the id half
// since there is nothing to parse.
func splitScope(scopeKey string) (prefix, id string, ok bool) {
	i := strings.IndexByte(scopeKey, ':')
	if i < 0 {
		return scopeKey, "", false
	}
	return scopeKey[:i], scopeKey[i+1:], true
}

// authorizeSubscribe checks whether userID may subscribe to scopeKey, dispatching on the scope's prefix per
// spec §4.6. presence:global and a user's own user:{id} scope never touch the database.
func authorizeSubscribe(ctx context.Context, az ScopeAuthorizer, userID uuid.UUID, scopeKey string) (bool, error) {
	if scopeKey == wire.ScopePresenceGlobal {
		return true, nil
	}

	prefix, rawID, ok := splitScope(scopeKey)
	if !ok {
		return false, nil
	}

	switch prefix {
	case "user":
		return rawID == userID.String(), nil
	case "channel", "voice":
		channelID, err := uuid.Parse(rawID)
		if err != nil {
			return false, nil
		}
		return az.CanViewChannel(ctx, userID, channelID)
	case "guild":
		guildID, err := uuid.Parse(rawID)
		if err != nil {
			return false, nil
		}
		return az.IsGuildMember(ctx, userID, guildID)
	case "dm", "call":
		channelID, err := uuid.Parse(rawID)
		if err != nil {
			return false, nil
		}
		return az.IsChannelParticipant(ctx, userID, channelID)
	default:
		return false, nil
	}
}
