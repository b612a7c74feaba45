package permission

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/uncord-chat/uncord-server/internal/wire"
)

// ErrOverrideNotFound is returned when a permission override does not exist.
var ErrOverrideNotFound = errors.New("permission override not found")

// Override represents a channel or category-level permission override.
type Override struct {
	PrincipalType PrincipalType
	PrincipalID   uuid.UUID
	Allow         wire.Permission
	Deny          wire.Permission
}

// ChannelInfo holds a channel's guild, its own ID, and optional parent category. GuildID is nil for DM and
// group-DM channels, which carry no roles or overrides (spec §4.1 edge case c).
type ChannelInfo struct {
	ID         uuid.UUID
	GuildID    *uuid.UUID
	CategoryID *uuid.UUID
}

// RolePermEntry pairs a role ID with its guild-level permissions bitfield.
type RolePermEntry struct {
	RoleID      uuid.UUID
	Permissions wire.Permission
}

// OverrideRow represents a full permission override row from the database.
type OverrideRow struct {
	ID            uuid.UUID
	TargetType    TargetType
	TargetID      uuid.UUID
	PrincipalType PrincipalType
	PrincipalID   uuid.UUID
	Allow         wire.Permission
	Deny          wire.Permission
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// OverrideStore provides write access to permission overrides.
type OverrideStore interface {
	Set(ctx context.Context, targetType TargetType, targetID uuid.UUID, principalType PrincipalType, principalID uuid.UUID, allow, deny wire.Permission) (*OverrideRow, error)
	Delete(ctx context.Context, targetType TargetType, targetID uuid.UUID, principalType PrincipalType, principalID uuid.UUID) error
}

// Store provides read access to permission-related data, scoped to a single guild.
type Store interface {
	IsOwner(ctx context.Context, guildID, userID uuid.UUID) (bool, error)
	RolePermissions(ctx context.Context, guildID, userID uuid.UUID) ([]RolePermEntry, error)
	ChannelInfo(ctx context.Context, channelID uuid.UUID) (ChannelInfo, error)
	Overrides(ctx context.Context, targetType TargetType, targetID uuid.UUID) ([]Override, error)
}
