package permission

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/uncord-chat/uncord-server/internal/wire"
)

// Resolver computes effective permissions for a user in a channel, per spec §4.1.
type Resolver struct {
	store Store
	cache Cache
	log   zerolog.Logger
}

// NewResolver creates a new permission resolver.
func NewResolver(store Store, cache Cache, logger zerolog.Logger) *Resolver {
	return &Resolver{store: store, cache: cache, log: logger}
}

// Resolve returns the effective permissions for a user in a channel, using the cache when available. On a cache
// miss, DM and group-DM channels short-circuit to the fixed DM baseline (spec §4.1 edge case c); that result is
// cached like any other.
func (r *Resolver) Resolve(ctx context.Context, userID, channelID uuid.UUID) (wire.Permission, error) {
	perm, ok, err := r.cache.Get(ctx, userID, channelID)
	if err != nil {
		r.log.Warn().Err(err).Msg("Permission cache get failed, falling through to compute")
	}
	if ok {
		return perm, nil
	}

	perm, err = r.compute(ctx, userID, channelID)
	if err != nil {
		return 0, err
	}

	if cacheErr := r.cache.Set(ctx, userID, channelID, perm); cacheErr != nil {
		r.log.Warn().Err(cacheErr).Msg("Permission cache set failed")
	}

	return perm, nil
}

// HasPermission checks whether a user has a specific permission in a channel.
func (r *Resolver) HasPermission(ctx context.Context, userID, channelID uuid.UUID, perm wire.Permission) (bool, error) {
	effective, err := r.Resolve(ctx, userID, channelID)
	if err != nil {
		return false, err
	}
	return effective.Has(perm), nil
}

// ResolveGuild returns the effective guild-level permissions for a user. Only steps 1 (owner bypass) and 2 (role
// union) apply; channel and category overrides are not relevant at the guild level.
func (r *Resolver) ResolveGuild(ctx context.Context, guildID, userID uuid.UUID) (wire.Permission, error) {
	isOwner, err := r.store.IsOwner(ctx, guildID, userID)
	if err != nil {
		return 0, fmt.Errorf("check owner: %w", err)
	}
	if isOwner {
		return wire.AllPermissions, nil
	}

	roleEntries, err := r.store.RolePermissions(ctx, guildID, userID)
	if err != nil {
		return 0, fmt.Errorf("get role permissions: %w", err)
	}

	var base wire.Permission
	for _, entry := range roleEntries {
		base = base.Add(entry.Permissions)
	}

	if base.Has(wire.ManageServer) {
		return wire.AllPermissions, nil
	}

	return base, nil
}

// HasGuildPermission checks whether a user has a specific guild-level permission.
func (r *Resolver) HasGuildPermission(ctx context.Context, guildID, userID uuid.UUID, perm wire.Permission) (bool, error) {
	effective, err := r.ResolveGuild(ctx, guildID, userID)
	if err != nil {
		return false, err
	}
	return effective.Has(perm), nil
}

// compute runs the permission algorithm of spec §4.1.
func (r *Resolver) compute(ctx context.Context, userID, channelID uuid.UUID) (wire.Permission, error) {
	chanInfo, err := r.store.ChannelInfo(ctx, channelID)
	if err != nil {
		return 0, fmt.Errorf("get channel info: %w", err)
	}

	// Edge case (c): DM/group-DM channels carry no guild, roles, or overrides.
	if chanInfo.GuildID == nil {
		return wire.DMBaseline, nil
	}
	guildID := *chanInfo.GuildID

	// Step 1: Owner bypass
	isOwner, err := r.store.IsOwner(ctx, guildID, userID)
	if err != nil {
		return 0, fmt.Errorf("check owner: %w", err)
	}
	if isOwner {
		return wire.AllPermissions, nil
	}

	// Step 2: Role union; the @everyone role always contributes as the base (store guarantees this).
	roleEntries, err := r.store.RolePermissions(ctx, guildID, userID)
	if err != nil {
		return 0, fmt.Errorf("get role permissions: %w", err)
	}

	var base wire.Permission
	roleIDs := make(map[uuid.UUID]struct{})
	for _, entry := range roleEntries {
		base = base.Add(entry.Permissions)
		roleIDs[entry.RoleID] = struct{}{}
	}

	// Step 4 (administrator short-circuit applies ahead of overrides): ManageServer grants the full mask
	// regardless of any channel or category override-deny (spec §4.1 step 4).
	if base.Has(wire.ManageServer) {
		return wire.AllPermissions, nil
	}

	// Step 3: Category overrides, applied before channel overrides so a channel-level override always wins
	// when both name the same principal.
	if chanInfo.CategoryID != nil {
		catOverrides, err := r.store.Overrides(ctx, TargetCategory, *chanInfo.CategoryID)
		if err != nil {
			return 0, fmt.Errorf("get category overrides: %w", err)
		}
		base = applyOverrides(base, catOverrides, roleIDs, userID)
	}

	// Step 3 continued: channel overrides.
	chanOverrides, err := r.store.Overrides(ctx, TargetChannel, channelID)
	if err != nil {
		return 0, fmt.Errorf("get channel overrides: %w", err)
	}
	base = applyOverrides(base, chanOverrides, roleIDs, userID)

	return base, nil
}

// applyOverrides applies permission overrides to a base bitfield. Role overrides for roles the user holds are merged
// first, then the user-specific override is applied on top. Deny always wins within an override scope.
func applyOverrides(base wire.Permission, overrides []Override, userRoles map[uuid.UUID]struct{}, userID uuid.UUID) wire.Permission {
	var roleAllow, roleDeny wire.Permission
	var userOverride *Override

	for i := range overrides {
		o := &overrides[i]
		if o.PrincipalType == PrincipalUser && o.PrincipalID == userID {
			userOverride = o
			continue
		}
		if o.PrincipalType == PrincipalRole {
			if _, held := userRoles[o.PrincipalID]; held {
				roleAllow = roleAllow.Add(o.Allow)
				roleDeny = roleDeny.Add(o.Deny)
			}
		}
	}

	base = base.Add(roleAllow)
	base = base.Remove(roleDeny)

	if userOverride != nil {
		base = base.Add(userOverride.Allow)
		base = base.Remove(userOverride.Deny)
	}

	return base
}
