// Package audit implements the Audit Logger (spec §4.10): an append-only record of admin and
// permission-relevant mutations, used for permission changes, role assignments, filter mutations,
// bans/suspensions, and page edits.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// TargetType names the kind of entity an audit entry's target_id refers to.
type TargetType string

const (
	TargetUser    TargetType = "user"
	TargetGuild   TargetType = "guild"
	TargetRole    TargetType = "role"
	TargetChannel TargetType = "channel"
	TargetFilter  TargetType = "filter"
	TargetPage    TargetType = "page"
)

// Action names a specific audited mutation.
type Action string

const (
	ActionPermissionOverrideSet    Action = "permission.override_set"
	ActionPermissionOverrideDelete Action = "permission.override_delete"
	ActionRoleAssigned             Action = "role.assigned"
	ActionRoleUnassigned           Action = "role.unassigned"
	ActionRoleCreated              Action = "role.created"
	ActionRoleUpdated              Action = "role.updated"
	ActionRoleDeleted              Action = "role.deleted"
	ActionFilterConfigUpdated      Action = "filter.config_updated"
	ActionFilterPatternCreated     Action = "filter.pattern_created"
	ActionFilterPatternDeleted     Action = "filter.pattern_deleted"
	ActionUserBanned               Action = "user.banned"
	ActionUserUnbanned             Action = "user.unbanned"
	ActionGuildSuspended           Action = "guild.suspended"
	ActionGuildUnsuspended         Action = "guild.unsuspended"
	ActionPageEdited               Action = "page.edited"
)

// Entry is one append-only audit record. BeforeHash/AfterHash are opaque digests of the entity's state before
// and after the mutation (nil for creations with no "before" or deletions with no "after"), kept instead of full
// before/after snapshots to bound row size and avoid duplicating sensitive entity content in the audit stream.
type Entry struct {
	ID         uuid.UUID
	ActorID    uuid.UUID
	TargetType TargetType
	TargetID   uuid.UUID
	Action     Action
	BeforeHash *string
	AfterHash  *string
	Timestamp  time.Time
	IP         string
	UserAgent  string
}
