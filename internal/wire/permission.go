// Package wire holds the wire-level types this server would otherwise import from an external protocol module:
// the permission bitmask, gateway event envelopes, and API error codes. They are defined here, instead, because
// nothing elsewhere in this tree vendors that module.
package wire

// Permission is a bitmask of guild-level and channel-level capabilities. Only the low 24 bits are ever set; bits
// 24-63 are reserved and always zero.
type Permission uint64

// Permission bits, assigned by ascending position. The position itself has no behavioral meaning beyond role
// stacking order (lower position roles are overridden by higher ones at the role table level, not here).
// ManageServer plays the role spec §4.1 step 4 assigns to ADMINISTRATOR: its presence on a role short-circuits
// the resolver to the full mask, and it is one of the bits forbidden to @everyone.
const (
	ViewChannels Permission = 1 << iota
	SendMessages
	ReadMessageHistory
	ManageMessages
	AddReactions
	EmbedLinks
	AttachFiles
	MentionEveryone
	CreateInvites
	ManageInvites
	ManageChannels
	ManageCategories
	ManageRoles
	ManageNicknames
	ChangeNicknames
	AssignRoles
	KickMembers
	BanMembers
	TimeoutMembers
	ViewAuditLog
	VoiceConnect
	VoiceSpeak
	VoicePTT
	ManageServer
)

// AllPermissions is the full mask over the 24-bit permission vector spec §3 specifies; it is the value returned
// to owners and to any holder of ManageServer.
const AllPermissions Permission = (1 << 24) - 1

// ForbiddenEveryone is the set of bits the implicit @everyone role may never carry, masked on both read and
// write per spec §3 invariant (f).
const ForbiddenEveryone = MentionEveryone | ManageServer

// Has reports whether all bits of other are present in p.
func (p Permission) Has(other Permission) bool {
	return p&other == other
}

// Add returns p with the bits of other set.
func (p Permission) Add(other Permission) Permission {
	return p | other
}

// Remove returns p with the bits of other cleared.
func (p Permission) Remove(other Permission) Permission {
	return p &^ other
}

// Mask24 clamps p to the low 24 bits, discarding anything else a caller might have set.
func (p Permission) Mask24() Permission {
	return p & AllPermissions
}

// DMBaseline is the fixed permission set granted in DM/group-DM channels, which have no roles or overrides.
const DMBaseline = ViewChannels | SendMessages | ReadMessageHistory | AddReactions | AttachFiles
