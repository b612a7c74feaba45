// Package apimodel defines the JSON request and response shapes exchanged over the HTTP API. Internal packages
// expose ToModel conversions that produce these types; handlers never leak database-layer structs to clients.
package apimodel

// Member status values, matching the members table's status CHECK constraint.
const (
	MemberStatusPending  = "pending"
	MemberStatusActive   = "active"
	MemberStatusTimedOut = "timed_out"
)

// Channel type values, matching the channels table's type CHECK constraint.
const (
	ChannelTypeText    = "text"
	ChannelTypeVoice   = "voice"
	ChannelTypeDM      = "dm"
	ChannelTypeGroupDM = "group_dm"
)

// User is the public profile of an account.
type User struct {
	ID                   string  `json:"id"`
	Email                string  `json:"email"`
	Username             string  `json:"username"`
	DisplayName          *string `json:"display_name"`
	AvatarKey            *string `json:"avatar_key"`
	Pronouns             *string `json:"pronouns"`
	BannerKey            *string `json:"banner_key"`
	About                *string `json:"about"`
	ThemeColourPrimary   *int    `json:"theme_colour_primary"`
	ThemeColourSecondary *int    `json:"theme_colour_secondary"`
	MFAEnabled           bool    `json:"mfa_enabled"`
	EmailVerified        bool    `json:"email_verified"`
}

// MemberUser is the reduced user projection embedded in member and message payloads.
type MemberUser struct {
	ID          string  `json:"id"`
	Username    string  `json:"username"`
	DisplayName *string `json:"display_name"`
	AvatarKey   *string `json:"avatar_key"`
}

// Member is a guild membership row joined with its public user profile.
type Member struct {
	User         MemberUser `json:"user"`
	Nickname     *string    `json:"nickname"`
	Roles        []string   `json:"roles"`
	Status       string     `json:"status"`
	TimeoutUntil *string    `json:"timeout_until,omitempty"`
	JoinedAt     string     `json:"joined_at"`
}

// Ban is a server ban joined with the banned user's public profile.
type Ban struct {
	User      MemberUser `json:"user"`
	Reason    *string    `json:"reason"`
	BannedBy  *string    `json:"banned_by"`
	ExpiresAt *string    `json:"expires_at"`
	CreatedAt string     `json:"created_at"`
}

// Role is a server role.
type Role struct {
	ID          string  `json:"id"`
	GuildID     *string `json:"guild_id"`
	Name        string  `json:"name"`
	Colour      int     `json:"colour"`
	Position    int     `json:"position"`
	Hoist       bool    `json:"hoist"`
	Permissions uint64  `json:"permissions"`
	IsEveryone  bool    `json:"is_everyone"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

// Category groups channels in the channel list sidebar.
type Category struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Position  int    `json:"position"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// Channel is a text, voice, DM, or group-DM channel.
type Channel struct {
	ID              string  `json:"id"`
	GuildID         *string `json:"guild_id"`
	CategoryID      *string `json:"category_id"`
	Name            string  `json:"name"`
	Type            string  `json:"type"`
	Topic           string  `json:"topic"`
	Position        int     `json:"position"`
	SlowmodeSeconds int     `json:"slowmode_seconds"`
	NSFW            bool    `json:"nsfw"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
}

// ChannelDeleteData is the gateway payload published when a channel is deleted.
type ChannelDeleteData struct {
	ID string `json:"id"`
}

// RoleDeleteData is the gateway payload published when a role is deleted.
type RoleDeleteData struct {
	ID string `json:"id"`
}

// MemberRemoveData is the gateway payload published when a member leaves, is kicked, or is banned.
type MemberRemoveData struct {
	UserID string `json:"user_id"`
}

// Attachment is a file attached to a message.
type Attachment struct {
	ID           string  `json:"id"`
	Filename     string  `json:"filename"`
	URL          string  `json:"url"`
	Size         int64   `json:"size"`
	ContentType  string  `json:"content_type"`
	Width        *int    `json:"width,omitempty"`
	Height       *int    `json:"height,omitempty"`
	ThumbnailURL *string `json:"thumbnail_url,omitempty"`
}

// Message is a channel message.
type Message struct {
	ID          string       `json:"id"`
	ChannelID   string       `json:"channel_id"`
	Author      MemberUser   `json:"author"`
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments"`
	ReplyToID   *string      `json:"reply_to_id"`
	Pinned      bool         `json:"pinned"`
	EditedAt    *string      `json:"edited_at"`
	CreatedAt   string       `json:"created_at"`
}

// MessageDeleteData is the gateway payload published when a message is deleted.
type MessageDeleteData struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
}

// Invite is a server invite.
type Invite struct {
	ID            string  `json:"id"`
	Code          string  `json:"code"`
	ChannelID     string  `json:"channel_id"`
	CreatorID     string  `json:"creator_id"`
	MaxUses       int     `json:"max_uses"`
	UseCount      int     `json:"use_count"`
	MaxAgeSeconds int     `json:"max_age_seconds"`
	ExpiresAt     *string `json:"expires_at,omitempty"`
	CreatedAt     string  `json:"created_at"`
}

// PublicServerInfo is the unauthenticated server summary returned at /server/info.
type PublicServerInfo struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	IconKey     *string `json:"icon_key"`
}

// ServerConfig is the full server configuration, visible to authenticated members.
type ServerConfig struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	IconKey     *string `json:"icon_key"`
	BannerKey   *string `json:"banner_key"`
	OwnerID     string  `json:"owner_id"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

// ResolvedPermissions is the computed permission bitfield for a user within a channel.
type ResolvedPermissions struct {
	Permissions int64 `json:"permissions"`
}

// PermissionOverride is a per-channel allow/deny override for a role or user.
type PermissionOverride struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	TargetID  string `json:"target_id"`
	Allow     int64  `json:"allow"`
	Deny      int64  `json:"deny"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// --- Request DTOs ---

// CreateChannelRequest is the body of POST /server/channels.
type CreateChannelRequest struct {
	Name            string  `json:"name"`
	Type            *string `json:"type"`
	CategoryID      *string `json:"category_id"`
	Topic           *string `json:"topic"`
	SlowmodeSeconds *int    `json:"slowmode_seconds"`
	NSFW            *bool   `json:"nsfw"`
}

// UpdateChannelRequest is the body of PATCH /channels/:channelID.
type UpdateChannelRequest struct {
	Name            *string `json:"name"`
	CategoryID      *string `json:"category_id"`
	Topic           *string `json:"topic"`
	Position        *int    `json:"position"`
	SlowmodeSeconds *int    `json:"slowmode_seconds"`
	NSFW            *bool   `json:"nsfw"`
}

// CreateCategoryRequest is the body of POST /server/categories.
type CreateCategoryRequest struct {
	Name string `json:"name"`
}

// UpdateCategoryRequest is the body of PATCH /categories/:categoryID.
type UpdateCategoryRequest struct {
	Name     *string `json:"name"`
	Position *int    `json:"position"`
}

// CreateRoleRequest is the body of POST /server/roles.
type CreateRoleRequest struct {
	Name        string  `json:"name"`
	Colour      *int    `json:"colour"`
	Permissions *uint64 `json:"permissions"`
	Hoist       *bool   `json:"hoist"`
}

// UpdateRoleRequest is the body of PATCH /server/roles/:roleID.
type UpdateRoleRequest struct {
	Name        *string `json:"name"`
	Colour      *int    `json:"colour"`
	Position    *int    `json:"position"`
	Permissions *uint64 `json:"permissions"`
	Hoist       *bool   `json:"hoist"`
}

// UpdateMemberRequest is the body of PATCH /members/:userID.
type UpdateMemberRequest struct {
	Nickname *string `json:"nickname"`
}

// BanMemberRequest is the body of PUT /members/:userID/ban.
type BanMemberRequest struct {
	Reason            *string `json:"reason"`
	ExpiresAt         *string `json:"expires_at"`
	DeleteMessageDays *int    `json:"delete_message_days"`
}

// TimeoutMemberRequest is the body of PUT /members/:userID/timeout.
type TimeoutMemberRequest struct {
	Until string `json:"until"`
}

// AssignRoleRequest is the body of PUT /members/:userID/roles/:roleID.
type AssignRoleRequest struct{}

// CreateMessageRequest is the body of POST /channels/:channelID/messages.
type CreateMessageRequest struct {
	Content       string   `json:"content"`
	AttachmentIDs []string `json:"attachment_ids"`
	ReplyToID     *string  `json:"reply_to_id"`
}

// UpdateMessageRequest is the body of PATCH /messages/:messageID.
type UpdateMessageRequest struct {
	Content string `json:"content"`
}

// UpdateServerConfigRequest is the body of PATCH /server.
type UpdateServerConfigRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	IconKey     *string `json:"icon_key"`
	BannerKey   *string `json:"banner_key"`
}

// UpdateUserRequest is the body of PATCH /users/@me.
type UpdateUserRequest struct {
	DisplayName          *string `json:"display_name"`
	AvatarKey            *string `json:"avatar_key"`
	Pronouns             *string `json:"pronouns"`
	BannerKey            *string `json:"banner_key"`
	About                *string `json:"about"`
	ThemeColourPrimary   *int    `json:"theme_colour_primary"`
	ThemeColourSecondary *int    `json:"theme_colour_secondary"`
}

// DeleteAccountRequest is the body of DELETE /users/@me.
type DeleteAccountRequest struct {
	Password string `json:"password"`
}

// MFAEnableRequest is the body of POST /users/@me/mfa/enable.
type MFAEnableRequest struct {
	Password string `json:"password"`
}

// MFASetupResponse is returned from POST /users/@me/mfa/enable.
type MFASetupResponse struct {
	Secret string `json:"secret"`
	URI    string `json:"uri"`
}

// MFAConfirmRequest is the body of POST /users/@me/mfa/confirm.
type MFAConfirmRequest struct {
	Code string `json:"code"`
}

// MFAConfirmResponse is returned from POST /users/@me/mfa/confirm.
type MFAConfirmResponse struct {
	RecoveryCodes []string `json:"recovery_codes"`
}

// MFADisableRequest is the body of POST /users/@me/mfa/disable.
type MFADisableRequest struct {
	Password string `json:"password"`
	Code     string `json:"code"`
}

// MFARegenerateCodesRequest is the body of POST /users/@me/mfa/recovery-codes.
type MFARegenerateCodesRequest struct {
	Password string `json:"password"`
}

// MFARegenerateCodesResponse is returned from POST /users/@me/mfa/recovery-codes.
type MFARegenerateCodesResponse struct {
	RecoveryCodes []string `json:"recovery_codes"`
}

// MessageResponse is a generic human-readable acknowledgement response.
type MessageResponse struct {
	Message string `json:"message"`
}

// SetOverrideRequest is the body of PUT /channels/:channelID/overrides/:targetID.
type SetOverrideRequest struct {
	Type  string `json:"type"`
	Allow int64  `json:"allow"`
	Deny  int64  `json:"deny"`
}

// CreateInviteRequest is the body of POST /server/invites.
type CreateInviteRequest struct {
	ChannelID     string `json:"channel_id"`
	MaxUses       int    `json:"max_uses"`
	MaxAgeSeconds int    `json:"max_age_seconds"`
}

// TypingStartData is the gateway payload published when a user starts typing.
type TypingStartData struct {
	ChannelID string `json:"channel_id"`
	UserID    string `json:"user_id"`
	Timestamp string `json:"timestamp"`
}

// TypingStopData is the gateway payload published when a user stops typing.
type TypingStopData struct {
	ChannelID string `json:"channel_id"`
	UserID    string `json:"user_id"`
}
