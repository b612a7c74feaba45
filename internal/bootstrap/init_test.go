package bootstrap

import (
	"testing"

	"github.com/uncord-chat/uncord-server/internal/wire"
)

func TestDefaultEveryonePermissions(t *testing.T) {
	// Permissions that MUST be set on @everyone
	required := []struct {
		perm wire.Permission
		name string
	}{
		{wire.ViewChannels, "ViewChannels"},
		{wire.SendMessages, "SendMessages"},
		{wire.ReadMessageHistory, "ReadMessageHistory"},
		{wire.AddReactions, "AddReactions"},
		{wire.CreateInvites, "CreateInvites"},
		{wire.ChangeNicknames, "ChangeNicknames"},
		{wire.VoiceConnect, "VoiceConnect"},
		{wire.VoiceSpeak, "VoiceSpeak"},
		{wire.VoicePTT, "VoicePTT"},
	}

	for _, tt := range required {
		if !DefaultEveryonePermissions.Has(tt.perm) {
			t.Errorf("DefaultEveryonePermissions missing %s", tt.name)
		}
	}

	// Privileged permissions that MUST NOT be set on @everyone
	forbidden := []struct {
		perm wire.Permission
		name string
	}{
		{wire.ManageChannels, "ManageChannels"},
		{wire.ManageRoles, "ManageRoles"},
		{wire.ManageServer, "ManageServer"},
		{wire.KickMembers, "KickMembers"},
		{wire.BanMembers, "BanMembers"},
		{wire.ManageMessages, "ManageMessages"},
		{wire.MentionEveryone, "MentionEveryone"},
		{wire.ViewAuditLog, "ViewAuditLog"},
	}

	for _, tt := range forbidden {
		if DefaultEveryonePermissions.Has(tt.perm) {
			t.Errorf("DefaultEveryonePermissions should not include %s", tt.name)
		}
	}
}
