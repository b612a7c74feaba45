package moderation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/uncord-chat/uncord-server/internal/filter"
)

const actionColumns = "id, guild_id, channel_id, user_id, category, pattern_id, action, original_content, created_at"

// Action is one append-only moderation_actions row: what triggered the pipeline and what it did about it.
type Action struct {
	ID              uuid.UUID
	GuildID         uuid.UUID
	ChannelID       uuid.UUID
	UserID          uuid.UUID
	Category        filter.Category
	PatternID       *uuid.UUID
	FilterAction    filter.Action
	OriginalContent string
	CreatedAt       string
}

// Store persists moderation actions (spec §4.9/§3 ModerationAction), distinct from the admin-mutation audit log
// in internal/audit: this table carries the filter category/pattern/original-content fields a generic audit
// entry doesn't have room for.
type Store struct {
	db  *pgxpool.Pool
	log zerolog.Logger
}

// NewStore creates a new PostgreSQL-backed moderation action store.
func NewStore(db *pgxpool.Pool, logger zerolog.Logger) *Store {
	return &Store{db: db, log: logger}
}

// Record appends a moderation action. patternID is nil for built-in (non-custom) category matches.
func (s *Store) Record(ctx context.Context, guildID, channelID, userID uuid.UUID, category filter.Category, patternID *string, action filter.Action, originalContent string) error {
	var patternUUID *uuid.UUID
	if patternID != nil && *patternID != "" {
		id, err := uuid.Parse(*patternID)
		if err != nil {
			return fmt.Errorf("parse pattern id: %w", err)
		}
		patternUUID = &id
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO moderation_actions (guild_id, channel_id, user_id, category, pattern_id, action, original_content)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, guildID, channelID, userID, string(category), patternUUID, string(action), originalContent)
	if err != nil {
		return fmt.Errorf("insert moderation action: %w", err)
	}
	return nil
}
