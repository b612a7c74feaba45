package filter

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore implements Store, and the write-side operations a mutation handler needs, using PostgreSQL.
type PGStore struct {
	db *pgxpool.Pool
}

// NewPGStore creates a new PostgreSQL-backed filter store.
func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

// Configs returns every FilterConfig row for the guild, one per category that has ever been touched. A
// category with no row is treated as disabled by the caller.
func (s *PGStore) Configs(ctx context.Context, guildID uuid.UUID) ([]FilterConfig, error) {
	rows, err := s.db.Query(ctx,
		"SELECT category, enabled, action FROM filter_configs WHERE guild_id = $1",
		guildID,
	)
	if err != nil {
		return nil, fmt.Errorf("query filter configs: %w", err)
	}
	defer rows.Close()

	var configs []FilterConfig
	for rows.Next() {
		var cfg FilterConfig
		var category, action string
		if err := rows.Scan(&category, &cfg.Enabled, &action); err != nil {
			return nil, fmt.Errorf("scan filter config: %w", err)
		}
		cfg.GuildID = guildID
		cfg.Category = Category(category)
		cfg.Action = Action(action)
		configs = append(configs, cfg)
	}
	return configs, rows.Err()
}

// Patterns returns every FilterPattern row for the guild.
func (s *PGStore) Patterns(ctx context.Context, guildID uuid.UUID) ([]FilterPattern, error) {
	rows, err := s.db.Query(ctx,
		"SELECT id, text, is_regex, enabled, creator_id, created_at FROM filter_patterns WHERE guild_id = $1",
		guildID,
	)
	if err != nil {
		return nil, fmt.Errorf("query filter patterns: %w", err)
	}
	defer rows.Close()

	var patterns []FilterPattern
	for rows.Next() {
		var p FilterPattern
		if err := rows.Scan(&p.ID, &p.Text, &p.IsRegex, &p.Enabled, &p.CreatorID, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan filter pattern: %w", err)
		}
		p.GuildID = guildID
		patterns = append(patterns, p)
	}
	return patterns, rows.Err()
}

// SetConfig upserts the enabled flag and action for a guild's category.
func (s *PGStore) SetConfig(ctx context.Context, guildID uuid.UUID, category Category, enabled bool, action Action) (*FilterConfig, error) {
	if !category.valid() {
		return nil, ErrUnknownCategory
	}

	cfg := &FilterConfig{GuildID: guildID, Category: category, Enabled: enabled, Action: action}
	_, err := s.db.Exec(ctx, `
		INSERT INTO filter_configs (guild_id, category, enabled, action)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (guild_id, category) DO UPDATE SET enabled = EXCLUDED.enabled, action = EXCLUDED.action
	`, guildID, string(category), enabled, string(action))
	if err != nil {
		return nil, fmt.Errorf("upsert filter config: %w", err)
	}
	return cfg, nil
}

// CreatePattern validates and inserts a new custom pattern, enforcing the per-guild count limit, the length
// limit, and — for regex patterns — the ReDoS compile/eval budget.
func (s *PGStore) CreatePattern(ctx context.Context, guildID uuid.UUID, text string, isRegex bool, creatorID uuid.UUID) (*FilterPattern, error) {
	if len(text) > MaxPatternChars {
		return nil, ErrPatternTooLong
	}
	if isRegex {
		if _, err := CompileGuarded(text); err != nil {
			return nil, err
		}
	}

	var count int
	if err := s.db.QueryRow(ctx, "SELECT count(*) FROM filter_patterns WHERE guild_id = $1", guildID).Scan(&count); err != nil {
		return nil, fmt.Errorf("count filter patterns: %w", err)
	}
	if count >= MaxPatternsPerGuild {
		return nil, ErrTooManyPatterns
	}

	var p FilterPattern
	err := s.db.QueryRow(ctx, `
		INSERT INTO filter_patterns (guild_id, text, is_regex, enabled, creator_id)
		VALUES ($1, $2, $3, true, $4)
		RETURNING id, guild_id, text, is_regex, enabled, creator_id, created_at
	`, guildID, text, isRegex, creatorID,
	).Scan(&p.ID, &p.GuildID, &p.Text, &p.IsRegex, &p.Enabled, &p.CreatorID, &p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert filter pattern: %w", err)
	}
	return &p, nil
}

// DeletePattern removes a custom pattern. Returns ErrPatternNotFound if no matching row exists for the guild.
func (s *PGStore) DeletePattern(ctx context.Context, guildID, patternID uuid.UUID) error {
	tag, err := s.db.Exec(ctx,
		"DELETE FROM filter_patterns WHERE id = $1 AND guild_id = $2",
		patternID, guildID,
	)
	if err != nil {
		return fmt.Errorf("delete filter pattern: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPatternNotFound
	}
	return nil
}
