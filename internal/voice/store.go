package voice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Store persists the last emitted stats sample per channel, so a gateway restart mid-call does not repeat a burst
// of identical-looking stats the instant the room reforms. Room membership itself is never persisted here: it is
// process-local and rebuilt from clients re-joining (spec's stats table comment: "voice room state is process-
// local ... this table exists only for the stats-emission bookkeeping").
type Store struct {
	db  *pgxpool.Pool
	log zerolog.Logger
}

// NewStore creates a Postgres-backed voice stats store.
func NewStore(db *pgxpool.Pool, logger zerolog.Logger) *Store {
	return &Store{db: db, log: logger}
}

// RecordStats upserts the most recently emitted aggregate for a channel.
func (s *Store) RecordStats(ctx context.Context, channelID string, stats StatSample) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshal stats: %w", err)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO voice_room_stats (channel_id, last_emitted_at, last_stats)
		VALUES ($1, now(), $2)
		ON CONFLICT (channel_id) DO UPDATE SET last_emitted_at = now(), last_stats = $2`,
		channelID, data)
	if err != nil {
		return fmt.Errorf("upsert voice room stats: %w", err)
	}
	return nil
}

// LastStats returns the most recently recorded aggregate for a channel, and the time it was emitted. Returns a
// zero time and no error if the channel has never reported stats.
func (s *Store) LastStats(ctx context.Context, channelID string) (StatSample, time.Time, error) {
	var data []byte
	var emittedAt *time.Time
	row := s.db.QueryRow(ctx, `SELECT last_emitted_at, last_stats FROM voice_room_stats WHERE channel_id = $1`, channelID)
	if err := row.Scan(&emittedAt, &data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StatSample{}, time.Time{}, nil
		}
		return StatSample{}, time.Time{}, fmt.Errorf("scan voice room stats: %w", err)
	}

	var stats StatSample
	if len(data) > 0 {
		if err := json.Unmarshal(data, &stats); err != nil {
			return StatSample{}, time.Time{}, fmt.Errorf("unmarshal stats: %w", err)
		}
	}
	if emittedAt == nil {
		return stats, time.Time{}, nil
	}
	return stats, *emittedAt, nil
}
