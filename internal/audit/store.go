package audit

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const entryColumns = "id, actor_id, target_type, target_id, action, before_hash, after_hash, timestamp, ip, user_agent"

// Store persists audit entries. Entries are append-only; the package exposes no update or delete beyond what
// ON DELETE CASCADE on actor_id performs when the actor is removed (spec §4.10: actor references cascade-delete
// so a removed user doesn't leave referentially broken audit rows behind).
type Store struct {
	db  *pgxpool.Pool
	log zerolog.Logger
}

// NewStore creates a new PostgreSQL-backed audit store.
func NewStore(db *pgxpool.Pool, logger zerolog.Logger) *Store {
	return &Store{db: db, log: logger}
}

// Record appends a new audit entry.
func (s *Store) Record(ctx context.Context, actorID uuid.UUID, targetType TargetType, targetID uuid.UUID, action Action, beforeHash, afterHash *string, ip, userAgent string) (*Entry, error) {
	var e Entry
	err := s.db.QueryRow(ctx, fmt.Sprintf(`
		INSERT INTO audit_log (actor_id, target_type, target_id, action, before_hash, after_hash, timestamp, ip, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, now(), $7, $8)
		RETURNING %s
	`, entryColumns), actorID, string(targetType), targetID, string(action), beforeHash, afterHash, ip, userAgent,
	).Scan(&e.ID, &e.ActorID, &e.TargetType, &e.TargetID, &e.Action, &e.BeforeHash, &e.AfterHash, &e.Timestamp, &e.IP, &e.UserAgent)
	if err != nil {
		return nil, fmt.Errorf("insert audit entry: %w", err)
	}
	return &e, nil
}

// ListByTarget returns audit entries for a target, newest first, up to limit.
func (s *Store) ListByTarget(ctx context.Context, targetType TargetType, targetID uuid.UUID, limit int) ([]Entry, error) {
	rows, err := s.db.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM audit_log WHERE target_type = $1 AND target_id = $2 ORDER BY timestamp DESC LIMIT $3
	`, entryColumns), string(targetType), targetID, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit entries by target: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// ListByActor returns audit entries an actor is responsible for, newest first, up to limit.
func (s *Store) ListByActor(ctx context.Context, actorID uuid.UUID, limit int) ([]Entry, error) {
	rows, err := s.db.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM audit_log WHERE actor_id = $1 ORDER BY timestamp DESC LIMIT $2
	`, entryColumns), actorID, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit entries by actor: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanEntries(rows rowScanner) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.ActorID, &e.TargetType, &e.TargetID, &e.Action, &e.BeforeHash, &e.AfterHash, &e.Timestamp, &e.IP, &e.UserAgent); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
