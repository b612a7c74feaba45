package call

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// ErrNotFound is returned when a call id has no matching row.
var ErrNotFound = errors.New("call: not found")

// Store persists calls and their participants in Postgres.
type Store struct {
	db  *pgxpool.Pool
	log zerolog.Logger
}

// NewStore creates a Postgres-backed call store.
func NewStore(db *pgxpool.Pool, logger zerolog.Logger) *Store {
	return &Store{db: db, log: logger}
}

// ChannelParticipants returns every user_id in a dm/group_dm channel's participant list, used to fan call.incoming
// out to every participant's user:{id} scope and to seed a new call's Participant rows.
func (s *Store) ChannelParticipants(ctx context.Context, channelID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.db.Query(ctx, `SELECT user_id FROM channel_participants WHERE channel_id = $1`, channelID)
	if err != nil {
		return nil, fmt.Errorf("query channel participants: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan channel participant: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ActiveCallForChannel returns the in-progress (ringing or active) call for a channel, if any.
func (s *Store) ActiveCallForChannel(ctx context.Context, channelID uuid.UUID) (*Call, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, channel_id, initiator_id, status, started_at, ended_at
		FROM calls
		WHERE channel_id = $1 AND status IN ('ringing', 'active')
		ORDER BY started_at DESC
		LIMIT 1
	`, channelID)

	var c Call
	if err := row.Scan(&c.ID, &c.ChannelID, &c.InitiatorID, &c.Status, &c.StartedAt, &c.EndedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query active call: %w", err)
	}
	return &c, nil
}

// Create inserts a new ringing call and a pending Participant row for every member, including the initiator.
func (s *Store) Create(ctx context.Context, channelID, initiatorID uuid.UUID, members []uuid.UUID) (*Call, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		INSERT INTO calls (channel_id, initiator_id, status)
		VALUES ($1, $2, 'ringing')
		RETURNING id, channel_id, initiator_id, status, started_at, ended_at
	`, channelID, initiatorID)

	var c Call
	if err := row.Scan(&c.ID, &c.ChannelID, &c.InitiatorID, &c.Status, &c.StartedAt, &c.EndedAt); err != nil {
		return nil, fmt.Errorf("insert call: %w", err)
	}

	for _, userID := range members {
		if _, err := tx.Exec(ctx, `
			INSERT INTO call_participants (call_id, user_id) VALUES ($1, $2)
		`, c.ID, userID); err != nil {
			return nil, fmt.Errorf("insert call participant: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &c, nil
}

// Get loads a call by id.
func (s *Store) Get(ctx context.Context, callID uuid.UUID) (*Call, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, channel_id, initiator_id, status, started_at, ended_at FROM calls WHERE id = $1
	`, callID)

	var c Call
	if err := row.Scan(&c.ID, &c.ChannelID, &c.InitiatorID, &c.Status, &c.StartedAt, &c.EndedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query call: %w", err)
	}
	return &c, nil
}

// SetStatus transitions a call's status and, for a terminal transition to ended, stamps ended_at.
func (s *Store) SetStatus(ctx context.Context, callID uuid.UUID, status Status) error {
	var err error
	if status == StatusEnded {
		_, err = s.db.Exec(ctx, `UPDATE calls SET status = $1, ended_at = now() WHERE id = $2`, status, callID)
	} else {
		_, err = s.db.Exec(ctx, `UPDATE calls SET status = $1 WHERE id = $2`, status, callID)
	}
	if err != nil {
		return fmt.Errorf("update call status: %w", err)
	}
	return nil
}

// MarkJoined records that a participant accepted and joined the call.
func (s *Store) MarkJoined(ctx context.Context, callID, userID uuid.UUID) error {
	_, err := s.db.Exec(ctx, `
		UPDATE call_participants SET joined_at = now() WHERE call_id = $1 AND user_id = $2
	`, callID, userID)
	if err != nil {
		return fmt.Errorf("mark call participant joined: %w", err)
	}
	return nil
}

// MarkLeft records that a participant left an active call, or declined one they never joined: both cases set
// left_at with joined_at left as-is, matching the shape Participant.Declined checks.
func (s *Store) MarkLeft(ctx context.Context, callID, userID uuid.UUID) error {
	_, err := s.db.Exec(ctx, `
		UPDATE call_participants SET left_at = now() WHERE call_id = $1 AND user_id = $2
	`, callID, userID)
	if err != nil {
		return fmt.Errorf("mark call participant left: %w", err)
	}
	return nil
}

// Participants returns every participant row for a call.
func (s *Store) Participants(ctx context.Context, callID uuid.UUID) ([]Participant, error) {
	rows, err := s.db.Query(ctx, `
		SELECT call_id, user_id, joined_at, left_at FROM call_participants WHERE call_id = $1
	`, callID)
	if err != nil {
		return nil, fmt.Errorf("query call participants: %w", err)
	}
	defer rows.Close()

	var participants []Participant
	for rows.Next() {
		var p Participant
		if err := rows.Scan(&p.CallID, &p.UserID, &p.JoinedAt, &p.LeftAt); err != nil {
			return nil, fmt.Errorf("scan call participant: %w", err)
		}
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

// ActiveParticipantCount returns how many participants have joined and not yet left, used to decide whether the
// last participant leaving should end the call.
func (s *Store) ActiveParticipantCount(ctx context.Context, callID uuid.UUID) (int, error) {
	var count int
	err := s.db.QueryRow(ctx, `
		SELECT count(*) FROM call_participants
		WHERE call_id = $1 AND joined_at IS NOT NULL AND left_at IS NULL
	`, callID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count active call participants: %w", err)
	}
	return count, nil
}

// RemainingUndeclinedCount returns how many participants have neither joined nor declined yet, used to decide
// whether a ringing call should end because every participant declined.
func (s *Store) RemainingUndeclinedCount(ctx context.Context, callID uuid.UUID) (int, error) {
	var count int
	err := s.db.QueryRow(ctx, `
		SELECT count(*) FROM call_participants
		WHERE call_id = $1 AND joined_at IS NULL AND left_at IS NULL
	`, callID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count undeclined call participants: %w", err)
	}
	return count, nil
}
