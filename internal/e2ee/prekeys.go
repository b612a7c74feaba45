package e2ee

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/uncord-chat/uncord-server/internal/postgres"
)

// PrekeyStore manages a device's published one-time prekeys.
type PrekeyStore struct {
	db  *pgxpool.Pool
	log zerolog.Logger
}

// NewPrekeyStore creates a new PostgreSQL-backed prekey store.
func NewPrekeyStore(db *pgxpool.Pool, logger zerolog.Logger) *PrekeyStore {
	return &PrekeyStore{db: db, log: logger}
}

// Publish uploads a batch of (key_id, public_key) prekeys for a device.
func (s *PrekeyStore) Publish(ctx context.Context, deviceID uuid.UUID, keys []Prekey) error {
	return postgres.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		for _, k := range keys {
			if _, err := tx.Exec(ctx,
				"INSERT INTO prekeys (device_id, key_id, public_key) VALUES ($1, $2, $3)",
				deviceID, k.KeyID, k.PublicKey,
			); err != nil {
				return fmt.Errorf("insert prekey %d: %w", k.KeyID, err)
			}
		}
		return nil
	})
}

// Claim atomically claims one unclaimed prekey for deviceID on behalf of claimerID, marking it claimed so it is
// never served to another claimer. Returns ErrClaimExhausted once the device's pool is empty. FOR UPDATE SKIP
// LOCKED lets concurrent claimants each land on a different row instead of queueing behind row locks.
func (s *PrekeyStore) Claim(ctx context.Context, deviceID, claimerID uuid.UUID) (*Prekey, error) {
	var p Prekey
	err := postgres.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			SELECT id, device_id, key_id, public_key, claimed_at, claimed_by
			FROM prekeys
			WHERE device_id = $1 AND claimed_at IS NULL
			ORDER BY key_id
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		`, deviceID)
		if err := row.Scan(&p.ID, &p.DeviceID, &p.KeyID, &p.PublicKey, &p.ClaimedAt, &p.ClaimedBy); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrClaimExhausted
			}
			return fmt.Errorf("select unclaimed prekey: %w", err)
		}

		if _, err := tx.Exec(ctx,
			"UPDATE prekeys SET claimed_at = now(), claimed_by = $2 WHERE id = $1",
			p.ID, claimerID,
		); err != nil {
			return fmt.Errorf("mark prekey claimed: %w", err)
		}
		p.ClaimedBy = &claimerID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UnclaimedCount reports how many prekeys remain unclaimed for a device, so a client knows when to replenish.
func (s *PrekeyStore) UnclaimedCount(ctx context.Context, deviceID uuid.UUID) (int, error) {
	var count int
	err := s.db.QueryRow(ctx,
		"SELECT count(*) FROM prekeys WHERE device_id = $1 AND claimed_at IS NULL",
		deviceID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unclaimed prekeys: %w", err)
	}
	return count, nil
}
