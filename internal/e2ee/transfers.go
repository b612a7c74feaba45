package e2ee

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// TransferStore manages short-lived device transfer blobs.
type TransferStore struct {
	db  *pgxpool.Pool
	log zerolog.Logger
}

// NewTransferStore creates a new PostgreSQL-backed transfer store.
func NewTransferStore(db *pgxpool.Pool, logger zerolog.Logger) *TransferStore {
	return &TransferStore{db: db, log: logger}
}

// Create stores a new transfer blob targeted at targetDevice, expiring DeviceTransferTTL from now.
func (s *TransferStore) Create(ctx context.Context, userID, targetDevice uuid.UUID, ciphertext []byte) (*DeviceTransfer, error) {
	var t DeviceTransfer
	err := s.db.QueryRow(ctx, `
		INSERT INTO device_transfers (user_id, target_device, ciphertext, created_at, expires_at)
		VALUES ($1, $2, $3, now(), now() + $4::interval)
		RETURNING id, user_id, target_device, ciphertext, created_at, expires_at
	`, userID, targetDevice, ciphertext, DeviceTransferTTL.String()).Scan(
		&t.ID, &t.UserID, &t.TargetDevice, &t.Ciphertext, &t.CreatedAt, &t.ExpiresAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert device transfer: %w", err)
	}
	return &t, nil
}

// Fetch retrieves and deletes a transfer in one step — a transfer is claimable exactly once. Returns
// ErrTransferNotFound if no row matches id, or ErrTransferExpired if the row existed but is past its TTL (the
// expired row itself is left for the reaper rather than deleted twice).
func (s *TransferStore) Fetch(ctx context.Context, id uuid.UUID) (*DeviceTransfer, error) {
	var t DeviceTransfer
	err := s.db.QueryRow(ctx,
		"DELETE FROM device_transfers WHERE id = $1 AND expires_at > now() RETURNING id, user_id, target_device, ciphertext, created_at, expires_at",
		id,
	).Scan(&t.ID, &t.UserID, &t.TargetDevice, &t.Ciphertext, &t.CreatedAt, &t.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			var expired bool
			checkErr := s.db.QueryRow(ctx, "SELECT true FROM device_transfers WHERE id = $1", id).Scan(&expired)
			if checkErr == nil && expired {
				return nil, ErrTransferExpired
			}
			return nil, ErrTransferNotFound
		}
		return nil, fmt.Errorf("fetch device transfer: %w", err)
	}
	return &t, nil
}

// ReapExpired deletes every transfer row past its TTL and returns the count removed. Intended to be called
// periodically (e.g. from a ticker in cmd/uncord) rather than relying solely on Fetch's lazy expiry check, since
// an abandoned transfer that is never fetched would otherwise linger forever.
func (s *TransferStore) ReapExpired(ctx context.Context) (int, error) {
	tag, err := s.db.Exec(ctx, "DELETE FROM device_transfers WHERE expires_at <= now()")
	if err != nil {
		return 0, fmt.Errorf("reap expired device transfers: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// RunReaper periodically calls ReapExpired until ctx is cancelled. Intended to run in its own goroutine.
func (s *TransferStore) RunReaper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.ReapExpired(ctx)
			if err != nil {
				s.log.Warn().Err(err).Msg("Failed to reap expired device transfers")
				continue
			}
			if n > 0 {
				s.log.Debug().Int("count", n).Msg("Reaped expired device transfers")
			}
		}
	}
}
