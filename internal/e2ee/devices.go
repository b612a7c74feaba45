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

const deviceColumns = "id, user_id, identity_signing_key, identity_exchange_key, created_at, last_seen_at, verified"

// DeviceStore persists the device registry.
type DeviceStore struct {
	db  *pgxpool.Pool
	log zerolog.Logger
}

// NewDeviceStore creates a new PostgreSQL-backed device store.
func NewDeviceStore(db *pgxpool.Pool, logger zerolog.Logger) *DeviceStore {
	return &DeviceStore{db: db, log: logger}
}

// Register uploads a new device's (signing_key, exchange_key) pair. Returns ErrDuplicateDevice if (user_id,
// exchange_key) already has a row.
func (s *DeviceStore) Register(ctx context.Context, userID uuid.UUID, signingKey, exchangeKey []byte) (*Device, error) {
	var d Device
	err := s.db.QueryRow(ctx, fmt.Sprintf(`
		INSERT INTO devices (user_id, identity_signing_key, identity_exchange_key, last_seen_at, verified)
		VALUES ($1, $2, $3, now(), false)
		RETURNING %s
	`, deviceColumns), userID, signingKey, exchangeKey).Scan(
		&d.ID, &d.UserID, &d.IdentitySigningKey, &d.IdentityExchangeKey, &d.CreatedAt, &d.LastSeenAt, &d.Verified,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return nil, ErrDuplicateDevice
		}
		return nil, fmt.Errorf("insert device: %w", err)
	}
	return &d, nil
}

// GetByID returns the device matching id.
func (s *DeviceStore) GetByID(ctx context.Context, id uuid.UUID) (*Device, error) {
	var d Device
	err := s.db.QueryRow(ctx, fmt.Sprintf("SELECT %s FROM devices WHERE id = $1", deviceColumns), id).Scan(
		&d.ID, &d.UserID, &d.IdentitySigningKey, &d.IdentityExchangeKey, &d.CreatedAt, &d.LastSeenAt, &d.Verified,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("query device: %w", err)
	}
	return &d, nil
}

// ListByUser returns every device registered to userID.
func (s *DeviceStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]Device, error) {
	rows, err := s.db.Query(ctx, fmt.Sprintf("SELECT %s FROM devices WHERE user_id = $1 ORDER BY created_at", deviceColumns), userID)
	if err != nil {
		return nil, fmt.Errorf("query devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		var d Device
		if err := rows.Scan(&d.ID, &d.UserID, &d.IdentitySigningKey, &d.IdentityExchangeKey, &d.CreatedAt, &d.LastSeenAt, &d.Verified); err != nil {
			return nil, fmt.Errorf("scan device: %w", err)
		}
		devices = append(devices, d)
	}
	return devices, rows.Err()
}

// TouchLastSeen refreshes a device's last_seen_at to now, called on active use.
func (s *DeviceStore) TouchLastSeen(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, "UPDATE devices SET last_seen_at = now() WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("touch device: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// SetVerified marks a device as verified (e.g. out-of-band safety number confirmation).
func (s *DeviceStore) SetVerified(ctx context.Context, id uuid.UUID, verified bool) error {
	tag, err := s.db.Exec(ctx, "UPDATE devices SET verified = $2 WHERE id = $1", id, verified)
	if err != nil {
		return fmt.Errorf("update device verified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// Delete removes a device and, via ON DELETE CASCADE, its prekeys.
func (s *DeviceStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, "DELETE FROM devices WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete device: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDeviceNotFound
	}
	return nil
}
