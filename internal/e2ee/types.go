// Package e2ee implements the E2EE Key Store (spec §4.5): device registration, prekey publication with atomic
// single-use claim, encrypted key backups the server is a blind holder of, and short-lived device transfer
// blobs with a periodic reaper.
package e2ee

import (
	"time"

	"github.com/google/uuid"
)

// DeviceTransferTTL is how long a device transfer blob remains claimable before the reaper deletes it.
const DeviceTransferTTL = 5 * time.Minute

// MaxBackupCiphertextBytes bounds KeyBackup.Ciphertext.
const MaxBackupCiphertextBytes = 1 << 20 // 1 MiB

// Device is one of a user's E2EE-capable clients.
type Device struct {
	ID                  uuid.UUID
	UserID              uuid.UUID
	IdentitySigningKey  []byte
	IdentityExchangeKey []byte
	CreatedAt           time.Time
	LastSeenAt          time.Time
	Verified            bool
}

// Prekey is a single one-time-use public key a device has published for others to claim when establishing a
// session with it.
type Prekey struct {
	ID        uuid.UUID
	DeviceID  uuid.UUID
	KeyID     int64
	PublicKey []byte
	ClaimedAt *time.Time
	ClaimedBy *uuid.UUID
}

// KeyBackup is the single encrypted backup row a user holds. The server never sees the decryption key; salt,
// nonce, and ciphertext are opaque blobs to it.
type KeyBackup struct {
	UserID     uuid.UUID
	Salt       []byte // 16 bytes
	Nonce      []byte // 12 bytes
	Ciphertext []byte // <= MaxBackupCiphertextBytes
	Version    int64
	UpdatedAt  time.Time
}

// DeviceTransfer is a short-lived targeted blob used to onboard a new device without re-running key exchange from
// scratch. ExpiresAt is always CreatedAt + DeviceTransferTTL.
type DeviceTransfer struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	TargetDevice uuid.UUID
	Ciphertext   []byte
	CreatedAt    time.Time
	ExpiresAt    time.Time
}
