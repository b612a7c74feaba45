package e2ee

import "errors"

var (
	// ErrDeviceNotFound is returned when a device lookup by ID finds no row.
	ErrDeviceNotFound = errors.New("e2ee: device not found")
	// ErrDuplicateDevice is returned on a (user_id, exchange_key) uniqueness conflict.
	ErrDuplicateDevice = errors.New("e2ee: device with this exchange key already registered")
	// ErrClaimExhausted is returned when a device has no unclaimed prekeys left.
	ErrClaimExhausted = errors.New("e2ee: no unclaimed prekeys remain")
	// ErrBackupMissing is returned on restore when the user has never uploaded a backup.
	ErrBackupMissing = errors.New("e2ee: no key backup on file")
	// ErrBackupTooLarge is returned when a backup ciphertext exceeds MaxBackupCiphertextBytes.
	ErrBackupTooLarge = errors.New("e2ee: backup ciphertext exceeds size limit")
	// ErrTransferExpired is returned when a device transfer is fetched after its TTL has elapsed.
	ErrTransferExpired = errors.New("e2ee: device transfer expired")
	// ErrTransferNotFound is returned when a device transfer ID matches no row (already claimed or never existed).
	ErrTransferNotFound = errors.New("e2ee: device transfer not found")
)
