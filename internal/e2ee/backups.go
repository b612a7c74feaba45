package e2ee

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// BackupStore holds the single encrypted key backup row per user. The server never decrypts it; salt, nonce, and
// ciphertext are stored and returned verbatim.
type BackupStore struct {
	db  *pgxpool.Pool
	log zerolog.Logger
}

// NewBackupStore creates a new PostgreSQL-backed backup store.
func NewBackupStore(db *pgxpool.Pool, logger zerolog.Logger) *BackupStore {
	return &BackupStore{db: db, log: logger}
}

// Upsert stores or replaces a user's backup, incrementing version. Returns ErrBackupTooLarge if ciphertext
// exceeds MaxBackupCiphertextBytes.
func (s *BackupStore) Upsert(ctx context.Context, userID uuid.UUID, salt, nonce, ciphertext []byte) (*KeyBackup, error) {
	if len(ciphertext) > MaxBackupCiphertextBytes {
		return nil, ErrBackupTooLarge
	}

	var b KeyBackup
	err := s.db.QueryRow(ctx, `
		INSERT INTO key_backups (user_id, salt, nonce, ciphertext, version, updated_at)
		VALUES ($1, $2, $3, $4, 1, now())
		ON CONFLICT (user_id) DO UPDATE
		SET salt = EXCLUDED.salt, nonce = EXCLUDED.nonce, ciphertext = EXCLUDED.ciphertext,
		    version = key_backups.version + 1, updated_at = now()
		RETURNING user_id, salt, nonce, ciphertext, version, updated_at
	`, userID, salt, nonce, ciphertext).Scan(&b.UserID, &b.Salt, &b.Nonce, &b.Ciphertext, &b.Version, &b.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert key backup: %w", err)
	}
	return &b, nil
}

// Get returns the user's backup. Returns ErrBackupMissing if the user has never uploaded one.
func (s *BackupStore) Get(ctx context.Context, userID uuid.UUID) (*KeyBackup, error) {
	var b KeyBackup
	err := s.db.QueryRow(ctx,
		"SELECT user_id, salt, nonce, ciphertext, version, updated_at FROM key_backups WHERE user_id = $1",
		userID,
	).Scan(&b.UserID, &b.Salt, &b.Nonce, &b.Ciphertext, &b.Version, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBackupMissing
		}
		return nil, fmt.Errorf("query key backup: %w", err)
	}
	return &b, nil
}

// Delete removes a user's backup, e.g. on account deletion.
func (s *BackupStore) Delete(ctx context.Context, userID uuid.UUID) error {
	if _, err := s.db.Exec(ctx, "DELETE FROM key_backups WHERE user_id = $1", userID); err != nil {
		return fmt.Errorf("delete key backup: %w", err)
	}
	return nil
}
