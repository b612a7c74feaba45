package e2ee

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func TestUpsertRejectsOversizedCiphertextBeforeTouchingDB(t *testing.T) {
	t.Parallel()
	// Passing a nil pool verifies the size check runs before any query is attempted: a nil pool would panic on
	// use, so reaching that point instead of returning ErrBackupTooLarge would crash the test.
	store := NewBackupStore(nil, zerolog.Nop())

	oversized := make([]byte, MaxBackupCiphertextBytes+1)
	_, err := store.Upsert(context.Background(), uuid.New(), []byte("salt1234567890ab"), []byte("nonce123456"), oversized)
	if !errors.Is(err, ErrBackupTooLarge) {
		t.Errorf("err = %v, want ErrBackupTooLarge", err)
	}
}
