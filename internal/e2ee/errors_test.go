package e2ee

import (
	"errors"
	"testing"
)

func TestSentinelErrorsAreDistinct(t *testing.T) {
	t.Parallel()
	sentinels := []error{
		ErrDeviceNotFound,
		ErrDuplicateDevice,
		ErrClaimExhausted,
		ErrBackupMissing,
		ErrBackupTooLarge,
		ErrTransferExpired,
		ErrTransferNotFound,
	}

	for i, a := range sentinels {
		for j, b := range sentinels {
			if i == j {
				continue
			}
			if errors.Is(a, b) {
				t.Errorf("errors.Is(sentinels[%d], sentinels[%d]) = true, want distinct errors", i, j)
			}
		}
	}
}

func TestDeviceTransferTTLIsFiveMinutes(t *testing.T) {
	t.Parallel()
	if DeviceTransferTTL.Minutes() != 5 {
		t.Errorf("DeviceTransferTTL = %v, want 5m", DeviceTransferTTL)
	}
}

func TestMaxBackupCiphertextBytesIsOneMiB(t *testing.T) {
	t.Parallel()
	if MaxBackupCiphertextBytes != 1024*1024 {
		t.Errorf("MaxBackupCiphertextBytes = %d, want %d", MaxBackupCiphertextBytes, 1024*1024)
	}
}
