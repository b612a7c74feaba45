package api

import (
	"encoding/base64"
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/uncord-chat/uncord-server/internal/e2ee"
	"github.com/uncord-chat/uncord-server/internal/httputil"
	"github.com/uncord-chat/uncord-server/internal/wire"
)

// E2EEHandler serves the E2EE key store endpoints: device registration, prekey publication/claim, encrypted
// backups, and device transfer blobs.
type E2EEHandler struct {
	devices   *e2ee.DeviceStore
	prekeys   *e2ee.PrekeyStore
	backups   *e2ee.BackupStore
	transfers *e2ee.TransferStore
	log       zerolog.Logger
}

// NewE2EEHandler creates a new E2EE handler.
func NewE2EEHandler(devices *e2ee.DeviceStore, prekeys *e2ee.PrekeyStore, backups *e2ee.BackupStore, transfers *e2ee.TransferStore, logger zerolog.Logger) *E2EEHandler {
	return &E2EEHandler{devices: devices, prekeys: prekeys, backups: backups, transfers: transfers, log: logger}
}

type registerDeviceRequest struct {
	SigningKey  string `json:"signing_key"`
	ExchangeKey string `json:"exchange_key"`
}

type deviceResponse struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	CreatedAt  string `json:"created_at"`
	LastSeenAt string `json:"last_seen_at"`
	Verified   bool   `json:"verified"`
}

func toDeviceResponse(d *e2ee.Device) deviceResponse {
	return deviceResponse{
		ID:         d.ID.String(),
		UserID:     d.UserID.String(),
		CreatedAt:  d.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		LastSeenAt: d.LastSeenAt.Format("2006-01-02T15:04:05Z07:00"),
		Verified:   d.Verified,
	}
}

// RegisterDevice handles POST /api/v1/users/@me/e2ee/devices.
func (h *E2EEHandler) RegisterDevice(c fiber.Ctx) error {
	userID, ok := c.Locals("userID").(uuid.UUID)
	if !ok {
		return httputil.Fail(c, fiber.StatusUnauthorized, wire.CodeUnauthorized, "Missing user identity")
	}

	var body registerDeviceRequest
	if err := c.Bind().Body(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, wire.CodeValidation, "Invalid request body")
	}

	signingKey, err := base64.StdEncoding.DecodeString(body.SigningKey)
	if err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, wire.CodeValidation, "signing_key must be base64")
	}
	exchangeKey, err := base64.StdEncoding.DecodeString(body.ExchangeKey)
	if err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, wire.CodeValidation, "exchange_key must be base64")
	}

	d, err := h.devices.Register(c.Context(), userID, signingKey, exchangeKey)
	if err != nil {
		return h.mapError(c, err)
	}

	return httputil.SuccessStatus(c, fiber.StatusCreated, toDeviceResponse(d))
}

// ListDevices handles GET /api/v1/users/@me/e2ee/devices.
func (h *E2EEHandler) ListDevices(c fiber.Ctx) error {
	userID, ok := c.Locals("userID").(uuid.UUID)
	if !ok {
		return httputil.Fail(c, fiber.StatusUnauthorized, wire.CodeUnauthorized, "Missing user identity")
	}

	devices, err := h.devices.ListByUser(c.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Str("handler", "e2ee").Msg("list devices failed")
		return httputil.Fail(c, fiber.StatusInternalServerError, wire.CodeInternal, "An internal error occurred")
	}

	resp := make([]deviceResponse, 0, len(devices))
	for i := range devices {
		resp = append(resp, toDeviceResponse(&devices[i]))
	}
	return httputil.Success(c, resp)
}

// DeleteDevice handles DELETE /api/v1/users/@me/e2ee/devices/:deviceID.
func (h *E2EEHandler) DeleteDevice(c fiber.Ctx) error {
	deviceID, err := uuid.Parse(c.Params("deviceID"))
	if err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, wire.CodeValidation, "Invalid device ID")
	}

	if err := h.devices.Delete(c.Context(), deviceID); err != nil {
		return h.mapError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

type publishPrekeysRequest struct {
	Keys []struct {
		KeyID     int64  `json:"key_id"`
		PublicKey string `json:"public_key"`
	} `json:"keys"`
}

// PublishPrekeys handles POST /api/v1/e2ee/devices/:deviceID/prekeys.
func (h *E2EEHandler) PublishPrekeys(c fiber.Ctx) error {
	deviceID, err := uuid.Parse(c.Params("deviceID"))
	if err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, wire.CodeValidation, "Invalid device ID")
	}

	var body publishPrekeysRequest
	if err := c.Bind().Body(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, wire.CodeValidation, "Invalid request body")
	}
	if len(body.Keys) == 0 {
		return httputil.Fail(c, fiber.StatusBadRequest, wire.CodeValidation, "keys must not be empty")
	}

	keys := make([]e2ee.Prekey, 0, len(body.Keys))
	for _, k := range body.Keys {
		pub, err := base64.StdEncoding.DecodeString(k.PublicKey)
		if err != nil {
			return httputil.Fail(c, fiber.StatusBadRequest, wire.CodeValidation, "public_key must be base64")
		}
		keys = append(keys, e2ee.Prekey{DeviceID: deviceID, KeyID: k.KeyID, PublicKey: pub})
	}

	if err := h.prekeys.Publish(c.Context(), deviceID, keys); err != nil {
		return h.mapError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// ClaimPrekey handles POST /api/v1/e2ee/devices/:deviceID/prekeys/claim.
func (h *E2EEHandler) ClaimPrekey(c fiber.Ctx) error {
	claimerID, ok := c.Locals("userID").(uuid.UUID)
	if !ok {
		return httputil.Fail(c, fiber.StatusUnauthorized, wire.CodeUnauthorized, "Missing user identity")
	}

	deviceID, err := uuid.Parse(c.Params("deviceID"))
	if err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, wire.CodeValidation, "Invalid device ID")
	}

	key, err := h.prekeys.Claim(c.Context(), deviceID, claimerID)
	if err != nil {
		return h.mapError(c, err)
	}

	return httputil.Success(c, fiber.Map{
		"key_id":     key.KeyID,
		"public_key": base64.StdEncoding.EncodeToString(key.PublicKey),
	})
}

type upsertBackupRequest struct {
	Salt       string `json:"salt"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// GetBackup handles GET /api/v1/users/@me/e2ee/backup.
func (h *E2EEHandler) GetBackup(c fiber.Ctx) error {
	userID, ok := c.Locals("userID").(uuid.UUID)
	if !ok {
		return httputil.Fail(c, fiber.StatusUnauthorized, wire.CodeUnauthorized, "Missing user identity")
	}

	backup, err := h.backups.Get(c.Context(), userID)
	if err != nil {
		return h.mapError(c, err)
	}

	return httputil.Success(c, fiber.Map{
		"salt":       base64.StdEncoding.EncodeToString(backup.Salt),
		"nonce":      base64.StdEncoding.EncodeToString(backup.Nonce),
		"ciphertext": base64.StdEncoding.EncodeToString(backup.Ciphertext),
		"version":    backup.Version,
	})
}

// UpsertBackup handles PUT /api/v1/users/@me/e2ee/backup.
func (h *E2EEHandler) UpsertBackup(c fiber.Ctx) error {
	userID, ok := c.Locals("userID").(uuid.UUID)
	if !ok {
		return httputil.Fail(c, fiber.StatusUnauthorized, wire.CodeUnauthorized, "Missing user identity")
	}

	var body upsertBackupRequest
	if err := c.Bind().Body(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, wire.CodeValidation, "Invalid request body")
	}

	salt, err := base64.StdEncoding.DecodeString(body.Salt)
	if err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, wire.CodeValidation, "salt must be base64")
	}
	nonce, err := base64.StdEncoding.DecodeString(body.Nonce)
	if err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, wire.CodeValidation, "nonce must be base64")
	}
	ciphertext, err := base64.StdEncoding.DecodeString(body.Ciphertext)
	if err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, wire.CodeValidation, "ciphertext must be base64")
	}

	backup, err := h.backups.Upsert(c.Context(), userID, salt, nonce, ciphertext)
	if err != nil {
		return h.mapError(c, err)
	}

	return httputil.Success(c, fiber.Map{"version": backup.Version})
}

// DeleteBackup handles DELETE /api/v1/users/@me/e2ee/backup.
func (h *E2EEHandler) DeleteBackup(c fiber.Ctx) error {
	userID, ok := c.Locals("userID").(uuid.UUID)
	if !ok {
		return httputil.Fail(c, fiber.StatusUnauthorized, wire.CodeUnauthorized, "Missing user identity")
	}

	if err := h.backups.Delete(c.Context(), userID); err != nil {
		return h.mapError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

type createTransferRequest struct {
	TargetDevice string `json:"target_device"`
	Ciphertext   string `json:"ciphertext"`
}

// CreateTransfer handles POST /api/v1/users/@me/e2ee/transfers.
func (h *E2EEHandler) CreateTransfer(c fiber.Ctx) error {
	userID, ok := c.Locals("userID").(uuid.UUID)
	if !ok {
		return httputil.Fail(c, fiber.StatusUnauthorized, wire.CodeUnauthorized, "Missing user identity")
	}

	var body createTransferRequest
	if err := c.Bind().Body(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, wire.CodeValidation, "Invalid request body")
	}

	targetDevice, err := uuid.Parse(body.TargetDevice)
	if err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, wire.CodeValidation, "Invalid target_device")
	}
	ciphertext, err := base64.StdEncoding.DecodeString(body.Ciphertext)
	if err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, wire.CodeValidation, "ciphertext must be base64")
	}

	transfer, err := h.transfers.Create(c.Context(), userID, targetDevice, ciphertext)
	if err != nil {
		return h.mapError(c, err)
	}

	return httputil.SuccessStatus(c, fiber.StatusCreated, fiber.Map{
		"id":         transfer.ID,
		"expires_at": transfer.ExpiresAt,
	})
}

// FetchTransfer handles GET /api/v1/e2ee/transfers/:transferID.
func (h *E2EEHandler) FetchTransfer(c fiber.Ctx) error {
	transferID, err := uuid.Parse(c.Params("transferID"))
	if err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, wire.CodeValidation, "Invalid transfer ID")
	}

	transfer, err := h.transfers.Fetch(c.Context(), transferID)
	if err != nil {
		return h.mapError(c, err)
	}

	return httputil.Success(c, fiber.Map{
		"id":         transfer.ID,
		"user_id":    transfer.UserID,
		"ciphertext": base64.StdEncoding.EncodeToString(transfer.Ciphertext),
		"expires_at": transfer.ExpiresAt,
	})
}

func (h *E2EEHandler) mapError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, e2ee.ErrDeviceNotFound):
		return httputil.Fail(c, fiber.StatusNotFound, wire.CodeNotFound, "Device not found")
	case errors.Is(err, e2ee.ErrDuplicateDevice):
		return httputil.Fail(c, fiber.StatusConflict, wire.CodeConflict, err.Error())
	case errors.Is(err, e2ee.ErrClaimExhausted):
		return httputil.Fail(c, fiber.StatusNotFound, wire.CodeNotFound, err.Error())
	case errors.Is(err, e2ee.ErrBackupMissing):
		return httputil.Fail(c, fiber.StatusNotFound, wire.CodeNotFound, err.Error())
	case errors.Is(err, e2ee.ErrBackupTooLarge):
		return httputil.Fail(c, fiber.StatusBadRequest, wire.CodeValidation, err.Error())
	case errors.Is(err, e2ee.ErrTransferExpired):
		return httputil.Fail(c, fiber.StatusGone, wire.CodeNotFound, err.Error())
	case errors.Is(err, e2ee.ErrTransferNotFound):
		return httputil.Fail(c, fiber.StatusNotFound, wire.CodeNotFound, err.Error())
	default:
		h.log.Error().Err(err).Str("handler", "e2ee").Msg("e2ee operation failed")
		return httputil.Fail(c, fiber.StatusInternalServerError, wire.CodeInternal, "An internal error occurred")
	}
}
