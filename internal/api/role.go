package api

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/uncord-chat/uncord-server/internal/apimodel"
	"github.com/uncord-chat/uncord-server/internal/bus"
	"github.com/uncord-chat/uncord-server/internal/httputil"
	"github.com/uncord-chat/uncord-server/internal/wire"
	"github.com/uncord-chat/uncord-server/internal/permission"
	"github.com/uncord-chat/uncord-server/internal/role"
)

// RoleHandler serves role endpoints.
type RoleHandler struct {
	roles    role.Repository
	perms    *permission.Publisher
	bus      *bus.Bus
	maxRoles int
	log      zerolog.Logger
}

// NewRoleHandler creates a new role handler.
func NewRoleHandler(roles role.Repository, perms *permission.Publisher, b *bus.Bus, maxRoles int, logger zerolog.Logger) *RoleHandler {
	return &RoleHandler{roles: roles, perms: perms, bus: b, maxRoles: maxRoles, log: logger}
}

// roleGuildScope is the bus scope role lifecycle events are published on. Roles always belong to the deployment's
// single guild, so every role event fans out on its guild scope rather than a per-role one.
func roleGuildScope(r *role.Role) string {
	if r.GuildID != nil {
		return wire.ScopeGuild(r.GuildID.String())
	}
	return wire.ScopeGuild(r.ID.String())
}

// permissionsFromRequest converts the wire uint64 permissions field to the internal wire.Permission type used by
// the role package's validation and params, preserving nil to mean "no change."
func permissionsFromRequest(perms *uint64) *wire.Permission {
	if perms == nil {
		return nil
	}
	p := wire.Permission(*perms)
	return &p
}

// ListRoles handles GET /api/v1/server/roles.
func (h *RoleHandler) ListRoles(c fiber.Ctx) error {
	roles, err := h.roles.List(c)
	if err != nil {
		h.log.Error().Err(err).Str("handler", "role").Msg("list roles failed")
		return httputil.Fail(c, fiber.StatusInternalServerError, wire.CodeInternal, "An internal error occurred")
	}

	result := make([]apimodel.Role, len(roles))
	for i := range roles {
		result[i] = roles[i].ToModel()
	}
	return httputil.Success(c, result)
}

// CreateRole handles POST /api/v1/server/roles.
func (h *RoleHandler) CreateRole(c fiber.Ctx) error {
	var body apimodel.CreateRoleRequest
	if err := c.Bind().Body(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, wire.CodeValidation, "Invalid request body")
	}

	name, err := role.ValidateNameRequired(body.Name)
	if err != nil {
		return h.mapRoleError(c, err)
	}
	if err := role.ValidateColour(body.Colour); err != nil {
		return h.mapRoleError(c, err)
	}
	perms := permissionsFromRequest(body.Permissions)
	if err := role.ValidatePermissions(perms); err != nil {
		return h.mapRoleError(c, err)
	}

	params := role.CreateParams{Name: name}
	if body.Colour != nil {
		params.Colour = *body.Colour
	}
	if perms != nil {
		params.Permissions = *perms
	}
	if body.Hoist != nil {
		params.Hoist = *body.Hoist
	}

	created, err := h.roles.Create(c, params, h.maxRoles)
	if err != nil {
		return h.mapRoleError(c, err)
	}

	result := created.ToModel()
	if h.bus != nil {
		go func() {
			if err := h.bus.Publish(context.Background(), roleGuildScope(created), wire.EventRoleCreate, result, nil); err != nil {
				h.log.Warn().Err(err).Str("role_id", created.ID.String()).Msg("Gateway publish failed")
			}
		}()
	}

	if h.perms != nil {
		if err := h.perms.InvalidateAll(c); err != nil {
			h.log.Warn().Err(err).Msg("failed to invalidate permission cache after role creation")
		}
	}

	return httputil.SuccessStatus(c, fiber.StatusCreated, result)
}

// UpdateRole handles PATCH /api/v1/server/roles/:roleID.
func (h *RoleHandler) UpdateRole(c fiber.Ctx) error {
	userID, ok := c.Locals("userID").(uuid.UUID)
	if !ok {
		return httputil.Fail(c, fiber.StatusUnauthorized, wire.CodeUnauthorized, "Missing user identity")
	}

	id, err := uuid.Parse(c.Params("roleID"))
	if err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, wire.CodeValidation, "Invalid role ID format")
	}

	var body apimodel.UpdateRoleRequest
	if err := c.Bind().Body(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, wire.CodeValidation, "Invalid request body")
	}

	if err := role.ValidateName(body.Name); err != nil {
		return h.mapRoleError(c, err)
	}
	if err := role.ValidatePosition(body.Position); err != nil {
		return h.mapRoleError(c, err)
	}
	if err := role.ValidateColour(body.Colour); err != nil {
		return h.mapRoleError(c, err)
	}
	perms := permissionsFromRequest(body.Permissions)
	if err := role.ValidatePermissions(perms); err != nil {
		return h.mapRoleError(c, err)
	}

	// Enforce role hierarchy: the caller cannot modify roles at or above their own highest role.
	target, err := h.roles.GetByID(c, id)
	if err != nil {
		return h.mapRoleError(c, err)
	}

	if perms != nil {
		if err := role.ValidateEveryoneBits(target.IsEveryone, *perms); err != nil {
			return h.mapRoleError(c, err)
		}
	}

	callerPos, err := h.roles.HighestPosition(c, userID)
	if err != nil {
		h.log.Error().Err(err).Str("handler", "role").Msg("failed to get caller highest position")
		return httputil.Fail(c, fiber.StatusInternalServerError, wire.CodeInternal, "An internal error occurred")
	}

	if target.Position <= callerPos {
		return httputil.Fail(c, fiber.StatusForbidden, wire.CodeForbidden, "Cannot modify roles at or above your highest role")
	}
	if body.Position != nil && *body.Position <= callerPos {
		return httputil.Fail(c, fiber.StatusForbidden, wire.CodeForbidden, "Cannot move a role to a position at or above your highest role")
	}

	// Prevent renaming the @everyone role.
	if target.IsEveryone && body.Name != nil {
		return httputil.Fail(c, fiber.StatusForbidden, wire.CodeValidation, "The @everyone role cannot be renamed")
	}

	updated, err := h.roles.Update(c, id, role.UpdateParams{
		Name:        body.Name,
		Colour:      body.Colour,
		Position:    body.Position,
		Permissions: perms,
		Hoist:       body.Hoist,
	})
	if err != nil {
		return h.mapRoleError(c, err)
	}

	result := updated.ToModel()
	if h.bus != nil {
		go func() {
			if err := h.bus.Publish(context.Background(), roleGuildScope(updated), wire.EventRoleUpdate, result, nil); err != nil {
				h.log.Warn().Err(err).Str("role_id", id.String()).Msg("Gateway publish failed")
			}
		}()
	}

	if h.perms != nil {
		if err := h.perms.InvalidateAll(c); err != nil {
			h.log.Warn().Err(err).Msg("failed to invalidate permission cache after role update")
		}
	}

	return httputil.Success(c, result)
}

// DeleteRole handles DELETE /api/v1/server/roles/:roleID.
func (h *RoleHandler) DeleteRole(c fiber.Ctx) error {
	userID, ok := c.Locals("userID").(uuid.UUID)
	if !ok {
		return httputil.Fail(c, fiber.StatusUnauthorized, wire.CodeUnauthorized, "Missing user identity")
	}

	id, err := uuid.Parse(c.Params("roleID"))
	if err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, wire.CodeValidation, "Invalid role ID format")
	}

	// Enforce role hierarchy: the caller cannot delete roles at or above their own highest role.
	target, err := h.roles.GetByID(c, id)
	if err != nil {
		return h.mapRoleError(c, err)
	}

	callerPos, err := h.roles.HighestPosition(c, userID)
	if err != nil {
		h.log.Error().Err(err).Str("handler", "role").Msg("failed to get caller highest position")
		return httputil.Fail(c, fiber.StatusInternalServerError, wire.CodeInternal, "An internal error occurred")
	}

	if target.Position <= callerPos {
		return httputil.Fail(c, fiber.StatusForbidden, wire.CodeForbidden, "Cannot delete roles at or above your highest role")
	}

	if err := h.roles.Delete(c, id); err != nil {
		return h.mapRoleError(c, err)
	}

	if h.bus != nil {
		go func() {
			data := apimodel.RoleDeleteData{ID: id.String()}
			if err := h.bus.Publish(context.Background(), roleGuildScope(target), wire.EventRoleDelete, data, nil); err != nil {
				h.log.Warn().Err(err).Str("role_id", id.String()).Msg("Gateway publish failed")
			}
		}()
	}

	if h.perms != nil {
		if err := h.perms.InvalidateAll(c); err != nil {
			h.log.Warn().Err(err).Msg("failed to invalidate permission cache after role deletion")
		}
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// mapRoleError converts role-layer errors to appropriate HTTP responses.
func (h *RoleHandler) mapRoleError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, role.ErrNotFound):
		return httputil.Fail(c, fiber.StatusNotFound, wire.CodeNotFound, "Role not found")
	case errors.Is(err, role.ErrNameLength):
		return httputil.Fail(c, fiber.StatusBadRequest, wire.CodeValidation, err.Error())
	case errors.Is(err, role.ErrInvalidPosition):
		return httputil.Fail(c, fiber.StatusBadRequest, wire.CodeValidation, err.Error())
	case errors.Is(err, role.ErrInvalidPermissions):
		return httputil.Fail(c, fiber.StatusBadRequest, wire.CodeValidation, err.Error())
	case errors.Is(err, role.ErrInvalidColour):
		return httputil.Fail(c, fiber.StatusBadRequest, wire.CodeValidation, err.Error())
	case errors.Is(err, role.ErrForbiddenBits):
		return httputil.Fail(c, fiber.StatusBadRequest, wire.CodeValidation, err.Error())
	case errors.Is(err, role.ErrAlreadyExists):
		return httputil.Fail(c, fiber.StatusConflict, wire.CodeConflict, err.Error())
	case errors.Is(err, role.ErrMaxRolesReached):
		return httputil.Fail(c, fiber.StatusBadRequest, wire.CodeValidation, err.Error())
	case errors.Is(err, role.ErrEveryoneImmutable):
		return httputil.Fail(c, fiber.StatusForbidden, wire.CodeValidation, err.Error())
	default:
		h.log.Error().Err(err).Str("handler", "role").Msg("unhandled role service error")
		return httputil.Fail(c, fiber.StatusInternalServerError, wire.CodeInternal, "An internal error occurred")
	}
}
