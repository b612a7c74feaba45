package role

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/uncord-chat/uncord-server/internal/apimodel"
	"github.com/uncord-chat/uncord-server/internal/wire"
)

// Sentinel errors for the role package.
var (
	ErrNotFound           = errors.New("role not found")
	ErrAlreadyExists      = errors.New("role name or position already taken")
	ErrNameLength         = errors.New("role name must be between 1 and 100 characters")
	ErrInvalidPosition    = errors.New("position must be non-negative")
	ErrInvalidPermissions = errors.New("permissions bitfield contains invalid bits")
	ErrForbiddenBits      = errors.New("the @everyone role cannot carry mention_everyone or manage_server")
	ErrInvalidColour      = errors.New("colour must be between 0 and 16777215")
	ErrMaxRolesReached    = errors.New("maximum number of roles reached")
	ErrEveryoneImmutable  = errors.New("the @everyone role cannot be deleted")
)

// Role holds the fields read from the database. GuildID is nil only for system roles shared across guilds.
type Role struct {
	ID          uuid.UUID
	GuildID     *uuid.UUID
	Name        string
	Colour      int
	Position    int
	Hoist       bool
	Permissions wire.Permission
	IsEveryone  bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ToModel converts the internal role struct to the API response type.
func (r *Role) ToModel() apimodel.Role {
	var guildID *string
	if r.GuildID != nil {
		s := r.GuildID.String()
		guildID = &s
	}
	return apimodel.Role{
		ID:          r.ID.String(),
		GuildID:     guildID,
		Name:        r.Name,
		Colour:      r.Colour,
		Position:    r.Position,
		Hoist:       r.Hoist,
		Permissions: uint64(r.Permissions),
		IsEveryone:  r.IsEveryone,
		CreatedAt:   r.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   r.UpdatedAt.Format(time.RFC3339),
	}
}

// CreateParams groups the inputs for creating a new role. GuildID is resolved internally by the repository to the
// deployment's single guild row; callers never supply it.
type CreateParams struct {
	Name        string
	Colour      int
	Permissions wire.Permission
	Hoist       bool
}

// UpdateParams groups the optional fields for updating a role.
type UpdateParams struct {
	Name        *string
	Colour      *int
	Position    *int
	Permissions *wire.Permission
	Hoist       *bool
}

// ValidateNameRequired validates and trims a name that must be present. It returns the trimmed result on success.
func ValidateNameRequired(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if utf8.RuneCountInString(trimmed) < 1 || utf8.RuneCountInString(trimmed) > 100 {
		return "", ErrNameLength
	}
	return trimmed, nil
}

// ValidateName checks that a non-nil name is between 1 and 100 characters (runes) after trimming whitespace. A nil
// pointer means "no change" (useful for PATCH semantics); a non-nil pointer is always validated. On success the
// pointed-to value is replaced with the trimmed result.
func ValidateName(name *string) error {
	if name == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*name)
	if utf8.RuneCountInString(trimmed) < 1 || utf8.RuneCountInString(trimmed) > 100 {
		return ErrNameLength
	}
	*name = trimmed
	return nil
}

// ValidatePosition checks that a non-nil position is non-negative. A nil pointer means "no change."
func ValidatePosition(pos *int) error {
	if pos == nil {
		return nil
	}
	if *pos < 0 {
		return ErrInvalidPosition
	}
	return nil
}

// ValidatePermissions checks that a non-nil permissions bitfield contains only the 24 assigned bits.
func ValidatePermissions(perms *wire.Permission) error {
	if perms == nil {
		return nil
	}
	if uint64(*perms) & ^uint64(wire.AllPermissions) != 0 {
		return ErrInvalidPermissions
	}
	return nil
}

// ValidateEveryoneBits rejects forbidden bits (mention_everyone, manage_server) on the @everyone role, per the
// forbidden-bit enforcement invariant.
func ValidateEveryoneBits(isEveryone bool, perms wire.Permission) error {
	if isEveryone && perms&wire.ForbiddenEveryone != 0 {
		return ErrForbiddenBits
	}
	return nil
}

// ValidateColour checks that a non-nil colour is in the valid RGB range (0 to 0xFFFFFF).
func ValidateColour(colour *int) error {
	if colour == nil {
		return nil
	}
	if *colour < 0 || *colour > 0xFFFFFF {
		return ErrInvalidColour
	}
	return nil
}

// Repository defines the data-access contract for role operations. Every method is implicitly scoped to the
// deployment's single guild row.
type Repository interface {
	List(ctx context.Context) ([]Role, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Role, error)
	Create(ctx context.Context, params CreateParams, maxRoles int) (*Role, error)
	Update(ctx context.Context, id uuid.UUID, params UpdateParams) (*Role, error)
	Delete(ctx context.Context, id uuid.UUID) error
	HighestPosition(ctx context.Context, userID uuid.UUID) (int, error)
}
