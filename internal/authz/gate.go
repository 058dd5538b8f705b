package authz

import (
	"fmt"

	"github.com/google/uuid"

	"assetlend/internal/apperr"
	"assetlend/internal/model"
)

// Caller is the resolved identity behind a request.
type Caller struct {
	ID       uuid.UUID
	Username string
	Role     string
	IsActive bool
}

func (c Caller) RoleName() string { return c.Role }

// IsAdmin reports whether the caller holds one of AdminRoles.
func (c Caller) IsAdmin() bool { return IsAdminRole(c.Role) }

// CallerFromUser builds a Caller from a user loaded with its role.
func CallerFromUser(u *model.User) Caller {
	return Caller{
		ID:       u.ID,
		Username: u.Username,
		Role:     u.RoleName(),
		IsActive: u.IsActive,
	}
}

// Gate authorizes a caller against an operation. Every mutating or listing
// operation goes through exactly one of its three checks.
type Gate struct{}

func NewGate() *Gate {
	return &Gate{}
}

func (g *Gate) active(c Caller) error {
	if !c.IsActive {
		return apperr.InactiveAccount()
	}
	return nil
}

// RequireRole rejects unless the caller's role is one of roles.
func (g *Gate) RequireRole(c Caller, roles ...string) error {
	if err := g.active(c); err != nil {
		return err
	}
	if !roleIn(c.Role, roles) {
		return apperr.PermissionDenied("This action requires Super Admin access")
	}
	return nil
}

// RequireOwnerOrRole lets holders of roles through; everyone else must own the resource.
func (g *Gate) RequireOwnerOrRole(c Caller, ownerID uuid.UUID, roles ...string) error {
	if err := g.active(c); err != nil {
		return err
	}
	if roleIn(c.Role, roles) {
		return nil
	}
	if c.ID != ownerID {
		return apperr.PermissionDenied("You can only access your own data")
	}
	return nil
}

// RequirePermission rejects unless the caller's role grants p.
func (g *Gate) RequirePermission(c Caller, p Permission) error {
	if err := g.active(c); err != nil {
		return err
	}
	if !HasPermission(c, p) {
		return apperr.PermissionDenied(fmt.Sprintf("You don't have permission to %s", p))
	}
	return nil
}
