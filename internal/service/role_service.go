package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"assetlend/internal/apperr"
	"assetlend/internal/authz"
	"assetlend/internal/model"
	"assetlend/internal/repository"
)

// --- DTOs ---

type CreateRoleRequest struct {
	Name        string `json:"name" binding:"required,max=50"`
	Description string `json:"description"`
}

type UpdateRoleRequest struct {
	Name        *string `json:"name" binding:"omitempty,max=50"`
	Description *string `json:"description"`
}

type RoleResponse struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	IsSystem    bool               `json:"is_system"`
	Permissions []authz.Permission `json:"permissions"`
	CreatedAt   string             `json:"created_at"`
}

// --- Interface ---

type RoleService interface {
	ListRoles(ctx context.Context, skip, limit int) ([]RoleResponse, int64, error)
	GetRole(ctx context.Context, id string) (*RoleResponse, error)
	CreateRole(ctx context.Context, actor authz.Caller, req CreateRoleRequest) (*RoleResponse, error)
	UpdateRole(ctx context.Context, actor authz.Caller, id string, req UpdateRoleRequest) (*RoleResponse, error)
}

type roleService struct {
	roles repository.RoleRepository
	audit AuditService
}

func NewRoleService(roles repository.RoleRepository, audit AuditService) RoleService {
	return &roleService{roles: roles, audit: audit}
}

// --- Implementation ---

// Permissions are derived from the role name, so the response shows what the
// name grants; unknown names grant nothing.
func toRoleResponse(r *model.Role) RoleResponse {
	return RoleResponse{
		ID:          r.ID.String(),
		Name:        r.Name,
		Description: r.Description,
		IsSystem:    r.IsSystem,
		Permissions: authz.PermissionsFor(r.Name),
		CreatedAt:   formatTime(r.CreatedAt),
	}
}

func (s *roleService) ListRoles(ctx context.Context, skip, limit int) ([]RoleResponse, int64, error) {
	roles, total, err := s.roles.List(ctx, skip, limit)
	if err != nil {
		return nil, 0, notFoundOr(err, "Role", "fetch roles")
	}
	res := make([]RoleResponse, 0, len(roles))
	for i := range roles {
		res = append(res, toRoleResponse(&roles[i]))
	}
	return res, total, nil
}

func (s *roleService) GetRole(ctx context.Context, id string) (*RoleResponse, error) {
	rid, err := parseID(id, "Role")
	if err != nil {
		return nil, err
	}
	role, err := s.roles.FindByID(ctx, rid)
	if err != nil {
		return nil, notFoundOr(err, "Role", "get role")
	}
	res := toRoleResponse(role)
	return &res, nil
}

func (s *roleService) CreateRole(ctx context.Context, actor authz.Caller, req CreateRoleRequest) (*RoleResponse, error) {
	name := authz.NormalizeRole(strings.TrimSpace(req.Name))
	if name == "" {
		return nil, apperr.ValidationFields("Role name is required", map[string]string{"name": "required"})
	}
	if err := s.ensureUniqueName(ctx, name, uuid.Nil); err != nil {
		return nil, err
	}

	role := &model.Role{Name: name, Description: req.Description}
	if err := s.roles.Create(ctx, role); err != nil {
		return nil, notFoundOr(err, "Role", "create role")
	}
	s.record(ctx, actor, model.ActionCreate, role.ID)
	res := toRoleResponse(role)
	return &res, nil
}

func (s *roleService) UpdateRole(ctx context.Context, actor authz.Caller, id string, req UpdateRoleRequest) (*RoleResponse, error) {
	rid, err := parseID(id, "Role")
	if err != nil {
		return nil, err
	}
	role, err := s.roles.FindByID(ctx, rid)
	if err != nil {
		return nil, notFoundOr(err, "Role", "get role")
	}

	if req.Name != nil {
		name := authz.NormalizeRole(strings.TrimSpace(*req.Name))
		if name != authz.NormalizeRole(role.Name) {
			if role.IsSystem {
				return nil, apperr.Validation("System roles cannot be renamed")
			}
			if name == "" {
				return nil, apperr.ValidationFields("Role name is required", map[string]string{"name": "required"})
			}
			if err := s.ensureUniqueName(ctx, name, role.ID); err != nil {
				return nil, err
			}
			role.Name = name
		}
	}
	if req.Description != nil {
		role.Description = strings.TrimSpace(*req.Description)
	}

	if err := s.roles.Update(ctx, role); err != nil {
		return nil, notFoundOr(err, "Role", "update role")
	}
	s.record(ctx, actor, model.ActionUpdate, role.ID)
	res := toRoleResponse(role)
	return &res, nil
}

func (s *roleService) ensureUniqueName(ctx context.Context, name string, excludeID uuid.UUID) error {
	existing, err := s.roles.FindByName(ctx, name)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to check role name: %w", err)
	}
	if existing.ID != excludeID {
		return apperr.ValidationFields("Role name already exists", map[string]string{"name": "already exists"})
	}
	return nil
}

func (s *roleService) record(ctx context.Context, actor authz.Caller, action string, id uuid.UUID) {
	s.audit.Record(ctx, AuditEntry{
		ActorID:  actor.ID,
		Action:   action,
		Entity:   model.EntityRole,
		EntityID: id.String(),
		ClientIP: ClientIPFrom(ctx),
	})
}
