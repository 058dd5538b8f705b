package service

import (
	"context"

	"github.com/google/uuid"

	"assetlend/internal/apperr"
	"assetlend/internal/authz"
	"assetlend/internal/model"
	"assetlend/internal/repository"
	"assetlend/internal/security"
)

// DTOs for Request validation
type CreateUserRequest struct {
	Username string `json:"username" binding:"required,min=3,max=100"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	RoleID   string `json:"role_id" binding:"required,uuid"`
}

type UpdateUserRequest struct {
	Username *string `json:"username" binding:"omitempty,min=3,max=100"`
	Email    *string `json:"email" binding:"omitempty,email"`
	Password *string `json:"password" binding:"omitempty,min=6"`
	RoleID   *string `json:"role_id" binding:"omitempty,uuid"`
	IsActive *bool   `json:"is_active"`
}

type UserListFilter struct {
	IsActive *bool
	RoleID   string
	Search   string
}

// DTO for returning User without exposing sensitive data (e.g. password)
type UserResponse struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	RoleID    uuid.UUID `json:"role_id"`
	Role      string    `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt string    `json:"created_at"`
	UpdatedAt string    `json:"updated_at"`
}

// UserService defines the interface for business logic related to User
type UserService interface {
	CreateUser(ctx context.Context, actor authz.Caller, req CreateUserRequest) (*UserResponse, error)
	GetUser(ctx context.Context, caller authz.Caller, id string) (*UserResponse, error)
	ListUsers(ctx context.Context, f UserListFilter, skip, limit int) ([]UserResponse, int64, error)
	UpdateUser(ctx context.Context, caller authz.Caller, id string, req UpdateUserRequest) (*UserResponse, error)
	DeleteUser(ctx context.Context, actor authz.Caller, id string) error
	SetActive(ctx context.Context, actor authz.Caller, id string, active bool) (*UserResponse, error)
}

type userService struct {
	users  repository.UserRepository
	roles  repository.RoleRepository
	hasher security.PasswordHasher
	gate   *authz.Gate
	audit  AuditService
}

// NewUserService returns a new instance of UserService
func NewUserService(users repository.UserRepository, roles repository.RoleRepository, hasher security.PasswordHasher, gate *authz.Gate, audit AuditService) UserService {
	return &userService{users: users, roles: roles, hasher: hasher, gate: gate, audit: audit}
}

// Helper: parse model to standard json API response
func toUserResponse(user *model.User) *UserResponse {
	return &UserResponse{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		RoleID:    user.RoleID,
		Role:      user.RoleName(),
		IsActive:  user.IsActive,
		CreatedAt: formatTime(user.CreatedAt),
		UpdatedAt: formatTime(user.UpdatedAt),
	}
}

func (s *userService) CreateUser(ctx context.Context, actor authz.Caller, req CreateUserRequest) (*UserResponse, error) {
	if err := s.ensureUnique(ctx, req.Username, req.Email, uuid.Nil); err != nil {
		return nil, err
	}
	role, err := s.findRole(ctx, req.RoleID)
	if err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, apperr.ValidationFields("Invalid password", map[string]string{"password": err.Error()})
	}

	user := &model.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		RoleID:       role.ID,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, notFoundOr(err, "User", "create user")
	}
	user.Role = role

	s.record(ctx, actor, model.ActionCreate, user.ID)
	return toUserResponse(user), nil
}

func (s *userService) GetUser(ctx context.Context, caller authz.Caller, id string) (*UserResponse, error) {
	uid, err := parseID(id, "User")
	if err != nil {
		return nil, err
	}
	if err := s.gate.RequireOwnerOrRole(caller, uid, authz.AdminRoles...); err != nil {
		return nil, err
	}
	user, err := s.users.FindByID(ctx, uid)
	if err != nil {
		return nil, notFoundOr(err, "User", "get user")
	}
	return toUserResponse(user), nil
}

func (s *userService) ListUsers(ctx context.Context, f UserListFilter, skip, limit int) ([]UserResponse, int64, error) {
	filter := repository.UserFilter{IsActive: f.IsActive, Search: f.Search}
	if f.RoleID != "" {
		rid, err := uuid.Parse(f.RoleID)
		if err != nil {
			return nil, 0, apperr.ValidationFields("Invalid role id", map[string]string{"role_id": "must be a uuid"})
		}
		filter.RoleID = &rid
	}

	users, total, err := s.users.List(ctx, filter, skip, limit)
	if err != nil {
		return nil, 0, notFoundOr(err, "User", "list users")
	}
	res := make([]UserResponse, 0, len(users))
	for i := range users {
		res = append(res, *toUserResponse(&users[i]))
	}
	return res, total, nil
}

// UpdateUser lets users edit their own profile; role and active flag stay admin-only.
func (s *userService) UpdateUser(ctx context.Context, caller authz.Caller, id string, req UpdateUserRequest) (*UserResponse, error) {
	uid, err := parseID(id, "User")
	if err != nil {
		return nil, err
	}
	if err := s.gate.RequireOwnerOrRole(caller, uid, authz.AdminRoles...); err != nil {
		return nil, err
	}
	if !caller.IsAdmin() && (req.RoleID != nil || req.IsActive != nil) {
		return nil, apperr.PermissionDenied("Only administrators can change role or account status")
	}

	user, err := s.users.FindByID(ctx, uid)
	if err != nil {
		return nil, notFoundOr(err, "User", "get user")
	}

	username, email := "", ""
	if req.Username != nil && *req.Username != "" {
		username = *req.Username
	}
	if req.Email != nil && *req.Email != "" {
		email = *req.Email
	}
	if err := s.ensureUnique(ctx, username, email, uid); err != nil {
		return nil, err
	}
	if username != "" {
		user.Username = username
	}
	if email != "" {
		user.Email = email
	}
	if req.RoleID != nil && *req.RoleID != "" {
		role, err := s.findRole(ctx, *req.RoleID)
		if err != nil {
			return nil, err
		}
		user.RoleID = role.ID
		user.Role = role
	}
	if req.Password != nil && *req.Password != "" {
		hash, err := s.hasher.Hash(*req.Password)
		if err != nil {
			return nil, apperr.ValidationFields("Invalid password", map[string]string{"password": err.Error()})
		}
		user.PasswordHash = hash
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, notFoundOr(err, "User", "update user")
	}
	s.record(ctx, caller, model.ActionUpdate, user.ID)
	return toUserResponse(user), nil
}

// DeleteUser soft-deletes, so loans and approvals keep their references.
func (s *userService) DeleteUser(ctx context.Context, actor authz.Caller, id string) error {
	uid, err := parseID(id, "User")
	if err != nil {
		return err
	}
	if uid == actor.ID {
		return apperr.Validation("You cannot delete your own account")
	}
	if _, err := s.users.FindByID(ctx, uid); err != nil {
		return notFoundOr(err, "User", "get user")
	}
	if err := s.users.Delete(ctx, uid); err != nil {
		return notFoundOr(err, "User", "delete user")
	}
	s.record(ctx, actor, model.ActionDelete, uid)
	return nil
}

func (s *userService) SetActive(ctx context.Context, actor authz.Caller, id string, active bool) (*UserResponse, error) {
	uid, err := parseID(id, "User")
	if err != nil {
		return nil, err
	}
	if !active && uid == actor.ID {
		return nil, apperr.Validation("You cannot deactivate your own account")
	}
	user, err := s.users.FindByID(ctx, uid)
	if err != nil {
		return nil, notFoundOr(err, "User", "get user")
	}
	user.IsActive = active
	if err := s.users.Update(ctx, user); err != nil {
		return nil, notFoundOr(err, "User", "update user")
	}

	action := model.ActionDeactivate
	if active {
		action = model.ActionActivate
	}
	s.record(ctx, actor, action, uid)
	return toUserResponse(user), nil
}

func (s *userService) ensureUnique(ctx context.Context, username, email string, excludeID uuid.UUID) error {
	if username != "" {
		taken, err := s.users.ExistsByUsername(ctx, username, excludeID)
		if err != nil {
			return notFoundOr(err, "User", "check username")
		}
		if taken {
			return apperr.ValidationFields("Username already exists", map[string]string{"username": "already exists"})
		}
	}
	if email != "" {
		taken, err := s.users.ExistsByEmail(ctx, email, excludeID)
		if err != nil {
			return notFoundOr(err, "User", "check email")
		}
		if taken {
			return apperr.ValidationFields("Email already exists", map[string]string{"email": "already exists"})
		}
	}
	return nil
}

func (s *userService) findRole(ctx context.Context, id string) (*model.Role, error) {
	rid, err := parseID(id, "Role")
	if err != nil {
		return nil, err
	}
	role, err := s.roles.FindByID(ctx, rid)
	if err != nil {
		return nil, notFoundOr(err, "Role", "get role")
	}
	return role, nil
}

func (s *userService) record(ctx context.Context, actor authz.Caller, action string, id uuid.UUID) {
	s.audit.Record(ctx, AuditEntry{
		ActorID:  actor.ID,
		Action:   action,
		Entity:   model.EntityUser,
		EntityID: id.String(),
		ClientIP: ClientIPFrom(ctx),
	})
}
