package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"assetlend/internal/model"
	"assetlend/internal/security"
)

// Fixed ids of the seeded rows so fixtures and clients can rely on them.
var (
	SuperAdminRoleID = uuid.MustParse("00000000-0000-0000-0000-000000000001")
	UserRoleID       = uuid.MustParse("00000000-0000-0000-0000-000000000002")
	SuperAdminUserID = uuid.MustParse("00000000-0000-0000-0000-000000000010")
	DefaultUserID    = uuid.MustParse("00000000-0000-0000-0000-000000000011")
)

var defaultRoles = []model.Role{
	{
		ID:          SuperAdminRoleID,
		Name:        model.RoleSuperAdmin,
		Description: "Super Administrator with full access to users, roles, assets, categories, loans and audit logs",
		IsSystem:    true,
	},
	{
		ID:          UserRoleID,
		Name:        model.RoleUser,
		Description: "Regular user who can view assets, borrow and return them, and view their own loan history",
		IsSystem:    true,
	},
}

type seedUser struct {
	id       uuid.UUID
	username string
	email    string
	password string
	roleID   uuid.UUID
}

var defaultUsers = []seedUser{
	{SuperAdminUserID, "superadmin", "superadmin@example.com", "admin123", SuperAdminRoleID},
	{DefaultUserID, "user", "user@example.com", "user123", UserRoleID},
}

// Seed creates the default roles and accounts when they are missing.
// Existing rows are left untouched, so it is safe to run on every start.
func Seed(ctx context.Context, db *gorm.DB, hasher security.PasswordHasher, log *zap.Logger) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, r := range defaultRoles {
			role := r
			var existing model.Role
			err := tx.Where("name = ?", role.Name).First(&existing).Error
			if err == nil {
				continue
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("failed to look up role %s: %w", role.Name, err)
			}
			if err := tx.Create(&role).Error; err != nil {
				return fmt.Errorf("failed to seed role %s: %w", role.Name, err)
			}
			log.Info("seeded role", zap.String("name", role.Name))
		}

		for _, u := range defaultUsers {
			var count int64
			if err := tx.Model(&model.User{}).Unscoped().
				Where("username = ? OR email = ?", u.username, u.email).
				Count(&count).Error; err != nil {
				return fmt.Errorf("failed to look up user %s: %w", u.username, err)
			}
			if count > 0 {
				continue
			}

			var role model.Role
			if err := tx.First(&role, "id = ?", u.roleID).Error; err != nil {
				// Roles renamed or recreated under another id: fall back to the name.
				name := model.RoleUser
				if u.roleID == SuperAdminRoleID {
					name = model.RoleSuperAdmin
				}
				if err := tx.Where("name = ?", name).First(&role).Error; err != nil {
					return fmt.Errorf("failed to resolve role for %s: %w", u.username, err)
				}
			}

			hash, err := hasher.Hash(u.password)
			if err != nil {
				return fmt.Errorf("failed to hash password for %s: %w", u.username, err)
			}
			user := model.User{
				ID:           u.id,
				Username:     u.username,
				Email:        u.email,
				PasswordHash: hash,
				RoleID:       role.ID,
				IsActive:     true,
			}
			if err := tx.Create(&user).Error; err != nil {
				return fmt.Errorf("failed to seed user %s: %w", u.username, err)
			}
			log.Info("seeded user", zap.String("username", u.username))
		}
		return nil
	})
}
