package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"assetlend/internal/model"
)

// UserFilter narrows user listings. Zero values mean "no filter".
type UserFilter struct {
	IsActive *bool
	RoleID   *uuid.UUID
	Search   string // username or email
}

// UserRepository defines the interface for data access of User entities
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	ExistsByUsername(ctx context.Context, username string, excludeID uuid.UUID) (bool, error)
	ExistsByEmail(ctx context.Context, email string, excludeID uuid.UUID) (bool, error)
	List(ctx context.Context, f UserFilter, skip, limit int) ([]model.User, int64, error)
	Update(ctx context.Context, user *model.User) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a new instance of UserRepository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	return GetDB(ctx, r.db).Omit(clause.Associations).Create(user).Error
}

func (r *userRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var user model.User
	if err := GetDB(ctx, r.db).Preload("Role").First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	if err := GetDB(ctx, r.db).Preload("Role").First(&user, "LOWER(email) = LOWER(?)", email).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// ExistsByUsername also counts soft-deleted rows, which still hold the unique index.
func (r *userRepository) ExistsByUsername(ctx context.Context, username string, excludeID uuid.UUID) (bool, error) {
	return r.exists(ctx, "username = ?", username, excludeID)
}

func (r *userRepository) ExistsByEmail(ctx context.Context, email string, excludeID uuid.UUID) (bool, error) {
	return r.exists(ctx, "LOWER(email) = LOWER(?)", email, excludeID)
}

func (r *userRepository) exists(ctx context.Context, cond string, value string, excludeID uuid.UUID) (bool, error) {
	var count int64
	q := GetDB(ctx, r.db).Unscoped().Model(&model.User{}).Where(cond, value)
	if excludeID != uuid.Nil {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *userRepository) List(ctx context.Context, f UserFilter, skip, limit int) ([]model.User, int64, error) {
	var users []model.User
	var total int64

	q := GetDB(ctx, r.db).Model(&model.User{})
	if f.IsActive != nil {
		q = q.Where("is_active = ?", *f.IsActive)
	}
	if f.RoleID != nil {
		q = q.Where("role_id = ?", *f.RoleID)
	}
	if f.Search != "" {
		p := likePattern(f.Search)
		q = q.Where("LOWER(username) LIKE LOWER(?) OR LOWER(email) LIKE LOWER(?)", p, p)
	}
	q = q.Session(&gorm.Session{})

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := q.Preload("Role").Order("created_at desc").Offset(skip).Limit(limit).Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	return GetDB(ctx, r.db).Omit(clause.Associations).Save(user).Error
}

func (r *userRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.User{}).Error
}
