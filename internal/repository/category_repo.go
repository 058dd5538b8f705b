package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"assetlend/internal/model"
)

type CategoryRepository interface {
	Create(ctx context.Context, c *model.AssetCategory) error
	Update(ctx context.Context, c *model.AssetCategory) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.AssetCategory, error)
	ExistsByName(ctx context.Context, name string, excludeID uuid.UUID) (bool, error)
	CountAssets(ctx context.Context, id uuid.UUID) (int64, error)
	List(ctx context.Context, skip, limit int) ([]model.AssetCategory, int64, error)
}

type categoryRepository struct {
	db *gorm.DB
}

func NewCategoryRepository(db *gorm.DB) CategoryRepository {
	return &categoryRepository{db: db}
}

func (r *categoryRepository) Create(ctx context.Context, c *model.AssetCategory) error {
	return GetDB(ctx, r.db).Create(c).Error
}

func (r *categoryRepository) Update(ctx context.Context, c *model.AssetCategory) error {
	return GetDB(ctx, r.db).Save(c).Error
}

func (r *categoryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.AssetCategory{}).Error
}

func (r *categoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.AssetCategory, error) {
	var c model.AssetCategory
	if err := GetDB(ctx, r.db).First(&c, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *categoryRepository) ExistsByName(ctx context.Context, name string, excludeID uuid.UUID) (bool, error) {
	var count int64
	q := GetDB(ctx, r.db).Model(&model.AssetCategory{}).Where("LOWER(name) = LOWER(?)", name)
	if excludeID != uuid.Nil {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *categoryRepository) CountAssets(ctx context.Context, id uuid.UUID) (int64, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.Asset{}).Where("category_id = ?", id).Count(&count).Error
	return count, err
}

func (r *categoryRepository) List(ctx context.Context, skip, limit int) ([]model.AssetCategory, int64, error) {
	var cats []model.AssetCategory
	var total int64

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.AssetCategory{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := db.Order("name asc").Offset(skip).Limit(limit).Find(&cats).Error; err != nil {
		return nil, 0, err
	}
	return cats, total, nil
}
