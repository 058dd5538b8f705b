package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"assetlend/internal/model"
)

// AssetFilter narrows asset listings. Zero values mean "no filter".
type AssetFilter struct {
	Status     string
	CategoryID *uuid.UUID
	Search     string // name, asset code or serial number
}

type AssetRepository interface {
	Create(ctx context.Context, a *model.Asset) error
	Update(ctx context.Context, a *model.Asset) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Asset, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Asset, error)
	ExistsByCode(ctx context.Context, code string, excludeID uuid.UUID) (bool, error)
	ExistsBySerial(ctx context.Context, serial string, excludeID uuid.UUID) (bool, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	List(ctx context.Context, f AssetFilter, skip, limit int) ([]model.Asset, int64, error)
}

type assetRepository struct {
	db *gorm.DB
}

func NewAssetRepository(db *gorm.DB) AssetRepository {
	return &assetRepository{db: db}
}

func (r *assetRepository) Create(ctx context.Context, a *model.Asset) error {
	return GetDB(ctx, r.db).Omit(clause.Associations).Create(a).Error
}

func (r *assetRepository) Update(ctx context.Context, a *model.Asset) error {
	return GetDB(ctx, r.db).Omit(clause.Associations).Save(a).Error
}

func (r *assetRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.Asset{}).Error
}

func (r *assetRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Asset, error) {
	var a model.Asset
	if err := GetDB(ctx, r.db).Preload("Category").First(&a, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// FindByIDForUpdate locks the asset row for the rest of the transaction.
func (r *assetRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Asset, error) {
	var a model.Asset
	if err := forUpdate(ctx, GetDB(ctx, r.db)).First(&a, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *assetRepository) ExistsByCode(ctx context.Context, code string, excludeID uuid.UUID) (bool, error) {
	return r.exists(ctx, "asset_code = ?", code, excludeID)
}

func (r *assetRepository) ExistsBySerial(ctx context.Context, serial string, excludeID uuid.UUID) (bool, error) {
	return r.exists(ctx, "serial_number = ?", serial, excludeID)
}

func (r *assetRepository) exists(ctx context.Context, cond, value string, excludeID uuid.UUID) (bool, error) {
	var count int64
	q := GetDB(ctx, r.db).Model(&model.Asset{}).Where(cond, value)
	if excludeID != uuid.Nil {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *assetRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	res := GetDB(ctx, r.db).Model(&model.Asset{}).Where("id = ?", id).Update("current_status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *assetRepository) List(ctx context.Context, f AssetFilter, skip, limit int) ([]model.Asset, int64, error) {
	var assets []model.Asset
	var total int64

	q := GetDB(ctx, r.db).Model(&model.Asset{})
	if f.Status != "" {
		q = q.Where("current_status = ?", f.Status)
	}
	if f.CategoryID != nil {
		q = q.Where("category_id = ?", *f.CategoryID)
	}
	if f.Search != "" {
		p := likePattern(f.Search)
		q = q.Where("LOWER(name) LIKE LOWER(?) OR LOWER(asset_code) LIKE LOWER(?) OR LOWER(serial_number) LIKE LOWER(?)", p, p, p)
	}
	q = q.Session(&gorm.Session{})

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := q.Preload("Category").Order("created_at desc").Offset(skip).Limit(limit).Find(&assets).Error; err != nil {
		return nil, 0, err
	}
	return assets, total, nil
}
