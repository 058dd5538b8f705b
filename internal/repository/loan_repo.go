package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"assetlend/internal/model"
)

// LoanFilter narrows loan listings. Zero values mean "no filter".
type LoanFilter struct {
	Status  string
	AssetID *uuid.UUID
	UserID  *uuid.UUID
}

type LoanRepository interface {
	Create(ctx context.Context, l *model.Loan) error
	Update(ctx context.Context, l *model.Loan) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Loan, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Loan, error)
	// ExistsForBorrower reports whether userID holds a loan on assetID in one of statuses.
	ExistsForBorrower(ctx context.Context, userID, assetID uuid.UUID, statuses []string) (bool, error)
	// CountForAsset counts loans on assetID in one of statuses, ignoring excludeID.
	CountForAsset(ctx context.Context, assetID uuid.UUID, statuses []string, excludeID uuid.UUID) (int64, error)
	// ListDueBorrowed returns borrowed loans whose due date is before now, locked for update.
	ListDueBorrowed(ctx context.Context, now time.Time) ([]model.Loan, error)
	List(ctx context.Context, f LoanFilter, skip, limit int) ([]model.Loan, int64, error)
}

type loanRepository struct {
	db *gorm.DB
}

func NewLoanRepository(db *gorm.DB) LoanRepository {
	return &loanRepository{db: db}
}

func (r *loanRepository) Create(ctx context.Context, l *model.Loan) error {
	return GetDB(ctx, r.db).Omit(clause.Associations).Create(l).Error
}

func (r *loanRepository) Update(ctx context.Context, l *model.Loan) error {
	return GetDB(ctx, r.db).Omit(clause.Associations).Save(l).Error
}

func (r *loanRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Loan, error) {
	var l model.Loan
	err := GetDB(ctx, r.db).
		Preload("Asset").
		Preload("User").
		Preload("Approver").
		First(&l, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *loanRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Loan, error) {
	var l model.Loan
	if err := forUpdate(ctx, GetDB(ctx, r.db)).First(&l, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *loanRepository) ExistsForBorrower(ctx context.Context, userID, assetID uuid.UUID, statuses []string) (bool, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.Loan{}).
		Where("user_id = ? AND asset_id = ? AND loan_status IN ?", userID, assetID, statuses).
		Count(&count).Error
	return count > 0, err
}

func (r *loanRepository) CountForAsset(ctx context.Context, assetID uuid.UUID, statuses []string, excludeID uuid.UUID) (int64, error) {
	var count int64
	q := GetDB(ctx, r.db).Model(&model.Loan{}).Where("asset_id = ? AND loan_status IN ?", assetID, statuses)
	if excludeID != uuid.Nil {
		q = q.Where("id <> ?", excludeID)
	}
	err := q.Count(&count).Error
	return count, err
}

func (r *loanRepository) ListDueBorrowed(ctx context.Context, now time.Time) ([]model.Loan, error) {
	var loans []model.Loan
	err := forUpdate(ctx, GetDB(ctx, r.db)).
		Where("loan_status = ? AND due_date IS NOT NULL AND due_date < ?", model.LoanStatusBorrowed, now).
		Order("due_date asc").
		Find(&loans).Error
	return loans, err
}

func (r *loanRepository) List(ctx context.Context, f LoanFilter, skip, limit int) ([]model.Loan, int64, error) {
	var loans []model.Loan
	var total int64

	q := GetDB(ctx, r.db).Model(&model.Loan{})
	if f.Status != "" {
		q = q.Where("loan_status = ?", f.Status)
	}
	if f.AssetID != nil {
		q = q.Where("asset_id = ?", *f.AssetID)
	}
	if f.UserID != nil {
		q = q.Where("user_id = ?", *f.UserID)
	}
	q = q.Session(&gorm.Session{})

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := q.Preload("Asset").Preload("User").Order("requested_at desc").Offset(skip).Limit(limit).Find(&loans).Error; err != nil {
		return nil, 0, err
	}
	return loans, total, nil
}
