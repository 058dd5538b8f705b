package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"assetlend/internal/model"
)

// LentStatuses are the loan statuses of a loan that actually left with its borrower.
var LentStatuses = []string{model.LoanStatusBorrowed, model.LoanStatusOverdue, model.LoanStatusReturned}

type StatisticsRepository interface {
	CountAssetsByStatus(ctx context.Context) ([]model.StatusCount, error)
	// CountLoansByStatus counts every loan, or only userID's when it is non-nil.
	CountLoansByStatus(ctx context.Context, userID *uuid.UUID) ([]model.StatusCount, error)
	TopBorrowedAssets(ctx context.Context, userID *uuid.UUID, start, end time.Time, limit int) ([]model.AssetRanking, error)
}

type statisticsRepository struct {
	db *gorm.DB
}

func NewStatisticsRepository(db *gorm.DB) StatisticsRepository {
	return &statisticsRepository{db: db}
}

func (r *statisticsRepository) CountAssetsByStatus(ctx context.Context) ([]model.StatusCount, error) {
	var rows []model.StatusCount
	if err := GetDB(ctx, r.db).Model(&model.Asset{}).
		Select("current_status AS status, COUNT(*) AS count").
		Group("current_status").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count assets by status: %w", err)
	}
	return rows, nil
}

func (r *statisticsRepository) CountLoansByStatus(ctx context.Context, userID *uuid.UUID) ([]model.StatusCount, error) {
	var rows []model.StatusCount
	q := GetDB(ctx, r.db).Model(&model.Loan{}).
		Select("loan_status AS status, COUNT(*) AS count")
	if userID != nil {
		q = q.Where("user_id = ?", *userID)
	}
	if err := q.Group("loan_status").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count loans by status: %w", err)
	}
	return rows, nil
}

func (r *statisticsRepository) TopBorrowedAssets(ctx context.Context, userID *uuid.UUID, start, end time.Time, limit int) ([]model.AssetRanking, error) {
	var rankings []model.AssetRanking
	q := GetDB(ctx, r.db).Table("asset_loans").
		Select("assets.id AS asset_id, assets.asset_code AS asset_code, assets.name AS name, COUNT(asset_loans.id) AS loan_count").
		Joins("JOIN assets ON assets.id = asset_loans.asset_id").
		Where("asset_loans.loan_status IN ? AND asset_loans.requested_at >= ? AND asset_loans.requested_at <= ?", LentStatuses, start, end)
	if userID != nil {
		q = q.Where("asset_loans.user_id = ?", *userID)
	}
	if err := q.Group("assets.id, assets.asset_code, assets.name").
		Order("loan_count DESC, assets.asset_code ASC").
		Limit(limit).
		Scan(&rankings).Error; err != nil {
		return nil, fmt.Errorf("failed to query top borrowed assets: %w", err)
	}
	return rankings, nil
}
