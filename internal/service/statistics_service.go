package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"assetlend/internal/apperr"
	"assetlend/internal/authz"
	"assetlend/internal/model"
	"assetlend/internal/repository"
)

const topBorrowedLimit = 5

type StatisticsService interface {
	// GetStatistics reports asset counts for everyone and loan counts scoped to
	// the caller unless they manage loans. Nil bounds default to the current
	// month up to now.
	GetStatistics(ctx context.Context, caller authz.Caller, startDate, endDate *time.Time) (model.DashboardStatistics, error)
}

type statisticsService struct {
	repo  repository.StatisticsRepository
	clock Clock
}

func NewStatisticsService(repo repository.StatisticsRepository, clock Clock) StatisticsService {
	if clock == nil {
		clock = SystemClock{}
	}
	return &statisticsService{repo: repo, clock: clock}
}

func (s *statisticsService) GetStatistics(ctx context.Context, caller authz.Caller, startDate, endDate *time.Time) (model.DashboardStatistics, error) {
	var stats model.DashboardStatistics

	now := s.clock.Now()
	stats.TimeRangeStartDate = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	stats.TimeRangeEndDate = now
	if startDate != nil {
		stats.TimeRangeStartDate = startDate.UTC()
	}
	if endDate != nil {
		stats.TimeRangeEndDate = endDate.UTC()
	}
	if stats.TimeRangeEndDate.Before(stats.TimeRangeStartDate) {
		return stats, apperr.ValidationFields("Invalid date range", map[string]string{"end_date": "must not be before start_date"})
	}

	assetRows, err := s.repo.CountAssetsByStatus(ctx)
	if err != nil {
		return stats, err
	}
	stats.AssetsByStatus = make(map[string]int64, len(assetRows))
	for _, row := range assetRows {
		stats.AssetsByStatus[row.Status] = row.Count
		stats.TotalAssets += row.Count
	}

	var scope *uuid.UUID
	stats.LoansScope = "all"
	if !authz.HasPermission(caller, authz.ManageLoans) {
		id := caller.ID
		scope = &id
		stats.LoansScope = "own"
	}

	loanRows, err := s.repo.CountLoansByStatus(ctx, scope)
	if err != nil {
		return stats, err
	}
	stats.LoansByStatus = make(map[string]int64, len(loanRows))
	for _, row := range loanRows {
		stats.LoansByStatus[row.Status] = row.Count
	}
	stats.AssetsOnLoan = stats.LoansByStatus[model.LoanStatusBorrowed] + stats.LoansByStatus[model.LoanStatusApproved]
	stats.PendingLoans = stats.LoansByStatus[model.LoanStatusPending]
	stats.OverdueLoans = stats.LoansByStatus[model.LoanStatusOverdue]

	top, err := s.repo.TopBorrowedAssets(ctx, scope, stats.TimeRangeStartDate, stats.TimeRangeEndDate, topBorrowedLimit)
	if err != nil {
		return stats, err
	}
	if top == nil {
		top = []model.AssetRanking{}
	}
	stats.TopBorrowedAssets = top
	return stats, nil
}
