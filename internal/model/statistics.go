package model

import (
	"time"
)

// StatusCount is one row of a GROUP BY status aggregate.
type StatusCount struct {
	Status string
	Count  int64
}

// AssetRanking ranks an asset by how often it was lent out in a time range
type AssetRanking struct {
	AssetID   string `json:"asset_id"`
	AssetCode string `json:"asset_code"`
	Name      string `json:"name"`
	LoanCount int64  `json:"loan_count"`
}

// DashboardStatistics aggregates asset and loan counts for the dashboard.
type DashboardStatistics struct {
	TotalAssets       int64            `json:"total_assets"`
	AssetsByStatus    map[string]int64 `json:"assets_by_status"`
	LoansByStatus     map[string]int64 `json:"loans_by_status"`
	AssetsOnLoan      int64            `json:"assets_on_loan"`
	PendingLoans      int64            `json:"pending_loans"`
	OverdueLoans      int64            `json:"overdue_loans"`
	TopBorrowedAssets []AssetRanking   `json:"top_borrowed_assets"`
	// LoansScope is "all" for loan managers and "own" for everyone else.
	LoansScope         string    `json:"loans_scope"`
	TimeRangeStartDate time.Time `json:"time_range_start_date"`
	TimeRangeEndDate   time.Time `json:"time_range_end_date"`
}
