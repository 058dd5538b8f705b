package service

import (
	"context"

	"github.com/google/uuid"

	"assetlend/internal/apperr"
	"assetlend/internal/model"
	"assetlend/internal/repository"
)

// AssetAvailability owns an asset's current_status within the loan flow.
// Its writers run inside the caller's loan transaction.
type AssetAvailability struct {
	assets repository.AssetRepository
	loans  repository.LoanRepository
}

func NewAssetAvailability(assets repository.AssetRepository, loans repository.LoanRepository) *AssetAvailability {
	return &AssetAvailability{assets: assets, loans: loans}
}

// EnsureAvailable rejects any asset whose status is not exactly available.
func (a *AssetAvailability) EnsureAvailable(asset *model.Asset) error {
	if asset.CurrentStatus != model.AssetStatusAvailable {
		return apperr.Validation("Asset is not available for borrowing")
	}
	return nil
}

// LockAsset loads the asset row for update within the current transaction.
func (a *AssetAvailability) LockAsset(ctx context.Context, assetID uuid.UUID) (*model.Asset, error) {
	asset, err := a.assets.FindByIDForUpdate(ctx, assetID)
	if err != nil {
		return nil, notFoundOr(err, "Asset", "load asset")
	}
	return asset, nil
}

// HeldByOther reports whether a loan other than loanID currently has the asset out.
func (a *AssetAvailability) HeldByOther(ctx context.Context, assetID, loanID uuid.UUID) (bool, error) {
	n, err := a.loans.CountForAsset(ctx, assetID, []string{model.LoanStatusBorrowed, model.LoanStatusOverdue}, loanID)
	if err != nil {
		return false, notFoundOr(err, "Loan", "check asset holders")
	}
	return n > 0, nil
}

func (a *AssetAvailability) MarkBorrowed(ctx context.Context, assetID uuid.UUID) error {
	return a.setStatus(ctx, assetID, model.AssetStatusBorrowed)
}

func (a *AssetAvailability) MarkAvailable(ctx context.Context, assetID uuid.UUID) error {
	return a.setStatus(ctx, assetID, model.AssetStatusAvailable)
}

func (a *AssetAvailability) setStatus(ctx context.Context, assetID uuid.UUID, status string) error {
	if err := a.assets.UpdateStatus(ctx, assetID, status); err != nil {
		return notFoundOr(err, "Asset", "update asset status")
	}
	return nil
}
