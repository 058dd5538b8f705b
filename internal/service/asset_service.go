package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"assetlend/internal/apperr"
	"assetlend/internal/authz"
	"assetlend/internal/model"
	"assetlend/internal/repository"
)

// --- DTOs ---

type CreateAssetRequest struct {
	AssetCode      string           `json:"asset_code" binding:"required,max=100"`
	Name           string           `json:"name" binding:"required,max=150"`
	SerialNumber   string           `json:"serial_number" binding:"required,max=150"`
	CategoryID     string           `json:"category_id" binding:"required,uuid"`
	CurrentStatus  string           `json:"current_status" binding:"omitempty,max=50"`
	AssetCondition string           `json:"asset_condition" binding:"omitempty,max=50"`
	Description    string           `json:"description"`
	PICUserID      *string          `json:"pic_user_id" binding:"omitempty,uuid"`
	PurchaseCost   *decimal.Decimal `json:"purchase_cost" swaggertype:"string"`
}

type UpdateAssetRequest struct {
	Name           *string          `json:"name" binding:"omitempty,min=1,max=150"`
	SerialNumber   *string          `json:"serial_number" binding:"omitempty,min=1,max=150"`
	CategoryID     *string          `json:"category_id" binding:"omitempty,uuid"`
	CurrentStatus  *string          `json:"current_status" binding:"omitempty,max=50"`
	AssetCondition *string          `json:"asset_condition" binding:"omitempty,max=50"`
	Description    *string          `json:"description"`
	PICUserID      *string          `json:"pic_user_id" binding:"omitempty,uuid"`
	PurchaseCost   *decimal.Decimal `json:"purchase_cost" swaggertype:"string"`
}

type AssetListFilter struct {
	Status     string
	CategoryID string
	Search     string
}

type AssetResponse struct {
	ID             string  `json:"id"`
	AssetCode      string  `json:"asset_code"`
	Name           string  `json:"name"`
	SerialNumber   string  `json:"serial_number"`
	CategoryID     string  `json:"category_id"`
	CategoryName   string  `json:"category_name,omitempty"`
	CurrentStatus  string  `json:"current_status"`
	AssetCondition string  `json:"asset_condition"`
	Description    string  `json:"description"`
	PICUserID      *string `json:"pic_user_id"`
	PurchaseCost   *string `json:"purchase_cost"`
	CreatedAt      string  `json:"created_at"`
	UpdatedAt      string  `json:"updated_at"`
}

// --- Interface ---

type AssetService interface {
	List(ctx context.Context, f AssetListFilter, skip, limit int) ([]AssetResponse, int64, error)
	Get(ctx context.Context, id string) (*AssetResponse, error)
	Create(ctx context.Context, actor authz.Caller, req CreateAssetRequest) (*AssetResponse, error)
	Update(ctx context.Context, actor authz.Caller, id string, req UpdateAssetRequest) (*AssetResponse, error)
	Delete(ctx context.Context, actor authz.Caller, id string) error
}

type assetService struct {
	tm         repository.TransactionManager
	assets     repository.AssetRepository
	categories repository.CategoryRepository
	users      repository.UserRepository
	loans      repository.LoanRepository
	audit      AuditService
}

func NewAssetService(tm repository.TransactionManager, assets repository.AssetRepository, categories repository.CategoryRepository, users repository.UserRepository, loans repository.LoanRepository, audit AuditService) AssetService {
	return &assetService{tm: tm, assets: assets, categories: categories, users: users, loans: loans, audit: audit}
}

func toAssetResponse(a *model.Asset) *AssetResponse {
	r := &AssetResponse{
		ID:             a.ID.String(),
		AssetCode:      a.AssetCode,
		Name:           a.Name,
		SerialNumber:   a.SerialNumber,
		CategoryID:     a.CategoryID.String(),
		CurrentStatus:  a.CurrentStatus,
		AssetCondition: a.AssetCondition,
		Description:    a.Description,
		CreatedAt:      formatTime(a.CreatedAt),
		UpdatedAt:      formatTime(a.UpdatedAt),
	}
	if a.Category != nil {
		r.CategoryName = a.Category.Name
	}
	if a.PICUserID != nil {
		s := a.PICUserID.String()
		r.PICUserID = &s
	}
	if a.PurchaseCost.Valid {
		s := a.PurchaseCost.Decimal.StringFixed(2)
		r.PurchaseCost = &s
	}
	return r
}

// --- Implementation ---

func (s *assetService) List(ctx context.Context, f AssetListFilter, skip, limit int) ([]AssetResponse, int64, error) {
	filter := repository.AssetFilter{Status: f.Status, Search: f.Search}
	if f.Status != "" && !model.IsValidAssetStatus(f.Status) {
		return nil, 0, apperr.ValidationFields("Invalid asset status", map[string]string{"status": "unknown asset status"})
	}
	if f.CategoryID != "" {
		cid, err := uuid.Parse(f.CategoryID)
		if err != nil {
			return nil, 0, apperr.ValidationFields("Invalid category id", map[string]string{"category_id": "must be a uuid"})
		}
		filter.CategoryID = &cid
	}

	assets, total, err := s.assets.List(ctx, filter, skip, limit)
	if err != nil {
		return nil, 0, notFoundOr(err, "Asset", "list assets")
	}
	res := make([]AssetResponse, 0, len(assets))
	for i := range assets {
		res = append(res, *toAssetResponse(&assets[i]))
	}
	return res, total, nil
}

func (s *assetService) Get(ctx context.Context, id string) (*AssetResponse, error) {
	aid, err := parseID(id, "Asset")
	if err != nil {
		return nil, err
	}
	a, err := s.assets.FindByID(ctx, aid)
	if err != nil {
		return nil, notFoundOr(err, "Asset", "get asset")
	}
	return toAssetResponse(a), nil
}

func (s *assetService) Create(ctx context.Context, actor authz.Caller, req CreateAssetRequest) (*AssetResponse, error) {
	status := req.CurrentStatus
	if status == "" {
		status = model.AssetStatusAvailable
	}
	if !model.IsValidAssetStatus(status) {
		return nil, apperr.ValidationFields("Invalid asset status", map[string]string{"current_status": "unknown asset status"})
	}
	if err := s.ensureUnique(ctx, req.AssetCode, req.SerialNumber, uuid.Nil); err != nil {
		return nil, err
	}
	category, err := s.findCategory(ctx, req.CategoryID)
	if err != nil {
		return nil, err
	}
	pic, err := s.findPIC(ctx, req.PICUserID)
	if err != nil {
		return nil, err
	}

	a := &model.Asset{
		AssetCode:      req.AssetCode,
		Name:           req.Name,
		SerialNumber:   req.SerialNumber,
		CategoryID:     category.ID,
		CurrentStatus:  status,
		AssetCondition: req.AssetCondition,
		Description:    req.Description,
		PICUserID:      pic,
	}
	if req.PurchaseCost != nil {
		a.PurchaseCost = decimal.NewNullDecimal(*req.PurchaseCost)
	}
	if err := s.assets.Create(ctx, a); err != nil {
		return nil, notFoundOr(err, "Asset", "create asset")
	}
	a.Category = category

	s.record(ctx, actor, model.ActionCreate, a.ID)
	return toAssetResponse(a), nil
}

// Update is the generic edit path. It may not touch current_status while a
// loan on the asset is still open; loan transitions own that field then.
func (s *assetService) Update(ctx context.Context, actor authz.Caller, id string, req UpdateAssetRequest) (*AssetResponse, error) {
	aid, err := parseID(id, "Asset")
	if err != nil {
		return nil, err
	}

	var a *model.Asset
	err = s.tm.RunInTx(ctx, func(txCtx context.Context) error {
		a, err = s.assets.FindByIDForUpdate(txCtx, aid)
		if err != nil {
			return notFoundOr(err, "Asset", "get asset")
		}

		if req.SerialNumber != nil && *req.SerialNumber != a.SerialNumber {
			if err := s.ensureUnique(txCtx, "", *req.SerialNumber, a.ID); err != nil {
				return err
			}
			a.SerialNumber = *req.SerialNumber
		}
		if req.CategoryID != nil {
			category, err := s.findCategory(txCtx, *req.CategoryID)
			if err != nil {
				return err
			}
			a.CategoryID = category.ID
		}
		if req.PICUserID != nil {
			pic, err := s.findPIC(txCtx, req.PICUserID)
			if err != nil {
				return err
			}
			a.PICUserID = pic
		}
		if req.CurrentStatus != nil && *req.CurrentStatus != a.CurrentStatus {
			if !model.IsValidAssetStatus(*req.CurrentStatus) {
				return apperr.ValidationFields("Invalid asset status", map[string]string{"current_status": "unknown asset status"})
			}
			open, err := s.loans.CountForAsset(txCtx, a.ID, model.NonTerminalLoanStatuses, uuid.Nil)
			if err != nil {
				return notFoundOr(err, "Loan", "check open loans")
			}
			if open > 0 {
				return apperr.Validation("Asset status cannot be changed while it has an open loan")
			}
			a.CurrentStatus = *req.CurrentStatus
		}
		if req.Name != nil {
			a.Name = *req.Name
		}
		if req.AssetCondition != nil {
			a.AssetCondition = *req.AssetCondition
		}
		if req.Description != nil {
			a.Description = *req.Description
		}
		if req.PurchaseCost != nil {
			a.PurchaseCost = decimal.NewNullDecimal(*req.PurchaseCost)
		}

		if err := s.assets.Update(txCtx, a); err != nil {
			return notFoundOr(err, "Asset", "update asset")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, actor, model.ActionUpdate, a.ID)
	fresh, err := s.assets.FindByID(ctx, a.ID)
	if err != nil {
		return nil, notFoundOr(err, "Asset", "get asset")
	}
	return toAssetResponse(fresh), nil
}

// Delete refuses assets with any loan history; loans are never deleted.
func (s *assetService) Delete(ctx context.Context, actor authz.Caller, id string) error {
	aid, err := parseID(id, "Asset")
	if err != nil {
		return err
	}
	err = s.tm.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.assets.FindByIDForUpdate(txCtx, aid); err != nil {
			return notFoundOr(err, "Asset", "get asset")
		}
		open, err := s.loans.CountForAsset(txCtx, aid, model.NonTerminalLoanStatuses, uuid.Nil)
		if err != nil {
			return notFoundOr(err, "Loan", "check open loans")
		}
		if open > 0 {
			return apperr.Validation("Asset cannot be deleted while it has an open loan")
		}
		history, err := s.loans.CountForAsset(txCtx, aid, []string{model.LoanStatusRejected, model.LoanStatusReturned}, uuid.Nil)
		if err != nil {
			return notFoundOr(err, "Loan", "check loan history")
		}
		if history > 0 {
			return apperr.Validation("Asset has loan history and cannot be deleted; decommission it instead")
		}
		if err := s.assets.Delete(txCtx, aid); err != nil {
			return notFoundOr(err, "Asset", "delete asset")
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.record(ctx, actor, model.ActionDelete, aid)
	return nil
}

func (s *assetService) ensureUnique(ctx context.Context, code, serial string, excludeID uuid.UUID) error {
	if code != "" {
		taken, err := s.assets.ExistsByCode(ctx, code, excludeID)
		if err != nil {
			return notFoundOr(err, "Asset", "check asset code")
		}
		if taken {
			return apperr.ValidationFields("Asset code already exists", map[string]string{"asset_code": "already exists"})
		}
	}
	if serial != "" {
		taken, err := s.assets.ExistsBySerial(ctx, serial, excludeID)
		if err != nil {
			return notFoundOr(err, "Asset", "check serial number")
		}
		if taken {
			return apperr.ValidationFields("Serial number already exists", map[string]string{"serial_number": "already exists"})
		}
	}
	return nil
}

func (s *assetService) findCategory(ctx context.Context, id string) (*model.AssetCategory, error) {
	cid, err := parseID(id, "Asset Category")
	if err != nil {
		return nil, err
	}
	c, err := s.categories.FindByID(ctx, cid)
	if err != nil {
		return nil, notFoundOr(err, "Asset Category", "get category")
	}
	return c, nil
}

// findPIC resolves the optional person in charge; an empty id clears it.
func (s *assetService) findPIC(ctx context.Context, id *string) (*uuid.UUID, error) {
	if id == nil || *id == "" {
		return nil, nil
	}
	uid, err := parseID(*id, "User")
	if err != nil {
		return nil, err
	}
	if _, err := s.users.FindByID(ctx, uid); err != nil {
		return nil, notFoundOr(err, "User", "get person in charge")
	}
	return &uid, nil
}

func (s *assetService) record(ctx context.Context, actor authz.Caller, action string, id uuid.UUID) {
	s.audit.Record(ctx, AuditEntry{
		ActorID:  actor.ID,
		Action:   action,
		Entity:   model.EntityAsset,
		EntityID: id.String(),
		ClientIP: ClientIPFrom(ctx),
	})
}
