package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"assetlend/internal/apperr"
	"assetlend/internal/authz"
	"assetlend/internal/lock"
	"assetlend/internal/model"
	"assetlend/internal/repository"
	"assetlend/pkg/metrics"
)

// --- DTOs ---

type CreateLoanRequest struct {
	AssetID string     `json:"asset_id" binding:"required,uuid"`
	DueDate *time.Time `json:"due_date"`
	Notes   *string    `json:"notes"`
}

type LoanStatusUpdate struct {
	Notes *string `json:"notes"`
}

type LoanListFilter struct {
	Status  string
	AssetID string
}

type LoanAssetSummary struct {
	ID            string `json:"id"`
	AssetCode     string `json:"asset_code"`
	Name          string `json:"name"`
	CurrentStatus string `json:"current_status"`
}

type LoanResponse struct {
	ID              string            `json:"id"`
	AssetID         string            `json:"asset_id"`
	UserID          string            `json:"user_id"`
	Username        string            `json:"username,omitempty"`
	LoanStatus      string            `json:"loan_status"`
	RequestedAt     string            `json:"requested_at"`
	BorrowedAt      *string           `json:"borrowed_at"`
	DueDate         *string           `json:"due_date"`
	ReturnedAt      *string           `json:"returned_at"`
	Notes           string            `json:"notes"`
	ApprovedBy      *string           `json:"approved_by"`
	StatusChangedAt *string           `json:"status_changed_at"`
	Asset           *LoanAssetSummary `json:"asset,omitempty"`
	CreatedAt       string            `json:"created_at"`
	UpdatedAt       string            `json:"updated_at"`
}

// Owner lets event fan-out restrict a loan event to its borrower.
func (r *LoanResponse) Owner() string { return r.UserID }

// --- Interface ---

// LoanService runs the loan lifecycle. Every transition is one transaction
// under the asset's keyed lock, with the loan row re-read FOR UPDATE.
type LoanService interface {
	CreateLoanRequest(ctx context.Context, borrower authz.Caller, req CreateLoanRequest) (*LoanResponse, error)
	Approve(ctx context.Context, loanID string, approver authz.Caller, notes *string) (*LoanResponse, error)
	Reject(ctx context.Context, loanID string, approver authz.Caller, notes *string) (*LoanResponse, error)
	StartBorrowing(ctx context.Context, loanID string, caller authz.Caller) (*LoanResponse, error)
	ReturnLoan(ctx context.Context, loanID string, caller authz.Caller, isAdmin bool, notes *string) (*LoanResponse, error)
	// CheckOverdueLoans attributes audit entries to actor; uuid.Nil marks a system run.
	CheckOverdueLoans(ctx context.Context, actor uuid.UUID) ([]LoanResponse, error)
	GetLoan(ctx context.Context, loanID string, caller authz.Caller) (*LoanResponse, error)
	ListLoans(ctx context.Context, caller authz.Caller, f LoanListFilter, skip, limit int) ([]LoanResponse, int64, error)
}

type loanService struct {
	tm           repository.TransactionManager
	loans        repository.LoanRepository
	assets       repository.AssetRepository
	availability *AssetAvailability
	gate         *authz.Gate
	locker       lock.Locker
	audit        AuditService
	events       EventPublisher
	metrics      *metrics.Metrics
	clock        Clock
	log          *zap.Logger
}

type LoanServiceDeps struct {
	TxManager repository.TransactionManager
	Loans     repository.LoanRepository
	Assets    repository.AssetRepository
	Gate      *authz.Gate
	Locker    lock.Locker
	Audit     AuditService
	Events    EventPublisher
	Metrics   *metrics.Metrics
	Clock     Clock
	Logger    *zap.Logger
}

func NewLoanService(d LoanServiceDeps) LoanService {
	if d.Clock == nil {
		d.Clock = SystemClock{}
	}
	if d.Events == nil {
		d.Events = nopPublisher{}
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Gate == nil {
		d.Gate = authz.NewGate()
	}
	return &loanService{
		tm:           d.TxManager,
		loans:        d.Loans,
		assets:       d.Assets,
		availability: NewAssetAvailability(d.Assets, d.Loans),
		gate:         d.Gate,
		locker:       d.Locker,
		audit:        d.Audit,
		events:       d.Events,
		metrics:      d.Metrics,
		clock:        d.Clock,
		log:          d.Logger,
	}
}

// --- Implementation ---

func (s *loanService) CreateLoanRequest(ctx context.Context, borrower authz.Caller, req CreateLoanRequest) (*LoanResponse, error) {
	assetID, err := parseID(req.AssetID, "Asset")
	if err != nil {
		return nil, err
	}

	release, err := s.acquire(ctx, assetID)
	if err != nil {
		return nil, err
	}
	defer release()

	now := s.clock.Now()
	loan := &model.Loan{
		AssetID:     assetID,
		UserID:      borrower.ID,
		RequestedAt: now,
		LoanStatus:  model.LoanStatusPending,
	}
	if req.DueDate != nil {
		due := req.DueDate.UTC()
		loan.DueDate = &due
	}
	if req.Notes != nil {
		loan.Notes = *req.Notes
	}

	err = s.tm.RunInTx(ctx, func(txCtx context.Context) error {
		asset, err := s.availability.LockAsset(txCtx, assetID)
		if err != nil {
			return err
		}
		if err := s.availability.EnsureAvailable(asset); err != nil {
			return err
		}
		dup, err := s.loans.ExistsForBorrower(txCtx, borrower.ID, assetID, model.NonTerminalLoanStatuses)
		if err != nil {
			return fmt.Errorf("failed to check existing loans: %w", err)
		}
		if dup {
			return apperr.Validation("You already have an active loan request for this asset")
		}
		// At most one non-terminal loan per asset, whoever the borrower is.
		open, err := s.loans.CountForAsset(txCtx, assetID, model.NonTerminalLoanStatuses, uuid.Nil)
		if err != nil {
			return fmt.Errorf("failed to check asset loans: %w", err)
		}
		if open > 0 {
			return apperr.Validation("Asset already has an active loan request")
		}
		if err := s.loans.Create(txCtx, loan); err != nil {
			return fmt.Errorf("failed to create loan: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.afterTransition(ctx, loan.ID, "none", model.LoanStatusPending, model.ActionCreate, borrower.ID)
}

func (s *loanService) Approve(ctx context.Context, loanID string, approver authz.Caller, notes *string) (*LoanResponse, error) {
	return s.transition(ctx, loanID, approver.ID, transitionStep{
		to:     model.LoanStatusApproved,
		action: model.ActionApproveLoan,
		apply: func(_ context.Context, loan *model.Loan) error {
			loan.ApprovedBy = &approver.ID
			setNotes(loan, notes)
			return nil
		},
	})
}

func (s *loanService) Reject(ctx context.Context, loanID string, approver authz.Caller, notes *string) (*LoanResponse, error) {
	return s.transition(ctx, loanID, approver.ID, transitionStep{
		to:     model.LoanStatusRejected,
		action: model.ActionRejectLoan,
		apply: func(txCtx context.Context, loan *model.Loan) error {
			loan.ApprovedBy = &approver.ID
			setNotes(loan, notes)
			return s.availability.MarkAvailable(txCtx, loan.AssetID)
		},
	})
}

func (s *loanService) StartBorrowing(ctx context.Context, loanID string, caller authz.Caller) (*LoanResponse, error) {
	return s.transition(ctx, loanID, caller.ID, transitionStep{
		to:     model.LoanStatusBorrowed,
		action: model.ActionStartBorrowing,
		guard: func(loan *model.Loan) error {
			// Only the borrower may start; admins get no bypass here.
			return ownerOnly(s.gate.RequireOwnerOrRole(caller, loan.UserID), "You can only start borrowing your own approved loans")
		},
		apply: func(txCtx context.Context, loan *model.Loan) error {
			if _, err := s.availability.LockAsset(txCtx, loan.AssetID); err != nil {
				return err
			}
			held, err := s.availability.HeldByOther(txCtx, loan.AssetID, loan.ID)
			if err != nil {
				return err
			}
			if held {
				return apperr.Validation("Asset is currently borrowed by another loan")
			}
			now := s.clock.Now()
			loan.BorrowedAt = &now
			return s.availability.MarkBorrowed(txCtx, loan.AssetID)
		},
	})
}

func (s *loanService) ReturnLoan(ctx context.Context, loanID string, caller authz.Caller, isAdmin bool, notes *string) (*LoanResponse, error) {
	return s.transition(ctx, loanID, caller.ID, transitionStep{
		to:     model.LoanStatusReturned,
		action: model.ActionReturnLoan,
		guard: func(loan *model.Loan) error {
			if isAdmin {
				return nil
			}
			return ownerOnly(s.gate.RequireOwnerOrRole(caller, loan.UserID), "You can only return your own loans")
		},
		apply: func(txCtx context.Context, loan *model.Loan) error {
			now := s.clock.Now()
			loan.ReturnedAt = &now
			setNotes(loan, notes)
			return s.availability.MarkAvailable(txCtx, loan.AssetID)
		},
	})
}

// CheckOverdueLoans moves every borrowed loan whose due date has passed to overdue.
// Loans already overdue are not matched again.
func (s *loanService) CheckOverdueLoans(ctx context.Context, actor uuid.UUID) ([]LoanResponse, error) {
	now := s.clock.Now()
	var updated []model.Loan

	err := s.tm.RunInTx(ctx, func(txCtx context.Context) error {
		due, err := s.loans.ListDueBorrowed(txCtx, now)
		if err != nil {
			return fmt.Errorf("failed to list due loans: %w", err)
		}
		for i := range due {
			loan := &due[i]
			if err := model.ValidateTransition(loan.LoanStatus, model.LoanStatusOverdue); err != nil {
				return err
			}
			loan.LoanStatus = model.LoanStatusOverdue
			loan.StatusChangedAt = &now
			if err := s.loans.Update(txCtx, loan); err != nil {
				return fmt.Errorf("failed to mark loan %s overdue: %w", loan.ID, err)
			}
			updated = append(updated, *loan)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	res := make([]LoanResponse, 0, len(updated))
	for i := range updated {
		loan := &updated[i]
		s.metrics.LoanTransition(model.LoanStatusBorrowed, model.LoanStatusOverdue)
		r := toLoanResponse(loan)
		s.events.Publish("loan."+model.LoanStatusOverdue, r)
		s.audit.Record(ctx, AuditEntry{
			ActorID:  actor,
			Action:   model.ActionMarkOverdue,
			Entity:   model.EntityLoan,
			EntityID: loan.ID.String(),
			ClientIP: ClientIPFrom(ctx),
		})
		res = append(res, *r)
	}
	return res, nil
}

func (s *loanService) GetLoan(ctx context.Context, loanID string, caller authz.Caller) (*LoanResponse, error) {
	id, err := parseID(loanID, "Loan")
	if err != nil {
		return nil, err
	}
	loan, err := s.loans.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "Loan", "get loan")
	}
	if err := ownerOnly(s.gate.RequireOwnerOrRole(caller, loan.UserID, authz.AdminRoles...), "You can only access your own loans"); err != nil {
		return nil, err
	}
	return toLoanResponse(loan), nil
}

// ListLoans returns every loan to loan managers and only their own loans to everyone else.
func (s *loanService) ListLoans(ctx context.Context, caller authz.Caller, f LoanListFilter, skip, limit int) ([]LoanResponse, int64, error) {
	if f.Status != "" && !model.IsValidLoanStatus(f.Status) {
		return nil, 0, apperr.ValidationFields("Invalid loan status", map[string]string{"status": "unknown loan status"})
	}
	filter := repository.LoanFilter{Status: f.Status}
	if authz.HasPermission(caller, authz.ManageLoans) {
		if f.AssetID != "" {
			assetID, err := uuid.Parse(f.AssetID)
			if err != nil {
				return nil, 0, apperr.ValidationFields("Invalid asset id", map[string]string{"asset_id": "must be a uuid"})
			}
			filter.AssetID = &assetID
		}
	} else {
		filter.UserID = &caller.ID
	}

	loans, total, err := s.loans.List(ctx, filter, skip, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list loans: %w", err)
	}
	res := make([]LoanResponse, 0, len(loans))
	for i := range loans {
		res = append(res, *toLoanResponse(&loans[i]))
	}
	return res, total, nil
}

// --- transition plumbing ---

type transitionStep struct {
	to     string
	action string
	// guard runs on the locked loan before the transition table is consulted.
	guard func(loan *model.Loan) error
	// apply mutates the loan and any coupled asset state inside the transaction.
	apply func(txCtx context.Context, loan *model.Loan) error
}

func (s *loanService) transition(ctx context.Context, loanID string, actor uuid.UUID, step transitionStep) (*LoanResponse, error) {
	id, err := parseID(loanID, "Loan")
	if err != nil {
		return nil, err
	}

	// asset_id never changes, so it is safe to read before taking the lock.
	current, err := s.loans.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "Loan", "load loan")
	}

	release, err := s.acquire(ctx, current.AssetID)
	if err != nil {
		return nil, err
	}
	defer release()

	var from string
	err = s.tm.RunInTx(ctx, func(txCtx context.Context) error {
		loan, err := s.loans.FindByIDForUpdate(txCtx, id)
		if err != nil {
			return notFoundOr(err, "Loan", "load loan")
		}
		if step.guard != nil {
			if err := step.guard(loan); err != nil {
				return err
			}
		}
		from = loan.LoanStatus
		if err := model.ValidateTransition(from, step.to); err != nil {
			return err
		}
		if step.apply != nil {
			if err := step.apply(txCtx, loan); err != nil {
				return err
			}
		}
		now := s.clock.Now()
		loan.LoanStatus = step.to
		loan.StatusChangedAt = &now
		if err := s.loans.Update(txCtx, loan); err != nil {
			return fmt.Errorf("failed to update loan: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.afterTransition(ctx, id, from, step.to, step.action, actor)
}

// afterTransition runs the post-commit side effects and reloads the loan for the response.
func (s *loanService) afterTransition(ctx context.Context, id uuid.UUID, from, to, action string, actor uuid.UUID) (*LoanResponse, error) {
	s.metrics.LoanTransition(from, to)
	s.audit.Record(ctx, AuditEntry{
		ActorID:  actor,
		Action:   action,
		Entity:   model.EntityLoan,
		EntityID: id.String(),
		ClientIP: ClientIPFrom(ctx),
	})

	loan, err := s.loans.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "Loan", "reload loan")
	}
	res := toLoanResponse(loan)
	s.events.Publish("loan."+to, res)
	s.log.Debug("loan transition",
		zap.String("loan_id", id.String()),
		zap.String("from", from),
		zap.String("to", to))
	return res, nil
}

func (s *loanService) acquire(ctx context.Context, assetID uuid.UUID) (func(), error) {
	release, err := s.locker.Acquire(ctx, lock.AssetKey(assetID.String()))
	if err != nil {
		if errors.Is(err, lock.ErrTimeout) {
			return nil, apperr.Validation("Asset is busy with another request, please retry")
		}
		return nil, fmt.Errorf("failed to lock asset: %w", err)
	}
	return release, nil
}

// ownerOnly rewords a gate denial for the resource at hand; other errors pass through.
func ownerOnly(err error, msg string) error {
	if errors.Is(err, apperr.ErrPermissionDenied) {
		return apperr.PermissionDenied(msg)
	}
	return err
}

func setNotes(loan *model.Loan, notes *string) {
	if notes != nil && *notes != "" {
		loan.Notes = *notes
	}
}

func toLoanResponse(l *model.Loan) *LoanResponse {
	r := &LoanResponse{
		ID:              l.ID.String(),
		AssetID:         l.AssetID.String(),
		UserID:          l.UserID.String(),
		LoanStatus:      l.LoanStatus,
		RequestedAt:     formatTime(l.RequestedAt),
		BorrowedAt:      formatTimePtr(l.BorrowedAt),
		DueDate:         formatTimePtr(l.DueDate),
		ReturnedAt:      formatTimePtr(l.ReturnedAt),
		Notes:           l.Notes,
		StatusChangedAt: formatTimePtr(l.StatusChangedAt),
		CreatedAt:       formatTime(l.CreatedAt),
		UpdatedAt:       formatTime(l.UpdatedAt),
	}
	if l.ApprovedBy != nil {
		s := l.ApprovedBy.String()
		r.ApprovedBy = &s
	}
	if l.User != nil {
		r.Username = l.User.Username
	}
	if l.Asset != nil {
		r.Asset = &LoanAssetSummary{
			ID:            l.Asset.ID.String(),
			AssetCode:     l.Asset.AssetCode,
			Name:          l.Asset.Name,
			CurrentStatus: l.Asset.CurrentStatus,
		}
	}
	return r
}
