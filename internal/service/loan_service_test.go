package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"assetlend/internal/apperr"
	"assetlend/internal/authz"
	"assetlend/internal/model"
)

func requireTransitionError(t *testing.T, err error, from, to string) {
	t.Helper()
	var te *apperr.TransitionError
	require.True(t, errors.As(err, &te), "expected transition error, got %v", err)
	assert.Equal(t, from, te.From)
	assert.Equal(t, to, te.To)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestLoan_FullLifecycle(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	asset := e.newAsset(t, "LT-001", model.AssetStatusAvailable)
	due := e.clock.now.Add(72 * time.Hour)

	created, err := e.loans.CreateLoanRequest(ctx, e.borrower, CreateLoanRequest{AssetID: asset.ID.String(), DueDate: &due, Notes: strPtr("for the offsite")})
	require.NoError(t, err)
	assert.Equal(t, model.LoanStatusPending, created.LoanStatus)
	assert.Equal(t, e.borrower.ID.String(), created.UserID)
	assert.Equal(t, "for the offsite", created.Notes)
	require.NotNil(t, created.DueDate)
	assert.Equal(t, model.AssetStatusAvailable, e.assetStatus(t, asset.ID), "a pending request does not hold the asset")

	approved, err := e.loans.Approve(ctx, created.ID, e.admin, nil)
	require.NoError(t, err)
	assert.Equal(t, model.LoanStatusApproved, approved.LoanStatus)
	require.NotNil(t, approved.ApprovedBy)
	assert.Equal(t, e.admin.ID.String(), *approved.ApprovedBy)
	assert.Equal(t, "for the offsite", approved.Notes, "nil notes keep the existing value")
	require.NotNil(t, approved.StatusChangedAt)

	borrowed, err := e.loans.StartBorrowing(ctx, created.ID, e.borrower)
	require.NoError(t, err)
	assert.Equal(t, model.LoanStatusBorrowed, borrowed.LoanStatus)
	require.NotNil(t, borrowed.BorrowedAt)
	assert.Equal(t, model.AssetStatusBorrowed, e.assetStatus(t, asset.ID))
	require.NotNil(t, borrowed.Asset)
	assert.Equal(t, model.AssetStatusBorrowed, borrowed.Asset.CurrentStatus)

	_, err = e.loans.CreateLoanRequest(ctx, e.other, CreateLoanRequest{AssetID: asset.ID.String()})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	returned, err := e.loans.ReturnLoan(ctx, created.ID, e.borrower, false, strPtr("all good"))
	require.NoError(t, err)
	assert.Equal(t, model.LoanStatusReturned, returned.LoanStatus)
	require.NotNil(t, returned.ReturnedAt)
	assert.Equal(t, "all good", returned.Notes)
	assert.Equal(t, model.AssetStatusAvailable, e.assetStatus(t, asset.ID))

	assert.Equal(t, []string{"loan.pending", "loan.approved", "loan.borrowed", "loan.returned"}, e.events.Events())
	assert.EqualValues(t, 1, e.auditCount(t, model.ActionCreate))
	assert.EqualValues(t, 1, e.auditCount(t, model.ActionApproveLoan))
	assert.EqualValues(t, 1, e.auditCount(t, model.ActionStartBorrowing))
	assert.EqualValues(t, 1, e.auditCount(t, model.ActionReturnLoan))
}

func TestLoan_TransitionGrid(t *testing.T) {
	statuses := []string{
		model.LoanStatusPending, model.LoanStatusApproved, model.LoanStatusRejected,
		model.LoanStatusBorrowed, model.LoanStatusReturned, model.LoanStatusOverdue,
	}
	type op struct {
		name string
		to   string
		run  func(e *testEnv, id string) error
	}
	ops := []op{
		{"approve", model.LoanStatusApproved, func(e *testEnv, id string) error {
			_, err := e.loans.Approve(context.Background(), id, e.admin, nil)
			return err
		}},
		{"reject", model.LoanStatusRejected, func(e *testEnv, id string) error {
			_, err := e.loans.Reject(context.Background(), id, e.admin, nil)
			return err
		}},
		{"start", model.LoanStatusBorrowed, func(e *testEnv, id string) error {
			_, err := e.loans.StartBorrowing(context.Background(), id, e.borrower)
			return err
		}},
		{"return", model.LoanStatusReturned, func(e *testEnv, id string) error {
			_, err := e.loans.ReturnLoan(context.Background(), id, e.borrower, false, nil)
			return err
		}},
	}

	e := newTestEnv(t)
	n := 0
	for _, from := range statuses {
		for _, o := range ops {
			from, o := from, o
			n++
			t.Run(from+"/"+o.name, func(t *testing.T) {
				assetStatus := model.AssetStatusAvailable
				if from == model.LoanStatusBorrowed || from == model.LoanStatusOverdue {
					assetStatus = model.AssetStatusBorrowed
				}
				asset := e.newAsset(t, "GRID-"+uuid.NewString()[:8], assetStatus)
				loan := e.newLoan(t, asset, e.borrower, from)

				err := o.run(e, loan.ID.String())
				if model.CanTransition(from, o.to) {
					require.NoError(t, err)
					assert.Equal(t, o.to, e.loanStatus(t, loan.ID))
					return
				}
				requireTransitionError(t, err, from, o.to)

				after, err := e.loanRepo.FindByID(context.Background(), loan.ID)
				require.NoError(t, err)
				assert.Equal(t, from, after.LoanStatus)
				assert.Nil(t, after.StatusChangedAt)
				assert.Nil(t, after.ApprovedBy)
				assert.Equal(t, assetStatus, e.assetStatus(t, asset.ID))
			})
		}
	}
	assert.Equal(t, 24, n)
}

func TestLoan_CreateOnUnavailableAsset(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	for _, status := range []string{model.AssetStatusBorrowed, model.AssetStatusMaintenance, model.AssetStatusActive, model.AssetStatusDecommissioned} {
		asset := e.newAsset(t, "U-"+status, status)
		_, err := e.loans.CreateLoanRequest(ctx, e.borrower, CreateLoanRequest{AssetID: asset.ID.String()})
		require.Error(t, err, status)
		assert.ErrorIs(t, err, apperr.ErrValidation)
		assert.EqualError(t, err, "Asset is not available for borrowing")
	}

	var count int64
	require.NoError(t, e.db.Model(&model.Loan{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Empty(t, e.events.Events())
}

func TestLoan_CreateUnknownAsset(t *testing.T) {
	e := newTestEnv(t)
	_, err := e.loans.CreateLoanRequest(context.Background(), e.borrower, CreateLoanRequest{AssetID: uuid.NewString()})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.EqualError(t, err, "Asset not found")
}

func TestLoan_DuplicateRequestRejected(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	asset := e.newAsset(t, "DUP-1", model.AssetStatusAvailable)

	_, err := e.loans.CreateLoanRequest(ctx, e.borrower, CreateLoanRequest{AssetID: asset.ID.String()})
	require.NoError(t, err)
	_, err = e.loans.CreateLoanRequest(ctx, e.borrower, CreateLoanRequest{AssetID: asset.ID.String()})
	assert.EqualError(t, err, "You already have an active loan request for this asset")

	// one open loan per asset, even for a different borrower
	_, err = e.loans.CreateLoanRequest(ctx, e.other, CreateLoanRequest{AssetID: asset.ID.String()})
	assert.EqualError(t, err, "Asset already has an active loan request")

	var count int64
	require.NoError(t, e.db.Model(&model.Loan{}).Where("asset_id = ?", asset.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestLoan_RequestAfterTerminalLoan(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	asset := e.newAsset(t, "DUP-2", model.AssetStatusAvailable)
	e.newLoan(t, asset, e.borrower, model.LoanStatusReturned)
	e.newLoan(t, asset, e.other, model.LoanStatusRejected)

	res, err := e.loans.CreateLoanRequest(ctx, e.borrower, CreateLoanRequest{AssetID: asset.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, model.LoanStatusPending, res.LoanStatus)
}

// Overdue keeps the asset borrowed, so nobody can request it until it comes back.
func TestLoan_OverdueBlocksNewRequests(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	asset := e.newAsset(t, "OD-1", model.AssetStatusAvailable)

	due := e.clock.now.Add(-time.Hour)
	loan, err := e.loans.CreateLoanRequest(ctx, e.borrower, CreateLoanRequest{AssetID: asset.ID.String(), DueDate: &due})
	require.NoError(t, err)
	_, err = e.loans.Approve(ctx, loan.ID, e.admin, nil)
	require.NoError(t, err)
	_, err = e.loans.StartBorrowing(ctx, loan.ID, e.borrower)
	require.NoError(t, err)

	marked, err := e.loans.CheckOverdueLoans(ctx, uuid.Nil)
	require.NoError(t, err)
	require.Len(t, marked, 1)
	assert.Equal(t, model.AssetStatusBorrowed, e.assetStatus(t, asset.ID))

	for _, caller := range []authz.Caller{e.borrower, e.other} {
		_, err := e.loans.CreateLoanRequest(ctx, caller, CreateLoanRequest{AssetID: asset.ID.String()})
		assert.ErrorIs(t, err, apperr.ErrValidation)
		assert.EqualError(t, err, "Asset is not available for borrowing", caller.Username)
	}

	_, err = e.loans.ReturnLoan(ctx, loan.ID, e.borrower, false, nil)
	require.NoError(t, err)
	_, err = e.loans.CreateLoanRequest(ctx, e.other, CreateLoanRequest{AssetID: asset.ID.String()})
	assert.NoError(t, err)
}

func TestLoan_RejectResetsAsset(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	for _, from := range []string{model.LoanStatusPending, model.LoanStatusApproved} {
		for _, prior := range []string{model.AssetStatusAvailable, model.AssetStatusMaintenance, model.AssetStatusInactive} {
			asset := e.newAsset(t, "RJ-"+from+"-"+prior, prior)
			loan := e.newLoan(t, asset, e.borrower, from)

			res, err := e.loans.Reject(ctx, loan.ID.String(), e.admin, strPtr("not this week"))
			require.NoError(t, err)
			assert.Equal(t, model.LoanStatusRejected, res.LoanStatus)
			assert.Equal(t, "not this week", res.Notes)
			require.NotNil(t, res.ApprovedBy)
			assert.Equal(t, model.AssetStatusAvailable, e.assetStatus(t, asset.ID), from+" with asset "+prior)
		}
	}
}

func TestLoan_StartBorrowing_OwnerOnly(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	asset := e.newAsset(t, "SB-1", model.AssetStatusAvailable)
	loan := e.newLoan(t, asset, e.borrower, model.LoanStatusApproved)

	for _, c := range []authz.Caller{e.admin, e.other} {
		_, err := e.loans.StartBorrowing(ctx, loan.ID.String(), c)
		assert.ErrorIs(t, err, apperr.ErrPermissionDenied, c.Username)
		assert.EqualError(t, err, "You can only start borrowing your own approved loans")
	}
	assert.Equal(t, model.LoanStatusApproved, e.loanStatus(t, loan.ID))
	assert.Equal(t, model.AssetStatusAvailable, e.assetStatus(t, asset.ID))

	inactive := e.borrower
	inactive.IsActive = false
	_, err := e.loans.StartBorrowing(ctx, loan.ID.String(), inactive)
	assert.ErrorIs(t, err, apperr.ErrInactiveAccount)
}

func TestLoan_StartBorrowing_AssetHeldElsewhere(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	asset := e.newAsset(t, "SB-2", model.AssetStatusBorrowed)
	e.newLoan(t, asset, e.other, model.LoanStatusOverdue)
	loan := e.newLoan(t, asset, e.borrower, model.LoanStatusApproved)

	_, err := e.loans.StartBorrowing(ctx, loan.ID.String(), e.borrower)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, model.LoanStatusApproved, e.loanStatus(t, loan.ID))
}

func TestLoan_ReturnPermissions(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	asset := e.newAsset(t, "RT-1", model.AssetStatusBorrowed)
	loan := e.newLoan(t, asset, e.borrower, model.LoanStatusBorrowed)

	_, err := e.loans.ReturnLoan(ctx, loan.ID.String(), e.other, false, nil)
	assert.EqualError(t, err, "You can only return your own loans")

	res, err := e.loans.ReturnLoan(ctx, loan.ID.String(), e.admin, true, nil)
	require.NoError(t, err)
	assert.Equal(t, model.LoanStatusReturned, res.LoanStatus)
	assert.Equal(t, model.AssetStatusAvailable, e.assetStatus(t, asset.ID))
}

func TestLoan_OverdueSweep(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	now := e.clock.now

	past := e.newAsset(t, "OV-1", model.AssetStatusBorrowed)
	pastLoan := e.newLoan(t, past, e.borrower, model.LoanStatusBorrowed)
	require.NoError(t, e.db.Model(pastLoan).Update("due_date", now.Add(-24*time.Hour)).Error)

	future := e.newAsset(t, "OV-2", model.AssetStatusBorrowed)
	futureLoan := e.newLoan(t, future, e.borrower, model.LoanStatusBorrowed)
	require.NoError(t, e.db.Model(futureLoan).Update("due_date", now.Add(24*time.Hour)).Error)

	open := e.newAsset(t, "OV-3", model.AssetStatusBorrowed)
	openLoan := e.newLoan(t, open, e.borrower, model.LoanStatusBorrowed)

	approved := e.newAsset(t, "OV-4", model.AssetStatusAvailable)
	approvedLoan := e.newLoan(t, approved, e.borrower, model.LoanStatusApproved)
	require.NoError(t, e.db.Model(approvedLoan).Update("due_date", now.Add(-24*time.Hour)).Error)

	sweeper := NewOverdueSweeper(e.loans, 0, nil, zap.NewNop())
	marked, err := sweeper.SweepOnce(ctx, e.admin.ID)
	require.NoError(t, err)
	require.Len(t, marked, 1)
	assert.Equal(t, pastLoan.ID.String(), marked[0].ID)
	assert.Equal(t, model.LoanStatusOverdue, marked[0].LoanStatus)

	assert.Equal(t, model.LoanStatusOverdue, e.loanStatus(t, pastLoan.ID))
	assert.Equal(t, model.LoanStatusBorrowed, e.loanStatus(t, futureLoan.ID))
	assert.Equal(t, model.LoanStatusBorrowed, e.loanStatus(t, openLoan.ID))
	assert.Equal(t, model.LoanStatusApproved, e.loanStatus(t, approvedLoan.ID))
	assert.Equal(t, model.AssetStatusBorrowed, e.assetStatus(t, past.ID), "overdue keeps the asset out")
	assert.EqualValues(t, 1, e.auditCount(t, model.ActionMarkOverdue))
	var entry model.AuditLog
	require.NoError(t, e.db.Where("action = ?", model.ActionMarkOverdue).First(&entry).Error)
	require.NotNil(t, entry.UserID, "sweep requested by a user is attributed to them")
	assert.Equal(t, e.admin.ID, *entry.UserID)
	assert.Contains(t, e.events.Events(), "loan.overdue")

	again, err := sweeper.SweepOnce(ctx, uuid.Nil)
	require.NoError(t, err)
	assert.Empty(t, again)

	res, err := e.loans.ReturnLoan(ctx, pastLoan.ID.String(), e.borrower, false, nil)
	require.NoError(t, err)
	assert.Equal(t, model.LoanStatusReturned, res.LoanStatus)
	assert.Equal(t, model.AssetStatusAvailable, e.assetStatus(t, past.ID))
}

func TestOverdueSweeper_StartStops(t *testing.T) {
	e := newTestEnv(t)

	// zero interval returns immediately
	NewOverdueSweeper(e.loans, 0, nil, zap.NewNop()).Start(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewOverdueSweeper(e.loans, time.Hour, nil, zap.NewNop()).Start(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}

func TestLoan_ConcurrentApprove(t *testing.T) {
	e := newTestEnv(t)
	asset := e.newAsset(t, "CC-1", model.AssetStatusAvailable)
	loan := e.newLoan(t, asset, e.borrower, model.LoanStatusPending)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.loans.Approve(context.Background(), loan.ID.String(), e.admin, nil)
		}(i)
	}
	wg.Wait()

	succeeded, invalid := 0, 0
	for _, err := range errs {
		var te *apperr.TransitionError
		switch {
		case err == nil:
			succeeded++
		case errors.As(err, &te):
			invalid++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, invalid)
	assert.EqualValues(t, 1, e.auditCount(t, model.ActionApproveLoan))
}

func TestLoan_GetAndList(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	a1 := e.newAsset(t, "GL-1", model.AssetStatusAvailable)
	a2 := e.newAsset(t, "GL-2", model.AssetStatusAvailable)
	mine := e.newLoan(t, a1, e.borrower, model.LoanStatusPending)
	e.newLoan(t, a2, e.borrower, model.LoanStatusRejected)
	e.newLoan(t, a2, e.other, model.LoanStatusPending)

	got, err := e.loans.GetLoan(ctx, mine.ID.String(), e.borrower)
	require.NoError(t, err)
	assert.Equal(t, mine.ID.String(), got.ID)

	_, err = e.loans.GetLoan(ctx, mine.ID.String(), e.other)
	assert.EqualError(t, err, "You can only access your own loans")

	_, err = e.loans.GetLoan(ctx, mine.ID.String(), e.admin)
	assert.NoError(t, err)

	_, err = e.loans.GetLoan(ctx, "not-a-uuid", e.admin)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	own, total, err := e.loans.ListLoans(ctx, e.borrower, LoanListFilter{}, 0, 100)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	for _, l := range own {
		assert.Equal(t, e.borrower.ID.String(), l.UserID)
	}

	// the asset filter is ignored for borrowers; they only ever see their own loans
	own, total, err = e.loans.ListLoans(ctx, e.borrower, LoanListFilter{AssetID: a2.ID.String()}, 0, 100)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, own, 2)

	all, total, err := e.loans.ListLoans(ctx, e.admin, LoanListFilter{}, 0, 100)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, all, 3)

	byAsset, total, err := e.loans.ListLoans(ctx, e.admin, LoanListFilter{AssetID: a2.ID.String(), Status: model.LoanStatusPending}, 0, 100)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, e.other.ID.String(), byAsset[0].UserID)

	paged, total, err := e.loans.ListLoans(ctx, e.admin, LoanListFilter{}, 1, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, paged, 1)

	_, _, err = e.loans.ListLoans(ctx, e.admin, LoanListFilter{Status: "lost"}, 0, 100)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestLoan_UnknownLoan(t *testing.T) {
	e := newTestEnv(t)
	_, err := e.loans.Approve(context.Background(), uuid.NewString(), e.admin, nil)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.EqualError(t, err, "Loan not found")
}
