package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"assetlend/internal/authz"
	"assetlend/internal/config"
	"assetlend/internal/database"
	"assetlend/internal/lock"
	"assetlend/internal/model"
	"assetlend/internal/repository"
	"assetlend/internal/security"
)

type fixedClock struct{ now time.Time }

func (c *fixedClock) Now() time.Time { return c.now }

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(event string, _ interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) Events() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

// testEnv wires every service against a seeded in-memory sqlite database.
type testEnv struct {
	db     *gorm.DB
	clock  *fixedClock
	events *recordingPublisher
	hasher security.PasswordHasher
	tokens security.TokenIssuer

	tm         repository.TransactionManager
	userRepo   repository.UserRepository
	roleRepo   repository.RoleRepository
	catRepo    repository.CategoryRepository
	assetRepo  repository.AssetRepository
	loanRepo   repository.LoanRepository
	auditRepo  repository.AuditRepository
	audit      AuditService
	loans      LoanService
	assets     AssetService
	categories CategoryService
	users      UserService
	roles      RoleService
	auth       AuthService

	admin    authz.Caller
	borrower authz.Caller
	other    authz.Caller
	category *model.AssetCategory
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	db, err := database.NewConnection(config.DatabaseConfig{Type: "sqlite", Path: ":memory:"}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	hasher := security.NewBcryptHasher(bcrypt.MinCost)
	require.NoError(t, database.Seed(ctx, db, hasher, zap.NewNop()))

	e := &testEnv{
		db:        db,
		clock:     &fixedClock{now: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)},
		events:    &recordingPublisher{},
		hasher:    hasher,
		tokens:    security.NewHMACIssuer([]byte("test-secret"), "assetlend-test"),
		tm:        repository.NewTransactionManager(db),
		userRepo:  repository.NewUserRepository(db),
		roleRepo:  repository.NewRoleRepository(db),
		catRepo:   repository.NewCategoryRepository(db),
		assetRepo: repository.NewAssetRepository(db),
		loanRepo:  repository.NewLoanRepository(db),
		auditRepo: repository.NewAuditRepository(db),
	}
	e.audit = NewAuditService(e.auditRepo, zap.NewNop())
	gate := authz.NewGate()
	e.loans = NewLoanService(LoanServiceDeps{
		TxManager: e.tm,
		Loans:     e.loanRepo,
		Assets:    e.assetRepo,
		Gate:      gate,
		Locker:    lock.NewLocalLocker(5 * time.Second),
		Audit:     e.audit,
		Events:    e.events,
		Clock:     e.clock,
		Logger:    zap.NewNop(),
	})
	e.assets = NewAssetService(e.tm, e.assetRepo, e.catRepo, e.userRepo, e.loanRepo, e.audit)
	e.categories = NewCategoryService(e.catRepo, e.audit)
	e.users = NewUserService(e.userRepo, e.roleRepo, hasher, gate, e.audit)
	e.roles = NewRoleService(e.roleRepo, e.audit)
	e.auth = NewAuthService(e.userRepo, hasher, e.tokens, 30*time.Minute, 24*time.Hour)

	e.admin = e.callerFor(t, database.SuperAdminUserID)
	e.borrower = e.callerFor(t, database.DefaultUserID)
	bob := &model.User{Username: "bob", Email: "bob@example.com", PasswordHash: "x", RoleID: database.UserRoleID, IsActive: true}
	require.NoError(t, e.userRepo.Create(ctx, bob))
	e.other = e.callerFor(t, bob.ID)

	e.category = &model.AssetCategory{Name: "Laptop"}
	require.NoError(t, e.catRepo.Create(ctx, e.category))
	return e
}

func (e *testEnv) callerFor(t *testing.T, id uuid.UUID) authz.Caller {
	t.Helper()
	u, err := e.userRepo.FindByID(context.Background(), id)
	require.NoError(t, err)
	return authz.CallerFromUser(u)
}

func (e *testEnv) newAsset(t *testing.T, code, status string) *model.Asset {
	t.Helper()
	a := &model.Asset{AssetCode: code, Name: "Asset " + code, SerialNumber: "SN-" + code, CategoryID: e.category.ID, CurrentStatus: status}
	require.NoError(t, e.assetRepo.Create(context.Background(), a))
	return a
}

// newLoan inserts a loan directly in the given status, bypassing the service.
func (e *testEnv) newLoan(t *testing.T, asset *model.Asset, owner authz.Caller, status string) *model.Loan {
	t.Helper()
	l := &model.Loan{AssetID: asset.ID, UserID: owner.ID, RequestedAt: e.clock.now, LoanStatus: status}
	require.NoError(t, e.loanRepo.Create(context.Background(), l))
	return l
}

func (e *testEnv) assetStatus(t *testing.T, id uuid.UUID) string {
	t.Helper()
	a, err := e.assetRepo.FindByID(context.Background(), id)
	require.NoError(t, err)
	return a.CurrentStatus
}

func (e *testEnv) loanStatus(t *testing.T, id uuid.UUID) string {
	t.Helper()
	l, err := e.loanRepo.FindByID(context.Background(), id)
	require.NoError(t, err)
	return l.LoanStatus
}

func (e *testEnv) auditCount(t *testing.T, action string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(&model.AuditLog{}).Where("action = ?", action).Count(&n).Error)
	return n
}

func strPtr(s string) *string { return &s }
