package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type contextKey string

const txKey contextKey = "gorm_tx"

// TransactionManager manages database transactions via context injection.
type TransactionManager interface {
	RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error
}

type transactionManager struct {
	db *gorm.DB
}

func NewTransactionManager(db *gorm.DB) TransactionManager {
	return &transactionManager{db: db}
}

// RunInTx joins an enclosing transaction when ctx already carries one.
func (t *transactionManager) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	if InTx(ctx) {
		return fn(ctx)
	}
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txCtx := context.WithValue(ctx, txKey, tx)
		return fn(txCtx)
	})
}

// GetDB extracts the transaction DB from context if present, otherwise returns root DB.
func GetDB(ctx context.Context, rootDB *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey).(*gorm.DB); ok && tx != nil {
		return tx.WithContext(ctx)
	}
	return rootDB.WithContext(ctx)
}

// InTx reports whether ctx carries a transaction.
func InTx(ctx context.Context) bool {
	tx, ok := ctx.Value(txKey).(*gorm.DB)
	return ok && tx != nil
}

// Detach returns a context that no longer carries a transaction, so writes
// made with it commit independently of the caller's transaction.
func Detach(ctx context.Context) context.Context {
	if !InTx(ctx) {
		return ctx
	}
	return context.WithValue(ctx, txKey, (*gorm.DB)(nil))
}

// forUpdate adds SELECT ... FOR UPDATE. Row locks only make sense inside a
// transaction, so outside one the query is returned unchanged.
func forUpdate(ctx context.Context, db *gorm.DB) *gorm.DB {
	if !InTx(ctx) {
		return db
	}
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}

// likePattern turns free text into a case-insensitive LIKE pattern.
func likePattern(s string) string {
	return "%" + s + "%"
}
