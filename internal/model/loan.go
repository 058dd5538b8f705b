package model

import (
	"time"

	"assetlend/internal/apperr"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Loan status values.
const (
	LoanStatusPending  = "pending"
	LoanStatusApproved = "approved"
	LoanStatusRejected = "rejected"
	LoanStatusBorrowed = "borrowed"
	LoanStatusReturned = "returned"
	LoanStatusOverdue  = "overdue"
)

// loanTransitions lists, per status, the statuses a loan may move to next.
// Rejected and returned are terminal.
var loanTransitions = map[string][]string{
	LoanStatusPending:  {LoanStatusApproved, LoanStatusRejected},
	LoanStatusApproved: {LoanStatusBorrowed, LoanStatusRejected},
	LoanStatusRejected: {},
	LoanStatusBorrowed: {LoanStatusReturned, LoanStatusOverdue},
	LoanStatusReturned: {},
	LoanStatusOverdue:  {LoanStatusReturned},
}

// CanTransition reports whether from -> to is in the transition table.
func CanTransition(from, to string) bool {
	for _, next := range loanTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns a *apperr.TransitionError when from -> to is not allowed.
func ValidateTransition(from, to string) error {
	if !CanTransition(from, to) {
		return apperr.NewTransitionError(from, to)
	}
	return nil
}

// IsValidLoanStatus reports whether s is one of the six loan statuses.
func IsValidLoanStatus(s string) bool {
	_, ok := loanTransitions[s]
	return ok
}

// IsTerminalLoanStatus reports whether no transition leaves s.
func IsTerminalLoanStatus(s string) bool {
	next, ok := loanTransitions[s]
	return ok && len(next) == 0
}

// NonTerminalLoanStatuses are the statuses that hold an asset.
var NonTerminalLoanStatuses = []string{
	LoanStatusPending,
	LoanStatusApproved,
	LoanStatusBorrowed,
	LoanStatusOverdue,
}

// Loan is a borrow record linking one user to one asset.
type Loan struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	AssetID         uuid.UUID  `gorm:"type:uuid;not null;index" json:"asset_id"`
	Asset           *Asset     `gorm:"foreignKey:AssetID" json:"asset,omitempty"`
	UserID          uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	User            *User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	RequestedAt     time.Time  `gorm:"not null" json:"requested_at"`
	BorrowedAt      *time.Time `json:"borrowed_at"`
	DueDate         *time.Time `gorm:"index" json:"due_date"`
	ReturnedAt      *time.Time `json:"returned_at"`
	LoanStatus      string     `gorm:"type:varchar(50);not null;index;default:'pending'" json:"loan_status"`
	Notes           string     `gorm:"type:text" json:"notes"`
	ApprovedBy      *uuid.UUID `gorm:"type:uuid" json:"approved_by"`
	Approver        *User      `gorm:"foreignKey:ApprovedBy" json:"approver,omitempty"`
	StatusChangedAt *time.Time `json:"status_changed_at"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (Loan) TableName() string { return "asset_loans" }

func (l *Loan) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
