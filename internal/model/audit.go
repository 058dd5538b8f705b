package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ActionCreate         = "CREATE"
	ActionUpdate         = "UPDATE"
	ActionDelete         = "DELETE"
	ActionActivate       = "ACTIVATE"
	ActionDeactivate     = "DEACTIVATE"
	ActionApproveLoan    = "APPROVE_LOAN"
	ActionRejectLoan     = "REJECT_LOAN"
	ActionStartBorrowing = "START_BORROWING"
	ActionReturnLoan     = "RETURN_LOAN"
	ActionMarkOverdue    = "MARK_OVERDUE"
)

const (
	EntityUser     = "user"
	EntityRole     = "role"
	EntityCategory = "category"
	EntityAsset    = "asset"
	EntityLoan     = "loan"
)

// AuditLog tracks Who, What, and When for every mutation. Append-only.
type AuditLog struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    *uuid.UUID `gorm:"type:uuid;index" json:"user_id"` // Nil for system actions such as the overdue sweep
	User      *User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Action    string     `gorm:"type:varchar(50);not null;index" json:"action"`
	Entity    string     `gorm:"type:varchar(50);not null" json:"entity"`
	EntityID  string     `gorm:"type:varchar(50);index" json:"entity_id"`
	IPAddress *string    `gorm:"type:varchar(45)" json:"ip_address"`
	CreatedAt time.Time  `gorm:"index" json:"created_at"`
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
