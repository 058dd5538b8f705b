package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Asset status values. Loan logic only reasons about available and borrowed;
// the rest are administrative lifecycle states.
const (
	AssetStatusAvailable      = "available"
	AssetStatusBorrowed       = "borrowed"
	AssetStatusActive         = "active"
	AssetStatusInactive       = "inactive"
	AssetStatusMaintenance    = "maintenance"
	AssetStatusDecommissioned = "decommissioned"
)

var assetStatuses = map[string]bool{
	AssetStatusAvailable:      true,
	AssetStatusBorrowed:       true,
	AssetStatusActive:         true,
	AssetStatusInactive:       true,
	AssetStatusMaintenance:    true,
	AssetStatusDecommissioned: true,
}

// IsValidAssetStatus reports whether s is a known asset status.
func IsValidAssetStatus(s string) bool {
	return assetStatuses[s]
}

// Asset is a physical or IT item that can be lent out.
type Asset struct {
	ID             uuid.UUID           `gorm:"type:uuid;primaryKey" json:"id"`
	AssetCode      string              `gorm:"type:varchar(100);uniqueIndex;not null" json:"asset_code"`
	Name           string              `gorm:"type:varchar(150);not null" json:"name"`
	SerialNumber   string              `gorm:"type:varchar(150);uniqueIndex;not null" json:"serial_number"`
	CategoryID     uuid.UUID           `gorm:"type:uuid;not null;index" json:"category_id"`
	Category       *AssetCategory      `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	CurrentStatus  string              `gorm:"type:varchar(50);not null;index;default:'available'" json:"current_status"`
	AssetCondition string              `gorm:"type:varchar(50)" json:"asset_condition"`
	Description    string              `gorm:"type:text" json:"description"`
	PICUserID      *uuid.UUID          `gorm:"column:pic_user_id;type:uuid;index" json:"pic_user_id"`
	PICUser        *User               `gorm:"foreignKey:PICUserID" json:"pic_user,omitempty"`
	PurchaseCost   decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"purchase_cost"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

func (a *Asset) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.CurrentStatus == "" {
		a.CurrentStatus = AssetStatusAvailable
	}
	return nil
}
