package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/boostlocal/boost-api/pkg/enums"
)

// Offer is a merchant discount with a daily cap. Redemption counts are derived
// from the redemptions table and never stored here.
type Offer struct {
	ID                 uuid.UUID         `gorm:"type:uuid;primaryKey"`
	MerchantID         uuid.UUID         `gorm:"column:merchant_id;type:uuid;not null"`
	Name               string            `gorm:"column:name;not null"`
	DiscountText       string            `gorm:"column:discount_text;not null"`
	Terms              *string           `gorm:"column:terms"`
	CapDaily           int               `gorm:"column:cap_daily;not null"`
	ActiveHours        *string           `gorm:"column:active_hours"`
	ValuePerRedemption decimal.Decimal   `gorm:"column:value_per_redemption;type:numeric(12,2);not null"`
	Status             enums.OfferStatus `gorm:"column:status;type:offer_status;not null;default:'active'"`
	EndsAt             *time.Time        `gorm:"column:ends_at"`
	CreatedAt          time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time         `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt          gorm.DeletedAt    `gorm:"column:deleted_at;index"`
}

func (Offer) TableName() string { return "offers" }
