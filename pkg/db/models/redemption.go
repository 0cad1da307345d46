package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/boostlocal/boost-api/pkg/enums"
)

// Redemption is the immutable record of one verified token use.
type Redemption struct {
	ID         uuid.UUID              `gorm:"type:uuid;primaryKey"`
	TokenID    uuid.UUID              `gorm:"column:token_id;type:uuid;not null"`
	OfferID    uuid.UUID              `gorm:"column:offer_id;type:uuid;not null"`
	MerchantID uuid.UUID              `gorm:"column:merchant_id;type:uuid;not null"`
	Method     enums.RedemptionMethod `gorm:"column:method;type:redemption_method;not null"`
	Location   string                 `gorm:"column:location;not null"`
	Value      decimal.Decimal        `gorm:"column:value;type:numeric(12,2);not null"`
	RedeemedAt time.Time              `gorm:"column:redeemed_at;not null"`
	CreatedBy  *string                `gorm:"column:created_by"`
}

func (Redemption) TableName() string { return "redemptions" }
