package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LedgerEntry is the billing line written with each redemption.
type LedgerEntry struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey"`
	MerchantID   uuid.UUID       `gorm:"column:merchant_id;type:uuid;not null"`
	RedemptionID uuid.UUID       `gorm:"column:redemption_id;type:uuid;not null;uniqueIndex"`
	OfferID      uuid.UUID       `gorm:"column:offer_id;type:uuid;not null"`
	Amount       decimal.Decimal `gorm:"column:amount;type:numeric(12,2);not null"`
	CreatedAt    time.Time       `gorm:"column:created_at;not null"`
}

func (LedgerEntry) TableName() string { return "ledger_entries" }
