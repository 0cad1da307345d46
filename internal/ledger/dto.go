package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SummaryDTO is what a merchant owes for a period.
type SummaryDTO struct {
	MerchantID      string     `json:"merchant_id"`
	TotalOwed       float64    `json:"total_owed"`
	RedemptionCount int64      `json:"redemption_count"`
	PeriodStart     time.Time  `json:"period_start"`
	PeriodEnd       time.Time  `json:"period_end"`
	Entries         []EntryDTO `json:"entries"`
}

// EntryDTO is the API shape of a ledger line.
type EntryDTO struct {
	ID           uuid.UUID `json:"id"`
	MerchantID   uuid.UUID `json:"merchant_id"`
	RedemptionID uuid.UUID `json:"redemption_id"`
	OfferID      uuid.UUID `json:"offer_id"`
	Amount       float64   `json:"amount"`
	CreatedAt    time.Time `json:"created_at"`
}

// Reconciliation compares the ledger with the redemption log.
type Reconciliation struct {
	MerchantID      uuid.UUID
	LedgerTotal     decimal.Decimal
	LedgerCount     int64
	RedemptionTotal decimal.Decimal
	RedemptionCount int64
	Balanced        bool
}
