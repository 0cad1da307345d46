package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/boostlocal/boost-api/pkg/enums"
)

// RedemptionRecordedEvent is emitted for every verified redemption together
// with the ledger amount billed for it.
type RedemptionRecordedEvent struct {
	RedemptionID uuid.UUID              `json:"redemption_id"`
	LedgerID     uuid.UUID              `json:"ledger_id"`
	TokenID      uuid.UUID              `json:"token_id"`
	OfferID      uuid.UUID              `json:"offer_id"`
	MerchantID   uuid.UUID              `json:"merchant_id"`
	Method       enums.RedemptionMethod `json:"method"`
	Location     string                 `json:"location"`
	Amount       decimal.Decimal        `json:"amount"`
	RedeemedAt   time.Time              `json:"redeemed_at"`
}

// MerchantDeletedEvent reports the cascade applied when a merchant is soft-deleted.
type MerchantDeletedEvent struct {
	MerchantID      uuid.UUID `json:"merchant_id"`
	DeletedBy       string    `json:"deleted_by"`
	UsersOrphaned   int64     `json:"users_orphaned"`
	OffersPaused    int64     `json:"offers_paused"`
	TokensExpired   int64     `json:"tokens_expired"`
	InvitesCanceled int64     `json:"invites_canceled"`
	DeletedAt       time.Time `json:"deleted_at"`
}

// MerchantRestoredEvent reports that a soft-deleted merchant is active again.
type MerchantRestoredEvent struct {
	MerchantID uuid.UUID `json:"merchant_id"`
	RestoredBy string    `json:"restored_by"`
	RestoredAt time.Time `json:"restored_at"`
}

// OfferExpiredEvent is emitted when an offer passes its end date.
type OfferExpiredEvent struct {
	OfferID       uuid.UUID `json:"offer_id"`
	MerchantID    uuid.UUID `json:"merchant_id"`
	EndsAt        time.Time `json:"ends_at"`
	TokensExpired int64     `json:"tokens_expired"`
}
