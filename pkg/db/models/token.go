package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/boostlocal/boost-api/pkg/enums"
)

// Token is a redeemable code for an offer. Universal tokens are reusable until
// expiry within the offer cap; single-use tokens flip to redeemed on first use.
type Token struct {
	ID                     uuid.UUID         `gorm:"type:uuid;primaryKey"`
	OfferID                uuid.UUID         `gorm:"column:offer_id;type:uuid;not null"`
	ShortCode              string            `gorm:"column:short_code;not null"`
	QRData                 string            `gorm:"column:qr_data;not null"`
	Status                 enums.TokenStatus `gorm:"column:status;type:token_status;not null;default:'active'"`
	IsUniversal            bool              `gorm:"column:is_universal;not null"`
	ExpiresAt              time.Time         `gorm:"column:expires_at;not null"`
	CreatedAt              time.Time         `gorm:"column:created_at;autoCreateTime"`
	RedeemedAt             *time.Time        `gorm:"column:redeemed_at"`
	RedeemedByLocation     *string           `gorm:"column:redeemed_by_location"`
	LastRedeemedAt         *time.Time        `gorm:"column:last_redeemed_at"`
	LastRedeemedByLocation *string           `gorm:"column:last_redeemed_by_location"`
}

func (Token) TableName() string { return "tokens" }

// IsExpiredAt reports whether the token can no longer be used at now.
func (t Token) IsExpiredAt(now time.Time) bool {
	return t.Status == enums.TokenStatusExpired || now.After(t.ExpiresAt)
}
