package tokens

import (
	"time"

	"github.com/google/uuid"

	"github.com/boostlocal/boost-api/pkg/db/models"
	"github.com/boostlocal/boost-api/pkg/enums"
)

// TokenDTO is the API shape of a token.
type TokenDTO struct {
	ID                     uuid.UUID         `json:"id"`
	OfferID                uuid.UUID         `json:"offer_id"`
	ShortCode              string            `json:"short_code"`
	QRData                 string            `json:"qr_data"`
	Status                 enums.TokenStatus `json:"status"`
	ExpiresAt              time.Time         `json:"expires_at"`
	RedeemedAt             *time.Time        `json:"redeemed_at"`
	RedeemedByLocation     *string           `json:"redeemed_by_location"`
	CreatedAt              time.Time         `json:"created_at"`
	IsUniversal            bool              `json:"is_universal"`
	LastRedeemedAt         *time.Time        `json:"last_redeemed_at"`
	LastRedeemedByLocation *string           `json:"last_redeemed_by_location"`
}

// GenerateInput is the token generation request. Count only applies to
// single-use issuance; an offer only ever has one universal token.
type GenerateInput struct {
	Count       int
	ExpiresDays int
}

// GenerateResult carries the ensured universal token or the issued batch.
type GenerateResult struct {
	OfferID uuid.UUID  `json:"offer_id"`
	Count   int        `json:"count"`
	Tokens  []TokenDTO `json:"tokens"`
}

// ListInput narrows List.
type ListInput struct {
	Status *enums.TokenStatus
	Limit  int
}

// ListResult is the token listing of one offer.
type ListResult struct {
	OfferID uuid.UUID  `json:"offer_id"`
	Tokens  []TokenDTO `json:"tokens"`
}

// PublicOfferDTO is what an unauthenticated customer sees for a token.
type PublicOfferDTO struct {
	TokenID      uuid.UUID `json:"token_id"`
	ShortCode    string    `json:"short_code"`
	OfferName    string    `json:"offer_name"`
	DiscountText string    `json:"discount_text"`
	Terms        *string   `json:"terms"`
	MerchantName string    `json:"merchant_name"`
	ActiveHours  *string   `json:"active_hours"`
	CapRemaining int       `json:"cap_remaining"`
	QRData       string    `json:"qr_data"`
}

// FromModel maps a persisted token into a DTO.
func FromModel(m *models.Token) *TokenDTO {
	if m == nil {
		return nil
	}
	return &TokenDTO{
		ID:                     m.ID,
		OfferID:                m.OfferID,
		ShortCode:              m.ShortCode,
		QRData:                 m.QRData,
		Status:                 m.Status,
		ExpiresAt:              m.ExpiresAt,
		RedeemedAt:             m.RedeemedAt,
		RedeemedByLocation:     m.RedeemedByLocation,
		CreatedAt:              m.CreatedAt,
		IsUniversal:            m.IsUniversal,
		LastRedeemedAt:         m.LastRedeemedAt,
		LastRedeemedByLocation: m.LastRedeemedByLocation,
	}
}
