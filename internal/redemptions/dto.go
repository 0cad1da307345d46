package redemptions

import (
	"time"

	"github.com/google/uuid"

	"github.com/boostlocal/boost-api/pkg/db/models"
	"github.com/boostlocal/boost-api/pkg/enums"
)

// RedeemInput is a verification request from a staff device.
type RedeemInput struct {
	Token    string
	Location string
	Method   enums.RedemptionMethod
}

// RedeemResult is returned for successes and business rejections alike.
type RedeemResult struct {
	Success      bool       `json:"success"`
	Outcome      Outcome    `json:"outcome"`
	Message      string     `json:"message"`
	OfferName    *string    `json:"offer_name"`
	DiscountText *string    `json:"discount_text"`
	RedemptionID *uuid.UUID `json:"redemption_id"`
	CapRemaining *int       `json:"cap_remaining,omitempty"`
}

func rejected(outcome Outcome, message string) *RedeemResult {
	return &RedeemResult{Success: false, Outcome: outcome, Message: message}
}

// RedemptionDTO is the API shape of a redemption.
type RedemptionDTO struct {
	ID         uuid.UUID              `json:"id"`
	TokenID    uuid.UUID              `json:"token_id"`
	OfferID    uuid.UUID              `json:"offer_id"`
	MerchantID uuid.UUID              `json:"merchant_id"`
	Method     enums.RedemptionMethod `json:"method"`
	Location   string                 `json:"location"`
	Value      float64                `json:"value"`
	Timestamp  time.Time              `json:"timestamp"`
}

// ListResult is the paginated redemption listing.
type ListResult struct {
	Redemptions []RedemptionDTO `json:"redemptions"`
	Limit       int             `json:"limit"`
	Offset      int             `json:"offset"`
}

// FromModel maps a persisted redemption into a DTO.
func FromModel(m *models.Redemption) *RedemptionDTO {
	if m == nil {
		return nil
	}
	return &RedemptionDTO{
		ID:         m.ID,
		TokenID:    m.TokenID,
		OfferID:    m.OfferID,
		MerchantID: m.MerchantID,
		Method:     m.Method,
		Location:   m.Location,
		Value:      m.Value.InexactFloat64(),
		Timestamp:  m.RedeemedAt,
	}
}
