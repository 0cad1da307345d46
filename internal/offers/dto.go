package offers

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/boostlocal/boost-api/pkg/db/models"
	"github.com/boostlocal/boost-api/pkg/enums"
)

// OfferDTO is the API shape of an offer with its live counters.
type OfferDTO struct {
	ID                 uuid.UUID         `json:"id"`
	MerchantID         uuid.UUID         `json:"merchant_id"`
	Name               string            `json:"name"`
	DiscountText       string            `json:"discount_text"`
	Terms              *string           `json:"terms"`
	CapDaily           int               `json:"cap_daily"`
	ActiveHours        *string           `json:"active_hours"`
	Status             enums.OfferStatus `json:"status"`
	ValuePerRedemption float64           `json:"value_per_redemption"`
	EndsAt             *time.Time        `json:"ends_at,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
	TodayRedemptions   int64             `json:"today_redemptions"`
	CapRemaining       int               `json:"cap_remaining"`
}

// ListResult is the paginated offer listing.
type ListResult struct {
	Offers []OfferDTO `json:"offers"`
	Limit  int        `json:"limit"`
	Offset int        `json:"offset"`
}

// DeleteResult acknowledges an offer deletion.
type DeleteResult struct {
	Deleted bool      `json:"deleted"`
	ID      uuid.UUID `json:"id"`
}

// CreateOfferInput carries the fields accepted on creation.
type CreateOfferInput struct {
	MerchantID         uuid.UUID
	Name               string
	DiscountText       string
	Terms              *string
	CapDaily           int
	ActiveHours        *string
	ValuePerRedemption decimal.Decimal
	EndsAt             *time.Time
}

// UpdateOfferInput carries a partial update. Nil fields are left untouched.
type UpdateOfferInput struct {
	Name               *string
	DiscountText       *string
	Terms              *string
	CapDaily           *int
	ActiveHours        *string
	Status             *enums.OfferStatus
	ValuePerRedemption *decimal.Decimal
	EndsAt             *time.Time
}

// FromModel maps an offer and its daily count into a DTO.
func FromModel(m *models.Offer, todayCount int64) *OfferDTO {
	if m == nil {
		return nil
	}
	return &OfferDTO{
		ID:                 m.ID,
		MerchantID:         m.MerchantID,
		Name:               m.Name,
		DiscountText:       m.DiscountText,
		Terms:              m.Terms,
		CapDaily:           m.CapDaily,
		ActiveHours:        m.ActiveHours,
		Status:             m.Status,
		ValuePerRedemption: m.ValuePerRedemption.InexactFloat64(),
		EndsAt:             m.EndsAt,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
		TodayRedemptions:   todayCount,
		CapRemaining:       CapRemaining(m.CapDaily, todayCount),
	}
}
