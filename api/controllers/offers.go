package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/boostlocal/boost-api/api/middleware"
	"github.com/boostlocal/boost-api/api/responses"
	"github.com/boostlocal/boost-api/api/validators"
	"github.com/boostlocal/boost-api/internal/offers"
	"github.com/boostlocal/boost-api/pkg/enums"
	pkgerrors "github.com/boostlocal/boost-api/pkg/errors"
	"github.com/boostlocal/boost-api/pkg/logger"
	"github.com/boostlocal/boost-api/pkg/pagination"
)

type offerCreateRequest struct {
	MerchantID         *uuid.UUID      `json:"merchant_id"`
	Name               string          `json:"name" validate:"required,min=1,max=200"`
	DiscountText       string          `json:"discount_text" validate:"required,min=1,max=500"`
	Terms              *string         `json:"terms" validate:"omitempty,max=2000"`
	CapDaily           int             `json:"cap_daily" validate:"required,min=1"`
	ActiveHours        *string         `json:"active_hours" validate:"omitempty,max=100"`
	ValuePerRedemption decimal.Decimal `json:"value_per_redemption"`
	EndsAt             *time.Time      `json:"ends_at"`
}

// Merchant admins may omit merchant_id; their own merchant is implied.
func (r offerCreateRequest) toInput(fallback *uuid.UUID) (offers.CreateOfferInput, error) {
	merchantID := r.MerchantID
	if merchantID == nil {
		merchantID = fallback
	}
	if merchantID == nil {
		return offers.CreateOfferInput{}, pkgerrors.New(pkgerrors.CodeValidation, "merchant_id is required")
	}
	return offers.CreateOfferInput{
		MerchantID:         *merchantID,
		Name:               r.Name,
		DiscountText:       r.DiscountText,
		Terms:              r.Terms,
		CapDaily:           r.CapDaily,
		ActiveHours:        r.ActiveHours,
		ValuePerRedemption: r.ValuePerRedemption,
		EndsAt:             r.EndsAt,
	}, nil
}

type offerUpdateRequest struct {
	Name               *string            `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	DiscountText       *string            `json:"discount_text,omitempty" validate:"omitempty,min=1,max=500"`
	Terms              *string            `json:"terms,omitempty" validate:"omitempty,max=2000"`
	CapDaily           *int               `json:"cap_daily,omitempty" validate:"omitempty,min=1"`
	ActiveHours        *string            `json:"active_hours,omitempty" validate:"omitempty,max=100"`
	Status             *enums.OfferStatus `json:"status,omitempty"`
	ValuePerRedemption *decimal.Decimal   `json:"value_per_redemption,omitempty"`
	EndsAt             *time.Time         `json:"ends_at,omitempty"`
}

func (r offerUpdateRequest) toInput() offers.UpdateOfferInput {
	return offers.UpdateOfferInput{
		Name:               r.Name,
		DiscountText:       r.DiscountText,
		Terms:              r.Terms,
		CapDaily:           r.CapDaily,
		ActiveHours:        r.ActiveHours,
		Status:             r.Status,
		ValuePerRedemption: r.ValuePerRedemption,
		EndsAt:             r.EndsAt,
	}
}

// OfferList returns offers with today's counters. Non-owners only see their
// own merchant's offers.
func OfferList(svc offers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "offer service unavailable"))
			return
		}

		merchantID, err := validators.QueryUUID(r, "merchant_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := queryPage(r, pagination.Standard)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.List(r.Context(), middleware.ActorFromContext(r.Context()), merchantID, page)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

// OfferCreate creates an active offer for a merchant.
func OfferCreate(svc offers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "offer service unavailable"))
			return
		}

		var payload offerCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		actor := middleware.ActorFromContext(r.Context())
		input, err := payload.toInput(actor.MerchantID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		offer, err := svc.Create(r.Context(), actor, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, offer)
	}
}

func OfferGet(svc offers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "offer service unavailable"))
			return
		}

		id, err := pathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		offer, err := svc.Get(r.Context(), middleware.ActorFromContext(r.Context()), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, offer)
	}
}

// OfferUpdate applies a partial update, including status transitions.
func OfferUpdate(svc offers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "offer service unavailable"))
			return
		}

		id, err := pathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload offerUpdateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		offer, err := svc.Update(r.Context(), middleware.ActorFromContext(r.Context()), id, payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, offer)
	}
}

// OfferDelete soft-deletes an offer and expires its tokens.
func OfferDelete(svc offers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "offer service unavailable"))
			return
		}

		id, err := pathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Delete(r.Context(), middleware.ActorFromContext(r.Context()), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}
