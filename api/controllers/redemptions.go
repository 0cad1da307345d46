package controllers

import (
	"net/http"
	"strings"

	"github.com/boostlocal/boost-api/api/middleware"
	"github.com/boostlocal/boost-api/api/responses"
	"github.com/boostlocal/boost-api/api/validators"
	"github.com/boostlocal/boost-api/internal/redemptions"
	"github.com/boostlocal/boost-api/pkg/enums"
	pkgerrors "github.com/boostlocal/boost-api/pkg/errors"
	"github.com/boostlocal/boost-api/pkg/logger"
	"github.com/boostlocal/boost-api/pkg/pagination"
)

type redeemRequest struct {
	Token    string `json:"token" validate:"required,max=512"`
	Location string `json:"location" validate:"required,max=200"`
	Method   string `json:"method" validate:"omitempty,max=32"`
}

func (r redeemRequest) toInput() redemptions.RedeemInput {
	method := enums.RedemptionMethod(strings.ToLower(strings.TrimSpace(r.Method)))
	if method == "" {
		method = enums.RedemptionMethodScan
	}
	return redemptions.RedeemInput{
		Token:    validators.Clean(r.Token, 512),
		Location: validators.Clean(r.Location, 200),
		Method:   method,
	}
}

// Redeem verifies a customer token for a staff device. Business rejections
// come back as 200 with success=false so the client can show the outcome.
func Redeem(svc redemptions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "redemption service unavailable"))
			return
		}

		var payload redeemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Redeem(r.Context(), middleware.ActorFromContext(r.Context()), payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

// RedemptionList returns recent redemptions scoped to the caller's merchant.
func RedemptionList(svc redemptions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "redemption service unavailable"))
			return
		}

		merchantID, err := validators.QueryUUID(r, "merchant_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		offerID, err := validators.QueryUUID(r, "offer_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := queryPage(r, pagination.Standard)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.List(r.Context(), middleware.ActorFromContext(r.Context()), redemptions.ListFilter{
			MerchantID: merchantID,
			OfferID:    offerID,
			Limit:      page.Limit,
			Offset:     page.Offset,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}
