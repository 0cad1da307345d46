package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/boostlocal/boost-api/api/middleware"
	"github.com/boostlocal/boost-api/api/responses"
	"github.com/boostlocal/boost-api/api/validators"
	"github.com/boostlocal/boost-api/internal/access"
	"github.com/boostlocal/boost-api/internal/merchants"
	pkgerrors "github.com/boostlocal/boost-api/pkg/errors"
	"github.com/boostlocal/boost-api/pkg/logger"
	"github.com/boostlocal/boost-api/pkg/pagination"
)

type merchantCreateRequest struct {
	Name      string   `json:"name" validate:"required,min=1,max=200"`
	Email     string   `json:"email" validate:"required,email"`
	Locations []string `json:"locations" validate:"omitempty,max=50,dive,max=200"`
	Timezone  *string  `json:"timezone" validate:"omitempty,max=64,timezone"`
}

func (r merchantCreateRequest) toInput() merchants.CreateMerchantInput {
	return merchants.CreateMerchantInput{
		Name:      r.Name,
		Email:     r.Email,
		Locations: r.Locations,
		Timezone:  r.Timezone,
	}
}

type merchantUpdateRequest struct {
	Name      *string   `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Email     *string   `json:"email,omitempty" validate:"omitempty,email"`
	Locations *[]string `json:"locations,omitempty" validate:"omitempty,max=50,dive,max=200"`
	Timezone  *string   `json:"timezone,omitempty" validate:"omitempty,max=64,timezone"`
}

func (r merchantUpdateRequest) toInput() merchants.UpdateMerchantInput {
	return merchants.UpdateMerchantInput{
		Name:      r.Name,
		Email:     r.Email,
		Locations: r.Locations,
		Timezone:  r.Timezone,
	}
}

// MerchantCreate registers a merchant. Owner only.
func MerchantCreate(svc merchants.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "merchant service unavailable"))
			return
		}

		var payload merchantCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		merchant, err := svc.Create(r.Context(), middleware.ActorFromContext(r.Context()), payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, merchant)
	}
}

// MerchantList returns every merchant for owners and the caller's own
// merchant otherwise.
func MerchantList(svc merchants.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "merchant service unavailable"))
			return
		}

		page, err := queryPage(r, pagination.Standard)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.List(r.Context(), middleware.ActorFromContext(r.Context()), page)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

func MerchantGet(svc merchants.Service, logg *logger.Logger) http.HandlerFunc {
	return merchantByID(svc, logg, func(r *http.Request, actor access.Actor, id uuid.UUID) (any, error) {
		return svc.Get(r.Context(), actor, id)
	})
}

func MerchantUpdate(svc merchants.Service, logg *logger.Logger) http.HandlerFunc {
	return merchantByID(svc, logg, func(r *http.Request, actor access.Actor, id uuid.UUID) (any, error) {
		var payload merchantUpdateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		return svc.Update(r.Context(), actor, id, payload.toInput())
	})
}

// MerchantDelete soft-deletes a merchant and cascades to users, offers,
// tokens and open invitations.
func MerchantDelete(svc merchants.Service, logg *logger.Logger) http.HandlerFunc {
	return merchantByID(svc, logg, func(r *http.Request, actor access.Actor, id uuid.UUID) (any, error) {
		return svc.Delete(r.Context(), actor, id)
	})
}

// MerchantRestore reactivates a deleted merchant. Orphaned users and paused
// offers stay as they are.
func MerchantRestore(svc merchants.Service, logg *logger.Logger) http.HandlerFunc {
	return merchantByID(svc, logg, func(r *http.Request, actor access.Actor, id uuid.UUID) (any, error) {
		return svc.Restore(r.Context(), actor, id)
	})
}

func merchantByID(svc merchants.Service, logg *logger.Logger, fn func(*http.Request, access.Actor, uuid.UUID) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "merchant service unavailable"))
			return
		}

		id, err := pathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := fn(r, middleware.ActorFromContext(r.Context()), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}
