package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/boostlocal/boost-api/api/middleware"
	"github.com/boostlocal/boost-api/api/responses"
	"github.com/boostlocal/boost-api/api/validators"
	"github.com/boostlocal/boost-api/internal/users"
	"github.com/boostlocal/boost-api/pkg/enums"
	pkgerrors "github.com/boostlocal/boost-api/pkg/errors"
	"github.com/boostlocal/boost-api/pkg/logger"
	"github.com/boostlocal/boost-api/pkg/pagination"
)

type inviteRequest struct {
	Email      string         `json:"email" validate:"required,email"`
	Role       enums.UserRole `json:"role" validate:"required"`
	MerchantID *uuid.UUID     `json:"merchant_id"`
}

func (r inviteRequest) toInput() users.InviteInput {
	return users.InviteInput{
		Email:      r.Email,
		Role:       enums.UserRole(strings.ToLower(strings.TrimSpace(string(r.Role)))),
		MerchantID: r.MerchantID,
	}
}

// AdminUserInvite binds an email to a role, immediately when the user exists
// and as a pending invitation otherwise.
func AdminUserInvite(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "user service unavailable"))
			return
		}

		var payload inviteRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Invite(r.Context(), middleware.ActorFromContext(r.Context()), payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

func AdminUserList(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "user service unavailable"))
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

// AdminUserDelete soft-deletes a user and drops its role binding.
func AdminUserDelete(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "user service unavailable"))
			return
		}

		uid := validators.Clean(chi.URLParam(r, "uid"), 128)
		if uid == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "uid is required"))
			return
		}

		result, err := svc.Delete(r.Context(), middleware.ActorFromContext(r.Context()), uid)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

// ClaimRole promotes the caller's pending invitation into a role binding.
// A refreshed identity token is returned in the X-Boost-Token header.
func ClaimRole(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "user service unavailable"))
			return
		}

		identity := users.Identity{
			UID:   middleware.UserIDFromContext(r.Context()),
			Email: middleware.EmailFromContext(r.Context()),
		}
		if identity.UID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		result, err := svc.ClaimRole(r.Context(), identity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if result.Token != "" {
			w.Header().Set(middleware.TokenHeader, result.Token)
		}
		responses.WriteSuccess(w, result)
	}
}
