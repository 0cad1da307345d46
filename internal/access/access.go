// Package access holds the role checks applied by every service. Checks run
// against the stored role binding, never against client-declared view modes.
package access

import (
	"github.com/google/uuid"

	"github.com/boostlocal/boost-api/pkg/db/models"
	"github.com/boostlocal/boost-api/pkg/enums"
	pkgerrors "github.com/boostlocal/boost-api/pkg/errors"
)

// Actor is the authenticated caller together with its resolved binding.
type Actor struct {
	UID        string
	Email      string
	Role       *enums.UserRole
	MerchantID *uuid.UUID
	IsPrimary  bool
}

// ActorFromUser builds an actor from a stored user row.
func ActorFromUser(u models.User) Actor {
	return Actor{
		UID:        u.UID,
		Email:      u.Email,
		Role:       u.Role,
		MerchantID: u.MerchantID,
		IsPrimary:  u.IsPrimary,
	}
}

// HasRole reports whether the caller has any binding.
func (a Actor) HasRole() bool {
	return a.Role != nil && a.Role.IsValid()
}

func (a Actor) is(role enums.UserRole) bool {
	return a.Role != nil && *a.Role == role
}

func (a Actor) IsOwner() bool { return a.is(enums.UserRoleOwner) }

func (a Actor) belongsTo(merchantID uuid.UUID) bool {
	return a.MerchantID != nil && *a.MerchantID == merchantID
}

// RoleString returns the role name or an empty string.
func (a Actor) RoleString() string {
	if a.Role == nil {
		return ""
	}
	return a.Role.String()
}

// RequireOwner rejects every caller that is not an owner.
func RequireOwner(a Actor) error {
	if a.IsOwner() {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "Owner access required")
}

// RequireMerchantAdmin allows owners and the merchant admins of merchantID.
func RequireMerchantAdmin(a Actor, merchantID uuid.UUID) error {
	if a.IsOwner() {
		return nil
	}
	if a.is(enums.UserRoleMerchantAdmin) && a.belongsTo(merchantID) {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "Merchant admin access required")
}

// RequireStaffOrAbove allows owners and any staff or admin of merchantID.
func RequireStaffOrAbove(a Actor, merchantID uuid.UUID) error {
	if a.IsOwner() {
		return nil
	}
	if (a.is(enums.UserRoleMerchantAdmin) || a.is(enums.UserRoleStaff)) && a.belongsTo(merchantID) {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "Access denied")
}

// RequireAnyRole rejects callers without a binding.
func RequireAnyRole(a Actor) error {
	if a.HasRole() {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "No role assigned")
}

// ScopeMerchant picks the merchant a listing is limited to. Owners may pass
// any merchant or none; everyone else is pinned to their own merchant.
func ScopeMerchant(a Actor, requested *uuid.UUID) (*uuid.UUID, error) {
	if a.IsOwner() {
		return requested, nil
	}
	if !a.HasRole() || a.MerchantID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "Access denied")
	}
	if requested != nil && *requested != *a.MerchantID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "Access denied")
	}
	own := *a.MerchantID
	return &own, nil
}

// CanDeleteUser applies the deletion rules: the primary owner is protected,
// owners delete anyone else, merchant admins delete staff of their merchant.
func CanDeleteUser(a Actor, target models.User) bool {
	if target.IsPrimary {
		return false
	}
	if a.IsOwner() {
		return true
	}
	if a.is(enums.UserRoleMerchantAdmin) && target.Role != nil && *target.Role == enums.UserRoleStaff {
		return a.MerchantID != nil && target.MerchantID != nil && *a.MerchantID == *target.MerchantID
	}
	return false
}
