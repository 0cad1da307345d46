package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/boostlocal/boost-api/pkg/db/models"
	"github.com/boostlocal/boost-api/pkg/enums"
)

const (
	InviteStatusClaimed = "claimed"
	InviteStatusPending = "pending"
)

// Identity is the verified subject of a request.
type Identity struct {
	UID   string
	Email string
}

// UserDTO is the API shape of a user binding.
type UserDTO struct {
	UID        string           `json:"uid"`
	Email      string           `json:"email"`
	Role       *enums.UserRole  `json:"role"`
	MerchantID *uuid.UUID       `json:"merchant_id"`
	IsPrimary  bool             `json:"is_primary"`
	Status     enums.UserStatus `json:"status"`
	CreatedAt  time.Time        `json:"created_at"`
	CreatedBy  *string          `json:"created_by"`
}

// PendingRoleDTO is the API shape of an open invitation.
type PendingRoleDTO struct {
	ID         uuid.UUID      `json:"id"`
	Email      string         `json:"email"`
	Role       enums.UserRole `json:"role"`
	MerchantID *uuid.UUID     `json:"merchant_id"`
	CreatedBy  string         `json:"created_by"`
	CreatedAt  time.Time      `json:"created_at"`
	ExpiresAt  time.Time      `json:"expires_at"`
	Claimed    bool           `json:"claimed"`
}

// ClaimResult answers a claim-role call. Token is the refreshed identity
// token and travels in a response header.
type ClaimResult struct {
	Success    bool            `json:"success"`
	Message    string          `json:"message"`
	Role       *enums.UserRole `json:"role,omitempty"`
	MerchantID *uuid.UUID      `json:"merchant_id,omitempty"`
	Token      string          `json:"-"`
}

// InviteInput is an owner's request to bind an email to a role.
type InviteInput struct {
	Email      string
	Role       enums.UserRole
	MerchantID *uuid.UUID
}

// InviteResult reports whether the role applied immediately or is pending.
type InviteResult struct {
	Email     string     `json:"email"`
	Status    string     `json:"status"`
	UserID    *string    `json:"user_id,omitempty"`
	PendingID *uuid.UUID `json:"pending_id,omitempty"`
}

// ListResult is the paginated user listing with open invitations.
type ListResult struct {
	Users   []UserDTO        `json:"users"`
	Pending []PendingRoleDTO `json:"pending"`
	Limit   int              `json:"limit"`
	Offset  int              `json:"offset"`
}

// DeleteResult acknowledges a user deletion.
type DeleteResult struct {
	Deleted bool   `json:"deleted"`
	UID     string `json:"uid"`
}

// FromModel maps a persisted user into a DTO.
func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}
	return &UserDTO{
		UID:        u.UID,
		Email:      u.Email,
		Role:       u.Role,
		MerchantID: u.MerchantID,
		IsPrimary:  u.IsPrimary,
		Status:     u.Status,
		CreatedAt:  u.CreatedAt,
		CreatedBy:  u.CreatedBy,
	}
}

// PendingFromModel maps a persisted invitation into a DTO.
func PendingFromModel(p *models.PendingRole) *PendingRoleDTO {
	if p == nil {
		return nil
	}
	return &PendingRoleDTO{
		ID:         p.ID,
		Email:      p.Email,
		Role:       p.Role,
		MerchantID: p.MerchantID,
		CreatedBy:  p.CreatedBy,
		CreatedAt:  p.CreatedAt,
		ExpiresAt:  p.ExpiresAt,
		Claimed:    p.Claimed,
	}
}

// BindingFromModel derives the effective binding of a user row. Users that
// are not active carry no role.
func BindingFromModel(u *models.User) Binding {
	binding := Binding{UID: u.UID, Email: u.Email}
	if u.Status != enums.UserStatusActive {
		return binding
	}
	binding.Role = u.Role
	binding.MerchantID = u.MerchantID
	binding.IsPrimary = u.IsPrimary
	return binding
}
