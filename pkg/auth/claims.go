package auth

import (
	"github.com/boostlocal/boost-api/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
)

// IdentityPayload captures the data available when minting an identity token.
type IdentityPayload struct {
	UID        string
	Email      string
	Role       *enums.UserRole
	MerchantID *string
	IsPrimary  bool
}

// IdentityClaims is the typed bearer token presented by clients. The subject is
// the identity-provider uid. Role claims are advisory; authorization always
// resolves the stored binding.
type IdentityClaims struct {
	Email      string          `json:"email"`
	Role       *enums.UserRole `json:"role,omitempty"`
	MerchantID *string         `json:"merchant_id,omitempty"`
	IsPrimary  bool            `json:"is_primary,omitempty"`
	jwt.RegisteredClaims
}

// UID returns the identity subject.
func (c *IdentityClaims) UID() string {
	if c == nil {
		return ""
	}
	return c.Subject
}
