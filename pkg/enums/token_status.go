package enums

import "fmt"

// TokenStatus is the lifecycle state of a redemption token.
type TokenStatus string

const (
	TokenStatusActive   TokenStatus = "active"
	TokenStatusRedeemed TokenStatus = "redeemed"
	TokenStatusExpired  TokenStatus = "expired"
)

var validTokenStatuses = []TokenStatus{
	TokenStatusActive,
	TokenStatusRedeemed,
	TokenStatusExpired,
}

// String implements fmt.Stringer.
func (t TokenStatus) String() string {
	return string(t)
}

// IsValid reports whether the value is a known TokenStatus.
func (t TokenStatus) IsValid() bool {
	for _, candidate := range validTokenStatuses {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseTokenStatus converts raw input into a TokenStatus.
func ParseTokenStatus(value string) (TokenStatus, error) {
	for _, candidate := range validTokenStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid token status %q", value)
}
