package enums

import "fmt"

// UserRole is the platform role bound to an identity.
type UserRole string

const (
	UserRoleOwner         UserRole = "owner"
	UserRoleMerchantAdmin UserRole = "merchant_admin"
	UserRoleStaff         UserRole = "staff"
)

var validUserRoles = []UserRole{
	UserRoleOwner,
	UserRoleMerchantAdmin,
	UserRoleStaff,
}

// String implements fmt.Stringer.
func (u UserRole) String() string {
	return string(u)
}

// IsValid reports whether the value is a known UserRole.
func (u UserRole) IsValid() bool {
	for _, candidate := range validUserRoles {
		if candidate == u {
			return true
		}
	}
	return false
}

// ParseUserRole converts raw input into a UserRole.
func ParseUserRole(value string) (UserRole, error) {
	for _, candidate := range validUserRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid user role %q", value)
}

// RequiresMerchant reports whether the role must be scoped to a merchant.
func (u UserRole) RequiresMerchant() bool {
	return u == UserRoleMerchantAdmin || u == UserRoleStaff
}
