package enums

import "fmt"

// RedemptionMethod records how a staff device captured the token.
type RedemptionMethod string

const (
	RedemptionMethodScan   RedemptionMethod = "scan"
	RedemptionMethodManual RedemptionMethod = "manual"
)

var validRedemptionMethods = []RedemptionMethod{
	RedemptionMethodScan,
	RedemptionMethodManual,
}

// String implements fmt.Stringer.
func (r RedemptionMethod) String() string {
	return string(r)
}

// IsValid reports whether the value is a known RedemptionMethod.
func (r RedemptionMethod) IsValid() bool {
	for _, candidate := range validRedemptionMethods {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseRedemptionMethod converts raw input into a RedemptionMethod.
func ParseRedemptionMethod(value string) (RedemptionMethod, error) {
	for _, candidate := range validRedemptionMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid redemption method %q", value)
}
