package enums

import "fmt"

// OfferStatus is the lifecycle state of an offer.
type OfferStatus string

const (
	OfferStatusActive  OfferStatus = "active"
	OfferStatusPaused  OfferStatus = "paused"
	OfferStatusExpired OfferStatus = "expired"
)

var validOfferStatuses = []OfferStatus{
	OfferStatusActive,
	OfferStatusPaused,
	OfferStatusExpired,
}

// String implements fmt.Stringer.
func (o OfferStatus) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OfferStatus.
func (o OfferStatus) IsValid() bool {
	for _, candidate := range validOfferStatuses {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseOfferStatus converts raw input into an OfferStatus.
func ParseOfferStatus(value string) (OfferStatus, error) {
	for _, candidate := range validOfferStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid offer status %q", value)
}

// CanTransitionTo reports whether an offer may move from o to next.
// Expired is terminal; active and paused may swap or expire.
func (o OfferStatus) CanTransitionTo(next OfferStatus) bool {
	if o == next {
		return true
	}
	switch o {
	case OfferStatusActive:
		return next == OfferStatusPaused || next == OfferStatusExpired
	case OfferStatusPaused:
		return next == OfferStatusActive || next == OfferStatusExpired
	default:
		return false
	}
}
