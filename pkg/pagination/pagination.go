package pagination

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	// DefaultLimit is the standard page size when a limit is not provided.
	DefaultLimit = 50
	// MaxLimit caps how many rows a list query can request.
	MaxLimit = 200
)

// Params holds offset pagination inputs from controllers or services.
type Params struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// Bounds describes the default and maximum page size for one listing.
type Bounds struct {
	Default int
	Max     int
}

// Standard is used by offers, users, merchants and redemptions.
var Standard = Bounds{Default: DefaultLimit, Max: MaxLimit}

// NormalizeLimit enforces the standard default and maximum limits.
func NormalizeLimit(limit int) int {
	return Standard.Normalize(Params{Limit: limit}).Limit
}

// Normalize clamps the limit into [1, Max] and the offset to be non-negative.
func (b Bounds) Normalize(p Params) Params {
	if p.Limit <= 0 {
		p.Limit = b.Default
	}
	if p.Limit > b.Max {
		p.Limit = b.Max
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// FromQuery reads limit and offset query parameters. Absent values fall back to
// the bounds defaults; malformed or out-of-range values are rejected.
func (b Bounds) FromQuery(values url.Values) (Params, error) {
	var p Params
	if raw := strings.TrimSpace(values.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > b.Max {
			return Params{}, fmt.Errorf("limit must be between 1 and %d", b.Max)
		}
		p.Limit = limit
	}
	if raw := strings.TrimSpace(values.Get("offset")); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return Params{}, fmt.Errorf("offset must be a non-negative integer")
		}
		p.Offset = offset
	}
	return b.Normalize(p), nil
}
