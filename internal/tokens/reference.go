package tokens

import (
	"strings"

	"github.com/google/uuid"
)

const redeemPathMarker = "/r/"

// Reference is a parsed token reference: either a token id or a short code.
type Reference struct {
	ID   *uuid.UUID
	Code string
}

// ParseReference accepts a token id, a short code, or a scanned redeem URL
// ending in /r/{id}. Short codes are matched upper-cased.
func ParseReference(raw string) (Reference, bool) {
	value := strings.TrimSpace(raw)
	if idx := strings.LastIndex(value, redeemPathMarker); idx >= 0 {
		value = value[idx+len(redeemPathMarker):]
		if cut := strings.IndexAny(value, "/?#"); cut >= 0 {
			value = value[:cut]
		}
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return Reference{}, false
	}
	if id, err := uuid.Parse(value); err == nil {
		return Reference{ID: &id}, true
	}
	return Reference{Code: strings.ToUpper(value)}, true
}

// QRData builds the payload encoded into a token's QR image.
func QRData(baseURL string, id uuid.UUID) string {
	return strings.TrimRight(baseURL, "/") + redeemPathMarker + id.String()
}
