package dbtest

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/boostlocal/boost-api/pkg/db/models"
	"github.com/boostlocal/boost-api/pkg/enums"
)

// SeedMerchant inserts an active merchant with the given locations.
func SeedMerchant(t testing.TB, conn *gorm.DB, locations ...string) models.Merchant {
	t.Helper()
	if len(locations) == 0 {
		locations = []string{"Main St"}
	}
	m := models.Merchant{
		ID:        uuid.New(),
		Name:      "Corner Cafe",
		Email:     "cafe@example.com",
		Locations: pq.StringArray(locations),
		Timezone:  "UTC",
		Status:    enums.MerchantStatusActive,
	}
	if err := conn.Create(&m).Error; err != nil {
		t.Fatalf("seed merchant: %v", err)
	}
	return m
}

// SeedOffer inserts an active offer with the given daily cap and value.
func SeedOffer(t testing.TB, conn *gorm.DB, merchantID uuid.UUID, capDaily int, value string) models.Offer {
	t.Helper()
	o := models.Offer{
		ID:                 uuid.New(),
		MerchantID:         merchantID,
		Name:               "Free Coffee",
		DiscountText:       "One free drip coffee",
		CapDaily:           capDaily,
		ValuePerRedemption: decimal.RequireFromString(value),
		Status:             enums.OfferStatusActive,
	}
	if err := conn.Create(&o).Error; err != nil {
		t.Fatalf("seed offer: %v", err)
	}
	return o
}

// SeedToken inserts an active token for offerID expiring at expiresAt.
func SeedToken(t testing.TB, conn *gorm.DB, offerID uuid.UUID, shortCode string, universal bool, expiresAt time.Time) models.Token {
	t.Helper()
	tok := models.Token{
		ID:          uuid.New(),
		OfferID:     offerID,
		ShortCode:   shortCode,
		Status:      enums.TokenStatusActive,
		IsUniversal: universal,
		ExpiresAt:   expiresAt.UTC(),
	}
	tok.QRData = "https://boost.test/r/" + tok.ID.String()
	if err := conn.Create(&tok).Error; err != nil {
		t.Fatalf("seed token: %v", err)
	}
	return tok
}

// SeedRedemption inserts a redemption with its ledger entry.
func SeedRedemption(t testing.TB, conn *gorm.DB, offer models.Offer, tokenID uuid.UUID, location string, at time.Time) models.Redemption {
	t.Helper()
	r := models.Redemption{
		ID:         uuid.New(),
		TokenID:    tokenID,
		OfferID:    offer.ID,
		MerchantID: offer.MerchantID,
		Method:     enums.RedemptionMethodScan,
		Location:   location,
		Value:      offer.ValuePerRedemption,
		RedeemedAt: at.UTC(),
	}
	if err := conn.Create(&r).Error; err != nil {
		t.Fatalf("seed redemption: %v", err)
	}
	entry := models.LedgerEntry{
		ID:           uuid.New(),
		MerchantID:   offer.MerchantID,
		RedemptionID: r.ID,
		OfferID:      offer.ID,
		Amount:       offer.ValuePerRedemption,
		CreatedAt:    at.UTC(),
	}
	if err := conn.Create(&entry).Error; err != nil {
		t.Fatalf("seed ledger entry: %v", err)
	}
	return r
}

// SeedUser inserts an active user bound to role.
func SeedUser(t testing.TB, conn *gorm.DB, uid string, role enums.UserRole, merchantID *uuid.UUID) models.User {
	t.Helper()
	r := role
	u := models.User{
		UID:        uid,
		Email:      uid + "@example.com",
		Role:       &r,
		MerchantID: merchantID,
		Status:     enums.UserStatusActive,
	}
	if err := conn.Create(&u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}
