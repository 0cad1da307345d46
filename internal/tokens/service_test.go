package tokens_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/boostlocal/boost-api/internal/access"
	"github.com/boostlocal/boost-api/internal/merchants"
	"github.com/boostlocal/boost-api/internal/offers"
	"github.com/boostlocal/boost-api/internal/tokens"
	"github.com/boostlocal/boost-api/pkg/db/dbtest"
	"github.com/boostlocal/boost-api/pkg/db/models"
	"github.com/boostlocal/boost-api/pkg/enums"
	pkgerrors "github.com/boostlocal/boost-api/pkg/errors"
	"github.com/boostlocal/boost-api/pkg/logger"
)

var fixedNow = time.Date(2026, 7, 4, 18, 0, 0, 0, time.UTC)

func newService(t *testing.T, codes ...string) (tokens.Service, *gorm.DB) {
	t.Helper()
	client, conn := dbtest.Client(t)
	params := tokens.ServiceParams{
		Repo:          tokens.NewRepository(conn),
		Offers:        offers.NewRepository(conn),
		Merchants:     merchants.NewRepository(conn),
		DB:            client,
		Logger:        logger.New(logger.Options{Output: io.Discard}),
		PublicBaseURL: "https://boost.test",
		Now:           func() time.Time { return fixedNow },
	}
	if len(codes) > 0 {
		next := 0
		params.NewShortCode = func() (string, error) {
			code := codes[next%len(codes)]
			next++
			return code, nil
		}
	}
	svc, err := tokens.NewService(params)
	require.NoError(t, err)
	return svc, conn
}

func adminOf(merchantID uuid.UUID) access.Actor {
	role := enums.UserRoleMerchantAdmin
	return access.Actor{UID: "admin", Role: &role, MerchantID: &merchantID}
}

func TestEnsureUniversalKeepsSingleActiveToken(t *testing.T) {
	svc, conn := newService(t)
	ctx := context.Background()
	m := dbtest.SeedMerchant(t, conn)
	offer := dbtest.SeedOffer(t, conn, m.ID, 10, "1.00")

	first, err := svc.EnsureUniversal(ctx, adminOf(m.ID), offer.ID, tokens.GenerateInput{ExpiresDays: 7})
	require.NoError(t, err)
	require.Len(t, first.Tokens, 1)
	assert.Equal(t, 1, first.Count)
	tok := first.Tokens[0]
	assert.True(t, tok.IsUniversal)
	assert.Len(t, tok.ShortCode, 6)
	assert.Equal(t, "https://boost.test/r/"+tok.ID.String(), tok.QRData)
	assert.True(t, tok.ExpiresAt.Equal(fixedNow.AddDate(0, 0, 7)))

	for i := 0; i < 3; i++ {
		again, err := svc.EnsureUniversal(ctx, adminOf(m.ID), offer.ID, tokens.GenerateInput{})
		require.NoError(t, err)
		assert.Equal(t, tok.ID, again.Tokens[0].ID)
		assert.Equal(t, tok.ShortCode, again.Tokens[0].ShortCode)
		assert.True(t, again.Tokens[0].ExpiresAt.Equal(fixedNow.AddDate(0, 0, 30)))
	}

	var active int64
	require.NoError(t, conn.Model(&models.Token{}).
		Where("offer_id = ? AND status = ?", offer.ID, enums.TokenStatusActive).
		Count(&active).Error)
	assert.EqualValues(t, 1, active)
}

func TestEnsureUniversalReactivatesExpiredToken(t *testing.T) {
	svc, conn := newService(t, "NEW234")
	ctx := context.Background()
	m := dbtest.SeedMerchant(t, conn)
	offer := dbtest.SeedOffer(t, conn, m.ID, 10, "1.00")
	other := dbtest.SeedOffer(t, conn, m.ID, 10, "1.00")
	old := dbtest.SeedToken(t, conn, offer.ID, "DUP234", true, fixedNow.Add(-time.Hour))
	require.NoError(t, conn.Model(&models.Token{}).Where("id = ?", old.ID).Update("status", enums.TokenStatusExpired).Error)
	dbtest.SeedToken(t, conn, other.ID, "DUP234", true, fixedNow.Add(time.Hour))

	res, err := svc.EnsureUniversal(ctx, adminOf(m.ID), offer.ID, tokens.GenerateInput{})
	require.NoError(t, err)
	assert.Equal(t, old.ID, res.Tokens[0].ID)
	assert.Equal(t, enums.TokenStatusActive, res.Tokens[0].Status)
	assert.Equal(t, "NEW234", res.Tokens[0].ShortCode)
}

func TestEnsureUniversalRules(t *testing.T) {
	svc, conn := newService(t)
	ctx := context.Background()
	m := dbtest.SeedMerchant(t, conn)
	offer := dbtest.SeedOffer(t, conn, m.ID, 10, "1.00")

	role := enums.UserRoleStaff
	staff := access.Actor{UID: "s", Role: &role, MerchantID: &m.ID}
	_, err := svc.EnsureUniversal(ctx, staff, offer.ID, tokens.GenerateInput{})
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err))

	_, err = svc.EnsureUniversal(ctx, adminOf(m.ID), uuid.New(), tokens.GenerateInput{})
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))

	require.NoError(t, conn.Model(&models.Offer{}).Where("id = ?", offer.ID).Update("status", enums.OfferStatusExpired).Error)
	_, err = svc.EnsureUniversal(ctx, adminOf(m.ID), offer.ID, tokens.GenerateInput{})
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.CodeOf(err))
}

func TestIssueSingleUseStoresNonUniversalTokens(t *testing.T) {
	svc, conn := newService(t, "SU2345", "SU3456", "UNI234")
	ctx := context.Background()
	m := dbtest.SeedMerchant(t, conn)
	offer := dbtest.SeedOffer(t, conn, m.ID, 10, "1.00")

	res, err := svc.IssueSingleUse(ctx, adminOf(m.ID), offer.ID, tokens.GenerateInput{Count: 2, ExpiresDays: 3})
	require.NoError(t, err)
	require.Len(t, res.Tokens, 2)
	assert.Equal(t, 2, res.Count)

	for _, tok := range res.Tokens {
		assert.False(t, tok.IsUniversal)
		var stored models.Token
		require.NoError(t, conn.First(&stored, "id = ?", tok.ID).Error)
		assert.False(t, stored.IsUniversal)
		assert.Equal(t, enums.TokenStatusActive, stored.Status)
		assert.True(t, stored.ExpiresAt.Equal(fixedNow.AddDate(0, 0, 3)))
	}

	universal, err := svc.EnsureUniversal(ctx, adminOf(m.ID), offer.ID, tokens.GenerateInput{})
	require.NoError(t, err)
	assert.True(t, universal.Tokens[0].IsUniversal)
	assert.Equal(t, "UNI234", universal.Tokens[0].ShortCode)
}

func TestIssueSingleUseRules(t *testing.T) {
	svc, conn := newService(t)
	ctx := context.Background()
	m := dbtest.SeedMerchant(t, conn)
	offer := dbtest.SeedOffer(t, conn, m.ID, 10, "1.00")

	_, err := svc.IssueSingleUse(ctx, adminOf(m.ID), offer.ID, tokens.GenerateInput{Count: 101})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	_, err = svc.IssueSingleUse(ctx, adminOf(uuid.New()), offer.ID, tokens.GenerateInput{})
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err))

	res, err := svc.IssueSingleUse(ctx, adminOf(m.ID), offer.ID, tokens.GenerateInput{})
	require.NoError(t, err)
	assert.Len(t, res.Tokens, 1)
}

func TestPublicOffer(t *testing.T) {
	svc, conn := newService(t)
	ctx := context.Background()
	m := dbtest.SeedMerchant(t, conn)
	offer := dbtest.SeedOffer(t, conn, m.ID, 5, "1.00")
	tok := dbtest.SeedToken(t, conn, offer.ID, "PUB234", true, fixedNow.Add(time.Hour))
	dbtest.SeedRedemption(t, conn, offer, tok.ID, "Main St", fixedNow.Add(-time.Minute))

	dto, err := svc.PublicOffer(ctx, "pub234")
	require.NoError(t, err)
	assert.Equal(t, tok.ID, dto.TokenID)
	assert.Equal(t, "Corner Cafe", dto.MerchantName)
	assert.Equal(t, "Free Coffee", dto.OfferName)
	assert.Equal(t, 4, dto.CapRemaining)

	byURL, err := svc.PublicOffer(ctx, tok.QRData)
	require.NoError(t, err)
	assert.Equal(t, tok.ID, byURL.TokenID)

	_, err = svc.PublicOffer(ctx, "NOPE99")
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))

	require.NoError(t, conn.Model(&models.Offer{}).Where("id = ?", offer.ID).Update("status", enums.OfferStatusPaused).Error)
	_, err = svc.PublicOffer(ctx, tok.ID.String())
	assert.Equal(t, pkgerrors.CodeGone, pkgerrors.CodeOf(err))

	stale := dbtest.SeedToken(t, conn, offer.ID, "OLD234", false, fixedNow.Add(-time.Hour))
	_, err = svc.PublicOffer(ctx, stale.ID.String())
	assert.Equal(t, pkgerrors.CodeGone, pkgerrors.CodeOf(err))
}

func TestExpireDue(t *testing.T) {
	svc, conn := newService(t)
	m := dbtest.SeedMerchant(t, conn)
	offer := dbtest.SeedOffer(t, conn, m.ID, 5, "1.00")
	due := dbtest.SeedToken(t, conn, offer.ID, "DUE234", false, fixedNow.Add(-time.Minute))
	dbtest.SeedToken(t, conn, offer.ID, "LIV234", true, fixedNow.Add(time.Hour))

	n, err := svc.ExpireDue(context.Background(), fixedNow)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	var stored models.Token
	require.NoError(t, conn.First(&stored, "id = ?", due.ID).Error)
	assert.Equal(t, enums.TokenStatusExpired, stored.Status)
}
