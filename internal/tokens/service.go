package tokens

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/boostlocal/boost-api/internal/access"
	"github.com/boostlocal/boost-api/internal/offers"
	"github.com/boostlocal/boost-api/pkg/db"
	"github.com/boostlocal/boost-api/pkg/db/models"
	"github.com/boostlocal/boost-api/pkg/enums"
	pkgerrors "github.com/boostlocal/boost-api/pkg/errors"
	"github.com/boostlocal/boost-api/pkg/logger"
	"github.com/boostlocal/boost-api/pkg/security"
)

const (
	maxShortCodeAttempts = 10
	maxSingleUseBatch    = 100
	defaultExpiresDays   = 30
	fallbackMerchantName = "Local Business"
)

type tokenRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Token, error)
	Resolve(ctx context.Context, raw string) (*models.Token, error)
	FindUniversalForOfferWithTx(tx *gorm.DB, offerID uuid.UUID) (*models.Token, error)
	ShortCodeTakenWithTx(tx *gorm.DB, code string, exclude *uuid.UUID) (bool, error)
	CreateWithTx(tx *gorm.DB, token *models.Token) error
	UpdateWithTx(tx *gorm.DB, token *models.Token) error
	ListByOffer(ctx context.Context, offerID uuid.UUID, status *enums.TokenStatus, limit int) ([]models.Token, error)
	ExpireDue(ctx context.Context, now time.Time) (int64, error)
}

type offerRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Offer, error)
	LockByIDWithTx(tx *gorm.DB, id uuid.UUID) (*models.Offer, error)
	CountRedemptions(ctx context.Context, offerID uuid.UUID, start, end time.Time) (int64, error)
}

type merchantLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Merchant, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes token operations.
type Service interface {
	EnsureUniversal(ctx context.Context, actor access.Actor, offerID uuid.UUID, input GenerateInput) (*GenerateResult, error)
	IssueSingleUse(ctx context.Context, actor access.Actor, offerID uuid.UUID, input GenerateInput) (*GenerateResult, error)
	List(ctx context.Context, actor access.Actor, offerID uuid.UUID, input ListInput) (*ListResult, error)
	QRCode(ctx context.Context, actor access.Actor, tokenID uuid.UUID) ([]byte, error)
	PublicOffer(ctx context.Context, raw string) (*PublicOfferDTO, error)
	ExpireDue(ctx context.Context, now time.Time) (int64, error)
}

// ServiceParams wires the token service.
type ServiceParams struct {
	Repo            tokenRepository
	Offers          offerRepository
	Merchants       merchantLookup
	DB              txRunner
	Logger          *logger.Logger
	PublicBaseURL   string
	QRSize          int
	ExpiresDays     int
	DefaultLocation *time.Location
	Now             func() time.Time
	NewShortCode    func() (string, error)
}

type service struct {
	repo          tokenRepository
	offers        offerRepository
	merchants     merchantLookup
	db            txRunner
	logg          *logger.Logger
	publicBaseURL string
	qrSize        int
	expiresDays   int
	defaultLoc    *time.Location
	now           func() time.Time
	newShortCode  func() (string, error)
}

// NewService builds the token service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("token repository required")
	}
	if params.Offers == nil {
		return nil, fmt.Errorf("offer repository required")
	}
	if params.Merchants == nil {
		return nil, fmt.Errorf("merchant lookup required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.PublicBaseURL == "" {
		return nil, fmt.Errorf("public base url required")
	}
	svc := &service{
		repo:          params.Repo,
		offers:        params.Offers,
		merchants:     params.Merchants,
		db:            params.DB,
		logg:          params.Logger,
		publicBaseURL: params.PublicBaseURL,
		qrSize:        params.QRSize,
		expiresDays:   params.ExpiresDays,
		defaultLoc:    params.DefaultLocation,
		now:           params.Now,
		newShortCode:  params.NewShortCode,
	}
	if svc.defaultLoc == nil {
		svc.defaultLoc = time.UTC
	}
	if svc.expiresDays <= 0 {
		svc.expiresDays = defaultExpiresDays
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	if svc.newShortCode == nil {
		svc.newShortCode = security.GenerateShortCode
	}
	return svc, nil
}

// EnsureUniversal refreshes or creates the offer's single universal token
// while holding the offer row lock.
func (s *service) EnsureUniversal(ctx context.Context, actor access.Actor, offerID uuid.UUID, input GenerateInput) (*GenerateResult, error) {
	offer, err := s.loadOffer(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if err := access.RequireMerchantAdmin(actor, offer.MerchantID); err != nil {
		return nil, err
	}
	if offer.Status == enums.OfferStatusExpired {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "Offer has expired")
	}

	days := input.ExpiresDays
	if days <= 0 {
		days = s.expiresDays
	}
	now := s.now().UTC()
	expiresAt := now.AddDate(0, 0, days)

	var token *models.Token
	created := false
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.offers.LockByIDWithTx(tx, offerID); err != nil {
			return mapOfferError(err)
		}

		existing, err := s.repo.FindUniversalForOfferWithTx(tx, offerID)
		switch {
		case err == nil:
			if existing.Status != enums.TokenStatusActive {
				taken, err := s.repo.ShortCodeTakenWithTx(tx, existing.ShortCode, &existing.ID)
				if err != nil {
					return err
				}
				if taken {
					code, err := s.uniqueShortCode(tx)
					if err != nil {
						return err
					}
					existing.ShortCode = code
				}
			}
			existing.ExpiresAt = expiresAt
			existing.Status = enums.TokenStatusActive
			existing.IsUniversal = true
			if err := s.repo.UpdateWithTx(tx, existing); err != nil {
				return err
			}
			token = existing
			return nil
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		code, err := s.uniqueShortCode(tx)
		if err != nil {
			return err
		}
		id := uuid.New()
		token = &models.Token{
			ID:          id,
			OfferID:     offerID,
			ShortCode:   code,
			QRData:      QRData(s.publicBaseURL, id),
			Status:      enums.TokenStatusActive,
			IsUniversal: true,
			ExpiresAt:   expiresAt,
			CreatedAt:   now,
		}
		created = true
		return s.repo.CreateWithTx(tx, token)
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "token generation raced, retry")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "ensure universal token")
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"offer_id": offerID.String(),
		"token_id": token.ID.String(),
		"created":  created,
	})
	s.logg.Info(logCtx, "universal token ensured")

	return &GenerateResult{
		OfferID: offerID,
		Count:   1,
		Tokens:  []TokenDTO{*FromModel(token)},
	}, nil
}

// IssueSingleUse creates Count fresh tokens that flip to redeemed on first
// use. They live alongside the universal token.
func (s *service) IssueSingleUse(ctx context.Context, actor access.Actor, offerID uuid.UUID, input GenerateInput) (*GenerateResult, error) {
	offer, err := s.loadOffer(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if err := access.RequireMerchantAdmin(actor, offer.MerchantID); err != nil {
		return nil, err
	}
	if offer.Status == enums.OfferStatusExpired {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "Offer has expired")
	}

	count := input.Count
	if count <= 0 {
		count = 1
	}
	if count > maxSingleUseBatch {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "count must be at most %d", maxSingleUseBatch)
	}
	days := input.ExpiresDays
	if days <= 0 {
		days = s.expiresDays
	}
	now := s.now().UTC()
	expiresAt := now.AddDate(0, 0, days)

	issued := make([]models.Token, 0, count)
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.offers.LockByIDWithTx(tx, offerID); err != nil {
			return mapOfferError(err)
		}
		for i := 0; i < count; i++ {
			code, err := s.uniqueShortCode(tx)
			if err != nil {
				return err
			}
			id := uuid.New()
			token := models.Token{
				ID:          id,
				OfferID:     offerID,
				ShortCode:   code,
				QRData:      QRData(s.publicBaseURL, id),
				Status:      enums.TokenStatusActive,
				IsUniversal: false,
				ExpiresAt:   expiresAt,
				CreatedAt:   now,
			}
			if err := s.repo.CreateWithTx(tx, &token); err != nil {
				return err
			}
			issued = append(issued, token)
		}
		return nil
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "token generation raced, retry")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "issue single-use tokens")
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"offer_id": offerID.String(),
		"count":    len(issued),
	}), "single-use tokens issued")

	out := &GenerateResult{OfferID: offerID, Count: len(issued), Tokens: make([]TokenDTO, 0, len(issued))}
	for i := range issued {
		out.Tokens = append(out.Tokens, *FromModel(&issued[i]))
	}
	return out, nil
}

func (s *service) uniqueShortCode(tx *gorm.DB) (string, error) {
	for attempt := 0; attempt < maxShortCodeAttempts; attempt++ {
		code, err := s.newShortCode()
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate short code")
		}
		taken, err := s.repo.ShortCodeTakenWithTx(tx, code, nil)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	return "", pkgerrors.New(pkgerrors.CodeInternal, "could not allocate a unique short code")
}

func (s *service) List(ctx context.Context, actor access.Actor, offerID uuid.UUID, input ListInput) (*ListResult, error) {
	offer, err := s.loadOffer(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if err := access.RequireMerchantAdmin(actor, offer.MerchantID); err != nil {
		return nil, err
	}
	if input.Status != nil && !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid token status")
	}
	rows, err := s.repo.ListByOffer(ctx, offerID, input.Status, input.Limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list tokens")
	}
	out := make([]TokenDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return &ListResult{OfferID: offerID, Tokens: out}, nil
}

func (s *service) QRCode(ctx context.Context, actor access.Actor, tokenID uuid.UUID) ([]byte, error) {
	token, err := s.repo.FindByID(ctx, tokenID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Token not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load token")
	}
	offer, err := s.loadOffer(ctx, token.OfferID)
	if err != nil {
		return nil, err
	}
	if err := access.RequireMerchantAdmin(actor, offer.MerchantID); err != nil {
		return nil, err
	}
	png, err := RenderQR(token.QRData, s.qrSize)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "render qr code")
	}
	return png, nil
}

// PublicOffer renders what a customer sees after scanning or typing a code.
func (s *service) PublicOffer(ctx context.Context, raw string) (*PublicOfferDTO, error) {
	token, err := s.repo.Resolve(ctx, raw)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Offer not found or expired")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve token")
	}
	now := s.now()
	if token.Status != enums.TokenStatusActive || token.IsExpiredAt(now) {
		return nil, pkgerrors.New(pkgerrors.CodeGone, "This offer has expired")
	}

	offer, err := s.offers.FindByID(ctx, token.OfferID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Offer not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load offer")
	}
	if offer.Status != enums.OfferStatusActive {
		return nil, pkgerrors.New(pkgerrors.CodeGone, "This offer is no longer active")
	}

	merchantName := fallbackMerchantName
	loc := s.defaultLoc
	merchant, err := s.merchants.FindByID(ctx, offer.MerchantID)
	switch {
	case err == nil:
		loc = merchant.Location(s.defaultLoc)
		if merchant.Name != "" {
			merchantName = merchant.Name
		}
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load merchant")
	}

	start, end := offers.DayBounds(loc, now)
	count, err := s.offers.CountRedemptions(ctx, offer.ID, start, end)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count redemptions")
	}

	return &PublicOfferDTO{
		TokenID:      token.ID,
		ShortCode:    token.ShortCode,
		OfferName:    offer.Name,
		DiscountText: offer.DiscountText,
		Terms:        offer.Terms,
		MerchantName: merchantName,
		ActiveHours:  offer.ActiveHours,
		CapRemaining: offers.CapRemaining(offer.CapDaily, count),
		QRData:       token.QRData,
	}, nil
}

// ExpireDue flips active tokens past their expiry to expired.
func (s *service) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	n, err := s.repo.ExpireDue(ctx, now.UTC())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "expire tokens")
	}
	return n, nil
}

func (s *service) loadOffer(ctx context.Context, id uuid.UUID) (*models.Offer, error) {
	offer, err := s.offers.FindByID(ctx, id)
	if err != nil {
		return nil, mapOfferError(err)
	}
	return offer, nil
}

func mapOfferError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "Offer not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load offer")
}
