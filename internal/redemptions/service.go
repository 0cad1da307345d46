package redemptions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/boostlocal/boost-api/internal/access"
	"github.com/boostlocal/boost-api/internal/merchants"
	"github.com/boostlocal/boost-api/internal/offers"
	"github.com/boostlocal/boost-api/pkg/db/models"
	"github.com/boostlocal/boost-api/pkg/enums"
	pkgerrors "github.com/boostlocal/boost-api/pkg/errors"
	"github.com/boostlocal/boost-api/pkg/logger"
	"github.com/boostlocal/boost-api/pkg/metrics"
	"github.com/boostlocal/boost-api/pkg/outbox"
	"github.com/boostlocal/boost-api/pkg/outbox/payloads"
	"github.com/boostlocal/boost-api/pkg/pagination"
)

type redemptionRepository interface {
	CreateWithTx(tx *gorm.DB, redemption *models.Redemption, entry *models.LedgerEntry) error
	List(ctx context.Context, filter ListFilter) ([]models.Redemption, error)
}

type tokenRepository interface {
	Resolve(ctx context.Context, raw string) (*models.Token, error)
	FindByIDWithTx(tx *gorm.DB, id uuid.UUID) (*models.Token, error)
	UpdateWithTx(tx *gorm.DB, token *models.Token) error
}

type offerRepository interface {
	LockByIDWithTx(tx *gorm.DB, id uuid.UUID) (*models.Offer, error)
	CountRedemptionsWithTx(tx *gorm.DB, offerID uuid.UUID, start, end time.Time) (int64, error)
}

type merchantRepository interface {
	FindByIDWithTx(tx *gorm.DB, id uuid.UUID) (*models.Merchant, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service verifies redemptions and exposes the redemption log.
type Service interface {
	Redeem(ctx context.Context, actor access.Actor, input RedeemInput) (*RedeemResult, error)
	List(ctx context.Context, actor access.Actor, filter ListFilter) (*ListResult, error)
}

// ServiceParams wires the redemption engine.
type ServiceParams struct {
	Repo            redemptionRepository
	Tokens          tokenRepository
	Offers          offerRepository
	Merchants       merchantRepository
	DB              txRunner
	Outbox          outbox.Emitter
	Metrics         *metrics.RedemptionMetrics
	Logger          *logger.Logger
	DefaultLocation *time.Location
	Now             func() time.Time
}

type service struct {
	repo       redemptionRepository
	tokens     tokenRepository
	offers     offerRepository
	merchants  merchantRepository
	db         txRunner
	outbox     outbox.Emitter
	metrics    *metrics.RedemptionMetrics
	logg       *logger.Logger
	defaultLoc *time.Location
	now        func() time.Time
}

// NewService builds the redemption engine.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("redemption repository required")
	}
	if params.Tokens == nil {
		return nil, fmt.Errorf("token repository required")
	}
	if params.Offers == nil {
		return nil, fmt.Errorf("offer repository required")
	}
	if params.Merchants == nil {
		return nil, fmt.Errorf("merchant repository required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	svc := &service{
		repo:       params.Repo,
		tokens:     params.Tokens,
		offers:     params.Offers,
		merchants:  params.Merchants,
		db:         params.DB,
		outbox:     params.Outbox,
		metrics:    params.Metrics,
		logg:       params.Logger,
		defaultLoc: params.DefaultLocation,
		now:        params.Now,
	}
	if svc.defaultLoc == nil {
		svc.defaultLoc = time.UTC
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	return svc, nil
}

// Redeem verifies a token and records the redemption. Business rejections
// come back as a result with Success=false and a nil error; the offer row lock
// makes the cap check and the insert atomic per offer.
func (s *service) Redeem(ctx context.Context, actor access.Actor, input RedeemInput) (*RedeemResult, error) {
	method := input.Method
	if !method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid redemption method")
	}
	location := strings.TrimSpace(input.Location)
	if location == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "location is required")
	}

	resolved, err := s.tokens.Resolve(ctx, input.Token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.metrics.IncOutcome(string(OutcomeInvalid), method.String())
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, msgTokenNotFound)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve token")
	}

	var (
		result     *RedeemResult
		redemption *models.Redemption
	)
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		offer, err := s.offers.LockByIDWithTx(tx, resolved.OfferID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				result = rejected(OutcomeExpired, msgOfferInactive)
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock offer")
		}
		token, err := s.tokens.FindByIDWithTx(tx, resolved.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload token")
		}

		if err := access.RequireStaffOrAbove(actor, offer.MerchantID); err != nil {
			return err
		}

		merchant, err := s.merchants.FindByIDWithTx(tx, offer.MerchantID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				result = rejected(OutcomeExpired, msgOfferInactive)
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load merchant")
		}
		if len(merchant.Locations) > 0 {
			canonical, ok := merchants.MatchLocation(merchant.Locations, location)
			if !ok {
				return pkgerrors.New(pkgerrors.CodeValidation, msgUnknownLocation).
					WithDetails(map[string]any{"location": location})
			}
			location = canonical
		}

		now := s.now().UTC()
		if !token.IsUniversal && token.Status == enums.TokenStatusRedeemed {
			result = rejected(OutcomeAlready, msgAlreadyRedeemed)
			return nil
		}
		if token.Status != enums.TokenStatusActive || token.IsExpiredAt(now) {
			result = rejected(OutcomeExpired, msgCodeExpired)
			return nil
		}
		if offer.Status != enums.OfferStatusActive || merchant.Status != enums.MerchantStatusActive {
			result = rejected(OutcomeExpired, msgOfferInactive)
			return nil
		}

		loc := merchant.Location(s.defaultLoc)
		start, end := offers.DayBounds(loc, now)
		today, err := s.offers.CountRedemptionsWithTx(tx, offer.ID, start, end)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count redemptions")
		}
		if today >= int64(offer.CapDaily) {
			result = rejected(OutcomeExpired, msgDailyCapReached)
			return nil
		}
		if offer.ActiveHours != nil {
			if window, ok := ParseActiveHours(*offer.ActiveHours); ok && !window.Contains(now.In(loc)) {
				result = rejected(OutcomeExpired, msgOutsideHours(*offer.ActiveHours))
				return nil
			}
		}

		redemption = &models.Redemption{
			ID:         uuid.New(),
			TokenID:    token.ID,
			OfferID:    offer.ID,
			MerchantID: offer.MerchantID,
			Method:     method,
			Location:   location,
			Value:      offer.ValuePerRedemption,
			RedeemedAt: now,
			CreatedBy:  uidOrNil(actor.UID),
		}
		entry := &models.LedgerEntry{
			ID:           uuid.New(),
			MerchantID:   offer.MerchantID,
			RedemptionID: redemption.ID,
			OfferID:      offer.ID,
			Amount:       redemption.Value,
			CreatedAt:    now,
		}
		if err := s.repo.CreateWithTx(tx, redemption, entry); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record redemption")
		}

		usedAt := now
		usedBy := location
		if token.IsUniversal {
			token.LastRedeemedAt = &usedAt
			token.LastRedeemedByLocation = &usedBy
		} else {
			token.Status = enums.TokenStatusRedeemed
			token.RedeemedAt = &usedAt
			token.RedeemedByLocation = &usedBy
		}
		if err := s.tokens.UpdateWithTx(tx, token); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update token usage")
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRedemptionRecorded,
			AggregateType: enums.AggregateRedemption,
			AggregateID:   redemption.ID,
			Actor:         &outbox.ActorRef{UID: actor.UID, MerchantID: actor.MerchantID, Role: actor.RoleString()},
			OccurredAt:    now,
			Data: payloads.RedemptionRecordedEvent{
				RedemptionID: redemption.ID,
				LedgerID:     entry.ID,
				TokenID:      token.ID,
				OfferID:      offer.ID,
				MerchantID:   offer.MerchantID,
				Method:       method,
				Location:     location,
				Amount:       entry.Amount,
				RedeemedAt:   now,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit redemption event")
		}

		offerName := offer.Name
		discount := offer.DiscountText
		remaining := offers.CapRemaining(offer.CapDaily, today+1)
		result = &RedeemResult{
			Success:      true,
			Outcome:      OutcomeSuccess,
			Message:      msgSuccess,
			OfferName:    &offerName,
			DiscountText: &discount,
			RedemptionID: &redemption.ID,
			CapRemaining: &remaining,
		}
		return nil
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redeem token")
	}

	s.metrics.IncOutcome(string(result.Outcome), method.String())
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"token_id": resolved.ID.String(),
		"offer_id": resolved.OfferID.String(),
		"outcome":  string(result.Outcome),
	})
	if redemption != nil {
		s.metrics.AddBilled(method.String(), redemption.Value.InexactFloat64())
		logCtx = s.logg.WithFields(logCtx, map[string]any{
			"redemption_id": redemption.ID.String(),
			"merchant_id":   redemption.MerchantID.String(),
		})
		s.logg.Info(logCtx, "redemption recorded")
	} else {
		s.logg.Info(logCtx, "redemption rejected")
	}
	return result, nil
}

// List returns the redemption log visible to the actor.
func (s *service) List(ctx context.Context, actor access.Actor, filter ListFilter) (*ListResult, error) {
	scope, err := access.ScopeMerchant(actor, filter.MerchantID)
	if err != nil {
		return nil, err
	}
	filter.MerchantID = scope
	page := pagination.Standard.Normalize(pagination.Params{Limit: filter.Limit, Offset: filter.Offset})
	filter.Limit, filter.Offset = page.Limit, page.Offset
	rows, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list redemptions")
	}
	out := make([]RedemptionDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return &ListResult{Redemptions: out, Limit: filter.Limit, Offset: filter.Offset}, nil
}

func uidOrNil(uid string) *string {
	if uid == "" {
		return nil
	}
	return &uid
}
