package offers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/boostlocal/boost-api/internal/access"
	"github.com/boostlocal/boost-api/pkg/db/models"
	"github.com/boostlocal/boost-api/pkg/enums"
	pkgerrors "github.com/boostlocal/boost-api/pkg/errors"
	"github.com/boostlocal/boost-api/pkg/logger"
	"github.com/boostlocal/boost-api/pkg/outbox"
	"github.com/boostlocal/boost-api/pkg/outbox/payloads"
	"github.com/boostlocal/boost-api/pkg/pagination"
)

const expireBatchSize = 200

type offerRepository interface {
	Create(ctx context.Context, offer *models.Offer) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Offer, error)
	LockByIDWithTx(tx *gorm.DB, id uuid.UUID) (*models.Offer, error)
	List(ctx context.Context, filter ListFilter) ([]models.Offer, error)
	Update(ctx context.Context, offer *models.Offer) error
	SoftDeleteWithTx(tx *gorm.DB, id uuid.UUID) error
	ListEnded(ctx context.Context, now time.Time, limit int) ([]models.Offer, error)
	MarkExpiredWithTx(tx *gorm.DB, id uuid.UUID, at time.Time) (bool, error)
	CountRedemptions(ctx context.Context, offerID uuid.UUID, start, end time.Time) (int64, error)
	CountRedemptionsByOffer(ctx context.Context, offerIDs []uuid.UUID, start, end time.Time) (map[uuid.UUID]int64, error)
}

type merchantLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Merchant, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Merchant, error)
}

// TokenExpirer expires every active token of the given offers.
type TokenExpirer interface {
	ExpireForOffers(ctx context.Context, tx *gorm.DB, offerIDs []uuid.UUID) (int64, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes offer operations.
type Service interface {
	Create(ctx context.Context, actor access.Actor, input CreateOfferInput) (*OfferDTO, error)
	List(ctx context.Context, actor access.Actor, merchantID *uuid.UUID, page pagination.Params) (*ListResult, error)
	Get(ctx context.Context, actor access.Actor, id uuid.UUID) (*OfferDTO, error)
	Update(ctx context.Context, actor access.Actor, id uuid.UUID, input UpdateOfferInput) (*OfferDTO, error)
	Delete(ctx context.Context, actor access.Actor, id uuid.UUID) (*DeleteResult, error)
	ExpireEnded(ctx context.Context, now time.Time) (int, error)
}

// ServiceParams wires the offer service.
type ServiceParams struct {
	Repo            offerRepository
	Merchants       merchantLookup
	Tokens          TokenExpirer
	DB              txRunner
	Outbox          outbox.Emitter
	Logger          *logger.Logger
	DefaultLocation *time.Location
	Now             func() time.Time
}

type service struct {
	repo       offerRepository
	merchants  merchantLookup
	tokens     TokenExpirer
	db         txRunner
	outbox     outbox.Emitter
	logg       *logger.Logger
	defaultLoc *time.Location
	now        func() time.Time
}

// NewService builds the offer service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("offer repository required")
	}
	if params.Merchants == nil {
		return nil, fmt.Errorf("merchant lookup required")
	}
	if params.Tokens == nil {
		return nil, fmt.Errorf("token expirer required")
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
	loc := params.DefaultLocation
	if loc == nil {
		loc = time.UTC
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:       params.Repo,
		merchants:  params.Merchants,
		tokens:     params.Tokens,
		db:         params.DB,
		outbox:     params.Outbox,
		logg:       params.Logger,
		defaultLoc: loc,
		now:        now,
	}, nil
}

func (s *service) Create(ctx context.Context, actor access.Actor, input CreateOfferInput) (*OfferDTO, error) {
	if err := access.RequireMerchantAdmin(actor, input.MerchantID); err != nil {
		return nil, err
	}
	merchant, err := s.merchants.FindByID(ctx, input.MerchantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Merchant not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load merchant")
	}
	if merchant.Status == enums.MerchantStatusDeleted {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Cannot create offers for deleted merchant")
	}
	if input.CapDaily < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cap_daily must be at least 1")
	}
	if !input.ValuePerRedemption.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "value_per_redemption must be positive")
	}

	offer := &models.Offer{
		ID:                 uuid.New(),
		MerchantID:         merchant.ID,
		Name:               strings.TrimSpace(input.Name),
		DiscountText:       strings.TrimSpace(input.DiscountText),
		Terms:              trimmedOrNil(input.Terms),
		CapDaily:           input.CapDaily,
		ActiveHours:        trimmedOrNil(input.ActiveHours),
		ValuePerRedemption: input.ValuePerRedemption.Round(2),
		Status:             enums.OfferStatusActive,
		EndsAt:             utcOrNil(input.EndsAt),
	}
	if err := s.repo.Create(ctx, offer); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create offer")
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"offer_id":    offer.ID.String(),
		"merchant_id": offer.MerchantID.String(),
	}), "offer created")
	return FromModel(offer, 0), nil
}

func (s *service) List(ctx context.Context, actor access.Actor, merchantID *uuid.UUID, page pagination.Params) (*ListResult, error) {
	scope, err := access.ScopeMerchant(actor, merchantID)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.List(ctx, ListFilter{MerchantID: scope, Limit: page.Limit, Offset: page.Offset})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list offers")
	}
	counts, err := s.todayCounts(ctx, rows)
	if err != nil {
		return nil, err
	}
	out := make([]OfferDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i], counts[rows[i].ID]))
	}
	return &ListResult{Offers: out, Limit: page.Limit, Offset: page.Offset}, nil
}

// todayCounts batches the daily counters. Offers whose merchants share a local
// day share one grouped query.
func (s *service) todayCounts(ctx context.Context, rows []models.Offer) (map[uuid.UUID]int64, error) {
	counts := make(map[uuid.UUID]int64, len(rows))
	if len(rows) == 0 {
		return counts, nil
	}
	merchantIDs := make([]uuid.UUID, 0)
	seen := make(map[uuid.UUID]struct{})
	for _, row := range rows {
		if _, ok := seen[row.MerchantID]; ok {
			continue
		}
		seen[row.MerchantID] = struct{}{}
		merchantIDs = append(merchantIDs, row.MerchantID)
	}
	merchants, err := s.merchants.FindByIDs(ctx, merchantIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load merchants")
	}

	now := s.now()
	type window struct {
		start, end time.Time
		offerIDs   []uuid.UUID
	}
	windows := make(map[int64]*window)
	for _, row := range rows {
		loc := s.defaultLoc
		if merchant, ok := merchants[row.MerchantID]; ok {
			loc = merchant.Location(s.defaultLoc)
		}
		start, end := DayBounds(loc, now)
		w, ok := windows[start.Unix()]
		if !ok {
			w = &window{start: start, end: end}
			windows[start.Unix()] = w
		}
		w.offerIDs = append(w.offerIDs, row.ID)
	}

	keys := make([]int64, 0, len(windows))
	for key := range windows {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	for _, key := range keys {
		w := windows[key]
		totals, err := s.repo.CountRedemptionsByOffer(ctx, w.offerIDs, w.start, w.end)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count redemptions")
		}
		for id, total := range totals {
			counts[id] = total
		}
	}
	return counts, nil
}

func (s *service) Get(ctx context.Context, actor access.Actor, id uuid.UUID) (*OfferDTO, error) {
	offer, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := access.RequireStaffOrAbove(actor, offer.MerchantID); err != nil {
		return nil, err
	}
	count, err := s.todayCount(ctx, offer)
	if err != nil {
		return nil, err
	}
	return FromModel(offer, count), nil
}

func (s *service) Update(ctx context.Context, actor access.Actor, id uuid.UUID, input UpdateOfferInput) (*OfferDTO, error) {
	offer, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := access.RequireMerchantAdmin(actor, offer.MerchantID); err != nil {
		return nil, err
	}
	if offer.Status == enums.OfferStatusExpired {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "Offer has expired")
	}

	if input.Status != nil {
		next := *input.Status
		if !next.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid offer status")
		}
		if !offer.Status.CanTransitionTo(next) {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "invalid offer status transition").
				WithDetails(map[string]any{"from": offer.Status, "to": next})
		}
		offer.Status = next
	}
	if input.Name != nil {
		offer.Name = strings.TrimSpace(*input.Name)
	}
	if input.DiscountText != nil {
		offer.DiscountText = strings.TrimSpace(*input.DiscountText)
	}
	if input.Terms != nil {
		offer.Terms = trimmedOrNil(input.Terms)
	}
	if input.CapDaily != nil {
		if *input.CapDaily < 1 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "cap_daily must be at least 1")
		}
		offer.CapDaily = *input.CapDaily
	}
	if input.ActiveHours != nil {
		offer.ActiveHours = trimmedOrNil(input.ActiveHours)
	}
	if input.ValuePerRedemption != nil {
		if !input.ValuePerRedemption.IsPositive() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "value_per_redemption must be positive")
		}
		offer.ValuePerRedemption = input.ValuePerRedemption.Round(2)
	}
	if input.EndsAt != nil {
		offer.EndsAt = utcOrNil(input.EndsAt)
	}

	if err := s.repo.Update(ctx, offer); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update offer")
	}
	count, err := s.todayCount(ctx, offer)
	if err != nil {
		return nil, err
	}
	return FromModel(offer, count), nil
}

func (s *service) Delete(ctx context.Context, actor access.Actor, id uuid.UUID) (*DeleteResult, error) {
	offer, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := access.RequireMerchantAdmin(actor, offer.MerchantID); err != nil {
		return nil, err
	}

	var expired int64
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.repo.LockByIDWithTx(tx, id); err != nil {
			return mapLoadError(err)
		}
		if err := s.repo.SoftDeleteWithTx(tx, id); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete offer")
		}
		n, err := s.tokens.ExpireForOffers(ctx, tx, []uuid.UUID{id})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "expire offer tokens")
		}
		expired = n
		return nil
	})
	if err != nil {
		return nil, wrapTxError(err, "delete offer")
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"offer_id":       id.String(),
		"expired_tokens": expired,
	}), "offer deleted")
	return &DeleteResult{Deleted: true, ID: id}, nil
}

// ExpireEnded expires offers whose ends_at has passed along with their tokens.
func (s *service) ExpireEnded(ctx context.Context, now time.Time) (int, error) {
	now = now.UTC()
	ended, err := s.repo.ListEnded(ctx, now, expireBatchSize)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list ended offers")
	}
	expiredCount := 0
	for _, candidate := range ended {
		offerID := candidate.ID
		changed := false
		err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
			offer, err := s.repo.LockByIDWithTx(tx, offerID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return nil
				}
				return err
			}
			ok, err := s.repo.MarkExpiredWithTx(tx, offerID, now)
			if err != nil || !ok {
				return err
			}
			tokens, err := s.tokens.ExpireForOffers(ctx, tx, []uuid.UUID{offerID})
			if err != nil {
				return err
			}
			changed = true
			endsAt := now
			if offer.EndsAt != nil {
				endsAt = offer.EndsAt.UTC()
			}
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventOfferExpired,
				AggregateType: enums.AggregateOffer,
				AggregateID:   offerID,
				OccurredAt:    now,
				Data: payloads.OfferExpiredEvent{
					OfferID:       offerID,
					MerchantID:    offer.MerchantID,
					EndsAt:        endsAt,
					TokensExpired: tokens,
				},
			})
		})
		if err != nil {
			return expiredCount, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "expire offer")
		}
		if changed {
			expiredCount++
		}
	}
	return expiredCount, nil
}

func (s *service) todayCount(ctx context.Context, offer *models.Offer) (int64, error) {
	loc := s.defaultLoc
	merchant, err := s.merchants.FindByID(ctx, offer.MerchantID)
	switch {
	case err == nil:
		loc = merchant.Location(s.defaultLoc)
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load merchant")
	}
	start, end := DayBounds(loc, s.now())
	count, err := s.repo.CountRedemptions(ctx, offer.ID, start, end)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count redemptions")
	}
	return count, nil
}

func (s *service) load(ctx context.Context, id uuid.UUID) (*models.Offer, error) {
	offer, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapLoadError(err)
	}
	return offer, nil
}

func mapLoadError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "Offer not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load offer")
}

func wrapTxError(err error, msg string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}

func trimmedOrNil(in *string) *string {
	if in == nil {
		return nil
	}
	v := strings.TrimSpace(*in)
	if v == "" {
		return nil
	}
	return &v
}

func utcOrNil(in *time.Time) *time.Time {
	if in == nil || in.IsZero() {
		return nil
	}
	v := in.UTC()
	return &v
}
