package merchants

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
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

type merchantRepository interface {
	Create(ctx context.Context, merchant *models.Merchant) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Merchant, error)
	FindByIDWithTx(tx *gorm.DB, id uuid.UUID) (*models.Merchant, error)
	List(ctx context.Context, filter ListFilter) ([]models.Merchant, error)
	Update(ctx context.Context, merchant *models.Merchant) error
	MarkDeletedWithTx(tx *gorm.DB, id uuid.UUID, by string, at time.Time) (bool, error)
	MarkRestoredWithTx(tx *gorm.DB, id uuid.UUID, at time.Time) (bool, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// UserOrphaner orphans the active users bound to a merchant and returns their uids.
type UserOrphaner interface {
	OrphanByMerchant(ctx context.Context, tx *gorm.DB, merchantID uuid.UUID) ([]string, error)
}

// OfferPauser pauses the active offers of a merchant.
type OfferPauser interface {
	PauseActiveByMerchant(ctx context.Context, tx *gorm.DB, merchantID uuid.UUID) (int64, error)
}

// TokenExpirer expires the active tokens of every offer of a merchant.
type TokenExpirer interface {
	ExpireActiveByMerchant(ctx context.Context, tx *gorm.DB, merchantID uuid.UUID) (int64, error)
}

// InviteCanceler closes the unclaimed invitations into a merchant.
type InviteCanceler interface {
	CancelUnclaimedByMerchant(ctx context.Context, tx *gorm.DB, merchantID uuid.UUID) (int64, error)
}

// BindingInvalidator drops cached role bindings.
type BindingInvalidator interface {
	Invalidate(ctx context.Context, uids ...string)
}

// Cascade groups the stores touched by merchant deletion.
type Cascade struct {
	Users   UserOrphaner
	Offers  OfferPauser
	Tokens  TokenExpirer
	Invites InviteCanceler
}

// Service exposes merchant operations.
type Service interface {
	Create(ctx context.Context, actor access.Actor, input CreateMerchantInput) (*MerchantDTO, error)
	List(ctx context.Context, actor access.Actor, page pagination.Params) (*ListResult, error)
	Get(ctx context.Context, actor access.Actor, id uuid.UUID) (*MerchantDTO, error)
	Update(ctx context.Context, actor access.Actor, id uuid.UUID, input UpdateMerchantInput) (*MerchantDTO, error)
	Delete(ctx context.Context, actor access.Actor, id uuid.UUID) (*DeleteResult, error)
	Restore(ctx context.Context, actor access.Actor, id uuid.UUID) (*MerchantDTO, error)
}

// ServiceParams wires the merchant service.
type ServiceParams struct {
	Repo            merchantRepository
	DB              txRunner
	Cascade         Cascade
	Bindings        BindingInvalidator
	Outbox          outbox.Emitter
	Logger          *logger.Logger
	DefaultTimezone string
	Now             func() time.Time
}

type service struct {
	repo            merchantRepository
	db              txRunner
	cascade         Cascade
	bindings        BindingInvalidator
	outbox          outbox.Emitter
	logg            *logger.Logger
	defaultTimezone string
	now             func() time.Time
}

// NewService builds the merchant service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("merchant repository required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Cascade.Users == nil || params.Cascade.Offers == nil || params.Cascade.Tokens == nil || params.Cascade.Invites == nil {
		return nil, fmt.Errorf("delete cascade incomplete")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	tz := strings.TrimSpace(params.DefaultTimezone)
	if tz == "" {
		tz = "UTC"
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:            params.Repo,
		db:              params.DB,
		cascade:         params.Cascade,
		bindings:        params.Bindings,
		outbox:          params.Outbox,
		logg:            params.Logger,
		defaultTimezone: tz,
		now:             now,
	}, nil
}

func (s *service) Create(ctx context.Context, actor access.Actor, input CreateMerchantInput) (*MerchantDTO, error) {
	if err := access.RequireOwner(actor); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	tz := s.defaultTimezone
	if input.Timezone != nil {
		tz = strings.TrimSpace(*input.Timezone)
	}
	if err := validateTimezone(tz); err != nil {
		return nil, err
	}

	merchant := &models.Merchant{
		ID:        uuid.New(),
		Name:      name,
		Email:     strings.ToLower(strings.TrimSpace(input.Email)),
		Locations: pq.StringArray(NormalizeLocations(input.Locations)),
		Timezone:  tz,
		Status:    enums.MerchantStatusActive,
	}
	if err := s.repo.Create(ctx, merchant); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create merchant")
	}
	s.logg.Info(s.logg.WithMerchantID(ctx, merchant.ID.String()), "merchant created")
	return FromModel(merchant), nil
}

func (s *service) List(ctx context.Context, actor access.Actor, page pagination.Params) (*ListResult, error) {
	scope, err := access.ScopeMerchant(actor, nil)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.List(ctx, ListFilter{
		MerchantID:     scope,
		IncludeDeleted: actor.IsOwner(),
		Limit:          page.Limit,
		Offset:         page.Offset,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list merchants")
	}
	out := make([]MerchantDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return &ListResult{Merchants: out, Limit: page.Limit, Offset: page.Offset}, nil
}

func (s *service) Get(ctx context.Context, actor access.Actor, id uuid.UUID) (*MerchantDTO, error) {
	if err := access.RequireStaffOrAbove(actor, id); err != nil {
		return nil, err
	}
	merchant, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return FromModel(merchant), nil
}

func (s *service) Update(ctx context.Context, actor access.Actor, id uuid.UUID, input UpdateMerchantInput) (*MerchantDTO, error) {
	if err := access.RequireMerchantAdmin(actor, id); err != nil {
		return nil, err
	}
	merchant, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if merchant.Status == enums.MerchantStatusDeleted {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Cannot update deleted merchant")
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
		}
		merchant.Name = name
	}
	if input.Email != nil {
		merchant.Email = strings.ToLower(strings.TrimSpace(*input.Email))
	}
	if input.Locations != nil {
		merchant.Locations = pq.StringArray(NormalizeLocations(*input.Locations))
	}
	if input.Timezone != nil {
		tz := strings.TrimSpace(*input.Timezone)
		if err := validateTimezone(tz); err != nil {
			return nil, err
		}
		merchant.Timezone = tz
	}

	if err := s.repo.Update(ctx, merchant); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update merchant")
	}
	return FromModel(merchant), nil
}

func (s *service) Delete(ctx context.Context, actor access.Actor, id uuid.UUID) (*DeleteResult, error) {
	if err := access.RequireOwner(actor); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	result := &DeleteResult{Deleted: true, ID: id}
	var orphaned []string

	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		merchant, err := s.repo.FindByIDWithTx(tx, id)
		if err != nil {
			return mapLoadError(err)
		}
		if merchant.Status == enums.MerchantStatusDeleted {
			return pkgerrors.New(pkgerrors.CodeValidation, "Merchant is already deleted")
		}
		ok, err := s.repo.MarkDeletedWithTx(tx, id, actor.UID, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark merchant deleted")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeValidation, "Merchant is already deleted")
		}

		orphaned, err = s.cascade.Users.OrphanByMerchant(ctx, tx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "orphan merchant users")
		}
		result.OrphanedUsers = int64(len(orphaned))

		if result.ExpiredTokens, err = s.cascade.Tokens.ExpireActiveByMerchant(ctx, tx, id); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "expire merchant tokens")
		}
		if result.PausedOffers, err = s.cascade.Offers.PauseActiveByMerchant(ctx, tx, id); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "pause merchant offers")
		}
		if result.CancelledPendingRoles, err = s.cascade.Invites.CancelUnclaimedByMerchant(ctx, tx, id); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel pending roles")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventMerchantDeleted,
			AggregateType: enums.AggregateMerchant,
			AggregateID:   id,
			Actor:         actorRef(actor),
			OccurredAt:    now,
			Data: payloads.MerchantDeletedEvent{
				MerchantID:      id,
				DeletedBy:       actor.UID,
				UsersOrphaned:   result.OrphanedUsers,
				OffersPaused:    result.PausedOffers,
				TokensExpired:   result.ExpiredTokens,
				InvitesCanceled: result.CancelledPendingRoles,
				DeletedAt:       now,
			},
		})
	})
	if err != nil {
		return nil, wrapTxError(err, "delete merchant")
	}

	if s.bindings != nil && len(orphaned) > 0 {
		s.bindings.Invalidate(ctx, orphaned...)
	}
	logCtx := s.logg.WithFields(s.logg.WithMerchantID(ctx, id.String()), map[string]any{
		"orphaned_users": result.OrphanedUsers,
		"paused_offers":  result.PausedOffers,
		"expired_tokens": result.ExpiredTokens,
	})
	s.logg.Info(logCtx, "merchant deleted")
	return result, nil
}

// Restore reactivates a deleted merchant. Orphaned users stay orphaned and
// paused offers stay paused until an owner reassigns or resumes them.
func (s *service) Restore(ctx context.Context, actor access.Actor, id uuid.UUID) (*MerchantDTO, error) {
	if err := access.RequireOwner(actor); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	var restored *models.Merchant
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		merchant, err := s.repo.FindByIDWithTx(tx, id)
		if err != nil {
			return mapLoadError(err)
		}
		if merchant.Status != enums.MerchantStatusDeleted {
			return pkgerrors.New(pkgerrors.CodeValidation, "Merchant is not deleted")
		}
		ok, err := s.repo.MarkRestoredWithTx(tx, id, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restore merchant")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeValidation, "Merchant is not deleted")
		}
		merchant.Status = enums.MerchantStatusActive
		merchant.DeletedAt = nil
		merchant.DeletedBy = nil
		merchant.UpdatedAt = now
		restored = merchant

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventMerchantRestored,
			AggregateType: enums.AggregateMerchant,
			AggregateID:   id,
			Actor:         actorRef(actor),
			OccurredAt:    now,
			Data: payloads.MerchantRestoredEvent{
				MerchantID: id,
				RestoredBy: actor.UID,
				RestoredAt: now,
			},
		})
	})
	if err != nil {
		return nil, wrapTxError(err, "restore merchant")
	}
	s.logg.Info(s.logg.WithMerchantID(ctx, id.String()), "merchant restored")
	return FromModel(restored), nil
}

func (s *service) load(ctx context.Context, id uuid.UUID) (*models.Merchant, error) {
	merchant, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapLoadError(err)
	}
	return merchant, nil
}

// NormalizeLocations trims entries and drops blanks and case-insensitive duplicates.
func NormalizeLocations(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, raw := range in {
		loc := strings.TrimSpace(raw)
		if loc == "" {
			continue
		}
		key := strings.ToLower(loc)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, loc)
	}
	return out
}

// MatchLocation returns the canonical spelling of location among known.
func MatchLocation(known []string, location string) (string, bool) {
	want := strings.TrimSpace(location)
	for _, candidate := range known {
		if strings.EqualFold(strings.TrimSpace(candidate), want) {
			return candidate, true
		}
	}
	return "", false
}

func validateTimezone(tz string) error {
	if tz == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "timezone is required")
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown timezone").
			WithDetails(map[string]any{"timezone": tz})
	}
	return nil
}

func mapLoadError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "Merchant not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load merchant")
}

func wrapTxError(err error, msg string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}

func actorRef(actor access.Actor) *outbox.ActorRef {
	return &outbox.ActorRef{UID: actor.UID, MerchantID: actor.MerchantID, Role: actor.RoleString()}
}
