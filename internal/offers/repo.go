package offers

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/boostlocal/boost-api/pkg/db/models"
	"github.com/boostlocal/boost-api/pkg/enums"
)

// Repository handles offer persistence and the per-offer redemption counters
// derived from the redemption log.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a GORM DB to offer operations.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// ListFilter narrows List.
type ListFilter struct {
	MerchantID *uuid.UUID
	Limit      int
	Offset     int
}

// Create persists a new offer row.
func (r *Repository) Create(ctx context.Context, offer *models.Offer) error {
	if offer == nil {
		return fmt.Errorf("offer is required")
	}
	return r.db.WithContext(ctx).Create(offer).Error
}

// FindByID loads a live offer.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Offer, error) {
	return r.FindByIDWithTx(r.db.WithContext(ctx), id)
}

// FindByIDWithTx loads a live offer using the provided transaction.
func (r *Repository) FindByIDWithTx(tx *gorm.DB, id uuid.UUID) (*models.Offer, error) {
	if tx == nil {
		return nil, gorm.ErrInvalidTransaction
	}
	var offer models.Offer
	if err := tx.First(&offer, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &offer, nil
}

// LockByIDWithTx loads the offer with a row lock held until tx ends. Every
// redemption and token generation for the offer serializes on this lock.
func (r *Repository) LockByIDWithTx(tx *gorm.DB, id uuid.UUID) (*models.Offer, error) {
	if tx == nil {
		return nil, gorm.ErrInvalidTransaction
	}
	var offer models.Offer
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&offer, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &offer, nil
}

// FindNamesUnscoped maps offer ids to names, soft-deleted offers included.
func (r *Repository) FindNamesUnscoped(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	out := make(map[uuid.UUID]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.Offer
	if err := r.db.WithContext(ctx).Unscoped().
		Select("id", "name").
		Where("id IN ?", ids).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row.Name
	}
	return out, nil
}

// List returns live offers, newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]models.Offer, error) {
	query := r.db.WithContext(ctx).Model(&models.Offer{})
	if filter.MerchantID != nil {
		query = query.Where("merchant_id = ?", *filter.MerchantID)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}
	var rows []models.Offer
	if err := query.Order("created_at DESC").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Update saves the provided offer.
func (r *Repository) Update(ctx context.Context, offer *models.Offer) error {
	if offer == nil {
		return fmt.Errorf("offer is required")
	}
	return r.db.WithContext(ctx).Save(offer).Error
}

// SoftDeleteWithTx stamps deleted_at on the offer.
func (r *Repository) SoftDeleteWithTx(tx *gorm.DB, id uuid.UUID) error {
	if tx == nil {
		return gorm.ErrInvalidTransaction
	}
	return tx.Delete(&models.Offer{}, "id = ?", id).Error
}

// PauseActiveByMerchant pauses every active offer of a merchant.
func (r *Repository) PauseActiveByMerchant(ctx context.Context, tx *gorm.DB, merchantID uuid.UUID) (int64, error) {
	if tx == nil {
		return 0, gorm.ErrInvalidTransaction
	}
	res := tx.WithContext(ctx).Model(&models.Offer{}).
		Where("merchant_id = ? AND status = ?", merchantID, enums.OfferStatusActive).
		Updates(map[string]any{
			"status":     enums.OfferStatusPaused,
			"updated_at": time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

// ListEnded returns live, unexpired offers whose ends_at has passed.
func (r *Repository) ListEnded(ctx context.Context, now time.Time, limit int) ([]models.Offer, error) {
	query := r.db.WithContext(ctx).
		Where("ends_at IS NOT NULL AND ends_at <= ?", now).
		Where("status IN ?", []enums.OfferStatus{enums.OfferStatusActive, enums.OfferStatusPaused}).
		Order("ends_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []models.Offer
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// MarkExpiredWithTx moves an offer to expired.
func (r *Repository) MarkExpiredWithTx(tx *gorm.DB, id uuid.UUID, at time.Time) (bool, error) {
	if tx == nil {
		return false, gorm.ErrInvalidTransaction
	}
	res := tx.Model(&models.Offer{}).
		Where("id = ? AND status <> ?", id, enums.OfferStatusExpired).
		Updates(map[string]any{
			"status":     enums.OfferStatusExpired,
			"updated_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// CountRedemptionsWithTx counts redemptions of an offer in [start, end).
func (r *Repository) CountRedemptionsWithTx(tx *gorm.DB, offerID uuid.UUID, start, end time.Time) (int64, error) {
	if tx == nil {
		return 0, gorm.ErrInvalidTransaction
	}
	var total int64
	err := tx.Model(&models.Redemption{}).
		Where("offer_id = ? AND redeemed_at >= ? AND redeemed_at < ?", offerID, start, end).
		Count(&total).Error
	return total, err
}

// CountRedemptions counts redemptions of an offer in [start, end).
func (r *Repository) CountRedemptions(ctx context.Context, offerID uuid.UUID, start, end time.Time) (int64, error) {
	return r.CountRedemptionsWithTx(r.db.WithContext(ctx), offerID, start, end)
}

type offerCount struct {
	OfferID uuid.UUID
	Total   int64
}

// CountRedemptionsByOffer counts redemptions in [start, end) for many offers
// in one grouped query. Offers without redemptions are absent from the map.
func (r *Repository) CountRedemptionsByOffer(ctx context.Context, offerIDs []uuid.UUID, start, end time.Time) (map[uuid.UUID]int64, error) {
	out := make(map[uuid.UUID]int64, len(offerIDs))
	if len(offerIDs) == 0 {
		return out, nil
	}
	var rows []offerCount
	if err := r.db.WithContext(ctx).Model(&models.Redemption{}).
		Select("offer_id, COUNT(*) AS total").
		Where("offer_id IN ? AND redeemed_at >= ? AND redeemed_at < ?", offerIDs, start, end).
		Group("offer_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.OfferID] = row.Total
	}
	return out, nil
}
