package redemptions

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/boostlocal/boost-api/pkg/db/models"
)

// Repository writes the redemption log and its ledger lines.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a GORM DB to redemption operations.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// ListFilter narrows List.
type ListFilter struct {
	MerchantID *uuid.UUID
	OfferID    *uuid.UUID
	Limit      int
	Offset     int
}

// CreateWithTx inserts a redemption and its ledger entry.
func (r *Repository) CreateWithTx(tx *gorm.DB, redemption *models.Redemption, entry *models.LedgerEntry) error {
	if tx == nil {
		return gorm.ErrInvalidTransaction
	}
	if redemption == nil || entry == nil {
		return fmt.Errorf("redemption and ledger entry are required")
	}
	if err := tx.Create(redemption).Error; err != nil {
		return err
	}
	return tx.Create(entry).Error
}

// List returns redemptions, newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]models.Redemption, error) {
	query := r.db.WithContext(ctx).Model(&models.Redemption{})
	if filter.MerchantID != nil {
		query = query.Where("merchant_id = ?", *filter.MerchantID)
	}
	if filter.OfferID != nil {
		query = query.Where("offer_id = ?", *filter.OfferID)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}
	var rows []models.Redemption
	if err := query.Order("redeemed_at DESC").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
