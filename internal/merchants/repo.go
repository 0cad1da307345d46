package merchants

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/boostlocal/boost-api/pkg/db/models"
	"github.com/boostlocal/boost-api/pkg/enums"
)

// Repository handles merchant persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a GORM DB to merchant operations.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// ListFilter narrows List. A nil MerchantID returns every merchant.
type ListFilter struct {
	MerchantID     *uuid.UUID
	IncludeDeleted bool
	Limit          int
	Offset         int
}

// Create persists a new merchant row.
func (r *Repository) Create(ctx context.Context, merchant *models.Merchant) error {
	if merchant == nil {
		return fmt.Errorf("merchant is required")
	}
	return r.db.WithContext(ctx).Create(merchant).Error
}

// FindByID loads a merchant regardless of status.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Merchant, error) {
	return r.FindByIDWithTx(r.db.WithContext(ctx), id)
}

// FindByIDWithTx loads a merchant using the provided transaction.
func (r *Repository) FindByIDWithTx(tx *gorm.DB, id uuid.UUID) (*models.Merchant, error) {
	if tx == nil {
		return nil, gorm.ErrInvalidTransaction
	}
	var merchant models.Merchant
	if err := tx.First(&merchant, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &merchant, nil
}

// FindByIDs returns the merchants keyed by id. Missing ids are skipped.
func (r *Repository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Merchant, error) {
	out := make(map[uuid.UUID]models.Merchant, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.Merchant
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

// List returns merchants ordered by name.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]models.Merchant, error) {
	query := r.db.WithContext(ctx).Model(&models.Merchant{})
	if filter.MerchantID != nil {
		query = query.Where("id = ?", *filter.MerchantID)
	}
	if !filter.IncludeDeleted {
		query = query.Where("status = ?", enums.MerchantStatusActive)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}
	var rows []models.Merchant
	if err := query.Order("name ASC").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Update saves the provided merchant.
func (r *Repository) Update(ctx context.Context, merchant *models.Merchant) error {
	return r.UpdateWithTx(r.db.WithContext(ctx), merchant)
}

// UpdateWithTx persists the merchant using the provided transaction.
func (r *Repository) UpdateWithTx(tx *gorm.DB, merchant *models.Merchant) error {
	if tx == nil {
		return gorm.ErrInvalidTransaction
	}
	if merchant == nil {
		return fmt.Errorf("merchant is required")
	}
	return tx.Save(merchant).Error
}

// MarkDeletedWithTx flips an active merchant to deleted. It reports false when
// the merchant was already deleted by a concurrent request.
func (r *Repository) MarkDeletedWithTx(tx *gorm.DB, id uuid.UUID, by string, at time.Time) (bool, error) {
	if tx == nil {
		return false, gorm.ErrInvalidTransaction
	}
	res := tx.Model(&models.Merchant{}).
		Where("id = ? AND status = ?", id, enums.MerchantStatusActive).
		Updates(map[string]any{
			"status":     enums.MerchantStatusDeleted,
			"deleted_at": at,
			"deleted_by": by,
			"updated_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// MarkRestoredWithTx flips a deleted merchant back to active.
func (r *Repository) MarkRestoredWithTx(tx *gorm.DB, id uuid.UUID, at time.Time) (bool, error) {
	if tx == nil {
		return false, gorm.ErrInvalidTransaction
	}
	res := tx.Model(&models.Merchant{}).
		Where("id = ? AND status = ?", id, enums.MerchantStatusDeleted).
		Updates(map[string]any{
			"status":     enums.MerchantStatusActive,
			"deleted_at": nil,
			"deleted_by": nil,
			"updated_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
