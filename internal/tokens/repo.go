package tokens

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/boostlocal/boost-api/pkg/db/models"
	"github.com/boostlocal/boost-api/pkg/enums"
)

// Repository handles token persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a GORM DB to token operations.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindByID loads a token by id.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Token, error) {
	return r.FindByIDWithTx(r.db.WithContext(ctx), id)
}

// FindByIDWithTx loads a token using the provided transaction.
func (r *Repository) FindByIDWithTx(tx *gorm.DB, id uuid.UUID) (*models.Token, error) {
	if tx == nil {
		return nil, gorm.ErrInvalidTransaction
	}
	var token models.Token
	if err := tx.First(&token, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &token, nil
}

// FindByShortCode loads the token carrying code, preferring the active one
// when retired tokens reused it.
func (r *Repository) FindByShortCode(ctx context.Context, code string) (*models.Token, error) {
	var token models.Token
	if err := r.db.WithContext(ctx).
		Where("short_code = ?", code).
		Order(fmt.Sprintf("CASE WHEN status = '%s' THEN 0 ELSE 1 END", enums.TokenStatusActive)).
		Order("created_at DESC").
		First(&token).Error; err != nil {
		return nil, err
	}
	return &token, nil
}

// Resolve finds the token a raw reference points at.
func (r *Repository) Resolve(ctx context.Context, raw string) (*models.Token, error) {
	ref, ok := ParseReference(raw)
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	if ref.ID != nil {
		return r.FindByID(ctx, *ref.ID)
	}
	return r.FindByShortCode(ctx, ref.Code)
}

// FindUniversalForOfferWithTx returns the newest universal token of the offer
// in any status.
func (r *Repository) FindUniversalForOfferWithTx(tx *gorm.DB, offerID uuid.UUID) (*models.Token, error) {
	if tx == nil {
		return nil, gorm.ErrInvalidTransaction
	}
	var token models.Token
	if err := tx.
		Where("offer_id = ? AND is_universal = ?", offerID, true).
		Order("created_at DESC").
		First(&token).Error; err != nil {
		return nil, err
	}
	return &token, nil
}

// ShortCodeTakenWithTx reports whether an active token other than exclude
// already carries code.
func (r *Repository) ShortCodeTakenWithTx(tx *gorm.DB, code string, exclude *uuid.UUID) (bool, error) {
	if tx == nil {
		return false, gorm.ErrInvalidTransaction
	}
	query := tx.Model(&models.Token{}).Where("short_code = ? AND status = ?", code, enums.TokenStatusActive)
	if exclude != nil {
		query = query.Where("id <> ?", *exclude)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return false, err
	}
	return total > 0, nil
}

// CreateWithTx inserts a token.
func (r *Repository) CreateWithTx(tx *gorm.DB, token *models.Token) error {
	if tx == nil {
		return gorm.ErrInvalidTransaction
	}
	if token == nil {
		return fmt.Errorf("token is required")
	}
	return tx.Create(token).Error
}

// UpdateWithTx saves a token.
func (r *Repository) UpdateWithTx(tx *gorm.DB, token *models.Token) error {
	if tx == nil {
		return gorm.ErrInvalidTransaction
	}
	if token == nil {
		return fmt.Errorf("token is required")
	}
	return tx.Save(token).Error
}

// ListByOffer returns the offer's tokens, newest first.
func (r *Repository) ListByOffer(ctx context.Context, offerID uuid.UUID, status *enums.TokenStatus, limit int) ([]models.Token, error) {
	query := r.db.WithContext(ctx).Where("offer_id = ?", offerID)
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []models.Token
	if err := query.Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ExpireDue marks active tokens past expires_at as expired.
func (r *Repository) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Token{}).
		Where("status = ? AND expires_at < ?", enums.TokenStatusActive, now).
		Update("status", enums.TokenStatusExpired)
	return res.RowsAffected, res.Error
}

// ExpireForOffers expires the active tokens of the given offers.
func (r *Repository) ExpireForOffers(ctx context.Context, tx *gorm.DB, offerIDs []uuid.UUID) (int64, error) {
	if tx == nil {
		return 0, gorm.ErrInvalidTransaction
	}
	if len(offerIDs) == 0 {
		return 0, nil
	}
	res := tx.WithContext(ctx).Model(&models.Token{}).
		Where("offer_id IN ? AND status = ?", offerIDs, enums.TokenStatusActive).
		Update("status", enums.TokenStatusExpired)
	return res.RowsAffected, res.Error
}

// ExpireActiveByMerchant expires the active tokens of every offer of a
// merchant, soft-deleted offers included.
func (r *Repository) ExpireActiveByMerchant(ctx context.Context, tx *gorm.DB, merchantID uuid.UUID) (int64, error) {
	if tx == nil {
		return 0, gorm.ErrInvalidTransaction
	}
	res := tx.WithContext(ctx).Model(&models.Token{}).
		Where("status = ?", enums.TokenStatusActive).
		Where("offer_id IN (SELECT id FROM offers WHERE merchant_id = ?)", merchantID).
		Update("status", enums.TokenStatusExpired)
	return res.RowsAffected, res.Error
}
