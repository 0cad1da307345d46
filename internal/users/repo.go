package users

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/boostlocal/boost-api/pkg/db/models"
	"github.com/boostlocal/boost-api/pkg/enums"
)

// Repository exposes user persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a users repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// ListFilter narrows List.
type ListFilter struct {
	MerchantID *uuid.UUID
	Limit      int
	Offset     int
}

// FindByUID loads the user bound to an identity subject.
func (r *Repository) FindByUID(ctx context.Context, uid string) (*models.User, error) {
	return r.FindByUIDWithTx(r.db.WithContext(ctx), uid)
}

// FindByUIDWithTx loads a user using the provided transaction.
func (r *Repository) FindByUIDWithTx(tx *gorm.DB, uid string) (*models.User, error) {
	if tx == nil {
		return nil, gorm.ErrInvalidTransaction
	}
	var user models.User
	if err := tx.First(&user, "uid = ?", uid).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByEmail retrieves the user matching the provided email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.FindByEmailWithTx(r.db.WithContext(ctx), email)
}

// FindByEmailWithTx retrieves a user by email using the provided transaction.
func (r *Repository) FindByEmailWithTx(tx *gorm.DB, email string) (*models.User, error) {
	if tx == nil {
		return nil, gorm.ErrInvalidTransaction
	}
	var user models.User
	if err := tx.Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// SaveWithTx inserts or updates a user.
func (r *Repository) SaveWithTx(tx *gorm.DB, user *models.User) error {
	if tx == nil {
		return gorm.ErrInvalidTransaction
	}
	if user == nil {
		return fmt.Errorf("user is required")
	}
	return tx.Save(user).Error
}

// List returns users that are not deleted, oldest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]models.User, error) {
	query := r.db.WithContext(ctx).Where("status <> ?", enums.UserStatusDeleted)
	if filter.MerchantID != nil {
		query = query.Where("merchant_id = ?", *filter.MerchantID)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}
	var rows []models.User
	if err := query.Order("created_at ASC").Order("uid ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// OrphanByMerchant flips the active users of a merchant to orphaned and
// returns their uids. Role and merchant stay on the row for audit.
func (r *Repository) OrphanByMerchant(ctx context.Context, tx *gorm.DB, merchantID uuid.UUID) ([]string, error) {
	if tx == nil {
		return nil, gorm.ErrInvalidTransaction
	}
	var uids []string
	if err := tx.WithContext(ctx).Model(&models.User{}).
		Where("merchant_id = ? AND status = ?", merchantID, enums.UserStatusActive).
		Pluck("uid", &uids).Error; err != nil {
		return nil, err
	}
	if len(uids) == 0 {
		return uids, nil
	}
	if err := tx.WithContext(ctx).Model(&models.User{}).
		Where("uid IN ?", uids).
		Updates(map[string]any{
			"status":     enums.UserStatusOrphaned,
			"updated_at": time.Now().UTC(),
		}).Error; err != nil {
		return nil, err
	}
	return uids, nil
}

// ClearPrimaryWithTx removes the primary flag from everyone but keep.
func (r *Repository) ClearPrimaryWithTx(tx *gorm.DB, keep string) error {
	if tx == nil {
		return gorm.ErrInvalidTransaction
	}
	return tx.Model(&models.User{}).
		Where("is_primary = ? AND uid <> ?", true, keep).
		Update("is_primary", false).Error
}
