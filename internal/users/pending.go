package users

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/boostlocal/boost-api/pkg/db/models"
)

// PendingRepository persists invitations that wait for the invitee's first login.
type PendingRepository struct {
	db *gorm.DB
}

// NewPendingRepository binds a GORM DB to invitation operations.
func NewPendingRepository(db *gorm.DB) *PendingRepository {
	return &PendingRepository{db: db}
}

// Create persists a new invitation.
func (r *PendingRepository) Create(ctx context.Context, pending *models.PendingRole) error {
	if pending == nil {
		return fmt.Errorf("pending role is required")
	}
	return r.db.WithContext(ctx).Create(pending).Error
}

// FindOpen returns the newest unclaimed invitation for email that has not
// expired at now.
func (r *PendingRepository) FindOpen(ctx context.Context, email string, now time.Time) (*models.PendingRole, error) {
	var pending models.PendingRole
	if err := r.db.WithContext(ctx).
		Where("email = ? AND claimed = ? AND expires_at > ?", email, false, now).
		Order("created_at DESC").
		First(&pending).Error; err != nil {
		return nil, err
	}
	return &pending, nil
}

// HasUnclaimed reports whether any unclaimed invitation exists for email,
// expired ones included.
func (r *PendingRepository) HasUnclaimed(ctx context.Context, email string) (bool, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.PendingRole{}).
		Where("email = ? AND claimed = ?", email, false).
		Count(&total).Error; err != nil {
		return false, err
	}
	return total > 0, nil
}

// LockOpenWithTx re-reads an invitation under a row lock, returning
// gorm.ErrRecordNotFound once it has been claimed.
func (r *PendingRepository) LockOpenWithTx(tx *gorm.DB, id uuid.UUID) (*models.PendingRole, error) {
	if tx == nil {
		return nil, gorm.ErrInvalidTransaction
	}
	var pending models.PendingRole
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND claimed = ?", id, false).
		First(&pending).Error; err != nil {
		return nil, err
	}
	return &pending, nil
}

// MarkClaimedWithTx records who claimed the invitation.
func (r *PendingRepository) MarkClaimedWithTx(tx *gorm.DB, id uuid.UUID, uid string, at time.Time) error {
	if tx == nil {
		return gorm.ErrInvalidTransaction
	}
	return tx.Model(&models.PendingRole{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"claimed":    true,
			"claimed_at": at,
			"claimed_by": uid,
		}).Error
}

// ListOpen returns unclaimed, unexpired invitations, newest first.
func (r *PendingRepository) ListOpen(ctx context.Context, merchantID *uuid.UUID, now time.Time) ([]models.PendingRole, error) {
	query := r.db.WithContext(ctx).Where("claimed = ? AND expires_at > ?", false, now)
	if merchantID != nil {
		query = query.Where("merchant_id = ?", *merchantID)
	}
	var rows []models.PendingRole
	if err := query.Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// CancelUnclaimedByMerchant closes every open invitation into a merchant.
func (r *PendingRepository) CancelUnclaimedByMerchant(ctx context.Context, tx *gorm.DB, merchantID uuid.UUID) (int64, error) {
	if tx == nil {
		return 0, gorm.ErrInvalidTransaction
	}
	res := tx.WithContext(ctx).Model(&models.PendingRole{}).
		Where("merchant_id = ? AND claimed = ?", merchantID, false).
		Update("claimed", true)
	return res.RowsAffected, res.Error
}

// PurgeExpired deletes unclaimed invitations that expired before cutoff.
func (r *PendingRepository) PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("claimed = ? AND expires_at < ?", false, cutoff).
		Delete(&models.PendingRole{})
	return res.RowsAffected, res.Error
}
