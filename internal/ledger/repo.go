package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/boostlocal/boost-api/pkg/db/models"
)

// Repository reads the billing ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Totals(ctx context.Context, merchantID uuid.UUID, window Range) (Totals, error)
	RedemptionTotals(ctx context.Context, merchantID uuid.UUID, window Range) (Totals, error)
	ListEntries(ctx context.Context, merchantID uuid.UUID, window Range, limit int) ([]models.LedgerEntry, error)
	FirstEntryAt(ctx context.Context, merchantID uuid.UUID) (*time.Time, error)
	ExportRows(ctx context.Context, merchantID uuid.UUID) ([]ExportRow, error)
}

// Totals is an aggregate over a window.
type Totals struct {
	Total decimal.Decimal
	Count int64
}

// ExportRow is one ledger line joined with its redemption.
type ExportRow struct {
	CreatedAt    time.Time
	OfferID      uuid.UUID
	RedemptionID uuid.UUID
	Amount       decimal.Decimal
	Location     *string
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

type totalsRow struct {
	Total decimal.NullDecimal
	Count int64
}

func (r *repository) Totals(ctx context.Context, merchantID uuid.UUID, window Range) (Totals, error) {
	return r.sum(ctx, &models.LedgerEntry{}, "amount", "created_at", merchantID, window)
}

func (r *repository) RedemptionTotals(ctx context.Context, merchantID uuid.UUID, window Range) (Totals, error) {
	return r.sum(ctx, &models.Redemption{}, "value", "redeemed_at", merchantID, window)
}

func (r *repository) sum(ctx context.Context, model any, amountCol, timeCol string, merchantID uuid.UUID, window Range) (Totals, error) {
	query := r.db.WithContext(ctx).Model(model).
		Select("SUM("+amountCol+") AS total, COUNT(*) AS count").
		Where("merchant_id = ?", merchantID)
	query = window.apply(query, timeCol)
	var row totalsRow
	if err := query.Scan(&row).Error; err != nil {
		return Totals{}, err
	}
	total := decimal.Zero
	if row.Total.Valid {
		total = row.Total.Decimal
	}
	return Totals{Total: total, Count: row.Count}, nil
}

func (r *repository) ListEntries(ctx context.Context, merchantID uuid.UUID, window Range, limit int) ([]models.LedgerEntry, error) {
	query := window.apply(r.db.WithContext(ctx).Where("merchant_id = ?", merchantID), "created_at")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []models.LedgerEntry
	if err := query.Order("created_at DESC").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) FirstEntryAt(ctx context.Context, merchantID uuid.UUID) (*time.Time, error) {
	var entry models.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("merchant_id = ?", merchantID).
		Order("created_at ASC").
		Limit(1).
		Find(&entry).Error
	if err != nil {
		return nil, err
	}
	if entry.ID == uuid.Nil {
		return nil, nil
	}
	at := entry.CreatedAt
	return &at, nil
}

func (r *repository) ExportRows(ctx context.Context, merchantID uuid.UUID) ([]ExportRow, error) {
	var rows []ExportRow
	err := r.db.WithContext(ctx).
		Table("ledger_entries AS l").
		Select("l.created_at AS created_at, l.offer_id AS offer_id, l.redemption_id AS redemption_id, l.amount AS amount, r.location AS location").
		Joins("LEFT JOIN redemptions AS r ON r.id = l.redemption_id").
		Where("l.merchant_id = ?", merchantID).
		Order("l.created_at DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
