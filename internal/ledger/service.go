package ledger

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/boostlocal/boost-api/internal/access"
	"github.com/boostlocal/boost-api/pkg/db/models"
	pkgerrors "github.com/boostlocal/boost-api/pkg/errors"
	"github.com/boostlocal/boost-api/pkg/logger"
)

const (
	maxSummaryEntries = 1000
	exportTimeLayout  = "2006-01-02 15:04:05"
	deletedOfferName  = "Deleted Offer"
)

var exportHeader = []string{"date", "offer_name", "redemption_id", "amount", "location"}

// Range bounds a ledger query to [From, To). Nil ends are open.
type Range struct {
	From *time.Time
	To   *time.Time
}

func (r Range) apply(query *gorm.DB, column string) *gorm.DB {
	if r.From != nil {
		query = query.Where(column+" >= ?", r.From.UTC())
	}
	if r.To != nil {
		query = query.Where(column+" < ?", r.To.UTC())
	}
	return query
}

type offerNames interface {
	FindNamesUnscoped(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error)
}

// Service aggregates what merchants owe.
type Service interface {
	Summary(ctx context.Context, actor access.Actor, merchantID *uuid.UUID, window Range) (*SummaryDTO, error)
	Export(ctx context.Context, actor access.Actor, merchantID uuid.UUID, w io.Writer) error
	Reconcile(ctx context.Context, merchantID uuid.UUID, window Range) (*Reconciliation, error)
}

type service struct {
	repo   Repository
	offers offerNames
	logg   *logger.Logger
	now    func() time.Time
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository, offers offerNames, logg *logger.Logger, now func() time.Time) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if offers == nil {
		return nil, fmt.Errorf("offer names lookup required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if now == nil {
		now = time.Now
	}
	return &service{repo: repo, offers: offers, logg: logg, now: now}, nil
}

func (s *service) Summary(ctx context.Context, actor access.Actor, merchantID *uuid.UUID, window Range) (*SummaryDTO, error) {
	if err := window.validate(); err != nil {
		return nil, err
	}
	scope, err := access.ScopeMerchant(actor, merchantID)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if scope == nil {
		return emptySummary(window, now), nil
	}

	totals, err := s.repo.Totals(ctx, *scope, window)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum ledger")
	}
	entries, err := s.repo.ListEntries(ctx, *scope, window, maxSummaryEntries)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list ledger entries")
	}

	start := now
	if window.From != nil {
		start = window.From.UTC()
	} else {
		first, err := s.repo.FirstEntryAt(ctx, *scope)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load first ledger entry")
		}
		if first != nil {
			start = first.UTC()
		}
	}
	end := now
	if window.To != nil {
		end = window.To.UTC()
	}

	out := &SummaryDTO{
		MerchantID:      scope.String(),
		TotalOwed:       totals.Total.Round(2).InexactFloat64(),
		RedemptionCount: totals.Count,
		PeriodStart:     start,
		PeriodEnd:       end,
		Entries:         make([]EntryDTO, 0, len(entries)),
	}
	for i := range entries {
		out.Entries = append(out.Entries, entryFromModel(&entries[i]))
	}
	return out, nil
}

// Export streams the merchant's ledger as CSV.
func (s *service) Export(ctx context.Context, actor access.Actor, merchantID uuid.UUID, w io.Writer) error {
	if _, err := access.ScopeMerchant(actor, &merchantID); err != nil {
		return err
	}
	rows, err := s.repo.ExportRows(ctx, merchantID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load ledger export")
	}

	ids := make([]uuid.UUID, 0, len(rows))
	seen := make(map[uuid.UUID]struct{}, len(rows))
	for _, row := range rows {
		if _, ok := seen[row.OfferID]; ok {
			continue
		}
		seen[row.OfferID] = struct{}{}
		ids = append(ids, row.OfferID)
	}
	names, err := s.offers.FindNamesUnscoped(ctx, ids)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load offer names")
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(exportHeader); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "write csv header")
	}
	for _, row := range rows {
		name, ok := names[row.OfferID]
		if !ok {
			name = deletedOfferName
		}
		location := ""
		if row.Location != nil {
			location = *row.Location
		}
		record := []string{
			row.CreatedAt.UTC().Format(exportTimeLayout),
			name,
			row.RedemptionID.String(),
			row.Amount.StringFixed(2),
			location,
		}
		if err := writer.Write(record); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "write csv row")
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "flush csv")
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"merchant_id": merchantID.String(),
		"rows":        len(rows),
	}), "ledger exported")
	return nil
}

// Reconcile compares ledger totals with the redemption log for a window.
func (s *service) Reconcile(ctx context.Context, merchantID uuid.UUID, window Range) (*Reconciliation, error) {
	if err := window.validate(); err != nil {
		return nil, err
	}
	ledgerTotals, err := s.repo.Totals(ctx, merchantID, window)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum ledger")
	}
	redemptionTotals, err := s.repo.RedemptionTotals(ctx, merchantID, window)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum redemptions")
	}
	out := &Reconciliation{
		MerchantID:      merchantID,
		LedgerTotal:     ledgerTotals.Total,
		LedgerCount:     ledgerTotals.Count,
		RedemptionTotal: redemptionTotals.Total,
		RedemptionCount: redemptionTotals.Count,
	}
	out.Balanced = out.LedgerTotal.Equal(out.RedemptionTotal) && out.LedgerCount == out.RedemptionCount
	if !out.Balanced {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"merchant_id":      merchantID.String(),
			"ledger_total":     out.LedgerTotal.String(),
			"redemption_total": out.RedemptionTotal.String(),
		}), "ledger out of balance")
	}
	return out, nil
}

func (r Range) validate() error {
	if r.From != nil && r.To != nil && !r.From.Before(*r.To) {
		return pkgerrors.New(pkgerrors.CodeValidation, "from must be before to")
	}
	return nil
}

func emptySummary(window Range, now time.Time) *SummaryDTO {
	start, end := now, now
	if window.From != nil {
		start = window.From.UTC()
	}
	if window.To != nil {
		end = window.To.UTC()
	}
	return &SummaryDTO{
		MerchantID:  "",
		PeriodStart: start,
		PeriodEnd:   end,
		Entries:     []EntryDTO{},
	}
}

func entryFromModel(m *models.LedgerEntry) EntryDTO {
	return EntryDTO{
		ID:           m.ID,
		MerchantID:   m.MerchantID,
		RedemptionID: m.RedemptionID,
		OfferID:      m.OfferID,
		Amount:       m.Amount.InexactFloat64(),
		CreatedAt:    m.CreatedAt,
	}
}
