package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/boostlocal/boost-api/internal/ledger"
	"github.com/boostlocal/boost-api/internal/merchants"
	"github.com/boostlocal/boost-api/pkg/db/models"
	"github.com/boostlocal/boost-api/pkg/logger"
)

const reconcilePageSize = 200

type merchantLister interface {
	List(ctx context.Context, filter merchants.ListFilter) ([]models.Merchant, error)
}

type ledgerReconciler interface {
	Reconcile(ctx context.Context, merchantID uuid.UUID, window ledger.Range) (*ledger.Reconciliation, error)
}

// LedgerReconcileJobParams configures the daily ledger check.
type LedgerReconcileJobParams struct {
	Logger    *logger.Logger
	Merchants merchantLister
	Ledger    ledgerReconciler
	Now       func() time.Time
}

// NewLedgerReconcileJob builds the job comparing each merchant's ledger with
// its redemption log for the previous UTC day.
func NewLedgerReconcileJob(params LedgerReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Merchants == nil {
		return nil, fmt.Errorf("merchant lister required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger reconciler required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &ledgerReconcileJob{
		logg:      params.Logger,
		merchants: params.Merchants,
		ledger:    params.Ledger,
		now:       now,
	}, nil
}

type ledgerReconcileJob struct {
	logg      *logger.Logger
	merchants merchantLister
	ledger    ledgerReconciler
	now       func() time.Time
}

func (j *ledgerReconcileJob) Name() string { return "ledger-reconcile" }

func (j *ledgerReconcileJob) Run(ctx context.Context) (Tally, error) {
	window := previousDay(j.now())
	var (
		errs       error
		checked    int
		unbalanced int
	)
	for offset := 0; ; offset += reconcilePageSize {
		page, err := j.merchants.List(ctx, merchants.ListFilter{Limit: reconcilePageSize, Offset: offset})
		if err != nil {
			return Tally{"ledgers_checked": int64(checked), "ledgers_unbalanced": int64(unbalanced)},
				multierr.Append(errs, fmt.Errorf("list merchants: %w", err))
		}
		for _, m := range page {
			report, err := j.ledger.Reconcile(ctx, m.ID, window)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("reconcile %s: %w", m.ID, err))
				continue
			}
			checked++
			if !report.Balanced {
				unbalanced++
			}
		}
		if len(page) < reconcilePageSize {
			break
		}
	}

	j.logg.Debug(j.logg.WithFields(ctx, map[string]any{
		"window_start": *window.From,
		"window_end":   *window.To,
	}), "ledger reconciliation window checked")
	if unbalanced > 0 {
		errs = multierr.Append(errs, fmt.Errorf("%d merchant ledgers out of balance", unbalanced))
	}
	return Tally{"ledgers_checked": int64(checked), "ledgers_unbalanced": int64(unbalanced)}, errs
}

func previousDay(now time.Time) ledger.Range {
	now = now.UTC()
	end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	start := end.AddDate(0, 0, -1)
	return ledger.Range{From: &start, To: &end}
}
