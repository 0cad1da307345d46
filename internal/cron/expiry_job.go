package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/boostlocal/boost-api/pkg/logger"
)

type offerExpirer interface {
	ExpireEnded(ctx context.Context, now time.Time) (int, error)
}

type tokenExpirer interface {
	ExpireDue(ctx context.Context, now time.Time) (int64, error)
}

// ExpiryJobParams configures the offer and token expiry sweep.
type ExpiryJobParams struct {
	Logger *logger.Logger
	Offers offerExpirer
	Tokens tokenExpirer
	Now    func() time.Time
}

// NewExpiryJob builds the sweep that ends offers past ends_at and then
// expires tokens past expires_at.
func NewExpiryJob(params ExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Offers == nil {
		return nil, fmt.Errorf("offer expirer required")
	}
	if params.Tokens == nil {
		return nil, fmt.Errorf("token expirer required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &expiryJob{logg: params.Logger, offers: params.Offers, tokens: params.Tokens, now: now}, nil
}

type expiryJob struct {
	logg   *logger.Logger
	offers offerExpirer
	tokens tokenExpirer
	now    func() time.Time
}

func (j *expiryJob) Name() string { return "offer-token-expiry" }

func (j *expiryJob) Run(ctx context.Context) (Tally, error) {
	now := j.now().UTC()
	var errs error

	offers, err := j.offers.ExpireEnded(ctx, now)
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("expire offers: %w", err))
	}
	tokens, err := j.tokens.ExpireDue(ctx, now)
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("expire tokens: %w", err))
	}

	j.logg.Debug(j.logg.WithField(ctx, "swept_at", now), "expiry sweep complete")
	return Tally{"offers_expired": int64(offers), "tokens_expired": tokens}, errs
}
