// Package relay drains the transactional outbox into Pub/Sub.
package relay

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/boostlocal/boost-api/pkg/config"
	"github.com/boostlocal/boost-api/pkg/db/models"
	"github.com/boostlocal/boost-api/pkg/logger"
	"github.com/boostlocal/boost-api/pkg/metrics"
	"github.com/boostlocal/boost-api/pkg/outbox/registry"
)

const (
	defaultBatchSize   = 50
	defaultPoll        = 500 * time.Millisecond
	defaultMaxAttempts = 10
	publishTimeout     = 15 * time.Second
	maxIdleBackoff     = 10 * time.Second
	jitterWindow       = 250 * time.Millisecond
)

type outcome string

const (
	outcomePublished    outcome = "published"
	outcomeRetry        outcome = "retry"
	outcomeNonRetryable outcome = "non_retryable"
	outcomeMaxAttempts  outcome = "max_attempts"
)

type txRunner interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type topicSource interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type outboxStore interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type resolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

// Sender publishes one message and blocks until the server acks it.
type Sender func(ctx context.Context, topic string, msg *gcppubsub.Message) (string, error)

// Params wires a Relay.
type Params struct {
	Config   config.OutboxConfig
	Logger   *logger.Logger
	DB       txRunner
	PubSub   topicSource
	Store    outboxStore
	Registry resolver
	Metrics  *metrics.OutboxMetrics
	Send     Sender
}

// Relay moves committed outbox rows to their topics.
type Relay struct {
	logg        *logger.Logger
	db          txRunner
	pubsub      topicSource
	store       outboxStore
	registry    resolver
	metrics     *metrics.OutboxMetrics
	send        Sender
	batchSize   int
	maxAttempts int
	poll        time.Duration
}

// Report summarises one drained batch.
type Report struct {
	Fetched   int
	Published int
	Retried   int
	Parked    int
}

// New validates params and applies outbox defaults.
func New(params Params) (*Relay, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.PubSub == nil:
		return nil, errors.New("pubsub client is required")
	case params.Store == nil:
		return nil, errors.New("outbox store is required")
	case params.Registry == nil:
		return nil, errors.New("event registry is required")
	}
	r := &Relay{
		logg:        params.Logger,
		db:          params.DB,
		pubsub:      params.PubSub,
		store:       params.Store,
		registry:    params.Registry,
		metrics:     params.Metrics,
		send:        params.Send,
		batchSize:   params.Config.BatchSize,
		maxAttempts: params.Config.MaxAttempts,
		poll:        time.Duration(params.Config.PollIntervalMS) * time.Millisecond,
	}
	if r.batchSize <= 0 {
		r.batchSize = defaultBatchSize
	}
	if r.maxAttempts <= 0 {
		r.maxAttempts = defaultMaxAttempts
	}
	if r.poll <= 0 {
		r.poll = defaultPoll
	}
	if r.send == nil {
		r.send = r.sendViaClient
	}
	return r, nil
}

// Ready pings the database and Pub/Sub.
func (r *Relay) Ready(ctx context.Context) error {
	if err := r.db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	if err := r.pubsub.Ping(ctx); err != nil {
		return fmt.Errorf("pubsub ping failed: %w", err)
	}
	return nil
}

// Run drains batches until ctx is cancelled. Full batches are followed
// immediately by the next one; empty batches wait for the poll interval and
// failed ones back off exponentially.
func (r *Relay) Run(ctx context.Context) error {
	if err := r.Ready(ctx); err != nil {
		r.logg.Error(ctx, "outbox relay not ready", err)
		return err
	}
	wait := r.poll
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		report, err := r.Drain(ctx)
		switch {
		case err != nil:
			r.logg.Error(ctx, "outbox relay batch failed", err)
			wait = min(wait*2, maxIdleBackoff)
		case report.Fetched > 0:
			wait = r.poll
			continue
		default:
			wait = r.poll
		}
		if err := sleep(ctx, jittered(wait)); err != nil {
			return err
		}
	}
}

// Drain processes one batch inside a single transaction. Publish failures
// are recorded on the row and never abort the batch.
func (r *Relay) Drain(ctx context.Context) (Report, error) {
	var report Report
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		report = Report{}
		rows, err := r.store.FetchUnpublishedForPublish(tx, r.batchSize, r.maxAttempts)
		if err != nil {
			return fmt.Errorf("fetch outbox batch: %w", err)
		}
		report.Fetched = len(rows)
		for _, row := range rows {
			result, topic, cause := r.deliver(ctx, row)
			if err := r.record(ctx, tx, row, result, topic, cause); err != nil {
				return err
			}
			switch result {
			case outcomePublished:
				report.Published++
			case outcomeRetry:
				report.Retried++
			default:
				report.Parked++
			}
		}
		return nil
	})
	if err == nil && report.Fetched > 0 {
		r.logg.Info(r.logg.WithFields(ctx, map[string]any{
			"fetched":   report.Fetched,
			"published": report.Published,
			"retried":   report.Retried,
			"parked":    report.Parked,
		}), "outbox batch drained")
	}
	return report, err
}

func (r *Relay) deliver(ctx context.Context, row models.OutboxEvent) (outcome, string, error) {
	resolved, err := r.registry.Resolve(row)
	if err != nil {
		return outcomeNonRetryable, "", err
	}
	topic := resolved.Descriptor.Topic
	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if _, err := r.send(publishCtx, topic, message(row, resolved)); err != nil {
		var nonRetry registry.NonRetryableError
		if errors.As(err, &nonRetry) {
			return outcomeNonRetryable, topic, err
		}
		if row.AttemptCount+1 >= r.maxAttempts {
			return outcomeMaxAttempts, topic, fmt.Errorf("max publish attempts reached: %w", err)
		}
		return outcomeRetry, topic, err
	}
	return outcomePublished, topic, nil
}

// record persists the outcome. Parked rows are stamped with the attempt cap
// so later batches skip them and the retention sweep reaps them.
func (r *Relay) record(ctx context.Context, tx *gorm.DB, row models.OutboxEvent, result outcome, topic string, cause error) error {
	r.metrics.ObservePublish(topic, string(result))
	fields := map[string]any{
		"outbox_id":      row.ID.String(),
		"event_type":     row.EventType,
		"aggregate_type": row.AggregateType,
		"aggregate_id":   row.AggregateID.String(),
		"attempt_count":  row.AttemptCount,
		"outcome":        string(result),
	}
	if topic != "" {
		fields["topic"] = topic
	}
	if cause != nil {
		fields["error"] = cause.Error()
	}
	logCtx := r.logg.WithFields(ctx, fields)

	switch result {
	case outcomePublished:
		r.logg.Debug(logCtx, "outbox event published")
		if err := r.store.MarkPublishedTx(tx, row.ID); err != nil {
			return fmt.Errorf("mark published %s: %w", row.ID, err)
		}
	case outcomeRetry:
		r.logg.Warn(logCtx, "outbox publish failed, will retry")
		if err := r.store.MarkFailedTx(tx, row.ID, cause); err != nil {
			return fmt.Errorf("mark failure %s: %w", row.ID, err)
		}
	default:
		r.logg.Warn(logCtx, "outbox event parked")
		if err := r.store.MarkTerminalTx(tx, row.ID, cause, r.maxAttempts); err != nil {
			return fmt.Errorf("mark terminal %s: %w", row.ID, err)
		}
	}
	return nil
}

func message(row models.OutboxEvent, resolved *registry.ResolvedEvent) *gcppubsub.Message {
	attrs := map[string]string{
		"event_id":       resolved.Envelope.EventID,
		"event_type":     string(row.EventType),
		"aggregate_type": string(row.AggregateType),
		"aggregate_id":   row.AggregateID.String(),
		"schema_version": fmt.Sprintf("%d", resolved.Envelope.Version),
		"occurred_at":    resolved.Envelope.OccurredAt.UTC().Format(time.RFC3339Nano),
	}
	if actor := resolved.Envelope.Actor; actor != nil && actor.MerchantID != nil {
		attrs["merchant_id"] = actor.MerchantID.String()
	}
	return &gcppubsub.Message{Data: row.Payload, Attributes: attrs}
}

func (r *Relay) sendViaClient(ctx context.Context, topic string, msg *gcppubsub.Message) (string, error) {
	pub := r.pubsub.Publisher(topic)
	if pub == nil {
		return "", registry.NewNonRetryableError(fmt.Errorf("publisher not configured for topic %s", topic))
	}
	return pub.Publish(ctx, msg).Get(ctx)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func jittered(d time.Duration) time.Duration {
	return d + rand.N(jitterWindow)
}
