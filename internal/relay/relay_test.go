package relay

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/boostlocal/boost-api/pkg/config"
	"github.com/boostlocal/boost-api/pkg/db/models"
	"github.com/boostlocal/boost-api/pkg/enums"
	"github.com/boostlocal/boost-api/pkg/logger"
	"github.com/boostlocal/boost-api/pkg/outbox"
	"github.com/boostlocal/boost-api/pkg/outbox/payloads"
	"github.com/boostlocal/boost-api/pkg/outbox/registry"
)

func TestDrainContinuesAfterTransientFailure(t *testing.T) {
	store := &fakeStore{rows: []models.OutboxEvent{redemptionRow(0), redemptionRow(0)}}
	sender := &scriptedSender{errs: []error{errors.New("unavailable"), nil}}
	relay := newTestRelay(t, store, sender, &fakeResolver{}, config.OutboxConfig{BatchSize: 2, MaxAttempts: 5})

	report, err := relay.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{Fetched: 2, Published: 1, Retried: 1}, report)
	require.Len(t, store.failed, 1)
	require.Len(t, store.published, 1)
	assert.Equal(t, store.rows[0].ID, store.failed[0])
	assert.Equal(t, store.rows[1].ID, store.published[0])
}

func TestDrainEmptyBatch(t *testing.T) {
	relay := newTestRelay(t, &fakeStore{}, &scriptedSender{}, &fakeResolver{}, config.OutboxConfig{})
	report, err := relay.Drain(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Fetched)
}

func TestDrainParksUnresolvableRows(t *testing.T) {
	store := &fakeStore{rows: []models.OutboxEvent{redemptionRow(0)}}
	res := &fakeResolver{err: registry.NewNonRetryableError(errors.New("bad payload"))}
	relay := newTestRelay(t, store, &scriptedSender{}, res, config.OutboxConfig{MaxAttempts: 7})

	report, err := relay.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Parked)
	require.Len(t, store.terminal, 1)
	assert.Equal(t, 7, store.terminal[0].attempts)
}

func TestDrainParksOnLastAttempt(t *testing.T) {
	store := &fakeStore{rows: []models.OutboxEvent{redemptionRow(1)}}
	sender := &scriptedSender{errs: []error{errors.New("deadline exceeded")}}
	relay := newTestRelay(t, store, sender, &fakeResolver{}, config.OutboxConfig{MaxAttempts: 2})

	report, err := relay.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Parked)
	assert.Empty(t, store.failed)
}

func TestDrainParksMissingPublisher(t *testing.T) {
	store := &fakeStore{rows: []models.OutboxEvent{redemptionRow(0)}}
	relay, err := New(Params{
		Logger:   testLogger(),
		DB:       fakeDB{},
		PubSub:   fakePubSub{},
		Store:    store,
		Registry: &fakeResolver{},
	})
	require.NoError(t, err)

	report, err := relay.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Parked)
}

func TestMessageCarriesMerchantAttribute(t *testing.T) {
	merchantID := uuid.New()
	row := redemptionRow(0)
	resolved := resolvedFor(row)
	resolved.Envelope.Actor = &outbox.ActorRef{UID: "staff-1", MerchantID: &merchantID}

	msg := message(row, resolved)
	assert.Equal(t, merchantID.String(), msg.Attributes["merchant_id"])
	assert.Equal(t, string(enums.EventRedemptionRecorded), msg.Attributes["event_type"])
	assert.Equal(t, "1", msg.Attributes["schema_version"])
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(Params{Logger: testLogger()})
	assert.Error(t, err)
}

func TestRunStopsOnCancel(t *testing.T) {
	relay := newTestRelay(t, &fakeStore{}, &scriptedSender{}, &fakeResolver{}, config.OutboxConfig{PollIntervalMS: 10})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, relay.Run(ctx), context.DeadlineExceeded)
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "relay-test", Output: io.Discard})
}

func newTestRelay(t *testing.T, store outboxStore, sender *scriptedSender, res resolver, cfg config.OutboxConfig) *Relay {
	t.Helper()
	relay, err := New(Params{
		Config:   cfg,
		Logger:   testLogger(),
		DB:       fakeDB{},
		PubSub:   fakePubSub{},
		Store:    store,
		Registry: res,
		Send:     sender.send,
	})
	require.NoError(t, err)
	return relay
}

func redemptionRow(attempts int) models.OutboxEvent {
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventRedemptionRecorded,
		AggregateType: enums.AggregateRedemption,
		AggregateID:   uuid.New(),
		Payload:       []byte(`{"version":1,"data":{}}`),
		AttemptCount:  attempts,
	}
}

func resolvedFor(row models.OutboxEvent) *registry.ResolvedEvent {
	return &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{
			EventType:     row.EventType,
			AggregateType: row.AggregateType,
			Topic:         "boost-redemption-events",
		},
		Envelope: outbox.PayloadEnvelope{Version: 1, EventID: row.ID.String(), OccurredAt: time.Now()},
		Payload:  &payloads.RedemptionRecordedEvent{},
	}
}

type terminalMark struct {
	id       uuid.UUID
	attempts int
}

type fakeStore struct {
	rows      []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
	terminal  []terminalMark
}

func (f *fakeStore) FetchUnpublishedForPublish(*gorm.DB, int, int) ([]models.OutboxEvent, error) {
	return f.rows, nil
}

func (f *fakeStore) MarkPublishedTx(_ *gorm.DB, id uuid.UUID) error {
	f.published = append(f.published, id)
	return nil
}

func (f *fakeStore) MarkFailedTx(_ *gorm.DB, id uuid.UUID, _ error) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeStore) MarkTerminalTx(_ *gorm.DB, id uuid.UUID, _ error, attempts int) error {
	f.terminal = append(f.terminal, terminalMark{id: id, attempts: attempts})
	return nil
}

type fakeDB struct{}

func (fakeDB) Ping(context.Context) error { return nil }

func (fakeDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error { return fn(nil) }

type fakePubSub struct{}

func (fakePubSub) Ping(context.Context) error { return nil }

func (fakePubSub) Publisher(string) *gcppubsub.Publisher { return nil }

type scriptedSender struct {
	errs []error
}

func (s *scriptedSender) send(context.Context, string, *gcppubsub.Message) (string, error) {
	if len(s.errs) == 0 {
		return "server-id", nil
	}
	err := s.errs[0]
	s.errs = s.errs[1:]
	return "", err
}

type fakeResolver struct {
	err error
}

func (f *fakeResolver) Resolve(row models.OutboxEvent) (*registry.ResolvedEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	return resolvedFor(row), nil
}
