package outbox_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/boostlocal/boost-api/pkg/db/dbtest"
	"github.com/boostlocal/boost-api/pkg/db/models"
	"github.com/boostlocal/boost-api/pkg/enums"
	"github.com/boostlocal/boost-api/pkg/outbox"
)

func TestEmitStoresEnvelope(t *testing.T) {
	client, conn := dbtest.Client(t)
	svc := outbox.NewService(outbox.NewRepository(conn), nil)
	merchantID := uuid.New()

	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, outbox.DomainEvent{
			EventType:     enums.EventMerchantRestored,
			AggregateType: enums.AggregateMerchant,
			AggregateID:   merchantID,
			Actor:         &outbox.ActorRef{UID: "owner-1", Role: "owner"},
			Data:          map[string]string{"merchant_id": merchantID.String()},
		})
	})
	require.NoError(t, err)

	var rows []models.OutboxEvent
	require.NoError(t, conn.Find(&rows).Error)
	require.Len(t, rows, 1)
	require.Equal(t, merchantID, rows[0].AggregateID)

	var env outbox.PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &env))
	require.Equal(t, 1, env.Version)
	require.NotEmpty(t, env.EventID)
	require.Equal(t, "owner-1", env.Actor.UID)
	require.JSONEq(t, `{"merchant_id":"`+merchantID.String()+`"}`, string(env.Data))
}

func TestEmitRollsBackWithTransaction(t *testing.T) {
	client, conn := dbtest.Client(t)
	svc := outbox.NewService(outbox.NewRepository(conn), nil)

	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		if err := svc.Emit(context.Background(), tx, outbox.DomainEvent{
			EventType:     enums.EventOfferExpired,
			AggregateType: enums.AggregateOffer,
			AggregateID:   uuid.New(),
			Data:          struct{}{},
		}); err != nil {
			return err
		}
		return errors.New("abort")
	})
	require.Error(t, err)

	var count int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestEmitUsesClockAndKeepsOccurredAt(t *testing.T) {
	client, conn := dbtest.Client(t)
	fixed := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	occurred := fixed.Add(-time.Hour)
	svc := outbox.NewService(outbox.NewRepository(conn), nil, outbox.WithClock(func() time.Time { return fixed }))

	require.NoError(t, client.WithTx(context.Background(), func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, outbox.DomainEvent{
			EventType:     enums.EventOfferExpired,
			AggregateType: enums.AggregateOffer,
			AggregateID:   uuid.New(),
			OccurredAt:    occurred,
			Version:       2,
			Data:          struct{}{},
		})
	}))

	var row models.OutboxEvent
	require.NoError(t, conn.First(&row).Error)
	require.True(t, row.CreatedAt.Equal(fixed))
	var env outbox.PayloadEnvelope
	require.NoError(t, json.Unmarshal(row.Payload, &env))
	require.True(t, env.OccurredAt.Equal(occurred))
	require.Equal(t, 2, env.Version)
}

func TestSealRejectsUnencodableData(t *testing.T) {
	_, err := outbox.Seal(outbox.DomainEvent{EventType: enums.EventOfferExpired, Data: make(chan int)}, time.Now())
	require.Error(t, err)
}

func TestEmitRequiresTransactionAndKnownType(t *testing.T) {
	svc := outbox.NewService(outbox.NewRepository(nil), nil)
	require.Error(t, svc.Emit(context.Background(), nil, outbox.DomainEvent{}))

	_, conn := dbtest.Client(t)
	err := svc.Emit(context.Background(), conn, outbox.DomainEvent{
		EventType:     enums.OutboxEventType("bogus"),
		AggregateType: enums.AggregateOffer,
		AggregateID:   uuid.New(),
	})
	require.Error(t, err)

	err = svc.Emit(context.Background(), conn, outbox.DomainEvent{
		EventType:     enums.EventOfferExpired,
		AggregateType: enums.AggregateOffer,
	})
	require.Error(t, err)
}

func TestRepositoryPublishLifecycle(t *testing.T) {
	client, conn := dbtest.Client(t)
	repo := outbox.NewRepository(conn)
	old := time.Now().UTC().Add(-48 * time.Hour)

	published := seedEvent(t, conn, old, 0)
	parked := seedEvent(t, conn, old.Add(time.Second), 0)
	fresh := seedEvent(t, conn, time.Now().UTC(), 0)

	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		rows, err := repo.FetchUnpublishedForPublish(tx, 10, 3)
		if err != nil {
			return err
		}
		require.Len(t, rows, 3)
		require.Equal(t, published, rows[0].ID)

		if err := repo.MarkPublishedTx(tx, published); err != nil {
			return err
		}
		if err := repo.MarkFailedTx(tx, fresh, errors.New("transient")); err != nil {
			return err
		}
		return repo.MarkTerminalTx(tx, parked, errors.New("bad payload"), 3)
	})
	require.NoError(t, err)

	err = client.WithTx(context.Background(), func(tx *gorm.DB) error {
		rows, err := repo.FetchUnpublishedForPublish(tx, 10, 3)
		if err != nil {
			return err
		}
		require.Len(t, rows, 1)
		require.Equal(t, fresh, rows[0].ID)
		require.Equal(t, 1, rows[0].AttemptCount)
		require.NotNil(t, rows[0].LastError)
		return nil
	})
	require.NoError(t, err)

	var deleted int64
	err = client.WithTx(context.Background(), func(tx *gorm.DB) error {
		n, err := repo.DeletePublishedBefore(context.Background(), tx, time.Now().UTC().Add(-24*time.Hour), 3)
		deleted = n
		return err
	})
	require.NoError(t, err)
	require.EqualValues(t, 2, deleted)
}

func seedEvent(t *testing.T, conn *gorm.DB, createdAt time.Time, attempts int) uuid.UUID {
	t.Helper()
	row := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventRedemptionRecorded,
		AggregateType: enums.AggregateRedemption,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{"version":1,"eventId":"x","data":{}}`),
		CreatedAt:     createdAt,
		AttemptCount:  attempts,
	}
	require.NoError(t, conn.Create(&row).Error)
	return row.ID
}
