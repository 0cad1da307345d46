package registry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/boostlocal/boost-api/pkg/config"
	"github.com/boostlocal/boost-api/pkg/db/models"
	"github.com/boostlocal/boost-api/pkg/enums"
	"github.com/boostlocal/boost-api/pkg/outbox"
	"github.com/boostlocal/boost-api/pkg/outbox/payloads"
)

func TestEventRegistryResolveRedemption(t *testing.T) {
	reg := newTestEventRegistry(t)

	redemptionID := uuid.New()
	data := mustMarshal(t, payloads.RedemptionRecordedEvent{
		RedemptionID: redemptionID,
		OfferID:      uuid.New(),
		MerchantID:   uuid.New(),
		Method:       enums.RedemptionMethodScan,
		Location:     "Main St",
		Amount:       decimal.RequireFromString("2.50"),
	})
	event := models.OutboxEvent{
		EventType:     enums.EventRedemptionRecorded,
		AggregateType: enums.AggregateRedemption,
		AggregateID:   redemptionID,
		Payload:       mustEnvelope(t, data),
	}

	resolved, err := reg.Resolve(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.Descriptor.Topic != "redemptions-topic" {
		t.Fatalf("unexpected topic %q", resolved.Descriptor.Topic)
	}
	payload, ok := resolved.Payload.(*payloads.RedemptionRecordedEvent)
	if !ok {
		t.Fatalf("unexpected payload type %T", resolved.Payload)
	}
	if payload.RedemptionID != redemptionID || !payload.Amount.Equal(decimal.RequireFromString("2.5")) {
		t.Fatalf("payload mismatch %+v", payload)
	}
	if resolved.Envelope.EventID == "" || resolved.Envelope.OccurredAt.IsZero() {
		t.Fatalf("envelope metadata missing")
	}
}

func TestEventRegistryRoutesMerchantEvents(t *testing.T) {
	reg := newTestEventRegistry(t)
	for _, tc := range []struct {
		eventType enums.OutboxEventType
		aggregate enums.OutboxAggregateType
	}{
		{enums.EventMerchantDeleted, enums.AggregateMerchant},
		{enums.EventMerchantRestored, enums.AggregateMerchant},
		{enums.EventOfferExpired, enums.AggregateOffer},
	} {
		resolved, err := reg.Resolve(models.OutboxEvent{
			EventType:     tc.eventType,
			AggregateType: tc.aggregate,
			AggregateID:   uuid.New(),
			Payload:       mustEnvelope(t, []byte(`{}`)),
		})
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.eventType, err)
		}
		if resolved.Descriptor.Topic != "merchants-topic" {
			t.Fatalf("%s: unexpected topic %q", tc.eventType, resolved.Descriptor.Topic)
		}
	}
}

func TestEventRegistryResolveRejectsBadRows(t *testing.T) {
	reg := newTestEventRegistry(t)
	cases := map[string]models.OutboxEvent{
		"unknown type": {
			EventType:     enums.OutboxEventType("mystery"),
			AggregateType: enums.AggregateRedemption,
			AggregateID:   uuid.New(),
			Payload:       mustEnvelope(t, []byte(`{}`)),
		},
		"aggregate mismatch": {
			EventType:     enums.EventRedemptionRecorded,
			AggregateType: enums.AggregateMerchant,
			AggregateID:   uuid.New(),
			Payload:       mustEnvelope(t, []byte(`{}`)),
		},
		"missing aggregate id": {
			EventType:     enums.EventRedemptionRecorded,
			AggregateType: enums.AggregateRedemption,
			Payload:       mustEnvelope(t, []byte(`{}`)),
		},
		"null payload": {
			EventType:     enums.EventRedemptionRecorded,
			AggregateType: enums.AggregateRedemption,
			AggregateID:   uuid.New(),
			Payload:       mustEnvelope(t, []byte(`null`)),
		},
		"broken envelope": {
			EventType:     enums.EventRedemptionRecorded,
			AggregateType: enums.AggregateRedemption,
			AggregateID:   uuid.New(),
			Payload:       json.RawMessage(`{`),
		},
	}
	for name, event := range cases {
		_, err := reg.Resolve(event)
		var nonRetry NonRetryableError
		if !errors.As(err, &nonRetry) {
			t.Fatalf("%s: expected non-retryable error, got %v", name, err)
		}
	}
}

func TestNewEventRegistryRequiresTopics(t *testing.T) {
	if _, err := NewEventRegistry(config.PubSubConfig{MerchantTopic: "m"}); err == nil {
		t.Fatal("expected missing redemption topic error")
	}
	if _, err := NewEventRegistry(config.PubSubConfig{RedemptionTopic: "r"}); err == nil {
		t.Fatal("expected missing merchant topic error")
	}
	reg := newTestEventRegistry(t)
	if got := len(reg.Topics()); got != 2 {
		t.Fatalf("expected 2 topics, got %d", got)
	}
}

func newTestEventRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry(config.PubSubConfig{
		RedemptionTopic: "redemptions-topic",
		MerchantTopic:   "merchants-topic",
	})
	if err != nil {
		t.Fatalf("NewEventRegistry: %v", err)
	}
	return reg
}

func mustMarshal(t *testing.T, v interface{}) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func mustEnvelope(t *testing.T, data []byte) json.RawMessage {
	t.Helper()
	return mustMarshal(t, outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       data,
	})
}
