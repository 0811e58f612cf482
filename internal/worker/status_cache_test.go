package worker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/ForeverInLaw/nikitabotv2/internal/kafka"
	"github.com/ForeverInLaw/nikitabotv2/internal/orders"
)

type fakeCache struct {
	data map[string]string
}

func newFakeCache() *fakeCache { return &fakeCache{data: map[string]string{}} }

func (f *fakeCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	f.data[key] = value
	return nil
}

func (f *fakeCache) Exists(_ context.Context, key string) (bool, error) {
	_, ok := f.data[key]
	return ok, nil
}

func statusChangedMessage(t *testing.T, eventID, orderID string, to orders.Status) kafkago.Message {
	t.Helper()
	env := orders.Envelope{
		EventID:      eventID,
		EventType:    orders.EventOrderStatusChanged,
		EventVersion: 1,
		OccurredAt:   time.Now().UTC(),
		Producer:     "test",
		Payload: kafkax.MustMarshal(orders.OrderStatusChangedPayload{
			OrderID:   orderID,
			OldStatus: orders.StatusPendingApproval,
			NewStatus: to,
			Action:    orders.ActionApprove,
		}),
	}
	return kafkago.Message{Key: orders.PartitionKey(orderID), Value: kafkax.MustMarshal(env)}
}

func TestHandleStatusChangedUpdatesCache(t *testing.T) {
	cache := newFakeCache()
	svc := &StatusCacheService{Cache: cache, ServiceName: "worker", Logger: zerolog.Nop()}

	m := statusChangedMessage(t, uuid.NewString(), "order-1", orders.StatusApproved)
	if err := svc.HandleStatusChanged(context.Background(), m); err != nil {
		t.Fatalf("handle: %v", err)
	}

	got, ok := cache.data["order_status:order-1"]
	if !ok {
		t.Fatal("status cache entry missing")
	}
	var body map[string]string
	if err := json.Unmarshal([]byte(got), &body); err != nil {
		t.Fatalf("bad cache body: %v", err)
	}
	if body["status"] != string(orders.StatusApproved) {
		t.Errorf("expected approved, got %q", body["status"])
	}
}

func TestHandleStatusChangedDedupsByEventID(t *testing.T) {
	cache := newFakeCache()
	svc := &StatusCacheService{Cache: cache, ServiceName: "worker", Logger: zerolog.Nop()}
	eventID := uuid.NewString()

	m := statusChangedMessage(t, eventID, "order-1", orders.StatusApproved)
	if err := svc.HandleStatusChanged(context.Background(), m); err != nil {
		t.Fatalf("first handle: %v", err)
	}

	// same event again with a different payload must be ignored
	m2 := statusChangedMessage(t, eventID, "order-1", orders.StatusCancelled)
	if err := svc.HandleStatusChanged(context.Background(), m2); err != nil {
		t.Fatalf("second handle: %v", err)
	}

	var body map[string]string
	_ = json.Unmarshal([]byte(cache.data["order_status:order-1"]), &body)
	if body["status"] != string(orders.StatusApproved) {
		t.Errorf("duplicate event must not overwrite cache, got %q", body["status"])
	}
}

func TestHandleStatusChangedIgnoresOtherEvents(t *testing.T) {
	cache := newFakeCache()
	svc := &StatusCacheService{Cache: cache, ServiceName: "worker", Logger: zerolog.Nop()}

	env := orders.Envelope{
		EventID:   uuid.NewString(),
		EventType: orders.EventOrderCreated,
		Payload:   kafkax.MustMarshal(orders.OrderCreatedPayload{OrderID: "order-2"}),
	}
	m := kafkago.Message{Value: kafkax.MustMarshal(env)}
	if err := svc.HandleStatusChanged(context.Background(), m); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(cache.data) != 0 {
		t.Errorf("unrelated events must not touch the cache: %v", cache.data)
	}
}
