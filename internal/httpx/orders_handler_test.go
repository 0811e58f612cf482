package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/ForeverInLaw/nikitabotv2/internal/lifecycle"
	"github.com/ForeverInLaw/nikitabotv2/internal/orders"
	"github.com/ForeverInLaw/nikitabotv2/internal/redisx"
)

type fakeService struct {
	orders      map[string]*orders.Order
	createCalls int
}

func (f *fakeService) CreateOrder(ctx context.Context, in lifecycle.CreateOrderInput) (*orders.Order, bool, error) {
	f.createCalls++
	o := &orders.Order{ID: "ord-new", ExternalID: in.ExternalID, UserID: in.UserID, Status: orders.StatusPendingApproval}
	f.orders[o.ID] = o
	return o, false, nil
}

func (f *fakeService) Transition(ctx context.Context, orderID string, action orders.Action, actorID int64, notes string) (*lifecycle.TransitionResult, error) {
	return nil, orders.ErrOrderNotFound
}

func (f *fakeService) GetByID(ctx context.Context, orderID string) (*orders.Order, error) {
	o, ok := f.orders[orderID]
	if !ok {
		return nil, orders.ErrOrderNotFound
	}
	return o, nil
}

func (f *fakeService) ListFiltered(ctx context.Context, lf lifecycle.ListFilter) ([]orders.Order, int, error) {
	return nil, 0, nil
}

type fakeKV struct{ m map[string]string }

func (f *fakeKV) Get(ctx context.Context, key string) (string, error) { return f.m[key], nil }

func (f *fakeKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	f.m[key] = value
	return nil
}

type fakePublisher struct{ published int }

func (f *fakePublisher) Publish(key, value []byte, headers ...kafkago.Header) { f.published++ }

func newOrdersTestServer(svc *fakeService, kv *fakeKV, pub *fakePublisher) *chi.Mux {
	h := &OrdersHandler{Svc: svc, Cache: kv, CreatedProd: pub, StatusProd: pub, Service: "test"}
	r := chi.NewRouter()
	h.Register(r)
	return r
}

func TestCreateOrderRepeatServedFromCache(t *testing.T) {
	svc := &fakeService{orders: map[string]*orders.Order{
		"ord-1": {ID: "ord-1", ExternalID: "ext-1", UserID: 42, Status: orders.StatusPendingApproval},
	}}
	kv := &fakeKV{m: map[string]string{
		fmt.Sprintf(redisx.KeyIdemOrderCreate, "ext-1"): "ord-1",
	}}
	pub := &fakePublisher{}
	r := newOrdersTestServer(svc, kv, pub)

	body := `{"external_id":"ext-1","user_id":42,"items":[{"product_id":1,"location_id":1,"qty":2}]}`
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for repeated external_id, got %d", rec.Code)
	}
	if svc.createCalls != 0 {
		t.Errorf("cached repeat must not reach CreateOrder, got %d calls", svc.createCalls)
	}
	if pub.published != 0 {
		t.Errorf("cached repeat must not republish, got %d", pub.published)
	}
	var got orders.Order
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if got.ID != "ord-1" {
		t.Errorf("expected the existing order, got %q", got.ID)
	}
}

func TestCreateOrderCacheMissFallsThrough(t *testing.T) {
	svc := &fakeService{orders: map[string]*orders.Order{}}
	kv := &fakeKV{m: map[string]string{}}
	pub := &fakePublisher{}
	r := newOrdersTestServer(svc, kv, pub)

	body := `{"external_id":"ext-2","user_id":42,"items":[{"product_id":1,"location_id":1,"qty":2}]}`
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(body)))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if svc.createCalls != 1 {
		t.Fatalf("expected one CreateOrder call, got %d", svc.createCalls)
	}
	if pub.published != 1 {
		t.Errorf("expected one order.created publish, got %d", pub.published)
	}
	if got := kv.m[fmt.Sprintf(redisx.KeyIdemOrderCreate, "ext-2")]; got != "ord-new" {
		t.Errorf("idempotency key not written, got %q", got)
	}
}

func TestCreateOrderStaleCacheEntryFallsThrough(t *testing.T) {
	// Key points at an order the database no longer has; the handler must
	// fall back to the create path instead of serving a 404.
	svc := &fakeService{orders: map[string]*orders.Order{}}
	kv := &fakeKV{m: map[string]string{
		fmt.Sprintf(redisx.KeyIdemOrderCreate, "ext-3"): "ord-gone",
	}}
	pub := &fakePublisher{}
	r := newOrdersTestServer(svc, kv, pub)

	body := `{"external_id":"ext-3","user_id":42,"items":[{"product_id":1,"location_id":1,"qty":2}]}`
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(body)))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if svc.createCalls != 1 {
		t.Fatalf("expected one CreateOrder call, got %d", svc.createCalls)
	}
}
