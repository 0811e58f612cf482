package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/ForeverInLaw/nikitabotv2/internal/kafka"
	"github.com/ForeverInLaw/nikitabotv2/internal/lifecycle"
	"github.com/ForeverInLaw/nikitabotv2/internal/orders"
	"github.com/ForeverInLaw/nikitabotv2/internal/redisx"
)

// OrderService is the slice of the lifecycle service the handler needs.
type OrderService interface {
	CreateOrder(ctx context.Context, in lifecycle.CreateOrderInput) (*orders.Order, bool, error)
	Transition(ctx context.Context, orderID string, action orders.Action, actorID int64, notes string) (*lifecycle.TransitionResult, error)
	GetByID(ctx context.Context, orderID string) (*orders.Order, error)
	ListFiltered(ctx context.Context, f lifecycle.ListFilter) ([]orders.Order, int, error)
}

// KV is the slice of redis the handler needs. Get reports a missing key as
// ("", nil) so callers only branch on real errors.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

type RedisKV struct{ C *redis.Client }

func (r RedisKV) Get(ctx context.Context, key string) (string, error) {
	s, err := r.C.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	return s, err
}

func (r RedisKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.C.Set(ctx, key, value, ttl).Err()
}

// Publisher is satisfied by the kafka producer.
type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

type OrdersHandler struct {
	Svc         OrderService
	Cache       KV
	CreatedProd Publisher // order.created
	StatusProd  Publisher // order.status.changed
	Service     string
}

type CreateOrderReq struct {
	ExternalID    string            `json:"external_id"`
	UserID        int64             `json:"user_id"`
	PaymentMethod string            `json:"payment_method"`
	Items         []orders.LineItem `json:"items"`
}

type TransitionReq struct {
	Action  orders.Action `json:"action"`
	ActorID int64         `json:"actor_id"`
	Notes   string        `json:"notes,omitempty"`
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Post("/orders", h.createOrder)
	r.Post("/orders/{id}/transition", h.transition)
	r.Get("/orders", h.listOrders)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/orders/{id}/status", h.getOrderStatus)
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.ExternalID == "" || req.UserID == 0 || len(req.Items) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing fields"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	// Idempotency fast path: a repeated external_id is answered from the
	// cached mapping without touching the ledger. Cache misses and errors
	// fall through to the database, which enforces uniqueness anyway.
	idemKey := fmt.Sprintf(redisx.KeyIdemOrderCreate, req.ExternalID)
	if cachedID, err := h.Cache.Get(ctx, idemKey); err == nil && cachedID != "" {
		if order, err := h.Svc.GetByID(ctx, cachedID); err == nil {
			writeJSON(w, http.StatusOK, order)
			return
		}
	}

	order, existed, err := h.Svc.CreateOrder(ctx, lifecycle.CreateOrderInput{
		ExternalID:    req.ExternalID,
		UserID:        req.UserID,
		PaymentMethod: req.PaymentMethod,
		Items:         req.Items,
	})
	if err != nil {
		writeDomainErr(w, err)
		return
	}

	_ = h.Cache.Set(ctx, idemKey, order.ID, redisx.TTLIdempotency)
	statusKey := fmt.Sprintf(redisx.KeyOrderStatus, order.ID)
	_ = h.Cache.Set(ctx, statusKey, fmt.Sprintf(`{"status":%q}`, order.Status), redisx.TTLStatusCache)

	if !existed {
		items := make([]orders.LineItem, 0, len(order.Items))
		for _, it := range order.Items {
			items = append(items, orders.LineItem{ProductID: it.ProductID, LocationID: it.LocationID, Qty: it.Quantity})
		}
		ev := orders.Envelope{
			EventID:       uuid.NewString(),
			EventType:     orders.EventOrderCreated,
			EventVersion:  1,
			OccurredAt:    time.Now().UTC(),
			Producer:      h.Service,
			TraceID:       r.Header.Get("X-Request-Id"),
			CorrelationID: order.ID,
			Payload: kafkax.MustMarshal(orders.OrderCreatedPayload{
				OrderID:       order.ID,
				ExternalID:    order.ExternalID,
				UserID:        order.UserID,
				PaymentMethod: order.PaymentMethod,
				Items:         items,
				TotalAmount:   order.TotalAmount.String(),
			}),
		}
		h.CreatedProd.Publish(orders.PartitionKey(order.ID), kafkax.MustMarshal(ev),
			kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderCreated)},
			kafkago.Header{Key: "x-event-version", Value: []byte("1")},
		)
	}

	code := http.StatusCreated
	if existed {
		code = http.StatusOK
	}
	writeJSON(w, code, order)
}

func (h *OrdersHandler) transition(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	var req TransitionReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if orderID == "" || req.Action == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing fields"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	res, err := h.Svc.Transition(ctx, orderID, req.Action, req.ActorID, req.Notes)
	if err != nil {
		writeDomainErr(w, err)
		return
	}

	statusKey := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	_ = h.Cache.Set(ctx, statusKey, fmt.Sprintf(`{"status":%q}`, res.Order.Status), redisx.TTLStatusCache)

	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventOrderStatusChanged,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Service,
		TraceID:       r.Header.Get("X-Request-Id"),
		CorrelationID: orderID,
		Payload: kafkax.MustMarshal(orders.OrderStatusChangedPayload{
			OrderID:       orderID,
			OldStatus:     res.From,
			NewStatus:     res.Order.Status,
			Action:        req.Action,
			ActorID:       req.ActorID,
			StockReleased: res.StockReleased,
		}),
	}
	h.StatusProd.Publish(orders.PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderStatusChanged)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)

	writeJSON(w, http.StatusOK, res.Order)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	order, err := h.Svc.GetByID(ctx, orderID)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// getOrderStatus serves the cached status when fresh and falls back to the
// database, repopulating the cache.
func (h *OrdersHandler) getOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	if s, err := h.Cache.Get(ctx, key); err == nil && s != "" {
		writeJSON(w, http.StatusOK, json.RawMessage(s))
		return
	}

	order, err := h.Svc.GetByID(ctx, orderID)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	b, _ := json.Marshal(map[string]any{"status": order.Status})
	_ = h.Cache.Set(ctx, key, string(b), redisx.TTLStatusCache)
	writeJSON(w, http.StatusOK, json.RawMessage(b))
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	q := r.URL.Query()
	userID, _ := strconv.ParseInt(q.Get("user_id"), 10, 64)
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	list, total, err := h.Svc.ListFiltered(ctx, lifecycle.ListFilter{
		Status: orders.Status(q.Get("status")),
		UserID: userID,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": list, "total": total})
}
