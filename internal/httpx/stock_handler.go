package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/ForeverInLaw/nikitabotv2/internal/kafka"
	"github.com/ForeverInLaw/nikitabotv2/internal/ledger"
	"github.com/ForeverInLaw/nikitabotv2/internal/orders"
)

// StockHandler exposes direct stock correction for the admin layer, outside
// any order flow.
type StockHandler struct {
	Store     *ledger.Store
	StockProd *kafkax.Producer // stock.adjusted
	Service   string
	Logger    zerolog.Logger
}

type AdjustStockReq struct {
	ProductID  int64 `json:"product_id"`
	LocationID int64 `json:"location_id"`
	Change     int   `json:"change"`
	AdminID    int64 `json:"admin_id"`
}

type SetStockReq struct {
	ProductID  int64 `json:"product_id"`
	LocationID int64 `json:"location_id"`
	Quantity   int   `json:"quantity"`
	AdminID    int64 `json:"admin_id"`
}

type StockResp struct {
	ProductID  int64 `json:"product_id"`
	LocationID int64 `json:"location_id"`
	Quantity   int   `json:"quantity"`
}

func (h *StockHandler) Register(r *chi.Mux) {
	r.Post("/admin/stock/adjust", h.adjust)
	r.Post("/admin/stock/set", h.set)
	r.Get("/admin/stock", h.get)
}

func (h *StockHandler) adjust(w http.ResponseWriter, r *http.Request) {
	var req AdjustStockReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.ProductID == 0 || req.LocationID == 0 || req.Change == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing fields"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	newQty, err := h.Store.AdjustStock(ctx, req.ProductID, req.LocationID, req.Change)
	if err != nil {
		writeDomainErr(w, err)
		return
	}

	h.Logger.Info().
		Int64("admin_id", req.AdminID).
		Int64("product_id", req.ProductID).
		Int64("location_id", req.LocationID).
		Int("change", req.Change).
		Int("new_quantity", newQty).
		Msg("admin stock adjustment")
	h.publishAdjusted(req.ProductID, req.LocationID, req.Change, newQty, req.AdminID, false)

	writeJSON(w, http.StatusOK, StockResp{ProductID: req.ProductID, LocationID: req.LocationID, Quantity: newQty})
}

func (h *StockHandler) set(w http.ResponseWriter, r *http.Request) {
	var req SetStockReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.ProductID == 0 || req.LocationID == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing fields"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	newQty, err := h.Store.SetStock(ctx, req.ProductID, req.LocationID, req.Quantity)
	if err != nil {
		writeDomainErr(w, err)
		return
	}

	h.Logger.Info().
		Int64("admin_id", req.AdminID).
		Int64("product_id", req.ProductID).
		Int64("location_id", req.LocationID).
		Int("new_quantity", newQty).
		Msg("admin stock set")
	h.publishAdjusted(req.ProductID, req.LocationID, 0, newQty, req.AdminID, true)

	writeJSON(w, http.StatusOK, StockResp{ProductID: req.ProductID, LocationID: req.LocationID, Quantity: newQty})
}

func (h *StockHandler) get(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	productID, _ := strconv.ParseInt(q.Get("product_id"), 10, 64)
	locationID, _ := strconv.ParseInt(q.Get("location_id"), 10, 64)
	if productID == 0 || locationID == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing product_id or location_id"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	rec, exists, err := h.Store.GetStock(ctx, productID, locationID)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	if !exists {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": orders.ErrRecordNotFound.Error()})
		return
	}
	writeJSON(w, http.StatusOK, StockResp{ProductID: rec.ProductID, LocationID: rec.LocationID, Quantity: rec.Quantity})
}

func (h *StockHandler) publishAdjusted(productID, locationID int64, change, newQty int, adminID int64, absolute bool) {
	ev := orders.Envelope{
		EventID:      uuid.NewString(),
		EventType:    orders.EventStockAdjusted,
		EventVersion: 1,
		OccurredAt:   time.Now().UTC(),
		Producer:     h.Service,
		Payload: kafkax.MustMarshal(orders.StockAdjustedPayload{
			ProductID:   productID,
			LocationID:  locationID,
			Change:      change,
			NewQuantity: newQty,
			AdminID:     adminID,
			Absolute:    absolute,
		}),
	}
	h.StockProd.Publish([]byte(strconv.FormatInt(productID, 10)), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventStockAdjusted)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
