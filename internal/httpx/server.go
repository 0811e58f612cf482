package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ForeverInLaw/nikitabotv2/internal/orders"
)

func NewRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger)
	r.Use(middleware.Timeout(15 * time.Second))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeDomainErr maps the error taxonomy onto HTTP statuses. Insufficient
// stock reports the available quantity so the client can retry smaller.
func writeDomainErr(w http.ResponseWriter, err error) {
	var ins *orders.InsufficientStockError
	if errors.As(err, &ins) {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":       "insufficient_stock",
			"product_id":  ins.ProductID,
			"location_id": ins.LocationID,
			"available":   ins.Available,
			"requested":   ins.Requested,
		})
		return
	}
	var ite *orders.InvalidTransitionError
	if errors.As(err, &ite) {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":  "invalid_transition",
			"from":   ite.From,
			"action": ite.Action,
		})
		return
	}

	switch {
	case errors.Is(err, orders.ErrOrderNotFound), errors.Is(err, orders.ErrRecordNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, orders.ErrOrderAlreadyTerminal):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, orders.ErrInvalidQuantity), errors.Is(err, orders.ErrInvalidFilter):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, orders.ErrLockTimeout):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}
