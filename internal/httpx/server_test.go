package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ForeverInLaw/nikitabotv2/internal/orders"
)

func TestWriteDomainErrInsufficientStock(t *testing.T) {
	rec := httptest.NewRecorder()
	writeDomainErr(rec, fmt.Errorf("reserve: %w", &orders.InsufficientStockError{
		ProductID: 7, LocationID: 2, Available: 3, Requested: 5,
	}))

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if body["error"] != "insufficient_stock" {
		t.Errorf("unexpected error kind: %v", body["error"])
	}
	if body["available"].(float64) != 3 {
		t.Errorf("available quantity must be reported, got %v", body["available"])
	}
}

func TestWriteDomainErrStatusCodes(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{orders.ErrOrderNotFound, http.StatusNotFound},
		{orders.ErrRecordNotFound, http.StatusNotFound},
		{orders.ErrOrderAlreadyTerminal, http.StatusConflict},
		{&orders.InvalidTransitionError{From: orders.StatusCompleted, Action: orders.ActionApprove}, http.StatusConflict},
		{orders.ErrInvalidQuantity, http.StatusBadRequest},
		{fmt.Errorf("status %q: %w", "paid", orders.ErrInvalidFilter), http.StatusBadRequest},
		{orders.ErrLockTimeout, http.StatusServiceUnavailable},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		rec := httptest.NewRecorder()
		writeDomainErr(rec, c.err)
		if rec.Code != c.code {
			t.Errorf("%v: expected %d, got %d", c.err, c.code, rec.Code)
		}
	}
}
