package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCatalogClient_GetUnit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/units/villa-1":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"data":{"id":7,"uid":"villa-1","name":"Villa","base_price":1000000,"currency":"VND"}}`))
		case "/api/v1/units/broken":
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"error":"upstream down","code":"SERVICE_UNAVAILABLE"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	c := NewCatalogClient(server.URL, time.Second)
	ctx := context.Background()

	unit, err := c.GetUnit(ctx, "villa-1")
	if err != nil {
		t.Fatalf("GetUnit() error = %v", err)
	}
	if unit.ID != 7 || unit.BasePrice != 1000000 || unit.Currency != "VND" {
		t.Errorf("unexpected unit: %+v", unit)
	}

	if _, err := c.GetUnit(ctx, "missing"); !errors.Is(err, ErrUnitNotFound) {
		t.Errorf("expected ErrUnitNotFound, got %v", err)
	}

	_, err = c.GetUnit(ctx, "broken")
	if err == nil || errors.Is(err, ErrUnitNotFound) {
		t.Errorf("expected upstream error, got %v", err)
	}
}
