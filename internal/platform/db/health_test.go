package db

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func runHealth(t *testing.T, h echo.HandlerFunc) (*httptest.ResponseRecorder, HealthResponse) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	if err := h(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return rec, body
}

func TestHealthHandler_Healthy(t *testing.T) {
	var pinged bool
	ping := func(context.Context) error { pinged = true; return nil }

	rec, body := runHealth(t, HealthHandler("sqlite", ping, nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !pinged {
		t.Error("expected ping to be called")
	}
	if body.Status != "healthy" || body.Storage != "sqlite" {
		t.Errorf("unexpected body %+v", body)
	}
	if body.Pool != nil {
		t.Errorf("expected no pool stats without a pool, got %+v", body.Pool)
	}
}

func TestHealthHandler_Unhealthy(t *testing.T) {
	ping := func(context.Context) error { return errors.New("connection refused") }

	rec, body := runHealth(t, HealthHandler("postgres", ping, nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
	if body.Status != "unhealthy" || body.Error != "connection refused" {
		t.Errorf("unexpected body %+v", body)
	}
}

func TestHealthHandler_NilPing(t *testing.T) {
	rec, body := runHealth(t, HealthHandler("memory", nil, nil))
	if rec.Code != http.StatusOK || body.Storage != "memory" {
		t.Errorf("unexpected response %d %+v", rec.Code, body)
	}
}

func TestGetPoolStats_NilPool(t *testing.T) {
	if GetPoolStats(nil) != nil {
		t.Error("expected nil stats for nil pool")
	}
}
