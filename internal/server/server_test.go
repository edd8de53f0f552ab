package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/aqlens/airsync/internal/aq"
	"github.com/aqlens/airsync/internal/config"
	"github.com/aqlens/airsync/internal/data"
)

func newTestRouter(t *testing.T) (*data.LatestCache, http.Handler) {
	t.Helper()
	cache := data.NewLatestCache()
	cfg := &config.ServerConfig{
		Port:      "8080",
		Locations: []string{"Delhi", "Mumbai"},
		StreamID:  "test",
		WSEnabled: false,
	}
	srv := NewServer(cache, cfg, zap.NewNop())
	return cache, NewRouter(srv, nil, zap.NewNop())
}

func TestGetCurrent(t *testing.T) {
	cache, router := newTestRouter(t)
	cache.Put(&aq.Snapshot{Location: "Delhi", Timestamp: 1000, AQI: 142, Category: aq.Categorize(142)})

	req := httptest.NewRequest(http.MethodGet, "/v1/locations/Delhi/current", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var snap aq.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if snap.AQI != 142 || snap.Location != "Delhi" {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
}

func TestGetCurrentUnknownLocation(t *testing.T) {
	_, router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/locations/Gotham/current", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestGetCurrentBeforeFirstTick(t *testing.T) {
	_, router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/locations/Delhi/current", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 before first tick", rec.Code)
	}
}

func TestGetLocations(t *testing.T) {
	_, router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/locations", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp locationsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if resp.Count != 2 {
		t.Errorf("count = %d, want 2", resp.Count)
	}
}

func TestResetCache(t *testing.T) {
	cache, router := newTestRouter(t)
	cache.Put(&aq.Snapshot{Location: "Delhi", AQI: 80})

	req := httptest.NewRequest(http.MethodPost, "/v1/reset", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if _, ok := cache.Get("Delhi"); ok {
		t.Error("expected cache cleared after reset")
	}
}

func TestHealth(t *testing.T) {
	_, router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("status = %q, want ok", resp.Status)
	}
}
