package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/aqlens/airsync/internal/aq"
)

func TestCurrent_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		expectedPath := "/v1/locations/Delhi/current"
		if r.URL.Path != expectedPath {
			t.Errorf("expected path %s, got %s", expectedPath, r.URL.Path)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(aq.Snapshot{
			Location:  "Delhi",
			Timestamp: 1700000000000,
			AQI:       82,
			Category:  "moderate",
		})
	}))
	defer server.Close()

	logger, _ := zap.NewDevelopment()
	client := NewClient(server.URL, 10, 30*time.Second, 3, logger)

	snap, err := client.Current(context.Background(), "Delhi")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if snap.Location != "Delhi" || snap.AQI != 82 {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
}

func TestCurrent_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	logger, _ := zap.NewDevelopment()
	client := NewClient(server.URL, 10, 30*time.Second, 0, logger)

	_, err := client.Current(context.Background(), "Atlantis")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCurrent_RetriesServerErrors(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(aq.Snapshot{Location: "Delhi", AQI: 90})
	}))
	defer server.Close()

	logger, _ := zap.NewDevelopment()
	client := NewClient(server.URL, 10, 30*time.Second, 3, logger)
	// Shrink retry delays so the test doesn't sleep for real.
	client.retry.Base = time.Millisecond
	client.retry.Cap = 5 * time.Millisecond

	snap, err := client.Current(context.Background(), "Delhi")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.AQI != 90 {
		t.Errorf("unexpected AQI: %d", snap.AQI)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestCurrent_RateLimitedExhaustsRetries(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	logger, _ := zap.NewDevelopment()
	client := NewClient(server.URL, 10, 30*time.Second, 2, logger)
	client.retry.Base = time.Millisecond
	client.retry.Cap = 5 * time.Millisecond

	_, err := client.Current(context.Background(), "Delhi")
	if err == nil {
		t.Fatal("expected error for rate limiting")
	}
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("expected wrapped ErrRateLimited, got %v", err)
	}

	// Initial attempt plus 2 retries.
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}
