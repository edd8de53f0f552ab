package data

import (
	"testing"

	"github.com/aqlens/airsync/internal/aq"
)

func TestLatestCachePutGet(t *testing.T) {
	cache := NewLatestCache()

	if _, ok := cache.Get("Delhi"); ok {
		t.Fatal("expected miss on empty cache")
	}

	cache.Put(&aq.Snapshot{Location: "Delhi", AQI: 120})
	cache.Put(&aq.Snapshot{Location: "Delhi", AQI: 130})

	snap, ok := cache.Get("Delhi")
	if !ok {
		t.Fatal("expected hit after Put")
	}
	if snap.AQI != 130 {
		t.Errorf("expected latest snapshot (AQI 130), got %d", snap.AQI)
	}
}

func TestLatestCacheReset(t *testing.T) {
	cache := NewLatestCache()
	cache.Put(&aq.Snapshot{Location: "Delhi"})
	cache.Put(&aq.Snapshot{Location: "Mumbai"})

	if got := len(cache.Locations()); got != 2 {
		t.Fatalf("locations = %d, want 2", got)
	}

	if count := cache.Reset(); count != 2 {
		t.Errorf("Reset count = %d, want 2", count)
	}
	if _, ok := cache.Get("Delhi"); ok {
		t.Error("expected miss after reset")
	}
}
