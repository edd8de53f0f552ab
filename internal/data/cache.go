package data

import (
	"sync"

	"github.com/aqlens/airsync/internal/aq"
)

// LatestCache holds the most recent snapshot per location. The streamer
// writes it on every tick and the pull endpoint reads it.
type LatestCache struct {
	mu     sync.RWMutex
	latest map[string]*aq.Snapshot
}

func NewLatestCache() *LatestCache {
	return &LatestCache{
		latest: make(map[string]*aq.Snapshot),
	}
}

// Put stores the snapshot for its location.
func (c *LatestCache) Put(snap *aq.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.latest[snap.Location] = snap
}

// Get returns the latest snapshot for a location.
// Returns (nil, false) when no tick has produced one yet.
func (c *LatestCache) Get(location string) (*aq.Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap, ok := c.latest[location]
	return snap, ok
}

// Locations returns the locations with at least one snapshot.
func (c *LatestCache) Locations() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	locations := make([]string, 0, len(c.latest))
	for loc := range c.latest {
		locations = append(locations, loc)
	}
	return locations
}

// Reset discards all cached snapshots.
func (c *LatestCache) Reset() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := len(c.latest)
	c.latest = make(map[string]*aq.Snapshot)
	return count
}
