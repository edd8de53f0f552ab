package ws

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/aqlens/airsync/internal/aq"
	"github.com/aqlens/airsync/internal/data"
)

// Streamer generates fresh snapshots on a fixed cadence, caches them for
// the pull endpoint, and broadcasts them to subscribed push clients.
type Streamer struct {
	hub       *Hub
	generator *aq.Generator
	cache     *data.LatestCache
	locations []string
	interval  time.Duration
	logger    *zap.Logger
}

// NewStreamer creates a new Streamer for the given locations.
func NewStreamer(hub *Hub, generator *aq.Generator, cache *data.LatestCache, locations []string, interval time.Duration, logger *zap.Logger) *Streamer {
	return &Streamer{
		hub:       hub,
		generator: generator,
		cache:     cache,
		locations: locations,
		interval:  interval,
		logger:    logger,
	}
}

// Run starts the streaming loop. Call in a goroutine.
// Returns when context is cancelled.
func (s *Streamer) Run(ctx context.Context) {
	// Align first tick to top of second for predictable timing
	now := time.Now()
	nextSecond := now.Truncate(time.Second).Add(time.Second)
	s.logger.Debug("aligning to next second",
		zap.Time("now", now),
		zap.Time("nextSecond", nextSecond),
		zap.Duration("wait", time.Until(nextSecond)),
	)

	select {
	case <-ctx.Done():
		s.logger.Info("streamer cancelled during alignment")
		return
	case <-time.After(time.Until(nextSecond)):
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("streamer started",
		zap.Duration("interval", s.interval),
		zap.Int("locations", len(s.locations)),
	)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("streamer stopping")
			return

		case <-ticker.C:
			s.tick()
		}
	}
}

// tick produces one snapshot per location. Every location is cached so
// the pull endpoint stays fresh; only subscribed locations are broadcast.
func (s *Streamer) tick() {
	subscribed := make(map[string]bool)
	for _, loc := range s.hub.ActiveLocations() {
		subscribed[loc] = true
	}

	for _, location := range s.locations {
		snap := s.generator.Next(location)
		s.cache.Put(snap)

		if !subscribed[location] {
			continue
		}

		s.hub.BroadcastUpdate(snap)

		s.logger.Debug("broadcast update",
			zap.String("location", location),
			zap.Int("aqi", snap.AQI),
		)
	}
}
