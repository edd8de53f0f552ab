package view

import (
	"context"
	gosync "sync"

	"go.uber.org/zap"

	"github.com/aqlens/airsync/internal/store"
	"github.com/aqlens/airsync/internal/sync"
)

// View is the cached representation consumed by the rendering layer. Each
// forwarded envelope marks the location stale and signals dependents to
// re-read; multiple updates landing within one processing turn coalesce
// into a single invalidation (capacity-1 signal channel drained by the
// notifier loop).
//
// When a persistent store is attached, every envelope is also written
// through, so a restart starts from last-known values instead of a blank
// display. Staleness indication is the consumer's job; the view only
// reports the flag.
type View struct {
	store  *store.Store // optional write-through persistence
	logger *zap.Logger

	mu        gosync.RWMutex
	latest    map[string]sync.UpdateEnvelope
	stale     map[string]bool
	listeners map[int]func()
	nextID    int

	signal chan struct{}
	rounds uint64
}

func New(st *store.Store, logger *zap.Logger) *View {
	return &View{
		store:     st,
		logger:    logger,
		latest:    make(map[string]sync.UpdateEnvelope),
		stale:     make(map[string]bool),
		listeners: make(map[int]func()),
		signal:    make(chan struct{}, 1),
	}
}

// Run drains invalidation signals until ctx is cancelled. Call in a
// goroutine; without it dependents are never notified.
func (v *View) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-v.signal:
			v.notify()
		}
	}
}

// OnUpdate ingests a forwarded envelope. Wired to the synchronizer's
// update subscription.
func (v *View) OnUpdate(env sync.UpdateEnvelope) {
	v.mu.Lock()
	v.latest[env.Location] = env
	v.stale[env.Location] = true
	v.mu.Unlock()

	if v.store != nil {
		if err := v.store.Put(env); err != nil {
			v.logger.Warn("failed to persist snapshot",
				zap.String("location", env.Location),
				zap.Error(err),
			)
		}
	}

	// Coalesce: a pending signal already covers this update.
	select {
	case v.signal <- struct{}{}:
	default:
	}
}

// Latest returns the freshest envelope for location and clears its stale
// flag. Falls back to the persistent store when memory is cold.
func (v *View) Latest(location string) (sync.UpdateEnvelope, bool) {
	v.mu.Lock()
	env, ok := v.latest[location]
	if ok {
		v.stale[location] = false
	}
	v.mu.Unlock()
	if ok {
		return env, true
	}

	if v.store == nil {
		return sync.UpdateEnvelope{}, false
	}
	env, err := v.store.Get(location)
	if err != nil {
		return sync.UpdateEnvelope{}, false
	}

	v.mu.Lock()
	if _, exists := v.latest[location]; !exists {
		v.latest[location] = env
	}
	v.mu.Unlock()
	return env, true
}

// Stale reports whether location has an unread update.
func (v *View) Stale(location string) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.stale[location]
}

// SubscribeInvalidations registers a dependent to be poked when any
// location goes stale. The callback must re-read via Latest.
func (v *View) SubscribeInvalidations(cb func()) (cancel func()) {
	v.mu.Lock()
	v.nextID++
	id := v.nextID
	v.listeners[id] = cb
	v.mu.Unlock()

	return func() {
		v.mu.Lock()
		delete(v.listeners, id)
		v.mu.Unlock()
	}
}

// Invalidations returns how many invalidation rounds have fired.
func (v *View) Invalidations() uint64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.rounds
}

func (v *View) notify() {
	v.mu.Lock()
	v.rounds++
	cbs := make([]func(), 0, len(v.listeners))
	for _, cb := range v.listeners {
		cbs = append(cbs, cb)
	}
	v.mu.Unlock()

	for _, cb := range cbs {
		cb()
	}
}
