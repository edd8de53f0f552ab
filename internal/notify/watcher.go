package notify

import (
	"context"
	stdsync "sync"
	"time"

	"go.uber.org/zap"

	"github.com/aqlens/airsync/internal/sync"
)

// Watcher turns synchronizer status transitions into notifications.
// It fires one outage alert when the method drops to none and one
// recovery alert when delivery resumes; repeated status updates inside
// a single outage are ignored.
type Watcher struct {
	notifier Notifier
	logger   *zap.Logger

	mu       stdsync.Mutex
	location string
	inOutage bool
	downAt   time.Time
}

// NewWatcher creates a watcher for the given location.
func NewWatcher(notifier Notifier, location string, logger *zap.Logger) *Watcher {
	return &Watcher{
		notifier: notifier,
		logger:   logger,
		location: location,
	}
}

// SetLocation updates the location reported in alerts. An outage in
// progress is closed silently since it no longer applies. Callable
// from any goroutine; location switches arrive via HTTP handlers while
// Observe runs on the synchronizer loop.
func (w *Watcher) SetLocation(location string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.location = location
	w.inOutage = false
}

// Observe processes one status update. The synchronizer delivers
// status callbacks serially, but the state transition happens under
// the lock because SetLocation may race with it. The alert itself is
// sent outside the lock so a slow notifier never blocks a location
// switch.
func (w *Watcher) Observe(st sync.Status) {
	w.mu.Lock()
	location := w.location
	var outage, recovery bool
	var downFor time.Duration
	switch {
	case st.Method == sync.MethodNone && !w.inOutage:
		w.inOutage = true
		w.downAt = time.Now()
		outage = true
	case st.Method != sync.MethodNone && w.inOutage:
		w.inOutage = false
		downFor = time.Since(w.downAt)
		recovery = true
	}
	w.mu.Unlock()

	switch {
	case outage:
		if err := w.notifier.SendOutage(context.Background(), location, st.LastErr); err != nil {
			w.logger.Warn("outage alert not delivered", zap.Error(err))
		}
	case recovery:
		if err := w.notifier.SendRecovery(context.Background(), location, st.Method.String(), downFor); err != nil {
			w.logger.Warn("recovery alert not delivered", zap.Error(err))
		}
	}
}
