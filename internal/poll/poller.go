package poll

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/aqlens/airsync/internal/aq"
)

const defaultInterval = 30 * time.Second

// FetchFunc retrieves the current snapshot for a location. Injected so the
// poller can be exercised without a real pull endpoint.
type FetchFunc func(ctx context.Context, location string) (*aq.Snapshot, error)

// Result is handed to the owner for every poll outcome. Snapshot is nil
// when the tick failed; Err carries the cause.
type Result struct {
	Location string
	Snapshot *aq.Snapshot
	Err      error
}

// State is a point-in-time view of polling progress.
type State struct {
	IsPolling    bool
	LastPollTime time.Time
	PollCount    int
}

// Poller issues one fetch per interval for a location while running.
// Individual fetch failures are logged and swallowed: a failed tick never
// stops subsequent ticks, so the poller self-heals on the next schedule.
type Poller struct {
	interval time.Duration
	fetch    FetchFunc
	onResult func(Result)
	logger   *zap.Logger

	mu       sync.Mutex
	location string
	cancel   context.CancelFunc
	done     chan struct{}
	trigger  chan struct{}
	state    State
}

func NewPoller(interval time.Duration, fetch FetchFunc, onResult func(Result), logger *zap.Logger) *Poller {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Poller{
		interval: interval,
		fetch:    fetch,
		onResult: onResult,
		logger:   logger,
	}
}

// Start begins polling for location. If already polling it restarts with
// the new location, resetting poll counters.
func (p *Poller) Start(location string) {
	p.Stop()

	p.mu.Lock()
	ctx, cancel := context.WithCancel(context.Background())
	p.location = location
	p.cancel = cancel
	p.done = make(chan struct{})
	p.trigger = make(chan struct{}, 1)
	p.state = State{IsPolling: true}
	done, trigger := p.done, p.trigger
	p.mu.Unlock()

	p.logger.Debug("polling started",
		zap.String("location", location),
		zap.Duration("interval", p.interval),
	)

	go p.run(ctx, location, done, trigger)
}

// Stop cancels polling deterministically: once it returns, no further
// result callback fires. Safe to call when not polling.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel = nil
	p.done = nil
	p.trigger = nil
	p.state = State{}
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Poll triggers an immediate fetch without waiting for the next interval,
// e.g. right after the push channel drops. No-op when not polling.
func (p *Poller) Poll() {
	p.mu.Lock()
	trigger := p.trigger
	p.mu.Unlock()

	if trigger == nil {
		return
	}
	select {
	case trigger <- struct{}{}:
	default:
		// A manual poll is already pending.
	}
}

// State reports current polling progress.
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Poller) run(ctx context.Context, location string, done chan struct{}, trigger chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Debug("polling stopped", zap.String("location", location))
			return
		case <-trigger:
		case <-ticker.C:
		}
		p.pollOnce(ctx, location)
	}
}

func (p *Poller) pollOnce(ctx context.Context, location string) {
	p.mu.Lock()
	p.state.PollCount++
	p.state.LastPollTime = time.Now()
	count := p.state.PollCount
	p.mu.Unlock()

	snap, err := p.fetch(ctx, location)

	// A fetch resolving after Stop must be ignored, not forwarded.
	if ctx.Err() != nil {
		return
	}

	if err != nil {
		p.logger.Warn("poll failed",
			zap.String("location", location),
			zap.Int("pollCount", count),
			zap.Error(err),
		)
		p.onResult(Result{Location: location, Err: err})
		return
	}

	p.onResult(Result{Location: location, Snapshot: snap})
}
