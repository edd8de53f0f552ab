package sync

import (
	"context"
	gosync "sync"
	"time"

	"go.uber.org/zap"

	"github.com/aqlens/airsync/internal/aq"
	"github.com/aqlens/airsync/internal/poll"
	"github.com/aqlens/airsync/internal/push"
)

const cmdQueueSize = 64

// Options are the externally supplied synchronizer knobs.
type Options struct {
	// Location is the initial location to track.
	Location string

	// PreferPush selects the push channel whenever it is supported and
	// connected. When false the synchronizer always pulls.
	PreferPush bool

	// PollInterval is the pull-path refresh interval. Zero means the
	// poller default of 30s.
	PollInterval time.Duration
}

// Synchronizer composes the push channel and the pull poller into one
// update stream. It decides which path is authoritative, switches as
// connection health changes, normalizes and de-duplicates updates, and
// exposes a read-only status surface.
//
// All coordination state lives in a single event-loop goroutine: push
// events, poll results, location changes and manual triggers enter through
// one queue and run to completion one at a time, so no locking guards the
// decision state. Only the published Status snapshot is shared, behind its
// own RWMutex.
type Synchronizer struct {
	channel PushChannel
	poller  *poll.Poller
	caps    Capabilities
	logger  *zap.Logger

	cmds   chan func()
	closed chan struct{}

	// Event-loop-owned state. Touched only from Run's goroutine.
	location        string
	preferPush      bool
	method          Method
	pushStatus      push.Status
	awaitingPush    bool // pull keeps running until the first push-origin update lands
	pollErrored     bool
	lastErr         error
	seq             uint64
	lastForwardedTS int64
	updateSubs      map[int]func(UpdateEnvelope)
	statusSubs      map[int]func(Status)
	nextSubID       int

	statusMu gosync.RWMutex
	status   Status
}

// New builds a synchronizer around an existing push channel and a pull
// fetch capability. Both paths are always instantiated; only one is armed
// to produce accepted updates at a time.
func New(channel PushChannel, fetch poll.FetchFunc, caps Capabilities, opts Options, logger *zap.Logger) *Synchronizer {
	s := &Synchronizer{
		channel:    channel,
		caps:       caps,
		logger:     logger,
		cmds:       make(chan func(), cmdQueueSize),
		closed:     make(chan struct{}),
		location:   opts.Location,
		preferPush: opts.PreferPush,
		method:     MethodNone,
		pushStatus: push.Status{State: push.StateDisconnected},
		updateSubs: make(map[int]func(UpdateEnvelope)),
		statusSubs: make(map[int]func(Status)),
		status:     Status{State: push.StateDisconnected, Method: MethodNone},
	}
	s.poller = poll.NewPoller(opts.PollInterval, fetch, s.postPollResult, logger)
	return s
}

// Run processes synchronizer events until ctx is cancelled. Call in a
// goroutine. On return both delivery paths are torn down.
func (s *Synchronizer) Run(ctx context.Context) {
	defer close(s.closed)

	s.logger.Info("synchronizer starting",
		zap.String("location", s.location),
		zap.Bool("preferPush", s.preferPush),
		zap.Bool("pushSupported", s.caps.PushSupported()),
	)

	if s.preferPush && s.caps.PushSupported() {
		s.channel.Subscribe(s.location)
		s.channel.Connect()
	}
	s.reevaluate()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("synchronizer stopping")
			s.poller.Stop()
			s.channel.Disconnect()
			return

		case ev := <-s.channel.Events():
			s.handlePushEvent(ev)

		case fn := <-s.cmds:
			fn()
		}
	}
}

// SubscribeUpdates registers a consumer callback for forwarded envelopes.
// The returned func removes the registration.
func (s *Synchronizer) SubscribeUpdates(cb func(UpdateEnvelope)) (cancel func()) {
	idCh := make(chan int, 1)
	s.do(func() {
		s.nextSubID++
		id := s.nextSubID
		s.updateSubs[id] = cb
		idCh <- id
	})
	return func() {
		select {
		case id := <-idCh:
			s.do(func() { delete(s.updateSubs, id) })
		default:
		}
	}
}

// SubscribeStatus registers a callback invoked on every status change.
func (s *Synchronizer) SubscribeStatus(cb func(Status)) (cancel func()) {
	idCh := make(chan int, 1)
	s.do(func() {
		s.nextSubID++
		id := s.nextSubID
		s.statusSubs[id] = cb
		idCh <- id
	})
	return func() {
		select {
		case id := <-idCh:
			s.do(func() { delete(s.statusSubs, id) })
		default:
		}
	}
}

// SetLocation switches the tracked location. The old subscription and poll
// target are torn down before the new ones start, so a stale update can
// never be misattributed.
func (s *Synchronizer) SetLocation(location string) {
	s.do(func() { s.applyLocation(location) })
}

// ForceRefresh triggers an immediate pull regardless of the active method.
func (s *Synchronizer) ForceRefresh() {
	s.do(func() {
		if s.poller.State().IsPolling {
			s.poller.Poll()
			return
		}
		// Push is authoritative; run a one-shot cycle so the consumer
		// still gets fresh data right away.
		s.poller.Start(s.location)
		s.poller.Poll()
		s.awaitingPush = true
	})
}

// Reconnect explicitly restarts the push client after a permanent failure.
func (s *Synchronizer) Reconnect() {
	s.do(func() {
		if s.caps.PushSupported() {
			s.channel.Connect()
		}
	})
}

// Status returns the current read-only status projection.
func (s *Synchronizer) Status() Status {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	return s.status
}

// do runs fn on the event loop. Blocks until queued; bails out if the
// synchronizer has stopped.
func (s *Synchronizer) do(fn func()) {
	select {
	case s.cmds <- fn:
	case <-s.closed:
	}
}

// postPollResult is the poller callback. It must never block: the event
// loop may currently be stopping this very poller. A dropped poll result
// is re-delivered by the next tick.
func (s *Synchronizer) postPollResult(res poll.Result) {
	select {
	case s.cmds <- func() { s.handlePollResult(res) }:
	case <-s.closed:
	default:
		s.logger.Warn("command queue full, dropping poll result",
			zap.String("location", res.Location),
		)
	}
}

func (s *Synchronizer) handlePushEvent(ev push.Event) {
	switch ev.Type {
	case push.EventStateChange:
		s.pushStatus = ev.Status
		if ev.Err != nil {
			s.lastErr = ev.Err
		}
		s.reevaluate()

	case push.EventUpdate:
		s.handlePushUpdate(ev.Update)
	}
}

func (s *Synchronizer) handlePushUpdate(u *push.Update) {
	if u.Location != s.location {
		s.logger.Debug("dropping push update for abandoned location",
			zap.String("location", u.Location),
			zap.String("active", s.location),
		)
		return
	}

	if s.awaitingPush {
		// First push-origin update for the active location: the pull
		// overlap that bridged the reconnect window can end now.
		s.awaitingPush = false
		s.poller.Stop()
		s.logger.Info("pull-to-push handover complete", zap.String("location", s.location))
	}

	s.forward(u.Location, u.Payload, MethodPush)
}

func (s *Synchronizer) handlePollResult(res poll.Result) {
	if res.Location != s.location {
		// In-flight fetch from before a location switch.
		return
	}

	if res.Err != nil {
		s.lastErr = res.Err
		s.pollErrored = true
		s.reevaluate()
		return
	}

	if s.pollErrored {
		s.pollErrored = false
		s.reevaluate()
	}
	s.forward(res.Location, res.Snapshot, MethodPull)
}

// forward assigns a local sequence number and hands the normalized envelope
// to consumers. Duplicate deliveries (same payload timestamp for the active
// location) are dropped so downstream invalidation stays idempotent.
func (s *Synchronizer) forward(location string, snap *aq.Snapshot, source Method) {
	if snap == nil || location != s.location {
		return
	}
	if snap.Timestamp != 0 && snap.Timestamp == s.lastForwardedTS {
		s.logger.Debug("dropping duplicate update",
			zap.String("location", location),
			zap.Int64("timestamp", snap.Timestamp),
		)
		return
	}
	s.lastForwardedTS = snap.Timestamp

	s.seq++
	env := UpdateEnvelope{
		Location:   location,
		Payload:    snap,
		ReceivedAt: time.Now(),
		Seq:        s.seq,
		Source:     source,
	}
	for _, cb := range s.updateSubs {
		cb(env)
	}
}

// applyLocation performs the three-step location switch: tear down the old
// method, reset per-location state, then arm the new location.
func (s *Synchronizer) applyLocation(location string) {
	if location == s.location {
		return
	}
	old := s.location

	if old != "" {
		s.channel.Unsubscribe(old)
	}
	s.poller.Stop()

	s.lastForwardedTS = 0
	s.pollErrored = false
	s.awaitingPush = false
	s.location = location

	s.channel.Subscribe(location)
	s.logger.Info("location switched",
		zap.String("from", old),
		zap.String("to", location),
	)

	s.reevaluate()
}

// reevaluate recomputes the authoritative method from the preference flag,
// the capability probe and live connection state, and arms or disarms the
// poller accordingly.
func (s *Synchronizer) reevaluate() {
	pushOK := s.preferPush && s.caps.PushSupported() && s.pushStatus.State == push.StateConnected

	var m Method
	switch {
	case pushOK:
		m = MethodPush
	case s.pollErrored:
		// Both paths are down. The push client keeps retrying on its own
		// backoff and the poller keeps ticking, so recovery is automatic;
		// this state exists to alarm the display.
		m = MethodNone
	default:
		m = MethodPull
	}

	if pushOK {
		if s.method != MethodPush && s.poller.State().IsPolling {
			// Pull stays armed until the first push-origin update lands,
			// so a reconnect without server re-delivery leaves no gap.
			s.awaitingPush = true
		}
	} else {
		s.awaitingPush = false
		if !s.poller.State().IsPolling {
			// Entering the pull path: start immediately with a manual
			// poll so the display isn't stale for a full interval.
			s.poller.Start(s.location)
			s.poller.Poll()
		}
	}

	if m != s.method {
		s.logger.Info("sync method changed",
			zap.Stringer("from", s.method),
			zap.Stringer("to", m),
			zap.Stringer("connectionState", s.pushStatus.State),
		)
	}
	s.method = m
	s.publishStatus()
}

func (s *Synchronizer) publishStatus() {
	st := Status{
		State:   s.pushStatus.State,
		Method:  s.method,
		Attempt: s.pushStatus.Attempt,
		LastErr: s.lastErr,
	}

	s.statusMu.Lock()
	changed := statusChanged(s.status, st)
	s.status = st
	s.statusMu.Unlock()

	if changed {
		for _, cb := range s.statusSubs {
			cb(st)
		}
	}
}

// statusChanged compares field by field. Comparing the structs (or the
// LastErr interfaces) directly would panic if LastErr ever held a
// non-comparable error type, so errors compare by nil-ness and message.
func statusChanged(old, new Status) bool {
	if old.State != new.State || old.Method != new.Method || old.Attempt != new.Attempt {
		return true
	}
	if (old.LastErr == nil) != (new.LastErr == nil) {
		return true
	}
	return old.LastErr != nil && old.LastErr.Error() != new.LastErr.Error()
}
