package push

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/aqlens/airsync/internal/aq"
	"github.com/aqlens/airsync/internal/backoff"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024 // 512KB

	// Silence from the server for longer than this many heartbeat
	// intervals is treated as a dead connection.
	deadlineFactor = 3

	defaultHeartbeat   = 15 * time.Second
	defaultMaxAttempts = 5

	eventBufferSize = 64
)

// Config holds the externally supplied push-channel settings.
type Config struct {
	// URL is the full ws:// or wss:// endpoint of the push channel.
	URL string

	// MaxAttempts bounds consecutive reconnect attempts. Once exceeded the
	// client stops retrying and stays Disconnected until Connect is called
	// again. Zero means the default of 5.
	MaxAttempts int

	// Heartbeat is the ping interval while Connected. Zero means 15s.
	Heartbeat time.Duration

	// Backoff computes the delay before each reconnect attempt.
	Backoff backoff.Policy
}

// Client owns one push-channel transport connection and its lifecycle:
// connect, heartbeat, reconnect with backoff, subscribe by location.
//
// State transitions, data updates and diagnostics are delivered on a single
// event channel. The client never blocks on a slow consumer: if the buffer
// fills, events are dropped with a warning.
type Client struct {
	cfg    Config
	dialer *websocket.Dialer
	logger *zap.Logger
	events chan Event

	mu          sync.Mutex
	state       State
	attempt     int
	gen         int // bumped per dial and teardown to invalidate stale callbacks
	conn        *websocket.Conn
	desired     string // location the caller wants subscribed; re-sent on every Connected
	reconnTimer *time.Timer
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.Heartbeat == 0 {
		cfg.Heartbeat = defaultHeartbeat
	}
	if cfg.Backoff == (backoff.Policy{}) {
		cfg.Backoff = backoff.Reconnect
	}

	return &Client{
		cfg:    cfg,
		dialer: websocket.DefaultDialer,
		logger: logger,
		events: make(chan Event, eventBufferSize),
		state:  StateDisconnected,
	}
}

// Events returns the stream of state changes and data updates.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Status reports the current connection state.
func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{State: c.state, Attempt: c.attempt}
}

// Connected reports whether the channel is currently usable.
func (c *Client) Connected() bool {
	return c.Status().State == StateConnected
}

// Connect starts the connection state machine. It is idempotent: a no-op
// unless the client is fully Disconnected. After a permanent failure this
// is the only way to restart retrying.
func (c *Client) Connect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateDisconnected {
		return
	}
	c.attempt = 0
	c.startDialLocked()
}

// Disconnect tears down the transport, cancels any pending reconnect timer
// and transitions to Disconnected. The desired subscription is kept and
// re-sent if Connect is called later.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen++
	if c.reconnTimer != nil {
		c.reconnTimer.Stop()
		c.reconnTimer = nil
	}

	conn := c.conn
	c.conn = nil
	if c.state != StateDisconnected {
		c.setStateLocked(StateDisconnected, nil)
	}

	if conn != nil {
		deadline := time.Now().Add(writeWait)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		_ = conn.Close()
	}
}

// Subscribe records location as the desired subscription and sends the
// subscribe message if currently Connected. Any previous subscription is
// unsubscribed first. The desired subscription is re-sent on every
// Connected transition, including after reconnects.
func (c *Client) Subscribe(location string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.desired == location {
		return
	}
	if c.desired != "" && c.state == StateConnected {
		c.sendLocked(wireMessage{Type: msgTypeUnsubscribe, Location: c.desired})
	}
	c.desired = location
	if location != "" && c.state == StateConnected {
		c.sendLocked(wireMessage{Type: msgTypeSubscribe, Location: location})
	}
}

// Unsubscribe drops the desired subscription if it matches location.
func (c *Client) Unsubscribe(location string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.desired != location {
		return
	}
	if c.state == StateConnected {
		c.sendLocked(wireMessage{Type: msgTypeUnsubscribe, Location: location})
	}
	c.desired = ""
}

func (c *Client) startDialLocked() {
	c.gen++
	gen := c.gen
	c.setStateLocked(StateConnecting, nil)
	go c.dial(gen)
}

func (c *Client) dial(gen int) {
	conn, resp, err := c.dialer.Dial(c.cfg.URL, nil)
	if resp != nil {
		_ = resp.Body.Close()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gen != gen || c.state != StateConnecting {
		// Disconnect or a newer dial raced us.
		if conn != nil {
			_ = conn.Close()
		}
		return
	}

	if err != nil {
		c.logger.Debug("push dial failed",
			zap.String("url", c.cfg.URL),
			zap.Int("attempt", c.attempt),
			zap.Error(err),
		)
		c.scheduleReconnectLocked(err)
		return
	}

	c.conn = conn
	c.attempt = 0
	conn.SetReadLimit(maxMessageSize)
	c.setStateLocked(StateConnected, nil)

	if c.desired != "" {
		c.sendLocked(wireMessage{Type: msgTypeSubscribe, Location: c.desired})
	}

	go c.readLoop(conn)
	go c.heartbeatLoop(conn)
}

// connLost handles transport errors, abnormal closures and heartbeat
// timeouts. They all route through the same Reconnecting transition; the
// cause is diagnostic only.
func (c *Client) connLost(conn *websocket.Conn, cause error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != conn {
		// Stale callback from a superseded connection.
		return
	}
	c.conn = nil
	_ = conn.Close()

	c.logger.Debug("push connection lost", zap.Error(cause))
	c.attempt = 0
	c.scheduleReconnectLocked(cause)
}

func (c *Client) scheduleReconnectLocked(cause error) {
	if c.attempt >= c.cfg.MaxAttempts {
		c.logger.Warn("push reconnect attempts exhausted",
			zap.Int("attempts", c.attempt),
			zap.Error(cause),
		)
		c.setStateLocked(StateDisconnected, cause)
		return
	}

	delay := c.cfg.Backoff.Delay(c.attempt)
	c.setStateLocked(StateReconnecting, cause)
	gen := c.gen
	c.reconnTimer = time.AfterFunc(delay, func() { c.retryDial(gen) })
}

func (c *Client) retryDial(gen int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gen != gen || c.state != StateReconnecting {
		return
	}
	c.attempt++
	c.startDialLocked()
}

func (c *Client) setStateLocked(s State, cause error) {
	c.state = s
	c.logger.Debug("push state transition",
		zap.Stringer("state", s),
		zap.Int("attempt", c.attempt),
	)
	c.emit(Event{
		Type:   EventStateChange,
		Status: Status{State: s, Attempt: c.attempt},
		Err:    cause,
	})
}

func (c *Client) sendLocked(msg wireMessage) {
	if c.conn == nil {
		return
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(msg); err != nil {
		// The read loop will observe the broken connection and trigger
		// the reconnect path shortly.
		c.logger.Warn("push write failed",
			zap.String("type", msg.Type),
			zap.Error(err),
		)
	}
}

func (c *Client) readLoop(conn *websocket.Conn) {
	deadline := time.Duration(deadlineFactor) * c.cfg.Heartbeat
	_ = conn.SetReadDeadline(time.Now().Add(deadline))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(deadline))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.connLost(conn, err)
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(deadline))
		c.handleMessage(data)
	}
}

func (c *Client) heartbeatLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(c.cfg.Heartbeat)
	defer ticker.Stop()

	for range ticker.C {
		c.mu.Lock()
		current := c.conn == conn
		c.mu.Unlock()
		if !current {
			return
		}

		deadline := time.Now().Add(writeWait)
		if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
			c.connLost(conn, err)
			return
		}
	}
}

func (c *Client) handleMessage(data []byte) {
	var msg wireMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.logger.Debug("failed to parse push message", zap.Error(err))
		return
	}

	switch msg.Type {
	case msgTypeUpdate:
		c.handleUpdate(&msg)

	case msgTypeAck:
		c.logger.Debug("subscription ack", zap.String("location", msg.Location))

	case msgTypePong:
		// App-level pong; read deadline already refreshed above.

	case msgTypeError:
		c.logger.Warn("push server error", zap.String("error", msg.Error))

	default:
		c.logger.Debug("ignoring push message", zap.String("type", msg.Type))
	}
}

func (c *Client) handleUpdate(msg *wireMessage) {
	c.mu.Lock()
	active := c.desired
	c.mu.Unlock()

	// A data-update for a location other than the active subscription is
	// discarded, not queued. It can arrive after a late unsubscribe.
	if msg.Location != active {
		c.logger.Debug("discarding update for inactive location",
			zap.String("location", msg.Location),
			zap.String("active", active),
		)
		return
	}

	var snap aq.Snapshot
	if err := json.Unmarshal(msg.Payload, &snap); err != nil {
		c.logger.Warn("failed to decode update payload",
			zap.String("location", msg.Location),
			zap.Error(err),
		)
		return
	}

	c.emit(Event{
		Type: EventUpdate,
		Update: &Update{
			Location:  msg.Location,
			Payload:   &snap,
			Timestamp: msg.Timestamp,
		},
	})
}

func (c *Client) emit(ev Event) {
	select {
	case c.events <- ev:
	default:
		c.logger.Warn("push event buffer full, dropping event", zap.Int("type", int(ev.Type)))
	}
}
