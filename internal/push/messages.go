package push

import (
	"encoding/json"

	"github.com/aqlens/airsync/internal/aq"
)

// Message types exchanged over the push channel. Every field rides in one
// envelope struct; absent fields are omitted on the wire.
const (
	msgTypeSubscribe   = "subscribe"
	msgTypeUnsubscribe = "unsubscribe"
	msgTypePing        = "ping"
	msgTypePong        = "pong"
	msgTypeAck         = "ack"
	msgTypeUpdate      = "update"
	msgTypeError       = "error"
)

type wireMessage struct {
	Type      string          `json:"type"`
	Location  string          `json:"location,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// Update is a decoded data-update message. The payload is always a full
// snapshot, never a delta: delivery order across a reconnect boundary is
// not guaranteed, so consumers must be able to apply any update standalone.
type Update struct {
	Location  string
	Payload   *aq.Snapshot
	Timestamp int64
}

// EventType discriminates events delivered to the consumer.
type EventType int

const (
	// EventStateChange reports a connection state transition. Err carries
	// the diagnostic cause when the transition was failure-driven; it is
	// informational only and never fatal to the consumer.
	EventStateChange EventType = iota
	// EventUpdate carries a data update for the active subscription.
	EventUpdate
)

// Event is the single stream the client emits toward its owner.
type Event struct {
	Type   EventType
	Status Status
	Update *Update
	Err    error
}
