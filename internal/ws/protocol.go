package ws

import (
	"encoding/json"
	"fmt"

	"github.com/aqlens/airsync/internal/aq"
)

// Message types exchanged with push clients. The envelope matches what
// the agent's push client speaks; absent fields are omitted on the wire.
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

// Client message types for internal routing
type (
	subscribeRequest struct {
		location string
	}
	unsubscribeRequest struct {
		location string
	}
	pingRequest struct{}
)

// parseClientMessage parses a JSON envelope from a push client.
func parseClientMessage(data []byte) (any, error) {
	var msg wireMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal client message: %w", err)
	}

	switch msg.Type {
	case msgTypeSubscribe:
		return &subscribeRequest{location: msg.Location}, nil

	case msgTypeUnsubscribe:
		return &unsubscribeRequest{location: msg.Location}, nil

	case msgTypePing:
		return &pingRequest{}, nil

	default:
		return nil, fmt.Errorf("unknown message type: %q", msg.Type)
	}
}

// buildAckMessage acknowledges a subscribe or unsubscribe.
func buildAckMessage(location string) []byte {
	b, _ := json.Marshal(wireMessage{Type: msgTypeAck, Location: location})
	return b
}

// buildPongMessage answers an application-level ping.
func buildPongMessage() []byte {
	b, _ := json.Marshal(wireMessage{Type: msgTypePong})
	return b
}

// buildErrorMessage reports a rejected request.
func buildErrorMessage(location, reason string) []byte {
	b, _ := json.Marshal(wireMessage{Type: msgTypeError, Location: location, Error: reason})
	return b
}

// buildUpdateMessage wraps a snapshot for broadcast.
func buildUpdateMessage(snap *aq.Snapshot) ([]byte, error) {
	payload, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	b, err := json.Marshal(wireMessage{
		Type:      msgTypeUpdate,
		Location:  snap.Location,
		Payload:   payload,
		Timestamp: snap.Timestamp,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal update envelope: %w", err)
	}
	return b, nil
}
