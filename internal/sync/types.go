package sync

import (
	"time"

	"github.com/aqlens/airsync/internal/aq"
	"github.com/aqlens/airsync/internal/push"
)

// Method identifies which delivery path produced an update, or which path
// is currently authoritative. It is derived from connection state and
// capability flags, never stored independently.
type Method int

const (
	MethodNone Method = iota
	MethodPull
	MethodPush
)

func (m Method) String() string {
	switch m {
	case MethodPush:
		return "push"
	case MethodPull:
		return "pull"
	default:
		return "none"
	}
}

// UpdateEnvelope is the normalized output of the synchronizer. Consumers
// only ever see this shape; origin-specific fields never leak upward.
type UpdateEnvelope struct {
	Location   string       `json:"location"`
	Payload    *aq.Snapshot `json:"payload"`
	ReceivedAt time.Time    `json:"received_at"`
	Seq        uint64       `json:"seq"`
	Source     Method       `json:"-"`
}

// Status is the read-only projection of synchronizer state for display.
// It is recomputed on every internal state change and never mutates
// anything.
type Status struct {
	State   push.State
	Method  Method
	Attempt int
	LastErr error
}

// Capabilities tells the synchronizer whether a push channel can exist at
// all in this environment. Injected so the decision logic is testable
// without a real transport.
type Capabilities interface {
	PushSupported() bool
}

// StaticCapabilities is the common fixed-answer implementation, driven by
// the push enable flag in configuration.
type StaticCapabilities bool

func (c StaticCapabilities) PushSupported() bool { return bool(c) }

// PushChannel is the part of the push client the synchronizer drives.
// *push.Client satisfies it; tests substitute a scripted fake.
type PushChannel interface {
	Connect()
	Disconnect()
	Subscribe(location string)
	Unsubscribe(location string)
	Events() <-chan push.Event
}
