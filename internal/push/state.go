package push

// State is the push-channel connection state. Exactly one state holds at
// any instant; Attempt in Status is meaningful only while Reconnecting.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// Status is a point-in-time observation of the connection state machine.
type Status struct {
	State   State
	Attempt int
}
