package bridge

import (
	"time"

	"github.com/aqlens/airsync/internal/aq"
	"github.com/aqlens/airsync/internal/sync"
)

// UpdateDTO is the wire form of a forwarded update.
type UpdateDTO struct {
	Location   string       `json:"location"`
	Payload    *aq.Snapshot `json:"payload"`
	ReceivedAt time.Time    `json:"received_at"`
	Seq        uint64       `json:"seq"`
	Source     string       `json:"source"`
}

func envelopeDTO(env sync.UpdateEnvelope) UpdateDTO {
	return UpdateDTO{
		Location:   env.Location,
		Payload:    env.Payload,
		ReceivedAt: env.ReceivedAt,
		Seq:        env.Seq,
		Source:     env.Source.String(),
	}
}

// StatusDTO is the wire form of the connection status surface.
type StatusDTO struct {
	Location        string `json:"location"`
	ConnectionState string `json:"connection_state"`
	Method          string `json:"method"`
	Attempt         int    `json:"attempt"`
	LastError       string `json:"last_error,omitempty"`
	Stale           bool   `json:"stale"`
}

func (b *Bridge) statusDTO(st sync.Status) StatusDTO {
	location := b.Location()
	dto := StatusDTO{
		Location:        location,
		ConnectionState: st.State.String(),
		Method:          st.Method.String(),
		Attempt:         st.Attempt,
		Stale:           b.view.Stale(location),
	}
	if st.LastErr != nil {
		dto.LastError = st.LastErr.Error()
	}
	return dto
}
