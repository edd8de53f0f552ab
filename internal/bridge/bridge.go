package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	gosync "sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/aqlens/airsync/internal/sync"
	"github.com/aqlens/airsync/internal/view"
)

// Syncer is the synchronizer surface the bridge consumes.
type Syncer interface {
	SubscribeUpdates(cb func(sync.UpdateEnvelope)) (cancel func())
	SubscribeStatus(cb func(sync.Status)) (cancel func())
	Status() sync.Status
	ForceRefresh()
	Reconnect()
	SetLocation(location string)
}

// Bridge exposes the synchronizer to dashboard frontends: an SSE stream of
// updates and status transitions, a status snapshot endpoint, and control
// endpoints for refresh, reconnect and location switching.
type Bridge struct {
	syncer Syncer
	view   *view.View
	logger *zap.Logger

	mu       gosync.RWMutex
	location string
	lastSeq  uint64
	clients  map[*sseClient]bool
}

// sseClient represents a connected SSE subscriber.
type sseClient struct {
	dataCh  chan []byte
	doneCh  chan struct{}
	flusher http.Flusher
	writer  http.ResponseWriter
}

// New creates a bridge for the given initial location.
func New(syncer Syncer, v *view.View, location string, logger *zap.Logger) *Bridge {
	return &Bridge{
		syncer:   syncer,
		view:     v,
		logger:   logger,
		location: location,
		clients:  make(map[*sseClient]bool),
	}
}

// Run wires the bridge into the synchronizer's subscription surface and
// fans events out to SSE clients until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context) {
	cancelUpdates := b.syncer.SubscribeUpdates(func(env sync.UpdateEnvelope) {
		b.mu.Lock()
		b.lastSeq = env.Seq
		b.mu.Unlock()
		b.broadcastEvent("update", envelopeDTO(env))
	})
	defer cancelUpdates()

	cancelStatus := b.syncer.SubscribeStatus(func(st sync.Status) {
		b.broadcastEvent("status", b.statusDTO(st))
	})
	defer cancelStatus()

	b.logger.Info("bridge running", zap.String("location", b.Location()))
	<-ctx.Done()
	b.logger.Info("bridge stopping")
}

// Router builds the HTTP surface.
func (b *Bridge) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	r.Get("/events", b.handleSSE)
	r.Get("/status", b.handleStatus)
	r.Post("/refresh", b.handleRefresh)
	r.Post("/reconnect", b.handleReconnect)
	r.Put("/location", b.handleLocation)

	return r
}

// Location returns the location the bridge currently reports on.
func (b *Bridge) Location() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.location
}

// handleSSE streams updates and status transitions to one subscriber.
func (b *Bridge) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	client := &sseClient{
		dataCh:  make(chan []byte, 10),
		doneCh:  make(chan struct{}),
		flusher: flusher,
		writer:  w,
	}

	b.addClient(client)
	defer b.removeClient(client)

	b.logger.Info("sse client connected",
		zap.String("remote_addr", r.RemoteAddr),
	)

	// Send initial snapshot: current status plus the latest cached update.
	if err := b.sendEvent(client, "status", b.statusDTO(b.syncer.Status())); err != nil {
		b.logger.Error("failed to send initial status", zap.Error(err))
		return
	}
	if env, ok := b.view.Latest(b.Location()); ok {
		if err := b.sendEvent(client, "update", envelopeDTO(env)); err != nil {
			b.logger.Error("failed to send initial update", zap.Error(err))
			return
		}
	}

	// Stream events
	for {
		select {
		case <-r.Context().Done():
			b.logger.Info("sse client disconnected",
				zap.String("remote_addr", r.RemoteAddr),
			)
			return
		case <-client.doneCh:
			return
		case eventData := <-client.dataCh:
			if _, err := client.writer.Write(eventData); err != nil {
				b.logger.Debug("failed to write to client", zap.Error(err))
				return
			}
			client.flusher.Flush()
		}
	}
}

// handleStatus serves the connection status surface as one JSON document.
func (b *Bridge) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, b.statusDTO(b.syncer.Status()))
}

// handleRefresh triggers an immediate pull.
func (b *Bridge) handleRefresh(w http.ResponseWriter, r *http.Request) {
	b.syncer.ForceRefresh()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "refresh triggered"})
}

// handleReconnect restarts the push channel after a permanent failure.
func (b *Bridge) handleReconnect(w http.ResponseWriter, r *http.Request) {
	b.syncer.Reconnect()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "reconnect triggered"})
}

type locationRequest struct {
	Location string `json:"location"`
}

// handleLocation switches the tracked location.
func (b *Bridge) handleLocation(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Location == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "body must be {\"location\": \"...\"}"})
		return
	}

	b.mu.Lock()
	b.location = req.Location
	b.mu.Unlock()
	b.syncer.SetLocation(req.Location)

	b.logger.Info("location switched via bridge", zap.String("location", req.Location))
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "location switched", "location": req.Location})
}

func (b *Bridge) addClient(client *sseClient) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clients[client] = true
}

func (b *Bridge) removeClient(client *sseClient) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.clients[client]; ok {
		delete(b.clients, client)
		close(client.doneCh)
	}
}

// broadcastEvent fans one event out to every connected subscriber.
func (b *Bridge) broadcastEvent(eventType string, payload any) {
	eventData, err := b.formatEvent(eventType, payload)
	if err != nil {
		b.logger.Warn("failed to format event", zap.Error(err))
		return
	}

	b.mu.RLock()
	clients := make([]*sseClient, 0, len(b.clients))
	for client := range b.clients {
		clients = append(clients, client)
	}
	b.mu.RUnlock()

	for _, client := range clients {
		select {
		case client.dataCh <- eventData:
		default:
			// Channel full, client is slow
			b.logger.Debug("client channel full, dropping event",
				zap.String("event", eventType),
			)
		}
	}
}

func (b *Bridge) sendEvent(client *sseClient, eventType string, payload any) error {
	eventData, err := b.formatEvent(eventType, payload)
	if err != nil {
		return err
	}

	if _, err := client.writer.Write(eventData); err != nil {
		return err
	}
	client.flusher.Flush()
	return nil
}

func (b *Bridge) formatEvent(eventType string, payload any) ([]byte, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	b.mu.RLock()
	seq := b.lastSeq
	b.mu.RUnlock()

	event := fmt.Sprintf("event: %s\nid: %d\ndata: %s\n\n", eventType, seq, jsonData)
	return []byte(event), nil
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
