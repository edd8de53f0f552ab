package bridge

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/aqlens/airsync/internal/aq"
	"github.com/aqlens/airsync/internal/push"
	"github.com/aqlens/airsync/internal/sync"
	"github.com/aqlens/airsync/internal/view"
)

type fakeSyncer struct {
	updateCb func(sync.UpdateEnvelope)
	statusCb func(sync.Status)

	refreshes  int
	reconnects int
	locations  []string
	status     sync.Status
}

func (f *fakeSyncer) SubscribeUpdates(cb func(sync.UpdateEnvelope)) func() {
	f.updateCb = cb
	return func() {}
}

func (f *fakeSyncer) SubscribeStatus(cb func(sync.Status)) func() {
	f.statusCb = cb
	return func() {}
}

func (f *fakeSyncer) Status() sync.Status         { return f.status }
func (f *fakeSyncer) ForceRefresh()               { f.refreshes++ }
func (f *fakeSyncer) Reconnect()                  { f.reconnects++ }
func (f *fakeSyncer) SetLocation(location string) { f.locations = append(f.locations, location) }

func newTestBridge(t *testing.T) (*fakeSyncer, *Bridge, *httptest.Server) {
	t.Helper()
	fs := &fakeSyncer{status: sync.Status{State: push.StateConnected, Method: sync.MethodPush}}
	v := view.New(nil, zap.NewNop())

	b := New(fs, v, "Delhi", zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go b.Run(ctx)
	t.Cleanup(cancel)

	// Run registers the subscriptions asynchronously.
	deadline := time.Now().Add(time.Second)
	for fs.updateCb == nil && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if fs.updateCb == nil {
		t.Fatal("bridge never subscribed to updates")
	}

	srv := httptest.NewServer(b.Router())
	t.Cleanup(srv.Close)
	return fs, b, srv
}

func TestStatusEndpoint(t *testing.T) {
	_, _, srv := newTestBridge(t)

	resp, err := http.Get(srv.URL + "/status")
	if err != nil {
		t.Fatalf("GET /status: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var dto StatusDTO
	if err := json.NewDecoder(resp.Body).Decode(&dto); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dto.Location != "Delhi" {
		t.Errorf("location = %q, want Delhi", dto.Location)
	}
	if dto.Method != "push" {
		t.Errorf("method = %q, want push", dto.Method)
	}
}

func TestRefreshAndReconnect(t *testing.T) {
	fs, _, srv := newTestBridge(t)

	resp, err := http.Post(srv.URL+"/refresh", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /refresh: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("refresh status = %d, want 202", resp.StatusCode)
	}
	if fs.refreshes != 1 {
		t.Errorf("refreshes = %d, want 1", fs.refreshes)
	}

	resp, err = http.Post(srv.URL+"/reconnect", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /reconnect: %v", err)
	}
	resp.Body.Close()
	if fs.reconnects != 1 {
		t.Errorf("reconnects = %d, want 1", fs.reconnects)
	}
}

func TestLocationSwitch(t *testing.T) {
	fs, b, srv := newTestBridge(t)

	req, _ := http.NewRequest(http.MethodPut, srv.URL+"/location", strings.NewReader(`{"location":"Mumbai"}`))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PUT /location: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}
	if len(fs.locations) != 1 || fs.locations[0] != "Mumbai" {
		t.Errorf("locations = %v, want [Mumbai]", fs.locations)
	}
	if b.Location() != "Mumbai" {
		t.Errorf("bridge location = %q, want Mumbai", b.Location())
	}
}

func TestLocationSwitchRejectsEmptyBody(t *testing.T) {
	_, _, srv := newTestBridge(t)

	req, _ := http.NewRequest(http.MethodPut, srv.URL+"/location", strings.NewReader(`{}`))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PUT /location: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestSSEStreamsUpdates(t *testing.T) {
	fs, _, srv := newTestBridge(t)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /events: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content-type = %q", ct)
	}

	reader := bufio.NewReader(resp.Body)

	// Initial event is the current status.
	event, data := readSSEEvent(t, reader)
	if event != "status" {
		t.Fatalf("first event = %q, want status", event)
	}

	// A forwarded envelope becomes an update event.
	fs.updateCb(sync.UpdateEnvelope{
		Location:   "Delhi",
		Payload:    &aq.Snapshot{Location: "Delhi", AQI: 88, Timestamp: 5000},
		ReceivedAt: time.Now(),
		Seq:        7,
		Source:     sync.MethodPush,
	})

	event, data = readSSEEvent(t, reader)
	if event != "update" {
		t.Fatalf("event = %q, want update", event)
	}

	var dto UpdateDTO
	if err := json.Unmarshal([]byte(data), &dto); err != nil {
		t.Fatalf("decode update: %v", err)
	}
	if dto.Seq != 7 || dto.Payload.AQI != 88 {
		t.Errorf("unexpected update: %+v", dto)
	}
	if dto.Source != "push" {
		t.Errorf("source = %q, want push", dto.Source)
	}
}

// readSSEEvent reads one "event:/id:/data:" block from the stream.
func readSSEEvent(t *testing.T, reader *bufio.Reader) (event, data string) {
	t.Helper()
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read sse line: %v", err)
		}
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		case line == "" && event != "":
			return event, data
		}
	}
}
