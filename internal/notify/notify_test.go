package notify

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	stdsync "sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/aqlens/airsync/internal/sync"
)

type recordedRequest struct {
	title    string
	priority string
	tags     string
	auth     string
	body     string
}

func newNtfyServer(t *testing.T) (*httptest.Server, chan recordedRequest) {
	t.Helper()
	recorded := make(chan recordedRequest, 8)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		recorded <- recordedRequest{
			title:    r.Header.Get("Title"),
			priority: r.Header.Get("Priority"),
			tags:     r.Header.Get("Tags"),
			auth:     r.Header.Get("Authorization"),
			body:     string(body),
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, recorded
}

func TestSendOutage(t *testing.T) {
	srv, recorded := newNtfyServer(t)

	client := NewClient(&Config{
		Enabled:  true,
		Server:   srv.URL,
		Topic:    "airsync",
		Priority: "default",
		Tags:     "satellite",
		Token:    "tk_secret",
	}, zap.NewNop())

	err := client.SendOutage(context.Background(), "Delhi", errors.New("connection refused"))
	if err != nil {
		t.Fatalf("SendOutage: %v", err)
	}

	req := <-recorded
	if req.title != "Sync Unavailable: Delhi" {
		t.Errorf("title = %q", req.title)
	}
	if req.priority != "high" {
		t.Errorf("priority = %q, want high", req.priority)
	}
	if req.tags != "satellite,x" {
		t.Errorf("tags = %q", req.tags)
	}
	if req.auth != "Bearer tk_secret" {
		t.Errorf("auth = %q", req.auth)
	}
}

func TestSendRecovery(t *testing.T) {
	srv, recorded := newNtfyServer(t)

	client := NewClient(&Config{
		Enabled:  true,
		Server:   srv.URL,
		Topic:    "airsync",
		Priority: "low",
		Tags:     "satellite",
	}, zap.NewNop())

	err := client.SendRecovery(context.Background(), "Delhi", "pull", 42*time.Second)
	if err != nil {
		t.Fatalf("SendRecovery: %v", err)
	}

	req := <-recorded
	if req.title != "Sync Restored: Delhi" {
		t.Errorf("title = %q", req.title)
	}
	if req.priority != "low" {
		t.Errorf("priority = %q, want configured priority", req.priority)
	}
}

func TestDisabledClientSendsNothing(t *testing.T) {
	srv, recorded := newNtfyServer(t)

	client := NewClient(&Config{Enabled: false, Server: srv.URL, Topic: "airsync"}, zap.NewNop())
	if err := client.SendOutage(context.Background(), "Delhi", nil); err != nil {
		t.Fatalf("SendOutage: %v", err)
	}

	select {
	case req := <-recorded:
		t.Fatalf("unexpected request: %+v", req)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestServerErrorReturned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	client := NewClient(&Config{
		Enabled: true, Server: srv.URL, Topic: "airsync", Priority: "default",
	}, zap.NewNop())

	if err := client.SendOutage(context.Background(), "Delhi", nil); err == nil {
		t.Fatal("expected error for 403 response")
	}
}

type fakeNotifier struct {
	mu         stdsync.Mutex
	outages    []string
	recoveries []string
}

func (f *fakeNotifier) SendOutage(_ context.Context, location string, _ error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outages = append(f.outages, location)
	return nil
}

func (f *fakeNotifier) SendRecovery(_ context.Context, location, _ string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recoveries = append(f.recoveries, location)
	return nil
}

func TestWatcherFiresOncePerOutage(t *testing.T) {
	fn := &fakeNotifier{}
	w := NewWatcher(fn, "Delhi", zap.NewNop())

	w.Observe(sync.Status{Method: sync.MethodPull})
	w.Observe(sync.Status{Method: sync.MethodNone, LastErr: errors.New("down")})
	w.Observe(sync.Status{Method: sync.MethodNone, LastErr: errors.New("still down")})
	w.Observe(sync.Status{Method: sync.MethodPull})
	w.Observe(sync.Status{Method: sync.MethodPush})

	if len(fn.outages) != 1 {
		t.Fatalf("outages = %d, want 1", len(fn.outages))
	}
	if len(fn.recoveries) != 1 {
		t.Fatalf("recoveries = %d, want 1", len(fn.recoveries))
	}
}

func TestWatcherLocationSwitchClosesOutage(t *testing.T) {
	fn := &fakeNotifier{}
	w := NewWatcher(fn, "Delhi", zap.NewNop())

	w.Observe(sync.Status{Method: sync.MethodNone})
	w.SetLocation("Mumbai")
	w.Observe(sync.Status{Method: sync.MethodPull})

	if len(fn.recoveries) != 0 {
		t.Fatalf("recoveries = %d, want 0 after location switch", len(fn.recoveries))
	}
}

func TestWatcherConcurrentSetLocation(t *testing.T) {
	fn := &fakeNotifier{}
	w := NewWatcher(fn, "Delhi", zap.NewNop())

	var wg stdsync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			w.Observe(sync.Status{Method: sync.MethodNone})
			w.Observe(sync.Status{Method: sync.MethodPull})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			w.SetLocation("Mumbai")
			w.SetLocation("Delhi")
		}
	}()
	wg.Wait()
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"disabled ignores everything", Config{Enabled: false}, false},
		{"enabled without topic", Config{Enabled: true, Priority: "default"}, true},
		{"bad priority", Config{Enabled: true, Topic: "t", Priority: "loud"}, true},
		{"valid", Config{Enabled: true, Topic: "t", Priority: "urgent"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}
