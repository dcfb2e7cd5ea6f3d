package hud

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func newTestBroadcaster(t *testing.T, cfg Config) (*Broadcaster, *httptest.Server) {
	t.Helper()
	b := New(cfg, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go b.Run(ctx)

	srv := httptest.NewServer(b.Handler())
	t.Cleanup(srv.Close)
	return b, srv
}

func dial(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/hud"
	if token != "" {
		url += "?token=" + token
	}
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v (status %v)", err, resp)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestBroadcaster_RejectsMissingToken(t *testing.T) {
	b := New(Config{Token: "secret"}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)

	srv := httptest.NewServer(b.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/hud"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected dial to fail without token")
	}
	if resp == nil || resp.StatusCode != 401 {
		t.Errorf("expected 401, got %v", resp)
	}
}

func TestBroadcaster_AcceptsCorrectToken(t *testing.T) {
	b, srv := newTestBroadcaster(t, Config{Token: "secret"})
	_ = b
	dial(t, srv, "secret")
}

func TestBroadcaster_EmitsConfigOnConnect(t *testing.T) {
	_, srv := newTestBroadcaster(t, Config{})
	conn := dial(t, srv, "")

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	var msg map[string]any
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg["type"] != "config" {
		t.Errorf("first message type = %v, want config", msg["type"])
	}
}

func TestBroadcaster_ScrollThrottledToHudHz(t *testing.T) {
	b := New(Config{HudHz: 10}, nil) // min interval 100ms

	b.PublishScroll(1, 0.5, 0)

	b.mu.Lock()
	last := b.lastScrollMs
	b.mu.Unlock()
	if last != 0 {
		t.Fatalf("lastScrollMs = %d, want 0", last)
	}

	// Within the 100ms window: should not update lastScrollMs.
	b.PublishScroll(1, 0.5, 50)
	b.mu.Lock()
	last = b.lastScrollMs
	b.mu.Unlock()
	if last != 0 {
		t.Errorf("scroll at 50ms should have been throttled, lastScrollMs = %d", last)
	}

	// At the boundary: allowed.
	b.PublishScroll(1, 0.5, 100)
	b.mu.Lock()
	last = b.lastScrollMs
	b.mu.Unlock()
	if last != 100 {
		t.Errorf("scroll at 100ms should have been allowed, lastScrollMs = %d", last)
	}
}

func TestBroadcaster_CameraGatedOnExpandedClient(t *testing.T) {
	b := New(Config{CameraHz: 30, CameraFrameSkip: 1}, nil)
	// No expanded client registered: PublishCamera must be a no-op (and, in
	// particular, must not record a camera send time).
	b.PublishCamera([]byte{0xFF, 0xD8}, 320, 240, 0)
	b.mu.Lock()
	have := b.haveLastCamera
	b.mu.Unlock()
	if have {
		t.Error("camera should not publish with zero expanded clients")
	}
}

func TestBroadcaster_CameraFrameSkipDivides(t *testing.T) {
	b := New(Config{CameraHz: 1000, CameraFrameSkip: 3}, nil)
	b.hub.expandedClients.Store(1)

	for i := int64(1); i <= 6; i++ {
		before := b.cameraFrameNum
		b.PublishCamera([]byte{0xFF, 0xD8}, 10, 10, i)
		after := b.cameraFrameNum
		if after != before+1 {
			t.Fatalf("cameraFrameNum should increment every call")
		}
	}
	// With skip=3, only frame numbers 3 and 6 should have been allowed.
	b.mu.Lock()
	last := b.lastCameraMs
	b.mu.Unlock()
	if last != 6 {
		t.Errorf("lastCameraMs = %d, want 6 (last allowed frame)", last)
	}
}

func TestBroadcaster_HideBypassesThrottle(t *testing.T) {
	b, srv := newTestBroadcaster(t, Config{})
	conn := dial(t, srv, "")

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err != nil {
		t.Fatalf("read config message: %v", err)
	}

	// Give the hub a moment to finish registering before we broadcast.
	time.Sleep(50 * time.Millisecond)
	b.PublishHide()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read hide message: %v", err)
	}
	var msg map[string]any
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg["type"] != "hide" {
		t.Errorf("message type = %v, want hide", msg["type"])
	}
}
