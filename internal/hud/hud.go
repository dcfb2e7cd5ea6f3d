// Package hud implements HudBroadcaster (spec §4.8, §6): a localhost
// WebSocket publisher that fans scroll, touchproof, and camera-preview
// events out to a HUD renderer, throttled per message type and with no
// buffering beyond the latest known value.
package hud

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ErrHudClientError marks a malformed inbound client message; it is logged,
// the client is dropped, the broadcaster continues (spec §7).
var ErrHudClientError = errors.New("hud: client error")

// ErrHudPortInUse is fatal at startup (spec §7).
var ErrHudPortInUse = errors.New("hud: port in use")

// Config holds the HUD surface of spec §6's CLI/config table.
type Config struct {
	Port            uint16
	Token           string
	HudHz           uint32
	CameraHz        uint32
	CameraFrameSkip uint32
}

// DefaultConfig returns spec §6's defaults.
func DefaultConfig() Config {
	return Config{
		Port:            8765,
		HudHz:           60,
		CameraHz:        30,
		CameraFrameSkip: 3,
	}
}

// Broadcaster is the HudBroadcaster. It owns the client set and applies
// per-message-type throttling using caller-supplied frame timestamps, so
// the frame thread's throttle decisions stay deterministic and never touch
// a wall clock (spec §5 "frame thread never suspends on I/O").
type Broadcaster struct {
	cfg    Config
	logger *slog.Logger
	hub    *hub

	mu             sync.Mutex
	lastScrollMs   int64
	lastTPMs       int64
	lastCameraMs   int64
	haveLastScroll bool
	haveLastTP     bool
	haveLastCamera bool
	cameraFrameNum uint32

	sessionToken string
}

// New returns a Broadcaster using cfg. A missing Token means no query
// parameter is required at upgrade time.
func New(cfg Config, logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.Port == 0 {
		cfg.Port = def.Port
	}
	if cfg.HudHz == 0 {
		cfg.HudHz = def.HudHz
	}
	if cfg.CameraHz == 0 {
		cfg.CameraHz = def.CameraHz
	}
	if cfg.CameraFrameSkip == 0 {
		cfg.CameraFrameSkip = def.CameraFrameSkip
	}
	token := cfg.Token
	if token == "" {
		token = uuid.NewString()
	}
	return &Broadcaster{
		cfg:          cfg,
		logger:       logger,
		hub:          newHub(logger),
		sessionToken: token,
	}
}

// SessionToken returns the token clients must present in `?token=`, when
// one is configured.
func (b *Broadcaster) SessionToken() string {
	return b.sessionToken
}

// Run drives the client registry until ctx is canceled.
func (b *Broadcaster) Run(ctx context.Context) {
	b.hub.run(ctx)
}

// ClientCount reports the number of currently connected HUD clients.
func (b *Broadcaster) ClientCount() int {
	return b.hub.clientCount()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler returns the http.HandlerFunc to mount at the HUD's websocket
// path (spec §6: `ws://127.0.0.1:<port>/hud?token=<optional>`).
func (b *Broadcaster) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if b.cfg.Token != "" && r.URL.Query().Get("token") != b.cfg.Token {
			http.Error(w, "invalid or missing token", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			b.logger.Warn("hud upgrade failed", "error", err)
			return
		}

		c := newClient(b.hub, conn, r.RemoteAddr, b.logger)
		b.hub.register <- c

		go c.writePump(context.Background())
		go c.readPump(context.Background())

		// "on reconnect, emit a config message first" (spec §4.8).
		select {
		case c.send <- marshal(configMsg{Type: "config", Position: "top-right", Opacity: 0.9}):
		default:
		}
	}
}

// ListenAndServe binds an http.Server to 127.0.0.1:port and blocks until
// ctx is canceled. Returns ErrHudPortInUse if the port cannot be bound.
func (b *Broadcaster) ListenAndServe(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/hud", b.Handler())
	srv := &http.Server{Addr: fmt.Sprintf("127.0.0.1:%d", b.cfg.Port), Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("%w: %v", ErrHudPortInUse, err)
			return
		}
		errCh <- nil
	}()

	go b.Run(ctx)

	select {
	case <-ctx.Done():
		_ = srv.Close()
		return nil
	case err := <-errCh:
		return err
	}
}

// PublishScroll enqueues a scroll message if hud_hz allows one at nowMs
// (spec §4.8 throttling). Values arriving between allowed sends are
// dropped, never queued.
func (b *Broadcaster) PublishScroll(vy, speed float64, nowMs int64) {
	b.mu.Lock()
	allow := !b.haveLastScroll || nowMs-b.lastScrollMs >= minIntervalMs(b.cfg.HudHz)
	if allow {
		b.lastScrollMs = nowMs
		b.haveLastScroll = true
	}
	b.mu.Unlock()
	if !allow {
		return
	}
	b.hub.broadcastBytes(marshal(scrollMsg{Type: "scroll", Vy: vy, Speed: speed}))
}

// PublishHide sends immediately, bypassing throttling: it marks the end of
// a SCROLLING episode and is never coalesced away. Like every message, it
// is dropped if the hub's broadcast queue is full.
func (b *Broadcaster) PublishHide() {
	b.hub.broadcastBytes(marshal(hideMsg{Type: "hide"}))
}

// PublishTouchProof enqueues a touchproof state message, throttled at
// hud_hz alongside scroll.
func (b *Broadcaster) PublishTouchProof(active bool, hands uint32, nowMs int64) {
	b.mu.Lock()
	allow := !b.haveLastTP || nowMs-b.lastTPMs >= minIntervalMs(b.cfg.HudHz)
	if allow {
		b.lastTPMs = nowMs
		b.haveLastTP = true
	}
	b.mu.Unlock()
	if !allow {
		return
	}
	b.hub.broadcastBytes(marshal(touchProofMsg{Type: "touchproof", Active: active, Hands: hands}))
}

// PublishCamera enqueues a base64 JPEG camera frame, gated on camera_hz,
// camera_frame_skip, and at least one client in expanded mode (spec §4.8).
// jpegBytes is the already-encoded, already-resized frame; encoding is the
// caller's responsibility so this package stays free of a gocv dependency
// on the hot path when no HUD client wants pixels at all.
func (b *Broadcaster) PublishCamera(jpegBytes []byte, w, h int, nowMs int64) {
	if !b.hub.anyExpanded() {
		return
	}
	b.mu.Lock()
	b.cameraFrameNum++
	skip := b.cameraFrameNum%b.cfg.CameraFrameSkip != 0
	allow := !skip && (!b.haveLastCamera || nowMs-b.lastCameraMs >= minIntervalMs(b.cfg.CameraHz))
	if allow {
		b.lastCameraMs = nowMs
		b.haveLastCamera = true
	}
	b.mu.Unlock()
	if !allow {
		return
	}
	frame := encodeBase64(jpegBytes)
	b.hub.broadcastBytes(marshal(cameraMsg{Type: "camera", Frame: frame, Width: uint32(w), Height: uint32(h)}))
}

func minIntervalMs(hz uint32) int64 {
	if hz == 0 {
		return 0
	}
	return 1000 / int64(hz)
}
