package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ayusman/glide/internal/capture"
	"github.com/ayusman/glide/internal/config"
	"github.com/ayusman/glide/internal/detector"
	"github.com/ayusman/glide/internal/store"
	"gocv.io/x/gocv"
)

func loopedFrame() []*gocv.Mat {
	f := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	return []*gocv.Mat{&f}
}

// TestApp_CaptureLoop_LogsAnEpisode drives the real capture loop with a mock
// camera and mock detector, holding a pinch pose long enough to arm the
// touchproof gate, then releasing it, and checks that a completed episode
// reaches the store.
func TestApp_CaptureLoop_LogsAnEpisode(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	tmpDir := t.TempDir()
	s, err := store.New(filepath.Join(tmpDir, "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	cfg := config.Default()
	cfg.Hud.Enabled = false
	cfg.Headless = true

	a, err := New(Config{AppConfig: cfg, Store: s, PluginDir: tmpDir, CameraID: -1})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	mockCam := capture.NewMockCamera(loopedFrame(), true)
	mockDet := detector.NewMockDetector()
	pinch := detector.PinchHandLandmarks(0.10, 10)
	mockDet.SetHand(&detector.HandDet{Landmarks: pinch, Confidence: 0.95})

	a.camera = mockCam
	a.detector = mockDet

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// Give the capture loop (running at IdleFPS) enough real ticks to cross
	// the touchproof hysteresis threshold and arm.
	time.Sleep(2 * time.Second)
	if !a.pipeline.Enabled() {
		t.Fatalf("pipeline should still be enabled")
	}

	// Release the pinch and let the gate disarm, closing the episode.
	open := detector.OpenHandLandmarks()
	mockDet.SetHand(&detector.HandDet{Landmarks: open, Confidence: 0.95})
	time.Sleep(2 * time.Second)

	a.Stop()

	episodes, err := s.Episodes().List(10)
	if err != nil {
		t.Fatalf("Episodes().List: %v", err)
	}
	if len(episodes) == 0 {
		t.Fatal("expected at least one logged episode from the pinch/release cycle")
	}
}

func TestApp_SetEnabled_TogglesPipeline(t *testing.T) {
	tmpDir := t.TempDir()
	s, err := store.New(filepath.Join(tmpDir, "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	cfg := config.Default()
	cfg.Hud.Enabled = false
	cfg.Headless = true

	a, err := New(Config{AppConfig: cfg, Store: s, PluginDir: tmpDir, CameraID: -1})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if !a.IsEnabled() {
		t.Fatal("app should start enabled")
	}
	a.SetEnabled(false)
	if a.IsEnabled() {
		t.Error("SetEnabled(false) should disable the pipeline")
	}
	a.SetEnabled(true)
	if !a.IsEnabled() {
		t.Error("SetEnabled(true) should re-enable the pipeline")
	}
}

func TestApp_HUDSessionToken_EmptyWhenDisabled(t *testing.T) {
	tmpDir := t.TempDir()
	s, err := store.New(filepath.Join(tmpDir, "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	cfg := config.Default()
	cfg.Hud.Enabled = false

	a, err := New(Config{AppConfig: cfg, Store: s, PluginDir: tmpDir, CameraID: -1})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if tok := a.HUDSessionToken(); tok != "" {
		t.Errorf("HUDSessionToken() = %q, want empty when the HUD is disabled", tok)
	}
}
