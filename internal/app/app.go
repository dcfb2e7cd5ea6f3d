// Package app wires glide's frame-thread pipeline to the camera, the hand
// detector, the HUD broadcaster, and the diagnostic episode log, and drives
// the idle/active capture loop.
package app

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"sync"
	"time"

	"github.com/ayusman/glide/internal/capture"
	"github.com/ayusman/glide/internal/config"
	"github.com/ayusman/glide/internal/detector"
	"github.com/ayusman/glide/internal/dispatcher"
	"github.com/ayusman/glide/internal/hud"
	"github.com/ayusman/glide/internal/pipeline"
	"github.com/ayusman/glide/internal/plugin"
	"github.com/ayusman/glide/internal/scrollaction"
	"github.com/ayusman/glide/internal/store"
	"github.com/ayusman/glide/internal/touchproof"
	"github.com/ayusman/glide/internal/velocity"
)

// Pipeline capture-loop timing constants, mirroring the teacher's
// idle/active FPS switching around motion detection.
const (
	// IdleFPS is the capture rate while no motion has been seen recently.
	IdleFPS = 5
	// IdleTimeoutMs is how long without motion before dropping to IdleFPS.
	IdleTimeoutMs = 2000
)

// Config holds everything App.New needs to wire the whole daemon.
type Config struct {
	AppConfig config.AppConfig
	Store     *store.Store
	PluginDir string
	CameraID  int
}

// App is the top-level daemon: camera capture, hand detection, the
// perception/scroll pipeline, the HUD broadcaster, and the episode log.
type App struct {
	cfg config.AppConfig

	camera   capture.Camera
	motion   *capture.MotionDetector
	detector detector.Detector

	pipeline *pipeline.Pipeline
	hud      *hud.Broadcaster
	episodes *store.EpisodeLogger

	pluginMgr  *plugin.Manager
	pluginExec *plugin.Executor

	mu             sync.RWMutex
	stopCh         chan struct{}
	lastMotionTime time.Time
}

// New wires the full pipeline per config. It does not open the camera or
// bind the HUD listener; call Start for that.
func New(cfg Config) (*App, error) {
	a := &App{
		cfg:        cfg.AppConfig,
		camera:     capture.NewCamera(cfg.CameraID),
		motion:     capture.NewMotionDetector(1.0),
		pluginMgr:  plugin.NewManager(cfg.PluginDir),
		pluginExec: plugin.NewExecutor(2000),
	}

	if mp, err := detector.NewMediaPipeDetector(detector.DefaultConfig()); err == nil {
		a.detector = mp
		log.Println("Using MediaPipe hand detection")
	} else {
		log.Printf("MediaPipe not available (%v), using mock detector", err)
		a.detector = detector.NewMockDetector()
	}

	if err := a.pluginMgr.Discover(); err != nil {
		log.Printf("plugin discovery: %v", err)
	}

	if cfg.AppConfig.Hud.Enabled && !cfg.AppConfig.Headless {
		a.hud = hud.New(hudConfigFrom(cfg.AppConfig.Hud), slog.Default())
	}

	sink := a.buildScrollSink()
	scrollCfg := scrollConfigFrom(cfg.AppConfig.Scroll)
	action := scrollaction.New(sink, scrollCfg)
	disp := dispatcher.New(action, a.hud, dispatcher.DefaultConfig(scrollCfg))

	if cfg.Store != nil {
		a.episodes = store.NewEpisodeLogger(cfg.Store, slog.Default())
		disp.SetEpisodeRecorder(a.episodes)
	}

	tp := touchproof.New(touchproofConfigFrom(cfg.AppConfig.TouchProof, cfg.AppConfig.HandLossGraceMs))
	vt := velocity.NewTracker(velocityTrackerConfigFrom(cfg.AppConfig.Velocity))
	vc := velocity.NewController(velocity.ControllerConfig{HandLossGraceMs: cfg.AppConfig.HandLossGraceMs})

	a.pipeline = pipeline.New(64, tp, vt, vc, disp)
	if !cfg.AppConfig.Scroll.Enabled {
		a.pipeline.SetEnabled(false)
	}

	return a, nil
}

// buildScrollSink picks a QuartzSink backed by the scrollprobe plugin when
// it is available, falling back to a NullSink otherwise (e.g. headless CI,
// or the plugin binary was never built for this platform).
func (a *App) buildScrollSink() scrollaction.Sink {
	p, err := a.pluginMgr.Get("scrollprobe")
	if err != nil {
		log.Printf("scrollprobe plugin unavailable (%v), scroll events will be discarded", err)
		return scrollaction.NullSink{}
	}
	return scrollaction.NewQuartzSink(a.pluginExec, p)
}

// SetEnabled toggles scroll dispatch, mirroring the teacher's tray-driven
// App.SetEnabled/IsEnabled pattern.
func (a *App) SetEnabled(enabled bool) {
	a.pipeline.SetEnabled(enabled)
}

// IsEnabled reports whether scroll dispatch is currently active.
func (a *App) IsEnabled() bool {
	return a.pipeline.Enabled()
}

// HUDSessionToken returns the HUD's session token, or "" if the HUD is
// disabled.
func (a *App) HUDSessionToken() string {
	if a.hud == nil {
		return ""
	}
	return a.hud.SessionToken()
}

// Start opens the camera and launches the capture loop, the HUD listener,
// and the episode-log writer, each in its own goroutine.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopCh != nil {
		return nil
	}

	if err := a.camera.Open(); err != nil {
		return fmt.Errorf("app: open camera: %w", err)
	}
	a.camera.SetFPS(IdleFPS)

	if a.episodes != nil {
		go a.episodes.Run()
	}
	if a.hud != nil {
		go func() {
			if err := a.hud.ListenAndServe(ctx); err != nil {
				log.Printf("hud: %v", err)
			}
		}()
	}

	a.stopCh = make(chan struct{})
	a.lastMotionTime = time.Now()
	go a.runCaptureLoop()

	log.Println("Capture pipeline started")
	return nil
}

// Stop halts the capture loop and releases the camera, detector, and
// episode-log writer.
func (a *App) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopCh != nil {
		close(a.stopCh)
		a.stopCh = nil
	}

	if err := a.pipeline.Shutdown(time.Now().UnixMilli()); err != nil {
		log.Printf("pipeline shutdown: %v", err)
	}

	if err := a.camera.Close(); err != nil {
		log.Printf("Error closing camera: %v", err)
	}
	a.motion.Close()

	if a.detector != nil {
		if err := a.detector.Close(); err != nil {
			log.Printf("Error closing detector: %v", err)
		}
	}
	if a.episodes != nil {
		a.episodes.Close()
	}

	log.Println("Capture pipeline stopped")
}

// Camera returns the camera instance.
func (a *App) Camera() capture.Camera {
	return a.camera
}

// Pipeline returns the perception/scroll pipeline.
func (a *App) Pipeline() *pipeline.Pipeline {
	return a.pipeline
}

// LatestEpisode returns the most recently logged scroll episode's peak
// speed, for display in the tray menu. Returns 0 if none has completed yet.
func (a *App) LatestEpisode(episodeStore *store.Store) float64 {
	if episodeStore == nil {
		return 0
	}
	e, err := episodeStore.Episodes().Latest()
	if err != nil {
		return 0
	}
	return e.PeakSpeed
}
