package app

import (
	"image"
	"log"
	"time"

	"github.com/ayusman/glide/internal/config"
	"github.com/ayusman/glide/internal/dispatcher"
	"github.com/ayusman/glide/internal/hud"
	"github.com/ayusman/glide/internal/scrollaction"
	"github.com/ayusman/glide/internal/touchproof"
	"github.com/ayusman/glide/internal/velocity"
	"gocv.io/x/gocv"
)

func touchproofConfigFrom(c config.TouchProofConfig, handLossGraceMs int64) touchproof.Config {
	return touchproof.Config{
		ProximityEnter:  c.ProximityEnter,
		ProximityExit:   c.ProximityExit,
		AngleEnterDeg:   c.AngleEnterDeg,
		AngleExitDeg:    c.AngleExitDeg,
		KD:              c.KD,
		KTheta:          c.KTheta,
		VisibilityAMin:  c.VisibilityAMin,
		GateLow:         c.GateLow,
		GateHigh:        c.GateHigh,
		NEnter:          c.NEnter,
		NExit:           c.NExit,
		TEnter:          c.TEnter,
		TExit:           c.TExit,
		HandLossGraceMs: handLossGraceMs,
	}
}

func velocityTrackerConfigFrom(c config.VelocityConfig) velocity.TrackerConfig {
	return velocity.TrackerConfig{
		WindowMs:    c.WindowMs,
		MinSamples:  c.MinSamples,
		EMABeta:     c.EMABeta,
		NoiseThresh: c.NoiseThresh,
	}
}

func scrollConfigFrom(c config.ScrollConfig) scrollaction.Config {
	return scrollaction.Config{
		PixelsPerUnit:           c.PixelsPerUnit,
		MaxStepPx:               c.MaxStepPx,
		RespectSystemPreference: c.RespectSystemPreference,
	}
}

func hudConfigFrom(c config.HudConfig) hud.Config {
	return hud.Config{
		Port:            c.Port,
		Token:           c.Token,
		HudHz:           c.Hz,
		CameraHz:        c.CameraHz,
		CameraFrameSkip: c.CameraFrameSkip,
	}
}

// runCaptureLoop is the frame source: it reads frames from the camera at
// IdleFPS or the configured camera_hz depending on recent motion, runs the
// hand detector, and feeds each frame into the pipeline. Motion gating
// keeps the idle camera rate low without touching the pipeline's own
// per-frame semantics — the pipeline only ever sees frames it is handed.
func (a *App) runCaptureLoop() {
	activeMode := false
	activeFPS := int(a.cfg.Hud.CameraHz)
	if activeFPS <= 0 {
		activeFPS = 30
	}

	frameInterval := time.Second / time.Duration(IdleFPS)
	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.stopCh:
			return
		case <-ticker.C:
			frame, err := a.camera.ReadFrame()
			if err != nil {
				log.Printf("Error reading frame: %v", err)
				continue
			}

			motionDetected, _ := a.motion.Detect(frame)
			if motionDetected {
				a.lastMotionTime = time.Now()
				if !activeMode {
					activeMode = true
					a.camera.SetFPS(activeFPS)
					frameInterval = time.Second / time.Duration(activeFPS)
					ticker.Reset(frameInterval)
				}
			} else if activeMode && time.Since(a.lastMotionTime) > time.Duration(IdleTimeoutMs)*time.Millisecond {
				activeMode = false
				a.camera.SetFPS(IdleFPS)
				frameInterval = time.Second / time.Duration(IdleFPS)
				ticker.Reset(frameInterval)
			}

			nowMs := time.Now().UnixMilli()
			hand, err := a.detector.Detect(frame, nowMs)
			if err != nil {
				log.Printf("Error detecting hand: %v", err)
				frame.Close()
				continue
			}

			w, h := frame.Cols(), frame.Rows()
			if err := a.pipeline.Step(hand, *frame, w, h, nowMs); err != nil {
				log.Printf("pipeline step: %v", err)
			}
			a.publishCameraFrame(frame, w, h, nowMs)
			frame.Close()
		}
	}
}

// publishCameraFrame resizes and JPEG-encodes frame and forwards it to the
// HUD, when one is wired. The broadcaster itself decides whether any client
// actually wants pixels (expanded mode) and whether camera_hz/frame_skip
// allow this frame through; encoding is skipped entirely when there is no
// HUD or no connected client at all, to keep the common case cheap.
func (a *App) publishCameraFrame(frame *gocv.Mat, w, h int, nowMs int64) {
	if a.hud == nil || a.hud.ClientCount() == 0 {
		return
	}

	const previewWidth = 320
	previewHeight := h
	if w > 0 {
		previewHeight = h * previewWidth / w
	}

	small := gocv.NewMat()
	defer small.Close()
	gocv.Resize(*frame, &small, image.Pt(previewWidth, previewHeight), 0, 0, gocv.InterpolationLinear)

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, small)
	if err != nil {
		return
	}
	defer buf.Close()

	a.hud.PublishCamera(buf.GetBytes(), previewWidth, previewHeight, nowMs)
}
