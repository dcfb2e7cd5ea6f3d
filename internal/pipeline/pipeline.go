// Package pipeline implements the frame-thread orchestrator (spec §2, §5):
// the fixed per-frame sequence that turns one detector.HandDet plus a BGR
// frame into aligner/kinematics/flow/touchproof/velocity updates and a
// dispatcher call.
package pipeline

import (
	"sync/atomic"

	"github.com/ayusman/glide/internal/align"
	"github.com/ayusman/glide/internal/detector"
	"github.com/ayusman/glide/internal/dispatcher"
	"github.com/ayusman/glide/internal/kinematics"
	"github.com/ayusman/glide/internal/pose"
	"github.com/ayusman/glide/internal/touchproof"
	"github.com/ayusman/glide/internal/velocity"
	"gocv.io/x/gocv"
)

// Pipeline wires the leaf components into the ordered sequence of spec §2:
// aligner -> kinematics -> touchproof -> velocity tracker -> velocity
// controller -> dispatcher. It is single-threaded by construction (spec
// §5): Step must only ever be called from the frame thread.
type Pipeline struct {
	aligner    *align.Aligner
	kinematics *kinematics.Buffer
	touchproof *touchproof.Detector
	velTracker *velocity.Tracker
	controller *velocity.Controller
	dispatch   *dispatcher.Dispatcher

	enabled atomic.Bool

	haveLastFrame bool
	lastFrameMs   int64
}

// New returns a Pipeline wiring the given already-constructed collaborators.
// Scrolling starts enabled.
func New(kinCapacity int, tp *touchproof.Detector, vt *velocity.Tracker, vc *velocity.Controller, disp *dispatcher.Dispatcher) *Pipeline {
	p := &Pipeline{
		aligner:    align.NewAligner(),
		kinematics: kinematics.NewBuffer(kinCapacity),
		touchproof: tp,
		velTracker: vt,
		controller: vc,
		dispatch:   disp,
	}
	p.enabled.Store(true)
	return p
}

// SetEnabled toggles scroll dispatch, mirroring the teacher's
// App.SetEnabled/IsEnabled tray-driven pattern. Disabling mid-episode does
// not itself force an End; the next Step call synthesizes a release by
// treating the hand as not-touching, so the controller emits End through
// its normal transition logic.
func (p *Pipeline) SetEnabled(enabled bool) {
	p.enabled.Store(enabled)
}

// Enabled reports the current toggle state.
func (p *Pipeline) Enabled() bool {
	return p.enabled.Load()
}

// Step runs one frame through the pipeline. hand is nil when the landmark
// provider found no hand this frame. w, h are the source frame's pixel
// dimensions. nowMs is the frame timestamp.
func (p *Pipeline) Step(hand *detector.HandDet, frameBGR gocv.Mat, w, h int, nowMs int64) error {
	dt := p.frameDt(nowMs)

	var lm *detector.Hand

	if hand != nil {
		lm = &hand.Landmarks
		midImage := align.Point{
			X: (lm[detector.IndexTip].X + lm[detector.MiddleTip].X) / 2,
			Y: (lm[detector.IndexTip].Y + lm[detector.MiddleTip].Y) / 2,
		}

		if err := p.aligner.Update(*lm, w, h); err == nil {
			midHand := p.aligner.ToHandFrame(midImage)
			p.kinematics.Push(kinematics.FingertipSample{
				TMs:          nowMs,
				MidpointImg:  kinematics.Point{X: midImage.X, Y: midImage.Y},
				MidpointHand: kinematics.Point{X: midHand.X, Y: midHand.Y},
			})
		}
	}

	signals, _ := p.touchproof.Update(lm, frameBGR, w, h, nowMs)
	touching := signals.IsTouching
	if !p.enabled.Load() {
		touching = false
	}

	var v velocity.Velocity2D
	if hand != nil {
		v = p.velTracker.Update(p.kinematics, nowMs)
	}

	poseFlags := pose.Flags{}
	if hand != nil {
		poseFlags = pose.Detect(hand.Landmarks)
	}

	handPresent := hand != nil
	upd := p.controller.Update(touching, poseFlags.HighFive, handPresent, v, nowMs)
	if upd.Transition == velocity.End {
		p.velTracker.Reset()
		p.kinematics.Reset()
	}

	var hands uint32
	if hand != nil {
		hands = 1
	}
	return p.dispatch.Dispatch(upd, hands, dt, nowMs)
}

// Shutdown emits a final End if a SCROLLING episode is in progress, per
// spec §5's "frame thread finishes its current frame and emits End if
// SCROLLING" shutdown rule.
func (p *Pipeline) Shutdown(nowMs int64) error {
	if p.controller.State() != velocity.Scrolling {
		return nil
	}
	upd := p.controller.Update(false, false, false, velocity.Velocity2D{}, nowMs)
	if upd.Transition != velocity.End {
		return nil
	}
	p.velTracker.Reset()
	p.kinematics.Reset()
	return p.dispatch.Dispatch(upd, 0, 0, nowMs)
}

func (p *Pipeline) frameDt(nowMs int64) float64 {
	if !p.haveLastFrame {
		p.haveLastFrame = true
		p.lastFrameMs = nowMs
		return 0
	}
	dtMs := nowMs - p.lastFrameMs
	p.lastFrameMs = nowMs
	if dtMs <= 0 {
		return 0
	}
	return float64(dtMs) / 1000.0
}
