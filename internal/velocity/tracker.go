// Package velocity estimates fingertip-midpoint velocity from a
// time-windowed ring buffer (spec §4.4) and drives the 2-state activation
// machine that turns that velocity, TouchProof, and pose into scroll
// begin/change/end transitions (spec §4.5).
package velocity

import (
	"math"

	"github.com/ayusman/glide/internal/kinematics"
)

// Velocity2D is a 2D velocity in image-normalized units per second.
type Velocity2D struct {
	VX, VY    float64
	Magnitude float64
}

func (v Velocity2D) withMagnitude() Velocity2D {
	v.Magnitude = math.Hypot(v.VX, v.VY)
	return v
}

// TrackerConfig holds the tunables of spec §6's velocity.* surface.
type TrackerConfig struct {
	WindowMs    int64
	MinDtMs     int64
	MinSamples  int
	EMABeta     float64
	NoiseThresh float64
}

// DefaultTrackerConfig returns the spec §4.4 defaults.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		WindowMs:    100,
		MinDtMs:     10,
		MinSamples:  3,
		EMABeta:     0.3,
		NoiseThresh: 0.002,
	}
}

// Tracker derives a smoothed, deadbanded velocity (spec §4.4) from the
// trailing window of a kinematics.Buffer, which is the sample history of
// record: the buffer is what the orchestrator pushes fingertip midpoints
// into every frame, so the tracker reads from it rather than keeping a
// second copy of the same samples.
type Tracker struct {
	cfg TrackerConfig

	smoothed   Velocity2D
	haveSmooth bool
}

// NewTracker returns a Tracker using cfg. Zero-value WindowMs, MinDtMs,
// MinSamples and EMABeta fall back to DefaultTrackerConfig; a zero
// NoiseThresh is kept and disables the deadband.
func NewTracker(cfg TrackerConfig) *Tracker {
	def := DefaultTrackerConfig()
	if cfg.WindowMs == 0 {
		cfg.WindowMs = def.WindowMs
	}
	if cfg.MinDtMs == 0 {
		cfg.MinDtMs = def.MinDtMs
	}
	if cfg.MinSamples == 0 {
		cfg.MinSamples = def.MinSamples
	}
	if cfg.EMABeta == 0 {
		cfg.EMABeta = def.EMABeta
	}
	return &Tracker{cfg: cfg}
}

// Reset zeros the smoothed velocity, per spec §3's "smoothing state is
// reset to zero when the controller re-enters IDLE" invariant. The sample
// history itself lives in the caller's kinematics.Buffer and is reset
// separately.
func (t *Tracker) Reset() {
	t.smoothed = Velocity2D{}
	t.haveSmooth = false
}

// Update reads buf's trailing window and returns the smoothed, deadbanded
// velocity estimate for this frame (spec §4.4). buf must already contain
// the current frame's sample.
func (t *Tracker) Update(buf *kinematics.Buffer, nowMs int64) Velocity2D {
	raw, ok := t.rawVelocity(buf, nowMs)
	if !ok {
		raw = Velocity2D{}
	}

	if !t.haveSmooth {
		t.smoothed = raw
		t.haveSmooth = true
	} else {
		beta := t.cfg.EMABeta
		t.smoothed.VX = beta*raw.VX + (1-beta)*t.smoothed.VX
		t.smoothed.VY = beta*raw.VY + (1-beta)*t.smoothed.VY
	}

	out := t.smoothed
	if math.Abs(out.VX) < t.cfg.NoiseThresh {
		out.VX = 0
	}
	if math.Abs(out.VY) < t.cfg.NoiseThresh {
		out.VY = 0
	}
	return out.withMagnitude()
}

// rawVelocity computes velocity between the oldest and newest sample in
// buf's trailing WindowMs, per spec §4.4. It requires at least MinSamples
// in the window and a span of at least MinDtMs; otherwise the caller
// treats this frame as zero (decay factor 0).
func (t *Tracker) rawVelocity(buf *kinematics.Buffer, nowMs int64) (Velocity2D, bool) {
	if buf.Len() < t.cfg.MinSamples {
		return Velocity2D{}, false
	}

	samples := buf.Samples(nowMs - t.cfg.WindowMs)
	if len(samples) < t.cfg.MinSamples {
		return Velocity2D{}, false
	}

	t0 := samples[0]
	t1 := samples[len(samples)-1]
	dt := t1.TMs - t0.TMs
	if dt < t.cfg.MinDtMs {
		return Velocity2D{}, false
	}

	dtSec := float64(dt) / 1000.0
	vx := (t1.MidpointImg.X - t0.MidpointImg.X) / dtSec
	vy := (t1.MidpointImg.Y - t0.MidpointImg.Y) / dtSec
	return Velocity2D{VX: vx, VY: vy}, true
}
