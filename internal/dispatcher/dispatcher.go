// Package dispatcher implements VelocityDispatcher (spec §4.7): the glue
// between VelocityController transitions and the ContinuousScrollAction /
// HudBroadcaster outputs, grounded structurally on
// original_source/glide/runtime/actions/velocity_dispatcher.py's
// VelocityScrollDispatcher.dispatch state-transition shape.
package dispatcher

import (
	"math"

	"github.com/ayusman/glide/internal/hud"
	"github.com/ayusman/glide/internal/scrollaction"
	"github.com/ayusman/glide/internal/velocity"
)

// Config holds the dispatcher's tunables (spec §4.7).
type Config struct {
	// VRef is the velocity magnitude (image-normalized units/sec) that maps
	// to a speed of 1.0 in the HUD's normalized speed field.
	VRef float64

	// PixelsPerUnit/MaxStepPx mirror scrollaction.Config's mapping, used only
	// to estimate total pixel travel for the episode diagnostic log; they do
	// not affect what actually gets posted to the scroll sink.
	PixelsPerUnit float64
	MaxStepPx     float64
}

// DefaultConfig picks v_ref as the velocity that would produce max_step at
// a nominal 30fps frame time, per spec §4.7's suggested derivation.
func DefaultConfig(scrollCfg scrollaction.Config) Config {
	const nominalDt = 1.0 / 30.0
	vRef := scrollCfg.MaxStepPx / (scrollCfg.PixelsPerUnit * nominalDt)
	if vRef <= 0 {
		vRef = 1.0
	}
	return Config{VRef: vRef, PixelsPerUnit: scrollCfg.PixelsPerUnit, MaxStepPx: scrollCfg.MaxStepPx}
}

// EpisodeRecorder receives a diagnostic summary of each completed SCROLLING
// episode. Implementations must not block: the dispatcher calls this
// synchronously from the frame thread on End.
type EpisodeRecorder interface {
	RecordEpisode(startedAtMs, endedAtMs int64, peakSpeed, totalDyPx float64)
}

// Dispatcher bridges a velocity.Controller's per-frame Update to
// scrollaction.Action calls and hud.Broadcaster messages (spec §4.7).
type Dispatcher struct {
	action   *scrollaction.Action
	hud      *hud.Broadcaster
	episodes EpisodeRecorder
	cfg      Config

	episodeStartMs int64
	peakSpeed      float64
	totalDyPx      float64
}

// New returns a Dispatcher. hud may be nil, in which case HUD publishing is
// skipped entirely (headless mode, spec §6 `headless`).
func New(action *scrollaction.Action, broadcaster *hud.Broadcaster, cfg Config) *Dispatcher {
	if cfg.VRef <= 0 {
		cfg.VRef = 1.0
	}
	return &Dispatcher{action: action, hud: broadcaster, cfg: cfg}
}

// SetEpisodeRecorder wires an optional diagnostic sink for completed
// episodes. Passing nil disables episode logging.
func (d *Dispatcher) SetEpisodeRecorder(r EpisodeRecorder) {
	d.episodes = r
}

// Dispatch consumes one velocity.Controller Update and drives the scroll
// sink and HUD accordingly (spec §4.7). dtSeconds is the elapsed time since
// the previous frame, used for the velocity-to-pixel mapping in
// scrollaction.Action.
func (d *Dispatcher) Dispatch(upd velocity.Update, hands uint32, dtSeconds float64, nowMs int64) error {
	speed := clamp01(math.Abs(upd.Velocity.Magnitude) / d.cfg.VRef)

	switch upd.Transition {
	case velocity.Begin:
		d.episodeStartMs = nowMs
		d.peakSpeed = 0
		d.totalDyPx = 0

		if err := d.action.Begin(0, upd.Velocity.VY, dtSeconds); err != nil {
			return err
		}
		d.accumulate(speed, upd.Velocity.VY, dtSeconds)
		if d.hud != nil {
			d.hud.PublishScroll(upd.Velocity.VY, speed, nowMs)
			d.hud.PublishTouchProof(true, hands, nowMs)
		}
		return nil

	case velocity.End:
		err := d.action.End()
		if d.episodes != nil {
			d.episodes.RecordEpisode(d.episodeStartMs, nowMs, d.peakSpeed, d.totalDyPx)
		}
		if d.hud != nil {
			d.hud.PublishHide()
			d.hud.PublishTouchProof(false, hands, nowMs)
		}
		return err

	default: // None: implicit Change while SCROLLING, nothing while IDLE.
		if upd.State != velocity.Scrolling {
			return nil
		}
		if err := d.action.Update(0, upd.Velocity.VY, dtSeconds); err != nil {
			return err
		}
		d.accumulate(speed, upd.Velocity.VY, dtSeconds)
		if d.hud != nil {
			d.hud.PublishScroll(upd.Velocity.VY, speed, nowMs)
		}
		return nil
	}
}

// accumulate folds one frame's contribution into the running episode
// diagnostics; it does not affect what is posted to the scroll sink.
func (d *Dispatcher) accumulate(speed, vy, dtSeconds float64) {
	if speed > d.peakSpeed {
		d.peakSpeed = speed
	}
	dyPx := clamp(d.cfg.PixelsPerUnit*vy*dtSeconds, -d.cfg.MaxStepPx, d.cfg.MaxStepPx)
	d.totalDyPx += dyPx
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
