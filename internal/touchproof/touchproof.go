// Package touchproof implements the multi-signal, scale- and
// distance-aware fingertip-contact detector (spec §4.3): per-signal
// scoring, adaptive weighted fusion, and a hysteresis state machine that
// turns a noisy fused score into a stable IsTouching boolean.
package touchproof

import (
	"errors"
	"image"
	"math"

	"github.com/ayusman/glide/internal/align"
	"github.com/ayusman/glide/internal/detector"
	"github.com/ayusman/glide/internal/flow"
	"gocv.io/x/gocv"
)

// ErrLandmarksMissing is returned (alongside the held Signals) when Update
// is called with a nil hand — expected during brief occlusions, per spec §7.
var ErrLandmarksMissing = errors.New("touchproof: landmarks missing")

// Config holds every tunable named in spec §4.3 and §6's touchproof.*
// surface. Zero-value fields are filled in by DefaultConfig.
type Config struct {
	ProximityEnter, ProximityExit float64
	AngleEnterDeg, AngleExitDeg   float64
	KD, KTheta                    float64
	ProximityEMAAlpha             float64
	AngleEMAAlpha                 float64
	VisibilityAMin                float64
	GateLow, GateHigh             float64 // conditional-MFC fusion band
	NEnter, NExit                 int
	TEnter, TExit                 float64
	HandLossGraceMs               int64
	FlowHistoryFrames             int
	FlowMagnitudeRatioMin         float64
}

// DefaultConfig returns the spec §4.3/§6 default tuning.
func DefaultConfig() Config {
	return Config{
		ProximityEnter:        0.30,
		ProximityExit:         0.50,
		AngleEnterDeg:         15,
		AngleExitDeg:          35,
		KD:                    0.30,
		KTheta:                2.0,
		ProximityEMAAlpha:     0.3,
		AngleEMAAlpha:         0.2,
		VisibilityAMin:        0.12,
		GateLow:               0.40,
		GateHigh:              0.70,
		NEnter:                4,
		NExit:                 3,
		TEnter:                0.75,
		TExit:                 0.58,
		HandLossGraceMs:       200,
		FlowHistoryFrames:     flow.DefaultHistory,
		FlowMagnitudeRatioMin: flow.DefaultMagnitudeRatioMin,
	}
}

// Detector owns the long-lived fusion state: the hand aligner, the optical
// flow probe, the two per-signal EMAs, and the hysteresis gate. One
// Detector tracks one hand across frames; construct a fresh one on session
// reset (spec §3 lifecycle).
type Detector struct {
	cfg     Config
	aligner *align.Aligner
	flow    *flow.Tracker

	gate          GateState
	cEnter, cExit int
	proxEMA       float64
	angleEMA      float64
	haveProxEMA   bool
	haveAngleEMA  bool

	haveLastSeen bool
	lastSeenMs   int64
}

// New returns a Detector using cfg. Zero-value fields fall back to their
// DefaultConfig() value.
func New(cfg Config) *Detector {
	def := DefaultConfig()
	if cfg.ProximityEnter == 0 {
		cfg.ProximityEnter = def.ProximityEnter
	}
	if cfg.ProximityExit == 0 {
		cfg.ProximityExit = def.ProximityExit
	}
	if cfg.AngleEnterDeg == 0 {
		cfg.AngleEnterDeg = def.AngleEnterDeg
	}
	if cfg.AngleExitDeg == 0 {
		cfg.AngleExitDeg = def.AngleExitDeg
	}
	if cfg.KD == 0 {
		cfg.KD = def.KD
	}
	if cfg.KTheta == 0 {
		cfg.KTheta = def.KTheta
	}
	if cfg.ProximityEMAAlpha == 0 {
		cfg.ProximityEMAAlpha = def.ProximityEMAAlpha
	}
	if cfg.AngleEMAAlpha == 0 {
		cfg.AngleEMAAlpha = def.AngleEMAAlpha
	}
	if cfg.VisibilityAMin == 0 {
		cfg.VisibilityAMin = def.VisibilityAMin
	}
	if cfg.GateHigh == 0 {
		cfg.GateLow = def.GateLow
		cfg.GateHigh = def.GateHigh
	}
	if cfg.NEnter == 0 {
		cfg.NEnter = def.NEnter
	}
	if cfg.NExit == 0 {
		cfg.NExit = def.NExit
	}
	if cfg.TEnter == 0 {
		cfg.TEnter = def.TEnter
	}
	if cfg.TExit == 0 {
		cfg.TExit = def.TExit
	}
	if cfg.HandLossGraceMs == 0 {
		cfg.HandLossGraceMs = def.HandLossGraceMs
	}
	if cfg.FlowHistoryFrames == 0 {
		cfg.FlowHistoryFrames = def.FlowHistoryFrames
	}
	if cfg.FlowMagnitudeRatioMin == 0 {
		cfg.FlowMagnitudeRatioMin = def.FlowMagnitudeRatioMin
	}
	return &Detector{
		cfg:     cfg,
		aligner: align.NewAligner(),
		flow:    flow.NewTracker(cfg.FlowHistoryFrames, cfg.FlowMagnitudeRatioMin),
		gate:    Unarmed,
	}
}

// Close releases the Detector's optical-flow resources.
func (d *Detector) Close() {
	d.flow.Close()
}

// Reset drops all long-lived state: hysteresis gate, EMAs, and flow
// history, per spec §3 "reset on loss of hand ... or explicit session
// reset".
func (d *Detector) Reset() {
	d.gate = Unarmed
	d.cEnter, d.cExit = 0, 0
	d.haveProxEMA, d.haveAngleEMA = false, false
	d.haveLastSeen = false
	d.flow.Reset()
}

// State returns the current hysteresis gate.
func (d *Detector) State() GateState {
	return d.gate
}

// Update advances the detector by one frame. lm is nil when the landmark
// provider found no hand this frame; frame may be an empty Mat when the
// caller has no image data available (MFC is then always gated off).
//
// On a nil hand, Update returns the held Signals (last known IsTouching)
// and ErrLandmarksMissing, forcing the gate to Unarmed only after
// cfg.HandLossGraceMs have elapsed with no hand. On a degenerate hand
// (align.ErrDegenerateHand), the held Signals and that error are returned
// and no state is mutated, per spec §4.3 failure semantics.
func (d *Detector) Update(lm *detector.Hand, frame gocv.Mat, w, h int, nowMs int64) (Signals, error) {
	if lm == nil {
		if !d.haveLastSeen || nowMs-d.lastSeenMs > d.cfg.HandLossGraceMs {
			d.Reset()
		}
		return d.held(), ErrLandmarksMissing
	}

	if err := d.aligner.Update(*lm, w, h); err != nil {
		return d.held(), err
	}

	dist, err := d.aligner.NormalizedFingertipDistance(*lm)
	if err != nil {
		return d.held(), err
	}
	angle, err := d.aligner.FingertipAngleDeg(*lm)
	if err != nil {
		return d.held(), err
	}
	d.haveLastSeen = true
	d.lastSeenMs = nowMs
	distanceFactor := align.DistanceFactor(d.aligner.FingerLengthPx(*lm))

	proximityScore := d.proximity(dist, distanceFactor)
	angleScore := d.angleScore(angle, distanceFactor)
	visibilityScore, visibilityUsed := d.visibility(*lm)

	initialFused := 0.7*proximityScore + 0.3*angleScore
	gateOpen := d.gate == Ready ||
		(initialFused >= d.cfg.GateLow && initialFused <= d.cfg.GateHigh) ||
		distanceFactor < 0.3

	var mfcScore float64
	var mfcUsed bool
	if gateOpen && !frame.Empty() {
		mfcScore, mfcUsed = d.mfc(*lm, frame, w, h)
	}

	w4 := interpolateWeights(distanceFactor)
	fused := fuse(w4, proximityScore, angleScore, mfcScore, visibilityScore, mfcUsed, visibilityUsed)

	d.step(fused)

	return Signals{
		ProximityScore:  proximityScore,
		AngleScore:      angleScore,
		MfcScore:        mfcScore,
		VisibilityScore: visibilityScore,
		DistanceFactor:  distanceFactor,
		FusedScore:      fused,
		IsTouching:      d.gate == Ready,
		State:           d.gate.String(),
	}, nil
}

// held returns the last-known verdict without recomputing any signal,
// used while landmarks are missing or the hand is degenerate.
func (d *Detector) held() Signals {
	return Signals{IsTouching: d.gate == Ready, State: d.gate.String()}
}

// step advances the hysteresis counters and, on threshold, flips the gate.
func (d *Detector) step(fused float64) {
	switch d.gate {
	case Unarmed:
		if fused > d.cfg.TEnter {
			d.cEnter++
		} else {
			d.cEnter = 0
		}
		if d.cEnter >= d.cfg.NEnter {
			d.gate = Ready
			d.cEnter, d.cExit = 0, 0
		}
	case Ready:
		if fused < d.cfg.TExit {
			d.cExit++
		} else {
			d.cExit = 0
		}
		if d.cExit >= d.cfg.NExit {
			d.gate = Unarmed
			d.cEnter, d.cExit = 0, 0
		}
	}
}

// proximity scores normalized fingertip distance with distance-adjusted,
// EMA-smoothed thresholds (spec §4.3 "Proximity").
func (d *Detector) proximity(dist, distanceFactor float64) float64 {
	enter := d.cfg.ProximityEnter * (1 + d.cfg.KD*distanceFactor)
	exit := d.cfg.ProximityExit * (1 + d.cfg.KD*distanceFactor)
	raw := scoreLowerBetter(dist, enter, exit)
	if !d.haveProxEMA {
		d.proxEMA = raw
		d.haveProxEMA = true
	} else {
		d.proxEMA = d.cfg.ProximityEMAAlpha*raw + (1-d.cfg.ProximityEMAAlpha)*d.proxEMA
	}
	return d.proxEMA
}

// angleScore scores the fingertip angle with distance-adjusted,
// EMA-smoothed thresholds (spec §4.3 "Angle").
func (d *Detector) angleScore(angleDeg, distanceFactor float64) float64 {
	enter := d.cfg.AngleEnterDeg - d.cfg.KTheta*(1-distanceFactor)
	exit := d.cfg.AngleExitDeg - d.cfg.KTheta*(1-distanceFactor)
	if enter < 0 {
		enter = 0
	}
	if exit < 0 {
		exit = 0
	}
	raw := scoreLowerBetter(angleDeg, enter, exit)
	if !d.haveAngleEMA {
		d.angleEMA = raw
		d.haveAngleEMA = true
	} else {
		d.angleEMA = d.cfg.AngleEMAAlpha*raw + (1-d.cfg.AngleEMAAlpha)*d.angleEMA
	}
	return d.angleEMA
}

// visibility scores the |index - middle| visibility asymmetry when both
// landmarks report visibility; otherwise the signal is excluded from
// fusion per spec §4.3.
func (d *Detector) visibility(lm detector.Hand) (score float64, used bool) {
	visIndex, okI := lm.Visible(detector.IndexTip)
	visMiddle, okM := lm.Visible(detector.MiddleTip)
	if !okI || !okM {
		return 0, false
	}
	a := math.Abs(visIndex - visMiddle)
	if a >= d.cfg.VisibilityAMin {
		return 1, true
	}
	return a / d.cfg.VisibilityAMin, true
}

// mfc runs the optical flow probe over the two fingertip patches and
// returns its score, or (0, false) when flow is infeasible (spec §7
// FlowInfeasible: treated identically to a gated-off MFC signal).
func (d *Detector) mfc(lm detector.Hand, frame gocv.Mat, w, h int) (float64, bool) {
	if frame.Cols() != w || frame.Rows() != h {
		w, h = frame.Cols(), frame.Rows()
	}
	gray := gocv.NewMat()
	defer gray.Close()
	if frame.Channels() > 1 {
		gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	tipIndexPx := image.Pt(int(lm[detector.IndexTip].X*float64(w)), int(lm[detector.IndexTip].Y*float64(h)))
	tipMiddlePx := image.Pt(int(lm[detector.MiddleTip].X*float64(w)), int(lm[detector.MiddleTip].Y*float64(h)))

	bounds := image.Rect(0, 0, w, h)
	if !bounds.Contains(tipIndexPx) || !bounds.Contains(tipMiddlePx) {
		return 0, false
	}

	return d.flow.Update(gray, tipIndexPx, tipMiddlePx)
}

// scoreLowerBetter is the piecewise-linear scorer of spec §4.3: 1 at or
// below enter, 0 at or above exit, linear in between.
func scoreLowerBetter(v, enter, exit float64) float64 {
	if v <= enter {
		return 1
	}
	if v >= exit {
		return 0
	}
	return 1 - (v-enter)/(exit-enter)
}
