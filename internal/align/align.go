// Package align computes a per-hand reference frame from raw landmarks so
// downstream signals (distance, angle, flow) are scale- and rotation-invariant.
package align

import (
	"errors"
	"math"

	"github.com/ayusman/glide/internal/detector"
)

// ErrDegenerateHand is returned when the hand's scale reference collapses
// to zero (index MCP and index tip coincide), making the hand frame
// undefined.
var ErrDegenerateHand = errors.New("align: degenerate hand, zero scale reference")

// Point is a 2D point in normalized image coordinates, or in the rotated
// hand-frame coordinate system after ToHandFrame.
type Point struct {
	X, Y float64
}

// Aligner tracks the current hand reference frame: palm center, in-plane
// rotation, and scale, derived fresh from each detection.
type Aligner struct {
	PalmCenter Point
	ThetaRad   float64
	Scale      float64
	ImageW     int
	ImageH     int

	valid bool
}

// NewAligner returns an Aligner with no frame established yet.
func NewAligner() *Aligner {
	return &Aligner{}
}

// Valid reports whether Update has ever succeeded.
func (a *Aligner) Valid() bool {
	return a.valid
}

// Update recomputes the hand reference frame from a fresh landmark set.
// On ErrDegenerateHand the prior frame is left untouched.
func (a *Aligner) Update(lm detector.Hand, w, h int) error {
	wrist := lm[detector.Wrist]
	midMCP := lm[detector.MiddleMCP]
	indexMCP := lm[detector.IndexMCP]
	indexTip := lm[detector.IndexTip]

	scale := math.Hypot(indexTip.X-indexMCP.X, indexTip.Y-indexMCP.Y)
	if scale == 0 {
		return ErrDegenerateHand
	}

	a.PalmCenter = Point{
		X: (wrist.X + midMCP.X) / 2,
		Y: (wrist.Y + midMCP.Y) / 2,
	}
	a.ThetaRad = math.Atan2(midMCP.Y-wrist.Y, midMCP.X-wrist.X)
	a.Scale = scale
	a.ImageW = w
	a.ImageH = h
	a.valid = true

	return nil
}

// ToHandFrame transforms a point from normalized image coordinates into the
// hand-centered, rotation- and scale-normalized frame: translate by
// -PalmCenter, rotate by -ThetaRad, divide by Scale.
func (a *Aligner) ToHandFrame(p Point) Point {
	tx := p.X - a.PalmCenter.X
	ty := p.Y - a.PalmCenter.Y

	cos, sin := math.Cos(-a.ThetaRad), math.Sin(-a.ThetaRad)
	rx := tx*cos - ty*sin
	ry := tx*sin + ty*cos

	if a.Scale == 0 {
		return Point{}
	}
	return Point{X: rx / a.Scale, Y: ry / a.Scale}
}

// NormalizedFingertipDistance returns the index-to-middle fingertip
// distance in the hand frame (scale- and rotation-invariant).
func (a *Aligner) NormalizedFingertipDistance(lm detector.Hand) (float64, error) {
	if !a.valid {
		return 0, ErrDegenerateHand
	}
	ip := a.ToHandFrame(Point{X: lm[detector.IndexTip].X, Y: lm[detector.IndexTip].Y})
	mp := a.ToHandFrame(Point{X: lm[detector.MiddleTip].X, Y: lm[detector.MiddleTip].Y})
	return math.Hypot(ip.X-mp.X, ip.Y-mp.Y), nil
}

// FingertipAngleDeg returns the angle, in degrees, between the hand-frame
// vectors from the palm center (the hand-frame origin) to the index and
// middle fingertips: acos(dot(a,b)/(|a||b|)) * 180/pi. A zero-length vector
// makes the angle undefined and returns ErrDegenerateHand.
func (a *Aligner) FingertipAngleDeg(lm detector.Hand) (float64, error) {
	if !a.valid {
		return 0, ErrDegenerateHand
	}
	ip := a.ToHandFrame(Point{X: lm[detector.IndexTip].X, Y: lm[detector.IndexTip].Y})
	mp := a.ToHandFrame(Point{X: lm[detector.MiddleTip].X, Y: lm[detector.MiddleTip].Y})

	magI := math.Hypot(ip.X, ip.Y)
	magM := math.Hypot(mp.X, mp.Y)
	if magI == 0 || magM == 0 {
		return 0, ErrDegenerateHand
	}

	dot := ip.X*mp.X + ip.Y*mp.Y
	cos := dot / (magI * magM)
	// Numeric noise can push cos slightly outside [-1, 1], which makes
	// math.Acos return NaN.
	if cos > 1 {
		cos = 1
	} else if cos < -1 {
		cos = -1
	}
	return math.Acos(cos) * 180 / math.Pi, nil
}

// FingerLengthPx returns the index finger's MCP-to-tip length in pixels:
// the normalized hand scale times the longer image dimension.
func (a *Aligner) FingerLengthPx(lm detector.Hand) float64 {
	return a.Scale * math.Max(float64(a.ImageW), float64(a.ImageH))
}

// DistanceFactor maps finger length in pixels to a [0,1] "how close to the
// camera" factor: 0 very close (finger at least 200px long), 1 far away
// (finger at most 50px long), linearly interpolated between.
func DistanceFactor(fingerLengthPx float64) float64 {
	v := (200 - fingerLengthPx) / 150
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
