// Package flow computes Micro-Flow Cohesion (MFC): a measure of how
// consistently the index and middle fingertip patches move together
// between consecutive frames, used by internal/touchproof as a secondary
// signal that distinguishes true contact from a near-miss hover.
package flow

import (
	"image"
	"math"

	"gocv.io/x/gocv"
)

// DefaultHistory is the number of flow-vector pairs retained for the
// Pearson correlation computed on each Update.
const DefaultHistory = 5

// DefaultMagnitudeRatioMin is the lower bound of the flow-magnitude-ratio
// band counted as a magnitude agreement.
const DefaultMagnitudeRatioMin = 0.6

// winSize and maxLevel mirror the pyramidal Lucas-Kanade parameters used
// for fingertip patch tracking: a 15x15 search window and 2 pyramid levels.
var (
	winSize  = image.Pt(15, 15)
	maxLevel = 2
)

type flowSample struct {
	fx, fy float64
}

// Tracker computes optical flow for a pair of fingertip points across
// consecutive grayscale frames and fuses the result into an MFC score.
type Tracker struct {
	history          int
	magnitudeRatioMin float64

	prevGray   gocv.Mat
	haveFrame  bool
	indexHist  []flowSample
	middleHist []flowSample
}

// NewTracker returns a Tracker using the given history length and minimum
// magnitude-ratio for agreement; zero values fall back to defaults.
func NewTracker(history int, magnitudeRatioMin float64) *Tracker {
	if history <= 0 {
		history = DefaultHistory
	}
	if magnitudeRatioMin <= 0 {
		magnitudeRatioMin = DefaultMagnitudeRatioMin
	}
	return &Tracker{
		history:           history,
		magnitudeRatioMin: magnitudeRatioMin,
		prevGray:          gocv.NewMat(),
	}
}

// Close releases the Tracker's Mat resources.
func (t *Tracker) Close() {
	if !t.prevGray.Empty() {
		t.prevGray.Close()
	}
}

// Reset drops accumulated flow history, e.g. after hand loss.
func (t *Tracker) Reset() {
	t.haveFrame = false
	t.indexHist = t.indexHist[:0]
	t.middleHist = t.middleHist[:0]
}

// Update computes optical flow for the index and middle fingertip points
// (in pixel coordinates) between the previous grayscale frame and gray,
// and returns the fused MFC score. ok is false when flow could not be
// computed (first call, or a failed track) — callers should treat that as
// "signal unavailable", not as mfc=0.
func (t *Tracker) Update(gray gocv.Mat, tipIndexPx, tipMiddlePx image.Point) (mfc float64, ok bool) {
	defer func() {
		gray.CopyTo(&t.prevGray)
		t.haveFrame = true
	}()

	if !t.haveFrame || t.prevGray.Empty() {
		return 0, false
	}

	prevPts := []gocv.Point2f{
		{X: float32(tipIndexPx.X), Y: float32(tipIndexPx.Y)},
		{X: float32(tipMiddlePx.X), Y: float32(tipMiddlePx.Y)},
	}
	prevVec := gocv.NewPoint2fVectorFromPoints(prevPts)
	defer prevVec.Close()

	nextVec := gocv.NewPoint2fVector()
	defer nextVec.Close()

	status := gocv.NewMat()
	defer status.Close()
	errMat := gocv.NewMat()
	defer errMat.Close()

	criteria := gocv.NewTermCriteria(gocv.Count+gocv.EPS, 10, 0.03)

	gocv.CalcOpticalFlowPyrLKWithParams(t.prevGray, gray, prevVec, nextVec, &status, &errMat,
		winSize, maxLevel, criteria, 0, 0.001)

	nextPts := nextVec.ToPoints()
	if len(nextPts) != 2 {
		return 0, false
	}
	statusBytes := statusToBytes(status)
	if len(statusBytes) < 2 || statusBytes[0] == 0 || statusBytes[1] == 0 {
		return 0, false
	}

	flowIndex := flowSample{fx: float64(nextPts[0].X - prevPts[0].X), fy: float64(nextPts[0].Y - prevPts[0].Y)}
	flowMiddle := flowSample{fx: float64(nextPts[1].X - prevPts[1].X), fy: float64(nextPts[1].Y - prevPts[1].Y)}

	t.indexHist = pushCapped(t.indexHist, flowIndex, t.history)
	t.middleHist = pushCapped(t.middleHist, flowMiddle, t.history)

	corr := 0.5 * (pearson(xs(t.indexHist), xs(t.middleHist)) + pearson(ys(t.indexHist), ys(t.middleHist)))
	if math.IsNaN(corr) {
		corr = 0
	}
	if corr < 0 {
		corr = 0
	}

	magIndex := meanAbs(t.indexHist)
	magMiddle := meanAbs(t.middleHist)

	var magScore float64
	switch {
	case magIndex < 1e-6 && magMiddle < 1e-6:
		magScore = 0
	case magIndex < 1e-6 || magMiddle < 1e-6:
		magScore = 0
	default:
		ratio := math.Min(magIndex, magMiddle) / math.Max(magIndex, magMiddle)
		if ratio >= t.magnitudeRatioMin && ratio <= 1.0 {
			magScore = 1
		}
	}

	mfc = clamp(0.7*corr+0.3*magScore, 0, 1)
	return mfc, true
}

func statusToBytes(status gocv.Mat) []byte {
	n := status.Rows() * status.Cols()
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		out[i] = status.GetUCharAt(i, 0)
	}
	return out
}

func pushCapped(hist []flowSample, s flowSample, cap_ int) []flowSample {
	hist = append(hist, s)
	if len(hist) > cap_ {
		hist = hist[len(hist)-cap_:]
	}
	return hist
}

func xs(h []flowSample) []float64 {
	out := make([]float64, len(h))
	for i, s := range h {
		out[i] = s.fx
	}
	return out
}

func ys(h []flowSample) []float64 {
	out := make([]float64, len(h))
	for i, s := range h {
		out[i] = s.fy
	}
	return out
}

func meanAbs(h []flowSample) float64 {
	if len(h) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range h {
		sum += math.Hypot(s.fx, s.fy)
	}
	return sum / float64(len(h))
}

func pearson(a, b []float64) float64 {
	n := len(a)
	if n == 0 || n != len(b) {
		return math.NaN()
	}
	var meanA, meanB float64
	for i := range a {
		meanA += a[i]
		meanB += b[i]
	}
	meanA /= float64(n)
	meanB /= float64(n)

	var num, denA, denB float64
	for i := range a {
		da, db := a[i]-meanA, b[i]-meanB
		num += da * db
		denA += da * da
		denB += db * db
	}
	if denA == 0 || denB == 0 {
		return math.NaN()
	}
	return num / math.Sqrt(denA*denB)
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
