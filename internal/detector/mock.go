package detector

import (
	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	hand *HandDet
	err  error
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetHand sets the hand that will be returned by Detect. Pass nil to
// simulate a missed detection.
func (m *MockDetector) SetHand(hand *HandDet) {
	m.hand = hand
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.err = err
}

// Detect returns the pre-configured hand or error.
func (m *MockDetector) Detect(frame *gocv.Mat, tMs int64) (*HandDet, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.hand, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// OpenHandLandmarks returns a preset Hand with all fingers extended upward,
// wrist below the MCP row, useful as a base pose for both the high-five
// test and as a template to perturb for pinch/release fixtures.
func OpenHandLandmarks() Hand {
	var h Hand

	h[Wrist] = Landmark{X: 0.50, Y: 0.80}

	h[ThumbCMC] = Landmark{X: 0.55, Y: 0.75}
	h[ThumbMCP] = Landmark{X: 0.62, Y: 0.70}
	h[ThumbIP] = Landmark{X: 0.68, Y: 0.65}
	h[ThumbTip] = Landmark{X: 0.73, Y: 0.60}

	h[IndexMCP] = Landmark{X: 0.55, Y: 0.68}
	h[IndexPIP] = Landmark{X: 0.57, Y: 0.55}
	h[IndexDIP] = Landmark{X: 0.58, Y: 0.45}
	h[IndexTip] = Landmark{X: 0.58, Y: 0.35}

	h[MiddleMCP] = Landmark{X: 0.50, Y: 0.66}
	h[MiddlePIP] = Landmark{X: 0.50, Y: 0.52}
	h[MiddleDIP] = Landmark{X: 0.50, Y: 0.40}
	h[MiddleTip] = Landmark{X: 0.50, Y: 0.28}

	h[RingMCP] = Landmark{X: 0.45, Y: 0.68}
	h[RingPIP] = Landmark{X: 0.43, Y: 0.55}
	h[RingDIP] = Landmark{X: 0.42, Y: 0.45}
	h[RingTip] = Landmark{X: 0.42, Y: 0.35}

	h[PinkyMCP] = Landmark{X: 0.40, Y: 0.70}
	h[PinkyPIP] = Landmark{X: 0.37, Y: 0.60}
	h[PinkyDIP] = Landmark{X: 0.35, Y: 0.50}
	h[PinkyTip] = Landmark{X: 0.34, Y: 0.42}

	return h
}

// PinchHandLandmarks returns a Hand with the index and middle fingertips
// brought together, separated by approximately the given fraction of the
// index finger length, and the ring and pinky fingers curled below their
// MCPs so the pose is not an open palm, matching the fixture shapes
// exercised by the end-to-end pinch/release scenarios in spec §8. angleDeg
// is not applied: the angle between the tips as seen from the palm center
// follows from the separation alone.
func PinchHandLandmarks(fingertipDistFrac, angleDeg float64) Hand {
	h := OpenHandLandmarks()

	// Move the middle fingertip next to the index fingertip so the two tips
	// sit close together, then separate them by the requested amount.
	base := h[IndexTip]
	h[MiddleMCP] = Landmark{X: 0.50, Y: 0.66}
	h[MiddleTip] = Landmark{X: base.X - fingertipDistFrac*0.30, Y: base.Y}
	h[RingTip] = Landmark{X: 0.43, Y: 0.76}
	h[PinkyTip] = Landmark{X: 0.38, Y: 0.77}

	_ = angleDeg // angle is primarily realized through caller-chosen coordinates in tests
	return h
}
