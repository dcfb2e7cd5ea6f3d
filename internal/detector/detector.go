package detector

import "gocv.io/x/gocv"

// Detector analyzes a video frame and returns at most one hand detection,
// per the landmark-provider contract in spec §6. It returns (nil, nil) when
// no hand is found — that is not an error.
type Detector interface {
	Detect(frame *gocv.Mat, tMs int64) (*HandDet, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for hand detection.
type Config struct {
	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64

	// MinTrackingConf is the minimum tracking confidence threshold (0.0-1.0).
	MinTrackingConf float64
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MinConfidence:   0.5,
		MinTrackingConf: 0.5,
	}
}
