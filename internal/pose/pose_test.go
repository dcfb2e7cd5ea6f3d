package pose

import (
	"testing"

	"github.com/ayusman/glide/internal/detector"
)

func TestDetect_HighFive(t *testing.T) {
	h := detector.OpenHandLandmarks()
	flags := Detect(h)
	if !flags.HighFive {
		t.Error("expected HighFive for a fully open hand")
	}
}

func TestDetect_PinchIsNotHighFive(t *testing.T) {
	h := detector.PinchHandLandmarks(0.1, 10)
	flags := Detect(h)
	if flags.HighFive {
		t.Error("did not expect HighFive for a pinched hand")
	}
}

func TestDetect_CurledFingerBreaksHighFive(t *testing.T) {
	h := detector.OpenHandLandmarks()
	// Curl the ring finger down below its MCP.
	h[detector.RingTip] = detector.Landmark{X: 0.42, Y: 0.90}
	flags := Detect(h)
	if flags.HighFive {
		t.Error("expected HighFive to be false when one finger is curled")
	}
}
