// Package pose derives coarse hand-pose flags from raw landmarks. Only the
// "high-five" flag is consumed by the pipeline today (spec §4.5's instant
// scroll-stop trigger); the type is a struct rather than a single bool so a
// future pose is one field away, without touching every call site.
package pose

import "github.com/ayusman/glide/internal/detector"

// Flags reports the coarse hand poses recognized this frame.
type Flags struct {
	// HighFive is true when all four non-thumb fingertips are extended
	// above (lower Y than) their MCP joint in image coordinates, i.e. an
	// open palm facing the camera.
	HighFive bool
}

// fingerJoints pairs each non-thumb fingertip with its MCP joint.
var fingerJoints = [4][2]int{
	{detector.IndexTip, detector.IndexMCP},
	{detector.MiddleTip, detector.MiddleMCP},
	{detector.RingTip, detector.RingMCP},
	{detector.PinkyTip, detector.PinkyMCP},
}

// Detect computes pose Flags from a single frame's landmarks. This is a
// deterministic, per-frame test with no memory of prior frames, per spec
// §9's open-question resolution: extension is "tip Y < MCP Y" in image
// coordinates for all four non-thumb fingers.
func Detect(lm detector.Hand) Flags {
	extended := 0
	for _, pair := range fingerJoints {
		tip, mcp := lm[pair[0]], lm[pair[1]]
		if tip.Y < mcp.Y {
			extended++
		}
	}
	return Flags{HighFive: extended == 4}
}
