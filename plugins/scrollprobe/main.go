// Package main provides the scroll capability plugin for macOS. For
// scroll_begin and scroll_change it posts one pixel scroll-wheel event via
// the Core Graphics event bridge exposed to JavaScript for Automation; no
// scroll-phase field is set and scroll_end posts nothing. It also reports
// the system's natural-scrolling preference.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Request represents the input from the plugin executor.
type Request struct {
	Action  string          `json:"action"`
	Gesture string          `json:"gesture"`
	Config  json.RawMessage `json:"config"`
	Params  json.RawMessage `json:"params"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// scrollParams is the params payload for scroll_begin/scroll_change actions.
type scrollParams struct {
	DxPx float64 `json:"dx_px"`
	DyPx float64 `json:"dy_px"`
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	switch req.Action {
	case "scroll_begin", "scroll_change":
		var p scrollParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			writeErrorResponse(fmt.Sprintf("failed to decode params: %v", err))
			return
		}
		if err := postScrollWheelEvent(p.DxPx, p.DyPx); err != nil {
			writeErrorResponse(fmt.Sprintf("action %s failed: %v", req.Action, err))
			return
		}
		writeSuccessResponse(nil)
	case "scroll_end":
		// The OS owns momentum past this point; nothing to post.
		writeSuccessResponse(nil)
	case "natural_scrolling":
		enabled, err := readNaturalScrolling()
		if err != nil {
			writeErrorResponse(fmt.Sprintf("action %s failed: %v", req.Action, err))
			return
		}
		data, _ := json.Marshal(struct {
			Enabled bool `json:"enabled"`
		}{Enabled: enabled})
		writeSuccessResponse(data)
	default:
		writeErrorResponse(fmt.Sprintf("unknown action: %s", req.Action))
	}
}

func writeErrorResponse(errMsg string) {
	resp := Response{Success: false, Error: errMsg}
	json.NewEncoder(os.Stdout).Encode(resp)
}

func writeSuccessResponse(data json.RawMessage) {
	resp := Response{Success: true, Data: data}
	json.NewEncoder(os.Stdout).Encode(resp)
}

// postScrollWheelEvent posts a single Core Graphics scroll-wheel event via
// JXA's ObjC bridge, the same osascript-shelling idiom as the system-control
// plugin's runAppleScript, but in JavaScript for Automation since
// CGEventCreateScrollWheelEvent has no AppleScript verb.
func postScrollWheelEvent(dxPx, dyPx float64) error {
	script := fmt.Sprintf(`
ObjC.import('CoreGraphics');
var src = $.CGEventSourceCreate($.kCGEventSourceStateHIDSystemState);
var ev = $.CGEventCreateScrollWheelEvent(src, $.kCGScrollEventUnitPixel, 2, %d, %d);
$.CGEventPost($.kCGHIDEventTap, ev);
`, int(dyPx), int(dxPx))
	cmd := exec.Command("osascript", "-l", "JavaScript", "-e", script)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, string(output))
	}
	return nil
}

// readNaturalScrolling reads the com.apple.swipescrolldirection global
// preference: "1" means natural (content-follows-finger) scrolling is on.
func readNaturalScrolling() (bool, error) {
	cmd := exec.Command("defaults", "read", "-g", "com.apple.swipescrolldirection")
	output, err := cmd.CombinedOutput()
	if err != nil {
		// Preference has never been set explicitly; macOS defaults to natural
		// scrolling on modern trackpads.
		if strings.Contains(string(output), "does not exist") {
			return true, nil
		}
		return false, fmt.Errorf("%w: %s", err, string(output))
	}
	return strings.TrimSpace(string(output)) == "1", nil
}
