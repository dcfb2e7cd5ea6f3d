package plugin

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// TestPlugin_Scrollprobe_Integration exercises the scrollprobe plugin
// binary end to end, if it has been built into plugins/scrollprobe.
func TestPlugin_Scrollprobe_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	if runtime.GOOS != "darwin" {
		t.Skip("scrollprobe plugin only works on macOS")
	}

	pluginDir := findPluginDir("scrollprobe")
	if pluginDir == "" {
		t.Skip("scrollprobe plugin not built")
	}

	mgr := NewManager(filepath.Dir(pluginDir))
	if err := mgr.Discover(); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	plug, err := mgr.Get("scrollprobe")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	executor := NewExecutor(5000)

	req := &Request{
		Action: "natural_scrolling",
	}
	resp, err := executor.Execute(plug, req)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !resp.Success {
		t.Errorf("natural_scrolling: Success = false, Error = %q", resp.Error)
	}

	// scroll_begin with a malformed params payload should fail cleanly
	// rather than crash the plugin process.
	badReq := &Request{
		Action: "scroll_begin",
		Params: json.RawMessage(`{"dx_px": "not-a-number"}`),
	}
	resp, err = executor.Execute(plug, badReq)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if resp.Success {
		t.Error("expected failure for a malformed scroll_begin payload")
	}
}

func findPluginDir(name string) string {
	candidates := []string{
		filepath.Join("../../plugins", name),
		filepath.Join("../../../plugins", name),
	}

	for _, dir := range candidates {
		manifest := filepath.Join(dir, "plugin.json")
		if _, err := os.Stat(manifest); err == nil {
			return dir
		}
	}
	return ""
}
