package scrollaction

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ayusman/glide/internal/plugin"
)

// NullSink is the no-op scroll sink, used when the scrollprobe plugin is
// unavailable: the controller keeps tracking state, but scrolling itself
// becomes inert.
type NullSink struct{}

func (NullSink) PostBegin(float64, float64) error  { return nil }
func (NullSink) PostChange(float64, float64) error { return nil }
func (NullSink) PostEnd() error                    { return nil }
func (NullSink) NaturalScrolling() bool            { return false }

// TestSink records every call it receives, in order, so tests can assert
// the Begin<Change*<End invariant (spec §8 "Scroll phase integrity")
// without a real OS capability.
type TestSink struct {
	mu      sync.Mutex
	Calls   []string
	Natural bool
	Deltas  [][2]float64
}

func (s *TestSink) PostBegin(dx, dy float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, "begin")
	s.Deltas = append(s.Deltas, [2]float64{dx, dy})
	return nil
}

func (s *TestSink) PostChange(dx, dy float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, "change")
	s.Deltas = append(s.Deltas, [2]float64{dx, dy})
	return nil
}

func (s *TestSink) PostEnd() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, "end")
	s.Deltas = append(s.Deltas, [2]float64{0, 0})
	return nil
}

func (s *TestSink) NaturalScrolling() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Natural
}

// scrollProbeParams is the params payload of a plugin.Request sent to the
// scroll capability: (dx, dy) pixel deltas.
type scrollProbeParams struct {
	DxPx float64 `json:"dx_px"`
	DyPx float64 `json:"dy_px"`
}

// QuartzSink posts scroll events by invoking the plugins/scrollprobe
// subprocess, the same length-free JSON-over-stdin/stdout protocol the
// teacher's plugins/system-control uses for AppleScript-driven system
// controls (spec §3.7, §3.16). One subprocess call per phase; the plugin
// sets no scroll-phase field on the events it posts and posts nothing for
// scroll_end.
type QuartzSink struct {
	exec   *plugin.Executor
	plugin *plugin.Plugin

	naturalOnce sync.Once
	natural     bool
}

// NewQuartzSink returns a QuartzSink that dispatches through the given
// plugin, using exec (a short-timeout plugin.Executor) to run it.
func NewQuartzSink(exec *plugin.Executor, p *plugin.Plugin) *QuartzSink {
	return &QuartzSink{exec: exec, plugin: p}
}

func (q *QuartzSink) post(action string, dx, dy float64) error {
	params, err := json.Marshal(scrollProbeParams{DxPx: dx, DyPx: dy})
	if err != nil {
		return fmt.Errorf("scrollaction: marshal params: %w", err)
	}
	resp, err := q.exec.Execute(q.plugin, &plugin.Request{Action: action, Params: params})
	if err != nil {
		return fmt.Errorf("scrollaction: %s: %w", action, err)
	}
	if !resp.Success {
		return fmt.Errorf("scrollaction: %s failed: %s", action, resp.Error)
	}
	return nil
}

func (q *QuartzSink) PostBegin(dx, dy float64) error  { return q.post("scroll_begin", dx, dy) }
func (q *QuartzSink) PostChange(dx, dy float64) error { return q.post("scroll_change", dx, dy) }
func (q *QuartzSink) PostEnd() error                  { return q.post("scroll_end", 0, 0) }

// NaturalScrolling shells out once to the scrollprobe plugin's
// "natural_scrolling" query action and caches the result, per spec §4.6's
// "one-time read at startup".
func (q *QuartzSink) NaturalScrolling() bool {
	q.naturalOnce.Do(func() {
		resp, err := q.exec.Execute(q.plugin, &plugin.Request{Action: "natural_scrolling"})
		if err != nil || !resp.Success {
			return
		}
		var data struct {
			Enabled bool `json:"enabled"`
		}
		if json.Unmarshal(resp.Data, &data) == nil {
			q.natural = data.Enabled
		}
	})
	return q.natural
}
