package dispatcher

import (
	"testing"

	"github.com/ayusman/glide/internal/scrollaction"
	"github.com/ayusman/glide/internal/velocity"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, *scrollaction.TestSink) {
	t.Helper()
	sink := &scrollaction.TestSink{}
	scrollCfg := scrollaction.DefaultConfig()
	action := scrollaction.New(sink, scrollCfg)
	d := New(action, nil, DefaultConfig(scrollCfg))
	return d, sink
}

func TestDispatcher_BeginCallsActionBegin(t *testing.T) {
	d, sink := newTestDispatcher(t)
	upd := velocity.Update{State: velocity.Scrolling, Transition: velocity.Begin, Velocity: velocity.Velocity2D{VY: 1, Magnitude: 1}}
	if err := d.Dispatch(upd, 1, 0.033, 0); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(sink.Calls) != 1 || sink.Calls[0] != "begin" {
		t.Errorf("Calls = %v, want [begin]", sink.Calls)
	}
}

func TestDispatcher_NoneWhileIdleIsNoop(t *testing.T) {
	d, sink := newTestDispatcher(t)
	upd := velocity.Update{State: velocity.Idle, Transition: velocity.None}
	if err := d.Dispatch(upd, 0, 0.033, 0); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(sink.Calls) != 0 {
		t.Errorf("Calls = %v, want none", sink.Calls)
	}
}

func TestDispatcher_NoneWhileScrollingCallsUpdate(t *testing.T) {
	d, sink := newTestDispatcher(t)
	begin := velocity.Update{State: velocity.Scrolling, Transition: velocity.Begin, Velocity: velocity.Velocity2D{VY: 1, Magnitude: 1}}
	change := velocity.Update{State: velocity.Scrolling, Transition: velocity.None, Velocity: velocity.Velocity2D{VY: 0.5, Magnitude: 0.5}}
	if err := d.Dispatch(begin, 1, 0.033, 0); err != nil {
		t.Fatalf("Dispatch begin: %v", err)
	}
	if err := d.Dispatch(change, 1, 0.033, 33); err != nil {
		t.Fatalf("Dispatch change: %v", err)
	}
	want := []string{"begin", "change"}
	if len(sink.Calls) != len(want) || sink.Calls[1] != "change" {
		t.Errorf("Calls = %v, want %v", sink.Calls, want)
	}
}

func TestDispatcher_EndCallsActionEnd(t *testing.T) {
	d, sink := newTestDispatcher(t)
	begin := velocity.Update{State: velocity.Scrolling, Transition: velocity.Begin, Velocity: velocity.Velocity2D{VY: 1, Magnitude: 1}}
	end := velocity.Update{State: velocity.Idle, Transition: velocity.End}
	if err := d.Dispatch(begin, 1, 0.033, 0); err != nil {
		t.Fatalf("Dispatch begin: %v", err)
	}
	if err := d.Dispatch(end, 1, 0.033, 33); err != nil {
		t.Fatalf("Dispatch end: %v", err)
	}
	want := []string{"begin", "end"}
	if len(sink.Calls) != len(want) || sink.Calls[1] != "end" {
		t.Errorf("Calls = %v, want %v", sink.Calls, want)
	}
}

func TestDispatcher_SpeedClampedTo01(t *testing.T) {
	d, _ := newTestDispatcher(t)
	// A velocity far beyond v_ref should still clamp to speed<=1 without
	// panicking or erroring (checked indirectly: Dispatch must succeed).
	upd := velocity.Update{State: velocity.Scrolling, Transition: velocity.Begin, Velocity: velocity.Velocity2D{VY: 1000, Magnitude: 1000}}
	if err := d.Dispatch(upd, 1, 0.033, 0); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
}

func TestDispatcher_BeginThenImmediateEndEmitsNoUpdate(t *testing.T) {
	d, sink := newTestDispatcher(t)
	begin := velocity.Update{State: velocity.Scrolling, Transition: velocity.Begin, Velocity: velocity.Velocity2D{}}
	end := velocity.Update{State: velocity.Idle, Transition: velocity.End}
	if err := d.Dispatch(begin, 1, 0.033, 0); err != nil {
		t.Fatalf("Dispatch begin: %v", err)
	}
	if err := d.Dispatch(end, 1, 0.033, 1); err != nil {
		t.Fatalf("Dispatch end: %v", err)
	}
	if len(sink.Calls) != 2 {
		t.Errorf("Calls = %v, want exactly [begin end]", sink.Calls)
	}
}

type fakeRecorder struct {
	calls int
	peak  float64
}

func (f *fakeRecorder) RecordEpisode(startedAtMs, endedAtMs int64, peakSpeed, totalDyPx float64) {
	f.calls++
	f.peak = peakSpeed
}

func TestDispatcher_RecordsEpisodeOnEnd(t *testing.T) {
	d, _ := newTestDispatcher(t)
	rec := &fakeRecorder{}
	d.SetEpisodeRecorder(rec)

	begin := velocity.Update{State: velocity.Scrolling, Transition: velocity.Begin, Velocity: velocity.Velocity2D{VY: 1, Magnitude: 1}}
	end := velocity.Update{State: velocity.Idle, Transition: velocity.End}
	if err := d.Dispatch(begin, 1, 0.033, 0); err != nil {
		t.Fatalf("Dispatch begin: %v", err)
	}
	if err := d.Dispatch(end, 1, 0.033, 33); err != nil {
		t.Fatalf("Dispatch end: %v", err)
	}
	if rec.calls != 1 {
		t.Errorf("RecordEpisode calls = %d, want 1", rec.calls)
	}
	if rec.peak <= 0 {
		t.Errorf("peak speed = %v, want > 0", rec.peak)
	}
}

func TestDispatcher_NoEpisodeRecorderIsSafe(t *testing.T) {
	d, _ := newTestDispatcher(t)
	begin := velocity.Update{State: velocity.Scrolling, Transition: velocity.Begin, Velocity: velocity.Velocity2D{VY: 1, Magnitude: 1}}
	end := velocity.Update{State: velocity.Idle, Transition: velocity.End}
	if err := d.Dispatch(begin, 1, 0.033, 0); err != nil {
		t.Fatalf("Dispatch begin: %v", err)
	}
	if err := d.Dispatch(end, 1, 0.033, 33); err != nil {
		t.Fatalf("Dispatch end: %v", err)
	}
}
