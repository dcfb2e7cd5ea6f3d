package scrollaction

import (
	"errors"
	"testing"
)

func TestAction_BeginUpdateEnd_PostsInOrder(t *testing.T) {
	sink := &TestSink{}
	a := New(sink, DefaultConfig())

	if err := a.Begin(0, 1, 0.033); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := a.Update(0, 1, 0.033); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := a.Update(0, 0.5, 0.033); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := a.End(); err != nil {
		t.Fatalf("End: %v", err)
	}

	want := []string{"begin", "change", "change", "end"}
	if len(sink.Calls) != len(want) {
		t.Fatalf("Calls = %v, want %v", sink.Calls, want)
	}
	for i, c := range want {
		if sink.Calls[i] != c {
			t.Errorf("Calls[%d] = %q, want %q", i, sink.Calls[i], c)
		}
	}
}

func TestAction_DoubleBeginIsPhaseViolation(t *testing.T) {
	sink := &TestSink{}
	a := New(sink, DefaultConfig())
	if err := a.Begin(0, 1, 0.033); err != nil {
		t.Fatalf("first Begin: %v", err)
	}
	err := a.Begin(0, 1, 0.033)
	if !errors.Is(err, ErrPhaseViolation) {
		t.Errorf("second Begin error = %v, want ErrPhaseViolation", err)
	}
}

func TestAction_UpdateBeforeBeginIsPhaseViolation(t *testing.T) {
	sink := &TestSink{}
	a := New(sink, DefaultConfig())
	err := a.Update(0, 1, 0.033)
	if !errors.Is(err, ErrPhaseViolation) {
		t.Errorf("Update before Begin error = %v, want ErrPhaseViolation", err)
	}
	if len(sink.Calls) != 0 {
		t.Errorf("sink should not have been called, got %v", sink.Calls)
	}
}

func TestAction_EndBeforeBeginIsPhaseViolation(t *testing.T) {
	sink := &TestSink{}
	a := New(sink, DefaultConfig())
	err := a.End()
	if !errors.Is(err, ErrPhaseViolation) {
		t.Errorf("End before Begin error = %v, want ErrPhaseViolation", err)
	}
}

func TestAction_DoubleEndIsPhaseViolation(t *testing.T) {
	sink := &TestSink{}
	a := New(sink, DefaultConfig())
	if err := a.Begin(0, 1, 0.033); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := a.End(); err != nil {
		t.Fatalf("End: %v", err)
	}
	err := a.End()
	if !errors.Is(err, ErrPhaseViolation) {
		t.Errorf("second End error = %v, want ErrPhaseViolation", err)
	}
}

func TestAction_BeginAfterEndStartsFreshEpisode(t *testing.T) {
	sink := &TestSink{}
	a := New(sink, DefaultConfig())
	if err := a.Begin(0, 1, 0.033); err != nil {
		t.Fatalf("Begin #1: %v", err)
	}
	if err := a.End(); err != nil {
		t.Fatalf("End #1: %v", err)
	}
	if err := a.Begin(0, 1, 0.033); err != nil {
		t.Fatalf("Begin #2 should succeed after End: %v", err)
	}
}

func TestAction_DeltaClampsToMaxStep(t *testing.T) {
	sink := &TestSink{}
	cfg := Config{PixelsPerUnit: 800, MaxStepPx: 60, RespectSystemPreference: false}
	a := New(sink, cfg)

	if err := a.Begin(0, 10, 0.1); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	dx, dy := sink.Deltas[0][0], sink.Deltas[0][1]
	if dy != 60 {
		t.Errorf("dy = %f, want clamped to 60", dy)
	}
	if dx != 0 {
		t.Errorf("dx = %f, want 0", dx)
	}
}

func TestAction_DeltaScalesLinearlyBelowClamp(t *testing.T) {
	sink := &TestSink{}
	cfg := Config{PixelsPerUnit: 800, MaxStepPx: 1000, RespectSystemPreference: false}
	a := New(sink, cfg)

	if err := a.Begin(0, 1, 0.01); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	// 800 * 1 * 0.01 = 8
	dy := sink.Deltas[0][1]
	if dy != 8 {
		t.Errorf("dy = %f, want 8", dy)
	}
}

func TestAction_NaturalScrollingInvertsDelta(t *testing.T) {
	sink := &TestSink{Natural: true}
	cfg := Config{PixelsPerUnit: 800, MaxStepPx: 1000, RespectSystemPreference: true}
	a := New(sink, cfg)

	if err := a.Begin(0, 1, 0.01); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	dy := sink.Deltas[0][1]
	if dy != -8 {
		t.Errorf("dy = %f, want -8 (inverted for natural scrolling)", dy)
	}
}

func TestAction_RespectSystemPreferenceFalseIgnoresNatural(t *testing.T) {
	sink := &TestSink{Natural: true}
	cfg := Config{PixelsPerUnit: 800, MaxStepPx: 1000, RespectSystemPreference: false}
	a := New(sink, cfg)

	if err := a.Begin(0, 1, 0.01); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	dy := sink.Deltas[0][1]
	if dy != 8 {
		t.Errorf("dy = %f, want 8 (natural scrolling ignored)", dy)
	}
}

func TestAction_NaturalScrollingReadOnce(t *testing.T) {
	sink := &TestSink{Natural: false}
	a := New(sink, DefaultConfig())

	if err := a.Begin(0, 1, 0.01); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := a.End(); err != nil {
		t.Fatalf("End: %v", err)
	}

	// Flip the sink's preference after the first episode; without an
	// explicit RefreshNaturalScrolling call, the cached value should stick.
	sink.Natural = true
	if err := a.Begin(0, 1, 0.01); err != nil {
		t.Fatalf("Begin #2: %v", err)
	}
	dy := sink.Deltas[len(sink.Deltas)-1][1]
	if dy != 8 {
		t.Errorf("dy = %f, want 8 (preference cached from first read, not refreshed)", dy)
	}
}

func TestAction_RefreshNaturalScrollingPicksUpChange(t *testing.T) {
	sink := &TestSink{Natural: false}
	a := New(sink, DefaultConfig())

	if err := a.Begin(0, 1, 0.01); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := a.End(); err != nil {
		t.Fatalf("End: %v", err)
	}

	sink.Natural = true
	a.RefreshNaturalScrolling()

	if err := a.Begin(0, 1, 0.01); err != nil {
		t.Fatalf("Begin #2: %v", err)
	}
	dy := sink.Deltas[len(sink.Deltas)-1][1]
	if dy != -8 {
		t.Errorf("dy = %f, want -8 after RefreshNaturalScrolling", dy)
	}
}

func TestNullSink_NeverErrors(t *testing.T) {
	var s NullSink
	if err := s.PostBegin(1, 1); err != nil {
		t.Errorf("PostBegin: %v", err)
	}
	if err := s.PostChange(1, 1); err != nil {
		t.Errorf("PostChange: %v", err)
	}
	if err := s.PostEnd(); err != nil {
		t.Errorf("PostEnd: %v", err)
	}
	if s.NaturalScrolling() {
		t.Error("NullSink.NaturalScrolling() should be false")
	}
}
