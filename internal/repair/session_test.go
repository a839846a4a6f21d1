package repair

import (
	"math"
	"testing"

	"github.com/AaronLay10/RepairWorkshop/internal/geom"
)

func mustNew(t *testing.T, spec Spec) Session {
	t.Helper()
	s, err := New(spec)
	if err != nil {
		t.Fatalf("failed to start session: %v", err)
	}
	return s
}

func TestNewRejectsInvalidSpecs(t *testing.T) {
	invalid := []Spec{
		nil,
		TapCount{Required: 0},
		HoldDuration{Seconds: 0},
		HoldDuration{Seconds: -1},
		HoldDuration{Seconds: math.NaN()},
		HoldDuration{Seconds: math.Inf(1)},
		HoldDuration{Seconds: 1e20},
		PathFollow{},
	}
	for _, spec := range invalid {
		if _, err := New(spec); err == nil {
			t.Errorf("expected error for spec %#v", spec)
		}
	}
}

func TestTapCount_ExactTapsBeforeDeadline(t *testing.T) {
	s := mustNew(t, TapCount{Required: 5})
	if s.State() != StateInProgress {
		t.Fatalf("expected in_progress after activation, got %s", s.State())
	}
	if !s.Ticking() {
		t.Error("tap session should request a timer while in progress")
	}

	for i := 0; i < 4; i++ {
		if out := s.Handle(Tap()); out != Pending {
			t.Fatalf("tap %d: expected pending, got %s", i+1, out)
		}
		s.Tick()
	}
	if out := s.Handle(Tap()); out != Repaired {
		t.Fatalf("expected repaired on 5th tap, got %s", out)
	}
	if s.State() != StateSucceeded {
		t.Errorf("expected succeeded, got %s", s.State())
	}
	if s.Ticking() {
		t.Error("timer should not be requested after success")
	}
	if out := s.Handle(Tap()); out != Pending {
		t.Errorf("taps after success should be ignored, got %s", out)
	}
}

func TestTapCount_TimeoutIsNeutral(t *testing.T) {
	s := mustNew(t, TapCount{Required: 5})
	s.Handle(Tap())
	s.Handle(Tap())

	var out Outcome
	ticks := 0
	for s.Ticking() {
		out = s.Tick()
		ticks++
		if ticks > 100 {
			t.Fatal("tap window never closed")
		}
	}
	if ticks != 30 {
		t.Errorf("expected the 3.0 unit window to close after 30 ticks, got %d", ticks)
	}
	if out != NeutralReset {
		t.Errorf("expected neutral reset on timeout, got %s", out)
	}
	if s.State() != StateReset {
		t.Errorf("expected reset state, got %s", s.State())
	}
}

func TestTapCount_RemainingTimeCountsDown(t *testing.T) {
	s := mustNew(t, TapCount{Required: 3})
	if got := s.Snapshot().TimeRemaining; math.Abs(got-TapWindow) > 1e-9 {
		t.Errorf("expected %v remaining, got %v", TapWindow, got)
	}
	for i := 0; i < 10; i++ {
		s.Tick()
	}
	if got := s.Snapshot().TimeRemaining; math.Abs(got-2.0) > 1e-9 {
		t.Errorf("expected 2.0 remaining after 10 ticks, got %v", got)
	}
}

func TestTapCount_Cancel(t *testing.T) {
	s := mustNew(t, TapCount{Required: 2})
	if out := s.Handle(Cancel()); out != NeutralReset {
		t.Errorf("expected neutral reset on cancel, got %s", out)
	}
}

// stroke feeds evenly spaced samples from a to b (inclusive of b).
func stroke(s Session, a, b geom.Point, steps int) Outcome {
	var out Outcome
	for i := 1; i <= steps; i++ {
		f := float64(i) / float64(steps)
		out = s.Handle(Move(geom.Pt(a.X+(b.X-a.X)*f, a.Y+(b.Y-a.Y)*f)))
		if out.Terminal() {
			return out
		}
	}
	return out
}

func TestConnection_ShortStrokeIsNeutral(t *testing.T) {
	s := mustNew(t, Connection{Start: geom.Pt(0, 0), End: geom.Pt(200, 0)})
	// start seed + 4 samples = 5 points
	stroke(s, geom.Pt(0, 0), geom.Pt(40, 0), 4)
	if got := s.Snapshot().Samples; got != 5 {
		t.Fatalf("expected 5 samples, got %d", got)
	}
	if out := s.Handle(Release()); out != NeutralReset {
		t.Errorf("expected neutral reset for <=5 samples, got %s", out)
	}
}

func TestConnection_DeduplicatesNearbySamples(t *testing.T) {
	s := mustNew(t, Connection{Start: geom.Pt(0, 0), End: geom.Pt(200, 0)})
	s.Handle(Move(geom.Pt(3, 0))) // within 5 of the seeded start
	s.Handle(Move(geom.Pt(5, 0))) // exactly 5: not strictly farther
	if got := s.Snapshot().Samples; got != 1 {
		t.Errorf("expected only the seeded start, got %d samples", got)
	}
	s.Handle(Move(geom.Pt(5.1, 0)))
	if got := s.Snapshot().Samples; got != 2 {
		t.Errorf("expected 2 samples, got %d", got)
	}
}

func TestConnection_SuccessAndSnap(t *testing.T) {
	s := mustNew(t, Connection{Start: geom.Pt(0, 0), End: geom.Pt(200, 0)})
	// Stop 100 units short: the end point is appended, so both endpoints match.
	stroke(s, geom.Pt(0, 0), geom.Pt(100, 0), 10)
	if out := s.Handle(Release()); out != Repaired {
		t.Errorf("expected repaired, got %s", out)
	}
}

func TestConnection_OffTargetStrokeSnaps(t *testing.T) {
	s := mustNew(t, Connection{Start: geom.Pt(0, 0), End: geom.Pt(200, 0)})
	stroke(s, geom.Pt(0, 0), geom.Pt(0, 100), 5)
	stroke(s, geom.Pt(0, 100), geom.Pt(200, 100), 10)
	// The stroke ends 100 away from the target, so the target is appended.
	if out := s.Handle(Release()); out != Repaired {
		t.Errorf("expected snapped stroke to repair, got %s", out)
	}
}

func TestConnection_WrongStartIsMistake(t *testing.T) {
	// Pointer samples are always seeded with the start point, so an off-start
	// stroke can only be produced by setting the path directly.
	c := newConnectionSession(Connection{Start: geom.Pt(0, 0), End: geom.Pt(200, 0)})
	c.path.points = []geom.Point{
		geom.Pt(50, 0), geom.Pt(60, 0), geom.Pt(70, 0), geom.Pt(80, 0), geom.Pt(90, 0), geom.Pt(195, 0),
	}
	if out := c.Handle(Release()); out != Mistake {
		t.Errorf("expected mistake when the stroke does not begin at the start, got %s", out)
	}
	if c.State() != StateReset {
		t.Errorf("expected reset state, got %s", c.State())
	}
}

func TestConnection_ToleranceIsStrict(t *testing.T) {
	c := newConnectionSession(Connection{Start: geom.Pt(0, 0), End: geom.Pt(200, 0)})
	c.path.points = []geom.Point{
		geom.Pt(40, 0), geom.Pt(60, 0), geom.Pt(80, 0), geom.Pt(100, 0), geom.Pt(120, 0), geom.Pt(190, 0),
	}
	if out := c.Handle(Release()); out != Mistake {
		t.Errorf("a start exactly 40 away must not pass, got %s", out)
	}
}

func TestConnection_IgnoresOtherInputs(t *testing.T) {
	s := mustNew(t, Connection{Start: geom.Pt(0, 0), End: geom.Pt(10, 0)})
	if !s.Tracking() {
		t.Error("connection session should track pointer events")
	}
	if s.Ticking() {
		t.Error("connection session never needs a timer")
	}
	if out := s.Handle(Submit(4)); out != Pending {
		t.Errorf("submit should be ignored, got %s", out)
	}
	if out := s.Handle(Tap()); out != Pending {
		t.Errorf("tap should be ignored, got %s", out)
	}
}

func TestHoldDuration_ProgressAndSuccess(t *testing.T) {
	s := mustNew(t, HoldDuration{Seconds: 2.0})
	if s.Ticking() {
		t.Error("hold session should not tick before the hold begins")
	}
	s.Handle(Hold(true))
	if !s.Ticking() {
		t.Fatal("hold session should tick while held")
	}

	prev := 0.0
	for i := 1; i < 20; i++ {
		if out := s.Tick(); out != Pending {
			t.Fatalf("tick %d: expected pending, got %s", i, out)
		}
		got := s.Snapshot().HoldProgress
		if math.Abs(got-prev-TickPeriod) > 1e-9 {
			t.Fatalf("tick %d: expected progress to grow by 0.1, went %v -> %v", i, prev, got)
		}
		prev = got
	}
	if out := s.Tick(); out != Repaired {
		t.Fatalf("expected repaired on the 20th tick, got %s", out)
	}
	if got := s.Snapshot().HoldProgress; got != 2.0 {
		t.Errorf("expected progress clamped to 2.0, got %v", got)
	}
	if s.Ticking() {
		t.Error("timer should stop after success")
	}
}

func TestHoldDuration_EarlyReleaseIsMistake(t *testing.T) {
	s := mustNew(t, HoldDuration{Seconds: 1.0})
	s.Handle(Hold(true))
	s.Tick()
	s.Tick()
	if out := s.Handle(Hold(false)); out != Mistake {
		t.Fatalf("expected mistake on early release, got %s", out)
	}
	snap := s.Snapshot()
	if snap.HoldProgress != 0 || snap.Holding {
		t.Errorf("expected progress reset, got %+v", snap)
	}
	if s.Ticking() {
		t.Error("timer should stop after release")
	}
}

func TestHoldDuration_RepeatedAssertAndStrayRelease(t *testing.T) {
	s := mustNew(t, HoldDuration{Seconds: 0.3})
	if out := s.Handle(Hold(false)); out != Pending {
		t.Errorf("release without a hold should be ignored, got %s", out)
	}
	s.Handle(Hold(true))
	s.Tick()
	s.Handle(Hold(true)) // still holding; must not restart
	s.Tick()
	if out := s.Tick(); out != Repaired {
		t.Errorf("expected repaired after 3 ticks of 0.3s hold, got %s", out)
	}
}

func TestPathFollow_SucceedsWithTwoThirds(t *testing.T) {
	waypoints := []geom.Point{geom.Pt(0, 0), geom.Pt(100, 0), geom.Pt(200, 0)}
	s := mustNew(t, PathFollow{Waypoints: waypoints})
	if !s.Tracking() {
		t.Fatal("path session should track pointer events")
	}
	// 12 samples covering x in [0, 110]: matches the first two waypoints only.
	var out Outcome
	for i := 0; i <= 11; i++ {
		out = s.Handle(Move(geom.Pt(float64(i)*10, 0)))
		if out.Terminal() {
			break
		}
	}
	if out != Repaired {
		t.Errorf("expected 2 of 3 waypoints to repair, got %s (samples %d)", out, s.Snapshot().Samples)
	}
}

func TestPathFollow_NeedsMoreThanTenSamples(t *testing.T) {
	s := mustNew(t, PathFollow{Waypoints: []geom.Point{geom.Pt(0, 0)}})
	for i := 0; i < 10; i++ {
		if out := s.Handle(Move(geom.Pt(float64(i)*10, 0))); out != Pending {
			t.Fatalf("sample %d: expected pending before 11 samples, got %s", i+1, out)
		}
	}
	// With one waypoint the floor threshold is 0: the 11th sample always succeeds.
	if out := s.Handle(Move(geom.Pt(500, 500))); out != Repaired {
		t.Errorf("expected repaired on the 11th sample, got %s", out)
	}
}

func TestPathFollow_NeverFails(t *testing.T) {
	waypoints := []geom.Point{geom.Pt(0, 0), geom.Pt(100, 0), geom.Pt(200, 0)}
	s := mustNew(t, PathFollow{Waypoints: waypoints})
	for i := 0; i < 50; i++ {
		if out := s.Handle(Move(geom.Pt(float64(i)*10, 500))); out != Pending {
			t.Fatalf("off-path stroke must stay pending, got %s", out)
		}
	}
	if out := s.Handle(Release()); out != Pending {
		t.Errorf("pointer-up must not fail the path game, got %s", out)
	}
	if s.State() != StateInProgress {
		t.Errorf("expected in_progress, got %s", s.State())
	}
	if got := s.Snapshot().Samples; got != 0 {
		t.Errorf("pointer-up should discard the stroke, got %d samples", got)
	}
}

func TestLogicAnswer(t *testing.T) {
	s := mustNew(t, LogicAnswer{Prompt: "2 + 2", Answer: 4})
	if !s.Snapshot().PromptOpen {
		t.Error("prompt should be open after activation")
	}
	if out := s.Handle(Submit(7)); out != Mistake {
		t.Errorf("expected mistake for wrong answer, got %s", out)
	}
	if s.Snapshot().PromptOpen {
		t.Error("prompt should close after a wrong answer")
	}

	s = mustNew(t, LogicAnswer{Prompt: "2 + 2", Answer: 4})
	if out := s.Handle(Submit(4)); out != Repaired {
		t.Errorf("expected repaired for correct answer, got %s", out)
	}
}

func TestDescribe(t *testing.T) {
	cases := map[Spec]string{
		TapCount{Required: 8}:        "Stuck Button - Tap 8 times",
		HoldDuration{Seconds: 2.5}:   "Overheated Contact - Hold for 2s",
		LogicAnswer{Prompt: "2 + 2"}: "Logic Error - Solve: 2 + 2",
		Connection{}:                 "Broken Connection - Connect the points",
	}
	for spec, want := range cases {
		if got := spec.Describe(); got != want {
			t.Errorf("%s: got %q, want %q", spec.Kind(), got, want)
		}
	}
}
