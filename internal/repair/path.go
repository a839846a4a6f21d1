package repair

import "github.com/AaronLay10/RepairWorkshop/internal/geom"

// pathSession: trace near the waypoints. There is no failure transition; an
// attempt that never matches enough waypoints stays in progress.
type pathSession struct {
	lifecycle
	waypoints []geom.Point
	stroke    sampler
}

func newPathSession(spec PathFollow) *pathSession {
	return &pathSession{
		lifecycle: lifecycle{state: StateInProgress},
		waypoints: append([]geom.Point(nil), spec.Waypoints...),
	}
}

func (s *pathSession) Kind() Kind { return KindPathFollow }

func (s *pathSession) Handle(in Input) Outcome {
	if !s.active() {
		return Pending
	}
	switch in.Type {
	case InputPointerMove:
		if s.stroke.add(in.Point) && s.matches() {
			return s.finish(Repaired)
		}
	case InputPointerUp:
		if s.matches() {
			return s.finish(Repaired)
		}
		// Lifting the finger discards the stroke; the next drag starts over.
		s.stroke.reset()
	case InputCancel:
		return s.finish(NeutralReset)
	}
	return Pending
}

// matches reports whether the stroke is long enough and passes near enough waypoints.
// The threshold is n*2/3 with integer division.
func (s *pathSession) matches() bool {
	if len(s.stroke.points) <= PathMinSamples {
		return false
	}
	matched := 0
	for _, wp := range s.waypoints {
		for _, p := range s.stroke.points {
			if geom.Distance(wp, p) < WaypointTolerance {
				matched++
				break
			}
		}
	}
	return matched >= len(s.waypoints)*2/3
}

func (s *pathSession) Tick() Outcome  { return Pending }
func (s *pathSession) Ticking() bool  { return false }
func (s *pathSession) Tracking() bool { return s.active() }

func (s *pathSession) Snapshot() Snapshot {
	return Snapshot{Kind: KindPathFollow, State: s.state, Samples: len(s.stroke.points)}
}
