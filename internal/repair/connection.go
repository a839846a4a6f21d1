package repair

import "github.com/AaronLay10/RepairWorkshop/internal/geom"

// connectionSession: drag a stroke from start to end, judged on pointer-up.
// Points arrive already in the same frame as Start and End.
type connectionSession struct {
	lifecycle
	start, end geom.Point
	path       sampler
}

func newConnectionSession(spec Connection) *connectionSession {
	return &connectionSession{
		lifecycle: lifecycle{state: StateInProgress},
		start:     spec.Start,
		end:       spec.End,
	}
}

func (s *connectionSession) Kind() Kind { return KindConnection }

func (s *connectionSession) Handle(in Input) Outcome {
	if !s.active() {
		return Pending
	}
	switch in.Type {
	case InputPointerMove:
		if len(s.path.points) == 0 {
			s.path.points = append(s.path.points, s.start)
		}
		s.path.add(in.Point)
	case InputPointerUp:
		return s.finish(s.judge())
	case InputCancel:
		return s.finish(NeutralReset)
	}
	return Pending
}

func (s *connectionSession) judge() Outcome {
	if len(s.path.points) <= ConnectionMinSamples {
		return NeutralReset
	}
	path := append([]geom.Point(nil), s.path.points...)
	if geom.Distance(path[len(path)-1], s.end) > SnapDistance {
		path = append(path, s.end)
	}
	startDistance := geom.Distance(path[0], s.start)
	endDistance := geom.Distance(path[len(path)-1], s.end)
	if startDistance < EndpointTolerance && endDistance < EndpointTolerance {
		return Repaired
	}
	return Mistake
}

func (s *connectionSession) Tick() Outcome  { return Pending }
func (s *connectionSession) Ticking() bool  { return false }
func (s *connectionSession) Tracking() bool { return s.active() }

func (s *connectionSession) Snapshot() Snapshot {
	return Snapshot{Kind: KindConnection, State: s.state, Samples: len(s.path.points)}
}
