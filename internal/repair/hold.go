package repair

import "math"

// holdSession: keep the contact held until Seconds have elapsed. Letting go
// early charges a mistake.
type holdSession struct {
	lifecycle
	seconds  float64
	required int // ticks to reach seconds
	ticks    int
	holding  bool
}

func newHoldSession(spec HoldDuration) *holdSession {
	return &holdSession{
		lifecycle: lifecycle{state: StateInProgress},
		seconds:   spec.Seconds,
		required:  holdTicks(spec.Seconds),
	}
}

// holdTicks converts seconds to whole ticks, absorbing float noise such as 2.0/0.1 = 19.999....
func holdTicks(seconds float64) int {
	n := int(math.Ceil(seconds/TickPeriod - 1e-9))
	if n < 1 {
		n = 1
	}
	return n
}

func (s *holdSession) Kind() Kind { return KindHoldDuration }

func (s *holdSession) Handle(in Input) Outcome {
	if !s.active() {
		return Pending
	}
	switch in.Type {
	case InputHold:
		if in.Held {
			if !s.holding {
				s.holding = true
				s.ticks = 0
			}
			return Pending
		}
		if s.holding {
			s.holding = false
			s.ticks = 0
			return s.finish(Mistake)
		}
	case InputCancel:
		s.holding = false
		return s.finish(NeutralReset)
	}
	return Pending
}

func (s *holdSession) Tick() Outcome {
	if !s.active() || !s.holding {
		return Pending
	}
	s.ticks++
	if s.ticks >= s.required {
		s.holding = false
		return s.finish(Repaired)
	}
	return Pending
}

// progress is the held time in units, clamped to seconds.
func (s *holdSession) progress() float64 {
	return math.Min(float64(s.ticks)*TickPeriod, s.seconds)
}

func (s *holdSession) Ticking() bool  { return s.active() && s.holding }
func (s *holdSession) Tracking() bool { return false }

func (s *holdSession) Snapshot() Snapshot {
	return Snapshot{
		Kind:         KindHoldDuration,
		State:        s.state,
		HoldProgress: s.progress(),
		HoldSeconds:  s.seconds,
		Holding:      s.holding,
	}
}
