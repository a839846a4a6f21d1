package repair

// tapSession: tap Required times before the window closes. Running out of
// time is a neutral reset, not a mistake.
type tapSession struct {
	lifecycle
	required  int
	taps      int
	remaining int // ticks left in the window
}

func newTapSession(spec TapCount) *tapSession {
	return &tapSession{
		lifecycle: lifecycle{state: StateInProgress},
		required:  spec.Required,
		remaining: tapWindowTicks,
	}
}

func (s *tapSession) Kind() Kind { return KindTapCount }

func (s *tapSession) Handle(in Input) Outcome {
	if !s.active() {
		return Pending
	}
	switch in.Type {
	case InputTap:
		s.taps++
		if s.taps >= s.required {
			return s.finish(Repaired)
		}
	case InputCancel:
		return s.finish(NeutralReset)
	}
	return Pending
}

func (s *tapSession) Tick() Outcome {
	if !s.active() {
		return Pending
	}
	if s.remaining > 0 {
		s.remaining--
	}
	if s.remaining > 0 {
		return Pending
	}
	// The qualifying tap may land on the final tick.
	if s.taps >= s.required {
		return s.finish(Repaired)
	}
	return s.finish(NeutralReset)
}

func (s *tapSession) Ticking() bool  { return s.active() }
func (s *tapSession) Tracking() bool { return false }

func (s *tapSession) Snapshot() Snapshot {
	return Snapshot{
		Kind:          KindTapCount,
		State:         s.state,
		Taps:          s.taps,
		TapsRequired:  s.required,
		TimeRemaining: float64(s.remaining) * TickPeriod,
	}
}
