package repair

// logicSession: one integer answer per opening of the prompt.
type logicSession struct {
	lifecycle
	prompt string
	answer int
}

func newLogicSession(spec LogicAnswer) *logicSession {
	return &logicSession{
		lifecycle: lifecycle{state: StateInProgress},
		prompt:    spec.Prompt,
		answer:    spec.Answer,
	}
}

func (s *logicSession) Kind() Kind { return KindLogicAnswer }

func (s *logicSession) Handle(in Input) Outcome {
	if !s.active() {
		return Pending
	}
	switch in.Type {
	case InputSubmit:
		if in.Value == s.answer {
			return s.finish(Repaired)
		}
		return s.finish(Mistake)
	case InputCancel:
		return s.finish(NeutralReset)
	}
	return Pending
}

func (s *logicSession) Tick() Outcome  { return Pending }
func (s *logicSession) Ticking() bool  { return false }
func (s *logicSession) Tracking() bool { return false }

func (s *logicSession) Snapshot() Snapshot {
	return Snapshot{Kind: KindLogicAnswer, State: s.state, PromptOpen: s.active()}
}
