// Package repair implements the per-element repair mini-games.
//
// Each broken element gets one Session. A session is a small state machine
// driven by discrete input events and by fixed-period ticks; it never owns a
// timer itself. The owner asks Ticking() after every call and keeps at most
// one periodic timer running while it reports true.
package repair

import (
	"fmt"

	"github.com/AaronLay10/RepairWorkshop/internal/geom"
)

// Timing and geometry constants shared by the mini-games. Time is measured in
// abstract units; the host maps one unit to one second.
const (
	// TickPeriod is the period of every session timer, in time units.
	TickPeriod = 0.1
	// TapWindow is how long the tap game runs before it is judged.
	TapWindow = 3.0

	// SampleSpacing is the minimum distance (exclusive) between accepted pointer samples.
	SampleSpacing = 5.0
	// SnapDistance: a connection stroke ending farther than this from the target gets the target appended.
	SnapDistance = 30.0
	// EndpointTolerance is the strict bound on both connection endpoints.
	EndpointTolerance = 40.0
	// WaypointTolerance is the strict bound for a sample to match a path waypoint.
	WaypointTolerance = 30.0

	// ConnectionMinSamples: strokes with this many samples or fewer are not judged.
	ConnectionMinSamples = 5
	// PathMinSamples: a path stroke is evaluated only once it has more samples than this.
	PathMinSamples = 10
)

// tapWindowTicks is TapWindow expressed in ticks.
const tapWindowTicks = 30

// State is the outer lifecycle shared by all mini-games.
type State string

const (
	StateIdle       State = "idle"
	StateInProgress State = "in_progress"
	StateSucceeded  State = "succeeded"
	StateReset      State = "reset"
)

// Outcome is the transition, if any, produced by a single Handle or Tick call.
type Outcome int

const (
	// Pending means the session is still in progress.
	Pending Outcome = iota
	// Repaired means the mini-game succeeded; the element is fixed.
	Repaired
	// NeutralReset ends the attempt without charging a mistake.
	NeutralReset
	// Mistake ends the attempt and charges one mistake.
	Mistake
)

func (o Outcome) String() string {
	switch o {
	case Pending:
		return "pending"
	case Repaired:
		return "repaired"
	case NeutralReset:
		return "neutral_reset"
	case Mistake:
		return "mistake"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Terminal reports whether the outcome ends the session.
func (o Outcome) Terminal() bool {
	return o != Pending
}

// InputType names an input event.
type InputType string

const (
	InputTap         InputType = "tap"
	InputPointerMove InputType = "pointer_move"
	InputPointerUp   InputType = "pointer_up"
	InputHold        InputType = "hold"
	InputSubmit      InputType = "submit"
	InputCancel      InputType = "cancel"
)

// Input is one player input addressed to a session. Only the fields relevant
// to Type are read.
type Input struct {
	Type  InputType  `json:"type"`
	Point geom.Point `json:"point"`
	Held  bool       `json:"held,omitempty"`
	Value int        `json:"value,omitempty"`
}

// Tap returns a tap input.
func Tap() Input { return Input{Type: InputTap} }

// Move returns a pointer-move input at p.
func Move(p geom.Point) Input { return Input{Type: InputPointerMove, Point: p} }

// Release returns a pointer-up input.
func Release() Input { return Input{Type: InputPointerUp} }

// Hold returns a hold-signal input.
func Hold(asserted bool) Input { return Input{Type: InputHold, Held: asserted} }

// Submit returns an answer-submission input.
func Submit(value int) Input { return Input{Type: InputSubmit, Value: value} }

// Cancel returns a cancel input.
func Cancel() Input { return Input{Type: InputCancel} }

// Snapshot is a read-only view of a session's progress for presentation.
type Snapshot struct {
	Kind          Kind    `json:"kind"`
	State         State   `json:"state"`
	Taps          int     `json:"taps,omitempty"`
	TapsRequired  int     `json:"taps_required,omitempty"`
	TimeRemaining float64 `json:"time_remaining,omitempty"`
	HoldProgress  float64 `json:"hold_progress,omitempty"`
	HoldSeconds   float64 `json:"hold_seconds,omitempty"`
	Holding       bool    `json:"holding,omitempty"`
	Samples       int     `json:"samples,omitempty"`
	PromptOpen    bool    `json:"prompt_open,omitempty"`
}

// Session is the live state machine of one element's repair attempt.
// A call performs at most one state transition.
type Session interface {
	Kind() Kind
	State() State
	// Handle applies one input. Inputs the game does not understand are ignored.
	Handle(in Input) Outcome
	// Tick advances the session by one TickPeriod.
	Tick() Outcome
	// Ticking reports whether the session currently needs its periodic timer.
	Ticking() bool
	// Tracking reports whether the session accepts pointer-move and pointer-up.
	Tracking() bool
	Snapshot() Snapshot
}

// New starts a session for spec. The session is returned already activated.
func New(spec Spec) (Session, error) {
	if spec == nil {
		return nil, fmt.Errorf("repair: nil spec")
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	switch s := spec.(type) {
	case TapCount:
		return newTapSession(s), nil
	case Connection:
		return newConnectionSession(s), nil
	case LogicAnswer:
		return newLogicSession(s), nil
	case HoldDuration:
		return newHoldSession(s), nil
	case PathFollow:
		return newPathSession(s), nil
	default:
		return nil, fmt.Errorf("repair: unsupported spec kind %q", spec.Kind())
	}
}

// lifecycle carries the outer state common to every game.
type lifecycle struct {
	state State
}

func (l *lifecycle) State() State { return l.state }

func (l *lifecycle) active() bool { return l.state == StateInProgress }

// finish records a terminal outcome and returns it unchanged.
func (l *lifecycle) finish(o Outcome) Outcome {
	switch o {
	case Repaired:
		l.state = StateSucceeded
	case NeutralReset, Mistake:
		l.state = StateReset
	}
	return o
}

// sampler accumulates pointer samples, dropping any within SampleSpacing of the previous one.
type sampler struct {
	points []geom.Point
}

// add appends p if it is far enough from the last sample and reports whether it did.
// The first sample of an empty stroke is always accepted.
func (s *sampler) add(p geom.Point) bool {
	if n := len(s.points); n > 0 && !(geom.Distance(s.points[n-1], p) > SampleSpacing) {
		return false
	}
	s.points = append(s.points, p)
	return true
}

func (s *sampler) reset() {
	s.points = nil
}
