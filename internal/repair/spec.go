package repair

import (
	"fmt"
	"math"

	"github.com/AaronLay10/RepairWorkshop/internal/geom"
)

// Kind identifies which mini-game repairs an element.
type Kind string

const (
	KindTapCount     Kind = "tap_count"
	KindConnection   Kind = "connection"
	KindLogicAnswer  Kind = "logic_answer"
	KindHoldDuration Kind = "hold_duration"
	KindPathFollow   Kind = "path_follow"
)

// Spec is the immutable parameter set of one element's mini-game.
// Implemented by TapCount, Connection, LogicAnswer, HoldDuration and PathFollow.
type Spec interface {
	Kind() Kind
	Validate() error
	Describe() string
}

// TapCount is the stuck-button game: tap Required times within the tap window.
type TapCount struct {
	Required int
}

// Connection is the broken-wire game: draw a stroke from Start to End.
type Connection struct {
	Start geom.Point
	End   geom.Point
}

// LogicAnswer is the logic-error game: answer the prompt with a single integer.
type LogicAnswer struct {
	Prompt string
	Answer int
}

// HoldDuration is the overheated-contact game: keep holding for Seconds.
type HoldDuration struct {
	Seconds float64
}

// PathFollow is the stuck-slider game: trace a stroke near the waypoints.
type PathFollow struct {
	Waypoints []geom.Point
}

func (TapCount) Kind() Kind     { return KindTapCount }
func (Connection) Kind() Kind   { return KindConnection }
func (LogicAnswer) Kind() Kind  { return KindLogicAnswer }
func (HoldDuration) Kind() Kind { return KindHoldDuration }
func (PathFollow) Kind() Kind   { return KindPathFollow }

func (s TapCount) Validate() error {
	if s.Required < 1 {
		return fmt.Errorf("tap_count: required must be >= 1, got %d", s.Required)
	}
	return nil
}

func (s Connection) Validate() error {
	return nil
}

func (s LogicAnswer) Validate() error {
	return nil
}

func (s HoldDuration) Validate() error {
	if !(s.Seconds > 0) {
		return fmt.Errorf("hold_duration: seconds must be > 0, got %v", s.Seconds)
	}
	if math.IsInf(s.Seconds, 0) || s.Seconds/TickPeriod > math.MaxInt32 {
		return fmt.Errorf("hold_duration: seconds out of range, got %v", s.Seconds)
	}
	return nil
}

func (s PathFollow) Validate() error {
	if len(s.Waypoints) == 0 {
		return fmt.Errorf("path_follow: at least one waypoint is required")
	}
	return nil
}

func (s TapCount) Describe() string {
	return fmt.Sprintf("Stuck Button - Tap %d times", s.Required)
}

func (s Connection) Describe() string {
	return "Broken Connection - Connect the points"
}

func (s LogicAnswer) Describe() string {
	return "Logic Error - Solve: " + s.Prompt
}

func (s HoldDuration) Describe() string {
	return fmt.Sprintf("Overheated Contact - Hold for %ds", int(s.Seconds))
}

func (s PathFollow) Describe() string {
	return "Stuck Slider - Follow the path"
}
