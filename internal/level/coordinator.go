// Package level coordinates the repair sessions of one tool.
//
// A Coordinator owns the element list, the single map of live sessions and
// their timers, the mistake counter and the level start time. It is not safe
// for concurrent use: every call, including timer callbacks, must run on the
// same goroutine (the host's event loop).
package level

import (
	"context"
	"fmt"
	"time"

	"github.com/AaronLay10/RepairWorkshop/internal/events"
	"github.com/AaronLay10/RepairWorkshop/internal/geom"
	"github.com/AaronLay10/RepairWorkshop/internal/repair"
)

// DefaultTickInterval is the wall-clock length of one repair.TickPeriod.
const DefaultTickInterval = 100 * time.Millisecond

const handoffTimeout = 5 * time.Second

// Element is one interactive point on a tool.
type Element struct {
	ID       string
	Name     string
	Broken   bool
	Spec     repair.Spec // nil when not broken
	Position geom.Point
	Size     geom.Size
}

// Observer receives engine outputs.
type Observer interface {
	ElementRepaired(elementID string)
	Mistake(elementID string)
	LevelComplete(elapsed time.Duration, mistakes int)
}

// ProgressRecorder is handed the result of a completed level.
type ProgressRecorder interface {
	RecordRepair(ctx context.Context, toolID string, elapsed time.Duration, perfect bool) error
}

// UnlockManager is told when a tool has been fully repaired.
type UnlockManager interface {
	MarkRepaired(ctx context.Context, toolID string) error
}

type activeSession struct {
	session repair.Session
	timer   Timer
}

// Coordinator runs one level.
type Coordinator struct {
	toolID   string
	elements []Element
	index    map[string]int
	sessions map[string]*activeSession
	focused  string

	mistakes  int
	startTime time.Time
	elapsed   time.Duration // frozen by finish
	finished  bool
	torndown  bool

	clock        Clock
	scheduler    Scheduler
	tickInterval time.Duration

	observer Observer
	recorder ProgressRecorder
	unlocks  UnlockManager
}

// NewCoordinator starts a level for toolID over elements. The element slice is
// copied; broken elements must carry a valid spec.
func NewCoordinator(toolID string, elements []Element, clock Clock, scheduler Scheduler) (*Coordinator, error) {
	if clock == nil || scheduler == nil {
		return nil, fmt.Errorf("level: clock and scheduler are required")
	}

	c := &Coordinator{
		toolID:       toolID,
		elements:     make([]Element, len(elements)),
		index:        make(map[string]int, len(elements)),
		sessions:     make(map[string]*activeSession),
		clock:        clock,
		scheduler:    scheduler,
		tickInterval: DefaultTickInterval,
	}

	for i, el := range elements {
		if el.ID == "" {
			return nil, fmt.Errorf("level: element %d (%s) has no id", i, el.Name)
		}
		if _, dup := c.index[el.ID]; dup {
			return nil, fmt.Errorf("level: duplicate element id %s", el.ID)
		}
		if el.Broken {
			if el.Spec == nil {
				return nil, fmt.Errorf("level: broken element %s has no repair spec", el.ID)
			}
			if err := el.Spec.Validate(); err != nil {
				return nil, fmt.Errorf("level: element %s: %w", el.ID, err)
			}
		} else {
			el.Spec = nil
		}
		c.elements[i] = el
		c.index[el.ID] = i
	}

	c.startTime = clock.Now()
	c.emitEvent("level.started", map[string]interface{}{
		"tool_id":  toolID,
		"elements": len(c.elements),
		"broken":   c.brokenCount(),
	})

	return c, nil
}

// SetObserver sets the receiver of engine outputs.
func (c *Coordinator) SetObserver(o Observer) {
	c.observer = o
}

// SetProgressRecorder sets the collaborator told about completed levels.
func (c *Coordinator) SetProgressRecorder(r ProgressRecorder) {
	c.recorder = r
}

// SetUnlockManager sets the collaborator told about repaired tools.
func (c *Coordinator) SetUnlockManager(u UnlockManager) {
	c.unlocks = u
}

// SetTickInterval overrides the wall-clock length of a tick for timers started afterwards.
func (c *Coordinator) SetTickInterval(d time.Duration) {
	if d > 0 {
		c.tickInterval = d
	}
}

// ActivateElement opens the mini-game of a broken element. If the element's
// tap game is already running the call counts as a tap; other running games
// just regain focus.
func (c *Coordinator) ActivateElement(id string) {
	if !c.accepting() {
		return
	}
	el := c.element(id)
	if el == nil || !el.Broken {
		return
	}

	if as, ok := c.sessions[id]; ok && as.session.State() == repair.StateInProgress {
		if as.session.Kind() == repair.KindTapCount {
			c.apply(id, as, as.session.Handle(repair.Tap()))
			return
		}
		c.focused = id
		return
	}

	c.openSession(id, el)
}

// Tap is the tap input; it activates or advances the element's game.
func (c *Coordinator) Tap(id string) {
	c.ActivateElement(id)
}

// PointerMove feeds a pointer sample to a tracking session.
func (c *Coordinator) PointerMove(id string, p geom.Point) {
	c.routeTracking(id, repair.Move(p))
}

// PointerUp ends the current stroke of a tracking session.
func (c *Coordinator) PointerUp(id string) {
	c.routeTracking(id, repair.Release())
}

// HoldSignal asserts or releases the hold on a hold-duration element. Pressing
// an element that has no session opens one.
func (c *Coordinator) HoldSignal(id string, asserted bool) {
	if !c.accepting() {
		return
	}
	el := c.element(id)
	if el == nil || !el.Broken || el.Spec.Kind() != repair.KindHoldDuration {
		return
	}
	as, ok := c.sessions[id]
	if !ok {
		if !asserted {
			return
		}
		if as = c.openSession(id, el); as == nil {
			return
		}
	}
	c.apply(id, as, as.session.Handle(repair.Hold(asserted)))
}

// SubmitAnswer answers an open logic prompt.
func (c *Coordinator) SubmitAnswer(id string, value int) {
	if !c.accepting() {
		return
	}
	as, ok := c.sessions[id]
	if !ok || as.session.Kind() != repair.KindLogicAnswer {
		return
	}
	c.apply(id, as, as.session.Handle(repair.Submit(value)))
}

// Cancel abandons the element's attempt without charging a mistake.
func (c *Coordinator) Cancel(id string) {
	if !c.accepting() {
		return
	}
	if as, ok := c.sessions[id]; ok {
		c.apply(id, as, as.session.Handle(repair.Cancel()))
	}
}

// Route dispatches an input event by type. Unknown types are ignored.
func (c *Coordinator) Route(id string, in repair.Input) {
	switch in.Type {
	case repair.InputTap:
		c.Tap(id)
	case repair.InputPointerMove:
		c.PointerMove(id, in.Point)
	case repair.InputPointerUp:
		c.PointerUp(id)
	case repair.InputHold:
		c.HoldSignal(id, in.Held)
	case repair.InputSubmit:
		c.SubmitAnswer(id, in.Value)
	case repair.InputCancel:
		c.Cancel(id)
	}
}

// Teardown cancels every timer and drops all sessions. The level accepts no
// further input afterwards.
func (c *Coordinator) Teardown() {
	if c.torndown {
		return
	}
	for id, as := range c.sessions {
		c.stopTimer(id, as)
		delete(c.sessions, id)
	}
	c.focused = ""
	c.torndown = true
	c.emitEvent("level.teardown", map[string]interface{}{"tool_id": c.toolID})
}

func (c *Coordinator) accepting() bool {
	return !c.finished && !c.torndown
}

func (c *Coordinator) routeTracking(id string, in repair.Input) {
	if !c.accepting() {
		return
	}
	as, ok := c.sessions[id]
	if !ok || !as.session.Tracking() {
		return
	}
	c.apply(id, as, as.session.Handle(in))
}

func (c *Coordinator) openSession(id string, el *Element) *activeSession {
	s, err := repair.New(el.Spec)
	if err != nil {
		events.Emit("error", "system.error", "failed to start repair session", map[string]interface{}{
			"tool_id":    c.toolID,
			"element_id": id,
			"error":      err.Error(),
		})
		return nil
	}

	as := &activeSession{session: s}
	c.sessions[id] = as
	c.focused = id

	c.emitEvent("element.activated", map[string]interface{}{
		"tool_id":    c.toolID,
		"element_id": id,
		"kind":       string(s.Kind()),
		"prompt":     el.Spec.Describe(),
	})

	c.syncTimer(id, as)
	return as
}

// apply acts on the outcome of one session call.
func (c *Coordinator) apply(id string, as *activeSession, out repair.Outcome) {
	switch out {
	case repair.Repaired:
		c.repairElement(id)
	case repair.NeutralReset:
		c.resetSession(id, false)
	case repair.Mistake:
		c.resetSession(id, true)
	default:
		c.syncTimer(id, as)
	}
}

// tick is the timer callback. Ticks from a timer that no longer belongs to a
// live session are dropped.
func (c *Coordinator) tick(id string, as *activeSession) {
	if cur, ok := c.sessions[id]; !ok || cur != as || c.torndown {
		return
	}
	c.apply(id, as, as.session.Tick())
}

// syncTimer keeps exactly one timer running while the session asks for one.
func (c *Coordinator) syncTimer(id string, as *activeSession) {
	switch {
	case as.session.Ticking() && as.timer == nil:
		as.timer = c.scheduler.Every(c.tickInterval, func() { c.tick(id, as) })
		c.emitEvent("timer.started", map[string]interface{}{"element_id": id})
	case !as.session.Ticking() && as.timer != nil:
		c.stopTimer(id, as)
	}
}

func (c *Coordinator) stopTimer(id string, as *activeSession) {
	if as.timer == nil {
		return
	}
	as.timer.Stop()
	as.timer = nil
	c.emitEvent("timer.cancelled", map[string]interface{}{"element_id": id})
}

// destroySession removes the session and its timer. It reports false if there was none.
func (c *Coordinator) destroySession(id string) bool {
	as, ok := c.sessions[id]
	if !ok {
		return false
	}
	c.stopTimer(id, as)
	delete(c.sessions, id)
	if c.focused == id {
		c.focused = ""
	}
	return true
}

func (c *Coordinator) repairElement(id string) {
	if !c.destroySession(id) {
		return
	}
	el := c.element(id)
	el.Broken = false
	el.Spec = nil

	c.emitEvent("element.repaired", map[string]interface{}{
		"tool_id":    c.toolID,
		"element_id": id,
	})
	if c.observer != nil {
		c.observer.ElementRepaired(id)
	}

	if c.Complete() {
		c.finish()
	}
}

func (c *Coordinator) resetSession(id string, charged bool) {
	if !c.destroySession(id) {
		return
	}
	c.emitEvent("session.reset", map[string]interface{}{
		"tool_id":    c.toolID,
		"element_id": id,
		"charged":    charged,
	})
	if !charged {
		return
	}
	c.mistakes++
	c.emitEvent("element.mistake", map[string]interface{}{
		"tool_id":    c.toolID,
		"element_id": id,
		"mistakes":   c.mistakes,
	})
	if c.observer != nil {
		c.observer.Mistake(id)
	}
}

// finish fires the completion outputs exactly once.
func (c *Coordinator) finish() {
	if c.finished {
		return
	}
	c.finished = true
	for id := range c.sessions {
		c.destroySession(id)
	}

	c.elapsed = c.clock.Now().Sub(c.startTime)
	elapsed := c.elapsed
	perfect := c.IsPerfect()
	c.emitEvent("level.completed", map[string]interface{}{
		"tool_id":         c.toolID,
		"elapsed_seconds": elapsed.Seconds(),
		"mistakes":        c.mistakes,
		"perfect":         perfect,
	})
	if c.observer != nil {
		c.observer.LevelComplete(elapsed, c.mistakes)
	}

	ctx, cancel := context.WithTimeout(context.Background(), handoffTimeout)
	defer cancel()
	if c.recorder != nil {
		if err := c.recorder.RecordRepair(ctx, c.toolID, elapsed, perfect); err != nil {
			c.handoffFailed("progress", err)
		}
	}
	if c.unlocks != nil {
		if err := c.unlocks.MarkRepaired(ctx, c.toolID); err != nil {
			c.handoffFailed("unlock", err)
		}
	}
}

func (c *Coordinator) handoffFailed(target string, err error) {
	events.Emit("error", "level.handoff_failed", err.Error(), map[string]interface{}{
		"tool_id": c.toolID,
		"target":  target,
	})
}

func (c *Coordinator) emitEvent(name string, fields map[string]interface{}) {
	events.Emit("info", name, "", fields)
}

func (c *Coordinator) element(id string) *Element {
	i, ok := c.index[id]
	if !ok {
		return nil
	}
	return &c.elements[i]
}

func (c *Coordinator) brokenCount() int {
	n := 0
	for _, el := range c.elements {
		if el.Broken {
			n++
		}
	}
	return n
}

// ToolID returns the tool this level repairs.
func (c *Coordinator) ToolID() string {
	return c.toolID
}

// Elements returns a copy of the element list in level order.
func (c *Coordinator) Elements() []Element {
	return append([]Element(nil), c.elements...)
}

// Element returns a copy of one element.
func (c *Coordinator) Element(id string) (Element, bool) {
	el := c.element(id)
	if el == nil {
		return Element{}, false
	}
	return *el, true
}

// Focused returns the id of the element whose prompt is showing, or "".
func (c *Coordinator) Focused() string {
	return c.focused
}

// Progress returns the live session snapshot of an element.
func (c *Coordinator) Progress(id string) (repair.Snapshot, bool) {
	as, ok := c.sessions[id]
	if !ok {
		return repair.Snapshot{}, false
	}
	return as.session.Snapshot(), true
}

// ActiveSessions returns the number of live sessions.
func (c *Coordinator) ActiveSessions() int {
	return len(c.sessions)
}

// MistakeCount returns the number of charged mistakes so far.
func (c *Coordinator) MistakeCount() int {
	return c.mistakes
}

// IsPerfect reports whether no mistake has been charged.
func (c *Coordinator) IsPerfect() bool {
	return c.mistakes == 0
}

// ElapsedTime returns the time since the level started. Once the level is
// complete it stays at the time reported to LevelComplete.
func (c *Coordinator) ElapsedTime() time.Duration {
	if c.finished {
		return c.elapsed
	}
	return c.clock.Now().Sub(c.startTime)
}

// Complete reports whether every element is repaired.
func (c *Coordinator) Complete() bool {
	for _, el := range c.elements {
		if el.Broken {
			return false
		}
	}
	return true
}
