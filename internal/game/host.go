package game

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/AaronLay10/RepairWorkshop/internal/events"
	"github.com/AaronLay10/RepairWorkshop/internal/geom"
	"github.com/AaronLay10/RepairWorkshop/internal/level"
	"github.com/AaronLay10/RepairWorkshop/internal/repair"
	"github.com/AaronLay10/RepairWorkshop/internal/workshop"
)

var (
	ErrNoLevel        = errors.New("no level in progress")
	ErrUnknownTool    = errors.New("unknown tool")
	ErrToolLocked     = errors.New("tool is locked")
	ErrUnknownElement = errors.New("unknown element")
	ErrBadInput       = errors.New("unsupported input type")
)

// ElementView is the presentation state of one element.
type ElementView struct {
	ID       string           `json:"id"`
	Name     string           `json:"name"`
	Broken   bool             `json:"broken"`
	Kind     repair.Kind      `json:"kind,omitempty"`
	Prompt   string           `json:"prompt,omitempty"`
	Position geom.Point       `json:"position"`
	Size     geom.Size        `json:"size"`
	Session  *repair.Snapshot `json:"session,omitempty"`
}

// LevelView is the presentation state of the running level.
type LevelView struct {
	ToolID         string        `json:"tool_id"`
	ToolName       string        `json:"tool_name"`
	Complete       bool          `json:"complete"`
	Mistakes       int           `json:"mistakes"`
	Perfect        bool          `json:"perfect"`
	ElapsedSeconds float64       `json:"elapsed_seconds"`
	Focused        string        `json:"focused,omitempty"`
	Elements       []ElementView `json:"elements"`
}

// InputRequest is the wire form of one input event, shared by the HTTP and
// MQTT transports.
type InputRequest struct {
	ElementID string           `json:"element_id"`
	Type      repair.InputType `json:"type"`
	X         float64          `json:"x,omitempty"`
	Y         float64          `json:"y,omitempty"`
	Held      bool             `json:"held,omitempty"`
	Value     int              `json:"value,omitempty"`
}

// Input converts the request to an engine input.
func (r InputRequest) Input() repair.Input {
	return repair.Input{
		Type:  r.Type,
		Point: geom.Pt(r.X, r.Y),
		Held:  r.Held,
		Value: r.Value,
	}
}

// Options configures a Host. Zero values select the wall clock, a
// TickerScheduler on the host loop and level.DefaultTickInterval.
type Options struct {
	Clock        level.Clock
	Scheduler    level.Scheduler
	TickInterval time.Duration
}

// Host runs one level at a time on its loop. All methods are safe for
// concurrent use; they marshal onto the loop and wait.
type Host struct {
	loop     *Loop
	unlocks  *workshop.Manager
	recorder level.ProgressRecorder
	opts     Options

	mu        sync.RWMutex
	observers []level.Observer

	// Owned by the loop goroutine.
	current  *level.Coordinator
	toolName string
}

// NewHost creates a host. recorder may be nil.
func NewHost(loop *Loop, unlocks *workshop.Manager, recorder level.ProgressRecorder, opts Options) *Host {
	if opts.Clock == nil {
		opts.Clock = level.SystemClock{}
	}
	if opts.Scheduler == nil {
		opts.Scheduler = NewTickerScheduler(loop)
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = level.DefaultTickInterval
	}
	return &Host{
		loop:     loop,
		unlocks:  unlocks,
		recorder: recorder,
		opts:     opts,
	}
}

// AddObserver registers an additional receiver of engine outputs for levels
// started afterwards.
func (h *Host) AddObserver(o level.Observer) {
	h.mu.Lock()
	h.observers = append(h.observers, o)
	h.mu.Unlock()
}

// Unlocks returns the unlock manager.
func (h *Host) Unlocks() *workshop.Manager {
	return h.unlocks
}

// StartLevel tears down any running level and starts the given tool.
func (h *Host) StartLevel(ctx context.Context, toolID string) (LevelView, error) {
	tool, ok := h.unlocks.Catalog().Tool(toolID)
	if !ok {
		return LevelView{}, fmt.Errorf("%w: %s", ErrUnknownTool, toolID)
	}
	if !h.unlocks.Playable(toolID) {
		return LevelView{}, fmt.Errorf("%w: %s", ErrToolLocked, toolID)
	}

	var (
		view LevelView
		err  error
	)
	callErr := h.loop.Call(ctx, func() {
		if h.current != nil {
			h.current.Teardown()
			h.current = nil
		}
		var c *level.Coordinator
		c, err = level.NewCoordinator(tool.ID, tool.Elements, h.opts.Clock, h.opts.Scheduler)
		if err != nil {
			return
		}
		c.SetTickInterval(h.opts.TickInterval)
		c.SetObserver(h.observer())
		if h.recorder != nil {
			c.SetProgressRecorder(h.recorder)
		}
		c.SetUnlockManager(h.unlocks)
		h.current = c
		h.toolName = tool.Name
		view = h.view()
	})
	if callErr != nil {
		return LevelView{}, callErr
	}
	return view, err
}

// Input routes one input event to the running level.
func (h *Host) Input(ctx context.Context, elementID string, in repair.Input) (LevelView, error) {
	if !knownInput(in.Type) {
		h.reject(elementID, in, ErrBadInput)
		return LevelView{}, fmt.Errorf("%w: %q", ErrBadInput, in.Type)
	}

	var (
		view LevelView
		err  error
	)
	callErr := h.loop.Call(ctx, func() {
		if h.current == nil {
			err = ErrNoLevel
			return
		}
		if _, ok := h.current.Element(elementID); !ok {
			err = fmt.Errorf("%w: %s", ErrUnknownElement, elementID)
			return
		}
		events.Emit("info", "input.received", "", map[string]interface{}{
			"tool_id":    h.current.ToolID(),
			"element_id": elementID,
			"type":       string(in.Type),
		})
		h.current.Route(elementID, in)
		view = h.view()
	})
	if callErr != nil {
		return LevelView{}, callErr
	}
	if err != nil {
		h.reject(elementID, in, err)
		return LevelView{}, err
	}
	return view, nil
}

// Level returns the running level's view.
func (h *Host) Level(ctx context.Context) (LevelView, error) {
	var (
		view LevelView
		ok   bool
	)
	if err := h.loop.Call(ctx, func() {
		if h.current != nil {
			view, ok = h.view(), true
		}
	}); err != nil {
		return LevelView{}, err
	}
	if !ok {
		return LevelView{}, ErrNoLevel
	}
	return view, nil
}

// StopLevel tears down the running level, if any.
func (h *Host) StopLevel(ctx context.Context) error {
	return h.loop.Call(ctx, func() {
		if h.current != nil {
			h.current.Teardown()
			h.current = nil
		}
	})
}

// Run is a convenience for running the host loop until ctx is cancelled.
func (h *Host) Run(ctx context.Context) {
	h.loop.Run(ctx)
}

func (h *Host) reject(elementID string, in repair.Input, err error) {
	events.Emit("warning", "input.rejected", err.Error(), map[string]interface{}{
		"element_id": elementID,
		"type":       string(in.Type),
	})
}

func (h *Host) observer() level.Observer {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return fanout(append([]level.Observer(nil), h.observers...))
}

// view builds the level view. Runs on the loop.
func (h *Host) view() LevelView {
	c := h.current
	v := LevelView{
		ToolID:         c.ToolID(),
		ToolName:       h.toolName,
		Complete:       c.Complete(),
		Mistakes:       c.MistakeCount(),
		Perfect:        c.IsPerfect(),
		ElapsedSeconds: c.ElapsedTime().Seconds(),
		Focused:        c.Focused(),
	}
	for _, el := range c.Elements() {
		ev := ElementView{
			ID:       el.ID,
			Name:     el.Name,
			Broken:   el.Broken,
			Position: el.Position,
			Size:     el.Size,
		}
		if el.Spec != nil {
			ev.Kind = el.Spec.Kind()
			ev.Prompt = el.Spec.Describe()
		}
		if snap, ok := c.Progress(el.ID); ok {
			ev.Session = &snap
		}
		v.Elements = append(v.Elements, ev)
	}
	return v
}

func knownInput(t repair.InputType) bool {
	switch t {
	case repair.InputTap, repair.InputPointerMove, repair.InputPointerUp,
		repair.InputHold, repair.InputSubmit, repair.InputCancel:
		return true
	}
	return false
}

type fanout []level.Observer

func (f fanout) ElementRepaired(id string) {
	for _, o := range f {
		o.ElementRepaired(id)
	}
}

func (f fanout) Mistake(id string) {
	for _, o := range f {
		o.Mistake(id)
	}
}

func (f fanout) LevelComplete(elapsed time.Duration, mistakes int) {
	for _, o := range f {
		o.LevelComplete(elapsed, mistakes)
	}
}
