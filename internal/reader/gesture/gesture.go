// Package gesture classifies raw pointer input into taps and long presses.
package gesture

import (
	"math"
	"sync"
	"time"

	"github.com/justyntemme/readium-t/internal/reader/geometry"
	"github.com/justyntemme/readium-t/internal/reader/schedule"
	"github.com/justyntemme/readium-t/pkg/models"
)

const (
	LongPressDelay = 360 * time.Millisecond
	TapMaxDuration = 220 * time.Millisecond
	TapMaxMovement = 12.0
)

// PointerType identifies the input device
type PointerType string

const (
	PointerMouse PointerType = "mouse"
	PointerTouch PointerType = "touch"
	PointerPen   PointerType = "pen"
)

// PointerEvent is a pointer sample in client coordinates
type PointerEvent struct {
	ID   int
	Type PointerType
	X    float64
	Y    float64
}

type pointerState struct {
	active         bool
	pointerID      int
	startX, startY float64
	start          time.Time
	moved          bool
	longPressArmed bool
}

// Classifier tracks one touch pointer at a time
type Classifier struct {
	mu    sync.Mutex
	sched schedule.Scheduler
	onTap func(models.Point)

	state                 pointerState
	timer                 schedule.Timer
	lastType              PointerType
	touchSelectionAllowed bool
}

// New returns a classifier. onTap may be nil.
func New(sched schedule.Scheduler, onTap func(models.Point)) *Classifier {
	return &Classifier{sched: sched, onTap: onTap}
}

// PointerDown starts tracking a touch pointer. Every pointer type is
// recorded as the last pointer type.
func (c *Classifier) PointerDown(ev PointerEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lastType = ev.Type
	if ev.Type != PointerTouch {
		return
	}

	c.stopTimerLocked()
	c.touchSelectionAllowed = false
	c.state = pointerState{
		active:    true,
		pointerID: ev.ID,
		startX:    ev.X,
		startY:    ev.Y,
		start:     c.sched.Now(),
	}

	id := ev.ID
	c.timer = c.sched.AfterFunc(LongPressDelay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if !c.state.active || c.state.pointerID != id || c.state.moved {
			return
		}
		c.state.longPressArmed = true
	})
}

// PointerMove marks the gesture as moved once it leaves the tap slop
func (c *Classifier) PointerMove(ev PointerEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.tracking(ev) {
		return
	}
	if math.Abs(ev.X-c.state.startX) <= TapMaxMovement && math.Abs(ev.Y-c.state.startY) <= TapMaxMovement {
		return
	}
	if !c.state.moved {
		c.state.moved = true
		if !c.state.longPressArmed {
			c.stopTimerLocked()
		}
	}
}

// PointerUp ends the gesture and reports a tap when it qualifies
func (c *Classifier) PointerUp(ev PointerEvent) {
	c.end(ev)
}

// PointerCancel ends the gesture the same way as PointerUp
func (c *Classifier) PointerCancel(ev PointerEvent) {
	c.end(ev)
}

func (c *Classifier) end(ev PointerEvent) {
	c.mu.Lock()
	if !c.tracking(ev) {
		c.mu.Unlock()
		return
	}
	c.stopTimerLocked()

	st := c.state
	duration := c.sched.Now().Sub(st.start)
	isTap := !st.longPressArmed &&
		!st.moved &&
		duration <= TapMaxDuration &&
		math.Abs(ev.X-st.startX) <= TapMaxMovement &&
		math.Abs(ev.Y-st.startY) <= TapMaxMovement

	c.touchSelectionAllowed = st.longPressArmed
	c.state = pointerState{}
	onTap := c.onTap
	c.mu.Unlock()

	if isTap && onTap != nil {
		onTap(models.Point{X: ev.X, Y: ev.Y})
	}
}

// LastPointerType returns the type of the most recent pointer down
func (c *Classifier) LastPointerType() PointerType {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastType
}

// LongPressArmed reports whether the pointer still down has been held long enough
func (c *Classifier) LongPressArmed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.longPressArmed
}

// TouchSelectionAllowed reports whether the last touch gesture ended armed
func (c *Classifier) TouchSelectionAllowed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.touchSelectionAllowed
}

// ConsumeTouchSelection clears the allowed flag after a selection is honoured
func (c *Classifier) ConsumeTouchSelection() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touchSelectionAllowed = false
}

// Close cancels the pending long-press timer
func (c *Classifier) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopTimerLocked()
	c.state = pointerState{}
}

func (c *Classifier) tracking(ev PointerEvent) bool {
	return ev.Type == PointerTouch && c.state.active && c.state.pointerID == ev.ID
}

func (c *Classifier) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// CenterTap reports whether a tap landed in the middle zone of box, the zone
// that toggles reader chrome on narrow screens.
func CenterTap(box geometry.Rect, p models.Point) bool {
	if box.Width <= 0 || box.Height <= 0 {
		return false
	}
	rx := (p.X - box.X) / box.Width
	ry := (p.Y - box.Y) / box.Height
	return rx >= 0.3 && rx <= 0.7 && ry >= 0.3 && ry <= 0.7
}
