// Package selection turns engine text selections into pending selections
// the reader can act on.
package selection

import (
	"context"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/justyntemme/readium-t/internal/logging"
	"github.com/justyntemme/readium-t/internal/reader/engine"
	"github.com/justyntemme/readium-t/internal/reader/geometry"
	"github.com/justyntemme/readium-t/internal/reader/gesture"
	"github.com/justyntemme/readium-t/internal/reader/schedule"
	"github.com/justyntemme/readium-t/pkg/models"
)

// WindowEvent is a host-level event that may leave a drag selection stuck
type WindowEvent int

const (
	PointerUp WindowEvent = iota
	MouseUp
	DragEnd
	Blur
)

// TouchGate reports whether a touch-driven selection should be honoured
type TouchGate interface {
	LastPointerType() gesture.PointerType
	TouchSelectionAllowed() bool
	LongPressArmed() bool
	ConsumeTouchSelection()
}

// Resolver listens to one document's selection and emits a
// PendingSelection, or nil when there is nothing to act on.
type Resolver struct {
	doc        engine.Document
	locator    engine.PageLocator
	gate       TouchGate
	sched      schedule.Scheduler
	onResolved func(*models.PendingSelection)
	logger     *log.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	generation uint64
	closed     bool
	unsubs     []engine.Unsubscribe
	checks     []schedule.Timer
}

// New subscribes to doc's selection events. gate may be nil when the host
// has no touch input.
func New(doc engine.Document, locator engine.PageLocator, gate TouchGate, sched schedule.Scheduler, onResolved func(*models.PendingSelection)) *Resolver {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Resolver{
		doc:        doc,
		locator:    locator,
		gate:       gate,
		sched:      sched,
		onResolved: onResolved,
		logger:     logging.For("reader-viewport"),
		ctx:        ctx,
		cancel:     cancel,
	}

	sel := doc.Selection()
	r.unsubs = append(r.unsubs,
		sel.OnEndSelection(r.handleEnd),
		sel.OnSelectionChange(func(active bool) {
			if !active {
				r.emitNone()
			}
		}),
	)
	return r
}

// HandleWindowEvent schedules a check for a selection the engine never ended
func (r *Resolver) HandleWindowEvent(WindowEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.checks = append(r.checks, r.sched.AfterFunc(0, r.clearStuck))
}

// Close unsubscribes, cancels deferred checks and in-flight text fetches.
// It does not wait for resolutions to return; use Wait for that.
func (r *Resolver) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	unsubs, checks := r.unsubs, r.checks
	r.unsubs, r.checks = nil, nil
	r.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
	for _, t := range checks {
		t.Stop()
	}
	r.cancel()
}

// Wait blocks until in-flight resolutions finish
func (r *Resolver) Wait() {
	r.wg.Wait()
}

func (r *Resolver) handleEnd() {
	if r.gate != nil && r.gate.LastPointerType() == gesture.PointerTouch {
		if !r.gate.TouchSelectionAllowed() && !r.gate.LongPressArmed() {
			r.doc.Selection().Clear()
			r.emitNone()
			return
		}
		r.gate.ConsumeTouchSelection()
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.generation++
	gen := r.generation
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		r.resolve(gen)
	}()
}

func (r *Resolver) resolve(gen uint64) {
	sel := r.doc.Selection()

	bounding := sel.BoundingRects()
	if len(bounding) == 0 {
		r.emit(gen, nil)
		return
	}
	first := bounding[0]
	pageIndex := first.PageIndex

	size, ok := r.doc.PageSize(pageIndex)
	if !ok || !size.Valid() {
		return
	}
	box, ok := r.locator.PageBox(pageIndex)
	if !ok {
		return
	}

	pageRects := sel.HighlightRects(pageIndex)
	if len(pageRects) == 0 {
		r.emit(gen, nil)
		return
	}

	slices, err := sel.SelectedText(r.ctx)
	if err != nil {
		r.logger.Error("failed to retrieve selected text", "err", err)
		r.emit(gen, nil)
		return
	}
	text := strings.TrimSpace(strings.Join(slices, " "))
	if text == "" {
		r.emit(gen, nil)
		return
	}

	scaleX := box.Width / size.Width
	scaleY := box.Height / size.Height

	rects := make([]models.ReaderRect, 0, len(pageRects))
	for _, rect := range pageRects {
		rects = append(rects, geometry.ToNormalizedRect(rect, size))
	}

	r.emit(gen, &models.PendingSelection{
		Text:  text,
		Page:  pageIndex + 1,
		Rects: rects,
		PopupPosition: models.Point{
			X: box.X + (first.Rect.X+first.Rect.Width/2)*scaleX,
			Y: box.Y + first.Rect.Y*scaleY,
		},
	})
}

func (r *Resolver) clearStuck() {
	sel := r.doc.Selection()
	if !sel.Selecting() {
		return
	}
	r.logger.Debug("clearing stuck selection")
	sel.Clear()
	r.emitNone()
}

// emitNone supersedes any in-flight resolution and reports no selection
func (r *Resolver) emitNone() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.generation++
	r.mu.Unlock()
	r.onResolved(nil)
}

func (r *Resolver) emit(gen uint64, p *models.PendingSelection) {
	r.mu.Lock()
	stale := r.closed || gen != r.generation
	r.mu.Unlock()
	if stale {
		r.logger.Debug("dropping superseded selection", "generation", gen)
		return
	}
	r.onResolved(p)
}
