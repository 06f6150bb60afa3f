// Package viewport mirrors engine scroll and zoom state to the host and
// exposes paging and zoom commands.
package viewport

import (
	"math"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/justyntemme/readium-t/internal/logging"
	"github.com/justyntemme/readium-t/internal/reader/engine"
	"github.com/justyntemme/readium-t/internal/reader/schedule"
	"github.com/justyntemme/readium-t/pkg/models"
)

const (
	DefaultZoom  = 1.7
	MinValidZoom = 0.01

	initialRetryDelay  = 180 * time.Millisecond
	initialCancelDelay = 220 * time.Millisecond
	zoomRetryDelay     = 140 * time.Millisecond
)

// ResetState is reported while no document is attached
var ResetState = models.ViewportState{CurrentPage: 1, TotalPages: 0, ZoomLevel: DefaultZoom}

// ClampPage limits page to [1,total], or to at least 1 when total is unknown
func ClampPage(page, total int) int {
	if page < 1 {
		page = 1
	}
	if total > 0 && page > total {
		return total
	}
	return page
}

// LinkPage converts a 0-based link destination to the 1-based page it opens
func LinkPage(pageIndex, total int) int {
	return ClampPage(pageIndex+1, total)
}

// Options configures a Bridge
type Options struct {
	// Narrow reports a narrow viewport, where zoom resets fit the page width
	Narrow func() bool
	// OnChange receives every state change
	OnChange func(models.ViewportState)
}

// Bridge follows the attached document. Each document id gets its initial
// page and zoom applied once per Bridge.
type Bridge struct {
	sched  schedule.Scheduler
	opts   Options
	logger *log.Logger

	mu          sync.Mutex
	doc         engine.Document
	initialPage int
	state       models.ViewportState
	visited     map[string]bool
	unsubs      []engine.Unsubscribe
	initTimers  []schedule.Timer
	zoomTimers  []schedule.Timer
}

// New returns a detached bridge
func New(sched schedule.Scheduler, opts Options) *Bridge {
	return &Bridge{
		sched:   sched,
		opts:    opts,
		logger:  logging.For("reader-viewport-state"),
		state:   ResetState,
		visited: make(map[string]bool),
	}
}

// Attach follows doc, detaching any previous document. initialPage is
// applied on the document's first layout.
func (b *Bridge) Attach(doc engine.Document, initialPage int) {
	b.detach(false)

	scroll, zoom := doc.Scroll(), doc.Zoom()

	b.mu.Lock()
	b.doc = doc
	b.initialPage = initialPage
	st := scroll.State()
	b.state = models.ViewportState{
		CurrentPage: max(1, st.CurrentPage),
		TotalPages:  st.TotalPages,
		ZoomLevel:   zoom.Level(),
	}
	b.unsubs = []engine.Unsubscribe{
		scroll.OnScroll(b.handleScroll),
		zoom.OnZoom(b.handleZoom),
		scroll.OnLayoutReady(b.handleLayoutReady),
	}
	b.guardZoomLocked(b.state.ZoomLevel)
	state := b.reportedLocked()
	b.mu.Unlock()

	b.notify(state)
}

// Detach stops following the current document and reports the reset state
func (b *Bridge) Detach() {
	b.detach(true)
}

// Close detaches and cancels every scheduled task
func (b *Bridge) Close() {
	b.detach(false)
}

// State returns the last reported state
func (b *Bridge) State() models.ViewportState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reportedLocked()
}

// GoToPage scrolls smoothly to page, clamped to the known page count
func (b *Bridge) GoToPage(page int) {
	b.mu.Lock()
	doc, total := b.doc, b.state.TotalPages
	b.mu.Unlock()
	if doc == nil {
		return
	}
	doc.Scroll().ScrollToPage(ClampPage(page, total), true)
}

// ZoomIn steps the zoom up
func (b *Bridge) ZoomIn() {
	if doc := b.current(); doc != nil {
		doc.Zoom().ZoomIn()
	}
}

// ZoomOut steps the zoom down
func (b *Bridge) ZoomOut() {
	if doc := b.current(); doc != nil {
		doc.Zoom().ZoomOut()
	}
}

// ResetZoom requests the preferred zoom for the viewport
func (b *Bridge) ResetZoom() {
	if doc := b.current(); doc != nil {
		doc.Zoom().RequestZoom(b.preferredZoom())
	}
}

func (b *Bridge) current() engine.Document {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.doc
}

func (b *Bridge) preferredZoom() engine.ZoomRequest {
	if b.opts.Narrow != nil && b.opts.Narrow() {
		return engine.ZoomRequest{Mode: engine.ZoomFitWidth}
	}
	return engine.ZoomRequest{Mode: engine.ZoomLevel, Level: DefaultZoom}
}

func (b *Bridge) handleScroll(st engine.ScrollState) {
	b.mu.Lock()
	b.state.CurrentPage = max(1, st.CurrentPage)
	b.state.TotalPages = st.TotalPages
	state := b.reportedLocked()
	b.mu.Unlock()
	b.notify(state)
}

func (b *Bridge) handleZoom(level float64) {
	b.mu.Lock()
	b.state.ZoomLevel = level
	b.guardZoomLocked(level)
	state := b.reportedLocked()
	b.mu.Unlock()
	b.notify(state)
}

func (b *Bridge) handleLayoutReady(ev engine.LayoutReady) {
	b.mu.Lock()
	defer b.mu.Unlock()

	doc := b.doc
	if doc == nil || ev.DocumentID != doc.ID() || b.visited[ev.DocumentID] {
		return
	}
	b.visited[ev.DocumentID] = true

	total := max(ev.TotalPages, doc.Scroll().State().TotalPages, b.state.TotalPages)
	target := ClampPage(b.initialPage, total)
	zoom := b.preferredZoom()

	b.logger.Debug("layout ready, applying initial view",
		"document", ev.DocumentID, "initialPage", b.initialPage, "totalPages", total, "isInitial", ev.IsInitial)

	apply := func() {
		doc.Zoom().RequestZoom(zoom)
		doc.Scroll().ScrollToPage(target, false)
	}
	frame := b.sched.AfterFunc(schedule.FrameDelay, apply)
	retry := b.sched.AfterFunc(initialRetryDelay, apply)
	stop := b.sched.AfterFunc(initialCancelDelay, func() {
		frame.Stop()
		retry.Stop()
	})
	b.initTimers = append(b.initTimers, frame, retry, stop)
}

// guardZoomLocked replaces any pending zoom fix and schedules a new one when
// the engine reports an unusable level.
func (b *Bridge) guardZoomLocked(level float64) {
	for _, t := range b.zoomTimers {
		t.Stop()
	}
	b.zoomTimers = nil

	if level > MinValidZoom || b.doc == nil {
		return
	}
	b.logger.Warn("zoom level invalid, forcing fallback zoom", "document", b.doc.ID(), "zoom", level)

	zoom := b.doc.Zoom()
	force := func() {
		zoom.RequestZoom(engine.ZoomRequest{Mode: engine.ZoomLevel, Level: DefaultZoom})
	}
	b.zoomTimers = []schedule.Timer{
		b.sched.AfterFunc(schedule.FrameDelay, force),
		b.sched.AfterFunc(zoomRetryDelay, force),
	}
}

func (b *Bridge) reportedLocked() models.ViewportState {
	st := b.state
	if st.ZoomLevel <= 0 || math.IsNaN(st.ZoomLevel) {
		st.ZoomLevel = DefaultZoom
	}
	return st
}

func (b *Bridge) detach(report bool) {
	b.mu.Lock()
	unsubs := b.unsubs
	timers := append(b.initTimers, b.zoomTimers...)
	attached := b.doc != nil
	b.unsubs, b.initTimers, b.zoomTimers = nil, nil, nil
	b.doc = nil
	b.state = ResetState
	b.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
	for _, t := range timers {
		t.Stop()
	}
	if report && attached {
		b.notify(ResetState)
	}
}

func (b *Bridge) notify(state models.ViewportState) {
	if b.opts.OnChange != nil {
		b.opts.OnChange(state)
	}
}
