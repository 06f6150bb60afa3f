// Package enginetest provides an in-memory engine.Document for tests.
package enginetest

import (
	"context"
	"sync"

	"github.com/justyntemme/readium-t/internal/reader/engine"
	"github.com/justyntemme/readium-t/internal/reader/geometry"
)

// Purge records one purge call
type Purge struct {
	PageIndex int
	ID        string
}

// Document is a scriptable fake. Tests set state with the Set* methods and
// fire engine events with the Emit* methods.
type Document struct {
	mu sync.Mutex

	id        string
	pageSizes []geometry.Size

	bounding  []engine.PageRect
	highlight map[int][]geometry.Rect
	text      []string
	textErr   error
	textGate  chan struct{}
	selecting bool
	clears    int

	imported []engine.HighlightObject
	purged   []Purge

	scroll       engine.ScrollState
	scrollCalls  []int
	zoom         float64
	zoomRequests []engine.ZoomRequest
	zoomIns      int
	zoomOuts     int

	endSelection    engine.Listeners[struct{}]
	selectionChange engine.Listeners[bool]
	interact        engine.Listeners[engine.Interaction]
	scrolled        engine.Listeners[engine.ScrollState]
	layoutReady     engine.Listeners[engine.LayoutReady]
	zoomed          engine.Listeners[float64]

	closed bool
}

// New returns a fake document with n pages of the given size
func New(id string, n int, size geometry.Size) *Document {
	sizes := make([]geometry.Size, n)
	for i := range sizes {
		sizes[i] = size
	}
	return &Document{
		id:        id,
		pageSizes: sizes,
		highlight: map[int][]geometry.Rect{},
		scroll:    engine.ScrollState{CurrentPage: 1, TotalPages: n},
		zoom:      1,
	}
}

func (d *Document) ID() string { return d.id }

func (d *Document) PageCount() int { return len(d.pageSizes) }

func (d *Document) PageSize(pageIndex int) (geometry.Size, bool) {
	if pageIndex < 0 || pageIndex >= len(d.pageSizes) {
		return geometry.Size{}, false
	}
	return d.pageSizes[pageIndex], true
}

func (d *Document) Selection() engine.Selection     { return (*selection)(d) }
func (d *Document) Annotations() engine.Annotations { return (*annotations)(d) }
func (d *Document) Scroll() engine.Scroll           { return (*scroll)(d) }
func (d *Document) Zoom() engine.Zoom               { return (*zoom)(d) }

func (d *Document) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// SetSelection scripts the current selection
func (d *Document) SetSelection(bounding []engine.PageRect, highlight map[int][]geometry.Rect, text []string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.bounding = bounding
	d.highlight = highlight
	d.text = text
	d.textErr = err
}

// BlockText makes SelectedText wait until the returned func is called
func (d *Document) BlockText() (release func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	gate := make(chan struct{})
	d.textGate = gate
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

// SetSelecting sets the live selecting flag
func (d *Document) SetSelecting(v bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.selecting = v
}

// Clears returns how many times the selection was cleared
func (d *Document) Clears() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.clears
}

// Imported returns every object currently imported
func (d *Document) Imported() []engine.HighlightObject {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]engine.HighlightObject(nil), d.imported...)
}

// Purged returns every purge call so far
func (d *Document) Purged() []Purge {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Purge(nil), d.purged...)
}

// ScrollCalls returns every page passed to ScrollToPage
func (d *Document) ScrollCalls() []int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]int(nil), d.scrollCalls...)
}

// ZoomRequests returns every RequestZoom call
func (d *Document) ZoomRequests() []engine.ZoomRequest {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]engine.ZoomRequest(nil), d.zoomRequests...)
}

// ZoomSteps returns the ZoomIn and ZoomOut call counts
func (d *Document) ZoomSteps() (in, out int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.zoomIns, d.zoomOuts
}

// Listeners returns the total number of subscribed listeners
func (d *Document) Listeners() int {
	return d.endSelection.Len() + d.selectionChange.Len() + d.interact.Len() +
		d.scrolled.Len() + d.layoutReady.Len() + d.zoomed.Len()
}

// EmitEndSelection fires the selection-ended event
func (d *Document) EmitEndSelection() { d.endSelection.Emit(struct{}{}) }

// EmitSelectionChange fires the selection-changed event
func (d *Document) EmitSelectionChange(active bool) { d.selectionChange.Emit(active) }

// EmitInteraction fires an overlay interaction
func (d *Document) EmitInteraction(ev engine.Interaction) { d.interact.Emit(ev) }

// EmitScroll updates and fires the scroll state
func (d *Document) EmitScroll(s engine.ScrollState) {
	d.mu.Lock()
	d.scroll = s
	d.mu.Unlock()
	d.scrolled.Emit(s)
}

// EmitZoom updates and fires the zoom level
func (d *Document) EmitZoom(level float64) {
	d.mu.Lock()
	d.zoom = level
	d.mu.Unlock()
	d.zoomed.Emit(level)
}

// EmitLayoutReady fires the layout-ready event
func (d *Document) EmitLayoutReady(ev engine.LayoutReady) { d.layoutReady.Emit(ev) }

type selection Document

func (s *selection) BoundingRects() []engine.PageRect {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]engine.PageRect(nil), s.bounding...)
}

func (s *selection) HighlightRects(pageIndex int) []geometry.Rect {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]geometry.Rect(nil), s.highlight[pageIndex]...)
}

func (s *selection) SelectedText(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	gate, text, err := s.textGate, s.text, s.textErr
	s.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return text, err
}

func (s *selection) Selecting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selecting
}

func (s *selection) Clear() {
	s.mu.Lock()
	s.clears++
	s.selecting = false
	s.bounding = nil
	s.mu.Unlock()
	s.selectionChange.Emit(false)
}

func (s *selection) OnEndSelection(fn func()) engine.Unsubscribe {
	return s.endSelection.Add(func(struct{}) { fn() })
}

func (s *selection) OnSelectionChange(fn func(bool)) engine.Unsubscribe {
	return s.selectionChange.Add(fn)
}

type annotations Document

func (a *annotations) Import(objects []engine.HighlightObject) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, obj := range objects {
		replaced := false
		for i := range a.imported {
			if a.imported[i].ID == obj.ID {
				a.imported[i] = obj
				replaced = true
			}
		}
		if !replaced {
			a.imported = append(a.imported, obj)
		}
	}
}

func (a *annotations) Purge(pageIndex int, id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.purged = append(a.purged, Purge{PageIndex: pageIndex, ID: id})
	kept := a.imported[:0]
	for _, obj := range a.imported {
		if obj.ID != id {
			kept = append(kept, obj)
		}
	}
	a.imported = kept
}

func (a *annotations) OnInteract(fn func(engine.Interaction)) engine.Unsubscribe {
	return a.interact.Add(fn)
}

type scroll Document

func (s *scroll) State() engine.ScrollState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scroll
}

func (s *scroll) ScrollToPage(page int, smooth bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scrollCalls = append(s.scrollCalls, page)
}

func (s *scroll) OnScroll(fn func(engine.ScrollState)) engine.Unsubscribe {
	return s.scrolled.Add(fn)
}

func (s *scroll) OnLayoutReady(fn func(engine.LayoutReady)) engine.Unsubscribe {
	return s.layoutReady.Add(fn)
}

type zoom Document

func (z *zoom) Level() float64 {
	z.mu.Lock()
	defer z.mu.Unlock()
	return z.zoom
}

func (z *zoom) ZoomIn() {
	z.mu.Lock()
	defer z.mu.Unlock()
	z.zoomIns++
}

func (z *zoom) ZoomOut() {
	z.mu.Lock()
	defer z.mu.Unlock()
	z.zoomOuts++
}

func (z *zoom) RequestZoom(req engine.ZoomRequest) {
	z.mu.Lock()
	defer z.mu.Unlock()
	z.zoomRequests = append(z.zoomRequests, req)
}

func (z *zoom) OnZoom(fn func(float64)) engine.Unsubscribe {
	return z.zoomed.Add(fn)
}

// Locator is a PageLocator backed by a map
type Locator map[int]geometry.Rect

func (l Locator) PageBox(pageIndex int) (geometry.Rect, bool) {
	r, ok := l[pageIndex]
	return r, ok
}
