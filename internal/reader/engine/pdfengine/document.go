package pdfengine

import (
	"context"
	"fmt"
	"sync"

	"github.com/justyntemme/readium-t/internal/reader/engine"
	"github.com/justyntemme/readium-t/internal/reader/geometry"
)

const (
	MinZoom  = 0.25
	MaxZoom  = 5.0
	ZoomStep = 1.25
)

// Page is the extracted content of one page
type Page struct {
	Size  geometry.Size
	Lines []Line
	Links []engine.Link
}

// Document is a headless engine.Document. Selection is line based and
// limited to one page; overlays are hit-tested against their segments.
type Document struct {
	mu sync.Mutex

	id    string
	pages []Page

	selPage   int
	anchor    int
	focus     int
	active    bool
	selecting bool

	objects []engine.HighlightObject

	current  int
	zoom     float64
	fitWidth float64

	closed bool

	endSelection    engine.Listeners[struct{}]
	selectionChange engine.Listeners[bool]
	interact        engine.Listeners[engine.Interaction]
	linked          engine.Listeners[engine.Link]
	scrolled        engine.Listeners[engine.ScrollState]
	layoutReady     engine.Listeners[engine.LayoutReady]
	zoomed          engine.Listeners[float64]
}

var (
	_ engine.Document  = (*Document)(nil)
	_ engine.TextLayer = (*Document)(nil)
	_ engine.Links     = (*Document)(nil)
)

// NewDocument builds a document from already extracted pages
func NewDocument(id string, pages []Page) *Document {
	return &Document{id: id, pages: pages, current: 1, zoom: 1, fitWidth: 1}
}

func (d *Document) ID() string { return d.id }

func (d *Document) PageCount() int { return len(d.pages) }

func (d *Document) PageSize(pageIndex int) (geometry.Size, bool) {
	if pageIndex < 0 || pageIndex >= len(d.pages) {
		return geometry.Size{}, false
	}
	return d.pages[pageIndex].Size, true
}

// Lines returns the text lines of a page
func (d *Document) Lines(pageIndex int) []Line {
	if pageIndex < 0 || pageIndex >= len(d.pages) {
		return nil
	}
	return d.pages[pageIndex].Lines
}

// PageText returns the plain text of a page
func (d *Document) PageText(ctx context.Context, pageIndex int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if pageIndex < 0 || pageIndex >= len(d.pages) {
		return "", fmt.Errorf("page %d out of range", pageIndex+1)
	}
	return PageText(d.pages[pageIndex].Lines), nil
}

func (d *Document) Selection() engine.Selection     { return (*selection)(d) }
func (d *Document) Annotations() engine.Annotations { return (*annotations)(d) }
func (d *Document) Scroll() engine.Scroll           { return (*scroll)(d) }
func (d *Document) Zoom() engine.Zoom               { return (*zoom)(d) }

func (d *Document) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.objects = nil
	return nil
}

// BeginSelection starts a selection at a line of a page
func (d *Document) BeginSelection(pageIndex, line int) {
	d.mu.Lock()
	if pageIndex < 0 || pageIndex >= len(d.pages) || len(d.pages[pageIndex].Lines) == 0 {
		d.mu.Unlock()
		return
	}
	line = clampIndex(line, len(d.pages[pageIndex].Lines))
	d.selPage, d.anchor, d.focus = pageIndex, line, line
	d.active, d.selecting = true, true
	d.mu.Unlock()
	d.selectionChange.Emit(true)
}

// ExtendSelection moves the selection focus
func (d *Document) ExtendSelection(line int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.active {
		return
	}
	d.focus = clampIndex(line, len(d.pages[d.selPage].Lines))
}

// EndSelection finishes a drag or keyboard selection
func (d *Document) EndSelection() {
	d.mu.Lock()
	if !d.selecting {
		d.mu.Unlock()
		return
	}
	d.selecting = false
	d.mu.Unlock()
	d.endSelection.Emit(struct{}{})
}

// SelectedRange returns the selected page and inclusive line range
func (d *Document) SelectedRange() (pageIndex, from, to int, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.active {
		return 0, 0, 0, false
	}
	from, to = d.anchor, d.focus
	if from > to {
		from, to = to, from
	}
	return d.selPage, from, to, true
}

// Objects returns the overlays on a page in import order
func (d *Document) Objects(pageIndex int) []engine.HighlightObject {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []engine.HighlightObject
	for _, obj := range d.objects {
		if obj.PageIndex == pageIndex {
			out = append(out, obj)
		}
	}
	return out
}

// LinksOn returns the link annotations of a page
func (d *Document) LinksOn(pageIndex int) []engine.Link {
	if pageIndex < 0 || pageIndex >= len(d.pages) {
		return nil
	}
	return d.pages[pageIndex].Links
}

// OnLink subscribes to link activations
func (d *Document) OnLink(fn func(engine.Link)) engine.Unsubscribe {
	return d.linked.Add(fn)
}

// Interact hit-tests p on a page against the overlays, topmost first, and
// fires an interaction for the first hit. Links under no overlay fire a
// link activation instead.
func (d *Document) Interact(pageIndex int, p geometry.Point) bool {
	d.mu.Lock()
	var hit *engine.HighlightObject
	for i := len(d.objects) - 1; i >= 0 && hit == nil; i-- {
		obj := d.objects[i]
		if obj.PageIndex != pageIndex {
			continue
		}
		for _, seg := range obj.Segments {
			if seg.Contains(p) {
				hit = &obj
				break
			}
		}
	}
	d.mu.Unlock()

	if hit == nil {
		return d.followLink(pageIndex, p)
	}
	d.interact.Emit(engine.Interaction{ObjectID: hit.ID, PageIndex: pageIndex, Custom: hit.Custom, At: p})
	return true
}

func (d *Document) followLink(pageIndex int, p geometry.Point) bool {
	for _, l := range d.LinksOn(pageIndex) {
		if l.Rect.Contains(p) {
			d.linked.Emit(l)
			return true
		}
	}
	return false
}

// MarkLayoutReady reports the layout to subscribers
func (d *Document) MarkLayoutReady(initial bool) {
	d.layoutReady.Emit(engine.LayoutReady{DocumentID: d.id, TotalPages: len(d.pages), IsInitial: initial})
}

// SetFitWidth sets the level a fit-width request resolves to
func (d *Document) SetFitWidth(level float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if level > 0 {
		d.fitWidth = level
	}
}

func (d *Document) selectedLinesLocked() []Line {
	if !d.active {
		return nil
	}
	from, to := d.anchor, d.focus
	if from > to {
		from, to = to, from
	}
	return d.pages[d.selPage].Lines[from : to+1]
}

func clampIndex(i, n int) int {
	return max(0, min(i, n-1))
}

type selection Document

func (s *selection) BoundingRects() []engine.PageRect {
	s.mu.Lock()
	defer s.mu.Unlock()
	lines := (*Document)(s).selectedLinesLocked()
	rects := make([]geometry.Rect, len(lines))
	for i, l := range lines {
		rects[i] = l.Rect
	}
	bounds, ok := geometry.BoundingRect(rects)
	if !ok {
		return nil
	}
	return []engine.PageRect{{PageIndex: s.selPage, Rect: bounds}}
}

func (s *selection) HighlightRects(pageIndex int) []geometry.Rect {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active || pageIndex != s.selPage {
		return nil
	}
	lines := (*Document)(s).selectedLinesLocked()
	rects := make([]geometry.Rect, 0, len(lines))
	for _, l := range lines {
		if !l.Rect.Empty() {
			rects = append(rects, l.Rect)
		}
	}
	return rects
}

func (s *selection) SelectedText(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	lines := (*Document)(s).selectedLinesLocked()
	texts := make([]string, len(lines))
	for i, l := range lines {
		texts[i] = l.Text
	}
	return texts, nil
}

func (s *selection) Selecting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selecting
}

func (s *selection) Clear() {
	s.mu.Lock()
	was := s.active
	s.active, s.selecting = false, false
	s.mu.Unlock()
	if was {
		s.selectionChange.Emit(false)
	}
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
		for i := range a.objects {
			if a.objects[i].ID == obj.ID {
				a.objects[i] = obj
				replaced = true
				break
			}
		}
		if !replaced {
			a.objects = append(a.objects, obj)
		}
	}
}

func (a *annotations) Purge(pageIndex int, id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	kept := a.objects[:0]
	for _, obj := range a.objects {
		if obj.ID == id && obj.PageIndex == pageIndex {
			continue
		}
		kept = append(kept, obj)
	}
	a.objects = kept
}

func (a *annotations) OnInteract(fn func(engine.Interaction)) engine.Unsubscribe {
	return a.interact.Add(fn)
}

type scroll Document

func (s *scroll) State() engine.ScrollState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return engine.ScrollState{CurrentPage: s.current, TotalPages: len(s.pages)}
}

func (s *scroll) ScrollToPage(page int, smooth bool) {
	s.mu.Lock()
	if len(s.pages) == 0 {
		s.mu.Unlock()
		return
	}
	page = max(1, min(page, len(s.pages)))
	changed := page != s.current
	s.current = page
	state := engine.ScrollState{CurrentPage: page, TotalPages: len(s.pages)}
	s.mu.Unlock()
	if changed {
		s.scrolled.Emit(state)
	}
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

func (z *zoom) ZoomIn() { z.set(z.Level() * ZoomStep) }

func (z *zoom) ZoomOut() { z.set(z.Level() / ZoomStep) }

func (z *zoom) RequestZoom(req engine.ZoomRequest) {
	switch req.Mode {
	case engine.ZoomFitWidth:
		z.mu.Lock()
		level := z.fitWidth
		z.mu.Unlock()
		z.set(level)
	default:
		z.set(req.Level)
	}
}

func (z *zoom) set(level float64) {
	level = max(MinZoom, min(level, MaxZoom))
	z.mu.Lock()
	if level == z.zoom {
		z.mu.Unlock()
		return
	}
	z.zoom = level
	z.mu.Unlock()
	z.zoomed.Emit(level)
}

func (z *zoom) OnZoom(fn func(float64)) engine.Unsubscribe {
	return z.zoomed.Add(fn)
}
