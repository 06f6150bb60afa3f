// Package engine describes the capabilities the reader needs from a document
// engine. Every capability is scoped to one opened document.
package engine

import (
	"context"

	"github.com/justyntemme/readium-t/internal/reader/geometry"
)

// Unsubscribe removes a listener
type Unsubscribe func()

// PageRect is a rect on a 0-based page
type PageRect struct {
	PageIndex int
	Rect      geometry.Rect
}

// ScrollState reports the 1-based current page and the page count
type ScrollState struct {
	CurrentPage int
	TotalPages  int
}

// LayoutReady is emitted once the document has been laid out
type LayoutReady struct {
	DocumentID string
	TotalPages int
	IsInitial  bool
}

// ZoomMode selects between explicit levels and fitting modes
type ZoomMode int

const (
	ZoomLevel ZoomMode = iota
	ZoomFitWidth
)

// ZoomRequest asks the engine for a zoom change
type ZoomRequest struct {
	Mode  ZoomMode
	Level float64
}

// HighlightObject is an overlay imported into the engine's annotation layer
type HighlightObject struct {
	ID          string
	PageIndex   int
	Rect        geometry.Rect
	Segments    []geometry.Rect
	Color       string
	StrokeColor string
	Opacity     float64
	BlendMode   string
	Contents    string
	Custom      map[string]any
	Print       bool
}

// Interaction is emitted when the user activates an overlay
type Interaction struct {
	ObjectID  string
	PageIndex int
	Custom    map[string]any
	At        geometry.Point
}

// Link is a link annotation of a page. Internal links carry the 0-based
// DestPage; external links carry a URI and a DestPage of -1.
type Link struct {
	PageIndex int
	Rect      geometry.Rect
	DestPage  int
	URI       string
}

// Internal reports whether the link points into the document
func (l Link) Internal() bool { return l.DestPage >= 0 }

// Selection exposes the engine's text selection
type Selection interface {
	BoundingRects() []PageRect
	HighlightRects(pageIndex int) []geometry.Rect
	SelectedText(ctx context.Context) ([]string, error)
	Selecting() bool
	Clear()
	OnEndSelection(fn func()) Unsubscribe
	OnSelectionChange(fn func(active bool)) Unsubscribe
}

// Annotations exposes the engine's annotation layer
type Annotations interface {
	Import(objects []HighlightObject)
	Purge(pageIndex int, id string)
	OnInteract(fn func(Interaction)) Unsubscribe
}

// Scroll exposes paging
type Scroll interface {
	State() ScrollState
	ScrollToPage(page int, smooth bool)
	OnScroll(fn func(ScrollState)) Unsubscribe
	OnLayoutReady(fn func(LayoutReady)) Unsubscribe
}

// Zoom exposes the zoom level
type Zoom interface {
	Level() float64
	ZoomIn()
	ZoomOut()
	RequestZoom(req ZoomRequest)
	OnZoom(fn func(level float64)) Unsubscribe
}

// Document is one opened document
type Document interface {
	ID() string
	PageCount() int
	PageSize(pageIndex int) (geometry.Size, bool)
	Selection() Selection
	Annotations() Annotations
	Scroll() Scroll
	Zoom() Zoom
	Close() error
}

// TextLayer is implemented by documents that can extract page text
type TextLayer interface {
	PageText(ctx context.Context, pageIndex int) (string, error)
}

// Links is implemented by documents that expose link annotations. OnLink
// fires when the user activates a link that no overlay covers.
type Links interface {
	LinksOn(pageIndex int) []Link
	OnLink(fn func(Link)) Unsubscribe
}

// Opener opens documents from raw bytes
type Opener interface {
	Open(ctx context.Context, name string, data []byte) (Document, error)
}

// PageLocator maps a page to the box it occupies on screen, in host pixels.
// It reports false when the page is not currently mounted.
type PageLocator interface {
	PageBox(pageIndex int) (geometry.Rect, bool)
}
