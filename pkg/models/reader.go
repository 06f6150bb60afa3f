package models

// Point is a position in host pixel space
type Point struct {
	X float64
	Y float64
}

// PendingSelection is a resolved text selection waiting for a user action.
// Page is 1-based.
type PendingSelection struct {
	Text          string
	Page          int
	Rects         []ReaderRect
	PopupPosition Point
}

// ViewportState mirrors the engine's scroll and zoom state
type ViewportState struct {
	CurrentPage int
	TotalPages  int
	ZoomLevel   float64
}

// TranslationOverlay places a saved translation over one rect of an annotation
type TranslationOverlay struct {
	AnnotationID int
	Key          string
	Page         int
	Rect         ReaderRect
	Translation  string
}
