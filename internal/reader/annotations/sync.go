package annotations

import (
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/justyntemme/readium-t/internal/logging"
	"github.com/justyntemme/readium-t/internal/reader/engine"
	"github.com/justyntemme/readium-t/internal/reader/geometry"
	"github.com/justyntemme/readium-t/pkg/models"
)

const (
	highlightPrefix  = "backend-highlight-"
	highlightOpacity = 0.42
	blendMultiply    = "multiply"

	// CustomBackendID is the custom-data key linking an overlay to its row
	CustomBackendID = "backendAnnotationId"
)

// HighlightID returns the overlay id of an annotation
func HighlightID(annotationID int) string {
	return fmt.Sprintf("%s%d", highlightPrefix, annotationID)
}

// BackendID extracts the annotation id from overlay custom data
func BackendID(custom map[string]any) (int, bool) {
	switch v := custom[CustomBackendID].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

// Resolve maps an overlay interaction back to a cached annotation
func Resolve(ev engine.Interaction, cached []models.Annotation) (models.Annotation, bool) {
	id, ok := BackendID(ev.Custom)
	if !ok {
		return models.Annotation{}, false
	}
	for _, a := range cached {
		if a.ID == id {
			return a, true
		}
	}
	return models.Annotation{}, false
}

// Syncer mirrors annotation rows into a document's overlay layer. It
// remembers what it imported per document id so the next sync can purge it.
type Syncer struct {
	mu     sync.Mutex
	synced map[string]map[string]int
	logger *log.Logger
}

// NewSyncer returns an empty syncer
func NewSyncer() *Syncer {
	return &Syncer{
		synced: make(map[string]map[string]int),
		logger: logging.For("reader-annotation-sync"),
	}
}

// Sync replaces the overlays previously imported into doc with one overlay
// per annotation. Translation anchors, rows on unknown pages and rows
// without rects are skipped. It returns the number of imported overlays.
func (s *Syncer) Sync(doc engine.Document, annotations []models.Annotation, translated map[int]bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	layer := doc.Annotations()
	for id, pageIndex := range s.synced[doc.ID()] {
		layer.Purge(pageIndex, id)
	}

	next := make(map[string]int)
	var objects []engine.HighlightObject
	for _, a := range annotations {
		if translated[a.ID] && strings.TrimSpace(a.NoteText()) != "" {
			continue
		}
		pageIndex := a.Page - 1
		size, ok := doc.PageSize(pageIndex)
		if !ok || len(a.Rects) == 0 {
			continue
		}

		segments := make([]geometry.Rect, 0, len(a.Rects))
		for _, r := range a.Rects {
			segments = append(segments, geometry.ToEngineRect(r, size))
		}
		bounds, _ := geometry.BoundingRect(segments)

		contents := a.SelectedText
		if a.Note != nil {
			contents = *a.Note
		}

		id := HighlightID(a.ID)
		next[id] = pageIndex
		objects = append(objects, engine.HighlightObject{
			ID:          id,
			PageIndex:   pageIndex,
			Rect:        bounds,
			Segments:    segments,
			Color:       a.Color,
			StrokeColor: a.Color,
			Opacity:     highlightOpacity,
			BlendMode:   blendMultiply,
			Contents:    contents,
			Custom:      map[string]any{CustomBackendID: a.ID},
			Print:       true,
		})
	}

	if len(objects) > 0 {
		layer.Import(objects)
	}
	s.synced[doc.ID()] = next
	s.logger.Debug("synced overlays", "document", doc.ID(), "imported", len(objects))
	return len(objects)
}

// Forget drops the bookkeeping of a closed document
func (s *Syncer) Forget(documentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.synced, documentID)
}
