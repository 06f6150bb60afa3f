package views

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/justyntemme/readium-t/internal/api"
	"github.com/justyntemme/readium-t/internal/reader"
	"github.com/justyntemme/readium-t/internal/reader/annotations"
	"github.com/justyntemme/readium-t/internal/reader/engine/pdfengine"
	"github.com/justyntemme/readium-t/internal/reader/geometry"
	"github.com/justyntemme/readium-t/internal/reader/progress"
	"github.com/justyntemme/readium-t/internal/reader/schedule"
	"github.com/justyntemme/readium-t/internal/reader/session"
	"github.com/justyntemme/readium-t/internal/reader/textlayer"
	"github.com/justyntemme/readium-t/internal/ui/styles"
	"github.com/justyntemme/readium-t/pkg/models"
)

// annotationServer stores created annotations in memory
type annotationServer struct {
	mu      sync.Mutex
	created []models.CreateAnnotation
}

func (s *annotationServer) rows(page int) []models.Annotation {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Annotation
	for i, c := range s.created {
		if page > 0 && c.Page != page {
			continue
		}
		out = append(out, models.Annotation{ID: i + 1, BookID: c.BookID, Page: c.Page, Rects: c.Rects, Color: c.Color, SelectedText: c.SelectedText})
	}
	return out
}

func (s *annotationServer) snapshot() []models.CreateAnnotation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.CreateAnnotation(nil), s.created...)
}

func (s *annotationServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.URL.Path == "/books/1/file":
		io.WriteString(w, "%PDF-1.4")
	case r.URL.Path == "/books/1/annotations":
		json.NewEncoder(w).Encode(s.rows(0))
	case r.URL.Path == "/annotations/book/1/page/1":
		json.NewEncoder(w).Encode(s.rows(1))
	case r.URL.Path == "/annotations" && r.Method == http.MethodPost:
		var cmd models.CreateAnnotation
		if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.mu.Lock()
		s.created = append(s.created, cmd)
		id := len(s.created)
		s.mu.Unlock()
		json.NewEncoder(w).Encode(models.Annotation{ID: id, BookID: cmd.BookID, Page: cmd.Page, Rects: cmd.Rects, Color: cmd.Color, SelectedText: cmd.SelectedText})
	case r.URL.Path == "/books/1/translations":
		io.WriteString(w, "[]")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

type docOpener struct{ doc *pdfengine.Document }

func (o docOpener) OpenDocument(ctx context.Context, name string, data []byte) (*pdfengine.Document, error) {
	return o.doc, nil
}

func newReaderView(t *testing.T) (*ReaderView, *annotationServer) {
	t.Helper()
	backend := &annotationServer{}
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	client := api.NewClient(srv.URL)
	sched := schedule.NewManual()
	doc := pdfengine.NewDocument("doc-1", []pdfengine.Page{
		{Size: geometry.Size{Width: 600, Height: 800}, Lines: testLines},
		{Size: geometry.Size{Width: 600, Height: 800}},
	})
	svc := reader.Services{
		Files:        client,
		Opener:       docOpener{doc: doc},
		Annotations:  annotations.NewStore(client),
		Syncer:       annotations.NewSyncer(),
		Translations: client,
		Progress:     progress.New(client, sched, nil),
		Analyzer:     textlayer.NewAnalyzer(),
		Hint:         textlayer.NewHint(),
		Scheduler:    sched,
	}

	v := NewReaderView(svc, nil)
	v.SetSize(80, 24)
	v.SetBook(models.Book{ID: 1, Title: "Dune", Format: models.FormatPDF, Status: models.StatusReading})
	t.Cleanup(v.Close)

	batch, ok := v.Init()().(tea.BatchMsg)
	if !ok {
		t.Fatal("Init did not batch the spinner and the open")
	}
	for _, cmd := range batch {
		if msg, ok := cmd().(readerOpenedMsg); ok {
			v.Update(msg)
		}
	}
	if v.r == nil || v.loading {
		t.Fatalf("reader not open: err = %v", v.err)
	}
	return v, backend
}

// pump feeds reader events to the view until done reports true
func pump(t *testing.T, v *ReaderView, done func() bool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for !done() {
		ev, ok := v.r.Next(ctx)
		if !ok {
			t.Fatal("timed out waiting for reader events")
		}
		v.Update(readerEventMsg{r: v.r, ev: ev})
	}
}

func TestReaderSelectionToHighlight(t *testing.T) {
	v, backend := newReaderView(t)
	pump(t, v, func() bool { return len(v.lines()) == 2 })

	v.Update(key("v"))
	v.Update(key("j"))
	if !v.Capturing() {
		t.Error("view does not capture keys while selecting")
	}
	v.Update(key("v"))

	pump(t, v, func() bool {
		_, ok := v.session.(session.PendingSelection)
		return ok
	})
	pending := v.session.(session.PendingSelection).Selection
	if pending.Text != "Hello world" || pending.Page != 1 {
		t.Fatalf("pending = %+v", pending)
	}

	_, cmd := v.Update(key("1"))
	if cmd == nil {
		t.Fatal("color key returned no command")
	}
	cmd()

	created := backend.snapshot()
	if len(created) != 1 {
		t.Fatalf("created = %+v", created)
	}
	if created[0].Color != styles.HighlightColors[0] || created[0].SelectedText != "Hello world" || created[0].Page != 1 {
		t.Errorf("created = %+v", created[0])
	}

	pump(t, v, func() bool {
		_, idle := v.session.(session.Idle)
		return idle && len(v.annots) == 1
	})
	if v.Capturing() {
		t.Error("view still captures after the highlight was saved")
	}
}

func TestReaderEscapeCancelsSelection(t *testing.T) {
	v, backend := newReaderView(t)
	pump(t, v, func() bool { return len(v.lines()) == 2 })

	v.Update(key("v"))
	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if cmd != nil {
		t.Error("esc while selecting left the reader")
	}
	if v.selecting || v.Capturing() {
		t.Error("selection survived esc")
	}
	if _, _, _, ok := v.r.Document().SelectedRange(); ok {
		t.Error("document selection survived esc")
	}
	if len(backend.snapshot()) != 0 {
		t.Error("annotation created without a color key")
	}
}
