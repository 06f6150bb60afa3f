package reader

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/justyntemme/readium-t/internal/reader/annotations"
	"github.com/justyntemme/readium-t/internal/reader/engine"
	"github.com/justyntemme/readium-t/internal/reader/engine/pdfengine"
	"github.com/justyntemme/readium-t/internal/reader/geometry"
	"github.com/justyntemme/readium-t/internal/reader/progress"
	"github.com/justyntemme/readium-t/internal/reader/schedule"
	"github.com/justyntemme/readium-t/internal/reader/session"
	"github.com/justyntemme/readium-t/internal/reader/textlayer"
	"github.com/justyntemme/readium-t/pkg/models"
)

type fakeFiles struct{}

func (fakeFiles) DownloadBookFile(ctx context.Context, bookID int, version string) ([]byte, error) {
	return []byte("%PDF"), nil
}

func (fakeFiles) BookFileURL(bookID int, version string) string {
	return "http://server/books/1/file"
}

type fakeOpener struct{ doc *pdfengine.Document }

func (o fakeOpener) OpenDocument(ctx context.Context, name string, data []byte) (*pdfengine.Document, error) {
	return o.doc, nil
}

type fakeBackend struct {
	mu    sync.Mutex
	rows  []models.Annotation
	calls int
}

func (b *fakeBackend) ListAnnotations(ctx context.Context, bookID int) ([]models.Annotation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.Annotation(nil), b.rows...), nil
}

func (b *fakeBackend) ListPageAnnotations(ctx context.Context, bookID, page int) ([]models.Annotation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []models.Annotation
	for _, a := range b.rows {
		if a.Page == page {
			out = append(out, a)
		}
	}
	return out, nil
}

func (b *fakeBackend) CreateAnnotation(ctx context.Context, cmd models.CreateAnnotation) (*models.Annotation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	a := models.Annotation{ID: 100 + len(b.rows), BookID: cmd.BookID, Page: cmd.Page, Rects: cmd.Rects, Color: cmd.Color, SelectedText: cmd.SelectedText, Note: cmd.Note}
	b.rows = append(b.rows, a)
	return &a, nil
}

func (b *fakeBackend) UpdateAnnotation(ctx context.Context, cmd models.UpdateAnnotation) (*models.Annotation, error) {
	return nil, errors.New("not implemented")
}

func (b *fakeBackend) DeleteAnnotation(ctx context.Context, id int) error {
	return errors.New("not implemented")
}

type fakeTranslations struct {
	mu   sync.Mutex
	list []models.Translation
}

func (f *fakeTranslations) ListTranslations(ctx context.Context, bookID int) ([]models.Translation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Translation(nil), f.list...), nil
}

func (f *fakeTranslations) CreateTranslation(ctx context.Context, cmd models.CreateTranslation) (*models.Translation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := models.Translation{ID: len(f.list) + 1, OriginalText: cmd.OriginalText, TranslatedText: cmd.TranslatedText}
	f.list = append(f.list, t)
	return &t, nil
}

func (f *fakeTranslations) add(t models.Translation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.list = append(f.list, t)
}

type fakeTranslator struct{}

func (fakeTranslator) Translate(ctx context.Context, text, target string) (*models.AutoTranslation, error) {
	return &models.AutoTranslation{TranslatedText: "olá", DetectedLanguage: "en"}, nil
}

type saverCall struct{ bookID, page int }

type fakeSaver struct {
	mu    sync.Mutex
	calls []saverCall
}

func (s *fakeSaver) UpdateProgress(ctx context.Context, bookID, page int, keepalive bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, saverCall{bookID, page})
	return nil
}

func (s *fakeSaver) snapshot() []saverCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]saverCall(nil), s.calls...)
}

var letter = geometry.Size{Width: 600, Height: 800}

func testPages() []pdfengine.Page {
	lines := []pdfengine.Line{
		{Text: "Hello", Rect: geometry.Rect{X: 150, Y: 200, Width: 300, Height: 100}},
		{Text: "world", Rect: geometry.Rect{X: 150, Y: 400, Width: 150, Height: 100}},
	}
	links := []engine.Link{
		{Rect: geometry.Rect{X: 0, Y: 0, Width: 100, Height: 50}, DestPage: 2},
		{Rect: geometry.Rect{X: 500, Y: 0, Width: 100, Height: 50}, DestPage: 40},
		{Rect: geometry.Rect{X: 0, Y: 700, Width: 100, Height: 50}, DestPage: -1, URI: " https://example.com/ref "},
		{Rect: geometry.Rect{X: 500, Y: 700, Width: 100, Height: 50}, DestPage: -1, URI: "JavaScript:alert(1)"},
	}
	return []pdfengine.Page{{Size: letter, Lines: lines, Links: links}, {Size: letter, Lines: lines}, {Size: letter}}
}

type fixture struct {
	r            *Reader
	sched        *schedule.Manual
	backend      *fakeBackend
	translations *fakeTranslations
	saver        *fakeSaver
	doc          *pdfengine.Document
}

func open(t *testing.T, lastRead int, rows []models.Annotation, translations []models.Translation) *fixture {
	t.Helper()
	sched := schedule.NewManual()
	backend := &fakeBackend{rows: rows}
	saver := &fakeSaver{}
	doc := pdfengine.NewDocument("doc-1", testPages())
	trans := &fakeTranslations{list: translations}

	svc := Services{
		Files:        fakeFiles{},
		Opener:       fakeOpener{doc: doc},
		Annotations:  annotations.NewStore(backend),
		Syncer:       annotations.NewSyncer(),
		Translations: trans,
		Translator:   fakeTranslator{},
		Progress:     progress.New(saver, sched, nil),
		Analyzer:     textlayer.NewAnalyzer(),
		Hint:         textlayer.NewHint(),
		Scheduler:    sched,
	}
	page := lastRead
	book := models.Book{ID: 1, Title: "Book", Format: models.FormatPDF, Status: models.StatusReading, LastReadPage: &page}
	r, err := Open(context.Background(), svc, book, "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	r.SetPageBox(geometry.Rect{Width: 60, Height: 80})
	t.Cleanup(func() { r.Close() })
	return &fixture{r: r, sched: sched, backend: backend, translations: trans, saver: saver, doc: doc}
}

// waitFor reads events until one matches
func waitFor[T any](t *testing.T, r *Reader, match func(T) bool) T {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		ev, ok := r.Next(ctx)
		if !ok {
			var zero T
			t.Fatalf("no matching %T event", zero)
			return zero
		}
		if v, ok := ev.(T); ok && (match == nil || match(v)) {
			return v
		}
	}
}

func TestOpenRestoresPageAndSavesProgress(t *testing.T) {
	f := open(t, 2, nil, nil)

	f.sched.Advance(schedule.FrameDelay)
	waitFor(t, f.r, func(ev ViewportChanged) bool { return ev.State.CurrentPage == 2 })

	f.sched.Advance(2 * time.Second)
	calls := f.saver.snapshot()
	if len(calls) != 1 || calls[0] != (saverCall{1, 2}) {
		t.Errorf("progress calls = %+v, want one save of page 2", calls)
	}
}

func TestAnnotationsSyncedWithTranslationOverlays(t *testing.T) {
	note := "olá"
	rows := []models.Annotation{
		{ID: 1, Page: 1, Color: "#FFEB3B", SelectedText: "world", Rects: models.RectList{{X: 0.25, Y: 0.5, Width: 0.25, Height: 0.125}}},
		{ID: 2, Page: 1, Color: "#FDE68A", SelectedText: "Hello", Note: &note, Rects: models.RectList{{X: 0.25, Y: 0.25, Width: 0.5, Height: 0.125}}},
	}
	translations := []models.Translation{{ID: 1, OriginalText: "hello", TranslatedText: "olá"}}
	f := open(t, 1, rows, translations)

	ev := waitFor(t, f.r, func(ev AnnotationsChanged) bool { return ev.Page == 1 })
	if ev.Err != nil || len(ev.Annotations) != 2 {
		t.Fatalf("event = %+v", ev)
	}
	if len(ev.Overlays) != 1 || ev.Overlays[0].AnnotationID != 2 || ev.Overlays[0].Translation != "olá" {
		t.Errorf("overlays = %+v", ev.Overlays)
	}
	objs := f.doc.Objects(0)
	if len(objs) != 1 || objs[0].ID != annotations.HighlightID(1) {
		t.Errorf("synced objects = %+v", objs)
	}

	// Clicking the highlight opens its note editor.
	if !f.r.Click(models.Point{X: 20, Y: 45}) {
		t.Fatal("click missed the highlight")
	}
	st := waitFor(t, f.r, func(ev SessionChanged) bool { return true })
	note2, ok := st.State.(session.AnnotationNote)
	if !ok || note2.Annotation.ID != 1 {
		t.Errorf("state = %+v", st.State)
	}

	f.r.OpenTranslation(ev.Overlays[0])
	st = waitFor(t, f.r, func(ev SessionChanged) bool { return true })
	active, ok := st.State.(session.ActiveTranslation)
	if !ok || active.Position != (models.Point{X: 30, Y: 20}) {
		t.Errorf("state = %+v", st.State)
	}
}

func TestRefreshPicksUpTranslationsSavedElsewhere(t *testing.T) {
	f := open(t, 1, nil, nil)
	waitFor(t, f.r, func(ev AnnotationsChanged) bool { return ev.Page == 1 })

	f.translations.add(models.Translation{ID: 7, OriginalText: "Hello", TranslatedText: "olá"})
	note := "olá"
	_, err := f.r.svc.Annotations.Create(context.Background(), models.CreateAnnotation{
		BookID: 1, Page: 1, Color: "#FDE68A", SelectedText: "Hello", Note: &note,
		Rects: []models.ReaderRect{{X: 0.25, Y: 0.25, Width: 0.5, Height: 0.125}},
	})
	if err != nil {
		t.Fatal(err)
	}
	f.r.Refresh()

	ev := waitFor(t, f.r, func(ev AnnotationsChanged) bool { return len(ev.Annotations) == 1 })
	if len(ev.Overlays) != 1 || ev.Overlays[0].Translation != "olá" {
		t.Errorf("annotations=%d overlays=%+v", len(ev.Annotations), ev.Overlays)
	}
}

func TestSavedTranslationShowsAsOverlay(t *testing.T) {
	f := open(t, 1, nil, nil)
	waitFor(t, f.r, func(ev AnnotationsChanged) bool { return ev.Page == 1 })

	f.r.BeginSelection(0)
	f.r.EndSelection()
	waitFor(t, f.r, func(ev SessionChanged) bool {
		_, ok := ev.State.(session.PendingSelection)
		return ok
	})
	f.r.Session().StartTranslation(context.Background())
	waitFor(t, f.r, func(ev SessionChanged) bool {
		_, ok := ev.State.(session.TranslationInput)
		return ok
	})
	if err := f.r.Session().SaveTranslation(context.Background(), "olá"); err != nil {
		t.Fatalf("SaveTranslation: %v", err)
	}

	ev := waitFor(t, f.r, func(ev AnnotationsChanged) bool { return len(ev.Annotations) == 1 })
	if len(ev.Overlays) != 1 || ev.Overlays[0].Translation != "olá" {
		t.Errorf("overlays = %+v", ev.Overlays)
	}
}

func TestSelectionToHighlight(t *testing.T) {
	f := open(t, 1, nil, nil)
	waitFor(t, f.r, func(ev AnnotationsChanged) bool { return true })

	f.r.BeginSelection(0)
	f.r.ExtendSelection(1)
	f.r.EndSelection()

	st := waitFor(t, f.r, func(ev SessionChanged) bool {
		_, ok := ev.State.(session.PendingSelection)
		return ok
	})
	pending := st.State.(session.PendingSelection).Selection
	if pending.Text != "Hello world" || pending.Page != 1 || len(pending.Rects) != 2 {
		t.Fatalf("pending = %+v", pending)
	}
	if pending.PopupPosition != (models.Point{X: 30, Y: 20}) {
		t.Errorf("popup = %+v", pending.PopupPosition)
	}

	if err := f.r.Session().CreateHighlight(context.Background(), "#FFEB3B"); err != nil {
		t.Fatalf("CreateHighlight: %v", err)
	}
	ev := waitFor(t, f.r, func(ev AnnotationsChanged) bool { return len(ev.Annotations) == 1 })
	if ev.Annotations[0].SelectedText != "Hello world" {
		t.Errorf("annotation = %+v", ev.Annotations[0])
	}
	if objs := f.doc.Objects(0); len(objs) != 1 {
		t.Errorf("objects = %+v", objs)
	}
}

func TestInternalLinksPageTheViewport(t *testing.T) {
	f := open(t, 1, nil, nil)
	waitFor(t, f.r, func(ev ViewportChanged) bool { return ev.State.CurrentPage == 1 })

	if !f.r.Click(models.Point{X: 5, Y: 2}) {
		t.Fatal("link not hit")
	}
	waitFor(t, f.r, func(ev ViewportChanged) bool { return ev.State.CurrentPage == 3 })

	f.r.Viewport().GoToPage(1)
	waitFor(t, f.r, func(ev ViewportChanged) bool { return ev.State.CurrentPage == 1 })

	// Targets past the end land on the last page.
	if !f.r.Click(models.Point{X: 55, Y: 2}) {
		t.Fatal("link not hit")
	}
	waitFor(t, f.r, func(ev ViewportChanged) bool { return ev.State.CurrentPage == 3 })
}

func TestExternalLinksAreCopiedAndScriptsBlocked(t *testing.T) {
	f := open(t, 1, nil, nil)
	var mu sync.Mutex
	var copied []string
	f.r.svc.Clipboard = func(s string) error {
		mu.Lock()
		defer mu.Unlock()
		copied = append(copied, s)
		return nil
	}

	if !f.r.Click(models.Point{X: 55, Y: 72}) {
		t.Fatal("script link not hit")
	}
	if !f.r.Click(models.Point{X: 5, Y: 72}) {
		t.Fatal("uri link not hit")
	}

	ev := waitFor(t, f.r, func(ev NoticeRaised) bool { return ev.Notice.URL != "" })
	if ev.Notice.URL != "https://example.com/ref" || ev.Notice.Level != session.LevelInfo {
		t.Errorf("notice = %+v", ev.Notice)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(copied) != 1 || copied[0] != "https://example.com/ref" {
		t.Errorf("copied = %q", copied)
	}
}

func TestLowTextLayerHint(t *testing.T) {
	f := open(t, 1, nil, nil)
	ev := waitFor(t, f.r, func(ev NoticeRaised) bool { return true })
	if ev.Notice.Level != session.LevelWarn || ev.Notice.Message != lowTextLayerMessage {
		t.Errorf("notice = %+v", ev.Notice)
	}
}

func TestCloseFlushesProgressAndStopsEvents(t *testing.T) {
	f := open(t, 1, nil, nil)
	if err := f.r.Close(); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := f.r.svc.Progress.Wait(ctx); err != nil {
		t.Fatal(err)
	}
	calls := f.saver.snapshot()
	if len(calls) != 1 || calls[0] != (saverCall{1, 1}) {
		t.Errorf("calls = %+v", calls)
	}
	if _, ok := f.r.Next(ctx); ok {
		t.Error("event after close")
	}
}

func TestOpenRejectsNonPDF(t *testing.T) {
	_, err := Open(context.Background(), Services{}, models.Book{Title: "x", Format: models.FormatEPUB}, "")
	if err == nil {
		t.Error("expected error")
	}
}
