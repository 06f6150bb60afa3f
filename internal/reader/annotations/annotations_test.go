package annotations

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/justyntemme/readium-t/internal/reader/engine"
	"github.com/justyntemme/readium-t/internal/reader/engine/enginetest"
	"github.com/justyntemme/readium-t/internal/reader/geometry"
	"github.com/justyntemme/readium-t/pkg/models"
)

type fakeBackend struct {
	mu        sync.Mutex
	pages     map[int][]models.Annotation
	failPage  int
	pageCalls map[int]int
	bookCalls atomic.Int32
	created   []models.CreateAnnotation
	gate      chan struct{}
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{pages: map[int][]models.Annotation{}, pageCalls: map[int]int{}}
}

func (b *fakeBackend) ListAnnotations(ctx context.Context, bookID int) ([]models.Annotation, error) {
	b.bookCalls.Add(1)
	b.mu.Lock()
	defer b.mu.Unlock()
	var all []models.Annotation
	for _, list := range b.pages {
		all = append(all, list...)
	}
	return all, nil
}

func (b *fakeBackend) ListPageAnnotations(ctx context.Context, bookID, page int) ([]models.Annotation, error) {
	b.mu.Lock()
	b.pageCalls[page]++
	gate := b.gate
	fail := b.failPage == page
	list := append([]models.Annotation(nil), b.pages[page]...)
	b.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if fail {
		return nil, errors.New("page unavailable")
	}
	return list, nil
}

func (b *fakeBackend) CreateAnnotation(ctx context.Context, cmd models.CreateAnnotation) (*models.Annotation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.created = append(b.created, cmd)
	a := models.Annotation{ID: 100 + len(b.created), BookID: cmd.BookID, Page: cmd.Page, Rects: cmd.Rects, Color: cmd.Color, SelectedText: cmd.SelectedText}
	b.pages[cmd.Page] = append(b.pages[cmd.Page], a)
	return &a, nil
}

func (b *fakeBackend) UpdateAnnotation(ctx context.Context, cmd models.UpdateAnnotation) (*models.Annotation, error) {
	return &models.Annotation{ID: cmd.ID}, nil
}

func (b *fakeBackend) DeleteAnnotation(ctx context.Context, id int) error {
	return errors.New("forbidden")
}

func (b *fakeBackend) calls(page int) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pageCalls[page]
}

func ann(id, page int) models.Annotation {
	return models.Annotation{
		ID:           id,
		Page:         page,
		Color:        "#FFEB3B",
		SelectedText: "text",
		Rects:        models.RectList{{X: 0.1, Y: 0.1, Width: 0.2, Height: 0.05}},
	}
}

func TestPageWindow(t *testing.T) {
	tests := []struct {
		current int
		want    []int
	}{
		{current: 0, want: nil},
		{current: -2, want: nil},
		{current: 1, want: []int{1, 2}},
		{current: 5, want: []int{4, 5, 6}},
	}
	for _, tt := range tests {
		got := PageWindow(tt.current)
		if len(got) != len(tt.want) {
			t.Errorf("PageWindow(%d) = %v, want %v", tt.current, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("PageWindow(%d) = %v, want %v", tt.current, got, tt.want)
			}
		}
	}
}

func TestMergeFirstOccurrenceWins(t *testing.T) {
	first := ann(1, 4)
	first.Color = "first"
	dup := ann(1, 4)
	dup.Color = "second"

	got := Merge([][]models.Annotation{{first, ann(2, 4)}, nil, {dup, ann(3, 6)}})
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0].Color != "first" || got[1].ID != 2 || got[2].ID != 3 {
		t.Errorf("merged = %+v", got)
	}
}

func TestWindowCachesAndReportsPartialFailure(t *testing.T) {
	backend := newFakeBackend()
	backend.pages[4] = []models.Annotation{ann(1, 4)}
	backend.pages[5] = []models.Annotation{ann(2, 5), ann(3, 5)}
	backend.pages[6] = []models.Annotation{ann(4, 6)}
	backend.failPage = 6
	store := NewStore(backend)

	w, err := store.Window(context.Background(), 9, 5)
	if err == nil {
		t.Error("expected the failed page to be reported")
	}
	if len(w.Merged) != 3 {
		t.Errorf("merged = %d rows, want 3", len(w.Merged))
	}
	if len(w.Current) != 2 {
		t.Errorf("current = %d rows, want 2", len(w.Current))
	}

	backend.mu.Lock()
	backend.failPage = 0
	backend.mu.Unlock()

	w, err = store.Window(context.Background(), 9, 5)
	if err != nil {
		t.Fatalf("Window: %v", err)
	}
	if len(w.Merged) != 4 {
		t.Errorf("merged = %d rows, want 4", len(w.Merged))
	}
	if backend.calls(5) != 1 || backend.calls(4) != 1 {
		t.Errorf("cached pages refetched: page4=%d page5=%d", backend.calls(4), backend.calls(5))
	}
	if backend.calls(6) != 2 {
		t.Errorf("failed page calls = %d, want 2", backend.calls(6))
	}
}

func TestConcurrentPageFetchesAreShared(t *testing.T) {
	backend := newFakeBackend()
	backend.pages[2] = []models.Annotation{ann(1, 2)}
	backend.gate = make(chan struct{})
	store := NewStore(backend)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Page(context.Background(), 9, 2); err != nil {
				t.Errorf("Page: %v", err)
			}
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(backend.gate)
	wg.Wait()

	if n := backend.calls(2); n != 1 {
		t.Errorf("backend calls = %d, want 1", n)
	}
}

func TestMutationsInvalidateBook(t *testing.T) {
	backend := newFakeBackend()
	backend.pages[3] = []models.Annotation{ann(1, 3)}
	store := NewStore(backend)
	ctx := context.Background()

	if _, err := store.Page(ctx, 9, 3); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Book(ctx, 9); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Page(ctx, 10, 3); err != nil {
		t.Fatal(err)
	}

	created, err := store.Create(ctx, models.CreateAnnotation{BookID: 9, Page: 3, Rects: []models.ReaderRect{{Width: 0.1, Height: 0.1}}, Color: "#FFEB3B", SelectedText: "new"})
	if err != nil {
		t.Fatal(err)
	}

	page, err := store.Page(ctx, 9, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 2 || page[1].ID != created.ID {
		t.Errorf("page after create = %+v", page)
	}
	if _, err := store.Book(ctx, 9); err != nil {
		t.Fatal(err)
	}
	if n := backend.bookCalls.Load(); n != 2 {
		t.Errorf("book list calls = %d, want 2", n)
	}
	// Book 10 shares page 3 on the fake but keeps its cache entry.
	if _, err := store.Page(ctx, 10, 3); err != nil {
		t.Fatal(err)
	}
	if n := backend.calls(3); n != 3 {
		t.Errorf("page calls = %d, want 3", n)
	}

	if err := store.Delete(ctx, 9, 1); err == nil {
		t.Error("expected delete failure to propagate")
	}
}

func TestStaleEntriesRefetch(t *testing.T) {
	backend := newFakeBackend()
	store := NewStore(backend)
	store.pageTTL = time.Millisecond

	store.Page(context.Background(), 1, 1)
	time.Sleep(5 * time.Millisecond)
	store.Page(context.Background(), 1, 1)

	if n := backend.calls(1); n != 2 {
		t.Errorf("calls = %d, want 2", n)
	}
}

type fakeTranslations struct {
	mu      sync.Mutex
	list    []models.Translation
	calls   int
	started chan struct{}
	gate    chan struct{}
}

func (f *fakeTranslations) ListTranslations(ctx context.Context, bookID int) ([]models.Translation, error) {
	f.mu.Lock()
	f.calls++
	list := append([]models.Translation(nil), f.list...)
	started, gate := f.started, f.gate
	f.started, f.gate = nil, nil
	f.mu.Unlock()

	if started != nil {
		close(started)
		<-gate
	}
	return list, nil
}

func (f *fakeTranslations) CreateTranslation(ctx context.Context, cmd models.CreateTranslation) (*models.Translation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := models.Translation{ID: len(f.list) + 1, OriginalText: cmd.OriginalText, TranslatedText: cmd.TranslatedText}
	f.list = append(f.list, t)
	return &t, nil
}

func (f *fakeTranslations) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestTranslationsCachedUntilStale(t *testing.T) {
	store := NewStore(newFakeBackend())
	backend := &fakeTranslations{list: []models.Translation{{ID: 1, OriginalText: "hello", TranslatedText: "olá"}}}
	ctx := context.Background()

	store.Translations(ctx, backend, 9)
	store.Translations(ctx, backend, 9)
	if n := backend.callCount(); n != 1 {
		t.Fatalf("calls = %d, want 1", n)
	}

	store.transTTL = time.Millisecond
	store.Invalidate(9)
	store.Translations(ctx, backend, 9)
	time.Sleep(5 * time.Millisecond)
	list, err := store.Translations(ctx, backend, 9)
	if err != nil || len(list) != 1 {
		t.Fatalf("list = %+v, err = %v", list, err)
	}
	if n := backend.callCount(); n != 3 {
		t.Errorf("calls = %d, want 3", n)
	}
}

func TestSavedTranslationVisibleOnNextRead(t *testing.T) {
	store := NewStore(newFakeBackend())
	backend := &fakeTranslations{}
	ctx := context.Background()

	if list, _ := store.Translations(ctx, backend, 9); len(list) != 0 {
		t.Fatalf("list = %+v", list)
	}
	if _, err := store.CreateTranslation(ctx, backend, models.CreateTranslation{BookID: 9, OriginalText: "hello", TranslatedText: "olá"}); err != nil {
		t.Fatal(err)
	}
	list, err := store.Translations(ctx, backend, 9)
	if err != nil || len(list) != 1 || list[0].TranslatedText != "olá" {
		t.Errorf("list after save = %+v, err = %v", list, err)
	}
}

func TestLateTranslationFetchDoesNotRefillCache(t *testing.T) {
	store := NewStore(newFakeBackend())
	backend := &fakeTranslations{started: make(chan struct{}), gate: make(chan struct{})}
	ctx := context.Background()
	started, gate := backend.started, backend.gate

	done := make(chan []models.Translation)
	go func() {
		list, _ := store.Translations(ctx, backend, 9)
		done <- list
	}()
	<-started
	if _, err := store.CreateTranslation(ctx, backend, models.CreateTranslation{BookID: 9, OriginalText: "hello", TranslatedText: "olá"}); err != nil {
		t.Fatal(err)
	}
	close(gate)
	if old := <-done; len(old) != 0 {
		t.Fatalf("in-flight fetch = %+v, want the pre-save list", old)
	}

	list, err := store.Translations(ctx, backend, 9)
	if err != nil || len(list) != 1 {
		t.Errorf("list = %+v, err = %v; stale fetch refilled the cache", list, err)
	}
	if n := backend.callCount(); n != 2 {
		t.Errorf("calls = %d, want 2", n)
	}
}

func TestSyncImportsAndPurges(t *testing.T) {
	doc := enginetest.New("doc-1", 5, geometry.Size{Width: 600, Height: 800})
	syncer := NewSyncer()

	note := "remember"
	anchorNote := "olá"
	blankNote := "  "
	withNote := ann(1, 2)
	withNote.Note = &note
	withNote.Rects = models.RectList{
		{X: 0.125, Y: 0.125, Width: 0.5, Height: 0.0625},
		{X: 0.0625, Y: 0.25, Width: 0.25, Height: 0.0625},
	}
	anchor := ann(2, 2)
	anchor.Note = &anchorNote
	blankAnchor := ann(3, 2)
	blankAnchor.Note = &blankNote
	offDocument := ann(4, 9)
	noRects := ann(5, 2)
	noRects.Rects = nil

	translated := map[int]bool{2: true, 3: true}
	n := syncer.Sync(doc, []models.Annotation{withNote, anchor, blankAnchor, offDocument, noRects}, translated)
	if n != 2 {
		t.Fatalf("imported = %d, want 2", n)
	}

	imported := doc.Imported()
	obj := imported[0]
	if obj.ID != "backend-highlight-1" || obj.PageIndex != 1 {
		t.Errorf("object id/page = %q/%d", obj.ID, obj.PageIndex)
	}
	if obj.Rect != (geometry.Rect{X: 37.5, Y: 100, Width: 337.5, Height: 150}) {
		t.Errorf("bounding rect = %+v", obj.Rect)
	}
	if obj.Contents != "remember" || obj.Opacity != 0.42 || obj.BlendMode != "multiply" || !obj.Print {
		t.Errorf("object = %+v", obj)
	}
	if obj.Color != "#FFEB3B" || obj.StrokeColor != "#FFEB3B" {
		t.Errorf("colors = %q/%q", obj.Color, obj.StrokeColor)
	}
	if id, ok := BackendID(obj.Custom); !ok || id != 1 {
		t.Errorf("BackendID = %d, %v", id, ok)
	}
	if imported[1].ID != "backend-highlight-3" || imported[1].Contents != "  " {
		t.Errorf("blank-note anchor should sync with its note as contents: %+v", imported[1])
	}

	// The next sync purges everything imported before.
	n = syncer.Sync(doc, []models.Annotation{ann(6, 1)}, nil)
	if n != 1 {
		t.Fatalf("imported = %d, want 1", n)
	}
	purged := doc.Purged()
	if len(purged) != 2 {
		t.Fatalf("purged = %+v, want 2 entries", purged)
	}
	if got := doc.Imported(); len(got) != 1 || got[0].ID != "backend-highlight-6" {
		t.Errorf("imported after resync = %+v", got)
	}
}

func TestResolveInteraction(t *testing.T) {
	cached := []models.Annotation{ann(1, 1), ann(2, 1)}
	got, ok := Resolve(engine.Interaction{Custom: map[string]any{CustomBackendID: 2}}, cached)
	if !ok || got.ID != 2 {
		t.Errorf("Resolve = %+v, %v", got, ok)
	}
	if _, ok := Resolve(engine.Interaction{Custom: map[string]any{}}, cached); ok {
		t.Error("resolved an interaction without back-reference")
	}
	if _, ok := Resolve(engine.Interaction{Custom: map[string]any{CustomBackendID: 9.0}}, cached); ok {
		t.Error("resolved an unknown annotation")
	}
}
