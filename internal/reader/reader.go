// Package reader wires the per-document reader components together: the
// engine document, viewport bridge, selection resolver, gesture classifier,
// annotation sync, translation overlays, interaction session and progress.
package reader

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/justyntemme/readium-t/internal/logging"
	"github.com/justyntemme/readium-t/internal/reader/annotations"
	"github.com/justyntemme/readium-t/internal/reader/engine"
	"github.com/justyntemme/readium-t/internal/reader/engine/pdfengine"
	"github.com/justyntemme/readium-t/internal/reader/geometry"
	"github.com/justyntemme/readium-t/internal/reader/gesture"
	"github.com/justyntemme/readium-t/internal/reader/overlay"
	"github.com/justyntemme/readium-t/internal/reader/progress"
	"github.com/justyntemme/readium-t/internal/reader/schedule"
	"github.com/justyntemme/readium-t/internal/reader/selection"
	"github.com/justyntemme/readium-t/internal/reader/session"
	"github.com/justyntemme/readium-t/internal/reader/textlayer"
	"github.com/justyntemme/readium-t/internal/reader/viewport"
	"github.com/justyntemme/readium-t/pkg/models"
)

const lowTextLayerMessage = "This PDF seems to have a weak text layer. Selection may be inaccurate; OCR can be started from the book details."

// Files serves document bytes
type Files interface {
	DownloadBookFile(ctx context.Context, bookID int, version string) ([]byte, error)
	BookFileURL(bookID int, version string) string
}

// Translations lists and saves translations
type Translations interface {
	ListTranslations(ctx context.Context, bookID int) ([]models.Translation, error)
	CreateTranslation(ctx context.Context, cmd models.CreateTranslation) (*models.Translation, error)
}

// Opener turns document bytes into a headless document
type Opener interface {
	OpenDocument(ctx context.Context, name string, data []byte) (*pdfengine.Document, error)
}

// Services are shared by every opened book
type Services struct {
	Files        Files
	Opener       Opener
	Annotations  *annotations.Store
	Syncer       *annotations.Syncer
	Translations Translations
	Translator   session.Translator
	Progress     *progress.Tracker
	Analyzer     *textlayer.Analyzer
	Hint         *textlayer.Hint
	Scheduler    schedule.Scheduler

	TargetLanguage string
	Clipboard      func(string) error
	Narrow         func() bool
}

// Reader is one open book
type Reader struct {
	svc     Services
	book    models.Book
	doc     *pdfengine.Document
	fileURL string
	logger  *log.Logger

	ctx    context.Context
	cancel context.CancelFunc
	events *mailbox

	session  *session.Session
	bridge   *viewport.Bridge
	resolver *selection.Resolver
	gestures *gesture.Classifier
	unsub    func()

	mu         sync.Mutex
	closed     bool
	page       int
	pageBox    geometry.Rect
	refreshGen uint64
	window     annotations.Window
	overlays   []models.TranslationOverlay
}

// Open downloads and opens book. The returned reader publishes events
// until Close.
func Open(ctx context.Context, svc Services, book models.Book, version string) (*Reader, error) {
	if !book.IsPDF() {
		return nil, fmt.Errorf("open %q: unsupported format %s", book.Title, book.Format)
	}
	data, err := svc.Files.DownloadBookFile(ctx, book.ID, version)
	if err != nil {
		return nil, fmt.Errorf("download %q: %w", book.Title, err)
	}
	doc, err := svc.Opener.OpenDocument(ctx, book.Title, data)
	if err != nil {
		return nil, err
	}

	r := &Reader{
		svc:     svc,
		book:    book,
		doc:     doc,
		fileURL: svc.Files.BookFileURL(book.ID, version),
		logger:  logging.For("reader"),
		events:  newMailbox(),
	}
	r.ctx, r.cancel = context.WithCancel(context.Background())

	r.session = session.New(session.Config{
		BookID:         book.ID,
		TargetLanguage: svc.TargetLanguage,
		Annotations:    mutations{r},
		Translator:     svc.Translator,
		Translations:   translationWriter{r},
		Clipboard:      svc.Clipboard,
		Notify:         func(n session.Notice) { r.events.push(NoticeRaised{Notice: n}) },
		OnChange:       func(s session.State) { r.events.push(SessionChanged{State: s}) },
	})

	svc.Progress.SetBook(book.ID)
	svc.Hint.Opened(r.fileURL)

	r.gestures = gesture.New(svc.Scheduler, r.handleTap)
	r.resolver = selection.New(doc, r, r.gestures, svc.Scheduler, r.session.SelectionResolved)
	r.bridge = viewport.New(svc.Scheduler, viewport.Options{
		Narrow:   svc.Narrow,
		OnChange: r.handleViewport,
	})
	unsubInteract := doc.Annotations().OnInteract(r.handleInteraction)
	unsubLink := doc.OnLink(r.handleLink)
	r.unsub = func() {
		unsubInteract()
		unsubLink()
	}
	r.bridge.Attach(doc, book.ResumePage())
	doc.MarkLayoutReady(true)

	go r.evaluateTextLayer()
	return r, nil
}

// Book returns the open book
func (r *Reader) Book() models.Book { return r.book }

// Document returns the engine document
func (r *Reader) Document() *pdfengine.Document { return r.doc }

// Session returns the interaction state machine
func (r *Reader) Session() *session.Session { return r.session }

// Viewport returns the viewport bridge
func (r *Reader) Viewport() *viewport.Bridge { return r.bridge }

// Gestures returns the pointer classifier
func (r *Reader) Gestures() *gesture.Classifier { return r.gestures }

// Next blocks until the next event. ok is false after Close.
func (r *Reader) Next(ctx context.Context) (Event, bool) {
	return r.events.next(ctx)
}

// SetPageBox records where the current page is drawn, in host units
func (r *Reader) SetPageBox(box geometry.Rect) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pageBox = box
}

// PageBox implements engine.PageLocator. Only the current page is mounted.
func (r *Reader) PageBox(pageIndex int) (geometry.Rect, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if pageIndex != r.page-1 || r.pageBox.Empty() {
		return geometry.Rect{}, false
	}
	return r.pageBox, true
}

// BeginSelection starts a line selection on the current page
func (r *Reader) BeginSelection(line int) {
	r.doc.BeginSelection(r.currentPage()-1, line)
}

// ExtendSelection moves the selection focus
func (r *Reader) ExtendSelection(line int) {
	r.doc.ExtendSelection(line)
}

// EndSelection finishes the selection and lets the resolver pick it up
func (r *Reader) EndSelection() {
	r.doc.EndSelection()
	r.resolver.HandleWindowEvent(selection.PointerUp)
}

// ClearSelection drops the engine selection and dismisses the session
func (r *Reader) ClearSelection() {
	r.doc.Selection().Clear()
	r.session.Dismiss()
}

// Blur reports that the host lost focus
func (r *Reader) Blur() {
	r.resolver.HandleWindowEvent(selection.Blur)
}

// Click activates the overlay or link under a host point on the current page
func (r *Reader) Click(p models.Point) bool {
	pageIndex := r.currentPage() - 1
	box, ok := r.PageBox(pageIndex)
	if !ok {
		return false
	}
	size, ok := r.doc.PageSize(pageIndex)
	if !ok || !size.Valid() {
		return false
	}
	pt := geometry.Point{
		X: (p.X - box.X) * size.Width / box.Width,
		Y: (p.Y - box.Y) * size.Height / box.Height,
	}
	return r.doc.Interact(pageIndex, pt)
}

// OpenTranslation shows a translation overlay of the current page
func (r *Reader) OpenTranslation(o models.TranslationOverlay) {
	var at models.Point
	if size, ok := r.doc.PageSize(o.Page - 1); ok {
		at = r.toHost(o.Page-1, geometry.ToEngineRect(o.Rect, size))
	}
	r.session.OpenTranslation(o, at)
}

// Overlays returns the translation overlays of the current page
func (r *Reader) Overlays() []models.TranslationOverlay {
	r.mu.Lock()
	defer r.mu.Unlock()
	return overlay.ForPage(r.overlays, r.page)
}

// BookAnnotations returns every annotation of the book
func (r *Reader) BookAnnotations(ctx context.Context) ([]models.Annotation, error) {
	return r.svc.Annotations.Book(ctx, r.book.ID)
}

// Refresh reloads the annotations around the current page
func (r *Reader) Refresh() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.refreshGen++
	gen, page := r.refreshGen, r.page
	r.mu.Unlock()

	go r.refresh(gen, page)
}

// Close tears the reader down and flushes the reading position
func (r *Reader) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	r.svc.Progress.Flush()
	r.cancel()
	r.resolver.Close()
	r.gestures.Close()
	r.unsub()
	r.bridge.Close()
	r.svc.Syncer.Forget(r.doc.ID())
	r.events.close()
	return r.doc.Close()
}

func (r *Reader) currentPage() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.page
}

func (r *Reader) handleViewport(state models.ViewportState) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	changed := state.CurrentPage != r.page
	r.page = state.CurrentPage
	r.mu.Unlock()

	r.events.push(ViewportChanged{State: state})
	if changed {
		r.svc.Progress.PageChanged(state.CurrentPage)
		r.Refresh()
	}
}

func (r *Reader) refresh(gen uint64, page int) {
	window, err := r.svc.Annotations.Window(r.ctx, r.book.ID, page)
	translations, terr := r.loadTranslations()
	if terr != nil {
		err = errors.Join(err, terr)
	}
	if r.ctx.Err() != nil {
		return
	}

	r.mu.Lock()
	if gen != r.refreshGen || r.closed {
		r.mu.Unlock()
		return
	}
	overlays := overlay.Build(window.Merged, translations)
	r.window = window
	r.overlays = overlays
	r.mu.Unlock()

	if err != nil {
		r.logger.Warn("annotations partially loaded", "book", r.book.ID, "page", page, "err", err)
	}
	r.svc.Syncer.Sync(r.doc, window.Merged, overlay.AnnotationIDs(overlays))
	r.events.push(AnnotationsChanged{
		Page:        page,
		Annotations: window.Current,
		Overlays:    overlay.ForPage(overlays, page),
		Err:         err,
	})
}

func (r *Reader) loadTranslations() ([]models.Translation, error) {
	list, err := r.svc.Annotations.Translations(r.ctx, r.svc.Translations, r.book.ID)
	if err != nil {
		return nil, fmt.Errorf("load translations: %w", err)
	}
	return list, nil
}

func (r *Reader) handleInteraction(ev engine.Interaction) {
	r.mu.Lock()
	merged := r.window.Merged
	r.mu.Unlock()

	a, ok := annotations.Resolve(ev, merged)
	if !ok {
		return
	}
	pos := r.toHost(ev.PageIndex, geometry.Rect{X: ev.At.X, Y: ev.At.Y})
	r.session.OpenAnnotationNote(a, pos)
}

// handleLink pages to internal link targets and hands external ones to the
// user through the clipboard. Script links are never followed.
func (r *Reader) handleLink(l engine.Link) {
	if l.Internal() {
		r.bridge.GoToPage(viewport.LinkPage(l.DestPage, r.doc.PageCount()))
		return
	}
	uri := strings.TrimSpace(l.URI)
	switch {
	case uri == "":
		return
	case strings.HasPrefix(strings.ToLower(uri), "javascript:"):
		r.logger.Warn("blocked script link", "page", l.PageIndex+1)
		return
	}

	n := session.Notice{Level: session.LevelInfo, Message: "Link copied:", URL: uri}
	if r.svc.Clipboard == nil {
		n.Message = "Link:"
	} else if err := r.svc.Clipboard(uri); err != nil {
		r.logger.Warn("copy link failed", "err", err)
		n.Level, n.Message = session.LevelWarn, "Could not copy link:"
	}
	r.events.push(NoticeRaised{Notice: n})
}

// handleTap toggles the chrome on a center tap that hit no overlay
func (r *Reader) handleTap(p models.Point) {
	if r.Click(p) {
		return
	}
	box, ok := r.PageBox(r.currentPage() - 1)
	if ok && gesture.CenterTap(box, p) {
		r.events.push(ChromeToggled{})
	}
}

// toHost maps the top center of a page rect to host coordinates
func (r *Reader) toHost(pageIndex int, rect geometry.Rect) models.Point {
	box, ok := r.PageBox(pageIndex)
	size, sok := r.doc.PageSize(pageIndex)
	if !ok || !sok || !size.Valid() {
		return models.Point{}
	}
	scaleX := box.Width / size.Width
	scaleY := box.Height / size.Height
	return models.Point{
		X: box.X + (rect.X+rect.Width/2)*scaleX,
		Y: box.Y + rect.Y*scaleY,
	}
}

func (r *Reader) evaluateTextLayer() {
	low, ok, err := r.svc.Analyzer.Evaluate(r.ctx, r.doc.ID(), r.doc.PageCount(), r.doc)
	if err != nil || !ok {
		return
	}
	if r.svc.Hint.ShouldShow(r.fileURL, low) {
		r.events.push(NoticeRaised{Notice: session.Notice{Level: session.LevelWarn, Message: lowTextLayerMessage}})
	}
}

// mutations refreshes the current view after every successful write
type mutations struct{ r *Reader }

func (m mutations) Create(ctx context.Context, cmd models.CreateAnnotation) (*models.Annotation, error) {
	a, err := m.r.svc.Annotations.Create(ctx, cmd)
	if err == nil {
		m.r.Refresh()
	}
	return a, err
}

func (m mutations) Update(ctx context.Context, bookID int, cmd models.UpdateAnnotation) (*models.Annotation, error) {
	a, err := m.r.svc.Annotations.Update(ctx, bookID, cmd)
	if err == nil {
		m.r.Refresh()
	}
	return a, err
}

func (m mutations) Delete(ctx context.Context, bookID, id int) error {
	err := m.r.svc.Annotations.Delete(ctx, bookID, id)
	if err == nil {
		m.r.Refresh()
	}
	return err
}

// translationWriter saves through the store so the book's cache is dropped
type translationWriter struct{ r *Reader }

func (w translationWriter) CreateTranslation(ctx context.Context, cmd models.CreateTranslation) (*models.Translation, error) {
	return w.r.svc.Annotations.CreateTranslation(ctx, w.r.svc.Translations, cmd)
}
