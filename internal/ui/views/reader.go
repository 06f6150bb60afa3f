package views

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/justyntemme/readium-t/internal/config"
	"github.com/justyntemme/readium-t/internal/logging"
	"github.com/justyntemme/readium-t/internal/reader"
	"github.com/justyntemme/readium-t/internal/reader/engine/pdfengine"
	"github.com/justyntemme/readium-t/internal/reader/geometry"
	"github.com/justyntemme/readium-t/internal/reader/gesture"
	"github.com/justyntemme/readium-t/internal/reader/session"
	"github.com/justyntemme/readium-t/internal/ui/styles"
	"github.com/justyntemme/readium-t/pkg/models"
)

const (
	noticeDuration = 5 * time.Second
	headerRows     = 1
	footerRows     = 2
	mousePointerID = 1
)

// ReaderView displays one open PDF and drives its reader session
type ReaderView struct {
	svc    reader.Services
	config *config.Config

	book    *models.Book
	r       *reader.Reader
	openGen int
	loading bool
	spinner spinner.Model
	err     error

	// Mirrors of the reader's events
	state    models.ViewportState
	session  session.State
	annots   []models.Annotation
	overlays []models.TranslationOverlay
	annErr   error

	// Page layout
	rows      []pageRow
	cursor    int
	offset    int
	selecting bool
	pressLine int
	dragging  bool

	// Popup editor for translations and notes
	editor    textarea.Model
	editorKey string

	// Annotations panel
	panel        bool
	panelItems   []models.Annotation
	panelCursor  int
	panelErr     error
	panelLoading bool

	notice     *session.Notice
	noticeSeq  int
	hideChrome bool

	width  int
	height int
}

// NewReaderView creates a new reader view
func NewReaderView(svc reader.Services, cfg *config.Config) *ReaderView {
	editor := textarea.New()
	editor.ShowLineNumbers = false
	editor.CharLimit = 2000
	editor.SetHeight(3)

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	return &ReaderView{
		svc:       svc,
		config:    cfg,
		spinner:   spin,
		editor:    editor,
		pressLine: -1,
		session:   session.Idle{},
		width:     80,
		height:    24,
	}
}

// SetBook selects the book to open on Init
func (v *ReaderView) SetBook(book models.Book) {
	v.Close()
	v.book = &book
	v.err = nil
	v.state = models.ViewportState{CurrentPage: book.ResumePage()}
	v.session = session.Idle{}
	v.annots, v.overlays, v.annErr = nil, nil, nil
	v.rows = nil
	v.cursor, v.offset = 0, 0
	v.selecting, v.dragging, v.pressLine = false, false, -1
	v.panel = false
	v.notice = nil
	v.hideChrome = false
}

// Close closes the open book, flushing its reading position
func (v *ReaderView) Close() {
	v.openGen++
	if v.r == nil {
		return
	}
	r := v.r
	v.r = nil
	if v.config != nil {
		if err := v.config.AddRecentlyRead(r.Book().ID, r.Book().Title, v.state.CurrentPage); err != nil {
			logging.For("ui").Warn("failed to save recently read", "err", err)
		}
	}
	if err := r.Close(); err != nil {
		logging.For("ui").Warn("failed to close document", "book", r.Book().ID, "err", err)
	}
}

// Message types
type readerOpenedMsg struct {
	gen int
	r   *reader.Reader
	err error
}

type readerEventMsg struct {
	r  *reader.Reader
	ev reader.Event
}

type panelLoadedMsg struct {
	r     *reader.Reader
	items []models.Annotation
	err   error
}

type noticeExpiredMsg struct {
	seq int
}

// Init implements View
func (v *ReaderView) Init() tea.Cmd {
	if v.book == nil || v.r != nil {
		return nil
	}
	v.loading = true
	v.openGen++
	gen, book, svc := v.openGen, *v.book, v.svc
	return tea.Batch(v.spinner.Tick, func() tea.Msg {
		r, err := reader.Open(context.Background(), svc, book, "")
		return readerOpenedMsg{gen: gen, r: r, err: err}
	})
}

// waitForEvent delivers the reader's next event as a message
func waitForEvent(r *reader.Reader) tea.Cmd {
	return func() tea.Msg {
		ev, ok := r.Next(context.Background())
		if !ok {
			return nil
		}
		return readerEventMsg{r: r, ev: ev}
	}
}

// Capturing implements Capturer
func (v *ReaderView) Capturing() bool {
	if v.selecting || v.panel {
		return true
	}
	_, idle := v.session.(session.Idle)
	return !idle
}

// Update implements View
func (v *ReaderView) Update(msg tea.Msg) (View, tea.Cmd) {
	switch msg := msg.(type) {
	case readerOpenedMsg:
		if msg.gen != v.openGen {
			if msg.r != nil {
				msg.r.Close()
			}
			return v, nil
		}
		v.loading = false
		if msg.err != nil {
			v.err = msg.err
			return v, nil
		}
		v.r = msg.r
		v.relayout()
		return v, waitForEvent(v.r)

	case readerEventMsg:
		if msg.r != v.r || v.r == nil {
			return v, nil
		}
		cmd := v.handleEvent(msg.ev)
		return v, tea.Batch(cmd, waitForEvent(v.r))

	case panelLoadedMsg:
		if msg.r == v.r {
			v.panelLoading = false
			v.panelItems, v.panelErr = msg.items, msg.err
			v.panelCursor = min(v.panelCursor, max(0, len(v.panelItems)-1))
		}
		return v, nil

	case spinner.TickMsg:
		if !v.loading {
			return v, nil
		}
		var cmd tea.Cmd
		v.spinner, cmd = v.spinner.Update(msg)
		return v, cmd

	case noticeExpiredMsg:
		if msg.seq == v.noticeSeq {
			v.notice = nil
			v.relayout()
		}
		return v, nil

	case tea.BlurMsg:
		if v.r != nil {
			v.r.Blur()
		}
		return v, nil

	case tea.MouseMsg:
		return v, v.handleMouse(msg)

	case tea.KeyMsg:
		return v.handleKey(msg)
	}

	return v, nil
}

func (v *ReaderView) handleEvent(ev reader.Event) tea.Cmd {
	switch ev := ev.(type) {
	case reader.ViewportChanged:
		if ev.State.CurrentPage != v.state.CurrentPage {
			v.cursor, v.offset = 0, 0
			v.selecting = false
			v.annots, v.overlays = nil, nil
		}
		v.state = ev.State
		v.relayout()

	case reader.SessionChanged:
		v.session = ev.State
		v.syncEditor()
		if _, idle := ev.State.(session.Idle); idle {
			v.selecting = false
			if _, _, _, ok := v.r.Document().SelectedRange(); ok {
				v.r.Document().Selection().Clear()
			}
		}
		v.relayout()

	case reader.NoticeRaised:
		n := ev.Notice
		v.notice = &n
		v.noticeSeq++
		seq := v.noticeSeq
		v.relayout()
		return tea.Tick(noticeDuration, func(time.Time) tea.Msg { return noticeExpiredMsg{seq: seq} })

	case reader.AnnotationsChanged:
		if ev.Page != v.state.CurrentPage {
			return nil
		}
		v.annots, v.overlays, v.annErr = ev.Annotations, ev.Overlays, ev.Err
		if v.panel {
			return v.loadPanel()
		}

	case reader.ChromeToggled:
		v.hideChrome = !v.hideChrome
		v.relayout()
	}
	return nil
}

// syncEditor fills the popup editor when a new editing state starts
func (v *ReaderView) syncEditor() {
	var key, value, placeholder string
	switch s := v.session.(type) {
	case session.TranslationInput:
		key = fmt.Sprintf("translation:%d:%s", s.Page, s.OriginalText)
		value, placeholder = s.TranslatedText, "Type the translation..."
	case session.AnnotationNote:
		key = fmt.Sprintf("note:%d", s.Annotation.ID)
		value, placeholder = s.Annotation.NoteText(), "Add a note..."
	default:
		v.editorKey = ""
		v.editor.Blur()
		return
	}
	if key == v.editorKey {
		return
	}
	v.editorKey = key
	v.editor.Placeholder = placeholder
	v.editor.SetValue(value)
	v.editor.Focus()
}

func (v *ReaderView) handleKey(msg tea.KeyMsg) (View, tea.Cmd) {
	if v.r == nil {
		switch msg.String() {
		case "esc", "q":
			return v, SwitchTo(ViewLibrary)
		}
		return v, nil
	}

	if v.panel {
		return v, v.handlePanelKey(msg)
	}

	switch s := v.session.(type) {
	case session.PendingSelection:
		return v, v.handleSelectionKey(msg)
	case session.TranslationInput:
		return v, v.handleEditorKey(msg, func(text string) tea.Cmd {
			return v.run(func(ctx context.Context, sess *session.Session) error {
				return sess.SaveTranslation(ctx, text)
			})
		}, nil)
	case session.ActiveTranslation:
		switch msg.String() {
		case "esc", "enter", "o", "q":
			v.r.Session().Dismiss()
		}
		return v, nil
	case session.AnnotationNote:
		if s.Saving || s.Deleting {
			return v, nil
		}
		return v, v.handleEditorKey(msg, func(text string) tea.Cmd {
			return v.run(func(ctx context.Context, sess *session.Session) error {
				return sess.SaveNote(ctx, text)
			})
		}, func() tea.Cmd {
			return v.run(func(ctx context.Context, sess *session.Session) error {
				return sess.DeleteAnnotation(ctx)
			})
		})
	}

	bridge := v.r.Viewport()
	switch msg.String() {
	case "j", "down":
		v.moveCursor(1)
	case "k", "up":
		v.moveCursor(-1)
	case "ctrl+d", "pgdown":
		v.scroll(v.bodyRows() / 2)
	case "ctrl+u", "pgup":
		v.scroll(-v.bodyRows() / 2)
	case "l", "right", "n", " ":
		bridge.GoToPage(v.state.CurrentPage + 1)
	case "h", "left", "p":
		bridge.GoToPage(v.state.CurrentPage - 1)
	case "g", "home":
		bridge.GoToPage(1)
	case "G", "end":
		bridge.GoToPage(v.state.TotalPages)
	case "+", "=":
		bridge.ZoomIn()
	case "-", "_":
		bridge.ZoomOut()
	case "0":
		bridge.ResetZoom()
	case "v":
		if v.selecting {
			v.finishSelection()
		} else if len(v.lines()) > 0 {
			v.selecting = true
			v.r.BeginSelection(v.cursor)
		}
	case "enter":
		if v.selecting {
			v.finishSelection()
		} else {
			v.clickLine(v.cursor)
		}
	case "o":
		if o, ok := v.overlayAt(v.cursor); ok {
			v.r.OpenTranslation(o)
		}
	case "N":
		v.panel = true
		v.panelCursor = 0
		return v, v.loadPanel()
	case "esc", "q":
		if v.selecting {
			v.selecting = false
			v.r.ClearSelection()
			return v, nil
		}
		return v, SwitchTo(ViewLibrary)
	}
	return v, nil
}

func (v *ReaderView) handleSelectionKey(msg tea.KeyMsg) tea.Cmd {
	switch k := msg.String(); k {
	case "1", "2", "3", "4", "5":
		color := styles.HighlightColors[int(k[0]-'1')]
		return v.run(func(ctx context.Context, sess *session.Session) error {
			return sess.CreateHighlight(ctx, color)
		})
	case "t":
		return v.run(func(ctx context.Context, sess *session.Session) error {
			sess.StartTranslation(ctx)
			return nil
		})
	case "y":
		if err := v.r.Session().CopySelection(); err != nil {
			logging.For("ui").Debug("copy failed", "err", err)
		}
	case "esc", "q":
		v.r.ClearSelection()
	}
	return nil
}

// handleEditorKey routes keys to the popup editor. onDelete may be nil.
func (v *ReaderView) handleEditorKey(msg tea.KeyMsg, onSave func(string) tea.Cmd, onDelete func() tea.Cmd) tea.Cmd {
	switch msg.String() {
	case "esc":
		v.r.Session().Dismiss()
		return nil
	case "ctrl+s":
		return onSave(v.editor.Value())
	case "ctrl+x":
		if onDelete != nil {
			return onDelete()
		}
		return nil
	}
	var cmd tea.Cmd
	v.editor, cmd = v.editor.Update(msg)
	return cmd
}

func (v *ReaderView) handlePanelKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc", "q", "N":
		v.panel = false
	case "j", "down":
		if v.panelCursor < len(v.panelItems)-1 {
			v.panelCursor++
		}
	case "k", "up":
		if v.panelCursor > 0 {
			v.panelCursor--
		}
	case "enter":
		if v.panelCursor < len(v.panelItems) {
			v.r.Viewport().GoToPage(v.panelItems[v.panelCursor].Page)
			v.panel = false
		}
	case "r":
		return v.loadPanel()
	}
	return nil
}

// run executes a blocking session operation off the UI goroutine. Its
// outcome arrives as session events and notices.
func (v *ReaderView) run(op func(context.Context, *session.Session) error) tea.Cmd {
	sess := v.r.Session()
	return func() tea.Msg {
		if err := op(context.Background(), sess); err != nil {
			logging.For("ui").Debug("session operation failed", "err", err)
		}
		return nil
	}
}

func (v *ReaderView) loadPanel() tea.Cmd {
	r := v.r
	v.panelLoading = true
	return func() tea.Msg {
		items, err := r.BookAnnotations(context.Background())
		return panelLoadedMsg{r: r, items: items, err: err}
	}
}

func (v *ReaderView) handleMouse(msg tea.MouseMsg) tea.Cmd {
	if v.r == nil || v.panel {
		return nil
	}
	switch msg.Button {
	case tea.MouseButtonWheelDown:
		v.scroll(3)
		return nil
	case tea.MouseButtonWheelUp:
		v.scroll(-3)
		return nil
	}
	if _, idle := v.session.(session.Idle); !idle && !v.dragging {
		return nil
	}

	ev := gesture.PointerEvent{ID: mousePointerID, Type: gesture.PointerMouse, X: float64(msg.X), Y: float64(msg.Y)}
	line, onPage := v.lineAtRow(msg.Y)
	gestures := v.r.Gestures()

	switch msg.Action {
	case tea.MouseActionPress:
		if msg.Button != tea.MouseButtonLeft {
			return nil
		}
		gestures.PointerDown(ev)
		v.pressLine, v.dragging = -1, false
		if onPage {
			v.pressLine = line
			v.cursor = line
		}

	case tea.MouseActionMotion:
		gestures.PointerMove(ev)
		if v.pressLine < 0 || !onPage {
			return nil
		}
		if !v.dragging && line != v.pressLine {
			v.dragging, v.selecting = true, true
			v.r.BeginSelection(v.pressLine)
		}
		if v.dragging {
			v.cursor = line
			v.r.ExtendSelection(line)
		}

	case tea.MouseActionRelease:
		gestures.PointerUp(ev)
		pressed := v.pressLine
		v.pressLine = -1
		if v.dragging {
			v.dragging = false
			v.finishSelection()
			return nil
		}
		if pressed >= 0 && onPage && line == pressed {
			v.clickLine(line)
		}
	}
	return nil
}

func (v *ReaderView) finishSelection() {
	v.selecting = false
	v.r.EndSelection()
}

// clickLine activates the highlight under a line, if any
func (v *ReaderView) clickLine(line int) {
	lines := v.lines()
	if line < 0 || line >= len(lines) {
		return
	}
	pageIndex := v.state.CurrentPage - 1
	size, ok := v.r.Document().PageSize(pageIndex)
	box, bok := v.r.PageBox(pageIndex)
	if !ok || !bok {
		return
	}
	v.r.Click(lineHostPoint(lines[line], size, box))
}

func (v *ReaderView) overlayAt(line int) (models.TranslationOverlay, bool) {
	size, _ := v.r.Document().PageSize(v.state.CurrentPage - 1)
	o, ok := lineOverlays(v.lines(), v.overlays, size)[line]
	return o, ok
}

func (v *ReaderView) lines() []pdfengine.Line {
	if v.r == nil {
		return nil
	}
	return v.r.Document().Lines(v.state.CurrentPage - 1)
}

// lineAtRow maps a terminal row to a page line
func (v *ReaderView) lineAtRow(y int) (int, bool) {
	idx := y - v.bodyTop() + v.offset
	if y < v.bodyTop() || y >= v.bodyTop()+v.bodyRows() || idx < 0 || idx >= len(v.rows) {
		return 0, false
	}
	return v.rows[idx].line, true
}

func (v *ReaderView) moveCursor(delta int) {
	n := len(v.lines())
	if n == 0 {
		return
	}
	v.cursor = max(0, min(v.cursor+delta, n-1))
	if v.selecting {
		v.r.ExtendSelection(v.cursor)
	}
	v.followCursor()
}

func (v *ReaderView) scroll(delta int) {
	v.offset = max(0, min(v.offset+delta, len(v.rows)-v.bodyRows()))
	v.updatePageBox()
}

// followCursor scrolls so the cursor line is visible
func (v *ReaderView) followCursor() {
	row := firstRow(v.rows, v.cursor)
	if row < 0 {
		return
	}
	if row < v.offset {
		v.offset = row
	}
	if row >= v.offset+v.bodyRows() {
		v.offset = row - v.bodyRows() + 1
	}
	v.updatePageBox()
}

// relayout rewraps the page and publishes the new page box
func (v *ReaderView) relayout() {
	if v.r == nil {
		return
	}
	v.rows = layoutPage(v.lines(), v.measure())
	v.offset = max(0, min(v.offset, len(v.rows)-v.bodyRows()))
	v.followCursor()
}

// updatePageBox tells the reader where the page is drawn, in cells
func (v *ReaderView) updatePageBox() {
	if v.r == nil {
		return
	}
	v.r.SetPageBox(geometry.Rect{
		X:      float64(v.leftMargin()),
		Y:      float64(v.bodyTop() - v.offset),
		Width:  float64(v.measure()),
		Height: float64(max(1, len(v.rows))),
	})
}

func (v *ReaderView) measure() int {
	return measure(v.width-2, v.state.ZoomLevel)
}

func (v *ReaderView) leftMargin() int {
	return max(0, (v.width-v.measure())/2)
}

func (v *ReaderView) bodyTop() int {
	if v.hideChrome {
		return 0
	}
	return headerRows
}

func (v *ReaderView) bodyRows() int {
	rows := v.height - v.bodyTop() - lipgloss.Height(v.renderPopup()) - v.noticeRows()
	if !v.hideChrome {
		rows -= footerRows
	}
	return max(1, rows)
}

func (v *ReaderView) noticeRows() int {
	if v.notice == nil {
		return 0
	}
	return 1
}

// View implements View
func (v *ReaderView) View() string {
	if v.book == nil {
		return styles.ErrorStyle.Render("No book selected")
	}

	var b strings.Builder
	if !v.hideChrome {
		b.WriteString(v.renderHeader() + "\n")
	}

	switch {
	case v.loading:
		b.WriteString(v.placeholder(v.spinner.View() + styles.MutedText.Render(" Opening "+v.book.Title+"...")))
		return b.String()
	case v.err != nil:
		b.WriteString(v.placeholder(styles.ErrorStyle.Render("Error: " + v.err.Error())))
		return b.String()
	case v.r == nil:
		return b.String()
	}

	if v.panel {
		b.WriteString(v.renderPanel())
	} else {
		b.WriteString(v.renderBody())
	}

	if popup := v.renderPopup(); popup != "" {
		b.WriteString(popup + "\n")
	}
	if v.notice != nil {
		b.WriteString(v.renderNotice() + "\n")
	}
	if !v.hideChrome {
		b.WriteString(v.renderFooter())
	}
	return b.String()
}

// SetSize implements View
func (v *ReaderView) SetSize(width, height int) {
	v.width = width
	v.height = height
	v.editor.SetWidth(min(70, max(20, width-8)))
	v.relayout()
}

func (v *ReaderView) placeholder(content string) string {
	return lipgloss.Place(v.width, v.height-headerRows-footerRows, lipgloss.Center, lipgloss.Center, content)
}

func (v *ReaderView) renderHeader() string {
	title := styles.ReaderHeader.Render(" " + styles.TruncateText(v.book.Title, max(10, v.width/3)) + " ")

	total := max(1, v.state.TotalPages)
	pageInfo := styles.Help.Render(fmt.Sprintf(" Page %d/%d ", v.state.CurrentPage, total))
	zoom := styles.MutedText.Render(fmt.Sprintf(" %.0f%% ", v.state.ZoomLevel*100))

	notes := ""
	if n := len(v.annots); n > 0 {
		notes = styles.SecondaryText.Render(fmt.Sprintf(" ✎%d", n))
	}
	if v.annErr != nil {
		notes += styles.WarningStyle.Render("!")
	}

	progress := renderProgressBar(12, float64(v.state.CurrentPage)/float64(total))

	left := title + pageInfo + zoom + notes
	gap := max(0, v.width-lipgloss.Width(left)-lipgloss.Width(progress)-1)
	return left + strings.Repeat(" ", gap) + progress
}

func (v *ReaderView) renderBody() string {
	lines := v.lines()
	rows := v.bodyRows()
	margin := strings.Repeat(" ", v.leftMargin())

	if len(lines) == 0 {
		return lipgloss.Place(v.width, rows, lipgloss.Center, lipgloss.Center,
			styles.MutedText.Render("This page has no text layer.")) + "\n"
	}

	pageIndex := v.state.CurrentPage - 1
	size, _ := v.r.Document().PageSize(pageIndex)
	colors := lineColors(lines, v.r.Document().Objects(pageIndex))
	marked := lineOverlays(lines, v.overlays, size)
	selPage, from, to, selected := v.r.Document().SelectedRange()
	selected = selected && selPage == pageIndex

	var b strings.Builder
	for i := v.offset; i < v.offset+rows; i++ {
		if i >= len(v.rows) {
			b.WriteString("\n")
			continue
		}
		row := v.rows[i]

		gutter := "  "
		if row.line == v.cursor {
			gutter = styles.ReaderCursor.Render("▸ ")
		}

		var style lipgloss.Style
		switch color, ok := colors[row.line]; {
		case selected && row.line >= from && row.line <= to:
			style = styles.ReaderSelection
		case ok:
			style = styles.Highlight(color)
		default:
			style = styles.ReaderLine
		}

		text := style.Render(row.text)
		if _, ok := marked[row.line]; ok && firstRow(v.rows, row.line) == i {
			text += styles.TranslationMarker.Render(" ◆")
		}
		b.WriteString(margin[:max(0, len(margin)-2)] + gutter + text + "\n")
	}
	return b.String()
}

func (v *ReaderView) renderPopup() string {
	var b strings.Builder
	var at models.Point

	switch s := v.session.(type) {
	case session.PendingSelection:
		at = s.Selection.PopupPosition
		b.WriteString(styles.BookTitle.Render(quote(s.Selection.Text, 60)) + "\n")
		var swatches []string
		for i, c := range styles.HighlightColors {
			swatches = append(swatches, styles.Swatch(c, fmt.Sprint(i+1)))
		}
		b.WriteString(strings.Join(swatches, " ") + "  " +
			styles.HelpKey.Render("t") + styles.Help.Render(" translate  ") +
			styles.HelpKey.Render("y") + styles.Help.Render(" copy  ") +
			styles.HelpKey.Render("esc") + styles.Help.Render(" cancel"))

	case session.TranslationInput:
		at = s.Position
		target := v.svc.TargetLanguage
		if target == "" {
			target = session.DefaultTargetLanguage
		}
		b.WriteString(styles.DialogTitle.UnsetMarginBottom().Render(
			fmt.Sprintf("Translate %s → %s", s.DetectedLanguage, target)) + "\n")
		b.WriteString(styles.MutedText.Render(wordwrap.String(quote(s.OriginalText, 240), v.editor.Width())) + "\n")
		b.WriteString(v.editor.View() + "\n")
		if s.FallbackURL != "" {
			b.WriteString(styles.MutedText.Render("Open in browser: ") + styles.SecondaryText.Render(s.FallbackURL) + "\n")
		}
		b.WriteString(styles.HelpKey.Render("ctrl+s") + styles.Help.Render(" save  ") +
			styles.HelpKey.Render("esc") + styles.Help.Render(" cancel"))

	case session.ActiveTranslation:
		at = s.Position
		b.WriteString(styles.TranslationMarker.Render("◆ ") +
			wordwrap.String(s.Overlay.Translation, min(70, max(20, v.width-10))) + "\n")
		b.WriteString(styles.HelpKey.Render("esc") + styles.Help.Render(" close"))

	case session.AnnotationNote:
		at = s.Position
		b.WriteString(styles.Highlight(s.Annotation.Color).Render(quote(s.Annotation.SelectedText, 60)) + "\n")
		b.WriteString(v.editor.View() + "\n")
		switch {
		case s.Saving:
			b.WriteString(styles.SecondaryText.Render("Saving..."))
		case s.Deleting:
			b.WriteString(styles.SecondaryText.Render("Removing highlight..."))
		default:
			b.WriteString(styles.HelpKey.Render("ctrl+s") + styles.Help.Render(" save  ") +
				styles.HelpKey.Render("ctrl+x") + styles.Help.Render(" delete  ") +
				styles.HelpKey.Render("esc") + styles.Help.Render(" close"))
		}

	default:
		return ""
	}

	popup := styles.Popup.Render(b.String())
	left := int(at.X) - lipgloss.Width(popup)/2
	left = max(0, min(left, v.width-lipgloss.Width(popup)))
	return lipgloss.NewStyle().MarginLeft(left).Render(popup)
}

func (v *ReaderView) renderPanel() string {
	rows := v.bodyRows()
	var b strings.Builder
	b.WriteString(styles.DialogTitle.UnsetMarginBottom().Render("Annotations") + "\n")

	switch {
	case v.panelLoading && len(v.panelItems) == 0:
		b.WriteString(styles.MutedText.Render("Loading..."))
	case v.panelErr != nil:
		b.WriteString(styles.ErrorStyle.Render("Error: " + v.panelErr.Error()))
	case len(v.panelItems) == 0:
		b.WriteString(styles.MutedText.Render("No highlights in this book yet"))
	}

	start := max(0, v.panelCursor-(rows-4))
	for i := start; i < len(v.panelItems) && i < start+rows-3; i++ {
		a := v.panelItems[i]
		line := fmt.Sprintf("p.%-4d %s", a.Page, styles.TruncateText(a.SelectedText, v.width-20))
		if a.NoteText() != "" {
			line += " ✎"
		}
		marker := styles.Swatch(a.Color, " ")
		if i == v.panelCursor {
			b.WriteString("\n" + marker + styles.ListItemSelected.Render(line))
		} else {
			b.WriteString("\n" + marker + styles.ListItem.Render(line))
		}
	}

	return lipgloss.NewStyle().Height(rows).MaxHeight(rows).Render(styles.Panel.Width(v.width-2).Render(b.String())) + "\n"
}

func (v *ReaderView) renderNotice() string {
	n := v.notice
	text := n.Message
	if n.URL != "" {
		text += " " + n.URL
	}
	text = styles.TruncateText(text, v.width-2)
	switch n.Level {
	case session.LevelError:
		return styles.ErrorStyle.Render(text)
	case session.LevelWarn:
		return styles.WarningStyle.Render(text)
	default:
		return styles.SuccessStyle.Render(text)
	}
}

func (v *ReaderView) renderFooter() string {
	var help []string
	if v.selecting {
		help = []string{
			styles.HelpKey.Render("j/k") + styles.Help.Render(" extend"),
			styles.HelpKey.Render("v/enter") + styles.Help.Render(" done"),
			styles.HelpKey.Render("esc") + styles.Help.Render(" cancel"),
		}
	} else {
		help = []string{
			styles.HelpKey.Render("h/l") + styles.Help.Render(" page"),
			styles.HelpKey.Render("j/k") + styles.Help.Render(" line"),
			styles.HelpKey.Render("v") + styles.Help.Render(" select"),
			styles.HelpKey.Render("enter") + styles.Help.Render(" note"),
			styles.HelpKey.Render("o") + styles.Help.Render(" translation"),
			styles.HelpKey.Render("N") + styles.Help.Render(" annotations"),
			styles.HelpKey.Render("+/-/0") + styles.Help.Render(" zoom"),
			styles.HelpKey.Render("q") + styles.Help.Render(" back"),
		}
	}
	return styles.FooterBar.Width(v.width).Render(strings.Join(help, "  "))
}

func quote(s string, width int) string {
	return "“" + styles.TruncateText(strings.Join(strings.Fields(s), " "), width) + "”"
}
