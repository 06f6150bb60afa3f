package views

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/justyntemme/readium-t/internal/api"
	"github.com/justyntemme/readium-t/internal/config"
	"github.com/justyntemme/readium-t/internal/ui/styles"
	"github.com/justyntemme/readium-t/pkg/models"
)

// statusFilters is the cycle order of the status filter
var statusFilters = []models.StatusFilter{
	models.StatusAll,
	models.StatusFilter(models.StatusToRead),
	models.StatusFilter(models.StatusReading),
	models.StatusFilter(models.StatusRead),
}

func filterLabel(f models.StatusFilter) string {
	switch f {
	case models.StatusFilter(models.StatusToRead):
		return "To read"
	case models.StatusFilter(models.StatusReading):
		return "Reading"
	case models.StatusFilter(models.StatusRead):
		return "Read"
	default:
		return "All"
	}
}

// LibraryView displays the book library
type LibraryView struct {
	client *api.Client
	config *config.Config

	// Books
	books  []models.Book
	cursor int
	offset int

	// State
	loading     bool
	err         error
	searchMode  bool
	searchInput textinput.Model
	filter      int
	recentMode  bool

	// Pagination, 0-based like the server
	page       int
	pageSize   int
	totalPages int
	total      int

	// Dimensions
	width  int
	height int
}

// NewLibraryView creates a new library view
func NewLibraryView(client *api.Client, cfg *config.Config) *LibraryView {
	searchInput := textinput.New()
	searchInput.Placeholder = "Search title or author..."
	searchInput.CharLimit = 100
	searchInput.Width = 40

	return &LibraryView{
		client:      client,
		config:      cfg,
		pageSize:    api.DefaultPageSize,
		searchInput: searchInput,
		width:       80,
		height:      24,
	}
}

// booksLoadedMsg is sent when a library page is loaded
type booksLoadedMsg struct {
	page *models.BookPage
	err  error
}

// recentBookMsg carries a recently read book fetched by id
type recentBookMsg struct {
	book *models.Book
	err  error
}

// Init implements View
func (v *LibraryView) Init() tea.Cmd {
	v.loading = true
	return v.loadBooks()
}

// Capturing implements Capturer
func (v *LibraryView) Capturing() bool {
	return v.searchMode
}

// Update implements View
func (v *LibraryView) Update(msg tea.Msg) (View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if v.searchMode {
			switch msg.String() {
			case "esc":
				v.searchMode = false
				v.searchInput.Blur()
				return v, nil
			case "enter":
				v.searchMode = false
				v.searchInput.Blur()
				return v, v.reload()
			default:
				var cmd tea.Cmd
				v.searchInput, cmd = v.searchInput.Update(msg)
				return v, cmd
			}
		}
		if v.recentMode {
			return v.updateRecent(msg)
		}

		switch msg.String() {
		case "j", "down":
			v.moveCursor(1)
		case "k", "up":
			v.moveCursor(-1)
		case "g", "home":
			v.cursor = 0
			v.offset = 0
		case "G", "end":
			v.cursor = max(0, len(v.books)-1)
			v.updateOffset()
		case "/":
			v.searchMode = true
			v.searchInput.Focus()
			return v, textinput.Blink
		case "x":
			if v.searchInput.Value() != "" {
				v.searchInput.SetValue("")
				return v, v.reload()
			}
		case "f":
			v.filter = (v.filter + 1) % len(statusFilters)
			return v, v.reload()
		case "enter":
			if book, ok := v.selected(); ok {
				return v, openBook(book)
			}
		case "i":
			if book, ok := v.selected(); ok {
				return v, func() tea.Msg { return ShowBookDetailsMsg{Book: book} }
			}
		case "n", "l", "right":
			if v.page+1 < v.totalPages {
				v.page++
				v.cursor, v.offset = 0, 0
				return v, v.loadBooks()
			}
		case "p", "h", "left":
			if v.page > 0 {
				v.page--
				v.cursor, v.offset = 0, 0
				return v, v.loadBooks()
			}
		case "r":
			return v, v.loadBooks()
		case "a":
			return v, SwitchTo(ViewUpload)
		case "R":
			v.recentMode = true
			v.cursor, v.offset = 0, 0
		case "T":
			name := styles.NextTheme()
			if v.config != nil {
				_ = v.config.SetTheme(name)
			}
			return v, NotifyThemeChanged(name)
		}

	case booksLoadedMsg:
		v.loading = false
		if msg.err != nil {
			v.err = msg.err
			return v, nil
		}
		v.err = nil
		v.books = msg.page.Content
		v.total = msg.page.TotalElements
		v.totalPages = msg.page.TotalPages
		if v.cursor >= len(v.books) {
			v.cursor = max(0, len(v.books)-1)
		}
		return v, nil

	case recentBookMsg:
		if msg.err != nil {
			return v, SendError(msg.err)
		}
		return v, openBook(*msg.book)

	case BookChangedMsg:
		for i := range v.books {
			if v.books[i].ID == msg.Book.ID {
				v.books[i] = msg.Book
			}
		}
	}

	return v, nil
}

func (v *LibraryView) updateRecent(msg tea.KeyMsg) (View, tea.Cmd) {
	entries := v.recent()
	switch msg.String() {
	case "esc", "R":
		v.recentMode = false
		v.cursor, v.offset = 0, 0
	case "j", "down":
		if v.cursor < len(entries)-1 {
			v.cursor++
		}
	case "k", "up":
		if v.cursor > 0 {
			v.cursor--
		}
	case "enter":
		if v.cursor < len(entries) {
			id := entries[v.cursor].BookID
			return v, func() tea.Msg {
				book, err := v.client.GetBook(context.Background(), id)
				return recentBookMsg{book: book, err: err}
			}
		}
	}
	return v, nil
}

// openBook refuses formats the reader cannot render
func openBook(book models.Book) tea.Cmd {
	if !book.IsPDF() {
		return SendError(fmt.Errorf("%s books cannot be opened in the reader", book.Format))
	}
	return func() tea.Msg { return OpenBookMsg{Book: book} }
}

// View implements View
func (v *LibraryView) View() string {
	var b strings.Builder

	b.WriteString(v.renderHeader() + "\n")

	if v.searchMode {
		b.WriteString(styles.InputFieldFocused.Render(v.searchInput.View()) + "\n")
	}

	if v.recentMode {
		b.WriteString(v.renderRecent())
		return b.String()
	}

	switch {
	case v.loading:
		b.WriteString(v.placeholder(styles.MutedText.Render("Loading books...")))
		return b.String()
	case v.err != nil:
		b.WriteString(v.placeholder(styles.ErrorStyle.Render("Error: " + v.err.Error())))
		return b.String()
	case len(v.books) == 0:
		b.WriteString(v.placeholder(styles.MutedText.Render("No books found")))
		return b.String()
	}

	visible := v.visibleLines()
	for i := v.offset; i < min(v.offset+visible, len(v.books)); i++ {
		b.WriteString(v.renderBookLine(v.books[i], i == v.cursor) + "\n")
	}

	b.WriteString("\n")
	b.WriteString(v.renderFooter())
	return b.String()
}

// SetSize implements View
func (v *LibraryView) SetSize(width, height int) {
	v.width = width
	v.height = height
	v.searchInput.Width = min(40, width-10)
}

func (v *LibraryView) placeholder(content string) string {
	return lipgloss.Place(v.width, v.height-4, lipgloss.Center, lipgloss.Center, content)
}

func (v *LibraryView) renderHeader() string {
	titleText := " Library "
	if v.recentMode {
		titleText = " Recently Read "
	}
	title := styles.TitleBar.Render(titleText)

	filterInfo := styles.Help.Render(fmt.Sprintf(" Status: %s ", filterLabel(statusFilters[v.filter])))

	searchInfo := ""
	if q := v.searchInput.Value(); q != "" {
		searchInfo = styles.SecondaryText.Render(fmt.Sprintf(" [Search: %s]", q))
	}

	pages := max(1, v.totalPages)
	pageInfo := styles.Help.Render(fmt.Sprintf(" %s books  Page %d/%d ", humanize.Comma(int64(v.total)), v.page+1, pages))

	left := title + filterInfo + searchInfo
	gap := max(0, v.width-lipgloss.Width(left)-lipgloss.Width(pageInfo))
	return left + strings.Repeat(" ", gap) + pageInfo
}

func (v *LibraryView) renderBookLine(book models.Book, selected bool) string {
	badge := styles.StatusBadge(book.Status) + " "

	progress := ""
	if book.Pages != nil && *book.Pages > 0 {
		progress = fmt.Sprintf("  p.%d/%d", book.ResumePage(), *book.Pages)
	}
	format := ""
	if !book.IsPDF() {
		format = " [" + book.Format + "]"
	}

	maxWidth := v.width - 6 - lipgloss.Width(badge)
	line := styles.TruncateText(fmt.Sprintf("%s - %s%s%s", book.Title, book.AuthorName(), format, progress), maxWidth)

	if selected {
		return styles.ListItemSelected.Width(v.width).Render("▸ " + badge + line)
	}
	if !book.IsPDF() {
		return styles.ListItem.Render("  "+badge) + styles.MutedText.Render(line)
	}
	return styles.ListItem.Render("  " + badge + line)
}

func (v *LibraryView) renderFooter() string {
	help := []string{
		styles.HelpKey.Render("j/k") + styles.Help.Render(" nav"),
		styles.HelpKey.Render("enter") + styles.Help.Render(" read"),
		styles.HelpKey.Render("i") + styles.Help.Render(" info"),
		styles.HelpKey.Render("/") + styles.Help.Render(" search"),
		styles.HelpKey.Render("f") + styles.Help.Render(" filter"),
		styles.HelpKey.Render("n/p") + styles.Help.Render(" page"),
		styles.HelpKey.Render("a") + styles.Help.Render(" upload"),
		styles.HelpKey.Render("R") + styles.Help.Render(" recent"),
		styles.HelpKey.Render("q") + styles.Help.Render(" quit"),
	}

	themeIndicator := styles.MutedText.Render(" [Theme: "+styles.CurrentTheme().Name+"] ") +
		styles.HelpKey.Render("T") + styles.Help.Render(" change")

	helpText := strings.Join(help, "  ")
	gap := max(0, v.width-lipgloss.Width(helpText)-lipgloss.Width(themeIndicator))
	return helpText + strings.Repeat(" ", gap) + themeIndicator
}

func (v *LibraryView) recent() []config.RecentlyReadEntry {
	if v.config == nil {
		return nil
	}
	return v.config.RecentlyRead
}

func (v *LibraryView) renderRecent() string {
	entries := v.recent()
	if len(entries) == 0 {
		return v.placeholder(styles.MutedText.Render("Nothing read yet"))
	}
	var b strings.Builder
	for i, e := range entries {
		line := fmt.Sprintf("%s  p.%d  %s", e.Title, e.Page, styles.MutedText.Render(humanize.Time(e.OpenedAt)))
		if i == v.cursor {
			b.WriteString(styles.ListItemSelected.Width(v.width).Render("▸ "+line) + "\n")
		} else {
			b.WriteString(styles.ListItem.Render("  "+line) + "\n")
		}
	}
	b.WriteString("\n")
	b.WriteString(styles.HelpKey.Render("enter") + styles.Help.Render(" resume  ") +
		styles.HelpKey.Render("esc") + styles.Help.Render(" back"))
	return b.String()
}

// reload restarts from the first page
func (v *LibraryView) reload() tea.Cmd {
	v.page = 0
	v.cursor, v.offset = 0, 0
	v.loading = true
	return v.loadBooks()
}

// loadBooks fetches the current page from the API
func (v *LibraryView) loadBooks() tea.Cmd {
	params := api.ListBooksParams{
		Status: statusFilters[v.filter],
		Page:   v.page,
		Size:   v.pageSize,
		Query:  v.searchInput.Value(),
	}
	return func() tea.Msg {
		page, err := v.client.ListBooks(context.Background(), params)
		return booksLoadedMsg{page: page, err: err}
	}
}

func (v *LibraryView) selected() (models.Book, bool) {
	if v.cursor < 0 || v.cursor >= len(v.books) {
		return models.Book{}, false
	}
	return v.books[v.cursor], true
}

// moveCursor moves the cursor by delta
func (v *LibraryView) moveCursor(delta int) {
	v.cursor = max(0, min(v.cursor+delta, len(v.books)-1))
	v.updateOffset()
}

// updateOffset ensures the cursor is visible
func (v *LibraryView) updateOffset() {
	visible := v.visibleLines()
	if v.cursor < v.offset {
		v.offset = v.cursor
	}
	if v.cursor >= v.offset+visible {
		v.offset = v.cursor - visible + 1
	}
}

// visibleLines returns the number of visible book lines
func (v *LibraryView) visibleLines() int {
	lines := v.height - 5
	if v.searchMode {
		lines -= 3
	}
	return max(1, lines)
}
