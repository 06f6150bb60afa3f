package views

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/justyntemme/readium-t/internal/api"
	"github.com/justyntemme/readium-t/internal/ui/styles"
	"github.com/justyntemme/readium-t/pkg/models"
)

// ocrPollInterval is how often a running OCR job is polled
const ocrPollInterval = 3 * time.Second

// BookDetailsView displays book information and its OCR state
type BookDetailsView struct {
	client *api.Client

	book *models.Book

	ocr        *models.OcrStatusResponse
	ocrErr     error
	quality    *models.OcrStatusResponse
	qualityErr error
	busy       string
	err        error

	width  int
	height int
}

// NewBookDetailsView creates a new book details view
func NewBookDetailsView(client *api.Client) *BookDetailsView {
	return &BookDetailsView{
		client: client,
		width:  80,
		height: 24,
	}
}

// SetBook sets the book to display
func (v *BookDetailsView) SetBook(book models.Book) {
	v.book = &book
	v.ocr, v.ocrErr = nil, nil
	v.quality, v.qualityErr = nil, nil
	v.busy = ""
	v.err = nil
}

type ocrStatusLoadedMsg struct {
	bookID int
	status *models.OcrStatusResponse
	err    error
}

type qualityLoadedMsg struct {
	bookID  int
	quality *models.OcrStatusResponse
	err     error
}

type statusUpdatedMsg struct {
	bookID int
	status models.BookStatus
	err    error
}

type ocrTriggeredMsg struct {
	bookID int
	err    error
}

type ocrPollMsg struct {
	bookID int
}

// Init implements View
func (v *BookDetailsView) Init() tea.Cmd {
	if v.book == nil {
		return nil
	}
	return tea.Batch(v.loadOcrStatus(), v.loadQuality())
}

// Update implements View
func (v *BookDetailsView) Update(msg tea.Msg) (View, tea.Cmd) {
	if v.book == nil {
		return v, nil
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "esc", "q", "i":
			return v, SwitchTo(ViewLibrary)
		case "enter":
			return v, openBook(*v.book)
		case "s":
			if v.busy == "" {
				v.busy = "Updating status..."
				return v, v.updateStatus(v.book.Status.Next())
			}
		case "o":
			if v.busy == "" && v.book.IsPDF() {
				v.busy = "Starting OCR..."
				return v, v.triggerOcr()
			}
		case "r":
			return v, v.Init()
		}

	case ocrStatusLoadedMsg:
		if msg.bookID != v.book.ID {
			return v, nil
		}
		v.ocr, v.ocrErr = msg.status, msg.err
		if msg.err == nil && ocrRunning(msg.status) {
			return v, v.pollOcr()
		}
		if msg.err == nil && msg.status.Status == models.OcrDone {
			return v, v.loadQuality()
		}

	case qualityLoadedMsg:
		if msg.bookID == v.book.ID {
			v.quality, v.qualityErr = msg.quality, msg.err
		}

	case statusUpdatedMsg:
		if msg.bookID != v.book.ID {
			return v, nil
		}
		v.busy = ""
		if msg.err != nil {
			v.err = msg.err
			return v, nil
		}
		v.err = nil
		v.book.Status = msg.status
		book := *v.book
		return v, func() tea.Msg { return BookChangedMsg{Book: book} }

	case ocrTriggeredMsg:
		if msg.bookID != v.book.ID {
			return v, nil
		}
		v.busy = ""
		if msg.err != nil {
			v.err = msg.err
			return v, nil
		}
		v.err = nil
		return v, v.loadOcrStatus()

	case ocrPollMsg:
		if msg.bookID == v.book.ID {
			return v, v.loadOcrStatus()
		}
	}

	return v, nil
}

// View implements View
func (v *BookDetailsView) View() string {
	if v.book == nil {
		return "No book selected"
	}

	var b strings.Builder

	b.WriteString(styles.DialogTitle.Render(v.book.Title) + "\n")

	b.WriteString(v.renderField("Author", v.book.AuthorName()))
	b.WriteString(v.renderField("Format", v.book.Format))
	if v.book.Pages != nil {
		b.WriteString(v.renderField("Pages", humanize.Comma(int64(*v.book.Pages))))
	}
	b.WriteString(v.renderField("Status", styles.StatusBadge(v.book.Status)))
	b.WriteString(v.renderField("Last page", strconv.Itoa(v.book.ResumePage())))

	b.WriteString("\n" + styles.HelpKey.Render("Text layer") + "\n")
	switch {
	case !v.book.IsPDF():
		b.WriteString(styles.MutedText.Render("  Only PDF books carry a text layer\n"))
	default:
		b.WriteString(v.renderField("OCR", v.describeOcr()))
		b.WriteString(v.renderField("Quality", v.describeQuality()))
	}

	b.WriteString("\n")
	if v.busy != "" {
		b.WriteString(styles.SecondaryText.Render(v.busy) + "\n\n")
	}
	if v.err != nil {
		b.WriteString(styles.ErrorStyle.Render("Error: "+v.err.Error()) + "\n\n")
	}

	b.WriteString(v.renderFooter())

	return lipgloss.Place(
		v.width,
		v.height,
		lipgloss.Center,
		lipgloss.Center,
		styles.Dialog.Width(min(64, v.width-4)).Render(b.String()),
	)
}

func (v *BookDetailsView) describeOcr() string {
	switch {
	case v.ocrErr != nil:
		return styles.MutedText.Render("unavailable")
	case v.ocr == nil:
		return styles.MutedText.Render("loading...")
	}
	text := strings.ToLower(string(v.ocr.Status))
	if when := since(v.ocr.UpdatedAt); when != "" {
		text += ", updated " + when
	}
	if v.ocr.Status == models.OcrFailed {
		return styles.ErrorStyle.UnsetPadding().Render(text)
	}
	return text
}

func (v *BookDetailsView) describeQuality() string {
	switch {
	case v.qualityErr != nil:
		return styles.MutedText.Render("unavailable")
	case v.quality == nil:
		return styles.MutedText.Render("loading...")
	case v.quality.Score == nil:
		return strings.ToLower(string(v.quality.Status))
	}
	return fmt.Sprintf("%.0f%%", *v.quality.Score*100)
}

// since renders a server timestamp as a relative time
func since(ts *string) string {
	if ts == nil || *ts == "" {
		return ""
	}
	t, err := time.Parse(time.RFC3339, *ts)
	if err != nil {
		return *ts
	}
	return humanize.Time(t)
}

func ocrRunning(s *models.OcrStatusResponse) bool {
	return s != nil && (s.Status == models.OcrPending || s.Status == models.OcrRunning)
}

// renderField renders a label-value pair
func (v *BookDetailsView) renderField(label, value string) string {
	labelStyle := lipgloss.NewStyle().
		Foreground(styles.Muted).
		Width(12)
	return labelStyle.Render(label+":") + " " + value + "\n"
}

func (v *BookDetailsView) renderFooter() string {
	help := []string{
		styles.HelpKey.Render("enter") + styles.Help.Render(" read"),
		styles.HelpKey.Render("s") + styles.Help.Render(" status"),
	}
	if v.book.IsPDF() {
		help = append(help, styles.HelpKey.Render("o")+styles.Help.Render(" ocr"))
	}
	help = append(help,
		styles.HelpKey.Render("r")+styles.Help.Render(" refresh"),
		styles.HelpKey.Render("esc")+styles.Help.Render(" back"),
	)
	return strings.Join(help, "  ")
}

// SetSize implements View
func (v *BookDetailsView) SetSize(width, height int) {
	v.width = width
	v.height = height
}

func (v *BookDetailsView) loadOcrStatus() tea.Cmd {
	id := v.book.ID
	return func() tea.Msg {
		status, err := v.client.GetOcrStatus(context.Background(), id)
		return ocrStatusLoadedMsg{bookID: id, status: status, err: err}
	}
}

func (v *BookDetailsView) loadQuality() tea.Cmd {
	id := v.book.ID
	return func() tea.Msg {
		q, err := v.client.GetTextLayerQuality(context.Background(), id)
		return qualityLoadedMsg{bookID: id, quality: q, err: err}
	}
}

func (v *BookDetailsView) updateStatus(status models.BookStatus) tea.Cmd {
	id := v.book.ID
	return func() tea.Msg {
		err := v.client.UpdateBookStatus(context.Background(), id, status)
		return statusUpdatedMsg{bookID: id, status: status, err: err}
	}
}

func (v *BookDetailsView) triggerOcr() tea.Cmd {
	id := v.book.ID
	return func() tea.Msg {
		return ocrTriggeredMsg{bookID: id, err: v.client.TriggerOcr(context.Background(), id)}
	}
}

func (v *BookDetailsView) pollOcr() tea.Cmd {
	id := v.book.ID
	return tea.Tick(ocrPollInterval, func(time.Time) tea.Msg { return ocrPollMsg{bookID: id} })
}
