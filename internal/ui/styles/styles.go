package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"

	"github.com/justyntemme/readium-t/pkg/models"
)

// Colors of the active theme
var (
	Primary    lipgloss.Color
	Secondary  lipgloss.Color
	Success    lipgloss.Color
	Warning    lipgloss.Color
	Error      lipgloss.Color
	Muted      lipgloss.Color
	Background lipgloss.Color
	Foreground lipgloss.Color
	Border     lipgloss.Color
)

// Styles are rebuilt by ApplyTheme
var (
	TitleBar  lipgloss.Style
	StatusBar lipgloss.Style
	FooterBar lipgloss.Style

	Help          lipgloss.Style
	HelpKey       lipgloss.Style
	MutedText     lipgloss.Style
	SecondaryText lipgloss.Style

	ErrorStyle   lipgloss.Style
	WarningStyle lipgloss.Style
	SuccessStyle lipgloss.Style

	InputField        lipgloss.Style
	InputFieldFocused lipgloss.Style

	ListItem         lipgloss.Style
	ListItemSelected lipgloss.Style

	// Reader
	ReaderHeader      lipgloss.Style
	ReaderLine        lipgloss.Style
	ReaderCursor      lipgloss.Style
	ReaderSelection   lipgloss.Style
	TranslationMarker lipgloss.Style
	Panel             lipgloss.Style

	Dialog      lipgloss.Style
	DialogTitle lipgloss.Style
	Popup       lipgloss.Style

	BookTitle  lipgloss.Style
	BookAuthor lipgloss.Style

	BadgeToRead  lipgloss.Style
	BadgeReading lipgloss.Style
	BadgeRead    lipgloss.Style
)

// TruncateText cuts s to width cells, ending with an ellipsis when cut
func TruncateText(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if lipgloss.Width(s) <= width {
		return s
	}
	return truncate.StringWithTail(s, uint(width), "…")
}

// StatusBadge renders a short reading status label
func StatusBadge(status models.BookStatus) string {
	switch status {
	case models.StatusReading:
		return BadgeReading.Render("READING")
	case models.StatusRead:
		return BadgeRead.Render("READ")
	default:
		return BadgeToRead.Render("TO READ")
	}
}

// Dimensions returns a style with a fixed size
func Dimensions(width, height int) lipgloss.Style {
	return lipgloss.NewStyle().
		Width(width).
		Height(height)
}
