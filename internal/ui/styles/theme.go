package styles

import "github.com/charmbracelet/lipgloss"

// Theme is a color scheme for the application
type Theme struct {
	Name string

	Primary    lipgloss.Color
	Secondary  lipgloss.Color
	Background lipgloss.Color
	Foreground lipgloss.Color

	Success lipgloss.Color
	Warning lipgloss.Color
	Error   lipgloss.Color
	Muted   lipgloss.Color
	Border  lipgloss.Color

	// Selection is the background of the line selection in the reader
	Selection lipgloss.Color
}

var (
	DarkTheme = Theme{
		Name:       "dark",
		Primary:    lipgloss.Color("#7C3AED"),
		Secondary:  lipgloss.Color("#06B6D4"),
		Background: lipgloss.Color("#1F2937"),
		Foreground: lipgloss.Color("#F9FAFB"),
		Success:    lipgloss.Color("#10B981"),
		Warning:    lipgloss.Color("#F59E0B"),
		Error:      lipgloss.Color("#EF4444"),
		Muted:      lipgloss.Color("#6B7280"),
		Border:     lipgloss.Color("#374151"),
		Selection:  lipgloss.Color("#4C1D95"),
	}

	LightTheme = Theme{
		Name:       "light",
		Primary:    lipgloss.Color("#7C3AED"),
		Secondary:  lipgloss.Color("#0891B2"),
		Background: lipgloss.Color("#FFFFFF"),
		Foreground: lipgloss.Color("#1F2937"),
		Success:    lipgloss.Color("#059669"),
		Warning:    lipgloss.Color("#D97706"),
		Error:      lipgloss.Color("#DC2626"),
		Muted:      lipgloss.Color("#9CA3AF"),
		Border:     lipgloss.Color("#E5E7EB"),
		Selection:  lipgloss.Color("#DDD6FE"),
	}

	NordTheme = Theme{
		Name:       "nord",
		Primary:    lipgloss.Color("#88C0D0"),
		Secondary:  lipgloss.Color("#81A1C1"),
		Background: lipgloss.Color("#2E3440"),
		Foreground: lipgloss.Color("#ECEFF4"),
		Success:    lipgloss.Color("#A3BE8C"),
		Warning:    lipgloss.Color("#EBCB8B"),
		Error:      lipgloss.Color("#BF616A"),
		Muted:      lipgloss.Color("#4C566A"),
		Border:     lipgloss.Color("#3B4252"),
		Selection:  lipgloss.Color("#434C5E"),
	}

	BuiltinThemes = []Theme{DarkTheme, LightTheme, NordTheme}

	currentTheme = DarkTheme
)

// GetTheme returns a theme by name, or the dark theme
func GetTheme(name string) Theme {
	for _, t := range BuiltinThemes {
		if t.Name == name {
			return t
		}
	}
	return DarkTheme
}

// CurrentTheme returns the active theme
func CurrentTheme() Theme {
	return currentTheme
}

// SetCurrentTheme activates a theme by name
func SetCurrentTheme(name string) {
	currentTheme = GetTheme(name)
	ApplyTheme(currentTheme)
}

// NextTheme cycles to the next theme and returns its name
func NextTheme() string {
	for i, t := range BuiltinThemes {
		if t.Name == currentTheme.Name {
			next := BuiltinThemes[(i+1)%len(BuiltinThemes)]
			SetCurrentTheme(next.Name)
			return next.Name
		}
	}
	return currentTheme.Name
}

// ApplyTheme rebuilds every global style from the theme's colors
func ApplyTheme(theme Theme) {
	Primary = theme.Primary
	Secondary = theme.Secondary
	Success = theme.Success
	Warning = theme.Warning
	Error = theme.Error
	Muted = theme.Muted
	Background = theme.Background
	Foreground = theme.Foreground
	Border = theme.Border

	TitleBar = lipgloss.NewStyle().
		Foreground(theme.Foreground).
		Background(theme.Primary).
		Padding(0, 1).
		Bold(true)

	StatusBar = lipgloss.NewStyle().
		Foreground(theme.Muted).
		Padding(0, 1)

	FooterBar = lipgloss.NewStyle().
		Foreground(theme.Muted).
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(true).
		BorderForeground(theme.Border)

	Help = lipgloss.NewStyle().Foreground(theme.Muted)
	HelpKey = lipgloss.NewStyle().Foreground(theme.Secondary).Bold(true)
	MutedText = lipgloss.NewStyle().Foreground(theme.Muted)
	SecondaryText = lipgloss.NewStyle().Foreground(theme.Secondary)

	ErrorStyle = lipgloss.NewStyle().Foreground(theme.Error).Bold(true).Padding(0, 1)
	WarningStyle = lipgloss.NewStyle().Foreground(theme.Warning).Bold(true).Padding(0, 1)
	SuccessStyle = lipgloss.NewStyle().Foreground(theme.Success).Bold(true).Padding(0, 1)

	InputField = lipgloss.NewStyle().
		Foreground(theme.Foreground).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.Border).
		Padding(0, 1)
	InputFieldFocused = InputField.BorderForeground(theme.Primary)

	ListItem = lipgloss.NewStyle().
		Foreground(theme.Foreground).
		Padding(0, 2)
	ListItemSelected = lipgloss.NewStyle().
		Foreground(contrastText(theme.Primary)).
		Background(theme.Primary).
		Padding(0, 2).
		Bold(true)

	ReaderHeader = TitleBar
	ReaderLine = lipgloss.NewStyle().Foreground(theme.Foreground)
	ReaderCursor = lipgloss.NewStyle().Foreground(theme.Secondary).Bold(true)
	ReaderSelection = lipgloss.NewStyle().
		Foreground(contrastText(theme.Selection)).
		Background(theme.Selection)
	TranslationMarker = lipgloss.NewStyle().Foreground(theme.Warning).Bold(true)
	Panel = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.Border).
		Padding(0, 1)

	Dialog = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.Primary).
		Padding(1, 2)
	DialogTitle = lipgloss.NewStyle().
		Foreground(theme.Primary).
		Bold(true).
		MarginBottom(1)
	Popup = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.Secondary).
		Padding(0, 1)

	BookTitle = lipgloss.NewStyle().Foreground(theme.Foreground).Bold(true)
	BookAuthor = lipgloss.NewStyle().Foreground(theme.Secondary)

	BadgeToRead = badge(theme.Muted)
	BadgeReading = badge(theme.Secondary)
	BadgeRead = badge(theme.Success)

	resetHighlights()
}

func badge(bg lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(contrastText(bg)).
		Background(bg).
		Padding(0, 1)
}

func init() {
	ApplyTheme(currentTheme)
}
