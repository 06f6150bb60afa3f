package styles

import (
	"github.com/charmbracelet/lipgloss"
	colorful "github.com/lucasb-eyer/go-colorful"
)

// HighlightColors is the palette offered for new highlights
var HighlightColors = []string{"#FFF59D", "#A5D6A7", "#90CAF9", "#F48FB1", "#FFCC80"}

// highlightStrength is how far a highlight fill moves from the page
// background toward the annotation color
const highlightStrength = 0.58

const (
	darkText  = lipgloss.Color("#111827")
	lightText = lipgloss.Color("#F9FAFB")
)

var highlights = map[string]lipgloss.Style{}

func resetHighlights() {
	highlights = map[string]lipgloss.Style{}
}

// Highlight returns the style for text under an annotation of the given
// color. Unparseable colors fall back to the theme's warning color.
func Highlight(hex string) lipgloss.Style {
	if s, ok := highlights[hex]; ok {
		return s
	}
	fill := HighlightFill(hex)
	s := lipgloss.NewStyle().
		Background(lipgloss.Color(fill.Hex())).
		Foreground(textOn(fill))
	highlights[hex] = s
	return s
}

// HighlightFill blends the annotation color over the page background
func HighlightFill(hex string) colorful.Color {
	c, err := colorful.Hex(hex)
	if err != nil {
		c, _ = colorful.Hex(string(Warning))
	}
	bg, err := colorful.Hex(string(Background))
	if err != nil {
		return c
	}
	return bg.BlendLab(c, highlightStrength).Clamped()
}

// Swatch renders a palette entry
func Swatch(hex, label string) string {
	c, err := colorful.Hex(hex)
	if err != nil {
		return label
	}
	return lipgloss.NewStyle().
		Background(lipgloss.Color(c.Hex())).
		Foreground(textOn(c)).
		Padding(0, 1).
		Render(label)
}

func contrastText(bg lipgloss.Color) lipgloss.Color {
	c, err := colorful.Hex(string(bg))
	if err != nil {
		return lightText
	}
	return textOn(c)
}

func textOn(c colorful.Color) lipgloss.Color {
	if l, _, _ := c.Lab(); l > 0.6 {
		return darkText
	}
	return lightText
}
