package views

import (
	"math"
	"strings"

	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/reflow/wrap"

	"github.com/justyntemme/readium-t/internal/reader/engine"
	"github.com/justyntemme/readium-t/internal/reader/engine/pdfengine"
	"github.com/justyntemme/readium-t/internal/reader/geometry"
	"github.com/justyntemme/readium-t/pkg/models"
)

const (
	minMeasure = 20
	// baseMeasure is the share of the terminal width used at zoom 1
	baseMeasure = 0.8
)

// pageRow is one terminal row of a rendered page
type pageRow struct {
	line int
	text string
}

// layoutPage wraps every text line of a page to width
func layoutPage(lines []pdfengine.Line, width int) []pageRow {
	var rows []pageRow
	for i, l := range lines {
		wrapped := wrap.String(wordwrap.String(l.Text, width), width)
		for _, part := range strings.Split(wrapped, "\n") {
			rows = append(rows, pageRow{line: i, text: strings.TrimRight(part, " ")})
		}
	}
	return rows
}

// firstRow returns the index of the first row of a line, or -1
func firstRow(rows []pageRow, line int) int {
	for i, r := range rows {
		if r.line == line {
			return i
		}
	}
	return -1
}

// measure returns the wrap width for a zoom level
func measure(width int, zoom float64) int {
	if zoom <= 0 {
		zoom = 1
	}
	w := int(math.Round(float64(width) * baseMeasure * zoom))
	return max(min(minMeasure, width), min(w, width))
}

// lineColors maps each line to the color of the topmost highlight covering it
func lineColors(lines []pdfengine.Line, objs []engine.HighlightObject) map[int]string {
	colors := make(map[int]string)
	for i, l := range lines {
		for j := len(objs) - 1; j >= 0; j-- {
			if covers(objs[j].Segments, l.Rect) {
				colors[i] = objs[j].Color
				break
			}
		}
	}
	return colors
}

func covers(segments []geometry.Rect, r geometry.Rect) bool {
	for _, s := range segments {
		if s.Intersects(r) {
			return true
		}
	}
	return false
}

// lineOverlays maps lines to the first translation overlay drawn over them
func lineOverlays(lines []pdfengine.Line, overlays []models.TranslationOverlay, size geometry.Size) map[int]models.TranslationOverlay {
	out := make(map[int]models.TranslationOverlay)
	if !size.Valid() {
		return out
	}
	for _, o := range overlays {
		rect := geometry.ToEngineRect(o.Rect, size)
		for i, l := range lines {
			if _, taken := out[i]; !taken && l.Rect.Intersects(rect) {
				out[i] = o
			}
		}
	}
	return out
}

// lineHostPoint maps the center of a line into a page box given in host units
func lineHostPoint(line pdfengine.Line, size geometry.Size, box geometry.Rect) models.Point {
	if !size.Valid() {
		return models.Point{}
	}
	cx := line.Rect.X + line.Rect.Width/2
	cy := line.Rect.Y + line.Rect.Height/2
	return models.Point{
		X: box.X + cx*box.Width/size.Width,
		Y: box.Y + cy*box.Height/size.Height,
	}
}

// renderProgressBar renders a bar of width cells for progress in [0,1]
func renderProgressBar(width int, progress float64) string {
	width = max(3, width)
	progress = math.Max(0, math.Min(1, progress))

	const (
		empty    = "░"
		filled   = "█"
		partials = "▏▎▍▌▋▊▉"
	)

	exact := progress * float64(width)
	full := int(exact)

	var bar strings.Builder
	bar.WriteString(strings.Repeat(filled, full))
	if full < width {
		if eighth := int((exact - float64(full)) * 8); eighth > 0 {
			bar.WriteRune([]rune(partials)[min(eighth, 7)-1])
			full++
		}
	}
	bar.WriteString(strings.Repeat(empty, width-full))
	return bar.String()
}
