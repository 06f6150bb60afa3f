package pdfengine

import (
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/justyntemme/readium-t/internal/reader/geometry"
)

const (
	defaultFontSize = 10
	ascentRatio     = 0.8
	wordGapRatio    = 0.2
	maxParentDepth  = 16
)

// LetterSize is used when a page declares no usable media box
var LetterSize = geometry.Size{Width: 612, Height: 792}

// Fragment is a run of text in PDF user space (origin bottom left)
type Fragment struct {
	X, Y     float64
	W        float64
	FontSize float64
	S        string
}

// Line is one row of page text with its box in page points (origin top left)
type Line struct {
	Text string
	Rect geometry.Rect
}

// BuildLines turns rows of fragments into text lines ordered top to bottom
func BuildLines(rows [][]Fragment, page geometry.Size) []Line {
	lines := make([]Line, 0, len(rows))
	for _, row := range rows {
		if line, ok := buildLine(row, page); ok {
			lines = append(lines, line)
		}
	}
	sort.SliceStable(lines, func(i, j int) bool {
		return lines[i].Rect.Y < lines[j].Rect.Y
	})
	return lines
}

func buildLine(row []Fragment, page geometry.Size) (Line, bool) {
	frags := make([]Fragment, 0, len(row))
	for _, f := range row {
		if f.S != "" {
			frags = append(frags, f)
		}
	}
	if len(frags) == 0 {
		return Line{}, false
	}
	sort.SliceStable(frags, func(i, j int) bool { return frags[i].X < frags[j].X })

	var b strings.Builder
	left, right := frags[0].X, frags[0].X
	baseline, size := frags[0].Y, 0.0
	for i, f := range frags {
		fs := f.FontSize
		if fs <= 0 {
			fs = defaultFontSize
		}
		size = max(size, fs)
		baseline = min(baseline, f.Y)
		if i > 0 {
			prev := frags[i-1]
			gap := f.X - (prev.X + prev.W)
			if gap > fs*wordGapRatio && !strings.HasSuffix(prev.S, " ") && !strings.HasPrefix(f.S, " ") {
				b.WriteByte(' ')
			}
		}
		b.WriteString(f.S)
		left = min(left, f.X)
		right = max(right, f.X+f.W)
	}

	text := strings.TrimSpace(b.String())
	if text == "" {
		return Line{}, false
	}

	rect := geometry.Rect{
		X:      left,
		Y:      page.Height - baseline - size*ascentRatio,
		Width:  right - left,
		Height: size,
	}
	return Line{Text: text, Rect: clampRect(rect, page)}, true
}

func clampRect(r geometry.Rect, page geometry.Size) geometry.Rect {
	x := max(r.X, 0)
	y := max(r.Y, 0)
	right := min(r.Right(), page.Width)
	bottom := min(r.Bottom(), page.Height)
	return geometry.Rect{X: x, Y: y, Width: max(right-x, 0), Height: max(bottom-y, 0)}
}

// fragments converts the rows reported by the PDF reader
func fragments(rows pdf.Rows) [][]Fragment {
	out := make([][]Fragment, 0, len(rows))
	for _, row := range rows {
		if row == nil {
			continue
		}
		frags := make([]Fragment, 0, len(row.Content))
		for _, t := range row.Content {
			frags = append(frags, Fragment{X: t.X, Y: t.Y, W: t.W, FontSize: t.FontSize, S: t.S})
		}
		out = append(out, frags)
	}
	return out
}

// mediaBox resolves the page size, following inherited attributes
func mediaBox(v pdf.Value) (geometry.Size, bool) {
	for depth := 0; depth < maxParentDepth && !v.IsNull(); depth++ {
		box := v.Key("MediaBox")
		if box.Len() == 4 {
			size := geometry.Size{
				Width:  box.Index(2).Float64() - box.Index(0).Float64(),
				Height: box.Index(3).Float64() - box.Index(1).Float64(),
			}
			if size.Valid() {
				return size, true
			}
		}
		v = v.Key("Parent")
	}
	return geometry.Size{}, false
}

// PageText joins the lines of a page
func PageText(lines []Line) string {
	texts := make([]string, len(lines))
	for i, l := range lines {
		texts[i] = l.Text
	}
	return strings.Join(texts, "\n")
}
