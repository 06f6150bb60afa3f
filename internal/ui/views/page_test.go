package views

import (
	"reflect"
	"testing"

	"github.com/justyntemme/readium-t/internal/reader/engine"
	"github.com/justyntemme/readium-t/internal/reader/engine/pdfengine"
	"github.com/justyntemme/readium-t/internal/reader/geometry"
	"github.com/justyntemme/readium-t/pkg/models"
)

var testLines = []pdfengine.Line{
	{Text: "Hello", Rect: geometry.Rect{X: 150, Y: 200, Width: 300, Height: 100}},
	{Text: "world", Rect: geometry.Rect{X: 150, Y: 400, Width: 150, Height: 100}},
}

func TestLayoutPage(t *testing.T) {
	lines := []pdfengine.Line{{Text: "Hello brave new world"}, {Text: "abcdefghijkl"}}
	got := layoutPage(lines, 10)
	want := []pageRow{
		{0, "Hello"},
		{0, "brave new"},
		{0, "world"},
		{1, "abcdefghij"},
		{1, "kl"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("layoutPage = %+v, want %+v", got, want)
	}
	if firstRow(got, 1) != 3 || firstRow(got, 5) != -1 {
		t.Errorf("firstRow mismatch")
	}
}

func TestMeasure(t *testing.T) {
	tests := []struct {
		width int
		zoom  float64
		want  int
	}{
		{100, 1, 80},
		{100, 2, 100},
		{100, 0.1, 20},
		{100, 0, 80},
		{12, 1, 12},
	}
	for _, tt := range tests {
		if got := measure(tt.width, tt.zoom); got != tt.want {
			t.Errorf("measure(%d, %v) = %d, want %d", tt.width, tt.zoom, got, tt.want)
		}
	}
}

func TestLineColorsTopmostWins(t *testing.T) {
	objs := []engine.HighlightObject{
		{ID: "a", Color: "#FFF59D", Segments: []geometry.Rect{testLines[0].Rect, testLines[1].Rect}},
		{ID: "b", Color: "#90CAF9", Segments: []geometry.Rect{testLines[1].Rect}},
	}
	got := lineColors(testLines, objs)
	want := map[int]string{0: "#FFF59D", 1: "#90CAF9"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("lineColors = %v, want %v", got, want)
	}
}

func TestLineOverlays(t *testing.T) {
	size := geometry.Size{Width: 600, Height: 800}
	overlays := []models.TranslationOverlay{
		{AnnotationID: 2, Page: 1, Rect: models.ReaderRect{X: 0.25, Y: 0.25, Width: 0.5, Height: 0.125}, Translation: "olá"},
	}
	got := lineOverlays(testLines, overlays, size)
	if len(got) != 1 || got[0].Translation != "olá" {
		t.Errorf("lineOverlays = %+v", got)
	}
	if len(lineOverlays(testLines, overlays, geometry.Size{})) != 0 {
		t.Error("invalid page size should yield no overlays")
	}
}

func TestLineHostPoint(t *testing.T) {
	size := geometry.Size{Width: 600, Height: 800}
	box := geometry.Rect{X: 10, Y: 1, Width: 60, Height: 8}
	got := lineHostPoint(testLines[0], size, box)
	if got != (models.Point{X: 40, Y: 3.5}) {
		t.Errorf("lineHostPoint = %+v", got)
	}
}

func TestRenderProgressBar(t *testing.T) {
	tests := []struct {
		progress float64
		want     string
	}{
		{0, "░░░░"},
		{0.5, "██░░"},
		{1, "████"},
		{1.5, "████"},
		{0.3125, "█▎░░"},
	}
	for _, tt := range tests {
		if got := renderProgressBar(4, tt.progress); got != tt.want {
			t.Errorf("renderProgressBar(4, %v) = %q, want %q", tt.progress, got, tt.want)
		}
	}
}
