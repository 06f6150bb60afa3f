// Package geometry converts between page-relative rects stored by the server
// and absolute rects in engine page space.
package geometry

import (
	"math"

	"github.com/justyntemme/readium-t/pkg/models"
)

// Size is a page size in engine units
type Size struct {
	Width  float64
	Height float64
}

// Valid reports whether both dimensions are positive
func (s Size) Valid() bool {
	return s.Width > 0 && s.Height > 0
}

// Point is a position in engine page space
type Point struct {
	X float64
	Y float64
}

// Rect is an absolute rectangle in engine page space, origin top-left
type Rect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Right returns the x coordinate of the right edge
func (r Rect) Right() float64 { return r.X + r.Width }

// Bottom returns the y coordinate of the bottom edge
func (r Rect) Bottom() float64 { return r.Y + r.Height }

// Empty reports whether the rect has no area
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Contains reports whether p lies inside r, edges included
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X <= r.Right() && p.Y >= r.Y && p.Y <= r.Bottom()
}

// Intersects reports whether the rects share any area
func (r Rect) Intersects(o Rect) bool {
	return r.X < o.Right() && o.X < r.Right() && r.Y < o.Bottom() && o.Y < r.Bottom()
}

// ToEngineRect scales a normalized rect into page space
func ToEngineRect(r models.ReaderRect, page Size) Rect {
	return Rect{
		X:      r.X * page.Width,
		Y:      r.Y * page.Height,
		Width:  r.Width * page.Width,
		Height: r.Height * page.Height,
	}
}

// ToNormalizedRect divides a page-space rect by the page size.
// The page size must be valid.
func ToNormalizedRect(r Rect, page Size) models.ReaderRect {
	return models.ReaderRect{
		X:      r.X / page.Width,
		Y:      r.Y / page.Height,
		Width:  r.Width / page.Width,
		Height: r.Height / page.Height,
	}
}

// BoundingRect returns the smallest rect enclosing every segment.
// It returns false for an empty input.
func BoundingRect(rects []Rect) (Rect, bool) {
	if len(rects) == 0 {
		return Rect{}, false
	}
	if len(rects) == 1 {
		return rects[0], true
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, r := range rects {
		minX = math.Min(minX, r.X)
		minY = math.Min(minY, r.Y)
		maxX = math.Max(maxX, r.Right())
		maxY = math.Max(maxY, r.Bottom())
	}
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}, true
}
