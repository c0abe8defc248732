// Package geometry converts normalized extraction polygons into rectangles
// usable for page overlays.
package geometry

import (
	"math"

	"github.com/talkoren/invoice-intake/internal/models"
)

// Rect is an axis-aligned rectangle. Coordinates are normalized [0, 1] unless
// produced by ToPixels.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// PolygonBounds returns the axis-aligned bounding rectangle of a polygon,
// clamped to the normalized page space. Non-finite coordinates are ignored;
// a polygon with no usable points yields a zero rect and ok=false.
func PolygonBounds(polygon []models.Point) (Rect, bool) {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	usable := 0
	for _, p := range polygon {
		if !finite(p.X) || !finite(p.Y) {
			continue
		}
		usable++
		minX = math.Min(minX, clamp01(p.X))
		minY = math.Min(minY, clamp01(p.Y))
		maxX = math.Max(maxX, clamp01(p.X))
		maxY = math.Max(maxY, clamp01(p.Y))
	}
	if usable == 0 {
		return Rect{}, false
	}
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}, true
}

// ToPixels scales a normalized rect to a rendered page of the given pixel
// dimensions.
func ToPixels(r Rect, pageWidth, pageHeight float64) Rect {
	return Rect{
		X:      r.X * pageWidth,
		Y:      r.Y * pageHeight,
		Width:  r.Width * pageWidth,
		Height: r.Height * pageHeight,
	}
}

// BoxOnPage resolves a field bounding box to a pixel rect on its page. The
// page number is 1-based; a box for a different page yields ok=false so the
// caller can skip overlays that do not belong to the rendered page.
func BoxOnPage(box models.BoundingBox, pageNumber int, pageWidth, pageHeight float64) (Rect, bool) {
	if box.PageNumber != pageNumber {
		return Rect{}, false
	}
	bounds, ok := PolygonBounds(box.Polygon)
	if !ok {
		return Rect{}, false
	}
	return ToPixels(bounds, pageWidth, pageHeight), true
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
