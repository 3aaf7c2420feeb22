package geom

import (
	"errors"
	"image"
	"math"
)

// ErrEmptyInput is returned by operations that need at least one point.
var ErrEmptyInput = errors.New("geom: empty point sequence")

// Point is a single pen sample. Coordinates are in pixels, pressure is
// normalised to [0, 1].
type Point struct {
	X         float32 `json:"x"`
	Y         float32 `json:"y"`
	Pressure  float32 `json:"p"`
	Timestamp int64   `json:"t"`
}

// Box is an axis-aligned rectangle in document space.
type Box struct {
	Top    float32 `json:"top"`
	Bottom float32 `json:"bottom"`
	Left   float32 `json:"left"`
	Right  float32 `json:"right"`
}

// BoundsOf returns the minimal box containing every point.
func BoundsOf(points []Point) (Box, error) {
	if len(points) == 0 {
		return Box{}, ErrEmptyInput
	}

	b := Box{Top: points[0].Y, Bottom: points[0].Y, Left: points[0].X, Right: points[0].X}
	for _, p := range points[1:] {
		if p.X < b.Left {
			b.Left = p.X
		}
		if p.X > b.Right {
			b.Right = p.X
		}
		if p.Y < b.Top {
			b.Top = p.Y
		}
		if p.Y > b.Bottom {
			b.Bottom = p.Y
		}
	}
	return b, nil
}

// HitTest is the broad-phase check: it reports whether two boxes overlap.
// Touching edges count as overlap.
func HitTest(strokeBounds, query Box) bool {
	return !(strokeBounds.Right < query.Left || query.Right < strokeBounds.Left ||
		strokeBounds.Bottom < query.Top || query.Bottom < strokeBounds.Top)
}

// Translate returns a copy of points shifted vertically by dy.
// Document space is view space plus the scroll offset.
func Translate(points []Point, dy float32) []Point {
	out := make([]Point, len(points))
	for i, p := range points {
		p.Y += dy
		out[i] = p
	}
	return out
}

// Pad grows the box by p on every side.
func (b Box) Pad(p float32) Box {
	return Box{Top: b.Top - p, Bottom: b.Bottom + p, Left: b.Left - p, Right: b.Right + p}
}

// Translate shifts the box vertically.
func (b Box) Translate(dy float32) Box {
	b.Top += dy
	b.Bottom += dy
	return b
}

// Union returns the smallest box containing both.
func (b Box) Union(o Box) Box {
	return Box{
		Top:    min(b.Top, o.Top),
		Bottom: max(b.Bottom, o.Bottom),
		Left:   min(b.Left, o.Left),
		Right:  max(b.Right, o.Right),
	}
}

// Contains reports whether the point lies inside the box, edges included.
func (b Box) Contains(p Point) bool {
	return p.X >= b.Left && p.X <= b.Right && p.Y >= b.Top && p.Y <= b.Bottom
}

// Rect converts the box to an integer rectangle, rounding outward so the
// rectangle covers every pixel the box touches.
func (b Box) Rect() image.Rectangle {
	return image.Rect(
		int(math.Floor(float64(b.Left))),
		int(math.Floor(float64(b.Top))),
		int(math.Ceil(float64(b.Right)))+1,
		int(math.Ceil(float64(b.Bottom)))+1,
	)
}

// FromRect converts an integer rectangle to a box.
func FromRect(r image.Rectangle) Box {
	return Box{
		Top:    float32(r.Min.Y),
		Bottom: float32(r.Max.Y),
		Left:   float32(r.Min.X),
		Right:  float32(r.Max.X),
	}
}
