package state

import (
	"fmt"

	"github.com/google/uuid"

	"InkBoard/internal/geom"
)

// PenType selects how a stroke is inked.
type PenType int

const (
	Ballpen PenType = iota
	Fountain
	Marker
	Pencil
)

func (p PenType) String() string {
	switch p {
	case Ballpen:
		return "ballpen"
	case Fountain:
		return "fountain"
	case Marker:
		return "marker"
	case Pencil:
		return "pencil"
	}
	return fmt.Sprintf("pen(%d)", int(p))
}

// ParsePen is the inverse of PenType.String.
func ParsePen(s string) (PenType, error) {
	for _, p := range []PenType{Ballpen, Fountain, Marker, Pencil} {
		if p.String() == s {
			return p, nil
		}
	}
	return Ballpen, fmt.Errorf("unknown pen %q", s)
}

// Stroke is one continuous pen contact in document space.
type Stroke struct {
	ID     string       `json:"id"`
	Points []geom.Point `json:"points"`
	Pen    PenType      `json:"pen"`
	Color  uint32       `json:"color"` // 0xAARRGGBB
	Size   float32      `json:"size"`
	Bounds geom.Box     `json:"bounds"`
}

// InkPadding is how far ink may reach past the stroke's vertices: the
// maximum pen radius plus one pixel for rounding.
func InkPadding(size float32) float32 {
	return size/2 + 1
}

// NewStroke assigns an id and caches the padded bounding box.
func NewStroke(pen PenType, color uint32, size float32, points []geom.Point) (Stroke, error) {
	b, err := geom.BoundsOf(points)
	if err != nil {
		return Stroke{}, fmt.Errorf("new stroke: %w", err)
	}
	return Stroke{
		ID:     uuid.NewString(),
		Points: points,
		Pen:    pen,
		Color:  color,
		Size:   size,
		Bounds: b.Pad(InkPadding(size)),
	}, nil
}

// Path returns the polyline used for inking and hit-testing.
func (s *Stroke) Path() geom.Path {
	return geom.PathFrom(s.Points)
}

// Page is a point-in-time view of a page's geometry.
type Page struct {
	ID             string
	Scroll         int
	ViewWidth      int
	ViewHeight     int
	DocumentHeight int
}

// PageRecord is what the durable layer holds for one page.
type PageRecord struct {
	Scroll  int
	Strokes []Stroke
}

type OpType string

const (
	OpInsertStroke OpType = "insert_stroke"
	OpDeleteStroke OpType = "delete_stroke"
)

// Op is one undo-recordable unit: every stroke added or removed by a single
// store mutation.
type Op struct {
	Type    OpType
	PageID  string
	Strokes []Stroke
	Lamport uint64
}
