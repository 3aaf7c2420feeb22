package geom

import "math"

// Path is a drawable polyline built from pen samples. It is used both to ink
// strokes and to outline the selection boundary.
type Path struct {
	Points []Point
	bounds Box
}

// PathFrom builds a path from a point sequence. An empty sequence yields an
// empty path whose Bounds is the zero box.
func PathFrom(points []Point) Path {
	p := Path{Points: points}
	if b, err := BoundsOf(points); err == nil {
		p.bounds = b
	}
	return p
}

// Bounds returns the unpadded bounding box of the path.
func (p Path) Bounds() Box {
	return p.bounds
}

// Len returns the number of vertices.
func (p Path) Len() int {
	return len(p.Points)
}

// Distance returns the smallest distance from pt to any segment of the path.
// A single-vertex path behaves like a dot. An empty path is infinitely far.
func (p Path) Distance(pt Point) float64 {
	switch len(p.Points) {
	case 0:
		return math.Inf(1)
	case 1:
		return math.Hypot(float64(pt.X-p.Points[0].X), float64(pt.Y-p.Points[0].Y))
	}

	best := math.Inf(1)
	x, y := float64(pt.X), float64(pt.Y)
	for i := 1; i < len(p.Points); i++ {
		a, b := p.Points[i-1], p.Points[i]
		d := SegmentDistance(x, y, float64(a.X), float64(a.Y), float64(b.X), float64(b.Y))
		if d < best {
			best = d
		}
	}
	return best
}

// Near is the narrow-phase hit test: it reports whether pt is within r of
// the path.
func (p Path) Near(pt Point, r float64) bool {
	if len(p.Points) == 0 {
		return false
	}
	// cheap reject before walking the segments
	if !p.bounds.Pad(float32(r)).Contains(pt) {
		return false
	}
	return p.Distance(pt) <= r
}

// SegmentDistance returns the distance from (px, py) to the segment a-b.
func SegmentDistance(px, py, ax, ay, bx, by float64) float64 {
	dx, dy := bx-ax, by-ay
	l2 := dx*dx + dy*dy
	if l2 == 0 {
		return math.Hypot(px-ax, py-ay)
	}
	t := ((px-ax)*dx + (py-ay)*dy) / l2
	t = math.Max(0, math.Min(1, t))
	return math.Hypot(px-(ax+t*dx), py-(ay+t*dy))
}

// Simplify drops vertices that deviate less than tolerance from the line
// through their neighbours (Ramer-Douglas-Peucker). The first and last
// vertices are always kept. A tolerance <= 0 returns the path unchanged.
func (p Path) Simplify(tolerance float64) Path {
	if tolerance <= 0 || len(p.Points) < 3 {
		return p
	}

	keep := make([]bool, len(p.Points))
	keep[0], keep[len(p.Points)-1] = true, true
	simplifyRange(p.Points, 0, len(p.Points)-1, tolerance, keep)

	out := make([]Point, 0, len(p.Points))
	for i, k := range keep {
		if k {
			out = append(out, p.Points[i])
		}
	}
	return PathFrom(out)
}

func simplifyRange(pts []Point, first, last int, tolerance float64, keep []bool) {
	// explicit stack, long strokes would otherwise recurse deeply
	type span struct{ first, last int }
	stack := []span{{first, last}}
	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if s.last-s.first < 2 {
			continue
		}

		a, b := pts[s.first], pts[s.last]
		idx, worst := -1, tolerance
		for i := s.first + 1; i < s.last; i++ {
			d := SegmentDistance(float64(pts[i].X), float64(pts[i].Y),
				float64(a.X), float64(a.Y), float64(b.X), float64(b.Y))
			if d > worst {
				idx, worst = i, d
			}
		}
		if idx < 0 {
			continue
		}
		keep[idx] = true
		stack = append(stack, span{s.first, idx}, span{idx, s.last})
	}
}
