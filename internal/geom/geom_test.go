package geom

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pts(xy ...float32) []Point {
	out := make([]Point, 0, len(xy)/2)
	for i := 0; i+1 < len(xy); i += 2 {
		out = append(out, Point{X: xy[i], Y: xy[i+1], Pressure: 1})
	}
	return out
}

func TestBoundsOf(t *testing.T) {
	b, err := BoundsOf(pts(10, 20, 5, 40, 30, 25))
	require.NoError(t, err)
	assert.Equal(t, Box{Top: 20, Bottom: 40, Left: 5, Right: 30}, b)

	_, err = BoundsOf(nil)
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestBoundsOfTranslationEquivariant(t *testing.T) {
	cases := [][]Point{
		pts(0, 0),
		pts(1, 2, 3, 4),
		pts(100, 900, 120, 950, 90, 910.5),
	}
	for _, dy := range []float32{-300, 0, 17, 800} {
		for _, c := range cases {
			before, err := BoundsOf(c)
			require.NoError(t, err)
			after, err := BoundsOf(Translate(c, dy))
			require.NoError(t, err)
			assert.Equal(t, before.Translate(dy), after)
		}
	}
}

func TestTranslateCopies(t *testing.T) {
	in := pts(1, 1)
	out := Translate(in, 5)
	assert.Equal(t, float32(1), in[0].Y)
	assert.Equal(t, float32(6), out[0].Y)
}

func TestHitTest(t *testing.T) {
	a := Box{Top: 0, Bottom: 10, Left: 0, Right: 10}
	tests := []struct {
		name string
		b    Box
		want bool
	}{
		{"overlap", Box{Top: 5, Bottom: 15, Left: 5, Right: 15}, true},
		{"touching", Box{Top: 10, Bottom: 20, Left: 0, Right: 10}, true},
		{"inside", Box{Top: 2, Bottom: 3, Left: 2, Right: 3}, true},
		{"below", Box{Top: 11, Bottom: 20, Left: 0, Right: 10}, false},
		{"right", Box{Top: 0, Bottom: 10, Left: 10.5, Right: 20}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HitTest(a, tt.b))
			assert.Equal(t, tt.want, HitTest(tt.b, a))
		})
	}
}

func TestBoxRectRoundsOutward(t *testing.T) {
	b := Box{Top: 1.5, Bottom: 3.2, Left: -0.5, Right: 2}
	assert.Equal(t, image.Rect(-1, 1, 3, 5), b.Rect())
	assert.Equal(t, Box{Top: 1, Bottom: 5, Left: -1, Right: 3}, FromRect(b.Rect()))
}

func TestPathNear(t *testing.T) {
	p := PathFrom(pts(0, 0, 100, 0))

	assert.InDelta(t, 5.0, p.Distance(Point{X: 50, Y: 5}), 1e-9)
	assert.InDelta(t, 5.0, p.Distance(Point{X: 105, Y: 0}), 1e-9)
	assert.True(t, p.Near(Point{X: 50, Y: 5}, 5))
	assert.False(t, p.Near(Point{X: 50, Y: 5.5}, 5))

	// inside the padded bounds but away from the diagonal
	diag := PathFrom(pts(0, 0, 100, 100))
	assert.True(t, HitTest(diag.Bounds(), Box{Top: 5, Bottom: 5, Left: 90, Right: 90}))
	assert.False(t, diag.Near(Point{X: 90, Y: 5}, 10))

	assert.False(t, PathFrom(nil).Near(Point{}, 100))
	assert.True(t, PathFrom(pts(3, 4)).Near(Point{}, 5))
}

func TestSimplify(t *testing.T) {
	line := PathFrom(pts(0, 0, 1, 0.01, 2, 0, 3, 0.02, 4, 0))
	s := line.Simplify(0.5)
	assert.Equal(t, pts(0, 0, 4, 0), s.Points)
	assert.Equal(t, line.Bounds().Left, s.Bounds().Left)

	corner := PathFrom(pts(0, 0, 5, 0, 10, 0, 10, 5, 10, 10))
	assert.Equal(t, pts(0, 0, 10, 0, 10, 10), corner.Simplify(0.1).Points)

	assert.Equal(t, line.Points, line.Simplify(0).Points)
}
