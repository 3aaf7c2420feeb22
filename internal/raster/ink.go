package raster

import (
	"image"
	"image/color"
	"math"

	"InkBoard/internal/state"
)

const (
	dotSpacing = 40
	dotSize    = 2
	markerA    = 0x66
)

var (
	paperColor = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	dotColor   = color.RGBA{R: 0xb4, G: 0xb4, B: 0xb4, A: 0xff}
)

// paintBackground fills area (view space) with the dotted paper pattern.
// The dots are anchored to document rows so the pattern scrolls with the
// content.
func paintBackground(img *image.RGBA, area image.Rectangle, scroll int) {
	for y := area.Min.Y; y < area.Max.Y; y++ {
		docRow := (y + scroll) % dotSpacing
		row := img.Pix[img.PixOffset(area.Min.X, y):]
		for x := area.Min.X; x < area.Max.X; x++ {
			c := paperColor
			if docRow < dotSize && x%dotSpacing < dotSize {
				c = dotColor
			}
			i := (x - area.Min.X) * 4
			row[i], row[i+1], row[i+2], row[i+3] = c.R, c.G, c.B, c.A
		}
	}
}

// argb unpacks 0xAARRGGBB.
func argb(c uint32) color.RGBA {
	return color.RGBA{R: uint8(c >> 16), G: uint8(c >> 8), B: uint8(c), A: uint8(c >> 24)}
}

// drawStroke inks s into img, touching only pixels inside clip (view
// space). A pixel is inked when its centre, taken in document coordinates,
// lies within the pen radius of the stroke polyline. Working in document
// coordinates keeps the result independent of the scroll offset.
func drawStroke(img *image.RGBA, clip image.Rectangle, s state.Stroke, scroll int) {
	area := s.Bounds.Translate(float32(-scroll)).Rect().Intersect(clip)
	if area.Empty() || len(s.Points) == 0 {
		return
	}

	w := area.Dx()
	mask := make([]bool, w*area.Dy())
	base := float64(s.Size) / 2

	radius := func(p float32) float64 {
		if s.Pen == state.Fountain {
			return base * math.Max(0.25, math.Min(1, float64(p)))
		}
		return base
	}

	mark := func(ax, ay, ar, bx, by, br float64) {
		rmax := math.Max(ar, br)
		x0 := max(area.Min.X, int(math.Floor(math.Min(ax, bx)-rmax)))
		x1 := min(area.Max.X, int(math.Ceil(math.Max(ax, bx)+rmax))+1)
		y0 := max(area.Min.Y+scroll, int(math.Floor(math.Min(ay, by)-rmax)))
		y1 := min(area.Max.Y+scroll, int(math.Ceil(math.Max(ay, by)+rmax))+1)

		dx, dy := bx-ax, by-ay
		l2 := dx*dx + dy*dy
		for docY := y0; docY < y1; docY++ {
			cy := float64(docY) + 0.5
			for x := x0; x < x1; x++ {
				cx := float64(x) + 0.5
				t := 0.0
				if l2 > 0 {
					t = math.Max(0, math.Min(1, ((cx-ax)*dx+(cy-ay)*dy)/l2))
				}
				px, py := ax+t*dx-cx, ay+t*dy-cy
				r := ar + t*(br-ar)
				if px*px+py*py <= r*r {
					mask[(docY-scroll-area.Min.Y)*w+(x-area.Min.X)] = true
				}
			}
		}
	}

	pts := s.Points
	if len(pts) == 1 {
		p := pts[0]
		r := radius(p.Pressure)
		mark(float64(p.X), float64(p.Y), r, float64(p.X), float64(p.Y), r)
	}
	for i := 1; i < len(pts); i++ {
		a, b := pts[i-1], pts[i]
		mark(float64(a.X), float64(a.Y), radius(a.Pressure), float64(b.X), float64(b.Y), radius(b.Pressure))
	}

	c := argb(s.Color)
	if s.Pen == state.Marker {
		c.A = markerA
	}
	for y := 0; y < area.Dy(); y++ {
		off := img.PixOffset(area.Min.X, area.Min.Y+y)
		for x := 0; x < w; x++ {
			if mask[y*w+x] {
				blend(img.Pix[off+x*4:off+x*4+4], c)
			}
		}
	}
}

// blend composites c over the destination pixel with integer arithmetic so
// repeated renders are bit-identical.
func blend(dst []uint8, c color.RGBA) {
	if c.A == 0xff {
		dst[0], dst[1], dst[2], dst[3] = c.R, c.G, c.B, 0xff
		return
	}
	a := uint32(c.A)
	inv := 255 - a
	dst[0] = uint8((uint32(c.R)*a + uint32(dst[0])*inv) / 255)
	dst[1] = uint8((uint32(c.G)*a + uint32(dst[1])*inv) / 255)
	dst[2] = uint8((uint32(c.B)*a + uint32(dst[2])*inv) / 255)
	dst[3] = uint8(a + uint32(dst[3])*inv/255)
}
