package raster

import (
	"image"
	"image/draw"
	"log/slog"
	"sync"
	"time"

	"InkBoard/internal/geom"
	"InkBoard/internal/state"
)

// StrokeSource supplies the strokes overlapping a document-space area, in
// paint order.
type StrokeSource interface {
	Intersecting(area geom.Box) []state.Stroke
}

// Viewport owns the pixel buffer for the visible window of a page: document
// rows [scroll, scroll+height). The buffer is a cache and can always be
// repainted from the stroke source and the scroll offset.
type Viewport struct {
	strokes StrokeSource
	log     *slog.Logger

	mu     sync.Mutex
	img    *image.RGBA
	scroll int
}

// NewViewport allocates a width x height buffer at the given scroll offset.
// The buffer starts blank; call Repaint or Load before presenting it.
func NewViewport(width, height, scroll int, strokes StrokeSource, log *slog.Logger) *Viewport {
	if log == nil {
		log = slog.Default()
	}
	return &Viewport{
		strokes: strokes,
		log:     log,
		img:     image.NewRGBA(image.Rect(0, 0, width, height)),
		scroll:  max(0, scroll),
	}
}

// Bounds returns the view-space rectangle of the buffer.
func (v *Viewport) Bounds() image.Rectangle {
	return v.img.Bounds()
}

// ScrollOffset returns the document row shown at the top of the buffer.
func (v *Viewport) ScrollOffset() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.scroll
}

// Repaint redraws area (view space): background first, then every stroke
// whose padded bounds overlap the matching document rows. Strokes outside
// the area are never touched.
func (v *Viewport) Repaint(area image.Rectangle) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.repaintLocked(area)
}

// RepaintAll redraws the whole buffer.
func (v *Viewport) RepaintAll() {
	v.Repaint(v.img.Bounds())
}

func (v *Viewport) repaintLocked(area image.Rectangle) {
	area = area.Intersect(v.img.Bounds())
	if area.Empty() {
		return
	}

	start := time.Now()
	paintBackground(v.img, area, v.scroll)

	doc := geom.FromRect(area).Translate(float32(v.scroll))
	strokes := v.strokes.Intersecting(doc)
	for _, s := range strokes {
		drawStroke(v.img, area, s, v.scroll)
	}
	v.log.Debug("repainted area", "area", area, "strokes", len(strokes), "took", time.Since(start))
}

// Scroll moves the window by delta document rows and returns the delta
// actually applied. The offset never goes below zero; there is no upper
// bound, so the page can be extended by scrolling past its content. The
// existing pixels are shifted and only the newly exposed strip is
// repainted.
func (v *Viewport) Scroll(delta int) int {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.scroll+delta < 0 {
		delta = -v.scroll
	}
	if delta == 0 {
		return 0
	}
	v.scroll += delta

	b := v.img.Bounds()
	h := b.Dy()
	abs := delta
	if abs < 0 {
		abs = -abs
	}
	if abs >= h {
		v.repaintLocked(b)
		return delta
	}

	stride := v.img.Stride
	if delta > 0 {
		copy(v.img.Pix, v.img.Pix[delta*stride:h*stride])
		v.repaintLocked(image.Rect(b.Min.X, h-delta, b.Max.X, h))
	} else {
		copy(v.img.Pix[abs*stride:h*stride], v.img.Pix[:(h-abs)*stride])
		v.repaintLocked(image.Rect(b.Min.X, 0, b.Max.X, abs))
	}
	return delta
}

// Load adopts a previously persisted raster. It reports false, leaving the
// buffer untouched, when the image does not match the viewport size.
func (v *Viewport) Load(img image.Image) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if img.Bounds().Size() != v.img.Bounds().Size() {
		return false
	}
	draw.Draw(v.img, v.img.Bounds(), img, img.Bounds().Min, draw.Src)
	return true
}

// Snapshot returns a copy of the buffer.
func (v *Viewport) Snapshot() *image.RGBA {
	v.mu.Lock()
	defer v.mu.Unlock()
	return cloneRGBA(v.img)
}

// View runs fn with the live buffer and scroll offset while holding the
// viewport lock, so no repaint can interleave with fn. fn must not retain
// img.
func (v *Viewport) View(fn func(img *image.RGBA, scroll int)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fn(v.img, v.scroll)
}

func cloneRGBA(src *image.RGBA) *image.RGBA {
	dst := image.NewRGBA(src.Bounds())
	copy(dst.Pix, src.Pix)
	return dst
}
