package ui

import (
	"image"
	"image/color"
	"image/draw"
	"log/slog"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"InkBoard/internal/geom"
	"InkBoard/internal/input"
	"InkBoard/internal/state"
)

// BoardWidget shows the presented page frame and turns mouse drags into pen
// batches. It is both the display surface and the pen driver of the page.
type BoardWidget struct {
	widget.BaseWidget
	capture

	frame *image.RGBA // drawn by the synchronizer, copied out on Post

	mu       sync.Mutex
	shown    *canvas.Image
	preview  []fyne.CanvasObject
	stroke   []geom.Point
	drawing  bool
	started  time.Time
	lastSeen fyne.Position

	OnBatch  func(input.Batch)
	OnScroll func(delta int)
}

var _ fyne.Widget = (*BoardWidget)(nil)
var _ fyne.Draggable = (*BoardWidget)(nil)
var _ fyne.Scrollable = (*BoardWidget)(nil)
var _ desktop.Mouseable = (*BoardWidget)(nil)

// NewBoardWidget creates a board for a width x height page view.
func NewBoardWidget(width, height int) *BoardWidget {
	b := &BoardWidget{frame: image.NewRGBA(image.Rect(0, 0, width, height))}
	draw.Draw(b.frame, b.frame.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	b.shown = canvas.NewImageFromImage(cloneFrame(b.frame))
	b.shown.FillMode = canvas.ImageFillOriginal
	b.shown.ScaleMode = canvas.ImageScalePixels
	b.ExtendBaseWidget(b)
	return b
}

// Bounds implements render.Surface.
func (b *BoardWidget) Bounds() image.Rectangle {
	return b.frame.Bounds()
}

// Lock implements render.Surface. The synchronizer serializes its blits, so
// the frame is never handed out twice at once.
func (b *BoardWidget) Lock() (draw.Image, bool) {
	return b.frame, true
}

// Post implements render.Surface: the frame replaces what is on screen and
// the live ink preview is dropped, as the frame now carries the ink.
func (b *BoardWidget) Post(frame draw.Image) {
	img := image.NewRGBA(frame.Bounds())
	draw.Draw(img, img.Bounds(), frame, frame.Bounds().Min, draw.Src)
	fyne.Do(func() {
		b.mu.Lock()
		b.shown.Image = img
		if !b.drawing {
			b.preview = nil
		}
		b.mu.Unlock()
		b.Refresh()
	})
}

func cloneFrame(src *image.RGBA) *image.RGBA {
	dst := image.NewRGBA(src.Bounds())
	copy(dst.Pix, src.Pix)
	return dst
}

func (b *BoardWidget) sample(pos fyne.Position) geom.Point {
	return geom.Point{
		X:         pos.X,
		Y:         pos.Y,
		Pressure:  1,
		Timestamp: time.Since(b.started).Milliseconds(),
	}
}

func (b *BoardWidget) MouseDown(e *desktop.MouseEvent) {
	if e.Button != desktop.MouseButtonPrimary {
		return
	}
	if !b.accepts(image.Pt(int(e.Position.X), int(e.Position.Y))) {
		return
	}
	b.mu.Lock()
	b.drawing = true
	b.started = time.Now()
	b.stroke = []geom.Point{b.sample(e.Position)}
	b.lastSeen = e.Position
	b.mu.Unlock()
}

func (b *BoardWidget) Dragged(e *fyne.DragEvent) {
	b.mu.Lock()
	if !b.drawing {
		b.mu.Unlock()
		return
	}
	b.stroke = append(b.stroke, b.sample(e.Position))

	_, width := b.style()
	seg := canvas.NewLine(color.Black)
	seg.StrokeWidth = max(width, 1)
	seg.Position1 = b.lastSeen
	seg.Position2 = e.Position
	b.preview = append(b.preview, seg)
	b.lastSeen = e.Position
	b.mu.Unlock()
	b.Refresh()
}

func (b *BoardWidget) MouseUp(e *desktop.MouseEvent) {
	if e.Button != desktop.MouseButtonPrimary {
		return
	}
	b.finishStroke()
}

func (b *BoardWidget) DragEnd() {
	b.finishStroke()
}

func (b *BoardWidget) finishStroke() {
	b.mu.Lock()
	if !b.drawing {
		b.mu.Unlock()
		return
	}
	b.drawing = false
	batch := input.Batch(b.stroke)
	b.stroke = nil
	b.mu.Unlock()

	slog.Debug("mouse stroke finished", "points", len(batch))
	if b.OnBatch != nil && len(batch) > 0 {
		b.OnBatch(batch)
	}
}

func (b *BoardWidget) Scrolled(e *fyne.ScrollEvent) {
	if b.OnScroll != nil {
		b.OnScroll(int(-e.Scrolled.DY))
	}
}

func (b *BoardWidget) MouseIn(*desktop.MouseEvent)    {}
func (b *BoardWidget) MouseOut()                      {}
func (b *BoardWidget) MouseMoved(*desktop.MouseEvent) {}

// PenStyle reports the style last set by the synchronizer.
func (b *BoardWidget) PenStyle() (state.PenType, float32) {
	return b.style()
}

func (b *BoardWidget) CreateRenderer() fyne.WidgetRenderer {
	return &boardWidgetRenderer{board: b}
}

type boardWidgetRenderer struct {
	board *BoardWidget
}

func (r *boardWidgetRenderer) Objects() []fyne.CanvasObject {
	r.board.mu.Lock()
	defer r.board.mu.Unlock()
	objects := []fyne.CanvasObject{r.board.shown}
	return append(objects, r.board.preview...)
}

func (r *boardWidgetRenderer) Refresh() {
	r.board.shown.Refresh()
	canvas.Refresh(r.board)
}

func (r *boardWidgetRenderer) Layout(size fyne.Size) {
	r.board.shown.Resize(r.MinSize())
	r.board.shown.Move(fyne.NewPos(0, 0))
}

func (r *boardWidgetRenderer) MinSize() fyne.Size {
	b := r.board.frame.Bounds()
	return fyne.NewSize(float32(b.Dx()), float32(b.Dy()))
}

func (r *boardWidgetRenderer) Destroy() {}
