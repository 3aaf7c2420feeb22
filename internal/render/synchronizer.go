package render

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"log/slog"
	"sync"

	"github.com/gogpu/gg"

	"InkBoard/internal/editor"
	"InkBoard/internal/geom"
	"InkBoard/internal/state"
)

// ErrStaleSurface is returned when a surface that no longer owns capture is
// torn down. Capture is left open for the newer surface.
var ErrStaleSurface = errors.New("render: stale surface teardown")

// DefaultToolbarHeight is the height of the strip at the top of the surface
// where pen input belongs to the toolbar, not the page.
const DefaultToolbarHeight = 40

// Driver is the pen hardware. Capture is its low-latency ink preview.
type Driver interface {
	OpenCapture(limits, exclusions []image.Rectangle) error
	SetCaptureRegion(limits, exclusions []image.Rectangle) error
	CloseCapture() error
	SetCaptureEnabled(enabled bool)
	SetStrokeStyle(pen state.PenType, width float32)
}

// Surface is the display the raster is copied to.
type Surface interface {
	Bounds() image.Rectangle
	// Lock returns the drawable frame, or false when the surface is not
	// ready.
	Lock() (draw.Image, bool)
	Post(frame draw.Image)
}

// Raster is the viewport cache being presented.
type Raster interface {
	Bounds() image.Rectangle
	Repaint(area image.Rectangle)
	RepaintAll()
	View(fn func(img *image.RGBA, scroll int))
}

// Synchronizer keeps the hardware ink layer, the raster cache and the
// display in step.
type Synchronizer struct {
	driver        Driver
	surface       Surface
	raster        Raster
	editor        *editor.State
	sessions      *Sessions
	signals       *Signals
	toolbarHeight int
	log           *slog.Logger

	// mu serializes every hardware call and every blit.
	mu      sync.Mutex
	overlay *gg.Context
}

// Options wires a Synchronizer.
type Options struct {
	Driver        Driver
	Surface       Surface
	Raster        Raster
	Editor        *editor.State
	Sessions      *Sessions
	Signals       *Signals
	ToolbarHeight int
	Logger        *slog.Logger
}

func NewSynchronizer(o Options) *Synchronizer {
	if o.Sessions == nil {
		o.Sessions = &Sessions{}
	}
	if o.Signals == nil {
		o.Signals = NewSignals()
	}
	if o.ToolbarHeight <= 0 {
		o.ToolbarHeight = DefaultToolbarHeight
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return &Synchronizer{
		driver:        o.Driver,
		surface:       o.Surface,
		raster:        o.Raster,
		editor:        o.Editor,
		sessions:      o.Sessions,
		signals:       o.Signals,
		toolbarHeight: o.ToolbarHeight,
		log:           o.Logger,
	}
}

// Signals returns the bus the synchronizer listens on.
func (s *Synchronizer) Signals() *Signals {
	return s.signals
}

// Sessions returns the surface session tracker.
func (s *Synchronizer) Sessions() *Sessions {
	return s.sessions
}

// Run reacts to signals until ctx is done.
func (s *Synchronizer) Run(ctx context.Context) {
	ch, cancel := s.signals.Subscribe(32)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-ch:
			if !ok {
				return
			}
			s.handle(sig)
		}
	}
}

func (s *Synchronizer) handle(sig Signal) {
	if sig.Kind == ForceRedraw {
		if sig.Region == nil {
			s.raster.RepaintAll()
		} else {
			var scroll int
			s.raster.View(func(_ *image.RGBA, sc int) { scroll = sc })
			s.raster.Repaint(sig.Region.Sub(image.Pt(0, scroll)))
		}
	}
	s.Present()
}

// SurfaceCreated opens capture for a new surface and returns the session
// id the surface must present at teardown.
func (s *Synchronizer) SurfaceCreated() (string, error) {
	id := s.sessions.Begin()
	b := s.surface.Bounds()

	s.mu.Lock()
	err := s.driver.OpenCapture(
		[]image.Rectangle{b},
		[]image.Rectangle{image.Rect(b.Min.X, b.Min.Y, b.Max.X, b.Min.Y+s.toolbarHeight)},
	)
	s.mu.Unlock()
	if err != nil {
		s.sessions.End(id)
		return "", err
	}
	s.log.Info("surface created", "session", id, "bounds", b)

	// let the page catch up while the previous surface goes away
	s.signals.ForceRedraw(nil)
	return id, nil
}

// SurfaceChanged repaints everything, reapplies the pen and shows the
// result. While drawing the frame goes through Present, which suspends
// capture around the blit; otherwise capture is already off.
func (s *Synchronizer) SurfaceChanged() {
	s.raster.RepaintAll()
	s.applyPen()
	if s.editor.IsDrawing() {
		s.Present()
		return
	}
	s.blit()
}

// SurfaceDestroyed closes capture if id still owns it.
func (s *Synchronizer) SurfaceDestroyed(id string) error {
	if !s.sessions.End(id) {
		s.log.Info("ignoring teardown of stale surface", "session", id, "current", s.sessions.Current())
		return ErrStaleSurface
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.driver.CloseCapture()
}

// Present copies the raster and any mode overlay to the display. Capture
// is suspended during the copy so the hardware ink and the software frame
// do not fight. Nothing happens while drawing is disabled.
func (s *Synchronizer) Present() {
	if !s.editor.IsDrawing() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.driver.SetCaptureEnabled(false)
	s.blitLocked()
	s.driver.SetCaptureEnabled(true)
}

func (s *Synchronizer) blit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blitLocked()
}

func (s *Synchronizer) blitLocked() {
	frame, ok := s.surface.Lock()
	if !ok {
		return
	}

	var cut []geom.Point
	if s.editor.Mode() == editor.Select {
		cut = s.editor.Selection().Points()
	}

	s.raster.View(func(img *image.RGBA, scroll int) {
		draw.Draw(frame, img.Bounds(), img, image.Point{}, draw.Src)
		if len(cut) > 1 {
			s.drawSelection(frame, geom.Translate(cut, float32(-scroll)))
		}
	})
	s.surface.Post(frame)
}

var selectionColor = color.RGBA{R: 0x80, G: 0x80, B: 0x80, A: 0xff}

const selectionWidth = 5

// drawSelection outlines the cut boundary (view space) with a dashed line.
// The overlay context is kept between presents and only the area around
// the outline is composited onto dst. Must be called with s.mu held.
func (s *Synchronizer) drawSelection(dst draw.Image, cut []geom.Point) {
	b := dst.Bounds()
	if s.overlay == nil || s.overlay.Width() != b.Dx() || s.overlay.Height() != b.Dy() {
		if s.overlay != nil {
			s.overlay.Close()
		}
		s.overlay = gg.NewContext(b.Dx(), b.Dy())
	}
	dc := s.overlay
	dc.Clear()
	dc.ClearPath()

	dc.SetColor(selectionColor)
	dc.SetLineWidth(selectionWidth)
	dc.SetDash(20, 10)

	path := geom.PathFrom(cut)
	dc.MoveTo(float64(path.Points[0].X), float64(path.Points[0].Y))
	for _, p := range path.Points[1:] {
		dc.LineTo(float64(p.X), float64(p.Y))
	}
	if err := dc.Stroke(); err != nil {
		s.log.Warn("stroke selection outline", "error", err)
		return
	}

	area := path.Bounds().Pad(selectionWidth).Rect().Intersect(image.Rect(0, 0, b.Dx(), b.Dy()))
	if area.Empty() {
		return
	}
	draw.Draw(dst, area.Add(b.Min), dc.ResizeTarget(), area.Min, draw.Over)
}

func (s *Synchronizer) applyPen() {
	pen, setting := s.editor.Pen()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.driver.SetStrokeStyle(pen, setting.StrokeSize)
}

// OnPenChanged implements editor.Observer.
func (s *Synchronizer) OnPenChanged(pen state.PenType, setting editor.PenSetting) {
	s.log.Debug("pen changed", "pen", pen, "size", setting.StrokeSize)
	s.mu.Lock()
	s.driver.SetStrokeStyle(pen, setting.StrokeSize)
	s.mu.Unlock()
	s.Present()
}

// OnDrawingChanged implements editor.Observer. When drawing stops the last
// frame is blitted before capture goes off so the display holds the ink.
func (s *Synchronizer) OnDrawingChanged(drawing bool) {
	s.log.Debug("drawing changed", "drawing", drawing)
	s.mu.Lock()
	defer s.mu.Unlock()
	if drawing {
		s.driver.SetCaptureEnabled(true)
		return
	}
	s.blitLocked()
	s.driver.SetCaptureEnabled(false)
}

// OnToolbarChanged implements editor.Observer. An open toolbar reserves the
// whole top strip; a closed one only its toggle button.
func (s *Synchronizer) OnToolbarChanged(open bool) {
	b := s.surface.Bounds()
	width := s.toolbarHeight
	if open {
		width = b.Dx()
	}

	s.mu.Lock()
	err := s.driver.SetCaptureRegion(
		[]image.Rectangle{b},
		[]image.Rectangle{image.Rect(b.Min.X, b.Min.Y, b.Min.X+width, b.Min.Y+s.toolbarHeight)},
	)
	s.mu.Unlock()
	if err != nil {
		s.log.Error("update capture region", "error", err)
	}
	s.Present()
}

// OnModeChanged implements editor.Observer.
func (s *Synchronizer) OnModeChanged(m editor.Mode) {
	s.log.Debug("mode changed", "mode", m)
	s.Present()
}
