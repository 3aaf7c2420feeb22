package render

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"InkBoard/internal/editor"
	"InkBoard/internal/geom"
	"InkBoard/internal/state"
)

type call struct {
	name    string
	enabled bool
	excl    []image.Rectangle
}

type fakeDriver struct {
	mu        sync.Mutex
	calls     []call
	pen       state.PenType
	width     float32
	capturing bool
}

func (d *fakeDriver) record(c call) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, c)
}

func (d *fakeDriver) OpenCapture(_, excl []image.Rectangle) error {
	d.mu.Lock()
	d.capturing = true
	d.mu.Unlock()
	d.record(call{name: "open", excl: excl})
	return nil
}

func (d *fakeDriver) SetCaptureRegion(_, excl []image.Rectangle) error {
	d.record(call{name: "region", excl: excl})
	return nil
}

func (d *fakeDriver) CloseCapture() error {
	d.record(call{name: "close"})
	return nil
}

func (d *fakeDriver) SetCaptureEnabled(enabled bool) {
	d.mu.Lock()
	d.capturing = enabled
	d.mu.Unlock()
	d.record(call{name: "enable", enabled: enabled})
}

func (d *fakeDriver) SetStrokeStyle(pen state.PenType, width float32) {
	d.mu.Lock()
	d.pen, d.width = pen, width
	d.mu.Unlock()
	d.record(call{name: "style"})
}

func (d *fakeDriver) names() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.calls))
	for _, c := range d.calls {
		out = append(out, c.name)
	}
	return out
}

func (d *fakeDriver) last(name string) (call, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := len(d.calls) - 1; i >= 0; i-- {
		if d.calls[i].name == name {
			return d.calls[i], true
		}
	}
	return call{}, false
}

func (d *fakeDriver) isCapturing() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.capturing
}

func (d *fakeDriver) reset() {
	d.mu.Lock()
	d.calls = nil
	d.mu.Unlock()
}

type fakeSurface struct {
	mu    sync.Mutex
	frame *image.RGBA
	posts int
	// hot counts frames posted while the driver was capturing
	driver *fakeDriver
	hot    int
}

func newSurface(w, h int) *fakeSurface {
	return &fakeSurface{frame: image.NewRGBA(image.Rect(0, 0, w, h))}
}

func (s *fakeSurface) Bounds() image.Rectangle { return s.frame.Bounds() }

func (s *fakeSurface) Lock() (draw.Image, bool) { return s.frame, true }

func (s *fakeSurface) Post(draw.Image) {
	s.mu.Lock()
	s.posts++
	if s.driver != nil && s.driver.isCapturing() {
		s.hot++
	}
	s.mu.Unlock()
}

func (s *fakeSurface) hotPosts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hot
}

func (s *fakeSurface) postCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.posts
}

type fakeRaster struct {
	mu         sync.Mutex
	img        *image.RGBA
	scroll     int
	repaints   []image.Rectangle
	repaintAll int
}

func newRaster(w, h, scroll int) *fakeRaster {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	return &fakeRaster{img: img, scroll: scroll}
}

func (r *fakeRaster) Bounds() image.Rectangle { return r.img.Bounds() }

func (r *fakeRaster) Repaint(area image.Rectangle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.repaints = append(r.repaints, area)
}

func (r *fakeRaster) RepaintAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.repaintAll++
}

func (r *fakeRaster) View(fn func(*image.RGBA, int)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r.img, r.scroll)
}

type fixture struct {
	driver  *fakeDriver
	surface *fakeSurface
	raster  *fakeRaster
	editor  *editor.State
	sync    *Synchronizer
}

func newFixture(scroll int) *fixture {
	f := &fixture{
		driver:  &fakeDriver{capturing: true},
		surface: newSurface(200, 300),
		raster:  newRaster(200, 300, scroll),
		editor:  editor.New(),
	}
	f.surface.driver = f.driver
	f.sync = NewSynchronizer(Options{
		Driver:  f.driver,
		Surface: f.surface,
		Raster:  f.raster,
		Editor:  f.editor,
	})
	f.editor.Subscribe(f.sync)
	return f
}

func TestPresentSuspendsCapture(t *testing.T) {
	f := newFixture(0)
	f.sync.Present()

	assert.Equal(t, []string{"enable", "enable"}, f.driver.names())
	assert.False(t, f.driver.calls[0].enabled)
	assert.True(t, f.driver.calls[1].enabled)
	assert.Equal(t, 1, f.surface.postCount())
	assert.Equal(t, color.RGBA{0xff, 0xff, 0xff, 0xff}, f.surface.frame.RGBAAt(10, 10))
}

func TestPresentSkippedWhileNotDrawing(t *testing.T) {
	f := newFixture(0)
	f.editor.SetDrawing(false)
	f.driver.reset()
	posts := f.surface.postCount()

	f.sync.Present()
	assert.Empty(t, f.driver.names())
	assert.Equal(t, posts, f.surface.postCount())
}

func TestDrawingOffBlitsBeforeDisabling(t *testing.T) {
	f := newFixture(0)
	f.editor.SetDrawing(false)

	assert.Equal(t, 1, f.surface.postCount())
	c, ok := f.driver.last("enable")
	require.True(t, ok)
	assert.False(t, c.enabled)

	f.editor.SetDrawing(true)
	c, _ = f.driver.last("enable")
	assert.True(t, c.enabled)
}

func TestSurfaceLifecycle(t *testing.T) {
	f := newFixture(0)

	first, err := f.sync.SurfaceCreated()
	require.NoError(t, err)
	second, err := f.sync.SurfaceCreated()
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	// the old surface is torn down after the new one took over
	assert.ErrorIs(t, f.sync.SurfaceDestroyed(first), ErrStaleSurface)
	assert.NotContains(t, f.driver.names(), "close")

	require.NoError(t, f.sync.SurfaceDestroyed(second))
	assert.Contains(t, f.driver.names(), "close")
	assert.ErrorIs(t, f.sync.SurfaceDestroyed(second), ErrStaleSurface)
}

func TestSurfaceCreatedExcludesToolbar(t *testing.T) {
	f := newFixture(0)
	_, err := f.sync.SurfaceCreated()
	require.NoError(t, err)

	c, ok := f.driver.last("open")
	require.True(t, ok)
	assert.Equal(t, []image.Rectangle{image.Rect(0, 0, 200, DefaultToolbarHeight)}, c.excl)
}

func TestSurfaceChangedReappliesPen(t *testing.T) {
	f := newFixture(0)
	f.editor.SetPenSetting(state.Marker, editor.PenSetting{StrokeSize: 30, Color: 0xff00ff00})
	f.editor.SetPen(state.Marker)
	f.driver.reset()
	posts := f.surface.postCount()

	f.sync.SurfaceChanged()
	assert.Equal(t, 1, f.raster.repaintAll)
	assert.Equal(t, state.Marker, f.driver.pen)
	assert.Equal(t, float32(30), f.driver.width)
	assert.Equal(t, posts+1, f.surface.postCount())
	assert.Zero(t, f.surface.hotPosts())
	assert.True(t, f.driver.isCapturing())
}

func TestSurfaceChangedNeverBlitsWhileCapturing(t *testing.T) {
	f := newFixture(0)
	_, err := f.sync.SurfaceCreated()
	require.NoError(t, err)

	f.sync.SurfaceChanged()
	assert.Equal(t, 1, f.surface.postCount())
	assert.Zero(t, f.surface.hotPosts())

	// drawing off: the frame still reaches the display, capture stays off
	f.editor.SetDrawing(false)
	posts, hot := f.surface.postCount(), f.surface.hotPosts()
	f.driver.reset()
	f.sync.SurfaceChanged()
	assert.Equal(t, posts+1, f.surface.postCount())
	assert.Equal(t, hot, f.surface.hotPosts())
	assert.NotContains(t, f.driver.names(), "enable")
}

func TestToolbarChangesCaptureRegion(t *testing.T) {
	f := newFixture(0)

	f.editor.SetToolbarOpen(true)
	c, ok := f.driver.last("region")
	require.True(t, ok)
	assert.Equal(t, []image.Rectangle{image.Rect(0, 0, 200, DefaultToolbarHeight)}, c.excl)

	f.editor.SetToolbarOpen(false)
	c, _ = f.driver.last("region")
	assert.Equal(t, []image.Rectangle{image.Rect(0, 0, DefaultToolbarHeight, DefaultToolbarHeight)}, c.excl)
}

func TestSelectionOverlayOnlyInSelectMode(t *testing.T) {
	f := newFixture(100)
	f.editor.SetMode(editor.Select)
	// document y 250 is view y 150
	f.editor.Selection().Extend([]geom.Point{{X: 20, Y: 250}, {X: 180, Y: 250}})

	f.sync.Present()
	assert.NotEqual(t, color.RGBA{0xff, 0xff, 0xff, 0xff}, f.surface.frame.RGBAAt(25, 150))
	assert.Equal(t, color.RGBA{0xff, 0xff, 0xff, 0xff}, f.surface.frame.RGBAAt(25, 250))

	f.editor.SetMode(editor.Draw)
	f.sync.Present()
	assert.Equal(t, color.RGBA{0xff, 0xff, 0xff, 0xff}, f.surface.frame.RGBAAt(25, 150))
}

func TestSelectionOverlayReusesContext(t *testing.T) {
	f := newFixture(0)
	f.editor.SetMode(editor.Select)
	f.editor.Selection().Extend([]geom.Point{{X: 20, Y: 100}, {X: 180, Y: 100}})

	f.sync.Present()
	first := f.sync.overlay
	require.NotNil(t, first)

	f.editor.Selection().Extend([]geom.Point{{X: 180, Y: 200}})
	f.sync.Present()
	assert.Same(t, first, f.sync.overlay)
	// away from the cut the frame is plain paper
	assert.Equal(t, color.RGBA{0xff, 0xff, 0xff, 0xff}, f.surface.frame.RGBAAt(25, 280))
	assert.NotEqual(t, color.RGBA{0xff, 0xff, 0xff, 0xff}, f.surface.frame.RGBAAt(180, 165))
}

func TestRunHandlesSignals(t *testing.T) {
	f := newFixture(100)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.sync.Run(ctx)
		close(done)
	}()

	// wait for the subscription
	require.Eventually(t, func() bool {
		f.sync.signals.mu.RLock()
		defer f.sync.signals.mu.RUnlock()
		return len(f.sync.signals.subs) == 1
	}, time.Second, time.Millisecond)

	region := image.Rect(0, 150, 50, 200)
	f.sync.Signals().ForceRedraw(&region)
	f.sync.Signals().Refresh()

	require.Eventually(t, func() bool { return f.surface.postCount() == 2 }, time.Second, time.Millisecond)
	f.raster.mu.Lock()
	assert.Equal(t, []image.Rectangle{image.Rect(0, 50, 50, 100)}, f.raster.repaints)
	f.raster.mu.Unlock()

	cancel()
	<-done
}

func TestSignalsOverflowCollapsesToRedraw(t *testing.T) {
	sig := NewSignals()
	ch, cancel := sig.Subscribe(1)
	defer cancel()

	r := image.Rect(0, 0, 1, 1)
	sig.ForceRedraw(&r)
	sig.Refresh()

	got := <-ch
	assert.Equal(t, ForceRedraw, got.Kind)
	assert.Nil(t, got.Region)
}

func TestSignalsCopiesRegion(t *testing.T) {
	sig := NewSignals()
	ch, cancel := sig.Subscribe(4)
	defer cancel()

	r := image.Rect(0, 0, 10, 10)
	sig.ForceRedraw(&r)
	r.Max.X = 99

	got := <-ch
	require.NotNil(t, got.Region)
	assert.Equal(t, 10, got.Region.Max.X)
}

func TestSessions(t *testing.T) {
	var s Sessions
	assert.False(t, s.IsCurrent(""))
	id := s.Begin()
	assert.True(t, s.IsCurrent(id))
	assert.Equal(t, id, s.Current())
	assert.True(t, s.End(id))
	assert.Empty(t, s.Current())
	assert.False(t, s.End(id))
}
