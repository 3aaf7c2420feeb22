package page

import (
	"context"
	"image"
	"image/draw"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"InkBoard/internal/editor"
	"InkBoard/internal/geom"
	"InkBoard/internal/input"
	"InkBoard/internal/persist"
	"InkBoard/internal/raster"
	"InkBoard/internal/state"
)

func seed(t *testing.T, repo state.Repository, pageID string, y float32) state.Stroke {
	t.Helper()
	s, err := state.NewStroke(state.Ballpen, 0xff000000, 4, []geom.Point{{X: 20, Y: y}, {X: 120, Y: y + 10}})
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), pageID, []state.Stroke{s}))
	return s
}

func options(repo state.Repository, cache raster.CacheStore) Options {
	return Options{
		PageID:     "p1",
		ViewWidth:  160,
		ViewHeight: 120,
		Repository: repo,
		Cache:      cache,
		Debounce:   time.Hour,
		ThumbWidth: 80,
	}
}

func closeSession(t *testing.T, s *Session) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Close(ctx))
}

func TestOpenColdPaintsAndPersists(t *testing.T) {
	repo := persist.NewMemoryRepository()
	cache := persist.NewFileCache(t.TempDir())
	seed(t, repo, "p1", 40)

	s, err := Open(context.Background(), options(repo, cache))
	require.NoError(t, err)
	defer closeSession(t, s)

	assert.False(t, s.Cached())
	assert.Equal(t, 1, s.Store().Len())
	assert.True(t, cache.Exists(raster.Full, "p1"))
	assert.True(t, cache.Exists(raster.Thumb, "p1"))

	img, err := s.Snapshots().Load("p1")
	require.NoError(t, err)
	assert.Equal(t, s.Viewport().Snapshot().Pix, toRGBA(img).Pix)
}

func TestOpenWarmLoadsStrokesInBackground(t *testing.T) {
	repo := persist.NewMemoryRepository()
	cache := persist.NewFileCache(t.TempDir())
	seed(t, repo, "p1", 40)

	cold, err := Open(context.Background(), options(repo, cache))
	require.NoError(t, err)
	want := cold.Viewport().Snapshot()
	closeSession(t, cold)

	warm, err := Open(context.Background(), options(repo, cache))
	require.NoError(t, err)
	defer closeSession(t, warm)

	assert.True(t, warm.Cached())
	assert.Equal(t, want.Pix, warm.Viewport().Snapshot().Pix)
	require.Eventually(t, func() bool { return warm.Store().Len() == 1 }, time.Second, 5*time.Millisecond)
}

func TestOpenUnreadableCacheFallsBackToCold(t *testing.T) {
	repo := persist.NewMemoryRepository()
	cache := persist.NewFileCache(t.TempDir())
	seed(t, repo, "p1", 40)
	require.NoError(t, cache.Write(raster.Full, "p1", []byte("not an image")))

	s, err := Open(context.Background(), options(repo, cache))
	require.NoError(t, err)
	defer closeSession(t, s)

	assert.False(t, s.Cached())
	_, err = s.Snapshots().Load("p1")
	assert.NoError(t, err)
}

func TestOpenCachedAtWrongSizeFallsBackToCold(t *testing.T) {
	repo := persist.NewMemoryRepository()
	cache := persist.NewFileCache(t.TempDir())
	snaps := raster.NewSnapshotter(cache, 0, nil)
	require.NoError(t, snaps.Persist(context.Background(), "p1", image.NewRGBA(image.Rect(0, 0, 10, 10))))

	s, err := Open(context.Background(), options(repo, cache))
	require.NoError(t, err)
	defer closeSession(t, s)
	assert.False(t, s.Cached())
}

func TestScrollIsStored(t *testing.T) {
	repo := persist.NewMemoryRepository()
	cache := persist.NewFileCache(t.TempDir())
	require.NoError(t, repo.UpdateScroll(context.Background(), "p1", 30))

	s, err := Open(context.Background(), options(repo, cache))
	require.NoError(t, err)
	assert.Equal(t, 30, s.Page().Scroll)

	require.NoError(t, s.Scroll(-100))
	require.NoError(t, s.Scroll(-1))
	require.NoError(t, s.Scroll(250))
	closeSession(t, s)

	rec, err := repo.GetWithStrokes(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 250, rec.Scroll)

	p := s.Page()
	assert.Equal(t, 250, p.Scroll)
	assert.Equal(t, 120, p.DocumentHeight)
	assert.Equal(t, 160, p.ViewWidth)
}

func TestScrollAfterCloseIsRejected(t *testing.T) {
	repo := persist.NewMemoryRepository()
	cache := persist.NewFileCache(t.TempDir())

	s, err := Open(context.Background(), options(repo, cache))
	require.NoError(t, err)
	require.NoError(t, s.Scroll(40))
	closeSession(t, s)

	assert.ErrorIs(t, s.Scroll(10), input.ErrClosed)
	assert.Equal(t, 40, s.Page().Scroll)
	scroll, err := repo.Scroll(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 40, scroll)
}

func TestCloseFlushesPendingSnapshot(t *testing.T) {
	repo := persist.NewMemoryRepository()
	cache := persist.NewFileCache(t.TempDir())

	s, err := Open(context.Background(), options(repo, cache))
	require.NoError(t, err)
	blank := s.Viewport().Snapshot()

	require.NoError(t, s.Deliver(input.Batch{{X: 10, Y: 60, Pressure: 1}, {X: 150, Y: 60, Pressure: 1}}))
	closeSession(t, s)

	assert.Equal(t, 1, s.Store().Len())
	img, err := s.Snapshots().Load("p1")
	require.NoError(t, err)
	got := toRGBA(img)
	assert.Equal(t, s.Viewport().Snapshot().Pix, got.Pix)
	assert.NotEqual(t, blank.Pix, got.Pix)

	rec, err := repo.GetWithStrokes(context.Background(), "p1")
	require.NoError(t, err)
	assert.Len(t, rec.Strokes, 1)
}

type nopDriver struct{}

func (nopDriver) OpenCapture(_, _ []image.Rectangle) error      { return nil }
func (nopDriver) SetCaptureRegion(_, _ []image.Rectangle) error { return nil }
func (nopDriver) CloseCapture() error                           { return nil }
func (nopDriver) SetCaptureEnabled(bool)                        {}
func (nopDriver) SetStrokeStyle(state.PenType, float32)         {}

type frameSurface struct {
	mu    sync.Mutex
	frame *image.RGBA
	posts int
}

func (f *frameSurface) Bounds() image.Rectangle  { return f.frame.Bounds() }
func (f *frameSurface) Lock() (draw.Image, bool) { return f.frame, true }
func (f *frameSurface) Post(draw.Image) {
	f.mu.Lock()
	f.posts++
	f.mu.Unlock()
}

func (f *frameSurface) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.posts
}

func TestEraseIsPresented(t *testing.T) {
	repo := persist.NewMemoryRepository()
	cache := persist.NewFileCache(t.TempDir())
	seed(t, repo, "p1", 40)
	surface := &frameSurface{frame: image.NewRGBA(image.Rect(0, 0, 160, 120))}
	ed := editor.New()

	o := options(repo, cache)
	o.Driver = nopDriver{}
	o.Surface = surface
	o.Editor = ed
	s, err := Open(context.Background(), o)
	require.NoError(t, err)
	require.NotNil(t, s.Synchronizer())

	ed.SetMode(editor.Erase)
	before := surface.count()
	require.NoError(t, s.Deliver(input.Batch{{X: 70, Y: 45}}))
	closeSession(t, s)

	assert.Zero(t, s.Store().Len())
	assert.Greater(t, surface.count(), before)
	assert.Equal(t, s.Viewport().Snapshot().Pix, surface.frame.Pix)
}

func TestCloseTwice(t *testing.T) {
	s, err := Open(context.Background(), options(persist.NewMemoryRepository(), persist.NewFileCache(t.TempDir())))
	require.NoError(t, err)
	closeSession(t, s)
	closeSession(t, s)
}

func toRGBA(img image.Image) *image.RGBA {
	out := image.NewRGBA(img.Bounds())
	draw.Draw(out, out.Bounds(), img, img.Bounds().Min, draw.Src)
	return out
}
