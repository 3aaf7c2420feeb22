package raster

import (
	"bytes"
	"context"
	"errors"
	"image"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memCache struct {
	mu    sync.Mutex
	files map[string][]byte
	fail  error
}

func newMemCache() *memCache {
	return &memCache{files: map[string][]byte{}}
}

func (m *memCache) key(kind Kind, pageID string) string {
	return kind.String() + "/" + pageID
}

func (m *memCache) Exists(kind Kind, pageID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[m.key(kind, pageID)]
	return ok
}

func (m *memCache) Read(kind Kind, pageID string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return io.NopCloser(bytes.NewReader(m.files[m.key(kind, pageID)])), nil
}

func (m *memCache) Write(kind Kind, pageID string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.files[m.key(kind, pageID)] = append([]byte(nil), data...)
	return nil
}

func TestSnapshotRoundTrip(t *testing.T) {
	cache := newMemCache()
	snap := NewSnapshotter(cache, 0, nil)
	src := fresh(sampleStrokes(t), 40).Snapshot()

	require.NoError(t, snap.Persist(context.Background(), "p1", src))

	full, err := snap.Load("p1")
	require.NoError(t, err)
	require.Equal(t, src.Bounds(), full.Bounds())
	for y := 0; y < src.Bounds().Dy(); y++ {
		for x := 0; x < src.Bounds().Dx(); x++ {
			r1, g1, b1, a1 := src.At(x, y).RGBA()
			r2, g2, b2, a2 := full.At(x, y).RGBA()
			require.Equal(t, [4]uint32{r1, g1, b1, a1}, [4]uint32{r2, g2, b2, a2}, "pixel %d,%d", x, y)
		}
	}

	thumb, err := snap.LoadThumb("p1")
	require.NoError(t, err)
	want := Thumbnail(src, DefaultThumbWidth)
	require.Equal(t, want.Bounds(), thumb.Bounds())
	assert.Equal(t, image.Rect(0, 0, 500, 416), thumb.Bounds())
	assert.Less(t, meanAbsDiff(want, thumb), 12.0)
}

func meanAbsDiff(a, b image.Image) float64 {
	var sum, n float64
	r := a.Bounds()
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			r1, g1, b1, _ := a.At(x, y).RGBA()
			r2, g2, b2, _ := b.At(x, y).RGBA()
			for _, d := range []int64{int64(r1>>8) - int64(r2>>8), int64(g1>>8) - int64(g2>>8), int64(b1>>8) - int64(b2>>8)} {
				if d < 0 {
					d = -d
				}
				sum += float64(d)
				n++
			}
		}
	}
	return sum / n
}

func TestSnapshotLoadErrors(t *testing.T) {
	cache := newMemCache()
	snap := NewSnapshotter(cache, 0, nil)

	_, err := snap.Load("nope")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, cache.Write(Full, "broken", []byte("not an image")))
	_, err = snap.Load("broken")
	assert.ErrorIs(t, err, ErrDecode)
}

func TestSnapshotPersistError(t *testing.T) {
	cache := newMemCache()
	cache.fail = errors.New("read-only")
	snap := NewSnapshotter(cache, 0, nil)

	err := snap.Persist(context.Background(), "p1", image.NewRGBA(image.Rect(0, 0, 4, 4)))
	assert.ErrorContains(t, err, "read-only")
}

func TestThumbnailKeepsAspect(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 1000, 1500))
	assert.Equal(t, image.Rect(0, 0, 500, 750), Thumbnail(img, 500).Bounds())
	assert.Equal(t, image.Rect(0, 0, 100, 150), Thumbnail(img, 100).Bounds())
}

func TestDebouncerCoalesces(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)
	var calls, last atomic.Int32

	for i := int32(1); i <= 5; i++ {
		d.Trigger("p1", func() {
			calls.Add(1)
			last.Store(i)
		})
	}
	assert.True(t, d.Pending("p1"))

	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, int32(5), last.Load())
	assert.False(t, d.Pending("p1"))
}

func TestDebouncerKeysAreIndependent(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	var a, b atomic.Int32
	d.Trigger("a", func() { a.Add(1) })
	d.Trigger("b", func() { b.Add(1) })

	assert.Eventually(t, func() bool { return a.Load() == 1 && b.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestDebouncerFlushAndStop(t *testing.T) {
	d := NewDebouncer(time.Hour)
	var calls atomic.Int32

	d.Trigger("p1", func() { calls.Add(1) })
	assert.True(t, d.Flush("p1"))
	assert.Equal(t, int32(1), calls.Load())
	assert.False(t, d.Flush("p1"))

	d.Trigger("p1", func() { calls.Add(1) })
	d.Stop()
	d.Trigger("p1", func() { calls.Add(1) })
	assert.False(t, d.Pending("p1"))
	assert.False(t, d.Flush("p1"))
	assert.Equal(t, int32(1), calls.Load())
}
