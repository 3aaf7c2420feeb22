package input

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"sync"

	"InkBoard/internal/editor"
	"InkBoard/internal/geom"
	"InkBoard/internal/state"
)

var (
	// ErrQueueFull is returned by Deliver when the page's queue has no room.
	// The batch is dropped; the caller is never blocked.
	ErrQueueFull = errors.New("input: batch queue full")
	// ErrClosed is returned by Deliver after Close.
	ErrClosed = errors.New("input: router closed")
)

const (
	DefaultQueueSize    = 64
	DefaultEraserRadius = 6
)

// Batch is one delivery of raw pen samples, in view coordinates.
type Batch []geom.Point

// item is one unit of page work: a pen batch, or a scroll when batch is nil.
type item struct {
	batch  Batch
	scroll int
}

// Strokes is the stroke store the router mutates.
type Strokes interface {
	Add(ctx context.Context, strokes []state.Stroke)
	Remove(ctx context.Context, ids []string) []state.Stroke
	Intersecting(area geom.Box) []state.Stroke
}

// Viewport is the raster cache the router repaints and scrolls.
type Viewport interface {
	Repaint(area image.Rectangle)
	Scroll(delta int) int
	ScrollOffset() int
}

// Presenter copies the raster to the display.
type Presenter interface {
	Present()
}

// Editor exposes the declarative state read at dispatch time.
type Editor interface {
	Snapshot() editor.Snapshot
	Selection() *editor.Selection
}

// Config tunes a Router.
type Config struct {
	QueueSize         int
	EraserRadius      float64
	SimplifyTolerance float64
	// Scrolled runs on the worker after a scroll moved the page.
	Scrolled func(applied int)
}

// Router dispatches pen batches of one page to draw, erase or select
// handling. Batches and scrolls are queued and handled one at a time by a
// single worker, so a scroll never lands inside a draw or erase and Deliver
// never waits on them.
type Router struct {
	ctx       context.Context
	pageID    string
	strokes   Strokes
	viewport  Viewport
	presenter Presenter
	editor    Editor
	cfg       Config
	log       *slog.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan item
	done   chan struct{}
}

// NewRouter starts the page's worker. ctx is used for durable writes made
// while handling batches.
func NewRouter(ctx context.Context, pageID string, strokes Strokes, viewport Viewport, presenter Presenter, ed Editor, cfg Config, log *slog.Logger) *Router {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.EraserRadius <= 0 {
		cfg.EraserRadius = DefaultEraserRadius
	}
	if log == nil {
		log = slog.Default()
	}

	r := &Router{
		ctx:       ctx,
		pageID:    pageID,
		strokes:   strokes,
		viewport:  viewport,
		presenter: presenter,
		editor:    ed,
		cfg:       cfg,
		log:       log.With("page", pageID),
		queue:     make(chan item, cfg.QueueSize),
		done:      make(chan struct{}),
	}
	go r.run()
	return r
}

// PageID returns the page the router serves.
func (r *Router) PageID() string {
	return r.pageID
}

// Deliver enqueues a batch and returns immediately. It is safe to call from
// the driver's delivery callback.
func (r *Router) Deliver(b Batch) error {
	if len(b) == 0 {
		return nil
	}
	if err := r.enqueue(item{batch: b}); err != nil {
		if errors.Is(err, ErrQueueFull) {
			r.log.Warn("dropping pen batch, queue full", "points", len(b))
		}
		return err
	}
	return nil
}

// Scroll queues a scroll of delta document rows behind the pending batches.
func (r *Router) Scroll(delta int) error {
	if delta == 0 {
		return nil
	}
	if err := r.enqueue(item{scroll: delta}); err != nil {
		if errors.Is(err, ErrQueueFull) {
			r.log.Warn("dropping scroll, queue full", "delta", delta)
		}
		return err
	}
	return nil
}

func (r *Router) enqueue(it item) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return ErrClosed
	}
	select {
	case r.queue <- it:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting batches, lets the worker drain what is queued and
// waits for it.
func (r *Router) Close() {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()
	<-r.done
}

func (r *Router) run() {
	defer close(r.done)
	for it := range r.queue {
		if it.batch == nil {
			r.handleScroll(it.scroll)
			continue
		}
		r.dispatch(it.batch)
	}
}

func (r *Router) handleScroll(delta int) {
	applied := r.viewport.Scroll(delta)
	if applied == 0 {
		return
	}
	r.presenter.Present()
	if r.cfg.Scrolled != nil {
		r.cfg.Scrolled(applied)
	}
}

func (r *Router) dispatch(b Batch) {
	snap := r.editor.Snapshot()
	switch snap.Mode {
	case editor.Draw:
		r.handleDraw(snap, b)
	case editor.Erase:
		r.handleErase(b)
	case editor.Select:
		r.handleSelect(b)
	}
}

// handleDraw turns the batch into one stroke with the active pen. The
// stroke is painted into the raster so later presents and snapshots carry
// it, but nothing is presented: the hardware overlay already shows the ink.
func (r *Router) handleDraw(snap editor.Snapshot, b Batch) {
	scroll := r.viewport.ScrollOffset()
	pts := geom.Translate(b, float32(scroll))
	path := geom.PathFrom(pts).Simplify(r.cfg.SimplifyTolerance)

	s, err := state.NewStroke(snap.Pen, snap.Setting.Color, snap.Setting.StrokeSize, path.Points)
	if err != nil {
		r.log.Error("build stroke", "error", err)
		return
	}
	r.strokes.Add(r.ctx, []state.Stroke{s})
	r.viewport.Repaint(s.Bounds.Translate(float32(-scroll)).Rect())
}

func (r *Router) handleErase(b Batch) {
	scroll := r.viewport.ScrollOffset()
	pts := geom.Translate(b, float32(scroll))

	hits := r.hitStrokes(pts)
	if len(hits) > 0 {
		removed := r.strokes.Remove(r.ctx, hits)
		if len(removed) > 0 {
			area := removed[0].Bounds
			for _, s := range removed[1:] {
				area = area.Union(s.Bounds)
			}
			r.viewport.Repaint(area.Translate(float32(-scroll)).Rect())
			r.log.Debug("erased strokes", "count", len(removed))
		}
	}
	r.presenter.Present()
}

// hitStrokes returns the ids of strokes touched by the eraser samples: a
// bounding-box pass over the padded eraser area, then a distance test
// against each candidate's polyline.
func (r *Router) hitStrokes(pts []geom.Point) []string {
	bounds, err := geom.BoundsOf(pts)
	if err != nil {
		return nil
	}
	radius := r.cfg.EraserRadius

	var ids []string
	for _, c := range r.strokes.Intersecting(bounds.Pad(float32(radius))) {
		path := c.Path()
		reach := radius + float64(c.Size)/2
		for _, p := range pts {
			if !geom.HitTest(c.Bounds, geom.Box{Top: p.Y, Bottom: p.Y, Left: p.X, Right: p.X}.Pad(float32(radius))) {
				continue
			}
			if path.Near(p, reach) {
				ids = append(ids, c.ID)
				break
			}
		}
	}
	return ids
}

func (r *Router) handleSelect(b Batch) {
	pts := geom.Translate(b, float32(r.viewport.ScrollOffset()))
	r.editor.Selection().Extend(pts)
	r.presenter.Present()
}
