// Package page ties the stroke store, the viewport raster and its snapshot
// cache, the input router and the render synchronizer of one open page
// together, and owns the page's startup and shutdown.
package page

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"InkBoard/internal/editor"
	"InkBoard/internal/input"
	"InkBoard/internal/raster"
	"InkBoard/internal/render"
	"InkBoard/internal/state"
)

// ScrollReader is implemented by repositories that can read a page's
// scroll offset without loading its strokes.
type ScrollReader interface {
	Scroll(ctx context.Context, pageID string) (int, error)
}

type Options struct {
	PageID     string
	ViewWidth  int
	ViewHeight int

	Repository state.Repository
	Cache      raster.CacheStore
	Editor     *editor.State

	// Driver and Surface are optional; without them nothing is presented.
	Driver        render.Driver
	Surface       render.Surface
	ToolbarHeight int

	Debounce   time.Duration
	Padding    int
	ThumbWidth int
	Input      input.Config
	Ledger     state.Ledger
	Logger     *slog.Logger
}

// Session is one open page.
type Session struct {
	id         string
	viewWidth  int
	viewHeight int
	repo       state.Repository
	editor     *editor.State
	log        *slog.Logger

	store     *state.Store
	viewport  *raster.Viewport
	snapshots *raster.Snapshotter
	debounce  *raster.Debouncer
	router    *input.Router
	sync      *render.Synchronizer

	ctx    context.Context
	cancel context.CancelFunc
	// bg holds background stroke loads and scroll writes.
	bg          errgroup.Group
	scrollMu    sync.Mutex
	runDone     chan struct{}
	unsubscribe func()
	closeOnce   sync.Once
	closed      chan struct{}
	closeErr    error
	cached      bool
}

// Open brings a page up. When a cached raster of the page exists it is shown
// at once and the strokes load in the background. Otherwise the strokes are
// loaded synchronously, the raster is painted from them and persisted before
// Open returns.
func Open(ctx context.Context, o Options) (*Session, error) {
	if o.PageID == "" {
		return nil, errors.New("page: empty page id")
	}
	if o.ViewWidth <= 0 || o.ViewHeight <= 0 {
		return nil, fmt.Errorf("page: invalid view size %dx%d", o.ViewWidth, o.ViewHeight)
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Editor == nil {
		o.Editor = editor.New()
	}
	log := o.Logger.With("page", o.PageID)

	s := &Session{
		id:         o.PageID,
		viewWidth:  o.ViewWidth,
		viewHeight: o.ViewHeight,
		repo:       o.Repository,
		editor:     o.Editor,
		log:        log,
		debounce:   raster.NewDebouncer(o.Debounce),
		runDone:    make(chan struct{}),
		closed:     make(chan struct{}),
	}
	s.ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))

	scroll, rec, err := s.readScroll(ctx)
	if err != nil {
		s.cancel()
		return nil, err
	}

	storeOpts := []state.StoreOption{state.WithLogger(o.Logger), state.OnChange(s.scheduleSnapshot)}
	if o.Padding > 0 {
		storeOpts = append(storeOpts, state.WithPadding(o.Padding))
	}
	if o.Ledger != nil {
		storeOpts = append(storeOpts, state.WithLedger(o.Ledger))
	}
	s.store = state.NewStore(o.PageID, o.ViewHeight, o.Repository, storeOpts...)
	s.viewport = raster.NewViewport(o.ViewWidth, o.ViewHeight, scroll, s.store, log)
	s.snapshots = raster.NewSnapshotter(o.Cache, o.ThumbWidth, log)

	s.cached = s.loadCached()
	if s.cached {
		s.store.BeginLoad()
		s.bg.Go(func() error {
			rec, err := o.Repository.GetWithStrokes(s.ctx, s.id)
			if err != nil {
				s.log.Error("background stroke load", "error", err)
				return err
			}
			s.store.Replace(rec.Strokes)
			s.log.Info("strokes loaded", "count", len(rec.Strokes))
			return nil
		})
	} else {
		if rec == nil {
			r, err := o.Repository.GetWithStrokes(ctx, s.id)
			if err != nil {
				s.cancel()
				return nil, fmt.Errorf("load page %s: %w", s.id, err)
			}
			rec = &r
		}
		s.store.Replace(rec.Strokes)
		s.viewport.RepaintAll()
		if err := s.snapshots.Persist(ctx, s.id, s.viewport.Snapshot()); err != nil {
			// the raster is a cache; a failed write only costs the next cold start
			s.log.Warn("persist initial snapshot", "error", err)
		}
	}

	var presenter input.Presenter = nopPresenter{}
	if o.Driver != nil && o.Surface != nil {
		s.sync = render.NewSynchronizer(render.Options{
			Driver:        o.Driver,
			Surface:       o.Surface,
			Raster:        s.viewport,
			Editor:        o.Editor,
			ToolbarHeight: o.ToolbarHeight,
			Logger:        log,
		})
		s.unsubscribe = o.Editor.Subscribe(s.sync)
		presenter = s.sync
		go func() {
			defer close(s.runDone)
			s.sync.Run(s.ctx)
		}()
	} else {
		s.unsubscribe = func() {}
		close(s.runDone)
	}

	inputCfg := o.Input
	inputCfg.Scrolled = s.scrolled
	s.router = input.NewRouter(s.ctx, s.id, s.store, s.viewport, presenter, o.Editor, inputCfg, log)

	log.Info("page opened", "scroll", scroll, "cached", s.cached, "view", fmt.Sprintf("%dx%d", o.ViewWidth, o.ViewHeight))
	return s, nil
}

// readScroll returns the stored scroll offset. Repositories that cannot read
// it alone are asked for the whole record, which is returned for reuse.
func (s *Session) readScroll(ctx context.Context) (int, *state.PageRecord, error) {
	if sr, ok := s.repo.(ScrollReader); ok {
		scroll, err := sr.Scroll(ctx, s.id)
		if err != nil {
			return 0, nil, fmt.Errorf("read scroll of %s: %w", s.id, err)
		}
		return scroll, nil, nil
	}
	rec, err := s.repo.GetWithStrokes(ctx, s.id)
	if err != nil {
		return 0, nil, fmt.Errorf("load page %s: %w", s.id, err)
	}
	return rec.Scroll, &rec, nil
}

func (s *Session) loadCached() bool {
	img, err := s.snapshots.Load(s.id)
	switch {
	case errors.Is(err, raster.ErrCacheMiss):
		s.log.Info("no cached raster")
		return false
	case err != nil:
		s.log.Warn("cached raster unreadable", "error", err)
		return false
	}
	if !s.viewport.Load(img) {
		s.log.Warn("cached raster has the wrong size", "size", img.Bounds().Size())
		return false
	}
	s.log.Info("page rendered from cache")
	return true
}

// scheduleSnapshot arms the debounced raster write.
func (s *Session) scheduleSnapshot() {
	s.debounce.Trigger(s.id, func() {
		if err := s.snapshots.Persist(s.ctx, s.id, s.viewport.Snapshot()); err != nil {
			s.log.Warn("persist snapshot", "error", err)
		}
	})
}

// Scroll queues a move of delta rows behind the pending pen batches. It
// never blocks; after Close it returns input.ErrClosed.
func (s *Session) Scroll(delta int) error {
	return s.router.Scroll(delta)
}

// scrolled runs on the router worker once a scroll moved the page. The new
// offset is stored in the background and a snapshot is scheduled. Close
// stops the worker before waiting on bg, so nothing is added to bg late.
func (s *Session) scrolled(int) {
	s.scheduleSnapshot()

	s.bg.Go(func() error {
		// always write the latest offset, so overlapping writes cannot
		// leave a stale one behind
		s.scrollMu.Lock()
		defer s.scrollMu.Unlock()
		if err := s.repo.UpdateScroll(s.ctx, s.id, s.viewport.ScrollOffset()); err != nil {
			s.log.Error("persist scroll", "error", err)
			return err
		}
		return nil
	})
}

// Deliver hands a pen batch to the page's router without blocking.
func (s *Session) Deliver(b input.Batch) error {
	return s.router.Deliver(b)
}

// Page returns a snapshot of the page's geometry.
func (s *Session) Page() state.Page {
	return state.Page{
		ID:             s.id,
		Scroll:         s.viewport.ScrollOffset(),
		ViewWidth:      s.viewWidth,
		ViewHeight:     s.viewHeight,
		DocumentHeight: s.store.DocumentHeight(),
	}
}

func (s *Session) ID() string                         { return s.id }
func (s *Session) Cached() bool                       { return s.cached }
func (s *Session) Store() *state.Store                { return s.store }
func (s *Session) Viewport() *raster.Viewport         { return s.viewport }
func (s *Session) Router() *input.Router              { return s.router }
func (s *Session) Snapshots() *raster.Snapshotter     { return s.snapshots }
func (s *Session) Synchronizer() *render.Synchronizer { return s.sync }

// Close drains the router, waits for background work, writes any pending
// snapshot and stops presentation. It returns ctx's error if ctx ends
// first; the shutdown still completes in the background.
func (s *Session) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		go func() {
			s.router.Close()
			err := s.bg.Wait()
			s.debounce.Flush(s.id)
			s.debounce.Stop()
			s.unsubscribe()
			s.cancel()
			<-s.runDone
			s.log.Info("page closed")
			s.closeErr = err
			close(s.closed)
		}()
	})

	select {
	case <-s.closed:
		return s.closeErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

type nopPresenter struct{}

func (nopPresenter) Present() {}
