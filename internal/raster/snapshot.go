package raster

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

var (
	// ErrCacheMiss means no raster has been persisted for the page.
	ErrCacheMiss = errors.New("raster: no cached image")
	// ErrDecode means a cached raster exists but cannot be read. Callers
	// treat it like ErrCacheMiss.
	ErrDecode = errors.New("raster: cached image unreadable")
)

// Kind distinguishes the two images kept per page.
type Kind int

const (
	Full Kind = iota
	Thumb
)

func (k Kind) String() string {
	if k == Thumb {
		return "thumbs"
	}
	return "full"
}

// CacheStore is keyed storage for one full image and one thumbnail per page.
type CacheStore interface {
	Exists(kind Kind, pageID string) bool
	Read(kind Kind, pageID string) (io.ReadCloser, error)
	Write(kind Kind, pageID string, data []byte) error
}

// Snapshotter encodes and persists page rasters.
type Snapshotter struct {
	store      CacheStore
	thumbWidth int
	log        *slog.Logger
}

func NewSnapshotter(store CacheStore, thumbWidth int, log *slog.Logger) *Snapshotter {
	if log == nil {
		log = slog.Default()
	}
	if thumbWidth <= 0 {
		thumbWidth = DefaultThumbWidth
	}
	return &Snapshotter{store: store, thumbWidth: thumbWidth, log: log}
}

// Load returns the full-resolution raster of pageID.
func (s *Snapshotter) Load(pageID string) (image.Image, error) {
	return s.load(Full, pageID)
}

// LoadThumb returns the thumbnail of pageID.
func (s *Snapshotter) LoadThumb(pageID string) (image.Image, error) {
	return s.load(Thumb, pageID)
}

func (s *Snapshotter) load(kind Kind, pageID string) (image.Image, error) {
	if !s.store.Exists(kind, pageID) {
		return nil, ErrCacheMiss
	}
	rc, err := s.store.Read(kind, pageID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	defer rc.Close()

	img, err := Decode(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return img, nil
}

// Persist writes the full raster and its thumbnail concurrently.
func (s *Snapshotter) Persist(ctx context.Context, pageID string, img image.Image) error {
	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var buf bytes.Buffer
		if err := EncodeFull(&buf, img); err != nil {
			return fmt.Errorf("encode full: %w", err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		return s.store.Write(Full, pageID, buf.Bytes())
	})
	g.Go(func() error {
		var buf bytes.Buffer
		if err := EncodeThumb(&buf, img, s.thumbWidth); err != nil {
			return fmt.Errorf("encode thumbnail: %w", err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		return s.store.Write(Thumb, pageID, buf.Bytes())
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("persist snapshot %s: %w", pageID, err)
	}
	s.log.Debug("persisted snapshot", "page", pageID, "took", time.Since(start))
	return nil
}
