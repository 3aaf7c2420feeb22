package state

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"

	"InkBoard/internal/geom"
)

// DefaultPadding is the blank space kept below the lowest stroke.
const DefaultPadding = 50

// Repository is the durable stroke layer. Implementations are expected to be
// crash-consistent; the store never reads back what it just wrote.
type Repository interface {
	Create(ctx context.Context, pageID string, strokes []Stroke) error
	DeleteAll(ctx context.Context, ids []string) error
	GetWithStrokes(ctx context.Context, pageID string) (PageRecord, error)
	UpdateScroll(ctx context.Context, pageID string, scroll int) error
}

// Store is the authoritative in-memory stroke collection of one page.
type Store struct {
	pageID     string
	viewHeight int
	padding    int
	repo       Repository
	ledger     Ledger
	clock      Clock
	log        *slog.Logger
	onChange   func()

	// writeMu serializes mutations end to end, persistence included.
	writeMu sync.Mutex

	mu      sync.RWMutex
	strokes []Stroke
	height  int
	// removed holds ids erased while a load is pending, nil otherwise.
	removed map[string]struct{}

	idxMu sync.Mutex
	index atomic.Pointer[map[string]*Stroke]
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLedger sets where committed mutations are recorded.
func WithLedger(l Ledger) StoreOption {
	return func(s *Store) { s.ledger = l }
}

// WithPadding overrides DefaultPadding.
func WithPadding(p int) StoreOption {
	return func(s *Store) { s.padding = p }
}

// WithLogger sets the store's logger.
func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) { s.log = l }
}

// OnChange registers a hook run after every committed mutation. The page
// session uses it to schedule a raster snapshot.
func OnChange(fn func()) StoreOption {
	return func(s *Store) { s.onChange = fn }
}

// NewStore creates an empty store for pageID.
func NewStore(pageID string, viewHeight int, repo Repository, opts ...StoreOption) *Store {
	s := &Store{
		pageID:     pageID,
		viewHeight: viewHeight,
		padding:    DefaultPadding,
		repo:       repo,
		ledger:     nopLedger{},
		log:        slog.Default(),
		onChange:   func() {},
		height:     viewHeight,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("page", pageID)
	empty := map[string]*Stroke{}
	s.index.Store(&empty)
	return s
}

// PageID returns the page this store belongs to.
func (s *Store) PageID() string {
	return s.pageID
}

// Add appends strokes, grows the document height, persists them and updates
// the id index. The viewport is not repainted here.
func (s *Store) Add(ctx context.Context, strokes []Stroke) {
	if len(strokes) == 0 {
		return
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	s.strokes = append(s.strokes, strokes...)
	for _, st := range strokes {
		if h := s.bottomOf(st); h > s.height {
			s.height = h
		}
	}
	s.mu.Unlock()

	if err := s.repo.Create(ctx, s.pageID, strokes); err != nil {
		s.log.Error("persist strokes", "count", len(strokes), "error", err)
	}
	s.RebuildIndex()

	s.ledger.Record(Op{Type: OpInsertStroke, PageID: s.pageID, Strokes: strokes, Lamport: s.clock.Tick()})
	s.onChange()
}

// Remove drops every stroke whose id is in ids and returns the removed
// strokes. Unknown ids are ignored; if nothing matches the store is left
// untouched and nothing is persisted.
func (s *Store) Remove(ctx context.Context, ids []string) []Stroke {
	if len(ids) == 0 {
		return nil
	}
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	var removed []Stroke
	kept := make([]Stroke, 0, len(s.strokes))
	for _, st := range s.strokes {
		if _, ok := drop[st.ID]; ok {
			removed = append(removed, st)
			continue
		}
		kept = append(kept, st)
	}
	if len(removed) == 0 {
		s.mu.Unlock()
		return nil
	}
	s.strokes = kept
	s.height = s.computeHeight(kept)
	if s.removed != nil {
		for _, st := range removed {
			s.removed[st.ID] = struct{}{}
		}
	}
	s.mu.Unlock()

	removedIDs := make([]string, len(removed))
	for i, st := range removed {
		removedIDs[i] = st.ID
	}
	if err := s.repo.DeleteAll(ctx, removedIDs); err != nil {
		s.log.Error("delete strokes", "count", len(removedIDs), "error", err)
	}
	s.RebuildIndex()

	s.ledger.Record(Op{Type: OpDeleteStroke, PageID: s.pageID, Strokes: removed, Lamport: s.clock.Tick()})
	s.onChange()
	return removed
}

// BeginLoad marks a background load as pending. Until the matching Replace,
// removed ids are remembered so the load cannot bring them back.
func (s *Store) BeginLoad() {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.mu.Lock()
	if s.removed == nil {
		s.removed = make(map[string]struct{})
	}
	s.mu.Unlock()
}

// Replace swaps in a freshly loaded collection. Nothing is persisted or
// recorded; this is how background loading hands strokes over. Strokes
// already in the store that the loaded set lacks were added while the load
// was in flight; they are kept, after the loaded ones. Loaded strokes
// removed since BeginLoad are dropped.
func (s *Store) Replace(strokes []Stroke) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	loaded := make(map[string]struct{}, len(strokes))
	merged := make([]Stroke, 0, len(strokes)+len(s.strokes))
	for _, st := range strokes {
		if _, gone := s.removed[st.ID]; gone {
			continue
		}
		loaded[st.ID] = struct{}{}
		merged = append(merged, st)
	}
	s.removed = nil
	for _, st := range s.strokes {
		if _, ok := loaded[st.ID]; !ok {
			merged = append(merged, st)
		}
	}
	s.strokes = merged
	s.height = s.computeHeight(merged)
	s.mu.Unlock()

	s.RebuildIndex()
}

// Lookup resolves ids through the index. Unknown ids yield nil entries.
func (s *Store) Lookup(ids []string) []*Stroke {
	idx := *s.index.Load()
	out := make([]*Stroke, len(ids))
	for i, id := range ids {
		if st, ok := idx[id]; ok {
			cp := *st
			out[i] = &cp
		}
	}
	return out
}

// RebuildIndex rebuilds the id index from the current collection and swaps
// it in atomically. Readers see either the previous index or the new one.
func (s *Store) RebuildIndex() {
	s.idxMu.Lock()
	defer s.idxMu.Unlock()

	s.mu.RLock()
	snapshot := append([]Stroke(nil), s.strokes...)
	s.mu.RUnlock()

	idx := make(map[string]*Stroke, len(snapshot))
	for i := range snapshot {
		idx[snapshot[i].ID] = &snapshot[i]
	}
	s.index.Store(&idx)
}

// Strokes returns a copy of the collection in insertion order.
func (s *Store) Strokes() []Stroke {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Stroke(nil), s.strokes...)
}

// Len returns the number of strokes.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.strokes)
}

// Intersecting returns, in insertion order, the strokes whose padded bounds
// overlap area (document space).
func (s *Store) Intersecting(area geom.Box) []Stroke {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Stroke
	for _, st := range s.strokes {
		if geom.HitTest(st.Bounds, area) {
			out = append(out, st)
		}
	}
	return out
}

// DocumentHeight returns the current scrollable height of the page.
func (s *Store) DocumentHeight() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.height
}

func (s *Store) bottomOf(st Stroke) int {
	return int(math.Ceil(float64(st.Bounds.Bottom))) + s.padding
}

// computeHeight must be called with s.mu held.
func (s *Store) computeHeight(strokes []Stroke) int {
	h := s.viewHeight
	for _, st := range strokes {
		if b := s.bottomOf(st); b > h {
			h = b
		}
	}
	return h
}
