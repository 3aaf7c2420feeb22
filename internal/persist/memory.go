package persist

import (
	"context"
	"sync"

	"InkBoard/internal/state"
)

// MemoryRepository is a volatile Repository, used when the database path
// is MemoryPath.
type MemoryRepository struct {
	mu      sync.Mutex
	scroll  map[string]int
	strokes map[string][]state.Stroke // by page, insertion order
	owner   map[string]string         // stroke id -> page id
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		scroll:  make(map[string]int),
		strokes: make(map[string][]state.Stroke),
		owner:   make(map[string]string),
	}
}

// Close is a no-op; everything is dropped with the repository.
func (m *MemoryRepository) Close() error { return nil }

func (m *MemoryRepository) Create(_ context.Context, pageID string, strokes []state.Stroke) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range strokes {
		if _, ok := m.owner[s.ID]; ok {
			continue
		}
		m.owner[s.ID] = pageID
		m.strokes[pageID] = append(m.strokes[pageID], s)
	}
	return nil
}

func (m *MemoryRepository) DeleteAll(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	gone := make(map[string]struct{}, len(ids))
	touched := make(map[string]struct{})
	for _, id := range ids {
		if page, ok := m.owner[id]; ok {
			gone[id] = struct{}{}
			touched[page] = struct{}{}
			delete(m.owner, id)
		}
	}
	for page := range touched {
		kept := m.strokes[page][:0:0]
		for _, s := range m.strokes[page] {
			if _, ok := gone[s.ID]; !ok {
				kept = append(kept, s)
			}
		}
		m.strokes[page] = kept
	}
	return nil
}

func (m *MemoryRepository) GetWithStrokes(_ context.Context, pageID string) (state.PageRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return state.PageRecord{
		Scroll:  m.scroll[pageID],
		Strokes: append([]state.Stroke(nil), m.strokes[pageID]...),
	}, nil
}

func (m *MemoryRepository) Scroll(_ context.Context, pageID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scroll[pageID], nil
}

func (m *MemoryRepository) UpdateScroll(_ context.Context, pageID string, scroll int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scroll[pageID] = scroll
	return nil
}

var _ state.Repository = (*MemoryRepository)(nil)
