package render

import (
	"image"
	"sync"
)

// Kind tells subscribers what a signal asks for.
type Kind int

const (
	// ForceRedraw asks for a repaint of Region (document space) followed by
	// a present. A nil Region means the whole viewport.
	ForceRedraw Kind = iota
	// Refresh asks for a present only.
	Refresh
)

// Signal is one produced notification.
type Signal struct {
	Kind   Kind
	Region *image.Rectangle
}

// Signals broadcasts force-redraw and refresh notifications to any number
// of subscribers. Emitting never blocks: a subscriber that falls behind has
// its oldest pending signal replaced by a whole-viewport redraw, which
// subsumes whatever was dropped.
type Signals struct {
	mu   sync.RWMutex
	subs map[int]chan Signal
	next int
}

func NewSignals() *Signals {
	return &Signals{subs: make(map[int]chan Signal)}
}

// Subscribe returns a channel receiving every later signal, and a function
// that closes it.
func (s *Signals) Subscribe(buffer int) (<-chan Signal, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Signal, buffer)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			close(ch)
		})
	}
}

// ForceRedraw emits a force-redraw for region, or the whole viewport when
// region is nil.
func (s *Signals) ForceRedraw(region *image.Rectangle) {
	if region != nil {
		r := *region
		region = &r
	}
	s.emit(Signal{Kind: ForceRedraw, Region: region})
}

// Refresh emits a refresh.
func (s *Signals) Refresh() {
	s.emit(Signal{Kind: Refresh})
}

func (s *Signals) emit(sig Signal) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- sig:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- Signal{Kind: ForceRedraw}:
		default:
		}
	}
}
