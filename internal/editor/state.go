// Package editor holds the declarative editor state the canvas reacts to:
// interaction mode, active pen and its settings, whether drawing is enabled,
// whether the toolbar is open, and the transient selection region.
//
// Every field has its own change event; observers subscribe once and are
// notified only when the value actually changes.
package editor

import (
	"fmt"
	"sync"

	"InkBoard/internal/geom"
	"InkBoard/internal/state"
)

// Mode is the pen interaction mode.
type Mode int

const (
	Draw Mode = iota
	Erase
	Select
)

func (m Mode) String() string {
	switch m {
	case Draw:
		return "draw"
	case Erase:
		return "erase"
	case Select:
		return "select"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// PenSetting is the per-pen configuration.
type PenSetting struct {
	StrokeSize float32
	Color      uint32 // 0xAARRGGBB
}

// DefaultPenSettings is used when a State is created without settings.
func DefaultPenSettings() map[state.PenType]PenSetting {
	return map[state.PenType]PenSetting{
		state.Ballpen:  {StrokeSize: 3, Color: 0xff000000},
		state.Fountain: {StrokeSize: 5, Color: 0xff000000},
		state.Marker:   {StrokeSize: 30, Color: 0xffffd400},
		state.Pencil:   {StrokeSize: 2, Color: 0xd0505050},
	}
}

// Observer receives one event per changed field. Callbacks run on the
// goroutine that made the change and must not block.
type Observer interface {
	OnModeChanged(Mode)
	OnPenChanged(state.PenType, PenSetting)
	OnDrawingChanged(bool)
	OnToolbarChanged(bool)
}

// ObserverFuncs adapts optional callbacks to Observer.
type ObserverFuncs struct {
	Mode    func(Mode)
	Pen     func(state.PenType, PenSetting)
	Drawing func(bool)
	Toolbar func(bool)
}

func (f ObserverFuncs) OnModeChanged(m Mode) {
	if f.Mode != nil {
		f.Mode(m)
	}
}

func (f ObserverFuncs) OnPenChanged(p state.PenType, s PenSetting) {
	if f.Pen != nil {
		f.Pen(p, s)
	}
}

func (f ObserverFuncs) OnDrawingChanged(b bool) {
	if f.Drawing != nil {
		f.Drawing(b)
	}
}

func (f ObserverFuncs) OnToolbarChanged(b bool) {
	if f.Toolbar != nil {
		f.Toolbar(b)
	}
}

// Snapshot is a consistent copy of the state.
type Snapshot struct {
	Mode          Mode
	Pen           state.PenType
	Setting       PenSetting
	IsDrawing     bool
	IsToolbarOpen bool
}

// State is the editor state shared by the input pipeline and the render
// synchronizer.
type State struct {
	mu        sync.RWMutex
	mode      Mode
	pen       state.PenType
	settings  map[state.PenType]PenSetting
	drawing   bool
	toolbar   bool
	observers map[int]Observer
	nextID    int

	selection Selection
}

// New returns a state in draw mode with the ballpen and drawing enabled.
func New() *State {
	return &State{
		pen:       state.Ballpen,
		settings:  DefaultPenSettings(),
		drawing:   true,
		observers: make(map[int]Observer),
	}
}

// Subscribe registers o and returns a function that removes it.
func (s *State) Subscribe(o Observer) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.observers[id] = o
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

func (s *State) snapshotObservers() []Observer {
	out := make([]Observer, 0, len(s.observers))
	for _, o := range s.observers {
		out = append(out, o)
	}
	return out
}

// Snapshot returns the current values.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Mode:          s.mode,
		Pen:           s.pen,
		Setting:       s.settings[s.pen],
		IsDrawing:     s.drawing,
		IsToolbarOpen: s.toolbar,
	}
}

func (s *State) Mode() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// SetMode switches the interaction mode. Leaving select mode drops the
// selection.
func (s *State) SetMode(m Mode) {
	s.mu.Lock()
	if s.mode == m {
		s.mu.Unlock()
		return
	}
	prev := s.mode
	s.mode = m
	obs := s.snapshotObservers()
	s.mu.Unlock()

	if prev == Select {
		s.selection.Clear()
	}
	for _, o := range obs {
		o.OnModeChanged(m)
	}
}

// Pen returns the active pen and its setting.
func (s *State) Pen() (state.PenType, PenSetting) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pen, s.settings[s.pen]
}

// SetPen selects the active pen.
func (s *State) SetPen(p state.PenType) {
	s.mu.Lock()
	if s.pen == p {
		s.mu.Unlock()
		return
	}
	s.pen = p
	setting := s.settings[p]
	obs := s.snapshotObservers()
	s.mu.Unlock()

	for _, o := range obs {
		o.OnPenChanged(p, setting)
	}
}

// SetPenSetting updates the setting of pen p. Observers hear about it only
// when p is the active pen.
func (s *State) SetPenSetting(p state.PenType, setting PenSetting) {
	s.mu.Lock()
	if s.settings[p] == setting {
		s.mu.Unlock()
		return
	}
	s.settings[p] = setting
	active := s.pen == p
	obs := s.snapshotObservers()
	s.mu.Unlock()

	if !active {
		return
	}
	for _, o := range obs {
		o.OnPenChanged(p, setting)
	}
}

func (s *State) IsDrawing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.drawing
}

// SetDrawing enables or disables pen input on the canvas.
func (s *State) SetDrawing(b bool) {
	s.mu.Lock()
	if s.drawing == b {
		s.mu.Unlock()
		return
	}
	s.drawing = b
	obs := s.snapshotObservers()
	s.mu.Unlock()

	for _, o := range obs {
		o.OnDrawingChanged(b)
	}
}

func (s *State) IsToolbarOpen() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.toolbar
}

func (s *State) SetToolbarOpen(b bool) {
	s.mu.Lock()
	if s.toolbar == b {
		s.mu.Unlock()
		return
	}
	s.toolbar = b
	obs := s.snapshotObservers()
	s.mu.Unlock()

	for _, o := range obs {
		o.OnToolbarChanged(b)
	}
}

// Selection returns the transient selection region.
func (s *State) Selection() *Selection {
	return &s.selection
}

// Selection is the cut boundary being drawn in select mode, in document
// space.
type Selection struct {
	mu  sync.RWMutex
	cut []geom.Point
}

// Extend appends points to the boundary.
func (sel *Selection) Extend(points []geom.Point) {
	sel.mu.Lock()
	defer sel.mu.Unlock()
	sel.cut = append(sel.cut, points...)
}

// Points returns a copy of the boundary, nil when empty.
func (sel *Selection) Points() []geom.Point {
	sel.mu.RLock()
	defer sel.mu.RUnlock()
	if len(sel.cut) == 0 {
		return nil
	}
	return append([]geom.Point(nil), sel.cut...)
}

func (sel *Selection) Clear() {
	sel.mu.Lock()
	defer sel.mu.Unlock()
	sel.cut = nil
}
