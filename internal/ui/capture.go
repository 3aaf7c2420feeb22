package ui

import (
	"errors"
	"image"
	"sync"

	"InkBoard/internal/state"
)

var errCaptureClosed = errors.New("ui: capture is not open")

// capture is the mouse stand-in for the pen hardware's raw capture: which
// part of the board accepts ink, whether it is switched on and the style
// the live preview uses.
type capture struct {
	mu         sync.RWMutex
	open       bool
	enabled    bool
	limits     []image.Rectangle
	exclusions []image.Rectangle
	pen        state.PenType
	width      float32
}

func (c *capture) OpenCapture(limits, exclusions []image.Rectangle) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = true
	c.enabled = true
	c.limits = append([]image.Rectangle(nil), limits...)
	c.exclusions = append([]image.Rectangle(nil), exclusions...)
	return nil
}

func (c *capture) SetCaptureRegion(limits, exclusions []image.Rectangle) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return errCaptureClosed
	}
	c.limits = append([]image.Rectangle(nil), limits...)
	c.exclusions = append([]image.Rectangle(nil), exclusions...)
	return nil
}

func (c *capture) CloseCapture() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = false
	return nil
}

func (c *capture) SetCaptureEnabled(enabled bool) {
	c.mu.Lock()
	c.enabled = enabled
	c.mu.Unlock()
}

func (c *capture) SetStrokeStyle(pen state.PenType, width float32) {
	c.mu.Lock()
	c.pen, c.width = pen, width
	c.mu.Unlock()
}

// accepts reports whether a sample at p (view space) goes to the page.
func (c *capture) accepts(p image.Point) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.open || !c.enabled {
		return false
	}
	for _, ex := range c.exclusions {
		if p.In(ex) {
			return false
		}
	}
	for _, l := range c.limits {
		if p.In(l) {
			return true
		}
	}
	return false
}

func (c *capture) style() (state.PenType, float32) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pen, c.width
}
