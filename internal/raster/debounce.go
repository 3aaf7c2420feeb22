package raster

import (
	"sync"
	"time"
)

// DefaultDebounce is the quiescence window before a snapshot is written.
const DefaultDebounce = 1000 * time.Millisecond

// Debouncer coalesces bursts of triggers per key into one call, run after
// the key has been quiet for the configured delay. A new trigger supersedes
// the pending one; the superseded action never runs.
type Debouncer struct {
	delay time.Duration

	mu      sync.Mutex
	pending map[string]*pendingCall
	closed  bool
	running int
	idle    *sync.Cond
}

type pendingCall struct {
	timer *time.Timer
	fn    func()
}

func NewDebouncer(delay time.Duration) *Debouncer {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	d := &Debouncer{delay: delay, pending: make(map[string]*pendingCall)}
	d.idle = sync.NewCond(&d.mu)
	return d
}

// Trigger (re)arms the timer for key with fn.
func (d *Debouncer) Trigger(key string, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}

	if p, ok := d.pending[key]; ok {
		p.timer.Stop()
	}
	p := &pendingCall{fn: fn}
	p.timer = time.AfterFunc(d.delay, func() { d.fire(key, p) })
	d.pending[key] = p
}

func (d *Debouncer) fire(key string, p *pendingCall) {
	d.mu.Lock()
	if d.pending[key] != p {
		// superseded or flushed meanwhile
		d.mu.Unlock()
		return
	}
	delete(d.pending, key)
	d.running++
	d.mu.Unlock()

	defer d.done()
	p.fn()
}

func (d *Debouncer) done() {
	d.mu.Lock()
	d.running--
	if d.running == 0 {
		d.idle.Broadcast()
	}
	d.mu.Unlock()
}

func (d *Debouncer) wait() {
	d.mu.Lock()
	for d.running > 0 {
		d.idle.Wait()
	}
	d.mu.Unlock()
}

// Pending reports whether key has an action waiting.
func (d *Debouncer) Pending(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.pending[key]
	return ok
}

// Flush runs key's pending action immediately and waits for any action
// already running. It reports whether something was pending.
func (d *Debouncer) Flush(key string) bool {
	d.mu.Lock()
	p, ok := d.pending[key]
	if ok {
		p.timer.Stop()
		delete(d.pending, key)
		d.running++
	}
	d.mu.Unlock()

	if ok {
		p.fn()
		d.done()
	}
	d.wait()
	return ok
}

// Stop drops every pending action and ignores later triggers. Actions
// already running are waited for.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	d.closed = true
	for key, p := range d.pending {
		p.timer.Stop()
		delete(d.pending, key)
	}
	d.mu.Unlock()
	d.wait()
}
