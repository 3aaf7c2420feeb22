package state

import (
	"sync"
	"sync/atomic"
)

// Clock is a Lamport counter stamping history ops in commit order.
type Clock struct {
	counter atomic.Uint64
}

// Tick increments the clock and returns the new value.
func (c *Clock) Tick() uint64 {
	return c.counter.Add(1)
}

// Ledger receives committed mutations. The undo/redo history behind it is
// not this package's concern.
type Ledger interface {
	Record(op Op)
}

// Journal is an in-memory Ledger.
type Journal struct {
	mu  sync.RWMutex
	ops []Op
}

func NewJournal() *Journal {
	return &Journal{}
}

func (j *Journal) Record(op Op) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ops = append(j.ops, op)
}

// Ops returns a copy of everything recorded so far.
func (j *Journal) Ops() []Op {
	j.mu.RLock()
	defer j.mu.RUnlock()
	ops := make([]Op, len(j.ops))
	copy(ops, j.ops)
	return ops
}

type nopLedger struct{}

func (nopLedger) Record(Op) {}
