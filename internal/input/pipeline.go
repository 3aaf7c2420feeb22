package input

import (
	"errors"
	"sync"
)

// ErrUnknownPage is returned when a batch targets a page with no router.
var ErrUnknownPage = errors.New("input: no router for page")

// Pipeline fans batches out to per-page routers. Pages are independent:
// their workers run concurrently with no ordering between them.
type Pipeline struct {
	mu      sync.RWMutex
	routers map[string]*Router
}

func NewPipeline() *Pipeline {
	return &Pipeline{routers: make(map[string]*Router)}
}

// Attach registers r under its page id, replacing and closing any router
// previously attached for that page.
func (p *Pipeline) Attach(r *Router) {
	p.mu.Lock()
	old := p.routers[r.PageID()]
	p.routers[r.PageID()] = r
	p.mu.Unlock()

	if old != nil && old != r {
		old.Close()
	}
}

// Detach removes the page's router if it is r. The router is not closed.
func (p *Pipeline) Detach(r *Router) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.routers[r.PageID()] == r {
		delete(p.routers, r.PageID())
	}
}

// Deliver hands b to the page's router without blocking.
func (p *Pipeline) Deliver(pageID string, b Batch) error {
	p.mu.RLock()
	r := p.routers[pageID]
	p.mu.RUnlock()
	if r == nil {
		return ErrUnknownPage
	}
	return r.Deliver(b)
}

// Pages lists the attached page ids.
func (p *Pipeline) Pages() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, 0, len(p.routers))
	for id := range p.routers {
		out = append(out, id)
	}
	return out
}

// Close closes every attached router, draining their queues.
func (p *Pipeline) Close() {
	p.mu.Lock()
	routers := p.routers
	p.routers = make(map[string]*Router)
	p.mu.Unlock()

	var wg sync.WaitGroup
	for _, r := range routers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Close()
		}()
	}
	wg.Wait()
}
