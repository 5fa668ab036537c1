package httpdl

import "context"

// Pool bounds the number of concurrently executing resource fetches.
// One pool is shared across every content item in flight, so the bound
// caps total concurrent connections for the whole pipeline rather than
// per content. Acquisition blocks until a slot frees or the context is
// cancelled.
type Pool struct {
	slots chan struct{}
}

// NewPool creates a pool with the given number of slots.
func NewPool(size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{slots: make(chan struct{}, size)}
}

// Acquire takes a slot, blocking until one frees.
func (p *Pool) Acquire(ctx context.Context) error {
	select {
	case p.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns a slot to the pool.
func (p *Pool) Release() {
	<-p.slots
}

// Size returns the pool's slot count.
func (p *Pool) Size() int {
	return cap(p.slots)
}
