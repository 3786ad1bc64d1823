// internal/browser/pool.go
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DefaultAcquireTimeout bounds how long Acquire waits for a free slot
const DefaultAcquireTimeout = 30 * time.Second

// TabPool bounds how many secondary tabs of one session are open at once.
// Tabs are never reused: every Acquire opens a fresh page and the returned
// release func closes it.
type TabPool struct {
	session Session
	slots   chan struct{}
	maxSize int
	timeout time.Duration
	mu      sync.RWMutex
	open    int
	total   int
	closed  bool
}

// NewTabPool creates a pool over session allowing maxSize concurrent tabs
func NewTabPool(session Session, maxSize int) *TabPool {
	if maxSize <= 0 {
		maxSize = 5 // Default pool size
	}

	return &TabPool{
		session: session,
		slots:   make(chan struct{}, maxSize),
		maxSize: maxSize,
		timeout: DefaultAcquireTimeout,
	}
}

// Acquire opens a new tab once a slot is free. The caller must call release
// exactly once; release closes the tab and frees the slot.
func (p *TabPool) Acquire(ctx context.Context) (Page, func(), error) {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return nil, nil, fmt.Errorf("pool is closed")
	}
	p.mu.RUnlock()

	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	case <-time.After(p.timeout):
		return nil, nil, fmt.Errorf("timeout waiting for available tab")
	}

	page, err := p.session.NewPage(ctx)
	if err != nil {
		<-p.slots
		return nil, nil, fmt.Errorf("failed to open tab: %w", err)
	}

	p.mu.Lock()
	p.open++
	p.total++
	p.mu.Unlock()

	var once sync.Once
	release := func() {
		once.Do(func() {
			page.Close()
			p.mu.Lock()
			p.open--
			p.mu.Unlock()
			<-p.slots
		})
	}

	return page, release, nil
}

// Open returns the number of tabs currently checked out
func (p *TabPool) Open() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.open
}

// Stats returns pool counters
func (p *TabPool) Stats() map[string]interface{} {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return map[string]interface{}{
		"max_size":    p.maxSize,
		"open":        p.open,
		"total_tabs":  p.total,
		"pool_closed": p.closed,
	}
}

// Close rejects further Acquire calls. Open tabs stay owned by their holders.
func (p *TabPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}
