package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"storefront-agent/internal/core"
)

// checkoutRegistry holds live checkouts in memory. Each checkout has its own
// mutex so operations on one checkout are serialized while different
// checkouts proceed in parallel.
type checkoutRegistry struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]*checkoutEntry
}

type checkoutEntry struct {
	mu       sync.Mutex
	checkout *core.Checkout
	touched  time.Time
}

func newCheckoutRegistry(ttl time.Duration, now func() time.Time) *checkoutRegistry {
	return &checkoutRegistry{ttl: ttl, now: now, entries: make(map[string]*checkoutEntry)}
}

func (r *checkoutRegistry) put(c *core.Checkout) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[c.ID] = &checkoutEntry{checkout: c, touched: r.now()}
}

// with runs fn while holding the checkout's lock.
func (r *checkoutRegistry) with(id string, fn func(c *core.Checkout) error) error {
	r.mu.Lock()
	e, ok := r.entries[id]
	if ok && r.now().Sub(e.touched) > r.ttl {
		delete(r.entries, id)
		ok = false
	}
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("checkout %s: %w", id, core.ErrNotFound)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	err := fn(e.checkout)
	r.mu.Lock()
	e.touched = r.now()
	r.mu.Unlock()
	return err
}

func (r *checkoutRegistry) purge() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, e := range r.entries {
		if r.now().Sub(e.touched) > r.ttl {
			delete(r.entries, id)
			n++
		}
	}
	return n
}

// startPurge evicts idle checkouts every interval until ctx is done.
func (r *checkoutRegistry) startPurge(ctx context.Context, interval time.Duration, onPurge func(int)) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := r.purge(); n > 0 && onPurge != nil {
					onPurge(n)
				}
			}
		}
	}()
}
