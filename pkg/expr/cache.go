package expr

import (
	"fmt"
	"sync"
)

// Cache deduplicates byte-equal expression strings into one Evaluator
// instance per session, so histograms sharing a selection or weight compute
// it once. Each worker session owns its own Cache; there is no cross-session
// sharing.
type Cache struct {
	mu     sync.RWMutex
	binder Binder
	evals  map[string]Evaluator
}

// NewCache creates a cache binding expressions through the given binder.
func NewCache(binder Binder) *Cache {
	return &Cache{
		binder: binder,
		evals:  make(map[string]Evaluator),
	}
}

// Get returns the evaluator for the expression, constructing it on first
// request. The empty string is reserved for "no expression" and returns a
// nil evaluator without touching the binder.
func (c *Cache) Get(expression string) (Evaluator, error) {
	if expression == "" {
		return nil, nil
	}

	c.mu.RLock()
	ev, ok := c.evals[expression]
	c.mu.RUnlock()
	if ok {
		return ev, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if ev, ok := c.evals[expression]; ok {
		return ev, nil
	}
	ev, err := c.binder.Bind(expression)
	if err != nil {
		return nil, fmt.Errorf("bind expression: %w", err)
	}
	c.evals[expression] = ev
	return ev, nil
}

// Rebind rebuilds every cached evaluator against a new shard while keeping
// the expression set. The write lock makes the swap atomic with respect to
// concurrent Get calls; the fill loop never observes a half-rebound cache.
// Any binding failure aborts the rebind and leaves the old evaluators in
// place, since it indicates the new shard does not match the configuration.
func (c *Cache) Rebind(binder Binder) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := make(map[string]Evaluator, len(c.evals))
	for expression := range c.evals {
		ev, err := binder.Bind(expression)
		if err != nil {
			return fmt.Errorf("rebind expression: %w", err)
		}
		next[expression] = ev
	}

	c.binder = binder
	c.evals = next
	return nil
}

// Len returns the number of distinct cached expressions.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.evals)
}
