package cutint

import "sync"

// SourceFunc builds the rule of elem on a cache miss. A nil rule with a nil
// error means the element has no cut contribution.
type SourceFunc func(elem, order int) (*CutQuadratureRule, error)

type cacheKey struct {
	elem, order int
}

// Cache stores per-element cut rules for repeated use during assembly
type Cache struct {
	mu     sync.RWMutex
	rules  map[cacheKey]*CutQuadratureRule
	source SourceFunc
}

func NewCache(source SourceFunc) *Cache {
	return &Cache{rules: make(map[cacheKey]*CutQuadratureRule), source: source}
}

// Get returns the cached rule or builds it through the source
func (c *Cache) Get(elem, order int) (*CutQuadratureRule, error) {
	key := cacheKey{elem, order}
	c.mu.RLock()
	r, ok := c.rules[key]
	src := c.source
	c.mu.RUnlock()
	if ok || src == nil {
		return r, nil
	}
	r, err := src(elem, order)
	if err != nil {
		return nil, err
	}
	c.Put(elem, order, r)
	return r, nil
}

func (c *Cache) Put(elem, order int, r *CutQuadratureRule) {
	c.mu.Lock()
	c.rules[cacheKey{elem, order}] = r
	c.mu.Unlock()
}

// SetSource replaces the miss handler
func (c *Cache) SetSource(source SourceFunc) {
	c.mu.Lock()
	c.source = source
	c.mu.Unlock()
}

// Invalidate drops every rule, typically after the level set changed
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.rules = make(map[cacheKey]*CutQuadratureRule)
	c.mu.Unlock()
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.rules)
}
