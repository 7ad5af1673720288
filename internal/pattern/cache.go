package pattern

import "sync"

// Cache memoizes compiled patterns keyed by the raw usage string, so
// repeated parses of the same usage are free after warm-up. String keys
// were chosen over AST identity: parsing is cheap and deterministic, and
// independently parsed copies of the same usage string share one entry.
//
// Reads are lock-free in the common case after warm-up; first compilation
// of a given usage string publishes its entry under the write lock.
type Cache struct {
	mu       sync.RWMutex
	entries  map[string]*Compiled
	observer func(hit bool)
}

// NewCache creates a pattern cache. The observer, if non-nil, is invoked
// once per lookup with whether the lookup was a hit; it must be safe for
// concurrent use.
func NewCache(observer func(hit bool)) *Cache {
	return &Cache{
		entries:  make(map[string]*Compiled),
		observer: observer,
	}
}

// Get returns the compiled pattern for a usage string, compiling and
// publishing it on first use. Compilation failures are not cached: a
// malformed usage string fails identically on every call.
func (c *Cache) Get(usageStr string) (*Compiled, error) {
	c.mu.RLock()
	compiled, ok := c.entries[usageStr]
	c.mu.RUnlock()
	if ok {
		c.observe(true)
		return compiled, nil
	}

	compiled, err := Compile(usageStr)
	if err != nil {
		c.observe(false)
		return nil, err
	}

	c.mu.Lock()
	// Another goroutine may have compiled the same usage concurrently;
	// keep the first published entry so callers share one matcher.
	if existing, ok := c.entries[usageStr]; ok {
		compiled = existing
	} else {
		c.entries[usageStr] = compiled
	}
	c.mu.Unlock()

	c.observe(false)
	return compiled, nil
}

// Len reports the number of cached patterns.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) observe(hit bool) {
	if c.observer != nil {
		c.observer(hit)
	}
}
