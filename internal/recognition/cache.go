package recognition

// DefaultCacheSize is the largest number of fingerprints kept by default.
const DefaultCacheSize = 1000

// EvictionStrategy decides what to drop when a new fingerprint would push the
// cache past its bound. It must leave at most bound-1 entries in entries.
type EvictionStrategy interface {
	Evict(entries map[string]string, bound int)
}

// ClearAll discards every entry once the bound is reached.
type ClearAll struct{}

func (ClearAll) Evict(entries map[string]string, _ int) {
	clear(entries)
}

// Cache maps embedding fingerprints to the label the classifier produced for
// them. It is owned by the frame loop and not safe for concurrent use.
type Cache struct {
	entries  map[string]string
	bound    int
	strategy EvictionStrategy
}

// NewCache creates a cache holding at most bound entries. A nil strategy
// means ClearAll.
func NewCache(bound int, strategy EvictionStrategy) *Cache {
	if bound <= 0 {
		bound = DefaultCacheSize
	}
	if strategy == nil {
		strategy = ClearAll{}
	}
	return &Cache{
		entries:  make(map[string]string),
		bound:    bound,
		strategy: strategy,
	}
}

// Get returns the label cached for key.
func (c *Cache) Get(key string) (string, bool) {
	label, ok := c.entries[key]
	return label, ok
}

// Put stores label under key, evicting first when key is new and the cache
// is full.
func (c *Cache) Put(key, label string) {
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.bound {
		c.strategy.Evict(c.entries, c.bound)
		// a strategy that leaves too much behind falls back to clearing
		if len(c.entries) >= c.bound {
			clear(c.entries)
		}
	}
	c.entries[key] = label
}

// Len returns the number of cached fingerprints.
func (c *Cache) Len() int {
	return len(c.entries)
}
