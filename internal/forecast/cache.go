package forecast

import "sync"

// Cache memoizes forecast lookups per location for the duration of one scan
// cycle. The strategy clears it at the start of each cycle so every cycle
// works from fresh data, and concurrent prefetch goroutines within a cycle
// can write their slots safely.
type Cache struct {
	mu      sync.Mutex
	entries map[string]Forecast
}

// NewCache creates an empty forecast cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]Forecast)}
}

// Get returns the cached forecast for a location.
func (c *Cache) Get(location string) (Forecast, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.entries[location]
	return f, ok
}

// Put stores a forecast. An empty Forecast is stored too — a failed fetch
// is cached for the rest of the cycle, not retried per group.
func (c *Cache) Put(location string, f Forecast) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[location] = f
}

// Clear drops all entries. Called once at the start of each scan cycle.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]Forecast)
}
