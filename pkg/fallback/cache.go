package fallback

import (
	"strings"
	"sync"
	"time"
)

// resultCache keeps successful crawl results keyed by (url, formats)
// for a fixed TTL, so repeated fetches within the window skip the
// network entirely.
type resultCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cacheEntry

	now func() time.Time
}

type cacheEntry struct {
	result   *FetchResult
	storedAt time.Time
}

func newResultCache(ttl time.Duration) *resultCache {
	return &resultCache{ttl: ttl, entries: make(map[string]cacheEntry), now: time.Now}
}

func cacheKey(url string, formats []string) string {
	return url + "|" + strings.Join(formats, ",")
}

func (c *resultCache) get(key string) (*FetchResult, bool) {
	if c == nil || c.ttl <= 0 {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.storedAt) > c.ttl {
		delete(c.entries, key)
		return nil, false
	}
	return e.result, true
}

func (c *resultCache) put(key string, r *FetchResult) {
	if c == nil || c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.entries[key] = cacheEntry{result: r, storedAt: c.now()}
	c.mu.Unlock()
}
