package web

import (
	"strings"
	"sync"
	"time"

	"github.com/muraturkgeldi/qrstock/internal/platform/metrics"
)

type cacheEntry struct {
	html      string
	expiresAt time.Time
}

// PageCache holds rendered pages keyed by request path. Entries expire on a
// TTL and are dropped eagerly when an order event arrives, so a page is never
// older than the slower of the TTL and event delivery.
type PageCache struct {
	TTL time.Duration
	Now func() time.Time

	mu      sync.Mutex
	entries map[string]cacheEntry
}

func NewPageCache(ttl time.Duration) *PageCache {
	return &PageCache{
		TTL:     ttl,
		Now:     time.Now,
		entries: map[string]cacheEntry{},
	}
}

func (c *PageCache) Get(path string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[path]
	if !ok {
		return "", false
	}
	if c.Now().After(entry.expiresAt) {
		delete(c.entries, path)
		return "", false
	}
	return entry.html, true
}

func (c *PageCache) Set(path, html string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[path] = cacheEntry{html: html, expiresAt: c.Now().Add(c.TTL)}
}

// InvalidateOrder drops the pages an order event can change: the order list,
// the dashboard, and every cached variant of the order's own page. Order
// pages are keyed by path plus back link, so the match is by prefix.
func (c *PageCache) InvalidateOrder(orderID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, "/orders")
	delete(c.entries, "/")
	for key := range c.entries {
		if strings.HasPrefix(key, "/orders?") {
			delete(c.entries, key)
		}
		if orderID != "" && strings.HasPrefix(key, "/orders/"+orderID) {
			delete(c.entries, key)
		}
	}
	metrics.PageCacheInvalidations.Inc()
}

func (c *PageCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
