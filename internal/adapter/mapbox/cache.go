package mapbox

import (
	"container/list"
	"context"
	"strings"
	"sync"

	"github.com/couchcryptid/glof-monitor/internal/domain"
	"github.com/couchcryptid/glof-monitor/internal/observability"
)

// CachedSearcher wraps a PlaceSearcher with an in-memory LRU cache keyed by
// the case-folded query. Autocomplete issues a request per keystroke, so
// repeated prefixes are common.
type CachedSearcher struct {
	inner   domain.PlaceSearcher
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCachedSearcher creates a cache decorator around a searcher.
func NewCachedSearcher(inner domain.PlaceSearcher, maxEntries int, metrics *observability.Metrics) *CachedSearcher {
	return &CachedSearcher{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

func (c *CachedSearcher) Search(ctx context.Context, query string) ([]domain.Place, error) {
	key := strings.ToLower(strings.Join(strings.Fields(query), " "))
	if places, ok := c.cache.get(key); ok {
		c.metrics.SearchCache.WithLabelValues("hit").Inc()
		return places, nil
	}
	c.metrics.SearchCache.WithLabelValues("miss").Inc()

	places, err := c.inner.Search(ctx, query)
	if err != nil {
		return places, err
	}
	// Only cache non-empty results so transient "not found" responses can be retried.
	if len(places) > 0 {
		c.cache.put(key, places)
	}
	return places, nil
}

// lruCache holds search results, evicting the least recently used query
// once maxEntries is exceeded. Front of order is most recent.
type lruCache struct {
	mu    sync.Mutex
	limit int
	order *list.List
	index map[string]*list.Element
}

type cacheEntry struct {
	query  string
	places []domain.Place
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		limit: max(maxEntries, 1),
		order: list.New(),
		index: make(map[string]*list.Element),
	}
}

func (c *lruCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *lruCache) get(query string) ([]domain.Place, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.index[query]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry).places, true
}

func (c *lruCache) put(query string, places []domain.Place) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.index[query]; ok {
		el.Value.(*cacheEntry).places = places
		c.order.MoveToFront(el)
		return
	}
	c.index[query] = c.order.PushFront(&cacheEntry{query: query, places: places})
	for c.order.Len() > c.limit {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.index, oldest.Value.(*cacheEntry).query)
	}
}
