package services

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/custodia-labs/docqa/internal/metrics"
)

// DefaultMaxHandles bounds each handle cache.
const DefaultMaxHandles = 64

// Cache label values.
const (
	cacheGeneration = "generation"
	cacheEmbedding  = "embedding"
)

// releaser is a cached handle that owns an upstream client.
type releaser interface {
	release()
}

// newHandleCache returns a bounded LRU whose evicted or removed handles
// are released.
func newHandleCache[K comparable, V releaser](name string, size int) *lru.Cache[K, V] {
	if size <= 0 {
		size = DefaultMaxHandles
	}
	cache, err := lru.NewWithEvict[K, V](size, func(_ K, v V) {
		v.release()
		metrics.HandleCacheTotal.WithLabelValues(name, "evict").Inc()
	})
	if err != nil {
		// Only returned for a non-positive size, which is ruled out above.
		panic(err)
	}
	return cache
}

func recordCacheLookup(name string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	metrics.HandleCacheTotal.WithLabelValues(name, result).Inc()
}

// shortFingerprint is the fingerprint prefix safe to log.
func shortFingerprint(fp string) string {
	if len(fp) > 8 {
		return fp[:8]
	}
	return fp
}
