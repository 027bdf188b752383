package middleware

import (
	"encoding/hex"
	"time"

	cache "github.com/patrickmn/go-cache"
)

// Cache memoizes unary responses by request payload, for methods
// marked Cacheable in their MethodContract.Metadata (§10.3), backed by
// github.com/patrickmn/go-cache rather than hand-rolled TTL bookkeeping.
type Cache struct {
	store *cache.Cache
}

// NewCache builds a response cache with the given default TTL and
// cleanup interval.
func NewCache(defaultTTL, cleanupInterval time.Duration) *Cache {
	return &Cache{store: cache.New(defaultTTL, cleanupInterval)}
}

func cacheKey(call Call, payload []byte) string {
	return call.Service + "." + call.Method + ":" + hex.EncodeToString(payload)
}

// Lookup returns a cached response for (call, request payload), if
// present and the method is cacheable.
func (c *Cache) Lookup(call Call, requestPayload []byte) ([]byte, bool) {
	if !call.Metadata.Cacheable {
		return nil, false
	}
	v, ok := c.store.Get(cacheKey(call, requestPayload))
	if !ok {
		return nil, false
	}
	return v.([]byte), true
}

// Store records a response for (call, request payload), honoring the
// method's CacheTimeoutMS if set, else the cache's default TTL.
func (c *Cache) Store(call Call, requestPayload, responsePayload []byte) {
	if !call.Metadata.Cacheable {
		return
	}
	ttl := cache.DefaultExpiration
	if call.Metadata.CacheTimeoutMS > 0 {
		ttl = time.Duration(call.Metadata.CacheTimeoutMS) * time.Millisecond
	}
	c.store.Set(cacheKey(call, requestPayload), responsePayload, ttl)
}
