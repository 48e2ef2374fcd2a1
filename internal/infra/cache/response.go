package cache

import (
	"fmt"
	"time"

	"github.com/boddenberg/netgen/internal/port"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/singleflight"
)

// Digest returns the fixed-length content hash used as the cache key.
// It is not cryptographic.
func Digest(prompt string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(prompt))
}

// ResponseCache memoises prompt -> generated text.
type ResponseCache struct {
	store port.Cache[string]
	group singleflight.Group
}

// NewResponseCache creates a bounded response cache.
func NewResponseCache(size int, ttl time.Duration) *ResponseCache {
	return &ResponseCache{store: New[string](size, ttl)}
}

// NewResponseCacheWith wraps an existing store.
func NewResponseCacheWith(store port.Cache[string]) *ResponseCache {
	return &ResponseCache{store: store}
}

// Get returns the cached response for prompt.
func (c *ResponseCache) Get(prompt string) (string, bool) {
	return c.store.Get(Digest(prompt))
}

// Put stores text as the response for prompt. Last write wins.
func (c *ResponseCache) Put(prompt, text string) {
	c.store.Set(Digest(prompt), text)
}

// DoChan runs fn once for all concurrent callers asking for the same
// prompt. The result arrives on the returned channel, so a caller may stop
// waiting while fn keeps running for the others. Result.Shared is true when
// more than one caller received the value.
func (c *ResponseCache) DoChan(prompt string, fn func() (any, error)) <-chan singleflight.Result {
	return c.group.DoChan(Digest(prompt), fn)
}
