package cache

import (
	"sync"
	"time"
)

// IssuedToken is a read capability token together with everything a
// client needs to use it.
type IssuedToken struct {
	Token     string
	Key       string
	URL       string
	ExpiresAt time.Time
}

// TokenCache provides thread-safe caching of issued read tokens, so
// repeated reads of the same object version reuse one token instead of
// signing a fresh one per request. Entries expire with the token.
type TokenCache struct {
	cache map[string]IssuedToken
	mutex sync.RWMutex
}

func NewTokenCache() *TokenCache {
	return &TokenCache{
		cache: make(map[string]IssuedToken),
	}
}

// Get retrieves a token from cache if not expired.
func (c *TokenCache) Get(key string) (IssuedToken, bool) {
	c.mutex.RLock()
	entry, found := c.cache[key]
	c.mutex.RUnlock()

	if found && time.Now().Before(entry.ExpiresAt) {
		return entry, true
	}

	return IssuedToken{}, false
}

// Set stores an issued token under the given cache key.
func (c *TokenCache) Set(key string, token IssuedToken) {
	c.mutex.Lock()
	c.cache[key] = token
	c.mutex.Unlock()
}

// Invalidate drops one entry, expired or not.
func (c *TokenCache) Invalidate(key string) {
	c.mutex.Lock()
	delete(c.cache, key)
	c.mutex.Unlock()
}

// Clear removes expired entries from cache.
func (c *TokenCache) Clear() {
	c.mutex.Lock()
	for key, entry := range c.cache {
		if time.Now().After(entry.ExpiresAt) {
			delete(c.cache, key)
		}
	}
	c.mutex.Unlock()
}
