package memory

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// CredentialCache holds resolved (user, vendor) secrets so the hot path does
// not hit the keys table per request. Entries are short-lived and dropped
// eagerly when a key changes.
type CredentialCache struct {
	cache *cache.Cache
}

func NewCredentialCache() *CredentialCache {
	// 5 minute TTL keeps revoked keys from lingering; purge sweep every minute.
	return &CredentialCache{cache: cache.New(5*time.Minute, time.Minute)}
}

func (c *CredentialCache) key(userId, vendor string) string {
	return userId + "/" + vendor
}

func (c *CredentialCache) Get(userId, vendor string) (string, bool) {
	if x, found := c.cache.Get(c.key(userId, vendor)); found {
		return x.(string), true
	}
	return "", false
}

func (c *CredentialCache) Set(userId, vendor, secret string) {
	c.cache.Set(c.key(userId, vendor), secret, cache.DefaultExpiration)
}

func (c *CredentialCache) Invalidate(userId, vendor string) {
	c.cache.Delete(c.key(userId, vendor))
}

// InvalidateUser drops every vendor entry for one user.
func (c *CredentialCache) InvalidateUser(userId string) {
	for k := range c.cache.Items() {
		if len(k) > len(userId) && k[:len(userId)+1] == userId+"/" {
			c.cache.Delete(k)
		}
	}
}
