package inmemory

import (
	"sync"
	"time"

	userdomain "todolist-app-go/internal/domain/user"
)

// TokenCache remembers which user a bearer token resolved to until the entry
// expires.
type TokenCache struct {
	mu    sync.RWMutex
	items map[string]tokenItem
	now   func() time.Time
}

type tokenItem struct {
	value     userdomain.User
	expiresAt time.Time
}

func NewTokenCache() *TokenCache {
	return &TokenCache{
		items: make(map[string]tokenItem),
		now:   time.Now,
	}
}

func (c *TokenCache) Get(token string) (userdomain.User, bool) {
	now := c.now()

	c.mu.RLock()
	item, ok := c.items[token]
	c.mu.RUnlock()
	if !ok {
		return userdomain.User{}, false
	}

	if !item.expiresAt.After(now) {
		c.mu.Lock()
		item, ok = c.items[token]
		if ok && !item.expiresAt.After(now) {
			delete(c.items, token)
		}
		c.mu.Unlock()
		return userdomain.User{}, false
	}

	return item.value, true
}

func (c *TokenCache) Set(token string, user userdomain.User, ttl time.Duration) {
	if token == "" || ttl <= 0 {
		c.Delete(token)
		return
	}

	c.mu.Lock()
	c.items[token] = tokenItem{
		value:     user,
		expiresAt: c.now().Add(ttl),
	}
	c.mu.Unlock()
}

func (c *TokenCache) Delete(token string) {
	c.mu.Lock()
	delete(c.items, token)
	c.mu.Unlock()
}

func (c *TokenCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
