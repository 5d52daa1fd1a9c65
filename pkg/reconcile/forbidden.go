package reconcile

import (
	"sync"
	"time"
)

// ForbiddenCache remembers conversations the server rejected with a
// permission error, so the client stops polling them instead of retrying a
// request that will keep failing. Entries expire in case access returns.
type ForbiddenCache struct {
	mu  sync.Mutex
	ttl time.Duration
	m   map[string]time.Time
}

func NewForbiddenCache(ttl time.Duration) *ForbiddenCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ForbiddenCache{ttl: ttl, m: make(map[string]time.Time)}
}

func (f *ForbiddenCache) Add(conversationID string) {
	f.mu.Lock()
	f.m[conversationID] = time.Now().Add(f.ttl)
	f.mu.Unlock()
}

func (f *ForbiddenCache) IsForbidden(conversationID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	expiry, ok := f.m[conversationID]
	if !ok {
		return false
	}
	if time.Now().After(expiry) {
		delete(f.m, conversationID)
		return false
	}
	return true
}

// Clear drops one entry, typically after the user rejoins.
func (f *ForbiddenCache) Clear(conversationID string) {
	f.mu.Lock()
	delete(f.m, conversationID)
	f.mu.Unlock()
}
