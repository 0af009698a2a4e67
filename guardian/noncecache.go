package guardian

import (
	"sync"
	"time"
)

// nonceKey identifies one (signatory, nonce) replay-protection entry.
type nonceKey struct {
	signatory string
	nonce     string
}

// nonceCache rejects a duplicate (signatory, nonce) pair seen within the
// replay window. Entries are swept lazily on Seen calls so
// the cache never grows past (requests in the last window).
type nonceCache struct {
	mu      sync.Mutex
	window  time.Duration
	entries map[nonceKey]time.Time
}

func newNonceCache(window time.Duration) *nonceCache {
	return &nonceCache{window: window, entries: make(map[nonceKey]time.Time)}
}

// Seen records (signatory, nonce) at referenceTime and reports whether it
// was already present within the window — a replay.
func (c *nonceCache) Seen(signatory, nonce string, referenceTime time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sweep(referenceTime)

	key := nonceKey{signatory: signatory, nonce: nonce}
	if _, ok := c.entries[key]; ok {
		return true
	}
	c.entries[key] = referenceTime
	return false
}

func (c *nonceCache) sweep(now time.Time) {
	for k, t := range c.entries {
		if now.Sub(t) > c.window {
			delete(c.entries, k)
		}
	}
}
