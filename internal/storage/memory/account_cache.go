package memory

import (
	"bytes"
	"context"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"amm-stats/internal/storage"
)

type cachedAccount struct {
	data      []byte
	expiresAt time.Time
}

// AccountCache is an in-process implementation of storage.AccountCache.
type AccountCache struct {
	entries *xsync.Map[string, cachedAccount]
	now     func() time.Time
}

// NewAccountCache creates an empty account cache.
func NewAccountCache() *AccountCache {
	return &AccountCache{
		entries: xsync.NewMap[string, cachedAccount](),
		now:     time.Now,
	}
}

// Compile-time interface check.
var _ storage.AccountCache = (*AccountCache)(nil)

// Get returns the cached account data. Expired entries count as misses.
func (c *AccountCache) Get(_ context.Context, network, address string) ([]byte, bool, error) {
	key := network + "|" + address
	entry, ok := c.entries.Load(key)
	if !ok {
		return nil, false, nil
	}
	if !entry.expiresAt.IsZero() && c.now().After(entry.expiresAt) {
		c.entries.Delete(key)
		return nil, false, nil
	}
	return entry.data, true, nil
}

// Set records account data for ttl. A zero ttl never expires.
func (c *AccountCache) Set(_ context.Context, network, address string, data []byte, ttl time.Duration) error {
	entry := cachedAccount{data: bytes.Clone(data)}
	if ttl > 0 {
		entry.expiresAt = c.now().Add(ttl)
	}
	c.entries.Store(network+"|"+address, entry)
	return nil
}
