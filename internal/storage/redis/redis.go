// Package redis caches on-chain account lookups in Redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"amm-stats/internal/storage"
)

// NewClient connects to addr and verifies the connection.
func NewClient(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// missingMarker is stored for accounts recorded as absent.
const missingMarker = "\x00missing"

// AccountCache implements storage.AccountCache on Redis string keys.
type AccountCache struct {
	client goredis.Cmdable
	prefix string
}

// NewAccountCache creates an AccountCache with keys under prefix.
func NewAccountCache(client goredis.Cmdable, prefix string) *AccountCache {
	if prefix == "" {
		prefix = "amm-stats"
	}
	return &AccountCache{client: client, prefix: prefix}
}

// Compile-time interface check.
var _ storage.AccountCache = (*AccountCache)(nil)

func (c *AccountCache) key(network, address string) string {
	return c.prefix + ":account:" + network + ":" + address
}

// Get returns the cached account data. found is false on a miss.
func (c *AccountCache) Get(ctx context.Context, network, address string) ([]byte, bool, error) {
	raw, err := c.client.Get(ctx, c.key(network, address)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get cached account %s: %w", address, err)
	}
	if string(raw) == missingMarker {
		return nil, true, nil
	}
	return raw, true, nil
}

// Set records account data for ttl. Nil data records a missing account.
func (c *AccountCache) Set(ctx context.Context, network, address string, data []byte, ttl time.Duration) error {
	value := data
	if value == nil {
		value = []byte(missingMarker)
	}
	if err := c.client.Set(ctx, c.key(network, address), value, ttl).Err(); err != nil {
		return fmt.Errorf("cache account %s: %w", address, err)
	}
	return nil
}
