package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Cache stores extraction results keyed by call signature and epoch.
//
// The epoch is a caller-controlled nonce: a forced refresh bumps it, which
// changes every key and so bypasses all prior entries. There is no per-row
// invalidation; entries simply age out after their TTL.
type Cache struct {
	client *Client
	prefix string
}

// Key identifies one cached extraction result.
type Key struct {
	Op    string   // e.g. "ranking", "branch_daily", "price"
	Args  []string // call arguments in order (stock id, dates, branch ids...)
	Epoch int64
}

// String renders the full cache key.
func (k Key) String() string {
	return fmt.Sprintf("%s:%d:%s", k.Op, k.Epoch, strings.Join(k.Args, ":"))
}

// NewCache creates a new cache helper.
func NewCache(client *Client, prefix string) *Cache {
	return &Cache{
		client: client,
		prefix: prefix,
	}
}

// Get retrieves a cached value. A miss (or disabled Redis) returns false
// without error.
func (c *Cache) Get(ctx context.Context, key Key, dest interface{}) (bool, error) {
	if !c.client.Enabled() {
		return false, nil
	}

	fullKey := fmt.Sprintf("%s:cache:%s", c.prefix, key)
	data, err := c.client.Redis().Get(ctx, fullKey).Bytes()
	if err != nil {
		// Key not found is not an error
		return false, nil
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("cache unmarshal failed: %w", err)
	}

	return true, nil
}

// Set stores a value with TTL.
func (c *Cache) Set(ctx context.Context, key Key, value interface{}, ttl time.Duration) error {
	if !c.client.Enabled() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal failed: %w", err)
	}

	fullKey := fmt.Sprintf("%s:cache:%s", c.prefix, key)
	return c.client.Redis().Set(ctx, fullKey, data, ttl).Err()
}

// Delete removes a cached value.
func (c *Cache) Delete(ctx context.Context, key Key) error {
	if !c.client.Enabled() {
		return nil
	}

	fullKey := fmt.Sprintf("%s:cache:%s", c.prefix, key)
	return c.client.Redis().Del(ctx, fullKey).Err()
}

// Epoch returns the current cache epoch, 0 when none has been stored yet.
func (c *Cache) Epoch(ctx context.Context) int64 {
	if !c.client.Enabled() {
		return 0
	}

	n, err := c.client.Redis().Get(ctx, c.epochKey()).Int64()
	if err != nil {
		return 0
	}
	return n
}

// BumpEpoch advances the cache epoch, invalidating every existing entry for
// subsequent lookups, and returns the new epoch.
func (c *Cache) BumpEpoch(ctx context.Context) int64 {
	epoch := time.Now().Unix()
	if c.client.Enabled() {
		_ = c.client.Redis().Set(ctx, c.epochKey(), epoch, 0).Err()
	}
	return epoch
}

func (c *Cache) epochKey() string {
	return fmt.Sprintf("%s:epoch", c.prefix)
}
