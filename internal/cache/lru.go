package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// entry wraps an encoded value and its expiry
type entry struct {
	data      []byte
	expiresAt time.Time
}

// LRU is an in-process cache with per-entry TTL.
type LRU struct {
	lruCache *lru.Cache[string, entry]
	now      func() time.Time
}

func NewLRU(size int) (*LRU, error) {
	l, err := lru.New[string, entry](size)
	if err != nil {
		return nil, fmt.Errorf("create lru cache: %w", err)
	}
	return &LRU{lruCache: l, now: time.Now}, nil
}

func (c *LRU) Get(ctx context.Context, key string, dst any) (bool, error) {
	val, ok := c.lruCache.Get(key)
	if !ok {
		return false, nil
	}
	if c.now().After(val.expiresAt) {
		c.lruCache.Remove(key)
		return false, nil
	}
	if err := json.Unmarshal(val.data, dst); err != nil {
		return false, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return true, nil
}

func (c *LRU) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	c.lruCache.Add(key, entry{data: data, expiresAt: c.now().Add(ttl)})
	return nil
}

func (c *LRU) Delete(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		c.lruCache.Remove(k)
	}
	return nil
}
