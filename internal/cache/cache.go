// Package cache stores short-lived, JSON-encoded read results. Values are
// encoded on Set so the in-process and Redis backends behave the same.
package cache

import (
	"context"
	"time"
)

type Cache interface {
	// Get decodes the cached value into dst and reports whether it was present.
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// Keys used by the services.
const (
	LeaderboardKey = "posts:leaderboard"
)
