package cache

import (
	"context"
	"sync"
	"time"
)

// Leaderboard caches the top-rated listing under LeaderboardKey.
//
// Every write to posts or ratings calls Invalidate, which bumps a generation.
// A reader takes the generation before querying the store and hands it back
// to Store; a listing read before an invalidation is then dropped instead of
// being cached. A nil *Leaderboard caches nothing.
type Leaderboard struct {
	c   Cache
	ttl time.Duration

	mu  sync.Mutex
	gen uint64
}

func NewLeaderboard(c Cache, ttl time.Duration) *Leaderboard {
	return &Leaderboard{c: c, ttl: ttl}
}

// Generation returns the current generation for a later Store.
func (l *Leaderboard) Generation() uint64 {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.gen
}

func (l *Leaderboard) Get(ctx context.Context, dst any) (bool, error) {
	if l == nil {
		return false, nil
	}
	return l.c.Get(ctx, LeaderboardKey, dst)
}

// Store caches value if no invalidation happened since gen was taken. It
// reports whether the value was written.
func (l *Leaderboard) Store(ctx context.Context, gen uint64, value any) (bool, error) {
	if l == nil {
		return false, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if gen != l.gen {
		return false, nil
	}
	if err := l.c.Set(ctx, LeaderboardKey, value, l.ttl); err != nil {
		return false, err
	}
	return true, nil
}

// Invalidate drops the cached listing and any listing still being read.
func (l *Leaderboard) Invalidate(ctx context.Context) error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.gen++
	return l.c.Delete(ctx, LeaderboardKey)
}
