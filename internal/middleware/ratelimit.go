package middleware

import (
	"fmt"
	"sync"

	"paperboard/internal/apperr"

	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

// RateLimiter hands out one token bucket per caller. Buckets live in an LRU
// so idle callers are forgotten.
type RateLimiter struct {
	mu       sync.Mutex
	limiters *lru.Cache[string, *rate.Limiter]
	limit    rate.Limit
	burst    int
}

func NewRateLimiter(rps float64, burst, size int) (*RateLimiter, error) {
	l, err := lru.New[string, *rate.Limiter](size)
	if err != nil {
		return nil, fmt.Errorf("create limiter cache: %w", err)
	}
	return &RateLimiter{limiters: l, limit: rate.Limit(rps), burst: burst}, nil
}

func (r *RateLimiter) limiter(key string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.limiters.Get(key); ok {
		return l
	}
	l := rate.NewLimiter(r.limit, r.burst)
	r.limiters.Add(key, l)
	return l
}

func (r *RateLimiter) Allow(key string) bool {
	return r.limiter(key).Allow()
}

// RateLimit rejects callers that exceed their budget with 429. It keys on the
// authenticated user when there is one, else the client IP. A nil limiter
// lets everything through.
func RateLimit(r *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if r == nil {
			c.Next()
			return
		}
		key := "ip:" + c.ClientIP()
		if user := CurrentUser(c); user != nil {
			key = "user:" + user.ID.String()
		}
		if !r.Allow(key) {
			c.Header("Retry-After", "1")
			AbortWithError(c, fmt.Errorf("too many requests: %w", apperr.ErrRateLimited))
			return
		}
		c.Next()
	}
}
