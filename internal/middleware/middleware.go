package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// maxTrackedBuckets caps the limiter map; stale buckets are pruned once it
// fills up.
const maxTrackedBuckets = 4096

type bucketKey struct {
	account string
	route   string
}

// RateLimiter enforces a minimum interval between requests per account and
// route. Each route has its own bucket, so an account polling depth snapshots
// is throttled independently from its order placements and cancels.
type RateLimiter struct {
	mu    sync.Mutex
	seen  map[bucketKey]time.Time
	limit time.Duration
	now   func() time.Time
}

func NewRateLimiter(limit time.Duration) *RateLimiter {
	return &RateLimiter{
		seen:  make(map[bucketKey]time.Time),
		limit: limit,
		now:   time.Now,
	}
}

func (r *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		account := c.GetHeader("X-Account-ID")
		if account == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "X-Account-ID header required"})
			c.Abort()
			return
		}
		key := bucketKey{account: account, route: c.FullPath()}
		now := r.now()

		r.mu.Lock()
		last, exists := r.seen[key]
		if exists && now.Sub(last) < r.limit {
			r.mu.Unlock()
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			c.Abort()
			return
		}
		if len(r.seen) >= maxTrackedBuckets {
			r.prune(now)
		}
		r.seen[key] = now
		r.mu.Unlock()

		c.Next()
	}
}

// prune drops buckets old enough to admit their next request anyway. The
// caller holds the mutex.
func (r *RateLimiter) prune(now time.Time) {
	for k, last := range r.seen {
		if now.Sub(last) >= r.limit {
			delete(r.seen, k)
		}
	}
}
