package middlewares

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// LimitStore counts hits per key in fixed windows.
type LimitStore interface {
	// Hit records one request for key and returns the count in the current
	// window and the time left until the window resets.
	Hit(ctx context.Context, key string, window time.Duration) (count int, resetIn time.Duration, err error)
}

type RateLimiter struct {
	store  LimitStore
	limit  int
	window time.Duration
	log    *slog.Logger
}

func NewRateLimiter(store LimitStore, limit int, window time.Duration, log *slog.Logger) *RateLimiter {
	if log == nil {
		log = slog.Default()
	}
	return &RateLimiter{
		store:  store,
		limit:  limit,
		window: window,
		log:    log,
	}
}

// Middleware enforces the limit for a key derived from the request. Store
// failures let the request through, and a limit of zero disables it.
func (rl *RateLimiter) Middleware(scope string, keyFn func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.limit <= 0 {
			c.Next()
			return
		}

		key := keyFn(c)

		if key == "" {
			// fallback to IP if key cannot be derived
			key = clientIP(c)
		}

		count, resetIn, err := rl.store.Hit(c.Request.Context(), "ratelimit:"+scope+":"+key, rl.window)
		if err != nil {
			rl.log.WarnContext(c.Request.Context(), "rate limiter store failed", "scope", scope, "err", err)
			c.Next()
			return
		}

		if count > rl.limit {
			retryAfter := int(resetIn.Round(time.Second).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}

			c.Header("Retry-After", strconv.Itoa(retryAfter))

			abortWithError(c, http.StatusTooManyRequests, "rate_limited", "Too many requests. Please try again shortly.")
			return
		}

		c.Next()
	}
}

// for unauthenticated endpoints: rate limit by IP
func KeyByIP(c *gin.Context) string {
	return clientIP(c)
}

func clientIP(c *gin.Context) string {
	ip := c.ClientIP()

	host, _, err := net.SplitHostPort(ip)
	if err == nil && host != "" {
		return host
	}

	return ip
}

// MemoryLimitStore keeps windows in process memory.
type MemoryLimitStore struct {
	mu      sync.Mutex
	clients map[string]*clientBucket
	now     func() time.Time
}

type clientBucket struct {
	count     int
	windowEnd time.Time
}

func NewMemoryLimitStore() *MemoryLimitStore {
	return &MemoryLimitStore{
		clients: make(map[string]*clientBucket),
		now:     time.Now,
	}
}

func (s *MemoryLimitStore) Hit(_ context.Context, key string, window time.Duration) (int, time.Duration, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.clients[key]
	if !ok || !now.Before(b.windowEnd) {
		b = &clientBucket{windowEnd: now.Add(window)}
		s.clients[key] = b
		s.sweep(now)
	}

	b.count++

	return b.count, b.windowEnd.Sub(now), nil
}

// sweep drops expired buckets; called with mu held.
func (s *MemoryLimitStore) sweep(now time.Time) {
	if len(s.clients) < 1024 {
		return
	}
	for k, b := range s.clients {
		if !now.Before(b.windowEnd) {
			delete(s.clients, k)
		}
	}
}

// RedisLimitStore shares windows between API instances.
type RedisLimitStore struct {
	rdb redis.Cmdable
}

func NewRedisLimitStore(rdb redis.Cmdable) *RedisLimitStore {
	return &RedisLimitStore{rdb: rdb}
}

func (s *RedisLimitStore) Hit(ctx context.Context, key string, window time.Duration) (int, time.Duration, error) {
	pipe := s.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	// only the first hit of a window sets the expiry
	pipe.ExpireNX(ctx, key, window)
	ttl := pipe.PTTL(ctx, key)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, fmt.Errorf("rate limit pipeline: %w", err)
	}

	resetIn := ttl.Val()
	if resetIn < 0 {
		resetIn = window
	}

	return int(incr.Val()), resetIn, nil
}
