package httpmiddleware

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Limiter decides whether a caller identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) bool
}

// RateLimit returns a gin handler enforcing per-IP limits through the
// given limiter.
func RateLimit(l Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if ip == "" {
			ip = "unknown"
		}
		if !l.Allow(c.Request.Context(), ip) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"message": "rate limit"})
			return
		}
		c.Next()
	}
}

// SimpleTokenBucket is an in-memory per-key limiter for single-node
// deployments.
type SimpleTokenBucket struct {
	capacity int
	rate     int
	mu       sync.Mutex
	state    map[string]*bucket
}

type bucket struct {
	tokens int
	last   time.Time
}

// NewSimpleTokenBucket creates a limiter with capacity tokens and rate per minute.
func NewSimpleTokenBucket(capacity, perMinute int) *SimpleTokenBucket {
	if capacity <= 0 {
		capacity = perMinute
	}
	return &SimpleTokenBucket{
		capacity: capacity,
		rate:     perMinute,
		state:    make(map[string]*bucket),
	}
}

// Allow implements Limiter.
func (l *SimpleTokenBucket) Allow(_ context.Context, key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.state[key]
	now := time.Now()
	if !ok {
		b = &bucket{tokens: l.capacity - 1, last: now}
		l.state[key] = b
		return true
	}
	elapsed := now.Sub(b.last).Minutes()
	refill := int(elapsed * float64(l.rate))
	if refill > 0 {
		b.tokens += refill
		if b.tokens > l.capacity {
			b.tokens = l.capacity
		}
		b.last = now
	}
	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}

// RedisFixedWindow counts requests per key in one-minute Redis
// windows, so the limit holds across instances.
type RedisFixedWindow struct {
	client *redis.Client
	limit  int
	window time.Duration
}

// NewRedisFixedWindow creates a limiter allowing limit requests per
// minute per key.
func NewRedisFixedWindow(client *redis.Client, limit int) *RedisFixedWindow {
	return &RedisFixedWindow{client: client, limit: limit, window: time.Minute}
}

// Allow implements Limiter. Redis failures let the request through;
// dropping traffic because the limiter is down would be worse.
func (l *RedisFixedWindow) Allow(ctx context.Context, key string) bool {
	rkey := "ratelimit:" + key
	n, err := l.client.Incr(ctx, rkey).Result()
	if err != nil {
		log.Printf("rate limiter redis error: %v", err)
		return true
	}
	if n == 1 {
		l.client.Expire(ctx, rkey, l.window)
	}
	return n <= int64(l.limit)
}
