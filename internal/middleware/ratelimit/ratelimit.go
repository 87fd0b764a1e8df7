package ratelimit

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Per-IP token bucket. Submission endpoints are unauthenticated, so the
// client IP is the only stable key available.
type bucket struct {
	mu         sync.Mutex
	tokens     int
	lastRefill time.Time
}

type Limiter struct {
	mu         sync.RWMutex
	buckets    map[string]*bucket
	maxTokens  int
	refillRate time.Duration
	logger     *zap.Logger
	stop       chan struct{}
}

func New(requestsPerMinute int, log *zap.Logger) *Limiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}

	l := &Limiter{
		buckets:    make(map[string]*bucket),
		maxTokens:  requestsPerMinute,
		refillRate: time.Minute / time.Duration(requestsPerMinute),
		logger:     log,
		stop:       make(chan struct{}),
	}

	go l.cleanupLoop()

	return l
}

func (l *Limiter) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ip := c.IP()

		if !l.allow(ip) {
			l.logger.Warn("Rate limit exceeded",
				zap.String("ip", ip),
				zap.String("path", c.Path()),
			)
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Rate limit exceeded. Please try again later.",
			})
		}

		return c.Next()
	}
}

func (l *Limiter) allow(key string) bool {
	l.mu.RLock()
	b, exists := l.buckets[key]
	l.mu.RUnlock()

	if !exists {
		l.mu.Lock()
		b, exists = l.buckets[key]
		if !exists {
			b = &bucket{tokens: l.maxTokens, lastRefill: time.Now()}
			l.buckets[key] = b
		}
		l.mu.Unlock()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	refill := int(now.Sub(b.lastRefill) / l.refillRate)
	if refill > 0 {
		b.tokens += refill
		if b.tokens > l.maxTokens {
			b.tokens = l.maxTokens
		}
		b.lastRefill = now
	}

	if b.tokens > 0 {
		b.tokens--
		return true
	}
	return false
}

func (l *Limiter) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.mu.Lock()
			now := time.Now()
			for key, b := range l.buckets {
				b.mu.Lock()
				idle := now.Sub(b.lastRefill) > 10*time.Minute
				b.mu.Unlock()
				if idle {
					delete(l.buckets, key)
				}
			}
			l.mu.Unlock()
		}
	}
}

func (l *Limiter) Stop() {
	close(l.stop)
}
