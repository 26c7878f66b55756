package rate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrRateLimited is returned by Allow once a key exceeds its budget for the window.
	ErrRateLimited = errors.New("rate limited")
	// ErrCounterUnavailable wraps backend failures. Callers decide whether to fail open.
	ErrCounterUnavailable = errors.New("rate counter unavailable")
)

const keyPrefix = "rl:"

// Config holds the window budget. Limit <= 0 disables limiting.
type Config struct {
	Limit  int
	Window time.Duration
}

// Counter increments the hit count of key, starting a window of the given length on the
// first hit.
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// Limiter enforces a per-key budget over fixed windows.
type Limiter struct {
	counter Counter
	config  Config
}

// New creates a [Limiter] over counter.
func New(counter Counter, cfg Config) *Limiter {
	return &Limiter{
		counter: counter,
		config:  cfg,
	}
}

// Enabled reports whether Allow can ever reject.
func (l *Limiter) Enabled() bool {
	return l != nil && l.counter != nil && l.config.Limit > 0 && l.config.Window > 0
}

// Limit returns the configured budget.
func (l *Limiter) Limit() int {
	if l == nil {
		return 0
	}
	return l.config.Limit
}

// Allow records one hit for key and returns ErrRateLimited when the budget is spent.
func (l *Limiter) Allow(ctx context.Context, key string) error {
	if !l.Enabled() {
		return nil
	}

	count, err := l.counter.Incr(ctx, keyPrefix+key, l.config.Window)
	if err != nil {
		return err
	}
	if count > int64(l.config.Limit) {
		return ErrRateLimited
	}
	return nil
}

// RedisCounter keeps windows in Redis so every server replica shares one budget.
type RedisCounter struct {
	redis redis.UniversalClient
}

func NewRedisCounter(rdb redis.UniversalClient) *RedisCounter {
	return &RedisCounter{redis: rdb}
}

func (c *RedisCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	count, err := c.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrCounterUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := c.redis.Expire(ctx, key, window).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrCounterUnavailable, err)
		}
	}

	return count, nil
}

type memoryWindow struct {
	count    int64
	deadline time.Time
}

// MemoryCounter keeps windows in process. Expired windows are swept every sweepEvery hits.
type MemoryCounter struct {
	mu      sync.Mutex
	windows map[string]memoryWindow
	now     func() time.Time
	hits    int
}

const sweepEvery = 1024

func NewMemoryCounter(now func() time.Time) *MemoryCounter {
	if now == nil {
		now = time.Now
	}
	return &MemoryCounter{
		windows: make(map[string]memoryWindow),
		now:     now,
	}
}

func (c *MemoryCounter) Incr(_ context.Context, key string, window time.Duration) (int64, error) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.hits++
	if c.hits%sweepEvery == 0 {
		for k, w := range c.windows {
			if !now.Before(w.deadline) {
				delete(c.windows, k)
			}
		}
	}

	w, ok := c.windows[key]
	if !ok || !now.Before(w.deadline) {
		w = memoryWindow{deadline: now.Add(window)}
	}
	w.count++
	c.windows[key] = w

	return w.count, nil
}

// Len returns the number of tracked windows, expired ones included until swept.
func (c *MemoryCounter) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.windows)
}
