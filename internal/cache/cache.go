// Package cache stores rendered month calendars. Entries are keyed by a
// generation counter so one bump invalidates every cached month.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned by a Backend when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

var errNoKey = errors.New("cache key missing: generation lookup failed")

const generationKey = "tattootrack:calendar:generation"

// Backend is the key-value store behind MonthCache.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Incr(ctx context.Context, key string) (int64, error)
}

// MonthCache caches month views by year and month.
type MonthCache struct {
	backend Backend
	ttl     time.Duration
}

// NewMonthCache wraps a backend with the given entry TTL.
func NewMonthCache(backend Backend, ttl time.Duration) *MonthCache {
	return &MonthCache{backend: backend, ttl: ttl}
}

// Key names one month under the generation current when it was looked up.
type Key string

// Get returns the cached bytes for a month along with the key it read.
// Pass that key to Set so a view built before an Invalidate is stored
// under the old generation and never served.
func (c *MonthCache) Get(ctx context.Context, year int, month time.Month) ([]byte, Key, bool) {
	key, err := c.key(ctx, year, month)
	if err != nil {
		return nil, "", false
	}
	data, err := c.backend.Get(ctx, string(key))
	if err != nil {
		return nil, key, false
	}
	return data, key, true
}

// Set stores the bytes under a key returned by Get.
func (c *MonthCache) Set(ctx context.Context, key Key, data []byte) error {
	if key == "" {
		return errNoKey
	}
	return c.backend.Set(ctx, string(key), data, c.ttl)
}

// Invalidate drops every cached month. An appointment near a month edge
// shows in the neighbouring grids too, so invalidation is not per-month.
func (c *MonthCache) Invalidate(ctx context.Context) error {
	_, err := c.backend.Incr(ctx, generationKey)
	return err
}

func (c *MonthCache) key(ctx context.Context, year int, month time.Month) (Key, error) {
	gen, err := c.generation(ctx)
	if err != nil {
		return "", err
	}
	return Key(fmt.Sprintf("tattootrack:calendar:%d:%04d-%02d", gen, year, int(month))), nil
}

func (c *MonthCache) generation(ctx context.Context) (int64, error) {
	raw, err := c.backend.Get(ctx, generationKey)
	if errors.Is(err, ErrMiss) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(string(raw), 10, 64)
}

type entry struct {
	value     []byte
	expiresAt time.Time
}

// Memory is a thread-safe in-process Backend with per-entry TTL.
type Memory struct {
	mu    sync.RWMutex
	items map[string]entry
	now   func() time.Time
}

// NewMemory creates an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{items: make(map[string]entry), now: time.Now}
}

// Get returns the live value for key or ErrMiss.
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.items[key]
	if !ok || (!e.expiresAt.IsZero() && m.now().After(e.expiresAt)) {
		return nil, ErrMiss
	}
	return e.value, nil
}

// Set stores value for ttl; a zero ttl never expires.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sweep()
	e := entry{value: value}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}
	m.items[key] = e
	return nil
}

// Incr bumps the integer at key, starting from zero.
func (m *Memory) Incr(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	if e, ok := m.items[key]; ok {
		parsed, err := strconv.ParseInt(string(e.value), 10, 64)
		if err != nil {
			return 0, err
		}
		n = parsed
	}
	n++
	m.items[key] = entry{value: []byte(strconv.FormatInt(n, 10))}
	return n, nil
}

// sweep drops expired entries. Callers hold the write lock.
func (m *Memory) sweep() {
	now := m.now()
	for k, e := range m.items {
		if !e.expiresAt.IsZero() && now.After(e.expiresAt) {
			delete(m.items, k)
		}
	}
}

// Redis is a Backend on a shared Redis instance.
type Redis struct {
	client *redis.Client
}

// NewRedis wraps an existing client.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

// Connect dials addr and pings it.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// Get maps redis.Nil to ErrMiss.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	return data, err
}

// Set stores value; a zero ttl keeps it until the next write.
func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

// Incr runs INCR on key.
func (r *Redis) Incr(ctx context.Context, key string) (int64, error) {
	return r.client.Incr(ctx, key).Result()
}
