package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrNotFound = errors.New("cache: key not found")

type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// RedisCache namespaces every key under a fixed prefix so it can share a
// database with other users of the same client.
type RedisCache struct {
	client    *redis.Client
	namespace string
}

func NewRedisCache(client *redis.Client, namespace string) *RedisCache {
	return &RedisCache{client: client, namespace: namespace}
}

func (r *RedisCache) key(k string) string {
	return r.namespace + k
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, r.key(key), value, ttl).Err()
}

func (r *RedisCache) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.key(key)).Err()
}

func (r *RedisCache) DeletePrefix(ctx context.Context, prefix string) error {
	iter := r.client.Scan(ctx, 0, r.key(prefix)+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}

// InMemoryCache is a process-local TTL cache. A janitor goroutine sweeps
// expired entries every sweep interval until Stop is called, and Set
// evicts once maxEntries keys are held.
type InMemoryCache struct {
	mu         sync.Mutex
	data       map[string]cacheEntry
	now        func() time.Time
	maxEntries int

	sweepTick *time.Ticker
	stopSweep chan struct{}
	stopOnce  sync.Once
}

type cacheEntry struct {
	value     []byte
	expiresAt time.Time
}

const (
	defaultSweepInterval = time.Minute
	defaultMaxEntries    = 10000
)

func NewInMemoryCache() *InMemoryCache {
	m := &InMemoryCache{
		data:       make(map[string]cacheEntry),
		now:        time.Now,
		maxEntries: defaultMaxEntries,
		sweepTick:  time.NewTicker(defaultSweepInterval),
		stopSweep:  make(chan struct{}),
	}

	go m.janitor()

	return m
}

func (m *InMemoryCache) janitor() {
	for {
		select {
		case <-m.sweepTick.C:
			m.mu.Lock()
			m.evictExpired()
			m.mu.Unlock()
		case <-m.stopSweep:
			return
		}
	}
}

// evictExpired drops every entry past its TTL. Callers hold m.mu.
func (m *InMemoryCache) evictExpired() {
	now := m.now()
	for k, e := range m.data {
		if now.After(e.expiresAt) {
			delete(m.data, k)
		}
	}
}

// Stop ends the janitor goroutine. It is safe to call more than once.
func (m *InMemoryCache) Stop() {
	m.stopOnce.Do(func() {
		m.sweepTick.Stop()
		close(m.stopSweep)
	})
}

func (m *InMemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.data[key]
	if !exists {
		return nil, ErrNotFound
	}
	if m.now().After(entry.expiresAt) {
		delete(m.data, key)
		return nil, ErrNotFound
	}
	return entry.value, nil
}

func (m *InMemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.data[key]; !exists && len(m.data) >= m.maxEntries {
		m.evictExpired()
		// still full of live entries: drop an arbitrary one
		for k := range m.data {
			if len(m.data) < m.maxEntries {
				break
			}
			delete(m.data, k)
		}
	}
	m.data[key] = cacheEntry{
		value:     value,
		expiresAt: m.now().Add(ttl),
	}
	return nil
}

func (m *InMemoryCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, key)
	return nil
}

func (m *InMemoryCache) DeletePrefix(ctx context.Context, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			delete(m.data, k)
		}
	}
	return nil
}

func GetJSON(ctx context.Context, c Cache, key string, dest any) error {
	data, err := c.Get(ctx, key)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

func SetJSON(ctx context.Context, c Cache, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.Set(ctx, key, data, ttl)
}

// GetOrLoad serves key from c when present and otherwise calls load and
// stores its result. Cache failures never fail the call; a nil cache
// always loads.
func GetOrLoad[T any](ctx context.Context, c Cache, key string, ttl time.Duration, load func() (T, error)) (T, error) {
	if c != nil {
		var cached T
		if err := GetJSON(ctx, c, key, &cached); err == nil {
			return cached, nil
		}
	}
	v, err := load()
	if err != nil {
		return v, err
	}
	if c != nil {
		_ = SetJSON(ctx, c, key, v, ttl)
	}
	return v, nil
}
