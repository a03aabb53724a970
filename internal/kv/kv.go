// Package kv abstracts the key-value backend used by the snapshot cache.
//
// Two implementations are provided: a Redis-backed store for deployments and
// an in-process store for development and tests. Both honor per-key TTLs and
// support an atomic insert-if-absent, which the short-link subsystem relies
// on for compare-and-set semantics at the storage layer.
package kv

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned by Get when a key is absent or past its TTL.
var ErrMiss = errors.New("kv: miss")

// Store is the narrow contract the cache layer needs from a KV backend.
// Implementations must be safe for concurrent use.
type Store interface {
	// Set writes value under key with the given TTL, replacing any prior
	// value atomically. ttl <= 0 stores without expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get returns the value for key or ErrMiss when absent or expired.
	// The returned slice is owned by the caller.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes the given keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error

	// SetNX writes value only when key is absent, returning whether the
	// write happened. This is the atomic insert-if-absent primitive.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
}

// Redis adapts a go-redis client to the Store contract.
type Redis struct {
	client *redis.Client
}

// NewRedis returns a Store backed by the given Redis client.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

// Set implements Store.
func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return r.client.Set(ctx, key, value, ttl).Err()
}

// Get implements Store. redis.Nil is normalized to ErrMiss.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Delete implements Store.
func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}

// SetNX implements Store.
func (r *Redis) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if ttl < 0 {
		ttl = 0
	}
	return r.client.SetNX(ctx, key, value, ttl).Result()
}

// memEntry is a stored value plus its absolute deadline (zero = no expiry).
type memEntry struct {
	value    []byte
	deadline time.Time
}

// Memory is a process-local Store for development and tests. Expiry is
// enforced lazily on read; there is no background sweeper.
type Memory struct {
	mu   sync.RWMutex
	data map[string]memEntry
	now  func() time.Time // test seam
}

// NewMemory returns an empty in-process Store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]memEntry), now: time.Now}
}

// Set implements Store.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	cp := append([]byte(nil), value...)
	var deadline time.Time
	if ttl > 0 {
		deadline = m.now().Add(ttl)
	}
	m.mu.Lock()
	m.data[key] = memEntry{value: cp, deadline: deadline}
	m.mu.Unlock()
	return nil
}

// Get implements Store. Expired entries are evicted on the spot.
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	e, ok := m.data[key]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrMiss
	}
	if !e.deadline.IsZero() && m.now().After(e.deadline) {
		m.mu.Lock()
		// Re-check under the write lock; a concurrent Set may have replaced it.
		if cur, ok := m.data[key]; ok && cur.deadline.Equal(e.deadline) {
			delete(m.data, key)
		}
		m.mu.Unlock()
		return nil, ErrMiss
	}
	return append([]byte(nil), e.value...), nil
}

// Delete implements Store.
func (m *Memory) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	for _, k := range keys {
		delete(m.data, k)
	}
	m.mu.Unlock()
	return nil
}

// SetNX implements Store.
func (m *Memory) SetNX(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.data[key]; ok {
		if e.deadline.IsZero() || now.Before(e.deadline) {
			return false, nil
		}
		// Past deadline counts as absent.
	}
	var deadline time.Time
	if ttl > 0 {
		deadline = now.Add(ttl)
	}
	m.data[key] = memEntry{value: append([]byte(nil), value...), deadline: deadline}
	return true, nil
}
