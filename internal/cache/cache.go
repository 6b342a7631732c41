// Package cache exposes the best-effort expiring store used across the
// tracking pipeline. A missing entry always falls back to the uncached path;
// write failures are swallowed so a cache outage can only cost latency.
package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Put(ctx context.Context, key, value string, ttl time.Duration)
	Delete(ctx context.Context, key string)

	// Incr atomically increments a counter key, applying ttl when the key is
	// created. The bool is false when the backend could not serve the
	// increment atomically and the caller must fall back.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, bool)
}

// GetJSON reads key and unmarshals it into out.
func GetJSON(ctx context.Context, c Cache, key string, out any) bool {
	if c == nil {
		return false
	}
	raw, ok := c.Get(ctx, key)
	if !ok {
		return false
	}
	return json.Unmarshal([]byte(raw), out) == nil
}

// PutJSON marshals v and stores it under key. Best effort.
func PutJSON(ctx context.Context, c Cache, key string, v any, ttl time.Duration) {
	if c == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.Put(ctx, key, string(raw), ttl)
}

type memoryEntry struct {
	value     string
	counter   int64
	expiresAt time.Time
}

// Memory is an in-process TTL cache. It backs tests and deployments without
// Redis configured.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[string]memoryEntry)}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[key]
	if !ok || time.Now().After(entry.expiresAt) {
		delete(m.entries, key)
		return "", false
	}
	return entry.value, true
}

func (m *Memory) Put(_ context.Context, key, value string, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{value: value, expiresAt: time.Now().Add(ttl)}
}

func (m *Memory) Delete(_ context.Context, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
}

func (m *Memory) Incr(_ context.Context, key string, ttl time.Duration) (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[key]
	if !ok || time.Now().After(entry.expiresAt) {
		entry = memoryEntry{expiresAt: time.Now().Add(ttl)}
	}
	entry.counter++
	m.entries[key] = entry
	return entry.counter, true
}
