package cache

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// Memory implements Store in process memory.
//
// It exists for tests and single-node deployments without a cache server.
// Expiry is enforced lazily on access.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	clock   func() time.Time
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// NewMemory returns an empty in-process cache.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]memoryEntry),
		clock:   time.Now,
	}
}

// SetClock overrides the time source. Intended for tests.
func (m *Memory) SetClock(clock func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if clock != nil {
		m.clock = clock
	}
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !e.expiresAt.After(now)
}

func (m *Memory) lookup(key string) (memoryEntry, bool) {
	entry, ok := m.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if entry.expired(m.clock()) {
		delete(m.entries, key)
		return memoryEntry{}, false
	}
	return entry, true
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.lookup(key)
	if !ok {
		return nil, ErrMiss
	}
	return append([]byte(nil), entry.value...), nil
}

func (m *Memory) GetEx(_ context.Context, key string, ttl time.Duration) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.lookup(key)
	if !ok {
		return nil, ErrMiss
	}
	entry.expiresAt = m.clock().Add(ttl)
	m.entries[key] = entry
	return append([]byte(nil), entry.value...), nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store(key, value, ttl)
	return nil
}

func (m *Memory) SetBatch(_ context.Context, items []Item, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, item := range items {
		m.store(item.Key, item.Value, ttl)
	}
	return nil
}

func (m *Memory) store(key string, value []byte, ttl time.Duration) {
	entry := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.expiresAt = m.clock().Add(ttl)
	}
	m.entries[key] = entry
}

func (m *Memory) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.entries, key)
	}
	return nil
}

func (m *Memory) Incr(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var current int64
	if entry, ok := m.lookup(key); ok {
		parsed, err := strconv.ParseInt(string(entry.value), 10, 64)
		if err != nil {
			return 0, err
		}
		current = parsed
	}
	current++
	entry := m.entries[key]
	entry.value = []byte(strconv.FormatInt(current, 10))
	m.entries[key] = entry
	return current, nil
}

func (m *Memory) Expire(_ context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.lookup(key)
	if !ok {
		return nil
	}
	entry.expiresAt = m.clock().Add(ttl)
	m.entries[key] = entry
	return nil
}
