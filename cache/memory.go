package cache

import (
	"context"
	"sync"
	"time"

	"github.com/casemgmt/portal-gateway/internal/errors"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// Memory is an in-memory Cache implementation for tests and local
// development. Expired entries are dropped lazily on read.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	nowTime func() time.Time
}

// MemoryOption modifies a Memory instance.
type MemoryOption func(*Memory)

// WithMemoryNowTime sets the now time function (primarily for testing)
func WithMemoryNowTime(nowFunc func() time.Time) MemoryOption {
	return func(m *Memory) {
		m.nowTime = nowFunc
	}
}

// NewMemory creates a new in-memory cache
func NewMemory(options ...MemoryOption) *Memory {
	m := &Memory{
		entries: make(map[string]memoryEntry),
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

var _ Cache = (*Memory)(nil)

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok {
		return nil, errors.ErrNotFound
	}
	if !entry.expiresAt.IsZero() && m.nowTime().After(entry.expiresAt) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return nil, errors.ErrNotFound
	}
	return entry.value, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = m.nowTime().Add(ttl)
	}

	// Copy to avoid external modifications
	stored := make([]byte, len(value))
	copy(stored, value)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{value: stored, expiresAt: expiresAt}
	return nil
}

func (m *Memory) Drop(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}
