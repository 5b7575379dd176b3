package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotFound is returned when no value is stored under a key
var ErrNotFound = errors.New("session not found")

// Store is a keyed repository for conversation state
type Store[V any] interface {
	Get(ctx context.Context, key int64) (V, error)
	Set(ctx context.Context, key int64, value V) error
	Delete(ctx context.Context, key int64) error
}

type entry[V any] struct {
	value     V
	touchedAt time.Time
}

// Memory is an in-process Store guarded by a mutex.
// With a zero ttl entries never expire.
type Memory[V any] struct {
	mu      sync.RWMutex
	entries map[int64]entry[V]
	ttl     time.Duration
	now     func() time.Time
}

// NewMemory creates an in-memory store
func NewMemory[V any](ttl time.Duration) *Memory[V] {
	return &Memory[V]{
		entries: make(map[int64]entry[V]),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the value for key or ErrNotFound
func (m *Memory[V]) Get(ctx context.Context, key int64) (V, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()

	var zero V
	if !ok || m.expired(e) {
		return zero, ErrNotFound
	}
	return e.value, nil
}

// Set stores value under key, replacing anything already there
func (m *Memory[V]) Set(ctx context.Context, key int64, value V) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = entry[V]{value: value, touchedAt: m.now()}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (m *Memory[V]) Delete(ctx context.Context, key int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// Len returns the number of live entries
func (m *Memory[V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, e := range m.entries {
		if !m.expired(e) {
			n++
		}
	}
	return n
}

// Sweep drops expired entries and returns how many were removed
func (m *Memory[V]) Sweep() int {
	if m.ttl <= 0 {
		return 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, e := range m.entries {
		if m.expired(e) {
			delete(m.entries, key)
			removed++
		}
	}
	return removed
}

// Run sweeps expired entries periodically until ctx is done
func (m *Memory[V]) Run(ctx context.Context) error {
	if m.ttl <= 0 {
		<-ctx.Done()
		return nil
	}

	interval := m.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Sweep()
		}
	}
}

func (m *Memory[V]) expired(e entry[V]) bool {
	return m.ttl > 0 && m.now().Sub(e.touchedAt) > m.ttl
}
