// Package cache is the in-memory tier in front of the persistent store.
//
// Entries remember when they were stored so readers can apply the same
// freshness windows as the store. Values are shared between callers and
// must be treated as read-only.
package cache

import (
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/okian/gridstat/pkg/metrics"
)

const (
	// DefaultSize bounds a tier when no size is configured.
	DefaultSize = 4096

	tierName = "memory"
)

type entry struct {
	value    any
	year     int
	storedAt time.Time
}

// Memory is a bounded LRU of timestamped values.
type Memory struct {
	lru   *lru.Cache
	clock func() time.Time
}

// Option configures a Memory tier.
type Option func(*Memory)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Memory) {
		if now != nil {
			m.clock = now
		}
	}
}

// NewMemory creates a tier holding at most size entries.
func NewMemory(size int, opts ...Option) (*Memory, error) {
	if size <= 0 {
		size = DefaultSize
	}
	l, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	m := &Memory{lru: l, clock: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Get returns the value stored under key if it is younger than ttl.
// A ttl <= 0 never expires. Expired entries are dropped.
func (m *Memory) Get(key string, ttl time.Duration) (any, time.Time, bool) {
	raw, ok := m.lru.Get(key)
	if !ok {
		metrics.RecordCacheLookup(tierName, false)
		return nil, time.Time{}, false
	}
	e := raw.(entry)
	if ttl > 0 && m.clock().Sub(e.storedAt) >= ttl {
		m.lru.Remove(key)
		metrics.RecordCacheLookup(tierName, false)
		return nil, time.Time{}, false
	}
	metrics.RecordCacheLookup(tierName, true)
	return e.value, e.storedAt, true
}

// Set stores v under key with the current time.
func (m *Memory) Set(key string, year int, v any) {
	m.SetAt(key, year, v, m.clock())
}

// SetAt stores v under key with an explicit store time, used when
// promoting a value read from the persistent tier.
func (m *Memory) SetAt(key string, year int, v any, at time.Time) {
	m.lru.Add(key, entry{value: v, year: year, storedAt: at})
}

// Remove drops key.
func (m *Memory) Remove(key string) {
	m.lru.Remove(key)
}

// RemoveYear drops every entry stored for year and returns how many.
func (m *Memory) RemoveYear(year int) int {
	n := 0
	for _, k := range m.lru.Keys() {
		raw, ok := m.lru.Peek(k)
		if !ok {
			continue
		}
		if raw.(entry).year == year {
			m.lru.Remove(k)
			n++
		}
	}
	return n
}

// Purge drops everything.
func (m *Memory) Purge() {
	m.lru.Purge()
}

// Len returns the number of entries, expired ones included.
func (m *Memory) Len() int {
	return m.lru.Len()
}

// Lookup is Get with a typed result. A value of another type is a miss.
func Lookup[T any](m *Memory, key string, ttl time.Duration) (T, time.Time, bool) {
	var zero T
	raw, at, ok := m.Get(key, ttl)
	if !ok {
		return zero, time.Time{}, false
	}
	v, ok := raw.(T)
	if !ok {
		return zero, time.Time{}, false
	}
	return v, at, true
}
