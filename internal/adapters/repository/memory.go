package repository

import (
	"context"
	"sync"
	"time"
)

// DriverMemory selects the process-local store.
const DriverMemory = "memory"

type indexRef struct {
	index string
	value string
}

type memCollection struct {
	records map[string]Record
	indexes map[indexRef]map[string]struct{}
}

func newMemCollection() *memCollection {
	return &memCollection{
		records: make(map[string]Record),
		indexes: make(map[indexRef]map[string]struct{}),
	}
}

func (c *memCollection) unindex(rec Record) {
	for idx, val := range rec.Indexes {
		ref := indexRef{idx, val}
		if keys, ok := c.indexes[ref]; ok {
			delete(keys, rec.Key)
			if len(keys) == 0 {
				delete(c.indexes, ref)
			}
		}
	}
}

func (c *memCollection) put(rec Record) {
	if old, ok := c.records[rec.Key]; ok {
		c.unindex(old)
	}
	c.records[rec.Key] = copyRecord(rec)
	for idx, val := range rec.Indexes {
		ref := indexRef{idx, val}
		keys, ok := c.indexes[ref]
		if !ok {
			keys = make(map[string]struct{})
			c.indexes[ref] = keys
		}
		keys[rec.Key] = struct{}{}
	}
}

func (c *memCollection) delete(key string) bool {
	old, ok := c.records[key]
	if !ok {
		return false
	}
	c.unindex(old)
	delete(c.records, key)
	return true
}

func copyRecord(rec Record) Record {
	out := Record{Key: rec.Key, Value: append([]byte(nil), rec.Value...)}
	if rec.Indexes != nil {
		out.Indexes = make(map[string]string, len(rec.Indexes))
		for k, v := range rec.Indexes {
			out.Indexes[k] = v
		}
	}
	return out
}

// MemoryStore is a process-local Store. It is the default driver and the
// one tests run against.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
	closed      bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*memCollection)}
}

func (s *MemoryStore) collection(name string) *memCollection {
	c, ok := s.collections[name]
	if !ok {
		c = newMemCollection()
		s.collections[name] = c
	}
	return c
}

// Put inserts or overwrites rec.
func (s *MemoryStore) Put(ctx context.Context, collection string, rec Record) (err error) {
	defer func(start time.Time) { observe(DriverMemory, "put", start, err) }(time.Now())
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.collection(collection).put(rec)
	return nil
}

// PutBatch stores every record under one lock.
func (s *MemoryStore) PutBatch(ctx context.Context, collection string, recs []Record) (err error) {
	defer func(start time.Time) { observe(DriverMemory, "put_batch", start, err) }(time.Now())
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	c := s.collection(collection)
	for _, rec := range recs {
		c.put(rec)
	}
	return nil
}

// Get returns the record stored under key.
func (s *MemoryStore) Get(ctx context.Context, collection, key string) (rec Record, err error) {
	defer func(start time.Time) { observe(DriverMemory, "get", start, err) }(time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return Record{}, ErrClosed
	}
	c, ok := s.collections[collection]
	if !ok {
		return Record{}, ErrNotFound
	}
	r, ok := c.records[key]
	if !ok {
		return Record{}, ErrNotFound
	}
	return copyRecord(r), nil
}

// GetByIndex returns every record whose index equals value.
func (s *MemoryStore) GetByIndex(ctx context.Context, collection, index, value string) (recs []Record, err error) {
	defer func(start time.Time) { observe(DriverMemory, "get_by_index", start, err) }(time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	c, ok := s.collections[collection]
	if !ok {
		return nil, nil
	}
	keys := c.indexes[indexRef{index, value}]
	out := make([]Record, 0, len(keys))
	for key := range keys {
		out = append(out, copyRecord(c.records[key]))
	}
	return out, nil
}

// Delete removes key.
func (s *MemoryStore) Delete(ctx context.Context, collection, key string) (err error) {
	defer func(start time.Time) { observe(DriverMemory, "delete", start, err) }(time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if c, ok := s.collections[collection]; ok {
		c.delete(key)
	}
	return nil
}

// ClearByIndex deletes every record whose index equals value.
func (s *MemoryStore) ClearByIndex(ctx context.Context, collection, index, value string) (n int, err error) {
	defer func(start time.Time) { observe(DriverMemory, "clear_by_index", start, err) }(time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	c, ok := s.collections[collection]
	if !ok {
		return 0, nil
	}
	keys := make([]string, 0, len(c.indexes[indexRef{index, value}]))
	for key := range c.indexes[indexRef{index, value}] {
		keys = append(keys, key)
	}
	for _, key := range keys {
		if c.delete(key) {
			n++
		}
	}
	return n, nil
}

// Count returns the number of records in collection.
func (s *MemoryStore) Count(ctx context.Context, collection string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrClosed
	}
	if c, ok := s.collections[collection]; ok {
		return len(c.records), nil
	}
	return 0, nil
}

// Close marks the store closed; later calls return ErrClosed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.collections = make(map[string]*memCollection)
	return nil
}
