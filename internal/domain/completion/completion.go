// Package completion tracks which slices are fully loaded locally.
package completion

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/okian/gridstat/internal/domain/model"
	"github.com/okian/gridstat/pkg/logger"
	"github.com/okian/gridstat/pkg/metrics"
)

// Default tracker configuration constants.
const (
	defaultMaxSize = 50000
)

// Key is a structured slice key the tracker can persist.
type Key interface {
	comparable
	StorageKey() string
	SeasonYear() int
}

// FlagStore is the durable side of the tracker.
type FlagStore interface {
	PutFlag(ctx context.Context, flag model.CompletionFlag) error
	PutMetadata(ctx context.Context, key string, year int, at time.Time) error
	Flag(ctx context.Context, key string) (model.CompletionFlag, error)
	DeleteFlag(ctx context.Context, key string) error
	ClearFlags(ctx context.Context, year int) (int, error)
}

// ErrNotFound is what FlagStore.Flag returns for an unknown key. Other
// errors are logged and treated as a miss.
var ErrNotFound = errors.New("completion flag not found")

// Tracker records loaded slices in memory with a durable fallback.
type Tracker[K Key] struct {
	mu      sync.RWMutex
	loaded  map[K]time.Time
	order   []K // insertion order for bounded eviction
	maxSize int

	durable  FlagStore
	notFound func(error) bool
	now      func() time.Time
	log      logger.Logger
}

// New creates a tracker backed by durable. A nil durable store keeps the
// tracker memory only.
func New[K Key](durable FlagStore, opts ...Option) *Tracker[K] {
	cfg := options{
		maxSize:  defaultMaxSize,
		notFound: func(err error) bool { return errors.Is(err, ErrNotFound) },
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Tracker[K]{
		loaded:   make(map[K]time.Time),
		maxSize:  cfg.maxSize,
		durable:  durable,
		notFound: cfg.notFound,
		now:      cfg.now,
		log:      logger.Named("completion"),
	}
}

// IsLoaded reports whether key is marked in memory or durably. A durable
// hit back-fills memory.
func (t *Tracker[K]) IsLoaded(ctx context.Context, key K) bool {
	_, ok := t.LoadedAt(ctx, key)
	return ok
}

// LoadedAt returns when key was marked.
func (t *Tracker[K]) LoadedAt(ctx context.Context, key K) (time.Time, bool) {
	t.mu.RLock()
	at, ok := t.loaded[key]
	t.mu.RUnlock()
	if ok {
		return at, true
	}
	if t.durable == nil {
		return time.Time{}, false
	}

	flag, err := t.durable.Flag(ctx, key.StorageKey())
	if err != nil {
		if !t.notFound(err) {
			t.log.Warn(ctx, "durable completion lookup failed",
				logger.String("key", key.StorageKey()), logger.Error(err))
		}
		return time.Time{}, false
	}

	t.remember(key, flag.LoadedAt)
	return flag.LoadedAt, true
}

// MarkLoaded sets the memory flag, then the durable flag and its metadata
// record. The memory flag stays set when the durable write fails.
func (t *Tracker[K]) MarkLoaded(ctx context.Context, key K) error {
	at := t.now()
	t.remember(key, at)
	metrics.RecordCompletionMark()
	if t.durable == nil {
		return nil
	}

	flag := model.CompletionFlag{Key: key.StorageKey(), Year: key.SeasonYear(), LoadedAt: at}
	if err := t.durable.PutFlag(ctx, flag); err != nil {
		return err
	}
	return t.durable.PutMetadata(ctx, flag.Key, flag.Year, at)
}

// Invalidate forgets key in memory and durably.
func (t *Tracker[K]) Invalidate(ctx context.Context, key K) error {
	t.mu.Lock()
	delete(t.loaded, key)
	t.dropOrder(func(k K) bool { return k == key })
	t.mu.Unlock()
	if t.durable == nil {
		return nil
	}
	return t.durable.DeleteFlag(ctx, key.StorageKey())
}

// ClearYear forgets every key of year in memory and durably.
func (t *Tracker[K]) ClearYear(ctx context.Context, year int) error {
	t.ForgetYear(year)
	if t.durable == nil {
		return nil
	}
	_, err := t.durable.ClearFlags(ctx, year)
	return err
}

// ForgetYear drops the memory flags of year only.
func (t *Tracker[K]) ForgetYear(year int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for k := range t.loaded {
		if k.SeasonYear() == year {
			delete(t.loaded, k)
		}
	}
	t.dropOrder(func(k K) bool { return k.SeasonYear() == year })
}

// Len returns the number of keys held in memory.
func (t *Tracker[K]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.loaded)
}

func (t *Tracker[K]) remember(key K, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.loaded[key]; !exists {
		t.order = append(t.order, key)
	}
	t.loaded[key] = at

	if t.maxSize <= 0 {
		return
	}
	for len(t.loaded) > t.maxSize && len(t.order) > 0 {
		oldest := t.order[0]
		t.order = t.order[1:]
		if oldest != key {
			delete(t.loaded, oldest)
		}
	}
}

// dropOrder removes the order entries matching drop. Caller holds mu.
func (t *Tracker[K]) dropOrder(drop func(K) bool) {
	kept := t.order[:0]
	for _, k := range t.order {
		if !drop(k) {
			kept = append(kept, k)
		}
	}
	t.order = kept
}
