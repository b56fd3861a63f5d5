// Package repository holds the durable tier: a collection/index record
// store with memory, redis and postgres backends, and a typed Repository
// over it.
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/okian/gridstat/pkg/metrics"
)

// Collections.
const (
	CollectionStats       = "stats"
	CollectionPlayerWeeks = "player_weeks"
	CollectionRules       = "scoring_rules"
	CollectionRankings    = "rankings"
	CollectionCompletion  = "completion"
	CollectionMetadata    = "metadata"
	CollectionPages       = "pages"
)

// Collections lists every collection a store holds.
var Collections = []string{
	CollectionStats,
	CollectionPlayerWeeks,
	CollectionRules,
	CollectionRankings,
	CollectionCompletion,
	CollectionMetadata,
	CollectionPages,
}

// Secondary indexes.
const (
	IndexYear       = "year"
	IndexWeek       = "week"
	IndexPosition   = "position"
	IndexPlayer     = "player"
	IndexLeague     = "league"
	IndexLeagueYear = "league_year"
)

// SchemaVersion is bumped whenever the stored layout changes. A store
// opened with a different version drops and recreates its data.
const SchemaVersion = 1

// Record is one stored value with its secondary index values.
type Record struct {
	Key     string            `json:"key"`
	Value   json.RawMessage   `json:"value"`
	Indexes map[string]string `json:"indexes,omitempty"`
}

// NewRecord encodes v as the record value.
func NewRecord(key string, v interface{}, indexes map[string]string) (Record, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return Record{}, fmt.Errorf("encode %s: %w", key, err)
	}
	return Record{Key: key, Value: b, Indexes: indexes}, nil
}

// Decode unmarshals the record value into v.
func (r Record) Decode(v interface{}) error {
	if err := json.Unmarshal(r.Value, v); err != nil {
		return fmt.Errorf("decode %s: %w", r.Key, err)
	}
	return nil
}

// Store is a keyed record store with secondary indexes. Writes are upserts
// with last-write-wins per key. Errors are returned as-is; there is no
// retry at this layer.
type Store interface {
	// Put inserts or overwrites rec.
	Put(ctx context.Context, collection string, rec Record) error
	// PutBatch stores every record and returns once all writes finished.
	PutBatch(ctx context.Context, collection string, recs []Record) error
	// Get returns ErrNotFound when key is absent.
	Get(ctx context.Context, collection, key string) (Record, error)
	// GetByIndex returns every record whose index equals value.
	GetByIndex(ctx context.Context, collection, index, value string) ([]Record, error)
	// Delete removes key; deleting a missing key is not an error.
	Delete(ctx context.Context, collection, key string) error
	// ClearByIndex deletes every record whose index equals value and
	// reports how many were removed.
	ClearByIndex(ctx context.Context, collection, index, value string) (int, error)
	// Count returns the number of records in collection.
	Count(ctx context.Context, collection string) (int, error)
	// Close releases connections.
	Close() error
}

// observe records latency and errors for a store call.
func observe(driver, op string, start time.Time, err error) {
	metrics.RecordStoreOperation(driver, op, time.Since(start).Seconds(), err)
}
