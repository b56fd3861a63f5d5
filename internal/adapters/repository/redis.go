package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DriverRedis selects the Redis store.
const DriverRedis = "redis"

// RedisStore keeps each record as a JSON string and index membership in
// sets:
//
//	{prefix}:{collection}:r:{key}            record
//	{prefix}:{collection}:all                every key
//	{prefix}:{collection}:i:{index}:{value}  keys with that index value
//	{prefix}:schema                          schema version
type RedisStore struct {
	client *redis.Client
	opts   storeOptions
}

// NewRedisStore wraps client and checks the schema version. A mismatch
// deletes every key under the prefix before the new version is written.
func NewRedisStore(ctx context.Context, client *redis.Client, opts ...Option) (*RedisStore, error) {
	o := defaultStoreOptions()
	for _, opt := range opts {
		opt(&o)
	}
	s := &RedisStore{client: client, opts: o}

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *RedisStore) ensureSchema(ctx context.Context) error {
	schemaKey := s.opts.prefix + ":schema"
	v, err := s.client.Get(ctx, schemaKey).Int()
	if err == nil && v == s.opts.schemaVersion {
		return nil
	}
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("read schema version: %w", err)
	}

	iter := s.client.Scan(ctx, 0, s.opts.prefix+":*", 200).Iterator()
	var stale []string
	for iter.Next(ctx) {
		stale = append(stale, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan stale keys: %w", err)
	}
	if len(stale) > 0 {
		if err := s.client.Del(ctx, stale...).Err(); err != nil {
			return fmt.Errorf("drop stale keys: %w", err)
		}
	}
	if err := s.client.Set(ctx, schemaKey, strconv.Itoa(s.opts.schemaVersion), 0).Err(); err != nil {
		return fmt.Errorf("write schema version: %w", err)
	}
	return nil
}

func (s *RedisStore) recordKey(collection, key string) string {
	return s.opts.prefix + ":" + collection + ":r:" + key
}

func (s *RedisStore) allKey(collection string) string {
	return s.opts.prefix + ":" + collection + ":all"
}

func (s *RedisStore) indexKey(collection, index, value string) string {
	return s.opts.prefix + ":" + collection + ":i:" + index + ":" + url.QueryEscape(value)
}

func (s *RedisStore) get(ctx context.Context, collection, key string) (Record, error) {
	b, err := s.client.Get(ctx, s.recordKey(collection, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	var rec Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return Record{}, fmt.Errorf("decode %s: %w", key, err)
	}
	return rec, nil
}

func (s *RedisStore) put(ctx context.Context, collection string, rec Record) error {
	old, err := s.get(ctx, collection, rec.Key)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode %s: %w", rec.Key, err)
	}

	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for idx, val := range old.Indexes {
			p.SRem(ctx, s.indexKey(collection, idx, val), rec.Key)
		}
		p.Set(ctx, s.recordKey(collection, rec.Key), b, 0)
		p.SAdd(ctx, s.allKey(collection), rec.Key)
		for idx, val := range rec.Indexes {
			p.SAdd(ctx, s.indexKey(collection, idx, val), rec.Key)
		}
		return nil
	})
	return err
}

// Put inserts or overwrites rec.
func (s *RedisStore) Put(ctx context.Context, collection string, rec Record) (err error) {
	defer func(start time.Time) { observe(DriverRedis, "put", start, err) }(time.Now())
	return s.put(ctx, collection, rec)
}

// PutBatch writes records concurrently and waits for all of them.
func (s *RedisStore) PutBatch(ctx context.Context, collection string, recs []Record) (err error) {
	defer func(start time.Time) { observe(DriverRedis, "put_batch", start, err) }(time.Now())
	return putEach(ctx, recs, func(ctx context.Context, rec Record) error {
		return s.put(ctx, collection, rec)
	})
}

// Get returns the record stored under key.
func (s *RedisStore) Get(ctx context.Context, collection, key string) (rec Record, err error) {
	defer func(start time.Time) { observe(DriverRedis, "get", start, err) }(time.Now())
	return s.get(ctx, collection, key)
}

func (s *RedisStore) fetch(ctx context.Context, collection string, keys []string) ([]Record, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	rkeys := make([]string, len(keys))
	for i, k := range keys {
		rkeys[i] = s.recordKey(collection, k)
	}
	vals, err := s.client.MGet(ctx, rkeys...).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(vals))
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			// index entry outlived its record
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(str), &rec); err != nil {
			return nil, fmt.Errorf("decode %s: %w", keys[i], err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// GetByIndex returns every record whose index equals value.
func (s *RedisStore) GetByIndex(ctx context.Context, collection, index, value string) (recs []Record, err error) {
	defer func(start time.Time) { observe(DriverRedis, "get_by_index", start, err) }(time.Now())
	keys, err := s.client.SMembers(ctx, s.indexKey(collection, index, value)).Result()
	if err != nil {
		return nil, err
	}
	return s.fetch(ctx, collection, keys)
}

func (s *RedisStore) deleteRecords(ctx context.Context, collection string, recs []Record) error {
	if len(recs) == 0 {
		return nil
	}
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, rec := range recs {
			p.Del(ctx, s.recordKey(collection, rec.Key))
			p.SRem(ctx, s.allKey(collection), rec.Key)
			for idx, val := range rec.Indexes {
				p.SRem(ctx, s.indexKey(collection, idx, val), rec.Key)
			}
		}
		return nil
	})
	return err
}

// Delete removes key.
func (s *RedisStore) Delete(ctx context.Context, collection, key string) (err error) {
	defer func(start time.Time) { observe(DriverRedis, "delete", start, err) }(time.Now())
	old, err := s.get(ctx, collection, key)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.deleteRecords(ctx, collection, []Record{old})
}

// ClearByIndex deletes every record whose index equals value.
func (s *RedisStore) ClearByIndex(ctx context.Context, collection, index, value string) (n int, err error) {
	defer func(start time.Time) { observe(DriverRedis, "clear_by_index", start, err) }(time.Now())
	setKey := s.indexKey(collection, index, value)
	keys, err := s.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return 0, err
	}
	recs, err := s.fetch(ctx, collection, keys)
	if err != nil {
		return 0, err
	}
	if err := s.deleteRecords(ctx, collection, recs); err != nil {
		return 0, err
	}
	if err := s.client.Del(ctx, setKey).Err(); err != nil {
		return 0, err
	}
	return len(recs), nil
}

// Count returns the number of records in collection.
func (s *RedisStore) Count(ctx context.Context, collection string) (int, error) {
	n, err := s.client.SCard(ctx, s.allKey(collection)).Result()
	return int(n), err
}

// Close closes the redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
