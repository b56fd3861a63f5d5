package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DriverPostgres selects the Postgres store.
const DriverPostgres = "postgres"

// PostgresStore keeps every collection in one table. Index values live in
// a JSONB column searched by containment.
type PostgresStore struct {
	pool    *pgxpool.Pool
	records string
	schema  string
	opts    storeOptions
}

// NewPostgresStore connects to url and prepares the schema. When the stored
// schema version differs, the records table is dropped and recreated.
func NewPostgresStore(ctx context.Context, url string, opts ...Option) (*PostgresStore, error) {
	o := defaultStoreOptions()
	for _, opt := range opts {
		opt(&o)
	}

	poolCfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse postgres url: %w", err)
	}
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &PostgresStore{
		pool:    pool,
		records: pgx.Identifier{o.prefix + "_records"}.Sanitize(),
		schema:  pgx.Identifier{o.prefix + "_schema"}.Sanitize(),
		opts:    o,
	}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `CREATE TABLE IF NOT EXISTS `+s.schema+` (
			id      INT PRIMARY KEY,
			version INT NOT NULL
		)`); err != nil {
			return fmt.Errorf("create schema table: %w", err)
		}

		var version int
		err := tx.QueryRow(ctx, `SELECT version FROM `+s.schema+` WHERE id = 1`).Scan(&version)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("read schema version: %w", err)
		}
		if err == nil && version == s.opts.schemaVersion {
			return nil
		}

		stmts := []string{
			`DROP TABLE IF EXISTS ` + s.records,
			`CREATE TABLE ` + s.records + ` (
				collection TEXT        NOT NULL,
				key        TEXT        NOT NULL,
				value      JSONB       NOT NULL,
				indexes    JSONB       NOT NULL DEFAULT '{}'::jsonb,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
				PRIMARY KEY (collection, key)
			)`,
			`CREATE INDEX ON ` + s.records + ` USING GIN (indexes)`,
		}
		for _, stmt := range stmts {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("recreate records table: %w", err)
			}
		}
		_, err = tx.Exec(ctx, `INSERT INTO `+s.schema+` (id, version) VALUES (1, $1)
			ON CONFLICT (id) DO UPDATE SET version = EXCLUDED.version`, s.opts.schemaVersion)
		if err != nil {
			return fmt.Errorf("write schema version: %w", err)
		}
		return nil
	})
}

func indexJSON(indexes map[string]string) (string, error) {
	if indexes == nil {
		indexes = map[string]string{}
	}
	b, err := json.Marshal(indexes)
	return string(b), err
}

func (s *PostgresStore) put(ctx context.Context, collection string, rec Record) error {
	idx, err := indexJSON(rec.Indexes)
	if err != nil {
		return fmt.Errorf("encode indexes: %w", err)
	}
	_, err = s.pool.Exec(ctx, `INSERT INTO `+s.records+` (collection, key, value, indexes, updated_at)
		VALUES ($1, $2, $3::jsonb, $4::jsonb, now())
		ON CONFLICT (collection, key) DO UPDATE
		SET value = EXCLUDED.value, indexes = EXCLUDED.indexes, updated_at = EXCLUDED.updated_at`,
		collection, rec.Key, string(rec.Value), idx)
	return err
}

// Put inserts or overwrites rec.
func (s *PostgresStore) Put(ctx context.Context, collection string, rec Record) (err error) {
	defer func(start time.Time) { observe(DriverPostgres, "put", start, err) }(time.Now())
	return s.put(ctx, collection, rec)
}

// PutBatch writes records concurrently over the pool and waits for all.
func (s *PostgresStore) PutBatch(ctx context.Context, collection string, recs []Record) (err error) {
	defer func(start time.Time) { observe(DriverPostgres, "put_batch", start, err) }(time.Now())
	return putEach(ctx, recs, func(ctx context.Context, rec Record) error {
		return s.put(ctx, collection, rec)
	})
}

func scanRecord(row pgx.Row) (Record, error) {
	var (
		rec     Record
		value   []byte
		indexes []byte
	)
	if err := row.Scan(&rec.Key, &value, &indexes); err != nil {
		return Record{}, err
	}
	rec.Value = value
	if len(indexes) > 0 {
		if err := json.Unmarshal(indexes, &rec.Indexes); err != nil {
			return Record{}, fmt.Errorf("decode indexes of %s: %w", rec.Key, err)
		}
	}
	return rec, nil
}

// Get returns the record stored under key.
func (s *PostgresStore) Get(ctx context.Context, collection, key string) (rec Record, err error) {
	defer func(start time.Time) { observe(DriverPostgres, "get", start, err) }(time.Now())
	row := s.pool.QueryRow(ctx, `SELECT key, value, indexes FROM `+s.records+`
		WHERE collection = $1 AND key = $2`, collection, key)
	rec, err = scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return rec, err
}

// GetByIndex returns every record whose index equals value.
func (s *PostgresStore) GetByIndex(ctx context.Context, collection, index, value string) (recs []Record, err error) {
	defer func(start time.Time) { observe(DriverPostgres, "get_by_index", start, err) }(time.Now())
	filter, err := indexJSON(map[string]string{index: value})
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, `SELECT key, value, indexes FROM `+s.records+`
		WHERE collection = $1 AND indexes @> $2::jsonb`, collection, filter)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Delete removes key.
func (s *PostgresStore) Delete(ctx context.Context, collection, key string) (err error) {
	defer func(start time.Time) { observe(DriverPostgres, "delete", start, err) }(time.Now())
	_, err = s.pool.Exec(ctx, `DELETE FROM `+s.records+` WHERE collection = $1 AND key = $2`, collection, key)
	return err
}

// ClearByIndex deletes every record whose index equals value.
func (s *PostgresStore) ClearByIndex(ctx context.Context, collection, index, value string) (n int, err error) {
	defer func(start time.Time) { observe(DriverPostgres, "clear_by_index", start, err) }(time.Now())
	filter, err := indexJSON(map[string]string{index: value})
	if err != nil {
		return 0, err
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM `+s.records+`
		WHERE collection = $1 AND indexes @> $2::jsonb`, collection, filter)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// Count returns the number of records in collection.
func (s *PostgresStore) Count(ctx context.Context, collection string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM `+s.records+` WHERE collection = $1`, collection).Scan(&n)
	return n, err
}

// Close closes the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
