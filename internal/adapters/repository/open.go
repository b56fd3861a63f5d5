package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Settings selects and configures a durable store.
type Settings struct {
	Driver        string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	PostgresURL   string
}

// Open builds the store named by settings.Driver ("memory", "redis" or
// "postgres").
func Open(ctx context.Context, settings Settings, opts ...Option) (Store, error) {
	switch strings.ToLower(settings.Driver) {
	case "", DriverMemory:
		return NewMemoryStore(), nil
	case DriverRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     settings.RedisAddr,
			Password: settings.RedisPassword,
			DB:       settings.RedisDB,
		})
		s, err := NewRedisStore(ctx, client, opts...)
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		return s, nil
	case DriverPostgres:
		return NewPostgresStore(ctx, settings.PostgresURL, opts...)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, settings.Driver)
	}
}
