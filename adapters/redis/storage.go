package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"leaderbot/core"

	"github.com/redis/go-redis/v9"
)

// Config holds Redis connection configuration
type Config struct {
	Addr         string        `json:"addr" yaml:"addr" env:"LEADERBOT_REDIS_ADDR"`
	Password     string        `json:"password" yaml:"password" env:"LEADERBOT_REDIS_PASSWORD"`
	DB           int           `json:"db" yaml:"db" env:"LEADERBOT_REDIS_DB"`
	PoolSize     int           `json:"pool_size" yaml:"pool_size" env:"LEADERBOT_REDIS_POOL_SIZE"`
	MinIdleConns int           `json:"min_idle_conns" yaml:"min_idle_conns" env:"LEADERBOT_REDIS_MIN_IDLE_CONNS"`
	DialTimeout  time.Duration `json:"dial_timeout" yaml:"dial_timeout" env:"LEADERBOT_REDIS_DIAL_TIMEOUT"`
	ReadTimeout  time.Duration `json:"read_timeout" yaml:"read_timeout" env:"LEADERBOT_REDIS_READ_TIMEOUT"`
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout" env:"LEADERBOT_REDIS_WRITE_TIMEOUT"`
}

// DefaultConfig returns sensible defaults for Redis configuration
func DefaultConfig() Config {
	return Config{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     4,
		MinIdleConns: 1,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// Store implements the engine.Storage interface using Redis as the backend.
// Data structure:
// - leaderboard:{id}:{year} -> JSON snapshot in the Advent of Code API shape
// - leaderboard:{id}:{year}:last_error -> kind of the last failed cycle
type Store struct {
	client *redis.Client
}

// New creates a new Redis-backed storage with the provided configuration
func New(config Config) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Store{client: client}, nil
}

// NewWithClient creates a Store using an existing Redis client (useful for testing)
func NewWithClient(client *redis.Client) *Store {
	return &Store{client: client}
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

func snapshotKey(id core.LeaderboardID, year int) string {
	return fmt.Sprintf("leaderboard:%d:%d", id, year)
}

func lastErrorKey(id core.LeaderboardID, year int) string {
	return snapshotKey(id, year) + ":last_error"
}

// Load returns the stored snapshot, or nil when the key was never saved.
func (s *Store) Load(ctx context.Context, id core.LeaderboardID, year int) (*core.Leaderboard, error) {
	key := snapshotKey(id, year)
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, core.Unavailable("load", key, err)
	}

	return core.DecodeSnapshot("load", key, data, year)
}

// Save replaces the snapshot and clears the last error in one transaction.
func (s *Store) Save(ctx context.Context, id core.LeaderboardID, year int, lb *core.Leaderboard) error {
	key := snapshotKey(id, year)
	if lb == nil {
		return &core.StorageError{Op: "save", Key: key, Err: errors.New("nil leaderboard")}
	}
	data, err := json.Marshal(lb)
	if err != nil {
		return &core.StorageError{Op: "save", Key: key, Err: err}
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, data, 0)
		pipe.Del(ctx, lastErrorKey(id, year))
		return nil
	})
	if err != nil {
		return core.Unavailable("save", key, err)
	}
	return nil
}

// RecordError stores the kind of the last failed cycle. An empty kind clears it.
func (s *Store) RecordError(ctx context.Context, id core.LeaderboardID, year int, kind string) error {
	key := lastErrorKey(id, year)
	var err error
	if kind == "" {
		err = s.client.Del(ctx, key).Err()
	} else {
		err = s.client.Set(ctx, key, kind, 0).Err()
	}
	if err != nil {
		return core.Unavailable("record_error", key, err)
	}
	return nil
}

func (s *Store) LastError(ctx context.Context, id core.LeaderboardID, year int) (string, error) {
	key := lastErrorKey(id, year)
	kind, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", core.Unavailable("last_error", key, err)
	}
	return kind, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return core.Unavailable("ping", "", err)
	}
	return nil
}
