package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"eticket_parser/internal/ticket"
)

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
	// Prefix is prepended to Key, so several wallets can share one database.
	Prefix string `yaml:"prefix" env:"REDIS_PREFIX"`
}

// RedisStore keeps the ticket list as a single Redis string.
type RedisStore struct {
	client *redis.Client
	key    string
}

// OpenRedis connects to Redis and checks the connection.
func OpenRedis(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return NewRedisStore(client, cfg.Prefix), nil
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, key: prefix + Key}
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Load returns the saved tickets, or an empty list if none were saved.
func (s *RedisStore) Load(ctx context.Context) ([]*ticket.Ticket, error) {
	value, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return []*ticket.Ticket{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load tickets: %w", err)
	}
	return DecodeTickets(value)
}

// Save replaces the saved tickets. The key never expires.
func (s *RedisStore) Save(ctx context.Context, tickets []*ticket.Ticket) error {
	b, err := EncodeTickets(tickets)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key, b, 0).Err(); err != nil {
		return fmt.Errorf("save tickets: %w", err)
	}
	return nil
}
