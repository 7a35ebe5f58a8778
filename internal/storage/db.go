package storage

import (
	"context"
	"fmt"
)

// Backend names.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config selects and configures the ticket list backend.
type Config struct {
	Backend    string           `yaml:"backend" env:"STORAGE_BACKEND" env-default:"sqlite"`
	SQLitePath string           `yaml:"sqlite_path" env:"SQLITE_PATH" env-default:"tickets.db"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	Redis      RedisConfig      `yaml:"redis"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
	// Archive enables the ClickHouse extraction archive.
	Archive bool `yaml:"archive" env:"ARCHIVE_ENABLED" env-default:"false"`
}

// DefaultConfig returns a configuration with default local development settings.
func DefaultConfig() Config {
	return Config{
		Backend:    BackendSQLite,
		SQLitePath: "tickets.db",
		Postgres: PostgresConfig{
			Host:     "localhost",
			Port:     5432,
			Database: "eticket",
			User:     "eticket",
			Password: "eticket",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		ClickHouse: ClickHouseConfig{
			Host:     "localhost",
			Port:     9000,
			Database: "eticket",
			User:     "default",
		},
	}
}

// Open opens the configured ticket list backend.
func Open(ctx context.Context, cfg Config) (Backend, error) {
	switch cfg.Backend {
	case BackendSQLite, "":
		s, err := OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("sqlite: %w", err)
		}
		return s, nil
	case BackendPostgres:
		s, err := OpenPostgres(ctx, cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		return s, nil
	case BackendRedis:
		s, err := OpenRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
