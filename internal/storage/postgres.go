package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"eticket_parser/internal/ticket"
)

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `yaml:"host" env:"POSTGRES_HOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"POSTGRES_PORT" env-default:"5432"`
	Database string `yaml:"database" env:"POSTGRES_DB" env-default:"eticket"`
	User     string `yaml:"user" env:"POSTGRES_USER" env-default:"eticket"`
	Password string `yaml:"password" env:"POSTGRES_PASSWORD" env-default:"eticket"`
}

// PostgresStore keeps the ticket list in a PostgreSQL key/value table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres opens a connection pool to PostgreSQL and creates the table.
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	connStr := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database)

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}

	poolCfg.MaxConns = 4
	poolCfg.MinConns = 1
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	// Test the connection.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.CreateSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the PostgreSQL connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// CreateSchema creates the key/value table.
func (s *PostgresStore) CreateSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
	CREATE TABLE IF NOT EXISTS kv (
		key         TEXT PRIMARY KEY,
		value       JSONB NOT NULL,
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`)
	if err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Load returns the saved tickets, or an empty list if none were saved.
func (s *PostgresStore) Load(ctx context.Context) ([]*ticket.Ticket, error) {
	var value []byte
	err := s.pool.QueryRow(ctx, `SELECT value::text FROM kv WHERE key = $1`, Key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return []*ticket.Ticket{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load tickets: %w", err)
	}
	return DecodeTickets(value)
}

// Save replaces the saved tickets.
func (s *PostgresStore) Save(ctx context.Context, tickets []*ticket.Ticket) error {
	b, err := EncodeTickets(tickets)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES ($1, $2::jsonb, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`, Key, string(b))
	if err != nil {
		return fmt.Errorf("save tickets: %w", err)
	}
	return nil
}
