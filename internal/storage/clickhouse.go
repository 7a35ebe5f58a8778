package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"eticket_parser/internal/extract"
)

// ClickHouseConfig holds ClickHouse connection settings.
type ClickHouseConfig struct {
	Host     string `yaml:"host" env:"CLICKHOUSE_HOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"CLICKHOUSE_PORT" env-default:"9000"`
	Database string `yaml:"database" env:"CLICKHOUSE_DB" env-default:"eticket"`
	User     string `yaml:"user" env:"CLICKHOUSE_USER" env-default:"default"`
	Password string `yaml:"password" env:"CLICKHOUSE_PASSWORD"`
}

// ClickHouseArchive is an append-only log of extraction attempts.
// It implements extract.Archive.
type ClickHouseArchive struct {
	conn driver.Conn
}

// OpenClickHouse opens a connection to ClickHouse and creates the archive table.
func OpenClickHouse(ctx context.Context, cfg ClickHouseConfig) (*ClickHouseArchive, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout:     10 * time.Second,
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("open clickhouse: %w", err)
	}

	// Test the connection.
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}

	a := &ClickHouseArchive{conn: conn}
	if err := a.CreateSchema(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return a, nil
}

// Close closes the ClickHouse connection.
func (a *ClickHouseArchive) Close() error {
	return a.conn.Close()
}

// CreateSchema creates the archive table.
func (a *ClickHouseArchive) CreateSchema(ctx context.Context) error {
	err := a.conn.Exec(ctx, `CREATE TABLE IF NOT EXISTS extraction_attempts (
			id              String,
			at              DateTime64(3),
			source          LowCardinality(String),
			origin          String,
			outcome         LowCardinality(String),
			tickets         UInt32,
			missing_fields  String,
			text_length     UInt32,
			duration_ms     Float64,
			error           String
		)
		ENGINE = MergeTree()
		PARTITION BY toYYYYMM(at)
		ORDER BY (source, outcome, at)`)
	if err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Record stores one extraction attempt.
func (a *ClickHouseArchive) Record(ctx context.Context, at extract.Attempt) error {
	err := a.conn.Exec(ctx, `
		INSERT INTO extraction_attempts (id, at, source, origin, outcome, tickets, missing_fields, text_length, duration_ms, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, at.ID, at.At, at.Source, at.Origin, at.Outcome, uint32(at.Tickets),
		strings.Join(at.Missing, ","), uint32(at.TextLength),
		float64(at.Duration.Microseconds())/1000, at.Err)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

// ArchiveStats contains aggregate statistics about recorded attempts.
type ArchiveStats struct {
	Total            uint64
	ByOutcome        map[string]uint64
	TopMissingFields map[string]uint64
}

// Stats returns attempt counts by outcome and how often each field was missing.
func (a *ClickHouseArchive) Stats(ctx context.Context) (*ArchiveStats, error) {
	stats := &ArchiveStats{
		ByOutcome:        make(map[string]uint64),
		TopMissingFields: make(map[string]uint64),
	}

	row := a.conn.QueryRow(ctx, "SELECT count() FROM extraction_attempts")
	if err := row.Scan(&stats.Total); err != nil {
		return nil, fmt.Errorf("count attempts: %w", err)
	}

	rows, err := a.conn.Query(ctx, "SELECT outcome, count() FROM extraction_attempts GROUP BY outcome")
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	for rows.Next() {
		var outcome string
		var count uint64
		if err := rows.Scan(&outcome, &count); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		stats.ByOutcome[outcome] = count
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcomes: %w", err)
	}

	rows, err = a.conn.Query(ctx, `
		SELECT field, count() AS c FROM extraction_attempts
		ARRAY JOIN splitByChar(',', missing_fields) AS field
		WHERE missing_fields != ''
		GROUP BY field ORDER BY c DESC LIMIT 10`)
	if err != nil {
		return nil, fmt.Errorf("query missing fields: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var field string
		var count uint64
		if err := rows.Scan(&field, &count); err != nil {
			return nil, fmt.Errorf("scan missing field: %w", err)
		}
		stats.TopMissingFields[field] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate missing fields: %w", err)
	}

	return stats, nil
}
