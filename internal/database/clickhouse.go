// Package database archives accepted snapshots to ClickHouse. The archive is
// write-only: nothing is read back, so no state survives across sessions.
package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"

	"garden-monitor/internal/models"
)

// conn is the subset of driver.Conn the archive uses.
type conn interface {
	Exec(ctx context.Context, query string, args ...any) error
	Ping(ctx context.Context) error
	Close() error
}

type ClickHouseDB struct {
	conn   conn
	logger *slog.Logger
}

// NewClickHouseDB creates a new ClickHouse database connection
func NewClickHouseDB(ctx context.Context, addr, database, username, password string, logger *slog.Logger) (*ClickHouseDB, error) {
	c, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: database,
			Username: username,
			Password: password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout: 5 * time.Second,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	db := newWithConn(c, logger)
	if err := db.conn.Ping(ctx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}
	db.logger.Info("Connected to ClickHouse", "addr", addr, "database", database)

	if err := db.InitSchema(ctx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return db, nil
}

func newWithConn(c conn, logger *slog.Logger) *ClickHouseDB {
	if logger == nil {
		logger = slog.Default()
	}
	return &ClickHouseDB{conn: c, logger: logger.With("component", "clickhouse")}
}

// InitSchema creates the necessary tables if they don't exist
func (db *ClickHouseDB) InitSchema(ctx context.Context) error {
	for _, tableSQL := range AllTables() {
		if err := db.conn.Exec(ctx, tableSQL); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	db.logger.Info("Database schema initialized successfully")
	return nil
}

// SaveReading inserts one accepted snapshot.
func (db *ClickHouseDB) SaveReading(ctx context.Context, topic string, entry models.HistoryEntry) error {
	s := entry.Snapshot
	err := db.conn.Exec(ctx, insertReadingSQL,
		entry.ReceivedAt,
		topic,
		s.Temperature,
		s.AirHumidity,
		s.SoilHumidity,
		s.PH,
		s.PumpOn,
	)
	if err != nil {
		return fmt.Errorf("failed to insert garden reading: %w", err)
	}
	return nil
}

// Close closes the ClickHouse connection
func (db *ClickHouseDB) Close() error {
	if db.conn != nil {
		if err := db.conn.Close(); err != nil {
			return fmt.Errorf("failed to close ClickHouse connection: %w", err)
		}
		db.logger.Info("ClickHouse connection closed")
	}
	return nil
}
