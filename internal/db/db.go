// Package db opens the conversation store and applies its schema.
// The same SQL runs on Postgres (lib/pq) and SQLite (mattn/go-sqlite3).
package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// Open connects to the database and verifies the connection.
func Open(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	switch driver {
	case DriverPostgres, DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	// Each in-memory SQLite connection is a separate database.
	if driver == DriverSQLite && (dsn == ":memory:" || strings.Contains(dsn, "mode=memory")) {
		conn.SetMaxOpenConns(1)
		conn.SetMaxIdleConns(1)
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	slog.Info("connected to database", "driver", driver)
	return conn, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS campaigns (
		campaign_id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		campaign_details TEXT NOT NULL DEFAULT '',
		message_template TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS customers (
		phone_number TEXT PRIMARY KEY,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		status TEXT NOT NULL,
		most_recent_campaign_id TEXT REFERENCES campaigns(campaign_id),
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_customers_status ON customers(status)`,
	`CREATE TABLE IF NOT EXISTS chat_messages (
		id TEXT PRIMARY KEY,
		phone_number TEXT NOT NULL,
		campaign_id TEXT,
		message TEXT NOT NULL,
		direction TEXT NOT NULL,
		timestamp TIMESTAMP NOT NULL,
		response_type TEXT,
		guardrails_intervened BOOLEAN,
		user_sentiment TEXT,
		should_handoff BOOLEAN,
		status TEXT,
		sent_at TIMESTAMP,
		external_message_id TEXT,
		error_message TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_chat_messages_phone_ts ON chat_messages(phone_number, timestamp)`,
}

// Migrate creates any missing tables and indexes.
func Migrate(ctx context.Context, conn *sql.DB) error {
	for _, stmt := range schema {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
