package sqlstore

import (
	"context"
	"fmt"
)

var tableStatusDDL = map[Dialect]string{
	SQLite: `
CREATE TABLE IF NOT EXISTS table_status (
    label TEXT PRIMARY KEY,
    type TEXT NOT NULL DEFAULT '',
    occupied INTEGER NOT NULL DEFAULT 0,
    order_id TEXT,
    start_time TIMESTAMP,
    server TEXT,
    updated_at TIMESTAMP NOT NULL
)`,
	MySQL: `
CREATE TABLE IF NOT EXISTS table_status (
    label VARCHAR(64) NOT NULL PRIMARY KEY,
    type VARCHAR(64) NOT NULL DEFAULT '',
    occupied BOOLEAN NOT NULL DEFAULT FALSE,
    order_id VARCHAR(64) NULL,
    start_time DATETIME(6) NULL,
    server VARCHAR(128) NULL,
    updated_at DATETIME(6) NOT NULL
)`,
}

var serviceDDL = map[Dialect][]string{
	SQLite: {
		`CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    billing_id TEXT NOT NULL UNIQUE,
    table_label TEXT NOT NULL,
    server_id TEXT NOT NULL DEFAULT '',
    server_name TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL CHECK(status IN ('active', 'closed')),
    start_time TIMESTAMP NOT NULL,
    end_time TIMESTAMP
)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_table_status ON sessions(table_label, status)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_start ON sessions(start_time)`,
		`CREATE TABLE IF NOT EXISTS session_items (
    session_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    item_id TEXT NOT NULL,
    name TEXT NOT NULL,
    quantity INTEGER NOT NULL CHECK(quantity > 0),
    unit_price INTEGER NOT NULL,
    PRIMARY KEY (session_id, position),
    FOREIGN KEY (session_id) REFERENCES sessions(id)
)`,
		`CREATE TABLE IF NOT EXISTS bills (
    id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL UNIQUE,
    billing_id TEXT NOT NULL,
    table_label TEXT NOT NULL,
    server_name TEXT NOT NULL DEFAULT '',
    start_time TIMESTAMP NOT NULL,
    end_time TIMESTAMP NOT NULL,
    items_cost INTEGER NOT NULL,
    time_cost INTEGER NOT NULL,
    total_amount INTEGER NOT NULL,
    FOREIGN KEY (session_id) REFERENCES sessions(id)
)`,
		`CREATE INDEX IF NOT EXISTS idx_bills_end ON bills(end_time)`,
		`CREATE TABLE IF NOT EXISTS settings (
    name TEXT PRIMARY KEY,
    value TEXT NOT NULL
)`,
	},
	MySQL: {
		`CREATE TABLE IF NOT EXISTS sessions (
    id VARCHAR(64) NOT NULL PRIMARY KEY,
    billing_id VARCHAR(64) NOT NULL UNIQUE,
    table_label VARCHAR(64) NOT NULL,
    server_id VARCHAR(128) NOT NULL DEFAULT '',
    server_name VARCHAR(128) NOT NULL DEFAULT '',
    status VARCHAR(16) NOT NULL,
    start_time DATETIME(6) NOT NULL,
    end_time DATETIME(6) NULL,
    INDEX idx_sessions_table_status (table_label, status),
    INDEX idx_sessions_start (start_time)
)`,
		`CREATE TABLE IF NOT EXISTS session_items (
    session_id VARCHAR(64) NOT NULL,
    position INT NOT NULL,
    item_id VARCHAR(64) NOT NULL,
    name VARCHAR(255) NOT NULL,
    quantity BIGINT NOT NULL,
    unit_price BIGINT NOT NULL,
    PRIMARY KEY (session_id, position),
    FOREIGN KEY (session_id) REFERENCES sessions(id)
)`,
		`CREATE TABLE IF NOT EXISTS bills (
    id VARCHAR(64) NOT NULL PRIMARY KEY,
    session_id VARCHAR(64) NOT NULL UNIQUE,
    billing_id VARCHAR(64) NOT NULL,
    table_label VARCHAR(64) NOT NULL,
    server_name VARCHAR(128) NOT NULL DEFAULT '',
    start_time DATETIME(6) NOT NULL,
    end_time DATETIME(6) NOT NULL,
    items_cost BIGINT NOT NULL,
    time_cost BIGINT NOT NULL,
    total_amount BIGINT NOT NULL,
    INDEX idx_bills_end (end_time),
    FOREIGN KEY (session_id) REFERENCES sessions(id)
)`,
		`CREATE TABLE IF NOT EXISTS settings (
    name VARCHAR(64) NOT NULL PRIMARY KEY,
    value VARCHAR(255) NOT NULL
)`,
	},
}

// RunMigrations creates every table used by the reference remote service.
// It is idempotent.
func (db *DB) RunMigrations(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, tableStatusDDL[db.dialect]); err != nil {
		return fmt.Errorf("failed to create table_status: %w", err)
	}
	for _, stmt := range serviceDDL[db.dialect] {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}
	return nil
}
