// Package sqlstore implements the relational tier and the storage of the
// reference remote service on SQLite or MySQL.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

// Dialect selects the SQL flavour of a connection.
type Dialect string

const (
	SQLite Dialect = "sqlite"
	MySQL  Dialect = "mysql"
)

// Queryer is satisfied by *sql.DB and *sql.Tx.
type Queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DB wraps a database connection pool and its dialect.
type DB struct {
	*sql.DB
	dialect Dialect
}

// Open connects to a database. driver is "sqlite" or "mysql".
func Open(driver, dsn string) (*DB, error) {
	switch Dialect(strings.ToLower(driver)) {
	case SQLite, "":
		return New(dsn)
	case MySQL:
		return openMySQL(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// New opens a SQLite database. Times are written in SQLite's own format
// unless the DSN picks one.
func New(dataSourceName string) (*DB, error) {
	if !strings.Contains(dataSourceName, "_time_format=") {
		sep := "?"
		if strings.Contains(dataSourceName, "?") {
			sep = "&"
		}
		dataSourceName += sep + "_time_format=sqlite"
	}
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite has a single writer; one connection keeps transactions and
	// in-memory databases consistent.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return &DB{DB: db, dialect: SQLite}, nil
}

func openMySQL(dsn string) (*DB, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return &DB{DB: db, dialect: MySQL}, nil
}

// Dialect returns the SQL flavour of the connection.
func (db *DB) Dialect() Dialect {
	return db.dialect
}

// Tx is a transaction bound to the dialect of its database.
type Tx struct {
	*sql.Tx
	dialect Dialect
}

// WithTx runs fn in a transaction, committing when fn returns nil.
func (db *DB) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&Tx{Tx: sqlTx, dialect: db.dialect}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// conn is what a repository runs its statements on. pool is nil inside a
// transaction.
type conn struct {
	q       Queryer
	pool    *DB
	dialect Dialect
}

func (db *DB) conn() conn {
	return conn{q: db.DB, pool: db, dialect: db.dialect}
}

func (tx *Tx) conn() conn {
	return conn{q: tx.Tx, dialect: tx.dialect}
}

// atomic runs fn in a transaction, reusing the enclosing one if any.
func (c conn) atomic(ctx context.Context, fn func(c conn) error) error {
	if c.pool == nil {
		return fn(c)
	}
	return c.pool.WithTx(ctx, func(tx *Tx) error {
		return fn(tx.conn())
	})
}

// forUpdate returns the row-lock suffix for SELECTs inside a transaction.
func (c conn) forUpdate() string {
	if c.dialect == MySQL {
		return " FOR UPDATE"
	}
	return ""
}
