package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rpggio/tabletime/internal/money"
	"github.com/rpggio/tabletime/internal/repository"
)

const rateSetting = "rate_per_minute"

// SettingsRepository stores venue-wide settings.
type SettingsRepository struct {
	c conn
}

// NewSettingsRepository creates a SettingsRepository on the connection pool.
func NewSettingsRepository(db *DB) *SettingsRepository {
	return &SettingsRepository{c: db.conn()}
}

// Settings returns a SettingsRepository bound to the transaction.
func (tx *Tx) Settings() *SettingsRepository {
	return &SettingsRepository{c: tx.conn()}
}

// GetRate returns the per-minute rate, or repository.ErrNotFound when it
// was never set.
func (r *SettingsRepository) GetRate(ctx context.Context) (money.Money, error) {
	var value string
	err := r.c.q.QueryRowContext(ctx, `SELECT value FROM settings WHERE name = ?`, rateSetting).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return money.Zero, repository.ErrNotFound
	}
	if err != nil {
		return money.Zero, fmt.Errorf("failed to get rate: %w", err)
	}
	rate, err := money.Parse(value)
	if err != nil {
		return money.Zero, fmt.Errorf("stored rate %q: %w", value, err)
	}
	return rate, nil
}

// SetRate stores the per-minute rate.
func (r *SettingsRepository) SetRate(ctx context.Context, rate money.Money) error {
	stmt := `INSERT INTO settings (name, value) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value`
	if r.c.dialect == MySQL {
		stmt = `INSERT INTO settings (name, value) VALUES (?, ?)
		ON DUPLICATE KEY UPDATE value = VALUES(value)`
	}
	if _, err := r.c.q.ExecContext(ctx, stmt, rateSetting, rate.String()); err != nil {
		return fmt.Errorf("failed to set rate: %w", err)
	}
	return nil
}
