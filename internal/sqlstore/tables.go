package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rpggio/tabletime/internal/domain/table"
	"github.com/rpggio/tabletime/internal/repository"
)

const tableColumns = `label, type, occupied, order_id, start_time, server, updated_at`

// TableRepository stores table status records. It is the relational tier
// of the table store and the table storage of the reference service.
type TableRepository struct {
	c conn
}

// NewTableRepository creates a TableRepository on the connection pool.
func NewTableRepository(db *DB) *TableRepository {
	return &TableRepository{c: db.conn()}
}

// Tables returns a TableRepository bound to the transaction.
func (tx *Tx) Tables() *TableRepository {
	return &TableRepository{c: tx.conn()}
}

// EnsureSchema creates the table_status table if it does not exist.
func (r *TableRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.c.q.ExecContext(ctx, tableStatusDDL[r.c.dialect]); err != nil {
		return fmt.Errorf("failed to create table_status: %w", err)
	}
	return nil
}

// List returns every record ordered by label.
func (r *TableRepository) List(ctx context.Context) ([]table.TableStatus, error) {
	rows, err := r.c.q.QueryContext(ctx, `SELECT `+tableColumns+` FROM table_status ORDER BY label`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	tables := []table.TableStatus{}
	for rows.Next() {
		rec, err := scanTable(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan table: %w", err)
		}
		tables = append(tables, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating table rows: %w", err)
	}
	return tables, nil
}

// Get returns the record for label.
func (r *TableRepository) Get(ctx context.Context, label string) (*table.TableStatus, error) {
	return r.get(ctx, r.c, label, "")
}

func (r *TableRepository) get(ctx context.Context, c conn, label, suffix string) (*table.TableStatus, error) {
	row := c.q.QueryRowContext(ctx, `SELECT `+tableColumns+` FROM table_status WHERE label = ?`+suffix, label)
	rec, err := scanTable(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get table: %w", err)
	}
	return rec, nil
}

// Upsert inserts or replaces the record with the same label.
func (r *TableRepository) Upsert(ctx context.Context, rec table.TableStatus) error {
	return r.UpsertMany(ctx, []table.TableStatus{rec})
}

// UpsertMany upserts the batch in one transaction. An occupied record
// without a start time is settled against the stored row.
func (r *TableRepository) UpsertMany(ctx context.Context, recs []table.TableStatus) error {
	return r.c.atomic(ctx, func(c conn) error {
		for _, rec := range recs {
			prev, err := r.get(ctx, c, rec.Label, c.forUpdate())
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				return err
			}
			rec.Settle(prev)
			if err := upsertTable(ctx, c, rec); err != nil {
				return err
			}
		}
		return nil
	})
}

// Seed inserts the records whose labels are not stored yet.
func (r *TableRepository) Seed(ctx context.Context, recs []table.TableStatus) error {
	stmt := `INSERT INTO table_status (` + tableColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(label) DO NOTHING`
	if r.c.dialect == MySQL {
		stmt = `INSERT IGNORE INTO table_status (` + tableColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`
	}
	return r.c.atomic(ctx, func(c conn) error {
		for _, rec := range recs {
			if _, err := c.q.ExecContext(ctx, stmt, tableArgs(rec)...); err != nil {
				return fmt.Errorf("failed to seed table %s: %w", rec.Label, err)
			}
		}
		return nil
	})
}

// Mutate reads the record for label, applies fn and writes the result back
// in one transaction. A missing record is handed to fn with found=false.
func (r *TableRepository) Mutate(ctx context.Context, label string, fn table.MutateFunc) (*table.TableStatus, error) {
	var out *table.TableStatus
	err := r.c.atomic(ctx, func(c conn) error {
		rec, err := r.get(ctx, c, label, c.forUpdate())
		found := err == nil
		switch {
		case errors.Is(err, repository.ErrNotFound):
			rec = &table.TableStatus{Label: label}
		case err != nil:
			return err
		}
		if err := fn(rec, found); err != nil {
			return err
		}
		if err := upsertTable(ctx, c, *rec); err != nil {
			return err
		}
		out = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func upsertTable(ctx context.Context, c conn, rec table.TableStatus) error {
	stmt := `INSERT INTO table_status (` + tableColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(label) DO UPDATE SET
			type = excluded.type,
			occupied = excluded.occupied,
			order_id = excluded.order_id,
			start_time = excluded.start_time,
			server = excluded.server,
			updated_at = excluded.updated_at`
	if c.dialect == MySQL {
		stmt = `INSERT INTO table_status (` + tableColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			type = VALUES(type),
			occupied = VALUES(occupied),
			order_id = VALUES(order_id),
			start_time = VALUES(start_time),
			server = VALUES(server),
			updated_at = VALUES(updated_at)`
	}
	if _, err := c.q.ExecContext(ctx, stmt, tableArgs(rec)...); err != nil {
		return fmt.Errorf("failed to upsert table %s: %w", rec.Label, err)
	}
	return nil
}

func tableArgs(rec table.TableStatus) []any {
	updatedAt := rec.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	var start any
	if rec.StartTime != nil {
		start = rec.StartTime.UTC()
	}
	return []any{
		rec.Label,
		rec.Type,
		rec.Occupied,
		rec.OrderID,
		start,
		rec.Server,
		updatedAt.UTC(),
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTable(row rowScanner) (*table.TableStatus, error) {
	var rec table.TableStatus
	var orderID, server sql.NullString
	var start sql.NullTime
	if err := row.Scan(
		&rec.Label,
		&rec.Type,
		&rec.Occupied,
		&orderID,
		&start,
		&server,
		&rec.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if orderID.Valid {
		rec.OrderID = &orderID.String
	}
	if server.Valid {
		rec.Server = &server.String
	}
	if start.Valid {
		t := start.Time.UTC()
		rec.StartTime = &t
	}
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return &rec, nil
}
