package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rpggio/tabletime/internal/domain/billing"
	"github.com/rpggio/tabletime/internal/money"
	"github.com/rpggio/tabletime/internal/repository"
)

const billColumns = `id, session_id, billing_id, table_label, server_name, start_time, end_time,
	items_cost, time_cost, total_amount`

// BillRepository stores finalized bills. Bill items are the item lines of
// the closed session.
type BillRepository struct {
	c conn
}

// NewBillRepository creates a BillRepository on the connection pool.
func NewBillRepository(db *DB) *BillRepository {
	return &BillRepository{c: db.conn()}
}

// Bills returns a BillRepository bound to the transaction.
func (tx *Tx) Bills() *BillRepository {
	return &BillRepository{c: tx.conn()}
}

// Create inserts a finalized bill.
func (r *BillRepository) Create(ctx context.Context, bill *billing.Bill) error {
	if bill.EndTime == nil {
		return fmt.Errorf("%w: bill %s has no end time", repository.ErrInvalidInput, bill.BillID)
	}
	_, err := r.c.q.ExecContext(ctx,
		`INSERT INTO bills (`+billColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		bill.BillID,
		bill.SessionID,
		bill.BillingID,
		bill.TableLabel,
		bill.ServerName,
		bill.StartTime.UTC(),
		bill.EndTime.UTC(),
		bill.ItemsCost.Cents(),
		bill.TimeCost.Cents(),
		bill.TotalAmount.Cents(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("failed to create bill: %w", err)
	}
	return nil
}

// Get returns a bill with its item lines.
func (r *BillRepository) Get(ctx context.Context, id string) (*billing.Bill, error) {
	row := r.c.q.QueryRowContext(ctx, `SELECT `+billColumns+` FROM bills WHERE id = ?`, id)
	bill, err := scanBill(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bill: %w", err)
	}

	items, err := (&ItemRepository{c: r.c}).List(ctx, bill.SessionID)
	if err != nil {
		return nil, err
	}
	bill.Items = items
	return bill, nil
}

// List returns the bills matching filter, most recent first. Dates filter
// on the bill's end time.
func (r *BillRepository) List(ctx context.Context, filter billing.BillFilter) ([]billing.Bill, error) {
	var where []string
	var args []any
	if !filter.From.IsZero() {
		where = append(where, "b.end_time >= ?")
		args = append(args, filter.From.UTC())
	}
	if !filter.To.IsZero() {
		where = append(where, "b.end_time < ?")
		args = append(args, filter.To.UTC())
	}
	if filter.Table != "" {
		where = append(where, "b.table_label = ?")
		args = append(args, filter.Table)
	}
	if filter.Server != "" {
		where = append(where, "(b.server_name = ? OR s.server_id = ?)")
		args = append(args, filter.Server, filter.Server)
	}

	query := `SELECT b.id, b.session_id, b.billing_id, b.table_label, b.server_name, b.start_time,
		b.end_time, b.items_cost, b.time_cost, b.total_amount
		FROM bills b JOIN sessions s ON s.id = b.session_id`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY b.end_time DESC, b.id"

	rows, err := r.c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list bills: %w", err)
	}
	bills := []billing.Bill{}
	for rows.Next() {
		bill, err := scanBill(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan bill: %w", err)
		}
		bills = append(bills, *bill)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("error iterating bill rows: %w", err)
	}

	// Items are loaded after the bill cursor is closed: SQLite runs on a
	// single connection.
	items := &ItemRepository{c: r.c}
	for i := range bills {
		lines, err := items.List(ctx, bills[i].SessionID)
		if err != nil {
			return nil, err
		}
		bills[i].Items = lines
	}
	return bills, nil
}

func scanBill(row rowScanner) (*billing.Bill, error) {
	var bill billing.Bill
	var end sql.NullTime
	var itemsCost, timeCost, total int64
	if err := row.Scan(
		&bill.BillID,
		&bill.SessionID,
		&bill.BillingID,
		&bill.TableLabel,
		&bill.ServerName,
		&bill.StartTime,
		&end,
		&itemsCost,
		&timeCost,
		&total,
	); err != nil {
		return nil, err
	}
	bill.StartTime = bill.StartTime.UTC()
	if end.Valid {
		t := end.Time.UTC()
		bill.EndTime = &t
	}
	bill.ItemsCost = money.FromCents(itemsCost)
	bill.TimeCost = money.FromCents(timeCost)
	bill.TotalAmount = money.FromCents(total)
	return &bill, nil
}
