package sqlstore

import (
	"context"
	"fmt"

	"github.com/rpggio/tabletime/internal/domain/billing"
	"github.com/rpggio/tabletime/internal/money"
	"github.com/rpggio/tabletime/internal/repository"
)

// ItemRepository stores the item lines of running sessions.
type ItemRepository struct {
	c conn
}

// NewItemRepository creates an ItemRepository on the connection pool.
func NewItemRepository(db *DB) *ItemRepository {
	return &ItemRepository{c: db.conn()}
}

// Items returns an ItemRepository bound to the transaction.
func (tx *Tx) Items() *ItemRepository {
	return &ItemRepository{c: tx.conn()}
}

// List returns the item lines of a session in entry order.
func (r *ItemRepository) List(ctx context.Context, sessionID string) ([]billing.ItemLine, error) {
	rows, err := r.c.q.QueryContext(ctx,
		`SELECT item_id, name, quantity, unit_price FROM session_items WHERE session_id = ? ORDER BY position`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	items := []billing.ItemLine{}
	for rows.Next() {
		var item billing.ItemLine
		var price int64
		if err := rows.Scan(&item.ItemID, &item.Name, &item.Quantity, &price); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		item.UnitPrice = money.FromCents(price)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating item rows: %w", err)
	}
	return items, nil
}

// Replace swaps the whole item list of a session in one transaction.
func (r *ItemRepository) Replace(ctx context.Context, sessionID string, items []billing.ItemLine) error {
	return r.c.atomic(ctx, func(c conn) error {
		if _, err := c.q.ExecContext(ctx, `DELETE FROM session_items WHERE session_id = ?`, sessionID); err != nil {
			return fmt.Errorf("failed to clear items: %w", err)
		}
		for i, item := range items {
			_, err := c.q.ExecContext(ctx,
				`INSERT INTO session_items (session_id, position, item_id, name, quantity, unit_price)
				VALUES (?, ?, ?, ?, ?, ?)`,
				sessionID, i, item.ItemID, item.Name, item.Quantity, item.UnitPrice.Cents(),
			)
			if err != nil {
				if isForeignKeyViolation(err) {
					return repository.ErrNotFound
				}
				return fmt.Errorf("failed to insert item %q: %w", item.Name, err)
			}
		}
		return nil
	})
}
