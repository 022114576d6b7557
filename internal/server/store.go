package server

import (
	"context"
	"time"

	"github.com/rpggio/tabletime/internal/domain/billing"
	"github.com/rpggio/tabletime/internal/domain/table"
	"github.com/rpggio/tabletime/internal/money"
	"github.com/rpggio/tabletime/internal/sqlstore"
)

// SessionRepository manages session persistence
type SessionRepository interface {
	Create(ctx context.Context, sess *billing.Session) error
	Get(ctx context.Context, id string) (*billing.Session, error)
	ActiveByTable(ctx context.Context, label string) (*billing.Session, error)
	Active(ctx context.Context) ([]billing.Session, error)
	List(ctx context.Context, filter billing.SessionFilter) ([]billing.Session, error)
	Close(ctx context.Context, id string, end time.Time) error
	Relabel(ctx context.Context, id, label string) error
}

// ItemRepository manages session item lines
type ItemRepository interface {
	List(ctx context.Context, sessionID string) ([]billing.ItemLine, error)
	Replace(ctx context.Context, sessionID string, items []billing.ItemLine) error
}

// BillRepository manages finalized bills
type BillRepository interface {
	Create(ctx context.Context, bill *billing.Bill) error
	Get(ctx context.Context, id string) (*billing.Bill, error)
	List(ctx context.Context, filter billing.BillFilter) ([]billing.Bill, error)
}

// SettingsRepository manages venue settings
type SettingsRepository interface {
	GetRate(ctx context.Context) (money.Money, error)
	SetRate(ctx context.Context, rate money.Money) error
}

// Repos groups the repositories of one connection or transaction.
type Repos struct {
	Tables   table.Store
	Sessions SessionRepository
	Items    ItemRepository
	Bills    BillRepository
	Settings SettingsRepository
}

// Store hands out repositories and runs transactions across them.
type Store interface {
	Repos() Repos
	InTx(ctx context.Context, fn func(r Repos) error) error
	Ping(ctx context.Context) error
}

type sqlStore struct {
	db *sqlstore.DB
}

// NewSQLStore adapts a sqlstore database to Store.
func NewSQLStore(db *sqlstore.DB) Store {
	return &sqlStore{db: db}
}

func (s *sqlStore) Repos() Repos {
	return Repos{
		Tables:   sqlstore.NewTableRepository(s.db),
		Sessions: sqlstore.NewSessionRepository(s.db),
		Items:    sqlstore.NewItemRepository(s.db),
		Bills:    sqlstore.NewBillRepository(s.db),
		Settings: sqlstore.NewSettingsRepository(s.db),
	}
}

func (s *sqlStore) InTx(ctx context.Context, fn func(r Repos) error) error {
	return s.db.WithTx(ctx, func(tx *sqlstore.Tx) error {
		return fn(Repos{
			Tables:   tx.Tables(),
			Sessions: tx.Sessions(),
			Items:    tx.Items(),
			Bills:    tx.Bills(),
			Settings: tx.Settings(),
		})
	})
}

func (s *sqlStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
