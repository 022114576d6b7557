package payment

import (
	"context"

	"github.com/rpggio/tabletime/internal/domain/billing"
	"github.com/rpggio/tabletime/internal/domain/table"
)

// BillLookup fetches a complete bill by id.
type BillLookup interface {
	GetBill(ctx context.Context, id string) (*billing.Bill, error)
}

// ActiveSessionLookup finds the running session on a table.
type ActiveSessionLookup interface {
	ActiveSessionFor(ctx context.Context, label string) (*billing.Session, error)
}

// TableLookup reads a table record from the remote service. It must not go
// through the tier selector: a payment lookup never moves the active tier.
type TableLookup interface {
	GetTable(ctx context.Context, label string) (*table.TableStatus, error)
}

// Strategy is one step of the resolution chain. ok reports whether the
// step produced a candidate identity.
type Strategy interface {
	Name() string
	Resolve(ctx context.Context, bill billing.Bill) (id Identity, ok bool, err error)
}
