package billing

import "context"

// Remote is the billing API of the remote service tier.
type Remote interface {
	ListBills(ctx context.Context, filter BillFilter) ([]Bill, error)
	GetBill(ctx context.Context, id string) (*Bill, error)
	ListItems(ctx context.Context, label string) ([]ItemLine, error)
	ReplaceItems(ctx context.Context, label string, items []ItemLine) ([]ItemLine, error)
	ActiveSessions(ctx context.Context) ([]Session, error)
	ListSessions(ctx context.Context, filter SessionFilter) ([]Session, error)
}
