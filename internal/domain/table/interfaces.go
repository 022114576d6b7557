package table

import "context"

// RemoteTables is the table API of the remote service tier.
type RemoteTables interface {
	Health(ctx context.Context) error
	ListTables(ctx context.Context) ([]TableStatus, error)
	GetTable(ctx context.Context, label string) (*TableStatus, error)
	UpsertTable(ctx context.Context, rec TableStatus) error
	BulkUpsertTables(ctx context.Context, recs []TableStatus) error
	SeedTables(ctx context.Context, recs []TableStatus) error
}

// MutateFunc edits a record in place. found is false when the label had no
// record yet and rec only carries the label.
type MutateFunc func(rec *TableStatus, found bool) error

// Store is implemented by the relational tier and the local durable tier.
type Store interface {
	EnsureSchema(ctx context.Context) error
	List(ctx context.Context) ([]TableStatus, error)
	Get(ctx context.Context, label string) (*TableStatus, error)
	Upsert(ctx context.Context, rec TableStatus) error
	UpsertMany(ctx context.Context, recs []TableStatus) error
	Seed(ctx context.Context, recs []TableStatus) error
	Mutate(ctx context.Context, label string, fn MutateFunc) (*TableStatus, error)
}
