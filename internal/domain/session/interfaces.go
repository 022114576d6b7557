package session

import (
	"context"

	"github.com/rpggio/tabletime/internal/domain/billing"
	"github.com/rpggio/tabletime/internal/domain/table"
)

// Remote is the session API of the remote service tier. Every call is a
// single request that the service applies atomically.
type Remote interface {
	StartSession(ctx context.Context, label string, req StartRequest) (*Started, error)
	StopSession(ctx context.Context, label string) (*billing.Bill, error)
	MoveSession(ctx context.Context, from, to string) (*Moved, error)
	ForceFree(ctx context.Context, label string) (*table.TableStatus, error)
}
