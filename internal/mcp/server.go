package mcp

import (
	"context"
	"log/slog"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rpggio/tabletime/internal/app"
	"github.com/rpggio/tabletime/internal/domain/billing"
	"github.com/rpggio/tabletime/internal/domain/payment"
	"github.com/rpggio/tabletime/internal/domain/session"
	"github.com/rpggio/tabletime/internal/domain/table"
	"github.com/rpggio/tabletime/internal/money"
	"github.com/rpggio/tabletime/internal/tier"
)

// TableService defines table operations needed by MCP.
type TableService interface {
	GetAll(ctx context.Context) (table.Snapshot, error)
	Get(ctx context.Context, label string) (*table.TableStatus, tier.Tier, error)
	GetAvailableLabels(ctx context.Context) ([]string, tier.Tier, error)
	Upsert(ctx context.Context, rec table.TableStatus) (tier.Tier, error)
}

// SessionService defines session transitions needed by MCP.
type SessionService interface {
	Start(ctx context.Context, req session.StartRequest) (*session.StartResult, error)
	Stop(ctx context.Context, label string) (*session.StopResult, error)
	Move(ctx context.Context, from, to string) (*session.MoveResult, error)
	ForceFree(ctx context.Context, label string) (*session.StopResult, error)
}

// BillingService defines billing queries needed by MCP.
type BillingService interface {
	ListItems(ctx context.Context, label string) ([]billing.ItemLine, error)
	ReplaceItems(ctx context.Context, label string, items []billing.ItemLine) ([]billing.ItemLine, error)
	ListBills(ctx context.Context, filter billing.BillFilter) ([]billing.Bill, error)
	GetBill(ctx context.Context, id string) (*billing.Bill, error)
	ActiveSessions(ctx context.Context) ([]billing.Session, error)
	ListSessions(ctx context.Context, filter billing.SessionFilter) ([]billing.Session, error)
}

// RateService defines rate access needed by MCP.
type RateService interface {
	Get(ctx context.Context) (money.Money, error)
	Set(ctx context.Context, perMinute money.Money) error
}

// PaymentResolver resolves payment identities.
type PaymentResolver interface {
	Resolve(ctx context.Context, bill billing.Bill) (payment.Identity, error)
}

// Services contains all domain services needed by MCP.
type Services struct {
	Tables   TableService
	Sessions SessionService
	Billing  BillingService
	Rates    RateService
	Payments PaymentResolver
	Status   func() app.Status
}

// ServicesFrom exposes the services of a wired application.
func ServicesFrom(a *app.App) Services {
	return Services{
		Tables:   a.Tables,
		Sessions: a.Sessions,
		Billing:  a.Billing,
		Rates:    a.Rates,
		Payments: a.Payments,
		Status:   a.Status,
	}
}

// Config contains server configuration.
type Config struct {
	Services Services
	Version  string
	Logger   *slog.Logger
}

// NewServer creates an MCP server exposing the table and billing tools.
func NewServer(cfg Config) *sdkmcp.Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	version := cfg.Version
	if version == "" {
		version = "dev"
	}

	server := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "tabletime",
		Version: version,
	}, &sdkmcp.ServerOptions{
		Instructions: serverInstructions,
		Logger:       logger,
	})

	registerDocResources(server)
	server.AddReceivingMiddleware(trafficLoggingMiddleware(logger, "inbound"))
	server.AddSendingMiddleware(trafficLoggingMiddleware(logger, "outbound"))

	registerTools(server, cfg.Services)

	return server
}
