package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rpggio/tabletime/internal/domain/billing"
	"github.com/rpggio/tabletime/internal/domain/session"
	"github.com/rpggio/tabletime/internal/domain/table"
	"github.com/rpggio/tabletime/internal/money"
)

var errInvalidArgument = errors.New("invalid argument")

type toolFunc[In any] func(ctx context.Context, in In) (any, error)

// addTool registers fn with a JSON text result. Failures are mapped to
// APIError and reported as tool errors.
func addTool[In any](server *sdkmcp.Server, name, description string, fn toolFunc[In]) {
	sdkmcp.AddTool(server, &sdkmcp.Tool{Name: name, Description: description},
		func(ctx context.Context, _ *sdkmcp.CallToolRequest, in In) (*sdkmcp.CallToolResult, any, error) {
			out, err := fn(ctx, in)
			if err != nil {
				return nil, nil, MapError(err)
			}
			data, err := json.Marshal(out)
			if err != nil {
				return nil, nil, fmt.Errorf("encode %s result: %w", name, err)
			}
			return &sdkmcp.CallToolResult{
				Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: string(data)}},
			}, nil, nil
		})
}

func registerTools(server *sdkmcp.Server, svc Services) {
	if svc.Tables != nil {
		registerTableTools(server, svc.Tables)
	}
	if svc.Sessions != nil {
		registerSessionTools(server, svc.Sessions)
	}
	if svc.Billing != nil {
		registerBillingTools(server, svc.Billing)
	}
	if svc.Rates != nil {
		registerRateTools(server, svc.Rates)
	}
	if svc.Payments != nil {
		addTool(server, "resolve_payment", "Resolve the session and billing ids a payment for a bill must carry",
			func(ctx context.Context, in ResolvePaymentParams) (any, error) {
				if strings.TrimSpace(in.BillID) == "" {
					return nil, fmt.Errorf("%w: bill_id is required", errInvalidArgument)
				}
				id, err := svc.Payments.Resolve(ctx, billing.Bill{
					BillID:     in.BillID,
					SessionID:  in.SessionID,
					BillingID:  in.BillingID,
					TableLabel: in.TableLabel,
				})
				if err != nil {
					return nil, err
				}
				return id, nil
			})
	}
	if svc.Status != nil {
		addTool(server, "tier_status", "Report which storage tier served the latest operation",
			func(context.Context, EmptyParams) (any, error) {
				return StatusResponse(svc.Status()), nil
			})
	}
}

func registerTableTools(server *sdkmcp.Server, tables TableService) {
	addTool(server, "list_tables", "List every table with its occupancy",
		func(ctx context.Context, _ EmptyParams) (any, error) {
			return tables.GetAll(ctx)
		})
	addTool(server, "get_table", "Get the occupancy record of one table",
		func(ctx context.Context, in LabelParams) (any, error) {
			rec, source, err := tables.Get(ctx, in.Label)
			if err != nil {
				return nil, err
			}
			return TableResponse{Table: rec, Source: source}, nil
		})
	addTool(server, "available_tables", "List the labels of all free tables",
		func(ctx context.Context, _ EmptyParams) (any, error) {
			labels, source, err := tables.GetAvailableLabels(ctx)
			if err != nil {
				return nil, err
			}
			return LabelsResponse{Labels: labels, Source: source}, nil
		})
	addTool(server, "upsert_table", "Create or replace a table record",
		func(ctx context.Context, in UpsertTableParams) (any, error) {
			rec := table.TableStatus{Label: in.Label, Type: in.Type, Occupied: in.Occupied}
			if in.OrderID != "" {
				rec.OrderID = &in.OrderID
			}
			if in.Server != "" {
				rec.Server = &in.Server
			}
			source, err := tables.Upsert(ctx, rec)
			if err != nil {
				return nil, err
			}
			return SourceResponse{Source: source}, nil
		})
}

func registerSessionTools(server *sdkmcp.Server, sessions SessionService) {
	addTool(server, "start_session", "Start a billed session on a free table",
		func(ctx context.Context, in StartSessionParams) (any, error) {
			return sessions.Start(ctx, session.StartRequest{
				Label:      in.Label,
				ServerID:   in.ServerID,
				ServerName: in.ServerName,
			})
		})
	addTool(server, "stop_session", "Stop the session on a table and return its bill",
		func(ctx context.Context, in LabelParams) (any, error) {
			return sessions.Stop(ctx, in.Label)
		})
	addTool(server, "move_session", "Move a running session to a free table",
		func(ctx context.Context, in MoveSessionParams) (any, error) {
			return sessions.Move(ctx, in.From, in.To)
		})
	addTool(server, "force_free", "Free a table without producing a bill",
		func(ctx context.Context, in LabelParams) (any, error) {
			return sessions.ForceFree(ctx, in.Label)
		})
}

func registerBillingTools(server *sdkmcp.Server, bills BillingService) {
	addTool(server, "list_items", "List the items ordered in the running session on a table",
		func(ctx context.Context, in LabelParams) (any, error) {
			return bills.ListItems(ctx, in.Label)
		})
	addTool(server, "replace_items", "Replace the whole item list of the running session on a table",
		func(ctx context.Context, in ReplaceItemsParams) (any, error) {
			items := make([]billing.ItemLine, 0, len(in.Items))
			for _, item := range in.Items {
				price, err := money.Parse(item.UnitPrice)
				if err != nil {
					return nil, fmt.Errorf("item %q: %w", item.Name, err)
				}
				items = append(items, billing.ItemLine{Name: item.Name, Quantity: item.Quantity, UnitPrice: price})
			}
			return bills.ReplaceItems(ctx, in.Label, items)
		})
	addTool(server, "list_bills", "List finalized bills",
		func(ctx context.Context, in ListBillsParams) (any, error) {
			from, to, err := billing.ParseRange(in.From, in.To)
			if err != nil {
				return nil, err
			}
			return bills.ListBills(ctx, billing.BillFilter{From: from, To: to, Table: in.Table, Server: in.Server})
		})
	addTool(server, "get_bill", "Get one bill with its items",
		func(ctx context.Context, in BillParams) (any, error) {
			return bills.GetBill(ctx, in.BillID)
		})
	addTool(server, "active_sessions", "List every running session",
		func(ctx context.Context, _ EmptyParams) (any, error) {
			return bills.ActiveSessions(ctx)
		})
	addTool(server, "list_sessions", "List session history, newest first",
		func(ctx context.Context, in ListSessionsParams) (any, error) {
			from, to, err := billing.ParseRange(in.From, in.To)
			if err != nil {
				return nil, err
			}
			return bills.ListSessions(ctx, billing.SessionFilter{
				Limit:  in.Limit,
				From:   from,
				To:     to,
				Table:  in.Table,
				Server: in.Server,
			})
		})
}

func registerRateTools(server *sdkmcp.Server, rates RateService) {
	addTool(server, "get_rate", "Get the per-minute table rate",
		func(ctx context.Context, _ EmptyParams) (any, error) {
			perMinute, err := rates.Get(ctx)
			if err != nil {
				return nil, err
			}
			return RateResponse{PerMinute: perMinute.String()}, nil
		})
	addTool(server, "set_rate", "Set the per-minute table rate",
		func(ctx context.Context, in SetRateParams) (any, error) {
			perMinute, err := money.Parse(in.PerMinute)
			if err != nil {
				return nil, err
			}
			if err := rates.Set(ctx, perMinute); err != nil {
				return nil, err
			}
			return RateResponse{PerMinute: perMinute.String()}, nil
		})
}
