package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rpggio/tabletime/internal/app"
	"github.com/rpggio/tabletime/internal/domain/billing"
	"github.com/rpggio/tabletime/internal/money"
)

func newItemsCommand(rt Runtime, opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "items <label>",
		Short: "Show the items of the running session on a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rt, opts, func(ctx context.Context, a *app.App, out *printer) error {
				items, err := a.Billing.ListItems(ctx, args[0])
				if err != nil {
					return err
				}
				return out.items(items)
			})
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "set <label> [name:qty:price]...",
		Short: "Replace the item list of the running session on a table",
		Long:  "Replace the whole item list. Each item is written as name:quantity:unit price, e.g. Cola:2:2.50. No items clears the list.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := parseItems(args[1:])
			if err != nil {
				return err
			}
			return withApp(cmd, rt, opts, func(ctx context.Context, a *app.App, out *printer) error {
				saved, err := a.Billing.ReplaceItems(ctx, args[0], items)
				if err != nil {
					return err
				}
				return out.items(saved)
			})
		},
	})
	return cmd
}

// parseItems parses name:qty:price arguments. The name may itself contain
// colons.
func parseItems(args []string) ([]billing.ItemLine, error) {
	items := make([]billing.ItemLine, 0, len(args))
	for _, arg := range args {
		parts := strings.Split(arg, ":")
		if len(parts) < 3 {
			return nil, fmt.Errorf("item %q: want name:quantity:price", arg)
		}
		n := len(parts)
		qty, err := strconv.ParseInt(parts[n-2], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("item %q: invalid quantity: %w", arg, err)
		}
		price, err := money.Parse(parts[n-1])
		if err != nil {
			return nil, fmt.Errorf("item %q: %w", arg, err)
		}
		items = append(items, billing.ItemLine{
			Name:      strings.Join(parts[:n-2], ":"),
			Quantity:  qty,
			UnitPrice: price,
		})
	}
	return items, nil
}

type rangeFlags struct {
	from, to, table, server string
}

func (f *rangeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.from, "from", "", "start of range (RFC 3339 or YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.to, "to", "", "end of range (RFC 3339 or YYYY-MM-DD, whole day)")
	cmd.Flags().StringVar(&f.table, "table", "", "table label")
	cmd.Flags().StringVar(&f.server, "server", "", "server id or name")
}

func newBillsCommand(rt Runtime, opts *RootOptions) *cobra.Command {
	var flags rangeFlags
	cmd := &cobra.Command{
		Use:   "bills",
		Short: "List finalized bills",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			from, to, err := billing.ParseRange(flags.from, flags.to)
			if err != nil {
				return err
			}
			return withApp(cmd, rt, opts, func(ctx context.Context, a *app.App, out *printer) error {
				bills, err := a.Billing.ListBills(ctx, billing.BillFilter{
					From:   from,
					To:     to,
					Table:  flags.table,
					Server: flags.server,
				})
				if err != nil {
					return err
				}
				return out.bills(bills)
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func newBillCommand(rt Runtime, opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "bill <id>",
		Short: "Show one bill",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rt, opts, func(ctx context.Context, a *app.App, out *printer) error {
				bill, err := a.Billing.GetBill(ctx, args[0])
				if err != nil {
					return err
				}
				return out.bill(bill)
			})
		},
	}
}

func newSessionsCommand(rt Runtime, opts *RootOptions) *cobra.Command {
	var (
		flags  rangeFlags
		limit  int
		active bool
	)
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List session history, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			from, to, err := billing.ParseRange(flags.from, flags.to)
			if err != nil {
				return err
			}
			return withApp(cmd, rt, opts, func(ctx context.Context, a *app.App, out *printer) error {
				var sessions []billing.Session
				if active {
					sessions, err = a.Billing.ActiveSessions(ctx)
				} else {
					sessions, err = a.Billing.ListSessions(ctx, billing.SessionFilter{
						Limit:  limit,
						From:   from,
						To:     to,
						Table:  flags.table,
						Server: flags.server,
					})
				}
				if err != nil {
					return err
				}
				return out.sessions(sessions)
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of sessions")
	cmd.Flags().BoolVar(&active, "active", false, "only running sessions")
	return cmd
}

func newRateCommand(rt Runtime, opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rate",
		Short: "Show the per-minute table rate",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rt, opts, func(ctx context.Context, a *app.App, out *printer) error {
				perMinute, err := a.Rates.Get(ctx)
				if err != nil {
					return err
				}
				return out.message("%s per minute", perMinute)
			})
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "set <amount>",
		Short: "Set the per-minute table rate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			perMinute, err := money.Parse(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, rt, opts, func(ctx context.Context, a *app.App, out *printer) error {
				if err := a.Rates.Set(ctx, perMinute); err != nil {
					return err
				}
				return out.message("rate set to %s per minute", perMinute)
			})
		},
	})
	return cmd
}

func newResolveCommand(rt Runtime, opts *RootOptions) *cobra.Command {
	var bill billing.Bill
	cmd := &cobra.Command{
		Use:   "resolve <bill-id>",
		Short: "Resolve the session and billing ids for a payment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bill.BillID = args[0]
			return withApp(cmd, rt, opts, func(ctx context.Context, a *app.App, out *printer) error {
				id, err := a.Payments.Resolve(ctx, bill)
				if err != nil {
					return err
				}
				return out.identity(id)
			})
		},
	}
	cmd.Flags().StringVar(&bill.SessionID, "session", "", "session id carried by the bill")
	cmd.Flags().StringVar(&bill.BillingID, "billing", "", "billing id carried by the bill")
	cmd.Flags().StringVar(&bill.TableLabel, "table", "", "table the bill belongs to")
	return cmd
}
